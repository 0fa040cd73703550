package http1

import (
	"sync/atomic"
	"time"
)

// RFC 7231 §7.1.1.1's preferred (IMF-fixdate) format.
const TimeFormat = "Mon, 02 Jan 2006 15:04:05 GMT"

// DateClock maintains a per-second cached RFC 7231 Date string, so a busy
// server engine doesn't reformat time.Now() for every response.
type DateClock struct {
	current atomic.Pointer[string]
	stop    chan struct{}
}

// NewDateClock starts a ticker that refreshes the cached Date string once a
// second. Call Stop when the engine shuts down.
func NewDateClock() *DateClock {
	d := &DateClock{stop: make(chan struct{})}
	d.refresh()

	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				d.refresh()
			case <-d.stop:
				return
			}
		}
	}()

	return d
}

func (d *DateClock) refresh() {
	s := time.Now().UTC().Format(TimeFormat)
	d.current.Store(&s)
}

// String returns the current cached Date value.
func (d *DateClock) String() string {
	return *d.current.Load()
}

// Stop halts the background refresh goroutine.
func (d *DateClock) Stop() { close(d.stop) }
