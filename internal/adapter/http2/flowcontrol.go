package http2

import "sync"

// Window is a signed flow-control window. It can go negative when a SETTINGS
// change to INITIAL_WINDOW_SIZE retroactively shrinks every open stream's
// send window; sends must then block until WINDOW_UPDATE brings it back
// above zero.
type Window struct {
	mu    sync.Mutex
	value int64
	cond  *sync.Cond
}

func newWindow(initial int32) *Window {
	w := &Window{value: int64(initial)}
	w.cond = sync.NewCond(&w.mu)
	return w
}

// Consume blocks until at least n bytes are available, then deducts them.
// Callers should chunk large writes so a single stream doesn't starve
// others waiting on the same window.
func (w *Window) Consume(n int64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for w.value < n {
		w.cond.Wait()
	}
	w.value -= n
}

// Available returns the current window without blocking; useful for
// chunking a DATA write to whatever fits right now.
func (w *Window) Available() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.value
}

// Increase applies a WINDOW_UPDATE increment (always non-negative) or a
// SETTINGS_INITIAL_WINDOW_SIZE delta (may be negative), waking any consumer
// blocked in Consume if the window crossed back above zero.
func (w *Window) Increase(delta int64) {
	w.mu.Lock()
	w.value += delta
	w.mu.Unlock()
	w.cond.Broadcast()
}
