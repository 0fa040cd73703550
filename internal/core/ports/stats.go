// Package ports defines the narrow interfaces external collaborators
// (primarily cmd/ consumers) are given instead of a concrete Application,
// so a TUI or a metrics exporter depends on a small capability surface
// rather than the whole composition root.
package ports

import (
	"context"
	"time"
)

// ListenerStatus reports one bound listener's identity and protocol mix.
type ListenerStatus struct {
	Name          string
	Address       string
	TLS           bool
	ProxyProtocol bool
}

// ConnectionEvent is one lifecycle notch of a connection accepted by any
// listener — accepted, then later closed. A dashboard or exporter
// subscribes to a stream of these instead of polling for them.
type ConnectionEvent struct {
	At         time.Time
	Listener   string
	Protocol   string // "http1", "http2", "socks5"
	RemoteAddr string
	Stage      string // "accepted" or "closed"
}

// ProcessSnapshot is a point-in-time read of runtime health, independent of
// any one listener.
type ProcessSnapshot struct {
	Uptime          time.Duration
	HeapAlloc       uint64
	HeapInuse       uint64
	NumGoroutines   int
	MemoryPressure  string
	GoroutineHealth string
}

// StatsCollector is the read-only view of a running Application a dashboard
// or metrics exporter polls. It never exposes mutation (Start/Stop, route
// registration) — only what a monitoring consumer needs.
type StatsCollector interface {
	Listeners() []ListenerStatus
	SOCKS5Enabled() bool
	Process() ProcessSnapshot

	// Events streams connection lifecycle notches until ctx is cancelled or
	// the returned cleanup func is called, whichever comes first.
	Events(ctx context.Context) (<-chan ConnectionEvent, func())
}
