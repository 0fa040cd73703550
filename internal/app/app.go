package app

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/ramaframework/rama/internal/adapter/http1"
	"github.com/ramaframework/rama/internal/adapter/resolver"
	"github.com/ramaframework/rama/internal/adapter/router"
	"github.com/ramaframework/rama/internal/adapter/shutdown"
	"github.com/ramaframework/rama/internal/adapter/socks5"
	"github.com/ramaframework/rama/internal/adapter/stream"
	"github.com/ramaframework/rama/internal/config"
	"github.com/ramaframework/rama/internal/core/ports"
	"github.com/ramaframework/rama/internal/util"
	"github.com/ramaframework/rama/pkg/eventbus"
	"github.com/ramaframework/rama/pkg/nerdstats"
)

// Application owns every listener and background service wired from a
// config.Config: it is the one place the protocol engines, the TLS/PROXY
// protocol boundaries, the resolver and the router are assembled together.
type Application struct {
	cfg    *config.Config
	logger *slog.Logger

	router    *router.Router
	resolver  resolver.Resolver
	dateClock *http1.DateClock

	tlsServerConfig *tls.Config

	// trustedProxyCIDRs gates which peers' PROXY protocol headers are
	// believed. Empty means every peer on a proxy_protocol listener is
	// trusted, matching pre-allowlist behaviour for configs that don't set
	// trusted_proxies.
	trustedProxyCIDRs []*net.IPNet

	shutdown *shutdown.Shutdown
	events   *eventbus.EventBus[ports.ConnectionEvent]

	listeners   []net.Listener
	listenerCfg []config.ListenerConfig
	socks5Ln    net.Listener

	startedAt time.Time
}

// New assembles an Application from cfg, registering routes onto a fresh
// Router. Callers that need custom routes should build their own Router and
// pass it via NewWithRouter instead.
func New(cfg *config.Config, logger *slog.Logger) (*Application, error) {
	return NewWithRouter(cfg, logger, router.New())
}

// NewWithRouter is New, but with a caller-supplied, already-populated Router.
func NewWithRouter(cfg *config.Config, logger *slog.Logger, rt *router.Router) (*Application, error) {
	tlsCfg, err := buildTLSConfig(cfg.TLS)
	if err != nil {
		return nil, fmt.Errorf("tls configuration: %w", err)
	}

	trustedProxyCIDRs, err := util.ParseTrustedCIDRs(cfg.ProxyProtocol.TrustedProxies)
	if err != nil {
		return nil, fmt.Errorf("proxy protocol trusted_proxies: %w", err)
	}

	res := resolver.Cached(resolver.Deduped(buildBaseResolver(cfg.Resolver)), cfg.Resolver.CacheTTL)

	return &Application{
		cfg:               cfg,
		logger:            logger,
		router:            rt,
		resolver:          res,
		dateClock:         http1.NewDateClock(),
		tlsServerConfig:   tlsCfg,
		trustedProxyCIDRs: trustedProxyCIDRs,
		shutdown:          shutdown.New(),
		events:            eventbus.New[ports.ConnectionEvent](),
		startedAt:         time.Now(),
	}, nil
}

// Stats returns a ports.StatsCollector view onto this Application, for a
// cmd/ consumer that only needs read-only status, not lifecycle control.
func (a *Application) Stats() ports.StatsCollector { return a }

// Events implements ports.StatsCollector.
func (a *Application) Events(ctx context.Context) (<-chan ports.ConnectionEvent, func()) {
	return a.events.Subscribe(ctx)
}

func buildBaseResolver(cfg config.ResolverConfig) resolver.Resolver {
	if len(cfg.Servers) == 0 {
		return resolver.System()
	}
	servers := cfg.Servers
	return resolver.Func(func(ctx context.Context, host string, kind resolver.RecordKind) ([]string, error) {
		var lastErr error
		for _, s := range servers {
			d := net.Resolver{
				PreferGo: true,
				Dial: func(ctx context.Context, network, _ string) (net.Conn, error) {
					var dialer net.Dialer
					return dialer.DialContext(ctx, network, s)
				},
			}
			if kind == resolver.TXT {
				records, err := d.LookupTXT(ctx, host)
				if err != nil {
					lastErr = err
					continue
				}
				return records, nil
			}

			network := "ip4"
			if kind == resolver.AAAA {
				network = "ip6"
			}
			addrs, err := d.LookupIP(ctx, network, host)
			if err != nil {
				lastErr = err
				continue
			}
			out := make([]string, len(addrs))
			for i, ip := range addrs {
				out[i] = ip.String()
			}
			return out, nil
		}
		return nil, lastErr
	})
}

// Start binds every configured listener and begins accepting connections.
// It returns once every listener is bound; serving happens in background
// goroutines tracked by the Application's Shutdown.
func (a *Application) Start(ctx context.Context) error {
	guard := a.shutdown.Guard()

	for _, lcfg := range a.cfg.Listeners {
		network := lcfg.Network
		if network == "" {
			network = "tcp"
		}
		ln, err := net.Listen(network, lcfg.Address)
		if err != nil {
			return fmt.Errorf("listen %s: %w", lcfg.Address, err)
		}
		a.listeners = append(a.listeners, ln)
		a.listenerCfg = append(a.listenerCfg, lcfg)
		logListenerStart(a.logger, lcfg)

		lcfg := lcfg
		guard.Go(func(ctx context.Context) {
			go func() {
				<-ctx.Done()
				ln.Close()
			}()
			a.runListener(guard, ln, lcfg)
		})
	}

	if a.cfg.SOCKS5.Enabled {
		ln, err := net.Listen("tcp", a.cfg.SOCKS5.Address)
		if err != nil {
			return fmt.Errorf("listen socks5 %s: %w", a.cfg.SOCKS5.Address, err)
		}
		a.socks5Ln = ln
		a.logger.Info("socks5 listener started", "address", a.cfg.SOCKS5.Address)

		scfg := a.cfg.SOCKS5
		guard.Go(func(ctx context.Context) {
			go func() {
				<-ctx.Done()
				ln.Close()
			}()
			a.runSOCKS5(guard, ln, scfg)
		})
	}

	return nil
}

// Addrs returns the bound address of every listener started by Start, in
// configuration order — useful for tests that bind to ":0" and need the
// ephemeral port the OS actually chose.
func (a *Application) Addrs() []net.Addr {
	addrs := make([]net.Addr, len(a.listeners))
	for i, ln := range a.listeners {
		addrs[i] = ln.Addr()
	}
	return addrs
}

// Stop cancels every spawned listener/connection goroutine and waits up to
// cfg.Shutdown.Timeout for them to exit.
func (a *Application) Stop(ctx context.Context) error {
	if err := a.shutdown.ShutdownWithLimit(a.cfg.Shutdown.Timeout); err != nil {
		return err
	}
	a.dateClock.Stop()
	a.events.Shutdown()
	return nil
}

func (a *Application) socks5Serve(ctx context.Context, s stream.Stream, scfg config.SOCKS5Config) error {
	var authorizer socks5.Authorizer = socks5.NoAuth{}
	if scfg.AuthMethod == "password" {
		authorizer = socks5.StaticCredentials{scfg.Username: scfg.Password}
	}

	return socks5.Serve(ctx, s, socks5.ServerConfig{
		Authorizer: authorizer,
		Executor:   newDirectExecutor(a.resolver),
	})
}

// Listeners implements ports.StatsCollector.
func (a *Application) Listeners() []ports.ListenerStatus {
	out := make([]ports.ListenerStatus, len(a.listenerCfg))
	for i, lcfg := range a.listenerCfg {
		out[i] = ports.ListenerStatus{
			Name:          lcfg.Name,
			Address:       a.listeners[i].Addr().String(),
			TLS:           lcfg.TLS,
			ProxyProtocol: lcfg.ProxyProtocol,
		}
	}
	return out
}

// SOCKS5Enabled implements ports.StatsCollector.
func (a *Application) SOCKS5Enabled() bool { return a.socks5Ln != nil }

// Process implements ports.StatsCollector.
func (a *Application) Process() ports.ProcessSnapshot {
	stats := nerdstats.Snapshot(a.startedAt)
	return ports.ProcessSnapshot{
		Uptime:          stats.Uptime,
		HeapAlloc:       stats.HeapAlloc,
		HeapInuse:       stats.HeapInuse,
		NumGoroutines:   stats.NumGoroutines,
		MemoryPressure:  stats.GetMemoryPressure(),
		GoroutineHealth: stats.GetGoroutineHealthStatus(),
	}
}
