package config

import "time"

// Config holds all configuration for the framework.
type Config struct {
	Logging       LoggingConfig       `yaml:"logging"`
	Listeners     []ListenerConfig    `yaml:"listeners"`
	Pool          PoolConfig          `yaml:"pool"`
	Resolver      ResolverConfig      `yaml:"resolver"`
	HTTP1         HTTP1Config         `yaml:"http1"`
	HTTP2         HTTP2Config         `yaml:"http2"`
	TLS           TLSConfig           `yaml:"tls"`
	SOCKS5        SOCKS5Config        `yaml:"socks5"`
	ProxyProtocol ProxyProtocolConfig `yaml:"proxy_protocol"`
	Shutdown      ShutdownConfig      `yaml:"shutdown"`
	Engineering   EngineeringConfig   `yaml:"engineering"`
}

// ListenerConfig describes one bound socket the framework accepts
// connections on.
type ListenerConfig struct {
	Name          string `yaml:"name"`
	Address       string `yaml:"address"`
	Network       string `yaml:"network"` // passed to net.Listen, e.g. "tcp" or "unix"; empty means "tcp"
	TLS           bool   `yaml:"tls"`
	ProxyProtocol bool   `yaml:"proxy_protocol"`
}

// PoolConfig tunes the fingerprint-keyed outbound connection pool.
type PoolConfig struct {
	MaxIdlePerKey           int           `yaml:"max_idle_per_key"`
	MaxTotal                int           `yaml:"max_total"`
	IdleTimeout             time.Duration `yaml:"idle_timeout"`
	DialTimeout             time.Duration `yaml:"dial_timeout"`
	CircuitBreakerThreshold int           `yaml:"circuit_breaker_threshold"`
	CircuitBreakerCooldown  time.Duration `yaml:"circuit_breaker_cooldown"`
}

// ResolverConfig tunes DNS resolution: upstream servers plus the
// deduplicating/caching wrapper layered over them.
type ResolverConfig struct {
	Servers      []string      `yaml:"servers"`
	CacheTTL     time.Duration `yaml:"cache_ttl"`
	CacheSize    int           `yaml:"cache_size"`
	DedupeWindow time.Duration `yaml:"dedupe_window"`
}

// HTTP1Config tunes the HTTP/1.1 engine.
type HTTP1Config struct {
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	IdleTimeout      time.Duration `yaml:"idle_timeout"`
	MaxHeaderBytes   int64         `yaml:"max_header_bytes"`
	MaxBodyBytes     int64         `yaml:"max_body_bytes"`
	KeepAliveEnabled bool          `yaml:"keep_alive_enabled"`
}

// HTTP2Config tunes the HTTP/2 engine's per-connection settings frame
// and flow-control defaults.
type HTTP2Config struct {
	MaxConcurrentStreams uint32        `yaml:"max_concurrent_streams"`
	InitialWindowSize    int32         `yaml:"initial_window_size"`
	MaxFrameSize         uint32        `yaml:"max_frame_size"`
	HeaderTableSize      uint32        `yaml:"header_table_size"`
	EnablePush           bool          `yaml:"enable_push"`
	IdleTimeout          time.Duration `yaml:"idle_timeout"`
}

// TLSConfig configures the Accept/Connect boundary's certificate and
// negotiation behaviour.
type TLSConfig struct {
	Enabled       bool     `yaml:"enabled"`
	CertFile      string   `yaml:"cert_file"`
	KeyFile       string   `yaml:"key_file"`
	MinVersion    string   `yaml:"min_version"` // "1.2" or "1.3"
	ALPNProtocols []string `yaml:"alpn_protocols"`
	ClientAuth    string   `yaml:"client_auth"` // "none", "request", "require"
}

// SOCKS5Config configures the SOCKS5 server endpoint.
type SOCKS5Config struct {
	Enabled    bool   `yaml:"enabled"`
	Address    string `yaml:"address"`
	AuthMethod string `yaml:"auth_method"` // "none" or "password"
	Username   string `yaml:"username"`
	Password   string `yaml:"password"`
}

// ProxyProtocolConfig configures HAProxy PROXY protocol handling on
// listeners that opt into it.
type ProxyProtocolConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Version        int      `yaml:"version"` // 1 or 2
	TrustedProxies []string `yaml:"trusted_proxies"`
}

// ShutdownConfig configures the graceful-shutdown deadline.
type ShutdownConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// EngineeringConfig holds development/debugging configuration.
type EngineeringConfig struct {
	ShowNerdStats bool `yaml:"show_nerdstats"`

	// PprofEnabled starts a localhost-only pprof endpoint alongside the
	// listeners configured above; never enable this on a routable address.
	PprofEnabled bool `yaml:"pprof_enabled"`
}
