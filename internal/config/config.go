package config

import (
	"fmt"
	"github.com/fsnotify/fsnotify"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	DefaultPort = 19841
	DefaultHost = "localhost"

	DefaultFileWriteDelay = 150 * time.Millisecond // Small delay to ensure file write is complete
)

var (
	lastReload  time.Time
	reloadMutex sync.Mutex
)

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Listeners: []ListenerConfig{
			{
				Name:    "default",
				Address: fmt.Sprintf("%s:%d", DefaultHost, DefaultPort),
				Network: "tcp",
			},
		},
		Pool: PoolConfig{
			MaxIdlePerKey:           16,
			MaxTotal:                256,
			IdleTimeout:             90 * time.Second,
			DialTimeout:             10 * time.Second,
			CircuitBreakerThreshold: 5,
			CircuitBreakerCooldown:  30 * time.Second,
		},
		Resolver: ResolverConfig{
			CacheTTL:     60 * time.Second,
			CacheSize:    1024,
			DedupeWindow: 2 * time.Second,
		},
		HTTP1: HTTP1Config{
			ReadTimeout:      30 * time.Second,
			WriteTimeout:     30 * time.Second,
			IdleTimeout:      120 * time.Second,
			MaxHeaderBytes:   1 << 20,
			MaxBodyBytes:     10 << 20,
			KeepAliveEnabled: true,
		},
		HTTP2: HTTP2Config{
			MaxConcurrentStreams: 250,
			InitialWindowSize:    65535,
			MaxFrameSize:         16384,
			HeaderTableSize:      4096,
			EnablePush:           false,
			IdleTimeout:          120 * time.Second,
		},
		TLS: TLSConfig{
			Enabled:    false,
			CertFile:   "cert.pem",
			KeyFile:    "key.pem",
			MinVersion: "1.2",
		},
		SOCKS5: SOCKS5Config{
			Enabled:    false,
			Address:    ":1080",
			AuthMethod: "none",
		},
		ProxyProtocol: ProxyProtocolConfig{
			Enabled: false,
			Version: 2,
		},
		Shutdown: ShutdownConfig{
			Timeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// Load loads configuration from file and environment variables
func Load(onConfigChange func()) (*Config, error) {
	config := DefaultConfig()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.SetEnvPrefix("RAMA")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Register every default key with viper: Unmarshal only applies an
	// environment override to a key viper already knows about.
	if raw, err := yaml.Marshal(config); err == nil {
		var defaults map[string]any
		if yaml.Unmarshal(raw, &defaults) == nil {
			for key, value := range defaults {
				viper.SetDefault(key, value)
			}
		}
	}

	// Try to read config file
	if err := viper.ReadInConfig(); err != nil {
		// It's okay if config file doesn't exist
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// If config file not found, check if we have RAMA_CONFIG_FILE env var
		if configFile := os.Getenv("RAMA_CONFIG_FILE"); configFile != "" {
			viper.SetConfigFile(configFile)
			if err := viper.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
			}
		}
	}

	if err := viper.Unmarshal(config, func(dc *mapstructure.DecoderConfig) { dc.TagName = "yaml" }); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	viper.WatchConfig()

	if onConfigChange != nil {
		viper.OnConfigChange(func(e fsnotify.Event) {
			reloadMutex.Lock()
			defer reloadMutex.Unlock()

			// lame debounce to avoid rapid-fire reloads
			now := time.Now()
			if now.Sub(lastReload) < 500*time.Millisecond {
				return // Ignore miultiple rapid changes
			}
			lastReload = now

			// looks like on windows this event is triggered
			// before the file is fully written, not sure why
			time.Sleep(DefaultFileWriteDelay)
			onConfigChange()
		})
	}
	return config, nil
}
