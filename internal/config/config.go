package config

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

const (
	DefaultProfileName = "default"

	DefaultFileWriteDelay = 150 * time.Millisecond // small delay to ensure file write is complete
)

var (
	lastReload  time.Time
	reloadMutex sync.Mutex
)

// DefaultConfig returns a configuration with sensible defaults, matching the
// framing constants in spec.md §6: a 1 KiB LOB block, a 100-row fetch page,
// and a 4 MiB outbound message ceiling for the "default" pool profile.
func DefaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level: "info",
		},
		Dispatch: DispatchConfig{
			RetryDelay:      500 * time.Millisecond,
			RetryAttempts:   3,
			RecoveryDelay:   5 * time.Second,
			DefaultPageSize: 100,
		},
		Profiles: map[string]PoolProfile{
			DefaultProfileName: {
				MaxOutboundMessageBytes: 4 * 1024 * 1024,
				MaxInboundMessageBytes:  16 * 1024 * 1024,
				LobBlockSize:            1024,
			},
		},
	}
}

// ResolveProfile returns the named pool profile, falling back to "default"
// when the name is empty or unknown (spec.md §6, "locator options recognized").
func (c *Config) ResolveProfile(name string) PoolProfile {
	if name != "" {
		if p, ok := c.Profiles[name]; ok {
			return p
		}
	}
	if p, ok := c.Profiles[DefaultProfileName]; ok {
		return p
	}
	return DefaultConfig().Profiles[DefaultProfileName]
}

// Load loads configuration from file and OJP_-prefixed environment
// variables and always starts watching the file; onConfigChange, when set,
// is called on each change.
func Load(onConfigChange func()) (*Config, error) {
	config := DefaultConfig()

	viper.SetConfigName("ojp")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.SetEnvPrefix("OJP")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		if configFile := os.Getenv("OJP_CONFIG_FILE"); configFile != "" {
			viper.SetConfigFile(configFile)
			if err := viper.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("error reading config file %s: %w", configFile, err)
			}
		}
	}

	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if config.Profiles == nil || len(config.Profiles) == 0 {
		config.Profiles = DefaultConfig().Profiles
	}

	viper.WatchConfig()

	if onConfigChange != nil {
		viper.OnConfigChange(func(e fsnotify.Event) {
			reloadMutex.Lock()
			defer reloadMutex.Unlock()

			now := time.Now()
			if now.Sub(lastReload) < 500*time.Millisecond {
				return // ignore rapid-fire duplicate events
			}
			lastReload = now

			// on some platforms this event fires before the write completes
			time.Sleep(DefaultFileWriteDelay)
			onConfigChange()
		})
	}
	return config, nil
}
