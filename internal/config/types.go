package config

import "time"

// Config holds the driver-wide tunables that aren't encoded in the locator
// itself. A locator's pool-profile name (the `>name` suffix) selects one
// entry of Profiles; a name with no matching entry falls back to "default".
type Config struct {
	Logging  LoggingConfig          `yaml:"logging"`
	Dispatch DispatchConfig         `yaml:"dispatch"`
	Profiles map[string]PoolProfile `yaml:"profiles"`
}

// LoggingConfig controls the diagnostic logger built by internal/logger.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Pretty     bool   `yaml:"pretty"`
	FileOutput bool   `yaml:"file_output"`
	LogDir     string `yaml:"log_dir"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// DispatchConfig controls the Call Dispatcher's retry/failover policy,
// spec.md §4.4. RetryAttempts == -1 means unlimited retries (disables the
// attempt cap but not the delay between attempts).
type DispatchConfig struct {
	RetryDelay      time.Duration `yaml:"retry_delay"`
	RetryAttempts   int           `yaml:"retry_attempts"`
	RecoveryDelay   time.Duration `yaml:"recovery_delay"`
	DefaultPageSize int           `yaml:"default_page_size"`
}

// PoolProfile is the configuration a locator's `>name` suffix selects - the
// "client-side connection-pool sizing hints" mentioned in spec.md §1. It
// does not size an actual connection pool (that's the remote server's job,
// out of scope per spec.md §1). Only MaxOutboundMessageBytes is read, as the
// dispatcher's outbound-size limit; LobBlockSize and MaxInboundMessageBytes
// are loaded but not applied (the LOB engine uses wire.BlockSize, and
// channels are dialed without an inbound limit).
type PoolProfile struct {
	MaxOutboundMessageBytes int `yaml:"max_outbound_message_bytes"`
	MaxInboundMessageBytes  int `yaml:"max_inbound_message_bytes"`
	LobBlockSize            int `yaml:"lob_block_size"`
}
