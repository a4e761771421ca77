package config

import (
	"path/filepath"
	"strings"

	"github.com/marmos91/fileshare/pkg/server"
)

// DefaultConfig returns a fully populated configuration.
func DefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills unspecified fields with defaults. Zero values are
// replaced; explicit values are preserved.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyServerDefaults(&cfg.Server)
	applyStorageDefaults(cfg)
	applyOpsDefaults(&cfg.Ops)
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyServerDefaults(cfg *server.Config) {
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	cfg.ApplyDefaults()
}

func applyStorageDefaults(cfg *Config) {
	if cfg.Database.Path == "" {
		cfg.Database.Path = filepath.Join(dataDir(), "fileshare.db")
	}
	if cfg.Blob.Path == "" {
		cfg.Blob.Path = filepath.Join(dataDir(), "blobs")
	}
}

func applyOpsDefaults(cfg *OpsConfig) {
	// Enabled defaults to false; port only matters when enabled.
	if cfg.Enabled && cfg.Port == 0 {
		cfg.Port = 9090
	}
}
