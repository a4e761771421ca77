package server

import (
	"fmt"
	"time"
)

// Config holds the TCP server configuration.
type Config struct {
	// BindAddress is the address to listen on. Default: all interfaces.
	BindAddress string `mapstructure:"bind_address" yaml:"bind_address,omitempty"`

	// Port is the TCP port. Zero selects an ephemeral port.
	Port int `mapstructure:"port" validate:"gte=0,lte=65535" yaml:"port"`

	// MaxConnections caps concurrent workers. Further accepts are closed
	// immediately. Default: 100.
	MaxConnections int `mapstructure:"max_connections" validate:"gte=1" yaml:"max_connections"`

	// ReadTimeout is the per-packet receive deadline. Default: 5m.
	ReadTimeout time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`

	// WriteTimeout is the per-packet send deadline. Default: 5m.
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`

	// ShutdownTimeout is how long graceful shutdown waits for workers to
	// drain before force-closing. Default: 5s.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// ApplyDefaults fills in zero values.
func (c *Config) ApplyDefaults() {
	if c.MaxConnections == 0 {
		c.MaxConnections = 100
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 5 * time.Minute
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 5 * time.Minute
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 5 * time.Second
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.MaxConnections < 1 {
		return fmt.Errorf("max_connections must be at least 1, got %d", c.MaxConnections)
	}
	return nil
}
