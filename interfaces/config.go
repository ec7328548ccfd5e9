package interfaces

import (
	"time"
)

// Config defines the interface for client configuration
type Config interface {
	// GetNetwork returns network configuration
	GetNetwork() NetworkConfig

	// GetConnection returns the AMQP connection parameters
	GetConnection() ConnectionConfig

	// GetSecurity returns security configuration
	GetSecurity() SecurityConfig

	// GetClient returns client information configuration
	GetClient() ClientConfig

	// Validate validates the configuration
	Validate() error

	// Load loads configuration from a source
	Load(source string) error

	// Save saves configuration to a destination
	Save(destination string) error
}

// NetworkConfig holds network-related configuration
type NetworkConfig struct {
	// Broker host and port
	Host string `koanf:"host" yaml:"host" json:"host" toml:"host"`
	Port int    `koanf:"port" yaml:"port" json:"port" toml:"port"`

	// Dial timeout, also bounds the opening handshake
	ConnectionTimeout time.Duration `koanf:"connection_timeout" yaml:"connection_timeout" json:"connection_timeout" toml:"connection_timeout"`

	// TCP keepalive settings
	TCPKeepAlive         bool          `koanf:"tcp_keepalive" yaml:"tcp_keepalive" json:"tcp_keepalive" toml:"tcp_keepalive"`
	TCPKeepAliveInterval time.Duration `koanf:"tcp_keepalive_interval" yaml:"tcp_keepalive_interval" json:"tcp_keepalive_interval" toml:"tcp_keepalive_interval"`
}

// ConnectionConfig holds the values proposed to the broker during the
// opening handshake.
type ConnectionConfig struct {
	VirtualHost string `koanf:"virtual_host" yaml:"virtual_host" json:"virtual_host" toml:"virtual_host"`

	// Tuning proposals. Zero means no limit; the broker's value wins then.
	FrameMax   uint32        `koanf:"frame_max" yaml:"frame_max" json:"frame_max" toml:"frame_max"`
	ChannelMax uint16        `koanf:"channel_max" yaml:"channel_max" json:"channel_max" toml:"channel_max"`
	Heartbeat  time.Duration `koanf:"heartbeat" yaml:"heartbeat" json:"heartbeat" toml:"heartbeat"`

	Locale string `koanf:"locale" yaml:"locale" json:"locale" toml:"locale"`

	// Name shown in the broker management UI
	ConnectionName string `koanf:"connection_name" yaml:"connection_name" json:"connection_name" toml:"connection_name"`

	// Publishes allowed in flight on a channel in confirm mode
	MaxUnconfirmed int64 `koanf:"max_unconfirmed" yaml:"max_unconfirmed" json:"max_unconfirmed" toml:"max_unconfirmed"`

	// Bound on the close handshake when the caller gives no deadline
	CloseTimeout time.Duration `koanf:"close_timeout" yaml:"close_timeout" json:"close_timeout" toml:"close_timeout"`
}

// SecurityConfig holds credentials and the SASL mechanisms to try, in order
// of preference.
type SecurityConfig struct {
	Username   string   `koanf:"username" yaml:"username" json:"username" toml:"username"`
	Password   string   `koanf:"password" yaml:"password" json:"password" toml:"password"`
	Mechanisms []string `koanf:"mechanisms" yaml:"mechanisms" json:"mechanisms" toml:"mechanisms"`
}

// ClientConfig holds client identification and operational settings
type ClientConfig struct {
	// Reported to the broker in client-properties
	Product     string `koanf:"product" yaml:"product" json:"product" toml:"product"`
	Version     string `koanf:"version" yaml:"version" json:"version" toml:"version"`
	Platform    string `koanf:"platform" yaml:"platform" json:"platform" toml:"platform"`
	Copyright   string `koanf:"copyright" yaml:"copyright" json:"copyright" toml:"copyright"`
	Information string `koanf:"information" yaml:"information" json:"information" toml:"information"`

	// Logging
	LogLevel string `koanf:"log_level" yaml:"log_level" json:"log_level" toml:"log_level"`
	LogFile  string `koanf:"log_file" yaml:"log_file" json:"log_file" toml:"log_file"`

	// Prometheus endpoint
	MetricsEnabled bool `koanf:"metrics_enabled" yaml:"metrics_enabled" json:"metrics_enabled" toml:"metrics_enabled"`
	MetricsPort    int  `koanf:"metrics_port" yaml:"metrics_port" json:"metrics_port" toml:"metrics_port"`
}
