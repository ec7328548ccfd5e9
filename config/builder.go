package config

import (
	"time"
)

// ConfigBuilder provides a fluent API for building configuration
type ConfigBuilder struct {
	config *AMQPConfig
}

// NewConfigBuilder creates a new configuration builder with defaults
func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{
		config: DefaultConfig(),
	}
}

// FromConfig creates a builder from an existing configuration
func FromConfig(config *AMQPConfig) *ConfigBuilder {
	// Deep copy the configuration
	builder := NewConfigBuilder()
	*builder.config = *config
	builder.config.Security.Mechanisms = append([]string(nil), config.Security.Mechanisms...)
	return builder
}

// Network Configuration

// WithHost sets the broker host
func (b *ConfigBuilder) WithHost(host string) *ConfigBuilder {
	b.config.Network.Host = host
	return b
}

// WithPort sets the broker port
func (b *ConfigBuilder) WithPort(port int) *ConfigBuilder {
	b.config.Network.Port = port
	return b
}

// WithConnectionTimeout sets the dial and handshake timeout
func (b *ConfigBuilder) WithConnectionTimeout(timeout time.Duration) *ConfigBuilder {
	b.config.Network.ConnectionTimeout = timeout
	return b
}

// WithTCPKeepAlive enables/disables TCP keep-alive
func (b *ConfigBuilder) WithTCPKeepAlive(enabled bool, interval time.Duration) *ConfigBuilder {
	b.config.Network.TCPKeepAlive = enabled
	b.config.Network.TCPKeepAliveInterval = interval
	return b
}

// Connection Configuration

// WithVirtualHost sets the virtual host opened after the handshake
func (b *ConfigBuilder) WithVirtualHost(vhost string) *ConfigBuilder {
	b.config.Connection.VirtualHost = vhost
	return b
}

// WithTuning sets the frame_max, channel_max and heartbeat proposals
func (b *ConfigBuilder) WithTuning(frameMax uint32, channelMax uint16, heartbeat time.Duration) *ConfigBuilder {
	b.config.Connection.FrameMax = frameMax
	b.config.Connection.ChannelMax = channelMax
	b.config.Connection.Heartbeat = heartbeat
	return b
}

// WithHeartbeat sets the heartbeat proposal
func (b *ConfigBuilder) WithHeartbeat(interval time.Duration) *ConfigBuilder {
	b.config.Connection.Heartbeat = interval
	return b
}

// WithLocale sets the locale requested in connection.start-ok
func (b *ConfigBuilder) WithLocale(locale string) *ConfigBuilder {
	b.config.Connection.Locale = locale
	return b
}

// WithConnectionName sets the name reported in client-properties
func (b *ConfigBuilder) WithConnectionName(name string) *ConfigBuilder {
	b.config.Connection.ConnectionName = name
	return b
}

// WithMaxUnconfirmed bounds in-flight publishes in confirm mode
func (b *ConfigBuilder) WithMaxUnconfirmed(max int64) *ConfigBuilder {
	b.config.Connection.MaxUnconfirmed = max
	return b
}

// WithCloseTimeout bounds the close handshake
func (b *ConfigBuilder) WithCloseTimeout(timeout time.Duration) *ConfigBuilder {
	b.config.Connection.CloseTimeout = timeout
	return b
}

// Security Configuration

// WithCredentials sets the username and password
func (b *ConfigBuilder) WithCredentials(username, password string) *ConfigBuilder {
	b.config.Security.Username = username
	b.config.Security.Password = password
	return b
}

// WithMechanisms sets the SASL mechanisms in order of preference
func (b *ConfigBuilder) WithMechanisms(mechanisms ...string) *ConfigBuilder {
	b.config.Security.Mechanisms = mechanisms
	return b
}

// Client Configuration

// WithClientInfo sets client identification information
func (b *ConfigBuilder) WithClientInfo(product, version, platform, copyright, information string) *ConfigBuilder {
	b.config.Client.Product = product
	b.config.Client.Version = version
	b.config.Client.Platform = platform
	b.config.Client.Copyright = copyright
	b.config.Client.Information = information
	return b
}

// WithLogging configures logging settings
func (b *ConfigBuilder) WithLogging(level, logFile string) *ConfigBuilder {
	b.config.Client.LogLevel = level
	b.config.Client.LogFile = logFile
	return b
}

// WithMetrics enables the Prometheus endpoint on port
func (b *ConfigBuilder) WithMetrics(enabled bool, port int) *ConfigBuilder {
	b.config.Client.MetricsEnabled = enabled
	b.config.Client.MetricsPort = port
	return b
}

// Build returns the configured AMQPConfig
func (b *ConfigBuilder) Build() (*AMQPConfig, error) {
	if err := b.config.Validate(); err != nil {
		return nil, err
	}
	return b.config, nil
}

// BuildUnsafe returns the configured AMQPConfig without validation
func (b *ConfigBuilder) BuildUnsafe() *AMQPConfig {
	return b.config
}
