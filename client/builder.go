package client

import (
	"context"
	"io"
	"net"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/maxpert/amqp-go-client/auth"
	"github.com/maxpert/amqp-go-client/config"
	"github.com/maxpert/amqp-go-client/interfaces"
	"github.com/maxpert/amqp-go-client/metrics"
)

// Builder provides a fluent API for opening connections
type Builder struct {
	config  *config.AMQPConfig
	options Options
	err     error
}

// NewBuilder creates a builder with the default configuration
func NewBuilder() *Builder {
	return &Builder{config: config.DefaultConfig()}
}

// NewBuilderWithConfig creates a builder with the given configuration
func NewBuilderWithConfig(cfg *config.AMQPConfig) *Builder {
	return &Builder{config: cfg}
}

// WithConfig sets the client configuration
func (b *Builder) WithConfig(cfg *config.AMQPConfig) *Builder {
	b.config = cfg
	return b
}

// WithURL applies an amqp:// URL on top of the configuration
func (b *Builder) WithURL(url string) *Builder {
	if err := b.config.ApplyURL(url); err != nil && b.err == nil {
		b.err = err
	}
	return b
}

// WithLogger sets the logger
func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.options.Logger = logger
	return b
}

// WithZapLogger creates a logger using zap with the specified level
func (b *Builder) WithZapLogger(level string) *Builder {
	logger, err := createZapLogger(level, "")
	if err != nil {
		// Fallback to a basic logger if configuration fails
		logger, _ = zap.NewProduction()
	}
	b.options.Logger = logger
	return b
}

// WithMetrics sets the metrics collector
func (b *Builder) WithMetrics(collector interfaces.MetricsCollector) *Builder {
	b.options.Metrics = collector
	return b
}

// WithPrometheus records metrics into a collector registered with reg
func (b *Builder) WithPrometheus(namespace string, reg prometheus.Registerer) *Builder {
	b.options.Metrics = metrics.NewCollectorWith(namespace, reg)
	return b
}

// WithAuthRegistry sets the SASL mechanisms available to the handshake
func (b *Builder) WithAuthRegistry(registry *auth.Registry) *Builder {
	b.options.Auth = registry
	return b
}

// WithDialer replaces the TCP dialer
func (b *Builder) WithDialer(dial func(ctx context.Context, network, address string) (net.Conn, error)) *Builder {
	b.options.Dialer = dial
	return b
}

// WithHeartbeatTick sets how often heartbeat deadlines are checked
func (b *Builder) WithHeartbeatTick(tick time.Duration) *Builder {
	b.options.HeartbeatTick = tick
	return b
}

// Options validates the configuration and returns the collaborators. When
// no logger was set, one is built from the client log settings.
func (b *Builder) Options() (*Options, error) {
	if b.err != nil {
		return nil, b.err
	}
	if err := b.config.Validate(); err != nil {
		return nil, err
	}
	opts := b.options
	if opts.Logger == nil {
		logger, err := createZapLogger(b.config.Client.LogLevel, b.config.Client.LogFile)
		if err != nil {
			return nil, err
		}
		opts.Logger = logger
	}
	return &opts, nil
}

// Config returns the configuration being built
func (b *Builder) Config() *config.AMQPConfig {
	return b.config
}

// Dial connects and performs the handshake
func (b *Builder) Dial(ctx context.Context) (*Connection, error) {
	opts, err := b.Options()
	if err != nil {
		return nil, err
	}
	return Dial(ctx, b.config, opts)
}

// Open performs the handshake over an established transport
func (b *Builder) Open(ctx context.Context, transport io.ReadWriteCloser) (*Connection, error) {
	opts, err := b.Options()
	if err != nil {
		return nil, err
	}
	return Open(ctx, transport, b.config, opts)
}

func parseZapLevel(level string) zap.AtomicLevel {
	switch level {
	case "debug":
		return zap.NewAtomicLevelAt(zapcore.DebugLevel)
	case "info":
		return zap.NewAtomicLevelAt(zapcore.InfoLevel)
	case "warn":
		return zap.NewAtomicLevelAt(zapcore.WarnLevel)
	case "error":
		return zap.NewAtomicLevelAt(zapcore.ErrorLevel)
	default:
		return zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}
}

// NewLogger builds the zap logger used by the client and the CLI
func NewLogger(level, logFile string) (*zap.Logger, error) {
	return createZapLogger(level, logFile)
}

func createZapLogger(level, logFile string) (*zap.Logger, error) {
	var zapConfig zap.Config

	if level == "debug" {
		zapConfig = zap.NewDevelopmentConfig()
	} else {
		zapConfig = zap.NewProductionConfig()
		zapConfig.Level = parseZapLevel(level)
	}

	if logFile != "" {
		zapConfig.OutputPaths = []string{logFile}
	}

	return zapConfig.Build()
}
