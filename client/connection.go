package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/maxpert/amqp-go-client/auth"
	"github.com/maxpert/amqp-go-client/config"
	amqperr "github.com/maxpert/amqp-go-client/errors"
	"github.com/maxpert/amqp-go-client/interfaces"
	"github.com/maxpert/amqp-go-client/protocol"
)

var (
	// ErrClosed is returned by operations on a connection that has been
	// closed cleanly.
	ErrClosed = errors.New("amqp: connection closed")

	// ErrNoFreeChannels is returned when every channel id up to channel_max
	// is in use.
	ErrNoFreeChannels = errors.New("amqp: no free channel ids")
)

// Server capabilities checked before optional methods are used.
const (
	CapabilityPublisherConfirms        = "publisher_confirms"
	CapabilityExchangeExchangeBindings = "exchange_exchange_bindings"
	CapabilityBasicNack                = "basic.nack"
	CapabilityConsumerCancelNotify     = "consumer_cancel_notify"
	CapabilityConnectionBlocked        = "connection.blocked"
)

// Blocking is a connection.blocked or connection.unblocked notification.
type Blocking struct {
	Active bool
	Reason string
}

// ConnectionProperties is a snapshot of what was negotiated during the
// handshake.
type ConnectionProperties struct {
	ID               string
	ServerProperties protocol.Table
	Mechanism        string
	Locale           string
	FrameMax         uint32
	ChannelMax       uint16
	Heartbeat        time.Duration
	VirtualHost      string
}

// Options carries the collaborators of a connection. The zero value is
// usable: no logging, no metrics, the default SASL registry and a TCP dialer.
type Options struct {
	Logger        *zap.Logger
	Metrics       interfaces.MetricsCollector
	Auth          *auth.Registry
	Dialer        func(ctx context.Context, network, address string) (net.Conn, error)
	HeartbeatTick time.Duration
}

func (o *Options) withDefaults(cfg *config.AMQPConfig) *Options {
	out := Options{}
	if o != nil {
		out = *o
	}
	if out.Logger == nil {
		out.Logger = zap.NewNop()
	}
	if out.Metrics == nil {
		out.Metrics = NoOpMetricsCollector{}
	}
	if out.Auth == nil {
		out.Auth = auth.DefaultRegistry()
	}
	if out.Dialer == nil {
		keepAlive := time.Duration(-1)
		if cfg.Network.TCPKeepAlive {
			keepAlive = cfg.Network.TCPKeepAliveInterval
		}
		dialer := &net.Dialer{KeepAlive: keepAlive}
		out.Dialer = dialer.DialContext
	}
	if out.HeartbeatTick <= 0 {
		out.HeartbeatTick = DefaultHeartbeatTick
	}
	return &out
}

// Connection is the client side of one AMQP connection. It implements
// interfaces.ProtocolMachine: a Pump feeds it frames and drains its output,
// while application goroutines call its methods and those of its channels.
type Connection struct {
	id      string
	cfg     *config.AMQPConfig
	logger  *zap.Logger
	metrics interfaces.MetricsCollector
	auth    *auth.Registry

	outMu  sync.Mutex
	out    bytes.Buffer
	notify chan struct{}

	mu          sync.RWMutex
	alive       bool
	err         error
	frameMax    uint32
	channelMax  uint16
	heartbeat   time.Duration
	serverProps protocol.Table
	mechanism   auth.Mechanism
	channels    map[uint16]*Channel
	nextChannel uint16
	blocked     bool
	blockings   []chan Blocking

	closing   atomic.Bool
	consumers atomic.Int64

	opened     chan struct{}
	openedOnce sync.Once
	isOpen     atomic.Bool
	done       chan struct{}
	doneOnce   sync.Once
	pumpDone   chan struct{}
}

func newConnection(cfg *config.AMQPConfig, opts *Options) *Connection {
	id := uuid.NewString()
	return &Connection{
		id:          id,
		cfg:         cfg,
		logger:      opts.Logger.With(zap.String("connection_id", id)),
		metrics:     opts.Metrics,
		auth:        opts.Auth,
		notify:      make(chan struct{}, 1),
		alive:       true,
		frameMax:    protocol.FrameMinSize,
		channels:    make(map[uint16]*Channel),
		nextChannel: 1,
		opened:      make(chan struct{}),
		done:        make(chan struct{}),
		pumpDone:    make(chan struct{}),
	}
}

// Dial connects to the broker named by cfg and performs the handshake.
func Dial(ctx context.Context, cfg *config.AMQPConfig, opts *Options) (*Connection, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opts = opts.withDefaults(cfg)

	dialCtx, cancel := context.WithTimeout(ctx, cfg.Network.ConnectionTimeout)
	defer cancel()
	conn, err := opts.Dialer(dialCtx, "tcp", cfg.Addr())
	if err != nil {
		return nil, amqperr.NewTransportError("dial", err)
	}
	return Open(ctx, conn, cfg, opts)
}

// Open performs the handshake over an established transport and starts the
// pump. On failure the transport is closed.
func Open(ctx context.Context, transport io.ReadWriteCloser, cfg *config.AMQPConfig, opts *Options) (*Connection, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	opts = opts.withDefaults(cfg)
	c := newConnection(cfg, opts)

	c.queue(protocol.ProtocolHeader)

	pump := NewPump(c, transport, c.logger, c.metrics)
	pump.SetHeartbeatTick(opts.HeartbeatTick)
	go func() {
		defer close(c.pumpDone)
		if err := pump.Run(context.Background()); err != nil {
			c.logger.Debug("Pump stopped", zap.Error(err))
		}
	}()

	hsCtx, cancel := context.WithTimeout(ctx, cfg.Network.ConnectionTimeout)
	defer cancel()

	select {
	case <-c.opened:
		c.metrics.RecordConnectionOpened()
		c.logger.Info("Connection opened",
			zap.String("vhost", cfg.Connection.VirtualHost),
			zap.Uint32("frame_max", c.FrameMax()),
			zap.Duration("heartbeat", c.Heartbeat()))
		return c, nil
	case <-c.done:
		<-c.pumpDone
		return nil, c.closedErr()
	case <-hsCtx.Done():
		c.Fail(fmt.Errorf("handshake: %w", hsCtx.Err()))
		<-c.pumpDone
		return nil, c.closedErr()
	}
}

// ID returns the client-side identifier used in logs.
func (c *Connection) ID() string {
	return c.id
}

// ProtocolMachine

// DataToSend drains the outbound buffer.
func (c *Connection) DataToSend() []byte {
	c.outMu.Lock()
	defer c.outMu.Unlock()
	if c.out.Len() == 0 {
		return nil
	}
	data := make([]byte, c.out.Len())
	copy(data, c.out.Bytes())
	c.out.Reset()
	return data
}

// ReceiveFrames parses complete frames under the current frame_max.
func (c *Connection) ReceiveFrames(data []byte) ([]*protocol.Frame, int, error) {
	frames, used, err := protocol.ParseFrames(data, c.FrameMax())
	if err != nil {
		var mismatch *amqperr.ConnectionError
		if errors.As(err, &mismatch) {
			mismatch.ConnectionID = c.id
		}
	}
	return frames, used, err
}

// HandleFrame dispatches one frame to the connection or to its channel.
func (c *Connection) HandleFrame(frame *protocol.Frame) error {
	c.metrics.RecordFrameReceived(frame.Type)

	if frame.Type == protocol.FrameHeartbeat {
		if frame.Channel != 0 {
			return amqperr.NewFrameError(fmt.Sprintf("heartbeat on channel %d", frame.Channel), frame.Type)
		}
		return nil
	}

	if frame.Channel == 0 {
		if frame.Type != protocol.FrameMethod {
			return amqperr.NewUnexpectedFrame(protocol.FrameMethod, frame.Type)
		}
		method, err := protocol.ReadMethod(frame.Payload)
		if err != nil {
			return err
		}
		return c.handleMethod(method)
	}

	// After connection.close only close and close-ok matter.
	if c.closing.Load() {
		return nil
	}

	c.mu.RLock()
	ch := c.channels[frame.Channel]
	c.mu.RUnlock()
	if ch == nil {
		return amqperr.NewChannelNotFound(c.id, frame.Channel)
	}
	return ch.handleFrame(frame)
}

// FrameMax returns the negotiated frame_max, 0 meaning unlimited.
func (c *Connection) FrameMax() uint32 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.frameMax
}

// Heartbeat returns the negotiated heartbeat interval.
func (c *Connection) Heartbeat() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.heartbeat
}

// Alive reports whether the connection is still running.
func (c *Connection) Alive() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.alive
}

// Outbound fires when output has been queued.
func (c *Connection) Outbound() <-chan struct{} {
	return c.notify
}

// Done is closed when the connection has terminated.
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

// Fail terminates the connection. Errors carrying an AMQP reply code are
// reported to the server in a best-effort connection.close.
func (c *Connection) Fail(err error) {
	if !c.Alive() {
		return
	}
	if err == nil {
		err = ErrClosed
	}

	c.mu.RLock()
	started := c.mechanism != nil
	c.mu.RUnlock()

	var amqpErr *amqperr.AMQPError
	if started && errors.As(err, &amqpErr) && !amqperr.IsTransportError(err) && c.closing.CompareAndSwap(false, true) {
		closeMethod := &protocol.ConnectionCloseMethod{
			ReplyCode: uint16(amqpErr.ReplyCode()),
			ReplyText: amqpErr.ReplyText(),
		}
		var protoErr *amqperr.ProtocolError
		if errors.As(err, &protoErr) {
			closeMethod.ClassId = protoErr.ClassID
			closeMethod.MethodId = protoErr.MethodID
		}
		_ = c.sendMethod(0, closeMethod)
	}

	c.logger.Error("Connection failed", zap.Error(err))
	c.metrics.RecordError(errorKind(err))
	c.terminate(err)
}

// Err returns the error that terminated the connection, or nil while it is
// open or after a clean close.
func (c *Connection) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.err
}

func (c *Connection) closedErr() error {
	if err := c.Err(); err != nil {
		return err
	}
	return ErrClosed
}

// Properties returns what was negotiated with the server.
func (c *Connection) Properties() ConnectionProperties {
	c.mu.RLock()
	defer c.mu.RUnlock()
	props := ConnectionProperties{
		ID:               c.id,
		ServerProperties: c.serverProps,
		Locale:           c.cfg.Connection.Locale,
		FrameMax:         c.frameMax,
		ChannelMax:       c.channelMax,
		Heartbeat:        c.heartbeat,
		VirtualHost:      c.cfg.Connection.VirtualHost,
	}
	if c.mechanism != nil {
		props.Mechanism = c.mechanism.Name()
	}
	return props
}

// Capability reports whether the server announced a capability in
// connection.start.
func (c *Connection) Capability(name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	caps, _ := c.serverProps["capabilities"].(protocol.Table)
	supported, _ := caps[name].(bool)
	return supported
}

// Blocked reports whether the server has blocked publishing.
func (c *Connection) Blocked() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.blocked
}

// NotifyBlocked registers a listener for connection.blocked and
// connection.unblocked. Notifications are dropped when the listener is not
// ready, so give it a buffer. The channel is closed with the connection.
func (c *Connection) NotifyBlocked(listener chan Blocking) chan Blocking {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.alive {
		close(listener)
		return listener
	}
	c.blockings = append(c.blockings, listener)
	return listener
}

// Output

func (c *Connection) queue(data []byte) {
	c.outMu.Lock()
	c.out.Write(data)
	c.outMu.Unlock()
	c.signal()
}

func (c *Connection) signal() {
	select {
	case c.notify <- struct{}{}:
	default:
	}
}

// send queues frames contiguously so no other frame can interleave.
func (c *Connection) send(frames ...*protocol.Frame) error {
	if !c.Alive() {
		return c.closedErr()
	}
	c.outMu.Lock()
	for _, frame := range frames {
		protocol.AppendFrame(&c.out, frame)
		c.metrics.RecordFrameSent(frame.Type)
	}
	c.outMu.Unlock()
	c.signal()
	return nil
}

func (c *Connection) sendMethod(channelID uint16, method protocol.Method) error {
	frame, err := protocol.NewMethodFrame(channelID, method)
	if err != nil {
		return err
	}
	c.logger.Debug("Sending method",
		zap.Uint16("channel_id", channelID),
		zap.String("method", protocol.MethodName(method)))
	return c.send(frame)
}

// Connection class

func (c *Connection) handleMethod(method protocol.Method) error {
	if c.closing.Load() {
		switch method.(type) {
		case *protocol.ConnectionCloseMethod, *protocol.ConnectionCloseOKMethod:
		default:
			return nil
		}
	}

	switch m := method.(type) {
	case *protocol.ConnectionStartMethod:
		return c.onStart(m)
	case *protocol.ConnectionSecureMethod:
		return c.onSecure(m)
	case *protocol.ConnectionTuneMethod:
		return c.onTune(m)
	case *protocol.ConnectionOpenOKMethod:
		c.openedOnce.Do(func() {
			c.isOpen.Store(true)
			close(c.opened)
		})
		return nil
	case *protocol.ConnectionCloseMethod:
		err := amqperr.NewServerConnectionClose(c.id, int(m.ReplyCode), m.ReplyText, m.ClassId, m.MethodId)
		c.logger.Warn("Connection closed by server",
			zap.Uint16("reply_code", m.ReplyCode),
			zap.String("reply_text", m.ReplyText))
		_ = c.sendMethod(0, &protocol.ConnectionCloseOKMethod{})
		c.terminate(err)
		return nil
	case *protocol.ConnectionCloseOKMethod:
		if !c.closing.Load() {
			return amqperr.NewProtocolError(amqperr.UnexpectedFrame,
				"connection.close-ok without connection.close", protocol.FrameMethod, m.ClassID(), m.MethodID())
		}
		c.terminate(nil)
		return nil
	case *protocol.ConnectionBlockedMethod:
		c.setBlocked(Blocking{Active: true, Reason: m.Reason})
		return nil
	case *protocol.ConnectionUnblockedMethod:
		c.setBlocked(Blocking{Active: false})
		return nil
	default:
		return amqperr.NewCommandInvalid(
			fmt.Sprintf("unexpected %s on channel 0", protocol.MethodName(method)), method.ClassID(), method.MethodID())
	}
}

func (c *Connection) onStart(m *protocol.ConnectionStartMethod) error {
	if m.VersionMajor != 0 || m.VersionMinor != 9 {
		return amqperr.NewVersionMismatch(c.id, m.VersionMajor, m.VersionMinor, 0)
	}

	sec := c.cfg.Security
	mechanism, err := c.auth.Select(sec.Mechanisms, m.MechanismList(), sec.Username, sec.Password)
	if err != nil {
		return err
	}

	locale := c.cfg.Connection.Locale
	if offered := m.LocaleList(); !slices.Contains(offered, locale) {
		return amqperr.NewLocaleUnavailable(locale, offered)
	}

	response, err := mechanism.Response()
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.serverProps = m.ServerProperties
	c.mechanism = mechanism
	c.mu.Unlock()

	c.logger.Debug("Server start received",
		zap.String("mechanism", mechanism.Name()),
		zap.Any("server_properties", m.ServerProperties))

	return c.sendMethod(0, &protocol.ConnectionStartOKMethod{
		ClientProperties: c.clientProperties(),
		Mechanism:        mechanism.Name(),
		Response:         response,
		Locale:           locale,
	})
}

func (c *Connection) onSecure(m *protocol.ConnectionSecureMethod) error {
	c.mu.RLock()
	mechanism := c.mechanism
	c.mu.RUnlock()
	if mechanism == nil {
		return amqperr.NewProtocolError(amqperr.UnexpectedFrame,
			"connection.secure before connection.start", protocol.FrameMethod, m.ClassID(), m.MethodID())
	}
	response, err := mechanism.Challenge(m.Challenge)
	if err != nil {
		return err
	}
	return c.sendMethod(0, &protocol.ConnectionSecureOKMethod{Response: response})
}

func (c *Connection) onTune(m *protocol.ConnectionTuneMethod) error {
	want := c.cfg.Connection
	frameMax := negotiate(want.FrameMax, m.FrameMax)
	channelMax := negotiate(want.ChannelMax, m.ChannelMax)
	heartbeat := negotiate(uint16(want.Heartbeat/time.Second), m.Heartbeat)

	c.mu.Lock()
	c.frameMax = frameMax
	c.channelMax = channelMax
	c.heartbeat = time.Duration(heartbeat) * time.Second
	c.mu.Unlock()

	c.logger.Debug("Tuned connection",
		zap.Uint32("frame_max", frameMax),
		zap.Uint16("channel_max", channelMax),
		zap.Uint16("heartbeat", heartbeat))

	if err := c.sendMethod(0, &protocol.ConnectionTuneOKMethod{
		ChannelMax: channelMax,
		FrameMax:   frameMax,
		Heartbeat:  heartbeat,
	}); err != nil {
		return err
	}
	return c.sendMethod(0, &protocol.ConnectionOpenMethod{VirtualHost: want.VirtualHost})
}

// negotiate picks the smaller proposal, where 0 means "no limit" and so
// loses to any concrete value.
func negotiate[T uint16 | uint32](client, server T) T {
	if client == 0 || server == 0 {
		return max(client, server)
	}
	return min(client, server)
}

func (c *Connection) clientProperties() protocol.Table {
	info := c.cfg.Client
	props := protocol.Table{
		"product":     info.Product,
		"version":     info.Version,
		"platform":    info.Platform,
		"copyright":   info.Copyright,
		"information": info.Information,
		"capabilities": protocol.Table{
			CapabilityPublisherConfirms:        true,
			CapabilityExchangeExchangeBindings: true,
			CapabilityBasicNack:                true,
			CapabilityConsumerCancelNotify:     true,
			CapabilityConnectionBlocked:        true,
			"authentication_failure_close":     true,
		},
	}
	if name := c.cfg.Connection.ConnectionName; name != "" {
		props["connection_name"] = name
	}
	return props
}

func (c *Connection) setBlocked(b Blocking) {
	c.mu.Lock()
	c.blocked = b.Active
	listeners := slices.Clone(c.blockings)
	c.mu.Unlock()

	if b.Active {
		c.logger.Warn("Connection blocked by server", zap.String("reason", b.Reason))
	} else {
		c.logger.Info("Connection unblocked by server")
	}
	for _, l := range listeners {
		select {
		case l <- b:
		default:
			c.logger.Warn("Dropped blocking notification, listener not ready")
		}
	}
}

// Close performs the connection.close handshake with code 0 and empty text.
func (c *Connection) Close(ctx context.Context) error {
	return c.CloseWith(ctx, 0, "")
}

// CloseWith sends connection.close with the given reply and waits for
// close-ok and for the transport to shut down. The wait is bounded by ctx
// and by the configured close timeout.
func (c *Connection) CloseWith(ctx context.Context, code int, text string) error {
	if !c.Alive() {
		<-c.pumpDone
		return c.Err()
	}

	if c.cfg.Connection.CloseTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Connection.CloseTimeout)
		defer cancel()
	}

	c.logger.Debug("Closing connection", zap.Int("reply_code", code), zap.String("reply_text", text))
	if c.closing.CompareAndSwap(false, true) {
		if len(text) > 255 {
			text = text[:255]
		}
		if err := c.sendMethod(0, &protocol.ConnectionCloseMethod{
			ReplyCode: uint16(code),
			ReplyText: text,
		}); err != nil {
			<-c.pumpDone
			return c.Err()
		}
	}

	select {
	case <-c.done:
	case <-ctx.Done():
		c.terminate(fmt.Errorf("waiting for connection.close-ok: %w", ctx.Err()))
	}
	<-c.pumpDone
	return c.Err()
}

// terminate runs once: it records the cause, shuts every channel down and
// releases the pump.
func (c *Connection) terminate(err error) {
	c.doneOnce.Do(func() {
		c.mu.Lock()
		c.alive = false
		c.err = err
		channels := make([]*Channel, 0, len(c.channels))
		for _, ch := range c.channels {
			channels = append(channels, ch)
		}
		c.channels = make(map[uint16]*Channel)
		listeners := c.blockings
		c.blockings = nil
		c.mu.Unlock()

		cause := err
		if cause == nil {
			cause = ErrClosed
		}
		for _, ch := range channels {
			ch.shutdown(cause)
		}
		for _, l := range listeners {
			close(l)
		}

		close(c.done)
		if c.isOpen.Load() {
			c.metrics.RecordConnectionClosed()
		}
		if err != nil {
			c.logger.Info("Connection terminated", zap.Error(err))
		} else {
			c.logger.Info("Connection closed")
		}
	})
}

// Channels

// Channel opens a new channel.
func (c *Connection) Channel(ctx context.Context) (*Channel, error) {
	c.mu.Lock()
	if !c.alive || c.closing.Load() {
		c.mu.Unlock()
		return nil, c.closedErr()
	}
	id, ok := c.allocateLocked()
	if !ok {
		c.mu.Unlock()
		return nil, ErrNoFreeChannels
	}
	ch := newChannel(c, id)
	c.channels[id] = ch
	c.mu.Unlock()

	if err := ch.open(ctx); err != nil {
		ch.shutdown(err)
		c.release(id, ch)
		return nil, err
	}
	return ch, nil
}

// allocateLocked finds a free channel id, starting after the last one
// handed out.
func (c *Connection) allocateLocked() (uint16, bool) {
	limit := uint32(c.channelMax)
	if limit == 0 {
		limit = 65535
	}
	start := uint32(c.nextChannel)
	if start == 0 || start > limit {
		start = 1
	}
	id := start
	for range limit {
		if _, used := c.channels[uint16(id)]; !used {
			c.nextChannel = uint16(id%limit) + 1
			return uint16(id), true
		}
		id = id%limit + 1
	}
	return 0, false
}

func (c *Connection) release(id uint16, ch *Channel) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channels[id] == ch {
		delete(c.channels, id)
	}
}

func (c *Connection) adjustConsumers(delta int) {
	c.metrics.SetConsumers(int(c.consumers.Add(int64(delta))))
}

func errorKind(err error) string {
	switch {
	case amqperr.IsTransportError(err):
		return "transport"
	case amqperr.IsProtocolError(err):
		return "protocol"
	case amqperr.IsConnectionError(err):
		return "connection"
	case amqperr.IsChannelError(err):
		return "channel"
	default:
		return "other"
	}
}
