package client

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	amqperr "github.com/maxpert/amqp-go-client/errors"
	"github.com/maxpert/amqp-go-client/interfaces"
	"github.com/maxpert/amqp-go-client/protocol"
)

const (
	// readFrames is how many maximum-size frames one read may return.
	readFrames = 10

	// unlimitedFrameRead sizes reads when frame_max was negotiated to 0.
	unlimitedFrameRead = 131072

	// DefaultHeartbeatTick is how often the pump checks heartbeat deadlines.
	DefaultHeartbeatTick = time.Second

	// finalFlushTimeout bounds the last write after the machine stops.
	finalFlushTimeout = 5 * time.Second
)

// Pump moves bytes between a transport and a protocol machine. It owns the
// receive buffer; the machine owns the outbound buffer and the pump drains
// it. Frames are handed to the machine strictly in arrival order on the read
// goroutine.
type Pump struct {
	machine   interfaces.ProtocolMachine
	transport io.ReadWriteCloser
	logger    *zap.Logger
	metrics   interfaces.MetricsCollector
	tick      time.Duration

	writeMu  sync.Mutex
	lastSent atomic.Int64 // unix nanos of the last write
	lastRecv atomic.Int64 // unix nanos of the last read
}

// NewPump creates a pump. A nil logger or metrics collector disables them.
func NewPump(machine interfaces.ProtocolMachine, transport io.ReadWriteCloser, logger *zap.Logger, metrics interfaces.MetricsCollector) *Pump {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = NoOpMetricsCollector{}
	}
	return &Pump{
		machine:   machine,
		transport: transport,
		logger:    logger,
		metrics:   metrics,
		tick:      DefaultHeartbeatTick,
	}
}

// SetHeartbeatTick changes how often heartbeat deadlines are checked. It
// must be called before Run.
func (p *Pump) SetHeartbeatTick(tick time.Duration) {
	if tick > 0 {
		p.tick = tick
	}
}

// Run pumps until the machine stops being alive, the transport fails or ctx
// is cancelled. The transport is closed before Run returns. A clean close
// returns nil.
func (p *Pump) Run(ctx context.Context) error {
	now := time.Now().UnixNano()
	p.lastSent.Store(now)
	p.lastRecv.Store(now)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(p.readLoop)
	g.Go(func() error { return p.writeLoop(gctx) })
	g.Go(func() error { return p.closer(gctx) })
	return g.Wait()
}

// readLoop is the receive side: flush, read, parse, handle, advance.
func (p *Pump) readLoop() error {
	var (
		pending []byte
		chunk   []byte
	)
	for p.machine.Alive() {
		if err := p.flush(); err != nil {
			return p.fail(err)
		}

		size := int(p.machine.FrameMax()) * readFrames
		if size == 0 {
			size = unlimitedFrameRead * readFrames
		}
		if cap(chunk) < size {
			chunk = make([]byte, size)
		}

		n, readErr := p.transport.Read(chunk[:size])
		if n > 0 {
			p.lastRecv.Store(time.Now().UnixNano())
			p.metrics.RecordBytesReceived(n)
			pending = append(pending, chunk[:n]...)

			frames, used, parseErr := p.machine.ReceiveFrames(pending)
			for _, frame := range frames {
				if err := p.machine.HandleFrame(frame); err != nil {
					return p.fail(err)
				}
			}
			// Advance by exactly what the parser consumed; a trailing
			// partial frame stays at the front of the buffer.
			pending = append(pending[:0], pending[used:]...)
			if parseErr != nil {
				return p.fail(parseErr)
			}
		}

		if readErr != nil {
			if !p.machine.Alive() {
				return nil
			}
			return p.fail(amqperr.NewTransportError("read", readErr))
		}
	}
	return nil
}

// writeLoop flushes output queued by application goroutines and keeps the
// heartbeat contract in both directions.
func (p *Pump) writeLoop(ctx context.Context) error {
	ticker := time.NewTicker(p.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-p.machine.Done():
			return nil
		case <-p.machine.Outbound():
			if err := p.flush(); err != nil {
				return p.fail(err)
			}
		case now := <-ticker.C:
			if err := p.heartbeat(now); err != nil {
				return p.fail(err)
			}
		}
	}
}

// closer tears the transport down once the machine is done or ctx ends. The
// final flush carries a close or close-ok queued while terminating.
func (p *Pump) closer(ctx context.Context) error {
	select {
	case <-ctx.Done():
		if p.machine.Alive() {
			p.machine.Fail(ctx.Err())
		}
	case <-p.machine.Done():
	}

	if d, ok := p.transport.(interface{ SetWriteDeadline(time.Time) error }); ok {
		_ = d.SetWriteDeadline(time.Now().Add(finalFlushTimeout))
	}
	if err := p.flush(); err != nil {
		p.logger.Debug("Final flush failed", zap.Error(err))
	}
	if err := p.transport.Close(); err != nil {
		p.logger.Debug("Transport close failed", zap.Error(err))
	}
	return nil
}

// flush writes everything the machine has queued in one call.
func (p *Pump) flush() error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	data := p.machine.DataToSend()
	if len(data) == 0 {
		return nil
	}
	if _, err := p.transport.Write(data); err != nil {
		return amqperr.NewTransportError("write", err)
	}
	p.lastSent.Store(time.Now().UnixNano())
	p.metrics.RecordBytesSent(len(data))
	return nil
}

// heartbeat sends a heartbeat frame after a quiet interval and fails the
// connection when the server has been silent for two intervals.
func (p *Pump) heartbeat(now time.Time) error {
	interval := p.machine.Heartbeat()
	if interval <= 0 {
		return nil
	}

	silent := now.Sub(time.Unix(0, p.lastRecv.Load()))
	if silent > 2*interval {
		return amqperr.NewConnectionForced("", fmt.Sprintf("missed heartbeats from server, silent for %v", silent.Round(time.Millisecond)))
	}

	if now.Sub(time.Unix(0, p.lastSent.Load())) < interval {
		return nil
	}

	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	if err := protocol.WriteFrame(p.transport, protocol.NewHeartbeatFrame()); err != nil {
		return amqperr.NewTransportError("write", err)
	}
	p.lastSent.Store(now.UnixNano())
	p.metrics.RecordFrameSent(protocol.FrameHeartbeat)
	p.metrics.RecordBytesSent(8)
	return nil
}

func (p *Pump) fail(err error) error {
	p.machine.Fail(err)
	return err
}
