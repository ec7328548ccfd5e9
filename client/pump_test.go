package client

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	amqperr "github.com/maxpert/amqp-go-client/errors"
	"github.com/maxpert/amqp-go-client/protocol"
)

// scriptedTransport hands out queued chunks to Read and records writes.
type scriptedTransport struct {
	reads     chan []byte
	pending   []byte
	closed    chan struct{}
	closeOnce sync.Once

	mu      sync.Mutex
	written bytes.Buffer
}

func newScriptedTransport() *scriptedTransport {
	return &scriptedTransport{
		reads:  make(chan []byte, 64),
		closed: make(chan struct{}),
	}
}

func (s *scriptedTransport) Read(p []byte) (int, error) {
	if len(s.pending) == 0 {
		select {
		case chunk := <-s.reads:
			s.pending = chunk
		case <-s.closed:
			return 0, io.EOF
		}
	}
	n := copy(p, s.pending)
	s.pending = s.pending[n:]
	return n, nil
}

func (s *scriptedTransport) Write(p []byte) (int, error) {
	select {
	case <-s.closed:
		return 0, io.ErrClosedPipe
	default:
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.written.Write(p)
}

func (s *scriptedTransport) Close() error {
	s.closeOnce.Do(func() { close(s.closed) })
	return nil
}

func (s *scriptedTransport) Written() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return bytes.Clone(s.written.Bytes())
}

// recordingMachine collects frames and stops after a set number of them.
type recordingMachine struct {
	mu        sync.Mutex
	frames    []*protocol.Frame
	out       []byte
	failed    error
	alive     bool
	stopAfter int
	heartbeat time.Duration

	notify chan struct{}
	done   chan struct{}
	once   sync.Once
}

func newRecordingMachine(stopAfter int) *recordingMachine {
	return &recordingMachine{
		alive:     true,
		stopAfter: stopAfter,
		notify:    make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
}

func (m *recordingMachine) queue(data []byte) {
	m.mu.Lock()
	m.out = append(m.out, data...)
	m.mu.Unlock()
	select {
	case m.notify <- struct{}{}:
	default:
	}
}

func (m *recordingMachine) DataToSend() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.out
	m.out = nil
	return out
}

func (m *recordingMachine) ReceiveFrames(data []byte) ([]*protocol.Frame, int, error) {
	return protocol.ParseFrames(data, protocol.FrameMinSize)
}

func (m *recordingMachine) HandleFrame(frame *protocol.Frame) error {
	m.mu.Lock()
	m.frames = append(m.frames, frame)
	n := len(m.frames)
	m.mu.Unlock()
	if n == m.stopAfter {
		m.stop()
	}
	return nil
}

func (m *recordingMachine) FrameMax() uint32          { return protocol.FrameMinSize }
func (m *recordingMachine) Heartbeat() time.Duration  { return m.heartbeat }
func (m *recordingMachine) Outbound() <-chan struct{} { return m.notify }
func (m *recordingMachine) Done() <-chan struct{}     { return m.done }

func (m *recordingMachine) Alive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.alive
}

func (m *recordingMachine) Fail(err error) {
	m.mu.Lock()
	if m.failed == nil {
		m.failed = err
	}
	m.mu.Unlock()
	m.stop()
}

func (m *recordingMachine) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failed
}

func (m *recordingMachine) stop() {
	m.once.Do(func() {
		m.mu.Lock()
		m.alive = false
		m.mu.Unlock()
		close(m.done)
	})
}

func encodeFrames(t *testing.T, frames ...*protocol.Frame) []byte {
	t.Helper()
	var buf bytes.Buffer
	for _, f := range frames {
		require.NoError(t, protocol.WriteFrame(&buf, f))
	}
	return buf.Bytes()
}

func runPump(t *testing.T, p *Pump, ctx context.Context) <-chan error {
	t.Helper()
	result := make(chan error, 1)
	go func() { result <- p.Run(ctx) }()
	return result
}

func waitPump(t *testing.T, result <-chan error) error {
	t.Helper()
	select {
	case err := <-result:
		return err
	case <-time.After(testTimeout):
		t.Fatal("pump did not stop")
		return nil
	}
}

func TestPumpReassemblesSplitFrames(t *testing.T) {
	method, err := protocol.NewMethodFrame(1, &protocol.BasicDeliverMethod{ConsumerTag: "c", DeliveryTag: 1})
	require.NoError(t, err)
	header, err := protocol.NewContent([]byte("hello"), nil).EncodeHeader()
	require.NoError(t, err)
	frames := []*protocol.Frame{
		method,
		protocol.NewHeaderFrame(1, header),
		protocol.NewBodyFrame(1, []byte("hello")),
		protocol.NewHeartbeatFrame(),
	}
	wire := encodeFrames(t, frames...)

	tests := []struct {
		name  string
		chunk int
	}{
		{"byte at a time", 1},
		{"odd chunks", 7},
		{"frame header boundary", 8},
		{"all at once", len(wire)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := newScriptedTransport()
			transport.reads = make(chan []byte, len(wire))
			for off := 0; off < len(wire); off += tt.chunk {
				transport.reads <- wire[off:min(off+tt.chunk, len(wire))]
			}
			machine := newRecordingMachine(len(frames))
			machine.queue(protocol.ProtocolHeader)

			err := waitPump(t, runPump(t, NewPump(machine, transport, nil, nil), context.Background()))
			require.NoError(t, err)
			require.NoError(t, machine.Err())

			require.Len(t, machine.frames, len(frames))
			for i, f := range frames {
				assert.Equal(t, f.Type, machine.frames[i].Type)
				assert.Equal(t, f.Channel, machine.frames[i].Channel)
				assert.True(t, bytes.Equal(f.Payload, machine.frames[i].Payload))
			}
			assert.Equal(t, protocol.ProtocolHeader, transport.Written())
		})
	}
}

func TestPumpParseErrorFailsMachine(t *testing.T) {
	wire := encodeFrames(t, protocol.NewBodyFrame(1, []byte("abc")))
	wire[len(wire)-1] = 0x00

	transport := newScriptedTransport()
	transport.reads <- wire
	machine := newRecordingMachine(10)

	err := waitPump(t, runPump(t, NewPump(machine, transport, nil, nil), context.Background()))
	require.Error(t, err)
	assert.True(t, amqperr.IsProtocolError(machine.Err()))
	assert.Equal(t, amqperr.FrameError, amqperr.GetErrorCode(machine.Err()))
}

func TestPumpTransportError(t *testing.T) {
	transport := newScriptedTransport()
	machine := newRecordingMachine(10)
	result := runPump(t, NewPump(machine, transport, nil, nil), context.Background())

	require.NoError(t, transport.Close())
	err := waitPump(t, result)
	assert.True(t, amqperr.IsTransportError(err))
	assert.ErrorIs(t, machine.Err(), io.EOF)
}

func TestPumpContextCancel(t *testing.T) {
	transport := newScriptedTransport()
	machine := newRecordingMachine(10)
	ctx, cancel := context.WithCancel(context.Background())
	result := runPump(t, NewPump(machine, transport, nil, nil), ctx)

	cancel()
	require.NoError(t, waitPump(t, result))
	assert.ErrorIs(t, machine.Err(), context.Canceled)
	select {
	case <-transport.closed:
	default:
		t.Fatal("transport left open")
	}
}

func TestPumpFlushesOutbound(t *testing.T) {
	transport := newScriptedTransport()
	machine := newRecordingMachine(10)
	result := runPump(t, NewPump(machine, transport, nil, nil), context.Background())

	frame := encodeFrames(t, protocol.NewBodyFrame(3, []byte("queued")))
	machine.queue(frame)
	require.Eventually(t, func() bool { return bytes.Equal(frame, transport.Written()) },
		testTimeout, time.Millisecond)

	machine.stop()
	require.NoError(t, transport.Close())
	require.NoError(t, waitPump(t, result))
}

func TestPumpHeartbeats(t *testing.T) {
	transport := newScriptedTransport()
	machine := newRecordingMachine(10)
	machine.heartbeat = 40 * time.Millisecond

	pump := NewPump(machine, transport, nil, nil)
	pump.SetHeartbeatTick(5 * time.Millisecond)
	err := waitPump(t, runPump(t, pump, context.Background()))

	// The silent server is declared dead after two intervals...
	require.Error(t, err)
	var connErr *amqperr.ConnectionError
	require.True(t, errors.As(machine.Err(), &connErr))
	assert.Equal(t, amqperr.ConnectionForced, connErr.Code)

	// ...and our side sent a heartbeat after one quiet interval.
	heartbeat := encodeFrames(t, protocol.NewHeartbeatFrame())
	assert.True(t, bytes.Contains(transport.Written(), heartbeat))
}

func TestPumpTrafficResetsHeartbeatDeadline(t *testing.T) {
	transport := newScriptedTransport()
	machine := newRecordingMachine(6)
	machine.heartbeat = 40 * time.Millisecond

	pump := NewPump(machine, transport, nil, nil)
	pump.SetHeartbeatTick(5 * time.Millisecond)
	result := runPump(t, pump, context.Background())

	// One server heartbeat every half interval keeps the connection up well
	// past the two-interval deadline.
	heartbeat := encodeFrames(t, protocol.NewHeartbeatFrame())
	for range 6 {
		time.Sleep(20 * time.Millisecond)
		transport.reads <- heartbeat
	}

	require.NoError(t, waitPump(t, result))
	assert.NoError(t, machine.Err())
}
