package client

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/maxpert/amqp-go-client/config"
	"github.com/maxpert/amqp-go-client/protocol"
)

const testTimeout = 5 * time.Second

// fakeBroker is the server end of a net.Pipe. A reader goroutine decodes
// everything the client writes so tests can assert on it in order.
type fakeBroker struct {
	t      *testing.T
	conn   net.Conn
	header chan []byte
	frames chan *protocol.Frame
}

func newFakeBroker(t *testing.T, conn net.Conn) *fakeBroker {
	b := &fakeBroker{
		t:      t,
		conn:   conn,
		header: make(chan []byte, 1),
		frames: make(chan *protocol.Frame, 1024),
	}
	go b.read()
	t.Cleanup(func() { _ = conn.Close() })
	return b
}

func (b *fakeBroker) read() {
	defer close(b.frames)
	header := make([]byte, len(protocol.ProtocolHeader))
	if _, err := io.ReadFull(b.conn, header); err != nil {
		return
	}
	b.header <- header
	for {
		frame, err := protocol.ReadFrame(b.conn)
		if err != nil {
			return
		}
		b.frames <- frame
	}
}

func (b *fakeBroker) expectProtocolHeader() {
	b.t.Helper()
	select {
	case header := <-b.header:
		require.Equal(b.t, protocol.ProtocolHeader, header)
	case <-time.After(testTimeout):
		b.t.Fatal("timed out waiting for the protocol header")
	}
}

// nextFrame returns the next frame the client wrote, heartbeats included.
func (b *fakeBroker) nextFrame() *protocol.Frame {
	b.t.Helper()
	select {
	case frame, ok := <-b.frames:
		require.True(b.t, ok, "client closed the transport")
		return frame
	case <-time.After(testTimeout):
		b.t.Fatal("timed out waiting for a frame")
		return nil
	}
}

// expect returns the next method, skipping heartbeats, and checks that it
// has the same class and method id as want.
func (b *fakeBroker) expect(want protocol.Method) (uint16, protocol.Method) {
	b.t.Helper()
	for {
		frame := b.nextFrame()
		if frame.Type == protocol.FrameHeartbeat {
			continue
		}
		require.Equal(b.t, byte(protocol.FrameMethod), frame.Type, "expected %s", protocol.MethodName(want))
		method, err := protocol.ReadMethod(frame.Payload)
		require.NoError(b.t, err)
		require.IsType(b.t, want, method, "expected %s, got %s", protocol.MethodName(want), protocol.MethodName(method))
		return frame.Channel, method
	}
}

// expectContent reads the header and body frames following a publish.
func (b *fakeBroker) expectContent() (*protocol.Content, []*protocol.Frame) {
	b.t.Helper()
	header := b.nextFrame()
	require.Equal(b.t, byte(protocol.FrameHeader), header.Type)
	content, err := protocol.DecodeContentHeader(header.Payload)
	require.NoError(b.t, err)

	var bodies []*protocol.Frame
	for !content.Complete() {
		body := b.nextFrame()
		require.Equal(b.t, byte(protocol.FrameBody), body.Type)
		require.NoError(b.t, content.Append(body.Payload))
		bodies = append(bodies, body)
	}
	return content, bodies
}

// expectClosed waits for the client to close its end of the pipe.
func (b *fakeBroker) expectClosed() {
	b.t.Helper()
	deadline := time.After(testTimeout)
	for {
		select {
		case _, ok := <-b.frames:
			if !ok {
				return
			}
		case <-deadline:
			b.t.Fatal("client did not close the transport")
		}
	}
}

func (b *fakeBroker) write(frame *protocol.Frame) {
	b.t.Helper()
	require.NoError(b.t, protocol.WriteFrame(b.conn, frame))
}

func (b *fakeBroker) send(channel uint16, method protocol.Method) {
	b.t.Helper()
	frame, err := protocol.NewMethodFrame(channel, method)
	require.NoError(b.t, err)
	b.write(frame)
}

// sendContent writes a content-bearing method, its header and the body
// split into chunks of at most chunk bytes.
func (b *fakeBroker) sendContent(channel uint16, method protocol.Method, body []byte, props *protocol.Properties, chunk int) {
	b.t.Helper()
	b.send(channel, method)
	content := protocol.NewContent(body, props)
	header, err := content.EncodeHeader()
	require.NoError(b.t, err)
	b.write(protocol.NewHeaderFrame(channel, header))
	for off := 0; off < len(body); off += chunk {
		b.write(protocol.NewBodyFrame(channel, body[off:min(off+chunk, len(body))]))
	}
}

func (b *fakeBroker) deliver(channel uint16, tag string, deliveryTag uint64, body string) {
	b.t.Helper()
	b.sendContent(channel, &protocol.BasicDeliverMethod{
		ConsumerTag: tag,
		DeliveryTag: deliveryTag,
		Exchange:    "",
		RoutingKey:  "work",
	}, []byte(body), nil, 1024)
}

func serverProperties(capabilities ...string) protocol.Table {
	caps := protocol.Table{}
	for _, c := range capabilities {
		caps[c] = true
	}
	return protocol.Table{
		"product":      "fake-broker",
		"version":      "0.0.1",
		"capabilities": caps,
	}
}

func defaultTune() *protocol.ConnectionTuneMethod {
	return &protocol.ConnectionTuneMethod{ChannelMax: 2047, FrameMax: 131072, Heartbeat: 0}
}

// handshake plays the server side of connection.start through open-ok.
func (b *fakeBroker) handshake(props protocol.Table, tune *protocol.ConnectionTuneMethod) (*protocol.ConnectionStartOKMethod, *protocol.ConnectionTuneOKMethod, *protocol.ConnectionOpenMethod) {
	b.t.Helper()
	b.expectProtocolHeader()
	b.send(0, &protocol.ConnectionStartMethod{
		VersionMajor:     0,
		VersionMinor:     9,
		ServerProperties: props,
		Mechanisms:       "PLAIN AMQPLAIN",
		Locales:          "en_US",
	})
	_, startOK := b.expect(&protocol.ConnectionStartOKMethod{})
	b.send(0, tune)
	_, tuneOK := b.expect(&protocol.ConnectionTuneOKMethod{})
	_, open := b.expect(&protocol.ConnectionOpenMethod{})
	b.send(0, &protocol.ConnectionOpenOKMethod{})
	return startOK.(*protocol.ConnectionStartOKMethod), tuneOK.(*protocol.ConnectionTuneOKMethod), open.(*protocol.ConnectionOpenMethod)
}

// outcome carries the result of a client call made on another goroutine
// while the test goroutine plays the broker.
type outcome[T any] struct {
	value T
	err   error
}

func async[T any](fn func() (T, error)) <-chan outcome[T] {
	out := make(chan outcome[T], 1)
	go func() {
		value, err := fn()
		out <- outcome[T]{value, err}
	}()
	return out
}

func await[T any](t *testing.T, out <-chan outcome[T]) (T, error) {
	t.Helper()
	select {
	case o := <-out:
		return o.value, o.err
	case <-time.After(testTimeout):
		t.Fatal("timed out waiting for the client")
		var zero T
		return zero, nil
	}
}

func testConfig() *config.AMQPConfig {
	cfg := config.DefaultConfig()
	cfg.Network.ConnectionTimeout = testTimeout
	cfg.Connection.Heartbeat = 0
	cfg.Connection.CloseTimeout = testTimeout
	return cfg
}

// openFake opens a client connection against a fake broker. The transport is
// torn down when the test ends.
func openFake(t *testing.T, cfg *config.AMQPConfig, props protocol.Table, tune *protocol.ConnectionTuneMethod) (*Connection, *fakeBroker) {
	t.Helper()
	clientSide, serverSide := net.Pipe()
	b := newFakeBroker(t, serverSide)

	out := async(func() (*Connection, error) {
		return Open(context.Background(), clientSide, cfg, &Options{HeartbeatTick: 10 * time.Millisecond})
	})
	b.handshake(props, tune)
	conn, err := await(t, out)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = serverSide.Close()
		<-conn.pumpDone
	})
	return conn, b
}

// openChannel opens a channel, playing channel.open-ok.
func (b *fakeBroker) openChannel(conn *Connection) *Channel {
	b.t.Helper()
	out := async(func() (*Channel, error) { return conn.Channel(context.Background()) })
	id, _ := b.expect(&protocol.ChannelOpenMethod{})
	b.send(id, &protocol.ChannelOpenOKMethod{})
	ch, err := await(b.t, out)
	require.NoError(b.t, err)
	require.Equal(b.t, id, ch.ID())
	return ch
}

// consume starts a consumer with the given tag, playing consume-ok.
func (b *fakeBroker) consume(ch *Channel, tag string) {
	b.t.Helper()
	out := async(func() (string, error) {
		return ch.Consume(context.Background(), "work", tag, false, false, false, false, nil)
	})
	_, m := b.expect(&protocol.BasicConsumeMethod{})
	b.send(ch.ID(), &protocol.BasicConsumeOKMethod{ConsumerTag: m.(*protocol.BasicConsumeMethod).ConsumerTag})
	got, err := await(b.t, out)
	require.NoError(b.t, err)
	require.Equal(b.t, tag, got)
}
