package client

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	amqperr "github.com/maxpert/amqp-go-client/errors"
	"github.com/maxpert/amqp-go-client/protocol"
)

// pipeOptions dials into a fake broker over an in-memory pipe.
func pipeOptions(t *testing.T) (*Options, *fakeBroker) {
	t.Helper()
	clientSide, serverSide := net.Pipe()
	b := newFakeBroker(t, serverSide)
	t.Cleanup(func() { _ = clientSide.Close() })
	return &Options{
		HeartbeatTick: 10 * time.Millisecond,
		Dialer: func(ctx context.Context, network, address string) (net.Conn, error) {
			return clientSide, nil
		},
	}, b
}

type scoped struct {
	err      error
	panicked any
}

func runScoped(fn func() error) <-chan scoped {
	out := make(chan scoped, 1)
	go func() {
		var s scoped
		defer func() {
			s.panicked = recover()
			out <- s
		}()
		s.err = fn()
	}()
	return out
}

func awaitScoped(t *testing.T, out <-chan scoped) scoped {
	t.Helper()
	select {
	case s := <-out:
		return s
	case <-time.After(testTimeout):
		t.Fatal("scope did not return")
		return scoped{}
	}
}

func (b *fakeBroker) expectConnectionClose() *protocol.ConnectionCloseMethod {
	b.t.Helper()
	_, m := b.expect(&protocol.ConnectionCloseMethod{})
	b.send(0, &protocol.ConnectionCloseOKMethod{})
	b.expectClosed()
	return m.(*protocol.ConnectionCloseMethod)
}

func TestWithConnectionClosesOnReturn(t *testing.T) {
	opts, b := pipeOptions(t)
	var seen *Connection
	out := runScoped(func() error {
		return WithConnection(context.Background(), testConfig(), opts, func(ctx context.Context, conn *Connection) error {
			seen = conn
			return nil
		})
	})
	b.handshake(serverProperties(), defaultTune())

	m := b.expectConnectionClose()
	assert.Zero(t, m.ReplyCode)
	assert.Empty(t, m.ReplyText)

	s := awaitScoped(t, out)
	require.NoError(t, s.err)
	require.Nil(t, s.panicked)
	assert.False(t, seen.Alive())
}

func TestWithConnectionPropagatesError(t *testing.T) {
	opts, b := pipeOptions(t)
	fnErr := amqperr.NewAccessRefused("", "not for you")
	out := runScoped(func() error {
		return WithConnection(context.Background(), testConfig(), opts, func(ctx context.Context, conn *Connection) error {
			return fnErr
		})
	})
	b.handshake(serverProperties(), defaultTune())

	m := b.expectConnectionClose()
	assert.Equal(t, uint16(amqperr.AccessRefused), m.ReplyCode)
	assert.Equal(t, fnErr.ReplyText(), m.ReplyText)

	s := awaitScoped(t, out)
	assert.Same(t, fnErr, s.err)
}

func TestWithConnectionPlainErrorClosesWithZero(t *testing.T) {
	opts, b := pipeOptions(t)
	fnErr := errors.New("application gave up")
	out := runScoped(func() error {
		return WithConnection(context.Background(), testConfig(), opts, func(ctx context.Context, conn *Connection) error {
			return fnErr
		})
	})
	b.handshake(serverProperties(), defaultTune())

	m := b.expectConnectionClose()
	assert.Zero(t, m.ReplyCode)
	assert.Empty(t, m.ReplyText)
	assert.ErrorIs(t, awaitScoped(t, out).err, fnErr)
}

func TestWithConnectionClosesOnPanic(t *testing.T) {
	opts, b := pipeOptions(t)
	out := runScoped(func() error {
		return WithConnection(context.Background(), testConfig(), opts, func(ctx context.Context, conn *Connection) error {
			panic("boom")
		})
	})
	b.handshake(serverProperties(), defaultTune())

	m := b.expectConnectionClose()
	assert.Zero(t, m.ReplyCode)
	assert.Equal(t, "boom", awaitScoped(t, out).panicked)
}

func TestWithConnectionClosesAfterCancel(t *testing.T) {
	opts, b := pipeOptions(t)
	ctx, cancel := context.WithCancel(context.Background())
	out := runScoped(func() error {
		return WithConnection(ctx, testConfig(), opts, func(ctx context.Context, conn *Connection) error {
			cancel()
			return ctx.Err()
		})
	})
	b.handshake(serverProperties(), defaultTune())

	// The close handshake still runs to completion.
	b.expectConnectionClose()
	assert.ErrorIs(t, awaitScoped(t, out).err, context.Canceled)
}

func TestWithConnectionDialFailure(t *testing.T) {
	dialErr := errors.New("connection refused")
	opts := &Options{Dialer: func(ctx context.Context, network, address string) (net.Conn, error) {
		return nil, dialErr
	}}
	called := false
	err := WithConnection(context.Background(), testConfig(), opts, func(ctx context.Context, conn *Connection) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, dialErr)
	assert.True(t, amqperr.IsTransportError(err))
	assert.False(t, called)
}

func TestWithChannel(t *testing.T) {
	tests := []struct {
		name     string
		fnErr    error
		wantCode uint16
	}{
		{"success", nil, 0},
		{"channel exception", amqperr.NewChannelPreconditionFailed("", 1, "bad ack"), amqperr.PreconditionFailed},
		{"plain error", errors.New("nope"), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn, b := openFake(t, testConfig(), serverProperties(), defaultTune())

			var id uint16
			out := runScoped(func() error {
				return WithChannel(context.Background(), conn, func(ctx context.Context, ch *Channel) error {
					id = ch.ID()
					return tt.fnErr
				})
			})
			chID, _ := b.expect(&protocol.ChannelOpenMethod{})
			b.send(chID, &protocol.ChannelOpenOKMethod{})

			_, m := b.expect(&protocol.ChannelCloseMethod{})
			assert.Equal(t, tt.wantCode, m.(*protocol.ChannelCloseMethod).ReplyCode)
			b.send(chID, &protocol.ChannelCloseOKMethod{})

			s := awaitScoped(t, out)
			assert.Equal(t, chID, id)
			if tt.fnErr == nil {
				assert.NoError(t, s.err)
			} else {
				assert.ErrorIs(t, s.err, tt.fnErr)
			}
			assert.True(t, conn.Alive(), "a channel scope leaves the connection open")
		})
	}
}

func TestWithChannelClosesOnPanic(t *testing.T) {
	conn, b := openFake(t, testConfig(), serverProperties(), defaultTune())

	out := runScoped(func() error {
		return WithChannel(context.Background(), conn, func(ctx context.Context, ch *Channel) error {
			panic(amqperr.NewChannelPreconditionFailed("", ch.ID(), "panicked"))
		})
	})
	chID, _ := b.expect(&protocol.ChannelOpenMethod{})
	b.send(chID, &protocol.ChannelOpenOKMethod{})

	_, m := b.expect(&protocol.ChannelCloseMethod{})
	assert.Equal(t, uint16(amqperr.PreconditionFailed), m.(*protocol.ChannelCloseMethod).ReplyCode)
	b.send(chID, &protocol.ChannelCloseOKMethod{})

	s := awaitScoped(t, out)
	require.NotNil(t, s.panicked)
	assert.True(t, amqperr.IsPreconditionFailed(s.panicked.(error)))
}
