package client

import (
	"context"
	"fmt"

	"github.com/maxpert/amqp-go-client/config"
	amqperr "github.com/maxpert/amqp-go-client/errors"
)

// WithConnection dials, runs fn and closes the connection however fn ends.
// When fn fails with an AMQP error its reply code and text go into
// connection.close; any other outcome closes with code 0 and empty text.
// The close handshake completes before WithConnection returns, even if ctx
// has been cancelled. A panic in fn is re-raised after the close.
func WithConnection(ctx context.Context, cfg *config.AMQPConfig, opts *Options, fn func(context.Context, *Connection) error) (err error) {
	conn, err := Dial(ctx, cfg, opts)
	if err != nil {
		return err
	}

	closeCtx := context.WithoutCancel(ctx)
	defer func() {
		if r := recover(); r != nil {
			code, text := amqperr.CloseReason(panicError(r))
			_ = conn.CloseWith(closeCtx, code, text)
			panic(r)
		}
	}()

	fnErr := fn(ctx, conn)
	code, text := amqperr.CloseReason(fnErr)
	closeErr := conn.CloseWith(closeCtx, code, text)
	if fnErr != nil {
		return fnErr
	}
	return closeErr
}

// WithChannel opens a channel on conn, runs fn and closes the channel the
// same way WithConnection closes a connection.
func WithChannel(ctx context.Context, conn *Connection, fn func(context.Context, *Channel) error) (err error) {
	ch, err := conn.Channel(ctx)
	if err != nil {
		return err
	}

	closeCtx := context.WithoutCancel(ctx)
	defer func() {
		if r := recover(); r != nil {
			code, text := amqperr.CloseReason(panicError(r))
			_ = ch.CloseWith(closeCtx, code, text)
			panic(r)
		}
	}()

	fnErr := fn(ctx, ch)
	code, text := amqperr.CloseReason(fnErr)
	closeErr := ch.CloseWith(closeCtx, code, text)
	if fnErr != nil {
		return fnErr
	}
	return closeErr
}

func panicError(r any) error {
	if err, ok := r.(error); ok {
		return err
	}
	return fmt.Errorf("panic: %v", r)
}
