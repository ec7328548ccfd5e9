package errors

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAMQPError(t *testing.T) {
	err := &AMQPError{
		Code:    NotFound,
		Message: "Resource not found",
		Method:  "queue.declare",
	}

	assert.Equal(t, "AMQP Error 404 in queue.declare: Resource not found", err.Error())
	assert.Nil(t, err.Unwrap())
}

func TestAMQPErrorWithoutMethod(t *testing.T) {
	err := &AMQPError{
		Code:    InternalError,
		Message: "Internal server error",
	}

	assert.Equal(t, "AMQP Error 541: Internal server error", err.Error())
}

func TestAMQPErrorWithCause(t *testing.T) {
	cause := errors.New("underlying error")
	err := &AMQPError{
		Code:    InternalError,
		Message: "Wrapper error",
		Cause:   cause,
	}

	assert.Equal(t, cause, err.Unwrap())
}

func TestReplyTextTruncated(t *testing.T) {
	err := &AMQPError{Code: PreconditionFailed, Message: strings.Repeat("x", 300)}

	assert.Equal(t, PreconditionFailed, err.ReplyCode())
	assert.Len(t, err.ReplyText(), 255)
}

func TestConnectionError(t *testing.T) {
	err := NewConnectionError(ConnectionForced, "Server shutting down", "conn-123")

	assert.Equal(t, ConnectionForced, err.Code)
	assert.Equal(t, "Server shutting down", err.Message)
	assert.Equal(t, "conn-123", err.ConnectionID)
	assert.Contains(t, err.Error(), "Server shutting down")
}

func TestServerConnectionClose(t *testing.T) {
	err := NewServerConnectionClose("conn-1", ConnectionForced, "CONNECTION_FORCED - broker forced connection closure", 0, 0)

	assert.Equal(t, ConnectionForced, err.Code)
	assert.Empty(t, err.Method)
	assert.False(t, err.Soft())

	err = NewServerConnectionClose("conn-1", CommandInvalid, "unknown exchange type", 40, 10)
	assert.Equal(t, "exchange.declare", err.Method)
	assert.Equal(t, uint16(40), err.ClassID)
	assert.Equal(t, uint16(10), err.MethodID)
}

func TestConnectionForcedError(t *testing.T) {
	err := NewConnectionForced("conn-456", "missed heartbeats")

	assert.Equal(t, ConnectionForced, err.Code)
	assert.Equal(t, "conn-456", err.ConnectionID)
	assert.Contains(t, err.Message, "missed heartbeats")
}

func TestAccessRefusedError(t *testing.T) {
	err := NewAccessRefused("conn-789", "invalid credentials")

	assert.Equal(t, AccessRefused, err.Code)
	assert.Equal(t, "conn-789", err.ConnectionID)
	assert.Contains(t, err.Message, "invalid credentials")
}

func TestVersionMismatchError(t *testing.T) {
	err := NewVersionMismatch("conn-1", 1, 0, 0)

	assert.Equal(t, NotAllowed, err.Code)
	assert.Contains(t, err.Message, "server is 1.0.0")
}

func TestChannelError(t *testing.T) {
	err := NewChannelError(PreconditionFailed, "Channel state invalid", "conn-123", 5)

	assert.Equal(t, PreconditionFailed, err.Code)
	assert.Equal(t, "Channel state invalid", err.Message)
	assert.Equal(t, "conn-123", err.ConnectionID)
	assert.Equal(t, uint16(5), err.ChannelID)
}

func TestServerChannelClose(t *testing.T) {
	err := NewServerChannelClose("conn-1", 3, NotFound, "NOT_FOUND - no queue 'missing'", 50, 10)

	assert.Equal(t, uint16(3), err.ChannelID)
	assert.Equal(t, "queue.declare", err.Method)
	assert.True(t, err.Soft())
	assert.Equal(t, "AMQP Error 404 in queue.declare: NOT_FOUND - no queue 'missing'", err.Error())
}

func TestChannelNotFoundError(t *testing.T) {
	err := NewChannelNotFound("conn-123", 10)

	assert.Equal(t, ChannelErrorCode, err.Code)
	assert.Equal(t, uint16(10), err.ChannelID)
}

func TestProtocolError(t *testing.T) {
	err := NewProtocolError(FrameError, "Invalid frame format", 1, 10, 20)

	assert.Equal(t, FrameError, err.Code)
	assert.Equal(t, "Invalid frame format", err.Message)
	assert.Equal(t, byte(1), err.FrameType)
	assert.Equal(t, uint16(10), err.ClassID)
	assert.Equal(t, uint16(20), err.MethodID)
}

func TestFrameError(t *testing.T) {
	err := NewFrameError("malformed frame", 2)

	assert.Equal(t, FrameError, err.Code)
	assert.Equal(t, byte(2), err.FrameType)
	assert.Contains(t, err.Message, "malformed frame")
}

func TestSyntaxError(t *testing.T) {
	err := NewSyntaxError("invalid method arguments")

	assert.Equal(t, SyntaxError, err.Code)
	assert.Contains(t, err.Message, "invalid method arguments")
}

func TestUnexpectedFrameError(t *testing.T) {
	err := NewUnexpectedFrame(1, 3)

	assert.Equal(t, UnexpectedFrame, err.Code)
	assert.Equal(t, byte(3), err.FrameType)
	assert.Contains(t, err.Message, "expected 1, got 3")
}

func TestCommandInvalidError(t *testing.T) {
	err := NewCommandInvalid("unknown method 60.999", 60, 999)

	assert.Equal(t, CommandInvalid, err.Code)
	assert.True(t, IsProtocolError(err))
}

func TestTransportError(t *testing.T) {
	err := NewTransportError("read", io.ErrUnexpectedEOF)

	assert.Equal(t, "transport read failed: unexpected EOF", err.Error())
	assert.True(t, errors.Is(err, io.ErrUnexpectedEOF))
	assert.True(t, IsTransportError(fmt.Errorf("pump: %w", err)))

	// A transport failure carries no reply code
	assert.Equal(t, 0, GetErrorCode(err))
}

func TestAuthError(t *testing.T) {
	err := NewMechanismUnavailable([]string{"AMQPLAIN"}, []string{"PLAIN", "EXTERNAL"})

	assert.Equal(t, AccessRefused, err.Code)
	assert.Equal(t, "AMQPLAIN", err.Mechanism)
	assert.Equal(t, []string{"PLAIN", "EXTERNAL"}, err.Offered)
	assert.Contains(t, err.Message, "server offers PLAIN EXTERNAL")
}

func TestLocaleUnavailableError(t *testing.T) {
	err := NewLocaleUnavailable("fr_FR", []string{"en_US"})

	assert.Equal(t, NotAllowed, err.Code)
	assert.Contains(t, err.Message, "fr_FR")
}

func TestConfigError(t *testing.T) {
	cause := errors.New("file not found")
	err := NewConfigError("Failed to load config", "network", "port", cause)

	assert.Equal(t, InternalError, err.Code)
	assert.Equal(t, "network", err.Section)
	assert.Equal(t, "port", err.Key)
	assert.Equal(t, cause, err.Cause)
}

func TestConfigValidationError(t *testing.T) {
	err := NewConfigValidationError("connection", "frame_max", "must be at least 4096")

	assert.Equal(t, "connection", err.Section)
	assert.Equal(t, "frame_max", err.Key)
	assert.Contains(t, err.Message, "connection.frame_max")
	assert.Nil(t, err.Cause)
}

func TestIsConnectionError(t *testing.T) {
	connErr := NewConnectionError(ConnectionForced, "test", "conn-1")
	chanErr := NewChannelError(NotFound, "test", "conn-1", 1)
	genericErr := errors.New("generic error")

	assert.True(t, IsConnectionError(connErr))
	assert.False(t, IsConnectionError(chanErr))
	assert.False(t, IsConnectionError(genericErr))
}

func TestIsChannelError(t *testing.T) {
	chanErr := NewChannelError(NotFound, "test", "conn-1", 1)
	connErr := NewConnectionError(ConnectionForced, "test", "conn-1")

	assert.True(t, IsChannelError(chanErr))
	assert.False(t, IsChannelError(connErr))
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(NewServerChannelClose("c", 1, NotFound, "no queue", 50, 10)))
	assert.False(t, IsNotFound(NewChannelPreconditionFailed("c", 1, "inequivalent arg")))
	assert.False(t, IsNotFound(errors.New("generic error")))
}

func TestIsPreconditionFailed(t *testing.T) {
	assert.True(t, IsPreconditionFailed(NewChannelPreconditionFailed("c", 1, "inequivalent arg 'durable'")))
	assert.False(t, IsPreconditionFailed(NewChannelNotFound("c", 1)))
}

func TestIsAccessRefused(t *testing.T) {
	assert.True(t, IsAccessRefused(NewAccessRefused("c", "login refused")))
	assert.False(t, IsAccessRefused(NewConnectionForced("c", "shutdown")))
}

func TestGetErrorCode(t *testing.T) {
	amqpErr := NewServerChannelClose("c", 1, NotFound, "no exchange", 40, 10)
	genericErr := errors.New("generic error")

	assert.Equal(t, NotFound, GetErrorCode(amqpErr))
	assert.Equal(t, 0, GetErrorCode(genericErr))
}

func TestCloseReason(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantText string
	}{
		{"nil", nil, 0, ""},
		{"generic", errors.New("boom"), 0, ""},
		{"transport", NewTransportError("write", io.ErrClosedPipe), 0, ""},
		{"channel", NewServerChannelClose("c", 1, NotFound, "no queue", 50, 10), NotFound, "no queue"},
		{"wrapped connection", fmt.Errorf("consume: %w", NewConnectionForced("c", "shutdown")), ConnectionForced, "Connection forced closed: shutdown"},
		{"protocol", NewUnexpectedFrame(3, 2), UnexpectedFrame, "Unexpected frame: expected 3, got 2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, text := CloseReason(tt.err)
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantText, text)
		})
	}
}

func TestWrappedErrors(t *testing.T) {
	cause := errors.New("root cause")
	cfgErr := NewConfigError("load failed", "file", "path", cause)

	assert.True(t, errors.Is(cfgErr, cause))
	assert.Equal(t, cause, errors.Unwrap(cfgErr))

	var amqpErr *AMQPError
	if assert.True(t, errors.As(cfgErr, &amqpErr)) {
		assert.Equal(t, InternalError, amqpErr.Code)
	}
}

func TestErrorChaining(t *testing.T) {
	chanErr := NewServerChannelClose("conn-1", 2, ResourceLocked, "exclusive use", 60, 20)
	wrapperErr := fmt.Errorf("basic.consume failed: %w", chanErr)

	var cErr *ChannelError
	assert.True(t, errors.As(wrapperErr, &cErr))
	assert.Equal(t, uint16(2), cErr.ChannelID)

	var amqpErr *AMQPError
	if assert.True(t, errors.As(wrapperErr, &amqpErr)) {
		assert.Equal(t, ResourceLocked, amqpErr.Code)
	}
}

func TestReplyClassification(t *testing.T) {
	soft := []int{ContentTooLarge, NoRoute, NoConsumers, AccessRefused, NotFound, ResourceLocked, PreconditionFailed}
	hard := []int{ConnectionForced, InvalidPath, FrameError, SyntaxError, CommandInvalid, ChannelErrorCode,
		UnexpectedFrame, ResourceError, NotAllowed, NotImplemented, InternalError}

	for _, code := range soft {
		assert.True(t, IsSoftError(code), "code %d", code)
		assert.False(t, IsHardError(code), "code %d", code)
	}
	for _, code := range hard {
		assert.True(t, IsHardError(code), "code %d", code)
	}
	assert.True(t, IsHardError(999))
	assert.False(t, IsHardError(0))
	assert.Equal(t, "precondition-failed", ReplyName(PreconditionFailed))
	assert.Equal(t, "unknown-999", ReplyName(999))
}

func TestMethodName(t *testing.T) {
	assert.Equal(t, "", MethodName(0, 0))
	assert.Equal(t, "basic.consume", MethodName(60, 20))
	assert.Equal(t, "exchange.unbind-ok", MethodName(40, 51))
	assert.Equal(t, "basic.999", MethodName(60, 999))
	assert.Equal(t, "77.1", MethodName(77, 1))
}
