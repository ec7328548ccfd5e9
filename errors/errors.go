package errors

import (
	"errors"
	"fmt"
	"strings"
)

// AMQPError represents a general AMQP error
type AMQPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Method  string `json:"method,omitempty"`
	Cause   error  `json:"cause,omitempty"`
}

func (e *AMQPError) Error() string {
	if e.Method != "" {
		return fmt.Sprintf("AMQP Error %d in %s: %s", e.Code, e.Method, e.Message)
	}
	return fmt.Sprintf("AMQP Error %d: %s", e.Code, e.Message)
}

func (e *AMQPError) Unwrap() error {
	return e.Cause
}

func (e *AMQPError) As(target interface{}) bool {
	if amqpErr, ok := target.(**AMQPError); ok {
		*amqpErr = e
		return true
	}
	return false
}

// ReplyCode returns the code sent in a close method for this error.
func (e *AMQPError) ReplyCode() int {
	return e.Code
}

// ReplyText returns the text sent in a close method for this error.
// AMQP limits reply-text to a short string.
func (e *AMQPError) ReplyText() string {
	if len(e.Message) > 255 {
		return e.Message[:255]
	}
	return e.Message
}

// Soft reports whether the error only closes the channel it happened on.
func (e *AMQPError) Soft() bool {
	return IsSoftError(e.Code)
}

// Connection Errors

// ConnectionError is a connection-level exception, either received in a
// connection.close from the server or raised locally before closing.
type ConnectionError struct {
	AMQPError
	ConnectionID string `json:"connection_id,omitempty"`
	ClassID      uint16 `json:"class_id,omitempty"`
	MethodID     uint16 `json:"method_id,omitempty"`
}

func NewConnectionError(code int, message, connectionID string) *ConnectionError {
	return &ConnectionError{
		AMQPError: AMQPError{
			Code:    code,
			Message: message,
		},
		ConnectionID: connectionID,
	}
}

// NewServerConnectionClose builds the error carried by a connection.close
// received from the server.
func NewServerConnectionClose(connectionID string, code int, text string, classID, methodID uint16) *ConnectionError {
	err := NewConnectionError(code, text, connectionID)
	err.ClassID = classID
	err.MethodID = methodID
	err.Method = MethodName(classID, methodID)
	return err
}

func NewConnectionForced(connectionID, reason string) *ConnectionError {
	return NewConnectionError(ConnectionForced, fmt.Sprintf("Connection forced closed: %s", reason), connectionID)
}

func NewAccessRefused(connectionID, reason string) *ConnectionError {
	return NewConnectionError(AccessRefused, fmt.Sprintf("Access refused: %s", reason), connectionID)
}

// NewVersionMismatch is returned when the server answers the protocol header
// with its own, meaning it does not speak 0-9-1.
func NewVersionMismatch(connectionID string, major, minor, revision byte) *ConnectionError {
	message := fmt.Sprintf("AMQP version mismatch, we are 0.9.1, server is %d.%d.%d", major, minor, revision)
	return NewConnectionError(NotAllowed, message, connectionID)
}

func (e *ConnectionError) As(target interface{}) bool {
	if amqpErr, ok := target.(**AMQPError); ok {
		*amqpErr = &e.AMQPError
		return true
	}
	return false
}

// Channel Errors

// ChannelError is a channel-level exception received in a channel.close.
type ChannelError struct {
	AMQPError
	ConnectionID string `json:"connection_id,omitempty"`
	ChannelID    uint16 `json:"channel_id"`
	ClassID      uint16 `json:"class_id,omitempty"`
	MethodID     uint16 `json:"method_id,omitempty"`
}

func NewChannelError(code int, message, connectionID string, channelID uint16) *ChannelError {
	return &ChannelError{
		AMQPError: AMQPError{
			Code:    code,
			Message: message,
		},
		ConnectionID: connectionID,
		ChannelID:    channelID,
	}
}

// NewServerChannelClose builds the error carried by a channel.close received
// from the server.
func NewServerChannelClose(connectionID string, channelID uint16, code int, text string, classID, methodID uint16) *ChannelError {
	err := NewChannelError(code, text, connectionID, channelID)
	err.ClassID = classID
	err.MethodID = methodID
	err.Method = MethodName(classID, methodID)
	return err
}

func NewChannelNotFound(connectionID string, channelID uint16) *ChannelError {
	return NewChannelError(ChannelErrorCode, fmt.Sprintf("Channel %d not found", channelID), connectionID, channelID)
}

func NewChannelPreconditionFailed(connectionID string, channelID uint16, reason string) *ChannelError {
	return NewChannelError(PreconditionFailed, fmt.Sprintf("Precondition failed: %s", reason), connectionID, channelID)
}

func (e *ChannelError) As(target interface{}) bool {
	if amqpErr, ok := target.(**AMQPError); ok {
		*amqpErr = &e.AMQPError
		return true
	}
	return false
}

// Protocol Errors

// ProtocolError reports a violated wire-format invariant. It is always fatal
// for the connection.
type ProtocolError struct {
	AMQPError
	FrameType byte   `json:"frame_type,omitempty"`
	ClassID   uint16 `json:"class_id,omitempty"`
	MethodID  uint16 `json:"method_id,omitempty"`
}

func NewProtocolError(code int, message string, frameType byte, classID, methodID uint16) *ProtocolError {
	return &ProtocolError{
		AMQPError: AMQPError{
			Code:    code,
			Message: message,
		},
		FrameType: frameType,
		ClassID:   classID,
		MethodID:  methodID,
	}
}

func NewFrameError(message string, frameType byte) *ProtocolError {
	return NewProtocolError(FrameError, fmt.Sprintf("Frame error: %s", message), frameType, 0, 0)
}

func NewSyntaxError(message string) *ProtocolError {
	return NewProtocolError(SyntaxError, fmt.Sprintf("Syntax error: %s", message), 0, 0, 0)
}

func NewUnexpectedFrame(expected, actual byte) *ProtocolError {
	message := fmt.Sprintf("Unexpected frame: expected %d, got %d", expected, actual)
	return NewProtocolError(UnexpectedFrame, message, actual, 0, 0)
}

// NewCommandInvalid reports a method or class the client does not know.
func NewCommandInvalid(message string, classID, methodID uint16) *ProtocolError {
	return NewProtocolError(CommandInvalid, fmt.Sprintf("Command invalid: %s", message), 0, classID, methodID)
}

func (e *ProtocolError) As(target interface{}) bool {
	if amqpErr, ok := target.(**AMQPError); ok {
		*amqpErr = &e.AMQPError
		return true
	}
	return false
}

// Transport Errors

// TransportError wraps a socket failure. It carries no reply code: the peer
// never saw it, so there is nothing to report in a close method.
type TransportError struct {
	Op  string `json:"op"`
	Err error  `json:"err,omitempty"`
}

func NewTransportError(op string, err error) *TransportError {
	return &TransportError{Op: op, Err: err}
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s failed: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Authentication Errors

// AuthError represents SASL negotiation failures on the client side
type AuthError struct {
	AMQPError
	Mechanism string   `json:"mechanism,omitempty"`
	Offered   []string `json:"offered,omitempty"`
}

func NewAuthError(code int, message, mechanism string, offered []string) *AuthError {
	return &AuthError{
		AMQPError: AMQPError{
			Code:    code,
			Message: message,
		},
		Mechanism: mechanism,
		Offered:   offered,
	}
}

// NewMechanismUnavailable is returned when none of the client's mechanisms
// is offered by the server.
func NewMechanismUnavailable(wanted, offered []string) *AuthError {
	message := fmt.Sprintf("unable to agree on auth mechanism: client wants %s, server offers %s",
		strings.Join(wanted, " "), strings.Join(offered, " "))
	return NewAuthError(AccessRefused, message, strings.Join(wanted, " "), offered)
}

// NewLocaleUnavailable is returned when the server does not offer the
// configured locale.
func NewLocaleUnavailable(locale string, offered []string) *AuthError {
	message := fmt.Sprintf("unable to agree on locale %q, server offers %s", locale, strings.Join(offered, " "))
	return NewAuthError(NotAllowed, message, "", offered)
}

func (e *AuthError) As(target interface{}) bool {
	if amqpErr, ok := target.(**AMQPError); ok {
		*amqpErr = &e.AMQPError
		return true
	}
	return false
}

// Configuration Errors

// ConfigError represents configuration-specific errors
type ConfigError struct {
	AMQPError
	Section string `json:"section"`
	Key     string `json:"key,omitempty"`
}

func NewConfigError(message, section, key string, cause error) *ConfigError {
	return &ConfigError{
		AMQPError: AMQPError{
			Code:    InternalError,
			Message: message,
			Cause:   cause,
		},
		Section: section,
		Key:     key,
	}
}

func NewConfigValidationError(section, key, reason string) *ConfigError {
	message := fmt.Sprintf("Configuration validation failed for %s.%s: %s", section, key, reason)
	return NewConfigError(message, section, key, nil)
}

// Helper functions for common error checking

// IsConnectionError checks if an error is a ConnectionError
func IsConnectionError(err error) bool {
	var connErr *ConnectionError
	return errors.As(err, &connErr)
}

// IsChannelError checks if an error is a ChannelError
func IsChannelError(err error) bool {
	var chanErr *ChannelError
	return errors.As(err, &chanErr)
}

// IsProtocolError checks if an error is a ProtocolError
func IsProtocolError(err error) bool {
	var protoErr *ProtocolError
	return errors.As(err, &protoErr)
}

// IsTransportError checks if an error is a TransportError
func IsTransportError(err error) bool {
	var transportErr *TransportError
	return errors.As(err, &transportErr)
}

// IsNotFound checks if an error indicates a resource was not found
func IsNotFound(err error) bool {
	return GetErrorCode(err) == NotFound
}

// IsPreconditionFailed checks if an error indicates a precondition failed
func IsPreconditionFailed(err error) bool {
	return GetErrorCode(err) == PreconditionFailed
}

// IsAccessRefused checks if an error indicates access was refused
func IsAccessRefused(err error) bool {
	return GetErrorCode(err) == AccessRefused
}

// GetErrorCode returns the AMQP error code if the error is an AMQPError
func GetErrorCode(err error) int {
	var amqpErr *AMQPError
	if errors.As(err, &amqpErr) {
		return amqpErr.Code
	}
	return 0
}

// CloseReason extracts the reply code and text used to close a connection or
// channel after err. Errors that do not carry an AMQP reply code close with
// code 0 and empty text.
func CloseReason(err error) (int, string) {
	var amqpErr *AMQPError
	if err != nil && errors.As(err, &amqpErr) {
		return amqpErr.ReplyCode(), amqpErr.ReplyText()
	}
	return 0, ""
}
