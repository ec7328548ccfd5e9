package errors

import "fmt"

// AMQP reply codes (AMQP 0-9-1, section 1.9)
const (
	ReplySuccess = 200

	// Soft errors close the channel only
	ContentTooLarge    = 311
	NoRoute            = 312
	NoConsumers        = 313
	AccessRefused      = 403
	NotFound           = 404
	ResourceLocked     = 405
	PreconditionFailed = 406

	// Hard errors close the connection
	ConnectionForced = 320
	InvalidPath      = 402
	FrameError       = 501
	SyntaxError      = 502
	CommandInvalid   = 503
	ChannelErrorCode = 504
	UnexpectedFrame  = 505
	ResourceError    = 506
	NotAllowed       = 530
	NotImplemented   = 540
	InternalError    = 541
)

type reply struct {
	name string
	soft bool
}

var replies = map[int]reply{
	ReplySuccess:       {"reply-success", true},
	ContentTooLarge:    {"content-too-large", true},
	NoRoute:            {"no-route", true},
	NoConsumers:        {"no-consumers", true},
	AccessRefused:      {"access-refused", true},
	NotFound:           {"not-found", true},
	ResourceLocked:     {"resource-locked", true},
	PreconditionFailed: {"precondition-failed", true},
	ConnectionForced:   {"connection-forced", false},
	InvalidPath:        {"invalid-path", false},
	FrameError:         {"frame-error", false},
	SyntaxError:        {"syntax-error", false},
	CommandInvalid:     {"command-invalid", false},
	ChannelErrorCode:   {"channel-error", false},
	UnexpectedFrame:    {"unexpected-frame", false},
	ResourceError:      {"resource-error", false},
	NotAllowed:         {"not-allowed", false},
	NotImplemented:     {"not-implemented", false},
	InternalError:      {"internal-error", false},
}

// ReplyName returns the AMQP name of a reply code, or "unknown-<code>".
func ReplyName(code int) string {
	if r, ok := replies[code]; ok {
		return r.name
	}
	return fmt.Sprintf("unknown-%d", code)
}

// IsSoftError reports whether code is a channel-level (soft) error.
// Unknown codes are treated as hard.
func IsSoftError(code int) bool {
	r, ok := replies[code]
	return ok && r.soft
}

// IsHardError reports whether code forces the whole connection to close.
func IsHardError(code int) bool {
	return code != 0 && !IsSoftError(code)
}

var classNames = map[uint16]string{
	10: "connection",
	20: "channel",
	40: "exchange",
	50: "queue",
	60: "basic",
	85: "confirm",
	90: "tx",
}

var methodNames = map[[2]uint16]string{
	{10, 10}: "start", {10, 11}: "start-ok", {10, 20}: "secure", {10, 21}: "secure-ok",
	{10, 30}: "tune", {10, 31}: "tune-ok", {10, 40}: "open", {10, 41}: "open-ok",
	{10, 50}: "close", {10, 51}: "close-ok", {10, 60}: "blocked", {10, 61}: "unblocked",
	{20, 10}: "open", {20, 11}: "open-ok", {20, 20}: "flow", {20, 21}: "flow-ok",
	{20, 40}: "close", {20, 41}: "close-ok",
	{40, 10}: "declare", {40, 11}: "declare-ok", {40, 20}: "delete", {40, 21}: "delete-ok",
	{40, 30}: "bind", {40, 31}: "bind-ok", {40, 40}: "unbind", {40, 51}: "unbind-ok",
	{50, 10}: "declare", {50, 11}: "declare-ok", {50, 20}: "bind", {50, 21}: "bind-ok",
	{50, 30}: "purge", {50, 31}: "purge-ok", {50, 40}: "delete", {50, 41}: "delete-ok",
	{50, 50}: "unbind", {50, 51}: "unbind-ok",
	{60, 10}: "qos", {60, 11}: "qos-ok", {60, 20}: "consume", {60, 21}: "consume-ok",
	{60, 30}: "cancel", {60, 31}: "cancel-ok", {60, 40}: "publish", {60, 50}: "return",
	{60, 60}: "deliver", {60, 70}: "get", {60, 71}: "get-ok", {60, 72}: "get-empty",
	{60, 80}: "ack", {60, 90}: "reject", {60, 100}: "recover-async", {60, 110}: "recover",
	{60, 111}: "recover-ok", {60, 120}: "nack",
	{85, 10}: "select", {85, 11}: "select-ok",
	{90, 10}: "select", {90, 11}: "select-ok", {90, 20}: "commit", {90, 21}: "commit-ok",
	{90, 30}: "rollback", {90, 31}: "rollback-ok",
}

// MethodName returns "class.method" for a method reference found in a close
// method. It returns "" for the zero reference.
func MethodName(classID, methodID uint16) string {
	if classID == 0 && methodID == 0 {
		return ""
	}
	class, ok := classNames[classID]
	if !ok {
		return fmt.Sprintf("%d.%d", classID, methodID)
	}
	method, ok := methodNames[[2]uint16{classID, methodID}]
	if !ok {
		return fmt.Sprintf("%s.%d", class, methodID)
	}
	return class + "." + method
}
