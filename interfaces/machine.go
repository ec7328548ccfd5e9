package interfaces

import (
	"time"

	"github.com/maxpert/amqp-go-client/protocol"
)

// ProtocolMachine is the sans-IO side of a connection. It never touches the
// socket: a pump feeds it received bytes and drains the bytes it wants sent.
type ProtocolMachine interface {
	// DataToSend drains the bytes queued for the transport.
	DataToSend() []byte

	// ReceiveFrames parses the complete frames at the start of data and
	// reports how many bytes they used.
	ReceiveFrames(data []byte) ([]*protocol.Frame, int, error)

	// HandleFrame processes one frame. Frames arrive in wire order.
	HandleFrame(frame *protocol.Frame) error

	// FrameMax is the negotiated maximum frame size, 0 for no limit.
	FrameMax() uint32

	// Heartbeat is the negotiated heartbeat interval, 0 when disabled.
	Heartbeat() time.Duration

	// Alive reports whether the connection should keep being pumped.
	Alive() bool

	// Fail terminates the connection with err.
	Fail(err error)

	// Outbound fires when application goroutines queue data to send.
	Outbound() <-chan struct{}

	// Done is closed once the connection is no longer alive.
	Done() <-chan struct{}
}

// MetricsCollector receives client-side counters. Implementations must be
// safe for concurrent use.
type MetricsCollector interface {
	RecordConnectionOpened()
	RecordConnectionClosed()
	RecordChannelOpened()
	RecordChannelClosed()
	RecordFrameReceived(frameType byte)
	RecordFrameSent(frameType byte)
	RecordBytesReceived(n int)
	RecordBytesSent(n int)
	RecordMessagePublished(size int)
	RecordMessageDelivered(size int)
	RecordMessageReturned()
	RecordPublishConfirmed(acked bool)
	SetConsumers(count int)
	RecordError(kind string)
}
