package protocol

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	amqperr "github.com/maxpert/amqp-go-client/errors"
)

// Frame types as defined in the AMQP specification
const (
	FrameMethod    = 1
	FrameHeader    = 2
	FrameBody      = 3
	FrameHeartbeat = 8
	FrameEnd       = 0xCE // Frame end marker byte
)

const (
	// frameHeaderSize is type(1) + channel(2) + size(4)
	frameHeaderSize = 7
	// frameOverhead is the header plus the end marker
	frameOverhead = frameHeaderSize + 1

	// FrameMinSize is the frame_max every peer must accept, and the value in
	// force until connection.tune has been negotiated.
	FrameMinSize = 4096
)

// ProtocolHeader opens every AMQP 0-9-1 connection.
var ProtocolHeader = []byte{'A', 'M', 'Q', 'P', 0, 0, 9, 1}

// Frame represents an AMQP frame
type Frame struct {
	Type    byte
	Channel uint16
	Size    uint32
	Payload []byte
}

// MarshalBinary encodes a frame into binary format following AMQP 0.9.1 spec
// Format: (1-byte type) + (2-byte channel) + (4-byte size) + (size-byte payload) + (1-byte end: 0xCE)
func (f *Frame) MarshalBinary() ([]byte, error) {
	data := make([]byte, frameOverhead+len(f.Payload))

	data[0] = f.Type
	binary.BigEndian.PutUint16(data[1:3], f.Channel)
	binary.BigEndian.PutUint32(data[3:7], uint32(len(f.Payload)))
	copy(data[7:], f.Payload)
	data[7+len(f.Payload)] = FrameEnd

	return data, nil
}

// UnmarshalBinary decodes a frame from binary format
func (f *Frame) UnmarshalBinary(data []byte) error {
	if len(data) < frameOverhead {
		return fmt.Errorf("frame too short")
	}

	f.Type = data[0]
	f.Channel = binary.BigEndian.Uint16(data[1:3])
	payloadSize := binary.BigEndian.Uint32(data[3:7])

	if uint64(len(data)) != uint64(payloadSize)+frameOverhead {
		return fmt.Errorf("frame size mismatch: expected %d bytes but got %d", uint64(payloadSize)+frameOverhead, len(data))
	}

	if data[7+payloadSize] != FrameEnd {
		return amqperr.NewFrameError("invalid frame end-byte", f.Type)
	}

	f.Size = payloadSize
	f.Payload = make([]byte, f.Size)
	copy(f.Payload, data[7:7+f.Size])

	return nil
}

// ReadFrame reads a frame from an io.Reader
func ReadFrame(reader io.Reader) (*Frame, error) {
	var header [frameHeaderSize]byte
	if _, err := io.ReadFull(reader, header[:]); err != nil {
		return nil, err
	}

	frameType := header[0]
	channel := binary.BigEndian.Uint16(header[1:3])
	size := binary.BigEndian.Uint32(header[3:7])

	// Read the payload + end-byte
	payload := make([]byte, uint64(size)+1)
	if _, err := io.ReadFull(reader, payload); err != nil {
		return nil, err
	}

	if payload[size] != FrameEnd {
		return nil, amqperr.NewFrameError("invalid frame end-byte", frameType)
	}

	return &Frame{
		Type:    frameType,
		Channel: channel,
		Size:    size,
		Payload: payload[:size],
	}, nil
}

// WriteFrame writes a frame to an io.Writer through a pooled buffer so the
// frame reaches the writer in a single Write call.
func WriteFrame(writer io.Writer, frame *Frame) error {
	buf := getBuffer()
	defer putBuffer(buf)

	AppendFrame(buf, frame)

	_, err := buf.WriteTo(writer)
	return err
}

// AppendFrame serializes a frame onto buf.
func AppendFrame(buf *bytes.Buffer, frame *Frame) {
	payloadLen := len(frame.Payload)
	buf.Grow(frameOverhead + payloadLen)

	buf.WriteByte(frame.Type)

	var header [6]byte
	binary.BigEndian.PutUint16(header[0:2], frame.Channel)
	binary.BigEndian.PutUint32(header[2:6], uint32(payloadLen))
	buf.Write(header[:])

	buf.Write(frame.Payload)
	buf.WriteByte(FrameEnd)
}

// ParseFrames decodes every complete frame at the start of data and reports
// how many bytes they occupied. A trailing partial frame is left for the
// next call. Frames whose payload exceeds frameMax are rejected; a frameMax
// of 0 disables the check.
//
// If data begins with "AMQP" the server has answered our protocol header
// with its own, meaning it rejected the version we asked for.
func ParseFrames(data []byte, frameMax uint32) ([]*Frame, int, error) {
	if bytes.HasPrefix(data, ProtocolHeader[:4]) {
		if len(data) < len(ProtocolHeader) {
			return nil, 0, nil
		}
		return nil, 0, amqperr.NewVersionMismatch("", data[5], data[6], data[7])
	}

	var frames []*Frame
	consumed := 0
	for {
		rest := data[consumed:]
		if len(rest) < frameHeaderSize {
			break
		}
		frameType := rest[0]
		size := binary.BigEndian.Uint32(rest[3:7])
		if frameMax > 0 && uint64(size)+frameOverhead > uint64(frameMax) {
			return frames, consumed, amqperr.NewFrameError(
				fmt.Sprintf("frame of %d bytes exceeds negotiated frame_max %d", uint64(size)+frameOverhead, frameMax), frameType)
		}
		total := int(size) + frameOverhead
		if len(rest) < total {
			break
		}
		if rest[total-1] != FrameEnd {
			return frames, consumed, amqperr.NewFrameError("invalid frame end-byte", frameType)
		}

		payload := make([]byte, size)
		copy(payload, rest[frameHeaderSize:frameHeaderSize+int(size)])
		frames = append(frames, &Frame{
			Type:    frameType,
			Channel: binary.BigEndian.Uint16(rest[1:3]),
			Size:    size,
			Payload: payload,
		})
		consumed += total
	}
	return frames, consumed, nil
}

// NewHeartbeatFrame returns the empty channel-0 heartbeat frame.
func NewHeartbeatFrame() *Frame {
	return &Frame{Type: FrameHeartbeat, Channel: 0}
}

// NewHeaderFrame wraps an encoded content header for a channel.
func NewHeaderFrame(channelID uint16, header []byte) *Frame {
	return &Frame{
		Type:    FrameHeader,
		Channel: channelID,
		Size:    uint32(len(header)),
		Payload: header,
	}
}

// NewBodyFrame wraps one body chunk for a channel.
func NewBodyFrame(channelID uint16, chunk []byte) *Frame {
	return &Frame{
		Type:    FrameBody,
		Channel: channelID,
		Size:    uint32(len(chunk)),
		Payload: chunk,
	}
}
