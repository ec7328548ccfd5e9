package protocol

import (
	"bytes"
	"encoding/binary"
	"fmt"

	amqperr "github.com/maxpert/amqp-go-client/errors"
)

// contentHeaderSize is class-id(2) + weight(2) + body-size(8).
const contentHeaderSize = 12

// Content is a message travelling as one header frame plus zero or more body
// frames. DeliveryInfo is the method that announced the content on receipt
// (basic.deliver, basic.return or basic.get-ok) and is nil for outgoing
// content.
type Content struct {
	ClassID      uint16
	BodySize     uint64
	Body         []byte
	Properties   *Properties
	DeliveryInfo Method
}

// NewContent builds a complete outgoing content from a body.
func NewContent(body []byte, props *Properties) *Content {
	if props == nil {
		props = NewBasicProperties()
	}
	return &Content{
		ClassID:    props.ClassID,
		BodySize:   uint64(len(body)),
		Body:       body,
		Properties: props,
	}
}

// DecodeContentHeader parses a header frame payload into a content with an
// empty body. A non-zero weight is a protocol violation and yields no content.
func DecodeContentHeader(payload []byte) (*Content, error) {
	if len(payload) < contentHeaderSize {
		return nil, amqperr.NewFrameError(fmt.Sprintf("content header of %d bytes is too short", len(payload)), FrameHeader)
	}

	classID := binary.BigEndian.Uint16(payload[0:2])
	weight := binary.BigEndian.Uint16(payload[2:4])
	bodySize := binary.BigEndian.Uint64(payload[4:12])

	if weight != 0 {
		return nil, amqperr.NewProtocolError(amqperr.UnexpectedFrame,
			fmt.Sprintf("content header weight must be 0, got %d", weight), FrameHeader, classID, 0)
	}

	props, consumed, err := DecodeProperties(classID, payload[contentHeaderSize:])
	if err != nil {
		return nil, err
	}
	if extra := len(payload) - contentHeaderSize - consumed; extra != 0 {
		return nil, amqperr.NewSyntaxError(fmt.Sprintf("content header has %d bytes after its properties", extra))
	}

	return &Content{
		ClassID:    classID,
		BodySize:   bodySize,
		Body:       make([]byte, 0, clampCapacity(bodySize)),
		Properties: props,
	}, nil
}

// clampCapacity bounds the up-front allocation for a body; a hostile header
// can announce any size.
func clampCapacity(size uint64) int {
	const maxPrealloc = 1 << 20
	if size > maxPrealloc {
		return maxPrealloc
	}
	return int(size)
}

// EncodeHeader serializes the header frame payload: class, zero weight, body
// size and the property set.
func (c *Content) EncodeHeader() ([]byte, error) {
	props := c.Properties
	if props == nil {
		var err error
		if props, err = NewProperties(c.ClassID); err != nil {
			return nil, err
		}
	}
	encoded, err := props.Encode()
	if err != nil {
		return nil, err
	}

	out := make([]byte, contentHeaderSize+len(encoded))
	binary.BigEndian.PutUint16(out[0:2], c.ClassID)
	binary.BigEndian.PutUint16(out[2:4], 0)
	binary.BigEndian.PutUint64(out[4:12], c.BodySize)
	copy(out[contentHeaderSize:], encoded)
	return out, nil
}

// Complete reports whether the whole body has been received.
func (c *Content) Complete() bool {
	return uint64(len(c.Body)) == c.BodySize
}

// Append adds a body fragment. A fragment that would overrun the declared
// body size is rejected and the body is left untouched.
func (c *Content) Append(fragment []byte) error {
	if uint64(len(c.Body))+uint64(len(fragment)) > c.BodySize {
		return amqperr.NewProtocolError(amqperr.UnexpectedFrame,
			fmt.Sprintf("body frame of %d bytes overruns content: have %d of %d", len(fragment), len(c.Body), c.BodySize),
			FrameBody, c.ClassID, 0)
	}
	c.Body = append(c.Body, fragment...)
	return nil
}

// Equal compares class, size, body and properties. DeliveryInfo is ignored.
func (c *Content) Equal(other *Content) bool {
	if c == nil || other == nil {
		return c == other
	}
	return c.ClassID == other.ClassID &&
		c.BodySize == other.BodySize &&
		bytes.Equal(c.Body, other.Body) &&
		c.Properties.Equal(other.Properties)
}

// BodyFrames splits the body into chunks that fit in frames of frameMax
// bytes, leaving room for the 8 bytes of frame overhead.
func (c *Content) BodyFrames(frameMax uint32) [][]byte {
	chunk := int(frameMax) - frameOverhead
	if frameMax == 0 || chunk <= 0 {
		chunk = len(c.Body)
	}
	var chunks [][]byte
	for off := 0; off < len(c.Body); off += chunk {
		end := min(off+chunk, len(c.Body))
		chunks = append(chunks, c.Body[off:end])
	}
	return chunks
}
