package protocol

import (
	"encoding/binary"
	"testing"

	amqperr "github.com/maxpert/amqp-go-client/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContentHeaderRoundTrip(t *testing.T) {
	props := NewBasicProperties()
	require.NoError(t, props.Set(PropContentType, "text/plain"))
	require.NoError(t, props.Set(PropHeaders, Table{"k": "v"}))

	content := NewContent([]byte("hello world"), props)
	header, err := content.EncodeHeader()
	require.NoError(t, err)

	assert.Equal(t, uint16(ClassBasic), binary.BigEndian.Uint16(header[0:2]))
	assert.Equal(t, uint16(0), binary.BigEndian.Uint16(header[2:4]), "weight")
	assert.Equal(t, uint64(11), binary.BigEndian.Uint64(header[4:12]))

	decoded, err := DecodeContentHeader(header)
	require.NoError(t, err)
	assert.Equal(t, uint16(ClassBasic), decoded.ClassID)
	assert.Equal(t, uint64(11), decoded.BodySize)
	assert.Empty(t, decoded.Body)
	assert.False(t, decoded.Complete())
	assert.True(t, props.Equal(decoded.Properties))
}

func TestContentReassemblyAcrossBodyFrames(t *testing.T) {
	props := NewBasicProperties()
	require.NoError(t, props.Set(PropMessageID, "m-1"))
	header, err := NewContent([]byte("hello world"), props).EncodeHeader()
	require.NoError(t, err)

	content, err := DecodeContentHeader(header)
	require.NoError(t, err)

	require.NoError(t, content.Append([]byte("hello ")))
	assert.False(t, content.Complete())
	require.NoError(t, content.Append([]byte("world")))
	assert.True(t, content.Complete())

	assert.True(t, NewContent([]byte("hello world"), props).Equal(content))
}

func TestContentEmptyBodyIsComplete(t *testing.T) {
	header, err := NewContent(nil, nil).EncodeHeader()
	require.NoError(t, err)

	content, err := DecodeContentHeader(header)
	require.NoError(t, err)
	assert.True(t, content.Complete())
	assert.Nil(t, content.BodyFrames(FrameMinSize))
}

func TestContentAppendOverrun(t *testing.T) {
	content := &Content{ClassID: ClassBasic, BodySize: 4, Properties: NewBasicProperties()}
	require.NoError(t, content.Append([]byte("ab")))

	err := content.Append([]byte("cde"))
	require.Error(t, err)
	assert.True(t, amqperr.IsProtocolError(err))
	assert.Equal(t, amqperr.UnexpectedFrame, amqperr.GetErrorCode(err))
	assert.Equal(t, []byte("ab"), content.Body, "a rejected fragment leaves the body untouched")
}

func TestDecodeContentHeaderRejectsWeight(t *testing.T) {
	header := make([]byte, 14)
	binary.BigEndian.PutUint16(header[0:2], ClassBasic)
	binary.BigEndian.PutUint16(header[2:4], 1)

	content, err := DecodeContentHeader(header)
	require.Error(t, err)
	assert.Nil(t, content)
	assert.True(t, amqperr.IsProtocolError(err))
	assert.Equal(t, amqperr.UnexpectedFrame, amqperr.GetErrorCode(err))
}

func TestDecodeContentHeaderErrors(t *testing.T) {
	_, err := DecodeContentHeader([]byte{0, 60, 0, 0})
	assert.Equal(t, amqperr.FrameError, amqperr.GetErrorCode(err))

	unknown := make([]byte, 14)
	binary.BigEndian.PutUint16(unknown[0:2], 77)
	_, err = DecodeContentHeader(unknown)
	assert.Equal(t, amqperr.CommandInvalid, amqperr.GetErrorCode(err))
}

func TestDecodeContentHeaderRejectsTrailingBytes(t *testing.T) {
	props := NewBasicProperties()
	require.NoError(t, props.Set(PropContentType, "text/plain"))
	header, err := NewContent([]byte("hi"), props).EncodeHeader()
	require.NoError(t, err)

	_, err = DecodeContentHeader(header)
	require.NoError(t, err)

	_, err = DecodeContentHeader(append(header, 0x00, 0x01))
	require.Error(t, err)
	assert.True(t, amqperr.IsProtocolError(err))
	assert.Equal(t, amqperr.SyntaxError, amqperr.GetErrorCode(err))
}

func TestDecodeContentHeaderHugeBodySize(t *testing.T) {
	header := make([]byte, 14)
	binary.BigEndian.PutUint16(header[0:2], ClassBasic)
	binary.BigEndian.PutUint64(header[4:12], 1<<62)

	content, err := DecodeContentHeader(header)
	require.NoError(t, err)
	assert.Equal(t, uint64(1<<62), content.BodySize)
	assert.LessOrEqual(t, cap(content.Body), 1<<20)
}

func TestContentBodyFrames(t *testing.T) {
	body := make([]byte, 10000)
	for i := range body {
		body[i] = byte(i)
	}
	content := NewContent(body, nil)

	chunks := content.BodyFrames(FrameMinSize)
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], FrameMinSize-8)
	assert.Len(t, chunks[1], FrameMinSize-8)
	assert.Len(t, chunks[2], 10000-2*(FrameMinSize-8))

	var joined []byte
	for _, c := range chunks {
		joined = append(joined, c...)
	}
	assert.Equal(t, body, joined)

	assert.Len(t, content.BodyFrames(0), 1, "no limit means one frame")
}

func TestContentEqualIgnoresDeliveryInfo(t *testing.T) {
	a := NewContent([]byte("x"), nil)
	b := NewContent([]byte("x"), nil)
	b.DeliveryInfo = &BasicDeliverMethod{ConsumerTag: "ctag", DeliveryTag: 1}

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(NewContent([]byte("y"), nil)))
	assert.False(t, a.Equal(nil))
}
