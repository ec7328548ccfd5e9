package protocol

import (
	"bytes"
	"testing"

	amqperr "github.com/maxpert/amqp-go-client/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func marshal(t *testing.T, frames ...*Frame) []byte {
	t.Helper()
	var buf bytes.Buffer
	for _, f := range frames {
		data, err := f.MarshalBinary()
		require.NoError(t, err)
		buf.Write(data)
	}
	return buf.Bytes()
}

func TestFrameMarshalRoundTrip(t *testing.T) {
	frame := &Frame{Type: FrameMethod, Channel: 5, Payload: []byte{0, 60, 0, 40}}
	data, err := frame.MarshalBinary()
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 0, 5, 0, 0, 0, 4, 0, 60, 0, 40, FrameEnd}, data)

	var decoded Frame
	require.NoError(t, decoded.UnmarshalBinary(data))
	assert.Equal(t, byte(FrameMethod), decoded.Type)
	assert.Equal(t, uint16(5), decoded.Channel)
	assert.Equal(t, uint32(4), decoded.Size)
	assert.Equal(t, frame.Payload, decoded.Payload)
}

func TestFrameUnmarshalErrors(t *testing.T) {
	var f Frame
	assert.Error(t, f.UnmarshalBinary([]byte{1, 0}))
	assert.Error(t, f.UnmarshalBinary([]byte{1, 0, 0, 0, 0, 0, 2, 0, FrameEnd}), "size mismatch")

	err := f.UnmarshalBinary([]byte{1, 0, 0, 0, 0, 0, 0, 0xAB})
	assert.True(t, amqperr.IsProtocolError(err))
}

func TestReadWriteFrame(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, NewBodyFrame(3, []byte("body"))))
	require.NoError(t, WriteFrame(&buf, NewHeartbeatFrame()))

	f, err := ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, byte(FrameBody), f.Type)
	assert.Equal(t, uint16(3), f.Channel)
	assert.Equal(t, []byte("body"), f.Payload)

	f, err = ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, byte(FrameHeartbeat), f.Type)
	assert.Empty(t, f.Payload)

	_, err = ReadFrame(&buf)
	assert.Error(t, err)
}

func TestReadFrameBadEndByte(t *testing.T) {
	_, err := ReadFrame(bytes.NewReader([]byte{8, 0, 0, 0, 0, 0, 0, 0x00}))
	assert.Equal(t, amqperr.FrameError, amqperr.GetErrorCode(err))
}

func TestParseFrames(t *testing.T) {
	a := NewBodyFrame(1, []byte("first"))
	b := NewHeartbeatFrame()
	c := NewHeaderFrame(2, []byte{0, 60, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0})
	data := marshal(t, a, b, c)

	tests := []struct {
		name       string
		data       []byte
		wantFrames int
		wantUsed   int
	}{
		{"empty", nil, 0, 0},
		{"partial header", data[:3], 0, 0},
		{"first frame only", data[:len(data)-1], 2, 13 + 8},
		{"all frames", data, 3, len(data)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frames, used, err := ParseFrames(tt.data, FrameMinSize)
			require.NoError(t, err)
			assert.Len(t, frames, tt.wantFrames)
			assert.Equal(t, tt.wantUsed, used)
		})
	}
}

func TestParseFramesAdvancesByConsumedBytes(t *testing.T) {
	// Several frames far smaller than frame_max arrive in one read. Every one
	// of them must be parsed, and a second parse of the remainder must not
	// see any bytes twice.
	var frames []*Frame
	for i := 0; i < 50; i++ {
		frames = append(frames, NewBodyFrame(1, []byte{byte(i)}))
	}
	data := marshal(t, frames...)

	split := 7*9 + 4
	first, used, err := ParseFrames(data[:split], FrameMinSize)
	require.NoError(t, err)
	assert.Len(t, first, 7)
	assert.Equal(t, 7*9, used)

	rest := append(data[used:split:split], data[split:]...)
	second, used2, err := ParseFrames(rest, FrameMinSize)
	require.NoError(t, err)
	assert.Len(t, second, 43)
	assert.Equal(t, len(rest), used2)

	all := append(first, second...)
	for i, f := range all {
		assert.Equal(t, []byte{byte(i)}, f.Payload)
	}
}

func TestParseFramesOversize(t *testing.T) {
	data := marshal(t, NewBodyFrame(1, make([]byte, 200)))

	_, _, err := ParseFrames(data, 100)
	require.Error(t, err)
	assert.Equal(t, amqperr.FrameError, amqperr.GetErrorCode(err))

	frames, _, err := ParseFrames(data, 0)
	require.NoError(t, err)
	assert.Len(t, frames, 1)
}

func TestParseFramesBadEndByte(t *testing.T) {
	data := marshal(t, NewHeartbeatFrame(), NewBodyFrame(1, []byte("x")))
	data[len(data)-1] = 0

	frames, used, err := ParseFrames(data, FrameMinSize)
	require.Error(t, err)
	assert.Len(t, frames, 1)
	assert.Equal(t, 8, used)
}

func TestParseFramesServerProtocolHeader(t *testing.T) {
	frames, used, err := ParseFrames([]byte("AMQ"), FrameMinSize)
	require.NoError(t, err)
	assert.Empty(t, frames)
	assert.Zero(t, used)

	_, _, err = ParseFrames([]byte{'A', 'M', 'Q', 'P', 0, 0, 8, 0}, FrameMinSize)
	require.Error(t, err)
	assert.True(t, amqperr.IsConnectionError(err))
	assert.Contains(t, err.Error(), "server is 0.8.0")
}

func TestAppendFrameMatchesMarshal(t *testing.T) {
	frame := NewHeaderFrame(9, []byte{1, 2, 3})
	want, err := frame.MarshalBinary()
	require.NoError(t, err)

	var buf bytes.Buffer
	AppendFrame(&buf, frame)
	assert.Equal(t, want, buf.Bytes())
}
