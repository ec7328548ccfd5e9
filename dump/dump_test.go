package dump

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maxpert/amqp-go-client/protocol"
)

func deliveredContent(t *testing.T, body string) *protocol.Content {
	t.Helper()
	props := protocol.NewBasicProperties()
	require.NoError(t, props.Set(protocol.PropContentType, "application/json"))
	require.NoError(t, props.Set(protocol.PropMessageID, "m-"+body))
	require.NoError(t, props.Set(protocol.PropHeaders, protocol.Table{"attempt": int32(2)}))
	content := protocol.NewContent([]byte(body), props)
	content.DeliveryInfo = &protocol.BasicDeliverMethod{
		ConsumerTag: "ctag-1",
		DeliveryTag: 7,
		Redelivered: true,
		Exchange:    "orders",
		RoutingKey:  "orders.created",
	}
	return content
}

func TestFromContent(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600))

	tests := []struct {
		name string
		info protocol.Method
		want Record
	}{
		{
			name: "deliver",
			info: &protocol.BasicDeliverMethod{ConsumerTag: "c", DeliveryTag: 3, Redelivered: true, Exchange: "x", RoutingKey: "k"},
			want: Record{Exchange: "x", RoutingKey: "k", ConsumerTag: "c", DeliveryTag: 3, Redelivered: true},
		},
		{
			name: "get-ok",
			info: &protocol.BasicGetOKMethod{DeliveryTag: 9, Exchange: "x", RoutingKey: "k", MessageCount: 4},
			want: Record{Exchange: "x", RoutingKey: "k", DeliveryTag: 9},
		},
		{
			name: "return",
			info: &protocol.BasicReturnMethod{ReplyCode: 312, ReplyText: "NO_ROUTE", Exchange: "x", RoutingKey: "k"},
			want: Record{Exchange: "x", RoutingKey: "k"},
		},
		{
			name: "outgoing",
			want: Record{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content := protocol.NewContent([]byte("body"), nil)
			content.DeliveryInfo = tt.info

			rec, err := FromContent(content, at)
			require.NoError(t, err)
			assert.Equal(t, tt.want.Exchange, rec.Exchange)
			assert.Equal(t, tt.want.RoutingKey, rec.RoutingKey)
			assert.Equal(t, tt.want.ConsumerTag, rec.ConsumerTag)
			assert.Equal(t, tt.want.DeliveryTag, rec.DeliveryTag)
			assert.Equal(t, tt.want.Redelivered, rec.Redelivered)
			assert.Equal(t, time.UTC, rec.ReceivedAt.Location())
			assert.True(t, at.Equal(rec.ReceivedAt))
		})
	}
}

func TestRecordContentRoundTrip(t *testing.T) {
	original := deliveredContent(t, `{"id":1}`)
	rec, err := FromContent(original, time.Now())
	require.NoError(t, err)

	content, err := rec.Content()
	require.NoError(t, err)
	assert.True(t, original.Equal(content))
	assert.Nil(t, content.DeliveryInfo, "a replayed content is outgoing")
	assert.Equal(t, "m-{\"id\":1}", content.Properties.MessageID())
}

func TestRecordContentRejectsSizeMismatch(t *testing.T) {
	rec, err := FromContent(deliveredContent(t, "hello"), time.Now())
	require.NoError(t, err)

	rec.Body = []byte("hell")
	_, err = rec.Content()
	assert.Error(t, err)

	rec.Body = []byte("hello!")
	_, err = rec.Content()
	assert.Error(t, err)

	rec.Header = rec.Header[:4]
	_, err = rec.Content()
	assert.Error(t, err)
}

func TestWriterReader(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	at := time.Date(2024, 3, 1, 12, 0, 0, 123456789, time.UTC)
	bodies := []string{"a", "", "ccc"}
	for _, body := range bodies {
		rec, err := FromContent(deliveredContent(t, body), at)
		require.NoError(t, err)
		require.NoError(t, w.Write(rec))
	}
	assert.Equal(t, 3, w.Count())

	r := NewReader(&buf)
	for _, body := range bodies {
		rec, err := r.Next()
		require.NoError(t, err)
		assert.Equal(t, "orders", rec.Exchange)
		assert.Equal(t, uint64(7), rec.DeliveryTag)
		assert.True(t, at.Equal(rec.ReceivedAt), "timestamps keep nanoseconds")
		content, err := rec.Content()
		require.NoError(t, err)
		assert.Equal(t, body, string(content.Body))
	}
	_, err := r.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestReaderRejectsGarbage(t *testing.T) {
	_, err := NewReader(bytes.NewReader([]byte{0xff, 0x00, 0x01})).Next()
	require.Error(t, err)
	assert.NotErrorIs(t, err, io.EOF)
}

func TestFileIsRenamedOnClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deliveries"+FileExtension)
	f, err := Create(path)
	require.NoError(t, err)

	rec, err := FromContent(deliveredContent(t, "persisted"), time.Now())
	require.NoError(t, err)
	require.NoError(t, f.Write(rec))

	assert.NoFileExists(t, path, "the dump is invisible until closed")
	require.NoError(t, f.Close())
	assert.FileExists(t, path)
	_, err = os.Stat(path + TempFileExtension)
	assert.True(t, os.IsNotExist(err))

	r, closer, err := Open(path)
	require.NoError(t, err)
	defer closer.Close()
	got, err := r.Next()
	require.NoError(t, err)
	assert.Equal(t, []byte("persisted"), got.Body)
}
