// Package dump records deliveries as a stream of CBOR records so they can be
// inspected or published again later.
package dump

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/maxpert/amqp-go-client/protocol"
)

const (
	// FileExtension is used for dump files written by the CLI.
	FileExtension     = ".cbor"
	TempFileExtension = ".tmp"
)

// Record is one captured delivery. Header holds the encoded content header
// (class, body size and property set) exactly as it travelled on the wire.
type Record struct {
	Exchange    string    `cbor:"exchange"`
	RoutingKey  string    `cbor:"routing_key"`
	ConsumerTag string    `cbor:"consumer_tag,omitempty"`
	DeliveryTag uint64    `cbor:"delivery_tag,omitempty"`
	Redelivered bool      `cbor:"redelivered,omitempty"`
	ReceivedAt  time.Time `cbor:"received_at"`
	Header      []byte    `cbor:"header"`
	Body        []byte    `cbor:"body"`
}

// FromContent captures a received content. The method that announced it
// supplies exchange, routing key and delivery details.
func FromContent(content *protocol.Content, receivedAt time.Time) (*Record, error) {
	header, err := content.EncodeHeader()
	if err != nil {
		return nil, fmt.Errorf("failed to encode content header: %w", err)
	}

	rec := &Record{
		ReceivedAt: receivedAt.UTC(),
		Header:     header,
		Body:       content.Body,
	}
	switch m := content.DeliveryInfo.(type) {
	case *protocol.BasicDeliverMethod:
		rec.Exchange, rec.RoutingKey = m.Exchange, m.RoutingKey
		rec.ConsumerTag, rec.DeliveryTag, rec.Redelivered = m.ConsumerTag, m.DeliveryTag, m.Redelivered
	case *protocol.BasicGetOKMethod:
		rec.Exchange, rec.RoutingKey = m.Exchange, m.RoutingKey
		rec.DeliveryTag, rec.Redelivered = m.DeliveryTag, m.Redelivered
	case *protocol.BasicReturnMethod:
		rec.Exchange, rec.RoutingKey = m.Exchange, m.RoutingKey
	}
	return rec, nil
}

// Content rebuilds an outgoing content from the record. The body must match
// the size announced in the header.
func (r *Record) Content() (*protocol.Content, error) {
	content, err := protocol.DecodeContentHeader(r.Header)
	if err != nil {
		return nil, err
	}
	if err := content.Append(r.Body); err != nil {
		return nil, err
	}
	if !content.Complete() {
		return nil, fmt.Errorf("record body has %d of %d bytes", len(content.Body), content.BodySize)
	}
	return content, nil
}

// encMode keeps ReceivedAt to the nanosecond; the default encodes whole
// seconds.
var encMode = func() cbor.EncMode {
	em, err := cbor.EncOptions{Time: cbor.TimeRFC3339Nano}.EncMode()
	if err != nil {
		panic(err)
	}
	return em
}()

// Writer appends records to a CBOR sequence. It is safe for concurrent use.
type Writer struct {
	mu  sync.Mutex
	enc *cbor.Encoder
	n   int
}

// NewWriter creates a writer on w
func NewWriter(w io.Writer) *Writer {
	return &Writer{enc: encMode.NewEncoder(w)}
}

// Write encodes one record
func (w *Writer) Write(rec *Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.enc.Encode(rec); err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	w.n++
	return nil
}

// Count returns how many records have been written
func (w *Writer) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.n
}

// Reader reads records back from a CBOR sequence.
type Reader struct {
	dec *cbor.Decoder
}

// NewReader creates a reader on r
func NewReader(r io.Reader) *Reader {
	return &Reader{dec: cbor.NewDecoder(r)}
}

// Next returns the next record, or io.EOF after the last one.
func (r *Reader) Next() (*Record, error) {
	var rec Record
	if err := r.dec.Decode(&rec); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("failed to unmarshal record: %w", err)
	}
	return &rec, nil
}

// File is a dump being written to disk. Records go to a temp file that is
// renamed into place on Close, so a reader never sees a half-written dump.
type File struct {
	*Writer
	path string
	tmp  *os.File
}

// Create starts a dump at path, creating parent directories as needed.
func Create(path string) (*File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}
	tmp, err := os.Create(path + TempFileExtension)
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	return &File{Writer: NewWriter(tmp), path: path, tmp: tmp}, nil
}

// Close syncs the temp file and renames it over path.
func (f *File) Close() error {
	if err := f.tmp.Sync(); err != nil {
		f.tmp.Close()
		os.Remove(f.tmp.Name())
		return fmt.Errorf("failed to sync dump: %w", err)
	}
	if err := f.tmp.Close(); err != nil {
		os.Remove(f.tmp.Name())
		return fmt.Errorf("failed to close dump: %w", err)
	}
	if err := os.Rename(f.tmp.Name(), f.path); err != nil {
		os.Remove(f.tmp.Name()) // Clean up on failure
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// Open reads a dump written by Create.
func Open(path string) (*Reader, io.Closer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open dump: %w", err)
	}
	return NewReader(f), f, nil
}
