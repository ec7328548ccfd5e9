package client

import (
	"errors"
	"sync/atomic"

	"github.com/Workiva/go-datastructures/queue"

	"github.com/maxpert/amqp-go-client/protocol"
)

// ErrMailboxClosed is returned when enqueueing to a closed mailbox
var ErrMailboxClosed = errors.New("mailbox is closed")

// mailbox is an unbounded FIFO of complete contents. The pump enqueues
// without ever blocking, so a slow consumer only costs memory and never
// stalls frame reception for the rest of the connection.
type mailbox struct {
	queue  *queue.Queue // Unbounded queue (Workiva/go-datastructures)
	closed atomic.Bool
	bytes  atomic.Int64 // Body bytes currently queued
	name   string       // Consumer tag or "returns", for logging
}

func newMailbox(name string, initialCapacity int) *mailbox {
	return &mailbox{
		queue: queue.New(int64(initialCapacity)),
		name:  name,
	}
}

// Enqueue adds a content to the mailbox. It never blocks.
func (m *mailbox) Enqueue(content *protocol.Content) error {
	if m.closed.Load() {
		return ErrMailboxClosed
	}
	if err := m.queue.Put(content); err != nil {
		return ErrMailboxClosed
	}
	m.bytes.Add(int64(len(content.Body)))
	return nil
}

// Dequeue removes the next content, blocking while the mailbox is empty.
// It returns (nil, false) once the mailbox has been closed.
func (m *mailbox) Dequeue() (*protocol.Content, bool) {
	if m.closed.Load() && m.queue.Empty() {
		return nil, false
	}

	items, err := m.queue.Get(1)
	if err != nil || len(items) == 0 {
		return nil, false
	}

	content := items[0].(*protocol.Content)
	m.bytes.Add(-int64(len(content.Body)))
	return content, true
}

// Close disposes the mailbox, dropping anything still queued and waking
// blocked Dequeue calls. It is safe to call Close multiple times.
func (m *mailbox) Close() {
	if m.closed.Swap(true) {
		return
	}
	m.queue.Dispose()
}

// Closed reports whether Close has been called.
func (m *mailbox) Closed() bool {
	return m.closed.Load()
}

// Len returns the number of queued contents.
func (m *mailbox) Len() int {
	return int(m.queue.Len())
}

// Bytes returns the body bytes currently queued.
func (m *mailbox) Bytes() int64 {
	return m.bytes.Load()
}
