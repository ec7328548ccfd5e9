package client

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync"

	"go.uber.org/zap"

	"github.com/maxpert/amqp-go-client/protocol"
)

// resolved is a pending delivery that completed. ok is false when the
// mailbox was disposed because its consumer was cancelled.
type resolved struct {
	tag     string
	mailbox *mailbox
	content *protocol.Content
	ok      bool
}

// multiplexer fans the per-consumer mailboxes of one channel into a single
// stream. Every active tag has at most one pending delivery: a goroutine
// blocked on that tag's mailbox. Whichever resolves first is yielded next.
type multiplexer struct {
	ch *Channel

	mu     sync.Mutex
	active map[string]*mailbox // active consumer set
	armed  map[string]*mailbox // mailbox each tag's pending delivery waits on

	ready   chan resolved
	changed chan struct{} // membership changed
	recvMu  sync.Mutex
}

func newMultiplexer(ch *Channel) *multiplexer {
	return &multiplexer{
		ch:      ch,
		active:  make(map[string]*mailbox),
		armed:   make(map[string]*mailbox),
		ready:   make(chan resolved),
		changed: make(chan struct{}, 1),
	}
}

// add registers a consumer tag with an empty mailbox.
func (m *multiplexer) add(tag string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	select {
	case <-m.ch.done:
		return m.ch.closedErr()
	default:
	}
	if _, exists := m.active[tag]; exists {
		return fmt.Errorf("consumer tag %q already in use on channel %d", tag, m.ch.id)
	}
	m.active[tag] = newMailbox(tag, 64)
	m.ch.conn.adjustConsumers(1)
	m.signal()
	return nil
}

// remove drops a tag from the active set and disposes its mailbox. A
// pending delivery on that mailbox resolves as cancelled.
func (m *multiplexer) remove(tag string) {
	m.mu.Lock()
	mb, ok := m.active[tag]
	if ok {
		delete(m.active, tag)
	}
	m.mu.Unlock()
	if ok {
		mb.Close()
		m.ch.conn.adjustConsumers(-1)
		m.signal()
	}
}

// signal wakes a ReceiveMessages loop so it re-arms the active set.
func (m *multiplexer) signal() {
	select {
	case m.changed <- struct{}{}:
	default:
	}
}

// deliver queues a complete delivery for its consumer. It runs on the pump
// goroutine and never blocks.
func (m *multiplexer) deliver(tag string, content *protocol.Content) {
	m.mu.Lock()
	mb := m.active[tag]
	m.mu.Unlock()
	if mb == nil {
		m.ch.logger.Warn("Dropping delivery for inactive consumer",
			zap.String("consumer_tag", tag),
			zap.Int("body_size", len(content.Body)))
		return
	}
	if err := mb.Enqueue(content); err != nil {
		m.ch.logger.Debug("Dropping delivery for cancelled consumer", zap.String("consumer_tag", tag))
	}
}

// close cancels every consumer.
func (m *multiplexer) close() {
	m.mu.Lock()
	active := m.active
	m.active = make(map[string]*mailbox)
	m.mu.Unlock()
	for _, mb := range active {
		mb.Close()
		m.ch.conn.adjustConsumers(-1)
	}
}

// tags returns the active consumer tags.
func (m *multiplexer) tags() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	tags := make([]string, 0, len(m.active))
	for tag := range m.active {
		tags = append(tags, tag)
	}
	return tags
}

// arm makes sure every active tag has a pending delivery and reports
// whether any consumer is active.
func (m *multiplexer) arm() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for tag, mb := range m.active {
		if m.armed[tag] == mb {
			continue
		}
		m.armed[tag] = mb
		go m.await(tag, mb)
	}
	return len(m.active) > 0
}

// await is one pending delivery.
func (m *multiplexer) await(tag string, mb *mailbox) {
	content, ok := mb.Dequeue()
	if !ok {
		// Cancelled: nobody is owed anything.
		m.settle(resolved{tag: tag, mailbox: mb})
		return
	}
	select {
	case m.ready <- resolved{tag: tag, mailbox: mb, content: content, ok: true}:
	case <-m.ch.done:
	}
}

// settle retires the pending delivery behind r and reports whether r is
// still owed to an active consumer.
func (m *multiplexer) settle(r resolved) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.armed[r.tag] == r.mailbox {
		delete(m.armed, r.tag)
	}
	return r.ok && m.active[r.tag] == r.mailbox
}

// ConsumerTags returns the tags of the active consumers.
func (ch *Channel) ConsumerTags() []string {
	return ch.consumers.tags()
}

// ReceiveMessages yields deliveries from every active consumer on the
// channel, first ready first. Deliveries of one consumer keep their order.
// The sequence ends when no consumer is active or the channel closes; a
// channel closed by an error yields that error last. Breaking out of the
// loop loses nothing: ranging again resumes with the same pending set.
func (ch *Channel) ReceiveMessages(ctx context.Context) iter.Seq2[*protocol.Content, error] {
	return func(yield func(*protocol.Content, error) bool) {
		m := ch.consumers
		m.recvMu.Lock()
		defer m.recvMu.Unlock()

		closed := func() {
			if err := ch.Err(); err != nil && !isCleanClose(err) {
				yield(nil, err)
			}
		}

		for m.arm() {
			select {
			case r := <-m.ready:
				if !m.settle(r) {
					ch.logger.Debug("Dropping delivery for cancelled consumer", zap.String("consumer_tag", r.tag))
					continue
				}
				if deliver, ok := r.content.DeliveryInfo.(*protocol.BasicDeliverMethod); ok && deliver.ConsumerTag != r.tag {
					ch.logger.Warn("Delivery tagged for another consumer",
						zap.String("consumer_tag", r.tag),
						zap.String("delivery_consumer_tag", deliver.ConsumerTag))
				}
				if !yield(r.content, nil) {
					return
				}
			case <-m.changed:
			case <-ch.done:
				closed()
				return
			case <-ctx.Done():
				yield(nil, ctx.Err())
				return
			}
		}

		// No consumer is left; say why if the channel went down.
		select {
		case <-ch.done:
			closed()
		default:
		}
	}
}

func isCleanClose(err error) bool {
	return errors.Is(err, ErrClosed)
}
