package client

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	amqperr "github.com/maxpert/amqp-go-client/errors"
	"github.com/maxpert/amqp-go-client/protocol"
)

var (
	// ErrChannelClosed is returned by operations on a channel that has been
	// closed cleanly.
	ErrChannelClosed = errors.New("amqp: channel closed")

	// ErrGetEmpty is returned by Get when the queue has no message.
	ErrGetEmpty = errors.New("amqp: queue is empty")

	// ErrNotConfirmMode is returned by WaitForConfirms before Confirm.
	ErrNotConfirmMode = errors.New("amqp: channel is not in confirm mode")
)

type channelState int

const (
	channelOpening channelState = iota
	channelOpen
	channelClosing
	channelClosed
)

// Queue is the result of queue.declare.
type Queue struct {
	Name      string
	Messages  int
	Consumers int
}

// rpcReply is the answer to a synchronous method. Content is set for
// basic.get-ok.
type rpcReply struct {
	method  protocol.Method
	content *protocol.Content
}

// call is one synchronous method waiting for its reply. The server answers
// synchronous methods in order, so calls form a FIFO. A call whose caller
// gave up stays in the FIFO until its reply arrives and is dropped then.
type call struct {
	expect    []protocol.Method
	reply     chan rpcReply
	abandoned bool
}

func (c *call) matches(m protocol.Method) bool {
	for _, e := range c.expect {
		if e.ClassID() == m.ClassID() && e.MethodID() == m.MethodID() {
			return true
		}
	}
	return false
}

// Channel is one AMQP channel. Synchronous methods are serialized: at most
// one is outstanding per channel.
type Channel struct {
	conn   *Connection
	id     uint16
	logger *zap.Logger

	rpcMu     sync.Mutex
	publishMu sync.Mutex

	mu    sync.Mutex
	state channelState
	err   error
	calls []*call

	// Content being reassembled: waiter is the method announcing it until
	// the header arrives, incoming the envelope until the body is complete.
	waiter   protocol.Method
	incoming *protocol.Content

	flowActive bool
	flowResume chan struct{}

	consumers   *multiplexer
	returns     *mailbox
	returnsOnce sync.Once
	returnsCh   chan *protocol.Content
	confirms    *confirms
	opened      bool

	done     chan struct{}
	doneOnce sync.Once
}

func newChannel(conn *Connection, id uint16) *Channel {
	ch := &Channel{
		conn:       conn,
		id:         id,
		logger:     conn.logger.With(zap.Uint16("channel_id", id)),
		state:      channelOpening,
		flowActive: true,
		returns:    newMailbox("returns", 16),
		done:       make(chan struct{}),
	}
	ch.consumers = newMultiplexer(ch)
	return ch
}

// ID returns the channel number.
func (ch *Channel) ID() uint16 {
	return ch.id
}

// Done is closed when the channel has closed.
func (ch *Channel) Done() <-chan struct{} {
	return ch.done
}

// Err returns the error that closed the channel, or nil while open or after
// a clean close.
func (ch *Channel) Err() error {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.err
}

func (ch *Channel) closedErr() error {
	if err := ch.Err(); err != nil {
		return err
	}
	return ErrChannelClosed
}

func (ch *Channel) open(ctx context.Context) error {
	if _, err := ch.call(ctx, &protocol.ChannelOpenMethod{}, &protocol.ChannelOpenOKMethod{}); err != nil {
		return err
	}
	ch.mu.Lock()
	if ch.state == channelOpening {
		ch.state = channelOpen
	}
	ch.opened = true
	ch.mu.Unlock()
	ch.conn.metrics.RecordChannelOpened()
	ch.logger.Debug("Channel opened")
	return nil
}

// Output

func (ch *Channel) sendMethod(method protocol.Method) error {
	return ch.conn.sendMethod(ch.id, method)
}

// send issues an asynchronous method on an open channel.
func (ch *Channel) send(method protocol.Method) error {
	ch.mu.Lock()
	state := ch.state
	ch.mu.Unlock()
	if state >= channelClosing {
		return ch.closedErr()
	}
	return ch.sendMethod(method)
}

// call sends a synchronous method and waits for one of the expected
// replies. Cancelling ctx abandons the wait; the late reply is discarded.
func (ch *Channel) call(ctx context.Context, req protocol.Method, expect ...protocol.Method) (rpcReply, error) {
	ch.rpcMu.Lock()
	defer ch.rpcMu.Unlock()

	c := &call{expect: expect, reply: make(chan rpcReply, 1)}

	ch.mu.Lock()
	if ch.state >= channelClosing {
		ch.mu.Unlock()
		return rpcReply{}, ch.closedErr()
	}
	ch.calls = append(ch.calls, c)
	ch.mu.Unlock()

	if err := ch.sendMethod(req); err != nil {
		ch.abandon(c)
		return rpcReply{}, err
	}

	select {
	case r := <-c.reply:
		return r, nil
	case <-ch.done:
		select {
		case r := <-c.reply:
			return r, nil
		default:
		}
		return rpcReply{}, ch.closedErr()
	case <-ctx.Done():
		ch.abandon(c)
		return rpcReply{}, ctx.Err()
	}
}

func (ch *Channel) abandon(c *call) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	c.abandoned = true
}

// reply hands a synchronous reply to the oldest outstanding call.
func (ch *Channel) reply(m protocol.Method, content *protocol.Content) error {
	ch.mu.Lock()
	if len(ch.calls) == 0 {
		ch.mu.Unlock()
		return amqperr.NewProtocolError(amqperr.UnexpectedFrame,
			fmt.Sprintf("%s with no call outstanding", protocol.MethodName(m)),
			protocol.FrameMethod, m.ClassID(), m.MethodID())
	}
	head := ch.calls[0]
	ch.calls = ch.calls[1:]
	abandoned := head.abandoned
	ch.mu.Unlock()

	if !head.matches(m) {
		return amqperr.NewProtocolError(amqperr.UnexpectedFrame,
			fmt.Sprintf("unexpected %s, waiting for %s", protocol.MethodName(m), protocol.MethodName(head.expect[0])),
			protocol.FrameMethod, m.ClassID(), m.MethodID())
	}
	if abandoned {
		ch.logger.Debug("Dropping reply to abandoned call", zap.String("method", protocol.MethodName(m)))
		return nil
	}
	head.reply <- rpcReply{method: m, content: content}
	return nil
}

// Input

// handleFrame runs on the pump goroutine.
func (ch *Channel) handleFrame(frame *protocol.Frame) error {
	switch frame.Type {
	case protocol.FrameMethod:
		method, err := protocol.ReadMethod(frame.Payload)
		if err != nil {
			return err
		}
		if ch.waiter != nil || ch.incoming != nil {
			ch.logger.Warn("Discarding incomplete content",
				zap.String("method", protocol.MethodName(method)))
			ch.waiter, ch.incoming = nil, nil
		}
		if protocol.HasContent(method) {
			ch.waiter = method
			return nil
		}
		return ch.handleMethod(method)

	case protocol.FrameHeader:
		if ch.waiter == nil {
			return amqperr.NewUnexpectedFrame(protocol.FrameMethod, frame.Type)
		}
		content, err := protocol.DecodeContentHeader(frame.Payload)
		if err != nil {
			ch.waiter = nil
			return err
		}
		content.DeliveryInfo = ch.waiter
		ch.waiter = nil
		if content.Complete() {
			return ch.dispatch(content)
		}
		ch.incoming = content
		return nil

	case protocol.FrameBody:
		if ch.incoming == nil {
			return amqperr.NewUnexpectedFrame(protocol.FrameHeader, frame.Type)
		}
		if err := ch.incoming.Append(frame.Payload); err != nil {
			return err
		}
		if !ch.incoming.Complete() {
			return nil
		}
		content := ch.incoming
		ch.incoming = nil
		return ch.dispatch(content)

	default:
		return amqperr.NewFrameError(fmt.Sprintf("unknown frame type %d", frame.Type), frame.Type)
	}
}

// dispatch routes a complete content by the method that announced it.
func (ch *Channel) dispatch(content *protocol.Content) error {
	if ch.closingOrClosed() {
		return nil
	}
	switch m := content.DeliveryInfo.(type) {
	case *protocol.BasicDeliverMethod:
		ch.conn.metrics.RecordMessageDelivered(len(content.Body))
		ch.consumers.deliver(m.ConsumerTag, content)
		return nil
	case *protocol.BasicReturnMethod:
		ch.conn.metrics.RecordMessageReturned()
		ch.logger.Debug("Message returned",
			zap.Uint16("reply_code", m.ReplyCode),
			zap.String("exchange", m.Exchange),
			zap.String("routing_key", m.RoutingKey))
		if err := ch.returns.Enqueue(content); err != nil {
			ch.logger.Debug("Dropping returned message", zap.Error(err))
		}
		return nil
	case *protocol.BasicGetOKMethod:
		return ch.reply(m, content)
	default:
		return amqperr.NewUnexpectedFrame(protocol.FrameMethod, protocol.FrameHeader)
	}
}

func (ch *Channel) closingOrClosed() bool {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.state >= channelClosing
}

func (ch *Channel) handleMethod(method protocol.Method) error {
	// After channel.close only close and close-ok matter.
	if ch.closingOrClosed() {
		switch method.(type) {
		case *protocol.ChannelCloseMethod, *protocol.ChannelCloseOKMethod:
		default:
			return nil
		}
	}

	switch m := method.(type) {
	case *protocol.ChannelCloseMethod:
		err := amqperr.NewServerChannelClose(ch.conn.id, ch.id, int(m.ReplyCode), m.ReplyText, m.ClassId, m.MethodId)
		ch.logger.Warn("Channel closed by server",
			zap.Uint16("reply_code", m.ReplyCode),
			zap.String("reply_text", m.ReplyText))
		_ = ch.sendMethod(&protocol.ChannelCloseOKMethod{})
		ch.shutdown(err)
		ch.conn.release(ch.id, ch)
		return nil

	case *protocol.ChannelCloseOKMethod:
		ch.shutdown(nil)
		ch.conn.release(ch.id, ch)
		return nil

	case *protocol.ChannelFlowMethod:
		// Pause before acknowledging, resume after.
		if !m.Active {
			ch.setFlow(false)
		}
		if err := ch.sendMethod(&protocol.ChannelFlowOKMethod{Active: m.Active}); err != nil {
			return err
		}
		ch.setFlow(m.Active)
		return nil

	case *protocol.BasicCancelMethod:
		ch.logger.Info("Consumer cancelled by server", zap.String("consumer_tag", m.ConsumerTag))
		ch.consumers.remove(m.ConsumerTag)
		if !m.NoWait {
			return ch.sendMethod(&protocol.BasicCancelOKMethod{ConsumerTag: m.ConsumerTag})
		}
		return nil

	case *protocol.BasicAckMethod:
		return ch.confirm(m.DeliveryTag, m.Multiple, true)

	case *protocol.BasicNackMethod:
		return ch.confirm(m.DeliveryTag, m.Multiple, false)

	default:
		return ch.reply(method, nil)
	}
}

func (ch *Channel) confirm(tag uint64, multiple, ack bool) error {
	ch.mu.Lock()
	confirms := ch.confirms
	ch.mu.Unlock()
	if confirms == nil {
		return amqperr.NewProtocolError(amqperr.UnexpectedFrame,
			"publisher confirm on a channel not in confirm mode", protocol.FrameMethod, protocol.ClassBasic, protocol.BasicAck)
	}
	n := confirms.resolve(tag, multiple, ack)
	for range n {
		ch.conn.metrics.RecordPublishConfirmed(ack)
	}
	return nil
}

func (ch *Channel) setFlow(active bool) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if active == ch.flowActive {
		return
	}
	ch.flowActive = active
	if active {
		close(ch.flowResume)
		ch.flowResume = nil
	} else {
		ch.flowResume = make(chan struct{})
	}
	ch.logger.Info("Channel flow changed", zap.Bool("active", active))
}

// waitFlow blocks while the server has paused publishing on this channel.
func (ch *Channel) waitFlow(ctx context.Context) error {
	for {
		ch.mu.Lock()
		resume := ch.flowResume
		ch.mu.Unlock()
		if resume == nil {
			return nil
		}
		select {
		case <-resume:
		case <-ch.done:
			return ch.closedErr()
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// shutdown runs once: it fails outstanding calls, disposes the consumer
// mailboxes and releases every waiter.
func (ch *Channel) shutdown(err error) {
	ch.doneOnce.Do(func() {
		ch.mu.Lock()
		ch.state = channelClosed
		ch.err = err
		ch.calls = nil
		ch.waiter, ch.incoming = nil, nil
		opened := ch.opened
		ch.mu.Unlock()

		ch.consumers.close()
		ch.returns.Close()
		close(ch.done)

		if opened {
			ch.conn.metrics.RecordChannelClosed()
		}
		if err != nil && !errors.Is(err, ErrClosed) {
			ch.logger.Debug("Channel terminated", zap.Error(err))
		}
	})
}

// Close performs the channel.close handshake with code 0 and empty text.
func (ch *Channel) Close(ctx context.Context) error {
	return ch.CloseWith(ctx, 0, "")
}

// CloseWith sends channel.close and waits for close-ok, bounded by ctx and
// the configured close timeout.
func (ch *Channel) CloseWith(ctx context.Context, code int, text string) error {
	if timeout := ch.conn.cfg.Connection.CloseTimeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	ch.mu.Lock()
	switch ch.state {
	case channelClosed:
		err := ch.err
		ch.mu.Unlock()
		if errors.Is(err, ErrClosed) {
			return nil
		}
		return err
	case channelClosing:
		ch.mu.Unlock()
	default:
		ch.state = channelClosing
		ch.mu.Unlock()
		if len(text) > 255 {
			text = text[:255]
		}
		if err := ch.sendMethod(&protocol.ChannelCloseMethod{
			ReplyCode: uint16(code),
			ReplyText: text,
		}); err != nil {
			ch.shutdown(err)
			return err
		}
	}

	select {
	case <-ch.done:
		return ch.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Flow asks the server to pause or resume deliveries on this channel.
func (ch *Channel) Flow(ctx context.Context, active bool) error {
	_, err := ch.call(ctx, &protocol.ChannelFlowMethod{Active: active}, &protocol.ChannelFlowOKMethod{})
	return err
}

// Exchange class

// ExchangeDeclare declares an exchange.
func (ch *Channel) ExchangeDeclare(ctx context.Context, name, kind string, durable, autoDelete, internal, noWait bool, args protocol.Table) error {
	return ch.exchangeDeclare(ctx, name, kind, false, durable, autoDelete, internal, noWait, args)
}

// ExchangeDeclarePassive checks that an exchange exists.
func (ch *Channel) ExchangeDeclarePassive(ctx context.Context, name, kind string, durable, autoDelete, internal, noWait bool, args protocol.Table) error {
	return ch.exchangeDeclare(ctx, name, kind, true, durable, autoDelete, internal, noWait, args)
}

func (ch *Channel) exchangeDeclare(ctx context.Context, name, kind string, passive, durable, autoDelete, internal, noWait bool, args protocol.Table) error {
	req := &protocol.ExchangeDeclareMethod{
		Exchange:   name,
		Type:       kind,
		Passive:    passive,
		Durable:    durable,
		AutoDelete: autoDelete,
		Internal:   internal,
		NoWait:     noWait,
		Arguments:  args,
	}
	if noWait {
		return ch.send(req)
	}
	_, err := ch.call(ctx, req, &protocol.ExchangeDeclareOKMethod{})
	return err
}

// ExchangeDelete deletes an exchange.
func (ch *Channel) ExchangeDelete(ctx context.Context, name string, ifUnused, noWait bool) error {
	req := &protocol.ExchangeDeleteMethod{Exchange: name, IfUnused: ifUnused, NoWait: noWait}
	if noWait {
		return ch.send(req)
	}
	_, err := ch.call(ctx, req, &protocol.ExchangeDeleteOKMethod{})
	return err
}

// ExchangeBind routes messages from source to destination. The server must
// support exchange to exchange bindings.
func (ch *Channel) ExchangeBind(ctx context.Context, destination, key, source string, noWait bool, args protocol.Table) error {
	if err := ch.require(CapabilityExchangeExchangeBindings); err != nil {
		return err
	}
	req := &protocol.ExchangeBindMethod{
		Destination: destination,
		Source:      source,
		RoutingKey:  key,
		NoWait:      noWait,
		Arguments:   args,
	}
	if noWait {
		return ch.send(req)
	}
	_, err := ch.call(ctx, req, &protocol.ExchangeBindOKMethod{})
	return err
}

// ExchangeUnbind removes an exchange to exchange binding.
func (ch *Channel) ExchangeUnbind(ctx context.Context, destination, key, source string, noWait bool, args protocol.Table) error {
	if err := ch.require(CapabilityExchangeExchangeBindings); err != nil {
		return err
	}
	req := &protocol.ExchangeUnbindMethod{
		Destination: destination,
		Source:      source,
		RoutingKey:  key,
		NoWait:      noWait,
		Arguments:   args,
	}
	if noWait {
		return ch.send(req)
	}
	_, err := ch.call(ctx, req, &protocol.ExchangeUnbindOKMethod{})
	return err
}

func (ch *Channel) require(capability string) error {
	if ch.conn.Capability(capability) {
		return nil
	}
	return amqperr.NewChannelError(amqperr.NotImplemented,
		fmt.Sprintf("server does not support %s", capability), ch.conn.id, ch.id)
}

// Queue class

// QueueDeclare declares a queue. An empty name asks the server for one.
func (ch *Channel) QueueDeclare(ctx context.Context, name string, durable, autoDelete, exclusive, noWait bool, args protocol.Table) (Queue, error) {
	return ch.queueDeclare(ctx, name, false, durable, autoDelete, exclusive, noWait, args)
}

// QueueDeclarePassive checks that a queue exists and reports its counts.
func (ch *Channel) QueueDeclarePassive(ctx context.Context, name string, durable, autoDelete, exclusive, noWait bool, args protocol.Table) (Queue, error) {
	return ch.queueDeclare(ctx, name, true, durable, autoDelete, exclusive, noWait, args)
}

func (ch *Channel) queueDeclare(ctx context.Context, name string, passive, durable, autoDelete, exclusive, noWait bool, args protocol.Table) (Queue, error) {
	req := &protocol.QueueDeclareMethod{
		Queue:      name,
		Passive:    passive,
		Durable:    durable,
		Exclusive:  exclusive,
		AutoDelete: autoDelete,
		NoWait:     noWait,
		Arguments:  args,
	}
	if noWait {
		return Queue{Name: name}, ch.send(req)
	}
	r, err := ch.call(ctx, req, &protocol.QueueDeclareOKMethod{})
	if err != nil {
		return Queue{}, err
	}
	ok := r.method.(*protocol.QueueDeclareOKMethod)
	return Queue{
		Name:      ok.Queue,
		Messages:  int(ok.MessageCount),
		Consumers: int(ok.ConsumerCount),
	}, nil
}

// QueueBind binds a queue to an exchange.
func (ch *Channel) QueueBind(ctx context.Context, name, key, exchange string, noWait bool, args protocol.Table) error {
	req := &protocol.QueueBindMethod{
		Queue:      name,
		Exchange:   exchange,
		RoutingKey: key,
		NoWait:     noWait,
		Arguments:  args,
	}
	if noWait {
		return ch.send(req)
	}
	_, err := ch.call(ctx, req, &protocol.QueueBindOKMethod{})
	return err
}

// QueueUnbind removes a binding.
func (ch *Channel) QueueUnbind(ctx context.Context, name, key, exchange string, args protocol.Table) error {
	_, err := ch.call(ctx, &protocol.QueueUnbindMethod{
		Queue:      name,
		Exchange:   exchange,
		RoutingKey: key,
		Arguments:  args,
	}, &protocol.QueueUnbindOKMethod{})
	return err
}

// QueuePurge removes all ready messages and reports how many there were.
func (ch *Channel) QueuePurge(ctx context.Context, name string, noWait bool) (int, error) {
	req := &protocol.QueuePurgeMethod{Queue: name, NoWait: noWait}
	if noWait {
		return 0, ch.send(req)
	}
	r, err := ch.call(ctx, req, &protocol.QueuePurgeOKMethod{})
	if err != nil {
		return 0, err
	}
	return int(r.method.(*protocol.QueuePurgeOKMethod).MessageCount), nil
}

// QueueDelete deletes a queue and reports how many messages it held.
func (ch *Channel) QueueDelete(ctx context.Context, name string, ifUnused, ifEmpty, noWait bool) (int, error) {
	req := &protocol.QueueDeleteMethod{Queue: name, IfUnused: ifUnused, IfEmpty: ifEmpty, NoWait: noWait}
	if noWait {
		return 0, ch.send(req)
	}
	r, err := ch.call(ctx, req, &protocol.QueueDeleteOKMethod{})
	if err != nil {
		return 0, err
	}
	return int(r.method.(*protocol.QueueDeleteOKMethod).MessageCount), nil
}

// Basic class

// Qos limits unacknowledged deliveries.
func (ch *Channel) Qos(ctx context.Context, prefetchCount, prefetchSize int, global bool) error {
	_, err := ch.call(ctx, &protocol.BasicQosMethod{
		PrefetchSize:  uint32(prefetchSize),
		PrefetchCount: uint16(prefetchCount),
		Global:        global,
	}, &protocol.BasicQosOKMethod{})
	return err
}

// Consume starts a consumer and returns its tag. An empty consumer tag is
// replaced by a generated one. Deliveries are read with ReceiveMessages.
func (ch *Channel) Consume(ctx context.Context, queue, consumer string, noAck, exclusive, noLocal, noWait bool, args protocol.Table) (string, error) {
	if consumer == "" {
		consumer = "ctag-" + uuid.NewString()
	}

	// Register before asking so deliveries that race the reply have a home.
	if err := ch.consumers.add(consumer); err != nil {
		return "", err
	}

	req := &protocol.BasicConsumeMethod{
		Queue:       queue,
		ConsumerTag: consumer,
		NoLocal:     noLocal,
		NoAck:       noAck,
		Exclusive:   exclusive,
		NoWait:      noWait,
		Arguments:   args,
	}
	if noWait {
		if err := ch.send(req); err != nil {
			ch.consumers.remove(consumer)
			return "", err
		}
		return consumer, nil
	}
	if _, err := ch.call(ctx, req, &protocol.BasicConsumeOKMethod{}); err != nil {
		ch.consumers.remove(consumer)
		return "", err
	}
	ch.logger.Debug("Consumer started", zap.String("consumer_tag", consumer), zap.String("queue", queue))
	return consumer, nil
}

// Cancel stops a consumer. The tag leaves the active set at once; anything
// still queued for it is dropped.
func (ch *Channel) Cancel(ctx context.Context, consumer string, noWait bool) error {
	ch.consumers.remove(consumer)
	req := &protocol.BasicCancelMethod{ConsumerTag: consumer, NoWait: noWait}
	if noWait {
		return ch.send(req)
	}
	_, err := ch.call(ctx, req, &protocol.BasicCancelOKMethod{})
	return err
}

// Publish sends a message. In confirm mode it returns the publish sequence
// number and blocks while the configured number of publishes is
// unconfirmed; otherwise it returns 0.
func (ch *Channel) Publish(ctx context.Context, exchange, key string, mandatory, immediate bool, msg *protocol.Content) (uint64, error) {
	if msg == nil {
		msg = protocol.NewContent(nil, nil)
	}
	if err := ch.waitFlow(ctx); err != nil {
		return 0, err
	}

	method, err := protocol.NewMethodFrame(ch.id, &protocol.BasicPublishMethod{
		Exchange:   exchange,
		RoutingKey: key,
		Mandatory:  mandatory,
		Immediate:  immediate,
	})
	if err != nil {
		return 0, err
	}
	header, err := msg.EncodeHeader()
	if err != nil {
		return 0, err
	}
	frames := []*protocol.Frame{method, protocol.NewHeaderFrame(ch.id, header)}
	for _, chunk := range msg.BodyFrames(ch.conn.FrameMax()) {
		frames = append(frames, protocol.NewBodyFrame(ch.id, chunk))
	}

	ch.publishMu.Lock()
	defer ch.publishMu.Unlock()

	if ch.closingOrClosed() {
		return 0, ch.closedErr()
	}

	ch.mu.Lock()
	confirms := ch.confirms
	ch.mu.Unlock()

	var seq uint64
	if confirms != nil {
		if seq, err = confirms.reserve(ctx, ch.done); err != nil {
			if errors.Is(err, ErrChannelClosed) {
				err = ch.closedErr()
			}
			return 0, err
		}
	}
	if err := ch.conn.send(frames...); err != nil {
		if confirms != nil {
			confirms.cancel(seq)
		}
		return 0, err
	}
	ch.conn.metrics.RecordMessagePublished(len(msg.Body))
	return seq, nil
}

// Get fetches one message, or returns ErrGetEmpty.
func (ch *Channel) Get(ctx context.Context, queue string, noAck bool) (*protocol.Content, error) {
	r, err := ch.call(ctx, &protocol.BasicGetMethod{Queue: queue, NoAck: noAck},
		&protocol.BasicGetOKMethod{}, &protocol.BasicGetEmptyMethod{})
	if err != nil {
		return nil, err
	}
	if _, empty := r.method.(*protocol.BasicGetEmptyMethod); empty {
		return nil, ErrGetEmpty
	}
	return r.content, nil
}

// Ack acknowledges a delivery, or every delivery up to tag when multiple.
func (ch *Channel) Ack(tag uint64, multiple bool) error {
	return ch.send(&protocol.BasicAckMethod{DeliveryTag: tag, Multiple: multiple})
}

// Nack rejects one or more deliveries.
func (ch *Channel) Nack(tag uint64, multiple, requeue bool) error {
	return ch.send(&protocol.BasicNackMethod{DeliveryTag: tag, Multiple: multiple, Requeue: requeue})
}

// Reject rejects one delivery.
func (ch *Channel) Reject(tag uint64, requeue bool) error {
	return ch.send(&protocol.BasicRejectMethod{DeliveryTag: tag, Requeue: requeue})
}

// Recover asks the server to redeliver unacknowledged messages.
func (ch *Channel) Recover(ctx context.Context, requeue bool) error {
	_, err := ch.call(ctx, &protocol.BasicRecoverMethod{Requeue: requeue}, &protocol.BasicRecoverOKMethod{})
	return err
}

// Returns delivers messages the server could not route. The channel is
// closed when this channel closes.
func (ch *Channel) Returns() <-chan *protocol.Content {
	ch.returnsOnce.Do(func() {
		ch.returnsCh = make(chan *protocol.Content)
		go func() {
			defer close(ch.returnsCh)
			for {
				content, ok := ch.returns.Dequeue()
				if !ok {
					return
				}
				select {
				case ch.returnsCh <- content:
				case <-ch.done:
					return
				}
			}
		}()
	})
	return ch.returnsCh
}

// Confirm class

// Confirm puts the channel in confirm mode. The server must support
// publisher confirms.
func (ch *Channel) Confirm(ctx context.Context, noWait bool) error {
	if err := ch.require(CapabilityPublisherConfirms); err != nil {
		return err
	}

	req := &protocol.ConfirmSelectMethod{NoWait: noWait}
	if noWait {
		// Acks may follow the first publish with no select-ok in between.
		ch.enableConfirms()
		return ch.send(req)
	}
	if _, err := ch.call(ctx, req, &protocol.ConfirmSelectOKMethod{}); err != nil {
		return err
	}
	ch.enableConfirms()
	return nil
}

func (ch *Channel) enableConfirms() {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if ch.confirms == nil {
		ch.confirms = newConfirms(ch.conn.cfg.Connection.MaxUnconfirmed)
	}
}

// WaitForConfirms blocks until every publish so far has been acked or
// nacked, and returns the nacked sequence numbers.
func (ch *Channel) WaitForConfirms(ctx context.Context) ([]uint64, error) {
	ch.mu.Lock()
	confirms := ch.confirms
	ch.mu.Unlock()
	if confirms == nil {
		return nil, ErrNotConfirmMode
	}
	return confirms.wait(ctx, ch.done, ch.closedErr)
}

// Tx class

// Tx puts the channel in transactional mode.
func (ch *Channel) Tx(ctx context.Context) error {
	_, err := ch.call(ctx, &protocol.TxSelectMethod{}, &protocol.TxSelectOKMethod{})
	return err
}

// TxCommit commits the current transaction.
func (ch *Channel) TxCommit(ctx context.Context) error {
	_, err := ch.call(ctx, &protocol.TxCommitMethod{}, &protocol.TxCommitOKMethod{})
	return err
}

// TxRollback abandons the current transaction.
func (ch *Channel) TxRollback(ctx context.Context) error {
	_, err := ch.call(ctx, &protocol.TxRollbackMethod{}, &protocol.TxRollbackOKMethod{})
	return err
}
