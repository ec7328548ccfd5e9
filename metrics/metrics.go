package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds all Prometheus metrics for the AMQP client
type Collector struct {
	// Connection metrics
	ConnectionsTotal  prometheus.Gauge
	ConnectionsOpened prometheus.Counter
	ConnectionsClosed prometheus.Counter

	// Channel metrics
	ChannelsTotal  prometheus.Gauge
	ChannelsOpened prometheus.Counter
	ChannelsClosed prometheus.Counter

	// Wire metrics
	FramesReceived *prometheus.CounterVec
	FramesSent     *prometheus.CounterVec
	BytesReceived  prometheus.Counter
	BytesSent      prometheus.Counter

	// Message metrics
	MessagesPublished      prometheus.Counter
	MessagesPublishedBytes prometheus.Counter
	MessagesDelivered      prometheus.Counter
	MessagesDeliveredBytes prometheus.Counter
	MessagesReturned       prometheus.Counter
	PublishConfirms        *prometheus.CounterVec

	// Consumer metrics
	ConsumersTotal prometheus.Gauge

	Errors *prometheus.CounterVec
}

// NewCollector registers the client metrics with the default registry.
func NewCollector(namespace string) *Collector {
	return NewCollectorWith(namespace, prometheus.DefaultRegisterer)
}

// NewCollectorWith registers the client metrics with reg.
func NewCollectorWith(namespace string, reg prometheus.Registerer) *Collector {
	if namespace == "" {
		namespace = "amqp_client"
	}
	factory := promauto.With(reg)

	return &Collector{
		// Connection metrics
		ConnectionsTotal: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_total",
			Help:      "Current number of open connections",
		}),
		ConnectionsOpened: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_opened_total",
			Help:      "Total number of connections that completed the handshake",
		}),
		ConnectionsClosed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_closed_total",
			Help:      "Total number of connections closed",
		}),

		// Channel metrics
		ChannelsTotal: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "channels_total",
			Help:      "Current number of open channels",
		}),
		ChannelsOpened: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "channels_opened_total",
			Help:      "Total number of channels opened",
		}),
		ChannelsClosed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "channels_closed_total",
			Help:      "Total number of channels closed",
		}),

		// Wire metrics
		FramesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_received_total",
			Help:      "Total number of frames received by type",
		}, []string{"type"}),
		FramesSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_sent_total",
			Help:      "Total number of frames sent by type",
		}, []string{"type"}),
		BytesReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_received_total",
			Help:      "Total bytes read from the transport",
		}),
		BytesSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_sent_total",
			Help:      "Total bytes written to the transport",
		}),

		// Message metrics
		MessagesPublished: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_published_total",
			Help:      "Total number of messages published",
		}),
		MessagesPublishedBytes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_published_bytes_total",
			Help:      "Total body bytes of messages published",
		}),
		MessagesDelivered: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_delivered_total",
			Help:      "Total number of messages delivered to consumers",
		}),
		MessagesDeliveredBytes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_delivered_bytes_total",
			Help:      "Total body bytes of messages delivered to consumers",
		}),
		MessagesReturned: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_returned_total",
			Help:      "Total number of mandatory messages returned as unroutable",
		}),
		PublishConfirms: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_confirms_total",
			Help:      "Total number of publisher confirms by outcome",
		}, []string{"outcome"}),

		// Consumer metrics
		ConsumersTotal: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "consumers_total",
			Help:      "Current number of active consumers",
		}),

		Errors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Total number of errors by kind",
		}, []string{"kind"}),
	}
}

// FrameTypeName returns the label used for a frame type.
func FrameTypeName(frameType byte) string {
	switch frameType {
	case 1:
		return "method"
	case 2:
		return "header"
	case 3:
		return "body"
	case 8:
		return "heartbeat"
	default:
		return "unknown"
	}
}

// RecordConnectionOpened increments the open counter and total
func (c *Collector) RecordConnectionOpened() {
	c.ConnectionsOpened.Inc()
	c.ConnectionsTotal.Inc()
}

// RecordConnectionClosed increments the close counter and decrements total
func (c *Collector) RecordConnectionClosed() {
	c.ConnectionsClosed.Inc()
	c.ConnectionsTotal.Dec()
}

// RecordChannelOpened increments the open counter and total
func (c *Collector) RecordChannelOpened() {
	c.ChannelsOpened.Inc()
	c.ChannelsTotal.Inc()
}

// RecordChannelClosed increments the close counter and decrements total
func (c *Collector) RecordChannelClosed() {
	c.ChannelsClosed.Inc()
	c.ChannelsTotal.Dec()
}

func (c *Collector) RecordFrameReceived(frameType byte) {
	c.FramesReceived.WithLabelValues(FrameTypeName(frameType)).Inc()
}

func (c *Collector) RecordFrameSent(frameType byte) {
	c.FramesSent.WithLabelValues(FrameTypeName(frameType)).Inc()
}

func (c *Collector) RecordBytesReceived(n int) {
	c.BytesReceived.Add(float64(n))
}

func (c *Collector) RecordBytesSent(n int) {
	c.BytesSent.Add(float64(n))
}

// RecordMessagePublished records a published message
func (c *Collector) RecordMessagePublished(size int) {
	c.MessagesPublished.Inc()
	c.MessagesPublishedBytes.Add(float64(size))
}

// RecordMessageDelivered records a delivered message
func (c *Collector) RecordMessageDelivered(size int) {
	c.MessagesDelivered.Inc()
	c.MessagesDeliveredBytes.Add(float64(size))
}

// RecordMessageReturned records a basic.return
func (c *Collector) RecordMessageReturned() {
	c.MessagesReturned.Inc()
}

// RecordPublishConfirmed records one basic.ack or basic.nack per message
func (c *Collector) RecordPublishConfirmed(acked bool) {
	outcome := "nack"
	if acked {
		outcome = "ack"
	}
	c.PublishConfirms.WithLabelValues(outcome).Inc()
}

// SetConsumers sets the number of active consumers
func (c *Collector) SetConsumers(count int) {
	c.ConsumersTotal.Set(float64(count))
}

// RecordError counts an error by kind, e.g. "protocol" or "transport"
func (c *Collector) RecordError(kind string) {
	c.Errors.WithLabelValues(kind).Inc()
}
