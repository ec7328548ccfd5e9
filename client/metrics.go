package client

import "github.com/maxpert/amqp-go-client/interfaces"

// NoOpMetricsCollector discards all metrics.
type NoOpMetricsCollector struct{}

var _ interfaces.MetricsCollector = NoOpMetricsCollector{}

func (NoOpMetricsCollector) RecordConnectionOpened()           {}
func (NoOpMetricsCollector) RecordConnectionClosed()           {}
func (NoOpMetricsCollector) RecordChannelOpened()              {}
func (NoOpMetricsCollector) RecordChannelClosed()              {}
func (NoOpMetricsCollector) RecordFrameReceived(byte)          {}
func (NoOpMetricsCollector) RecordFrameSent(byte)              {}
func (NoOpMetricsCollector) RecordBytesReceived(int)           {}
func (NoOpMetricsCollector) RecordBytesSent(int)               {}
func (NoOpMetricsCollector) RecordMessagePublished(int)        {}
func (NoOpMetricsCollector) RecordMessageDelivered(int)        {}
func (NoOpMetricsCollector) RecordMessageReturned()            {}
func (NoOpMetricsCollector) RecordPublishConfirmed(acked bool) {}
func (NoOpMetricsCollector) SetConsumers(int)                  {}
func (NoOpMetricsCollector) RecordError(string)                {}
