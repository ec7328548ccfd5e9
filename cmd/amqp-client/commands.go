package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/maxpert/amqp-go-client/client"
	"github.com/maxpert/amqp-go-client/dump"
	"github.com/maxpert/amqp-go-client/protocol"
)

func publishCommand() *command {
	fs := flag.NewFlagSet("publish", flag.ExitOnError)
	var (
		exchange    = fs.String("exchange", "", "Exchange to publish to (default exchange if empty)")
		key         = fs.String("key", "", "Routing key")
		body        = fs.String("body", "", "Message body; read from -file or stdin when empty")
		bodyFile    = fs.String("file", "", "Read the message body from this file")
		count       = fs.Int("count", 1, "Number of copies to publish")
		contentType = fs.String("content-type", "text/plain", "Content type property")
		persistent  = fs.Bool("persistent", false, "Publish with delivery mode 2")
		mandatory   = fs.Bool("mandatory", false, "Ask the broker to return unroutable messages")
		confirm     = fs.Bool("confirm", true, "Wait for publisher confirms when the broker supports them")
	)

	run := func(ctx context.Context, conn *client.Connection, logger *zap.Logger) error {
		payload, err := readBody(*body, *bodyFile)
		if err != nil {
			return err
		}

		return client.WithChannel(ctx, conn, func(ctx context.Context, ch *client.Channel) error {
			useConfirms := *confirm && conn.Capability(client.CapabilityPublisherConfirms)
			if useConfirms {
				if err := ch.Confirm(ctx, false); err != nil {
					return err
				}
			}
			if *mandatory {
				go logReturns(ch, logger)
			}

			started := time.Now()
			for i := 0; i < *count; i++ {
				props := protocol.NewBasicProperties()
				if err := props.Set(protocol.PropContentType, *contentType); err != nil {
					return err
				}
				if err := props.Set(protocol.PropMessageID, uuid.NewString()); err != nil {
					return err
				}
				if err := props.Set(protocol.PropTimestamp, time.Now()); err != nil {
					return err
				}
				if *persistent {
					if err := props.Set(protocol.PropDeliveryMode, uint8(2)); err != nil {
						return err
					}
				}
				if _, err := ch.Publish(ctx, *exchange, *key, *mandatory, false, protocol.NewContent(payload, props)); err != nil {
					return err
				}
			}

			if useConfirms {
				nacked, err := ch.WaitForConfirms(ctx)
				if err != nil {
					return err
				}
				if len(nacked) > 0 {
					return fmt.Errorf("broker nacked %d of %d messages", len(nacked), *count)
				}
			}

			logger.Info("Published",
				zap.Int("messages", *count),
				zap.Int("body_bytes", len(payload)),
				zap.Bool("confirmed", useConfirms),
				zap.Duration("elapsed", time.Since(started)))
			return nil
		})
	}
	return &command{name: "publish", flags: fs, run: run}
}

func consumeCommand() *command {
	fs := flag.NewFlagSet("consume", flag.ExitOnError)
	var (
		queue    = fs.String("queue", "", "Queue to consume from (required)")
		count    = fs.Int("count", 0, "Stop after this many messages; 0 runs until interrupted")
		prefetch = fs.Int("prefetch", 100, "Prefetch count")
		noAck    = fs.Bool("no-ack", false, "Consume in no-ack mode")
		dumpPath = fs.String("dump", "", "Record deliveries to this CBOR file")
		quiet    = fs.Bool("quiet", false, "Do not print message bodies")
	)

	run := func(ctx context.Context, conn *client.Connection, logger *zap.Logger) error {
		if *queue == "" {
			return errors.New("consume: -queue is required")
		}

		var recorder *dump.File
		if *dumpPath != "" {
			f, err := dump.Create(*dumpPath)
			if err != nil {
				return err
			}
			recorder = f
			defer func() {
				if err := recorder.Close(); err != nil {
					logger.Error("Failed to finish dump", zap.String("path", *dumpPath), zap.Error(err))
					return
				}
				logger.Info("Dump written", zap.String("path", *dumpPath), zap.Int("records", recorder.Count()))
			}()
		}

		return client.WithChannel(ctx, conn, func(ctx context.Context, ch *client.Channel) error {
			if err := ch.Qos(ctx, *prefetch, 0, false); err != nil {
				return err
			}
			tag, err := ch.Consume(ctx, *queue, "", *noAck, false, false, false, nil)
			if err != nil {
				return err
			}
			logger.Info("Consuming", zap.String("queue", *queue), zap.String("consumer_tag", tag))

			received := 0
			for content, err := range ch.ReceiveMessages(ctx) {
				if err != nil {
					if errors.Is(err, context.Canceled) {
						return nil
					}
					return err
				}
				deliver := content.DeliveryInfo.(*protocol.BasicDeliverMethod)

				if recorder != nil {
					rec, err := dump.FromContent(content, time.Now())
					if err != nil {
						return err
					}
					if err := recorder.Write(rec); err != nil {
						return err
					}
				}
				if !*quiet {
					fmt.Printf("[%d] %s/%s %s\n", deliver.DeliveryTag, deliver.Exchange, deliver.RoutingKey, content.Body)
				}
				if !*noAck {
					if err := ch.Ack(deliver.DeliveryTag, false); err != nil {
						return err
					}
				}

				received++
				if *count > 0 && received >= *count {
					break
				}
			}
			logger.Info("Consumer finished", zap.Int("messages", received))
			return nil
		})
	}
	return &command{name: "consume", flags: fs, run: run}
}

func replayCommand() *command {
	fs := flag.NewFlagSet("replay", flag.ExitOnError)
	var (
		dumpPath = fs.String("dump", "", "CBOR file written by consume -dump (required)")
		exchange = fs.String("exchange", "", "Publish to this exchange instead of the recorded one")
		key      = fs.String("key", "", "Publish with this routing key instead of the recorded one")
		confirm  = fs.Bool("confirm", true, "Wait for publisher confirms when the broker supports them")
	)

	run := func(ctx context.Context, conn *client.Connection, logger *zap.Logger) error {
		if *dumpPath == "" {
			return errors.New("replay: -dump is required")
		}
		reader, closer, err := dump.Open(*dumpPath)
		if err != nil {
			return err
		}
		defer closer.Close()

		overrides := map[string]bool{}
		fs.Visit(func(f *flag.Flag) { overrides[f.Name] = true })

		return client.WithChannel(ctx, conn, func(ctx context.Context, ch *client.Channel) error {
			useConfirms := *confirm && conn.Capability(client.CapabilityPublisherConfirms)
			if useConfirms {
				if err := ch.Confirm(ctx, false); err != nil {
					return err
				}
			}

			replayed := 0
			for {
				rec, err := reader.Next()
				if errors.Is(err, io.EOF) {
					break
				}
				if err != nil {
					return err
				}
				content, err := rec.Content()
				if err != nil {
					return fmt.Errorf("record %d: %w", replayed+1, err)
				}

				target, routingKey := rec.Exchange, rec.RoutingKey
				if overrides["exchange"] {
					target = *exchange
				}
				if overrides["key"] {
					routingKey = *key
				}
				if _, err := ch.Publish(ctx, target, routingKey, false, false, content); err != nil {
					return err
				}
				replayed++
			}

			if useConfirms {
				nacked, err := ch.WaitForConfirms(ctx)
				if err != nil {
					return err
				}
				if len(nacked) > 0 {
					return fmt.Errorf("broker nacked %d of %d replayed messages", len(nacked), replayed)
				}
			}
			logger.Info("Replayed", zap.String("path", *dumpPath), zap.Int("messages", replayed))
			return nil
		})
	}
	return &command{name: "replay", flags: fs, run: run}
}

func readBody(body, path string) ([]byte, error) {
	switch {
	case body != "":
		return []byte(body), nil
	case path != "":
		return os.ReadFile(path)
	default:
		return io.ReadAll(os.Stdin)
	}
}

func logReturns(ch *client.Channel, logger *zap.Logger) {
	for content := range ch.Returns() {
		ret, ok := content.DeliveryInfo.(*protocol.BasicReturnMethod)
		if !ok {
			continue
		}
		logger.Warn("Message returned",
			zap.Uint16("reply_code", ret.ReplyCode),
			zap.String("reply_text", ret.ReplyText),
			zap.String("exchange", ret.Exchange),
			zap.String("routing_key", ret.RoutingKey),
			zap.String("message_id", content.Properties.MessageID()))
	}
}
