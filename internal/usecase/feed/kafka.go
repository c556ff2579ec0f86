package feed

import (
	"context"

	feedv1 "github.com/muhammadchandra19/booksync/internal/domain/feed/v1"
	"github.com/muhammadchandra19/booksync/pkg/config"
	"github.com/muhammadchandra19/booksync/pkg/errors"
	"github.com/muhammadchandra19/booksync/pkg/logger"
	"github.com/segmentio/kafka-go"
)

// messageReader is the part of *kafka.Reader the KafkaReader uses.
type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// KafkaReader reads feed messages that were forwarded to a Kafka topic, one event per
// message value. The topic must keep each product on a single partition to preserve order.
type KafkaReader struct {
	kafkaReader messageReader
	logger      logger.Interface
}

var _ feedv1.Reader = (*KafkaReader)(nil)

// NewKafkaReader creates a consumer group reader for the configured feed topic.
func NewKafkaReader(cfg config.FeedKafkaConfig, log logger.Interface) *KafkaReader {
	kafkaReader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       cfg.Topic,
		GroupID:     cfg.GroupID,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafka.LastOffset,
	})

	return &KafkaReader{
		kafkaReader: kafkaReader,
		logger:      log,
	}
}

// logError is a helper method to log errors consistently
func (r *KafkaReader) logError(err error, operation string, fields ...logger.Field) {
	r.logger.Error(err, append(fields, logger.NewField("operation", operation))...)
}

// ReadEvent reads the next message from the topic and decodes it.
func (r *KafkaReader) ReadEvent(ctx context.Context) (*feedv1.Event, error) {
	msg, err := r.kafkaReader.ReadMessage(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		r.logError(err, "ReadMessage")
		return nil, errors.NewCodeTracer(errors.FeedReadError).Wrap(err)
	}

	event, err := feedv1.Decode(msg.Value)
	if err != nil {
		r.logError(err, "Decode",
			logger.NewField("partition", msg.Partition),
			logger.NewField("offset", msg.Offset),
		)
		return nil, errors.NewCodeTracer(errors.FeedDecodeError).Wrap(err)
	}

	return event, nil
}

// Close properly closes the Kafka reader.
func (r *KafkaReader) Close() error {
	if err := r.kafkaReader.Close(); err != nil {
		r.logError(err, "Close")
		return err
	}
	return nil
}
