package eventpublisher

import (
	"context"

	"github.com/muhammadchandra19/booksync/internal/app/engine"
	"github.com/muhammadchandra19/booksync/pkg/config"
	"github.com/muhammadchandra19/booksync/pkg/errors"
	"github.com/muhammadchandra19/booksync/pkg/logger"
	"github.com/segmentio/kafka-go"
)

// messageWriter is the part of *kafka.Writer the Publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher forwards every consumed feed event, unchanged, to a Kafka topic keyed by
// product. It is an engine.Observer.
type Publisher struct {
	kafkaWriter messageWriter
	logger      logger.Interface
}

var _ engine.Observer = (*Publisher)(nil)

// NewPublisher creates a new Kafka publisher for raw feed events. Writes are asynchronous;
// failed batches are logged.
func NewPublisher(cfg config.EventPublisherConfig, log logger.Interface) *Publisher {
	kafkaWriter := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				log.Error(errors.NewCodeTracer(errors.EventPublishError).Wrap(err),
					logger.NewField("messages", len(messages)),
				)
			}
		},
	}

	return &Publisher{
		kafkaWriter: kafkaWriter,
		logger:      log,
	}
}

// Notify publishes the raw event of KindEvent notifications and ignores the rest.
func (p *Publisher) Notify(n engine.Notification) {
	if n.Kind != engine.KindEvent || n.Event == nil {
		return
	}

	if err := p.PublishEvent(context.Background(), n.ProductID, n.Event.Bytes); err != nil {
		p.logger.Error(err,
			logger.NewField("product_id", n.ProductID),
			logger.NewField("sequence", n.Sequence),
		)
	}
}

// PublishEvent writes the payload returned by encode to the topic under productID.
func (p *Publisher) PublishEvent(ctx context.Context, productID string, encode func() ([]byte, error)) error {
	value, err := encode()
	if err != nil {
		return errors.NewCodeTracer(errors.EventPublishError).Wrap(err)
	}

	msg := kafka.Message{
		Key:   []byte(productID),
		Value: value,
	}

	if err := p.kafkaWriter.WriteMessages(ctx, msg); err != nil {
		return errors.NewCodeTracer(errors.EventPublishError).Wrap(err)
	}
	return nil
}

// Close flushes pending messages and closes the writer.
func (p *Publisher) Close() error {
	return p.kafkaWriter.Close()
}
