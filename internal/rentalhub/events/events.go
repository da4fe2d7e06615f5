// Package events publishes rental lifecycle events.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/autopeer-io/roverhub/internal/rentalhub/core"
	"github.com/autopeer-io/roverhub/internal/rentalhub/core/model"
	"github.com/autopeer-io/roverhub/pkg/log"
	"github.com/autopeer-io/roverhub/pkg/options"
)

var (
	_ core.EventPublisher = (*LogPublisher)(nil)
	_ core.EventPublisher = (*KafkaPublisher)(nil)
)

// Publisher is an EventPublisher that holds resources.
type Publisher interface {
	core.EventPublisher
	Close() error
}

// New returns a Kafka publisher when brokers are configured, a log publisher
// otherwise.
func New(opts *options.KafkaOptions) (Publisher, error) {
	if len(opts.Brokers) == 0 {
		return NewLogPublisher(log.WithName("events")), nil
	}
	return NewKafkaPublisher(opts.Brokers, opts.Topic)
}

// LogPublisher writes events to the log.
type LogPublisher struct {
	logger log.Logger
}

func NewLogPublisher(logger log.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(_ context.Context, ev model.Event) error {
	p.logger.Info("Rental event", "type", ev.Type, "rental", ev.RentalID, "car", ev.CarID, "amount", ev.Amount.String())
	return nil
}

func (p *LogPublisher) Close() error { return nil }

// KafkaPublisher writes events as JSON, keyed by car so that the events of a
// car stay in one partition.
type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(brokers []string, topic string) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka publisher requires at least one broker")
	}
	if topic == "" {
		return nil, fmt.Errorf("kafka publisher requires a topic")
	}
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			RequiredAcks: kafka.RequireAll,
			Balancer:     &kafka.Hash{},
		},
	}, nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, ev model.Event) error {
	msg, err := Message(ev)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, msg)
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// Message encodes ev as a Kafka message.
func Message(ev model.Event) (kafka.Message, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encode %s event: %w", ev.Type, err)
	}
	return kafka.Message{
		Key:   []byte(ev.Key()),
		Value: payload,
		Time:  time.Now().UTC(),
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(ev.Type)},
		},
	}, nil
}
