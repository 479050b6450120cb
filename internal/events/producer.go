package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
)

const deliveryTimeout = 5 * time.Second

type Producer struct {
	writer *kafka.Writer
	topic  string
}

var _ Publisher = (*Producer)(nil)

func NewProducer(brokers []string, topic string) *Producer {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.LeastBytes{},
		RequiredAcks:           kafka.RequireOne,
		MaxAttempts:            3,
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
	return &Producer{writer: w, topic: topic}
}

func (p *Producer) message(ev Event) (kafka.Message, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("kafka: json.Marshal failed: %w", err)
	}
	return kafka.Message{
		Topic: p.topic,
		Key:   []byte(strconv.FormatUint(uint64(ev.UserID), 10)),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(ev.Type)},
		},
	}, nil
}

// Publish blocks until the broker acknowledges the event or the delivery
// timeout passes.
func (p *Producer) Publish(ctx context.Context, ev Event) error {
	msg, err := p.message(ev)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, deliveryTimeout)
	defer cancel()

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka: delivery failed: %w", err)
	}
	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
