package notification

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aristath/capitol/internal/domain"
	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/rs/zerolog"
)

// producer is the subset of *kafka.Producer the channel uses.
type producer interface {
	Produce(msg *kafka.Message, deliveryChan chan kafka.Event) error
	Events() chan kafka.Event
	Flush(timeoutMs int) int
	Close()
}

// KafkaChannel publishes recommendations as JSON to a topic, keyed by ticker.
type KafkaChannel struct {
	producer producer
	topic    string
	log      zerolog.Logger
	done     chan struct{}
}

// NewKafkaChannel connects a producer to brokers.
func NewKafkaChannel(brokers, topic string, log zerolog.Logger) (*KafkaChannel, error) {
	p, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": brokers,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}
	return newKafkaChannel(p, topic, log), nil
}

func newKafkaChannel(p producer, topic string, log zerolog.Logger) *KafkaChannel {
	c := &KafkaChannel{
		producer: p,
		topic:    topic,
		log:      log.With().Str("channel", "kafka").Str("topic", topic).Logger(),
		done:     make(chan struct{}),
	}
	go c.deliveryReports()
	return c
}

func (c *KafkaChannel) Name() string { return "kafka" }

// Deliver enqueues the message. Broker-side failures surface in the delivery report log.
func (c *KafkaChannel) Deliver(_ context.Context, rec domain.Recommendation) error {
	value, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode recommendation: %w", err)
	}
	topic := c.topic
	return c.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Key:            []byte(rec.Ticker),
		Value:          value,
	}, nil)
}

func (c *KafkaChannel) deliveryReports() {
	defer close(c.done)
	for e := range c.producer.Events() {
		if ev, ok := e.(*kafka.Message); ok && ev.TopicPartition.Error != nil {
			c.log.Error().Err(ev.TopicPartition.Error).Str("key", string(ev.Key)).Msg("Message delivery failed")
		}
	}
}

// Close flushes outstanding messages and closes the producer.
func (c *KafkaChannel) Close() {
	if remaining := c.producer.Flush(5000); remaining > 0 {
		c.log.Warn().Int("remaining", remaining).Msg("Kafka flush timed out")
	}
	c.producer.Close()
	<-c.done
	c.log.Info().Msg("Kafka producer closed")
}
