package queue

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"
)

// KafkaQueue publishes and consumes messages on a single Kafka topic.
type KafkaQueue struct {
	client *kgo.Client
	topic  string
	log    *zap.Logger
}

// NewKafkaQueue connects to brokers. A non-empty group makes the client a
// consumer group member for Consume.
func NewKafkaQueue(brokers []string, topic, group string, log *zap.Logger) (*KafkaQueue, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka: no brokers configured")
	}
	if log == nil {
		log = zap.NewNop()
	}
	opts := []kgo.Opt{
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.AllowAutoTopicCreation(),
	}
	if group != "" {
		opts = append(opts, kgo.ConsumerGroup(group), kgo.ConsumeTopics(topic))
	}
	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, err
	}
	return &KafkaQueue{client: client, topic: topic, log: log}, nil
}

// Publish produces a message synchronously.
func (q *KafkaQueue) Publish(ctx context.Context, msg Message) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return q.client.ProduceSync(ctx, &kgo.Record{Key: []byte(msg.Type), Value: b}).FirstErr()
}

// Consume polls the topic until ctx is done.
func (q *KafkaQueue) Consume(ctx context.Context) (<-chan Message, error) {
	out := make(chan Message)
	go func() {
		defer close(out)
		for {
			fetches := q.client.PollFetches(ctx)
			if fetches.IsClientClosed() || ctx.Err() != nil {
				return
			}
			fetches.EachError(func(topic string, partition int32, err error) {
				q.log.Warn("kafka fetch failed", zap.String("topic", topic), zap.Int32("partition", partition), zap.Error(err))
			})
			iter := fetches.RecordIter()
			for !iter.Done() {
				rec := iter.Next()
				var msg Message
				if err := json.Unmarshal(rec.Value, &msg); err != nil {
					q.log.Warn("dropping malformed message", zap.Error(err))
					continue
				}
				select {
				case out <- msg:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// Close flushes and closes the client.
func (q *KafkaQueue) Close() {
	q.client.Close()
}
