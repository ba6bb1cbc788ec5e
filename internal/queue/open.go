package queue

import (
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Options selects and configures a queue backend.
type Options struct {
	Backend      string
	Redis        *redis.Client
	RedisKey     string
	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroup   string
	MemorySize   int
}

// Open builds the configured backend. The returned close func is never nil.
func Open(opts Options, log *zap.Logger) (Queue, func(), error) {
	noop := func() {}
	switch opts.Backend {
	case "", "memory":
		size := opts.MemorySize
		if size <= 0 {
			size = 64
		}
		return NewInMemory(size), noop, nil
	case "redis":
		if opts.Redis == nil {
			return nil, noop, fmt.Errorf("queue: redis backend needs a client")
		}
		return NewRedisQueue(opts.Redis, opts.RedisKey, log), noop, nil
	case "kafka":
		q, err := NewKafkaQueue(opts.KafkaBrokers, opts.KafkaTopic, opts.KafkaGroup, log)
		if err != nil {
			return nil, noop, err
		}
		return q, q.Close, nil
	}
	return nil, noop, fmt.Errorf("queue: unknown backend %q", opts.Backend)
}
