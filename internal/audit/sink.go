package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"geoattend/internal/queue"
)

// MessageType tags security events on the queue.
const MessageType = "security_event"

// QueueKey is the redis list security events are pushed to.
const QueueKey = "geoattend:security-events"

// recordTimeout bounds how long a sink may hold up the triggering request.
const recordTimeout = 2 * time.Second

// Sink receives security events. Record is fire-and-forget: failures are the
// sink's problem and are never reported back to the caller.
type Sink interface {
	Record(ctx context.Context, evt Event)
}

// StoreSink appends events directly to a repository.
type StoreSink struct {
	repo Repository
	log  *zap.Logger
}

// NewStoreSink creates a synchronous sink.
func NewStoreSink(repo Repository, log *zap.Logger) *StoreSink {
	if log == nil {
		log = zap.NewNop()
	}
	return &StoreSink{repo: repo, log: log}
}

// Record appends evt, logging any failure.
func (s *StoreSink) Record(ctx context.Context, evt Event) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()
	evt = normalize(evt)
	if err := s.repo.Append(ctx, evt); err != nil {
		s.log.Error("security event not persisted",
			zap.String("event_id", evt.ID),
			zap.String("kind", string(evt.Kind)),
			zap.String("user_id", evt.UserID),
			zap.Error(err))
	}
}

// QueueSink hands events to a queue for the worker to persist.
type QueueSink struct {
	q   queue.Queue
	log *zap.Logger
}

// NewQueueSink creates an asynchronous sink.
func NewQueueSink(q queue.Queue, log *zap.Logger) *QueueSink {
	if log == nil {
		log = zap.NewNop()
	}
	return &QueueSink{q: q, log: log}
}

// Record publishes evt, logging any failure.
func (s *QueueSink) Record(ctx context.Context, evt Event) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()
	evt = normalize(evt)
	msg, err := Encode(evt)
	if err == nil {
		err = s.q.Publish(ctx, msg)
	}
	if err != nil {
		s.log.Error("security event not queued",
			zap.String("event_id", evt.ID),
			zap.String("kind", string(evt.Kind)),
			zap.Error(err))
	}
}

// Encode wraps evt in a queue message.
func Encode(evt Event) (queue.Message, error) {
	b, err := json.Marshal(evt)
	if err != nil {
		return queue.Message{}, err
	}
	return queue.Message{Type: MessageType, Body: b}, nil
}

// Decode extracts an event from a queue message.
func Decode(msg queue.Message) (Event, error) {
	if msg.Type != MessageType {
		return Event{}, fmt.Errorf("unexpected message type %q", msg.Type)
	}
	var evt Event
	if err := json.Unmarshal(msg.Body, &evt); err != nil {
		return Event{}, err
	}
	return evt, nil
}

// Recorder keeps recorded events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Record appends evt.
func (r *Recorder) Record(_ context.Context, evt Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, normalize(evt))
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Count returns how many events of kind were recorded.
func (r *Recorder) Count(kind Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, evt := range r.events {
		if evt.Kind == kind {
			n++
		}
	}
	return n
}
