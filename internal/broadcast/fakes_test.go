package broadcast

import (
	"context"
	"errors"
	"sync"
	"time"

	"traffic-telemetry/internal/platform/logger"
	"traffic-telemetry/internal/traffic"
)

var errBroken = errors.New("broken pipe")

// recordingSubscriber keeps every delivered message.
type recordingSubscriber struct {
	id string

	mu   sync.Mutex
	msgs []*Message
}

func newRecording(id string) *recordingSubscriber {
	return &recordingSubscriber{id: id}
}

func (s *recordingSubscriber) ID() string { return s.id }

func (s *recordingSubscriber) Deliver(_ context.Context, msg *Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, msg)
	return nil
}

func (s *recordingSubscriber) messages() []*Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Message, len(s.msgs))
	copy(out, s.msgs)
	return out
}

// failingSubscriber fails every delivery.
type failingSubscriber struct {
	id    string
	calls int
	mu    sync.Mutex
}

func (s *failingSubscriber) ID() string { return s.id }

func (s *failingSubscriber) Deliver(context.Context, *Message) error {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return errBroken
}

// blockingSubscriber waits until ctx expires.
type blockingSubscriber struct {
	id string
}

func (s *blockingSubscriber) ID() string { return s.id }

func (s *blockingSubscriber) Deliver(ctx context.Context, _ *Message) error {
	<-ctx.Done()
	return ctx.Err()
}

func newTestRegistry(timeout time.Duration) *Registry {
	return NewRegistry(timeout, logger.Discard(), nil)
}

func newTestLoop(subs *Registry, store Store) *Loop {
	rng := traffic.NewRand(1)
	builder := traffic.NewBuilder(traffic.DefaultRegistry(), traffic.NewSimulatedGenerator(rng), traffic.NewRuleOptimizer(rng))
	return NewLoop(LoopConfig{
		Builder:     builder,
		Subscribers: subs,
		Store:       store,
		Interval:    20 * time.Millisecond,
		Log:         logger.Discard(),
	})
}
