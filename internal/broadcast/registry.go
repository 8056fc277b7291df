package broadcast

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"traffic-telemetry/internal/platform/metrics"
)

// DefaultDeliveryTimeout bounds a single delivery to a single subscriber.
const DefaultDeliveryTimeout = 2 * time.Second

// SubscriberStats counts deliveries to one subscriber.
type SubscriberStats struct {
	Sent   uint64
	Failed uint64
}

// BroadcastResult summarises one BroadcastAll call.
type BroadcastResult struct {
	Delivered int
	Failed    int
	Removed   []string
}

type entry struct {
	sub    Subscriber
	sent   atomic.Uint64
	failed atomic.Uint64
}

// Registry is the concurrency-safe set of live subscribers. It is the sole
// authority on membership; it never closes subscriber transports.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry

	timeout time.Duration
	log     *slog.Logger
	metrics *metrics.Metrics
}

// NewRegistry returns an empty Registry. Each delivery is bounded by timeout;
// if timeout <= 0, DefaultDeliveryTimeout is used. Metrics may be nil.
func NewRegistry(timeout time.Duration, log *slog.Logger, m *metrics.Metrics) *Registry {
	if timeout <= 0 {
		timeout = DefaultDeliveryTimeout
	}
	return &Registry{
		entries: make(map[string]*entry),
		timeout: timeout,
		log:     log,
		metrics: m,
	}
}

// Add registers sub. It returns ErrSubscriberExists if the id is taken.
func (r *Registry) Add(sub Subscriber) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[sub.ID()]; exists {
		return ErrSubscriberExists
	}
	r.entries[sub.ID()] = &entry{sub: sub}
	return nil
}

// Remove deregisters the subscriber with the given id and reports whether it
// was present. Removing an absent id is a no-op.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[id]; !exists {
		return false
	}
	delete(r.entries, id)
	return true
}

// removeEntry deletes e only if it is still the registered entry for its id.
func (r *Registry) removeEntry(e *entry) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := e.sub.ID()
	if cur, exists := r.entries[id]; !exists || cur != e {
		return false
	}
	delete(r.entries, id)
	return true
}

// Len returns the number of registered subscribers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Stats returns a copy of the per-subscriber counters.
func (r *Registry) Stats() map[string]SubscriberStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]SubscriberStats, len(r.entries))
	for id, e := range r.entries {
		out[id] = SubscriberStats{Sent: e.sent.Load(), Failed: e.failed.Load()}
	}
	return out
}

// BroadcastAll delivers msg to every subscriber registered at call time.
// Deliveries run concurrently, each under its own timeout. A failed
// subscriber is removed and never affects delivery to the others.
func (r *Registry) BroadcastAll(ctx context.Context, msg *Message) BroadcastResult {
	r.mu.RLock()
	targets := make([]*entry, 0, len(r.entries))
	for _, e := range r.entries {
		targets = append(targets, e)
	}
	r.mu.RUnlock()

	errs := make([]error, len(targets))
	var g errgroup.Group
	for i, e := range targets {
		g.Go(func() error {
			dctx, cancel := context.WithTimeout(ctx, r.timeout)
			defer cancel()
			errs[i] = e.sub.Deliver(dctx, msg)
			return nil // failures are handled per subscriber below
		})
	}
	_ = g.Wait()

	var res BroadcastResult
	for i, e := range targets {
		if errs[i] == nil {
			e.sent.Add(1)
			res.Delivered++
			continue
		}

		e.failed.Add(1)
		res.Failed++
		if r.removeEntry(e) {
			res.Removed = append(res.Removed, e.sub.ID())
		}
		r.log.Warn("subscriber evicted after failed delivery",
			slog.String("subscriber_id", e.sub.ID()),
			slog.String("kind", msg.Kind()),
			slog.String("error", errs[i].Error()))
	}

	if r.metrics != nil {
		r.metrics.AddDeliveries(res.Delivered)
		r.metrics.AddDeliveryFailures(res.Failed)
	}
	return res
}
