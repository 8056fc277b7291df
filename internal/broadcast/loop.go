package broadcast

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"traffic-telemetry/internal/platform/metrics"
	"traffic-telemetry/internal/traffic"
)

// DefaultInterval is the tick period of the broadcast loop.
const DefaultInterval = 3 * time.Second

// LoopConfig wires a Loop. Store, Metrics and Now are optional.
type LoopConfig struct {
	Builder     *traffic.Builder
	Subscribers *Registry
	Store       Store
	Interval    time.Duration
	Log         *slog.Logger
	Metrics     *metrics.Metrics
	Now         func() time.Time
}

// Loop builds one snapshot per tick and broadcasts it to every subscriber.
// It keeps ticking with zero subscribers.
type Loop struct {
	builder  *traffic.Builder
	subs     *Registry
	store    Store
	interval time.Duration
	log      *slog.Logger
	metrics  *metrics.Metrics
	now      func() time.Time

	tick atomic.Uint64
}

// NewLoop returns a Loop. If cfg.Interval <= 0, DefaultInterval is used.
func NewLoop(cfg LoopConfig) *Loop {
	l := &Loop{
		builder:  cfg.Builder,
		subs:     cfg.Subscribers,
		store:    cfg.Store,
		interval: cfg.Interval,
		log:      cfg.Log,
		metrics:  cfg.Metrics,
		now:      cfg.Now,
	}
	if l.interval <= 0 {
		l.interval = DefaultInterval
	}
	if l.store == nil {
		l.store = NewInMemoryStore()
	}
	if l.now == nil {
		l.now = time.Now
	}
	return l
}

// Run ticks immediately and then every interval until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	l.log.Info("broadcast loop started", slog.Duration("interval", l.interval))

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	l.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			l.log.Info("broadcast loop stopped", slog.Uint64("last_update_id", l.CurrentTick()))
			return nil
		case <-ticker.C:
			l.Tick(ctx)
		}
	}
}

// Tick runs one cycle: build, publish to the store, broadcast.
func (l *Loop) Tick(ctx context.Context) BroadcastResult {
	start := time.Now()

	id := l.tick.Add(1)
	at := l.now()
	snap := l.builder.Build(at.Hour(), at)
	u := Update{ID: id, Snapshot: snap}
	l.store.Save(u)

	res := l.subs.BroadcastAll(ctx, NewUpdateMessage(u, l.interval))

	if l.metrics != nil {
		l.metrics.ObserveTick(time.Since(start))
		l.metrics.SetNetwork(snap.Network.TotalVehicles, snap.Network.AverageCongestion)
		for _, s := range snap.Samples {
			l.metrics.SetJunctionCongestion(s.JunctionID, s.Congestion)
		}
	}

	l.log.Debug("tick broadcast",
		slog.Uint64("update_id", id),
		slog.Int("delivered", res.Delivered),
		slog.Int("failed", res.Failed),
		slog.Int("total_vehicles", snap.Network.TotalVehicles))
	return res
}

// Connect greets sub with the ready message and then registers it for
// updates. A subscriber whose greeting fails is never registered.
func (l *Loop) Connect(ctx context.Context, sub Subscriber) error {
	dctx, cancel := context.WithTimeout(ctx, l.subs.timeout)
	defer cancel()

	if err := sub.Deliver(dctx, NewReadyMessage(l.now())); err != nil {
		return fmt.Errorf("deliver ready message: %w", err)
	}
	if err := l.subs.Add(sub); err != nil {
		return fmt.Errorf("register subscriber %s: %w", sub.ID(), err)
	}

	l.log.Info("subscriber connected",
		slog.String("subscriber_id", sub.ID()),
		slog.Uint64("update_id", l.CurrentTick()),
		slog.Int("subscribers", l.subs.Len()))
	return nil
}

// Disconnect removes a subscriber. It is safe to call after the subscriber
// was already evicted.
func (l *Loop) Disconnect(id string) bool {
	removed := l.subs.Remove(id)
	if removed {
		l.log.Info("subscriber disconnected",
			slog.String("subscriber_id", id),
			slog.Int("subscribers", l.subs.Len()))
	}
	return removed
}

// Subscribers returns the number of registered subscribers.
func (l *Loop) Subscribers() int {
	return l.subs.Len()
}

// CurrentTick returns the id of the most recent tick, 0 before the first.
func (l *Loop) CurrentTick() uint64 {
	return l.tick.Load()
}

// Store returns the store the loop publishes to.
func (l *Loop) Store() Store {
	return l.store
}
