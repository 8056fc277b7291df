package broadcast

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestRegistry_Add_Remove(t *testing.T) {
	r := newTestRegistry(time.Second)

	if err := r.Add(newRecording("a")); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := r.Add(newRecording("a")); !errors.Is(err, ErrSubscriberExists) {
		t.Errorf("expected ErrSubscriberExists, got %v", err)
	}
	if r.Len() != 1 {
		t.Errorf("expected 1 subscriber, got %d", r.Len())
	}

	if !r.Remove("a") {
		t.Error("expected first remove to report removal")
	}
	if r.Len() != 0 {
		t.Errorf("expected 0 subscribers, got %d", r.Len())
	}
}

func TestRegistry_Remove_idempotent(t *testing.T) {
	r := newTestRegistry(time.Second)
	_ = r.Add(newRecording("a"))
	_ = r.Add(newRecording("b"))

	r.Remove("a")
	if r.Remove("a") {
		t.Error("second remove should be a no-op")
	}
	if r.Remove("never-added") {
		t.Error("removing an unknown id should be a no-op")
	}
	if r.Len() != 1 {
		t.Errorf("other subscribers affected: len %d", r.Len())
	}
	if _, ok := r.Stats()["b"]; !ok {
		t.Error("subscriber b should still be registered")
	}
}

func TestRegistry_BroadcastAll_isolates_failure(t *testing.T) {
	r := newTestRegistry(time.Second)

	const n = 5
	recs := make([]*recordingSubscriber, 0, n-1)
	for i := 0; i < n-1; i++ {
		s := newRecording(fmt.Sprintf("ok-%d", i))
		recs = append(recs, s)
		_ = r.Add(s)
	}
	bad := &failingSubscriber{id: "bad"}
	_ = r.Add(bad)

	msg := NewReadyMessage(time.Now())
	res := r.BroadcastAll(context.Background(), msg)

	if res.Delivered != n-1 || res.Failed != 1 {
		t.Errorf("expected %d delivered and 1 failed, got %+v", n-1, res)
	}
	if len(res.Removed) != 1 || res.Removed[0] != "bad" {
		t.Errorf("expected exactly bad removed, got %v", res.Removed)
	}
	if r.Len() != n-1 {
		t.Errorf("expected %d subscribers left, got %d", n-1, r.Len())
	}
	for _, s := range recs {
		got := s.messages()
		if len(got) != 1 || got[0] != msg {
			t.Errorf("%s: expected the shared message once, got %d", s.id, len(got))
		}
	}

	// Evicted subscribers receive nothing further.
	r.BroadcastAll(context.Background(), msg)
	if bad.calls != 1 {
		t.Errorf("evicted subscriber called %d times", bad.calls)
	}
}

func TestRegistry_BroadcastAll_slow_subscriber_does_not_block_others(t *testing.T) {
	r := newTestRegistry(50 * time.Millisecond)
	fast := newRecording("fast")
	_ = r.Add(fast)
	_ = r.Add(&blockingSubscriber{id: "slow"})

	start := time.Now()
	res := r.BroadcastAll(context.Background(), NewReadyMessage(time.Now()))
	elapsed := time.Since(start)

	if elapsed > time.Second {
		t.Errorf("broadcast took %v; slow subscriber was not bounded", elapsed)
	}
	if len(fast.messages()) != 1 {
		t.Error("fast subscriber did not receive the message")
	}
	if res.Delivered != 1 || len(res.Removed) != 1 || res.Removed[0] != "slow" {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestRegistry_BroadcastAll_empty(t *testing.T) {
	r := newTestRegistry(time.Second)
	res := r.BroadcastAll(context.Background(), NewReadyMessage(time.Now()))
	if res.Delivered != 0 || res.Failed != 0 || len(res.Removed) != 0 {
		t.Errorf("expected empty result, got %+v", res)
	}
}

func TestRegistry_Stats(t *testing.T) {
	r := newTestRegistry(time.Second)
	_ = r.Add(newRecording("a"))

	for i := 0; i < 3; i++ {
		r.BroadcastAll(context.Background(), NewReadyMessage(time.Now()))
	}
	if got := r.Stats()["a"]; got.Sent != 3 || got.Failed != 0 {
		t.Errorf("expected 3 sent, got %+v", got)
	}
}

func TestRegistry_concurrent_mutation_during_broadcast(t *testing.T) {
	r := newTestRegistry(time.Second)
	ctx := context.Background()
	msg := NewReadyMessage(time.Now())

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				id := fmt.Sprintf("w%d-%d", w, i)
				_ = r.Add(newRecording(id))
				if i%2 == 0 {
					r.Remove(id)
				}
			}
		}(w)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			r.BroadcastAll(ctx, msg)
		}
	}()
	wg.Wait()

	if r.Len() != 200 {
		t.Errorf("expected 200 subscribers, got %d", r.Len())
	}
}
