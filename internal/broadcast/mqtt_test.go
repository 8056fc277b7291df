package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"traffic-telemetry/internal/platform/logger"
)

// fakeToken is an mqtt.Token that completes immediately or never.
type fakeToken struct {
	done chan struct{}
	err  error
}

func newFakeToken(complete bool, err error) *fakeToken {
	t := &fakeToken{done: make(chan struct{}), err: err}
	if complete {
		close(t.done)
	}
	return t
}

func (t *fakeToken) Wait() bool { <-t.done; return true }

func (t *fakeToken) WaitTimeout(d time.Duration) bool {
	select {
	case <-t.done:
		return true
	case <-time.After(d):
		return false
	}
}

func (t *fakeToken) Done() <-chan struct{} { return t.done }

func (t *fakeToken) Error() error { return t.err }

type fakePublisher struct {
	token    mqtt.Token
	topic    string
	payloads [][]byte
}

func (p *fakePublisher) Publish(topic string, _ byte, _ bool, payload interface{}) mqtt.Token {
	p.topic = topic
	p.payloads = append(p.payloads, payload.([]byte))
	return p.token
}

func TestMQTTSubscriber_Deliver(t *testing.T) {
	pub := &fakePublisher{token: newFakeToken(true, nil)}
	sub := NewMQTTSubscriber(pub, "traffic/updates", 0)

	if err := sub.Deliver(context.Background(), NewReadyMessage(time.Now())); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if pub.topic != "traffic/updates" || len(pub.payloads) != 1 {
		t.Fatalf("unexpected publish: topic=%s n=%d", pub.topic, len(pub.payloads))
	}
	var doc ReadyPayload
	if err := json.Unmarshal(pub.payloads[0], &doc); err != nil || doc.Type != KindReady {
		t.Errorf("unexpected payload %s (%v)", pub.payloads[0], err)
	}
	if sub.ID() != "mqtt:traffic/updates" {
		t.Errorf("unexpected id %s", sub.ID())
	}
}

func TestMQTTSubscriber_Deliver_publish_error(t *testing.T) {
	boom := errors.New("not connected")
	sub := NewMQTTSubscriber(&fakePublisher{token: newFakeToken(true, boom)}, "t", 0)

	if err := sub.Deliver(context.Background(), NewReadyMessage(time.Now())); !errors.Is(err, boom) {
		t.Errorf("expected publish error, got %v", err)
	}
}

func TestMQTTSubscriber_Deliver_timeout(t *testing.T) {
	sub := NewMQTTSubscriber(&fakePublisher{token: newFakeToken(false, nil)}, "t", 1)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := sub.Deliver(ctx, NewReadyMessage(time.Now())); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestMQTTSubscriber_evicted_on_failure(t *testing.T) {
	r := newTestRegistry(time.Second)
	_ = r.Add(NewMQTTSubscriber(&fakePublisher{token: newFakeToken(true, errors.New("down"))}, "t", 0))
	_ = r.Add(newRecording("ws"))

	res := r.BroadcastAll(context.Background(), NewReadyMessage(time.Now()))
	if res.Delivered != 1 || len(res.Removed) != 1 || res.Removed[0] != "mqtt:t" {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestConnectMQTT_reregisters_after_eviction(t *testing.T) {
	subs := newTestRegistry(time.Second)
	l := newTestLoop(subs, nil)
	pub := &fakePublisher{token: newFakeToken(true, nil)}
	ctx := context.Background()

	if err := ConnectMQTT(ctx, l, pub, "traffic/updates", 0); err != nil {
		t.Fatalf("ConnectMQTT: %v", err)
	}
	if err := ConnectMQTT(ctx, l, pub, "traffic/updates", 0); err != nil {
		t.Fatalf("ConnectMQTT while registered: %v", err)
	}
	if subs.Len() != 1 {
		t.Fatalf("expected 1 subscriber, got %d", subs.Len())
	}

	pub.token = newFakeToken(true, errors.New("not connected"))
	if res := l.Tick(ctx); len(res.Removed) != 1 {
		t.Fatalf("expected eviction, got %+v", res)
	}
	if subs.Len() != 0 {
		t.Fatalf("expected 0 subscribers, got %d", subs.Len())
	}

	// Broker came back.
	pub.token = newFakeToken(true, nil)
	if err := ConnectMQTT(ctx, l, pub, "traffic/updates", 0); err != nil {
		t.Fatalf("ConnectMQTT after reconnect: %v", err)
	}
	n := len(pub.payloads)
	if res := l.Tick(ctx); res.Delivered != 1 {
		t.Fatalf("expected delivery after reconnect, got %+v", res)
	}
	if len(pub.payloads) != n+1 {
		t.Fatalf("expected one more publish, got %d", len(pub.payloads)-n)
	}
	var doc UpdatePayload
	if err := json.Unmarshal(pub.payloads[n], &doc); err != nil || doc.Type != KindUpdate {
		t.Errorf("unexpected payload %s (%v)", pub.payloads[n], err)
	}
}

func TestDialMQTT_unreachable_broker(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	connected := make(chan struct{}, 1)
	start := time.Now()
	_, err := DialMQTT(ctx, "127.0.0.1:1", "traffic-test", logger.Discard(), func(Publisher) {
		connected <- struct{}{}
	})
	if err == nil {
		t.Fatal("expected dial error")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("dial took %v, expected to honor the context deadline", elapsed)
	}
	select {
	case <-connected:
		t.Error("onConnect must not run for a failed dial")
	default:
	}
}
