package broadcast

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"traffic-telemetry/internal/traffic"
)

func TestParseEncoding(t *testing.T) {
	for in, want := range map[string]Encoding{"": EncodingJSON, "json": EncodingJSON, "msgpack": EncodingMsgpack} {
		got, err := ParseEncoding(in)
		if err != nil || got != want {
			t.Errorf("ParseEncoding(%q): expected %s, got %s (%v)", in, want, got, err)
		}
	}
	if _, err := ParseEncoding("xml"); err == nil {
		t.Error("expected error for xml")
	}
}

func testUpdate(t *testing.T) Update {
	t.Helper()
	rng := traffic.NewRand(3)
	b := traffic.NewBuilder(traffic.DefaultRegistry(), traffic.NewSimulatedGenerator(rng), traffic.NewRuleOptimizer(rng))
	return Update{ID: 9, Snapshot: b.Build(8, time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC))}
}

func TestUpdateMessage_json_document(t *testing.T) {
	msg := NewUpdateMessage(testUpdate(t), 3*time.Second)

	b, err := msg.Encode(EncodingJSON)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	var doc struct {
		Type     string `json:"type"`
		UpdateID uint64 `json:"update_id"`
		Metrics  struct {
			JunctionsMonitored int    `json:"junctions_monitored"`
			UpdateFrequency    string `json:"update_frequency"`
		} `json:"metrics"`
		Detections []map[string]any `json:"detections"`
		Signals    []struct {
			Phases []float64 `json:"phase_durations"`
		} `json:"signals"`
	}
	if err := json.Unmarshal(b, &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if doc.Type != KindUpdate || doc.UpdateID != 9 {
		t.Errorf("unexpected header: %s %d", doc.Type, doc.UpdateID)
	}
	if doc.Metrics.JunctionsMonitored != 5 || doc.Metrics.UpdateFrequency != "3 seconds" {
		t.Errorf("unexpected metrics: %+v", doc.Metrics)
	}
	if len(doc.Detections) != 5 || len(doc.Signals) != 5 || len(doc.Signals[0].Phases) != traffic.PhaseCount {
		t.Errorf("unexpected lists: %d detections, %d signals", len(doc.Detections), len(doc.Signals))
	}
	if _, ok := doc.Detections[0]["vehicle_types"]; !ok {
		t.Error("detections should carry vehicle_types")
	}
}

func TestMessage_Encode_cached(t *testing.T) {
	msg := NewReadyMessage(time.Now())
	a, err := msg.Encode(EncodingJSON)
	if err != nil {
		t.Fatal(err)
	}
	b, _ := msg.Encode(EncodingJSON)
	if &a[0] != &b[0] {
		t.Error("second encode should reuse cached bytes")
	}
	if _, err := msg.Encode(Encoding("xml")); err == nil {
		t.Error("expected error for unsupported encoding")
	}
}

func TestMessage_Encode_msgpack_uses_json_names(t *testing.T) {
	msg := NewUpdateMessage(testUpdate(t), time.Second)
	b, err := msg.Encode(EncodingMsgpack)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	var doc map[string]any
	if err := msgpack.Unmarshal(b, &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if doc["type"] != KindUpdate {
		t.Errorf("expected type %s, got %v", KindUpdate, doc["type"])
	}
	if _, ok := doc["update_id"]; !ok {
		t.Error("expected update_id key")
	}
	m, _ := doc["metrics"].(map[string]any)
	if m["update_frequency"] != "1 second" {
		t.Errorf("unexpected update_frequency %v", m["update_frequency"])
	}
}
