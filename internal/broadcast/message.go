package broadcast

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"traffic-telemetry/internal/traffic"
)

// Encoding selects the wire format of a delivered message.
type Encoding string

const (
	EncodingJSON    Encoding = "json"
	EncodingMsgpack Encoding = "msgpack"
)

// ParseEncoding maps a query value to an Encoding. Empty means JSON.
func ParseEncoding(s string) (Encoding, error) {
	switch Encoding(s) {
	case "", EncodingJSON:
		return EncodingJSON, nil
	case EncodingMsgpack:
		return EncodingMsgpack, nil
	}
	return "", fmt.Errorf("unsupported encoding %q", s)
}

// Message kinds.
const (
	KindReady  = "system_ready"
	KindUpdate = "traffic_update"
)

// Message is one payload delivered to subscribers. It is encoded at most once
// per Encoding no matter how many subscribers receive it.
type Message struct {
	kind    string
	payload any

	mu      sync.Mutex
	encoded map[Encoding][]byte
}

func newMessage(kind string, payload any) *Message {
	return &Message{kind: kind, payload: payload, encoded: make(map[Encoding][]byte)}
}

// Kind returns KindReady or KindUpdate.
func (m *Message) Kind() string { return m.kind }

// Payload returns the unencoded document (*ReadyPayload or *UpdatePayload).
func (m *Message) Payload() any { return m.payload }

// Encode returns the cached wire bytes for enc, encoding on first use.
// The returned slice is shared and must not be modified.
func (m *Message) Encode(enc Encoding) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if b, ok := m.encoded[enc]; ok {
		return b, nil
	}

	var (
		b   []byte
		err error
	)
	switch enc {
	case EncodingJSON:
		b, err = json.Marshal(m.payload)
	case EncodingMsgpack:
		var buf bytes.Buffer
		e := msgpack.NewEncoder(&buf)
		e.SetCustomStructTag("json")
		err = e.Encode(m.payload)
		b = buf.Bytes()
	default:
		err = fmt.Errorf("unsupported encoding %q", enc)
	}
	if err != nil {
		return nil, fmt.Errorf("encode %s message: %w", m.kind, err)
	}

	m.encoded[enc] = b
	return b, nil
}

// ReadyPayload is sent once to every new subscriber before any update.
type ReadyPayload struct {
	Type       string            `json:"type"`
	Message    string            `json:"message"`
	Timestamp  time.Time         `json:"timestamp"`
	Components map[string]string `json:"components"`
}

// NewReadyMessage returns the connection greeting.
func NewReadyMessage(at time.Time) *Message {
	return newMessage(KindReady, &ReadyPayload{
		Type:      KindReady,
		Message:   "Traffic Control System Connected",
		Timestamp: at,
		Components: map[string]string{
			"yolo_detection": "active",
			"signal_control": "active",
			"data_stream":    "active",
		},
	})
}

// UpdateMetrics is the network summary carried by each update.
type UpdateMetrics struct {
	TotalVehicles      int     `json:"total_vehicles"`
	AverageCongestion  float64 `json:"average_congestion"`
	JunctionsMonitored int     `json:"junctions_monitored"`
	UpdateFrequency    string  `json:"update_frequency"`
}

// UpdatePayload is the per-tick document delivered to all subscribers.
type UpdatePayload struct {
	Type       string                    `json:"type"`
	UpdateID   uint64                    `json:"update_id"`
	Timestamp  time.Time                 `json:"timestamp"`
	Metrics    UpdateMetrics             `json:"metrics"`
	Detections []traffic.DetectionSample `json:"detections"`
	Signals    []traffic.SignalPlan      `json:"signals"`
}

// NewUpdateMessage wraps a published update. The snapshot slices are shared,
// not copied.
func NewUpdateMessage(u Update, interval time.Duration) *Message {
	snap := u.Snapshot
	return newMessage(KindUpdate, &UpdatePayload{
		Type:      KindUpdate,
		UpdateID:  u.ID,
		Timestamp: snap.Timestamp,
		Metrics: UpdateMetrics{
			TotalVehicles:      snap.Network.TotalVehicles,
			AverageCongestion:  traffic.Round(snap.Network.AverageCongestion, 3),
			JunctionsMonitored: snap.Network.JunctionsMonitored,
			UpdateFrequency:    formatInterval(interval),
		},
		Detections: snap.Samples,
		Signals:    snap.Plans,
	})
}

func formatInterval(d time.Duration) string {
	s := d.Seconds()
	if s == 1 {
		return "1 second"
	}
	return strconv.FormatFloat(s, 'f', -1, 64) + " seconds"
}
