package traffic

import (
	"encoding/json"
	"time"

	"github.com/paulmach/orb"
)

// JunctionType classifies the geometry of a monitored node.
type JunctionType string

const (
	Intersection JunctionType = "intersection"
	Roundabout   JunctionType = "roundabout"
	TJunction    JunctionType = "t-junction"
)

// Valid reports whether t is one of the known junction types.
func (t JunctionType) Valid() bool {
	switch t {
	case Intersection, Roundabout, TJunction:
		return true
	}
	return false
}

// Junction is a monitored node with a fixed vehicle capacity.
// Junctions are created once at startup and never mutated.
type Junction struct {
	ID       string
	Name     string
	Type     JunctionType
	Location orb.Point // lon, lat
	Capacity int
}

// Lat returns the junction latitude.
func (j Junction) Lat() float64 { return j.Location.Lat() }

// Lon returns the junction longitude.
func (j Junction) Lon() float64 { return j.Location.Lon() }

type junctionDoc struct {
	ID       string       `json:"id"`
	Name     string       `json:"name"`
	Type     JunctionType `json:"type"`
	Lat      float64      `json:"lat"`
	Lon      float64      `json:"lon"`
	Capacity int          `json:"capacity"`
}

// MarshalJSON encodes the junction with flat lat/lon fields.
func (j Junction) MarshalJSON() ([]byte, error) {
	return json.Marshal(junctionDoc{
		ID:       j.ID,
		Name:     j.Name,
		Type:     j.Type,
		Lat:      j.Lat(),
		Lon:      j.Lon(),
		Capacity: j.Capacity,
	})
}

// RoadType classifies a road segment between two junctions.
type RoadType string

const (
	Arterial  RoadType = "arterial"
	Collector RoadType = "collector"
	Local     RoadType = "local"
)

// Road connects two registered junctions.
type Road struct {
	ID       string   `json:"id"`
	Source   string   `json:"source"`
	Target   string   `json:"target"`
	LengthKm float64  `json:"length_km"`
	Lanes    int      `json:"lanes"`
	Type     RoadType `json:"type"`
}

// VehicleBreakdown is the per-category split of a detected vehicle count.
type VehicleBreakdown struct {
	Car        int `json:"car"`
	Motorcycle int `json:"motorcycle"`
	Bus        int `json:"bus"`
	Truck      int `json:"truck"`
	Emergency  int `json:"emergency"`
	Bicycle    int `json:"bicycle"`
}

// Total returns the sum of all categories.
func (b VehicleBreakdown) Total() int {
	return b.Car + b.Motorcycle + b.Bus + b.Truck + b.Emergency + b.Bicycle
}

// DetectionSample is one synthetic detection for a junction at a point in time.
type DetectionSample struct {
	JunctionID   string           `json:"junction_id"`
	JunctionName string           `json:"name"`
	Vehicles     int              `json:"vehicles"`
	Pedestrians  int              `json:"pedestrians"`
	Congestion   float64          `json:"congestion"`
	VehicleTypes VehicleBreakdown `json:"vehicle_types"`
	Timestamp    time.Time        `json:"timestamp"`
	Confidence   float64          `json:"detection_confidence"`
}

// Tier is the congestion bucket that drives base phase selection.
type Tier string

const (
	TierLow    Tier = "low"
	TierMedium Tier = "medium"
	TierHigh   Tier = "high"
)

// Action is the advisory tag attached to a signal plan.
type Action string

const (
	ActionExtendMainRoad     Action = "extend_main_road"
	ActionBalanced           Action = "balanced"
	ActionPedestrianPriority Action = "pedestrian_priority"
)

// PhaseCount is the number of phases of the signal controller model.
const PhaseCount = 4

// Phases holds the green time of each controller phase in seconds.
type Phases [PhaseCount]float64

// Sum returns the total of all phase durations.
func (p Phases) Sum() float64 {
	var total float64
	for _, d := range p {
		total += d
	}
	return total
}

// SignalPlan is a phase recommendation derived from one DetectionSample.
type SignalPlan struct {
	JunctionID          string    `json:"junction_id"`
	JunctionName        string    `json:"junction_name"`
	Tier                Tier      `json:"tier"`
	CurrentCongestion   float64   `json:"current_congestion"`
	PredictedCongestion float64   `json:"predicted_congestion"`
	Phases              Phases    `json:"phase_durations"`
	TotalCycleTime      float64   `json:"total_cycle_time"`
	Action              Action    `json:"action"`
	RecommendedAction   string    `json:"recommended_action"`
	OptimizationScore   float64   `json:"optimization_score"`
	Timestamp           time.Time `json:"timestamp"`
}
