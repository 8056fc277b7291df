package api

import (
	"time"

	"traffic-telemetry/internal/traffic"
)

// DetectionStatistics summarises the detections of one snapshot.
type DetectionStatistics struct {
	TotalJunctions     int     `json:"total_junctions"`
	TotalVehicles      int     `json:"total_vehicles"`
	AverageCongestion  float64 `json:"average_congestion"`
	DetectionAccuracy  float64 `json:"detection_accuracy"`
	TotalPedestrians   int     `json:"total_pedestrians"`
	CongestedJunctions int     `json:"congested_junctions"`
}

// DetectionsResponse is the body of GET /api/detections.
type DetectionsResponse struct {
	System     string                    `json:"system"`
	Timestamp  time.Time                 `json:"timestamp"`
	UpdateID   uint64                    `json:"update_id"`
	Statistics DetectionStatistics       `json:"statistics"`
	Detections []traffic.DetectionSample `json:"detections"`
}

// SignalNetworkMetrics summarises the signal plans of one snapshot.
type SignalNetworkMetrics struct {
	AverageCongestion          float64 `json:"average_congestion"`
	NetworkEfficiency          string  `json:"network_efficiency"`
	TotalSignalsOptimized      int     `json:"total_signals_optimized"`
	PredictedWaitTimeReduction string  `json:"predicted_wait_time_reduction"`
}

// SignalsResponse is the body of GET /api/signals.
type SignalsResponse struct {
	System          string               `json:"system"`
	Timestamp       time.Time            `json:"timestamp"`
	UpdateID        uint64               `json:"update_id"`
	NetworkMetrics  SignalNetworkMetrics `json:"network_metrics"`
	Recommendations []traffic.SignalPlan `json:"recommendations"`
}

// NetworkStats describes the static network.
type NetworkStats struct {
	TotalJunctions  int `json:"total_junctions"`
	TotalRoads      int `json:"total_roads"`
	AverageCapacity int `json:"average_capacity"`
}

// JunctionsResponse is the body of GET /api/junctions.
type JunctionsResponse struct {
	Junctions    []traffic.Junction `json:"junctions"`
	RoadNetwork  []traffic.Road     `json:"road_network"`
	NetworkStats NetworkStats       `json:"network_stats"`
}

// JunctionDetail is the body of GET /api/junctions/{junction_id}. Detection
// and Signal are nil before the first tick.
type JunctionDetail struct {
	Junction  traffic.Junction         `json:"junction"`
	Roads     []traffic.Road           `json:"roads"`
	UpdateID  uint64                   `json:"update_id,omitempty"`
	Detection *traffic.DetectionSample `json:"detection"`
	Signal    *traffic.SignalPlan      `json:"signal"`
}

// AnalyticsPoint is one synthetic historical observation.
type AnalyticsPoint struct {
	Timestamp  time.Time `json:"timestamp"`
	JunctionID string    `json:"junction_id"`
	Vehicles   int       `json:"vehicles"`
	Congestion float64   `json:"congestion"`
	Speed      float64   `json:"speed"`
}

// AnalyticsResponse is the body of GET /api/analytics.
type AnalyticsResponse struct {
	AnalyticsPeriodHours int              `json:"analytics_period_hours"`
	DataPoints           int              `json:"data_points"`
	Trend                string           `json:"trend"`
	PeakHour             int              `json:"peak_hour"`
	Data                 []AnalyticsPoint `json:"data"`
}

// ServiceInfo is the body of GET /.
type ServiceInfo struct {
	Message     string   `json:"message"`
	Version     string   `json:"version"`
	Description string   `json:"description"`
	Endpoints   []string `json:"endpoints"`
}
