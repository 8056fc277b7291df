package api

import (
	"errors"
	"fmt"
	"math"
	"time"

	"traffic-telemetry/internal/broadcast"
	"traffic-telemetry/internal/traffic"
)

var (
	// ErrNoSnapshot is returned before the broadcast loop has published anything.
	ErrNoSnapshot = errors.New("no snapshot published yet")

	// ErrInvalidHours is returned for an analytics window outside 1..MaxAnalyticsHours.
	ErrInvalidHours = errors.New("hours out of range")
)

const (
	// DefaultAnalyticsHours is the analytics window when none is requested.
	DefaultAnalyticsHours = 24

	// MaxAnalyticsHours bounds the analytics window.
	MaxAnalyticsHours = 168

	analyticsStep      = 15 * time.Minute
	maxAnalyticsSteps  = 100
	maxAnalyticsPoints = 50

	analyticsStream = 0x5851f42d4c957f2d

	freeFlowSpeed   = 60.0
	congestedSpeed  = 20.0
	minWaitSavings  = 15
	waitSavingsSpan = 25
)

// Service answers on-demand queries from the latest published update. It
// never builds snapshots of its own and never waits for the broadcast loop.
type Service struct {
	registry  *traffic.Registry
	store     broadcast.Store
	generator traffic.SampleGenerator
	now       func() time.Time
}

// NewService returns a Service reading from store. The synthetic analytics
// history draws from its own random stream derived from seed, so queries never
// shift the samples of the broadcast loop. A zero seed is time-seeded.
func NewService(registry *traffic.Registry, store broadcast.Store, seed uint64) *Service {
	gen := traffic.NewSimulatedGenerator(traffic.NewRand(analyticsSeed(seed)))
	return &Service{registry: registry, store: store, generator: gen, now: time.Now}
}

func analyticsSeed(seed uint64) uint64 {
	if seed == 0 {
		return 0
	}
	if s := seed ^ analyticsStream; s != 0 {
		return s
	}
	return analyticsStream
}

// Info describes the service.
func (s *Service) Info() ServiceInfo {
	return ServiceInfo{
		Message:     "Intelligent Traffic Control System API",
		Version:     "1.0.0",
		Description: "Simulated detection + adaptive signal control",
		Endpoints: []string{
			"/api/detections - Latest vehicle detections",
			"/api/signals - Latest optimized signal timings",
			"/api/junctions - Traffic junction information",
			"/api/junctions/{junction_id} - One junction with its latest state",
			"/api/analytics - Synthetic traffic history",
			"/ws - WebSocket for live updates",
			"/metrics - Prometheus metrics",
		},
	}
}

// Detections returns the detections of the latest update.
func (s *Service) Detections() (DetectionsResponse, error) {
	u, ok := s.store.Latest()
	if !ok {
		return DetectionsResponse{}, ErrNoSnapshot
	}
	snap := u.Snapshot

	stats := DetectionStatistics{
		TotalJunctions:    snap.Network.JunctionsMonitored,
		TotalVehicles:     snap.Network.TotalVehicles,
		AverageCongestion: traffic.Round(snap.Network.AverageCongestion, 3),
		DetectionAccuracy: traffic.Round(snap.Network.AverageConfidence, 2),
	}
	for _, d := range snap.Samples {
		stats.TotalPedestrians += d.Pedestrians
		if traffic.TierFor(d.Congestion) == traffic.TierHigh {
			stats.CongestedJunctions++
		}
	}

	return DetectionsResponse{
		System:     "Simulated Detection System",
		Timestamp:  snap.Timestamp,
		UpdateID:   u.ID,
		Statistics: stats,
		Detections: snap.Samples,
	}, nil
}

// Signals returns the signal plans of the latest update.
func (s *Service) Signals() (SignalsResponse, error) {
	u, ok := s.store.Latest()
	if !ok {
		return SignalsResponse{}, ErrNoSnapshot
	}
	snap := u.Snapshot

	avg := snap.Network.AverageCongestion
	savings := minWaitSavings + int(math.Round(waitSavingsSpan*traffic.Clamp01(snap.Network.AverageScore)))

	return SignalsResponse{
		System:    "Adaptive Signal Control System",
		Timestamp: snap.Timestamp,
		UpdateID:  u.ID,
		NetworkMetrics: SignalNetworkMetrics{
			AverageCongestion:          traffic.Round(avg, 3),
			NetworkEfficiency:          fmt.Sprintf("%.1f%%", (1-avg)*100),
			TotalSignalsOptimized:      len(snap.Plans),
			PredictedWaitTimeReduction: fmt.Sprintf("%d%%", savings),
		},
		Recommendations: snap.Plans,
	}, nil
}

// Junctions returns the static network.
func (s *Service) Junctions() JunctionsResponse {
	roads := s.registry.Roads()
	return JunctionsResponse{
		Junctions:   s.registry.Junctions(),
		RoadNetwork: roads,
		NetworkStats: NetworkStats{
			TotalJunctions:  s.registry.Len(),
			TotalRoads:      len(roads),
			AverageCapacity: s.registry.AverageCapacity(),
		},
	}
}

// Junction returns one junction paired by id with its latest sample and plan.
func (s *Service) Junction(id string) (JunctionDetail, error) {
	j, ok := s.registry.Junction(id)
	if !ok {
		return JunctionDetail{}, fmt.Errorf("%w: %s", traffic.ErrUnknownJunction, id)
	}

	detail := JunctionDetail{Junction: j, Roads: []traffic.Road{}}
	for _, r := range s.registry.Roads() {
		if r.Source == id || r.Target == id {
			detail.Roads = append(detail.Roads, r)
		}
	}

	if u, ok := s.store.Latest(); ok {
		detail.UpdateID = u.ID
		if d, ok := u.Snapshot.Sample(id); ok {
			detail.Detection = &d
		}
		if p, ok := u.Snapshot.Plan(id); ok {
			detail.Signal = &p
		}
	}
	return detail, nil
}

// Analytics fabricates a history of the given length in 15 minute steps
// ending now, using the same load model as the live generator.
func (s *Service) Analytics(hours int) (AnalyticsResponse, error) {
	if hours < 1 || hours > MaxAnalyticsHours {
		return AnalyticsResponse{}, fmt.Errorf("%w: %d (allowed 1..%d)", ErrInvalidHours, hours, MaxAnalyticsHours)
	}

	steps := hours * int(time.Hour/analyticsStep)
	if steps > maxAnalyticsSteps {
		steps = maxAnalyticsSteps
	}
	start := s.now().Add(-time.Duration(hours) * time.Hour)
	junctions := s.registry.Junctions()

	points := make([]AnalyticsPoint, 0, steps*len(junctions))
	stepMeans := make([]float64, 0, steps)
	hourSum := make(map[int]float64)
	hourCount := make(map[int]int)

	for i := 0; i < steps; i++ {
		at := start.Add(time.Duration(i) * analyticsStep)
		var sum float64
		for _, j := range junctions {
			d := s.generator.Generate(j, at.Hour(), at)
			points = append(points, AnalyticsPoint{
				Timestamp:  at,
				JunctionID: j.ID,
				Vehicles:   d.Vehicles,
				Congestion: traffic.Round(d.Congestion, 3),
				Speed:      traffic.Round(speedFor(d.Congestion), 1),
			})
			sum += d.Congestion
		}
		mean := sum / float64(len(junctions))
		stepMeans = append(stepMeans, mean)
		hourSum[at.Hour()] += mean
		hourCount[at.Hour()]++
	}

	peak, best := 0, -1.0
	for h := 0; h < 24; h++ {
		if hourCount[h] == 0 {
			continue
		}
		if m := hourSum[h] / float64(hourCount[h]); m > best {
			peak, best = h, m
		}
	}

	data := points
	if len(data) > maxAnalyticsPoints {
		data = data[:maxAnalyticsPoints]
	}

	return AnalyticsResponse{
		AnalyticsPeriodHours: hours,
		DataPoints:           len(points),
		Trend:                trend(stepMeans),
		PeakHour:             peak,
		Data:                 data,
	}, nil
}

// speedFor maps congestion to an average speed between free flow and jam.
func speedFor(congestion float64) float64 {
	return freeFlowSpeed - (freeFlowSpeed-congestedSpeed)*traffic.Clamp01(congestion)
}

// trend compares the second half of a series against the first half.
func trend(series []float64) string {
	if len(series) < 2 {
		return "stable"
	}
	half := len(series) / 2
	first, second := traffic.Mean(series[:half]), traffic.Mean(series[half:])
	switch {
	case second > first:
		return "increasing"
	case second < first:
		return "decreasing"
	default:
		return "stable"
	}
}
