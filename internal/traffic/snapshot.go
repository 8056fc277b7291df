package traffic

import "time"

// NetworkMetrics aggregates one snapshot across all junctions.
type NetworkMetrics struct {
	TotalVehicles      int     `json:"total_vehicles"`
	AverageCongestion  float64 `json:"average_congestion"`
	AverageConfidence  float64 `json:"average_confidence"`
	AverageScore       float64 `json:"average_optimization_score"`
	JunctionsMonitored int     `json:"junctions_monitored"`
}

// Snapshot is the fully computed system state of one tick. Samples and Plans
// follow registry order. A Snapshot is shared read-only once built and must
// not be modified.
type Snapshot struct {
	Timestamp time.Time
	Samples   []DetectionSample
	Plans     []SignalPlan
	Network   NetworkMetrics
}

// Sample returns the detection sample of a junction.
func (s *Snapshot) Sample(junctionID string) (DetectionSample, bool) {
	for _, d := range s.Samples {
		if d.JunctionID == junctionID {
			return d, true
		}
	}
	return DetectionSample{}, false
}

// Plan returns the signal plan of a junction.
func (s *Snapshot) Plan(junctionID string) (SignalPlan, bool) {
	for _, p := range s.Plans {
		if p.JunctionID == junctionID {
			return p, true
		}
	}
	return SignalPlan{}, false
}

// Builder assembles snapshots from a registry, a generator and an optimizer.
type Builder struct {
	registry  *Registry
	generator SampleGenerator
	optimizer SignalOptimizer
}

// NewBuilder returns a Builder over the given collaborators.
func NewBuilder(registry *Registry, generator SampleGenerator, optimizer SignalOptimizer) *Builder {
	return &Builder{registry: registry, generator: generator, optimizer: optimizer}
}

// Registry returns the junction registry the builder iterates.
func (b *Builder) Registry() *Registry {
	return b.registry
}

// Build generates one sample and one plan per junction for the given hour of
// day and returns them as a new Snapshot stamped with at.
func (b *Builder) Build(hour int, at time.Time) *Snapshot {
	junctions := b.registry.Junctions()
	snap := &Snapshot{
		Timestamp: at,
		Samples:   make([]DetectionSample, 0, len(junctions)),
		Plans:     make([]SignalPlan, 0, len(junctions)),
	}

	congestion := make([]float64, 0, len(junctions))
	confidence := make([]float64, 0, len(junctions))
	scores := make([]float64, 0, len(junctions))
	for _, j := range junctions {
		sample := b.generator.Generate(j, hour, at)
		plan := b.optimizer.Optimize(sample)

		snap.Samples = append(snap.Samples, sample)
		snap.Plans = append(snap.Plans, plan)
		snap.Network.TotalVehicles += sample.Vehicles

		congestion = append(congestion, sample.Congestion)
		confidence = append(confidence, sample.Confidence)
		scores = append(scores, plan.OptimizationScore)
	}

	snap.Network.AverageCongestion = Mean(congestion)
	snap.Network.AverageConfidence = Mean(confidence)
	snap.Network.AverageScore = Mean(scores)
	snap.Network.JunctionsMonitored = len(junctions)
	return snap
}
