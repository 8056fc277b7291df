package traffic

import (
	"math"
	"time"
)

// SampleGenerator produces one detection sample for a junction.
// Implementations must return vehicles within [0, capacity].
type SampleGenerator interface {
	Generate(j Junction, hour int, at time.Time) DetectionSample
}

// Base load as a fraction of capacity per time band.
const (
	rushHourLoad = 0.7
	daytimeLoad  = 0.4
	offPeakLoad  = 0.2
)

// Multiplicative jitter applied to the base load.
const (
	loadJitterMin = 0.8
	loadJitterMax = 1.3
)

// Pedestrians as a fraction of vehicles.
const (
	pedestrianMin = 0.10
	pedestrianMax = 0.15
)

const (
	confidenceMin = 0.85
	confidenceMax = 0.98
)

// Fixed vehicle category proportions.
const (
	carShare        = 0.60
	motorcycleShare = 0.10
	busShare        = 0.05
	truckShare      = 0.15
	emergencyShare  = 0.02
	bicycleShare    = 0.08
)

// BaseLoad returns the fraction of capacity expected at the given hour.
// Hours outside 0..23 wrap around the clock.
func BaseLoad(hour int) float64 {
	hour = ((hour % 24) + 24) % 24
	switch {
	case (hour >= 7 && hour <= 9) || (hour >= 16 && hour <= 18):
		return rushHourLoad
	case hour >= 10 && hour <= 15:
		return daytimeLoad
	default:
		return offPeakLoad
	}
}

// SimulatedGenerator fabricates detection samples from time-of-day load bands.
type SimulatedGenerator struct {
	rng *Rand
}

// NewSimulatedGenerator returns a generator drawing from rng.
func NewSimulatedGenerator(rng *Rand) *SimulatedGenerator {
	return &SimulatedGenerator{rng: rng}
}

// Generate implements SampleGenerator.
func (g *SimulatedGenerator) Generate(j Junction, hour int, at time.Time) DetectionSample {
	load := float64(j.Capacity) * BaseLoad(hour) * g.rng.Uniform(loadJitterMin, loadJitterMax)
	vehicles := clampInt(int(math.Round(load)), 0, j.Capacity)

	pedestrians := int(math.Round(float64(vehicles) * g.rng.Uniform(pedestrianMin, pedestrianMax)))

	return DetectionSample{
		JunctionID:   j.ID,
		JunctionName: j.Name,
		Vehicles:     vehicles,
		Pedestrians:  pedestrians,
		Congestion:   float64(vehicles) / float64(j.Capacity),
		VehicleTypes: Breakdown(vehicles),
		Timestamp:    at,
		Confidence:   Round(g.rng.Uniform(confidenceMin, confidenceMax), 2),
	}
}

// Breakdown splits a vehicle count across categories using fixed proportions.
// Counts are floored, so their sum may fall slightly short of vehicles.
func Breakdown(vehicles int) VehicleBreakdown {
	if vehicles < 0 {
		vehicles = 0
	}
	v := float64(vehicles)
	return VehicleBreakdown{
		Car:        int(v * carShare),
		Motorcycle: int(v * motorcycleShare),
		Bus:        int(v * busShare),
		Truck:      int(v * truckShare),
		Emergency:  int(v * emergencyShare),
		Bicycle:    int(v * bicycleShare),
	}
}
