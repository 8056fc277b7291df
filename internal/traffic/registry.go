package traffic

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

var (
	// ErrNoJunctions is returned when a registry would be empty.
	ErrNoJunctions = errors.New("registry has no junctions")

	// ErrInvalidJunction is returned for a junction with a missing id or unknown type.
	ErrInvalidJunction = errors.New("invalid junction")

	// ErrInvalidCapacity is returned for a junction whose capacity is not positive.
	ErrInvalidCapacity = errors.New("junction capacity must be positive")

	// ErrDuplicateJunction is returned when two junctions share an id.
	ErrDuplicateJunction = errors.New("duplicate junction id")

	// ErrUnknownJunction is returned when a junction id is not registered.
	ErrUnknownJunction = errors.New("unknown junction")

	// ErrInvalidRoad is returned for a road with a missing id, bad lanes or unknown type.
	ErrInvalidRoad = errors.New("invalid road")
)

// Registry is the static, ordered set of monitored junctions and the roads
// between them. It is immutable after construction and safe for concurrent use.
type Registry struct {
	junctions []Junction
	index     map[string]int
	roads     []Road
}

// NewRegistry validates junctions and roads and returns a Registry that keeps
// the junctions in declaration order. Roads with a zero length get one derived
// from their endpoints' coordinates.
func NewRegistry(junctions []Junction, roads []Road) (*Registry, error) {
	if len(junctions) == 0 {
		return nil, ErrNoJunctions
	}

	r := &Registry{
		junctions: make([]Junction, 0, len(junctions)),
		index:     make(map[string]int, len(junctions)),
		roads:     make([]Road, 0, len(roads)),
	}

	for _, j := range junctions {
		if err := validateJunction(j); err != nil {
			return nil, err
		}
		if _, exists := r.index[j.ID]; exists {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateJunction, j.ID)
		}
		r.index[j.ID] = len(r.junctions)
		r.junctions = append(r.junctions, j)
	}

	for _, road := range roads {
		if road.ID == "" || road.Lanes <= 0 {
			return nil, fmt.Errorf("%w: %q", ErrInvalidRoad, road.ID)
		}
		switch road.Type {
		case Arterial, Collector, Local:
		default:
			return nil, fmt.Errorf("%w: %s has type %q", ErrInvalidRoad, road.ID, road.Type)
		}
		src, ok := r.Junction(road.Source)
		if !ok {
			return nil, fmt.Errorf("%w: road %s source %s", ErrUnknownJunction, road.ID, road.Source)
		}
		dst, ok := r.Junction(road.Target)
		if !ok {
			return nil, fmt.Errorf("%w: road %s target %s", ErrUnknownJunction, road.ID, road.Target)
		}
		if road.LengthKm <= 0 {
			road.LengthKm = Round(geo.DistanceHaversine(src.Location, dst.Location)/1000, 2)
		}
		r.roads = append(r.roads, road)
	}

	return r, nil
}

func validateJunction(j Junction) error {
	if j.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidJunction)
	}
	if !j.Type.Valid() {
		return fmt.Errorf("%w: %s has type %q", ErrInvalidJunction, j.ID, j.Type)
	}
	if j.Capacity <= 0 {
		return fmt.Errorf("%w: %s has capacity %d", ErrInvalidCapacity, j.ID, j.Capacity)
	}
	return nil
}

// Junctions returns a copy of the junctions in declaration order.
func (r *Registry) Junctions() []Junction {
	out := make([]Junction, len(r.junctions))
	copy(out, r.junctions)
	return out
}

// Junction looks up a junction by id.
func (r *Registry) Junction(id string) (Junction, bool) {
	i, ok := r.index[id]
	if !ok {
		return Junction{}, false
	}
	return r.junctions[i], true
}

// Roads returns a copy of the road network.
func (r *Registry) Roads() []Road {
	out := make([]Road, len(r.roads))
	copy(out, r.roads)
	return out
}

// Len returns the number of junctions.
func (r *Registry) Len() int {
	return len(r.junctions)
}

// AverageCapacity returns the integer mean of junction capacities.
func (r *Registry) AverageCapacity() int {
	total := 0
	for _, j := range r.junctions {
		total += j.Capacity
	}
	return total / len(r.junctions)
}

// DefaultRegistry returns the built-in five-junction network.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(defaultJunctions, defaultRoads)
	if err != nil {
		panic(err)
	}
	return r
}

var defaultJunctions = []Junction{
	{ID: "J001", Name: "Main St & 1st Ave", Type: Intersection, Location: orb.Point{-74.0060, 40.7128}, Capacity: 200},
	{ID: "J002", Name: "2nd Ave & Broadway", Type: Intersection, Location: orb.Point{-73.9855, 40.7580}, Capacity: 300},
	{ID: "J003", Name: "5th Ave & 34th St", Type: Intersection, Location: orb.Point{-73.9840, 40.7489}, Capacity: 200},
	{ID: "J004", Name: "Times Square", Type: Intersection, Location: orb.Point{-73.9855, 40.7580}, Capacity: 400},
	{ID: "J005", Name: "Central Park West", Type: Roundabout, Location: orb.Point{-73.9815, 40.7680}, Capacity: 150},
}

var defaultRoads = []Road{
	{ID: "R001", Source: "J001", Target: "J002", LengthKm: 0.5, Lanes: 2, Type: Arterial},
	{ID: "R002", Source: "J002", Target: "J003", LengthKm: 0.8, Lanes: 3, Type: Arterial},
	{ID: "R003", Source: "J003", Target: "J004", LengthKm: 0.3, Lanes: 2, Type: Collector},
	{ID: "R004", Source: "J004", Target: "J005", LengthKm: 1.2, Lanes: 4, Type: Arterial},
	{ID: "R005", Source: "J001", Target: "J005", LengthKm: 1.5, Lanes: 2, Type: Local},
}
