package traffic

import "github.com/paulmach/orb"

// RegistryFile is the YAML schema of a junction registry file.
//
//	junctions:
//	  - id: J001
//	    name: Main St & 1st Ave
//	    type: intersection
//	    lat: 40.7128
//	    lon: -74.0060
//	    capacity: 200
//	roads:
//	  - id: R001
//	    source: J001
//	    target: J002
//	    lanes: 2
//	    type: arterial
type RegistryFile struct {
	Junctions []JunctionEntry `yaml:"junctions"`
	Roads     []RoadEntry     `yaml:"roads"`
}

// JunctionEntry is one junction in a RegistryFile.
type JunctionEntry struct {
	ID       string  `yaml:"id"`
	Name     string  `yaml:"name"`
	Type     string  `yaml:"type"`
	Lat      float64 `yaml:"lat"`
	Lon      float64 `yaml:"lon"`
	Capacity int     `yaml:"capacity"`
}

// RoadEntry is one road in a RegistryFile. A zero length_km is derived from
// the endpoint coordinates.
type RoadEntry struct {
	ID       string  `yaml:"id"`
	Source   string  `yaml:"source"`
	Target   string  `yaml:"target"`
	LengthKm float64 `yaml:"length_km"`
	Lanes    int     `yaml:"lanes"`
	Type     string  `yaml:"type"`
}

// Registry validates the file contents and builds a Registry from them.
func (f RegistryFile) Registry() (*Registry, error) {
	junctions := make([]Junction, 0, len(f.Junctions))
	for _, e := range f.Junctions {
		junctions = append(junctions, Junction{
			ID:       e.ID,
			Name:     e.Name,
			Type:     JunctionType(e.Type),
			Location: orb.Point{e.Lon, e.Lat},
			Capacity: e.Capacity,
		})
	}

	roads := make([]Road, 0, len(f.Roads))
	for _, e := range f.Roads {
		roads = append(roads, Road{
			ID:       e.ID,
			Source:   e.Source,
			Target:   e.Target,
			LengthKm: e.LengthKm,
			Lanes:    e.Lanes,
			Type:     RoadType(e.Type),
		})
	}

	return NewRegistry(junctions, roads)
}
