package inference

import "fmt"

// Topology selects how backends are composed into the capability the
// pipeline runs against. It is resolved once at composition time into a
// concrete Backend value, never branched on per call.
type Topology int

const (
	// TopologyLocalOnly uses the local backend alone.
	TopologyLocalOnly Topology = iota
	// TopologyLocalFirst tries the local backend, falling back to the
	// metered cloud backend.
	TopologyLocalFirst
	// TopologyCloudFirst tries the metered cloud backend, falling back
	// to the local backend.
	TopologyCloudFirst
	// TopologyCloudOnly uses the metered cloud backend alone.
	TopologyCloudOnly
)

// String returns the configuration spelling of the topology.
func (t Topology) String() string {
	switch t {
	case TopologyLocalOnly:
		return "local"
	case TopologyLocalFirst:
		return "local-first"
	case TopologyCloudFirst:
		return "cloud-first"
	case TopologyCloudOnly:
		return "cloud"
	default:
		return fmt.Sprintf("Topology(%d)", int(t))
	}
}

// ParseTopology converts a configuration string into a Topology.
func ParseTopology(s string) (Topology, error) {
	switch s {
	case "local":
		return TopologyLocalOnly, nil
	case "local-first":
		return TopologyLocalFirst, nil
	case "cloud-first":
		return TopologyCloudFirst, nil
	case "cloud":
		return TopologyCloudOnly, nil
	default:
		return 0, fmt.Errorf("unknown topology %q (want local, local-first, cloud-first or cloud): %w", s, ErrValidation)
	}
}
