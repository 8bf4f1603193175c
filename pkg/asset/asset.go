// Package asset defines the city infrastructure asset graph: the nodes the
// scenario engine perturbs and the dependency edges between them.
package asset

// Sector enumerates the infrastructure sectors a city asset belongs to.
type Sector string

const (
	SectorElectricity     Sector = "electricity"
	SectorWater           Sector = "water"
	SectorGas             Sector = "gas"
	SectorCommunication   Sector = "communication"
	SectorFirstResponders Sector = "first_responders"
)

// DefaultCriticality is applied when an asset's criticality is unset.
const DefaultCriticality = 3

// Asset is a geo-located piece of critical infrastructure. Assets are owned
// by the external store; the core never mutates them.
type Asset struct {
	ID          string
	Name        string
	Sector      Sector
	Subtype     string
	City        string
	Lat         float64
	Lng         float64
	Criticality int // 1..5, default DefaultCriticality
	Metadata    map[string]string
}

// EffectiveCriticality returns Criticality, substituting DefaultCriticality
// when it is out of the valid [1,5] range (e.g. the zero value).
func (a Asset) EffectiveCriticality() int {
	if a.Criticality < 1 || a.Criticality > 5 {
		return DefaultCriticality
	}
	return a.Criticality
}

// DependencyType is a free-form string naming the kind of dependency an edge
// represents (e.g. "power", "comms", "water", "fuel", "sector_link").
type DependencyType string

// Dependency is a directed provider -> consumer edge in the asset graph.
// The edge set is a directed multigraph: edges of distinct dependency types
// between the same two assets are independent edges, and the stores key an
// edge by (provider, consumer, type).
type Dependency struct {
	ProviderAssetID string
	ConsumerAssetID string
	DependencyType  DependencyType
	Priority        int // 1 = primary, >=2 = backup
	IsActive        bool
}

// Status is the discrete operational status derived from a performance
// percentage.
type Status string

const (
	StatusActive   Status = "active"
	StatusPartial  Status = "partial"
	StatusInactive Status = "inactive"
)

// StatusLabel is the human-facing transition label used in narratives and
// tick payloads ("RECOVERED", "DEGRADED", "FAILED").
type StatusLabel string

const (
	LabelRecovered StatusLabel = "RECOVERED"
	LabelDegraded  StatusLabel = "DEGRADED"
	LabelFailed    StatusLabel = "FAILED"
)

// StatusForPerformance derives the operational status from a performance
// percentage per the thresholds in the data model: >=100 active, [50,99]
// partial, <50 inactive.
func StatusForPerformance(performancePct float64) Status {
	switch {
	case performancePct >= 100:
		return StatusActive
	case performancePct >= 50:
		return StatusPartial
	default:
		return StatusInactive
	}
}

// LabelForStatus maps a Status to its narrative transition label.
func LabelForStatus(s Status) StatusLabel {
	switch s {
	case StatusActive:
		return LabelRecovered
	case StatusPartial:
		return LabelDegraded
	default:
		return LabelFailed
	}
}

// OperationalState is the one-row-per-asset runtime status record.
type OperationalState struct {
	AssetID string
	Status  Status
}
