// Package scenario implements the scenario materializer: it converts a
// hazard template's rule set, operator-supplied anchors, and a city's asset
// inventory into the deterministic, ordered event table described by the
// data model.
package scenario

import "github.com/cityresilience/scenario-engine/pkg/asset"

// EventKind distinguishes damage events from the recovery events the
// materializer injects afterward.
type EventKind string

const (
	EventKindImpact       EventKind = "IMPACT"
	EventKindRepair       EventKind = "REPAIR"
	EventKindRepairPart   EventKind = "REPAIR_PARTIAL"
	EventKindRepairFull   EventKind = "REPAIR_FULL"
)

// SelectionScope controls how a rule narrows the candidate asset pool.
type SelectionScope string

const (
	ScopeGeoRadius        SelectionScope = "GEO_RADIUS"
	ScopeGeoScatter       SelectionScope = "GEO_SCATTER"
	ScopeGraphCentrality  SelectionScope = "GRAPH_CENTRALITY"
)

// TargetMode controls how a rule's target_value is interpreted.
type TargetMode string

const (
	TargetModePct   TargetMode = "PCT"
	TargetModeCount TargetMode = "COUNT"
)

// HazardType names one of the six hard-coded hazard families.
type HazardType string

const (
	HazardEarthquake   HazardType = "EARTHQUAKE"
	HazardCyber        HazardType = "CYBER"
	HazardTsunami      HazardType = "TSUNAMI"
	HazardPandemic     HazardType = "PANDEMIC"
	HazardSevereStorm  HazardType = "SEVERE_STORM"
	HazardWildfire     HazardType = "WILDFIRE"
)

// Template is a named, versioned bundle of rules characterizing one hazard.
type Template struct {
	TemplateID string
	Name       string
	HazardType HazardType
	Version    int
	IsActive   bool
}

// Rule is one parametric impact-or-repair specification inside a template.
// Rules are append-only and versioned with their template.
type Rule struct {
	RuleID          string
	TemplateID      string
	EventKind       EventKind
	TimePct         float64 // [0,100]
	TimeJitterPct   float64
	SelectionScope  SelectionScope
	Sector          asset.Sector
	Subtype         string
	TargetMode      TargetMode
	TargetValue     float64
	AllowReuseAsset bool
	PerformancePct  float64 // [0,100], set-to value
	RepairTimeMin   *int    // minutes, optional
	RepairTimeMax   *int    // minutes, optional
	GeoAnchor       string  // anchor_type tag
	GeoParam1Km     float64 // radius, GEO_RADIUS only
	Priority        int     // tie-breaker, higher wins ties at equal TimePct
	Enabled         bool
}

// Instance is one prepared scenario: a concrete, city-bound materialization
// of a template.
type Instance struct {
	ID            string
	City          string
	ScenarioKey   string
	HazardType    HazardType
	TemplateID    string
	DurationHours int // [1,168]
	TickMinutes   int // [1,60]
	RepairCrews   int // [0,999]
	Status        string
	CreatedAtUnix int64

	// Seed drives the recovery-injection PRNG so two prepares with
	// identical rules/candidates/anchors/seed are byte-identical.
	Seed int64
}

// TotalTicks computes the derived tick count per the data model:
// max(1, floor(duration_hours*60 / tick_minutes)).
func (i Instance) TotalTicks() int {
	tickMinutes := i.TickMinutes
	if tickMinutes <= 0 {
		tickMinutes = 1
	}
	total := (i.DurationHours * 60) / tickMinutes
	if total < 1 {
		total = 1
	}
	return total
}

// Anchor is an operator-placed geographic point scoping a rule's selection.
type Anchor struct {
	InstanceID string
	AnchorType string
	Lat        float64
	Lng        float64
}

// Event is one scheduled (tick, asset, performance) triple stored against an
// instance.
type Event struct {
	InstanceID         string
	TickIndex          int
	EventKind          EventKind
	AssetID            string
	PerformancePct     float64
	RepairTimeMinutes  *int
	SourceRuleID       string
}

// HazardSpec describes one fixed scenario -> template mapping.
type HazardSpec struct {
	TemplateID      string
	HazardType      HazardType
	RequiredAnchor  string // empty means no anchor is required
}

// ScenarioTemplateMap is the hard-coded, versioned-with-the-code mapping of
// UI scenario keys to templates.
var ScenarioTemplateMap = map[string]HazardSpec{
	"earthquake":    {TemplateID: "EQ_030", HazardType: HazardEarthquake, RequiredAnchor: "EPICENTER"},
	"cyber_attack":  {TemplateID: "CY_020", HazardType: HazardCyber},
	"tsunami":       {TemplateID: "TS_025", HazardType: HazardTsunami, RequiredAnchor: "IMPACT_CENTER"},
	"pandemic":      {TemplateID: "PD_040", HazardType: HazardPandemic},
	"severe_storm":  {TemplateID: "SS_020", HazardType: HazardSevereStorm, RequiredAnchor: "FLOOD_POCKET"},
	"wildfire":      {TemplateID: "WF_020", HazardType: HazardWildfire, RequiredAnchor: "FIRE_ORIGIN"},
}
