package edge

import (
	"github.com/cityresilience/scenario-engine/pkg/dependency"
	"github.com/cityresilience/scenario-engine/pkg/engine"
	"github.com/cityresilience/scenario-engine/pkg/runner"
	"github.com/cityresilience/scenario-engine/pkg/scenario"
)

// anchorDTO is one operator-supplied anchor in a prepare request.
type anchorDTO struct {
	Type string  `json:"type" validate:"required"`
	Lat  float64 `json:"lat" validate:"required,latitude"`
	Lng  float64 `json:"lng" validate:"required,longitude"`
}

// prepareRequestDTO is the body of POST /api/scenario/prepare.
type prepareRequestDTO struct {
	City          string      `json:"city" validate:"required"`
	Scenario      string      `json:"scenario" validate:"required"`
	DurationHours int         `json:"duration_hours" validate:"required,min=1,max=168"`
	TickMinutes   int         `json:"tick_minutes" validate:"required,min=1,max=60"`
	RepairCrews   int         `json:"repair_crews" validate:"min=0"`
	Seed          int64       `json:"seed"`
	Anchors       []anchorDTO `json:"anchors"`
}

func (req prepareRequestDTO) toFacadeRequest() engine.PrepareRequest {
	anchors := make([]scenario.Anchor, len(req.Anchors))
	for i, a := range req.Anchors {
		anchors[i] = scenario.Anchor{AnchorType: a.Type, Lat: a.Lat, Lng: a.Lng}
	}
	return engine.PrepareRequest{
		City:          req.City,
		ScenarioKey:   req.Scenario,
		DurationHours: req.DurationHours,
		TickMinutes:   req.TickMinutes,
		RepairCrews:   req.RepairCrews,
		Seed:          req.Seed,
		Anchors:       anchors,
	}
}

// prepareSummaryDTO mirrors engine.PrepareSummary for the wire.
type prepareSummaryDTO struct {
	InstanceID      string `json:"instance_id"`
	TemplateID      string `json:"template_id"`
	HazardType      string `json:"hazard_type"`
	RuleCount       int    `json:"rule_count"`
	EventsCreated   int    `json:"events_created"`
	RecoveriesAdded int    `json:"recoveries_added"`
	AssetsUsed      int    `json:"assets_used"`
	TotalTicks      int    `json:"total_ticks"`
	Status          string `json:"status"`
}

func summaryToDTO(s *engine.PrepareSummary) prepareSummaryDTO {
	return prepareSummaryDTO{
		InstanceID:      s.InstanceID,
		TemplateID:      s.TemplateID,
		HazardType:      string(s.HazardType),
		RuleCount:       s.RuleCount,
		EventsCreated:   s.EventsCreated,
		RecoveriesAdded: s.RecoveriesAdded,
		AssetsUsed:      s.AssetsUsed,
		TotalTicks:      s.TotalTicks,
		Status:          s.Status,
	}
}

// startResponseDTO is the response of POST /api/sim/start.
type startResponseDTO struct {
	SimRunID           string `json:"sim_run_id"`
	ScenarioInstanceID string `json:"scenario_instance_id"`
	City               string `json:"city"`
	TotalTicks         int    `json:"total_ticks"`
}

func handleToDTO(h *runner.RunHandle) startResponseDTO {
	return startResponseDTO{
		SimRunID:           h.SimRunID,
		ScenarioInstanceID: h.ScenarioInstanceID,
		City:               h.City,
		TotalTicks:         h.TotalTicks,
	}
}

// stateResponseDTO is the response of GET /api/sim/state.
type stateResponseDTO struct {
	SimRunID           string `json:"sim_run_id"`
	ScenarioInstanceID string `json:"scenario_instance_id"`
	City               string `json:"city"`
	TotalTicks         int    `json:"total_ticks"`
	ComputedMaxTick    int    `json:"computed_max_tick"`
	Done               bool   `json:"done"`
}

func stateToDTO(s runner.State) stateResponseDTO {
	return stateResponseDTO{
		SimRunID:           s.SimRunID,
		ScenarioInstanceID: s.ScenarioInstanceID,
		City:               s.City,
		TotalTicks:         s.TotalTicks,
		ComputedMaxTick:    s.ComputedMaxTick,
		Done:               s.Done,
	}
}

// tickResponseDTO is the response of GET /api/sim/tick.
type tickResponseDTO struct {
	SimRunID        string           `json:"sim_run_id"`
	TickIndex       int              `json:"tick_index"`
	TotalTicks      int              `json:"total_ticks"`
	Sectors         map[string]int   `json:"sectors"`
	AssetsChanged   []assetChangeDTO `json:"assets_changed"`
	Recommendations []string         `json:"recommendations"`
	Ready           bool             `json:"ready"`
}

type assetChangeDTO struct {
	AssetID string `json:"asset_id"`
	Status  string `json:"status"`
}

func tickToDTO(p runner.TickPayload, ready bool) tickResponseDTO {
	sectors := make(map[string]int, len(p.Sectors))
	for sector, pct := range p.Sectors {
		sectors[string(sector)] = pct
	}
	changed := make([]assetChangeDTO, len(p.AssetsChanged))
	for i, c := range p.AssetsChanged {
		changed[i] = assetChangeDTO{AssetID: c.AssetID, Status: string(c.Status)}
	}
	return tickResponseDTO{
		SimRunID:        p.SimRunID,
		TickIndex:       p.TickIndex,
		TotalTicks:      p.TotalTicks,
		Sectors:         sectors,
		AssetsChanged:   changed,
		Recommendations: p.Recommendations,
		Ready:           ready,
	}
}

// chainResponseDTO is the response of GET /api/dependencies/chain and
// GET /api/dependencies/graph.
type chainResponseDTO struct {
	Nodes []nodeDTO `json:"nodes"`
	Links []linkDTO `json:"links"`
}

type nodeDTO struct {
	AssetID string `json:"asset_id"`
	Name    string `json:"name"`
	Sector  string `json:"sector"`
	City    string `json:"city"`
	Depth   int    `json:"depth"`
}

type linkDTO struct {
	From     string `json:"from"`
	To       string `json:"to"`
	Type     string `json:"type"`
	Priority int    `json:"priority"`
	Level    int    `json:"level"`
}

func chainToDTO(c *dependency.Chain) chainResponseDTO {
	nodes := make([]nodeDTO, len(c.Nodes))
	for i, n := range c.Nodes {
		nodes[i] = nodeDTO{AssetID: n.Asset.ID, Name: n.Asset.Name, Sector: string(n.Asset.Sector), City: n.Asset.City, Depth: n.Depth}
	}
	links := make([]linkDTO, len(c.Edges))
	for i, e := range c.Edges {
		links[i] = linkDTO{From: e.From, To: e.To, Type: string(e.Type), Priority: e.Priority, Level: e.Level}
	}
	return chainResponseDTO{Nodes: nodes, Links: links}
}

// errorResponseDTO is the shape every failing façade call renders as, per
// the error handling design.
type errorResponseDTO struct {
	Error          string `json:"error"`
	Details        string `json:"details,omitempty"`
	RequiredAnchor string `json:"required_anchor,omitempty"`
}
