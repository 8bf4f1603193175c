package scenario

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/cityresilience/scenario-engine/internal/apierr"
	"github.com/cityresilience/scenario-engine/pkg/asset"
)

// AssetSource is the subset of the store the materializer needs: the
// candidate pool for one (city, sector, subtype).
type AssetSource interface {
	AssetsByCitySectorSubtype(ctx context.Context, city string, sector asset.Sector, subtype string) ([]asset.Asset, error)
}

// Materializer converts a template's rule set, an instance's anchors, and
// the city's asset inventory into the instance's complete event table.
type Materializer struct {
	assets AssetSource
}

// NewMaterializer builds a Materializer backed by the given asset source.
func NewMaterializer(assets AssetSource) *Materializer {
	return &Materializer{assets: assets}
}

// Warning is a non-fatal note surfaced alongside a successful materialize
// (e.g. a rule whose candidate pool was empty).
type Warning struct {
	RuleID string
	Detail string
}

// Result is the materializer's output: the ordered primary event set (from
// rule expansion) plus any warnings. Recovery injection is a separate step;
// see Inject.
type Result struct {
	Events   []Event
	Warnings []Warning
}

// Materialize runs the rule-to-events algorithm against the given rules
// (assumed already ordered ascending by TemplateID then RuleID; this
// function imposes the required (time_pct ASC, priority DESC, rule_id ASC)
// order itself) and anchors, for the given instance.
func (m *Materializer) Materialize(ctx context.Context, inst Instance, rules []Rule, anchors []Anchor) (*Result, error) {
	ordered := make([]Rule, len(rules))
	copy(ordered, rules)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].TimePct != ordered[j].TimePct {
			return ordered[i].TimePct < ordered[j].TimePct
		}
		if ordered[i].Priority != ordered[j].Priority {
			return ordered[i].Priority > ordered[j].Priority
		}
		return ordered[i].RuleID < ordered[j].RuleID
	})

	totalTicks := inst.TotalTicks()
	usedAssets := make(map[string]bool)
	result := &Result{}

	for _, rule := range ordered {
		if !rule.Enabled {
			continue
		}

		candidates, err := m.assets.AssetsByCitySectorSubtype(ctx, inst.City, rule.Sector, rule.Subtype)
		if err != nil {
			return nil, apierr.Wrap(err, fmt.Sprintf("load candidates for rule %s", rule.RuleID))
		}
		if len(candidates) == 0 {
			result.Warnings = append(result.Warnings, Warning{RuleID: rule.RuleID, Detail: "no candidate assets matched sector/subtype"})
			continue
		}

		pool := applySelectionScope(rule, candidates, anchors)
		if len(pool) == 0 {
			result.Warnings = append(result.Warnings, Warning{RuleID: rule.RuleID, Detail: "candidate pool empty after selection scope"})
			continue
		}

		k := targetCount(rule, len(pool))
		if k == 0 {
			continue
		}

		chosen := 0
		for _, a := range pool {
			if chosen >= k {
				break
			}
			if !rule.AllowReuseAsset && usedAssets[a.ID] {
				continue
			}
			ev := Event{
				InstanceID:        inst.ID,
				TickIndex:         tickForTimePct(rule.TimePct, totalTicks),
				EventKind:         EventKind(upper(string(rule.EventKind))),
				AssetID:           a.ID,
				PerformancePct:    clamp(rule.PerformancePct, 0, 100),
				RepairTimeMinutes: averageRepairMinutes(rule.RepairTimeMin, rule.RepairTimeMax),
				SourceRuleID:      rule.RuleID,
			}
			result.Events = append(result.Events, ev)
			if !rule.AllowReuseAsset {
				usedAssets[a.ID] = true
			}
			chosen++
		}
		if chosen == 0 {
			result.Warnings = append(result.Warnings, Warning{RuleID: rule.RuleID, Detail: "candidate pool exhausted by earlier rules' exclusive asset claims"})
		}
	}

	return result, nil
}

// applySelectionScope filters/orders the candidate pool per a rule's scope.
func applySelectionScope(rule Rule, candidates []asset.Asset, anchors []Anchor) []asset.Asset {
	pool := make([]asset.Asset, len(candidates))
	copy(pool, candidates)

	switch rule.SelectionScope {
	case ScopeGeoRadius:
		var anchor *Anchor
		for i := range anchors {
			if anchors[i].AnchorType == rule.GeoAnchor {
				anchor = &anchors[i]
				break
			}
		}
		if anchor == nil || rule.GeoParam1Km <= 0 {
			sort.Slice(pool, func(i, j int) bool { return pool[i].ID < pool[j].ID })
			return pool
		}
		within := pool[:0:0]
		for _, a := range pool {
			if haversineKm(anchor.Lat, anchor.Lng, a.Lat, a.Lng) <= rule.GeoParam1Km {
				within = append(within, a)
			}
		}
		sort.Slice(within, func(i, j int) bool { return within[i].ID < within[j].ID })
		return within

	case ScopeGraphCentrality:
		// Documented proxy: sort by descending criticality. No pool
		// reduction — see the GRAPH_CENTRALITY design note.
		sort.SliceStable(pool, func(i, j int) bool {
			return pool[i].EffectiveCriticality() > pool[j].EffectiveCriticality()
		})
		return pool

	default: // ScopeGeoScatter and anything unrecognized
		sort.Slice(pool, func(i, j int) bool { return pool[i].ID < pool[j].ID })
		return pool
	}
}

// targetCount computes k from the rule's target mode/value and pool size n.
func targetCount(rule Rule, n int) int {
	switch rule.TargetMode {
	case TargetModeCount:
		return clampInt(int(rule.TargetValue), 0, n)
	default: // PCT
		k := int(math.Ceil(rule.TargetValue / 100 * float64(n)))
		return clampInt(k, 0, n)
	}
}

// tickForTimePct maps a rule's time_pct into a tick index, an impact
// "between ticks" becoming visible on the next tick.
func tickForTimePct(timePct float64, totalTicks int) int {
	t := int(math.Ceil(timePct / 100 * float64(totalTicks)))
	return clampInt(t, 0, totalTicks-1)
}

func averageRepairMinutes(min, max *int) *int {
	switch {
	case min != nil && max != nil:
		v := (*min + *max) / 2
		return &v
	case min != nil:
		v := *min
		return &v
	case max != nil:
		v := *max
		return &v
	default:
		return nil
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func upper(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - ('a' - 'A')
		}
	}
	return string(b)
}
