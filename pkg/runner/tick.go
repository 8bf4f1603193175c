package runner

import (
	"fmt"
	"math"

	"github.com/cityresilience/scenario-engine/pkg/asset"
	"github.com/cityresilience/scenario-engine/pkg/scenario"
)

// AssetChange names one asset's discrete status transition within a tick.
type AssetChange struct {
	AssetID   string
	Status    asset.StatusLabel
	NewStatus asset.Status
}

// TickPayload is the immutable result of precomputing one tick, published
// once into a RunHandle's cache and never mutated afterward.
type TickPayload struct {
	SimRunID        string
	TickIndex       int
	TotalTicks      int
	Sectors         map[asset.Sector]int
	AssetsChanged   []AssetChange
	Recommendations []string
}

// tickState is the per-run mutable bookkeeping the precomputation loop
// carries from one tick to the next: current performance and last known
// discrete status per asset.
type tickState struct {
	perf   map[string]float64
	status map[string]asset.Status
}

func newTickState(assets []asset.Asset) *tickState {
	st := &tickState{
		perf:   make(map[string]float64, len(assets)),
		status: make(map[string]asset.Status, len(assets)),
	}
	for _, a := range assets {
		st.perf[a.ID] = 100
		st.status[a.ID] = asset.StatusActive
	}
	return st
}

// applyTick runs one tick's state transition against st, returning the
// published payload. assetsByID and eventsAtTick are scoped to this run.
func applyTick(simRunID string, t, totalTicks int, st *tickState, assetsByID map[string]asset.Asset, eventsAtTick []scenario.Event) TickPayload {
	for _, ev := range eventsAtTick {
		st.perf[ev.AssetID] = ev.PerformancePct
	}

	var changed []AssetChange
	for id, perf := range st.perf {
		newStatus := asset.StatusForPerformance(perf)
		if newStatus != st.status[id] {
			st.status[id] = newStatus
			changed = append(changed, AssetChange{AssetID: id, Status: asset.LabelForStatus(newStatus), NewStatus: newStatus})
		}
	}

	sectors := sectorHealth(st.perf, assetsByID)

	var narrative []string
	if len(changed) > 0 {
		narrative = []string{fmt.Sprintf("%d asset(s) changed status at tick %d", len(changed), t)}
	}

	return TickPayload{
		SimRunID:        simRunID,
		TickIndex:       t,
		TotalTicks:      totalTicks,
		Sectors:         sectors,
		AssetsChanged:   changed,
		Recommendations: narrative,
	}
}

// sectorHealth computes the criticality-weighted mean performance per
// sector present in the city, rounded to an integer percent. Sectors with
// no assets are omitted.
func sectorHealth(perf map[string]float64, assetsByID map[string]asset.Asset) map[asset.Sector]int {
	type acc struct {
		weightedSum float64
		weightTotal float64
	}
	bySector := make(map[asset.Sector]*acc)

	for id, p := range perf {
		a, ok := assetsByID[id]
		if !ok {
			continue
		}
		w := float64(a.EffectiveCriticality())
		entry, ok := bySector[a.Sector]
		if !ok {
			entry = &acc{}
			bySector[a.Sector] = entry
		}
		entry.weightedSum += p * w
		entry.weightTotal += w
	}

	out := make(map[asset.Sector]int, len(bySector))
	for sector, entry := range bySector {
		if entry.weightTotal == 0 {
			continue
		}
		out[sector] = int(math.Round(entry.weightedSum / entry.weightTotal))
	}
	return out
}
