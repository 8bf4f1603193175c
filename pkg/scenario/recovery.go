package scenario

import (
	"math/rand"
)

// Recovery injection bounds. The partial/full bounds are in ticks after the
// triggering impact event; the perf bounds are the performance points a
// partial repair adds to the impacted performance.
const (
	deltaPartialMin = 2
	deltaPartialMax = 10
	deltaFullMin    = 8
	deltaFullMax    = 40
	deltaPerfMin    = 20
	deltaPerfMax    = 45
)

// dedupKey identifies a recovery event for idempotence under retry, per
// (instance_id, asset_id, tick, performance_pct).
type dedupKey struct {
	instanceID     string
	assetID        string
	tick           int
	performancePct float64
}

// Inject schedules paired REPAIR_PARTIAL/REPAIR_FULL events for every event
// in primary whose performance is below 100, using a PRNG seeded from the
// instance so the same inputs + seed reproduce the same recovery schedule
// (resolving the non-determinism the design notes flag as an open question).
//
// Recovery injection is non-fatal: any panic-worthy condition here is
// avoided by construction, and callers should treat a failure of this step
// as "zero recoveries added", never as a reason to drop the primary events.
func Inject(inst Instance, primary []Event) []Event {
	seed := inst.Seed
	if seed == 0 {
		seed = int64(stringHash(inst.ID))
	}
	rng := rand.New(rand.NewSource(seed))

	totalTicks := inst.TotalTicks()
	seen := make(map[dedupKey]bool, len(primary)*2)
	var out []Event

	for _, ev := range primary {
		if ev.PerformancePct >= 100 {
			continue
		}

		partialTick := clampInt(ev.TickIndex+deltaPartialMin+rng.Intn(deltaPartialMax-deltaPartialMin+1), 0, totalTicks-1)
		partialPerf := clamp(ev.PerformancePct+float64(deltaPerfMin+rng.Intn(deltaPerfMax-deltaPerfMin+1)), 50, 95)
		if partialTick > ev.TickIndex && partialPerf > ev.PerformancePct {
			partial := Event{
				InstanceID:     inst.ID,
				TickIndex:      partialTick,
				EventKind:      EventKindRepairPart,
				AssetID:        ev.AssetID,
				PerformancePct: partialPerf,
				SourceRuleID:   ev.SourceRuleID,
			}
			k := dedupKey{inst.ID, ev.AssetID, partial.TickIndex, partial.PerformancePct}
			if !seen[k] {
				seen[k] = true
				out = append(out, partial)
			}
		}

		fullTick := clampInt(ev.TickIndex+deltaFullMin+rng.Intn(deltaFullMax-deltaFullMin+1), 0, totalTicks-1)
		if fullTick > ev.TickIndex {
			full := Event{
				InstanceID:     inst.ID,
				TickIndex:      fullTick,
				EventKind:      EventKindRepairFull,
				AssetID:        ev.AssetID,
				PerformancePct: 100,
				SourceRuleID:   ev.SourceRuleID,
			}
			k := dedupKey{inst.ID, ev.AssetID, full.TickIndex, full.PerformancePct}
			if !seen[k] {
				seen[k] = true
				out = append(out, full)
			}
		}
	}

	return out
}

// stringHash is a small FNV-1a style hash used only to derive a
// deterministic default seed from an instance id when none was supplied.
func stringHash(s string) uint32 {
	var h uint32 = 2166136261
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= 16777619
	}
	return h
}
