// Package runner implements the simulation runner: it replays one prepared
// instance's materialized event table as a precomputed, append-only tick
// cache that pollers read from.
package runner

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cityresilience/scenario-engine/internal/apierr"
	"github.com/cityresilience/scenario-engine/internal/clock"
	"github.com/cityresilience/scenario-engine/internal/metrics"
	"github.com/cityresilience/scenario-engine/internal/narrative"
	"github.com/cityresilience/scenario-engine/pkg/asset"
	"github.com/cityresilience/scenario-engine/pkg/scenario"
)

// Store is the subset of the persistence layer a run needs: the instance
// row, its city's assets, its materialized event table, and the sink for
// the operational state the precomputation loop derives tick by tick.
type Store interface {
	GetInstance(ctx context.Context, instanceID string) (scenario.Instance, bool, error)
	ListAssetsByCity(ctx context.Context, city string) ([]asset.Asset, error)
	EventsByInstance(ctx context.Context, instanceID string) ([]scenario.Event, error)
	SetOperationalState(ctx context.Context, s asset.OperationalState) error
}

// SectorAlerter is notified the first time a tick's sector health crosses
// below the critical threshold for a run. Implementations must not block
// the precomputation loop; see internal/notify.
type SectorAlerter interface {
	NotifyCriticalSector(ctx context.Context, simRunID, city string, sector asset.Sector, pct int)
}

// CriticalSectorThreshold is the fixed percent below which a sector
// health reading triggers one SectorAlerter notification per run.
const CriticalSectorThreshold = 50

// TickPace is the per-tick delay in the precomputation loop, giving live
// pollers a chance to observe progressive availability. Not a correctness
// property; purely a pacing choice.
const TickPace = 20 * time.Millisecond

// RunHandle is one runner-owned, in-memory replay of a prepared instance.
// The tick cache is append-only from the single background writer and
// read-only from any number of concurrent readers.
type RunHandle struct {
	SimRunID           string
	ScenarioInstanceID string
	City               string
	TickMinutes        int
	TotalTicks         int

	computedMaxTick atomic.Int64 // -1 until the first tick publishes
	done            atomic.Bool

	mu    sync.RWMutex
	cache map[int]TickPayload

	lastReadUnix atomic.Int64 // for GC eviction, see Registry

	alertedSectors sync.Map // asset.Sector -> struct{}, alerted-once bookkeeping
}

// State is the read-only lifecycle summary for a run.
type State struct {
	SimRunID           string
	ScenarioInstanceID string
	City               string
	TotalTicks         int
	ComputedMaxTick    int
	Done               bool
}

// State returns the current lifecycle summary for h.
func (h *RunHandle) State() State {
	return State{
		SimRunID:           h.SimRunID,
		ScenarioInstanceID: h.ScenarioInstanceID,
		City:               h.City,
		TotalTicks:         h.TotalTicks,
		ComputedMaxTick:    int(h.computedMaxTick.Load()),
		Done:               h.done.Load(),
	}
}

// pendingPayload is returned by Tick when the background loop has not yet
// reached the requested index.
var pendingPayload = TickPayload{}

// Tick returns the payload for tickIndex, or ok=false if the background
// task has not yet computed it. tickIndex is clamped to [0, total_ticks-1].
func (h *RunHandle) Tick(tickIndex int) (TickPayload, bool) {
	h.lastReadUnix.Store(time.Now().Unix())
	if tickIndex < 0 {
		tickIndex = 0
	}
	if tickIndex > h.TotalTicks-1 {
		tickIndex = h.TotalTicks - 1
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	p, ok := h.cache[tickIndex]
	return p, ok
}

func (h *RunHandle) publish(p TickPayload) {
	h.mu.Lock()
	h.cache[p.TickIndex] = p
	h.mu.Unlock()
	h.computedMaxTick.Store(int64(p.TickIndex))
}

// Runner starts and owns RunHandles backed by a Store.
type Runner struct {
	store    Store
	clock    clock.Clock
	logger   *slog.Logger
	alert    SectorAlerter
	narrator narrative.Narrator
	metrics  *metrics.Metrics
}

// Option configures a Runner using the functional-options style.
type Option func(*Runner)

// WithClock overrides the runner's clock, for deterministic tests.
func WithClock(c clock.Clock) Option {
	return func(r *Runner) { r.clock = c }
}

// WithLogger overrides the runner's logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// WithSectorAlerter wires a critical-sector-health notifier.
func WithSectorAlerter(a SectorAlerter) Option {
	return func(r *Runner) { r.alert = a }
}

// WithNarrator wires an optional LLM-backed phrasing of each tick's
// recommendation line. Omitted, ticks keep their bare status-change line.
func WithNarrator(n narrative.Narrator) Option {
	return func(r *Runner) { r.narrator = n }
}

// WithMetrics wires Prometheus collectors for ticks computed and per-sector
// health.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Runner) { r.metrics = m }
}

// New builds a Runner backed by store.
func New(store Store, opts ...Option) *Runner {
	r := &Runner{
		store:  store,
		clock:  clock.Real(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start loads instanceID, indexes its event table by tick, and spawns the
// background precomputation loop. It returns immediately with a handle
// whose tick cache fills in asynchronously.
func (r *Runner) Start(ctx context.Context, simRunID, instanceID string) (*RunHandle, error) {
	inst, ok, err := r.store.GetInstance(ctx, instanceID)
	if err != nil {
		return nil, apierr.Wrap(err, "load instance")
	}
	if !ok {
		return nil, apierr.NotFound("instance", instanceID)
	}

	assets, err := r.store.ListAssetsByCity(ctx, inst.City)
	if err != nil {
		return nil, apierr.Wrap(err, "load city assets")
	}
	events, err := r.store.EventsByInstance(ctx, instanceID)
	if err != nil {
		return nil, apierr.Wrap(err, "load instance events")
	}
	sort.SliceStable(events, func(i, j int) bool { return events[i].TickIndex < events[j].TickIndex })

	eventsByTick := make(map[int][]scenario.Event, len(events))
	for _, ev := range events {
		eventsByTick[ev.TickIndex] = append(eventsByTick[ev.TickIndex], ev)
	}
	assetsByID := make(map[string]asset.Asset, len(assets))
	for _, a := range assets {
		assetsByID[a.ID] = a
	}

	totalTicks := inst.TotalTicks()
	h := &RunHandle{
		SimRunID:           simRunID,
		ScenarioInstanceID: instanceID,
		City:               inst.City,
		TickMinutes:        inst.TickMinutes,
		TotalTicks:         totalTicks,
		cache:              make(map[int]TickPayload, totalTicks),
	}
	h.computedMaxTick.Store(-1)

	go r.precompute(h, assets, assetsByID, eventsByTick)

	return h, nil
}

// precompute is the single background task per run; ticks are computed
// strictly in order since each depends on the previous tick's status map.
func (r *Runner) precompute(h *RunHandle, assets []asset.Asset, assetsByID map[string]asset.Asset, eventsByTick map[int][]scenario.Event) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("tick precomputation panicked", slog.String("sim_run_id", h.SimRunID), slog.Any("panic", rec))
		}
		h.done.Store(true)
	}()

	st := newTickState(assets)
	for t := 0; t < h.TotalTicks; t++ {
		payload := applyTick(h.SimRunID, t, h.TotalTicks, st, assetsByID, eventsByTick[t])
		r.enrichNarrative(&payload)
		h.publish(payload)
		r.maybeAlert(h, payload)
		r.persistOperationalStates(payload.AssetsChanged)
		r.recordTickMetrics(h, payload)
		r.clock.Sleep(TickPace)
	}
}

// persistOperationalStates writes each tick's discrete status transitions
// through to the Store, so any reader of Store.GetOperationalState /
// ListOperationalStates (rather than a live RunHandle) sees current status.
// A failed write is logged and counted, never fatal to the tick.
func (r *Runner) persistOperationalStates(changed []AssetChange) {
	for _, c := range changed {
		err := r.store.SetOperationalState(context.Background(), asset.OperationalState{AssetID: c.AssetID, Status: c.NewStatus})
		if err != nil {
			r.logger.Error("persist operational state failed", slog.String("asset_id", c.AssetID), slog.String("error", err.Error()))
			if r.metrics != nil {
				r.metrics.StoreErrors.WithLabelValues("set_operational_state").Inc()
			}
		}
	}
}

// recordTickMetrics updates the ticks-computed counter and the latest
// per-sector health gauge for one published tick.
func (r *Runner) recordTickMetrics(h *RunHandle, payload TickPayload) {
	if r.metrics == nil {
		return
	}
	r.metrics.TicksComputed.WithLabelValues(h.City).Inc()
	for sector, pct := range payload.Sectors {
		r.metrics.SectorHealth.WithLabelValues(h.SimRunID, string(sector)).Set(float64(pct))
	}
}

// enrichNarrative replaces a tick's bare status-change line with an
// LLM-phrased one when a narrator is configured. Best-effort: falls back to
// the original line on any failure, never blocks a tick on a slow call.
func (r *Runner) enrichNarrative(payload *TickPayload) {
	if r.narrator == nil || len(payload.Recommendations) == 0 {
		return
	}
	var belowThreshold []string
	for sector, pct := range payload.Sectors {
		if pct < CriticalSectorThreshold {
			belowThreshold = append(belowThreshold, string(sector))
		}
	}
	payload.Recommendations[0] = narrative.PhraseOrFallback(context.Background(), r.narrator, r.logger, payload.Recommendations[0], belowThreshold)
}

func (r *Runner) maybeAlert(h *RunHandle, payload TickPayload) {
	if r.alert == nil {
		return
	}
	for sector, pct := range payload.Sectors {
		if pct >= CriticalSectorThreshold {
			continue
		}
		if _, alreadyAlerted := h.alertedSectors.LoadOrStore(sector, struct{}{}); alreadyAlerted {
			continue
		}
		r.alert.NotifyCriticalSector(context.Background(), h.SimRunID, h.City, sector, pct)
	}
}
