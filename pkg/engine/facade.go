// Package engine implements the scenario engine façade: the only surface
// the HTTP edge invokes (prepare, list/describe prepared, timeline, start,
// state, tick, dependency chain).
package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"

	"github.com/cityresilience/scenario-engine/internal/apierr"
	"github.com/cityresilience/scenario-engine/internal/clock"
	"github.com/cityresilience/scenario-engine/internal/metrics"
	"github.com/cityresilience/scenario-engine/internal/retry"
	"github.com/cityresilience/scenario-engine/pkg/dependency"
	"github.com/cityresilience/scenario-engine/pkg/runner"
	"github.com/cityresilience/scenario-engine/pkg/scenario"
	"github.com/cityresilience/scenario-engine/pkg/store"
)

// Store is the persistence surface the façade depends on directly (the
// rest of store.Store is consumed through the materializer/resolver/runner
// collaborators, each narrowed to what they need).
type Store = store.Store

// Facade wires the materializer, run registry, runner, and dependency
// resolver behind store access guarded by a circuit breaker and retry.
type Facade struct {
	store        Store
	materializer *scenario.Materializer
	resolver     *dependency.Resolver
	runnerSvc    *runner.Runner
	registry     *runner.Registry
	clock        clock.Clock
	logger       *slog.Logger
	metrics      *metrics.Metrics
	breaker      *gobreaker.CircuitBreaker
	retryCfg     retry.Config
}

// Option configures a Facade.
type Option func(*Facade)

// WithLogger overrides the façade's logger.
func WithLogger(l *slog.Logger) Option { return func(f *Facade) { f.logger = l } }

// WithClock overrides the façade's clock, for deterministic tests.
func WithClock(c clock.Clock) Option { return func(f *Facade) { f.clock = c } }

// WithMetrics wires Prometheus collectors.
func WithMetrics(m *metrics.Metrics) Option { return func(f *Facade) { f.metrics = m } }

// WithRetryConfig overrides the store-call retry policy.
func WithRetryConfig(cfg retry.Config) Option { return func(f *Facade) { f.retryCfg = cfg } }

// New builds a Facade over s. runnerSvc should already be wired with any
// SectorAlerter the deployment wants.
func New(s Store, runnerSvc *runner.Runner, opts ...Option) *Facade {
	f := &Facade{
		store:     s,
		clock:     clock.Real(),
		logger:    slog.Default(),
		runnerSvc: runnerSvc,
		registry:  runner.NewRegistry(),
		retryCfg:  retry.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.materializer = scenario.NewMaterializer(s)
	f.resolver = dependency.New(s, s)
	f.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "store",
		MaxRequests: 1,
		Interval:    30 * time.Second,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if f.metrics != nil {
				f.metrics.BreakerOpenTrip.WithLabelValues(name).Inc()
			}
			f.logger.Warn("circuit breaker state change", slog.String("breaker", name), slog.String("from", from.String()), slog.String("to", to.String()))
		},
	})
	return f
}

// withStore runs fn through the retry policy and circuit breaker.
func (f *Facade) withStore(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	_, err := f.breaker.Execute(func() (interface{}, error) {
		return nil, retry.Do(ctx, f.retryCfg, fn)
	})
	if err != nil && f.metrics != nil {
		f.metrics.StoreErrors.WithLabelValues(op).Inc()
	}
	return err
}

// PrepareRequest is the façade's prepare input.
type PrepareRequest struct {
	City          string
	ScenarioKey   string
	DurationHours int
	TickMinutes   int
	RepairCrews   int
	Anchors       []scenario.Anchor
	Seed          int64
}

// PrepareSummary is the façade's prepare output.
type PrepareSummary struct {
	InstanceID     string
	TemplateID     string
	HazardType     scenario.HazardType
	RuleCount      int
	EventsCreated  int
	RecoveriesAdded int
	AssetsUsed     int
	TotalTicks     int
	Status         string
}

// Prepare materializes a new instance for (city, scenario).
func (f *Facade) Prepare(ctx context.Context, req PrepareRequest) (*PrepareSummary, error) {
	spec, ok := scenario.ScenarioTemplateMap[req.ScenarioKey]
	if !ok {
		return nil, apierr.UnknownScenario(req.ScenarioKey)
	}
	if spec.RequiredAnchor != "" {
		found := false
		for _, a := range req.Anchors {
			if a.AnchorType == spec.RequiredAnchor {
				found = true
				break
			}
		}
		if !found {
			return nil, apierr.MissingAnchor(spec.RequiredAnchor)
		}
	}

	durationHours := clampInt(req.DurationHours, 1, 168)
	tickMinutes := clampInt(req.TickMinutes, 1, 60)
	repairCrews := clampInt(req.RepairCrews, 0, 999)

	inst := scenario.Instance{
		ID:            uuid.NewString(),
		City:          req.City,
		ScenarioKey:   req.ScenarioKey,
		HazardType:    spec.HazardType,
		TemplateID:    spec.TemplateID,
		DurationHours: durationHours,
		TickMinutes:   tickMinutes,
		RepairCrews:   repairCrews,
		Status:        "PREPARED",
		Seed:          req.Seed,
	}

	var rules []scenario.Rule
	if err := f.withStore(ctx, "rules_by_template", func(ctx context.Context) error {
		var err error
		rules, err = f.store.RulesByTemplate(ctx, spec.TemplateID)
		return err
	}); err != nil {
		return nil, apierr.Wrap(err, "load template rules")
	}

	result, err := f.materializer.Materialize(ctx, inst, rules, req.Anchors)
	if err != nil {
		return nil, err
	}
	recoveries := scenario.Inject(inst, result.Events)
	allEvents := append(result.Events, recoveries...)

	if err := f.withStore(ctx, "create_instance", func(ctx context.Context) error {
		return f.store.CreateInstance(ctx, inst)
	}); err != nil {
		return nil, apierr.Wrap(err, "create instance")
	}
	for _, a := range req.Anchors {
		a.InstanceID = inst.ID
		if err := f.withStore(ctx, "add_anchor", func(ctx context.Context) error {
			return f.store.AddAnchor(ctx, a)
		}); err != nil {
			return nil, apierr.Wrap(err, "persist anchor")
		}
	}
	if err := f.withStore(ctx, "save_events", func(ctx context.Context) error {
		return f.store.SaveEvents(ctx, inst.ID, allEvents)
	}); err != nil {
		return nil, apierr.Wrap(err, "persist events")
	}

	if f.metrics != nil {
		f.metrics.PreparesTotal.WithLabelValues(string(spec.HazardType)).Inc()
	}

	assetsUsed := map[string]bool{}
	for _, ev := range result.Events {
		assetsUsed[ev.AssetID] = true
	}

	return &PrepareSummary{
		InstanceID:      inst.ID,
		TemplateID:      spec.TemplateID,
		HazardType:      spec.HazardType,
		RuleCount:       len(rules),
		EventsCreated:   len(result.Events),
		RecoveriesAdded: len(recoveries),
		AssetsUsed:      len(assetsUsed),
		TotalTicks:      inst.TotalTicks(),
		Status:          inst.Status,
	}, nil
}

// ListPrepared returns up to limit instances for city (city empty means all).
func (f *Facade) ListPrepared(ctx context.Context, city string, limit int) ([]scenario.Instance, error) {
	var instances []scenario.Instance
	if err := f.withStore(ctx, "list_instances", func(ctx context.Context) error {
		var err error
		instances, err = f.store.ListInstances(ctx, city)
		return err
	}); err != nil {
		return nil, apierr.Wrap(err, "list instances")
	}
	if limit > 0 && len(instances) > limit {
		instances = instances[:limit]
	}
	return instances, nil
}

// DescribePrepared returns one instance plus its anchors and events.
func (f *Facade) DescribePrepared(ctx context.Context, instanceID string) (scenario.Instance, []scenario.Anchor, []scenario.Event, error) {
	inst, ok, err := f.store.GetInstance(ctx, instanceID)
	if err != nil {
		return scenario.Instance{}, nil, nil, apierr.Wrap(err, "load instance")
	}
	if !ok {
		return scenario.Instance{}, nil, nil, apierr.NotFound("instance", instanceID)
	}
	anchors, err := f.store.AnchorsByInstance(ctx, instanceID)
	if err != nil {
		return scenario.Instance{}, nil, nil, apierr.Wrap(err, "load anchors")
	}
	events, err := f.store.EventsByInstance(ctx, instanceID)
	if err != nil {
		return scenario.Instance{}, nil, nil, apierr.Wrap(err, "load events")
	}
	return inst, anchors, events, nil
}

// TimelineBucket is one bucketed slice of an instance's event table.
type TimelineBucket struct {
	StartTick int
	EndTick   int
	Events    []scenario.Event
}

// Timeline groups instanceID's events into fixed-width tick buckets.
func (f *Facade) Timeline(ctx context.Context, instanceID string, bucketTicks int) ([]TimelineBucket, error) {
	if bucketTicks < 1 {
		return nil, apierr.BadInput("bucket_ticks must be >= 1")
	}
	inst, ok, err := f.store.GetInstance(ctx, instanceID)
	if err != nil {
		return nil, apierr.Wrap(err, "load instance")
	}
	if !ok {
		return nil, apierr.NotFound("instance", instanceID)
	}
	events, err := f.store.EventsByInstance(ctx, instanceID)
	if err != nil {
		return nil, apierr.Wrap(err, "load events")
	}

	total := inst.TotalTicks()
	var buckets []TimelineBucket
	for start := 0; start < total; start += bucketTicks {
		end := start + bucketTicks - 1
		if end > total-1 {
			end = total - 1
		}
		buckets = append(buckets, TimelineBucket{StartTick: start, EndTick: end})
	}
	for _, ev := range events {
		idx := ev.TickIndex / bucketTicks
		if idx >= 0 && idx < len(buckets) {
			buckets[idx].Events = append(buckets[idx].Events, ev)
		}
	}
	return buckets, nil
}

// Start begins a new run over instanceID.
func (f *Facade) Start(ctx context.Context, instanceID string) (*runner.RunHandle, error) {
	simRunID := runner.NewRunID()
	h, err := f.runnerSvc.Start(ctx, simRunID, instanceID)
	if err != nil {
		return nil, err
	}
	f.registry.Put(h)
	if f.metrics != nil {
		f.metrics.RunsStarted.Inc()
		f.metrics.RunsActive.Set(float64(f.registry.Len()))
	}
	return h, nil
}

// State returns a run's lifecycle summary.
func (f *Facade) State(simRunID string) (runner.State, error) {
	h, ok := f.registry.Get(simRunID)
	if !ok {
		return runner.State{}, apierr.NotFound("run", simRunID)
	}
	return h.State(), nil
}

// Tick returns one run's tick payload, or ok=false if not yet computed.
func (f *Facade) Tick(simRunID string, tickIndex int) (runner.TickPayload, bool, error) {
	h, ok := f.registry.Get(simRunID)
	if !ok {
		return runner.TickPayload{}, false, apierr.NotFound("run", simRunID)
	}
	payload, ready := h.Tick(tickIndex)
	return payload, ready, nil
}

// Chain walks the dependency graph from rootAssetID.
func (f *Facade) Chain(ctx context.Context, rootAssetID string, direction dependency.Direction, maxDepth int) (*dependency.Chain, error) {
	return f.resolver.Chain(ctx, rootAssetID, direction, maxDepth)
}

// Graph returns the full dependency graph for a city.
func (f *Facade) Graph(ctx context.Context, city string) (*dependency.Chain, error) {
	return f.resolver.Graph(ctx, city)
}

// RunRegistryGC runs one GC sweep over retained runs; call periodically
// from a background ticker.
func (f *Facade) RunRegistryGC(opts runner.GCOptions) int {
	evicted := f.registry.GC(f.clock.Now(), opts)
	if f.metrics != nil {
		f.metrics.RunsActive.Set(float64(f.registry.Len()))
	}
	return evicted
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
