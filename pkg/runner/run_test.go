package runner

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cityresilience/scenario-engine/internal/clock"
	"github.com/cityresilience/scenario-engine/pkg/asset"
	"github.com/cityresilience/scenario-engine/pkg/scenario"
)

type fakeStore struct {
	inst   scenario.Instance
	assets []asset.Asset
	events []scenario.Event

	mu             sync.Mutex
	statesRecorded []asset.OperationalState
}

func (f *fakeStore) GetInstance(ctx context.Context, instanceID string) (scenario.Instance, bool, error) {
	if instanceID != f.inst.ID {
		return scenario.Instance{}, false, nil
	}
	return f.inst, true, nil
}

func (f *fakeStore) ListAssetsByCity(ctx context.Context, city string) ([]asset.Asset, error) {
	return f.assets, nil
}

func (f *fakeStore) EventsByInstance(ctx context.Context, instanceID string) ([]scenario.Event, error) {
	return f.events, nil
}

func (f *fakeStore) SetOperationalState(ctx context.Context, s asset.OperationalState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statesRecorded = append(f.statesRecorded, s)
	return nil
}

func waitForDone(t *testing.T, h *RunHandle, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if h.State().Done {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("run did not complete before deadline")
}

func TestStartRunsPrecomputationAndPublishesAllTicks(t *testing.T) {
	store := &fakeStore{
		inst:   scenario.Instance{ID: "inst-1", City: "metro", DurationHours: 1, TickMinutes: 30},
		assets: []asset.Asset{{ID: "sub-1", City: "metro", Sector: asset.SectorElectricity, Criticality: 3}},
		events: []scenario.Event{
			{InstanceID: "inst-1", TickIndex: 1, AssetID: "sub-1", PerformancePct: 0},
		},
	}
	r := New(store, WithClock(clock.Real()))
	h, err := r.Start(context.Background(), "run-1", "inst-1")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitForDone(t, h, 2*time.Second)

	if h.TotalTicks != 2 {
		t.Fatalf("expected 2 total ticks, got %d", h.TotalTicks)
	}
	p0, ok := h.Tick(0)
	if !ok {
		t.Fatal("expected tick 0 to be available")
	}
	if len(p0.AssetsChanged) != 0 {
		t.Fatalf("expected no changes at tick 0, got %+v", p0.AssetsChanged)
	}
	p1, ok := h.Tick(1)
	if !ok {
		t.Fatal("expected tick 1 to be available")
	}
	if len(p1.AssetsChanged) != 1 || p1.AssetsChanged[0].Status != asset.LabelFailed {
		t.Fatalf("expected a FAILED transition at tick 1, got %+v", p1.AssetsChanged)
	}

	store.mu.Lock()
	recorded := append([]asset.OperationalState(nil), store.statesRecorded...)
	store.mu.Unlock()
	if len(recorded) != 1 || recorded[0].AssetID != "sub-1" || recorded[0].Status != asset.StatusInactive {
		t.Fatalf("expected the inactive transition to persist through the store, got %+v", recorded)
	}
}

func TestStartFailsNotFoundForUnknownInstance(t *testing.T) {
	store := &fakeStore{inst: scenario.Instance{ID: "inst-1", City: "metro", DurationHours: 1, TickMinutes: 60}}
	r := New(store)
	if _, err := r.Start(context.Background(), "run-1", "missing"); err == nil {
		t.Fatal("expected NOT_FOUND for unknown instance")
	}
}

func TestTickClampsOutOfRangeIndex(t *testing.T) {
	store := &fakeStore{
		inst:   scenario.Instance{ID: "inst-1", City: "metro", DurationHours: 1, TickMinutes: 60},
		assets: []asset.Asset{{ID: "sub-1", City: "metro", Sector: asset.SectorElectricity}},
	}
	r := New(store, WithClock(clock.Real()))
	h, err := r.Start(context.Background(), "run-1", "inst-1")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitForDone(t, h, 2*time.Second)

	if _, ok := h.Tick(99); !ok {
		t.Fatal("expected an out-of-range index to clamp to the last tick, not miss")
	}
}

type spyAlerter struct {
	calls []string
}

func (s *spyAlerter) NotifyCriticalSector(ctx context.Context, simRunID, city string, sector asset.Sector, pct int) {
	s.calls = append(s.calls, string(sector))
}

func TestCriticalSectorAlertsOnceAndOnlyBelowThreshold(t *testing.T) {
	store := &fakeStore{
		inst: scenario.Instance{ID: "inst-1", City: "metro", DurationHours: 1, TickMinutes: 30},
		assets: []asset.Asset{
			{ID: "sub-1", City: "metro", Sector: asset.SectorElectricity, Criticality: 3},
		},
		events: []scenario.Event{
			{InstanceID: "inst-1", TickIndex: 0, AssetID: "sub-1", PerformancePct: 10},
			{InstanceID: "inst-1", TickIndex: 1, AssetID: "sub-1", PerformancePct: 5},
		},
	}
	alerter := &spyAlerter{}
	r := New(store, WithClock(clock.Real()), WithSectorAlerter(alerter))
	h, err := r.Start(context.Background(), "run-1", "inst-1")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitForDone(t, h, 2*time.Second)

	if len(alerter.calls) != 1 {
		t.Fatalf("expected exactly one alert for the sector's first crossing, got %v", alerter.calls)
	}
}
