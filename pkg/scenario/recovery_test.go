package scenario

import (
	"reflect"
	"testing"
)

func TestInjectIsDeterministicUnderFixedSeed(t *testing.T) {
	inst := Instance{ID: "inst-1", DurationHours: 24, TickMinutes: 30, Seed: 42}
	primary := []Event{
		{InstanceID: inst.ID, TickIndex: 3, AssetID: "sub-1", PerformancePct: 0, SourceRuleID: "r1"},
		{InstanceID: inst.ID, TickIndex: 5, AssetID: "sub-2", PerformancePct: 60, SourceRuleID: "r2"},
	}

	first := Inject(inst, primary)
	second := Inject(inst, primary)

	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected byte-identical recovery schedules for the same seed, got:\n%+v\nvs\n%+v", first, second)
	}
}

func TestInjectDiffersAcrossSeeds(t *testing.T) {
	primary := []Event{
		{InstanceID: "inst-1", TickIndex: 3, AssetID: "sub-1", PerformancePct: 0, SourceRuleID: "r1"},
	}
	a := Inject(Instance{ID: "inst-1", DurationHours: 48, TickMinutes: 15, Seed: 1}, primary)
	b := Inject(Instance{ID: "inst-1", DurationHours: 48, TickMinutes: 15, Seed: 2}, primary)

	if reflect.DeepEqual(a, b) {
		t.Fatal("expected different seeds to produce different recovery schedules")
	}
}

func TestInjectSkipsFullyRecoveredEvents(t *testing.T) {
	inst := Instance{ID: "inst-1", DurationHours: 24, TickMinutes: 60, Seed: 7}
	primary := []Event{
		{InstanceID: inst.ID, TickIndex: 0, AssetID: "sub-1", PerformancePct: 100, SourceRuleID: "r1"},
	}
	recoveries := Inject(inst, primary)
	if len(recoveries) != 0 {
		t.Fatalf("expected no recoveries for an already-at-100 event, got %+v", recoveries)
	}
}

func TestInjectEventsScheduleAfterTheTriggeringImpact(t *testing.T) {
	inst := Instance{ID: "inst-1", DurationHours: 72, TickMinutes: 10, Seed: 99}
	primary := []Event{
		{InstanceID: inst.ID, TickIndex: 2, AssetID: "sub-1", PerformancePct: 0, SourceRuleID: "r1"},
	}
	recoveries := Inject(inst, primary)
	if len(recoveries) == 0 {
		t.Fatal("expected at least one recovery event")
	}
	for _, ev := range recoveries {
		if ev.TickIndex <= 2 {
			t.Fatalf("expected recovery tick after the triggering impact tick 2, got %+v", ev)
		}
		if ev.TickIndex >= inst.TotalTicks() {
			t.Fatalf("expected recovery tick within total ticks, got %+v", ev)
		}
	}
}

func TestInjectDeduplicatesIdenticalRecoveryEvents(t *testing.T) {
	inst := Instance{ID: "inst-1", DurationHours: 24, TickMinutes: 60, Seed: 5}
	// Two identical primary events for the same asset/tick/performance should
	// not produce duplicate recovery rows under the dedup key.
	primary := []Event{
		{InstanceID: inst.ID, TickIndex: 0, AssetID: "sub-1", PerformancePct: 30, SourceRuleID: "r1"},
		{InstanceID: inst.ID, TickIndex: 0, AssetID: "sub-1", PerformancePct: 30, SourceRuleID: "r1"},
	}
	recoveries := Inject(inst, primary)
	seen := make(map[dedupKey]bool)
	for _, ev := range recoveries {
		k := dedupKey{inst.ID, ev.AssetID, ev.TickIndex, ev.PerformancePct}
		if seen[k] {
			t.Fatalf("expected no duplicate recovery events, found duplicate %+v", ev)
		}
		seen[k] = true
	}
}
