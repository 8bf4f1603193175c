package scenario

import (
	"context"
	"reflect"
	"sort"
	"testing"

	"github.com/cityresilience/scenario-engine/pkg/asset"
)

type fakeAssetSource struct {
	byKey map[string][]asset.Asset
}

func newFakeAssetSource() *fakeAssetSource {
	return &fakeAssetSource{byKey: make(map[string][]asset.Asset)}
}

func (f *fakeAssetSource) add(city string, sector asset.Sector, subtype string, assets ...asset.Asset) {
	f.byKey[city+"|"+string(sector)+"|"+subtype] = append(f.byKey[city+"|"+string(sector)+"|"+subtype], assets...)
}

func (f *fakeAssetSource) AssetsByCitySectorSubtype(ctx context.Context, city string, sector asset.Sector, subtype string) ([]asset.Asset, error) {
	return f.byKey[city+"|"+string(sector)+"|"+subtype], nil
}

func baseInstance() Instance {
	return Instance{ID: "inst-1", City: "metro", DurationHours: 10, TickMinutes: 60}
}

func TestMaterializeIsDeterministicForFixedInputs(t *testing.T) {
	src := newFakeAssetSource()
	src.add("metro", asset.SectorElectricity, "", asset.Asset{ID: "a1", City: "metro", Sector: asset.SectorElectricity})
	src.add("metro", asset.SectorElectricity, "", asset.Asset{ID: "a2", City: "metro", Sector: asset.SectorElectricity})
	m := NewMaterializer(src)

	rules := []Rule{{
		RuleID: "r1", TemplateID: "t1", EventKind: EventKindImpact, TimePct: 10,
		SelectionScope: ScopeGeoScatter, Sector: asset.SectorElectricity, TargetMode: TargetModePct,
		TargetValue: 100, PerformancePct: 20, Enabled: true,
	}}

	first, err := m.Materialize(context.Background(), baseInstance(), rules, nil)
	if err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	second, err := m.Materialize(context.Background(), baseInstance(), rules, nil)
	if err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	if !reflect.DeepEqual(first.Events, second.Events) {
		t.Fatalf("expected byte-identical event lists for identical inputs:\n%+v\nvs\n%+v", first.Events, second.Events)
	}
}

func TestMaterializeOrdersRulesByTimePctThenPriorityThenRuleID(t *testing.T) {
	src := newFakeAssetSource()
	src.add("metro", asset.SectorWater, "", asset.Asset{ID: "w1", City: "metro", Sector: asset.SectorWater})

	m := NewMaterializer(src)
	rules := []Rule{
		{RuleID: "z-late", TemplateID: "t1", TimePct: 50, Priority: 0, SelectionScope: ScopeGeoScatter, Sector: asset.SectorWater, TargetMode: TargetModeCount, TargetValue: 1, PerformancePct: 10, Enabled: true},
		{RuleID: "a-tie-low-priority", TemplateID: "t1", TimePct: 10, Priority: 1, SelectionScope: ScopeGeoScatter, Sector: asset.SectorWater, TargetMode: TargetModeCount, TargetValue: 1, PerformancePct: 10, Enabled: true, AllowReuseAsset: true},
		{RuleID: "b-tie-high-priority", TemplateID: "t1", TimePct: 10, Priority: 5, SelectionScope: ScopeGeoScatter, Sector: asset.SectorWater, TargetMode: TargetModeCount, TargetValue: 1, PerformancePct: 10, Enabled: true, AllowReuseAsset: true},
	}

	result, err := m.Materialize(context.Background(), baseInstance(), rules, nil)
	if err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	if len(result.Events) != 3 {
		t.Fatalf("expected 3 events, got %d: %+v", len(result.Events), result.Events)
	}
	gotOrder := []string{result.Events[0].SourceRuleID, result.Events[1].SourceRuleID, result.Events[2].SourceRuleID}
	wantOrder := []string{"b-tie-high-priority", "a-tie-low-priority", "z-late"}
	if !reflect.DeepEqual(gotOrder, wantOrder) {
		t.Fatalf("expected order %v (time_pct ASC, priority DESC, rule_id ASC), got %v", wantOrder, gotOrder)
	}
}

func TestMaterializeAllowReuseAssetExclusivity(t *testing.T) {
	src := newFakeAssetSource()
	src.add("metro", asset.SectorGas, "", asset.Asset{ID: "g1", City: "metro", Sector: asset.SectorGas})
	m := NewMaterializer(src)

	// Two rules competing for the single candidate asset; the first
	// (time_pct ASC) claims it when reuse is disallowed, and the second
	// gets zero events for an empty remaining pool.
	rules := []Rule{
		{RuleID: "first", TemplateID: "t1", TimePct: 10, SelectionScope: ScopeGeoScatter, Sector: asset.SectorGas, TargetMode: TargetModeCount, TargetValue: 1, PerformancePct: 10, Enabled: true, AllowReuseAsset: false},
		{RuleID: "second", TemplateID: "t1", TimePct: 20, SelectionScope: ScopeGeoScatter, Sector: asset.SectorGas, TargetMode: TargetModeCount, TargetValue: 1, PerformancePct: 10, Enabled: true, AllowReuseAsset: false},
	}

	result, err := m.Materialize(context.Background(), baseInstance(), rules, nil)
	if err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	if len(result.Events) != 1 {
		t.Fatalf("expected only the first rule to claim the exclusive asset, got %+v", result.Events)
	}
	if result.Events[0].SourceRuleID != "first" {
		t.Fatalf("expected the first rule to win the asset, got %+v", result.Events[0])
	}
	foundWarning := false
	for _, w := range result.Warnings {
		if w.RuleID == "second" {
			foundWarning = true
		}
	}
	if !foundWarning {
		t.Fatalf("expected a warning for the second rule's empty pool, got %+v", result.Warnings)
	}
}

func TestMaterializeAllowReuseAssetLetsBothRulesClaimTheSameAsset(t *testing.T) {
	src := newFakeAssetSource()
	src.add("metro", asset.SectorGas, "", asset.Asset{ID: "g1", City: "metro", Sector: asset.SectorGas})
	m := NewMaterializer(src)

	rules := []Rule{
		{RuleID: "first", TemplateID: "t1", TimePct: 10, SelectionScope: ScopeGeoScatter, Sector: asset.SectorGas, TargetMode: TargetModeCount, TargetValue: 1, PerformancePct: 10, Enabled: true, AllowReuseAsset: true},
		{RuleID: "second", TemplateID: "t1", TimePct: 20, SelectionScope: ScopeGeoScatter, Sector: asset.SectorGas, TargetMode: TargetModeCount, TargetValue: 1, PerformancePct: 10, Enabled: true, AllowReuseAsset: true},
	}

	result, err := m.Materialize(context.Background(), baseInstance(), rules, nil)
	if err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	if len(result.Events) != 2 {
		t.Fatalf("expected both rules to claim the shared asset when reuse is allowed, got %+v", result.Events)
	}
}

func TestMaterializeGeoRadiusFiltersByDistanceFromAnchor(t *testing.T) {
	src := newFakeAssetSource()
	src.add("metro", asset.SectorElectricity, "",
		asset.Asset{ID: "near", City: "metro", Sector: asset.SectorElectricity, Lat: 40.001, Lng: -73.001},
		asset.Asset{ID: "far", City: "metro", Sector: asset.SectorElectricity, Lat: 41.5, Lng: -75.0},
	)
	m := NewMaterializer(src)

	rules := []Rule{{
		RuleID: "r1", TemplateID: "t1", TimePct: 10, SelectionScope: ScopeGeoRadius,
		Sector: asset.SectorElectricity, TargetMode: TargetModePct, TargetValue: 100,
		PerformancePct: 10, Enabled: true, GeoAnchor: "EPICENTER", GeoParam1Km: 5,
	}}
	anchors := []Anchor{{InstanceID: "inst-1", AnchorType: "EPICENTER", Lat: 40.0, Lng: -73.0}}

	result, err := m.Materialize(context.Background(), baseInstance(), rules, anchors)
	if err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	if len(result.Events) != 1 || result.Events[0].AssetID != "near" {
		t.Fatalf("expected only the in-radius asset to be selected, got %+v", result.Events)
	}
}

func TestMaterializeGeoRadiusWithoutMatchingAnchorFallsBackToFullPool(t *testing.T) {
	src := newFakeAssetSource()
	src.add("metro", asset.SectorElectricity, "",
		asset.Asset{ID: "a1", City: "metro", Sector: asset.SectorElectricity, Lat: 10, Lng: 10},
	)
	m := NewMaterializer(src)

	rules := []Rule{{
		RuleID: "r1", TemplateID: "t1", TimePct: 10, SelectionScope: ScopeGeoRadius,
		Sector: asset.SectorElectricity, TargetMode: TargetModePct, TargetValue: 100,
		PerformancePct: 10, Enabled: true, GeoAnchor: "NONEXISTENT", GeoParam1Km: 5,
	}}

	result, err := m.Materialize(context.Background(), baseInstance(), rules, nil)
	if err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	if len(result.Events) != 1 {
		t.Fatalf("expected the full pool when no anchor matches, got %+v", result.Events)
	}
}

func TestTickForTimePctRoundsUpToTickBoundary(t *testing.T) {
	cases := []struct {
		timePct    float64
		totalTicks int
		want       int
	}{
		{0, 10, 0},
		{1, 10, 1},   // just above 0% still rounds up into tick 1, not truncated to 0
		{10, 10, 1},
		{100, 10, 9}, // clamped to the last valid tick index
		{50, 1, 0},   // single-tick instance always resolves to tick 0
	}
	for _, c := range cases {
		got := tickForTimePct(c.timePct, c.totalTicks)
		if got != c.want {
			t.Errorf("tickForTimePct(%v, %v) = %v, want %v", c.timePct, c.totalTicks, got, c.want)
		}
	}
}

func TestTargetCountClampsToPoolSize(t *testing.T) {
	pctRule := Rule{TargetMode: TargetModePct, TargetValue: 200}
	if got := targetCount(pctRule, 4); got != 4 {
		t.Fatalf("expected PCT target to clamp to pool size 4, got %v", got)
	}
	countRule := Rule{TargetMode: TargetModeCount, TargetValue: 99}
	if got := targetCount(countRule, 3); got != 3 {
		t.Fatalf("expected COUNT target to clamp to pool size 3, got %v", got)
	}
}

func TestMaterializeSkipsDisabledRules(t *testing.T) {
	src := newFakeAssetSource()
	src.add("metro", asset.SectorWater, "", asset.Asset{ID: "w1", City: "metro", Sector: asset.SectorWater})
	m := NewMaterializer(src)

	rules := []Rule{{
		RuleID: "disabled", TemplateID: "t1", TimePct: 10, SelectionScope: ScopeGeoScatter,
		Sector: asset.SectorWater, TargetMode: TargetModePct, TargetValue: 100,
		PerformancePct: 10, Enabled: false,
	}}

	result, err := m.Materialize(context.Background(), baseInstance(), rules, nil)
	if err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	if len(result.Events) != 0 {
		t.Fatalf("expected no events for a disabled rule, got %+v", result.Events)
	}
}

func TestApplySelectionScopeGraphCentralitySortsByCriticalityDescending(t *testing.T) {
	rule := Rule{SelectionScope: ScopeGraphCentrality}
	candidates := []asset.Asset{
		{ID: "low", Criticality: 1},
		{ID: "high", Criticality: 5},
		{ID: "mid", Criticality: 3},
	}
	pool := applySelectionScope(rule, candidates, nil)
	got := make([]string, len(pool))
	for i, a := range pool {
		got[i] = a.ID
	}
	want := []string{"high", "mid", "low"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected descending criticality order %v, got %v", want, got)
	}
}

func TestApplySelectionScopeGeoScatterSortsByAssetID(t *testing.T) {
	rule := Rule{SelectionScope: ScopeGeoScatter}
	candidates := []asset.Asset{{ID: "c"}, {ID: "a"}, {ID: "b"}}
	pool := applySelectionScope(rule, candidates, nil)
	ids := make([]string, len(pool))
	for i, a := range pool {
		ids[i] = a.ID
	}
	if !sort.StringsAreSorted(ids) {
		t.Fatalf("expected GEO_SCATTER pool sorted by asset id, got %v", ids)
	}
}
