package dependency

import (
	"context"
	"testing"

	"github.com/cityresilience/scenario-engine/pkg/asset"
)

type fakeEdges struct {
	deps []asset.Dependency
}

func (f *fakeEdges) ActiveDependencies(ctx context.Context, city string) ([]asset.Dependency, error) {
	return f.deps, nil
}

type fakeAssets struct {
	byID map[string]asset.Asset
}

func (f *fakeAssets) AssetsByIDs(ctx context.Context, ids []string) ([]asset.Asset, error) {
	var out []asset.Asset
	for _, id := range ids {
		if a, ok := f.byID[id]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}

func chainAssets() *fakeAssets {
	return &fakeAssets{byID: map[string]asset.Asset{
		"sub-1": {ID: "sub-1", City: "metro", Sector: asset.SectorElectricity},
		"feed-1": {ID: "feed-1", City: "metro", Sector: asset.SectorElectricity},
		"plant-1": {ID: "plant-1", City: "metro", Sector: asset.SectorElectricity},
		"pump-1": {ID: "pump-1", City: "metro", Sector: asset.SectorWater},
	}}
}

func chainDeps() []asset.Dependency {
	return []asset.Dependency{
		{ProviderAssetID: "plant-1", ConsumerAssetID: "feed-1", DependencyType: "power_feed", Priority: 1, IsActive: true},
		{ProviderAssetID: "feed-1", ConsumerAssetID: "sub-1", DependencyType: "power_feed", Priority: 1, IsActive: true},
		{ProviderAssetID: "sub-1", ConsumerAssetID: "pump-1", DependencyType: "power_feed", Priority: 2, IsActive: true},
		{ProviderAssetID: "feed-1", ConsumerAssetID: "sub-1", DependencyType: "power_feed", Priority: 1, IsActive: false},
	}
}

func TestChainDownstream(t *testing.T) {
	r := New(&fakeEdges{deps: chainDeps()}, chainAssets())
	c, err := r.Chain(context.Background(), "plant-1", Downstream, 12)
	if err != nil {
		t.Fatalf("Chain: %v", err)
	}
	if len(c.Nodes) != 4 {
		t.Fatalf("expected 4 reachable nodes, got %d: %+v", len(c.Nodes), c.Nodes)
	}
	depths := map[string]int{}
	for _, n := range c.Nodes {
		depths[n.Asset.ID] = n.Depth
	}
	if depths["plant-1"] != 0 || depths["feed-1"] != 1 || depths["sub-1"] != 2 || depths["pump-1"] != 3 {
		t.Fatalf("unexpected depths: %+v", depths)
	}
}

func TestChainUpstreamReversesEdges(t *testing.T) {
	r := New(&fakeEdges{deps: chainDeps()}, chainAssets())
	c, err := r.Chain(context.Background(), "pump-1", Upstream, 12)
	if err != nil {
		t.Fatalf("Chain: %v", err)
	}
	if len(c.Nodes) != 4 {
		t.Fatalf("expected 4 reachable nodes via upstream walk, got %d", len(c.Nodes))
	}
}

func TestChainRespectsMaxDepth(t *testing.T) {
	r := New(&fakeEdges{deps: chainDeps()}, chainAssets())
	c, err := r.Chain(context.Background(), "plant-1", Downstream, 1)
	if err != nil {
		t.Fatalf("Chain: %v", err)
	}
	if len(c.Nodes) != 2 {
		t.Fatalf("expected root + 1 hop = 2 nodes, got %d: %+v", len(c.Nodes), c.Nodes)
	}
}

func TestChainRootOnlyWithNoDependencies(t *testing.T) {
	r := New(&fakeEdges{deps: nil}, chainAssets())
	c, err := r.Chain(context.Background(), "plant-1", Downstream, 5)
	if err != nil {
		t.Fatalf("Chain: %v", err)
	}
	if len(c.Nodes) != 1 || len(c.Edges) != 0 {
		t.Fatalf("expected root-only subgraph, got %+v", c)
	}
}

func TestChainUnknownRootIsNotFound(t *testing.T) {
	r := New(&fakeEdges{deps: chainDeps()}, chainAssets())
	if _, err := r.Chain(context.Background(), "missing-asset", Downstream, 3); err == nil {
		t.Fatal("expected NOT_FOUND error for unknown root asset")
	}
}

func TestChainRejectsInvalidDirection(t *testing.T) {
	r := New(&fakeEdges{deps: chainDeps()}, chainAssets())
	if _, err := r.Chain(context.Background(), "plant-1", Direction("sideways"), 3); err == nil {
		t.Fatal("expected BAD_INPUT for invalid direction")
	}
}

func TestChainRejectsDepthOutOfRange(t *testing.T) {
	r := New(&fakeEdges{deps: chainDeps()}, chainAssets())
	if _, err := r.Chain(context.Background(), "plant-1", Downstream, 0); err == nil {
		t.Fatal("expected BAD_INPUT for max_depth below range")
	}
	if _, err := r.Chain(context.Background(), "plant-1", Downstream, 13); err == nil {
		t.Fatal("expected BAD_INPUT for max_depth above range")
	}
}

func TestChainDedupesParallelEdges(t *testing.T) {
	deps := chainDeps()
	deps = append(deps, asset.Dependency{ProviderAssetID: "plant-1", ConsumerAssetID: "feed-1", DependencyType: "power_feed", Priority: 1, IsActive: true})
	r := New(&fakeEdges{deps: deps}, chainAssets())
	c, err := r.Chain(context.Background(), "plant-1", Downstream, 12)
	if err != nil {
		t.Fatalf("Chain: %v", err)
	}
	count := 0
	for _, e := range c.Edges {
		if e.From == "plant-1" && e.To == "feed-1" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected exactly 1 deduped edge plant-1->feed-1, got %d", count)
	}
}

func TestGraphIncludesAllActiveEdges(t *testing.T) {
	r := New(&fakeEdges{deps: chainDeps()}, chainAssets())
	g, err := r.Graph(context.Background(), "metro")
	if err != nil {
		t.Fatalf("Graph: %v", err)
	}
	if len(g.Nodes) != 4 {
		t.Fatalf("expected 4 nodes in full graph, got %d", len(g.Nodes))
	}
	if len(g.Edges) != 3 {
		t.Fatalf("expected 3 active edges, got %d", len(g.Edges))
	}
}
