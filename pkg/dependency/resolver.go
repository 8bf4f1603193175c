// Package dependency implements the bounded BFS dependency-chain resolver:
// the read-side counterpart the simulator and the UI rely on to walk
// provider -> consumer edges.
package dependency

import (
	"context"
	"fmt"

	"github.com/cityresilience/scenario-engine/internal/apierr"
	"github.com/cityresilience/scenario-engine/pkg/asset"
)

// Direction is the traversal direction over the stored provider -> consumer
// edges.
type Direction string

const (
	Upstream   Direction = "upstream"
	Downstream Direction = "downstream"
)

const maxDepthLimit = 12

// EdgeSource loads the active edge set once per request; callers needing
// hot-path traversal are expected to cache it themselves.
type EdgeSource interface {
	ActiveDependencies(ctx context.Context, city string) ([]asset.Dependency, error)
}

// AssetLoader batch-resolves asset ids after traversal completes.
type AssetLoader interface {
	AssetsByIDs(ctx context.Context, ids []string) ([]asset.Asset, error)
}

// Node is one reachable asset in the resolved subgraph.
type Node struct {
	Asset asset.Asset
	Depth int
}

// Edge is one directed, depth-annotated edge in the resolved subgraph.
type Edge struct {
	From     string
	To       string
	Type     asset.DependencyType
	Priority int
	Level    int
}

// Chain is the resolved reachable subgraph rooted at one asset.
type Chain struct {
	Root  string
	Nodes []Node
	Edges []Edge
}

// Resolver performs bounded directed BFS over the active-dependency graph.
type Resolver struct {
	edges  EdgeSource
	assets AssetLoader
}

// New builds a Resolver backed by the given collaborators.
func New(edges EdgeSource, assets AssetLoader) *Resolver {
	return &Resolver{edges: edges, assets: assets}
}

// Chain walks the active-edge graph from rootAssetID in the given direction
// up to maxDepth hops. Upstream interprets the edge set reversed (consumer
// -> provider); downstream uses it as stored.
//
// Complexity is O(V+E) per call: the active edge set for the root's city is
// loaded once, then BFS runs in memory.
func (r *Resolver) Chain(ctx context.Context, rootAssetID string, direction Direction, maxDepth int) (*Chain, error) {
	if direction != Upstream && direction != Downstream {
		return nil, apierr.BadInput(fmt.Sprintf("invalid direction %q", direction))
	}
	if maxDepth < 1 || maxDepth > maxDepthLimit {
		return nil, apierr.BadInput(fmt.Sprintf("max_depth must be in [1,%d]", maxDepthLimit))
	}

	root, err := r.assets.AssetsByIDs(ctx, []string{rootAssetID})
	if err != nil {
		return nil, apierr.Wrap(err, "load root asset")
	}
	if len(root) == 0 {
		return nil, apierr.NotFound("asset", rootAssetID)
	}

	deps, err := r.edges.ActiveDependencies(ctx, root[0].City)
	if err != nil {
		return nil, apierr.Wrap(err, "load active dependencies")
	}

	adjacency := buildAdjacency(deps, direction)

	type queued struct {
		id    string
		depth int
	}
	visited := map[string]int{rootAssetID: 0}
	order := []string{rootAssetID}
	queue := []queued{{rootAssetID, 0}}

	type edgeKey struct {
		from, to string
		typ      asset.DependencyType
		priority int
	}
	seenEdges := make(map[edgeKey]bool)
	var edges []Edge

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.depth >= maxDepth {
			continue
		}
		for _, adj := range adjacency[cur.id] {
			ek := edgeKey{cur.id, adj.to, adj.typ, adj.priority}
			if !seenEdges[ek] {
				seenEdges[ek] = true
				edges = append(edges, Edge{From: cur.id, To: adj.to, Type: adj.typ, Priority: adj.priority, Level: cur.depth + 1})
			}
			if _, ok := visited[adj.to]; !ok {
				visited[adj.to] = cur.depth + 1
				order = append(order, adj.to)
				queue = append(queue, queued{adj.to, cur.depth + 1})
			}
		}
	}

	assets, err := r.assets.AssetsByIDs(ctx, order)
	if err != nil {
		return nil, apierr.Wrap(err, "batch load resolved assets")
	}
	byID := make(map[string]asset.Asset, len(assets))
	for _, a := range assets {
		byID[a.ID] = a
	}

	nodes := make([]Node, 0, len(order))
	for _, id := range order {
		a, ok := byID[id]
		if !ok {
			continue
		}
		nodes = append(nodes, Node{Asset: a, Depth: visited[id]})
	}

	return &Chain{Root: rootAssetID, Nodes: nodes, Edges: edges}, nil
}

type adjTarget struct {
	to       string
	typ      asset.DependencyType
	priority int
}

// buildAdjacency builds a directed adjacency list honoring direction:
// downstream keeps provider->consumer as stored; upstream reverses it to
// consumer->provider.
func buildAdjacency(deps []asset.Dependency, direction Direction) map[string][]adjTarget {
	adjacency := make(map[string][]adjTarget)
	for _, d := range deps {
		if !d.IsActive {
			continue
		}
		from, to := d.ProviderAssetID, d.ConsumerAssetID
		if direction == Upstream {
			from, to = d.ConsumerAssetID, d.ProviderAssetID
		}
		adjacency[from] = append(adjacency[from], adjTarget{to: to, typ: d.DependencyType, priority: d.Priority})
	}
	return adjacency
}

// Graph returns the full structural {nodes, links} view of one city's
// active-edge graph, used by the UI's force-directed layout. Unlike Chain,
// it is not depth-bounded.
func (r *Resolver) Graph(ctx context.Context, city string) (*Chain, error) {
	deps, err := r.edges.ActiveDependencies(ctx, city)
	if err != nil {
		return nil, apierr.Wrap(err, "load active dependencies")
	}

	ids := map[string]bool{}
	for _, d := range deps {
		ids[d.ProviderAssetID] = true
		ids[d.ConsumerAssetID] = true
	}
	idList := make([]string, 0, len(ids))
	for id := range ids {
		idList = append(idList, id)
	}

	assets, err := r.assets.AssetsByIDs(ctx, idList)
	if err != nil {
		return nil, apierr.Wrap(err, "batch load assets")
	}

	nodes := make([]Node, 0, len(assets))
	for _, a := range assets {
		nodes = append(nodes, Node{Asset: a})
	}

	edges := make([]Edge, 0, len(deps))
	for _, d := range deps {
		if !d.IsActive {
			continue
		}
		edges = append(edges, Edge{From: d.ProviderAssetID, To: d.ConsumerAssetID, Type: d.DependencyType, Priority: d.Priority})
	}

	return &Chain{Nodes: nodes, Edges: edges}, nil
}
