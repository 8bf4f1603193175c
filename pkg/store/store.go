// Package store defines the persistence boundary the rest of the engine
// depends on: assets, dependency edges, operational state, templates/rules,
// instances, anchors, and the materialized event table. inmem and postgres
// provide concrete implementations.
package store

import (
	"context"

	"github.com/cityresilience/scenario-engine/pkg/asset"
	"github.com/cityresilience/scenario-engine/pkg/scenario"
)

// Store is the full persistence surface. It is deliberately one wide
// interface rather than several narrow ones: every concrete implementation
// (inmem, postgres) backs the whole engine, and callers needing a narrower
// view (scenario.AssetSource, scenario.RuleSink, dependency.EdgeSource,
// dependency.AssetLoader) are satisfied by the same value through Go's
// structural typing.
type Store interface {
	// Assets.
	UpsertAsset(ctx context.Context, a asset.Asset) error
	GetAsset(ctx context.Context, id string) (asset.Asset, bool, error)
	AssetsByIDs(ctx context.Context, ids []string) ([]asset.Asset, error)
	AssetsByCitySectorSubtype(ctx context.Context, city string, sector asset.Sector, subtype string) ([]asset.Asset, error)
	ListAssetsByCity(ctx context.Context, city string) ([]asset.Asset, error)

	// Dependencies.
	UpsertDependency(ctx context.Context, d asset.Dependency) error
	ActiveDependencies(ctx context.Context, city string) ([]asset.Dependency, error)

	// Operational state (one row per asset, overwritten whenever a run's
	// tick changes the asset's status).
	SetOperationalState(ctx context.Context, s asset.OperationalState) error
	GetOperationalState(ctx context.Context, assetID string) (asset.OperationalState, bool, error)
	ListOperationalStates(ctx context.Context, city string) ([]asset.OperationalState, error)

	// Templates and rules.
	UpsertTemplate(ctx context.Context, t scenario.Template) error
	UpsertRule(ctx context.Context, r scenario.Rule) error
	GetTemplate(ctx context.Context, templateID string) (scenario.Template, bool, error)
	RulesByTemplate(ctx context.Context, templateID string) ([]scenario.Rule, error)

	// Instances and anchors.
	CreateInstance(ctx context.Context, inst scenario.Instance) error
	GetInstance(ctx context.Context, instanceID string) (scenario.Instance, bool, error)
	ListInstances(ctx context.Context, city string) ([]scenario.Instance, error)
	AddAnchor(ctx context.Context, a scenario.Anchor) error
	AnchorsByInstance(ctx context.Context, instanceID string) ([]scenario.Anchor, error)

	// Materialized events.
	SaveEvents(ctx context.Context, instanceID string, events []scenario.Event) error
	EventsByInstance(ctx context.Context, instanceID string) ([]scenario.Event, error)
}
