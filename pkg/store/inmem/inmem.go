// Package inmem is a RWMutex-guarded, map-backed Store, used by tests and by
// single-process deployments that don't need postgres: one mutex, one set
// of maps, a clock for CreatedAtUnix stamping.
package inmem

import (
	"context"
	"sync"

	"github.com/cityresilience/scenario-engine/internal/clock"
	"github.com/cityresilience/scenario-engine/pkg/asset"
	"github.com/cityresilience/scenario-engine/pkg/scenario"
)

// Store is an in-memory implementation of store.Store.
type Store struct {
	clock clock.Clock

	mu sync.RWMutex

	assets       map[string]asset.Asset
	dependencies []asset.Dependency
	states       map[string]asset.OperationalState
	templates    map[string]scenario.Template
	rules        map[string]scenario.Rule // keyed by rule_id
	instances    map[string]scenario.Instance
	anchors      map[string][]scenario.Anchor // keyed by instance_id
	events       map[string][]scenario.Event  // keyed by instance_id
}

// New builds an empty in-memory Store. c may be nil to use clock.Real().
func New(c clock.Clock) *Store {
	if c == nil {
		c = clock.Real()
	}
	return &Store{
		clock:     c,
		assets:    make(map[string]asset.Asset),
		states:    make(map[string]asset.OperationalState),
		templates: make(map[string]scenario.Template),
		rules:     make(map[string]scenario.Rule),
		instances: make(map[string]scenario.Instance),
		anchors:   make(map[string][]scenario.Anchor),
		events:    make(map[string][]scenario.Event),
	}
}

func (s *Store) UpsertAsset(ctx context.Context, a asset.Asset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assets[a.ID] = a
	return nil
}

func (s *Store) GetAsset(ctx context.Context, id string) (asset.Asset, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.assets[id]
	return a, ok, nil
}

func (s *Store) AssetsByIDs(ctx context.Context, ids []string) ([]asset.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]asset.Asset, 0, len(ids))
	for _, id := range ids {
		if a, ok := s.assets[id]; ok {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *Store) AssetsByCitySectorSubtype(ctx context.Context, city string, sector asset.Sector, subtype string) ([]asset.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []asset.Asset
	for _, a := range s.assets {
		if a.City != city || a.Sector != sector {
			continue
		}
		if subtype != "" && a.Subtype != subtype {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (s *Store) ListAssetsByCity(ctx context.Context, city string) ([]asset.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []asset.Asset
	for _, a := range s.assets {
		if a.City == city {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *Store) UpsertDependency(ctx context.Context, d asset.Dependency) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.dependencies {
		if existing.ProviderAssetID == d.ProviderAssetID &&
			existing.ConsumerAssetID == d.ConsumerAssetID &&
			existing.DependencyType == d.DependencyType {
			s.dependencies[i] = d
			return nil
		}
	}
	s.dependencies = append(s.dependencies, d)
	return nil
}

// ActiveDependencies returns active edges touching at least one asset of
// the given city. city is empty-safe: an empty string returns every active
// edge, used by callers that have already scoped by other means.
func (s *Store) ActiveDependencies(ctx context.Context, city string) ([]asset.Dependency, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []asset.Dependency
	for _, d := range s.dependencies {
		if !d.IsActive {
			continue
		}
		if city == "" {
			out = append(out, d)
			continue
		}
		provider, hasProvider := s.assets[d.ProviderAssetID]
		consumer, hasConsumer := s.assets[d.ConsumerAssetID]
		if (hasProvider && provider.City == city) || (hasConsumer && consumer.City == city) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *Store) SetOperationalState(ctx context.Context, st asset.OperationalState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[st.AssetID] = st
	return nil
}

func (s *Store) GetOperationalState(ctx context.Context, assetID string) (asset.OperationalState, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.states[assetID]
	return st, ok, nil
}

func (s *Store) ListOperationalStates(ctx context.Context, city string) ([]asset.OperationalState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []asset.OperationalState
	for id, st := range s.states {
		if a, ok := s.assets[id]; ok && a.City == city {
			out = append(out, st)
		}
	}
	return out, nil
}

func (s *Store) UpsertTemplate(ctx context.Context, t scenario.Template) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.templates[t.TemplateID] = t
	return nil
}

func (s *Store) UpsertRule(ctx context.Context, r scenario.Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules[r.RuleID] = r
	return nil
}

func (s *Store) GetTemplate(ctx context.Context, templateID string) (scenario.Template, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.templates[templateID]
	return t, ok, nil
}

func (s *Store) RulesByTemplate(ctx context.Context, templateID string) ([]scenario.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []scenario.Rule
	for _, r := range s.rules {
		if r.TemplateID == templateID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *Store) CreateInstance(ctx context.Context, inst scenario.Instance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if inst.CreatedAtUnix == 0 {
		inst.CreatedAtUnix = s.clock.Now().Unix()
	}
	s.instances[inst.ID] = inst
	return nil
}

func (s *Store) GetInstance(ctx context.Context, instanceID string) (scenario.Instance, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inst, ok := s.instances[instanceID]
	return inst, ok, nil
}

func (s *Store) ListInstances(ctx context.Context, city string) ([]scenario.Instance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []scenario.Instance
	for _, inst := range s.instances {
		if city == "" || inst.City == city {
			out = append(out, inst)
		}
	}
	return out, nil
}

func (s *Store) AddAnchor(ctx context.Context, a scenario.Anchor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.anchors[a.InstanceID] = append(s.anchors[a.InstanceID], a)
	return nil
}

func (s *Store) AnchorsByInstance(ctx context.Context, instanceID string) ([]scenario.Anchor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]scenario.Anchor, len(s.anchors[instanceID]))
	copy(out, s.anchors[instanceID])
	return out, nil
}

func (s *Store) SaveEvents(ctx context.Context, instanceID string, events []scenario.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]scenario.Event, len(events))
	copy(cp, events)
	s.events[instanceID] = cp
	return nil
}

func (s *Store) EventsByInstance(ctx context.Context, instanceID string) ([]scenario.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]scenario.Event, len(s.events[instanceID]))
	copy(out, s.events[instanceID])
	return out, nil
}
