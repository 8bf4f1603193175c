package runner

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Registry is the keyed container of sim_run_id -> RunHandle the runner
// fills on Start and the façade reads from on State/Tick. It permits
// safe concurrent read/insert behind one RWMutex.
type Registry struct {
	mu   sync.RWMutex
	runs map[string]*RunHandle
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{runs: make(map[string]*RunHandle)}
}

// NewRunID mints a fresh sim_run_id.
func NewRunID() string {
	return uuid.NewString()
}

// Put registers h under its SimRunID.
func (reg *Registry) Put(h *RunHandle) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.runs[h.SimRunID] = h
}

// Get looks up a run by id.
func (reg *Registry) Get(simRunID string) (*RunHandle, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	h, ok := reg.runs[simRunID]
	return h, ok
}

// Len reports the number of runs currently retained.
func (reg *Registry) Len() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return len(reg.runs)
}

// GCOptions bounds the registry's memory footprint without changing any
// retained run's tick visibility.
type GCOptions struct {
	// IdleAfter is how long a done run with no Tick reads survives.
	IdleAfter time.Duration
	// MaxRuns caps retained run count; past it, the oldest-idle done runs
	// are evicted first regardless of IdleAfter.
	MaxRuns int
}

// DefaultGCOptions matches a modest single-process deployment.
var DefaultGCOptions = GCOptions{IdleAfter: 30 * time.Minute, MaxRuns: 500}

// GC evicts done runs that have been idle past opts.IdleAfter, then trims
// down to opts.MaxRuns by evicting the longest-idle done runs first. Runs
// still precomputing (done=false) are never evicted.
func (reg *Registry) GC(now time.Time, opts GCOptions) int {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	evicted := 0
	for id, h := range reg.runs {
		if !h.done.Load() {
			continue
		}
		idleSince := now.Sub(time.Unix(h.lastReadUnix.Load(), 0))
		if opts.IdleAfter > 0 && idleSince >= opts.IdleAfter {
			delete(reg.runs, id)
			evicted++
		}
	}

	if opts.MaxRuns <= 0 || len(reg.runs) <= opts.MaxRuns {
		return evicted
	}

	type candidate struct {
		id       string
		lastRead int64
	}
	var candidates []candidate
	for id, h := range reg.runs {
		if h.done.Load() {
			candidates = append(candidates, candidate{id, h.lastReadUnix.Load()})
		}
	}
	for len(reg.runs) > opts.MaxRuns && len(candidates) > 0 {
		oldestIdx := 0
		for i, c := range candidates {
			if c.lastRead < candidates[oldestIdx].lastRead {
				oldestIdx = i
			}
		}
		delete(reg.runs, candidates[oldestIdx].id)
		evicted++
		candidates = append(candidates[:oldestIdx], candidates[oldestIdx+1:]...)
	}
	return evicted
}
