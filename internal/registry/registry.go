package registry

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"orcacast/domain/behavior"
	"orcacast/domain/core"
	"orcacast/internal"
	"orcacast/ports"
)

// Snapshot is one immutable, fully validated equation set. A grid request holds a single
// snapshot for its whole lifetime so a concurrent reload can never mix equation sets.
type Snapshot struct {
	equations map[string]behavior.Equation
	labels    []string
	version   core.EquationSetHash
	source    string
	loadedAt  time.Time
}

// Equation returns the stored equation without copying. Callers must treat it as read-only.
func (s *Snapshot) Equation(label string) (behavior.Equation, error) {
	eq, ok := s.equations[label]
	if !ok {
		return behavior.Equation{}, core.NewUnknownBehaviorError(label)
	}
	return eq, nil
}

// Behaviors returns the registered labels, sorted
func (s *Snapshot) Behaviors() []string {
	return append([]string(nil), s.labels...)
}

// Len returns the number of registered behaviors
func (s *Snapshot) Len() int { return len(s.labels) }

// Version fingerprints the equation set
func (s *Snapshot) Version() core.EquationSetHash { return s.version }

// Source names where the equations came from
func (s *Snapshot) Source() string { return s.source }

// LoadedAt is when the snapshot was built
func (s *Snapshot) LoadedAt() time.Time { return s.loadedAt }

// Registry holds the current equation snapshot. Reads are lock-free; a load swaps the
// whole snapshot in one step.
type Registry struct {
	current atomic.Pointer[Snapshot]
	logger  *internal.Logger
}

var _ ports.RegistryPort = (*Registry)(nil)

// New creates an empty registry. Every query fails with core.ErrNotLoaded until a load succeeds.
func New(logger *internal.Logger) *Registry {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &Registry{logger: logger}
}

// Load fetches equations from source and replaces the registry contents. On failure the
// previously loaded set, if any, stays in place.
func (r *Registry) Load(ctx context.Context, source ports.EquationSource) error {
	if source == nil {
		return core.NewLoadError("no equation source configured")
	}
	equations, err := source.FetchEquations(ctx)
	if err != nil {
		return fmt.Errorf("%w: fetch from %s: %w", core.ErrLoad, source.Describe(), err)
	}
	return r.LoadEquations(source.Describe(), equations)
}

// LoadEquations validates an equation list and installs it as the current snapshot
func (r *Registry) LoadEquations(sourceName string, equations []behavior.Equation) error {
	snap, err := buildSnapshot(sourceName, equations)
	if err != nil {
		r.logger.Error("Equation load from %s rejected: %v", sourceName, err)
		return err
	}

	previous := r.current.Swap(snap)
	if previous != nil {
		r.logger.Info("Equation registry reloaded from %s: %d behaviors (version %s -> %s)",
			sourceName, snap.Len(), previous.version.Short(), snap.version.Short())
	} else {
		r.logger.Info("Equation registry loaded from %s: %d behaviors (version %s)",
			sourceName, snap.Len(), snap.version.Short())
	}
	return nil
}

func buildSnapshot(sourceName string, equations []behavior.Equation) (*Snapshot, error) {
	if len(equations) == 0 {
		return nil, core.NewLoadError(fmt.Sprintf("source %s returned no equations", sourceName))
	}

	snap := &Snapshot{
		equations: make(map[string]behavior.Equation, len(equations)),
		labels:    make([]string, 0, len(equations)),
		source:    sourceName,
		loadedAt:  time.Now().UTC(),
	}
	fingerprints := make(map[string]string, len(equations))

	for _, eq := range equations {
		eq = eq.Clone()
		eq.Label = strings.TrimSpace(eq.Label)
		if err := eq.Validate(); err != nil {
			return nil, err
		}
		if _, dup := snap.equations[eq.Label]; dup {
			return nil, core.NewEquationLoadError(eq.Label, "defined more than once")
		}
		snap.equations[eq.Label] = eq
		snap.labels = append(snap.labels, eq.Label)
		fingerprints[eq.Label] = eq.Fingerprint()
	}

	sort.Strings(snap.labels)
	snap.version = core.ComputeEquationSetHash(fingerprints)
	return snap, nil
}

// Snapshot returns the current equation set
func (r *Registry) Snapshot() (*Snapshot, error) {
	snap := r.current.Load()
	if snap == nil {
		return nil, core.ErrNotLoaded
	}
	return snap, nil
}

// Get returns a copy of the equation registered for label
func (r *Registry) Get(label string) (behavior.Equation, error) {
	snap, err := r.Snapshot()
	if err != nil {
		return behavior.Equation{}, err
	}
	eq, err := snap.Equation(label)
	if err != nil {
		return behavior.Equation{}, err
	}
	return eq.Clone(), nil
}

// ListBehaviors returns the registered labels, sorted. Empty when nothing is loaded.
func (r *Registry) ListBehaviors() []string {
	snap := r.current.Load()
	if snap == nil {
		return []string{}
	}
	return snap.Behaviors()
}

// Loaded reports whether a load has ever succeeded
func (r *Registry) Loaded() bool {
	return r.current.Load() != nil
}
