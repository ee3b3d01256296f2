// Package registry owns the lifecycle of live match simulations. It is the
// single source of truth for which matches exist; every lookup, tick, and
// removal goes through it.
package registry

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"paddlearena/server/internal/metrics"
	"paddlearena/server/internal/sim"
)

// Match wraps one simulation instance behind its own lock. Inputs arrive from
// connection goroutines while the scheduler ticks from its own goroutine; the
// per-match mutex is what upholds the single-writer-per-match contract.
type Match struct {
	id   string
	kind sim.Kind

	mu  sync.Mutex
	sim sim.Simulation

	createdAt time.Time
}

// ID returns the match's opaque token.
func (m *Match) ID() string { return m.id }

// Kind returns the simulation variant.
func (m *Match) Kind() sim.Kind { return m.kind }

// ApplyInput forwards a sparse control patch to the simulation.
func (m *Match) ApplyInput(seat sim.Seat, patch sim.InputPatch) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sim.ApplyInput(seat, patch)
}

// SetPlayer binds an identity to a seat.
func (m *Match) SetPlayer(seat sim.Seat, ref sim.PlayerRef) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sim.SetPlayer(seat, ref)
}

// Snapshot returns a copy of the current match state.
func (m *Match) Snapshot() sim.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sim.Snapshot()
}

// GameOver reports whether the match has finished.
func (m *Match) GameOver() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sim.Snapshot().GameOver
}

func (m *Match) step(dt float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sim.Update(dt)
}

// Info describes a live match for listing endpoints.
type Info struct {
	ID        string   `json:"id"`
	Kind      sim.Kind `json:"kind"`
	CreatedAt int64    `json:"createdAt"`
}

// Registry creates, looks up, lists, ticks, and destroys matches. The map is
// guarded by a single mutex; match state itself is guarded per match.
type Registry struct {
	mu      sync.Mutex
	matches map[string]*Match

	now    func() time.Time
	logger zerolog.Logger
}

// New constructs an empty registry.
func New(logger zerolog.Logger) *Registry {
	return &Registry{
		matches: make(map[string]*Match),
		now:     time.Now,
		logger:  logger.With().Str("component", "registry").Logger(),
	}
}

// WithClock overrides the clock used for state timestamps. Test hook.
func (r *Registry) WithClock(now func() time.Time) *Registry {
	r.now = now
	return r
}

// Create instantiates a new simulation of the given kind and returns its id.
// Ids are UUIDs: once removed they are never reused and never resolve again.
func (r *Registry) Create(kind sim.Kind) (string, error) {
	id := uuid.NewString()
	instance, err := sim.New(kind, id, r.now)
	if err != nil {
		return "", err
	}

	match := &Match{id: id, kind: kind, sim: instance, createdAt: r.now()}
	r.mu.Lock()
	r.matches[id] = match
	total := len(r.matches)
	r.mu.Unlock()

	metrics.MatchesLive.Set(float64(total))
	metrics.MatchesCreated.Inc()
	r.logger.Info().Str("match", id).Str("kind", string(kind)).Msg("match created")
	return id, nil
}

// Get looks up a live match. A miss means the match is gone, not an error;
// callers holding a stale id must re-derive state rather than retry.
func (r *Registry) Get(id string) (*Match, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	match, ok := r.matches[id]
	return match, ok
}

// List returns a snapshot of all live matches.
func (r *Registry) List() []Info {
	r.mu.Lock()
	defer r.mu.Unlock()

	infos := make([]Info, 0, len(r.matches))
	for _, match := range r.matches {
		infos = append(infos, Info{
			ID:        match.id,
			Kind:      match.kind,
			CreatedAt: match.createdAt.UnixMilli(),
		})
	}
	return infos
}

// Remove destroys a match. Removing an unknown id is a no-op.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	_, ok := r.matches[id]
	if ok {
		delete(r.matches, id)
	}
	total := len(r.matches)
	r.mu.Unlock()

	if ok {
		metrics.MatchesLive.Set(float64(total))
		r.logger.Info().Str("match", id).Msg("match removed")
	}
}

// TickAll advances every live match by one fixed step. Order across matches
// is irrelevant; matches are independent.
func (r *Registry) TickAll(dt float64) {
	r.mu.Lock()
	matches := make([]*Match, 0, len(r.matches))
	for _, match := range r.matches {
		matches = append(matches, match)
	}
	r.mu.Unlock()

	for _, match := range matches {
		match.step(dt)
	}
}
