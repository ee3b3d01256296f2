// Package sim owns the per-match game simulations. Each simulation is pure
// and deterministic: it never reads the wall clock inside its physics step and
// never performs I/O. Callers drive it at a fixed cadence with FixedDT.
package sim

import (
	"time"

	"github.com/rotisserie/eris"
)

// Kind identifies a match simulation variant.
type Kind string

const (
	KindPong Kind = "pong"
	KindCube Kind = "cube"
)

// ErrUnsupportedKind is returned when a match is requested for a kind no
// simulation implements. Callers must surface it, never default silently.
var ErrUnsupportedKind = eris.New("unsupported match kind")

// Seat is one of the two fixed player slots in a match.
type Seat string

const (
	SeatTop    Seat = "top"
	SeatBottom Seat = "bottom"
)

// Seats lists the two seats in a stable order.
var Seats = [2]Seat{SeatTop, SeatBottom}

// Opponent returns the other seat.
func (s Seat) Opponent() Seat {
	if s == SeatTop {
		return SeatBottom
	}
	return SeatTop
}

// Valid reports whether s names a real seat.
func (s Seat) Valid() bool {
	return s == SeatTop || s == SeatBottom
}

// PlayerRef binds a seat to a transport-level identity.
type PlayerRef struct {
	PlayerID string `json:"playerId"`
	Username string `json:"username"`
}

// InputPatch is a sparse control update: only the keys present in the inbound
// message appear here. An absent key means "no change"; an explicit release
// value (0 for pong thrust, 2 for cube axis flags) means "stop". The two must
// never be collapsed.
type InputPatch map[string]float64

// Simulation is the capability every match kind implements. The gateway and
// registry only ever see this interface; the concrete type is selected once,
// at creation, by Kind.
type Simulation interface {
	// ApplyInput merges a sparse control patch into the persistent per-seat
	// control state. Unknown keys and out-of-range values are ignored
	// field-by-field; ApplyInput never panics.
	ApplyInput(seat Seat, patch InputPatch)
	// Update advances the simulation by exactly one fixed step. The caller
	// owns the cadence; Update performs no catch-up stepping of its own.
	Update(dt float64)
	// SetPlayer binds an identity to a seat.
	SetPlayer(seat Seat, ref PlayerRef)
	// Snapshot returns a copy of the authoritative match state.
	Snapshot() State
}

// New constructs a fresh simulation of the given kind. The id is an opaque
// token owned by the registry; now stamps createdAt/updatedAt and is injected
// so the physics path itself stays clock-free.
func New(kind Kind, id string, now func() time.Time) (Simulation, error) {
	switch kind {
	case KindPong:
		return newPong(id, now), nil
	case KindCube:
		return newCube(id, now), nil
	default:
		return nil, eris.Wrapf(ErrUnsupportedKind, "kind %q", kind)
	}
}
