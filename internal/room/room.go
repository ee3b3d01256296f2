// Package room models the pre-match lobby: seat assignment, ready state, and
// the gated transition into a live match via the registry.
package room

import (
	"time"

	"paddlearena/server/internal/sim"
)

// Status is the room's lifecycle state. Destruction is not a status; a
// destroyed room is simply absent from the manager.
type Status string

const (
	StatusWaiting    Status = "waiting"
	StatusInProgress Status = "in_progress"
	StatusFinished   Status = "finished"
)

// MaxPlayers is fixed: every room seats exactly two players.
const MaxPlayers = 2

// Occupant is one seated player.
type Occupant struct {
	PlayerID string `json:"playerId"`
	Username string `json:"username"`
	Ready    bool   `json:"ready"`
}

// Room is a pre-match lobby. All fields are owned by the Manager; callers
// only ever see copies produced by snapshot.
type Room struct {
	ID         string                 `json:"id"`
	Name       string                 `json:"name"`
	OwnerID    string                 `json:"ownerId"`
	Kind       sim.Kind               `json:"kind"`
	Status     Status                 `json:"status"`
	MatchID    string                 `json:"matchId,omitempty"`
	MaxPlayers int                    `json:"maxPlayers"`
	Seats      map[sim.Seat]*Occupant `json:"seats"`
	CreatedAt  time.Time              `json:"createdAt"`
}

func (r *Room) snapshot() Room {
	seats := make(map[sim.Seat]*Occupant, len(r.Seats))
	for seat, occ := range r.Seats {
		copied := *occ
		seats[seat] = &copied
	}
	copied := *r
	copied.Seats = seats
	return copied
}

func (r *Room) seatCount() int {
	return len(r.Seats)
}

func (r *Room) freeSeat() (sim.Seat, bool) {
	for _, seat := range sim.Seats {
		if _, taken := r.Seats[seat]; !taken {
			return seat, true
		}
	}
	return "", false
}

func (r *Room) seatOf(playerID string) (sim.Seat, *Occupant, bool) {
	for seat, occ := range r.Seats {
		if occ.PlayerID == playerID {
			return seat, occ, true
		}
	}
	return "", nil, false
}

func (r *Room) allReady() bool {
	for _, occ := range r.Seats {
		if !occ.Ready {
			return false
		}
	}
	return len(r.Seats) > 0
}
