package sim

import (
	"math"
	"time"
)

// cubeAxes are the control keys the cube kind understands. Values follow the
// axis convention: 1 starts movement, 2 stops it, absent leaves it alone.
var cubeAxes = [6]string{"up", "down", "left", "right", "forward", "backward"}

const (
	axisMove = 1.0
	axisStop = 2.0
)

// cubeSim is the secondary match kind: each seat steers a free-moving cube
// inside a bounded volume. No scoring, no win condition; it exists for
// sandbox lobbies and exercises the same Simulation contract as pong.
type cubeSim struct {
	id        string
	now       func() time.Time
	players   map[Seat]PlayerRef
	moving    map[Seat]map[string]bool
	entities  map[Seat]*Vec3
	createdAt time.Time
	updatedAt time.Time
}

func newCube(id string, now func() time.Time) *cubeSim {
	if now == nil {
		now = time.Now
	}
	created := now()
	c := &cubeSim{
		id:        id,
		now:       now,
		players:   make(map[Seat]PlayerRef, 2),
		moving:    make(map[Seat]map[string]bool, 2),
		entities:  make(map[Seat]*Vec3, 2),
		createdAt: created,
		updatedAt: created,
	}
	for _, seat := range Seats {
		c.moving[seat] = make(map[string]bool, len(cubeAxes))
		c.entities[seat] = &Vec3{}
	}
	return c
}

func (c *cubeSim) ApplyInput(seat Seat, patch InputPatch) {
	flags, ok := c.moving[seat]
	if !ok {
		return
	}
	for _, axis := range cubeAxes {
		value, present := patch[axis]
		if !present {
			continue
		}
		switch value {
		case axisMove:
			flags[axis] = true
		case axisStop:
			flags[axis] = false
		}
		// Any other value is malformed for this axis and ignored.
	}
}

func (c *cubeSim) SetPlayer(seat Seat, ref PlayerRef) {
	if !seat.Valid() {
		return
	}
	c.players[seat] = ref
}

func (c *cubeSim) Update(dt float64) {
	if dt <= 0 {
		return
	}
	for _, seat := range Seats {
		flags := c.moving[seat]
		pos := c.entities[seat]

		var dx, dy, dz float64
		if flags["left"] {
			dx -= 1
		}
		if flags["right"] {
			dx += 1
		}
		if flags["up"] {
			dy += 1
		}
		if flags["down"] {
			dy -= 1
		}
		if flags["forward"] {
			dz += 1
		}
		if flags["backward"] {
			dz -= 1
		}

		pos.X = clampAbs(pos.X+dx*cubeMoveSpeed*dt, cubeHalfExtent)
		pos.Y = clampAbs(pos.Y+dy*cubeMoveSpeed*dt, cubeHalfExtent)
		pos.Z = clampAbs(pos.Z+dz*cubeMoveSpeed*dt, cubeHalfExtent)
	}
	c.updatedAt = c.now()
}

func clampAbs(v, limit float64) float64 {
	return math.Max(-limit, math.Min(limit, v))
}

func (c *cubeSim) Snapshot() State {
	players := make(map[Seat]PlayerRef, len(c.players))
	for seat, ref := range c.players {
		players[seat] = ref
	}
	entities := make(map[Seat]Vec3, len(c.entities))
	for seat, pos := range c.entities {
		entities[seat] = *pos
	}
	return State{
		ID:        c.id,
		Kind:      KindCube,
		Players:   players,
		Entities:  entities,
		CreatedAt: c.createdAt.UnixMilli(),
		UpdatedAt: c.updatedAt.UnixMilli(),
	}
}
