package sim

import (
	"math"
	"time"
)

// paddleControl is the persistent per-seat control state. Input patches merge
// into it; it survives across ticks so an absent field leaves motion running.
type paddleControl struct {
	left  bool
	right bool
}

type pongSim struct {
	id        string
	now       func() time.Time
	players   map[Seat]PlayerRef
	controls  map[Seat]*paddleControl
	paddles   map[Seat]*Paddle
	ball      Ball
	score     map[Seat]int
	createdAt time.Time
	updatedAt time.Time
	gameOver  bool
	winner    Seat
	serveDir  float64 // z sign of the next serve
}

func newPong(id string, now func() time.Time) *pongSim {
	if now == nil {
		now = time.Now
	}
	created := now()
	p := &pongSim{
		id:      id,
		now:     now,
		players: make(map[Seat]PlayerRef, 2),
		controls: map[Seat]*paddleControl{
			SeatTop:    {},
			SeatBottom: {},
		},
		paddles: map[Seat]*Paddle{
			SeatTop:    {Z: -paddleOffsetZ},
			SeatBottom: {Z: paddleOffsetZ},
		},
		score:     map[Seat]int{SeatTop: 0, SeatBottom: 0},
		createdAt: created,
		updatedAt: created,
		serveDir:  1,
	}
	p.resetBall()
	return p
}

// ApplyInput merges the present fields of patch into the seat's control
// state. A value of 0 releases the flag, any other finite value sets it; an
// absent key changes nothing. Malformed values are dropped per field.
func (p *pongSim) ApplyInput(seat Seat, patch InputPatch) {
	ctrl, ok := p.controls[seat]
	if !ok {
		return
	}
	for key, value := range patch {
		if math.IsNaN(value) || math.IsInf(value, 0) {
			continue
		}
		switch key {
		case "left":
			ctrl.left = value != 0
		case "right":
			ctrl.right = value != 0
		case "x":
			// Direct position override for privileged/debug flows.
			if paddle, ok := p.paddles[seat]; ok {
				limit := arenaHalfWidth - paddleHalfWidth
				paddle.X = math.Max(-limit, math.Min(limit, value))
			}
		}
	}
}

func (p *pongSim) SetPlayer(seat Seat, ref PlayerRef) {
	if !seat.Valid() {
		return
	}
	p.players[seat] = ref
}

// Update advances the match by one fixed step. Step order is fixed: paddles,
// ball integration, wall bounce, paddle bounce, scoring, win check. Once the
// match is over the physics freezes entirely.
func (p *pongSim) Update(dt float64) {
	if p.gameOver || dt <= 0 {
		return
	}

	p.stepPaddles(dt)
	p.ball.Pos.X += p.ball.Vel.X * dt
	p.ball.Pos.Z += p.ball.Vel.Z * dt
	p.resolveWalls()
	p.resolvePaddles()
	p.resolveScoring()
	p.checkWin()

	p.updatedAt = p.now()
}

func (p *pongSim) stepPaddles(dt float64) {
	for seat, paddle := range p.paddles {
		ctrl := p.controls[seat]

		axis := 0.0
		if ctrl.left {
			axis -= 1
		}
		if ctrl.right {
			axis += 1
		}
		// Inputs are seat-relative: the top seat faces the other way.
		if seat == SeatTop {
			axis = -axis
		}

		paddle.VX += axis * paddleAccel * dt
		paddle.VX -= paddle.VX * paddleFriction * dt
		if paddle.VX > paddleMaxSpeed {
			paddle.VX = paddleMaxSpeed
		} else if paddle.VX < -paddleMaxSpeed {
			paddle.VX = -paddleMaxSpeed
		}

		paddle.X += paddle.VX * dt
		limit := arenaHalfWidth - paddleHalfWidth
		if paddle.X > limit {
			paddle.X = limit
			paddle.VX = 0
		} else if paddle.X < -limit {
			paddle.X = -limit
			paddle.VX = 0
		}
	}
}

// resolveWalls reflects the ball off the side walls. The reflected velocity
// is re-normalized and boosted so grazing bounces cannot bleed speed, capped
// at ballMaxSpeed.
func (p *pongSim) resolveWalls() {
	limit := arenaHalfWidth - ballRadius
	bounced := false
	if p.ball.Pos.X > limit {
		p.ball.Pos.X = limit
		p.ball.Vel.X = -math.Abs(p.ball.Vel.X)
		bounced = true
	} else if p.ball.Pos.X < -limit {
		p.ball.Pos.X = -limit
		p.ball.Vel.X = math.Abs(p.ball.Vel.X)
		bounced = true
	}
	if !bounced {
		return
	}

	speed := math.Hypot(p.ball.Vel.X, p.ball.Vel.Z)
	if speed == 0 {
		return
	}
	boosted := math.Min(speed*wallBounceBoost, ballMaxSpeed)
	scale := boosted / speed
	p.ball.Vel.X *= scale
	p.ball.Vel.Z *= scale
}

// resolvePaddles reflects the ball off a paddle, outward only: the ball must
// be moving toward that paddle's plane and inside its contact box.
func (p *pongSim) resolvePaddles() {
	for seat, paddle := range p.paddles {
		outward := -1.0 // z direction away from this paddle
		if seat == SeatTop {
			outward = 1.0
		}
		inbound := p.ball.Vel.Z*outward < 0
		if !inbound {
			continue
		}
		if math.Abs(p.ball.Pos.Z-paddle.Z) > contactDepth+ballRadius {
			continue
		}
		if math.Abs(p.ball.Pos.X-paddle.X) > paddleHalfWidth+ballRadius {
			continue
		}
		p.ball.Vel.Z = math.Abs(p.ball.Vel.Z) * outward
	}
}

func (p *pongSim) resolveScoring() {
	if p.ball.Pos.Z > arenaHalfDepth {
		p.score[SeatTop]++
		p.serveDir = 1
		p.resetBall()
	} else if p.ball.Pos.Z < -arenaHalfDepth {
		p.score[SeatBottom]++
		p.serveDir = -1
		p.resetBall()
	}
}

func (p *pongSim) checkWin() {
	for _, seat := range Seats {
		if p.score[seat] >= winScore {
			p.gameOver = true
			p.winner = seat
			p.ball.Vel = Vec3{}
			for _, paddle := range p.paddles {
				paddle.VX = 0
			}
			return
		}
	}
}

// resetBall recenters the ball with the fixed serve velocity. The serve
// alternates toward the seat that conceded, keeping restarts deterministic.
func (p *pongSim) resetBall() {
	p.ball.Pos = Vec3{}
	p.ball.Vel = Vec3{X: serveSpeedX, Z: serveSpeedZ * p.serveDir}
}

func (p *pongSim) Snapshot() State {
	players := make(map[Seat]PlayerRef, len(p.players))
	for seat, ref := range p.players {
		players[seat] = ref
	}
	paddles := make(map[Seat]Paddle, len(p.paddles))
	for seat, paddle := range p.paddles {
		paddles[seat] = *paddle
	}
	score := make(map[Seat]int, len(p.score))
	for seat, value := range p.score {
		score[seat] = value
	}
	ball := p.ball

	state := State{
		ID:        p.id,
		Kind:      KindPong,
		Players:   players,
		Ball:      &ball,
		Paddles:   paddles,
		Score:     score,
		CreatedAt: p.createdAt.UnixMilli(),
		UpdatedAt: p.updatedAt.UnixMilli(),
		GameOver:  p.gameOver,
	}
	if p.gameOver {
		winner := p.winner
		state.Winner = &winner
	}
	return state
}
