package sim

import (
	"math"
	"testing"
	"time"
)

func fixedClock() func() time.Time {
	base := time.Unix(1700000000, 0)
	return func() time.Time { return base }
}

func TestPongDeterminism(t *testing.T) {
	a := newPong("match-a", fixedClock())
	b := newPong("match-b", fixedClock())

	// Scripted input schedule: the same sparse patches at the same steps.
	script := map[int]struct {
		seat  Seat
		patch InputPatch
	}{
		0:   {SeatBottom, InputPatch{"left": 1}},
		50:  {SeatTop, InputPatch{"right": 1}},
		120: {SeatBottom, InputPatch{"left": 0, "right": 1}},
		300: {SeatTop, InputPatch{"right": 0}},
	}

	for step := 0; step < 600; step++ {
		if input, ok := script[step]; ok {
			a.ApplyInput(input.seat, input.patch)
			b.ApplyInput(input.seat, input.patch)
		}
		a.Update(FixedDT)
		b.Update(FixedDT)

		sa, sb := a.Snapshot(), b.Snapshot()
		if *sa.Ball != *sb.Ball {
			t.Fatalf("step %d: ball diverged: %+v vs %+v", step, *sa.Ball, *sb.Ball)
		}
		for _, seat := range Seats {
			if sa.Paddles[seat] != sb.Paddles[seat] {
				t.Fatalf("step %d: paddle %s diverged: %+v vs %+v", step, seat, sa.Paddles[seat], sb.Paddles[seat])
			}
			if sa.Score[seat] != sb.Score[seat] {
				t.Fatalf("step %d: score %s diverged", step, seat)
			}
		}
	}
}

func TestPongWinFreezesState(t *testing.T) {
	p := newPong("match", fixedClock())
	p.score[SeatBottom] = winScore - 1

	// Park the ball just shy of the top end-line, outbound.
	p.ball.Pos = Vec3{Z: -arenaHalfDepth + 0.01}
	p.ball.Vel = Vec3{Z: -serveSpeedZ}
	p.Update(FixedDT)

	state := p.Snapshot()
	if !state.GameOver {
		t.Fatalf("expected game over at score %d", winScore)
	}
	if state.Winner == nil || *state.Winner != SeatBottom {
		t.Fatalf("expected bottom seat to win, got %v", state.Winner)
	}
	if state.Score[SeatBottom] != winScore {
		t.Fatalf("expected winning score %d, got %d", winScore, state.Score[SeatBottom])
	}

	// Frozen: further steps and inputs change nothing.
	p.ApplyInput(SeatTop, InputPatch{"left": 1})
	for i := 0; i < 200; i++ {
		p.Update(FixedDT)
	}
	after := p.Snapshot()
	if *after.Ball != *state.Ball {
		t.Fatalf("ball moved after game over: %+v", *after.Ball)
	}
	if after.Score[SeatTop] != state.Score[SeatTop] || after.Score[SeatBottom] != state.Score[SeatBottom] {
		t.Fatalf("score changed after game over")
	}
}

func TestPaddleSpeedBounded(t *testing.T) {
	p := newPong("match", fixedClock())
	p.ApplyInput(SeatBottom, InputPatch{"left": 1})

	peak := 0.0
	for i := 0; i < TickRate; i++ { // one second of thrust
		p.Update(FixedDT)
		v := math.Abs(p.paddles[SeatBottom].VX)
		if v > peak {
			peak = v
		}
	}
	if peak > paddleMaxSpeed {
		t.Fatalf("paddle velocity %f exceeds max %f", peak, paddleMaxSpeed)
	}
	if peak == 0 {
		t.Fatalf("expected sustained thrust to move the paddle")
	}
}

func TestWallBounceBoostsAndCaps(t *testing.T) {
	p := newPong("match", fixedClock())
	p.ball.Pos = Vec3{X: arenaHalfWidth - ballRadius - 0.001}
	p.ball.Vel = Vec3{X: 6, Z: 3}
	before := math.Hypot(p.ball.Vel.X, p.ball.Vel.Z)

	p.Update(FixedDT)

	if p.ball.Vel.X >= 0 {
		t.Fatalf("expected X velocity to reflect, got %f", p.ball.Vel.X)
	}
	if p.ball.Pos.X > arenaHalfWidth-ballRadius {
		t.Fatalf("ball escaped the arena: x=%f", p.ball.Pos.X)
	}
	after := math.Hypot(p.ball.Vel.X, p.ball.Vel.Z)
	if after <= before {
		t.Fatalf("expected bounce boost, got %f -> %f", before, after)
	}

	// A near-max ball must cap at the configured maximum.
	p.ball.Pos = Vec3{X: arenaHalfWidth - ballRadius - 0.001}
	p.ball.Vel = Vec3{X: ballMaxSpeed * 0.9, Z: ballMaxSpeed * 0.43}
	p.Update(FixedDT)
	capped := math.Hypot(p.ball.Vel.X, p.ball.Vel.Z)
	if capped > ballMaxSpeed+1e-9 {
		t.Fatalf("bounce speed %f exceeds cap %f", capped, ballMaxSpeed)
	}
}

func TestInputAbsentKeepsMotionReleaseStopsIt(t *testing.T) {
	p := newPong("match", fixedClock())
	p.ApplyInput(SeatBottom, InputPatch{"right": 1})
	for i := 0; i < 30; i++ {
		p.Update(FixedDT)
	}
	moving := p.paddles[SeatBottom].VX
	if moving <= 0 {
		t.Fatalf("expected rightward velocity, got %f", moving)
	}

	// A patch without the key must not reset ongoing thrust.
	p.ApplyInput(SeatBottom, InputPatch{"left": 0})
	p.Update(FixedDT)
	if p.paddles[SeatBottom].VX <= moving*0.5 {
		t.Fatalf("absent field reset thrust: %f -> %f", moving, p.paddles[SeatBottom].VX)
	}

	// The explicit release sentinel stops acceleration; friction drains it.
	p.ApplyInput(SeatBottom, InputPatch{"right": 0})
	for i := 0; i < TickRate; i++ {
		p.Update(FixedDT)
	}
	if v := math.Abs(p.paddles[SeatBottom].VX); v > 0.1 {
		t.Fatalf("expected friction to drain released paddle, velocity %f", v)
	}
}

func TestMalformedInputIgnoredFieldByField(t *testing.T) {
	p := newPong("match", fixedClock())
	p.ApplyInput(SeatBottom, InputPatch{"right": 1, "warp": 99, "left": math.NaN()})
	for i := 0; i < 10; i++ {
		p.Update(FixedDT)
	}
	if p.paddles[SeatBottom].VX <= 0 {
		t.Fatalf("valid field should survive malformed siblings")
	}
	p.ApplyInput("balcony", InputPatch{"right": 1}) // unknown seat: no-op
}

func TestServeTowardConcedingSeat(t *testing.T) {
	p := newPong("match", fixedClock())

	// Past the bottom end-line: top scores, bottom receives the serve.
	p.ball.Pos = Vec3{Z: arenaHalfDepth - 0.01}
	p.ball.Vel = Vec3{Z: serveSpeedZ}
	p.Update(FixedDT)
	if p.score[SeatTop] != 1 {
		t.Fatalf("expected top seat to score, got %+v", p.score)
	}
	if p.ball.Vel.Z <= 0 {
		t.Fatalf("serve must travel toward the conceding bottom seat, vz=%f", p.ball.Vel.Z)
	}

	// Past the top end-line: bottom scores, top receives the serve.
	p.ball.Pos = Vec3{Z: -arenaHalfDepth + 0.01}
	p.ball.Vel = Vec3{Z: -serveSpeedZ}
	p.Update(FixedDT)
	if p.score[SeatBottom] != 1 {
		t.Fatalf("expected bottom seat to score, got %+v", p.score)
	}
	if p.ball.Vel.Z >= 0 {
		t.Fatalf("serve must travel toward the conceding top seat, vz=%f", p.ball.Vel.Z)
	}
}

func TestPaddleCollisionReflectsOutboundOnly(t *testing.T) {
	p := newPong("match", fixedClock())
	p.ball.Pos = Vec3{X: 0, Z: paddleOffsetZ - contactDepth}
	p.ball.Vel = Vec3{Z: 8}
	p.Update(FixedDT)
	if p.ball.Vel.Z >= 0 {
		t.Fatalf("expected inbound ball to reflect off bottom paddle, vz=%f", p.ball.Vel.Z)
	}

	// Already outbound inside the contact box: no double reflection.
	vz := p.ball.Vel.Z
	p.ball.Pos = Vec3{X: 0, Z: paddleOffsetZ - contactDepth}
	p.Update(FixedDT)
	if (vz < 0) != (p.ball.Vel.Z < 0) {
		t.Fatalf("outbound ball must not reflect again")
	}
}

func TestUnsupportedKind(t *testing.T) {
	if _, err := New(Kind("tetris"), "id", nil); err == nil {
		t.Fatalf("expected unsupported kind error")
	}
	if _, err := New(KindPong, "id", nil); err != nil {
		t.Fatalf("pong must construct: %v", err)
	}
	if _, err := New(KindCube, "id", nil); err != nil {
		t.Fatalf("cube must construct: %v", err)
	}
}
