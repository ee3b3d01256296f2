package sim

const (
	// TickRate is the fixed simulation cadence in steps per second.
	TickRate = 120
	// FixedDT is the constant integration step injected into Update.
	FixedDT = 1.0 / float64(TickRate)

	arenaHalfWidth = 10.0 // side walls at x = ±arenaHalfWidth
	arenaHalfDepth = 15.0 // end lines at z = ±arenaHalfDepth
	ballRadius     = 0.5

	paddleHalfWidth = 2.0
	paddleOffsetZ   = 13.5 // paddle plane distance from center
	contactDepth    = 1.0  // half-thickness of the paddle contact box

	paddleAccel    = 80.0 // units per second² while thrusting
	paddleFriction = 8.0  // exponential velocity decay per second
	paddleMaxSpeed = 14.0

	serveSpeedX     = 4.0
	serveSpeedZ     = 9.0
	ballMaxSpeed    = 22.0
	wallBounceBoost = 1.05

	winScore = 10

	cubeMoveSpeed  = 6.0
	cubeHalfExtent = 12.0
)
