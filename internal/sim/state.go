package sim

// Vec3 is a position or velocity in arena space. Pong only uses X and Z; Y is
// carried for the cube kind's vertical axis.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Ball is the pong ball's physics sub-state.
type Ball struct {
	Pos Vec3 `json:"pos"`
	Vel Vec3 `json:"vel"`
}

// Paddle is one seat's paddle sub-state. Paddles move only along X; Z is the
// fixed plane the seat defends.
type Paddle struct {
	X  float64 `json:"x"`
	VX float64 `json:"vx"`
	Z  float64 `json:"z"`
}

// State is the authoritative snapshot of one match. It is owned exclusively
// by the simulation instance that produced it; everything handed out of
// Snapshot is a copy.
type State struct {
	ID        string             `json:"id"`
	Kind      Kind               `json:"kind"`
	Players   map[Seat]PlayerRef `json:"players"`
	Ball      *Ball              `json:"ball,omitempty"`
	Paddles   map[Seat]Paddle    `json:"paddles,omitempty"`
	Entities  map[Seat]Vec3      `json:"entities,omitempty"`
	Score     map[Seat]int       `json:"score,omitempty"`
	CreatedAt int64              `json:"createdAt"`
	UpdatedAt int64              `json:"updatedAt"`
	GameOver  bool               `json:"gameOver"`
	Winner    *Seat              `json:"winner"`
}
