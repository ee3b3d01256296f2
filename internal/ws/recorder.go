package ws

import "context"

// Result is the narrow payload handed to the external persistence layer once
// per finished match. Identities are stable account ids, already resolved.
type Result struct {
	MatchKind      string
	SeatAIdentity  string
	SeatBIdentity  string
	WinnerIdentity string
	ScoreA         int
	ScoreB         int
}

// Recorder is the persistence hook for finished matches. The storage layer
// behind it is outside this subsystem.
type Recorder interface {
	RecordResult(ctx context.Context, result Result) error
}

// IdentityResolver maps a transport-level player id to a stable account id.
// Used only for post-game recording, never by the simulation.
type IdentityResolver interface {
	AccountID(playerID string) (string, bool)
}

// NopRecorder discards results. Default wiring for standalone runs.
type NopRecorder struct{}

func (NopRecorder) RecordResult(context.Context, Result) error { return nil }

// PassthroughResolver treats the transport id as the account id.
type PassthroughResolver struct{}

func (PassthroughResolver) AccountID(playerID string) (string, bool) {
	return playerID, playerID != ""
}
