// Package queue pairs waiting players within a skill window and materializes
// a room plus live match for them without manual lobby interaction.
package queue

import (
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"paddlearena/server/internal/metrics"
	"paddlearena/server/internal/registry"
	"paddlearena/server/internal/room"
	"paddlearena/server/internal/sim"
)

// Phase is a player's matchmaking state.
type Phase string

const (
	PhaseSearching Phase = "searching"
	PhaseMatched   Phase = "matched"
)

// Status is the per-player matchmaking view returned by every operation.
type Status struct {
	Phase   Phase    `json:"status"`
	MatchID string   `json:"matchId,omitempty"`
	RoomID  string   `json:"roomId,omitempty"`
	Seat    sim.Seat `json:"seat,omitempty"`
}

var searching = Status{Phase: PhaseSearching}

type entry struct {
	playerID   string
	username   string
	skill      float64
	enqueuedAt time.Time
}

// Config tunes pairing and expiry.
type Config struct {
	// SkillWindow is the maximum rating gap between paired players.
	SkillWindow float64
	// TTL expires idle queue entries; the sweep runs lazily on every access.
	TTL time.Duration
}

// DefaultConfig mirrors the production tuning.
func DefaultConfig() Config {
	return Config{SkillWindow: 100, TTL: 5 * time.Minute}
}

// Matchmaker maintains the FIFO-with-skill-window queue. Pairing is
// first-found-within-threshold, not closest-rating; callers must not assume
// ELO-optimal pairing.
type Matchmaker struct {
	mu       sync.Mutex
	waiting  []entry
	statuses map[string]Status

	rooms    *room.Manager
	registry *registry.Registry
	config   Config
	now      func() time.Time
	logger   zerolog.Logger
}

// NewMatchmaker constructs a matchmaker driving the given room manager and
// consulting the registry for stale-match reconciliation.
func NewMatchmaker(rooms *room.Manager, reg *registry.Registry, cfg Config, logger zerolog.Logger) *Matchmaker {
	if cfg.SkillWindow <= 0 {
		cfg.SkillWindow = DefaultConfig().SkillWindow
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultConfig().TTL
	}
	return &Matchmaker{
		statuses: make(map[string]Status),
		rooms:    rooms,
		registry: reg,
		config:   cfg,
		now:      time.Now,
		logger:   logger.With().Str("component", "matchmaking").Logger(),
	}
}

// WithClock overrides the clock used for TTL sweeps. Test hook.
func (mm *Matchmaker) WithClock(now func() time.Time) *Matchmaker {
	mm.now = now
	return mm
}

// Enqueue adds a player to the queue or pairs them immediately. Calling it
// again with no intervening match is idempotent: the entry is refreshed, not
// duplicated, and a still-live matched status is returned unchanged.
func (mm *Matchmaker) Enqueue(playerID, username string, skill float64) Status {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	mm.purgeExpiredLocked()
	mm.removeLocked(playerID)

	// The purge above dropped any dead matched status, so a surviving one is
	// live and returned unchanged.
	if status, ok := mm.statuses[playerID]; ok && status.Phase == PhaseMatched {
		return status
	}

	candidate := entry{playerID: playerID, username: username, skill: skill, enqueuedAt: mm.now()}

	if status, ok := mm.tryPairLocked(candidate); ok {
		return status
	}

	mm.waiting = append(mm.waiting, candidate)
	mm.statuses[playerID] = searching
	metrics.QueueDepth.Set(float64(len(mm.waiting)))
	return searching
}

// Cancel removes the player from the queue and clears any cached status.
// Idempotent; cancelling an unknown player is a no-op.
func (mm *Matchmaker) Cancel(playerID string) {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	mm.removeLocked(playerID)
	delete(mm.statuses, playerID)
	metrics.QueueDepth.Set(float64(len(mm.waiting)))
}

// Status reports the player's current matchmaking state. A cached matched
// status whose underlying match is gone or already over is swept by the purge
// before returning; clients poll this and must never see a matched status for
// a match that no longer exists.
func (mm *Matchmaker) Status(playerID string) Status {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	mm.purgeExpiredLocked()

	status, ok := mm.statuses[playerID]
	if !ok {
		return searching
	}
	return status
}

// tryPairLocked scans the queue in arrival order for the first entry within
// the skill window and, if found, drives the room manager through the full
// create/join/ready/start sequence. A start failure requeues both players.
func (mm *Matchmaker) tryPairLocked(candidate entry) (Status, bool) {
	index := -1
	for i, waiting := range mm.waiting {
		if math.Abs(waiting.skill-candidate.skill) <= mm.config.SkillWindow {
			index = i
			break
		}
	}
	if index < 0 {
		return Status{}, false
	}

	partner := mm.waiting[index]
	mm.waiting = append(mm.waiting[:index], mm.waiting[index+1:]...)
	metrics.QueueDepth.Set(float64(len(mm.waiting)))

	started, err := mm.startPair(partner, candidate)
	if err != nil {
		// Self-heal: neither player is lost on a transient start failure.
		mm.waiting = append(mm.waiting, partner, candidate)
		mm.statuses[partner.playerID] = searching
		mm.statuses[candidate.playerID] = searching
		metrics.QueueDepth.Set(float64(len(mm.waiting)))
		mm.logger.Warn().Err(err).
			Str("player", candidate.playerID).
			Str("partner", partner.playerID).
			Msg("pairing failed, both players requeued")
		return searching, true
	}

	for _, seat := range sim.Seats {
		occ, ok := started.Seats[seat]
		if !ok {
			continue
		}
		mm.statuses[occ.PlayerID] = Status{
			Phase:   PhaseMatched,
			MatchID: started.MatchID,
			RoomID:  started.ID,
			Seat:    seat,
		}
	}
	metrics.QueuePairs.Inc()
	mm.logger.Info().
		Str("match", started.MatchID).
		Str("player", candidate.playerID).
		Str("partner", partner.playerID).
		Msg("players paired")
	return mm.statuses[candidate.playerID], true
}

// startPair reuses the room lifecycle: create a room for the pair, seat both,
// force both seats ready, and start the game.
func (mm *Matchmaker) startPair(owner, guest entry) (room.Room, error) {
	created, err := mm.rooms.CreateRoom(owner.playerID, owner.username, "matchmaking", sim.KindPong)
	if err != nil {
		return room.Room{}, err
	}
	if _, err := mm.rooms.JoinRoom(created.ID, guest.playerID, guest.username); err != nil {
		mm.rooms.LeaveRoom(owner.playerID)
		return room.Room{}, err
	}
	mm.rooms.SetReady(owner.playerID, true)
	mm.rooms.SetReady(guest.playerID, true)

	started, err := mm.rooms.StartGame(created.ID, owner.playerID)
	if err != nil {
		mm.rooms.LeaveRoom(owner.playerID)
		return room.Room{}, err
	}
	return started, nil
}

// matchLiveLocked reports whether a match still exists and is not yet over.
func (mm *Matchmaker) matchLiveLocked(matchID string) bool {
	if matchID == "" {
		return false
	}
	match, ok := mm.registry.Get(matchID)
	return ok && !match.GameOver()
}

func (mm *Matchmaker) removeLocked(playerID string) {
	for i, waiting := range mm.waiting {
		if waiting.playerID == playerID {
			mm.waiting = append(mm.waiting[:i], mm.waiting[i+1:]...)
			break
		}
	}
}

func (mm *Matchmaker) purgeExpiredLocked() {
	cutoff := mm.now().Add(-mm.config.TTL)
	kept := mm.waiting[:0]
	for _, waiting := range mm.waiting {
		if waiting.enqueuedAt.After(cutoff) {
			kept = append(kept, waiting)
			continue
		}
		if status, ok := mm.statuses[waiting.playerID]; ok && status.Phase == PhaseSearching {
			delete(mm.statuses, waiting.playerID)
		}
	}
	mm.waiting = kept
	metrics.QueueDepth.Set(float64(len(mm.waiting)))

	// Matched statuses whose match is gone or over are dead weight: players
	// who never poll again would otherwise pin them for the process lifetime.
	for playerID, status := range mm.statuses {
		if status.Phase == PhaseMatched && !mm.matchLiveLocked(status.MatchID) {
			delete(mm.statuses, playerID)
		}
	}
}
