package room

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"

	"paddlearena/server/internal/metrics"
	"paddlearena/server/internal/registry"
	"paddlearena/server/internal/sim"
)

// State-conflict and lookup errors. These travel back to the single
// requesting connection; none of them are fatal to anything.
var (
	ErrRoomNotFound   = eris.New("room not found")
	ErrRoomNotWaiting = eris.New("room is not waiting for players")
	ErrRoomFull       = eris.New("room is full")
	ErrAlreadySeated  = eris.New("player is already seated in another room")
	ErrNotOwner       = eris.New("only the room owner may do that")
	ErrNotAllReady    = eris.New("all seated players must be ready")
	ErrNotEnoughSeats = eris.New("room does not have enough players")
	ErrNotSeated      = eris.New("player is not seated in this room")
)

// Manager owns every room plus the global player→room index that enforces
// one seat per player system-wide. A single mutex guards both collections;
// all mutation goes through the exported operations.
type Manager struct {
	mu         sync.Mutex
	rooms      map[string]*Room
	playerRoom map[string]string

	registry *registry.Registry
	now      func() time.Time
	logger   zerolog.Logger
}

// NewManager constructs a manager bound to the given match registry.
func NewManager(reg *registry.Registry, logger zerolog.Logger) *Manager {
	return &Manager{
		rooms:      make(map[string]*Room),
		playerRoom: make(map[string]string),
		registry:   reg,
		now:        time.Now,
		logger:     logger.With().Str("component", "rooms").Logger(),
	}
}

// CreateRoom opens a waiting room and seats the owner immediately.
func (m *Manager) CreateRoom(ownerID, ownerName, name string, kind sim.Kind) (Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.clearStaleBindingLocked(ownerID)
	if _, bound := m.playerRoom[ownerID]; bound {
		return Room{}, ErrAlreadySeated
	}

	room := &Room{
		ID:         uuid.NewString(),
		Name:       name,
		OwnerID:    ownerID,
		Kind:       kind,
		Status:     StatusWaiting,
		MaxPlayers: MaxPlayers,
		Seats:      make(map[sim.Seat]*Occupant, MaxPlayers),
		CreatedAt:  m.now(),
	}
	seat, _ := room.freeSeat()
	room.Seats[seat] = &Occupant{PlayerID: ownerID, Username: ownerName}

	m.rooms[room.ID] = room
	m.playerRoom[ownerID] = room.ID
	metrics.RoomsLive.Set(float64(len(m.rooms)))
	m.logger.Info().Str("room", room.ID).Str("owner", ownerID).Msg("room created")
	return room.snapshot(), nil
}

// JoinRoom seats a player in an existing waiting room.
func (m *Manager) JoinRoom(roomID, playerID, username string) (Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	room, ok := m.rooms[roomID]
	if !ok {
		return Room{}, ErrRoomNotFound
	}
	if room.Status != StatusWaiting {
		return Room{}, ErrRoomNotWaiting
	}

	m.clearStaleBindingLocked(playerID)
	if bound, seated := m.playerRoom[playerID]; seated && bound != roomID {
		return Room{}, ErrAlreadySeated
	}
	if _, _, already := room.seatOf(playerID); already {
		return room.snapshot(), nil
	}

	seat, free := room.freeSeat()
	if !free {
		return Room{}, ErrRoomFull
	}

	room.Seats[seat] = &Occupant{PlayerID: playerID, Username: username}
	m.playerRoom[playerID] = roomID
	m.logger.Info().Str("room", roomID).Str("player", playerID).Msg("player joined room")
	return room.snapshot(), nil
}

// SetReady toggles the ready flag on whichever seat the player occupies.
// A player with no seat is a no-op, not an error.
func (m *Manager) SetReady(playerID string, ready bool) (Room, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	roomID, bound := m.playerRoom[playerID]
	if !bound {
		return Room{}, false
	}
	room, ok := m.rooms[roomID]
	if !ok {
		delete(m.playerRoom, playerID)
		return Room{}, false
	}
	_, occ, seated := room.seatOf(playerID)
	if !seated {
		return Room{}, false
	}
	occ.Ready = ready
	return room.snapshot(), true
}

// StartGame transitions a waiting room into a live match. It succeeds only
// for the owner, with every seat occupied and every occupant ready. On any
// failure the room stays waiting, untouched.
func (m *Manager) StartGame(roomID, callerID string) (Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	room, ok := m.rooms[roomID]
	if !ok {
		return Room{}, ErrRoomNotFound
	}
	if room.OwnerID != callerID {
		return Room{}, ErrNotOwner
	}
	if room.Status != StatusWaiting {
		return Room{}, ErrRoomNotWaiting
	}
	if room.seatCount() != room.MaxPlayers {
		return Room{}, ErrNotEnoughSeats
	}
	if !room.allReady() {
		return Room{}, ErrNotAllReady
	}

	matchID, err := m.registry.Create(room.Kind)
	if err != nil {
		return Room{}, eris.Wrap(err, "create match")
	}

	match, _ := m.registry.Get(matchID)
	for seat, occ := range room.Seats {
		match.SetPlayer(seat, sim.PlayerRef{PlayerID: occ.PlayerID, Username: occ.Username})
	}

	room.MatchID = matchID
	room.Status = StatusInProgress
	m.logger.Info().Str("room", roomID).Str("match", matchID).Msg("game started")
	return room.snapshot(), nil
}

// LeaveRoom vacates the player's seat. An owner leaving tears down the whole
// room and every seat binding with it; a non-owner only frees their seat, and
// an emptied room is deleted.
func (m *Manager) LeaveRoom(playerID string) (Room, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	roomID, bound := m.playerRoom[playerID]
	if !bound {
		return Room{}, false
	}
	room, ok := m.rooms[roomID]
	if !ok {
		delete(m.playerRoom, playerID)
		return Room{}, false
	}

	if room.OwnerID == playerID {
		snapshot := room.snapshot()
		m.destroyLocked(room)
		m.logger.Info().Str("room", roomID).Msg("owner left, room destroyed")
		return snapshot, true
	}

	seat, _, seated := room.seatOf(playerID)
	if seated {
		delete(room.Seats, seat)
	}
	delete(m.playerRoom, playerID)

	if room.seatCount() == 0 {
		snapshot := room.snapshot()
		m.destroyLocked(room)
		return snapshot, true
	}
	m.logger.Info().Str("room", roomID).Str("player", playerID).Msg("player left room")
	return room.snapshot(), true
}

// KickPlayer vacates the target's seat without destroying the room.
// Owner-only; the owner cannot kick themselves.
func (m *Manager) KickPlayer(roomID, callerID, targetID string) (Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	room, ok := m.rooms[roomID]
	if !ok {
		return Room{}, ErrRoomNotFound
	}
	if room.OwnerID != callerID {
		return Room{}, ErrNotOwner
	}
	if targetID == callerID {
		return Room{}, ErrNotSeated
	}
	seat, _, seated := room.seatOf(targetID)
	if !seated {
		return Room{}, ErrNotSeated
	}

	delete(room.Seats, seat)
	delete(m.playerRoom, targetID)
	m.logger.Info().Str("room", roomID).Str("player", targetID).Msg("player kicked")
	return room.snapshot(), nil
}

// ListRooms returns a snapshot of every room.
func (m *Manager) ListRooms() []Room {
	m.mu.Lock()
	defer m.mu.Unlock()

	rooms := make([]Room, 0, len(m.rooms))
	for _, room := range m.rooms {
		rooms = append(rooms, room.snapshot())
	}
	return rooms
}

// GetRoom looks up a room by id.
func (m *Manager) GetRoom(roomID string) (Room, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	room, ok := m.rooms[roomID]
	if !ok {
		return Room{}, false
	}
	return room.snapshot(), true
}

// RoomOf returns the room a player is currently seated in, if any.
func (m *Manager) RoomOf(playerID string) (Room, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	roomID, bound := m.playerRoom[playerID]
	if !bound {
		return Room{}, false
	}
	room, ok := m.rooms[roomID]
	if !ok {
		return Room{}, false
	}
	return room.snapshot(), true
}

// MarkFinished flips the room bound to the given match to finished and purges
// it, freeing every seat binding. Called when the gateway observes the match
// reach game over; the returned snapshot carries the final room state for the
// game-over broadcast. Without the purge, matchmade rooms would accumulate
// forever: nobody ever leaves them.
func (m *Manager) MarkFinished(matchID string) (Room, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, room := range m.rooms {
		if room.MatchID == matchID && room.Status == StatusInProgress {
			room.Status = StatusFinished
			snapshot := room.snapshot()
			m.destroyLocked(room)
			m.logger.Info().Str("room", room.ID).Str("match", matchID).Msg("room finished")
			return snapshot, true
		}
	}
	return Room{}, false
}

// destroyLocked removes the room and every seat binding pointing at it.
func (m *Manager) destroyLocked(room *Room) {
	for _, occ := range room.Seats {
		delete(m.playerRoom, occ.PlayerID)
	}
	delete(m.rooms, room.ID)
	metrics.RoomsLive.Set(float64(len(m.rooms)))
}

// clearStaleBindingLocked drops a player→room index entry whose room no
// longer exists. Seat-assigning paths call this first so programmatic flows
// (matchmaking) never leave ghost bindings.
func (m *Manager) clearStaleBindingLocked(playerID string) {
	roomID, bound := m.playerRoom[playerID]
	if !bound {
		return
	}
	if _, ok := m.rooms[roomID]; !ok {
		delete(m.playerRoom, playerID)
	}
}
