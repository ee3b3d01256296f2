package room

import (
	"testing"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"paddlearena/server/internal/registry"
	"paddlearena/server/internal/sim"
)

func newTestManager(t *testing.T) (*Manager, *registry.Registry) {
	t.Helper()
	reg := registry.New(zerolog.Nop())
	return NewManager(reg, zerolog.Nop()), reg
}

func TestCreateRoomSeatsOwner(t *testing.T) {
	m, _ := newTestManager(t)

	created, err := m.CreateRoom("alice", "Alice", "friendly", sim.KindPong)
	require.NoError(t, err)
	require.Equal(t, StatusWaiting, created.Status)
	require.Equal(t, "alice", created.OwnerID)
	require.Len(t, created.Seats, 1)

	bound, ok := m.RoomOf("alice")
	require.True(t, ok)
	require.Equal(t, created.ID, bound.ID)
}

func TestSeatExclusivity(t *testing.T) {
	m, _ := newTestManager(t)

	first, err := m.CreateRoom("alice", "Alice", "one", sim.KindPong)
	require.NoError(t, err)
	_, err = m.JoinRoom(first.ID, "bob", "Bob")
	require.NoError(t, err)

	second, err := m.CreateRoom("carol", "Carol", "two", sim.KindPong)
	require.NoError(t, err)

	// A seated player can neither create nor join a second room.
	_, err = m.CreateRoom("bob", "Bob", "three", sim.KindPong)
	require.True(t, eris.Is(err, ErrAlreadySeated))
	_, err = m.JoinRoom(second.ID, "bob", "Bob")
	require.True(t, eris.Is(err, ErrAlreadySeated))

	// Rejoining the same room is idempotent, not a conflict.
	again, err := m.JoinRoom(first.ID, "bob", "Bob")
	require.NoError(t, err)
	require.Len(t, again.Seats, 2)
}

func TestJoinConflicts(t *testing.T) {
	m, _ := newTestManager(t)

	created, err := m.CreateRoom("alice", "Alice", "full", sim.KindPong)
	require.NoError(t, err)
	_, err = m.JoinRoom(created.ID, "bob", "Bob")
	require.NoError(t, err)

	_, err = m.JoinRoom(created.ID, "carol", "Carol")
	require.True(t, eris.Is(err, ErrRoomFull))

	_, err = m.JoinRoom("no-such-room", "carol", "Carol")
	require.True(t, eris.Is(err, ErrRoomNotFound))
}

func TestStartGameGating(t *testing.T) {
	m, reg := newTestManager(t)

	created, err := m.CreateRoom("alice", "Alice", "gated", sim.KindPong)
	require.NoError(t, err)

	// One seat occupied: refused.
	_, err = m.StartGame(created.ID, "alice")
	require.True(t, eris.Is(err, ErrNotEnoughSeats))

	_, err = m.JoinRoom(created.ID, "bob", "Bob")
	require.NoError(t, err)

	// Nobody ready: refused, room stays waiting.
	_, err = m.StartGame(created.ID, "alice")
	require.True(t, eris.Is(err, ErrNotAllReady))
	current, ok := m.GetRoom(created.ID)
	require.True(t, ok)
	require.Equal(t, StatusWaiting, current.Status)
	require.Empty(t, current.MatchID)

	m.SetReady("alice", true)
	m.SetReady("bob", true)

	// Non-owner cannot start.
	_, err = m.StartGame(created.ID, "bob")
	require.True(t, eris.Is(err, ErrNotOwner))

	started, err := m.StartGame(created.ID, "alice")
	require.NoError(t, err)
	require.Equal(t, StatusInProgress, started.Status)
	require.NotEmpty(t, started.MatchID)

	match, ok := reg.Get(started.MatchID)
	require.True(t, ok)
	players := match.Snapshot().Players
	require.Len(t, players, 2)

	// A started room cannot start twice.
	_, err = m.StartGame(created.ID, "alice")
	require.True(t, eris.Is(err, ErrRoomNotWaiting))
}

func TestSetReadyUnseatedIsNoop(t *testing.T) {
	m, _ := newTestManager(t)
	_, ok := m.SetReady("ghost", true)
	require.False(t, ok)
}

func TestOwnerLeaveDestroysRoom(t *testing.T) {
	m, _ := newTestManager(t)

	created, err := m.CreateRoom("alice", "Alice", "doomed", sim.KindPong)
	require.NoError(t, err)
	_, err = m.JoinRoom(created.ID, "bob", "Bob")
	require.NoError(t, err)

	_, gone := m.LeaveRoom("alice")
	require.True(t, gone)

	_, ok := m.GetRoom(created.ID)
	require.False(t, ok, "room must be torn down when the owner leaves")
	_, ok = m.RoomOf("bob")
	require.False(t, ok, "remaining player's binding must be cleared")

	// Bob is free to open a new room immediately.
	_, err = m.CreateRoom("bob", "Bob", "fresh", sim.KindPong)
	require.NoError(t, err)
}

func TestNonOwnerLeaveVacatesSeat(t *testing.T) {
	m, _ := newTestManager(t)

	created, err := m.CreateRoom("alice", "Alice", "sticky", sim.KindPong)
	require.NoError(t, err)
	_, err = m.JoinRoom(created.ID, "bob", "Bob")
	require.NoError(t, err)

	after, ok := m.LeaveRoom("bob")
	require.True(t, ok)
	require.Len(t, after.Seats, 1)

	room, ok := m.GetRoom(created.ID)
	require.True(t, ok)
	require.Equal(t, StatusWaiting, room.Status)
}

func TestKickPlayer(t *testing.T) {
	m, _ := newTestManager(t)

	created, err := m.CreateRoom("alice", "Alice", "strict", sim.KindPong)
	require.NoError(t, err)
	_, err = m.JoinRoom(created.ID, "bob", "Bob")
	require.NoError(t, err)

	_, err = m.KickPlayer(created.ID, "bob", "alice")
	require.True(t, eris.Is(err, ErrNotOwner))

	kicked, err := m.KickPlayer(created.ID, "alice", "bob")
	require.NoError(t, err)
	require.Len(t, kicked.Seats, 1)

	_, ok := m.RoomOf("bob")
	require.False(t, ok)
	_, ok = m.GetRoom(created.ID)
	require.True(t, ok, "kick must not destroy the room")
}

func TestMarkFinished(t *testing.T) {
	m, _ := newTestManager(t)

	created, err := m.CreateRoom("alice", "Alice", "ending", sim.KindPong)
	require.NoError(t, err)
	_, err = m.JoinRoom(created.ID, "bob", "Bob")
	require.NoError(t, err)
	m.SetReady("alice", true)
	m.SetReady("bob", true)
	started, err := m.StartGame(created.ID, "alice")
	require.NoError(t, err)

	finished, ok := m.MarkFinished(started.MatchID)
	require.True(t, ok)
	require.Equal(t, StatusFinished, finished.Status)

	// The finished room is purged, not retained.
	_, ok = m.GetRoom(created.ID)
	require.False(t, ok)
	require.Empty(t, m.ListRooms())

	// Both seats are freed: either player may seat elsewhere immediately.
	_, err = m.CreateRoom("bob", "Bob", "next", sim.KindPong)
	require.NoError(t, err)
	_, err = m.CreateRoom("alice", "Alice", "after", sim.KindPong)
	require.NoError(t, err)

	// A second mark for the same match is a no-op.
	_, ok = m.MarkFinished(started.MatchID)
	require.False(t, ok)
}
