// Package ws is the realtime gateway: the only component that touches the
// network. It owns per-match and per-room subscriber sets, dispatches inbound
// client messages to the registry, room manager, and matchmaking queue, and
// fans simulation state out to subscribers on every scheduler tick.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"paddlearena/server/internal/metrics"
	"paddlearena/server/internal/registry"
	"paddlearena/server/internal/room"
	"paddlearena/server/internal/sim"
)

// Config tunes the gateway.
type Config struct {
	// TickRate is ticks per second for advance+broadcast. Defaults to
	// sim.TickRate.
	TickRate int
	// Recorder receives one Result per finished match. Defaults to
	// NopRecorder.
	Recorder Recorder
	// Resolver maps transport player ids to account ids for recording.
	// Defaults to PassthroughResolver.
	Resolver IdentityResolver
}

// Hub manages every live connection and drives the simulation scheduler.
type Hub struct {
	mu        sync.Mutex
	sessions  map[*session]struct{}
	matchSubs map[string]map[*session]struct{}
	roomSubs  map[string]map[*session]struct{}
	byPlayer  map[string]*session
	recorded  map[string]struct{}

	registry *registry.Registry
	rooms    *room.Manager

	recorder Recorder
	resolver IdentityResolver
	tickRate int
	upgrader websocket.Upgrader
	logger   zerolog.Logger
}

// NewHub constructs a gateway over the given registry and room manager.
func NewHub(reg *registry.Registry, rooms *room.Manager, cfg Config, logger zerolog.Logger) *Hub {
	if cfg.TickRate <= 0 {
		cfg.TickRate = sim.TickRate
	}
	if cfg.Recorder == nil {
		cfg.Recorder = NopRecorder{}
	}
	if cfg.Resolver == nil {
		cfg.Resolver = PassthroughResolver{}
	}
	return &Hub{
		sessions:  make(map[*session]struct{}),
		matchSubs: make(map[string]map[*session]struct{}),
		roomSubs:  make(map[string]map[*session]struct{}),
		byPlayer:  make(map[string]*session),
		recorded:  make(map[string]struct{}),
		registry:  reg,
		rooms:     rooms,
		recorder:  cfg.Recorder,
		resolver:  cfg.Resolver,
		tickRate:  cfg.TickRate,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger: logger.With().Str("component", "gateway").Logger(),
	}
}

// Run drives the fixed-rate scheduler until stop closes: advance all matches,
// then broadcast all matches. The wall clock only paces the ticker; the
// simulations always receive the fixed dt.
func (h *Hub) Run(stop <-chan struct{}) {
	ticker := time.NewTicker(time.Second / time.Duration(h.tickRate))
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			h.tick()
		}
	}
}

// tick advances every live match one fixed step, records freshly finished
// matches, fans state out to subscribers, and evicts finished matches whose
// last subscriber is gone.
func (h *Hub) tick() {
	h.registry.TickAll(sim.FixedDT)

	for _, info := range h.registry.List() {
		match, ok := h.registry.Get(info.ID)
		if !ok {
			continue
		}
		state := match.Snapshot()

		if state.GameOver {
			h.recordOnce(state)
		}

		subs := h.subscribersFor(info.ID)
		if len(subs) > 0 {
			h.broadcastState(info.ID, state, subs)
			continue
		}

		// No observers. A finished, recorded match is evicted; an unfinished
		// one keeps running so a reconnecting client can still observe the
		// result.
		if state.GameOver && h.isRecorded(info.ID) {
			h.registry.Remove(info.ID)
			h.forgetMatch(info.ID)
		}
	}
}

// broadcastState serializes once and fans out. A failed send removes only
// that socket; the loop never aborts.
func (h *Hub) broadcastState(matchID string, state sim.State, subs []*session) {
	data, err := json.Marshal(stateMessage{Ver: ProtocolVersion, Type: "state", State: state})
	if err != nil {
		h.logger.Error().Err(err).Str("match", matchID).Msg("state marshal failed")
		return
	}
	for _, sess := range subs {
		if !sess.send(data) {
			metrics.DroppedSends.Inc()
			h.dropSession(sess)
		}
	}
	metrics.Broadcasts.Inc()
}

// recordOnce invokes the persistence hook exactly once per finished match.
// Eviction waits for this: a match is never removed with an unrecorded
// result.
func (h *Hub) recordOnce(state sim.State) {
	h.mu.Lock()
	if _, done := h.recorded[state.ID]; done {
		h.mu.Unlock()
		return
	}
	h.recorded[state.ID] = struct{}{}
	h.mu.Unlock()

	result := Result{MatchKind: string(state.Kind)}
	if ref, ok := state.Players[sim.SeatTop]; ok {
		result.SeatAIdentity, _ = h.resolver.AccountID(ref.PlayerID)
	}
	if ref, ok := state.Players[sim.SeatBottom]; ok {
		result.SeatBIdentity, _ = h.resolver.AccountID(ref.PlayerID)
	}
	if state.Winner != nil {
		if ref, ok := state.Players[*state.Winner]; ok {
			result.WinnerIdentity, _ = h.resolver.AccountID(ref.PlayerID)
		}
	}
	if state.Score != nil {
		result.ScoreA = state.Score[sim.SeatTop]
		result.ScoreB = state.Score[sim.SeatBottom]
	}

	if err := h.recorder.RecordResult(context.Background(), result); err != nil {
		h.logger.Error().Err(err).Str("match", state.ID).Msg("result recording failed")
	}
	metrics.MatchesFinished.Inc()

	if finished, ok := h.rooms.MarkFinished(state.ID); ok {
		h.broadcastRoomEvent(finished.ID, roomEventMessage{
			Ver: ProtocolVersion, Type: "game_over", Room: &finished, GameID: state.ID,
		})
		h.forgetRoom(finished.ID)
	}
}

// Handle upgrades an HTTP request to a websocket session and runs its read
// loop. An optional ?id= query binds the connection to a player immediately;
// otherwise the binding happens on the first message carrying a player id.
func (h *Hub) Handle(w http.ResponseWriter, r *http.Request) {
	c, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	sess := newSession(c)
	sess.playerID = r.URL.Query().Get("id")

	h.mu.Lock()
	h.sessions[sess] = struct{}{}
	if sess.playerID != "" {
		if existing, ok := h.byPlayer[sess.playerID]; ok {
			existing.close()
		}
		h.byPlayer[sess.playerID] = sess
	}
	total := len(h.sessions)
	h.mu.Unlock()
	metrics.Connections.Set(float64(total))

	h.sendJSON(sess, helloMessage{Ver: ProtocolVersion, Type: "hello", ServerTime: time.Now().UnixMilli()})

	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			h.disconnect(sess)
			return
		}
		msg, ok := decodePayload(data)
		if !ok {
			// Malformed frame: drop silently, never crash the handler.
			continue
		}
		h.dispatch(sess, msg)
	}
}

// dispatch routes one inbound message. Unrecognized messages fall through
// silently.
func (h *Hub) dispatch(sess *session, msg payload) {
	h.bindPlayer(sess, msg)

	switch msg.str("type") {
	case "create_game":
		h.handleCreateGame(sess, msg)
	case "input":
		h.handleInput(sess, msg)
	case "paddle":
		h.handlePaddle(sess, msg)
	case "create_room":
		h.handleCreateRoom(sess, msg)
	case "join_room":
		h.handleJoinRoom(sess, msg)
	case "leave_room":
		h.handleLeaveRoom(sess, msg)
	case "player_ready":
		h.handlePlayerReady(sess, msg)
	case "kick_player":
		h.handleKickPlayer(sess, msg)
	case "start_game":
		h.handleStartGame(sess, msg)
	case "get_rooms":
		h.handleGetRooms(sess)
	case "":
		if msg.isAxisMessage() {
			h.handleAxisInput(sess, msg)
		}
	}
}

func (h *Hub) handleCreateGame(sess *session, msg payload) {
	kind := sim.Kind(msg.str("kind"))
	if kind == "" {
		kind = sim.KindPong
	}
	id, err := h.registry.Create(kind)
	if err != nil {
		h.sendError(sess, "unsupported kind")
		return
	}
	h.subscribeMatch(sess, id)
	h.sendJSON(sess, createdMessage{Ver: ProtocolVersion, Type: "created", GameID: id})

	if match, ok := h.registry.Get(id); ok {
		h.broadcastState(id, match.Snapshot(), []*session{sess})
	}
}

func (h *Hub) handleInput(sess *session, msg payload) {
	match, ok := h.registry.Get(msg.str("gameId"))
	if !ok {
		return // match gone; stale ids are not an error
	}
	seat := sim.Seat(msg.str("side"))
	if !seat.Valid() {
		return
	}
	patch := msg.inputPatch(thrustKeys...)
	if len(patch) == 0 {
		return
	}
	match.ApplyInput(seat, patch)
	h.subscribeMatch(sess, match.ID())
}

// handlePaddle applies a direct absolute paddle position. Privileged/debug
// flow only; regular clients steer through thrust inputs.
func (h *Hub) handlePaddle(sess *session, msg payload) {
	match, ok := h.registry.Get(msg.str("gameId"))
	if !ok {
		return
	}
	seat := sim.Seat(msg.str("playerSide"))
	if !seat.Valid() {
		return
	}
	x, ok := msg.num("x")
	if !ok {
		return
	}
	match.ApplyInput(seat, sim.InputPatch{"x": x})
	h.subscribeMatch(sess, match.ID())
}

func (h *Hub) handleAxisInput(sess *session, msg payload) {
	match, ok := h.registry.Get(msg.str("gameId"))
	if !ok {
		return
	}
	patch := msg.inputPatch(axisKeys...)
	if len(patch) == 0 {
		return
	}
	match.ApplyInput(h.seatFor(match, sess), patch)
	h.subscribeMatch(sess, match.ID())
}

// seatFor resolves which seat a session controls in a match from the match's
// own player bindings, defaulting to the bottom seat for unbound sandboxes.
func (h *Hub) seatFor(match *registry.Match, sess *session) sim.Seat {
	if sess.playerID != "" {
		state := match.Snapshot()
		for seat, ref := range state.Players {
			if ref.PlayerID == sess.playerID {
				return seat
			}
		}
	}
	return sim.SeatBottom
}

func (h *Hub) handleCreateRoom(sess *session, msg payload) {
	ownerID := msg.str("ownerId")
	if ownerID == "" {
		h.sendError(sess, "missing ownerId")
		return
	}
	kind := sim.Kind(msg.str("kind"))
	if kind == "" {
		kind = sim.KindPong
	}
	created, err := h.rooms.CreateRoom(ownerID, msg.str("ownerUsername"), msg.str("name"), kind)
	if err != nil {
		h.sendError(sess, err.Error())
		return
	}
	h.subscribeRoom(sess, created.ID)
	h.broadcastRoomEvent(created.ID, roomEventMessage{Ver: ProtocolVersion, Type: "room_created", Room: &created})
}

func (h *Hub) handleJoinRoom(sess *session, msg payload) {
	playerID := msg.str("playerId")
	roomID := msg.str("roomId")
	if playerID == "" || roomID == "" {
		h.sendError(sess, "missing roomId or playerId")
		return
	}
	joined, err := h.rooms.JoinRoom(roomID, playerID, msg.str("username"))
	if err != nil {
		h.sendError(sess, err.Error())
		return
	}
	h.subscribeRoom(sess, joined.ID)
	h.broadcastRoomEvent(joined.ID, roomEventMessage{Ver: ProtocolVersion, Type: "room_joined", Room: &joined, PlayerID: playerID})
}

func (h *Hub) handleLeaveRoom(sess *session, msg payload) {
	playerID := msg.str("playerId")
	if playerID == "" {
		h.sendError(sess, "missing playerId")
		return
	}
	left, ok := h.rooms.LeaveRoom(playerID)
	if !ok {
		return
	}
	h.broadcastRoomEvent(left.ID, roomEventMessage{Ver: ProtocolVersion, Type: "room_left", Room: &left, PlayerID: playerID})
	h.unsubscribeRoom(sess, left.ID)
}

func (h *Hub) handlePlayerReady(sess *session, msg payload) {
	playerID := msg.str("playerId")
	if playerID == "" {
		h.sendError(sess, "missing playerId")
		return
	}
	ready, _ := msg.boolean("ready")
	updated, ok := h.rooms.SetReady(playerID, ready)
	if !ok {
		return // unseated player: no-op by contract
	}
	h.broadcastRoomEvent(updated.ID, roomEventMessage{Ver: ProtocolVersion, Type: "player_ready", Room: &updated, PlayerID: playerID})
}

func (h *Hub) handleKickPlayer(sess *session, msg payload) {
	roomID := msg.str("roomId")
	targetID := msg.str("targetPlayerId")
	kicked, err := h.rooms.KickPlayer(roomID, msg.str("ownerId"), targetID)
	if err != nil {
		h.sendError(sess, err.Error())
		return
	}
	h.broadcastRoomEvent(roomID, roomEventMessage{Ver: ProtocolVersion, Type: "player_kicked", Room: &kicked, PlayerID: targetID})

	// Point-to-point: tell the kicked player directly and detach them.
	h.mu.Lock()
	target, ok := h.byPlayer[targetID]
	h.mu.Unlock()
	if ok {
		h.sendJSON(target, roomEventMessage{Ver: ProtocolVersion, Type: "player_kicked", Room: &kicked, PlayerID: targetID})
		h.unsubscribeRoom(target, roomID)
	}
}

func (h *Hub) handleStartGame(sess *session, msg payload) {
	roomID := msg.str("roomId")
	started, err := h.rooms.StartGame(roomID, msg.str("ownerId"))
	if err != nil {
		h.sendError(sess, err.Error())
		return
	}

	// Everyone watching the room observes the match from its first tick.
	for _, watcher := range h.roomSubscribers(roomID) {
		h.subscribeMatch(watcher, started.MatchID)
	}
	h.broadcastRoomEvent(roomID, roomEventMessage{Ver: ProtocolVersion, Type: "game_started", Room: &started, GameID: started.MatchID})
}

func (h *Hub) handleGetRooms(sess *session) {
	h.sendJSON(sess, roomListMessage{Ver: ProtocolVersion, Type: "room_list", Rooms: h.rooms.ListRooms()})
}

// bindPlayer attaches a player id to the session the first time a message
// names one, keeping the point-to-point map current. The binding is written
// under the hub mutex: the scheduler goroutine reads it on send failure.
func (h *Hub) bindPlayer(sess *session, msg payload) {
	id := msg.str("playerId")
	if id == "" {
		id = msg.str("ownerId")
	}
	if id == "" {
		return
	}
	h.mu.Lock()
	if sess.playerID == "" {
		sess.playerID = id
		h.byPlayer[id] = sess
	}
	h.mu.Unlock()
}

// disconnect removes the session from every set it belongs to. It destroys
// the player's room only if they owned it; seated non-owners stay seated so
// they can reconnect. A superseded socket (the player reconnected and Handle
// rebound them) tears nothing down: the new session owns the player now.
func (h *Hub) disconnect(sess *session) {
	h.mu.Lock()
	playerID := sess.playerID
	current := playerID != "" && h.byPlayer[playerID] == sess
	h.mu.Unlock()

	h.dropSession(sess)

	if !current {
		return
	}
	if bound, ok := h.rooms.RoomOf(playerID); ok && bound.OwnerID == playerID {
		if left, gone := h.rooms.LeaveRoom(playerID); gone {
			h.broadcastRoomEvent(left.ID, roomEventMessage{Ver: ProtocolVersion, Type: "room_left", Room: &left, PlayerID: playerID})
		}
	}
}

// dropSession excises a session from all bookkeeping and closes the socket.
func (h *Hub) dropSession(sess *session) {
	h.mu.Lock()
	delete(h.sessions, sess)
	for _, subs := range h.matchSubs {
		delete(subs, sess)
	}
	for _, subs := range h.roomSubs {
		delete(subs, sess)
	}
	if sess.playerID != "" && h.byPlayer[sess.playerID] == sess {
		delete(h.byPlayer, sess.playerID)
	}
	total := len(h.sessions)
	h.mu.Unlock()

	metrics.Connections.Set(float64(total))
	sess.close()
}

func (h *Hub) subscribeMatch(sess *session, matchID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.matchSubs[matchID]
	if !ok {
		subs = make(map[*session]struct{})
		h.matchSubs[matchID] = subs
	}
	subs[sess] = struct{}{}
}

func (h *Hub) subscribeRoom(sess *session, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.roomSubs[roomID]
	if !ok {
		subs = make(map[*session]struct{})
		h.roomSubs[roomID] = subs
	}
	subs[sess] = struct{}{}
}

func (h *Hub) unsubscribeRoom(sess *session, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if subs, ok := h.roomSubs[roomID]; ok {
		delete(subs, sess)
		if len(subs) == 0 {
			delete(h.roomSubs, roomID)
		}
	}
}

func (h *Hub) subscribersFor(matchID string) []*session {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs := h.matchSubs[matchID]
	out := make([]*session, 0, len(subs))
	for sess := range subs {
		out = append(out, sess)
	}
	return out
}

func (h *Hub) roomSubscribers(roomID string) []*session {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs := h.roomSubs[roomID]
	out := make([]*session, 0, len(subs))
	for sess := range subs {
		out = append(out, sess)
	}
	return out
}

func (h *Hub) isRecorded(matchID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.recorded[matchID]
	return ok
}

// forgetRoom clears a purged room's subscriber set. The sessions themselves
// stay connected; they have been moved onto the match subscription already.
func (h *Hub) forgetRoom(roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.roomSubs, roomID)
}

func (h *Hub) forgetMatch(matchID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.matchSubs, matchID)
	delete(h.recorded, matchID)
}

// broadcastRoomEvent fans a room event out to the room's subscriber set.
func (h *Hub) broadcastRoomEvent(roomID string, event roomEventMessage) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error().Err(err).Str("room", roomID).Msg("room event marshal failed")
		return
	}
	for _, sess := range h.roomSubscribers(roomID) {
		if !sess.send(data) {
			metrics.DroppedSends.Inc()
			h.dropSession(sess)
		}
	}
}

// sendJSON writes one targeted message; failures drop the session quietly.
func (h *Hub) sendJSON(sess *session, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		h.logger.Error().Err(err).Msg("message marshal failed")
		return
	}
	if !sess.send(data) {
		metrics.DroppedSends.Inc()
		h.dropSession(sess)
	}
}

// sendError reports a validation or state-conflict error to the single
// requesting connection. Errors are never broadcast.
func (h *Hub) sendError(sess *session, message string) {
	h.sendJSON(sess, errorMessage{Ver: ProtocolVersion, Type: "room_error", Message: message})
}
