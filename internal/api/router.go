// Package api exposes thin HTTP wrappers over the registry, room manager,
// and matchmaking queue. These are convenience entry points into the same
// operations the websocket gateway uses, not a separate subsystem.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"

	"paddlearena/server/internal/queue"
	"paddlearena/server/internal/registry"
	"paddlearena/server/internal/room"
	"paddlearena/server/internal/sim"
	"paddlearena/server/internal/ws"
)

type router struct {
	registry    *registry.Registry
	rooms       *room.Manager
	matchmaking *queue.Matchmaker
	logger      zerolog.Logger
}

// NewRouter builds the chi handler tree, including the websocket upgrade
// endpoint and prometheus scrape endpoint.
func NewRouter(reg *registry.Registry, rooms *room.Manager, mm *queue.Matchmaker, hub *ws.Hub, logger zerolog.Logger) http.Handler {
	rt := &router{registry: reg, rooms: rooms, matchmaking: mm, logger: logger.With().Str("component", "api").Logger()}

	mux := chi.NewRouter()
	mux.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)

	mux.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.Handle("/metrics", promhttp.Handler())
	mux.Get("/ws", hub.Handle)

	mux.Route("/api", func(r chi.Router) {
		r.Post("/games", rt.handleCreateGame)
		r.Get("/games", rt.handleListGames)
		r.Get("/games/{id}", rt.handleGetGame)

		r.Post("/rooms", rt.handleCreateRoom)
		r.Get("/rooms", rt.handleListRooms)
		r.Post("/rooms/{id}/join", rt.handleJoinRoom)
		r.Post("/rooms/{id}/start", rt.handleStartGame)
		r.Post("/rooms/leave", rt.handleLeaveRoom)
		r.Post("/rooms/ready", rt.handleReady)

		r.Post("/matchmaking/queue", rt.handleEnqueue)
		r.Post("/matchmaking/cancel", rt.handleCancel)
		r.Get("/matchmaking/status", rt.handleStatus)
	})

	return mux
}

func (rt *router) handleCreateGame(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Kind string `json:"kind"`
	}
	if !decodeBody(w, req, &body) {
		return
	}
	kind := sim.Kind(body.Kind)
	if kind == "" {
		kind = sim.KindPong
	}
	id, err := rt.registry.Create(kind)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"gameId": id})
}

func (rt *router) handleListGames(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, rt.registry.List())
}

func (rt *router) handleGetGame(w http.ResponseWriter, req *http.Request) {
	match, ok := rt.registry.Get(chi.URLParam(req, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, eris.New("match not found"))
		return
	}
	writeJSON(w, http.StatusOK, match.Snapshot())
}

func (rt *router) handleCreateRoom(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Name          string `json:"name"`
		OwnerID       string `json:"ownerId"`
		OwnerUsername string `json:"ownerUsername"`
		Kind          string `json:"kind"`
	}
	if !decodeBody(w, req, &body) {
		return
	}
	if body.OwnerID == "" {
		writeError(w, http.StatusBadRequest, eris.New("missing ownerId"))
		return
	}
	kind := sim.Kind(body.Kind)
	if kind == "" {
		kind = sim.KindPong
	}
	created, err := rt.rooms.CreateRoom(body.OwnerID, body.OwnerUsername, body.Name, kind)
	if err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (rt *router) handleListRooms(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, rt.rooms.ListRooms())
}

func (rt *router) handleJoinRoom(w http.ResponseWriter, req *http.Request) {
	var body struct {
		PlayerID string `json:"playerId"`
		Username string `json:"username"`
	}
	if !decodeBody(w, req, &body) {
		return
	}
	if body.PlayerID == "" {
		writeError(w, http.StatusBadRequest, eris.New("missing playerId"))
		return
	}
	joined, err := rt.rooms.JoinRoom(chi.URLParam(req, "id"), body.PlayerID, body.Username)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, joined)
}

func (rt *router) handleLeaveRoom(w http.ResponseWriter, req *http.Request) {
	var body struct {
		PlayerID string `json:"playerId"`
	}
	if !decodeBody(w, req, &body) {
		return
	}
	if body.PlayerID == "" {
		writeError(w, http.StatusBadRequest, eris.New("missing playerId"))
		return
	}
	left, ok := rt.rooms.LeaveRoom(body.PlayerID)
	if !ok {
		writeError(w, http.StatusNotFound, room.ErrRoomNotFound)
		return
	}
	writeJSON(w, http.StatusOK, left)
}

func (rt *router) handleReady(w http.ResponseWriter, req *http.Request) {
	var body struct {
		PlayerID string `json:"playerId"`
		Ready    bool   `json:"ready"`
	}
	if !decodeBody(w, req, &body) {
		return
	}
	if body.PlayerID == "" {
		writeError(w, http.StatusBadRequest, eris.New("missing playerId"))
		return
	}
	updated, ok := rt.rooms.SetReady(body.PlayerID, body.Ready)
	if !ok {
		writeError(w, http.StatusNotFound, room.ErrNotSeated)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (rt *router) handleStartGame(w http.ResponseWriter, req *http.Request) {
	var body struct {
		OwnerID string `json:"ownerId"`
	}
	if !decodeBody(w, req, &body) {
		return
	}
	started, err := rt.rooms.StartGame(chi.URLParam(req, "id"), body.OwnerID)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, started)
}

func (rt *router) handleEnqueue(w http.ResponseWriter, req *http.Request) {
	var body struct {
		PlayerID    string  `json:"playerId"`
		Username    string  `json:"username"`
		SkillRating float64 `json:"skillRating"`
	}
	if !decodeBody(w, req, &body) {
		return
	}
	if body.PlayerID == "" {
		writeError(w, http.StatusBadRequest, eris.New("missing playerId"))
		return
	}
	writeJSON(w, http.StatusOK, rt.matchmaking.Enqueue(body.PlayerID, body.Username, body.SkillRating))
}

func (rt *router) handleCancel(w http.ResponseWriter, req *http.Request) {
	var body struct {
		PlayerID string `json:"playerId"`
	}
	if !decodeBody(w, req, &body) {
		return
	}
	if body.PlayerID == "" {
		writeError(w, http.StatusBadRequest, eris.New("missing playerId"))
		return
	}
	rt.matchmaking.Cancel(body.PlayerID)
	writeJSON(w, http.StatusOK, map[string]any{"cancelled": true})
}

func (rt *router) handleStatus(w http.ResponseWriter, req *http.Request) {
	playerID := req.URL.Query().Get("playerId")
	if playerID == "" {
		writeError(w, http.StatusBadRequest, eris.New("missing playerId"))
		return
	}
	writeJSON(w, http.StatusOK, rt.matchmaking.Status(playerID))
}

func decodeBody(w http.ResponseWriter, req *http.Request, v any) bool {
	if err := json.NewDecoder(req.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, eris.Wrap(err, "invalid request body"))
		return false
	}
	return true
}

func statusFor(err error) int {
	switch {
	case eris.Is(err, room.ErrRoomNotFound):
		return http.StatusNotFound
	case eris.Is(err, room.ErrNotOwner):
		return http.StatusForbidden
	default:
		return http.StatusConflict
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
