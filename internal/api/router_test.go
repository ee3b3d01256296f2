package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"paddlearena/server/internal/queue"
	"paddlearena/server/internal/registry"
	"paddlearena/server/internal/room"
	"paddlearena/server/internal/ws"
)

func newTestServer(t *testing.T) (*httptest.Server, *registry.Registry, *room.Manager) {
	t.Helper()
	reg := registry.New(zerolog.Nop())
	rooms := room.NewManager(reg, zerolog.Nop())
	mm := queue.NewMatchmaker(rooms, reg, queue.Config{}, zerolog.Nop())
	hub := ws.NewHub(reg, rooms, ws.Config{}, zerolog.Nop())
	srv := httptest.NewServer(NewRouter(reg, rooms, mm, hub, zerolog.Nop()))
	t.Cleanup(srv.Close)
	return srv, reg, rooms
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestCreateAndFetchGame(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/games", map[string]any{"kind": "pong"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode(t, resp)
	gameID := created["gameId"].(string)
	require.NotEmpty(t, gameID)

	get, err := http.Get(srv.URL + "/api/games/" + gameID)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, get.StatusCode)
	state := decode(t, get)
	require.Equal(t, gameID, state["id"])
	require.Equal(t, "pong", state["kind"])
}

func TestUnknownGameIs404(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/games/no-such-id")
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	body := decode(t, resp)
	require.Contains(t, body, "error")
}

func TestUnsupportedKindRejected(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/games", map[string]any{"kind": "chess"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body := decode(t, resp)
	require.Contains(t, body, "error")
}

func TestRoomLifecycleOverHTTP(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/rooms", map[string]any{
		"name": "duel", "ownerId": "alice", "ownerUsername": "Alice",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode(t, resp)
	roomID := created["id"].(string)

	resp = postJSON(t, srv.URL+"/api/rooms/"+roomID+"/join", map[string]any{
		"playerId": "bob", "username": "Bob",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	// Starting before everyone is ready is a state conflict.
	resp = postJSON(t, srv.URL+"/api/rooms/"+roomID+"/start", map[string]any{"ownerId": "alice"})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()

	for _, player := range []string{"alice", "bob"} {
		resp = postJSON(t, srv.URL+"/api/rooms/ready", map[string]any{"playerId": player, "ready": true})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()
	}

	// Only the owner may start.
	resp = postJSON(t, srv.URL+"/api/rooms/"+roomID+"/start", map[string]any{"ownerId": "bob"})
	require.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	resp = postJSON(t, srv.URL+"/api/rooms/"+roomID+"/start", map[string]any{"ownerId": "alice"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	started := decode(t, resp)
	require.Equal(t, "in_progress", started["status"])
	require.NotEmpty(t, started["matchId"])
}

func TestJoinMissingRoomIs404(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/rooms/nope/join", map[string]any{"playerId": "bob"})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestMatchmakingFlowOverHTTP(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/api/matchmaking/queue", map[string]any{
		"playerId": "alice", "username": "Alice", "skillRating": 1000,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	first := decode(t, resp)
	require.Equal(t, "searching", first["status"])

	resp = postJSON(t, srv.URL+"/api/matchmaking/queue", map[string]any{
		"playerId": "bob", "username": "Bob", "skillRating": 1050,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	second := decode(t, resp)
	require.Equal(t, "matched", second["status"])
	require.NotEmpty(t, second["matchId"])

	get, err := http.Get(srv.URL + "/api/matchmaking/status?playerId=alice")
	require.NoError(t, err)
	status := decode(t, get)
	require.Equal(t, "matched", status["status"])

	resp = postJSON(t, srv.URL+"/api/matchmaking/cancel", map[string]any{"playerId": "alice"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func TestMalformedBodyIs400(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, err := http.Post(srv.URL+"/api/games", "application/json", bytes.NewReader([]byte("{broken")))
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body := decode(t, resp)
	require.Contains(t, body, "error")
}

func TestHealthz(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}
