package ws

import (
	"paddlearena/server/internal/room"
	"paddlearena/server/internal/sim"
)

// ProtocolVersion tags every outbound envelope.
const ProtocolVersion = 1

// Inbound messages are a union discriminated by the "type" field, except the
// generic axis form which is recognized by carrying gameId plus axis keys and
// no type at all. Messages are decoded into a loose map so one malformed
// field never poisons the rest (see decode.go).

type helloMessage struct {
	Ver        int    `json:"ver"`
	Type       string `json:"type"`
	ServerTime int64  `json:"serverTime"`
}

type createdMessage struct {
	Ver    int    `json:"ver"`
	Type   string `json:"type"`
	GameID string `json:"gameId"`
}

type stateMessage struct {
	Ver   int       `json:"ver"`
	Type  string    `json:"type"`
	State sim.State `json:"state"`
}

type roomEventMessage struct {
	Ver      int        `json:"ver"`
	Type     string     `json:"type"`
	Room     *room.Room `json:"room,omitempty"`
	PlayerID string     `json:"playerId,omitempty"`
	GameID   string     `json:"gameId,omitempty"`
}

type roomListMessage struct {
	Ver   int         `json:"ver"`
	Type  string      `json:"type"`
	Rooms []room.Room `json:"rooms"`
}

type errorMessage struct {
	Ver     int    `json:"ver"`
	Type    string `json:"type"`
	Message string `json:"message"`
}
