package ws

import (
	"encoding/json"

	"paddlearena/server/internal/sim"
)

// payload is a loosely-typed inbound message. Field presence matters: an
// absent control key and an explicit zero are different instructions, so the
// raw map is kept instead of a struct with zero values.
type payload map[string]any

func decodePayload(data []byte) (payload, bool) {
	var m payload
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, false
	}
	return m, true
}

func (p payload) str(key string) string {
	value, _ := p[key].(string)
	return value
}

func (p payload) num(key string) (float64, bool) {
	value, ok := p[key].(float64)
	return value, ok
}

func (p payload) boolean(key string) (bool, bool) {
	value, ok := p[key].(bool)
	return value, ok
}

// inputPatch collects whichever of the given control keys are present with a
// numeric value. Keys present with a non-numeric value are dropped one by
// one; they never invalidate the rest of the message.
func (p payload) inputPatch(keys ...string) sim.InputPatch {
	patch := make(sim.InputPatch, len(keys))
	for _, key := range keys {
		if value, ok := p.num(key); ok {
			patch[key] = value
		}
	}
	return patch
}

// thrustKeys are the pong seat-relative control fields.
var thrustKeys = []string{"left", "right"}

// axisKeys are the generic axis control fields of the secondary match kind.
var axisKeys = []string{"up", "down", "left", "right", "forward", "backward"}

// isAxisMessage reports whether an untyped message is the generic axis form:
// a gameId plus at least one axis key.
func (p payload) isAxisMessage() bool {
	if p.str("type") != "" || p.str("gameId") == "" {
		return false
	}
	for _, key := range axisKeys {
		if _, ok := p[key]; ok {
			return true
		}
	}
	return false
}
