// game/action.go
package game

import (
	"encoding/json"
	"fmt"
)

// Action type discriminators as they appear on the wire.
const (
	ActionJoin         = "join"
	ActionSubmitAnswer = "submit_answer"
	ActionAdvanceScene = "advance_scene"
	ActionEndGame      = "end_game"
	ActionBroadcast    = "broadcast"

	// Server-derived types, never accepted from the wire.
	ActionLeave        = "leave"
	ActionRemovePlayer = "remove_player"
)

// ErrUnknownAction is returned by DecodeAction for unrecognized or
// server-only action types.
var ErrUnknownAction = fmt.Errorf("unknown action type")

// Action is one variant of the inbound action schema.
type Action struct {
	Type string `json:"type"`

	// Name is the requested display name, used by join.
	Name string `json:"name,omitempty"`
	// Value is the submitted answer, used by submit_answer.
	Value string `json:"value,omitempty"`
	// Payload is an opaque relay blob, used by broadcast.
	Payload json.RawMessage `json:"payload,omitempty"`
}

// envelope is the wire shape of an inbound message: a type discriminator
// plus a variant-specific payload object.
type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// DecodeAction validates a raw inbound message against the action schema.
// Anything that is not well-formed JSON with a known client action type is
// rejected here, before it can reach the reducer.
func DecodeAction(raw []byte) (Action, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Action{}, fmt.Errorf("decode action envelope: %w", err)
	}

	action := Action{Type: env.Type}

	switch env.Type {
	case ActionJoin:
		var p struct {
			Name string `json:"name"`
		}
		if len(env.Payload) > 0 {
			if err := json.Unmarshal(env.Payload, &p); err != nil {
				return Action{}, fmt.Errorf("decode join payload: %w", err)
			}
		}
		action.Name = p.Name
	case ActionSubmitAnswer:
		var p struct {
			Value string `json:"value"`
		}
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return Action{}, fmt.Errorf("decode submit_answer payload: %w", err)
		}
		action.Value = p.Value
	case ActionAdvanceScene, ActionEndGame:
		// No payload.
	case ActionBroadcast:
		action.Payload = env.Payload
	default:
		return Action{}, fmt.Errorf("%w: %q", ErrUnknownAction, env.Type)
	}

	return action, nil
}

// ServerAction is an inbound action enriched with the identity the server
// holds for the originating connection. Identity fields inside the message
// body are never consulted.
type ServerAction struct {
	Action
	PlayerID   string
	PlayerName string
}

// Enrich binds a decoded action to a trusted player identity.
func Enrich(action Action, playerID, playerName string) ServerAction {
	return ServerAction{Action: action, PlayerID: playerID, PlayerName: playerName}
}
