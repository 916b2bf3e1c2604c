// game/game.go
package game

// Phase 表示房间的游戏阶段
type Phase string

const (
	PhaseLobby      Phase = "lobby"
	PhasePresenting Phase = "presenting"
	PhaseCollecting Phase = "collecting"
	PhaseReveal     Phase = "reveal"
	PhaseEnded      Phase = "ended"
)

// Scene is one unit of game content. Scenes are loaded once at room start
// and never mutated afterwards.
type Scene struct {
	ID         string `json:"id"`
	Prompt     string `json:"prompt"`
	AnswerType string `json:"answerType"`
	Answer     string `json:"answer"`
}

// Player is a participant in a room. A player is never silently deleted:
// on disconnect it is only marked as not connected, so a stale connection
// cannot act on its behalf and a quick reconnect keeps the score.
type Player struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Connected bool   `json:"connected"`
	Score     int    `json:"score"`
}

// State is the single source of truth for one room. It is produced
// exclusively by Apply; nothing else writes it.
type State struct {
	RoomID      string            `json:"roomId"`
	Scenes      []Scene           `json:"scenes"`
	SceneIndex  int               `json:"sceneIndex"`
	Phase       Phase             `json:"phase"`
	Players     map[string]Player `json:"players"`
	Submissions map[string]string `json:"submissions"`
}

// NewState creates the initial lobby state for a room.
func NewState(roomID string, scenes []Scene) State {
	return State{
		RoomID:      roomID,
		Scenes:      scenes,
		SceneIndex:  0,
		Phase:       PhaseLobby,
		Players:     make(map[string]Player),
		Submissions: make(map[string]string),
	}
}

// CurrentScene returns the active scene, or false when the room has no
// scenes or has not advanced past the lobby yet.
func (s State) CurrentScene() (Scene, bool) {
	if s.Phase == PhaseLobby || s.Phase == PhaseEnded {
		return Scene{}, false
	}
	if s.SceneIndex < 0 || s.SceneIndex >= len(s.Scenes) {
		return Scene{}, false
	}
	return s.Scenes[s.SceneIndex], true
}

// ConnectedCount returns the number of players currently connected.
func (s State) ConnectedCount() int {
	n := 0
	for _, p := range s.Players {
		if p.Connected {
			n++
		}
	}
	return n
}

// clone returns a deep copy of the state's mutable parts. Scenes are
// immutable after load, so the slice header is shared.
func (s State) clone() State {
	next := s
	next.Players = make(map[string]Player, len(s.Players))
	for id, p := range s.Players {
		next.Players[id] = p
	}
	next.Submissions = make(map[string]string, len(s.Submissions))
	for id, v := range s.Submissions {
		next.Submissions[id] = v
	}
	return next
}
