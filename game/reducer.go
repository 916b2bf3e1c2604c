// game/reducer.go
package game

// Apply is the room's state transition function: (state, action) -> state.
// It is pure and total over the action schema: every variant has a defined
// effect, and actions that do not apply to the current phase fall through
// to an identity transition rather than an error. It never consults the
// clock, so replaying the same action sequence against the same initial
// state always reproduces the same final state.
func Apply(state State, action ServerAction) State {
	switch action.Type {
	case ActionJoin:
		return applyJoin(state, action)
	case ActionLeave:
		return applyLeave(state, action)
	case ActionSubmitAnswer:
		return applySubmit(state, action)
	case ActionAdvanceScene:
		return applyAdvance(state)
	case ActionEndGame:
		next := state.clone()
		next.Phase = PhaseEnded
		return next
	case ActionRemovePlayer:
		return applyRemove(state, action)
	case ActionBroadcast:
		// Relay-only payload, no state effect.
		return state
	}
	return state
}

func applyJoin(state State, action ServerAction) State {
	name := action.PlayerName
	if existing, ok := state.Players[action.PlayerID]; ok {
		// Reconnect: same player id never creates a second entry, and the
		// score survives.
		if existing.Connected && existing.Name == name {
			return state
		}
		next := state.clone()
		existing.Connected = true
		if name != "" {
			existing.Name = name
		}
		next.Players[action.PlayerID] = existing
		return next
	}

	next := state.clone()
	next.Players[action.PlayerID] = Player{
		ID:        action.PlayerID,
		Name:      name,
		Connected: true,
		Score:     0,
	}
	return next
}

func applyLeave(state State, action ServerAction) State {
	player, ok := state.Players[action.PlayerID]
	if !ok || !player.Connected {
		return state
	}
	next := state.clone()
	player.Connected = false
	next.Players[action.PlayerID] = player
	return next
}

func applySubmit(state State, action ServerAction) State {
	if state.Phase != PhaseCollecting {
		return state
	}
	player, ok := state.Players[action.PlayerID]
	if !ok || !player.Connected {
		return state
	}
	if _, submitted := state.Submissions[action.PlayerID]; submitted {
		// One answer per player per scene.
		return state
	}

	next := state.clone()
	next.Submissions[action.PlayerID] = action.Value

	if allConnectedSubmitted(next) {
		next.Phase = PhaseReveal
		scoreScene(&next)
	}
	return next
}

// scenePoints is the award for a correct answer on a scene.
const scenePoints = 100

// scoreScene awards points for correct submissions on the current scene.
// It runs exactly once per scene, at the collecting->reveal transition, so
// the duplicate-submission guard above is also the double-scoring guard.
func scoreScene(state *State) {
	scene, ok := state.CurrentScene()
	if !ok || scene.Answer == "" {
		return
	}
	for id, value := range state.Submissions {
		if value != scene.Answer {
			continue
		}
		player, ok := state.Players[id]
		if !ok {
			continue
		}
		player.Score += scenePoints
		state.Players[id] = player
	}
}

func applyAdvance(state State) State {
	switch state.Phase {
	case PhaseLobby:
		next := state.clone()
		next.Submissions = make(map[string]string)
		if len(next.Scenes) == 0 {
			next.Phase = PhaseEnded
			return next
		}
		next.SceneIndex = 0
		next.Phase = PhaseCollecting
		return next
	case PhaseReveal:
		next := state.clone()
		next.Submissions = make(map[string]string)
		if next.SceneIndex+1 >= len(next.Scenes) {
			// Last scene: the index stays in bounds and the game ends.
			next.Phase = PhaseEnded
			return next
		}
		next.SceneIndex++
		next.Phase = PhaseCollecting
		return next
	}
	return state
}

func applyRemove(state State, action ServerAction) State {
	if _, ok := state.Players[action.PlayerID]; !ok {
		return state
	}
	next := state.clone()
	delete(next.Players, action.PlayerID)
	delete(next.Submissions, action.PlayerID)
	return next
}

// allConnectedSubmitted reports whether every connected player has an
// answer recorded for the current scene.
func allConnectedSubmitted(state State) bool {
	connected := 0
	for id, p := range state.Players {
		if !p.Connected {
			continue
		}
		connected++
		if _, ok := state.Submissions[id]; !ok {
			return false
		}
	}
	return connected > 0
}
