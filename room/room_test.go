package room

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/playhouse/partyserver/game"
	"github.com/playhouse/partyserver/models"
	"github.com/playhouse/partyserver/persistence"
	"github.com/playhouse/partyserver/services"
)

// captureBroadcaster records every broadcast so tests can follow the
// room's state stream one reducer application at a time.
type captureBroadcaster struct {
	broadcasts chan []byte
}

func newCaptureBroadcaster() *captureBroadcaster {
	return &captureBroadcaster{broadcasts: make(chan []byte, 64)}
}

func (b *captureBroadcaster) BroadcastToRoom(code string, data []byte) error {
	b.broadcasts <- data
	return nil
}

// nextState receives the next broadcast state or fails the test.
func (b *captureBroadcaster) nextState(t *testing.T) game.State {
	t.Helper()
	select {
	case data := <-b.broadcasts:
		var state game.State
		if err := json.Unmarshal(data, &state); err != nil {
			t.Fatalf("broadcast was not a state document: %v", err)
		}
		return state
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a broadcast")
		return game.State{}
	}
}

func seedGateway(code string, sceneCount int) *persistence.Memory {
	gateway := persistence.NewMemory()
	scenes := make([]game.Scene, 0, sceneCount)
	for i := 0; i < sceneCount; i++ {
		scenes = append(scenes, game.Scene{ID: "scene", Prompt: "prompt", AnswerType: "text", Answer: "42"})
	}
	gateway.Seed(&models.GameConfig{GameID: "game-1", Code: code, Scenes: scenes})
	return gateway
}

func startTestRoom(t *testing.T, code string, sceneCount int) (*Room, *captureBroadcaster, *persistence.Memory) {
	t.Helper()

	gateway := seedGateway(code, sceneCount)
	broadcaster := newCaptureBroadcaster()
	r := NewRoom(code, broadcaster, gateway, services.NewRecordService(gateway), nil)

	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(r.Close)

	return r, broadcaster, gateway
}

func envelope(t *testing.T, actionType string, payload map[string]string) []byte {
	t.Helper()
	env := map[string]interface{}{"type": actionType}
	if payload != nil {
		env["payload"] = payload
	}
	data, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return data
}

func TestRoom_StartUnknownCodeFails(t *testing.T) {
	gateway := persistence.NewMemory()
	r := NewRoom("NOPE", newCaptureBroadcaster(), gateway, services.NewRecordService(gateway), nil)

	err := r.Start(context.Background())
	if err == nil {
		t.Fatal("Start must fail for an unknown room code")
	}
	if !errors.Is(err, persistence.ErrNotFound) {
		t.Errorf("expected ErrNotFound in the chain, got %v", err)
	}
}

func TestRoom_ConnectBroadcastsJoin(t *testing.T) {
	r, broadcaster, _ := startTestRoom(t, "ROOM1", 1)

	r.OnConnect(newTestSession("conn-1", "Ada"))

	state := broadcaster.nextState(t)
	if state.Phase != game.PhaseLobby {
		t.Errorf("expected lobby, got %s", state.Phase)
	}
	player, exists := state.Players["conn-1"]
	if !exists {
		t.Fatal("expected player conn-1 in broadcast state")
	}
	if player.Name != "Ada" || !player.Connected {
		t.Errorf("unexpected player in broadcast: %+v", player)
	}
}

func TestRoom_MessageGoesThroughReducer(t *testing.T) {
	r, broadcaster, _ := startTestRoom(t, "ROOM2", 1)

	r.OnConnect(newTestSession("conn-1", "Ada"))
	broadcaster.nextState(t)

	r.OnMessage("conn-1", envelope(t, "advance_scene", nil))
	state := broadcaster.nextState(t)
	if state.Phase != game.PhaseCollecting {
		t.Fatalf("expected collecting after advance, got %s", state.Phase)
	}

	r.OnMessage("conn-1", envelope(t, "submit_answer", map[string]string{"value": "42"}))
	state = broadcaster.nextState(t)
	if state.Submissions["conn-1"] != "42" {
		t.Errorf("expected submission recorded, got %v", state.Submissions)
	}
	if state.Phase != game.PhaseReveal {
		t.Errorf("expected reveal once the only player submitted, got %s", state.Phase)
	}
}

func TestRoom_MalformedMessageDropped(t *testing.T) {
	r, broadcaster, _ := startTestRoom(t, "ROOM3", 1)

	r.OnConnect(newTestSession("conn-1", "Ada"))
	broadcaster.nextState(t)

	r.OnMessage("conn-1", []byte(`{"type":`))
	r.OnMessage("conn-1", []byte(`{"type":"reboot"}`))

	// The next broadcast must come from the valid action, proving the
	// malformed ones produced none.
	r.OnMessage("conn-1", envelope(t, "end_game", nil))
	state := broadcaster.nextState(t)
	if state.Phase != game.PhaseEnded {
		t.Errorf("expected ended, got %s", state.Phase)
	}

	select {
	case <-broadcaster.broadcasts:
		t.Error("malformed messages must not trigger broadcasts")
	default:
	}
}

func TestRoom_UnregisteredSenderDropped(t *testing.T) {
	r, broadcaster, _ := startTestRoom(t, "ROOM4", 1)

	r.OnConnect(newTestSession("conn-1", "Ada"))
	broadcaster.nextState(t)

	r.OnMessage("ghost", envelope(t, "end_game", nil))

	r.OnMessage("conn-1", envelope(t, "advance_scene", nil))
	state := broadcaster.nextState(t)
	if state.Phase != game.PhaseCollecting {
		t.Errorf("unregistered sender must not act; expected collecting, got %s", state.Phase)
	}
}

func TestRoom_IdentityComesFromRegistry(t *testing.T) {
	r, broadcaster, _ := startTestRoom(t, "ROOM5", 1)

	r.OnConnect(newTestSession("conn-1", "Ada"))
	broadcaster.nextState(t)
	r.OnMessage("conn-1", envelope(t, "advance_scene", nil))
	broadcaster.nextState(t)

	// The payload's identity claims are discarded; the submission lands
	// under the connection's registered player id.
	r.OnMessage("conn-1", []byte(`{"type":"submit_answer","payload":{"value":"42","id":"forged","name":"Mallory"}}`))
	state := broadcaster.nextState(t)

	if _, exists := state.Submissions["forged"]; exists {
		t.Error("client-supplied identity must never be trusted")
	}
	if state.Submissions["conn-1"] != "42" {
		t.Errorf("expected submission under conn-1, got %v", state.Submissions)
	}
}

func TestRoom_DisconnectMarksPlayerAndEvicts(t *testing.T) {
	r, broadcaster, _ := startTestRoom(t, "ROOM6", 1)

	r.OnConnect(newTestSession("conn-1", "Ada"))
	broadcaster.nextState(t)

	r.OnDisconnect("conn-1")
	state := broadcaster.nextState(t)

	player, exists := state.Players["conn-1"]
	if !exists {
		t.Fatal("disconnect must retain the player entry")
	}
	if player.Connected {
		t.Error("expected player marked disconnected")
	}
	if r.ConnectionCount() != 0 {
		t.Errorf("expected registry emptied, got %d entries", r.ConnectionCount())
	}
}

func TestRoom_ReconnectKeepsScoreAndSubmission(t *testing.T) {
	r, broadcaster, _ := startTestRoom(t, "ROOM7", 1)

	r.OnConnect(newTestSession("conn-1", "Ada"))
	broadcaster.nextState(t)
	r.OnConnect(newTestSession("conn-2", "Grace"))
	broadcaster.nextState(t)
	r.OnMessage("conn-1", envelope(t, "advance_scene", nil))
	broadcaster.nextState(t)
	r.OnMessage("conn-1", envelope(t, "submit_answer", map[string]string{"value": "42"}))
	broadcaster.nextState(t)

	r.OnDisconnect("conn-1")
	broadcaster.nextState(t)

	// A quick reconnect resumes mid-scene: the earlier submission stands.
	r.OnConnect(newTestSession("conn-1", "Ada"))
	state := broadcaster.nextState(t)

	if !state.Players["conn-1"].Connected {
		t.Error("expected player reconnected")
	}
	if state.Submissions["conn-1"] != "42" {
		t.Errorf("expected submission to survive the reconnect, got %v", state.Submissions)
	}
	if len(state.Players) != 2 {
		t.Errorf("expected 2 players, got %d", len(state.Players))
	}
}

func TestRoom_StatePersistedAfterTransition(t *testing.T) {
	r, broadcaster, gateway := startTestRoom(t, "ROOM8", 1)

	r.OnConnect(newTestSession("conn-1", "Ada"))
	broadcaster.nextState(t)

	deadline := time.Now().Add(2 * time.Second)
	for {
		if saved, exists := gateway.LastState("game-1"); exists {
			if _, ok := saved.Players["conn-1"]; ok {
				return
			}
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for the async state save")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestRoom_EndGameWritesRecord(t *testing.T) {
	r, broadcaster, gateway := startTestRoom(t, "ROOM9", 1)

	r.OnConnect(newTestSession("conn-1", "Ada"))
	broadcaster.nextState(t)
	r.OnMessage("conn-1", envelope(t, "end_game", nil))
	broadcaster.nextState(t)

	deadline := time.Now().Add(2 * time.Second)
	for {
		records := gateway.Records()
		if len(records) == 1 {
			if records[0].GameID != "game-1" {
				t.Errorf("expected record for game-1, got %q", records[0].GameID)
			}
			if _, ok := records[0].Results["conn-1"]; !ok {
				t.Errorf("expected conn-1 in record results, got %v", records[0].Results)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for the game record, have %d", len(records))
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestRoom_SnapshotMatchesBroadcast(t *testing.T) {
	r, broadcaster, _ := startTestRoom(t, "ROOM10", 1)

	r.OnConnect(newTestSession("conn-1", "Ada"))
	state := broadcaster.nextState(t)

	snapshot := r.Snapshot()
	if snapshot.Phase != state.Phase || len(snapshot.Players) != len(state.Players) {
		t.Errorf("snapshot diverged from broadcast: %+v vs %+v", snapshot, state)
	}
}

func TestManager_GetOrStartCachesRoom(t *testing.T) {
	gateway := seedGateway("ROOM11", 1)
	manager := NewManager(gateway, services.NewRecordService(gateway), nil, 0)
	t.Cleanup(manager.Stop)
	manager.SetBroadcaster(newCaptureBroadcaster())

	first, err := manager.GetOrStart(context.Background(), "ROOM11")
	if err != nil {
		t.Fatalf("GetOrStart failed: %v", err)
	}

	second, err := manager.GetOrStart(context.Background(), "ROOM11")
	if err != nil {
		t.Fatalf("GetOrStart failed on second call: %v", err)
	}
	if first != second {
		t.Error("GetOrStart should return the cached room instance")
	}
}

func TestManager_FailedStartNotCached(t *testing.T) {
	gateway := persistence.NewMemory()
	manager := NewManager(gateway, services.NewRecordService(gateway), nil, 0)
	t.Cleanup(manager.Stop)
	manager.SetBroadcaster(newCaptureBroadcaster())

	if _, err := manager.GetOrStart(context.Background(), "NOPE"); err == nil {
		t.Fatal("expected GetOrStart to fail for an unknown code")
	}
	if _, exists := manager.GetRoom("NOPE"); exists {
		t.Error("a failed start must not be cached")
	}

	// Seeding the game afterwards makes the same code start cleanly.
	gateway.Seed(&models.GameConfig{GameID: "game-2", Code: "NOPE", Scenes: []game.Scene{{ID: "s", Prompt: "p"}}})
	if _, err := manager.GetOrStart(context.Background(), "NOPE"); err != nil {
		t.Errorf("expected retry to succeed, got %v", err)
	}
}

func TestManager_RemoveRoomClosesIt(t *testing.T) {
	gateway := seedGateway("ROOM12", 1)
	manager := NewManager(gateway, services.NewRecordService(gateway), nil, 0)
	t.Cleanup(manager.Stop)
	manager.SetBroadcaster(newCaptureBroadcaster())

	if _, err := manager.GetOrStart(context.Background(), "ROOM12"); err != nil {
		t.Fatalf("GetOrStart failed: %v", err)
	}

	manager.RemoveRoom("ROOM12")
	if _, exists := manager.GetRoom("ROOM12"); exists {
		t.Error("expected room removed from the manager")
	}
}

func TestManager_ReapClosesIdleRooms(t *testing.T) {
	gateway := seedGateway("ROOM13", 1)
	manager := NewManager(gateway, services.NewRecordService(gateway), nil, 10*time.Millisecond)
	t.Cleanup(manager.Stop)
	manager.SetBroadcaster(newCaptureBroadcaster())

	if _, err := manager.GetOrStart(context.Background(), "ROOM13"); err != nil {
		t.Fatalf("GetOrStart failed: %v", err)
	}

	// No connections ever registered; once the idle timeout passes the
	// reaper drops the room.
	time.Sleep(30 * time.Millisecond)
	manager.reap()

	if _, exists := manager.GetRoom("ROOM13"); exists {
		t.Error("expected the idle room to be reaped")
	}
}
