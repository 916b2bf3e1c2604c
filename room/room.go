// room/room.go
package room

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/playhouse/partyserver/game"
	"github.com/playhouse/partyserver/logger"
	"github.com/playhouse/partyserver/monitor"
	"github.com/playhouse/partyserver/persistence"
	"github.com/playhouse/partyserver/services"
	"github.com/playhouse/partyserver/session"
)

const persistTimeout = 5 * time.Second

// Room owns one play session. All state reads and writes happen on the
// room's event loop, strictly in the order events arrive, so the reducer's
// purity is enough for correctness and no lock guards the state itself.
type Room struct {
	Code      string
	CreatedAt time.Time

	gameID      string
	state       game.State
	registry    *Registry
	broadcaster Broadcaster
	gateway     persistence.Gateway
	records     *services.RecordService
	mon         *monitor.Monitor

	inbox     chan event
	closeChan chan struct{}
	closeOnce sync.Once
	done      chan struct{}

	// snapshot mirrors state for readers outside the loop (rpc, reaper).
	snapMutex  sync.RWMutex
	snapshot   game.State
	lastActive time.Time
}

type event interface{}

type connectEvent struct {
	sess *session.Session
}

type messageEvent struct {
	connID string
	raw    []byte
}

type disconnectEvent struct {
	connID string
}

// NewRoom creates a room for a code. It does nothing until Start.
func NewRoom(code string, broadcaster Broadcaster, gateway persistence.Gateway, records *services.RecordService, mon *monitor.Monitor) *Room {
	return &Room{
		Code:        code,
		CreatedAt:   time.Now(),
		registry:    NewRegistry(),
		broadcaster: broadcaster,
		gateway:     gateway,
		records:     records,
		mon:         mon,
		inbox:       make(chan event, 256),
		closeChan:   make(chan struct{}),
		done:        make(chan struct{}),
	}
}

// Start loads the room's configuration and spawns the event loop. A load
// error or missing record is fatal: the game is created by an external
// workflow, so an unknown code means the room must not come up. No event
// is processed before the load completes.
func (r *Room) Start(ctx context.Context) error {
	config, err := r.gateway.LoadGame(ctx, r.Code)
	if err != nil {
		return fmt.Errorf("load game for room %s: %w", r.Code, err)
	}

	r.gameID = config.GameID
	r.state = game.NewState(r.Code, config.Scenes)
	r.publishSnapshot()

	go r.loop()

	logger.Log.Infof("Room %s started with game %s (%d scenes)", r.Code, r.gameID, len(config.Scenes))
	return nil
}

// OnConnect registers a connection and joins its player.
func (r *Room) OnConnect(sess *session.Session) {
	r.enqueue(connectEvent{sess: sess})
}

// OnMessage hands a raw inbound payload to the room's loop.
func (r *Room) OnMessage(connID string, raw []byte) {
	r.enqueue(messageEvent{connID: connID, raw: raw})
}

// OnDisconnect marks the connection's player as gone.
func (r *Room) OnDisconnect(connID string) {
	r.enqueue(disconnectEvent{connID: connID})
}

// Close stops the loop after one final best-effort save and waits for it
// to exit. Safe to call more than once.
func (r *Room) Close() {
	r.closeOnce.Do(func() {
		close(r.closeChan)
	})
	<-r.done
}

// GetSessions returns the sessions currently registered to the room.
func (r *Room) GetSessions() []*session.Session {
	return r.registry.Sessions()
}

// ConnectionCount returns the number of live registered connections.
func (r *Room) ConnectionCount() int {
	return r.registry.Len()
}

// Snapshot returns the state as of the last reducer application.
func (r *Room) Snapshot() game.State {
	r.snapMutex.RLock()
	defer r.snapMutex.RUnlock()
	return r.snapshot
}

// LastActive returns when the room last processed an event.
func (r *Room) LastActive() time.Time {
	r.snapMutex.RLock()
	defer r.snapMutex.RUnlock()
	return r.lastActive
}

func (r *Room) enqueue(ev event) {
	select {
	case r.inbox <- ev:
	case <-r.closeChan:
		// Room is tearing down; late events are dropped.
	}
}

func (r *Room) loop() {
	defer close(r.done)

	for {
		select {
		case <-r.closeChan:
			r.shutdown()
			return
		case ev := <-r.inbox:
			switch ev := ev.(type) {
			case connectEvent:
				r.handleConnect(ev.sess)
			case messageEvent:
				r.handleMessage(ev.connID, ev.raw)
			case disconnectEvent:
				r.handleDisconnect(ev.connID)
			}
		}
	}
}

func (r *Room) handleConnect(sess *session.Session) {
	r.registry.Bind(sess)

	join := game.Enrich(game.Action{Type: game.ActionJoin}, sess.ID, sess.Name)
	r.dispatch(join)
}

func (r *Room) handleMessage(connID string, raw []byte) {
	sess, registered := r.registry.Lookup(connID)
	if !registered {
		// Unregistered senders have no identity; nothing to apply.
		r.dropMessage(connID, fmt.Errorf("connection not registered"))
		return
	}

	action, err := game.DecodeAction(raw)
	if err != nil {
		r.dropMessage(connID, err)
		return
	}

	// Identity always comes from the registry, never the payload.
	r.dispatch(game.Enrich(action, sess.ID, sess.Name))
}

// dropMessage discards a malformed or unattributable message. The sender
// gets no error back; the room simply does not change.
func (r *Room) dropMessage(connID string, err error) {
	logger.Log.Infof("Dropping message from %s in room %s: %v", connID, r.Code, err)
	if r.mon != nil {
		r.mon.IncMessagesDropped()
	}
}

func (r *Room) handleDisconnect(connID string) {
	sess, registered := r.registry.Lookup(connID)
	if !registered {
		return
	}

	r.registry.Evict(connID)

	leave := game.Enrich(game.Action{Type: game.ActionLeave}, sess.ID, sess.Name)
	r.dispatch(leave)
}

// dispatch runs one action through the reducer, then broadcasts the new
// state and requests persistence. Reducer-rejected actions are identity
// transitions and still broadcast, so every observer converges on the
// same last state.
func (r *Room) dispatch(action game.ServerAction) {
	prev := r.state
	r.state = game.Apply(prev, action)
	r.publishSnapshot()

	if r.mon != nil {
		r.mon.IncActionsApplied()
	}

	r.broadcastState()
	r.persistState()

	if prev.Phase != game.PhaseEnded && r.state.Phase == game.PhaseEnded {
		r.finishGame()
	}
}

func (r *Room) broadcastState() {
	data, err := json.Marshal(r.state)
	if err != nil {
		logger.Log.Errorf("Failed to marshal state for room %s: %v", r.Code, err)
		return
	}

	start := time.Now()
	if err := r.broadcaster.BroadcastToRoom(r.Code, data); err != nil {
		logger.Log.Warnf("Broadcast failed for room %s: %v", r.Code, err)
	}
	if r.mon != nil {
		r.mon.ObserveBroadcastLatency(time.Since(start))
	}
}

// persistState saves the current state without gating the loop. A failure
// is logged and counted; in-memory state and broadcasts are unaffected.
func (r *Room) persistState() {
	state := r.state
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()

		if err := r.gateway.SaveState(ctx, r.gameID, &state); err != nil {
			logger.Log.Warnf("Failed to persist state for room %s: %v", r.Code, err)
			if r.mon != nil {
				r.mon.IncPersistFailures()
			}
		}
	}()
}

func (r *Room) finishGame() {
	state := r.state
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()

		if err := r.records.SaveFinal(ctx, r.gameID, &state); err != nil {
			logger.Log.Warnf("Failed to save game record for room %s: %v", r.Code, err)
			if r.mon != nil {
				r.mon.IncPersistFailures()
			}
		}
	}()
}

// shutdown performs the final best-effort save and evicts every
// registered connection.
func (r *Room) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if err := r.gateway.SaveState(ctx, r.gameID, &r.state); err != nil {
		logger.Log.Warnf("Final save failed for room %s: %v", r.Code, err)
	}

	for _, sess := range r.registry.Sessions() {
		r.registry.Evict(sess.ID)
	}

	logger.Log.Infof("Room %s closed", r.Code)
}

func (r *Room) publishSnapshot() {
	r.snapMutex.Lock()
	r.snapshot = r.state
	r.lastActive = time.Now()
	r.snapMutex.Unlock()
}
