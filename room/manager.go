// room/manager.go
package room

import (
	"context"
	"sync"
	"time"

	"github.com/playhouse/partyserver/logger"
	"github.com/playhouse/partyserver/monitor"
	"github.com/playhouse/partyserver/persistence"
	"github.com/playhouse/partyserver/services"
	"github.com/playhouse/partyserver/timer"
)

const reapInterval = 30 * time.Second

// Manager owns every live room in the process. Rooms share no mutable
// state with each other, so they run fully in parallel; the manager's
// lock only guards the code -> room map.
type Manager struct {
	mutex       sync.Mutex
	rooms       map[string]*Room
	gateway     persistence.Gateway
	records     *services.RecordService
	mon         *monitor.Monitor
	broadcaster Broadcaster
	scheduler   *timer.Scheduler
	idleTimeout time.Duration
	reaperID    int64
}

func NewManager(gateway persistence.Gateway, records *services.RecordService, mon *monitor.Monitor, idleTimeout time.Duration) *Manager {
	m := &Manager{
		rooms:       make(map[string]*Room),
		gateway:     gateway,
		records:     records,
		mon:         mon,
		scheduler:   timer.NewScheduler(),
		idleTimeout: idleTimeout,
	}

	if idleTimeout > 0 {
		m.reaperID = m.scheduler.Schedule(reapInterval, reapInterval, m.reap)
	}

	return m
}

// SetBroadcaster wires the broadcaster after construction; the
// broadcaster needs the manager to resolve rooms, so the two cannot be
// built in one step.
func (m *Manager) SetBroadcaster(b Broadcaster) {
	m.broadcaster = b
}

// GetOrStart returns the live room for a code, starting it on first use.
// A room whose configuration load fails is never cached, so the next
// caller retries the load.
func (m *Manager) GetOrStart(ctx context.Context, code string) (*Room, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if room, exists := m.rooms[code]; exists {
		return room, nil
	}

	room := NewRoom(code, m.broadcaster, m.gateway, m.records, m.mon)
	if err := room.Start(ctx); err != nil {
		return nil, err
	}

	m.rooms[code] = room
	m.updateActiveRooms()
	return room, nil
}

// GetRoom returns a room without starting one.
func (m *Manager) GetRoom(code string) (*Room, bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	room, exists := m.rooms[code]
	return room, exists
}

// RemoveRoom closes a room and forgets it.
func (m *Manager) RemoveRoom(code string) {
	m.mutex.Lock()
	room, exists := m.rooms[code]
	if exists {
		delete(m.rooms, code)
	}
	m.updateActiveRooms()
	m.mutex.Unlock()

	// Close outside the lock; it waits for the room's loop to drain.
	if exists {
		room.Close()
	}
}

// Rooms returns a snapshot of all live rooms.
func (m *Manager) Rooms() []*Room {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	rooms := make([]*Room, 0, len(m.rooms))
	for _, room := range m.rooms {
		rooms = append(rooms, room)
	}
	return rooms
}

// reap closes rooms that have had zero live connections for longer than
// the idle timeout. Each closing room gets a final save from Close.
func (m *Manager) reap() {
	cutoff := time.Now().Add(-m.idleTimeout)

	var idle []*Room
	m.mutex.Lock()
	for code, room := range m.rooms {
		if room.ConnectionCount() == 0 && room.LastActive().Before(cutoff) {
			delete(m.rooms, code)
			idle = append(idle, room)
		}
	}
	m.updateActiveRooms()
	m.mutex.Unlock()

	for _, room := range idle {
		logger.Log.Infof("Reaping idle room %s", room.Code)
		room.Close()
	}
}

// Stop closes every room and stops the reaper.
func (m *Manager) Stop() {
	m.scheduler.Stop()

	m.mutex.Lock()
	rooms := make([]*Room, 0, len(m.rooms))
	for _, room := range m.rooms {
		rooms = append(rooms, room)
	}
	m.rooms = make(map[string]*Room)
	m.updateActiveRooms()
	m.mutex.Unlock()

	for _, room := range rooms {
		room.Close()
	}
}

// updateActiveRooms must be called with the mutex held.
func (m *Manager) updateActiveRooms() {
	if m.mon != nil {
		m.mon.SetActiveRooms(len(m.rooms))
	}
}
