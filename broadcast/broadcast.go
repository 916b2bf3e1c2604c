package broadcast

import (
	"errors"

	"github.com/playhouse/partyserver/logger"
	"github.com/playhouse/partyserver/room"
)

var (
	ErrRoomNotFound = errors.New("room not found")
)

// RoomBroadcaster fans a state snapshot out to every connection registered
// to a room. Every receiver gets the same bytes, so every observer sees
// the state as of one specific reducer application.
type RoomBroadcaster struct {
	roomManager *room.Manager
}

func NewRoomBroadcaster(roomManager *room.Manager) *RoomBroadcaster {
	return &RoomBroadcaster{
		roomManager: roomManager,
	}
}

func (b *RoomBroadcaster) BroadcastToRoom(code string, data []byte) error {
	target, exists := b.roomManager.GetRoom(code)
	if !exists {
		return ErrRoomNotFound
	}

	// Thread-safe snapshot of the registered sessions.
	sessions := target.GetSessions()

	for _, s := range sessions {
		if err := s.Send(data); err != nil {
			// A dead connection is the read loop's problem; keep fanning out.
			logger.Log.Debugf("Send to session %s failed: %v", s.GetID(), err)
			continue
		}
	}

	return nil
}
