package room

// Broadcaster delivers a serialized state snapshot to every connection
// registered to a room. This is defined here to break the import cycle
// between room and broadcast.
type Broadcaster interface {
	BroadcastToRoom(code string, data []byte) error
}
