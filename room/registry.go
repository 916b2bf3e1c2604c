// room/registry.go
package room

import (
	"sync"

	"github.com/playhouse/partyserver/session"
)

// Registry is the per-room binding of connection ids to sessions. It is
// the only place a network connection is tied to a trusted player id; the
// controller never reads identity out of a message body. Entries are only
// ever removed by the controller's explicit Evict.
type Registry struct {
	mutex   sync.RWMutex
	entries map[string]*session.Session
}

func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]*session.Session),
	}
}

func (r *Registry) Bind(sess *session.Session) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.entries[sess.ID] = sess
}

func (r *Registry) Lookup(connID string) (*session.Session, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	sess, exists := r.entries[connID]
	return sess, exists
}

func (r *Registry) Evict(connID string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	delete(r.entries, connID)
}

// Sessions returns a snapshot of all registered sessions (thread-safe).
func (r *Registry) Sessions() []*session.Session {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	sessions := make([]*session.Session, 0, len(r.entries))
	for _, sess := range r.entries {
		sessions = append(sessions, sess)
	}
	return sessions
}

func (r *Registry) Len() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return len(r.entries)
}
