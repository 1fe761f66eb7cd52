package ws

import (
	"sync"

	"github.com/gorilla/websocket"

	"github.com/skillsenselab/scribe/internal/apperr"
	"github.com/skillsenselab/scribe/internal/logger"
	"github.com/skillsenselab/scribe/internal/protocol"
)

// Registry tracks the live sessions up to a fixed capacity. A session that
// fails a write is considered dead and is pruned on the spot.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	max      int
	log      *logger.Logger
}

// NewRegistry creates a registry bounded at max sessions.
func NewRegistry(max int, log *logger.Logger) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		max:      max,
		log:      log.WithComponent("ws"),
	}
}

// Add registers a session. Returns a capacity error when the registry is
// full; the session is not registered in that case.
func (r *Registry) Add(s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sessions) >= r.max {
		return apperr.Capacity().WithDetail("max_connections", r.max)
	}
	r.sessions[s.id] = s
	r.log.Info("session connected", map[string]interface{}{
		logger.FieldSessionID: s.id,
		"active":              len(r.sessions),
	})
	return nil
}

// Remove unregisters a session. Removing an unknown id is a no-op.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return
	}
	delete(r.sessions, id)
	r.log.Info("session disconnected", map[string]interface{}{
		logger.FieldSessionID: id,
		"active":              len(r.sessions),
	})
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Send delivers msg to one session. A missing session or a failed write is
// swallowed: jobs outlive the connections that started them, so delivery is
// best effort. A failed write prunes the session.
func (r *Registry) Send(id string, msg protocol.Message) {
	r.mu.Lock()
	s, ok := r.sessions[id]
	r.mu.Unlock()
	if !ok {
		return
	}
	if err := s.Send(msg); err != nil {
		r.log.Debug("send failed, pruning session", map[string]interface{}{
			logger.FieldSessionID: id,
			logger.FieldError:     err.Error(),
		})
		r.Remove(id)
		s.Close(websocket.CloseNormalClosure, "")
	}
}

// Broadcast delivers msg to every session registered at call time. Failed
// writes prune the session; a send to one peer never blocks the others on
// registry state.
func (r *Registry) Broadcast(msg protocol.Message) {
	r.mu.Lock()
	snapshot := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		snapshot = append(snapshot, s)
	}
	r.mu.Unlock()

	for _, s := range snapshot {
		if err := s.Send(msg); err != nil {
			r.Remove(s.id)
			s.Close(websocket.CloseNormalClosure, "")
		}
	}
}

// Notifier returns a transcribe.Notifier that addresses one session through
// the registry.
func (r *Registry) Notifier(id string) *SessionNotifier {
	return &SessionNotifier{registry: r, id: id}
}

// SessionNotifier delivers job progress to one session, best effort.
type SessionNotifier struct {
	registry *Registry
	id       string
}

// Notify sends msg to the target session through the registry.
func (n *SessionNotifier) Notify(msg protocol.Message) {
	n.registry.Send(n.id, msg)
}
