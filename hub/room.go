package hub

import "sync"

// room holds the sessions and presence roster of one sheet.
type room struct {
	id string

	// edits serialises apply → record → broadcast so every session sees a
	// sheet's cell_update frames in version order.
	edits sync.Mutex

	mu       sync.Mutex
	sessions map[*Session]struct{}
	roster   *roster
}

func newRoom(id string) *room {
	return &room{
		id:       id,
		sessions: make(map[*Session]struct{}),
		roster:   newRoster(),
	}
}

// broadcastLocked queues msg on every session and returns how many were
// skipped because their buffer was full. Callers hold rm.mu.
func (rm *room) broadcastLocked(msg []byte) int {
	dropped := 0
	for s := range rm.sessions {
		if !s.enqueue(msg) {
			dropped++
			s.log.Warn().Msg("send buffer full, dropping frame")
		}
	}
	return dropped
}

// boundLocked returns every live session bound to userID. Callers hold rm.mu.
func (rm *room) boundLocked(userID string) []*Session {
	var out []*Session
	for s := range rm.sessions {
		if s.UserID() == userID {
			out = append(out, s)
		}
	}
	return out
}
