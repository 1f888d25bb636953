package hub

import (
	"sync"

	"github.com/rs/zerolog"
)

// State is the lifecycle stage of a Session.
type State int

const (
	StateConnected State = iota
	StateJoined
	StateDisconnected
)

// String returns a human-readable name for the State.
func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateJoined:
		return "joined"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

// Session is one client's channel on one sheet. Outbound frames are queued
// on a buffered channel drained by the transport.
type Session struct {
	id      string
	sheetID string
	room    *room
	send    chan []byte
	log     zerolog.Logger

	mu     sync.Mutex
	state  State
	userID string
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// SheetID returns the sheet the session is attached to.
func (s *Session) SheetID() string { return s.sheetID }

// State returns the current lifecycle stage.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// UserID returns the user bound by the last join, or "".
func (s *Session) UserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}

// Outbound returns the queue of encoded frames for this session. It is
// closed when the session is disconnected.
func (s *Session) Outbound() <-chan []byte {
	return s.send
}

// bind moves the session to Joined as userID and returns the previous
// binding. It fails once the session is disconnected.
func (s *Session) bind(userID string) (prev string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateDisconnected {
		return "", false
	}
	prev = s.userID
	s.userID = userID
	s.state = StateJoined
	return prev, true
}

// enqueue queues msg without blocking and reports whether it was accepted.
func (s *Session) enqueue(msg []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateDisconnected {
		return false
	}
	select {
	case s.send <- msg:
		return true
	default:
		return false
	}
}

// close moves the session to Disconnected. Only the first call returns true.
func (s *Session) close() (userID string, first bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateDisconnected {
		return "", false
	}
	s.state = StateDisconnected
	close(s.send)
	return s.userID, true
}
