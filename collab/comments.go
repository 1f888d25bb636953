package collab

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Comment is a note attached to one cell of a sheet.
type Comment struct {
	ID        string  `json:"id"`
	UserID    string  `json:"userId"`
	CellRef   string  `json:"cellRef"`
	Text      string  `json:"text"`
	Timestamp float64 `json:"timestamp"`
}

// CommentStore keeps comments in memory per sheet and cell, in insertion order.
type CommentStore struct {
	opts *Options

	mu       sync.RWMutex
	comments map[cellKey][]Comment
}

type cellKey struct {
	sheetID string
	cellRef string
}

// NewCommentStore creates an empty store.
func NewCommentStore(opts ...Option) *CommentStore {
	return &CommentStore{
		opts:     buildOptions(opts),
		comments: make(map[cellKey][]Comment),
	}
}

// Add stores a comment on cellRef and returns it with a fresh id and timestamp.
func (s *CommentStore) Add(sheetID, cellRef, userID, text string) (Comment, error) {
	if strings.TrimSpace(text) == "" {
		return Comment{}, fmt.Errorf("comment on %s is empty", cellRef)
	}
	c := Comment{
		ID:        s.opts.newID(),
		UserID:    userID,
		CellRef:   cellRef,
		Text:      text,
		Timestamp: Timestamp(s.opts.now()),
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	key := cellKey{sheetID, cellRef}
	s.comments[key] = append(s.comments[key], c)
	return c, nil
}

// List returns the comments on cellRef, oldest first.
func (s *CommentStore) List(sheetID, cellRef string) []Comment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src := s.comments[cellKey{sheetID, cellRef}]
	out := make([]Comment, len(src))
	copy(out, src)
	return out
}

func newUUID() string {
	return uuid.NewString()
}
