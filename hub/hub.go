package hub

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/javajack/gridsync"
	"github.com/javajack/gridsync/collab"
)

// Editor applies cell edits; *gridsync.EditCoordinator satisfies it.
type Editor interface {
	ApplyEdit(sheetID, ref string, value gridsync.Value, formula, userID string) (gridsync.EditResult, error)
}

// CommentSink stores comments added over the channel.
type CommentSink interface {
	Add(sheetID, cellRef, userID, text string) (collab.Comment, error)
}

// HistoryRecorder records successful edits and answers history requests.
type HistoryRecorder interface {
	Record(sheetID, cellRef string, oldValue, newValue gridsync.Value, userID string)
	List(sheetID, cellRef string) []collab.HistoryEntry
}

// Hub tracks the sessions of every sheet, routes their frames and
// broadcasts the results. Sheets share nothing: each has its own room.
type Hub struct {
	editor Editor
	opts   *Options

	mu    sync.Mutex
	rooms map[string]*room
}

// New creates a hub that applies edits through editor.
func New(editor Editor, opts ...Option) *Hub {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return &Hub{
		editor: editor,
		opts:   o,
		rooms:  make(map[string]*room),
	}
}

// Connect attaches a new anonymous session to sheetID.
func (h *Hub) Connect(sheetID string) *Session {
	id := uuid.NewString()
	s := &Session{
		id:      id,
		sheetID: sheetID,
		send:    make(chan []byte, h.opts.sendBuffer),
		log:     h.opts.logger.With().Str("session", id).Str("sheet", sheetID).Logger(),
		state:   StateConnected,
	}

	h.mu.Lock()
	rm, ok := h.rooms[sheetID]
	if !ok {
		rm = newRoom(sheetID)
		h.rooms[sheetID] = rm
	}
	s.room = rm
	rm.mu.Lock()
	rm.sessions[s] = struct{}{}
	rm.mu.Unlock()
	h.mu.Unlock()

	sessionsActive.Inc()
	s.log.Info().Msg("session connected")
	return s
}

// Disconnect detaches s from its sheet. A joined user is removed from the
// roster, and the new roster broadcast, when this was their last session.
// Repeated calls are no-ops.
func (h *Hub) Disconnect(s *Session) {
	rm := s.room
	rm.mu.Lock()
	userID, first := s.close()
	if !first {
		rm.mu.Unlock()
		return
	}
	delete(rm.sessions, s)
	if userID != "" && rm.roster.remove(userID) {
		h.broadcastLocked(rm, PresenceMessage{Type: TypeUserPresence, Users: rm.roster.list()})
	}
	empty := len(rm.sessions) == 0
	rm.mu.Unlock()

	sessionsActive.Dec()
	s.log.Info().Str("user", userID).Msg("session disconnected")

	if empty {
		h.mu.Lock()
		rm.mu.Lock()
		if len(rm.sessions) == 0 && h.rooms[rm.id] == rm {
			delete(h.rooms, rm.id)
		}
		rm.mu.Unlock()
		h.mu.Unlock()
	}
}

// Handle processes one inbound frame from s. Malformed frames are dropped
// and the session stays open.
func (h *Hub) Handle(s *Session, data []byte) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Interface("panic", r).Msg("frame handler panicked")
		}
	}()

	if s.State() == StateDisconnected {
		return
	}
	var msg inbound
	if err := json.Unmarshal(data, &msg); err != nil {
		framesTotal.WithLabelValues("malformed").Inc()
		s.log.Debug().Err(err).Msg("dropping malformed frame")
		return
	}
	framesTotal.WithLabelValues(msg.Type).Inc()

	switch msg.Type {
	case TypeJoin:
		h.handleJoin(s, msg)
	case TypeUserJoin:
		h.handleUserJoin(s, msg)
	case TypeUserLeave:
		h.handleUserLeave(s, msg)
	case TypeCellUpdate:
		h.handleCellUpdate(s, msg)
	case TypeCursorUpdate:
		h.Broadcast(s.sheetID, CursorMessage{
			Type:     TypeCursorUpdate,
			UserID:   optional(s.UserID()),
			Position: msg.Position,
		})
	case TypeCommentAdd:
		h.handleCommentAdd(s, msg)
	case TypeHistoryRequest:
		h.handleHistoryRequest(s, msg)
	default:
		s.log.Debug().Str("type", msg.Type).Msg("ignoring unknown frame type")
	}
}

func (h *Hub) handleJoin(s *Session, msg inbound) {
	username := msg.Username
	if username == "" {
		username = "Anonymous"
	}
	userID := msg.UserID
	if userID == "" {
		userID = uuid.NewString()
	}
	h.join(s, Member{
		UserID:     userID,
		Username:   username,
		LastActive: float64(h.opts.now().UnixMilli()),
	})
}

func (h *Hub) handleUserJoin(s *Session, msg inbound) {
	var user UserInfo
	if msg.User != nil {
		user = *msg.User
	}
	if user.Username == "" {
		user.Username = "Anonymous"
	}
	if user.UserID == "" {
		user.UserID = user.Username
	}
	if user.Color == "" {
		user.Color = DefaultColor
	}
	h.join(s, Member{
		UserID:     user.UserID,
		Username:   user.Username,
		Color:      user.Color,
		LastActive: user.LastActive,
	})
}

// join binds s to m and broadcasts the roster. A session that was joined
// as someone else releases that identity first.
func (h *Hub) join(s *Session, m Member) {
	rm := s.room
	rm.mu.Lock()
	defer rm.mu.Unlock()

	prev, ok := s.bind(m.UserID)
	if !ok {
		return
	}
	if prev != "" {
		rm.roster.remove(prev)
	}
	if m.Color == "" {
		m.Color = rm.roster.nextColor()
	}
	rm.roster.add(m)
	s.log.Info().Str("user", m.UserID).Str("username", m.Username).Msg("session joined")
	h.broadcastLocked(rm, PresenceMessage{Type: TypeUserPresence, Users: rm.roster.list()})
}

// handleUserLeave disconnects every session bound to the named user, or the
// sender when no user is named.
func (h *Hub) handleUserLeave(s *Session, msg inbound) {
	userID := msg.UserID
	if userID == "" {
		userID = s.UserID()
	}
	if userID == "" {
		return
	}
	s.room.mu.Lock()
	targets := s.room.boundLocked(userID)
	s.room.mu.Unlock()
	for _, target := range targets {
		h.Disconnect(target)
	}
}

func (h *Hub) handleCellUpdate(s *Session, msg inbound) {
	rm := s.room
	userID := s.UserID()

	rm.edits.Lock()
	defer rm.edits.Unlock()

	res, err := h.editor.ApplyEdit(s.sheetID, msg.CellRef, msg.Value, msg.Formula, userID)
	if err != nil {
		cellEditsTotal.WithLabelValues("rejected").Inc()
		s.log.Warn().Err(err).Str("cell", msg.CellRef).Str("user", userID).Msg("edit rejected")
		h.reply(s, ErrorMessage{
			Type:    TypeError,
			Code:    errorCode(err),
			CellRef: msg.CellRef,
			Message: err.Error(),
		})
		return
	}
	cellEditsTotal.WithLabelValues("applied").Inc()

	if h.opts.history != nil {
		h.opts.history.Record(s.sheetID, res.Cell.Ref, res.Previous, res.Cell.Value, userID)
	}
	h.Broadcast(s.sheetID, newCellMessage(res.Cell, userID))
	for _, c := range res.Recomputed {
		h.Broadcast(s.sheetID, newCellMessage(c, ""))
	}
}

func (h *Hub) handleCommentAdd(s *Session, msg inbound) {
	if h.opts.comments == nil {
		return
	}
	if !gridsync.ValidateReference(msg.CellRef) {
		h.reply(s, ErrorMessage{Type: TypeError, Code: CodeInvalidReference, CellRef: msg.CellRef, Message: "invalid cell reference"})
		return
	}
	userID := s.UserID()
	c, err := h.opts.comments.Add(s.sheetID, msg.CellRef, userID, msg.Text)
	if err != nil {
		h.reply(s, ErrorMessage{Type: TypeError, Code: CodeBadRequest, CellRef: msg.CellRef, Message: err.Error()})
		return
	}
	h.Broadcast(s.sheetID, CommentMessage{
		Type:      TypeCommentAdded,
		CellRef:   c.CellRef,
		CommentID: c.ID,
		UserID:    optional(userID),
		Text:      c.Text,
		Timestamp: c.Timestamp,
	})
}

func (h *Hub) handleHistoryRequest(s *Session, msg inbound) {
	resp := HistoryMessage{Type: TypeHistoryResponse, CellRef: msg.CellRef, History: []HistoryItem{}}
	if h.opts.history != nil {
		for _, e := range h.opts.history.List(s.sheetID, msg.CellRef) {
			resp.History = append(resp.History, HistoryItem{
				OldValue:  e.OldValue,
				NewValue:  e.NewValue,
				UserID:    optional(e.UserID),
				Timestamp: e.Timestamp,
			})
		}
	}
	h.reply(s, resp)
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, gridsync.ErrInvalidReference):
		return CodeInvalidReference
	case errors.Is(err, gridsync.ErrFormula):
		return CodeFormulaError
	default:
		return CodeBadRequest
	}
}

// Broadcast sends msg to every session on sheetID. A session whose buffer
// is full misses the message; the others still receive it.
func (h *Hub) Broadcast(sheetID string, msg any) {
	h.mu.Lock()
	rm, ok := h.rooms[sheetID]
	h.mu.Unlock()
	if !ok {
		return
	}
	rm.mu.Lock()
	defer rm.mu.Unlock()
	h.broadcastLocked(rm, msg)
}

func (h *Hub) broadcastLocked(rm *room, msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.opts.logger.Error().Err(err).Str("sheet", rm.id).Msg("encode broadcast")
		return
	}
	if dropped := rm.broadcastLocked(data); dropped > 0 {
		broadcastDropped.Add(float64(dropped))
	}
}

// ApplyStructural runs op, a row, column, sort or import change to
// sheetID, in the same order as cell edits on that sheet. When op applies,
// the new dimensions are announced with typ (TypeSheetResized or
// TypeSheetReloaded) followed by every cell it changed, before any later
// edit is broadcast.
func (h *Hub) ApplyStructural(sheetID, typ string, op func() (gridsync.SheetChange, error)) (gridsync.SheetChange, error) {
	rm := h.room(sheetID)
	if rm == nil {
		return op()
	}
	rm.edits.Lock()
	defer rm.edits.Unlock()

	change, err := op()
	if err != nil || !change.Applied {
		return change, err
	}
	h.Broadcast(sheetID, SheetMessage{Type: typ, Rows: change.Dimensions.Rows, Columns: change.Dimensions.Columns})
	for _, c := range change.Changed {
		h.Broadcast(sheetID, newCellMessage(c, ""))
	}
	return change, nil
}

// Roster returns the users currently joined to sheetID, in join order.
func (h *Hub) Roster(sheetID string) []Member {
	rm := h.room(sheetID)
	if rm == nil {
		return []Member{}
	}
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return rm.roster.list()
}

// Sessions returns the number of sessions attached to sheetID.
func (h *Hub) Sessions(sheetID string) int {
	rm := h.room(sheetID)
	if rm == nil {
		return 0
	}
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return len(rm.sessions)
}

func (h *Hub) room(sheetID string) *room {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.rooms[sheetID]
}

func (h *Hub) reply(s *Session, msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		s.log.Error().Err(err).Msg("encode reply")
		return
	}
	if !s.enqueue(data) {
		broadcastDropped.Inc()
	}
}
