package hub

import (
	"encoding/json"

	"github.com/javajack/gridsync"
)

// Inbound message types.
const (
	TypeJoin           = "join"
	TypeUserJoin       = "user_join"
	TypeUserLeave      = "user_leave"
	TypeCellUpdate     = "cell_update"
	TypeCursorUpdate   = "cursor_update"
	TypeCommentAdd     = "comment_add"
	TypeHistoryRequest = "history_request"
)

// Outbound message types. cell_update and cursor_update are echoed under
// their inbound names.
const (
	TypeUserPresence    = "user_presence"
	TypeCommentAdded    = "comment_added"
	TypeHistoryResponse = "history_response"
	TypeSheetResized    = "sheet_resized"
	TypeSheetReloaded   = "sheet_reloaded"
	TypeError           = "error"
)

// Error codes carried by error frames.
const (
	CodeInvalidReference = "invalid_reference"
	CodeFormulaError     = "formula_error"
	CodeBadRequest       = "bad_request"
)

// UserInfo is the identity a client announces with user_join.
type UserInfo struct {
	UserID     string  `json:"userId"`
	Username   string  `json:"username"`
	Color      string  `json:"color"`
	LastActive float64 `json:"lastActive"`
}

// inbound is the union of every client frame; Type selects the fields in use.
type inbound struct {
	Type     string          `json:"type"`
	Username string          `json:"username"`
	User     *UserInfo       `json:"user"`
	UserID   string          `json:"userId"`
	CellRef  string          `json:"cellRef"`
	Value    gridsync.Value  `json:"value"`
	Formula  string          `json:"formula"`
	Position json.RawMessage `json:"position"`
	Text     string          `json:"text"`
}

// PresenceMessage carries the full roster of a sheet.
type PresenceMessage struct {
	Type  string   `json:"type"`
	Users []Member `json:"users"`
}

// CellMessage announces the new state of one cell.
type CellMessage struct {
	Type    string         `json:"type"`
	CellRef string         `json:"cellRef"`
	Value   gridsync.Value `json:"value"`
	Formula *string        `json:"formula"`
	Version int            `json:"version"`
	UserID  *string        `json:"userId"`
}

// CursorMessage relays a cursor position; the position is passed through untouched.
type CursorMessage struct {
	Type     string          `json:"type"`
	UserID   *string         `json:"userId"`
	Position json.RawMessage `json:"position"`
}

// CommentMessage announces a new comment.
type CommentMessage struct {
	Type      string  `json:"type"`
	CellRef   string  `json:"cellRef"`
	CommentID string  `json:"commentId"`
	UserID    *string `json:"userId"`
	Text      string  `json:"text"`
	Timestamp float64 `json:"timestamp"`
}

// HistoryItem is one entry of a history_response.
type HistoryItem struct {
	OldValue  gridsync.Value `json:"oldValue"`
	NewValue  gridsync.Value `json:"newValue"`
	UserID    *string        `json:"userId"`
	Timestamp float64        `json:"timestamp"`
}

// HistoryMessage is the private reply to history_request.
type HistoryMessage struct {
	Type    string        `json:"type"`
	CellRef string        `json:"cellRef"`
	History []HistoryItem `json:"history"`
}

// SheetMessage announces a structural change (resize, sort, import).
type SheetMessage struct {
	Type    string `json:"type"`
	Rows    int    `json:"rows"`
	Columns int    `json:"columns"`
}

// ErrorMessage is the private reply to a rejected request.
type ErrorMessage struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	CellRef string `json:"cellRef,omitempty"`
	Message string `json:"message"`
}

func newCellMessage(c gridsync.Cell, userID string) CellMessage {
	return CellMessage{
		Type:    TypeCellUpdate,
		CellRef: c.Ref,
		Value:   c.Value,
		Formula: optional(c.Formula),
		Version: c.Version,
		UserID:  optional(userID),
	}
}

// optional maps "" to JSON null.
func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
