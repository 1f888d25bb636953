package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/javajack/gridsync"
	"github.com/javajack/gridsync/auth"
	"github.com/javajack/gridsync/hub"
)

type cellView struct {
	CellRef string            `json:"cellRef"`
	Value   gridsync.Value    `json:"value"`
	Formula *string           `json:"formula"`
	Type    gridsync.CellType `json:"type"`
	Version int               `json:"version"`
}

type sheetView struct {
	SheetID string `json:"sheetId"`
	Rows    int    `json:"rows"`
	Columns int    `json:"columns"`
}

type changeView struct {
	Applied bool       `json:"applied"`
	Rows    int        `json:"rows"`
	Columns int        `json:"columns"`
	Changed []cellView `json:"changed"`
}

type commentView struct {
	CommentID string  `json:"comment_id"`
	UserID    string  `json:"user_id"`
	CellRef   string  `json:"cell_ref"`
	Text      string  `json:"text"`
	Timestamp float64 `json:"timestamp"`
}

func newCellView(c gridsync.Cell) cellView {
	v := cellView{CellRef: c.Ref, Value: c.Value, Type: c.Type, Version: c.Version}
	if c.Formula != "" {
		f := c.Formula
		v.Formula = &f
	}
	return v
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"message": "Spreadsheet backend running."})
}

func (s *Server) handleGetCell(w http.ResponseWriter, r *http.Request) {
	c := s.registry.Read(r.PathValue("sheetID"), r.PathValue("cellRef"))
	s.writeJSON(w, http.StatusOK, newCellView(c))
}

func (s *Server) handleGetSheet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("sheetID")
	dims := s.registry.Dimensions(id)
	s.writeJSON(w, http.StatusOK, sheetView{SheetID: id, Rows: dims.Rows, Columns: dims.Columns})
}

func (s *Server) handleAddRow(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("sheetID")
	s.respondChange(w, s.resize(id, func() gridsync.SheetChange { return s.registry.AddRow(id) }))
}

func (s *Server) handleDeleteRow(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("sheetID")
	row, err := strconv.Atoi(r.PathValue("row"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid row number: %q", r.PathValue("row")))
		return
	}
	s.respondChange(w, s.resize(id, func() gridsync.SheetChange { return s.registry.DeleteRow(id, row) }))
}

func (s *Server) handleAddColumn(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("sheetID")
	s.respondChange(w, s.resize(id, func() gridsync.SheetChange { return s.registry.AddColumn(id) }))
}

func (s *Server) handleDeleteColumn(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("sheetID")
	col := strings.ToUpper(r.PathValue("col"))
	s.respondChange(w, s.resize(id, func() gridsync.SheetChange { return s.registry.DeleteColumn(id, col) }))
}

func (s *Server) handleSortColumn(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("sheetID")
	col := strings.ToUpper(r.PathValue("col"))
	var ascending bool
	switch order := r.URL.Query().Get("order"); order {
	case "", "asc":
		ascending = true
	case "desc":
	default:
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid sort order: %q", order))
		return
	}
	change := s.resize(id, func() gridsync.SheetChange { return s.registry.SortColumn(id, col, ascending) })
	if !change.Applied {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid column: %q", col))
		return
	}
	s.respondChange(w, change)
}

// resize applies a row, column or sort change through the hub so it is
// broadcast in order with cell edits. Ignored requests are not broadcast.
func (s *Server) resize(sheetID string, op func() gridsync.SheetChange) gridsync.SheetChange {
	change, _ := s.hub.ApplyStructural(sheetID, hub.TypeSheetResized, func() (gridsync.SheetChange, error) {
		return op(), nil
	})
	return change
}

// respondChange reports a structural change to the caller.
func (s *Server) respondChange(w http.ResponseWriter, change gridsync.SheetChange) {
	view := changeView{
		Applied: change.Applied,
		Rows:    change.Dimensions.Rows,
		Columns: change.Dimensions.Columns,
		Changed: make([]cellView, 0, len(change.Changed)),
	}
	for _, c := range change.Changed {
		view.Changed = append(view.Changed, newCellView(c))
	}
	s.writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleImportCSV(w http.ResponseWriter, r *http.Request) {
	s.handleImport(w, r, "CSV", s.registry.ImportCSV)
}

func (s *Server) handleImportXLSX(w http.ResponseWriter, r *http.Request) {
	s.handleImport(w, r, "XLSX", s.registry.ImportXLSX)
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request, format string, load func(string, io.Reader) (gridsync.Dimensions, error)) {
	id := r.PathValue("sheetID")
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	file, _, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("missing upload field %q: %v", "file", err))
		return
	}
	defer file.Close()

	change, err := s.hub.ApplyStructural(id, hub.TypeSheetReloaded, func() (gridsync.SheetChange, error) {
		dims, err := load(id, file)
		return gridsync.SheetChange{Applied: err == nil, Dimensions: dims}, err
	})
	if err != nil {
		if errors.Is(err, gridsync.ErrImport) {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.log.Info().Str("sheet", id).Str("format", format).Msg("sheet imported")
	s.writeJSON(w, http.StatusOK, map[string]any{
		"message": fmt.Sprintf("Imported %s for sheet %s", format, id),
		"rows":    change.Dimensions.Rows,
		"columns": change.Dimensions.Columns,
	})
}

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("sheetID")
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.csv", id))
	if err := s.registry.ExportCSV(id, w); err != nil {
		s.log.Error().Err(err).Str("sheet", id).Msg("export csv")
	}
}

func (s *Server) handleExportXLSX(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("sheetID")
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.xlsx", id))
	if err := s.registry.ExportXLSX(id, w); err != nil {
		s.log.Error().Err(err).Str("sheet", id).Msg("export xlsx")
	}
}

func (s *Server) handleListComments(w http.ResponseWriter, r *http.Request) {
	comments := s.comments.List(r.PathValue("sheetID"), r.PathValue("cellRef"))
	out := make([]commentView, 0, len(comments))
	for _, c := range comments {
		out = append(out, commentView{
			CommentID: c.ID,
			UserID:    c.UserID,
			CellRef:   c.CellRef,
			Text:      c.Text,
			Timestamp: c.Timestamp,
		})
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAddComment(w http.ResponseWriter, r *http.Request) {
	ref := r.PathValue("cellRef")
	if !gridsync.ValidateReference(ref) {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid cell reference: %q", ref))
		return
	}
	c, err := s.comments.Add(r.PathValue("sheetID"), ref, r.PathValue("userID"), r.URL.Query().Get("text"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"comment_id": c.ID, "text": c.Text})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.history.List(r.PathValue("sheetID"), r.PathValue("cellRef")))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid form body")
		return
	}
	tok, err := s.auth.Login(r.PostForm.Get("username"), r.PostForm.Get("password"))
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			w.Header().Set("WWW-Authenticate", "Bearer")
			s.writeError(w, http.StatusUnauthorized, "Incorrect username or password")
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, tok)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || token == "" {
		w.Header().Set("WWW-Authenticate", "Bearer")
		s.writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}
	u, err := s.auth.Verify(token)
	if err != nil {
		s.log.Debug().Err(err).Msg("token rejected")
		w.Header().Set("WWW-Authenticate", "Bearer")
		s.writeError(w, http.StatusUnauthorized, "Could not validate credentials")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"username": u.Username, "color": u.Color})
}
