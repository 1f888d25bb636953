package server

import (
	"fmt"
	"net/http"

	"github.com/NYTimes/gziphandler"
	"github.com/javajack/gridsync"
	"github.com/javajack/gridsync/auth"
	"github.com/javajack/gridsync/collab"
	"github.com/javajack/gridsync/hub"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Server wires the sheet registry, the hub and the collaborators behind
// one HTTP handler.
type Server struct {
	cfg Config
	log zerolog.Logger

	registry    *gridsync.SheetRegistry
	coordinator *gridsync.EditCoordinator
	comments    *collab.CommentStore
	history     *collab.HistoryLog
	hub         *hub.Hub
	auth        *auth.Service
}

// New builds a Server from cfg.
func New(cfg Config, logger zerolog.Logger) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	registry := gridsync.NewSheetRegistry(
		gridsync.WithDefaultSize(cfg.Rows, cfg.Columns),
		gridsync.WithLimits(cfg.MaxRows, cfg.MaxColumns),
		gridsync.WithRecalculation(cfg.Recalculate),
	)
	coordinator := gridsync.NewEditCoordinator(registry)
	comments := collab.NewCommentStore()
	history := collab.NewHistoryLog()

	return &Server{
		cfg:         cfg,
		log:         logger,
		registry:    registry,
		coordinator: coordinator,
		comments:    comments,
		history:     history,
		hub: hub.New(coordinator,
			hub.WithLogger(logger.With().Str("component", "hub").Logger()),
			hub.WithSendBuffer(cfg.SendBuffer),
			hub.WithComments(comments),
			hub.WithHistory(history),
		),
		auth: auth.NewService(auth.WithSecret(cfg.Secret), auth.WithTokenTTL(cfg.TokenTTL)),
	}, nil
}

// Registry returns the sheet registry.
func (s *Server) Registry() *gridsync.SheetRegistry { return s.registry }

// Hub returns the presence and broadcast hub.
func (s *Server) Hub() *hub.Hub { return s.hub }

// Handler returns the root HTTP handler. JSON and CSV responses are
// gzipped; the websocket and metrics routes are not.
func (s *Server) Handler() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("GET /{$}", s.handleRoot)
	api.HandleFunc("GET /sheet/{sheetID}/cell/{cellRef}", s.handleGetCell)
	api.HandleFunc("GET /api/sheets/{sheetID}", s.handleGetSheet)
	api.HandleFunc("POST /api/sheets/{sheetID}/rows", s.handleAddRow)
	api.HandleFunc("DELETE /api/sheets/{sheetID}/rows/{row}", s.handleDeleteRow)
	api.HandleFunc("POST /api/sheets/{sheetID}/columns", s.handleAddColumn)
	api.HandleFunc("DELETE /api/sheets/{sheetID}/columns/{col}", s.handleDeleteColumn)
	api.HandleFunc("POST /api/sheets/{sheetID}/columns/{col}/sort", s.handleSortColumn)
	api.HandleFunc("POST /api/import/{sheetID}", s.handleImportCSV)
	api.HandleFunc("GET /api/export/{sheetID}", s.handleExportCSV)
	api.HandleFunc("POST /api/import/{sheetID}/xlsx", s.handleImportXLSX)
	api.HandleFunc("GET /api/export/{sheetID}/xlsx", s.handleExportXLSX)
	api.HandleFunc("GET /api/comments/{sheetID}/{cellRef}", s.handleListComments)
	api.HandleFunc("POST /api/comments/{sheetID}/{cellRef}/{userID}", s.handleAddComment)
	api.HandleFunc("GET /api/history/{sheetID}/{cellRef}", s.handleHistory)
	api.HandleFunc("POST /api/auth/login", s.handleLogin)
	api.HandleFunc("GET /api/auth/users/me", s.handleMe)

	root := http.NewServeMux()
	root.HandleFunc("GET /ws/spreadsheet/{sheetID}", func(w http.ResponseWriter, r *http.Request) {
		s.hub.ServeWS(w, r, r.PathValue("sheetID"))
	})
	root.Handle("GET /metrics", promhttp.Handler())
	root.Handle("/", gziphandler.GzipHandler(api))
	return cors(root)
}

// cors allows any origin with credentials and answers preflight requests.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Add("Vary", "Origin")
		}
		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			h := w.Header()
			h.Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			if req := r.Header.Get("Access-Control-Request-Headers"); req != "" {
				h.Set("Access-Control-Allow-Headers", req)
			}
			h.Set("Access-Control-Max-Age", "600")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
