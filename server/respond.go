package server

import (
	"encoding/json"
	"net/http"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Detail string `json:"detail"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error().Err(err).Msg("encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, detail string) {
	if status >= http.StatusInternalServerError {
		s.log.Error().Int("status", status).Str("detail", detail).Msg("request failed")
	}
	s.writeJSON(w, status, errorBody{Detail: detail})
}
