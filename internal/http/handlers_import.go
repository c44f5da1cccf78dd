package http

import (
	"net/http"

	"dinamifin/internal/core"
	"dinamifin/internal/services"
)

type importRequest struct {
	Kind string               `json:"kind"`
	Rows []services.ImportRow `json:"rows"`
}

// handleImport applies a batch of records for one kind. Any invalid row
// rejects the whole batch with per-row details.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	userID, err := PathUserID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req importRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	kind, err := core.ParseKind(req.Kind)
	if err != nil {
		writeError(w, r, err)
		return
	}
	for i := range req.Rows {
		req.Rows[i].Category = sanitizeInput(req.Rows[i].Category)
	}

	res, err := s.imports.Import(r.Context(), userID, kind, req.Rows)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().Status(http.StatusCreated).JSON(res).Write(w)
}
