package http

import (
	"fmt"
	"net/http"

	"dinamifin/internal/core"
	"dinamifin/internal/services"
)

type recordResponse struct {
	UserID   int64      `json:"user_id"`
	Kind     core.Kind  `json:"kind"`
	Date     string     `json:"date"`
	Amount   core.Money `json:"amount"`
	Category string     `json:"category,omitempty"`
}

func toRecordResponse(r core.LedgerRecord) recordResponse {
	return recordResponse{
		UserID:   r.UserID,
		Kind:     r.Kind,
		Date:     r.Date.String(),
		Amount:   r.Amount,
		Category: r.Category,
	}
}

type createRecordRequest struct {
	Date     string     `json:"date"`
	Amount   core.Money `json:"amount"`
	Category string     `json:"category"`
}

// updateRecordRequest fields are optional; an omitted field keeps its
// stored value.
type updateRecordRequest struct {
	Amount   *core.Money `json:"amount"`
	Category *string     `json:"category"`
}

// ledgerKey resolves the {kind} and {user_id} wildcards shared by every
// ledger route.
func ledgerKey(r *http.Request) (core.Kind, int64, error) {
	kind, err := PathKind(r)
	if err != nil {
		return "", 0, err
	}
	userID, err := PathUserID(r)
	if err != nil {
		return "", 0, err
	}
	return kind, userID, nil
}

func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	kind, userID, err := ledgerKey(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	records, err := s.ledger.List(r.Context(), userID, kind)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]recordResponse, 0, len(records))
	for _, rec := range records {
		out = append(out, toRecordResponse(rec))
	}
	NewResponse().JSON(out).Write(w)
}

func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	kind, userID, err := ledgerKey(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	date, err := PathDate(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rec, err := s.ledger.Get(r.Context(), userID, kind, date)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().JSON(toRecordResponse(rec)).Write(w)
}

func (s *Server) handleCurrentMonth(w http.ResponseWriter, r *http.Request) {
	kind, userID, err := ledgerKey(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	total, err := s.ledger.CurrentMonthTotal(r.Context(), userID, kind)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().JSON(total).Write(w)
}

func (s *Server) handleCreateRecord(w http.ResponseWriter, r *http.Request) {
	kind, userID, err := ledgerKey(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req createRecordRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	date, err := core.ParseDate(req.Date)
	if err != nil {
		writeError(w, r, err)
		return
	}

	rec, err := s.ledger.Create(r.Context(), core.LedgerRecord{
		UserID:   userID,
		Kind:     kind,
		Date:     date,
		Amount:   req.Amount,
		Category: sanitizeInput(req.Category),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().
		Status(http.StatusCreated).
		Location(fmt.Sprintf("/ledger/%s/%d/%s", rec.Kind, rec.UserID, rec.Date)).
		JSON(toRecordResponse(rec)).
		Write(w)
}

func (s *Server) handleUpdateRecord(w http.ResponseWriter, r *http.Request) {
	kind, userID, err := ledgerKey(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	date, err := PathDate(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req updateRecordRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	patch := services.RecordPatch{Amount: req.Amount}
	if req.Category != nil {
		category := sanitizeInput(*req.Category)
		patch.Category = &category
	}
	rec, err := s.ledger.Update(r.Context(), userID, kind, date, patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().JSON(toRecordResponse(rec)).Write(w)
}

func (s *Server) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	kind, userID, err := ledgerKey(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	date, err := PathDate(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.ledger.Delete(r.Context(), userID, kind, date); err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().Status(http.StatusNoContent).Write(w)
}
