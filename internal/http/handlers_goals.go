package http

import (
	"fmt"
	"net/http"

	"dinamifin/internal/core"
)

type goalResponse struct {
	UserID int64         `json:"user_id"`
	Kind   core.GoalKind `json:"kind"`
	Month  string        `json:"month"`
	Value  core.Money    `json:"value"`
}

func toGoalResponse(g core.Goal) goalResponse {
	return goalResponse{UserID: g.UserID, Kind: g.Kind, Month: g.Month.MonthKey(), Value: g.Value}
}

type upsertGoalRequest struct {
	Month string      `json:"month"`
	Value *core.Money `json:"value"`
}

type currentGoalResponse struct {
	Kind core.GoalKind `json:"kind"`
	Goal *goalResponse `json:"goal"`
}

func (s *Server) handleListGoals(w http.ResponseWriter, r *http.Request) {
	kind, err := PathGoalKind(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	userID, err := PathUserID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	goals, err := s.goals.List(r.Context(), userID, kind)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]goalResponse, 0, len(goals))
	for _, g := range goals {
		out = append(out, toGoalResponse(g))
	}
	NewResponse().JSON(out).Write(w)
}

// handleUpsertGoal sets a month's goal; an omitted month means the
// current one.
func (s *Server) handleUpsertGoal(w http.ResponseWriter, r *http.Request) {
	kind, err := PathGoalKind(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	userID, err := PathUserID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req upsertGoalRequest
	if err := DecodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Value == nil {
		writeError(w, r, fmt.Errorf("%w: value is required", core.ErrInvalidValue))
		return
	}

	var month core.Date
	if req.Month != "" {
		if month, err = core.ParseMonth(req.Month); err != nil {
			if d, derr := core.ParseDate(req.Month); derr == nil {
				month, err = d, nil
			}
		}
		if err != nil {
			writeError(w, r, err)
			return
		}
	}

	g, err := s.goals.Upsert(r.Context(), core.Goal{UserID: userID, Kind: kind, Month: month, Value: *req.Value})
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().JSON(toGoalResponse(g)).Write(w)
}

func (s *Server) handleDeleteGoal(w http.ResponseWriter, r *http.Request) {
	kind, err := PathGoalKind(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	userID, err := PathUserID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	month, err := PathMonth(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.goals.Delete(r.Context(), userID, kind, month); err != nil {
		writeError(w, r, err)
		return
	}
	NewResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) handleCurrentGoals(w http.ResponseWriter, r *http.Request) {
	userID, err := PathUserID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	current, err := s.goals.Current(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]currentGoalResponse, 0, len(current))
	for _, c := range current {
		item := currentGoalResponse{Kind: c.Kind}
		if c.Goal != nil {
			g := toGoalResponse(*c.Goal)
			item.Goal = &g
		}
		out = append(out, item)
	}
	NewResponse().JSON(out).Write(w)
}
