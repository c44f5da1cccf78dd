package http

import (
	"net/http"

	"dinamifin/internal/history"
)

// handleHistory serves one series as a bare JSON array of month buckets,
// oldest first.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	userID, err := PathUserID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.history.Series(r.Context(), userID, r.PathValue("series"), PeriodToken(r))
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := NewResponse().Header("X-Period-Start", res.Window.Start.String()).Header("X-Period-End", res.Window.End.String())
	if res.Series.IsGoal() {
		buckets := res.Goals
		if buckets == nil {
			buckets = []history.GoalBucket{}
		}
		resp.JSON(buckets).Write(w)
		return
	}
	buckets := res.Totals
	if buckets == nil {
		buckets = []history.MonthBucket{}
	}
	resp.JSON(buckets).Write(w)
}
