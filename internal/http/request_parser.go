package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"dinamifin/internal/core"
	"dinamifin/internal/history"
)

// maxBodyBytes bounds request bodies; a full import batch fits well within.
const maxBodyBytes = 2 << 20

// PathUserID parses the {user_id} wildcard.
func PathUserID(r *http.Request) (int64, error) {
	raw := r.PathValue("user_id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, badRequest(fmt.Sprintf("invalid user_id %q: must be a positive integer", raw))
	}
	return id, nil
}

// PathKind parses the {kind} wildcard of ledger routes.
func PathKind(r *http.Request) (core.Kind, error) {
	k, err := core.ParseKind(r.PathValue("kind"))
	if err != nil {
		return "", notFound(fmt.Sprintf("unknown ledger kind %q", r.PathValue("kind")))
	}
	return k, nil
}

// PathGoalKind parses the {kind} wildcard of goal routes.
func PathGoalKind(r *http.Request) (core.GoalKind, error) {
	k, err := core.ParseGoalKind(r.PathValue("kind"))
	if err != nil {
		return "", notFound(fmt.Sprintf("unknown goal kind %q", r.PathValue("kind")))
	}
	return k, nil
}

// PathDate parses the {date} wildcard as YYYY-MM-DD.
func PathDate(r *http.Request) (core.Date, error) {
	d, err := core.ParseDate(r.PathValue("date"))
	if err != nil {
		return core.Date{}, badRequest(fmt.Sprintf("invalid date %q: expected YYYY-MM-DD", r.PathValue("date")))
	}
	return d, nil
}

// PathMonth parses the {month} wildcard as YYYY-MM; a full date is
// accepted and truncated to its month.
func PathMonth(r *http.Request) (core.Date, error) {
	raw := r.PathValue("month")
	if m, err := core.ParseMonth(raw); err == nil {
		return m, nil
	}
	if d, err := core.ParseDate(raw); err == nil {
		return d.FirstOfMonth(), nil
	}
	return core.Date{}, badRequest(fmt.Sprintf("invalid month %q: expected YYYY-MM", raw))
}

// PeriodToken reads ?period=, falling back to the ?periodo= alias and then
// to the default window.
func PeriodToken(r *http.Request) string {
	q := r.URL.Query()
	for _, key := range []string{"period", "periodo"} {
		if v := strings.TrimSpace(q.Get(key)); v != "" {
			return v
		}
	}
	return string(history.DefaultPeriod)
}

// DecodeJSON reads a single JSON object into dst. Unknown fields are
// rejected. Malformed amounts surface as validation errors.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case core.IsValidation(err):
			return err
		case errors.As(err, &maxErr):
			return &requestError{status: http.StatusRequestEntityTooLarge, msg: fmt.Sprintf("request body exceeds %d bytes", maxErr.Limit)}
		case errors.Is(err, io.EOF):
			return badRequest("request body is empty")
		default:
			return badRequest("invalid JSON body: " + err.Error())
		}
	}
	if dec.More() {
		return badRequest("request body must contain a single JSON object")
	}
	return nil
}

// sanitizeInput removes control characters except tab and newlines and
// trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
