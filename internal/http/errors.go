package http

import (
	"errors"
	"net/http"

	"dinamifin/internal/core"
	"dinamifin/internal/history"
	"dinamifin/internal/log"
	"dinamifin/internal/services"
	"dinamifin/internal/storage"
)

// requestError is a malformed request detected before any service call.
type requestError struct {
	status int
	msg    string
}

func (e *requestError) Error() string { return e.msg }

func badRequest(msg string) error { return &requestError{status: http.StatusBadRequest, msg: msg} }

func notFound(msg string) error { return &requestError{status: http.StatusNotFound, msg: msg} }

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	var re *requestError
	switch {
	case errors.As(err, &re):
		return re.status
	case errors.Is(err, history.ErrInvalidPeriod), errors.Is(err, history.ErrInvalidRange):
		return http.StatusBadRequest
	case errors.Is(err, history.ErrUnknownSeries):
		return http.StatusNotFound
	case errors.Is(err, history.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	case core.IsValidation(err):
		return http.StatusUnprocessableEntity
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeError logs server-side failures and renders err as a JSON body.
// Internal errors are not echoed to the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	ctx := r.Context()

	if status >= http.StatusInternalServerError {
		log.NewStructuredLogger(log.FromContext(ctx)).LogError(ctx, "Request failed", err,
			log.ComponentHTTP, r.Method, log.NewFields().WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.UserAgent()))
	}

	body := ErrorBody{Error: err.Error()}
	switch status {
	case http.StatusInternalServerError:
		body.Error = "internal error"
	case http.StatusServiceUnavailable:
		body.Error = "store unavailable, try again later"
	}

	var ie *services.ImportError
	if errors.As(err, &ie) {
		body.Error = "import rejected"
		for _, row := range ie.Rows {
			body.Details = append(body.Details, RowDetail{Row: row.Row, Error: row.Err.Error()})
		}
	}

	NewResponse().Status(status).JSON(body).Write(w)
}
