package trace

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/oklog/ulid/v2"

	"dinamifin/internal/log"
)

func TestMiddleware_RequestID(t *testing.T) {
	m := NewMiddleware(log.Discard(), func(*http.Request) string { return "203.0.113.9" })

	var seen string
	var ctxLogger *log.Logger
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
		ctxLogger = log.FromContext(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	t.Run("generated when absent", func(t *testing.T) {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

		got := rr.Header().Get(HeaderRequestID)
		if _, err := ulid.ParseStrict(got); err != nil {
			t.Fatalf("response id %q is not a ULID", got)
		}
		if seen != got {
			t.Fatalf("context id %q differs from header %q", seen, got)
		}
		if ctxLogger == nil || ctxLogger.Component() != log.ComponentHTTP {
			t.Fatal("request-scoped logger missing from context")
		}
		if rr.Code != http.StatusTeapot {
			t.Fatalf("status = %d", rr.Code)
		}
	})

	t.Run("valid incoming id is kept", func(t *testing.T) {
		id := GenerateRequestID()
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.Header.Set(HeaderRequestID, id)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		if rr.Header().Get(HeaderRequestID) != id {
			t.Fatalf("id not honoured: %q", rr.Header().Get(HeaderRequestID))
		}
	})

	t.Run("garbage incoming id is replaced", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.Header.Set(HeaderRequestID, "<script>")
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		if got := rr.Header().Get(HeaderRequestID); got == "<script>" || got == "" {
			t.Fatalf("unexpected id %q", got)
		}
	})

	if got := m.GetMetrics().TotalRequests; got != 3 {
		t.Fatalf("TotalRequests = %d", got)
	}
}

func TestGetRequestID_Empty(t *testing.T) {
	if id := GetRequestID(httptest.NewRequest(http.MethodGet, "/", nil).Context()); id != "" {
		t.Fatalf("expected empty id, got %q", id)
	}
}
