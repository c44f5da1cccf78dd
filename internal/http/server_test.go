package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"dinamifin/internal/core"
	"dinamifin/internal/history"
	"dinamifin/internal/log"
	"dinamifin/internal/services"
	"dinamifin/internal/storage/memory"
)

var testNow = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("connection refused") }

func newTestServer(t *testing.T, rateLimit int) (*Server, *memory.Store) {
	t.Helper()
	store := memory.New()
	logger := log.Discard()
	clock := func() time.Time { return testNow }

	hist := history.NewService(store, store, history.WithClock(clock), history.WithLogger(logger))
	srv := NewServer(":0", Deps{
		Ledger:             services.NewLedgerService(store, nil, hist, logger).WithClock(clock),
		Goals:              services.NewGoalService(store, nil, hist, logger).WithClock(clock),
		Imports:            services.NewImportService(store, nil, hist, logger),
		History:            hist,
		Store:              store,
		Logger:             logger,
		RateLimitPerMinute: rateLimit,
	})
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv, store
}

func do(t *testing.T, srv *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return v
}

type totalBucket struct {
	Period string  `json:"period"`
	Total  float64 `json:"total"`
}

type goalBucket struct {
	Period string  `json:"period"`
	Real   float64 `json:"real"`
	Goal   float64 `json:"goal"`
}

func seed(t *testing.T, store *memory.Store, recs ...core.LedgerRecord) {
	t.Helper()
	for _, r := range recs {
		if err := store.CreateRecord(context.Background(), r); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
}

func TestHealthAndReady(t *testing.T) {
	srv, _ := newTestServer(t, 60)

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		rr := do(t, srv, http.MethodGet, path, "")
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d body=%s", path, rr.Code, rr.Body.String())
		}
	}

	srv.store = failingPinger{}
	rr := do(t, srv, http.MethodGet, "/readyz", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz with failing store status=%d", rr.Code)
	}
}

func TestMiddlewareHeaders(t *testing.T) {
	srv, _ := newTestServer(t, 60)
	rr := do(t, srv, http.MethodGet, "/healthz", "")

	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID")
	}
	if rr.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("missing security headers")
	}
}

func TestHistory_LedgerSeries(t *testing.T) {
	srv, store := newTestServer(t, 60)
	seed(t, store,
		core.LedgerRecord{UserID: 1, Kind: core.KindIncome, Date: core.NewDate(2024, 1, 10), Amount: core.MoneyFromFloat(100)},
		core.LedgerRecord{UserID: 1, Kind: core.KindIncome, Date: core.NewDate(2024, 3, 1), Amount: core.MoneyFromFloat(50.5)},
		core.LedgerRecord{UserID: 2, Kind: core.KindIncome, Date: core.NewDate(2024, 3, 1), Amount: core.MoneyFromFloat(999)},
	)

	rr := do(t, srv, http.MethodGet, "/history/income/1?period=6m", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	got := decode[[]totalBucket](t, rr)
	want := []totalBucket{
		{"2023-10", 0}, {"2023-11", 0}, {"2023-12", 0},
		{"2024-01", 100}, {"2024-02", 0}, {"2024-03", 50.5},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d buckets, want %d: %+v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("bucket %d = %+v, want %+v", i, got[i], want[i])
		}
	}
	if rr.Header().Get("X-Period-Start") != "2023-10-01" {
		t.Errorf("X-Period-Start = %q", rr.Header().Get("X-Period-Start"))
	}
}

func TestHistory_PeriodHandling(t *testing.T) {
	srv, _ := newTestServer(t, 60)

	tests := []struct {
		name        string
		target      string
		wantStatus  int
		wantBuckets int
		wantErr     string
	}{
		{"default is one year", "/history/expense/1", http.StatusOK, 13, ""},
		{"alias periodo", "/history/expense/1?periodo=1m", http.StatusOK, 1, ""},
		{"five years", "/history/saving/1?period=5y", http.StatusOK, 61, ""},
		{"invalid token", "/history/expense/1?period=2w", http.StatusBadRequest, 0, "2w"},
		{"unknown series", "/history/loans/1", http.StatusNotFound, 0, "unknown series"},
		{"bad user id", "/history/expense/abc", http.StatusBadRequest, 0, "user_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, srv, http.MethodGet, tt.target, "")
			if rr.Code != tt.wantStatus {
				t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
			}
			if tt.wantErr != "" {
				body := decode[ErrorBody](t, rr)
				if !strings.Contains(body.Error, tt.wantErr) {
					t.Fatalf("error %q should mention %q", body.Error, tt.wantErr)
				}
				return
			}
			if got := decode[[]totalBucket](t, rr); len(got) != tt.wantBuckets {
				t.Fatalf("got %d buckets, want %d", len(got), tt.wantBuckets)
			}
		})
	}
}

func TestHistory_GoalSeries(t *testing.T) {
	srv, store := newTestServer(t, 60)
	seed(t, store, core.LedgerRecord{UserID: 1, Kind: core.KindSaving, Date: core.NewDate(2024, 2, 10), Amount: core.MoneyFromFloat(100), Category: "vacaciones"})

	rr := do(t, srv, http.MethodPut, "/goals/saving_goal/1", `{"value": 300}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("upsert goal status=%d body=%s", rr.Code, rr.Body.String())
	}

	rr = do(t, srv, http.MethodGet, "/history/saving_goal/1?period=1y", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	got := decode[[]goalBucket](t, rr)
	want := []goalBucket{{"2024-02", 100, 0}, {"2024-03", 0, 300}}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("got %+v, want %+v", got, want)
	}

	rr = do(t, srv, http.MethodGet, "/history/investment_goal/1", "")
	if rr.Code != http.StatusOK || strings.TrimSpace(rr.Body.String()) != "[]" {
		t.Fatalf("empty goal series should be [], got %d %s", rr.Code, rr.Body.String())
	}
}

func TestHistory_InvalidatedByWrites(t *testing.T) {
	srv, _ := newTestServer(t, 60)

	rr := do(t, srv, http.MethodGet, "/history/expense/1?period=1m", "")
	if got := decode[[]totalBucket](t, rr); got[0].Total != 0 {
		t.Fatalf("expected empty month, got %+v", got)
	}

	rr = do(t, srv, http.MethodPost, "/ledger/expense/1", `{"date":"2024-03-02","amount":"12,50","category":"ropa"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", rr.Code, rr.Body.String())
	}

	rr = do(t, srv, http.MethodGet, "/history/expense/1?period=1m", "")
	if got := decode[[]totalBucket](t, rr); got[0].Total != 12.5 {
		t.Fatalf("history should reflect the new record, got %+v", got)
	}
}

func TestLedgerCRUD(t *testing.T) {
	srv, _ := newTestServer(t, 60)

	steps := []struct {
		name       string
		method     string
		target     string
		body       string
		wantStatus int
	}{
		{"create", http.MethodPost, "/ledger/saving/7", `{"date":"2024-03-05","amount":250,"category":"Vacaciones"}`, http.StatusCreated},
		{"duplicate day", http.MethodPost, "/ledger/saving/7", `{"date":"2024-03-05","amount":10,"category":"otros"}`, http.StatusConflict},
		{"get", http.MethodGet, "/ledger/saving/7/2024-03-05", "", http.StatusOK},
		{"list", http.MethodGet, "/ledger/saving/7", "", http.StatusOK},
		{"update", http.MethodPut, "/ledger/saving/7/2024-03-05", `{"amount":300,"category":"otros"}`, http.StatusOK},
		{"update missing", http.MethodPut, "/ledger/saving/7/2024-03-06", `{"amount":300,"category":"otros"}`, http.StatusNotFound},
		{"update amount only", http.MethodPut, "/ledger/saving/7/2024-03-05", `{"amount":320}`, http.StatusOK},
		{"update category only", http.MethodPut, "/ledger/saving/7/2024-03-05", `{"category":"jubilación"}`, http.StatusOK},
		{"update bad category", http.MethodPut, "/ledger/saving/7/2024-03-05", `{"category":"coche"}`, http.StatusUnprocessableEntity},
		{"bad category", http.MethodPost, "/ledger/saving/7", `{"date":"2024-03-07","amount":5,"category":"coche"}`, http.StatusUnprocessableEntity},
		{"zero amount", http.MethodPost, "/ledger/income/7", `{"date":"2024-03-07","amount":0}`, http.StatusUnprocessableEntity},
		{"bad amount", http.MethodPost, "/ledger/income/7", `{"date":"2024-03-07","amount":"abc"}`, http.StatusUnprocessableEntity},
		{"bad date in body", http.MethodPost, "/ledger/income/7", `{"date":"07/03/2024","amount":5}`, http.StatusUnprocessableEntity},
		{"unknown field", http.MethodPost, "/ledger/income/7", `{"date":"2024-03-07","amount":5,"note":"x"}`, http.StatusBadRequest},
		{"empty body", http.MethodPost, "/ledger/income/7", "", http.StatusBadRequest},
		{"bad date in path", http.MethodGet, "/ledger/saving/7/yesterday", "", http.StatusBadRequest},
		{"unknown kind", http.MethodGet, "/ledger/loans/7", "", http.StatusNotFound},
		{"bad user", http.MethodGet, "/ledger/saving/-1", "", http.StatusBadRequest},
		{"current month", http.MethodGet, "/ledger/saving/7/current-month", "", http.StatusOK},
		{"delete", http.MethodDelete, "/ledger/saving/7/2024-03-05", "", http.StatusNoContent},
		{"get deleted", http.MethodGet, "/ledger/saving/7/2024-03-05", "", http.StatusNotFound},
	}
	for _, st := range steps {
		rr := do(t, srv, st.method, st.target, st.body)
		if rr.Code != st.wantStatus {
			t.Fatalf("%s: status=%d, want %d, body=%s", st.name, rr.Code, st.wantStatus, rr.Body.String())
		}
		if st.wantStatus >= 400 && rr.Header().Get("Content-Type") != "application/json" {
			t.Fatalf("%s: errors must be JSON, got %q", st.name, rr.Header().Get("Content-Type"))
		}
	}
}

func TestLedger_PartialUpdateKeepsStoredFields(t *testing.T) {
	srv, _ := newTestServer(t, 60)

	if rr := do(t, srv, http.MethodPost, "/ledger/expense/1", `{"date":"2024-03-05","amount":80,"category":"salud"}`); rr.Code != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", rr.Code, rr.Body.String())
	}

	rr := do(t, srv, http.MethodPut, "/ledger/expense/1/2024-03-05", `{"amount": 50}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	got := decode[map[string]any](t, rr)
	if got["amount"] != 50.0 || got["category"] != "salud" {
		t.Fatalf("unexpected body %v", got)
	}

	rr = do(t, srv, http.MethodPut, "/ledger/expense/1/2024-03-05", `{"category":"Transporte"}`)
	got = decode[map[string]any](t, rr)
	if rr.Code != http.StatusOK || got["amount"] != 50.0 || got["category"] != "transporte" {
		t.Fatalf("status=%d body=%v", rr.Code, got)
	}
}

func TestLedger_ResponseShape(t *testing.T) {
	srv, _ := newTestServer(t, 60)

	rr := do(t, srv, http.MethodPost, "/ledger/expense/3", `{"date":"2024-03-09","amount":19.999,"category":" Alimentación "}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	if loc := rr.Header().Get("Location"); loc != "/ledger/expense/3/2024-03-09" {
		t.Errorf("Location = %q", loc)
	}
	got := decode[map[string]any](t, rr)
	if got["amount"] != 20.0 || got["category"] != "alimentación" || got["date"] != "2024-03-09" {
		t.Errorf("unexpected body %v", got)
	}

	rr = do(t, srv, http.MethodGet, "/ledger/expense/3/current-month", "")
	total := decode[map[string]any](t, rr)
	if total["month"] != "2024-03" || total["total"] != 20.0 {
		t.Errorf("unexpected current month %v", total)
	}
}

func TestGoals(t *testing.T) {
	srv, _ := newTestServer(t, 60)

	rr := do(t, srv, http.MethodPut, "/goals/expense/1", `{"month":"2024-01","value":"800"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	if got := decode[map[string]any](t, rr); got["month"] != "2024-01" || got["kind"] != "expense_goal" {
		t.Fatalf("unexpected goal %v", got)
	}

	for _, tt := range []struct {
		name   string
		target string
		body   string
		want   int
	}{
		{"negative value", "/goals/expense/1", `{"value":-1}`, http.StatusUnprocessableEntity},
		{"missing value", "/goals/expense/1", `{"month":"2024-02"}`, http.StatusUnprocessableEntity},
		{"bad month", "/goals/expense/1", `{"month":"feb","value":1}`, http.StatusUnprocessableEntity},
		{"income has no goal", "/goals/income/1", `{"value":1}`, http.StatusNotFound},
	} {
		t.Run(tt.name, func(t *testing.T) {
			if rr := do(t, srv, http.MethodPut, tt.target, tt.body); rr.Code != tt.want {
				t.Fatalf("status=%d, want %d, body=%s", rr.Code, tt.want, rr.Body.String())
			}
		})
	}

	rr = do(t, srv, http.MethodGet, "/goals/1/current", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("current status=%d", rr.Code)
	}
	type current struct {
		Kind string `json:"kind"`
		Goal *struct {
			Month string  `json:"month"`
			Value float64 `json:"value"`
		} `json:"goal"`
	}
	cur := decode[[]current](t, rr)
	if len(cur) != 3 {
		t.Fatalf("expected 3 goal kinds, got %+v", cur)
	}
	for _, c := range cur {
		switch c.Kind {
		case "expense_goal":
			if c.Goal == nil || c.Goal.Month != "2024-01" || c.Goal.Value != 800 {
				t.Errorf("expense goal should fall back to latest, got %+v", c.Goal)
			}
		default:
			if c.Goal != nil {
				t.Errorf("%s should be null, got %+v", c.Kind, c.Goal)
			}
		}
	}

	if rr := do(t, srv, http.MethodGet, "/goals/expense_goal/1", ""); len(decode[[]map[string]any](t, rr)) != 1 {
		t.Fatalf("list goals: %s", rr.Body.String())
	}
	if rr := do(t, srv, http.MethodDelete, "/goals/expense_goal/1/2024-01", ""); rr.Code != http.StatusNoContent {
		t.Fatalf("delete status=%d body=%s", rr.Code, rr.Body.String())
	}
	if rr := do(t, srv, http.MethodDelete, "/goals/expense_goal/1/2024-01", ""); rr.Code != http.StatusNotFound {
		t.Fatalf("second delete status=%d", rr.Code)
	}
}

func TestImport(t *testing.T) {
	srv, store := newTestServer(t, 60)

	rr := do(t, srv, http.MethodPost, "/import/4", `{"kind":"investment","rows":[
		{"date":"2024-01-02","amount":1000,"category":"Fondo de Inversión"},
		{"date":"2024-02-02","amount":"250,75","category":"acciones"}]}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	if got := decode[map[string]any](t, rr); got["count"] != 2.0 || got["batch_id"] == "" {
		t.Fatalf("unexpected result %v", got)
	}

	rr = do(t, srv, http.MethodPost, "/import/4", `{"kind":"investment","rows":[
		{"date":"2024-03-02","amount":10,"category":"cripto"},
		{"date":"2024-03-32","amount":10,"category":"cripto"},
		{"date":"2024-03-04","amount":-1,"category":"cripto"}]}`)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	body := decode[ErrorBody](t, rr)
	if len(body.Details) != 2 || body.Details[0].Row != 1 || body.Details[1].Row != 2 {
		t.Fatalf("unexpected details %+v", body.Details)
	}

	recs, _ := store.ListRecords(context.Background(), 4, core.KindInvestment)
	if len(recs) != 2 {
		t.Fatalf("rejected batch must not write, have %d records", len(recs))
	}

	if rr := do(t, srv, http.MethodPost, "/import/4", `{"kind":"loans","rows":[]}`); rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("unknown kind status=%d", rr.Code)
	}
}

func TestRateLimitOnlyMutations(t *testing.T) {
	srv, _ := newTestServer(t, 1)

	if rr := do(t, srv, http.MethodPost, "/ledger/income/1", `{"date":"2024-03-01","amount":1}`); rr.Code != http.StatusCreated {
		t.Fatalf("first POST status=%d", rr.Code)
	}
	for i := 0; i < 3; i++ {
		if rr := do(t, srv, http.MethodGet, "/ledger/income/1", ""); rr.Code != http.StatusOK {
			t.Fatalf("GET should not be limited, status=%d", rr.Code)
		}
	}
	rr := do(t, srv, http.MethodPost, "/ledger/income/1", `{"date":"2024-03-02","amount":1}`)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("second POST status=%d", rr.Code)
	}
	if body := decode[ErrorBody](t, rr); !strings.Contains(body.Error, "rate limit") {
		t.Fatalf("unexpected body %+v", body)
	}
}
