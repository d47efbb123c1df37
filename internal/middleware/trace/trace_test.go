package trace

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	applog "homeledger/internal/log"
)

func newTestMiddleware() *Middleware {
	logger := applog.New(applog.Config{Handler: slog.NewTextHandler(io.Discard, nil)})
	return NewMiddleware(logger, func(*http.Request) string { return "10.0.0.1" })
}

func TestMiddleware_RequestID(t *testing.T) {
	existing := uuid.NewString()
	tests := []struct {
		name     string
		incoming string
		keep     bool
	}{
		{"generated when absent", "", false},
		{"valid uuid reused", existing, true},
		{"garbage replaced", "not-a-uuid", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestMiddleware()
			var seen string
			var hasLogger bool
			h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = GetRequestID(r.Context())
				_, hasLogger = r.Context().Value(applog.LoggerContextKey).(*applog.Logger)
			}))

			req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
			if tt.incoming != "" {
				req.Header.Set(RequestIDHeader, tt.incoming)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			header := rec.Header().Get(RequestIDHeader)
			if header != seen {
				t.Fatalf("header %q != context id %q", header, seen)
			}
			if _, err := uuid.Parse(seen); err != nil {
				t.Fatalf("request id %q is not a uuid", seen)
			}
			if tt.keep && seen != tt.incoming {
				t.Errorf("request id = %q, want %q", seen, tt.incoming)
			}
			if !tt.keep && seen == tt.incoming {
				t.Errorf("request id %q should have been replaced", seen)
			}
			if !hasLogger {
				t.Error("request-scoped logger missing from context")
			}
		})
	}
}

func TestMiddleware_Metrics(t *testing.T) {
	m := newTestMiddleware()
	statuses := []int{http.StatusOK, http.StatusInternalServerError, http.StatusServiceUnavailable, http.StatusNotFound}
	for _, code := range statuses {
		h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(code)
		}))
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	}

	got := m.GetMetrics()
	if got.TotalRequests != 4 {
		t.Errorf("TotalRequests = %d, want 4", got.TotalRequests)
	}
	if got.ServerErrors != 2 {
		t.Errorf("ServerErrors = %d, want 2", got.ServerErrors)
	}
}

func TestGetRequestID_Missing(t *testing.T) {
	if id := GetRequestID(httptest.NewRequest(http.MethodGet, "/", nil).Context()); id != "" {
		t.Errorf("GetRequestID() = %q, want empty", id)
	}
}
