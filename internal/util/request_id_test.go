package util

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestWithRequestIDPropagatesIncomingHeader(t *testing.T) {
	const incoming = "req-incoming-123"
	handler := WithRequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := RequestIDFromRequest(r); got != incoming {
			t.Fatalf("request id in context = %q, want %q", got, incoming)
		}
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/patients", nil)
	req.Header.Set(RequestIDHeader, incoming)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get(RequestIDHeader); got != incoming {
		t.Fatalf("response request id = %q, want %q", got, incoming)
	}
}

func TestWithRequestIDReplacesMissingOrOversized(t *testing.T) {
	for name, incoming := range map[string]string{
		"missing":   "",
		"oversized": strings.Repeat("x", maxRequestIDLen+1),
	} {
		t.Run(name, func(t *testing.T) {
			var seen string
			handler := WithRequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = RequestIDFromRequest(r)
			}))
			req := httptest.NewRequest(http.MethodGet, "/api/chat", nil)
			if incoming != "" {
				req.Header.Set(RequestIDHeader, incoming)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if seen == "" || seen == incoming {
				t.Fatalf("expected a generated request id, got %q", seen)
			}
			if got := rec.Header().Get(RequestIDHeader); got != seen {
				t.Fatalf("response header %q does not match context id %q", got, seen)
			}
		})
	}
}

func TestRequestIDFromRequestNil(t *testing.T) {
	if got := RequestIDFromRequest(nil); got != "" {
		t.Fatalf("expected empty id for nil request, got %q", got)
	}
}
