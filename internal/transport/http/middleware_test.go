package http

import (
	"bytes"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(&buf, "", 0)

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	rec := httptest.NewRecorder()
	RequestLogger(next, logger).ServeHTTP(rec,
		httptest.NewRequest(http.MethodGet, "/units/a1/timeline", nil))

	if rec.Code != http.StatusTeapot {
		t.Fatalf("status not passed through, got %d", rec.Code)
	}
	line := buf.String()
	if !strings.Contains(line, "method=GET") || !strings.Contains(line, "path=/units/a1/timeline") {
		t.Fatalf("missing request details: %q", line)
	}
	if !strings.Contains(line, "status=418") {
		t.Fatalf("missing status: %q", line)
	}
}
