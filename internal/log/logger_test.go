package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newBufferLogger(buf *bytes.Buffer, component string) *Logger {
	return New(Config{
		Component: component,
		Handler:   slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}),
	})
}

func TestLoggerStampsComponent(t *testing.T) {
	var buf bytes.Buffer
	l := newBufferLogger(&buf, ComponentStore)

	l.InfoContext(context.Background(), "Transaction created", FieldTxID, "abc")
	out := buf.String()
	if !strings.Contains(out, "component=store") || !strings.Contains(out, "transaction_id=abc") {
		t.Fatalf("unexpected output: %s", out)
	}

	buf.Reset()
	l.WithComponent(ComponentInsights).Warn("fallback")
	if !strings.Contains(buf.String(), "component=insights") {
		t.Fatalf("expected insights component, got %s", buf.String())
	}
}

func TestLogFields(t *testing.T) {
	f := NewFields().WithOperation(OpSave).WithError(errors.New("boom")).WithError(nil)
	if f[FieldOperation] != OpSave || f[FieldError] != "boom" {
		t.Fatalf("unexpected fields %v", f)
	}
	if got := len(f.ToSlice()); got != 4 {
		t.Fatalf("expected 4 slice entries, got %d", got)
	}
}

func TestMiddlewareInjectsLogger(t *testing.T) {
	var buf bytes.Buffer
	l := newBufferLogger(&buf, ComponentHTTP)

	h := Middleware(l, func(*http.Request) string { return "req_1" })(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		FromContext(r.Context()).Info("inside handler")
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if !strings.Contains(buf.String(), "request_id=req_1") {
		t.Fatalf("expected request id in output: %s", buf.String())
	}
}

func TestFromContextDefault(t *testing.T) {
	if FromContext(context.Background()).component != "unknown" {
		t.Fatal("expected fallback logger")
	}
}
