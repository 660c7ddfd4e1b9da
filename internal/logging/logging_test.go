package logging

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
)

func TestLBeforeInit(t *testing.T) {
	globalLogger = nil
	if L() == nil {
		t.Fatal("L should never return nil")
	}
}

func TestInitAndSetLevel(t *testing.T) {
	if err := Init(Config{Level: "warn", Format: "console"}); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	defer func() { globalLogger = nil }()

	if L().Core().Enabled(zap.InfoLevel) {
		t.Error("Info should be disabled at warn level")
	}

	SetLevel("debug")
	if !L().Core().Enabled(zap.DebugLevel) {
		t.Error("Debug should be enabled after SetLevel")
	}

	SetLevel("bogus")
	if !L().Core().Enabled(zap.DebugLevel) {
		t.Error("An invalid level should be ignored")
	}
}

func TestWithContext(t *testing.T) {
	logger := zap.NewExample()
	ctx := NewContext(context.Background(), logger)

	if WithContext(ctx) != logger {
		t.Error("WithContext should return the logger stored in the context")
	}
	if WithContext(context.Background()) == nil {
		t.Error("WithContext should fall back to the global logger")
	}
}

func TestMiddleware(t *testing.T) {
	var sawLogger bool
	handler := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, sawLogger = r.Context().Value(loggerKey).(*zap.Logger)
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/mcp", nil)
	req.Header.Set("X-Request-ID", "abc")
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusTeapot {
		t.Errorf("Expected status %d, got %d", http.StatusTeapot, rec.Code)
	}
	if rec.Header().Get("X-Request-ID") != "abc" {
		t.Errorf("Expected request ID to be echoed, got %q", rec.Header().Get("X-Request-ID"))
	}
	if !sawLogger {
		t.Error("Handler should see a request-scoped logger")
	}
}
