package sse

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/yungbote/studypilot-backend/internal/pkg/logger"
)

func TestNewStreamSetsHeaders(t *testing.T) {
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}

	rec := httptest.NewRecorder()
	stream, err := NewStream(rec, log)
	if err != nil {
		t.Fatalf("NewStream: %v", err)
	}
	if stream == nil {
		t.Fatalf("expected stream")
	}
	if got := rec.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Fatalf("Content-Type: want=%q got=%q", "text/event-stream", got)
	}
	if got := rec.Header().Get("Cache-Control"); got != "no-cache" {
		t.Fatalf("Cache-Control: want=%q got=%q", "no-cache", got)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status: want=%d got=%d", http.StatusOK, rec.Code)
	}
	if !rec.Flushed {
		t.Fatalf("expected headers to be flushed")
	}
}

func TestNewStreamRejectsNonFlusher(t *testing.T) {
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}

	if _, err := NewStream(&plainResponseWriter{header: make(http.Header)}, log); err == nil {
		t.Fatalf("expected error for writer without flush support")
	}
}

func TestStreamSendWritesFrame(t *testing.T) {
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}

	rec := httptest.NewRecorder()
	stream, err := NewStream(rec, log)
	if err != nil {
		t.Fatalf("NewStream: %v", err)
	}

	if err := stream.Send(EventContent, map[string]any{"delta": "hi"}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	body := rec.Body.String()
	if !strings.HasPrefix(body, "data: ") || !strings.HasSuffix(body, "\n\n") {
		t.Fatalf("frame framing wrong: %q", body)
	}

	var payload map[string]any
	raw := strings.TrimSuffix(strings.TrimPrefix(body, "data: "), "\n\n")
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		t.Fatalf("unmarshal frame: %v", err)
	}
	if payload["type"] != "content" {
		t.Fatalf("type: want=%q got=%v", "content", payload["type"])
	}
	if payload["delta"] != "hi" {
		t.Fatalf("delta: want=%q got=%v", "hi", payload["delta"])
	}
}

func TestStreamSendNilFields(t *testing.T) {
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}

	rec := httptest.NewRecorder()
	stream, err := NewStream(rec, log)
	if err != nil {
		t.Fatalf("NewStream: %v", err)
	}

	if err := stream.Send(EventComplete, nil); err != nil {
		t.Fatalf("Send: %v", err)
	}
	want := "data: {\"type\":\"complete\"}\n\n"
	if got := rec.Body.String(); got != want {
		t.Fatalf("frame: want=%q got=%q", want, got)
	}
}

func TestStreamSendAfterClose(t *testing.T) {
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}

	rec := httptest.NewRecorder()
	stream, err := NewStream(rec, log)
	if err != nil {
		t.Fatalf("NewStream: %v", err)
	}

	stream.Close()
	if err := stream.Send(EventContent, map[string]any{"delta": "late"}); err == nil {
		t.Fatalf("expected error sending on closed stream")
	}
	if got := rec.Body.String(); got != "" {
		t.Fatalf("expected no frames after close, got %q", got)
	}
}

func TestStreamSendError(t *testing.T) {
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}

	rec := httptest.NewRecorder()
	stream, err := NewStream(rec, log)
	if err != nil {
		t.Fatalf("NewStream: %v", err)
	}

	stream.SendError("model unavailable")
	want := "data: {\"error\":\"model unavailable\",\"type\":\"error\"}\n\n"
	if got := rec.Body.String(); got != want {
		t.Fatalf("frame: want=%q got=%q", want, got)
	}
}

// plainResponseWriter implements http.ResponseWriter without http.Flusher.
type plainResponseWriter struct {
	header http.Header
}

func (w *plainResponseWriter) Header() http.Header       { return w.header }
func (w *plainResponseWriter) Write(b []byte) (int, error) { return len(b), nil }
func (w *plainResponseWriter) WriteHeader(int)           {}
