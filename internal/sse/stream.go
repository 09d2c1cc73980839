package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/yungbote/studypilot-backend/internal/pkg/logger"
)

// Event kinds for the per-request chat turn and assessment streams. Kinds are
// emitted in causal order; the stream always ends with complete or error.
const (
	EventChatCreated       = "chat_created"
	EventUploadingFiles    = "uploading_files"
	EventFilesUploaded     = "files_uploaded"
	EventMessageSaved      = "message_saved"
	EventStart             = "start"
	EventContent           = "content"
	EventThinking          = "thinking"
	EventToolCall          = "tool_call"
	EventQuestion          = "question"
	EventArtifactsCreating = "artifacts_creating"
	EventArtifactCreated   = "artifact_created"
	EventArtifactUpdated   = "artifact_updated"
	EventArtifactDeleted   = "artifact_deleted"
	EventChatTitleUpdated  = "chat_title_updated"
	EventMessageComplete   = "message_complete"
	EventMetadata          = "metadata"
	EventComplete          = "complete"
	EventError             = "error"
)

// Stream writes one request's events to the client as they happen, one
// `data: {"type": ..., ...}` frame per event, flushed immediately.
type Stream struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
	log     *logger.Logger
	closed  bool
}

func NewStream(w http.ResponseWriter, log *logger.Logger) (*Stream, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("response writer does not support streaming")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return &Stream{
		w:       w,
		flusher: flusher,
		log:     log.With("component", "SSEStream"),
	}, nil
}

// Send emits one event frame. Extra fields ride alongside "type" in the same
// JSON object.
func (s *Stream) Send(kind string, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("stream closed")
	}

	payload := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		payload[k] = v
	}
	payload["type"] = kind

	jsonBytes, err := json.Marshal(payload)
	if err != nil {
		s.log.Warn("Failed to marshal stream event", "kind", kind, "error", err)
		return err
	}

	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", jsonBytes); err != nil {
		s.closed = true
		return err
	}
	s.flusher.Flush()
	return nil
}

// SendError emits a terminal error frame. Write failures are swallowed; the
// client is likely gone.
func (s *Stream) SendError(message string) {
	_ = s.Send(EventError, map[string]any{"error": message})
}

// Close marks the stream finished. Frames sent after Close are rejected.
func (s *Stream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}
