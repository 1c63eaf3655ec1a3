package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/toolgate-ai/toolgate/internal/event"
	"github.com/toolgate-ai/toolgate/internal/logging"
)

// StreamEvent is the wire format for streamed events.
type StreamEvent struct {
	Type       event.EventType `json:"type"`
	Properties any             `json:"properties"`
}

// SSEHeartbeatInterval is how often an idle stream emits a comment line to
// keep intermediaries from closing the connection.
const SSEHeartbeatInterval = 30 * time.Second

// sseWriter emits server-sent events over a response writer.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	rc      *http.ResponseController
}

func newSSEWriter(w http.ResponseWriter) (*sseWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming not supported")
	}
	return &sseWriter{
		w:       w,
		flusher: flusher,
		rc:      http.NewResponseController(w),
	}, nil
}

func (s *sseWriter) writeEvent(eventType string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", eventType, payload); err != nil {
		return err
	}
	s.flush()
	return nil
}

func (s *sseWriter) writeHeartbeat() {
	fmt.Fprintf(s.w, ": heartbeat\n\n")
	s.flush()
}

// flush pushes buffered bytes to the client. The ResponseController path
// reaches through middleware wrappers; the plain Flusher is the fallback.
func (s *sseWriter) flush() {
	if err := s.rc.Flush(); err != nil {
		s.flusher.Flush()
	}
}

// allEvents handles the /event SSE endpoint. Every bus event is streamed:
// approval prompts, tool lifecycle, turn progress, and store updates.
func (srv *Server) allEvents(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // nginx would otherwise buffer

	sse, err := newSSEWriter(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}

	w.WriteHeader(http.StatusOK)
	sse.flush()

	// Tell the client the stream is live before the first real event.
	if err := sse.writeEvent("message", StreamEvent{Type: "server.connected", Properties: map[string]any{}}); err != nil {
		return
	}

	// A slow client loses events rather than stalling the bus.
	events := make(chan event.Event, 10)
	unsub := event.SubscribeAll(func(e event.Event) {
		select {
		case events <- e:
		default:
			logging.Warn().
				Str("eventType", string(e.Type)).
				Msg("SSE event dropped: channel full")
		}
	})
	defer unsub()

	ticker := time.NewTicker(SSEHeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case e := <-events:
			if err := sse.writeEvent("message", StreamEvent{Type: e.Type, Properties: e.Data}); err != nil {
				return
			}
		case <-ticker.C:
			sse.writeHeartbeat()
		}
	}
}
