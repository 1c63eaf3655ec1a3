package server

import (
	"bufio"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toolgate-ai/toolgate/internal/event"
)

// readSSEEvent reads one "event:" / "data:" pair from the stream.
func readSSEEvent(t *testing.T, reader *bufio.Reader) (string, string) {
	t.Helper()

	var eventType, data string
	for {
		line, err := reader.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")

		switch {
		case strings.HasPrefix(line, "event: "):
			eventType = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		case line == "" && data != "":
			return eventType, data
		}
	}
}

func TestSSE_ConnectedEvent(t *testing.T) {
	s := newTestServer(t)

	ts := httptest.NewServer(s.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/event")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))
	assert.Equal(t, "no-cache", resp.Header.Get("Cache-Control"))

	reader := bufio.NewReader(resp.Body)
	eventType, data := readSSEEvent(t, reader)
	assert.Equal(t, "message", eventType)

	var se StreamEvent
	require.NoError(t, json.Unmarshal([]byte(data), &se))
	assert.Equal(t, event.EventType("server.connected"), se.Type)
}

func TestSSE_StreamsBusEvents(t *testing.T) {
	s := newTestServer(t)

	ts := httptest.NewServer(s.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/event")
	require.NoError(t, err)
	defer resp.Body.Close()

	reader := bufio.NewReader(resp.Body)

	// Consume the connected event first
	readSSEEvent(t, reader)

	// Give the handler time to subscribe before publishing
	time.Sleep(50 * time.Millisecond)

	event.Publish(event.Event{
		Type: event.StoreUpdated,
		Data: event.StoreUpdatedData{Path: "/tmp/tool_patterns.json", Rules: 3},
	})

	_, data := readSSEEvent(t, reader)

	var se struct {
		Type       string                 `json:"type"`
		Properties event.StoreUpdatedData `json:"properties"`
	}
	require.NoError(t, json.Unmarshal([]byte(data), &se))
	assert.Equal(t, string(event.StoreUpdated), se.Type)
	assert.Equal(t, 3, se.Properties.Rules)
}
