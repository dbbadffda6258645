// ABOUTME: Server-Sent Events stream of one agent's conversation changes
// ABOUTME: Lets live views follow messages, typing status and resets without polling

package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/2389/persona-studio/internal/conversation"
	"github.com/2389/persona-studio/internal/store"
)

// keepaliveInterval is how often an idle stream sends a comment line.
const keepaliveInterval = 15 * time.Second

// readyEvent is the first event on every stream.
type readyEvent struct {
	AgentID        string `json:"agent_id"`
	ConversationID string `json:"conversation_id"`
	Typing         bool   `json:"typing"`
}

// handleEvents handles GET /api/agents/{id}/events.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	// Check streaming support before subscribing (fail fast)
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.logger.Error("streaming not supported")
		s.sendJSONError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	// Subscribe before reading the conversation so no change is missed
	// between the snapshot and the stream.
	ctx := r.Context()
	events := s.svc.Subscribe(ctx, id)

	conv, err := s.svc.Conversation(ctx, id)
	if err != nil {
		s.sendServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	s.writeSSEEvent(w, "ready", readyEvent{
		AgentID:        id,
		ConversationID: conv.ID,
		Typing:         conv.Status == store.StatusAwaitingReply,
	})
	flusher.Flush()

	keepalive := time.NewTicker(keepaliveInterval)
	defer keepalive.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-keepalive.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()

		case ev, ok := <-events:
			if !ok {
				return
			}
			s.writeSSEEvent(w, string(ev.Type), ev)
			flusher.Flush()

			if ev.Type == conversation.EventAgentDeleted {
				return
			}
		}
	}
}

// writeSSEEvent writes a single named SSE event with a JSON payload.
func (s *Server) writeSSEEvent(w http.ResponseWriter, event string, data any) {
	dataJSON, err := json.Marshal(data)
	if err != nil {
		s.logger.Error("failed to marshal SSE data", "error", err)
		return
	}

	fmt.Fprintf(w, "event: %s\n", event)
	fmt.Fprintf(w, "data: %s\n\n", dataJSON)
}
