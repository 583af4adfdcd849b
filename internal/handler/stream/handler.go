// Package stream relays in-progress assistant messages to the UI via
// Server-Sent Events.
package stream

import (
	"context"
	"fmt"
	"net/http"

	model "github.com/hamdamapp/backend/internal/model/chat"
	chatService "github.com/hamdamapp/backend/internal/service/chat"
	"github.com/hamdamapp/backend/pkg/utils"
)

// Handler relays streaming session snapshots over SSE.
type Handler struct {
	controller *chatService.Controller
}

// New creates a new stream handler.
func New(controller *chatService.Controller) *Handler {
	return &Handler{controller: controller}
}

// StreamResponse represents a streaming response chunk. Content always
// carries the full accumulated text so far, not a diff.
type StreamResponse struct {
	Event     string `json:"event"`
	Content   string `json:"content,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
	Finished  bool   `json:"finished,omitempty"`
	Error     string `json:"error,omitempty"`
}

// HandleStreamRequest streams the active session for the channel until it
// reaches a terminal state or the client disconnects.
func (h *Handler) HandleStreamRequest(ctx context.Context, w http.ResponseWriter, ownerID string, channel model.Channel) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return fmt.Errorf("streaming unsupported")
	}

	utils.SetupSSEHeaders(w)

	session, ok := h.controller.Active(ownerID, channel)
	if !ok {
		utils.SendSSEChunk(w, flusher, StreamResponse{Event: "error", Error: "no active session"})
		return chatService.ErrNoSession
	}

	send := func(event string, snap model.StreamState) {
		utils.SendSSEChunk(w, flusher, StreamResponse{
			Event:     event,
			SessionID: snap.SessionID,
			Content:   snap.AccumulatedText,
			Finished:  snap.IsComplete,
		})
	}

	send("snapshot", session.Snapshot())

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-session.Updated():
			send("delta", session.Snapshot())
		case <-session.Done():
			snap := session.Snapshot()
			if snap.IsErrored {
				utils.SendSSEChunk(w, flusher, StreamResponse{
					Event:     "error",
					SessionID: snap.SessionID,
					Content:   snap.AccumulatedText,
					Error:     "session aborted",
				})
				return nil
			}
			send("end", snap)
			return nil
		}
	}
}
