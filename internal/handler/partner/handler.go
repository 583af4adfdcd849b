package partner

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hamdamapp/backend/internal/model/event"
	partnerService "github.com/hamdamapp/backend/internal/service/partner"
	"github.com/hamdamapp/backend/pkg/utils"
)

// Handler exposes the partner event endpoints: publish, catch-up pull,
// acknowledgement, and the WebSocket push subscription.
type Handler struct {
	bus *partnerService.Bus
	ws  *WebSocketHandler
}

// New creates the partner handler.
func New(bus *partnerService.Bus, ws *WebSocketHandler) *Handler {
	return &Handler{bus: bus, ws: ws}
}

// RegisterRoutes mounts the partner routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/partner", func(r chi.Router) {
		r.Post("/events", h.handlePublish)
		r.Get("/events", h.handleBacklog)
		r.Post("/events/{eventID}/ack", h.handleAck)
		r.Get("/ws", h.ws.handleWebSocket)
	})
}

func (h *Handler) handlePublish(w http.ResponseWriter, r *http.Request) {
	senderID, ok := userID(w, r)
	if !ok {
		return
	}

	var payload struct {
		Type    event.Type      `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ev, err := h.bus.Publish(r.Context(), senderID, payload.Type, payload.Payload)
	switch {
	case errors.Is(err, partnerService.ErrUnknownEventType):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, partnerService.ErrNoPartnerLinked):
		utils.RespondError(w, http.StatusPreconditionFailed, err.Error())
		return
	case err != nil:
		// Publish is atomic; the sender may simply retry.
		utils.RespondError(w, http.StatusServiceUnavailable, "publish failed, please retry")
		return
	}

	utils.RespondJSON(w, http.StatusCreated, ev)
}

func (h *Handler) handleBacklog(w http.ResponseWriter, r *http.Request) {
	receiverID, ok := userID(w, r)
	if !ok {
		return
	}

	events, err := h.bus.Backlog(r.Context(), receiverID)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to load events")
		return
	}
	if events == nil {
		events = []event.PartnerEvent{}
	}
	utils.RespondJSON(w, http.StatusOK, events)
}

func (h *Handler) handleAck(w http.ResponseWriter, r *http.Request) {
	receiverID, ok := userID(w, r)
	if !ok {
		return
	}

	eventID := chi.URLParam(r, "eventID")
	if err := h.bus.Acknowledge(r.Context(), receiverID, eventID); err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to acknowledge event")
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "acknowledged"})
}

// userID resolves the caller or writes the error response.
func userID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.Header.Get("X-User-ID")
	if id == "" {
		utils.RespondError(w, http.StatusUnauthorized, "X-User-ID header is required")
		return "", false
	}
	return id, true
}
