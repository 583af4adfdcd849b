package chat

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	model "github.com/hamdamapp/backend/internal/model/chat"
	chatService "github.com/hamdamapp/backend/internal/service/chat"
	"github.com/hamdamapp/backend/pkg/utils"
)

// Handler exposes the conversation endpoints: prompt submission, history
// listing and clearing, and cancellation of an in-flight response.
type Handler struct {
	controller *chatService.Controller
	history    chatService.History
}

// New creates the chat handler.
func New(controller *chatService.Controller, history chatService.History) *Handler {
	return &Handler{controller: controller, history: history}
}

// RegisterRoutes mounts the chat routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/chat/{channel}", func(r chi.Router) {
		r.Post("/messages", h.handleSubmit)
		r.Get("/messages", h.handleList)
		r.Delete("/messages", h.handleClear)
		r.Post("/cancel", h.handleCancel)
	})
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ownerID, channel, ok := identity(w, r)
	if !ok {
		return
	}

	var payload struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	session, err := h.controller.Submit(r.Context(), ownerID, channel, payload.Message)
	switch {
	case errors.Is(err, chatService.ErrEmptyPrompt):
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, chatService.ErrSessionActive):
		utils.RespondError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		utils.RespondError(w, http.StatusInternalServerError, "failed to start session")
		return
	}

	utils.RespondJSON(w, http.StatusAccepted, map[string]string{"sessionId": session.ID()})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ownerID, channel, ok := identity(w, r)
	if !ok {
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			utils.RespondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	turns, err := h.history.ListTurns(r.Context(), ownerID, channel, limit)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	if turns == nil {
		turns = []model.Turn{}
	}
	utils.RespondJSON(w, http.StatusOK, turns)
}

func (h *Handler) handleClear(w http.ResponseWriter, r *http.Request) {
	ownerID, channel, ok := identity(w, r)
	if !ok {
		return
	}

	if err := h.history.ClearTurns(r.Context(), ownerID, channel); err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to clear history")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	ownerID, channel, ok := identity(w, r)
	if !ok {
		return
	}

	if err := h.controller.Cancel(ownerID, channel); err != nil {
		utils.RespondError(w, http.StatusNotFound, err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusAccepted, map[string]string{"status": "cancelling"})
}

// identity resolves the caller and channel or writes the error response.
func identity(w http.ResponseWriter, r *http.Request) (string, model.Channel, bool) {
	ownerID := r.Header.Get("X-User-ID")
	if ownerID == "" {
		utils.RespondError(w, http.StatusUnauthorized, "X-User-ID header is required")
		return "", "", false
	}

	channel := model.Channel(chi.URLParam(r, "channel"))
	if !channel.Valid() {
		utils.RespondError(w, http.StatusBadRequest, "unknown channel")
		return "", "", false
	}
	return ownerID, channel, true
}
