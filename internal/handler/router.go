package handler

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	chatHandler "github.com/hamdamapp/backend/internal/handler/chat"
	partnerHandler "github.com/hamdamapp/backend/internal/handler/partner"
	"github.com/hamdamapp/backend/internal/handler/stream"
	middlewarePkg "github.com/hamdamapp/backend/internal/middleware"
	chatModel "github.com/hamdamapp/backend/internal/model/chat"
	chatService "github.com/hamdamapp/backend/internal/service/chat"
	"github.com/hamdamapp/backend/pkg/utils"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(chatH *chatHandler.Handler, streamH *stream.Handler, partnerH *partnerHandler.Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	r.Route("/api", func(api chi.Router) {
		chatH.RegisterRoutes(api)
		partnerH.RegisterRoutes(api)

		// SSE relay for the in-progress assistant message.
		api.Get("/chat/{channel}/stream", func(w http.ResponseWriter, r *http.Request) {
			ownerID := r.Header.Get("X-User-ID")
			if ownerID == "" {
				ownerID = r.URL.Query().Get("user")
			}
			if ownerID == "" {
				utils.RespondError(w, http.StatusUnauthorized, "X-User-ID header is required")
				return
			}

			channel := chatModel.Channel(chi.URLParam(r, "channel"))
			if !channel.Valid() {
				utils.RespondError(w, http.StatusBadRequest, "unknown channel")
				return
			}

			if err := streamH.HandleStreamRequest(r.Context(), w, ownerID, channel); err != nil && err != chatService.ErrNoSession {
				log.Printf("[stream] error handling request: %v", err)
			}
		})
	})

	return r
}
