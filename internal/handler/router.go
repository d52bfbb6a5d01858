package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zhouzirui/tavern-relay/internal/handler/chat"
	"github.com/zhouzirui/tavern-relay/internal/handler/stream"
	"github.com/zhouzirui/tavern-relay/internal/handler/webhook"
	middlewarePkg "github.com/zhouzirui/tavern-relay/internal/middleware"
	chatService "github.com/zhouzirui/tavern-relay/internal/service/chat"
	"github.com/zhouzirui/tavern-relay/internal/service/feed"
	"github.com/zhouzirui/tavern-relay/pkg/utils"
)

// NewRouter wires HTTP routes to the relay and the conversation registry.
func NewRouter(relay webhook.Relay, chatSvc *chatService.Service, hub *feed.Hub, webhookSecret string) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewarePkg.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondStatus(w, http.StatusOK, "running")
	})

	webhook.New(relay, webhookSecret).RegisterRoutes(r)
	stream.New(hub, chatSvc).RegisterRoutes(r)

	r.Route("/api", func(api chi.Router) {
		chat.New(chatSvc).RegisterRoutes(api)
	})

	return r
}
