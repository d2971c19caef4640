package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zhouzirui/persona-lab/backend/internal/handler/chat"
	"github.com/zhouzirui/persona-lab/backend/internal/handler/generator"
	"github.com/zhouzirui/persona-lab/backend/internal/handler/persona"
	"github.com/zhouzirui/persona-lab/backend/internal/handler/stream"
	middlewarePkg "github.com/zhouzirui/persona-lab/backend/internal/middleware"
	personaModel "github.com/zhouzirui/persona-lab/backend/internal/model/persona"
	aiService "github.com/zhouzirui/persona-lab/backend/internal/service/ai"
	chatService "github.com/zhouzirui/persona-lab/backend/internal/service/chat"
	generatorService "github.com/zhouzirui/persona-lab/backend/internal/service/generator"
	"github.com/zhouzirui/persona-lab/backend/pkg/utils"
)

// Services groups the dependencies the HTTP layer needs.
type Services struct {
	Personas       personaModel.Store
	AI             *aiService.Service
	Generator      *generatorService.Service
	Chat           *chatService.Service
	RequestTimeout time.Duration
}

// NewRouter wires HTTP routes to core services.
func NewRouter(svc Services) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(api chi.Router) {
		api.Get("/models", func(w http.ResponseWriter, r *http.Request) {
			utils.RespondJSON(w, http.StatusOK, map[string]any{
				"default": svc.AI.DefaultModel(),
				"models":  svc.AI.Models(),
			})
		})

		persona.New(svc.Personas).RegisterRoutes(api)
		generator.New(svc.Generator, svc.RequestTimeout).RegisterRoutes(api)
		chat.New(svc.Chat, svc.RequestTimeout).RegisterRoutes(api)

		// Streaming replies are bounded by the client connection, not RequestTimeout.
		stream.New(svc.Chat).RegisterRoutes(api)
		stream.NewWebSocketHandler(svc.Chat).RegisterWebSocketRoutes(api)
	})

	return r
}
