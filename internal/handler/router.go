package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/zhouzirui/agora/backend/internal/config"
	"github.com/zhouzirui/agora/backend/internal/handler/conversation"
	participantHandler "github.com/zhouzirui/agora/backend/internal/handler/participant"
	"github.com/zhouzirui/agora/backend/internal/handler/stream"
	"github.com/zhouzirui/agora/backend/internal/metrics"
	middlewarePkg "github.com/zhouzirui/agora/backend/internal/middleware"
	"github.com/zhouzirui/agora/backend/internal/model/participant"
	chatService "github.com/zhouzirui/agora/backend/internal/service/chat"
	"github.com/zhouzirui/agora/backend/pkg/utils"
)

// Dependencies 路由所需的核心服务
type Dependencies struct {
	Participants     participant.Store
	Chat             *chatService.Service
	Server           config.ServerConfig
	MaxMessageLength int
	// Metrics and Gatherer are optional; /metrics is only mounted with a Gatherer.
	Metrics  *metrics.Collector
	Gatherer prometheus.Gatherer
	Logger   *zap.Logger
}

// NewRouter wires HTTP routes to core services. ctx bounds background work such as rate limiter cleanup.
func NewRouter(ctx context.Context, deps Dependencies) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var recorder middlewarePkg.RequestRecorder
	if deps.Metrics != nil {
		recorder = deps.Metrics
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middlewarePkg.RequestLogger(logger.Named("http"), recorder))
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS(deps.Server.CORSOrigins))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	// Create handlers
	conversationHandler := conversation.New(deps.Chat, deps.MaxMessageLength, logger)
	streamHandler := stream.New(deps.Chat, deps.MaxMessageLength, logger)

	r.Route("/api", func(api chi.Router) {
		participantHandler.New(deps.Participants).RegisterRoutes(api)
		conversationHandler.RegisterRoutes(api)

		// 提问会触发多次模型调用, 单独限流
		api.Group(func(asks chi.Router) {
			if deps.Server.AskRPS > 0 {
				asks.Use(middlewarePkg.RateLimiter(ctx, deps.Server.AskRPS, deps.Server.AskBurst, logger))
			}
			conversationHandler.RegisterAskRoutes(asks)
			streamHandler.RegisterRoutes(asks)
		})
	})

	return r
}
