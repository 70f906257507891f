package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/zhouzirui/agora/backend/internal/config"
	"github.com/zhouzirui/agora/backend/internal/metrics"
	"github.com/zhouzirui/agora/backend/internal/model/participant"
	"github.com/zhouzirui/agora/backend/internal/orchestration"
	"github.com/zhouzirui/agora/backend/internal/service/ai"
	"github.com/zhouzirui/agora/backend/internal/service/chat"
)

// App holds the wired services shared by the server and the CLI.
type App struct {
	Roster       *participant.Registry
	Orchestrator *orchestration.Orchestrator
	Chat         *chat.Service
	Metrics      *metrics.Collector
	Registry     *prometheus.Registry

	closers []func() error
}

// New builds the application from cfg. gateway may be nil, in which case an Ark model is created
// from cfg.AI.
func New(ctx context.Context, cfg *config.Config, gateway ai.Gateway, logger *zap.Logger) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	roster, err := LoadRoster(cfg.Orchestration.RosterFile)
	if err != nil {
		return nil, err
	}
	logger.Info("roster loaded", zap.Int("participants", len(roster.List())))

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector("agora", reg, logger)

	if gateway == nil {
		chatModel, err := cfg.AI.NewChatModel(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create chat model: %w", err)
		}
		svc, err := ai.NewService(ctx, chatModel, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize AI service: %w", err)
		}
		gateway = svc
	}
	gateway = ai.Instrument(gateway, collector)

	runtimeCfg := cfg.Orchestration.Runtime(cfg.AI.StreamResponse)
	runtime, err := orchestration.NewRuntime(gateway, ManagerFactory(cfg.Orchestration.Manager, gateway, runtimeCfg, logger), runtimeCfg, collector, logger)
	if err != nil {
		return nil, err
	}
	orchestrator, err := orchestration.NewOrchestrator(runtime, roster, logger)
	if err != nil {
		return nil, err
	}

	app := &App{
		Roster:       roster,
		Orchestrator: orchestrator,
		Metrics:      collector,
		Registry:     reg,
	}

	store, err := app.openStore(ctx, cfg.Store, logger)
	if err != nil {
		return nil, err
	}
	app.Chat = chat.NewService(store, orchestrator, logger)
	return app, nil
}

// LoadRoster reads the participant roster from path, or the built-in roster when path is empty.
func LoadRoster(path string) (*participant.Registry, error) {
	items := participant.Seed()
	if path != "" {
		loaded, err := participant.LoadFile(path)
		if err != nil {
			return nil, err
		}
		items = loaded
	}
	return participant.NewRegistry(items)
}

// ManagerFactory picks the turn manager named by kind. Unknown kinds use the model manager.
func ManagerFactory(kind string, gateway ai.Gateway, cfg orchestration.Config, logger *zap.Logger) orchestration.ManagerFactory {
	if kind == config.ManagerRoundRobin {
		return orchestration.RoundRobinManagerFactory(cfg)
	}
	return orchestration.ModelManagerFactory(gateway, cfg, logger)
}

func (a *App) openStore(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (chat.Store, error) {
	if cfg.Backend != config.StoreRedis {
		logger.Info("using in-memory conversation store")
		return chat.NewMemoryStore(), nil
	}

	store, err := chat.OpenRedisStore(ctx, chat.RedisConfig{
		Addr:      cfg.RedisAddr,
		Password:  cfg.RedisPassword,
		DB:        cfg.RedisDB,
		KeyPrefix: cfg.KeyPrefix,
	})
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, store.Close)
	logger.Info("using redis conversation store", zap.String("addr", cfg.RedisAddr))
	return store, nil
}

// Close releases external connections.
func (a *App) Close() error {
	var errs []error
	for _, closeFn := range a.closers {
		if err := closeFn(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
