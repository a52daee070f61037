package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/coursebuilder/backend/internal/db"
	"github.com/coursebuilder/backend/internal/logger"
	"github.com/coursebuilder/backend/internal/observability"
)

type App struct {
	Log          *logger.Logger
	DB           *gorm.DB
	Router       *gin.Engine
	Cfg          Config
	Clients      Clients
	Repos        Repos
	Services     Services
	cancel       context.CancelFunc
	otelShutdown func(context.Context) error
}

func New() (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("Loading environment variables...")
	cfg := LoadConfig(log)

	otelShutdown := observability.InitOTel(context.Background(), log, observability.OtelConfig{
		ServiceName: "coursebuilder",
		Environment: logMode,
	})

	pg, err := db.NewPostgresService(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	if err := pg.AutoMigrateAll(); err != nil {
		log.Sync()
		return nil, fmt.Errorf("postgres automigrate: %w", err)
	}
	theDB := pg.DB()

	clientset, err := wireClients(log, cfg)
	if err != nil {
		log.Sync()
		return nil, err
	}

	reposet := wireRepos(theDB, log)

	serviceset, err := wireServices(theDB, log, cfg, reposet, clientset)
	if err != nil {
		clientset.Close()
		log.Sync()
		return nil, err
	}

	handlerset := wireHandlers(log, cfg, serviceset)
	middlewareset := wireMiddleware(log, serviceset)
	router := wireRouter(cfg, handlerset, middlewareset)

	return &App{
		Log:          log,
		DB:           theDB,
		Router:       router,
		Cfg:          cfg,
		Clients:      clientset,
		Repos:        reposet,
		Services:     serviceset,
		otelShutdown: otelShutdown,
	}, nil
}

// Start launches the background job worker. HTTP serving is separate so
// tests can exercise the router without spinning up the poller.
func (a *App) Start() {
	if a == nil || a.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	if a.Services.JobWorker != nil {
		a.Services.JobWorker.Start(ctx)
	}
}

func (a *App) Run(addr string) error {
	if a == nil || a.Router == nil {
		return fmt.Errorf("app not initialized")
	}
	return a.Router.Run(addr)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	a.Clients.Close()
	if a.otelShutdown != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.otelShutdown(shutdownCtx); err != nil && a.Log != nil {
			a.Log.Warn("Otel shutdown failed", "error", err)
		}
		cancel()
		a.otelShutdown = nil
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
