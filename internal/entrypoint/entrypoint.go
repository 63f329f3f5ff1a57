package entrypoint

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/shelfsync/internal/config"
	http_controllers "github.com/mrlokans/shelfsync/internal/http"
	"github.com/mrlokans/shelfsync/internal/logging"
	"github.com/mrlokans/shelfsync/internal/scheduler"
	"github.com/mrlokans/shelfsync/internal/tasks"
)

type ShutdownFunc func(ctx context.Context)

func Serve(router *gin.Engine, cfg *config.Config, onShutdown ShutdownFunc) {
	timeout := time.Duration(cfg.Global.ShutdownTimeoutInSeconds) * time.Second

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler: router,
	}

	go func() {
		log.Printf("Starting server at %s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Printf("Shutdown Server, waiting %v before killing\n", timeout)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if onShutdown != nil {
		onShutdown(ctx)
	}

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server Shutdown:", err)
	}

	log.Println("Server exiting")
}

func Run(cfg *config.Config, version string) {
	logCloser := logging.Setup(cfg.Logging)
	defer logCloser.Close()

	log.Printf("Starting shelfsync v%s", version)

	app, err := NewApp(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.Printf("Error closing database: %v", err)
		}
	}()

	if _, err := app.SeedServers(context.Background(), cfg.Sync.ConfigFile); err != nil {
		log.Fatalf("Failed to load servers: %v", err)
	}

	// Runs left open by a previous process can never complete.
	if closed, err := app.Runs.AbandonStaleRuns(context.Background(), time.Now()); err != nil {
		log.Printf("WARNING: failed to close interrupted sync runs: %v", err)
	} else if closed > 0 {
		log.Printf("Closed %d sync runs interrupted by the previous shutdown", closed)
	}

	var taskClient *tasks.Client
	var taskCtxCancel context.CancelFunc
	if cfg.Tasks.Enabled {
		taskClient, err = tasks.NewClient(cfg.Tasks.DatabasePath, tasks.FromAppConfig(cfg.Tasks))
		if err != nil {
			log.Fatalf("Failed to initialize task queue: %v", err)
		}
		defer func() {
			if err := taskClient.Close(); err != nil {
				log.Printf("Error closing task client: %v", err)
			}
		}()

		taskClient.Register(
			tasks.NewSyncCycleQueue(app.Runner),
			tasks.NewHousekeepingQueue(tasks.Housekeeper{
				Audit:    app.Audit,
				Runs:     app.Runs,
				Reporter: app.Audit,
			}),
		)

		var taskCtx context.Context
		taskCtx, taskCtxCancel = context.WithCancel(context.Background())
		taskClient.Start(taskCtx)
	}

	var syncScheduler *scheduler.SyncScheduler
	if cfg.Sync.Enabled {
		var queue scheduler.TaskQueue
		if taskClient != nil {
			queue = taskClient
		}
		syncScheduler = scheduler.NewSyncScheduler(app.Runner, queue, scheduler.Options{
			Schedule:           cfg.Sync.Schedule,
			AuditRetentionDays: cfg.Audit.RetentionDays,
		})
		if err := syncScheduler.Start(context.Background()); err != nil {
			log.Fatalf("Failed to start sync scheduler: %v", err)
		}
	} else {
		log.Printf("Periodic sync disabled (SYNC_ENABLED=false)")
	}

	routerCfg := http_controllers.RouterConfig{
		Database: app.DB,
		Reading:  app.Reading,
		Sync:     app.Runner,
		Runs:     app.Runs,
		Servers:  app.Servers,
		Audit:    app.Audit,
		Version:  version,
	}
	if taskClient != nil {
		routerCfg.Tasks = taskClient
	}
	if cfg.Sync.ManualLimit > 0 {
		limiter := http_controllers.NewRateLimiter(http_controllers.RateLimitConfig{
			Limit:  cfg.Sync.ManualLimit,
			Window: cfg.Sync.ManualWindow,
		})
		defer limiter.Stop()
		routerCfg.SyncLimiter = limiter
	}

	router := http_controllers.NewRouter(routerCfg)

	onShutdown := func(ctx context.Context) {
		if syncScheduler != nil {
			syncScheduler.Stop()
		}
		if taskClient != nil && taskCtxCancel != nil {
			taskClient.Stop(ctx)
			taskCtxCancel()
		}
	}

	Serve(router, cfg, onShutdown)
}
