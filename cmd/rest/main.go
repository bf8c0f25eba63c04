package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"meeting-agent-be/internal/bootstrap"
	"meeting-agent-be/internal/config"
	"meeting-agent-be/internal/model"
	"meeting-agent-be/internal/pkg/logger"
	"meeting-agent-be/internal/server"
	"meeting-agent-be/internal/tracer"
	"meeting-agent-be/pkg/database"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

func main() {
	// 1. Load Configuration
	cfg := config.Load()
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")
	defer sysLogger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 2. Tracer (no-op unless OTEL_ENABLED=true)
	shutdownTracer := tracer.InitTracer(sysLogger)
	defer shutdownTracer(context.Background())

	// 3. Database is optional; without it artifacts stay in memory
	var gormDB *gorm.DB
	if cfg.Database.Connection != "" {
		db, err := database.NewGormDBFromDSN(cfg.Database.Connection, cfg.App.Environment != "production")
		if err != nil {
			log.Panicf("Unable to connect to GORM DB: %v", err)
		}
		if cfg.Database.AutoMigrate {
			if err := database.Migrate(db, &model.Artifact{}, &model.ReferenceItem{}); err != nil {
				log.Panicf("Migration failed: %v", err)
			}
		}
		gormDB = db
	}

	// 4. Bootstrap Dependencies (Container)
	container, err := bootstrap.NewContainer(gormDB, cfg, sysLogger)
	if err != nil {
		log.Fatalf("Bootstrap failed: %v", err)
	}
	defer container.Close()

	// 5. Supervise background loops and the server; the first failure stops all
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		container.Hub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		container.Reference.Run(gctx)
		return nil
	})
	g.Go(func() error {
		return container.Dispatcher.Run(gctx, container.Bus)
	})
	g.Go(func() error {
		return container.Router.Run(gctx, container.Bus)
	})
	g.Go(func() error {
		return container.Sessions.Run(gctx)
	})
	if container.Relay != nil {
		if err := container.Relay.Start(gctx); err != nil {
			sysLogger.Warn("MAIN", "Announcement relay not started", map[string]interface{}{"error": err.Error()})
		}
	}

	// 6. Run Server
	srv := server.New(cfg, container)
	g.Go(func() error {
		return srv.Run(gctx)
	})

	if err := g.Wait(); err != nil {
		sysLogger.Error("MAIN", "Stopped with error", map[string]interface{}{"error": err.Error()})
	}
	container.Dispatcher.Wait()
	sysLogger.Info("MAIN", "Shutdown complete", nil)
}
