package main

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"

	"legal-discovery-be/internal/bootstrap"
	"legal-discovery-be/internal/config"
	"legal-discovery-be/internal/server"
	"legal-discovery-be/internal/tracer"
	"legal-discovery-be/pkg/database"

	"golang.org/x/sync/errgroup"
)

func main() {
	// 1. Load Configuration
	cfg := config.Load()

	// 2. Initialize Tracer (no-op unless OTEL_ENABLED=true)
	shutdownTracer := tracer.InitTracer(cfg.App.ServiceName)
	defer shutdownTracer(context.Background())

	// 3. Initialize Database
	gormDB, err := database.NewGormDBFromDSN(cfg.Database.Connection)
	if err != nil {
		log.Panicf("Unable to connect to GORM DB: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 4. Bootstrap Dependencies (Container)
	container, err := bootstrap.NewContainer(ctx, gormDB, cfg)
	if err != nil {
		log.Panicf("Unable to bootstrap: %v", err)
	}
	defer func() {
		if err := container.Close(); err != nil {
			log.Printf("Shutdown: %v", err)
		}
	}()

	// 5. Start Background Services
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		container.FeedHub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		log.Println("Background: Starting Audit Relay...")
		return container.AuditRelayService.Consume(gctx)
	})
	g.Go(func() error {
		log.Println("Background: Starting Corpus Ingest Consumer...")
		return container.CorpusService.Consume(gctx)
	})

	if container.IntegrityAlerts != nil {
		g.Go(func() error {
			if err := container.IntegrityAlerts.Start(gctx); err != nil {
				log.Printf("Background: integrity alerts disabled: %v", err)
			}
			return nil
		})
	}

	// 6. Run Server
	srv := server.New(cfg, container)
	g.Go(func() error {
		<-gctx.Done()
		return srv.Shutdown()
	})
	g.Go(srv.Run)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Printf("Exited: %v", err)
	}
}
