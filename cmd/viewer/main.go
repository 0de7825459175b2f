package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/kabina/kabinaview/internal/adapters/http"
	natsadapter "github.com/kabina/kabinaview/internal/adapters/nats"
	"github.com/kabina/kabinaview/internal/adapters/postgres"
	"github.com/kabina/kabinaview/internal/adapters/raster"
	"github.com/kabina/kabinaview/internal/adapters/sqlite"
	"github.com/kabina/kabinaview/internal/adapters/valkey"
	"github.com/kabina/kabinaview/internal/core/ports"
	"github.com/kabina/kabinaview/internal/core/usecases"
	"github.com/kabina/kabinaview/internal/pkg/config"
	"github.com/kabina/kabinaview/internal/pkg/logging"
	"github.com/kabina/kabinaview/internal/pkg/metrics"
	"github.com/kabina/kabinaview/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("kabinaview")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Structured logging
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	// Database: live dispatcher tables or a historical snapshot
	var (
		repo ports.ViewerRepository
		db   http.Pinger
	)
	switch cfg.Database.Driver {
	case "sqlite":
		sdb, err := sqlite.Open(ctx, cfg.Database.SQLitePath)
		if err != nil {
			log.Fatalf("database: %v", err)
		}
		defer sdb.Close()
		snapRepo := sqlite.NewViewerRepo(sdb)
		if taken, err := snapRepo.TakenAt(ctx); err == nil {
			slog.Info("serving snapshot", "taken_at", taken)
		}
		repo, db = snapRepo, sdb
	default:
		pdb, err := postgres.New(ctx, cfg.Database.DSN(), cfg.Database.MaxConns)
		if err != nil {
			log.Fatalf("database: %v", err)
		}
		defer pdb.Close()
		go reportPoolStats(ctx, pdb)
		repo, db = postgres.NewViewerRepo(pdb), pdb
	}

	// Cache
	var (
		cache       ports.CacheService
		cachePinger http.Pinger
	)
	if cfg.Valkey.Enabled {
		vc, err := valkey.New(cfg.Valkey.Addr, cfg.Valkey.Prefix)
		if err != nil {
			slog.Warn("valkey unavailable", "error", err)
		} else {
			defer vc.Close()
			cache, cachePinger = vc, vc
		}
	}

	// NATS
	var publisher ports.EventPublisher
	deps := &http.Dependencies{}
	if cfg.NATS.Enabled {
		pub, err := natsadapter.NewPublisher(cfg.NATS.URL, time.Duration(cfg.NATS.StreamMaxAge)*time.Hour)
		if err != nil {
			slog.Warn("nats unavailable", "error", err)
		} else {
			defer pub.Close()
			publisher = pub
			deps.NATS = pub.Conn()
		}
	}

	// Renderer
	renderer, err := raster.New(cfg.Viewer.WindowSize, cfg.Viewer.BackgroundImage)
	if err != nil {
		log.Fatalf("renderer: %v", err)
	}

	// Use cases
	entitySvc := usecases.NewEntityService(repo, cache, cfg.Viewer.CacheTTL)
	routeSvc := usecases.NewRouteService(repo, cache, cfg.Viewer.CacheTTL)
	entityLayer := usecases.NewEntityLayer()
	entityLayer.Radius = cfg.Viewer.EntityRadius
	entityLayer.Thickness = cfg.Viewer.EntityThickness
	entityLayer.JitterBound = cfg.Viewer.Jitter
	sessions := usecases.NewSessionRegistry(entitySvc, routeSvc, publisher, usecases.ViewerOptions{
		Box:         cfg.Viewer.Box(),
		FullWidth:   cfg.Viewer.FullWidth,
		FullHeight:  cfg.Viewer.FullHeight,
		RouteMargin: cfg.Viewer.RouteMargin,
		EntityLayer: entityLayer,
	}, cfg.Viewer.IdleTimeout())
	defer sessions.Shutdown()
	if cfg.Viewer.SessionIdle > 0 {
		go sessions.Run(ctx, time.Minute)
	}

	deps.Sessions = sessions
	deps.Routes = routeSvc
	deps.Entities = entitySvc
	deps.Renderer = renderer
	deps.DB = db
	deps.Cache = cachePinger
	deps.RequestTimeout = time.Duration(cfg.Server.RequestTimeout) * time.Second
	deps.RateLimit = cfg.Server.RateLimit
	deps.Source = cfg.Database.Driver

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    64 * 1024, // commands are tiny
		AppName:      "kabinaview",
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,DELETE,OPTIONS",
		AllowHeaders: "Origin, Content-Type, Accept",
		MaxAge:       3600,
	}))

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("viewer server starting", "addr", addr, "source", cfg.Database.Driver)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}

// reportPoolStats copies pgx pool counters into the gauges every 15s.
func reportPoolStats(ctx context.Context, db *postgres.DB) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.UpdateDBPoolMetrics(db.Stat())
		}
	}
}
