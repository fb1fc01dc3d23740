package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"bloodcell-inference-service/internal/adapters/primary/http/handlers"
	"bloodcell-inference-service/internal/adapters/primary/http/middleware"
	"bloodcell-inference-service/internal/adapters/secondary/annotate"
	"bloodcell-inference-service/internal/adapters/secondary/logfile"
	"bloodcell-inference-service/internal/adapters/secondary/onnx"
	"bloodcell-inference-service/internal/adapters/secondary/postgres"
	"bloodcell-inference-service/internal/adapters/secondary/redis"
	"bloodcell-inference-service/internal/config"
	"bloodcell-inference-service/internal/core/domain"
	ports "bloodcell-inference-service/internal/core/ports/output"
	"bloodcell-inference-service/internal/core/services"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Load the models and start the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(ctx context.Context) error {
	// ============================================================================
	// Secondary Adapters
	// ============================================================================

	runtime, err := newRuntime(cfg)
	if err != nil {
		return fmt.Errorf("init onnx runtime: %w", err)
	}
	defer func() {
		if err := runtime.Close(); err != nil {
			log.WithError(err).Warn("onnx runtime close failed")
		}
	}()

	logStore, err := logfile.NewStore(cfg.RequestLogs.Dir, log.StandardLogger())
	if err != nil {
		return fmt.Errorf("init request log store: %w", err)
	}

	// Postgres history (optional)
	var history ports.HistoryRepository
	if cfg.Database.Enabled {
		pool, err := newPool(ctx, cfg.Database)
		if err != nil {
			log.Warnf("prediction history init failed (continuing without history): %v", err)
		} else {
			defer pool.Close()
			history = postgres.NewHistoryRepository(pool)
			log.Info("database connection established")
		}
	} else {
		log.Info("prediction history disabled")
	}

	// Redis result cache (optional)
	var cache ports.ResultCache
	if cfg.Redis.Enabled {
		client, err := redis.NewClient(ctx, redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			log.Warnf("redis init failed (continuing without result cache): %v", err)
		} else {
			defer client.Close()
			cache = redis.NewResultCache(client, cfg.Redis.TTL)
			log.Info("redis result cache initialized")
		}
	} else {
		log.Info("result cache disabled")
	}

	// ============================================================================
	// Core Services
	// ============================================================================

	registry := services.NewModelRegistry(runtime, catalog(cfg), cfg.Models.CountLabels)
	defer func() {
		if err := registry.Close(); err != nil {
			log.WithError(err).Warn("model registry close failed")
		}
	}()
	if cfg.Models.EagerLoad {
		registry.LoadAll(ctx)
	} else {
		// classifiers load on first use
		registry.Load(ctx, func(e domain.ModelEntry) bool {
			return e.Task != domain.TaskClassification
		})
	}

	predictSvc := services.NewPredictionService(registry, logStore, annotate.New(), services.PredictionOptions{
		DefaultClassifier: cfg.Models.DefaultClassifier,
		ClassLabels:       cfg.Models.ClassLabels,
		CountLabels:       cfg.Models.CountLabels,
		IoU:               cfg.Detection.IoU,
		MaxConcurrent:     cfg.Inference.MaxConcurrent,
		QueueTimeout:      cfg.Inference.QueueTimeout,
		MaxImagePixels:    cfg.Server.MaxPixels,
	})
	if cache != nil {
		predictSvc.WithCache(cache)
	}
	if history != nil {
		predictSvc.WithHistory(history)
	}
	logSvc := services.NewLogService(logStore)
	historySvc := services.NewHistoryService(history)

	go retainLogs(ctx, logSvc, cfg.RequestLogs.RetentionDays)

	// ============================================================================
	// Primary Adapters
	// ============================================================================

	h := handlers.New(registry, predictSvc, logSvc, historySvc, handlers.Options{
		MaxUploadBytes: cfg.Server.MaxUploadMB << 20,
		DefaultConf:    cfg.Detection.DefaultConf,
	})

	gin.SetMode(cfg.Server.Mode)
	router := gin.New()
	router.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.CORS(cfg.Server.AllowedOrigins),
		gin.Recovery(),
	)
	h.RegisterRoutes(router.Group("/"))

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	log.Info("server exited")
	return nil
}

func newRuntime(cfg *config.Config) (*onnx.Runtime, error) {
	return onnx.NewRuntime(onnx.Options{
		LibraryPath:    cfg.ONNX.LibraryPath,
		IntraOpThreads: cfg.ONNX.IntraOpThreads,
		DetectorSize:   cfg.Detection.InputSize,
		MaxDetections:  cfg.Detection.MaxDetections,
	})
}

func catalog(cfg *config.Config) []domain.ModelEntry {
	return domain.NewCatalog(domain.CatalogSpec{
		Dir:           cfg.Models.Dir,
		Classifiers:   cfg.Models.Classifiers,
		DetectionFile: cfg.Models.DetectionFile,
		CountFile:     cfg.Models.CountFile,
	})
}

func newPool(ctx context.Context, db config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(db.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse db config: %w", err)
	}
	poolCfg.MaxConns = int32(db.MaxOpenConns)
	poolCfg.MinConns = int32(db.MaxIdleConns)
	poolCfg.MaxConnLifetime = db.ConnMaxLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create db pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	if err := postgres.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return pool, nil
}

// retainLogs removes expired request logs at startup and then once a day
func retainLogs(ctx context.Context, logs *services.LogService, days int) {
	if days <= 0 {
		return
	}
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		if _, err := logs.Cleanup(days); err != nil {
			log.WithError(err).Warn("request log retention failed")
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
