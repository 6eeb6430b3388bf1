package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kailas-cloud/kbroute/internal/config"
	"github.com/kailas-cloud/kbroute/internal/db"
	dbRedis "github.com/kailas-cloud/kbroute/internal/db/redis"
	"github.com/kailas-cloud/kbroute/internal/domain"
	"github.com/kailas-cloud/kbroute/internal/domain/search/mode"
	"github.com/kailas-cloud/kbroute/internal/domain/search/request"
	logpkg "github.com/kailas-cloud/kbroute/internal/logger"
	"github.com/kailas-cloud/kbroute/internal/metrics"
	"github.com/kailas-cloud/kbroute/internal/repository/catalog"
	"github.com/kailas-cloud/kbroute/internal/repository/embcache"
	"github.com/kailas-cloud/kbroute/internal/repository/scorecache"
	chiTransport "github.com/kailas-cloud/kbroute/internal/transport/chi"
	openaiTransport "github.com/kailas-cloud/kbroute/internal/transport/openai"
	healthuc "github.com/kailas-cloud/kbroute/internal/usecase/health"
	mappinguc "github.com/kailas-cloud/kbroute/internal/usecase/mapping"
	"github.com/kailas-cloud/kbroute/internal/usecase/multisearch"
	retrieveuc "github.com/kailas-cloud/kbroute/internal/usecase/retrieve"
	searchuc "github.com/kailas-cloud/kbroute/internal/usecase/search"
	"github.com/kailas-cloud/kbroute/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting kbroute API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
		zap.String("scorer_model", cfg.Scorer.Model),
		zap.Bool("embedding", cfg.Embedding.Enabled()),
	)

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:        cfg.Database.Addrs,
		Username:     cfg.Database.Username,
		Password:     cfg.Database.Password,
		DB:           cfg.Database.DB,
		DialTimeout:  time.Duration(cfg.Database.DialTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.Database.WriteTimeoutSec) * time.Second,
	})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Register metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterRetrievalMetrics()
	metrics.RegisterHTTPMetrics()

	prefix := cfg.Storage.KeyPrefix

	// Relevance scorer: OpenAI -> Cached
	baseScorer := openaiTransport.NewScorer(&openaiTransport.Config{
		APIKey:      cfg.Scorer.APIKey,
		BaseURL:     cfg.Scorer.BaseURL,
		Model:       cfg.Scorer.Model,
		Temperature: cfg.Scorer.Temperature,
		Logger:      logger,
	})
	var scorer mappinguc.Scorer = baseScorer
	if cfg.Scorer.CacheTTLSec > 0 {
		scorer = scorecache.New(baseScorer, store, prefix,
			time.Duration(cfg.Scorer.CacheTTLSec)*time.Second, metrics.ScorerCacheTotal, logger)
	}

	// Query embedder is optional; without it retrieval uses BM25.
	// Keep the health checker a nil interface, not a typed nil pointer.
	var embedder domain.Embedder
	var embeddingHealth healthuc.ProviderChecker
	if cfg.Embedding.Enabled() {
		base := openaiTransport.NewEmbedder(&openaiTransport.Config{
			APIKey:     cfg.Embedding.APIKey,
			BaseURL:    cfg.Embedding.BaseURL,
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Embedding.Dimensions,
			Logger:     logger,
		})
		embedder = buildEmbedder(base, cfg.Embedding, store, prefix, logger)
		embeddingHealth = base
		logger.Info("Query embedder created",
			zap.String("model", cfg.Embedding.Model),
			zap.Int("dimensions", cfg.Embedding.Dimensions),
		)
	}

	catalogRepo := catalog.New(store, embedder, prefix, logger)

	mappingSvc := mappinguc.New(catalogRepo, scorer, logger)
	searchSvc := searchuc.New(logger)
	multiSvc := multisearch.New(catalogRepo, searchSvc, logger).WithConcurrency(cfg.Search.Concurrency)
	pipeline := retrieveuc.New(mappingSvc, multiSvc)
	healthSvc := healthuc.New(store, baseScorer, embeddingHealth)

	defaults, err := buildDefaults(cfg)
	if err != nil {
		logger.Fatal("Invalid request defaults", zap.Error(err))
	}

	server := chiTransport.NewServer(catalogRepo, mappingSvc, searchSvc, pipeline, healthSvc, defaults, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// buildEmbedder assembles the decorator chain: OpenAI -> Cached -> Instruction
func buildEmbedder(
	base domain.Embedder,
	embCfg config.EmbeddingConfig,
	store db.KVStore,
	prefix string,
	logger *zap.Logger,
) domain.Embedder {
	// Cache TTL 0 keeps entries until evicted.
	var embedder domain.Embedder = embcache.New(base, store, embcache.Config{
		KeyPrefix:  prefix,
		Model:      embCfg.Model,
		Dimensions: embCfg.Dimensions,
		TTL:        time.Duration(embCfg.CacheTTLSec) * time.Second,
	}, metrics.EmbeddingCacheTotal, logger)

	// Instruction prefix (outermost, so the cache key includes the instruction)
	if embCfg.QueryInstruction != "" {
		return domain.NewInstructionEmbedder(embedder, embCfg.QueryInstruction)
	}
	return embedder
}

// buildDefaults turns configured defaults into request values used when a body omits them.
func buildDefaults(cfg config.Config) (chiTransport.Defaults, error) {
	mapping := mappinguc.Options{
		MinRelevance: *cfg.Mapping.MinRelevance,
		MaxKBs:       *cfg.Mapping.MaxKBs,
	}
	if err := mapping.Validate(); err != nil {
		return chiTransport.Defaults{}, fmt.Errorf("mapping defaults: %w", err)
	}

	search, err := request.NewConfig(
		mode.Mode(cfg.Search.Mode),
		*cfg.Search.MinRelevance,
		*cfg.Search.MaxSegmentsPerDoc,
		*cfg.Search.AdaptiveRecall,
	)
	if err != nil {
		return chiTransport.Defaults{}, fmt.Errorf("search defaults: %w", err)
	}

	return chiTransport.Defaults{Mapping: mapping, Search: search}, nil
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(chiTransport.ErrorResponse{
						Code:    "internal_error",
						Message: "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// chi.middleware.RequestID already placed request_id in context
			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
