package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/openscout/orchestrator/internal/agents"
	"github.com/openscout/orchestrator/internal/aggregation"
	"github.com/openscout/orchestrator/internal/cache"
	"github.com/openscout/orchestrator/internal/circuitbreaker"
	"github.com/openscout/orchestrator/internal/config"
	"github.com/openscout/orchestrator/internal/coordinator"
	"github.com/openscout/orchestrator/internal/health"
	"github.com/openscout/orchestrator/internal/httpapi"
	"github.com/openscout/orchestrator/internal/llm"
	_ "github.com/openscout/orchestrator/internal/metrics" // registers instruments
	"github.com/openscout/orchestrator/internal/repository"
	"github.com/openscout/orchestrator/internal/research"
	"github.com/openscout/orchestrator/internal/retry"
	"github.com/openscout/orchestrator/internal/scoring"
	"github.com/openscout/orchestrator/internal/searxng"
	"github.com/openscout/orchestrator/internal/streaming"
	"github.com/openscout/orchestrator/internal/subtopics"
	"github.com/openscout/orchestrator/internal/vectordb"
)

func newLogger(cfg config.Logging) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}
	var zcfg zap.Config
	if cfg.Format == "console" {
		zcfg = zap.NewDevelopmentConfig()
	} else {
		zcfg = zap.NewProductionConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	return zcfg.Build()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	circuitbreaker.StartMetricsCollection()

	// Search transport behind breaker and rate limiter
	searchClient, err := searxng.NewClient(searxng.Config{
		BaseURL:     cfg.SearxNG.BaseURL,
		Timeout:     cfg.SearxNG.Timeout,
		RateLimit:   cfg.SearxNG.RatePerSecond,
		RateBurst:   cfg.SearxNG.RateBurst,
		DefaultLang: cfg.SearxNG.DefaultLang,
		SafeSearch:  cfg.SearxNG.SafeSearch,
	}, nil, logger)
	if err != nil {
		logger.Fatal("Failed to create search client", zap.Error(err))
	}

	// Shared cache tier; absent Redis degrades the cache to local-only
	var redisWrapper *circuitbreaker.RedisWrapper
	if cfg.Redis.Enabled {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		redisWrapper = circuitbreaker.NewRedisWrapper(redisClient, logger)
		defer redisWrapper.Close()
	}
	resultCache := cache.New(redisWrapper, cache.Config{
		TTL:           cfg.Cache.TTL,
		LocalCapacity: cfg.Cache.LocalCapacity,
	}, logger)

	// Optional synthesis sidecar
	var synth aggregation.Synthesizer
	if cfg.LLM.Enabled {
		synth = llm.NewClient(llm.Config{
			BaseURL:     cfg.LLM.BaseURL,
			Timeout:     cfg.LLM.Timeout,
			MaxTokens:   cfg.LLM.MaxTokens,
			Temperature: cfg.LLM.Temperature,
		}, logger)
	}

	// Scoring weights, hot-reloaded when a file is configured
	weightStore := scoring.NewStore(scoring.DefaultConfig())
	if path := cfg.Scoring.WeightsFile; path != "" {
		if loaded, err := scoring.LoadFile(path); err != nil {
			logger.Warn("Using default scoring weights", zap.String("path", path), zap.Error(err))
		} else if err := weightStore.Set(loaded); err != nil {
			logger.Warn("Using default scoring weights", zap.Error(err))
		}
		go func() {
			if err := weightStore.Watch(ctx, path, logger); err != nil && ctx.Err() == nil {
				logger.Warn("Scoring weights watcher stopped", zap.Error(err))
			}
		}()
	}

	broadcaster := streaming.NewBroadcaster(cfg.Streaming.RingCapacity)
	agentSet := agents.NewDefaultSet(agents.Deps{
		Searcher: searchClient,
		Retrier:  retry.NewHandler(retry.DefaultPolicy(), logger),
		Logger:   logger,
	})

	coord := coordinator.New(
		agentSet,
		aggregation.NewAggregator(synth, logger),
		scoring.NewScorer(weightStore, logger),
		subtopics.NewIdentifier(logger),
		broadcaster,
		coordinator.Config{
			AgentTimeout: cfg.Coordination.AgentTimeout,
			MaxDepth:     cfg.Research.MaxDepth,
		},
		logger,
	)

	docIndex := vectordb.NewClient(vectordb.Config{
		Enabled:    cfg.VectorDB.Enabled,
		Host:       cfg.VectorDB.Host,
		Port:       cfg.VectorDB.Port,
		Collection: cfg.VectorDB.Collection,
		TopK:       cfg.VectorDB.TopK,
		Threshold:  cfg.VectorDB.Threshold,
		Timeout:    cfg.VectorDB.Timeout,
	}, logger)

	system := research.New(coord, resultCache, docIndex, broadcaster,
		research.Config{MaxDepth: cfg.Research.MaxDepth}, logger)

	// Health checks
	healthMgr := health.NewManager(5*time.Second, logger)
	healthMgr.Register(&health.SearxNGChecker{BaseURL: cfg.SearxNG.BaseURL})
	if redisWrapper != nil {
		healthMgr.Register(&health.RedisChecker{Wrapper: redisWrapper})
	}

	// HTTP surface: health, metrics, streaming, research trigger
	mux := http.NewServeMux()
	healthMgr.RegisterRoutes(mux)
	mux.Handle("/metrics", promhttp.Handler())
	httpapi.NewStreamingHandler(broadcaster, cfg.Streaming.SubscriberBuffer,
		cfg.Streaming.HeartbeatInterval, logger).RegisterRoutes(mux)
	httpapi.NewResearchHandler(ctx, system, resultCache,
		repository.NewMemoryRuns(), repository.NewMemoryResults(), logger).RegisterRoutes(mux)

	server := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:     mux,
		ReadTimeout: cfg.Server.ReadTimeout,
		// No write timeout: the streaming endpoints hold connections open.
	}

	go func() {
		logger.Info("HTTP server listening", zap.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server failed", zap.Error(err))
			stop()
		}
	}()

	logger.Info("Research orchestrator started",
		zap.String("searxng", cfg.SearxNG.BaseURL),
		zap.Int("max_depth", cfg.Research.MaxDepth),
		zap.Bool("redis", cfg.Redis.Enabled),
		zap.Bool("vectordb", cfg.VectorDB.Enabled),
		zap.Bool("llm", cfg.LLM.Enabled),
	)

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP server shutdown", zap.Error(err))
	}
	os.Exit(0)
}
