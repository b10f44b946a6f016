package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/lexlabs/lexcrew/api/handlers"
	"github.com/lexlabs/lexcrew/config"
	"github.com/lexlabs/lexcrew/docstore"
	"github.com/lexlabs/lexcrew/internal/cache"
	"github.com/lexlabs/lexcrew/internal/metrics"
	"github.com/lexlabs/lexcrew/internal/server"
	"github.com/lexlabs/lexcrew/internal/telemetry"
	"github.com/lexlabs/lexcrew/kanoon"
	"github.com/lexlabs/lexcrew/llm"
	"github.com/lexlabs/lexcrew/llm/providers/groq"
	"github.com/lexlabs/lexcrew/llm/tools"
	"github.com/lexlabs/lexcrew/research"
)

// Server assembles and runs the LexCrew service.
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	httpManager    *server.Manager
	metricsManager *server.Manager

	collector *metrics.Collector
	providers *telemetry.Providers

	provider llm.Provider
	kanoon   *kanoon.Client
	cache    *cache.Manager
	store    *research.Store
	service  *research.Service

	researchHandler *handlers.ResearchHandler
	healthHandler   *handlers.HealthHandler

	rateLimiterCancel context.CancelFunc
}

// NewServer creates the server from loaded configuration.
func NewServer(cfg *config.Config, logger *zap.Logger, providers *telemetry.Providers) *Server {
	return &Server{cfg: cfg, logger: logger, providers: providers}
}

// Start wires all components and begins serving.
func (s *Server) Start() error {
	s.collector = metrics.NewCollector("lexcrew", s.logger)

	if err := s.initComponents(); err != nil {
		return fmt.Errorf("failed to init components: %w", err)
	}
	if err := s.startHTTPServer(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	if err := s.startMetricsServer(); err != nil {
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	s.logger.Info("All servers started",
		zap.Int("http_port", s.cfg.Server.HTTPPort),
		zap.Int("metrics_port", s.cfg.Server.MetricsPort))
	return nil
}

func (s *Server) initComponents() error {
	// LLM provider, instrumented so every completion lands in metrics.
	s.provider = &measuredProvider{
		Provider:  groq.New(groq.Config{
			APIKey:      s.cfg.LLM.APIKey,
			BaseURL:     s.cfg.LLM.BaseURL,
			Model:       s.cfg.LLM.Model,
			Temperature: float32(s.cfg.LLM.Temperature),
			Timeout:     s.cfg.LLM.Timeout,
		}, s.logger),
		collector: s.collector,
	}

	s.kanoon = kanoon.NewClient(kanoon.Config{
		APIKey:     s.cfg.Kanoon.APIKey,
		BaseURL:    s.cfg.Kanoon.BaseURL,
		Timeout:    s.cfg.Kanoon.Timeout,
		MaxRetries: s.cfg.Kanoon.MaxRetries,
		RatePerSec: s.cfg.Kanoon.RatePerSec,
	}, s.logger)

	// Object store for original filings. Memory store when MinIO is off.
	var store docstore.ObjectStore
	if s.cfg.MinIO.Enabled {
		ms, err := docstore.NewMinIO(docstore.MinIOConfig{
			Endpoint:  s.cfg.MinIO.Endpoint,
			AccessKey: s.cfg.MinIO.AccessKey,
			SecretKey: s.cfg.MinIO.SecretKey,
			Bucket:    s.cfg.MinIO.Bucket,
			UseSSL:    s.cfg.MinIO.UseSSL,
		})
		if err != nil {
			return fmt.Errorf("init object store: %w", err)
		}
		store = ms
		s.logger.Info("object store initialized", zap.String("bucket", s.cfg.MinIO.Bucket))
	} else {
		store = docstore.NewMemoryStore()
		s.logger.Info("object storage disabled, originals held in memory")
	}

	// Answer cache.
	if s.cfg.Redis.Enabled {
		mgr, err := cache.NewManager(cache.Config{
			Addr:         s.cfg.Redis.Addr,
			Password:     s.cfg.Redis.Password,
			DB:           s.cfg.Redis.DB,
			DefaultTTL:   s.cfg.Research.CacheTTL,
			PoolSize:     s.cfg.Redis.PoolSize,
			MinIdleConns: s.cfg.Redis.MinIdleConns,
		}, s.logger)
		if err != nil {
			s.logger.Warn("redis not available, answer cache disabled", zap.Error(err))
		} else {
			s.cache = mgr
		}
	}

	// Run persistence.
	db, err := research.OpenDatabase(s.cfg.Database)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	s.store = research.NewStore(db)
	s.logger.Info("database connected", zap.String("driver", s.cfg.Database.Driver))

	// Tool registry and research pipeline.
	registry := tools.NewRegistry(s.logger)
	researchTools := research.NewTools(s.kanoon, store, s.provider, research.ToolsConfig{
		Model:         s.cfg.LLM.Model,
		Temperature:   float32(s.cfg.LLM.Temperature),
		DocTokenLimit: s.cfg.Research.DocTokenLimit,
		SearchPages:   s.cfg.Research.SearchPages,
		RatePerSec:    s.cfg.Kanoon.RatePerSec,
	}, s.logger).WithCollector(s.collector)
	if err := researchTools.RegisterAll(registry); err != nil {
		return fmt.Errorf("register research tools: %w", err)
	}

	pipeline := research.NewPipeline(s.provider, registry, research.PipelineConfig{
		Model:         s.cfg.LLM.Model,
		Temperature:   float32(s.cfg.LLM.Temperature),
		MaxTokens:     s.cfg.LLM.MaxTokens,
		MaxIterations: s.cfg.Research.MaxIterations,
		Verbose:       true,
	}, s.logger)

	var answerCache research.AnswerCache
	if s.cache != nil {
		answerCache = s.cache
	}
	s.service = research.NewService(pipeline, s.store, answerCache, s.collector, research.ServiceConfig{
		CacheTTL: s.cfg.Research.CacheTTL,
	}, s.logger)

	// Handlers.
	s.researchHandler = handlers.NewResearchHandler(s.service, s.logger)
	s.healthHandler = handlers.NewHealthHandler(s.logger)
	s.healthHandler.RegisterCheck(handlers.NewPingCheck("database", s.store.Ping))
	s.healthHandler.RegisterCheck(handlers.NewPingCheck("kanoon", s.kanoon.HealthCheck))
	s.healthHandler.RegisterCheck(handlers.NewPingCheck("llm", func(ctx context.Context) error {
		_, err := s.provider.HealthCheck(ctx)
		return err
	}))
	if s.cache != nil {
		s.healthHandler.RegisterCheck(handlers.NewPingCheck("redis", s.cache.HealthCheck))
	}

	s.logger.Info("components initialized")
	return nil
}

func (s *Server) startHTTPServer() error {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.healthHandler.HandleHealth)
	mux.HandleFunc("/ready", s.healthHandler.HandleReady)
	mux.HandleFunc("/version", s.healthHandler.HandleVersion(Version, BuildTime, GitCommit))

	mux.HandleFunc("POST /api/v1/research", s.researchHandler.HandleRun)
	mux.HandleFunc("GET /api/v1/research", s.researchHandler.HandleList)
	mux.HandleFunc("GET /api/v1/research/{id}", s.researchHandler.HandleGet)

	rateLimiterCtx, rateLimiterCancel := context.WithCancel(context.Background())
	s.rateLimiterCancel = rateLimiterCancel

	middlewares := []Middleware{
		Recovery(s.logger),
		RequestID(),
		SecurityHeaders(),
		RequestLogger(s.logger),
		MetricsMiddleware(s.collector),
	}
	if s.cfg.Server.RateLimitRPS > 0 {
		middlewares = append(middlewares,
			RateLimiter(rateLimiterCtx, s.cfg.Server.RateLimitRPS, s.cfg.Server.RateLimitBurst, s.logger))
	}
	if s.cfg.Auth.JWTSecret != "" {
		skipAuthPaths := []string{"/health", "/ready", "/version"}
		middlewares = append(middlewares, JWTAuth(s.cfg.Auth, skipAuthPaths, s.logger))
	}
	handler := Chain(mux, middlewares...)

	serverConfig := server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.HTTPPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		IdleTimeout:     2 * s.cfg.Server.ReadTimeout,
		MaxHeaderBytes:  1 << 20,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.httpManager = server.NewManager(handler, serverConfig, s.logger)
	if err := s.httpManager.Start(); err != nil {
		return err
	}

	s.logger.Info("HTTP server started", zap.Int("port", s.cfg.Server.HTTPPort))
	return nil
}

func (s *Server) startMetricsServer() error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	serverConfig := server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.MetricsPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.metricsManager = server.NewManager(mux, serverConfig, s.logger)
	if err := s.metricsManager.Start(); err != nil {
		return err
	}

	s.logger.Info("metrics server started", zap.Int("port", s.cfg.Server.MetricsPort))
	return nil
}

// WaitForShutdown blocks until a signal arrives, then shuts everything
// down.
func (s *Server) WaitForShutdown() {
	if s.httpManager != nil {
		s.httpManager.WaitForShutdown()
	}
	s.Shutdown()
}

// Shutdown closes all components.
func (s *Server) Shutdown() {
	s.logger.Info("starting graceful shutdown")

	ctx := context.Background()

	if s.rateLimiterCancel != nil {
		s.rateLimiterCancel()
	}
	if s.httpManager != nil {
		if err := s.httpManager.Shutdown(ctx); err != nil {
			s.logger.Error("HTTP server shutdown error", zap.Error(err))
		}
	}
	if s.metricsManager != nil {
		if err := s.metricsManager.Shutdown(ctx); err != nil {
			s.logger.Error("metrics server shutdown error", zap.Error(err))
		}
	}
	if s.cache != nil {
		if err := s.cache.Close(); err != nil {
			s.logger.Error("cache shutdown error", zap.Error(err))
		}
	}
	if s.providers != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		if err := s.providers.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("telemetry shutdown error", zap.Error(err))
		}
		cancel()
	}

	s.logger.Info("graceful shutdown completed")
}

// measuredProvider records LLM request metrics around every completion.
type measuredProvider struct {
	llm.Provider
	collector *metrics.Collector
}

func (m *measuredProvider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	start := time.Now()
	resp, err := m.Provider.Completion(ctx, req)
	status := "ok"
	var prompt, completion int
	if err != nil {
		status = "error"
	} else {
		prompt = resp.Usage.PromptTokens
		completion = resp.Usage.CompletionTokens
	}
	m.collector.RecordLLMRequest(m.Provider.Name(), req.Model, status, time.Since(start), prompt, completion)
	return resp, err
}
