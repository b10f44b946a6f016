package research

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lexlabs/lexcrew/internal/cache"
	"github.com/lexlabs/lexcrew/internal/metrics"
)

// ErrEmptyQuery is returned when the research query is blank. Handlers map
// it to a 400 before any LLM call happens.
var ErrEmptyQuery = errors.New("please provide a legal query to search for cases")

// AnswerCache is the subset of the cache manager the service needs. A nil
// cache disables answer caching.
type AnswerCache interface {
	Get(ctx context.Context, key string, dest any) error
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

// Answer is the client-facing outcome of a research run.
type Answer struct {
	RunID      string        `json:"run_id"`
	Query      string        `json:"query"`
	Output     string        `json:"output"`
	TokensUsed int           `json:"tokens_used"`
	Duration   time.Duration `json:"duration"`
	CacheHit   bool          `json:"cache_hit"`
	CreatedAt  time.Time     `json:"created_at"`
}

// ServiceConfig tunes the research service.
type ServiceConfig struct {
	CacheTTL time.Duration // answer cache TTL, default 1h
}

// Service runs research crews, caches answers, and persists runs.
type Service struct {
	pipeline  *Pipeline
	store     *Store
	cache     AnswerCache
	collector *metrics.Collector
	cfg       ServiceConfig
	logger    *zap.Logger
}

// NewService creates the research service. The cache and collector may be
// nil.
func NewService(pipeline *Pipeline, store *Store, answerCache AnswerCache, collector *metrics.Collector, cfg ServiceConfig, logger *zap.Logger) *Service {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		pipeline:  pipeline,
		store:     store,
		cache:     answerCache,
		collector: collector,
		cfg:       cfg,
		logger:    logger.With(zap.String("component", "research_service")),
	}
}

// Run executes the crew for one legal query. Identical queries within the
// cache TTL are answered from cache without touching the LLM.
func (s *Service) Run(ctx context.Context, query string) (*Answer, error) {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return nil, ErrEmptyQuery
	}

	key := cacheKey(trimmed)
	if s.cache != nil {
		var cached Answer
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			cached.CacheHit = true
			s.recordCacheHit()
			s.logger.Info("answer served from cache", zap.String("run_id", cached.RunID))
			return &cached, nil
		} else if !errors.Is(err, cache.ErrMiss) {
			s.logger.Warn("cache lookup failed", zap.Error(err))
		} else {
			s.recordCacheMiss()
		}
	}

	s.logger.Info("starting legal research", zap.String("query", trimmed))
	start := time.Now()

	result, err := s.pipeline.Run(ctx, trimmed)
	duration := time.Since(start)

	run := &Run{
		ID:         uuid.NewString(),
		Query:      trimmed,
		Status:     StatusCompleted,
		DurationMS: duration.Milliseconds(),
		CreatedAt:  start,
	}

	if err != nil {
		run.Status = StatusFailed
		run.Error = err.Error()
		s.persist(ctx, run, nil)
		s.recordRun(StatusFailed, duration)
		return nil, fmt.Errorf("error during legal research: %w", err)
	}

	run.FinalOutput = result.FinalOutput
	run.TokensUsed = result.TokensUsed
	if result.FinalOutput == "" {
		run.Status = StatusFailed
		run.Error = "crew produced no output"
	}

	tasks := make([]TaskRecord, 0, len(result.TaskOrder))
	for i, taskID := range result.TaskOrder {
		tr := result.TaskResults[taskID]
		if tr == nil {
			continue
		}
		tasks = append(tasks, TaskRecord{
			TaskID:     tr.TaskID,
			AgentID:    tr.AgentID,
			Output:     tr.Output,
			Error:      tr.Error,
			TokensUsed: tr.TokensUsed,
			DurationMS: tr.Duration.Milliseconds(),
			Position:   i,
		})
	}
	s.persist(ctx, run, tasks)
	s.recordRun(run.Status, duration)

	if run.Status == StatusFailed {
		return nil, errors.New(run.Error)
	}

	answer := &Answer{
		RunID:      run.ID,
		Query:      trimmed,
		Output:     run.FinalOutput,
		TokensUsed: run.TokensUsed,
		Duration:   duration,
		CreatedAt:  start,
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, answer, s.cfg.CacheTTL); err != nil {
			s.logger.Warn("failed to cache answer", zap.Error(err))
		}
	}

	s.logger.Info("legal research completed",
		zap.String("run_id", run.ID),
		zap.Duration("duration", duration),
		zap.Int("tokens_used", run.TokensUsed))
	return answer, nil
}

// Get loads a persisted run by ID.
func (s *Service) Get(ctx context.Context, id string) (*Run, error) {
	return s.store.GetByID(ctx, id)
}

// List returns the most recent runs.
func (s *Service) List(ctx context.Context, limit int) ([]Run, error) {
	return s.store.List(ctx, limit)
}

func (s *Service) persist(ctx context.Context, run *Run, tasks []TaskRecord) {
	run.Tasks = tasks
	if err := s.store.Create(ctx, run); err != nil {
		s.logger.Error("failed to persist run", zap.String("run_id", run.ID), zap.Error(err))
	}
}

func (s *Service) recordCacheHit() {
	if s.collector != nil {
		s.collector.RecordCacheHit("research")
	}
}

func (s *Service) recordCacheMiss() {
	if s.collector != nil {
		s.collector.RecordCacheMiss("research")
	}
}

func (s *Service) recordRun(status string, duration time.Duration) {
	if s.collector != nil {
		s.collector.RecordResearchRun(status, duration)
	}
}

// cacheKey normalizes the query (lowercase, collapsed whitespace) and
// hashes it so equivalent phrasings share an entry.
func cacheKey(query string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(query)), " ")
	sum := sha256.Sum256([]byte(normalized))
	return "research:answer:" + hex.EncodeToString(sum[:])
}
