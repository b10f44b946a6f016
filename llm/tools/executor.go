// Package tools provides the tool registry, executor, and the ReAct loop
// used by research agents.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/lexlabs/lexcrew/llm"
)

// ToolFunc is the signature every registered tool implements.
type ToolFunc func(ctx context.Context, args json.RawMessage) (json.RawMessage, error)

// ToolMetadata describes a registered tool.
type ToolMetadata struct {
	Schema    llm.ToolSchema
	Timeout   time.Duration // execution timeout, default 30s
	RateLimit *RateLimitConfig
}

// RateLimitConfig caps how often a tool may run.
type RateLimitConfig struct {
	PerSecond float64 // sustained calls per second
	Burst     int     // burst size, default 1
}

// ToolResult is the outcome of a single tool invocation.
type ToolResult struct {
	ToolCallID string          `json:"tool_call_id"`
	Name       string          `json:"name"`
	Result     json.RawMessage `json:"result,omitempty"`
	Error      string          `json:"error,omitempty"`
	Duration   time.Duration   `json:"duration"`
}

// ToMessage converts the result to a role=tool message for the LLM.
func (tr ToolResult) ToMessage() llm.Message {
	msg := llm.Message{
		Role:       llm.RoleTool,
		ToolCallID: tr.ToolCallID,
		Name:       tr.Name,
	}
	if tr.Error != "" {
		msg.Content = fmt.Sprintf("Error: %s", tr.Error)
		return msg
	}
	// Tools returning a bare JSON string get it unquoted so the model
	// sees plain text.
	var s string
	if err := json.Unmarshal(tr.Result, &s); err == nil {
		msg.Content = s
	} else {
		msg.Content = string(tr.Result)
	}
	return msg
}

// ToolRegistry stores tools by name.
type ToolRegistry interface {
	Register(name string, fn ToolFunc, metadata ToolMetadata) error
	Get(name string) (ToolFunc, ToolMetadata, error)
	List() []llm.ToolSchema
	Schemas(names []string) []llm.ToolSchema
	Has(name string) bool
}

// ToolExecutor runs tool calls requested by the LLM.
type ToolExecutor interface {
	Execute(ctx context.Context, calls []llm.ToolCall) []ToolResult
	ExecuteOne(ctx context.Context, call llm.ToolCall) ToolResult
}

// Registry is the default ToolRegistry.
type Registry struct {
	mu       sync.RWMutex
	tools    map[string]ToolFunc
	metadata map[string]ToolMetadata
	limiters map[string]*rate.Limiter
	logger   *zap.Logger
}

// NewRegistry creates an empty tool registry.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		tools:    make(map[string]ToolFunc),
		metadata: make(map[string]ToolMetadata),
		limiters: make(map[string]*rate.Limiter),
		logger:   logger,
	}
}

func (r *Registry) Register(name string, fn ToolFunc, metadata ToolMetadata) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool %s already registered", name)
	}
	if metadata.Schema.Name == "" {
		metadata.Schema.Name = name
	}
	if metadata.Schema.Name != name {
		return fmt.Errorf("tool name mismatch: schema.Name=%s, register name=%s", metadata.Schema.Name, name)
	}
	if metadata.Timeout == 0 {
		metadata.Timeout = 30 * time.Second
	}

	r.tools[name] = fn
	r.metadata[name] = metadata

	if rl := metadata.RateLimit; rl != nil {
		burst := rl.Burst
		if burst < 1 {
			burst = 1
		}
		r.limiters[name] = rate.NewLimiter(rate.Limit(rl.PerSecond), burst)
	}

	r.logger.Info("tool registered", zap.String("name", name), zap.Duration("timeout", metadata.Timeout))
	return nil
}

func (r *Registry) Get(name string) (ToolFunc, ToolMetadata, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	fn, ok := r.tools[name]
	if !ok {
		return nil, ToolMetadata{}, fmt.Errorf("tool %s not found", name)
	}
	return fn, r.metadata[name], nil
}

func (r *Registry) List() []llm.ToolSchema {
	r.mu.RLock()
	defer r.mu.RUnlock()

	schemas := make([]llm.ToolSchema, 0, len(r.metadata))
	for _, meta := range r.metadata {
		schemas = append(schemas, meta.Schema)
	}
	return schemas
}

// Schemas returns the schemas for the named tools, skipping unknown names.
// Order follows the input so agent tool lists stay stable across runs.
func (r *Registry) Schemas(names []string) []llm.ToolSchema {
	r.mu.RLock()
	defer r.mu.RUnlock()

	schemas := make([]llm.ToolSchema, 0, len(names))
	for _, name := range names {
		if meta, ok := r.metadata[name]; ok {
			schemas = append(schemas, meta.Schema)
		}
	}
	return schemas
}

func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[name]
	return ok
}

func (r *Registry) allow(name string) bool {
	r.mu.RLock()
	limiter, ok := r.limiters[name]
	r.mu.RUnlock()
	if !ok {
		return true
	}
	return limiter.Allow()
}

// Executor is the default ToolExecutor backed by a Registry.
type Executor struct {
	registry *Registry
	logger   *zap.Logger
}

// NewExecutor creates an executor over the given registry.
func NewExecutor(registry *Registry, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{registry: registry, logger: logger}
}

// Execute runs all calls concurrently, preserving input order in the results.
// Individual failures land in the result slice, never as a group error.
func (e *Executor) Execute(ctx context.Context, calls []llm.ToolCall) []ToolResult {
	results := make([]ToolResult, len(calls))

	var g errgroup.Group
	for i, call := range calls {
		g.Go(func() error {
			results[i] = e.ExecuteOne(ctx, call)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// ExecuteOne runs a single tool call with timeout and rate limit enforcement.
func (e *Executor) ExecuteOne(ctx context.Context, call llm.ToolCall) ToolResult {
	start := time.Now()
	result := ToolResult{ToolCallID: call.ID, Name: call.Name}

	fn, meta, err := e.registry.Get(call.Name)
	if err != nil {
		result.Error = fmt.Sprintf("tool not found: %s", err.Error())
		result.Duration = time.Since(start)
		e.logger.Error("tool not found", zap.String("name", call.Name), zap.Error(err))
		return result
	}

	if !e.registry.allow(call.Name) {
		result.Error = fmt.Sprintf("rate limit exceeded for tool %s", call.Name)
		result.Duration = time.Since(start)
		e.logger.Warn("tool rate limit exceeded", zap.String("name", call.Name))
		return result
	}

	if len(call.Arguments) > 0 && !json.Valid(call.Arguments) {
		result.Error = "invalid arguments: not valid JSON"
		result.Duration = time.Since(start)
		e.logger.Error("invalid tool arguments", zap.String("name", call.Name))
		return result
	}

	execCtx, cancel := context.WithTimeout(ctx, meta.Timeout)
	defer cancel()

	// Buffered so the goroutine never blocks after a timeout.
	doneCh := make(chan struct {
		res json.RawMessage
		err error
	}, 1)

	go func() {
		res, err := fn(execCtx, call.Arguments)
		doneCh <- struct {
			res json.RawMessage
			err error
		}{res, err}
	}()

	select {
	case done := <-doneCh:
		result.Duration = time.Since(start)
		if done.err != nil {
			result.Error = done.err.Error()
			e.logger.Error("tool execution failed",
				zap.String("name", call.Name),
				zap.Error(done.err),
				zap.Duration("duration", result.Duration))
		} else {
			result.Result = done.res
			e.logger.Info("tool executed",
				zap.String("name", call.Name),
				zap.Duration("duration", result.Duration))
		}
	case <-execCtx.Done():
		result.Error = fmt.Sprintf("execution timeout after %s", meta.Timeout)
		result.Duration = time.Since(start)
		e.logger.Warn("tool execution timed out",
			zap.String("name", call.Name),
			zap.Duration("timeout", meta.Timeout))
	}

	return result
}
