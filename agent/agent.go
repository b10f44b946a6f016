// Package agent implements crew members backed by an LLM provider and a
// shared tool registry. An agent's identity (role, goal, backstory) is
// rendered into its system prompt; its tool access is whitelisted.
package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lexlabs/lexcrew/crew"
	"github.com/lexlabs/lexcrew/llm"
	"github.com/lexlabs/lexcrew/llm/tools"
)

// Config describes a research agent.
type Config struct {
	ID          string // generated when empty
	Role        string
	Goal        string
	Backstory   string
	Model       string
	Temperature float32
	MaxTokens   int
	Tools       []string // names of registry tools this agent may call
	MaxIters    int      // react loop cap, default 10
}

// Agent is an LLM-backed crew member.
type Agent struct {
	cfg      Config
	provider llm.Provider
	registry *tools.Registry
	executor tools.ToolExecutor
	logger   *zap.Logger
	execMu   sync.Mutex
}

// New creates an agent. The registry may be nil for tool-less agents.
func New(cfg Config, provider llm.Provider, registry *tools.Registry, logger *zap.Logger) *Agent {
	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	if cfg.MaxIters == 0 {
		cfg.MaxIters = 10
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &Agent{
		cfg:      cfg,
		provider: provider,
		registry: registry,
		logger:   logger.With(zap.String("agent_id", cfg.ID), zap.String("role", cfg.Role)),
	}
	if registry != nil {
		a.executor = newWhitelistExecutor(tools.NewExecutor(registry, logger), cfg.Tools)
	}
	return a
}

func (a *Agent) ID() string   { return a.cfg.ID }
func (a *Agent) Role() string { return a.cfg.Role }

// SystemPrompt renders the agent's identity.
func (a *Agent) SystemPrompt() string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s. %s\n", a.cfg.Role, a.cfg.Backstory)
	fmt.Fprintf(&b, "Your personal goal is: %s", a.cfg.Goal)
	if len(a.cfg.Tools) > 0 {
		b.WriteString("\nUse the available tools when they help you accomplish the task. Base your answer on tool results, not guesses.")
	}
	return b.String()
}

// Execute runs one task to completion. Agents with tools drive a ReAct
// loop; tool-less agents issue a single completion.
func (a *Agent) Execute(ctx context.Context, task crew.Task) (*crew.TaskResult, error) {
	if a.provider == nil {
		return nil, ErrProviderNotSet
	}
	if !a.execMu.TryLock() {
		return nil, ErrAgentBusy
	}
	defer a.execMu.Unlock()

	start := time.Now()
	a.logger.Info("executing task", zap.String("task", task.ID))

	req := &llm.ChatRequest{
		Model:       a.cfg.Model,
		MaxTokens:   a.cfg.MaxTokens,
		Temperature: a.cfg.Temperature,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: a.SystemPrompt()},
			{Role: llm.RoleUser, Content: renderTaskPrompt(task)},
		},
	}

	var (
		resp       *llm.ChatResponse
		steps      []tools.ReActStep
		err        error
		tokensUsed int
	)

	if a.registry != nil && len(a.cfg.Tools) > 0 {
		req.Tools = a.registry.Schemas(a.cfg.Tools)
	}
	if len(req.Tools) > 0 {
		if !a.provider.SupportsNativeFunctionCalling() {
			return nil, fmt.Errorf("provider %q does not support native function calling", a.provider.Name())
		}
		react := tools.NewReActExecutor(a.provider, a.executor, tools.ReActConfig{
			MaxIterations: a.cfg.MaxIters,
			StopOnError:   false,
		}, a.logger)
		resp, steps, err = react.Execute(ctx, req)
		for _, s := range steps {
			tokensUsed += s.TokensUsed
		}
	} else {
		resp, err = a.provider.Completion(ctx, req)
		if resp != nil {
			tokensUsed = resp.Usage.TotalTokens
		}
	}

	duration := time.Since(start)
	if err != nil {
		a.logger.Error("task execution failed",
			zap.String("task", task.ID),
			zap.Duration("duration", duration),
			zap.Error(err))
		return nil, fmt.Errorf("agent %s: %w", a.cfg.Role, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("agent %s: empty response", a.cfg.Role)
	}

	a.logger.Info("task completed",
		zap.String("task", task.ID),
		zap.Duration("duration", duration),
		zap.Int("tokens_used", tokensUsed))

	return &crew.TaskResult{
		TaskID:     task.ID,
		AgentID:    a.cfg.ID,
		Output:     resp.Choices[0].Message.Content,
		TokensUsed: tokensUsed,
		Duration:   duration,
	}, nil
}

func renderTaskPrompt(task crew.Task) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(task.Description))
	if task.ExpectedOutput != "" {
		b.WriteString("\n\nThis is the expected output for your final answer: ")
		b.WriteString(task.ExpectedOutput)
	}
	if task.Context != "" {
		b.WriteString("\n\nThis is the context you're working with:\n")
		b.WriteString(task.Context)
	}
	return b.String()
}
