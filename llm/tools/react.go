package tools

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/lexlabs/lexcrew/llm"
)

// ReActConfig tunes the reasoning/acting loop.
type ReActConfig struct {
	MaxIterations int  // hard cap on LLM->tool round trips, default 10
	StopOnError   bool // abort the loop when any tool call fails
}

// ReActExecutor drives the LLM -> tool -> LLM loop until the model stops
// requesting tools or the iteration cap is hit.
type ReActExecutor struct {
	provider     llm.Provider
	toolExecutor ToolExecutor
	config       ReActConfig
	logger       *zap.Logger
}

// NewReActExecutor creates a ReAct executor.
func NewReActExecutor(provider llm.Provider, toolExecutor ToolExecutor, config ReActConfig, logger *zap.Logger) *ReActExecutor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.MaxIterations == 0 {
		config.MaxIterations = 10
	}
	return &ReActExecutor{
		provider:     provider,
		toolExecutor: toolExecutor,
		config:       config,
		logger:       logger,
	}
}

// ReActStep records one loop iteration: thought, actions, observations.
type ReActStep struct {
	StepNumber   int            `json:"step_number"`
	Thought      string         `json:"thought,omitempty"`
	Actions      []llm.ToolCall `json:"actions,omitempty"`
	Observations []ToolResult   `json:"observations,omitempty"`
	TokensUsed   int            `json:"tokens_used,omitempty"`
}

// Execute runs the loop and returns the final response alongside all steps.
func (r *ReActExecutor) Execute(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, []ReActStep, error) {
	steps := make([]ReActStep, 0)
	messages := append([]llm.Message{}, req.Messages...)

	for i := 0; i < r.config.MaxIterations; i++ {
		r.logger.Debug("react iteration", zap.Int("iteration", i+1))

		callReq := *req
		callReq.Messages = messages
		resp, err := r.provider.Completion(ctx, &callReq)
		if err != nil {
			return nil, steps, fmt.Errorf("LLM call failed at iteration %d: %w", i+1, err)
		}
		if len(resp.Choices) == 0 {
			return resp, steps, fmt.Errorf("no choices in LLM response")
		}

		choice := resp.Choices[0]
		toolCalls := choice.Message.ToolCalls

		step := ReActStep{
			StepNumber: i + 1,
			Thought:    choice.Message.Content,
			TokensUsed: resp.Usage.TotalTokens,
		}

		if len(toolCalls) == 0 {
			r.logger.Info("react completed",
				zap.Int("iterations", i+1),
				zap.String("finish_reason", choice.FinishReason))
			steps = append(steps, step)
			return resp, steps, nil
		}

		r.logger.Info("executing tools", zap.Int("count", len(toolCalls)))
		step.Actions = toolCalls
		toolResults := r.toolExecutor.Execute(ctx, toolCalls)
		step.Observations = toolResults
		steps = append(steps, step)

		hasError := false
		for _, result := range toolResults {
			if result.Error != "" {
				hasError = true
				r.logger.Warn("tool execution failed",
					zap.String("tool", result.Name),
					zap.String("error", result.Error))
			}
		}
		if hasError && r.config.StopOnError {
			return resp, steps, fmt.Errorf("tool execution failed, stopping react loop")
		}

		messages = append(messages, choice.Message)
		for _, result := range toolResults {
			messages = append(messages, result.ToMessage())
		}
	}

	r.logger.Warn("react max iterations reached", zap.Int("max", r.config.MaxIterations))
	return nil, steps, fmt.Errorf("max iterations reached (%d)", r.config.MaxIterations)
}
