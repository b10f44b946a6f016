package agent

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lexlabs/lexcrew/crew"
	"github.com/lexlabs/lexcrew/llm"
	"github.com/lexlabs/lexcrew/llm/tools"
)

// scriptedProvider answers each Completion call from a fixed script and
// records the requests it sees. The last response repeats once the
// script runs out.
type scriptedProvider struct {
	responses []*llm.ChatResponse
	requests  []*llm.ChatRequest
}

func (p *scriptedProvider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	p.requests = append(p.requests, req)
	idx := len(p.requests) - 1
	if idx >= len(p.responses) {
		idx = len(p.responses) - 1
	}
	return p.responses[idx], nil
}

func (p *scriptedProvider) HealthCheck(ctx context.Context) (*llm.HealthStatus, error) {
	return &llm.HealthStatus{Healthy: true}, nil
}

func (p *scriptedProvider) Name() string                        { return "scripted" }
func (p *scriptedProvider) SupportsNativeFunctionCalling() bool { return true }

func textResponse(content string, tokens int) *llm.ChatResponse {
	return &llm.ChatResponse{
		Provider: "scripted",
		Choices: []llm.ChatChoice{{
			FinishReason: "stop",
			Message:      llm.Message{Role: llm.RoleAssistant, Content: content},
		}},
		Usage: llm.ChatUsage{TotalTokens: tokens},
	}
}

func toolCallResponse(name, args string, tokens int) *llm.ChatResponse {
	return &llm.ChatResponse{
		Provider: "scripted",
		Choices: []llm.ChatChoice{{
			FinishReason: "tool_calls",
			Message: llm.Message{
				Role: llm.RoleAssistant,
				ToolCalls: []llm.ToolCall{{
					ID: "call_1", Name: name, Arguments: json.RawMessage(args),
				}},
			},
		}},
		Usage: llm.ChatUsage{TotalTokens: tokens},
	}
}

func newTestRegistry(t *testing.T) *tools.Registry {
	t.Helper()
	reg := tools.NewRegistry(zap.NewNop())
	echo := func(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
		return json.Marshal("echoed")
	}
	require.NoError(t, reg.Register("search_cases", echo, tools.ToolMetadata{
		Schema: llm.ToolSchema{Name: "search_cases", Parameters: json.RawMessage(`{"type":"object"}`)},
	}))
	require.NoError(t, reg.Register("fetch_document", echo, tools.ToolMetadata{
		Schema: llm.ToolSchema{Name: "fetch_document", Parameters: json.RawMessage(`{"type":"object"}`)},
	}))
	return reg
}

func TestAgent_Execute_PlainCompletion(t *testing.T) {
	provider := &scriptedProvider{responses: []*llm.ChatResponse{textResponse("the answer", 42)}}
	a := New(Config{Role: "Legal Query Analyst", Goal: "extract terms", Backstory: "Expert."}, provider, nil, nil)

	result, err := a.Execute(context.Background(), crew.Task{ID: "t1", Description: "analyze this"})
	require.NoError(t, err)
	assert.Equal(t, "the answer", result.Output)
	assert.Equal(t, 42, result.TokensUsed)
	assert.Equal(t, a.ID(), result.AgentID)

	require.Len(t, provider.requests, 1)
	msgs := provider.requests[0].Messages
	require.Len(t, msgs, 2)
	assert.Equal(t, llm.RoleSystem, msgs[0].Role)
	assert.Empty(t, provider.requests[0].Tools)
}

func TestAgent_Execute_ToolRoundTrip(t *testing.T) {
	provider := &scriptedProvider{responses: []*llm.ChatResponse{
		toolCallResponse("search_cases", `{"query":"bail"}`, 20),
		textResponse("cases found", 15),
	}}
	a := New(Config{
		Role: "Case Researcher", Goal: "find cases", Backstory: "Skilled researcher.",
		Tools: []string{"search_cases"},
	}, provider, newTestRegistry(t), nil)

	result, err := a.Execute(context.Background(), crew.Task{ID: "t1", Description: "search"})
	require.NoError(t, err)
	assert.Equal(t, "cases found", result.Output)
	assert.Equal(t, 35, result.TokensUsed)

	// Only whitelisted tools are advertised to the model.
	require.Len(t, provider.requests, 2)
	require.Len(t, provider.requests[0].Tools, 1)
	assert.Equal(t, "search_cases", provider.requests[0].Tools[0].Name)

	// The second request carries the tool observation.
	second := provider.requests[1].Messages
	last := second[len(second)-1]
	assert.Equal(t, llm.RoleTool, last.Role)
	assert.Equal(t, "echoed", last.Content)
}

func TestAgent_Execute_WhitelistRejectsTool(t *testing.T) {
	provider := &scriptedProvider{responses: []*llm.ChatResponse{
		toolCallResponse("fetch_document", `{"doc_id":1}`, 10),
		textResponse("gave up", 5),
	}}
	a := New(Config{
		Role: "Restricted", Goal: "g", Backstory: "b",
		Tools: []string{"search_cases"},
	}, provider, newTestRegistry(t), nil)

	_, err := a.Execute(context.Background(), crew.Task{ID: "t1", Description: "fetch"})
	require.NoError(t, err)

	// The model sees the denial as an error observation.
	second := provider.requests[1].Messages
	last := second[len(second)-1]
	assert.Equal(t, llm.RoleTool, last.Role)
	assert.Contains(t, last.Content, "not allowed")
}

func TestAgent_Execute_NoProvider(t *testing.T) {
	a := New(Config{Role: "Orphan"}, nil, nil, nil)
	_, err := a.Execute(context.Background(), crew.Task{ID: "t1"})
	assert.ErrorIs(t, err, ErrProviderNotSet)
}

func TestAgent_Execute_Busy(t *testing.T) {
	block := make(chan struct{})
	provider := &blockingProvider{block: block}
	a := New(Config{Role: "Busy"}, provider, nil, nil)

	started := make(chan struct{})
	go func() {
		close(started)
		_, _ = a.Execute(context.Background(), crew.Task{ID: "t1", Description: "slow"})
	}()
	<-started
	// Give the goroutine a moment to take the lock.
	require.Eventually(t, func() bool {
		_, err := a.Execute(context.Background(), crew.Task{ID: "t2", Description: "fast"})
		return err == ErrAgentBusy
	}, time.Second, 5*time.Millisecond)
	close(block)
}

type blockingProvider struct{ block chan struct{} }

func (p *blockingProvider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	<-p.block
	return textResponse("done", 1), nil
}

func (p *blockingProvider) HealthCheck(ctx context.Context) (*llm.HealthStatus, error) {
	return &llm.HealthStatus{Healthy: true}, nil
}

func (p *blockingProvider) Name() string                        { return "blocking" }
func (p *blockingProvider) SupportsNativeFunctionCalling() bool { return true }

func TestAgent_SystemPrompt(t *testing.T) {
	a := New(Config{
		Role:      "Legal Query Analyst",
		Goal:      "Extract key legal terms and create search queries",
		Backstory: "Expert in analyzing legal queries and creating effective search terms",
	}, nil, nil, nil)

	prompt := a.SystemPrompt()
	assert.Contains(t, prompt, "You are Legal Query Analyst.")
	assert.Contains(t, prompt, "Your personal goal is: Extract key legal terms")
	assert.NotContains(t, prompt, "available tools")

	withTools := New(Config{Role: "R", Goal: "g", Backstory: "b", Tools: []string{"search_cases"}}, nil, nil, nil)
	assert.Contains(t, withTools.SystemPrompt(), "Use the available tools")
}

func TestRenderTaskPrompt(t *testing.T) {
	prompt := renderTaskPrompt(crew.Task{
		Description:    "  Search for cases about bail.  ",
		ExpectedOutput: "A bulleted list of cases",
		Context:        "previous findings",
	})
	assert.Equal(t, "Search for cases about bail."+
		"\n\nThis is the expected output for your final answer: A bulleted list of cases"+
		"\n\nThis is the context you're working with:\nprevious findings", prompt)

	bare := renderTaskPrompt(crew.Task{Description: "just do it"})
	assert.Equal(t, "just do it", bare)
}
