package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/lexlabs/lexcrew/llm"
	"github.com/lexlabs/lexcrew/llm/tools"
)

// whitelistExecutor wraps a ToolExecutor and rejects calls to tools outside
// the agent's allowed set. The model sometimes hallucinates tool names; the
// rejection flows back to it as a tool error message.
type whitelistExecutor struct {
	inner   tools.ToolExecutor
	allowed map[string]struct{}
}

func newWhitelistExecutor(inner tools.ToolExecutor, allowedTools []string) whitelistExecutor {
	allowed := make(map[string]struct{}, len(allowedTools))
	for _, name := range allowedTools {
		name = strings.TrimSpace(name)
		if name != "" {
			allowed[name] = struct{}{}
		}
	}
	return whitelistExecutor{inner: inner, allowed: allowed}
}

func (e whitelistExecutor) isAllowed(name string) bool {
	_, ok := e.allowed[strings.TrimSpace(name)]
	return ok
}

func (e whitelistExecutor) Execute(ctx context.Context, calls []llm.ToolCall) []tools.ToolResult {
	out := make([]tools.ToolResult, len(calls))
	allowedCalls := make([]llm.ToolCall, 0, len(calls))
	allowedIdx := make([]int, 0, len(calls))

	for i, c := range calls {
		if !e.isAllowed(c.Name) {
			out[i] = tools.ToolResult{
				ToolCallID: c.ID,
				Name:       c.Name,
				Error:      fmt.Sprintf("tool %s not allowed", c.Name),
			}
			continue
		}
		allowedCalls = append(allowedCalls, c)
		allowedIdx = append(allowedIdx, i)
	}

	if len(allowedCalls) == 0 {
		return out
	}

	executed := e.inner.Execute(ctx, allowedCalls)
	for i, idx := range allowedIdx {
		out[idx] = executed[i]
	}
	return out
}

func (e whitelistExecutor) ExecuteOne(ctx context.Context, call llm.ToolCall) tools.ToolResult {
	res := e.Execute(ctx, []llm.ToolCall{call})
	return res[0]
}
