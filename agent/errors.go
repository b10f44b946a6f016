package agent

import "errors"

var (
	// ErrProviderNotSet means the agent was built without an LLM provider.
	ErrProviderNotSet = errors.New("agent: provider not set")
	// ErrAgentBusy means the agent is already executing a task.
	ErrAgentBusy = errors.New("agent: already executing")
)
