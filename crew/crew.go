// Package crew orchestrates a group of agents over an ordered task list,
// CrewAI style: each task can receive the outputs of earlier tasks as
// context, and the final task's output is the crew's answer.
package crew

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Agent is the contract crew members implement.
type Agent interface {
	ID() string
	Role() string
	Execute(ctx context.Context, task Task) (*TaskResult, error)
}

// Task is a unit of work assigned to one agent.
type Task struct {
	ID             string   `json:"id"`
	Description    string   `json:"description"`
	ExpectedOutput string   `json:"expected_output"`
	AssignedTo     string   `json:"assigned_to,omitempty"` // agent ID
	DependsOn      []string `json:"depends_on,omitempty"`  // task IDs whose output becomes context
	Context        string   `json:"context,omitempty"`     // resolved by the crew before execution
}

// TaskResult is the outcome of a single task.
type TaskResult struct {
	TaskID     string        `json:"task_id"`
	AgentID    string        `json:"agent_id,omitempty"`
	Output     string        `json:"output"`
	Error      string        `json:"error,omitempty"`
	TokensUsed int           `json:"tokens_used,omitempty"`
	Duration   time.Duration `json:"duration"`
}

// ProcessType selects how tasks are dispatched.
type ProcessType string

const (
	ProcessSequential   ProcessType = "sequential"
	ProcessHierarchical ProcessType = "hierarchical"
)

// Config configures a crew.
type Config struct {
	Name        string
	Description string
	Process     ProcessType
	Verbose     bool
}

// Crew is a group of agents working through an ordered task list.
type Crew struct {
	ID          string
	Name        string
	Description string
	Process     ProcessType
	Verbose     bool

	mu     sync.RWMutex
	agents map[string]Agent
	order  []string // agent IDs in registration order, first is the manager
	tasks  []*Task

	logger *zap.Logger
}

// New creates a crew.
func New(cfg Config, logger *zap.Logger) *Crew {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Process == "" {
		cfg.Process = ProcessSequential
	}
	return &Crew{
		ID:          uuid.NewString(),
		Name:        cfg.Name,
		Description: cfg.Description,
		Process:     cfg.Process,
		Verbose:     cfg.Verbose,
		agents:      make(map[string]Agent),
		logger:      logger.With(zap.String("component", "crew"), zap.String("crew", cfg.Name)),
	}
}

// AddAgent registers an agent. The first agent added acts as the manager
// under the hierarchical process.
func (c *Crew) AddAgent(a Agent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.agents[a.ID()]; ok {
		return
	}
	c.agents[a.ID()] = a
	c.order = append(c.order, a.ID())
	c.logger.Info("agent added", zap.String("id", a.ID()), zap.String("role", a.Role()))
}

// AddTask appends a task to the crew's task list.
func (c *Crew) AddTask(task Task) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if task.ID == "" {
		task.ID = fmt.Sprintf("task_%d", len(c.tasks)+1)
	}
	c.tasks = append(c.tasks, &task)
}

// Result carries the outcome of a full crew run.
type Result struct {
	CrewID      string                 `json:"crew_id"`
	TaskResults map[string]*TaskResult `json:"task_results"`
	TaskOrder   []string               `json:"task_order"`
	FinalOutput string                 `json:"final_output"`
	TokensUsed  int                    `json:"tokens_used"`
	StartTime   time.Time              `json:"start_time"`
	EndTime     time.Time              `json:"end_time"`
	Duration    time.Duration          `json:"duration"`
}

// Kickoff executes all tasks. The inputs map is interpolated into task
// descriptions: every "{key}" is replaced by its value. A failing task
// records its error in the result and execution continues; the final
// output comes from the last task that produced one.
func (c *Crew) Kickoff(ctx context.Context, inputs map[string]string) (*Result, error) {
	c.mu.RLock()
	tasks := make([]*Task, len(c.tasks))
	copy(tasks, c.tasks)
	c.mu.RUnlock()

	if len(tasks) == 0 {
		return nil, fmt.Errorf("crew %s has no tasks", c.Name)
	}

	c.logger.Info("starting crew execution", zap.Int("tasks", len(tasks)))
	start := time.Now()

	result := &Result{
		CrewID:      c.ID,
		TaskResults: make(map[string]*TaskResult),
		StartTime:   start,
	}

	for _, task := range tasks {
		resolved := *task
		resolved.Description = Interpolate(resolved.Description, inputs)
		resolved.Context = c.buildContext(resolved.DependsOn, result)

		agent, err := c.pickAgent(&resolved)
		if err != nil {
			return result, err
		}

		if c.Verbose {
			c.logger.Info("dispatching task",
				zap.String("task", resolved.ID),
				zap.String("agent", agent.ID()),
				zap.String("role", agent.Role()))
		}

		taskResult, err := agent.Execute(ctx, resolved)
		if err != nil {
			taskResult = &TaskResult{TaskID: resolved.ID, AgentID: agent.ID(), Error: err.Error()}
			c.logger.Warn("task failed",
				zap.String("task", resolved.ID),
				zap.String("agent", agent.ID()),
				zap.Error(err))
		}
		if taskResult.AgentID == "" {
			taskResult.AgentID = agent.ID()
		}
		result.TaskResults[resolved.ID] = taskResult
		result.TaskOrder = append(result.TaskOrder, resolved.ID)
		result.TokensUsed += taskResult.TokensUsed
		if taskResult.Error == "" && taskResult.Output != "" {
			result.FinalOutput = taskResult.Output
		}

		if err := ctx.Err(); err != nil {
			return result, err
		}
	}

	result.EndTime = time.Now()
	result.Duration = result.EndTime.Sub(start)
	c.logger.Info("crew execution completed",
		zap.Duration("duration", result.Duration),
		zap.Int("tokens_used", result.TokensUsed))
	return result, nil
}

// pickAgent resolves the executing agent for a task. Sequential runs honor
// the task's assignment and fall back to the first registered agent;
// hierarchical runs route unassigned tasks to the manager.
func (c *Crew) pickAgent(task *Task) (Agent, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.order) == 0 {
		return nil, fmt.Errorf("crew %s has no agents", c.Name)
	}

	if task.AssignedTo != "" {
		if a, ok := c.agents[task.AssignedTo]; ok {
			return a, nil
		}
		if c.Process == ProcessSequential {
			return nil, fmt.Errorf("no agent %q for task %s", task.AssignedTo, task.ID)
		}
	}

	// Manager handles anything unroutable.
	return c.agents[c.order[0]], nil
}

func (c *Crew) buildContext(dependsOn []string, result *Result) string {
	if len(dependsOn) == 0 {
		return ""
	}
	var parts []string
	for _, id := range dependsOn {
		if tr, ok := result.TaskResults[id]; ok && tr.Error == "" && tr.Output != "" {
			parts = append(parts, tr.Output)
		}
	}
	return strings.Join(parts, "\n\n----------\n\n")
}

// Interpolate replaces every "{key}" placeholder in s with its value.
func Interpolate(s string, inputs map[string]string) string {
	if len(inputs) == 0 {
		return s
	}
	pairs := make([]string, 0, len(inputs)*2)
	for k, v := range inputs {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(s)
}
