package research

import (
	"context"

	"go.uber.org/zap"

	"github.com/lexlabs/lexcrew/agent"
	"github.com/lexlabs/lexcrew/crew"
	"github.com/lexlabs/lexcrew/llm"
	"github.com/lexlabs/lexcrew/llm/tools"
)

// Task IDs within a research run.
const (
	taskAnalyze  = "analyze_query"
	taskSearch   = "search_cases"
	taskAnalysis = "legal_analysis"
)

// PipelineConfig tunes the research crew.
type PipelineConfig struct {
	Model         string
	Temperature   float32
	MaxTokens     int
	MaxIterations int // react loop cap per agent
	Verbose       bool
}

// Pipeline builds and runs legal research crews. One pipeline serves many
// runs; each run gets a fresh crew so task state never leaks between
// queries.
type Pipeline struct {
	provider llm.Provider
	registry *tools.Registry
	cfg      PipelineConfig
	logger   *zap.Logger
}

// NewPipeline creates a pipeline over the shared provider and registry.
// The registry must already carry the research tools.
func NewPipeline(provider llm.Provider, registry *tools.Registry, cfg PipelineConfig, logger *zap.Logger) *Pipeline {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = 10
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		provider: provider,
		registry: registry,
		cfg:      cfg,
		logger:   logger.With(zap.String("component", "pipeline")),
	}
}

// Run executes the three-stage research crew for one legal query.
func (p *Pipeline) Run(ctx context.Context, query string) (*crew.Result, error) {
	c := p.buildCrew()
	return c.Kickoff(ctx, map[string]string{"argument": query})
}

func (p *Pipeline) newAgent(id, role, goal, backstory string, toolNames []string) *agent.Agent {
	return agent.New(agent.Config{
		ID:          id,
		Role:        role,
		Goal:        goal,
		Backstory:   backstory,
		Model:       p.cfg.Model,
		Temperature: p.cfg.Temperature,
		MaxTokens:   p.cfg.MaxTokens,
		Tools:       toolNames,
		MaxIters:    p.cfg.MaxIterations,
	}, p.provider, p.registry, p.logger)
}

func (p *Pipeline) buildCrew() *crew.Crew {
	queryAnalyst := p.newAgent("query_analyst",
		"Legal Query Analyst",
		"Extract key legal terms and create search queries",
		"Expert in analyzing legal queries and creating effective search terms",
		nil)

	caseResearcher := p.newAgent("case_researcher",
		"Case Researcher",
		"Search and find relevant legal cases",
		"Specialist in finding relevant cases using Indian Kanoon API",
		[]string{ToolSearchCases, ToolFetchDocument, ToolSummarizeOriginal})

	legalAnalyst := p.newAgent("legal_analyst",
		"Legal Analyst",
		"Analyze cases and provide legal insights",
		"Senior legal expert providing detailed case analysis",
		[]string{ToolFetchDocument, ToolSummarizeOriginal})

	c := crew.New(crew.Config{
		Name:        "legal_research",
		Description: "Legal research over Indian Kanoon case law",
		Process:     crew.ProcessSequential,
		Verbose:     p.cfg.Verbose,
	}, p.logger)

	c.AddAgent(queryAnalyst)
	c.AddAgent(caseResearcher)
	c.AddAgent(legalAnalyst)

	c.AddTask(crew.Task{
		ID: taskAnalyze,
		Description: `Analyze this legal query: "{argument}"

Extract:
1. Key legal terms
2. Areas of law involved
3. Relevant search keywords

Create 2-3 search term variations for better results.`,
		ExpectedOutput: "Key terms and search variations",
		AssignedTo:     queryAnalyst.ID(),
	})

	c.AddTask(crew.Task{
		ID: taskSearch,
		Description: `Use the search_cases tool to find cases related to: "{argument}"

Then, for top cases, use fetch_document or summarize_original if needed.

Focus on cases highly relevant to the query.`,
		ExpectedOutput: "List of relevant cases with basic details",
		AssignedTo:     caseResearcher.ID(),
		DependsOn:      []string{taskAnalyze},
	})

	c.AddTask(crew.Task{
		ID: taskAnalysis,
		Description: `Provide legal analysis for the found cases.

For each case provide:
1. Case title and court
2. Year and document ID
3. Relevance to query
4. Key legal points
5. Case summary

Focus on cases most relevant to: "{argument}"`,
		ExpectedOutput: "Detailed legal analysis of relevant cases",
		AssignedTo:     legalAnalyst.ID(),
		DependsOn:      []string{taskAnalyze, taskSearch},
	})

	return c
}
