package research

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lexlabs/lexcrew/docstore"
	"github.com/lexlabs/lexcrew/internal/metrics"
	"github.com/lexlabs/lexcrew/kanoon"
	"github.com/lexlabs/lexcrew/llm"
	"github.com/lexlabs/lexcrew/llm/tools"
)

// Tool names exposed to agents.
const (
	ToolSearchCases       = "search_cases"
	ToolFetchDocument     = "fetch_document"
	ToolSummarizeOriginal = "summarize_original"
)

// Canned tool replies the agents are prompted to interpret.
const (
	msgNoResults  = "No results found."
	msgNoText     = "No text content found."
	msgNoOriginal = "Original document not found."
)

// Tools wires the Kanoon client, object store, and summarizer LLM into
// registry tools.
type Tools struct {
	kanoon    *kanoon.Client
	store     docstore.ObjectStore
	provider  llm.Provider
	collector *metrics.Collector
	cfg       ToolsConfig
	logger    *zap.Logger
}

// ToolsConfig tunes tool behavior.
type ToolsConfig struct {
	Model         string  // summarizer model
	Temperature   float32 // summarizer temperature
	DocTokenLimit int     // token cap on document text handed to the LLM
	SearchPages   int     // result pages per search
	RatePerSec    float64 // per-tool rate limit against the upstream API
}

// NewTools creates the tool set. The provider is only used by
// summarize_original.
func NewTools(client *kanoon.Client, store docstore.ObjectStore, provider llm.Provider, cfg ToolsConfig, logger *zap.Logger) *Tools {
	if cfg.DocTokenLimit <= 0 {
		cfg.DocTokenLimit = 4000
	}
	if cfg.SearchPages <= 0 {
		cfg.SearchPages = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tools{
		kanoon:   client,
		store:    store,
		provider: provider,
		cfg:      cfg,
		logger:   logger.With(zap.String("component", "research_tools")),
	}
}

// WithCollector enables per-tool metrics. Must be called before
// RegisterAll.
func (t *Tools) WithCollector(collector *metrics.Collector) *Tools {
	t.collector = collector
	return t
}

// RegisterAll registers search_cases, fetch_document, and
// summarize_original on the registry.
func (t *Tools) RegisterAll(registry *tools.Registry) error {
	var limit *tools.RateLimitConfig
	if t.cfg.RatePerSec > 0 {
		limit = &tools.RateLimitConfig{PerSecond: t.cfg.RatePerSec, Burst: int(t.cfg.RatePerSec)}
	}

	entries := []struct {
		name    string
		fn      tools.ToolFunc
		desc    string
		params  string
		timeout time.Duration
	}{
		{
			name:    ToolSearchCases,
			fn:      t.SearchCases,
			desc:    "Search Indian Kanoon for relevant legal cases given a query string",
			params:  `{"type":"object","properties":{"query":{"type":"string","description":"Search query for the case-law index"}},"required":["query"]}`,
			timeout: 30 * time.Second,
		},
		{
			name:    ToolFetchDocument,
			fn:      t.FetchDocument,
			desc:    "Fetch full document content by doc ID from Indian Kanoon",
			params:  `{"type":"object","properties":{"doc_id":{"type":"string","description":"Numeric document ID from search results"}},"required":["doc_id"]}`,
			timeout: 30 * time.Second,
		},
		{
			name:    ToolSummarizeOriginal,
			fn:      t.SummarizeOriginal,
			desc:    "Download and summarize original document (PDF/TXT) by doc ID",
			params:  `{"type":"object","properties":{"doc_id":{"type":"string","description":"Numeric document ID from search results"}},"required":["doc_id"]}`,
			timeout: 90 * time.Second, // download + LLM summary
		},
	}

	for _, e := range entries {
		meta := tools.ToolMetadata{
			Schema: llm.ToolSchema{
				Name:        e.name,
				Description: e.desc,
				Parameters:  json.RawMessage(e.params),
			},
			Timeout:   e.timeout,
			RateLimit: limit,
		}
		if err := registry.Register(e.name, t.measured(e.name, e.fn), meta); err != nil {
			return fmt.Errorf("register %s: %w", e.name, err)
		}
	}
	return nil
}

// measured wraps a tool function to record invocation metrics.
func (t *Tools) measured(name string, fn tools.ToolFunc) tools.ToolFunc {
	if t.collector == nil {
		return fn
	}
	return func(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
		start := time.Now()
		out, err := fn(ctx, args)
		status := "ok"
		if err != nil {
			status = "error"
		}
		t.collector.RecordToolCall(name, status, time.Since(start))
		return out, err
	}
}

type queryArgs struct {
	Query string `json:"query"`
}

type docIDArgs struct {
	DocID json.Number `json:"doc_id"`
}

func (a docIDArgs) parse() (int, error) {
	s := strings.TrimSpace(a.DocID.String())
	if s == "" {
		return 0, errors.New("doc_id is required")
	}
	id, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("doc_id must be numeric, got %q", s)
	}
	return id, nil
}

// SearchCases searches the case-law index and renders one line per hit.
func (t *Tools) SearchCases(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
	var a queryArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	if strings.TrimSpace(a.Query) == "" {
		return nil, errors.New("query is required")
	}

	cases, err := t.kanoon.SearchCases(ctx, a.Query, t.cfg.SearchPages)
	if err != nil {
		return nil, err
	}
	if len(cases) == 0 {
		return textResult(msgNoResults)
	}

	lines := make([]string, len(cases))
	for i, c := range cases {
		lines[i] = c.FormatLine()
	}
	return textResult(strings.Join(lines, "\n"))
}

// FetchDocument retrieves a judgment's text, capped at the document token
// limit.
func (t *Tools) FetchDocument(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
	var a docIDArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	docID, err := a.parse()
	if err != nil {
		return nil, err
	}

	doc, err := t.kanoon.FetchDocument(ctx, docID)
	if err != nil {
		return nil, err
	}

	text := doc.PlainText()
	if text == "" {
		return textResult(msgNoText)
	}
	text, err = TruncateTokens(text, t.cfg.DocTokenLimit)
	if err != nil {
		return nil, err
	}
	return textResult(text)
}

// SummarizeOriginal downloads the original filing, archives it in the
// object store, and summarizes the extracted text with the LLM.
func (t *Tools) SummarizeOriginal(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
	var a docIDArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	docID, err := a.parse()
	if err != nil {
		return nil, err
	}

	orig, err := t.kanoon.FetchOriginalDocument(ctx, docID)
	if err != nil {
		if errors.Is(err, kanoon.ErrNoOriginal) {
			return textResult(msgNoOriginal)
		}
		return nil, err
	}

	// Archive the filing; summarization still proceeds if storage fails.
	key := docstore.OriginalKey(docID, orig.ContentType)
	if _, err := t.store.Put(ctx, key, orig.Data, orig.ContentType); err != nil {
		t.logger.Warn("failed to archive original document",
			zap.Int("doc_id", docID),
			zap.String("key", key),
			zap.Error(err))
	}

	text, err := docstore.ExtractText(orig.Data, orig.ContentType)
	if err != nil {
		return nil, fmt.Errorf("extract text from original: %w", err)
	}
	text, err = TruncateTokens(text, t.cfg.DocTokenLimit)
	if err != nil {
		return nil, err
	}

	summary, err := t.summarize(ctx, text)
	if err != nil {
		return nil, err
	}
	return textResult(summary)
}

func (t *Tools) summarize(ctx context.Context, text string) (string, error) {
	resp, err := t.provider.Completion(ctx, &llm.ChatRequest{
		Model:       t.cfg.Model,
		Temperature: t.cfg.Temperature,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: "Summarize the following legal document:\n\n" + text},
		},
	})
	if err != nil {
		return "", fmt.Errorf("summarize document: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("summarize document: empty response")
	}
	return resp.Choices[0].Message.Content, nil
}

// textResult wraps plain text as a JSON string for the tool result.
func textResult(s string) (json.RawMessage, error) {
	return json.Marshal(s)
}
