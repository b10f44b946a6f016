// Package kanoon is a client for the Indian Kanoon case-law API.
//
// The API authenticates with "Authorization: Token <key>" and, unusually,
// serves reads over POST. Search results carry HTML fragments in the
// headline field; callers get them pre-stripped.
package kanoon

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL = "https://api.indiankanoon.org"

	// snippetRunes matches the headline preview length used by the
	// research tools.
	snippetRunes = 200
)

// ErrNoOriginal is returned when a judgment has no original filing on record.
var ErrNoOriginal = &Error{StatusCode: http.StatusNotFound, Message: "original document not found"}

// Config holds client settings.
type Config struct {
	APIKey     string
	BaseURL    string        // defaults to the public API endpoint
	Timeout    time.Duration // HTTP timeout, default 30s
	MaxRetries int           // retries on retryable statuses, default 2
	RatePerSec float64       // client-side request rate, default 5/s
	Burst      int           // rate limiter burst, default 5
}

// Client talks to the Indian Kanoon API.
type Client struct {
	cfg     Config
	client  *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewClient creates a Kanoon API client.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 2
	}
	if cfg.RatePerSec == 0 {
		cfg.RatePerSec = 5
	}
	if cfg.Burst == 0 {
		cfg.Burst = 5
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.Burst),
		logger:  logger.With(zap.String("component", "kanoon")),
	}
}

// SearchCases queries the case-law index and returns the mapped hits.
func (c *Client) SearchCases(ctx context.Context, query string, maxPages int) ([]Case, error) {
	if maxPages <= 0 {
		maxPages = 1
	}
	q := url.QueryEscape(query)
	path := fmt.Sprintf("/search/?formInput=%s&pagenum=0&maxpages=%d", q, maxPages)

	var sr searchResponse
	if err := c.post(ctx, path, &sr); err != nil {
		return nil, err
	}

	cases := make([]Case, 0, len(sr.Docs))
	for _, doc := range sr.Docs {
		cases = append(cases, Case{
			DocID:   doc.Tid,
			Title:   doc.Title,
			Court:   courtOrUnknown(doc.DocSource),
			Year:    yearOf(doc.PublishDate),
			Snippet: Truncate(StripTags(doc.Headline), snippetRunes),
		})
	}

	c.logger.Debug("search completed", zap.String("query", query), zap.Int("hits", len(cases)))
	return cases, nil
}

// FetchDocument retrieves the full judgment for a document ID.
func (c *Client) FetchDocument(ctx context.Context, docID int) (*Document, error) {
	var doc Document
	if err := c.post(ctx, fmt.Sprintf("/doc/%d/", docID), &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// FetchOriginalDocument downloads the original filing for a document ID.
// Returns ErrNoOriginal when the judgment has no original on record.
func (c *Client) FetchOriginalDocument(ctx context.Context, docID int) (*OriginalDocument, error) {
	var resp origDocResponse
	if err := c.post(ctx, fmt.Sprintf("/origdoc/%d/", docID), &resp); err != nil {
		return nil, err
	}
	if resp.Doc == "" {
		return nil, ErrNoOriginal
	}

	data, err := base64.StdEncoding.DecodeString(resp.Doc)
	if err != nil {
		return nil, fmt.Errorf("decode original document: %w", err)
	}

	contentType := resp.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return &OriginalDocument{DocID: docID, Data: data, ContentType: contentType}, nil
}

// HealthCheck probes the API with a minimal search.
func (c *Client) HealthCheck(ctx context.Context) error {
	_, err := c.SearchCases(ctx, "constitution", 1)
	return err
}

// post performs a rate-limited POST with retry on retryable statuses and
// decodes the JSON response into out.
func (c *Client) post(ctx context.Context, path string, out any) error {
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + path

	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
			}
			c.logger.Debug("retrying request", zap.String("path", path), zap.Int("attempt", attempt))
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Authorization", "Token "+c.cfg.APIKey)
		req.Header.Set("Accept", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = &Error{StatusCode: http.StatusBadGateway, Message: err.Error(), Retryable: true}
			continue
		}

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			apiErr := &Error{
				StatusCode: resp.StatusCode,
				Message:    strings.TrimSpace(string(body)),
				Retryable:  resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500,
			}
			if !apiErr.Retryable {
				return apiErr
			}
			lastErr = apiErr
			continue
		}

		err = json.NewDecoder(resp.Body).Decode(out)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}
	return lastErr
}

func courtOrUnknown(source string) string {
	if source == "" {
		return "Unknown"
	}
	return source
}

func yearOf(publishDate string) string {
	if len(publishDate) < 4 {
		return "Unknown"
	}
	return publishDate[:4]
}
