package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/lexlabs/lexcrew/research"
)

// ResearchHandler serves the research run endpoints.
type ResearchHandler struct {
	service *research.Service
	logger  *zap.Logger
}

// NewResearchHandler creates the handler.
func NewResearchHandler(service *research.Service, logger *zap.Logger) *ResearchHandler {
	return &ResearchHandler{
		service: service,
		logger:  logger.With(zap.String("handler", "research")),
	}
}

// ResearchRequest is the POST /api/v1/research body.
type ResearchRequest struct {
	Argument string `json:"argument"`
}

// ResearchResponse is the crew run outcome returned to the client.
type ResearchResponse struct {
	RunID      string `json:"run_id"`
	Query      string `json:"query"`
	Output     string `json:"output"`
	TokensUsed int    `json:"tokens_used"`
	DurationMS int64  `json:"duration_ms"`
	CacheHit   bool   `json:"cache_hit"`
}

// RunDetail is the GET /api/v1/research/{id} payload.
type RunDetail struct {
	RunID       string       `json:"run_id"`
	Query       string       `json:"query"`
	Status      string       `json:"status"`
	FinalOutput string       `json:"final_output,omitempty"`
	Error       string       `json:"error,omitempty"`
	TokensUsed  int          `json:"tokens_used"`
	DurationMS  int64        `json:"duration_ms"`
	CreatedAt   time.Time    `json:"created_at"`
	Tasks       []TaskDetail `json:"tasks,omitempty"`
}

// TaskDetail is one task outcome within a run.
type TaskDetail struct {
	TaskID     string `json:"task_id"`
	AgentID    string `json:"agent_id"`
	Output     string `json:"output,omitempty"`
	Error      string `json:"error,omitempty"`
	TokensUsed int    `json:"tokens_used"`
	DurationMS int64  `json:"duration_ms"`
}

// HandleRun handles POST /api/v1/research.
func (h *ResearchHandler) HandleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		WriteError(w, r, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "only POST is supported", h.logger)
		return
	}

	var req ResearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, r, http.StatusBadRequest, "INVALID_REQUEST", "invalid JSON body: "+err.Error(), h.logger)
		return
	}

	answer, err := h.service.Run(r.Context(), req.Argument)
	if err != nil {
		if errors.Is(err, research.ErrEmptyQuery) {
			WriteError(w, r, http.StatusBadRequest, "INVALID_REQUEST", err.Error(), h.logger)
			return
		}
		WriteProviderError(w, r, err, h.logger)
		return
	}

	WriteSuccess(w, r, ResearchResponse{
		RunID:      answer.RunID,
		Query:      answer.Query,
		Output:     answer.Output,
		TokensUsed: answer.TokensUsed,
		DurationMS: answer.Duration.Milliseconds(),
		CacheHit:   answer.CacheHit,
	})
}

// HandleGet handles GET /api/v1/research/{id}.
func (h *ResearchHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteError(w, r, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "only GET is supported", h.logger)
		return
	}

	id := r.PathValue("id")
	if id == "" {
		WriteError(w, r, http.StatusBadRequest, "INVALID_REQUEST", "run id is required", h.logger)
		return
	}

	run, err := h.service.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, research.ErrRunNotFound) {
			WriteError(w, r, http.StatusNotFound, "NOT_FOUND", "no research run with id "+id, h.logger)
			return
		}
		WriteError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error(), h.logger)
		return
	}

	WriteSuccess(w, r, runDetail(run))
}

// HandleList handles GET /api/v1/research.
func (h *ResearchHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		WriteError(w, r, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "only GET is supported", h.logger)
		return
	}

	runs, err := h.service.List(r.Context(), 20)
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error(), h.logger)
		return
	}

	details := make([]RunDetail, len(runs))
	for i := range runs {
		details[i] = runDetail(&runs[i])
	}
	WriteSuccess(w, r, details)
}

func runDetail(run *research.Run) RunDetail {
	detail := RunDetail{
		RunID:       run.ID,
		Query:       run.Query,
		Status:      run.Status,
		FinalOutput: run.FinalOutput,
		Error:       run.Error,
		TokensUsed:  run.TokensUsed,
		DurationMS:  run.DurationMS,
		CreatedAt:   run.CreatedAt,
	}
	for _, t := range run.Tasks {
		detail.Tasks = append(detail.Tasks, TaskDetail{
			TaskID:     t.TaskID,
			AgentID:    t.AgentID,
			Output:     t.Output,
			Error:      t.Error,
			TokensUsed: t.TokensUsed,
			DurationMS: t.DurationMS,
		})
	}
	return detail
}
