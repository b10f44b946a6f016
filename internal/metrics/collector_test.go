package metrics

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

// Each test gets its own namespace so promauto never sees a duplicate
// registration on the default registry.
var collectorNamespaceSeq uint64

func nextTestNamespace() string {
	seq := atomic.AddUint64(&collectorNamespaceSeq, 1)
	return fmt.Sprintf("test_%d", seq)
}

func TestNewCollector(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	assert.NotNil(t, collector)
	assert.NotNil(t, collector.httpRequestsTotal)
	assert.NotNil(t, collector.llmRequestsTotal)
	assert.NotNil(t, collector.llmTokensUsed)
	assert.NotNil(t, collector.toolCallsTotal)
	assert.NotNil(t, collector.researchRunsTotal)
	assert.NotNil(t, collector.cacheHits)
}

func TestCollector_RecordHTTPRequest(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordHTTPRequest("POST", "/api/v1/research", "200", 100*time.Millisecond)
	collector.RecordHTTPRequest("POST", "/api/v1/research", "200", 50*time.Millisecond)
	collector.RecordHTTPRequest("GET", "/health", "200", time.Millisecond)

	assert.InDelta(t, 2, testutil.ToFloat64(
		collector.httpRequestsTotal.WithLabelValues("POST", "/api/v1/research", "200")), 0.001)
	assert.InDelta(t, 1, testutil.ToFloat64(
		collector.httpRequestsTotal.WithLabelValues("GET", "/health", "200")), 0.001)
}

func TestCollector_RecordLLMRequest(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordLLMRequest("groq", "llama3-8b-8192", "ok", 2*time.Second, 100, 40)

	assert.InDelta(t, 1, testutil.ToFloat64(
		collector.llmRequestsTotal.WithLabelValues("groq", "llama3-8b-8192", "ok")), 0.001)
	assert.InDelta(t, 100, testutil.ToFloat64(
		collector.llmTokensUsed.WithLabelValues("groq", "llama3-8b-8192", "prompt")), 0.001)
	assert.InDelta(t, 40, testutil.ToFloat64(
		collector.llmTokensUsed.WithLabelValues("groq", "llama3-8b-8192", "completion")), 0.001)

	// Zero token counts are not recorded.
	collector.RecordLLMRequest("groq", "llama3-8b-8192", "error", time.Second, 0, 0)
	assert.InDelta(t, 100, testutil.ToFloat64(
		collector.llmTokensUsed.WithLabelValues("groq", "llama3-8b-8192", "prompt")), 0.001)
}

func TestCollector_RecordToolCall(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordToolCall("search_cases", "ok", 500*time.Millisecond)
	collector.RecordToolCall("search_cases", "error", 100*time.Millisecond)

	assert.InDelta(t, 1, testutil.ToFloat64(
		collector.toolCallsTotal.WithLabelValues("search_cases", "ok")), 0.001)
	assert.InDelta(t, 1, testutil.ToFloat64(
		collector.toolCallsTotal.WithLabelValues("search_cases", "error")), 0.001)
}

func TestCollector_RecordResearchRun(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordResearchRun("completed", 30*time.Second)
	collector.RecordResearchRun("failed", 5*time.Second)

	assert.InDelta(t, 1, testutil.ToFloat64(
		collector.researchRunsTotal.WithLabelValues("completed")), 0.001)
	assert.InDelta(t, 1, testutil.ToFloat64(
		collector.researchRunsTotal.WithLabelValues("failed")), 0.001)
}

func TestCollector_RecordCache(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordCacheHit("research")
	collector.RecordCacheHit("research")
	collector.RecordCacheMiss("research")

	assert.InDelta(t, 2, testutil.ToFloat64(collector.cacheHits.WithLabelValues("research")), 0.001)
	assert.InDelta(t, 1, testutil.ToFloat64(collector.cacheMisses.WithLabelValues("research")), 0.001)
}
