package llm

import (
	"context"
	"time"

	"github.com/lumohealth/intake-ai-platform/internal/observability/metrics"
)

// TimedClient reports the latency of every completion call under a fixed
// operation label. The metrics sink may be nil.
type TimedClient struct {
	inner     Client
	operation string
	metrics   *metrics.IntakeMetrics
}

func NewTimedClient(inner Client, operation string, m *metrics.IntakeMetrics) *TimedClient {
	if inner == nil {
		panic("llm: inner client required")
	}
	if operation == "" {
		operation = "complete"
	}
	return &TimedClient{inner: inner, operation: operation, metrics: m}
}

func (t *TimedClient) Complete(ctx context.Context, req Request) (Response, error) {
	start := time.Now()
	resp, err := t.inner.Complete(ctx, req)
	t.metrics.ObserveLLMLatency(t.operation, time.Since(start).Seconds())
	return resp, err
}

// TimedEmbedder reports embedding call latency under the "embed" operation.
type TimedEmbedder struct {
	inner   Embedder
	metrics *metrics.IntakeMetrics
}

func NewTimedEmbedder(inner Embedder, m *metrics.IntakeMetrics) *TimedEmbedder {
	if inner == nil {
		panic("llm: inner embedder required")
	}
	return &TimedEmbedder{inner: inner, metrics: m}
}

func (t *TimedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	start := time.Now()
	vec, err := t.inner.Embed(ctx, text)
	t.metrics.ObserveLLMLatency("embed", time.Since(start).Seconds())
	return vec, err
}
