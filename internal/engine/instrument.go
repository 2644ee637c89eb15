package engine

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/halcyon-ai/recall/internal/observe"
	"github.com/halcyon-ai/recall/pkg/provider/embeddings"
	"github.com/halcyon-ai/recall/pkg/provider/llm"
	"github.com/halcyon-ai/recall/pkg/types"
)

// instrumentedChat wraps an llm.Provider so every call records provider
// latency, request/error counters, and token usage against one engine's
// private Metrics and UsageTracker, without requiring every pipeline stage
// (classify, plan, retrieve, storewrite, reconcile) to take a metrics
// dependency of its own.
type instrumentedChat struct {
	llm.Provider
	metrics *observe.Metrics
}

func instrumentChat(p llm.Provider, m *observe.Metrics) llm.Provider {
	if m == nil {
		return p
	}
	return &instrumentedChat{Provider: p, metrics: m}
}

func (c *instrumentedChat) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	start := time.Now()
	resp, err := c.Provider.Complete(ctx, req)
	elapsed := time.Since(start).Seconds()
	c.metrics.ProviderDuration.Record(ctx, elapsed, metric.WithAttributes(observe.Attr("kind", "llm")))
	if err != nil {
		c.metrics.RecordProviderError(ctx, "chat", "llm")
		c.metrics.RecordProviderRequest(ctx, "chat", "llm", "error")
		return resp, err
	}
	c.metrics.RecordProviderRequest(ctx, "chat", "llm", "ok")
	c.metrics.Usage.AddTokens(resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	c.metrics.Usage.AddTurn()
	return resp, nil
}

func (c *instrumentedChat) StreamCompletion(ctx context.Context, req llm.CompletionRequest) (<-chan llm.Chunk, error) {
	return c.Provider.StreamCompletion(ctx, req)
}

func (c *instrumentedChat) CountTokens(messages []types.Message) (int, error) {
	return c.Provider.CountTokens(messages)
}

func (c *instrumentedChat) Capabilities() types.ModelCapabilities {
	return c.Provider.Capabilities()
}

// instrumentedEmbed wraps an embeddings.Provider the same way instrumentedChat
// wraps a chat provider.
type instrumentedEmbed struct {
	embeddings.Provider
	metrics *observe.Metrics
}

func instrumentEmbed(p embeddings.Provider, m *observe.Metrics) embeddings.Provider {
	if m == nil {
		return p
	}
	return &instrumentedEmbed{Provider: p, metrics: m}
}

func (e *instrumentedEmbed) Embed(ctx context.Context, text string) ([]float32, error) {
	start := time.Now()
	vec, err := e.Provider.Embed(ctx, text)
	elapsed := time.Since(start).Seconds()
	e.metrics.ProviderDuration.Record(ctx, elapsed, metric.WithAttributes(observe.Attr("kind", "embeddings")))
	if err != nil {
		e.metrics.RecordProviderError(ctx, "embeddings", "embeddings")
		e.metrics.RecordProviderRequest(ctx, "embeddings", "embeddings", "error")
		return vec, err
	}
	e.metrics.RecordProviderRequest(ctx, "embeddings", "embeddings", "ok")
	return vec, nil
}

func (e *instrumentedEmbed) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	start := time.Now()
	vecs, err := e.Provider.EmbedBatch(ctx, texts)
	elapsed := time.Since(start).Seconds()
	e.metrics.ProviderDuration.Record(ctx, elapsed, metric.WithAttributes(observe.Attr("kind", "embeddings")))
	if err != nil {
		e.metrics.RecordProviderError(ctx, "embeddings", "embeddings")
		e.metrics.RecordProviderRequest(ctx, "embeddings", "embeddings", "error")
		return vecs, err
	}
	e.metrics.RecordProviderRequest(ctx, "embeddings", "embeddings", "ok")
	return vecs, nil
}
