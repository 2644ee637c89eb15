package resilience

import (
	"context"

	"github.com/halcyon-ai/recall/pkg/provider/embeddings"
)

// EmbedFallback implements [embeddings.Provider] with automatic failover
// across multiple embedding backends, mirroring [ChatFallback].
type EmbedFallback struct {
	group *FallbackGroup[embeddings.Provider]
}

var _ embeddings.Provider = (*EmbedFallback)(nil)

// NewEmbedFallback creates an [EmbedFallback] with primary as the preferred backend.
func NewEmbedFallback(primary embeddings.Provider, primaryName string, cfg FallbackConfig) *EmbedFallback {
	return &EmbedFallback{group: NewFallbackGroup(primary, primaryName, cfg)}
}

// AddFallback registers an additional embeddings provider as a fallback.
func (f *EmbedFallback) AddFallback(name string, provider embeddings.Provider) {
	f.group.AddFallback(name, provider)
}

// Embed sends text to the first healthy provider, falling over on failure.
func (f *EmbedFallback) Embed(ctx context.Context, text string) ([]float32, error) {
	return ExecuteWithResult(f.group, func(p embeddings.Provider) ([]float32, error) {
		return p.Embed(ctx, text)
	})
}

// EmbedBatch sends texts to the first healthy provider, falling over on failure.
func (f *EmbedFallback) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return ExecuteWithResult(f.group, func(p embeddings.Provider) ([][]float32, error) {
		return p.EmbedBatch(ctx, texts)
	})
}

// Dimensions returns the primary provider's dimensionality. Callers must
// ensure every configured fallback shares the same embedding space.
func (f *EmbedFallback) Dimensions() int {
	if len(f.group.entries) == 0 {
		return 0
	}
	return f.group.entries[0].value.Dimensions()
}

// ModelID returns the primary provider's model identifier.
func (f *EmbedFallback) ModelID() string {
	if len(f.group.entries) == 0 {
		return ""
	}
	return f.group.entries[0].value.ModelID()
}
