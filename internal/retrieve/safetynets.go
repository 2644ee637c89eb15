package retrieve

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/halcyon-ai/recall/pkg/graph"
	"github.com/halcyon-ai/recall/pkg/provider/embeddings"
)

const (
	maxInstructions       = 15
	templateMaxPerPattern = 2
	globalCosineBar       = 0.15
	globalScoreFloor      = 0.6
)

var capitalWordRE = regexp.MustCompile(`^\p{Lu}`)

// templateKey computes the dedup key used by the top-instructions safety
// net: the first 15 space-separated tokens, capital-initial tokens replaced
// with "_", lowercased, runs of "_" collapsed.
func templateKey(content string) string {
	fields := strings.Fields(content)
	if len(fields) > 15 {
		fields = fields[:15]
	}
	for i, f := range fields {
		if capitalWordRE.MatchString(f) {
			fields[i] = "_"
		} else {
			fields[i] = strings.ToLower(f)
		}
	}
	key := strings.Join(fields, "_")
	for strings.Contains(key, "__") {
		key = strings.ReplaceAll(key, "__", "_")
	}
	return key
}

// topInstructionsSafetyNet embeds prompt, takes cosine top-K (K =
// MAX_INSTRUCTIONS * 10) over instructions, dedups by templateKey keeping at
// most templateMaxPerPattern entries per key, and stops once maxInstructions
// survive.
func topInstructionsSafetyNet(ctx context.Context, store graph.Store, embed embeddings.Provider, prompt string) ([]graph.ScoredNode, error) {
	vec, err := embed.Embed(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("top instructions safety net: embed: %w", err)
	}
	candidates, err := store.SearchSimilar(ctx, vec, maxInstructions*10, graph.VectorFilter{NodeType: graph.NodeInstruction})
	if err != nil {
		return nil, fmt.Errorf("top instructions safety net: search: %w", err)
	}

	counts := map[string]int{}
	var out []graph.ScoredNode
	for _, c := range candidates {
		key := templateKey(c.Node.Content)
		if counts[key] >= templateMaxPerPattern {
			continue
		}
		counts[key]++
		out = append(out, c)
		if len(out) >= maxInstructions {
			break
		}
	}
	return out, nil
}

// broadSearchSafetyNet runs cosine top-20 across all non-superseded nodes
// with no type filter.
func broadSearchSafetyNet(ctx context.Context, store graph.Store, embed embeddings.Provider, prompt string) ([]graph.ScoredNode, error) {
	vec, err := embed.Embed(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("broad search safety net: embed: %w", err)
	}
	results, err := store.SearchSimilar(ctx, vec, 20, graph.VectorFilter{})
	if err != nil {
		return nil, fmt.Errorf("broad search safety net: search: %w", err)
	}
	return results, nil
}

// globalScopeSafetyNet computes cosine similarity of every scope>=0.8
// instruction against the query, keeps those scoring above globalCosineBar,
// and clamps the surviving score to at least globalScoreFloor so they
// survive the assembler's sectioning caps.
func globalScopeSafetyNet(ctx context.Context, store graph.Store, embed embeddings.Provider, prompt string) ([]graph.ScoredNode, error) {
	globals, err := store.GlobalInstructions(ctx)
	if err != nil {
		return nil, fmt.Errorf("global scope safety net: list: %w", err)
	}
	if len(globals) == 0 {
		return nil, nil
	}
	vec, err := embed.Embed(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("global scope safety net: embed: %w", err)
	}

	var out []graph.ScoredNode
	for _, n := range globals {
		emb, err := store.GetEmbedding(ctx, n.ID)
		if err != nil || emb == nil {
			continue
		}
		score := cosineLocal(vec, emb)
		if score <= globalCosineBar {
			continue
		}
		if score < globalScoreFloor {
			score = globalScoreFloor
		}
		out = append(out, graph.ScoredNode{Node: n, Score: score})
	}
	return out, nil
}

func cosineLocal(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	denom := sqrt(na) * sqrt(nb)
	if denom == 0 {
		return 0
	}
	return dot / denom
}

func sqrt(f float64) float64 {
	if f == 0 {
		return 0
	}
	x := f
	for i := 0; i < 40; i++ {
		x = 0.5 * (x + f/x)
	}
	return x
}
