// Package classify implements the Layer 1 classifier: one chat call per
// sentence producing a structured extraction, merged across sentences with
// a deterministic fallback when extraction fails or is empty.
package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/halcyon-ai/recall/pkg/provider/llm"
	"github.com/halcyon-ai/recall/pkg/types"
)

// Entity is one entity surfaced by the classifier.
type Entity struct {
	Name      string `json:"name"`
	Type      string `json:"type"`
	Ambiguous bool   `json:"ambiguous"`
}

// Intent is one of the fixed intent tags the classifier prompt enumerates.
type Intent string

const (
	IntentAction        Intent = "action"
	IntentInformation    Intent = "information"
	IntentStatus         Intent = "status"
	IntentProcess        Intent = "process"
	IntentRecall         Intent = "recall"
	IntentComparison     Intent = "comparison"
	IntentVerification   Intent = "verification"
	IntentInstruction    Intent = "instruction"
	IntentCorrection     Intent = "correction"
	IntentOpinion        Intent = "opinion"
	IntentPlanning       Intent = "planning"
	IntentDelegation     Intent = "delegation"
)

// Operations records the retrieve/store decision the classifier prompt enforces.
type Operations struct {
	Retrieve bool `json:"retrieve"`
	Store    bool `json:"store"`
}

// Result is the merged classification across all sentences of a prompt.
type Result struct {
	Entities         []Entity   `json:"entities"`
	ImpliedFacts     []string   `json:"implied_facts"`
	Events           []string   `json:"events"`
	Plans            []string   `json:"plans"`
	Opinions         []string   `json:"opinions"`
	Concepts         []string   `json:"concepts"`
	ImpliedProcesses []string   `json:"implied_processes"`
	Intents          []Intent   `json:"intents"`
	Operations       Operations `json:"operations"`
}

// sentenceExtraction is the shape returned by a single classify call, before
// merging across sentences.
type sentenceExtraction struct {
	Entities         []Entity `json:"entities"`
	ImpliedFacts     []string `json:"implied_facts"`
	Events           []string `json:"events"`
	Plans            []string `json:"plans"`
	Opinions         []string `json:"opinions"`
	Concepts         []string `json:"concepts"`
	ImpliedProcesses []string `json:"implied_processes"`
	Intents          []Intent `json:"intents"`
	Operations       Operations `json:"operations"`
}

// Classifier runs the Layer 1 classification pipeline over a chat provider.
type Classifier struct {
	chat llm.Provider
}

// New creates a Classifier backed by chat.
func New(chat llm.Provider) *Classifier {
	return &Classifier{chat: chat}
}

// Classify splits prompt into sentences and classifies each one (in
// parallel when there is more than one), merging the results. It falls back
// to deterministic extraction when every attempt fails to parse, or when
// parsing succeeds but extraction is empty on a non-trivial prompt.
func (c *Classifier) Classify(ctx context.Context, prompt string) (*Result, error) {
	sentences := splitSentences(prompt)
	if len(sentences) == 0 {
		sentences = []string{prompt}
	}

	extractions := make([]*sentenceExtraction, len(sentences))
	if len(sentences) == 1 {
		extractions[0] = c.classifySentence(ctx, sentences[0], prompt)
	} else {
		var mu sync.Mutex
		eg, egCtx := errgroup.WithContext(ctx)
		for i, sentence := range sentences {
			i, sentence := i, sentence
			eg.Go(func() error {
				ext := c.classifySentence(egCtx, sentence, prompt)
				mu.Lock()
				extractions[i] = ext
				mu.Unlock()
				return nil
			})
		}
		// Errors from classifySentence are swallowed into a nil extraction
		// (handled via the fallback below); egCtx cancellation only affects
		// already-in-flight chat calls, not this merge step.
		_ = eg.Wait()
	}

	merged := mergeExtractions(extractions)
	allFailed := true
	for _, ext := range extractions {
		if ext != nil {
			allFailed = false
			break
		}
	}
	if allFailed || (isEmptyExtraction(merged) && nonTrivial(prompt)) {
		return fallback(prompt), nil
	}
	return merged, nil
}

// classifySentence performs one classify call for sentence, with the full
// prompt attached as pronoun-resolution context, retrying once at a higher
// temperature on parse failure. Returns nil if both attempts fail to parse.
func (c *Classifier) classifySentence(ctx context.Context, sentence, fullPrompt string) *sentenceExtraction {
	for attempt, temp := range []float64{0.0, 0.4} {
		resp, err := c.chat.Complete(ctx, llm.CompletionRequest{
			SystemPrompt: systemPrompt,
			Messages: []types.Message{
				{Role: "user", Content: buildUserMessage(sentence, fullPrompt)},
			},
			Temperature: temp,
		})
		if err != nil {
			continue
		}
		ext, ok := parseExtraction(resp.Content)
		if ok {
			return ext
		}
		_ = attempt
	}
	return nil
}

func buildUserMessage(sentence, fullPrompt string) string {
	if sentence == fullPrompt {
		return fullPrompt
	}
	return fmt.Sprintf("Sentence to classify: %s\n\nFull message (for pronoun resolution only): %s", sentence, fullPrompt)
}

func parseExtraction(raw string) (*sentenceExtraction, bool) {
	raw = stripCodeFence(raw)
	var ext sentenceExtraction
	if err := json.Unmarshal([]byte(raw), &ext); err != nil {
		return nil, false
	}
	return &ext, true
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func mergeExtractions(exts []*sentenceExtraction) *Result {
	out := &Result{}
	seenEntities := map[string]bool{}
	seenIntents := map[Intent]bool{}
	seenConcepts := map[string]bool{}

	for _, ext := range exts {
		if ext == nil {
			continue
		}
		for _, e := range ext.Entities {
			key := strings.ToLower(e.Name)
			if seenEntities[key] {
				continue
			}
			seenEntities[key] = true
			out.Entities = append(out.Entities, e)
		}
		out.ImpliedFacts = append(out.ImpliedFacts, ext.ImpliedFacts...)
		out.Events = append(out.Events, ext.Events...)
		out.Plans = append(out.Plans, ext.Plans...)
		out.Opinions = append(out.Opinions, ext.Opinions...)
		out.ImpliedProcesses = append(out.ImpliedProcesses, ext.ImpliedProcesses...)
		for _, concept := range ext.Concepts {
			key := strings.ToLower(concept)
			if seenConcepts[key] {
				continue
			}
			seenConcepts[key] = true
			out.Concepts = append(out.Concepts, concept)
		}
		for _, intent := range ext.Intents {
			if seenIntents[intent] {
				continue
			}
			seenIntents[intent] = true
			out.Intents = append(out.Intents, intent)
		}
		out.Operations.Retrieve = out.Operations.Retrieve || ext.Operations.Retrieve
		out.Operations.Store = out.Operations.Store || ext.Operations.Store
	}
	return out
}

func isEmptyExtraction(r *Result) bool {
	return len(r.Entities) == 0 && len(r.ImpliedFacts) == 0 && len(r.Events) == 0 &&
		len(r.Plans) == 0 && len(r.Opinions) == 0 && len(r.Concepts) == 0 &&
		len(r.ImpliedProcesses) == 0 && len(r.Intents) == 0
}

func nonTrivial(prompt string) bool {
	return len(strings.Fields(prompt)) >= 4
}

// Summary renders the classification as the short text block the store
// filter (L) takes as its classifierSummary input, so the filter's own chat
// call does not need to know the classifier's JSON shape.
func (r *Result) Summary() string {
	if r == nil {
		return ""
	}
	var b strings.Builder
	if len(r.Entities) > 0 {
		names := make([]string, len(r.Entities))
		for i, e := range r.Entities {
			names[i] = fmt.Sprintf("%s (%s)", e.Name, e.Type)
		}
		fmt.Fprintf(&b, "Entities: %s\n", strings.Join(names, ", "))
	}
	writeListField(&b, "Implied facts", r.ImpliedFacts)
	writeListField(&b, "Events", r.Events)
	writeListField(&b, "Plans", r.Plans)
	writeListField(&b, "Opinions", r.Opinions)
	writeListField(&b, "Concepts", r.Concepts)
	writeListField(&b, "Implied processes", r.ImpliedProcesses)
	if len(r.Intents) > 0 {
		tags := make([]string, len(r.Intents))
		for i, in := range r.Intents {
			tags[i] = string(in)
		}
		fmt.Fprintf(&b, "Intents: %s\n", strings.Join(tags, ", "))
	}
	fmt.Fprintf(&b, "Operations: retrieve=%t store=%t\n", r.Operations.Retrieve, r.Operations.Store)
	return strings.TrimSpace(b.String())
}

func writeListField(b *strings.Builder, label string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "%s: %s\n", label, strings.Join(items, "; "))
}
