package retrieve

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/halcyon-ai/recall/pkg/provider/llm"
	"github.com/halcyon-ai/recall/pkg/types"
)

// noRelevantRecords is the curator's sentinel for "nothing in this section
// helps answer the query"; prompt-coupled, see spec §9 open questions.
const noRelevantRecords = "NO_RELEVANT_RECORDS"

const curatorSystemPrompt = `You curate one section of retrieved memory for relevance to a query. Copy
VERBATIM only the lines that help answer the query, preserving exact
figures, dates, and names. No commentary, no summarizing, no paraphrasing.
If nothing in the section is relevant, respond with exactly: ` + noRelevantRecords

// curate runs one chat call per section (five in parallel when five
// sections are present) and concatenates the non-empty outputs in section
// order with blank-line separators.
func curate(ctx context.Context, chat llm.Provider, query string, sections []Section) (string, error) {
	curated := make([]string, len(sections))

	eg, egCtx := errgroup.WithContext(ctx)
	for i, sec := range sections {
		i, sec := i, sec
		eg.Go(func() error {
			text, err := curateSection(egCtx, chat, query, sec)
			if err != nil {
				return fmt.Errorf("curate section %q: %w", sec.Heading, err)
			}
			curated[i] = text
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return "", err
	}

	var nonEmpty []string
	for _, c := range curated {
		if c != "" {
			nonEmpty = append(nonEmpty, c)
		}
	}
	return strings.Join(nonEmpty, "\n\n"), nil
}

func curateSection(ctx context.Context, chat llm.Provider, query string, sec Section) (string, error) {
	resp, err := chat.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: curatorSystemPrompt,
		Messages: []types.Message{
			{Role: "user", Content: fmt.Sprintf("Query: %s\n\n%s\n%s", query, sec.Heading, strings.Join(sec.Lines, "\n"))},
		},
	})
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(resp.Content)
	if text == noRelevantRecords || text == "" {
		return "", nil
	}
	return text, nil
}
