package retrieve

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/halcyon-ai/recall/pkg/graph"
)

// formatResultLine renders a node as a single tool-result line:
// "[node_type/subtype] content (id: <id>, salience: <n>) [score: <cos>]".
// score is omitted when it is nil (non vector-search results).
func formatResultLine(n graph.Node, score *float64) string {
	typeTag := string(n.Type)
	if n.Subtype != "" {
		typeTag += "/" + n.Subtype
	}
	line := fmt.Sprintf("[%s] %s (id: %s, salience: %g)", typeTag, n.Content, n.ID, n.Salience)
	if score != nil {
		line += fmt.Sprintf(" [score: %g]", *score)
	}
	return line
}

var resultLineRE = regexp.MustCompile(`\(id:\s*([^,]+),\s*salience:\s*[^)]+\)(?:\s*\[score:\s*([0-9.]+)\])?`)

// parseResultLines extracts (id, score) pairs from a block of tool-result
// text using the formatting convention. A missing score defaults to 0.5.
func parseResultLines(text string) []graph.ScoredNode {
	var out []graph.ScoredNode
	for _, line := range strings.Split(text, "\n") {
		m := resultLineRE.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		id := strings.TrimSpace(m[1])
		score := 0.5
		if m[2] != "" {
			if f, err := strconv.ParseFloat(m[2], 64); err == nil {
				score = f
			}
		}
		out = append(out, graph.ScoredNode{Node: graph.Node{ID: id}, Score: score})
	}
	return out
}
