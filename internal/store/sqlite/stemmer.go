package sqlite

import "strings"

// stemWord applies the deterministic suffix-stripping rule used to compute
// the instructions(topic) match score: lowercase; words of length <= 3 pass
// through unchanged; otherwise the first matching suffix group is stripped,
// keeping at least 3 leading characters.
func stemWord(w string) string {
	w = strings.ToLower(w)
	if len(w) <= 3 {
		return w
	}

	groups := [][]string{
		{"ting", "sing", "ning", "ling", "ring", "ding", "ping", "ying"},
		{"ied", "ies", "ing", "ed", "er", "es", "ly"},
	}
	for _, group := range groups {
		if s, ok := stripFirstSuffix(w, group); ok {
			return s
		}
	}
	if strings.HasSuffix(w, "s") && !strings.HasSuffix(w, "ss") {
		if s := w[:len(w)-1]; len(s) >= 3 {
			return s
		}
	}
	return w
}

func stripFirstSuffix(w string, suffixes []string) (string, bool) {
	for _, suf := range suffixes {
		if strings.HasSuffix(w, suf) {
			if stripped := w[:len(w)-len(suf)]; len(stripped) >= 3 {
				return stripped, true
			}
		}
	}
	return "", false
}

// stemTopic splits topic into words longer than 2 characters and stems each.
func stemTopic(topic string) []string {
	fields := strings.Fields(topic)
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) > 2 {
			out = append(out, stemWord(f))
		}
	}
	return out
}
