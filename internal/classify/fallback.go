package classify

import (
	"strings"
	"unicode"
)

// stopwords is the closed set excluded when the fallback extracts
// capitalised tokens as concept-typed ambiguous entities.
var stopwords = map[string]bool{
	"The": true, "A": true, "An": true, "I": true, "You": true, "We": true,
	"They": true, "He": true, "She": true, "It": true, "This": true, "That": true,
	"These": true, "Those": true, "What": true, "When": true, "Where": true,
	"Who": true, "Why": true, "How": true, "Is": true, "Are": true, "Was": true,
	"Were": true, "Do": true, "Does": true, "Did": true, "Can": true, "Could": true,
	"Would": true, "Should": true, "Will": true, "Shall": true,
}

// fallback produces the deterministic extraction used when every classify
// attempt fails to parse, or parses to an empty result on a non-trivial
// prompt: capitalised non-stopword tokens become concept-typed ambiguous
// entities, the whole prompt becomes the sole implied fact, intent is
// information-only, and both retrieve and store are requested.
func fallback(prompt string) *Result {
	seen := map[string]bool{}
	var entities []Entity
	for _, tok := range strings.Fields(prompt) {
		tok = strings.Trim(tok, ".,!?;:\"'()")
		if tok == "" {
			continue
		}
		r := []rune(tok)
		if !unicode.IsUpper(r[0]) || stopwords[tok] {
			continue
		}
		key := strings.ToLower(tok)
		if seen[key] {
			continue
		}
		seen[key] = true
		entities = append(entities, Entity{Name: tok, Type: "concept", Ambiguous: true})
	}

	return &Result{
		Entities:     entities,
		ImpliedFacts: []string{prompt},
		Intents:      []Intent{IntentInformation},
		Operations:   Operations{Retrieve: true, Store: true},
	}
}
