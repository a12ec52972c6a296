package aspect

import (
	"strings"
	"unicode"

	"vagus/internal/journal"
)

// =============================================================================
// ACTIVITY SUMMARIZATION
// =============================================================================
// The ingest path turns a window of recent activity text into at most
// one candidate drive: the most recurrent topic token becomes the
// candidate name, the most representative activity line its
// description. The exact derivation is an implementation choice; the
// contract is only "recurring behavioral pattern in, candidate out".

// stopwords are common words excluded from topic extraction.
var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "is": true, "are": true,
	"was": true, "were": true, "do": true, "does": true, "did": true,
	"have": true, "has": true, "had": true, "be": true, "been": true,
	"will": true, "would": true, "could": true, "should": true,
	"and": true, "or": true, "but": true, "if": true, "then": true,
	"than": true, "so": true, "as": true, "at": true, "by": true,
	"for": true, "from": true, "in": true, "into": true, "of": true,
	"on": true, "to": true, "with": true, "about": true, "it": true,
	"its": true, "this": true, "that": true, "what": true, "which": true,
	"when": true, "where": true, "how": true, "i": true, "my": true,
	"we": true, "they": true, "you": true, "not": true, "no": true,
}

// minRecurrence is how many distinct activity rows must mention a topic
// before it counts as a pattern rather than a one-off.
const minRecurrence = 3

// DeriveCandidate extracts a candidate drive from recent activity.
// Returns ok=false when no token recurs across enough rows.
func DeriveCandidate(activities []journal.Activity) (name, description string, ok bool) {
	if len(activities) == 0 {
		return "", "", false
	}

	// Count per-row occurrence: a token repeated within one entry is
	// still one sighting.
	sightings := make(map[string]int)
	for _, a := range activities {
		for _, tok := range tokenize(a.Content) {
			sightings[tok]++
		}
	}

	topic := ""
	best := 0
	for tok, n := range sightings {
		if n > best || (n == best && tok < topic) {
			topic, best = tok, n
		}
	}
	if best < minRecurrence {
		return "", "", false
	}

	// The longest line mentioning the topic stands in as description.
	for _, a := range activities {
		if strings.Contains(strings.ToLower(a.Content), topic) && len(a.Content) > len(description) {
			description = a.Content
		}
	}
	return strings.ToUpper(topic), description, true
}

// tokenize splits text into unique lowercase non-stopword tokens.
func tokenize(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	seen := make(map[string]bool)
	var tokens []string
	for _, w := range words {
		if len(w) < 4 || stopwords[w] || seen[w] {
			continue
		}
		seen[w] = true
		tokens = append(tokens, w)
	}
	return tokens
}
