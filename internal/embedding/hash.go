package embedding

import (
	"context"
	"hash/fnv"
	"strings"
)

// =============================================================================
// TOKEN-HASH ENGINE
// =============================================================================

const hashDimensions = 256

// HashEngine is a deterministic offline backend: a bag-of-tokens hashed
// into a fixed-width vector. It is crude but monotone — texts sharing
// vocabulary score high — which is enough for routing candidate drives
// into pending review when no embedding service is reachable, and for
// tests.
type HashEngine struct{}

// NewHashEngine creates a token-hash engine.
func NewHashEngine() *HashEngine { return &HashEngine{} }

// Embed maps each lowercase token to a hashed bucket and counts hits.
func (e *HashEngine) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, hashDimensions)
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		tok = strings.Trim(tok, ".,;:!?\"'()[]")
		if len(tok) < 3 {
			continue
		}
		h := fnv.New32a()
		h.Write([]byte(tok))
		vec[h.Sum32()%hashDimensions]++
	}
	return vec, nil
}

// Dimensions returns the embedding width.
func (e *HashEngine) Dimensions() int { return hashDimensions }

// Name returns the engine name.
func (e *HashEngine) Name() string { return "hash" }
