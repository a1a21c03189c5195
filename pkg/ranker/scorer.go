package ranker

import (
	"context"
	"math"
	"strings"
	"unicode"

	"github.com/psychesim/psychemem-go/pkg/embedder"
)

// Scorer computes the relevance of a record's content to a query.
//
// Implementations return a score in [0, 1], where 1 means maximally
// relevant. Scorers must be safe for concurrent use.
type Scorer interface {
	// Score computes the relevance of content to query.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout
	//   - query: The retrieval query text
	//   - content: The record content to score
	//
	// Returns the relevance score in [0, 1] and any error.
	Score(ctx context.Context, query string, content string) (float64, error)
}

// LexicalScorer scores relevance by token overlap.
//
// It is the default scorer: cheap, deterministic, and dependency-free. The
// score is the fraction of distinct query tokens that also occur in the
// content, so it lies in [0, 1]. Tokenization lowercases and splits on any
// non-letter, non-digit rune.
type LexicalScorer struct{}

// Score computes the token-overlap relevance of content to query.
//
// An empty query or content scores 0; it never errors.
func (s *LexicalScorer) Score(_ context.Context, query string, content string) (float64, error) {
	queryTokens := tokenize(query)
	if len(queryTokens) == 0 {
		return 0, nil
	}

	contentTokens := make(map[string]struct{})
	for _, tok := range tokenize(content) {
		contentTokens[tok] = struct{}{}
	}
	if len(contentTokens) == 0 {
		return 0, nil
	}

	seen := make(map[string]struct{}, len(queryTokens))
	matched := 0
	for _, tok := range queryTokens {
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		if _, ok := contentTokens[tok]; ok {
			matched++
		}
	}

	return float64(matched) / float64(len(seen)), nil
}

// tokenize lowercases text and splits it on non-alphanumeric runes.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// EmbeddingScorer scores relevance by embedding cosine similarity.
//
// It embeds the query and the content with the configured provider and
// returns their cosine similarity clamped into [0, 1]. Use it when the
// engine has an embedder configured; the LexicalScorer remains the default.
type EmbeddingScorer struct {
	provider embedder.Provider
}

// NewEmbeddingScorer creates a scorer backed by the given embedder.
func NewEmbeddingScorer(provider embedder.Provider) *EmbeddingScorer {
	return &EmbeddingScorer{provider: provider}
}

// Score embeds query and content in one batch and returns their cosine
// similarity clamped into [0, 1].
//
// An empty query or content scores 0 without calling the provider.
func (s *EmbeddingScorer) Score(ctx context.Context, query string, content string) (float64, error) {
	if strings.TrimSpace(query) == "" || strings.TrimSpace(content) == "" {
		return 0, nil
	}

	vectors, err := s.provider.EmbedBatch(ctx, []string{query, content})
	if err != nil {
		return 0, err
	}

	similarity := denseCosine(vectors[0], vectors[1])
	if similarity < 0 {
		return 0, nil
	}
	return similarity, nil
}

// denseCosine computes cosine similarity over two dense vectors of equal
// length. Mismatched lengths or zero magnitude yield 0.
func denseCosine(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
