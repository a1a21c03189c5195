// Package ranker provides weighted memory ranking, relevance scoring and
// importance evaluation.
//
// Ranking combines four signals into a single retrieval score:
//   - Recency: exponential decay of record age with a configurable half-life
//   - Importance: the long-term relevance stored on the record
//   - Relevance: similarity between the query and the record content
//   - Resonance: similarity between the current emotional state and the
//     emotional context captured when the memory was written
package ranker

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/psychesim/psychemem-go/pkg/storage"
)

// Default ranking parameters.
const (
	// DefaultRecencyHalfLife is the age at which the recency signal of a
	// memory has decayed to half.
	DefaultRecencyHalfLife = 24 * time.Hour

	// DefaultTopK is the result cap used when the caller passes a
	// non-positive topK.
	DefaultTopK = 10
)

// Weights holds the relative weight of each ranking signal.
//
// Weights are applied as-is; callers who want normalized scores should
// supply weights that sum to 1.
type Weights struct {
	// Recency weights the exponential age decay signal.
	Recency float64

	// Importance weights the record's stored importance.
	Importance float64

	// Relevance weights the query/content similarity signal.
	Relevance float64

	// Resonance weights the emotional-context similarity signal.
	Resonance float64
}

// DefaultWeights returns the default signal weights.
//
// Recency dominates slightly so that agents favor fresh context, with
// importance and relevance tied and resonance as a tie-breaker signal.
func DefaultWeights() Weights {
	return Weights{
		Recency:    0.35,
		Importance: 0.25,
		Relevance:  0.25,
		Resonance:  0.15,
	}
}

// Ranked pairs a record with its retrieval score.
type Ranked struct {
	// Record is the ranked memory record.
	Record *storage.Record

	// Score is the combined weighted retrieval score.
	Score float64
}

// Ranker ranks memory records against a query and an emotional snapshot.
//
// A Ranker is immutable after construction and safe for concurrent use as
// long as its Scorer is.
type Ranker struct {
	weights  Weights
	halfLife time.Duration
	scorer   Scorer
	now      func() time.Time
}

// Option configures a Ranker.
type Option func(*Ranker)

// WithWeights sets custom signal weights.
func WithWeights(w Weights) Option {
	return func(r *Ranker) {
		r.weights = w
	}
}

// WithRecencyHalfLife sets the half-life of the recency decay signal.
// Non-positive values are ignored.
func WithRecencyHalfLife(halfLife time.Duration) Option {
	return func(r *Ranker) {
		if halfLife > 0 {
			r.halfLife = halfLife
		}
	}
}

// WithScorer sets the relevance scorer. The default is a LexicalScorer.
func WithScorer(s Scorer) Option {
	return func(r *Ranker) {
		if s != nil {
			r.scorer = s
		}
	}
}

// NewRanker creates a Ranker with default weights, half-life and a lexical
// relevance scorer, then applies the given options.
//
// Example:
//
//	r := ranker.NewRanker(ranker.WithRecencyHalfLife(6 * time.Hour))
//	ranked, err := r.Rank(ctx, records, "the harvest festival", snapshot, 5)
func NewRanker(opts ...Option) *Ranker {
	r := &Ranker{
		weights:  DefaultWeights(),
		halfLife: DefaultRecencyHalfLife,
		scorer:   &LexicalScorer{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Rank scores the candidate records and returns at most topK of them in
// descending score order.
//
// The score of each record is
//
//	w1*recency + w2*importance + w3*relevance + w4*resonance
//
// where recency = exp(-ln2 * age / halfLife), relevance comes from the
// configured Scorer, and resonance is the cosine similarity between the
// supplied emotion snapshot and the record's stored emotional context
// (0 when either side is empty).
//
// Ties are broken deterministically: more recent records first, then lower
// record ID. An empty candidate slice yields an empty result and nil error.
// A non-positive topK falls back to DefaultTopK.
func (r *Ranker) Rank(ctx context.Context, records []*storage.Record, query string, emotionSnapshot map[string]float64, topK int) ([]Ranked, error) {
	if len(records) == 0 {
		return []Ranked{}, nil
	}
	if topK <= 0 {
		topK = DefaultTopK
	}

	now := r.now()
	ranked := make([]Ranked, 0, len(records))
	for _, record := range records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		relevance, err := r.scorer.Score(ctx, query, record.Content)
		if err != nil {
			return nil, err
		}

		score := r.weights.Recency*recencyDecay(now.Sub(record.CreatedAt), r.halfLife) +
			r.weights.Importance*record.Importance +
			r.weights.Relevance*relevance +
			r.weights.Resonance*CosineSimilarity(emotionSnapshot, record.Emotion)

		ranked = append(ranked, Ranked{Record: record, Score: score})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.Record.CreatedAt.Equal(b.Record.CreatedAt) {
			return a.Record.CreatedAt.After(b.Record.CreatedAt)
		}
		return a.Record.ID < b.Record.ID
	})

	if len(ranked) > topK {
		ranked = ranked[:topK]
	}
	return ranked, nil
}

// recencyDecay maps record age to (0, 1]. Future-dated records count as
// age zero.
func recencyDecay(age time.Duration, halfLife time.Duration) float64 {
	if age <= 0 {
		return 1.0
	}
	return math.Exp(-math.Ln2 * age.Seconds() / halfLife.Seconds())
}

// CosineSimilarity computes the cosine similarity of two sparse vectors
// keyed by dimension name.
//
// Returns 0 when either vector is empty or has zero magnitude. Emotion
// vectors are non-negative, so the result lies in [0, 1].
func CosineSimilarity(a, b map[string]float64) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for dim, va := range a {
		normA += va * va
		if vb, ok := b[dim]; ok {
			dot += va * vb
		}
	}
	for _, vb := range b {
		normB += vb * vb
	}

	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
