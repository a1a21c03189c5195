package ranker_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psychesim/psychemem-go/pkg/ranker"
	"github.com/psychesim/psychemem-go/pkg/storage"
)

func makeRecord(id int64, content string, importance float64, age time.Duration) *storage.Record {
	return &storage.Record{
		ID:         id,
		AgentID:    "agent",
		Content:    content,
		Importance: importance,
		CreatedAt:  time.Now().Add(-age),
	}
}

func TestRankEmptyCandidates(t *testing.T) {
	r := ranker.NewRanker()

	ranked, err := r.Rank(context.Background(), nil, "query", nil, 5)
	require.NoError(t, err)
	assert.NotNil(t, ranked)
	assert.Empty(t, ranked, "empty candidates yield an empty result, not an error")
}

func TestRankRespectsTopK(t *testing.T) {
	r := ranker.NewRanker()
	records := []*storage.Record{
		makeRecord(1, "one", 0.5, time.Hour),
		makeRecord(2, "two", 0.5, 2*time.Hour),
		makeRecord(3, "three", 0.5, 3*time.Hour),
		makeRecord(4, "four", 0.5, 4*time.Hour),
	}

	ranked, err := r.Rank(context.Background(), records, "", nil, 2)
	require.NoError(t, err)
	assert.Len(t, ranked, 2)

	// Fewer candidates than topK returns them all
	ranked, err = r.Rank(context.Background(), records, "", nil, 10)
	require.NoError(t, err)
	assert.Len(t, ranked, 4)
}

func TestRankScoresNonIncreasing(t *testing.T) {
	r := ranker.NewRanker(ranker.WithWeights(ranker.Weights{Importance: 1}))
	records := []*storage.Record{
		makeRecord(1, "low", 0.1, time.Hour),
		makeRecord(2, "high", 0.9, time.Hour),
		makeRecord(3, "mid", 0.5, time.Hour),
	}

	ranked, err := r.Rank(context.Background(), records, "", nil, 10)
	require.NoError(t, err)
	require.Len(t, ranked, 3)

	assert.Equal(t, int64(2), ranked[0].Record.ID)
	assert.Equal(t, int64(3), ranked[1].Record.ID)
	assert.Equal(t, int64(1), ranked[2].Record.ID)
	for i := 1; i < len(ranked); i++ {
		assert.GreaterOrEqual(t, ranked[i-1].Score, ranked[i].Score)
	}
}

func TestRankPrefersRecent(t *testing.T) {
	r := ranker.NewRanker(ranker.WithRecencyHalfLife(time.Hour))
	records := []*storage.Record{
		makeRecord(1, "old news", 0.5, 48*time.Hour),
		makeRecord(2, "fresh news", 0.5, time.Minute),
	}

	ranked, err := r.Rank(context.Background(), records, "", nil, 10)
	require.NoError(t, err)
	require.Len(t, ranked, 2)
	assert.Equal(t, int64(2), ranked[0].Record.ID, "fresher record ranks first")
}

func TestRankDeterministicTieBreaks(t *testing.T) {
	// Zero weights force identical scores, exposing the tie-break order
	r := ranker.NewRanker(ranker.WithWeights(ranker.Weights{}))

	now := time.Now()
	older := &storage.Record{ID: 1, AgentID: "agent", Content: "a", CreatedAt: now.Add(-time.Hour)}
	newer := &storage.Record{ID: 2, AgentID: "agent", Content: "b", CreatedAt: now}
	twinA := &storage.Record{ID: 3, AgentID: "agent", Content: "c", CreatedAt: now.Add(-2 * time.Hour)}
	twinB := &storage.Record{ID: 4, AgentID: "agent", Content: "d", CreatedAt: now.Add(-2 * time.Hour)}

	for i := 0; i < 5; i++ {
		ranked, err := r.Rank(context.Background(), []*storage.Record{twinB, older, newer, twinA}, "", nil, 10)
		require.NoError(t, err)
		require.Len(t, ranked, 4)

		assert.Equal(t, int64(2), ranked[0].Record.ID, "more recent wins the tie")
		assert.Equal(t, int64(1), ranked[1].Record.ID)
		assert.Equal(t, int64(3), ranked[2].Record.ID, "equal timestamps fall back to lower ID")
		assert.Equal(t, int64(4), ranked[3].Record.ID)
	}
}

func TestRankResonance(t *testing.T) {
	r := ranker.NewRanker(ranker.WithWeights(ranker.Weights{Resonance: 1}))

	angry := makeRecord(1, "the argument", 0.5, time.Hour)
	angry.Emotion = map[string]float64{"anger": 0.9, "fear": 0.1}
	joyful := makeRecord(2, "the festival", 0.5, time.Hour)
	joyful.Emotion = map[string]float64{"joy": 0.8, "trust": 0.4}

	snapshot := map[string]float64{"anger": 0.7, "fear": 0.2}
	ranked, err := r.Rank(context.Background(), []*storage.Record{joyful, angry}, "", snapshot, 10)
	require.NoError(t, err)
	require.Len(t, ranked, 2)

	assert.Equal(t, int64(1), ranked[0].Record.ID,
		"memories matching the current mood resonate more strongly")
	assert.Greater(t, ranked[0].Score, ranked[1].Score)
}

func TestCosineSimilarity(t *testing.T) {
	a := map[string]float64{"joy": 1.0}
	b := map[string]float64{"joy": 0.5}
	assert.InDelta(t, 1.0, ranker.CosineSimilarity(a, b), 1e-9, "parallel vectors")

	orthogonal := map[string]float64{"anger": 1.0}
	assert.Equal(t, 0.0, ranker.CosineSimilarity(a, orthogonal))

	assert.Equal(t, 0.0, ranker.CosineSimilarity(nil, b), "empty side scores zero")
	assert.Equal(t, 0.0, ranker.CosineSimilarity(a, map[string]float64{"joy": 0}),
		"zero magnitude scores zero")
}
