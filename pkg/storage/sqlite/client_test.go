package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psychesim/psychemem-go/pkg/storage"
	"github.com/psychesim/psychemem-go/pkg/storage/sqlite"
)

func newTestClient(t *testing.T) *sqlite.Client {
	t.Helper()

	client, err := sqlite.NewClient(&sqlite.Config{
		DBPath: filepath.Join(t.TempDir(), "test.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func makeRecord(id int64, agentID, content string, importance float64, createdAt time.Time) *storage.Record {
	return &storage.Record{
		ID:         id,
		AgentID:    agentID,
		Content:    content,
		Importance: importance,
		Sentiment:  0.2,
		Emotion:    map[string]float64{"joy": 0.5, "trust": 0.3},
		CreatedAt:  createdAt,
	}
}

func TestAppendQueryRoundtrip(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	record := makeRecord(1, "maria", "The harvest festival was announced", 0.6, time.Now())
	require.NoError(t, client.Append(ctx, record))

	records, err := client.Query(ctx, "maria", nil)
	require.NoError(t, err)
	require.Len(t, records, 1)

	got := records[0]
	assert.Equal(t, record.ID, got.ID)
	assert.Equal(t, record.AgentID, got.AgentID)
	assert.Equal(t, record.Content, got.Content)
	assert.InDelta(t, record.Importance, got.Importance, 1e-9)
	assert.InDelta(t, record.Sentiment, got.Sentiment, 1e-9)
	assert.InDelta(t, 0.5, got.Emotion["joy"], 1e-9, "emotion snapshot survives the roundtrip")
	assert.WithinDuration(t, record.CreatedAt, got.CreatedAt, time.Second)
}

func TestAppendValidation(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	cases := []struct {
		name   string
		record *storage.Record
	}{
		{"empty content", makeRecord(1, "maria", "", 0.5, time.Now())},
		{"empty agent", makeRecord(2, "", "content", 0.5, time.Now())},
		{"importance too high", makeRecord(3, "maria", "content", 1.5, time.Now())},
		{"importance negative", makeRecord(4, "maria", "content", -0.1, time.Now())},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := client.Append(ctx, tc.record)
			assert.ErrorIs(t, err, storage.ErrValidation)
		})
	}

	sentimentOut := makeRecord(5, "maria", "content", 0.5, time.Now())
	sentimentOut.Sentiment = -1.5
	assert.ErrorIs(t, client.Append(ctx, sentimentOut), storage.ErrValidation)

	// Nothing was written
	records, err := client.Query(ctx, "maria", nil)
	require.NoError(t, err)
	assert.Empty(t, records, "rejected appends must not write")
}

func TestQueryFilters(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, client.Append(ctx, makeRecord(1, "maria", "old low", 0.2, now.Add(-48*time.Hour))))
	require.NoError(t, client.Append(ctx, makeRecord(2, "maria", "old high", 0.9, now.Add(-48*time.Hour))))
	require.NoError(t, client.Append(ctx, makeRecord(3, "maria", "fresh bread news", 0.5, now)))
	require.NoError(t, client.Append(ctx, makeRecord(4, "tomas", "other agent", 0.5, now)))

	// Default order: recency desc, only the agent's records
	records, err := client.Query(ctx, "maria", nil)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, int64(3), records[0].ID)

	// MinImportance
	records, err = client.Query(ctx, "maria", &storage.Filter{MinImportance: 0.8})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, int64(2), records[0].ID)

	// Since
	records, err = client.Query(ctx, "maria", &storage.Filter{Since: now.Add(-time.Hour)})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, int64(3), records[0].ID)

	// Contains
	records, err = client.Query(ctx, "maria", &storage.Filter{Contains: "bread"})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, int64(3), records[0].ID)

	// Importance order + limit
	records, err = client.Query(ctx, "maria", &storage.Filter{
		Order: storage.OrderImportanceDesc,
		Limit: 2,
	})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, int64(2), records[0].ID)
}

func TestGet(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	record := makeRecord(42, "maria", "content", 0.5, time.Now())
	require.NoError(t, client.Append(ctx, record))

	got, err := client.Get(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, "content", got.Content)

	_, err = client.Get(ctx, 999)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestPurge(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()
	now := time.Now()
	cutoff := now.Add(-24 * time.Hour)

	require.NoError(t, client.Append(ctx, makeRecord(1, "maria", "old trivial", 0.2, now.Add(-48*time.Hour))))
	require.NoError(t, client.Append(ctx, makeRecord(2, "maria", "old precious", 0.9, now.Add(-48*time.Hour))))
	require.NoError(t, client.Append(ctx, makeRecord(3, "maria", "fresh trivial", 0.2, now)))
	require.NoError(t, client.Append(ctx, makeRecord(4, "tomas", "old trivial other", 0.2, now.Add(-48*time.Hour))))

	deleted, err := client.Purge(ctx, "maria", cutoff, 0.7)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted, "only old AND low-importance records go")

	records, err := client.Query(ctx, "maria", nil)
	require.NoError(t, err)
	assert.Len(t, records, 2)
	for _, r := range records {
		assert.NotEqual(t, int64(1), r.ID)
	}

	// Other agents are untouched
	records, err = client.Query(ctx, "tomas", nil)
	require.NoError(t, err)
	assert.Len(t, records, 1)

	// Idempotent: a second purge deletes nothing
	deleted, err = client.Purge(ctx, "maria", cutoff, 0.7)
	require.NoError(t, err)
	assert.Equal(t, 0, deleted)
}

func TestRecomputeImportance(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, client.Append(ctx, makeRecord(1, "maria", "one", 0.8, time.Now())))
	require.NoError(t, client.Append(ctx, makeRecord(2, "maria", "two", 0.4, time.Now())))
	require.NoError(t, client.Append(ctx, makeRecord(3, "maria", "three", 0.1, time.Now())))

	updated, err := client.RecomputeImportance(ctx, "maria", func(r *storage.Record) float64 {
		return r.Importance - 0.2
	})
	require.NoError(t, err)
	assert.Equal(t, 3, updated)

	got, err := client.Get(ctx, 1)
	require.NoError(t, err)
	assert.InDelta(t, 0.6, got.Importance, 1e-9)

	got, err = client.Get(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, 0.0, got.Importance, "results clamp into [0,1]")

	// Identity policy updates nothing
	updated, err = client.RecomputeImportance(ctx, "maria", func(r *storage.Record) float64 {
		return r.Importance
	})
	require.NoError(t, err)
	assert.Equal(t, 0, updated)
}

func TestProfileRoundtrip(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	profile := &storage.Profile{
		AgentID: "maria",
		Name:    "Maria",
		Traits:  map[string]float64{"openness": 0.7, "neuroticism": 0.3},
		Beliefs: map[string]float64{"the river is sacred": 0.8},
		Demographics: map[string]string{
			"age":        "34",
			"occupation": "baker",
		},
	}
	require.NoError(t, client.SaveProfile(ctx, profile))

	got, err := client.LoadProfile(ctx, "maria")
	require.NoError(t, err)
	assert.Equal(t, "Maria", got.Name)
	assert.InDelta(t, 0.7, got.Traits["openness"], 1e-9)
	assert.InDelta(t, 0.8, got.Beliefs["the river is sacred"], 1e-9)
	assert.Equal(t, "baker", got.Demographics["occupation"])

	// Saving again replaces
	profile.Name = "Maria the Baker"
	require.NoError(t, client.SaveProfile(ctx, profile))
	got, err = client.LoadProfile(ctx, "maria")
	require.NoError(t, err)
	assert.Equal(t, "Maria the Baker", got.Name)

	_, err = client.LoadProfile(ctx, "nobody")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRelationshipRoundtrip(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, client.UpsertRelationship(ctx, &storage.Relation{
		FromAgent: "maria", ToAgent: "tomas", Affinity: 0.5, Interactions: 3,
	}))
	require.NoError(t, client.UpsertRelationship(ctx, &storage.Relation{
		FromAgent: "maria", ToAgent: "elena", Affinity: -0.2, Interactions: 1,
	}))
	require.NoError(t, client.UpsertRelationship(ctx, &storage.Relation{
		FromAgent: "tomas", ToAgent: "maria", Affinity: 0.1, Interactions: 3,
	}))

	relations, err := client.LoadRelationships(ctx, "maria")
	require.NoError(t, err)
	require.Len(t, relations, 2, "only outgoing edges load")

	// Upsert replaces the existing edge
	require.NoError(t, client.UpsertRelationship(ctx, &storage.Relation{
		FromAgent: "maria", ToAgent: "tomas", Affinity: 0.7, Interactions: 4,
	}))
	relations, err = client.LoadRelationships(ctx, "maria")
	require.NoError(t, err)
	require.Len(t, relations, 2)
	for _, rel := range relations {
		if rel.ToAgent == "tomas" {
			assert.InDelta(t, 0.7, rel.Affinity, 1e-9)
			assert.Equal(t, 4, rel.Interactions)
		}
	}
}
