package ranker_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/psychesim/psychemem-go/pkg/ranker"
	"github.com/psychesim/psychemem-go/pkg/storage"
)

func TestRecencyWeightedPolicy(t *testing.T) {
	policy := ranker.RecencyWeightedPolicy(24 * time.Hour)

	fresh := &storage.Record{Importance: 0.8, CreatedAt: time.Now()}
	assert.InDelta(t, 0.8, policy(fresh), 0.01, "fresh records keep their importance")

	aged := &storage.Record{Importance: 0.8, CreatedAt: time.Now().Add(-24 * time.Hour)}
	assert.InDelta(t, 0.4, policy(aged), 0.01, "one half-life halves importance")

	ancient := &storage.Record{Importance: 0.8, CreatedAt: time.Now().Add(-240 * time.Hour)}
	assert.Less(t, policy(ancient), 0.01)

	future := &storage.Record{Importance: 0.8, CreatedAt: time.Now().Add(time.Hour)}
	assert.Equal(t, 0.8, policy(future), "future-dated records are untouched")
}

func TestFlatDecayPolicy(t *testing.T) {
	policy := ranker.FlatDecayPolicy(0.1)

	record := &storage.Record{Importance: 0.5}
	assert.InDelta(t, 0.4, policy(record), 1e-9)

	// The store clamps at zero; the policy may go below
	low := &storage.Record{Importance: 0.05}
	assert.InDelta(t, -0.05, policy(low), 1e-9)

	noop := ranker.FlatDecayPolicy(-1)
	assert.Equal(t, 0.5, noop(record), "negative rates are treated as zero")
}
