package relationship_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/psychesim/psychemem-go/pkg/relationship"
)

func TestAffinityDefaultsToNeutral(t *testing.T) {
	g := relationship.NewGraph()

	assert.Equal(t, 0.0, g.Affinity("maria", "tomas"),
		"agents with no history start neutral")
	assert.Equal(t, 0, g.Interactions("maria", "tomas"))
}

func TestRecordInteraction(t *testing.T) {
	g := relationship.NewGraph()

	affinity := g.RecordInteraction("maria", "tomas", 0.4)
	assert.InDelta(t, 0.4, affinity, 1e-9)
	assert.InDelta(t, 0.4, g.Affinity("maria", "tomas"), 1e-9)
	assert.Equal(t, 1, g.Interactions("maria", "tomas"))

	affinity = g.RecordInteraction("maria", "tomas", -0.1)
	assert.InDelta(t, 0.3, affinity, 1e-9)
	assert.Equal(t, 2, g.Interactions("maria", "tomas"))
}

func TestAffinityClamping(t *testing.T) {
	g := relationship.NewGraph()

	g.RecordInteraction("maria", "tomas", 0.9)
	affinity := g.RecordInteraction("maria", "tomas", 0.9)
	assert.Equal(t, 1.0, affinity, "affinity clamps at +1")

	g.RecordInteraction("elena", "tomas", -0.9)
	affinity = g.RecordInteraction("elena", "tomas", -0.9)
	assert.Equal(t, -1.0, affinity, "affinity clamps at -1")
}

func TestEdgesAreDirectional(t *testing.T) {
	g := relationship.NewGraph()

	g.RecordInteraction("maria", "tomas", 0.5)

	assert.InDelta(t, 0.5, g.Affinity("maria", "tomas"), 1e-9)
	assert.Equal(t, 0.0, g.Affinity("tomas", "maria"),
		"the reverse edge is independent and stays neutral")
}

func TestEdgesSnapshot(t *testing.T) {
	g := relationship.NewGraph()

	g.RecordInteraction("maria", "tomas", 0.5)
	g.RecordInteraction("maria", "elena", -0.2)
	g.RecordInteraction("tomas", "maria", 0.1)

	edges := g.Edges("maria")
	assert.Len(t, edges, 2, "only outgoing edges are returned")
	for _, edge := range edges {
		assert.Equal(t, "maria", edge.From)
	}

	// Mutating the snapshot does not touch the graph
	edges[0].Affinity = 0.99
	assert.InDelta(t, 0.5, g.Affinity("maria", "tomas"), 1e-9)
}

func TestSeed(t *testing.T) {
	g := relationship.NewGraph()

	g.Seed("maria", "tomas", 0.6, 12)
	assert.InDelta(t, 0.6, g.Affinity("maria", "tomas"), 1e-9)
	assert.Equal(t, 12, g.Interactions("maria", "tomas"))

	// Seeding clamps out-of-range affinity
	g.Seed("maria", "elena", 3.0, 1)
	assert.Equal(t, 1.0, g.Affinity("maria", "elena"))
}
