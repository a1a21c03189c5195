package psyche_test

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/psychesim/psychemem-go/pkg/psyche"
)

func TestNewEmotionalState(t *testing.T) {
	state := psyche.NewEmotionalState()
	assert.NotNil(t, state)

	for _, dim := range psyche.EmotionDimensions() {
		assert.Equal(t, 0.0, state.Intensity(dim), "dimension %s should start neutral", dim)
	}
}

func TestApplyEventClamping(t *testing.T) {
	state := psyche.NewEmotionalState()

	// Normal delta
	state.ApplyEvent(map[string]float64{psyche.DimJoy: 0.5})
	assert.InDelta(t, 0.5, state.Intensity(psyche.DimJoy), 1e-9)

	// Adversarial deltas must clamp, never escape [0, 1]
	state.ApplyEvent(map[string]float64{psyche.DimJoy: 100.0})
	assert.Equal(t, 1.0, state.Intensity(psyche.DimJoy), "huge positive delta should clamp to 1")

	state.ApplyEvent(map[string]float64{psyche.DimJoy: -100.0})
	assert.Equal(t, 0.0, state.Intensity(psyche.DimJoy), "huge negative delta should clamp to 0")

	// Non-finite deltas are ignored
	state.ApplyEvent(map[string]float64{psyche.DimFear: 0.4})
	state.ApplyEvent(map[string]float64{
		psyche.DimFear: math.NaN(),
	})
	assert.InDelta(t, 0.4, state.Intensity(psyche.DimFear), 1e-9, "NaN delta should be ignored")
	state.ApplyEvent(map[string]float64{
		psyche.DimFear: math.Inf(1),
	})
	assert.InDelta(t, 0.4, state.Intensity(psyche.DimFear), 1e-9, "Inf delta should be ignored")
}

func TestApplyEventUnknownDimension(t *testing.T) {
	state := psyche.NewEmotionalState()

	// Unknown dimensions are ignored, not errors
	state.ApplyEvent(map[string]float64{"melancholy": 0.8})
	assert.Equal(t, 0.0, state.Intensity("melancholy"))

	snapshot := state.Snapshot()
	_, ok := snapshot["melancholy"]
	assert.False(t, ok, "unknown dimension must not enter the state")
}

func TestDecayHalfLife(t *testing.T) {
	halfLife := 6 * time.Hour
	state := psyche.NewEmotionalStateWithConfig(nil, halfLife)

	state.ApplyEvent(map[string]float64{psyche.DimJoy: 0.8})
	state.Decay(halfLife)
	assert.InDelta(t, 0.4, state.Intensity(psyche.DimJoy), 1e-9,
		"one half-life should halve the distance to baseline")

	state.Decay(halfLife)
	assert.InDelta(t, 0.2, state.Intensity(psyche.DimJoy), 1e-9)
}

func TestDecayTowardBaseline(t *testing.T) {
	baseline := map[string]float64{psyche.DimTrust: 0.5}
	state := psyche.NewEmotionalStateWithConfig(baseline, time.Hour)

	assert.InDelta(t, 0.5, state.Intensity(psyche.DimTrust), 1e-9, "state starts at baseline")

	state.ApplyEvent(map[string]float64{psyche.DimTrust: -0.4})
	assert.InDelta(t, 0.1, state.Intensity(psyche.DimTrust), 1e-9)

	state.Decay(time.Hour)
	assert.InDelta(t, 0.3, state.Intensity(psyche.DimTrust), 1e-9,
		"decay should move halfway back up to the baseline")

	// Long decay converges to baseline
	state.Decay(1000 * time.Hour)
	assert.InDelta(t, 0.5, state.Intensity(psyche.DimTrust), 1e-6)
}

func TestDecayNonPositiveElapsed(t *testing.T) {
	state := psyche.NewEmotionalState()
	state.ApplyEvent(map[string]float64{psyche.DimAnger: 0.6})

	state.Decay(0)
	assert.InDelta(t, 0.6, state.Intensity(psyche.DimAnger), 1e-9)

	state.Decay(-time.Hour)
	assert.InDelta(t, 0.6, state.Intensity(psyche.DimAnger), 1e-9)
}

func TestSnapshotIsCopy(t *testing.T) {
	state := psyche.NewEmotionalState()
	state.ApplyEvent(map[string]float64{psyche.DimJoy: 0.3})

	snapshot := state.Snapshot()
	snapshot[psyche.DimJoy] = 0.9

	assert.InDelta(t, 0.3, state.Intensity(psyche.DimJoy), 1e-9,
		"mutating a snapshot must not affect the state")
}

func TestSentiment(t *testing.T) {
	state := psyche.NewEmotionalState()
	assert.Equal(t, 0.0, state.Sentiment(), "neutral state has zero sentiment")

	state.ApplyEvent(map[string]float64{psyche.DimJoy: 1.0, psyche.DimTrust: 1.0})
	assert.InDelta(t, 1.0, state.Sentiment(), 1e-9)

	state.ApplyEvent(map[string]float64{
		psyche.DimJoy:     -1.0,
		psyche.DimTrust:   -1.0,
		psyche.DimSadness: 1.0,
		psyche.DimAnger:   1.0,
		psyche.DimFear:    1.0,
	})
	assert.InDelta(t, -1.0, state.Sentiment(), 1e-9)
}
