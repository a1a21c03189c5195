// Package psyche provides the psychological state owned by a single agent:
// a decaying emotional-affect vector and an adjustable Big Five personality
// profile with open-ended beliefs.
package psyche

import (
	"math"
	"time"
)

// The fixed set of emotion dimensions tracked per agent.
const (
	DimJoy      = "joy"
	DimSadness  = "sadness"
	DimAnger    = "anger"
	DimFear     = "fear"
	DimTrust    = "trust"
	DimSurprise = "surprise"
)

// EmotionDimensions returns the recognized emotion dimensions in stable order.
func EmotionDimensions() []string {
	return []string{DimJoy, DimSadness, DimAnger, DimFear, DimTrust, DimSurprise}
}

// DefaultEmotionHalfLife is the default half-life for emotional decay.
const DefaultEmotionHalfLife = 6 * time.Hour

// EmotionalState is a per-agent decaying affect vector.
//
// Each dimension holds an intensity in [0, 1]. Discrete events apply bounded
// deltas; decay moves every dimension toward its neutral baseline with a
// configurable half-life. All numeric inputs are clamped, never rejected:
// emotional intensity is inherently approximate and must never halt a
// simulation.
//
// An EmotionalState is owned exclusively by one agent and is not safe for
// concurrent mutation; the owning agent serializes access.
type EmotionalState struct {
	intensities map[string]float64
	baseline    map[string]float64
	halfLife    time.Duration
}

// NewEmotionalState creates a neutral emotional state with the default
// half-life. All dimensions start at their baseline of 0.
func NewEmotionalState() *EmotionalState {
	return NewEmotionalStateWithConfig(nil, DefaultEmotionHalfLife)
}

// NewEmotionalStateWithConfig creates an emotional state with a custom
// per-dimension baseline and decay half-life.
//
// Parameters:
//   - baseline: Neutral resting intensity per dimension. Missing dimensions
//     default to 0; values are clamped into [0, 1].
//   - halfLife: Time for a dimension to move halfway back to its baseline.
//     Non-positive values fall back to DefaultEmotionHalfLife.
func NewEmotionalStateWithConfig(baseline map[string]float64, halfLife time.Duration) *EmotionalState {
	if halfLife <= 0 {
		halfLife = DefaultEmotionHalfLife
	}

	s := &EmotionalState{
		intensities: make(map[string]float64, len(EmotionDimensions())),
		baseline:    make(map[string]float64, len(EmotionDimensions())),
		halfLife:    halfLife,
	}
	for _, dim := range EmotionDimensions() {
		b := clamp01(baseline[dim])
		s.baseline[dim] = b
		s.intensities[dim] = b
	}
	return s
}

// ApplyEvent applies a bounded delta to one or more dimensions.
//
// Results are clamped per-dimension into [0, 1]. Unknown dimensions and
// non-finite deltas are ignored rather than rejected.
func (s *EmotionalState) ApplyEvent(delta map[string]float64) {
	for dim, d := range delta {
		current, ok := s.intensities[dim]
		if !ok {
			continue
		}
		if math.IsNaN(d) || math.IsInf(d, 0) {
			continue
		}
		s.intensities[dim] = clamp01(current + d)
	}
}

// Decay moves every dimension toward its baseline.
//
// The update is baseline + (value-baseline) * exp(-ln2 * elapsed / halfLife),
// so after one half-life a dimension has moved exactly halfway back.
// Non-positive elapsed durations are a no-op.
func (s *EmotionalState) Decay(elapsed time.Duration) {
	if elapsed <= 0 {
		return
	}

	factor := math.Exp(-math.Ln2 * elapsed.Seconds() / s.halfLife.Seconds())
	for dim, v := range s.intensities {
		b := s.baseline[dim]
		s.intensities[dim] = clamp01(b + (v-b)*factor)
	}
}

// Snapshot returns an immutable copy of the current intensities, suitable
// for embedding into a memory record as its emotional context.
func (s *EmotionalState) Snapshot() map[string]float64 {
	snapshot := make(map[string]float64, len(s.intensities))
	for dim, v := range s.intensities {
		snapshot[dim] = v
	}
	return snapshot
}

// Intensity returns the current intensity of one dimension, or 0 for an
// unknown dimension.
func (s *EmotionalState) Intensity(dim string) float64 {
	return s.intensities[dim]
}

// Sentiment summarizes the affect vector as a single valence in [-1, 1].
//
// Positive dimensions (joy, trust) pull the value up, negative dimensions
// (sadness, anger, fear) pull it down; surprise is treated as neutral.
func (s *EmotionalState) Sentiment() float64 {
	positive := (s.intensities[DimJoy] + s.intensities[DimTrust]) / 2
	negative := (s.intensities[DimSadness] + s.intensities[DimAnger] + s.intensities[DimFear]) / 3
	return clampSigned(positive - negative)
}

// clamp01 clamps a value into [0, 1]. NaN maps to 0.
func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// clampSigned clamps a value into [-1, 1]. NaN maps to 0.
func clampSigned(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	if v < -1 {
		return -1
	}
	if v > 1 {
		return 1
	}
	return v
}
