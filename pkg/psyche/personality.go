package psyche

import (
	"fmt"
	"sort"
	"strings"

	"github.com/psychesim/psychemem-go/pkg/storage"
)

// The five recognized personality trait dimensions (Five Factor Model).
const (
	TraitOpenness          = "openness"
	TraitConscientiousness = "conscientiousness"
	TraitExtraversion      = "extraversion"
	TraitAgreeableness     = "agreeableness"
	TraitNeuroticism       = "neuroticism"
)

// ErrUnknownTrait indicates a nudge targeted a trait outside the five
// recognized dimensions. It matches storage.ErrValidation.
var ErrUnknownTrait = fmt.Errorf("%w: unknown personality trait", storage.ErrValidation)

// TraitNames returns the recognized trait names in stable order.
func TraitNames() []string {
	return []string{
		TraitOpenness,
		TraitConscientiousness,
		TraitExtraversion,
		TraitAgreeableness,
		TraitNeuroticism,
	}
}

// PersonalityProfile is a per-agent trait vector plus open-ended beliefs.
//
// Traits are mostly read-only; they change only through explicit, bounded
// nudges modeling long-term influence. Beliefs are an open set of named
// strengths; absence of a belief is not an error.
type PersonalityProfile struct {
	traits  map[string]float64
	beliefs map[string]float64
}

// NewPersonalityProfile creates a profile from five Big Five trait values.
// All inputs are clamped into [0, 1].
func NewPersonalityProfile(openness, conscientiousness, extraversion, agreeableness, neuroticism float64) *PersonalityProfile {
	return &PersonalityProfile{
		traits: map[string]float64{
			TraitOpenness:          clamp01(openness),
			TraitConscientiousness: clamp01(conscientiousness),
			TraitExtraversion:      clamp01(extraversion),
			TraitAgreeableness:     clamp01(agreeableness),
			TraitNeuroticism:       clamp01(neuroticism),
		},
		beliefs: make(map[string]float64),
	}
}

// NewPersonalityProfileFromTraits creates a profile from a trait map,
// filling missing traits with 0.5 (population average).
func NewPersonalityProfileFromTraits(traits map[string]float64) *PersonalityProfile {
	p := NewPersonalityProfile(0.5, 0.5, 0.5, 0.5, 0.5)
	for _, name := range TraitNames() {
		if v, ok := traits[name]; ok {
			p.traits[name] = clamp01(v)
		}
	}
	return p
}

// Nudge applies a bounded delta to one trait, modeling long-term influence.
//
// It fails with ErrUnknownTrait if the trait is not one of the five
// recognized dimensions; the result is clamped into [0, 1].
func (p *PersonalityProfile) Nudge(trait string, delta float64) error {
	current, ok := p.traits[trait]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownTrait, trait)
	}
	p.traits[trait] = clamp01(current + delta)
	return nil
}

// Trait returns the current value of one trait, or 0 for an unknown name.
func (p *PersonalityProfile) Trait(name string) float64 {
	return p.traits[name]
}

// Traits returns a copy of the trait vector.
func (p *PersonalityProfile) Traits() map[string]float64 {
	traits := make(map[string]float64, len(p.traits))
	for name, v := range p.traits {
		traits[name] = v
	}
	return traits
}

// SetBelief records a named belief with the given strength, clamped into
// [0, 1]. Beliefs are an open set; any name is accepted.
func (p *PersonalityProfile) SetBelief(name string, strength float64) {
	p.beliefs[name] = clamp01(strength)
}

// BeliefStrength returns the stored strength of a belief, or 0 when the
// belief is absent.
func (p *PersonalityProfile) BeliefStrength(name string) float64 {
	return p.beliefs[name]
}

// Beliefs returns a copy of the belief map.
func (p *PersonalityProfile) Beliefs() map[string]float64 {
	beliefs := make(map[string]float64, len(p.beliefs))
	for name, v := range p.beliefs {
		beliefs[name] = v
	}
	return beliefs
}

// Summary renders the profile as a short text block for prompt context.
//
// Traits and beliefs are listed in sorted order so the output is stable
// across runs.
func (p *PersonalityProfile) Summary() string {
	var b strings.Builder

	b.WriteString("Personality:")
	for _, name := range TraitNames() {
		fmt.Fprintf(&b, " %s=%.2f", name, p.traits[name])
	}

	if len(p.beliefs) > 0 {
		names := make([]string, 0, len(p.beliefs))
		for name := range p.beliefs {
			names = append(names, name)
		}
		sort.Strings(names)

		b.WriteString("\nBeliefs:")
		for _, name := range names {
			fmt.Fprintf(&b, " %s=%.2f", name, p.beliefs[name])
		}
	}

	return b.String()
}
