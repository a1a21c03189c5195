package core

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/psychesim/psychemem-go/pkg/psyche"
	"github.com/psychesim/psychemem-go/pkg/ranker"
	"github.com/psychesim/psychemem-go/pkg/storage"
)

// State is the lifecycle state of an agent.
//
// Agents cycle Idle -> Perceiving -> Idle when ingesting events and
// Idle -> Deciding -> Acting -> Idle when generating behavior. Every
// operation returns the agent to Idle, including on failure.
type State string

const (
	// StateIdle means the agent is not processing anything.
	StateIdle State = "idle"

	// StatePerceiving means the agent is ingesting an event.
	StatePerceiving State = "perceiving"

	// StateDeciding means the agent is retrieving and ranking context.
	StateDeciding State = "deciding"

	// StateActing means the agent is generating behavior.
	StateActing State = "acting"
)

// Event is an external occurrence delivered to an agent.
type Event struct {
	// Description is the textual account of what happened. Required.
	Description string

	// Source is the agent ID (or external actor name) the event came
	// from. When set, the receiving agent's relationship edge toward the
	// source is updated.
	Source string

	// EmotionDelta maps emotion dimensions to bounded intensity deltas.
	EmotionDelta map[string]float64

	// AffinityDelta adjusts the edge toward Source. Ignored when Source
	// is empty.
	AffinityDelta float64

	// Importance is an optional explicit importance in (0, 1]. When zero
	// or negative the engine's evaluator estimates it from the
	// description.
	Importance float64
}

// Action is the outcome of one decide-and-act cycle.
type Action struct {
	// AgentID is the acting agent.
	AgentID string

	// Stimulus is the input that triggered the action.
	Stimulus string

	// Utterance is the generated behavior text.
	Utterance string

	// Record is the memory the utterance was stored as.
	Record *storage.Record
}

// Goal is an agent objective that feeds behavior generation.
type Goal struct {
	// ID is the unique goal identifier.
	ID int64

	// Description is what the agent wants to achieve.
	Description string

	// Priority orders goals; higher is more urgent.
	Priority float64

	// Deadline is an optional time limit (zero means none).
	Deadline time.Time

	// Progress is the completion fraction in [0, 1].
	Progress float64

	// CreatedAt is when the goal was set.
	CreatedAt time.Time
}

// Agent is one simulated person: memories in the store, a decaying
// emotional state, a personality profile, goals, and relationship edges in
// the engine's shared graph.
//
// All operations on one agent are serialized by its internal mutex;
// distinct agents operate concurrently.
type Agent struct {
	id           string
	name         string
	state        State
	emotions     *psyche.EmotionalState
	personality  *psyche.PersonalityProfile
	demographics *psyche.Demographics
	goals        []*Goal
	engine       *Engine
	lastDecay    time.Time
	mu           sync.Mutex
}

// ID returns the agent's unique identifier.
func (a *Agent) ID() string { return a.id }

// Name returns the agent's display name.
func (a *Agent) Name() string { return a.name }

// State returns the agent's current lifecycle state.
func (a *Agent) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Emotions returns a snapshot of the agent's current emotional intensities.
func (a *Agent) Emotions() map[string]float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.emotions.Snapshot()
}

// Sentiment returns the agent's current overall valence in [-1, 1].
func (a *Agent) Sentiment() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.emotions.Sentiment()
}

// Personality returns the agent's personality profile. The profile is
// mutable; callers nudging traits share the agent's view of itself.
func (a *Agent) Personality() *psyche.PersonalityProfile {
	return a.personality
}

// Demographics returns the agent's descriptive attributes.
func (a *Agent) Demographics() *psyche.Demographics {
	return a.demographics
}

// Perceive ingests an event: emotions shift by the event's deltas, the
// relationship edge toward the source absorbs the affinity delta, and the
// event is appended as a memory stamped with the post-event emotion
// snapshot.
//
// When the event carries no explicit importance the engine's evaluator
// estimates one from the description. The agent passes through Perceiving
// and is back in Idle on every path.
//
// Returns the appended record, or ErrValidation for an event with an empty
// description.
func (a *Agent) Perceive(ctx context.Context, event Event) (*storage.Record, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.state = StatePerceiving
	defer func() { a.state = StateIdle }()

	if event.Description == "" {
		return nil, NewEngineError("Perceive", fmt.Errorf("%w: event description is empty", ErrValidation))
	}

	a.decayLocked(time.Now())
	a.emotions.ApplyEvent(event.EmotionDelta)

	if event.Source != "" {
		a.engine.graph.RecordInteraction(a.id, event.Source, event.AffinityDelta)
	}

	importance := event.Importance
	if importance <= 0 {
		importance = a.engine.evaluator.EvaluateImportance(ctx, event.Description)
	}
	if importance > 1 {
		importance = 1
	}

	record := &storage.Record{
		ID:         a.engine.node.Generate().Int64(),
		AgentID:    a.id,
		Content:    event.Description,
		Importance: importance,
		Sentiment:  a.emotions.Sentiment(),
		Emotion:    a.emotions.Snapshot(),
		CreatedAt:  time.Now(),
	}

	if err := a.engine.store.Append(ctx, record); err != nil {
		return nil, NewEngineError("Perceive", err)
	}

	a.engine.logger.Debug("event perceived",
		zap.String("agent_id", a.id),
		zap.Int64("record_id", record.ID),
		zap.Float64("importance", record.Importance),
	)
	return record, nil
}

// DecideAndAct runs one behavior cycle for a stimulus: decay emotions,
// retrieve and rank memories, assemble the context bundle, and call the
// generation provider. The provider call is the sole blocking point and is
// guarded by the configured timeout.
//
// Any provider failure or timeout surfaces as ErrGeneration with the
// agent back in Idle and its prior state intact. On success the utterance
// is appended as a new memory and returned in the Action.
func (a *Agent) DecideAndAct(ctx context.Context, stimulus string) (*Action, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.state = StateDeciding
	defer func() { a.state = StateIdle }()

	a.decayLocked(time.Now())

	bundle, err := a.buildContextLocked(ctx, stimulus)
	if err != nil {
		return nil, err
	}

	a.state = StateActing

	if a.engine.llm == nil {
		return nil, NewEngineError("DecideAndAct", fmt.Errorf("%w: no generation provider configured", ErrGeneration))
	}

	genCtx, cancel := context.WithTimeout(ctx, a.engine.generationTimeout())
	defer cancel()

	utterance, err := a.engine.llm.GenerateWithMessages(genCtx, bundle.Messages())
	if err != nil {
		a.engine.logger.Warn("generation failed",
			zap.String("agent_id", a.id),
			zap.Error(err),
		)
		return nil, NewEngineError("DecideAndAct", fmt.Errorf("%w: %v", ErrGeneration, err))
	}

	record := &storage.Record{
		ID:         a.engine.node.Generate().Int64(),
		AgentID:    a.id,
		Content:    utterance,
		Importance: a.engine.evaluator.EvaluateImportance(ctx, utterance),
		Sentiment:  a.emotions.Sentiment(),
		Emotion:    a.emotions.Snapshot(),
		CreatedAt:  time.Now(),
	}
	if err := a.engine.store.Append(ctx, record); err != nil {
		return nil, NewEngineError("DecideAndAct", err)
	}

	return &Action{
		AgentID:   a.id,
		Stimulus:  stimulus,
		Utterance: utterance,
		Record:    record,
	}, nil
}

// Recall retrieves and ranks the agent's memories for a query without
// generating behavior.
//
// A non-positive topK falls back to the configured retrieval size.
func (a *Agent) Recall(ctx context.Context, query string, topK int) ([]ranker.Ranked, error) {
	a.mu.Lock()
	snapshot := a.emotions.Snapshot()
	a.mu.Unlock()

	if topK <= 0 {
		topK = a.engine.config.Ranking.TopK
	}

	records, err := a.engine.store.Query(ctx, a.id, &storage.Filter{Limit: candidateLimit})
	if err != nil {
		return nil, NewEngineError("Recall", err)
	}

	ranked, err := a.engine.ranker.Rank(ctx, records, query, snapshot, topK)
	if err != nil {
		return nil, NewEngineError("Recall", err)
	}
	return ranked, nil
}

// SetGoal adds a goal for the agent and returns it.
//
// A zero deadline means the goal is open-ended.
func (a *Agent) SetGoal(description string, priority float64, deadline time.Time) *Goal {
	a.mu.Lock()
	defer a.mu.Unlock()

	goal := &Goal{
		ID:          a.engine.node.Generate().Int64(),
		Description: description,
		Priority:    priority,
		Deadline:    deadline,
		CreatedAt:   time.Now(),
	}
	a.goals = append(a.goals, goal)
	return goal
}

// Goals returns copies of the agent's goals, highest priority first.
func (a *Agent) Goals() []Goal {
	a.mu.Lock()
	defer a.mu.Unlock()

	goals := make([]Goal, 0, len(a.goals))
	for _, g := range a.goals {
		goals = append(goals, *g)
	}
	sort.SliceStable(goals, func(i, j int) bool {
		return goals[i].Priority > goals[j].Priority
	})
	return goals
}

// UpdateGoalProgress sets a goal's completion fraction, clamped into
// [0, 1]. Returns ErrNotFound for an unknown goal ID.
func (a *Agent) UpdateGoalProgress(goalID int64, progress float64) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, g := range a.goals {
		if g.ID == goalID {
			if progress < 0 {
				progress = 0
			}
			if progress > 1 {
				progress = 1
			}
			g.Progress = progress
			return nil
		}
	}
	return NewEngineError("UpdateGoalProgress", fmt.Errorf("%w: goal %d", ErrNotFound, goalID))
}

// CleanupMemories purges the agent's old low-importance memories using the
// configured hygiene thresholds. Returns the number of records deleted.
func (a *Agent) CleanupMemories(ctx context.Context) (int, error) {
	olderThan := time.Now().Add(-hoursToDuration(a.engine.config.Hygiene.PurgeOlderThanDays * 24))
	deleted, err := a.engine.store.Purge(ctx, a.id, olderThan, a.engine.config.Hygiene.KeepMinImportance)
	if err != nil {
		return 0, NewEngineError("CleanupMemories", err)
	}

	if deleted > 0 {
		a.engine.logger.Info("memories purged",
			zap.String("agent_id", a.id),
			zap.Int("deleted", deleted),
		)
	}
	return deleted, nil
}

// SaveState persists the agent's profile, beliefs, demographics and
// outgoing relationship edges for later rehydration.
func (a *Agent) SaveState(ctx context.Context) error {
	a.mu.Lock()
	profile := &storage.Profile{
		AgentID:      a.id,
		Name:         a.name,
		Traits:       a.personality.Traits(),
		Beliefs:      a.personality.Beliefs(),
		Demographics: a.demographics.ToMap(),
		UpdatedAt:    time.Now(),
	}
	a.mu.Unlock()

	if err := a.engine.store.SaveProfile(ctx, profile); err != nil {
		return NewEngineError("SaveState", err)
	}

	for _, edge := range a.engine.graph.Edges(a.id) {
		rel := &storage.Relation{
			FromAgent:    edge.From,
			ToAgent:      edge.To,
			Affinity:     edge.Affinity,
			Interactions: edge.Interactions,
			UpdatedAt:    time.Now(),
		}
		if err := a.engine.store.UpsertRelationship(ctx, rel); err != nil {
			return NewEngineError("SaveState", err)
		}
	}
	return nil
}

// Decay moves the agent's emotions toward baseline for the elapsed
// wall-clock time since the last decay. The simulation driver calls this
// on each tick; Perceive and DecideAndAct also decay implicitly.
func (a *Agent) Decay() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.decayLocked(time.Now())
}

// decayLocked applies emotional decay up to now. Caller holds a.mu.
func (a *Agent) decayLocked(now time.Time) {
	if elapsed := now.Sub(a.lastDecay); elapsed > 0 {
		a.emotions.Decay(elapsed)
	}
	a.lastDecay = now
}

// candidateLimit caps how many records are loaded for one ranking pass.
const candidateLimit = 256

// buildContextLocked queries, ranks and assembles the context bundle for a
// stimulus. Caller holds a.mu.
func (a *Agent) buildContextLocked(ctx context.Context, stimulus string) (*ContextBundle, error) {
	records, err := a.engine.store.Query(ctx, a.id, &storage.Filter{Limit: candidateLimit})
	if err != nil {
		return nil, NewEngineError("DecideAndAct", err)
	}

	snapshot := a.emotions.Snapshot()
	ranked, err := a.engine.ranker.Rank(ctx, records, stimulus, snapshot, a.engine.config.Ranking.TopK)
	if err != nil {
		return nil, NewEngineError("DecideAndAct", err)
	}

	goals := make([]Goal, 0, len(a.goals))
	for _, g := range a.goals {
		goals = append(goals, *g)
	}
	sort.SliceStable(goals, func(i, j int) bool {
		return goals[i].Priority > goals[j].Priority
	})

	return &ContextBundle{
		AgentName:    a.name,
		Personality:  a.personality.Summary(),
		Demographics: a.demographics.Summary(),
		Emotions:     snapshot,
		Memories:     ranked,
		Goals:        goals,
		Stimulus:     stimulus,
	}, nil
}
