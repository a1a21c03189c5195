package core_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psychesim/psychemem-go/pkg/core"
	"github.com/psychesim/psychemem-go/pkg/llm"
	"github.com/psychesim/psychemem-go/pkg/psyche"
	"github.com/psychesim/psychemem-go/pkg/storage"
)

// stubProvider is a canned llm.Provider for tests.
type stubProvider struct {
	reply string
	err   error
	calls int
}

func (s *stubProvider) Generate(_ context.Context, _ string, _ ...llm.GenerateOption) (string, error) {
	s.calls++
	return s.reply, s.err
}

func (s *stubProvider) GenerateWithMessages(_ context.Context, _ []llm.Message, _ ...llm.GenerateOption) (string, error) {
	s.calls++
	return s.reply, s.err
}

func (s *stubProvider) Close() error { return nil }

func testConfig(t *testing.T) *core.Config {
	t.Helper()
	config := core.DefaultConfig()
	config.Storage.SQLite.Path = filepath.Join(t.TempDir(), "engine_test.db")
	return config
}

func newTestEngine(t *testing.T, opts ...core.EngineOption) *core.Engine {
	t.Helper()
	engine, err := core.NewEngine(testConfig(t), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = engine.Close() })
	return engine
}

func spawnTestAgent(t *testing.T, engine *core.Engine) *core.Agent {
	t.Helper()
	agent, err := engine.SpawnAgent(context.Background(), core.AgentSpec{
		Name:        "Maria",
		Personality: psyche.NewPersonalityProfile(0.7, 0.5, 0.6, 0.8, 0.3),
		Demographics: &psyche.Demographics{
			Age: 34, Occupation: "baker",
		},
	})
	require.NoError(t, err)
	return agent
}

func TestSpawnAgent(t *testing.T) {
	engine := newTestEngine(t)
	agent := spawnTestAgent(t, engine)

	assert.NotEmpty(t, agent.ID())
	assert.Equal(t, "Maria", agent.Name())
	assert.Equal(t, core.StateIdle, agent.State())

	// Spawning persists the profile immediately
	profile, err := engine.Store().LoadProfile(context.Background(), agent.ID())
	require.NoError(t, err)
	assert.Equal(t, "Maria", profile.Name)
	assert.InDelta(t, 0.7, profile.Traits[psyche.TraitOpenness], 1e-9)

	// Registered agents are retrievable
	got, err := engine.Agent(agent.ID())
	require.NoError(t, err)
	assert.Same(t, agent, got)

	_, err = engine.Agent("missing")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestSpawnAgentRequiresName(t *testing.T) {
	engine := newTestEngine(t)

	_, err := engine.SpawnAgent(context.Background(), core.AgentSpec{})
	assert.ErrorIs(t, err, core.ErrValidation)
}

func TestPerceiveUpdatesEmotionAndAppends(t *testing.T) {
	engine := newTestEngine(t)
	agent := spawnTestAgent(t, engine)
	ctx := context.Background()

	record, err := agent.Perceive(ctx, core.Event{
		Description:   "Tomas complimented my sourdough bread",
		Source:        "tomas",
		EmotionDelta:  map[string]float64{psyche.DimJoy: 0.5},
		AffinityDelta: 0.2,
		Importance:    0.8,
	})
	require.NoError(t, err)

	assert.InDelta(t, 0.5, agent.Emotions()[psyche.DimJoy], 1e-9)
	assert.Equal(t, core.StateIdle, agent.State(), "agent returns to idle after perceiving")
	assert.InDelta(t, 0.2, engine.Graph().Affinity(agent.ID(), "tomas"), 1e-9)

	// The record carries the post-event snapshot
	assert.InDelta(t, 0.8, record.Importance, 1e-9)
	assert.InDelta(t, 0.5, record.Emotion[psyche.DimJoy], 1e-9)

	stored, err := engine.Store().Get(ctx, record.ID)
	require.NoError(t, err)
	assert.Equal(t, "Tomas complimented my sourdough bread", stored.Content)
}

func TestPerceiveEvaluatesUnsetImportance(t *testing.T) {
	engine := newTestEngine(t)
	agent := spawnTestAgent(t, engine)

	record, err := agent.Perceive(context.Background(), core.Event{
		Description: "My father died in the accident",
	})
	require.NoError(t, err)
	assert.Greater(t, record.Importance, 0.3, "the evaluator scores unset importance")
	assert.LessOrEqual(t, record.Importance, 1.0)
}

func TestPerceiveRejectsEmptyDescription(t *testing.T) {
	engine := newTestEngine(t)
	agent := spawnTestAgent(t, engine)

	_, err := agent.Perceive(context.Background(), core.Event{})
	assert.ErrorIs(t, err, core.ErrValidation)
	assert.Equal(t, core.StateIdle, agent.State())
}

func TestDecideAndAct(t *testing.T) {
	provider := &stubProvider{reply: "hello"}
	engine := newTestEngine(t, core.WithLLM(provider))
	agent := spawnTestAgent(t, engine)
	ctx := context.Background()

	_, err := agent.Perceive(ctx, core.Event{
		Description:  "The harvest festival was announced",
		EmotionDelta: map[string]float64{psyche.DimJoy: 0.4},
		Importance:   0.6,
	})
	require.NoError(t, err)

	action, err := agent.DecideAndAct(ctx, "A customer greets you")
	require.NoError(t, err)

	assert.Equal(t, "hello", action.Utterance)
	assert.Equal(t, agent.ID(), action.AgentID)
	assert.Equal(t, core.StateIdle, agent.State(), "agent returns to idle after acting")

	// The utterance became a memory
	stored, err := engine.Store().Get(ctx, action.Record.ID)
	require.NoError(t, err)
	assert.Equal(t, "hello", stored.Content)
}

func TestDecideAndActProviderFailure(t *testing.T) {
	provider := &stubProvider{err: errors.New("rate limited")}
	engine := newTestEngine(t, core.WithLLM(provider))
	agent := spawnTestAgent(t, engine)
	ctx := context.Background()

	_, err := agent.Perceive(ctx, core.Event{Description: "something happened", Importance: 0.5})
	require.NoError(t, err)

	before, err := engine.Store().Query(ctx, agent.ID(), nil)
	require.NoError(t, err)

	_, err = agent.DecideAndAct(ctx, "stimulus")
	assert.ErrorIs(t, err, core.ErrGeneration)
	assert.Equal(t, core.StateIdle, agent.State(), "agent recovers to idle on failure")

	after, err := engine.Store().Query(ctx, agent.ID(), nil)
	require.NoError(t, err)
	assert.Len(t, after, len(before), "a failed generation writes no memory")
}

func TestDecideAndActWithoutProvider(t *testing.T) {
	engine := newTestEngine(t)
	agent := spawnTestAgent(t, engine)

	_, err := agent.DecideAndAct(context.Background(), "stimulus")
	assert.ErrorIs(t, err, core.ErrGeneration)
	assert.Equal(t, core.StateIdle, agent.State())
}

func TestRecall(t *testing.T) {
	engine := newTestEngine(t)
	agent := spawnTestAgent(t, engine)
	ctx := context.Background()

	_, err := agent.Perceive(ctx, core.Event{Description: "The harvest festival was announced", Importance: 0.6})
	require.NoError(t, err)
	_, err = agent.Perceive(ctx, core.Event{Description: "The flour delivery was late", Importance: 0.3})
	require.NoError(t, err)

	ranked, err := agent.Recall(ctx, "harvest festival", 5)
	require.NoError(t, err)
	require.NotEmpty(t, ranked)
	assert.Equal(t, "The harvest festival was announced", ranked[0].Record.Content,
		"the relevant memory ranks first")
}

func TestGoals(t *testing.T) {
	engine := newTestEngine(t)
	agent := spawnTestAgent(t, engine)

	low := agent.SetGoal("sweep the shop", 0.2, time.Time{})
	high := agent.SetGoal("win the baking contest", 0.9, time.Now().Add(7*24*time.Hour))

	goals := agent.Goals()
	require.Len(t, goals, 2)
	assert.Equal(t, high.ID, goals[0].ID, "goals come back highest priority first")
	assert.Equal(t, low.ID, goals[1].ID)

	require.NoError(t, agent.UpdateGoalProgress(high.ID, 0.5))
	goals = agent.Goals()
	assert.InDelta(t, 0.5, goals[0].Progress, 1e-9)

	require.NoError(t, agent.UpdateGoalProgress(high.ID, 7.0))
	assert.Equal(t, 1.0, agent.Goals()[0].Progress, "progress clamps into [0,1]")

	err := agent.UpdateGoalProgress(12345, 0.5)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestCleanupMemories(t *testing.T) {
	engine := newTestEngine(t)
	agent := spawnTestAgent(t, engine)
	ctx := context.Background()

	// Backdated trivial memory, appended directly to control CreatedAt
	old := &storage.Record{
		ID:         1,
		AgentID:    agent.ID(),
		Content:    "forgettable detail",
		Importance: 0.1,
		CreatedAt:  time.Now().Add(-60 * 24 * time.Hour),
	}
	require.NoError(t, engine.Store().Append(ctx, old))

	precious := &storage.Record{
		ID:         2,
		AgentID:    agent.ID(),
		Content:    "my wedding day",
		Importance: 0.95,
		CreatedAt:  time.Now().Add(-60 * 24 * time.Hour),
	}
	require.NoError(t, engine.Store().Append(ctx, precious))

	deleted, err := agent.CleanupMemories(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	_, err = engine.Store().Get(ctx, 2)
	assert.NoError(t, err, "important memories survive the purge")
}

func TestRehydrateAgent(t *testing.T) {
	config := testConfig(t)
	ctx := context.Background()

	first, err := core.NewEngine(config)
	require.NoError(t, err)

	agent, err := first.SpawnAgent(ctx, core.AgentSpec{
		Name:        "Tomas",
		Personality: psyche.NewPersonalityProfile(0.4, 0.8, 0.3, 0.5, 0.6),
		Demographics: &psyche.Demographics{
			Age: 51, Occupation: "miller",
		},
	})
	require.NoError(t, err)
	agentID := agent.ID()

	agent.Personality().SetBelief("hard work pays off", 0.9)
	_, err = agent.Perceive(ctx, core.Event{
		Description:   "Maria thanked me for the ferry ride",
		Source:        "maria",
		AffinityDelta: 0.25,
		Importance:    0.5,
	})
	require.NoError(t, err)
	require.NoError(t, agent.SaveState(ctx))
	require.NoError(t, first.Close())

	// Fresh engine over the same database
	second, err := core.NewEngine(config)
	require.NoError(t, err)
	t.Cleanup(func() { _ = second.Close() })

	restored, err := second.RehydrateAgent(ctx, agentID)
	require.NoError(t, err)

	assert.Equal(t, "Tomas", restored.Name())
	assert.InDelta(t, 0.8, restored.Personality().Trait(psyche.TraitConscientiousness), 1e-9)
	assert.InDelta(t, 0.9, restored.Personality().BeliefStrength("hard work pays off"), 1e-9)
	assert.Equal(t, 51, restored.Demographics().Age)
	assert.InDelta(t, 0.25, second.Graph().Affinity(agentID, "maria"), 1e-9)

	ranked, err := restored.Recall(ctx, "ferry ride", 5)
	require.NoError(t, err)
	require.NotEmpty(t, ranked, "memories survive across engines")

	_, err = second.RehydrateAgent(ctx, "never-existed")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestAsyncEngine(t *testing.T) {
	provider := &stubProvider{reply: "hello"}
	config := testConfig(t)

	engine, err := core.NewAsyncEngine(config, core.WithLLM(provider))
	require.NoError(t, err)
	t.Cleanup(func() { _ = engine.Close() })

	ctx := context.Background()
	agent, err := engine.SpawnAgent(ctx, core.AgentSpec{Name: "Elena"})
	require.NoError(t, err)

	perceived := <-engine.PerceiveAsync(ctx, agent.ID(), core.Event{
		Description: "news from the road",
		Importance:  0.4,
	})
	require.NoError(t, perceived.Error)
	assert.NotNil(t, perceived.Record)

	acted := <-engine.DecideAndActAsync(ctx, agent.ID(), "say hi")
	require.NoError(t, acted.Error)
	assert.Equal(t, "hello", acted.Action.Utterance)

	missing := <-engine.PerceiveAsync(ctx, "missing", core.Event{Description: "x"})
	assert.ErrorIs(t, missing.Error, core.ErrNotFound)

	engine.Wait()
}
