package core

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/psychesim/psychemem-go/pkg/embedder"
	openaiEmbedder "github.com/psychesim/psychemem-go/pkg/embedder/openai"
	"github.com/psychesim/psychemem-go/pkg/llm"
	anthropicLLM "github.com/psychesim/psychemem-go/pkg/llm/anthropic"
	ollamaLLM "github.com/psychesim/psychemem-go/pkg/llm/ollama"
	openaiLLM "github.com/psychesim/psychemem-go/pkg/llm/openai"
	"github.com/psychesim/psychemem-go/pkg/psyche"
	"github.com/psychesim/psychemem-go/pkg/ranker"
	"github.com/psychesim/psychemem-go/pkg/relationship"
	"github.com/psychesim/psychemem-go/pkg/storage"
	mysqlStore "github.com/psychesim/psychemem-go/pkg/storage/mysql"
	postgresStore "github.com/psychesim/psychemem-go/pkg/storage/postgres"
	sqliteStore "github.com/psychesim/psychemem-go/pkg/storage/sqlite"
)

// Engine composes the storage backend, ranking, the relationship graph and
// the generation provider, and owns the set of live agents.
//
// The engine is thread-safe. Each agent serializes its own operations, so
// distinct agents can perceive and act concurrently.
//
// Example usage:
//
//	config, _ := core.LoadConfigFromEnv()
//	engine, _ := core.NewEngine(config)
//	defer engine.Close()
//
//	agent, _ := engine.SpawnAgent(ctx, core.AgentSpec{
//	    Name:        "Maria",
//	    Personality: psyche.NewPersonalityProfile(0.7, 0.5, 0.6, 0.8, 0.3),
//	})
type Engine struct {
	config *Config

	// store persists memories, profiles and relationship edges.
	store storage.Store

	// llm is the text-generation provider. May be nil, in which case
	// DecideAndAct fails with ErrGeneration.
	llm llm.Provider

	// embedder is the embedding provider. May be nil, in which case
	// relevance falls back to the lexical scorer.
	embedder embedder.Provider

	// ranker scores memories for retrieval.
	ranker *ranker.Ranker

	// evaluator estimates importance for events without an explicit score.
	evaluator *ranker.Evaluator

	// graph is the shared relationship graph across all agents.
	graph *relationship.Graph

	// node generates unique record and goal IDs.
	node *snowflake.Node

	logger *zap.Logger

	mu     sync.RWMutex
	agents map[string]*Agent
	closed bool
}

// EngineOption configures an Engine beyond its Config.
type EngineOption func(*Engine)

// WithLogger sets the structured logger. The default is zap.NewNop().
func WithLogger(logger *zap.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithStore injects a pre-built storage backend, overriding the config's
// storage section. Useful for tests and custom backends.
func WithStore(store storage.Store) EngineOption {
	return func(e *Engine) {
		e.store = store
	}
}

// WithLLM injects a pre-built generation provider, overriding the config's
// LLM section.
func WithLLM(provider llm.Provider) EngineOption {
	return func(e *Engine) {
		e.llm = provider
	}
}

// WithEmbedder injects a pre-built embedding provider, overriding the
// config's embedder section.
func WithEmbedder(provider embedder.Provider) EngineOption {
	return func(e *Engine) {
		e.embedder = provider
	}
}

// NewEngine creates a new Engine.
//
// The engine is initialized with:
//   - Storage backend (SQLite, PostgreSQL, or MySQL)
//   - LLM provider (OpenAI, Anthropic, Ollama; optional)
//   - Embedding provider (OpenAI; optional)
//   - A snowflake node for record IDs
//
// Parameters:
//   - cfg: Configuration containing storage, LLM, embedder and tuning
//     settings
//   - opts: Optional overrides (logger, injected providers)
//
// Returns a new Engine instance, or an error if initialization fails.
func NewEngine(cfg *Config, opts ...EngineOption) (*Engine, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		config: cfg,
		graph:  relationship.NewGraph(),
		logger: zap.NewNop(),
		agents: make(map[string]*Agent),
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.store == nil {
		store, err := initStorage(cfg.Storage)
		if err != nil {
			return nil, err
		}
		e.store = store
	}

	if e.llm == nil && cfg.LLM.Provider != "" {
		provider, err := initLLM(cfg.LLM)
		if err != nil {
			return nil, err
		}
		e.llm = provider
	}

	if e.embedder == nil && cfg.Embedder != nil {
		provider, err := initEmbedder(*cfg.Embedder)
		if err != nil {
			return nil, err
		}
		e.embedder = provider
	}

	rankerOpts := []ranker.Option{
		ranker.WithWeights(ranker.Weights{
			Recency:    cfg.Ranking.RecencyWeight,
			Importance: cfg.Ranking.ImportanceWeight,
			Relevance:  cfg.Ranking.RelevanceWeight,
			Resonance:  cfg.Ranking.ResonanceWeight,
		}),
		ranker.WithRecencyHalfLife(hoursToDuration(cfg.Ranking.RecencyHalfLifeHours)),
	}
	if e.embedder != nil {
		rankerOpts = append(rankerOpts, ranker.WithScorer(ranker.NewEmbeddingScorer(e.embedder)))
	}
	e.ranker = ranker.NewRanker(rankerOpts...)
	e.evaluator = ranker.NewEvaluator(e.llm)

	node, err := snowflake.NewNode(1)
	if err != nil {
		return nil, NewEngineError("NewEngine", err)
	}
	e.node = node

	e.logger.Info("engine initialized",
		zap.String("storage", cfg.Storage.Provider),
		zap.String("llm", cfg.LLM.Provider),
		zap.Bool("embedder", e.embedder != nil),
	)

	return e, nil
}

// initStorage initializes the storage backend based on the provider name.
func initStorage(cfg StorageConfig) (storage.Store, error) {
	switch cfg.Provider {
	case "sqlite":
		path := cfg.SQLite.Path
		if path == "" {
			path = "./psychemem.db"
		}
		return sqliteStore.NewClient(&sqliteStore.Config{DBPath: path})
	case "postgres":
		return postgresStore.NewClient(&postgresStore.Config{
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			DBName:   cfg.Postgres.DBName,
			SSLMode:  cfg.Postgres.SSLMode,
		})
	case "mysql":
		return mysqlStore.NewClient(&mysqlStore.Config{
			Host:     cfg.MySQL.Host,
			Port:     cfg.MySQL.Port,
			User:     cfg.MySQL.User,
			Password: cfg.MySQL.Password,
			DBName:   cfg.MySQL.DBName,
		})
	default:
		return nil, NewEngineError("initStorage",
			fmt.Errorf("%w: unsupported storage provider %q", ErrInvalidConfig, cfg.Provider))
	}
}

// initLLM initializes the LLM provider based on the provider name.
func initLLM(cfg LLMConfig) (llm.Provider, error) {
	switch cfg.Provider {
	case "openai":
		return openaiLLM.NewClient(&openaiLLM.Config{
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
		})
	case "anthropic":
		return anthropicLLM.NewClient(&anthropicLLM.Config{
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
		})
	case "ollama":
		return ollamaLLM.NewClient(&ollamaLLM.Config{
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
		})
	default:
		return nil, NewEngineError("initLLM",
			fmt.Errorf("%w: unsupported LLM provider %q", ErrInvalidConfig, cfg.Provider))
	}
}

// initEmbedder initializes the embedding provider based on the provider name.
func initEmbedder(cfg EmbedderConfig) (embedder.Provider, error) {
	switch cfg.Provider {
	case "openai":
		return openaiEmbedder.NewClient(&openaiEmbedder.Config{
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			BaseURL:    cfg.BaseURL,
			Dimensions: cfg.Dimensions,
		})
	default:
		return nil, NewEngineError("initEmbedder",
			fmt.Errorf("%w: unsupported embedding provider %q", ErrInvalidConfig, cfg.Provider))
	}
}

// AgentSpec describes a new agent to spawn.
type AgentSpec struct {
	// Name is the agent's display name. Required.
	Name string

	// Personality is the Big Five profile. Nil gets population-average
	// traits (all 0.5).
	Personality *psyche.PersonalityProfile

	// Demographics holds descriptive attributes. Optional.
	Demographics *psyche.Demographics

	// EmotionalBaseline is the per-dimension resting intensity. Optional;
	// defaults to a fully neutral baseline.
	EmotionalBaseline map[string]float64
}

// SpawnAgent creates a new agent, registers it with the engine, and
// persists its initial profile.
//
// The agent ID is a fresh UUID. Returns ErrValidation when the spec has no
// name.
func (e *Engine) SpawnAgent(ctx context.Context, spec AgentSpec) (*Agent, error) {
	if spec.Name == "" {
		return nil, NewEngineError("SpawnAgent", fmt.Errorf("%w: agent name is empty", ErrValidation))
	}

	personality := spec.Personality
	if personality == nil {
		personality = psyche.NewPersonalityProfileFromTraits(nil)
	}
	demographics := spec.Demographics
	if demographics == nil {
		demographics = &psyche.Demographics{}
	}

	agent := &Agent{
		id:           uuid.NewString(),
		name:         spec.Name,
		state:        StateIdle,
		emotions:     psyche.NewEmotionalStateWithConfig(spec.EmotionalBaseline, hoursToDuration(e.config.Emotion.HalfLifeHours)),
		personality:  personality,
		demographics: demographics,
		engine:       e,
		lastDecay:    time.Now(),
	}

	if err := agent.SaveState(ctx); err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.agents[agent.id] = agent
	e.mu.Unlock()

	e.logger.Info("agent spawned",
		zap.String("agent_id", agent.id),
		zap.String("name", agent.name),
	)
	return agent, nil
}

// RehydrateAgent restores an agent from its persisted profile and
// relationship edges, and registers it with the engine.
//
// Returns ErrNotFound when no profile exists for the ID.
func (e *Engine) RehydrateAgent(ctx context.Context, agentID string) (*Agent, error) {
	profile, err := e.store.LoadProfile(ctx, agentID)
	if err != nil {
		return nil, NewEngineError("RehydrateAgent", err)
	}

	personality := psyche.NewPersonalityProfileFromTraits(profile.Traits)
	for name, strength := range profile.Beliefs {
		personality.SetBelief(name, strength)
	}

	agent := &Agent{
		id:           profile.AgentID,
		name:         profile.Name,
		state:        StateIdle,
		emotions:     psyche.NewEmotionalStateWithConfig(nil, hoursToDuration(e.config.Emotion.HalfLifeHours)),
		personality:  personality,
		demographics: psyche.DemographicsFromMap(profile.Demographics),
		engine:       e,
		lastDecay:    time.Now(),
	}

	relations, err := e.store.LoadRelationships(ctx, agentID)
	if err != nil {
		return nil, NewEngineError("RehydrateAgent", err)
	}
	for _, rel := range relations {
		e.graph.Seed(rel.FromAgent, rel.ToAgent, rel.Affinity, rel.Interactions)
	}

	e.mu.Lock()
	e.agents[agent.id] = agent
	e.mu.Unlock()

	e.logger.Info("agent rehydrated",
		zap.String("agent_id", agent.id),
		zap.String("name", agent.name),
		zap.Int("relationships", len(relations)),
	)
	return agent, nil
}

// Agent returns a registered agent by ID. Returns ErrNotFound when the ID
// is not registered.
func (e *Engine) Agent(agentID string) (*Agent, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	agent, ok := e.agents[agentID]
	if !ok {
		return nil, NewEngineError("Agent", fmt.Errorf("%w: agent %q", ErrNotFound, agentID))
	}
	return agent, nil
}

// Agents returns all registered agents in unspecified order.
func (e *Engine) Agents() []*Agent {
	e.mu.RLock()
	defer e.mu.RUnlock()

	agents := make([]*Agent, 0, len(e.agents))
	for _, agent := range e.agents {
		agents = append(agents, agent)
	}
	return agents
}

// Graph returns the shared relationship graph.
func (e *Engine) Graph() *relationship.Graph {
	return e.graph
}

// Store returns the underlying storage backend.
func (e *Engine) Store() storage.Store {
	return e.store
}

// Close closes the engine and all underlying providers.
//
// Close is idempotent. Registered agents become unusable afterwards.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil
	}
	e.closed = true

	var firstErr error
	if e.llm != nil {
		if err := e.llm.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if e.embedder != nil {
		if err := e.embedder.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := e.store.Close(); err != nil && firstErr == nil {
		firstErr = err
	}

	e.logger.Info("engine closed")
	return NewEngineError("Close", firstErr)
}

// generationTimeout returns the configured per-call generation timeout.
func (e *Engine) generationTimeout() time.Duration {
	if e.config.GenerationTimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(e.config.GenerationTimeoutSeconds) * time.Second
}

// hoursToDuration converts fractional hours to a duration, mapping
// non-positive values to zero so downstream defaults apply.
func hoursToDuration(hours float64) time.Duration {
	if hours <= 0 {
		return 0
	}
	return time.Duration(hours * float64(time.Hour))
}
