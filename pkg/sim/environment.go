// Package sim provides a thin simulation driver: an environment that
// registers agents, delivers and broadcasts events, and advances time in
// ticks.
package sim

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/psychesim/psychemem-go/pkg/core"
	"github.com/psychesim/psychemem-go/pkg/storage"
)

// historySize caps the retained message history.
const historySize = 256

// Message is one delivered event kept in the environment's history.
type Message struct {
	// Tick is the tick counter value at delivery time.
	Tick int

	// From is the source agent or actor name. May be empty.
	From string

	// To is the receiving agent's ID.
	To string

	// Description is the delivered event text.
	Description string

	// At is the wall-clock delivery time.
	At time.Time
}

// Environment coordinates a set of agents through discrete ticks.
//
// Turn order is registration order. The environment is safe for concurrent
// use, though a typical simulation drives it from a single loop.
type Environment struct {
	mu      sync.Mutex
	agents  []*core.Agent
	byID    map[string]*core.Agent
	tick    int
	history []Message
	logger  *zap.Logger
}

// Option configures an Environment.
type Option func(*Environment)

// WithLogger sets the structured logger. The default is zap.NewNop().
func WithLogger(logger *zap.Logger) Option {
	return func(env *Environment) {
		if logger != nil {
			env.logger = logger
		}
	}
}

// NewEnvironment creates an empty environment.
func NewEnvironment(opts ...Option) *Environment {
	env := &Environment{
		byID:   make(map[string]*core.Agent),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(env)
	}
	return env
}

// Register adds an agent to the environment. Registering the same agent
// twice is a no-op; turn order follows first registration.
func (env *Environment) Register(agent *core.Agent) {
	env.mu.Lock()
	defer env.mu.Unlock()

	if _, ok := env.byID[agent.ID()]; ok {
		return
	}
	env.byID[agent.ID()] = agent
	env.agents = append(env.agents, agent)
}

// Deliver sends an event to one registered agent.
//
// Returns the appended memory record, or core.ErrNotFound for an
// unregistered recipient.
func (env *Environment) Deliver(ctx context.Context, to string, event core.Event) (*storage.Record, error) {
	env.mu.Lock()
	agent, ok := env.byID[to]
	tick := env.tick
	env.mu.Unlock()

	if !ok {
		return nil, core.NewEngineError("Deliver", core.ErrNotFound)
	}

	record, err := agent.Perceive(ctx, event)
	if err != nil {
		return nil, err
	}

	env.mu.Lock()
	env.appendHistory(Message{
		Tick:        tick,
		From:        event.Source,
		To:          to,
		Description: event.Description,
		At:          time.Now(),
	})
	env.mu.Unlock()

	return record, nil
}

// Broadcast delivers an event to every registered agent except the source,
// in registration order. The event's Source is overwritten with from.
//
// Delivery stops at the first error; agents earlier in the order keep
// their perceived copy.
func (env *Environment) Broadcast(ctx context.Context, from string, event core.Event) error {
	env.mu.Lock()
	recipients := make([]*core.Agent, 0, len(env.agents))
	for _, agent := range env.agents {
		if agent.ID() != from {
			recipients = append(recipients, agent)
		}
	}
	env.mu.Unlock()

	event.Source = from
	for _, agent := range recipients {
		if _, err := env.Deliver(ctx, agent.ID(), event); err != nil {
			return err
		}
	}

	env.logger.Debug("event broadcast",
		zap.String("from", from),
		zap.Int("recipients", len(recipients)),
	)
	return nil
}

// Tick advances the simulation clock: every registered agent's emotions
// decay toward baseline, and the tick counter increments. Returns the new
// tick count.
func (env *Environment) Tick(ctx context.Context) int {
	env.mu.Lock()
	agents := make([]*core.Agent, len(env.agents))
	copy(agents, env.agents)
	env.mu.Unlock()

	for _, agent := range agents {
		if ctx.Err() != nil {
			break
		}
		agent.Decay()
	}

	env.mu.Lock()
	defer env.mu.Unlock()
	env.tick++
	return env.tick
}

// TickCount returns the current tick counter.
func (env *Environment) TickCount() int {
	env.mu.Lock()
	defer env.mu.Unlock()
	return env.tick
}

// History returns a copy of the retained message history, oldest first.
func (env *Environment) History() []Message {
	env.mu.Lock()
	defer env.mu.Unlock()

	history := make([]Message, len(env.history))
	copy(history, env.history)
	return history
}

// appendHistory records a message, dropping the oldest entry once the
// ring is full. Caller holds env.mu.
func (env *Environment) appendHistory(msg Message) {
	if len(env.history) >= historySize {
		env.history = env.history[1:]
	}
	env.history = append(env.history, msg)
}
