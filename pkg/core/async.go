package core

import (
	"context"
	"sync"

	"github.com/psychesim/psychemem-go/pkg/storage"
)

// AsyncEngine provides asynchronous agent operations.
//
// It wraps the synchronous Engine and executes operations in separate
// goroutines, which suits simulations driving many agents concurrently.
// All async methods return channels that receive the result when the
// operation completes. Wait blocks until every in-flight operation has
// finished.
//
// Example:
//
//	asyncEngine, _ := core.NewAsyncEngine(config)
//	defer asyncEngine.Close()
//
//	resultChan := asyncEngine.PerceiveAsync(ctx, agentID, event)
//	result := <-resultChan
//	if result.Error != nil {
//	    log.Fatal(result.Error)
//	}
type AsyncEngine struct {
	*Engine
	wg sync.WaitGroup
}

// PerceiveResult carries the outcome of an asynchronous perception.
type PerceiveResult struct {
	Record *storage.Record
	Error  error
}

// ActionResult carries the outcome of an asynchronous decide-and-act.
type ActionResult struct {
	Action *Action
	Error  error
}

// NewAsyncEngine creates a new asynchronous engine.
//
// Parameters:
//   - cfg: Engine configuration
//   - opts: Optional engine overrides
//
// Returns:
//   - *AsyncEngine: The asynchronous engine instance
//   - error: Error if configuration is invalid or initialization fails
func NewAsyncEngine(cfg *Config, opts ...EngineOption) (*AsyncEngine, error) {
	engine, err := NewEngine(cfg, opts...)
	if err != nil {
		return nil, err
	}
	return &AsyncEngine{Engine: engine}, nil
}

// PerceiveAsync delivers an event to an agent asynchronously.
//
// The operation executes in a separate goroutine and returns its result
// via the returned channel, which is closed after one send.
func (ae *AsyncEngine) PerceiveAsync(ctx context.Context, agentID string, event Event) <-chan *PerceiveResult {
	resultChan := make(chan *PerceiveResult, 1)
	ae.wg.Add(1)

	go func() {
		defer ae.wg.Done()
		defer close(resultChan)

		agent, err := ae.Agent(agentID)
		if err != nil {
			resultChan <- &PerceiveResult{Error: err}
			return
		}
		record, err := agent.Perceive(ctx, event)
		resultChan <- &PerceiveResult{Record: record, Error: err}
	}()

	return resultChan
}

// DecideAndActAsync runs a behavior cycle for an agent asynchronously.
//
// The operation executes in a separate goroutine and returns its result
// via the returned channel, which is closed after one send.
func (ae *AsyncEngine) DecideAndActAsync(ctx context.Context, agentID string, stimulus string) <-chan *ActionResult {
	resultChan := make(chan *ActionResult, 1)
	ae.wg.Add(1)

	go func() {
		defer ae.wg.Done()
		defer close(resultChan)

		agent, err := ae.Agent(agentID)
		if err != nil {
			resultChan <- &ActionResult{Error: err}
			return
		}
		action, err := agent.DecideAndAct(ctx, stimulus)
		resultChan <- &ActionResult{Action: action, Error: err}
	}()

	return resultChan
}

// Wait blocks until all in-flight asynchronous operations complete.
func (ae *AsyncEngine) Wait() {
	ae.wg.Wait()
}

// Close waits for in-flight operations and then closes the engine.
func (ae *AsyncEngine) Close() error {
	ae.Wait()
	return ae.Engine.Close()
}
