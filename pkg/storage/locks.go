package storage

import "sync"

// AgentLocks serializes writers per agent identifier.
//
// Backends embed AgentLocks to guarantee that concurrent appends and batch
// operations for the same agent never interleave, while operations on
// different agents proceed in parallel. There is deliberately no global
// lock across agents.
type AgentLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Lock acquires the write lock for the given agent, creating it lazily.
// The returned function releases the lock.
func (a *AgentLocks) Lock(agentID string) func() {
	a.mu.Lock()
	if a.locks == nil {
		a.locks = make(map[string]*sync.Mutex)
	}
	l, ok := a.locks[agentID]
	if !ok {
		l = &sync.Mutex{}
		a.locks[agentID] = l
	}
	a.mu.Unlock()

	l.Lock()
	return l.Unlock
}
