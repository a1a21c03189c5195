// Package storage provides interfaces and types for memory persistence backends.
//
// It defines the Store interface that all backends must satisfy, along with
// the record, profile and relationship types and query options.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Sentinel errors shared by all storage backends.
var (
	// ErrValidation indicates a mutator was called with invalid input.
	// The operation is rejected before any write happens.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound indicates that a requested record was not found.
	ErrNotFound = errors.New("record not found")

	// ErrStorage indicates a persistence-layer I/O failure.
	ErrStorage = errors.New("storage operation failed")
)

// Record represents a single memory persisted for an agent.
//
// Records are immutable once written, except for Importance, which may be
// recomputed in batch by Store.RecomputeImportance.
//
// This type is defined in the storage package to avoid circular dependencies
// with the core package.
type Record struct {
	// ID is the unique identifier of the record. IDs are assigned by the
	// caller from a snowflake node, so they increase monotonically per agent.
	ID int64

	// AgentID identifies the agent who owns this memory.
	AgentID string

	// Content is the text content of the memory. Never empty.
	Content string

	// Importance is the long-term relevance estimate in [0, 1],
	// independent of recency.
	Importance float64

	// Sentiment is the overall emotional valence in [-1, 1] at write time.
	Sentiment float64

	// Emotion is the emotional-context snapshot taken when the memory was
	// written: dimension name to intensity in [0, 1].
	Emotion map[string]float64

	// CreatedAt is when the memory was created.
	CreatedAt time.Time

	// Score is the ranking score from retrieval operations. Derived on
	// read, never persisted.
	Score float64
}

// Profile is the persisted form of an agent's psychological profile.
type Profile struct {
	// AgentID identifies the agent.
	AgentID string

	// Name is the agent's display name.
	Name string

	// Traits maps Big Five trait names to values in [0, 1].
	Traits map[string]float64

	// Beliefs maps belief names to strengths. Beliefs are an open set.
	Beliefs map[string]float64

	// Demographics holds descriptive attributes (age, occupation, ...).
	Demographics map[string]string

	// UpdatedAt is when the profile was last saved.
	UpdatedAt time.Time
}

// Relation is the persisted form of one directed relationship edge.
type Relation struct {
	// FromAgent is the agent holding the disposition.
	FromAgent string

	// ToAgent is the agent the disposition is toward.
	ToAgent string

	// Affinity is the directional disposition in [-1, 1].
	Affinity float64

	// Interactions is the number of recorded interactions on this edge.
	Interactions int

	// UpdatedAt is when the edge was last updated.
	UpdatedAt time.Time
}

// Order defines the sort key for Query results.
type Order string

const (
	// OrderRecencyDesc sorts newest first. This is the default.
	OrderRecencyDesc Order = "recency_desc"

	// OrderRecencyAsc sorts oldest first.
	OrderRecencyAsc Order = "recency_asc"

	// OrderImportanceDesc sorts by importance, highest first.
	OrderImportanceDesc Order = "importance_desc"
)

// Filter narrows the records returned by Query.
//
// Zero-valued fields are ignored, so an empty filter matches every record
// belonging to the agent.
type Filter struct {
	// Since restricts results to records created at or after this time.
	Since time.Time

	// Until restricts results to records created before this time.
	Until time.Time

	// MinImportance restricts results to records with at least this
	// importance.
	MinImportance float64

	// Contains restricts results to records whose content includes this
	// substring.
	Contains string

	// Limit caps the number of results. Zero means no limit.
	Limit int

	// Order selects the sort key. Empty means OrderRecencyDesc.
	Order Order
}

// ImportancePolicy recomputes the importance of a record. Results are
// clamped into [0, 1] by the store before being written.
type ImportancePolicy func(*Record) float64

// Store defines the interface for memory persistence backends.
//
// All backends (SQLite, PostgreSQL, MySQL) must implement this interface.
// Appends for the same agent are serialized so per-agent write ordering is
// never corrupted; reads may proceed concurrently with unrelated agents'
// writes. Batch operations lock only the affected agent's record set.
type Store interface {
	// Append durably persists a record. It fails with ErrValidation if the
	// record is invalid, before any write happens.
	Append(ctx context.Context, record *Record) error

	// Query returns the agent's records matching the filter, ordered by
	// the filter's sort key. It never mutates.
	Query(ctx context.Context, agentID string, filter *Filter) ([]*Record, error)

	// Get retrieves a record by ID. Returns ErrNotFound when absent.
	Get(ctx context.Context, id int64) (*Record, error)

	// RecomputeImportance batch-updates importance scores for an agent's
	// records using the supplied policy. Each record is updated atomically;
	// the batch as a whole may be interrupted and reissued. Returns the
	// number of records updated.
	RecomputeImportance(ctx context.Context, agentID string, policy ImportancePolicy) (int, error)

	// Purge deletes the agent's records created before olderThan whose
	// importance is below keepMinImportance. Irreversible and idempotent.
	// Returns the number of records deleted.
	Purge(ctx context.Context, agentID string, olderThan time.Time, keepMinImportance float64) (int, error)

	// SaveProfile inserts or replaces an agent's persisted profile.
	SaveProfile(ctx context.Context, profile *Profile) error

	// LoadProfile retrieves an agent's persisted profile.
	// Returns ErrNotFound when absent.
	LoadProfile(ctx context.Context, agentID string) (*Profile, error)

	// UpsertRelationship inserts or replaces one directed relationship edge.
	UpsertRelationship(ctx context.Context, relation *Relation) error

	// LoadRelationships retrieves all edges originating from the agent.
	LoadRelationships(ctx context.Context, agentID string) ([]*Relation, error)

	// Close closes the store and releases resources.
	Close() error
}

// ValidateRecord checks a record before it is written.
//
// A record is valid when its content is non-empty, its agent identifier is
// set, its importance is within [0, 1] and its sentiment within [-1, 1].
// Returns an error wrapping ErrValidation otherwise.
func ValidateRecord(record *Record) error {
	if record == nil {
		return fmt.Errorf("%w: record is nil", ErrValidation)
	}
	if record.AgentID == "" {
		return fmt.Errorf("%w: agent id is empty", ErrValidation)
	}
	if record.Content == "" {
		return fmt.Errorf("%w: content is empty", ErrValidation)
	}
	if record.Importance < 0 || record.Importance > 1 {
		return fmt.Errorf("%w: importance %v out of range [0,1]", ErrValidation, record.Importance)
	}
	if record.Sentiment < -1 || record.Sentiment > 1 {
		return fmt.Errorf("%w: sentiment %v out of range [-1,1]", ErrValidation, record.Sentiment)
	}
	return nil
}

// ClampImportance clamps an importance value into [0, 1]. Used by backends
// when applying recompute policies.
func ClampImportance(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
