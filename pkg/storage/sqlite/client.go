// Package sqlite provides the SQLite implementation of the memory store.
//
// SQLite is a lightweight, file-based database suitable for local development
// and single-machine simulations. Emotional-context snapshots and profile
// maps are stored as JSON strings in TEXT fields.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/psychesim/psychemem-go/pkg/storage"
)

// Client implements storage.Store using SQLite as the backend.
type Client struct {
	// db is the SQLite database connection.
	db *sql.DB

	// locks serializes writers per agent.
	locks storage.AgentLocks
}

// Config contains configuration for creating a SQLite store.
type Config struct {
	// DBPath is the path to the SQLite database file.
	DBPath string
}

// NewClient creates a new SQLite store client.
//
// Parameters:
//   - cfg: Configuration containing the database path
//
// Returns:
//   - *Client: The SQLite client instance
//   - error: Error if database connection or table creation fails
func NewClient(cfg *Config) (*Client, error) {
	// Create parent directory if it doesn't exist
	dbDir := filepath.Dir(cfg.DBPath)
	if dbDir != "" && dbDir != "." {
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			return nil, fmt.Errorf("NewSQLiteClient: failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", cfg.DBPath+"?_foreign_keys=1&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("NewSQLiteClient: %w", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("NewSQLiteClient: %w", err)
	}

	client := &Client{db: db}

	// Initialize table structure
	if err := client.initTables(context.Background()); err != nil {
		return nil, err
	}

	return client, nil
}

// initTables initializes the database table structure.
func (c *Client) initTables(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS memories (
			id INTEGER PRIMARY KEY,
			agent_id TEXT NOT NULL,
			content TEXT NOT NULL,
			importance REAL NOT NULL CHECK (importance >= 0 AND importance <= 1),
			sentiment REAL NOT NULL CHECK (sentiment >= -1 AND sentiment <= 1),
			emotion TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_memories_agent_time ON memories(agent_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_memories_agent_importance ON memories(agent_id, importance)`,
		`CREATE TABLE IF NOT EXISTS profiles (
			agent_id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			traits TEXT NOT NULL,
			beliefs TEXT,
			demographics TEXT,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS relationships (
			from_agent TEXT NOT NULL,
			to_agent TEXT NOT NULL,
			affinity REAL NOT NULL CHECK (affinity >= -1 AND affinity <= 1),
			interactions INTEGER NOT NULL DEFAULT 0,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (from_agent, to_agent)
		)`,
	}

	for _, stmt := range statements {
		if _, err := c.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("initTables: %w", err)
		}
	}

	return nil
}

// Append durably persists a memory record.
//
// Validation happens before the write; appends for the same agent are
// serialized by a per-agent lock so sequence ordering is preserved.
func (c *Client) Append(ctx context.Context, record *storage.Record) error {
	if err := storage.ValidateRecord(record); err != nil {
		return fmt.Errorf("Append: %w", err)
	}

	emotionJSON, err := json.Marshal(record.Emotion)
	if err != nil {
		return storageErr("Append", err)
	}

	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}

	unlock := c.locks.Lock(record.AgentID)
	defer unlock()

	query := `
		INSERT INTO memories (id, agent_id, content, importance, sentiment, emotion, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err = c.db.ExecContext(ctx, query,
		record.ID,
		record.AgentID,
		record.Content,
		record.Importance,
		record.Sentiment,
		string(emotionJSON),
		record.CreatedAt,
	)
	if err != nil {
		return storageErr("Append", err)
	}

	return nil
}

// Query returns the agent's records matching the filter.
func (c *Client) Query(ctx context.Context, agentID string, filter *storage.Filter) ([]*storage.Record, error) {
	if filter == nil {
		filter = &storage.Filter{}
	}

	whereClause, args := buildMemoryWhere(agentID, filter)

	query := fmt.Sprintf(`
		SELECT id, agent_id, content, importance, sentiment, emotion, created_at
		FROM memories
		%s
		%s
	`, whereClause, orderClause(filter.Order))

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storageErr("Query", err)
	}
	defer func() { _ = rows.Close() }()

	var records []*storage.Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, storageErr("Query", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("Query", err)
	}

	return records, nil
}

// Get retrieves a record by ID.
func (c *Client) Get(ctx context.Context, id int64) (*storage.Record, error) {
	query := `
		SELECT id, agent_id, content, importance, sentiment, emotion, created_at
		FROM memories
		WHERE id = ?
	`
	row := c.db.QueryRowContext(ctx, query, id)

	record, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("Get: %w", storage.ErrNotFound)
	}
	if err != nil {
		return nil, storageErr("Get", err)
	}

	return record, nil
}

// RecomputeImportance batch-updates importance scores for an agent's records.
//
// Each record is updated atomically. The batch honors context cancellation
// between records, so an interrupted batch can be reissued.
func (c *Client) RecomputeImportance(ctx context.Context, agentID string, policy storage.ImportancePolicy) (int, error) {
	unlock := c.locks.Lock(agentID)
	defer unlock()

	records, err := c.Query(ctx, agentID, &storage.Filter{Order: storage.OrderRecencyAsc})
	if err != nil {
		return 0, err
	}

	updated := 0
	for _, record := range records {
		select {
		case <-ctx.Done():
			return updated, ctx.Err()
		default:
		}

		newImportance := storage.ClampImportance(policy(record))
		if newImportance == record.Importance {
			continue
		}

		_, err := c.db.ExecContext(ctx,
			`UPDATE memories SET importance = ? WHERE id = ?`,
			newImportance, record.ID,
		)
		if err != nil {
			return updated, storageErr("RecomputeImportance", err)
		}
		updated++
	}

	return updated, nil
}

// Purge deletes the agent's records created before olderThan whose
// importance is below keepMinImportance.
func (c *Client) Purge(ctx context.Context, agentID string, olderThan time.Time, keepMinImportance float64) (int, error) {
	unlock := c.locks.Lock(agentID)
	defer unlock()

	result, err := c.db.ExecContext(ctx,
		`DELETE FROM memories WHERE agent_id = ? AND created_at < ? AND importance < ?`,
		agentID, olderThan, keepMinImportance,
	)
	if err != nil {
		return 0, storageErr("Purge", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, storageErr("Purge", err)
	}

	return int(deleted), nil
}

// SaveProfile inserts or replaces an agent's persisted profile.
func (c *Client) SaveProfile(ctx context.Context, profile *storage.Profile) error {
	if profile == nil || profile.AgentID == "" {
		return fmt.Errorf("SaveProfile: %w: agent id is empty", storage.ErrValidation)
	}

	traitsJSON, err := json.Marshal(profile.Traits)
	if err != nil {
		return storageErr("SaveProfile", err)
	}
	beliefsJSON, err := json.Marshal(profile.Beliefs)
	if err != nil {
		return storageErr("SaveProfile", err)
	}
	demographicsJSON, err := json.Marshal(profile.Demographics)
	if err != nil {
		return storageErr("SaveProfile", err)
	}

	_, err = c.db.ExecContext(ctx, `
		INSERT INTO profiles (agent_id, name, traits, beliefs, demographics, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(agent_id) DO UPDATE SET
			name = excluded.name,
			traits = excluded.traits,
			beliefs = excluded.beliefs,
			demographics = excluded.demographics,
			updated_at = excluded.updated_at
	`, profile.AgentID, profile.Name, string(traitsJSON), string(beliefsJSON),
		string(demographicsJSON), time.Now())
	if err != nil {
		return storageErr("SaveProfile", err)
	}

	return nil
}

// LoadProfile retrieves an agent's persisted profile.
func (c *Client) LoadProfile(ctx context.Context, agentID string) (*storage.Profile, error) {
	row := c.db.QueryRowContext(ctx, `
		SELECT agent_id, name, traits, beliefs, demographics, updated_at
		FROM profiles
		WHERE agent_id = ?
	`, agentID)

	profile, err := scanProfile(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("LoadProfile: %w", storage.ErrNotFound)
	}
	if err != nil {
		return nil, storageErr("LoadProfile", err)
	}

	return profile, nil
}

// UpsertRelationship inserts or replaces one directed relationship edge.
func (c *Client) UpsertRelationship(ctx context.Context, relation *storage.Relation) error {
	if relation == nil || relation.FromAgent == "" || relation.ToAgent == "" {
		return fmt.Errorf("UpsertRelationship: %w: agent ids are required", storage.ErrValidation)
	}

	_, err := c.db.ExecContext(ctx, `
		INSERT INTO relationships (from_agent, to_agent, affinity, interactions, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(from_agent, to_agent) DO UPDATE SET
			affinity = excluded.affinity,
			interactions = excluded.interactions,
			updated_at = excluded.updated_at
	`, relation.FromAgent, relation.ToAgent, relation.Affinity, relation.Interactions, time.Now())
	if err != nil {
		return storageErr("UpsertRelationship", err)
	}

	return nil
}

// LoadRelationships retrieves all edges originating from the agent.
func (c *Client) LoadRelationships(ctx context.Context, agentID string) ([]*storage.Relation, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT from_agent, to_agent, affinity, interactions, updated_at
		FROM relationships
		WHERE from_agent = ?
		ORDER BY to_agent
	`, agentID)
	if err != nil {
		return nil, storageErr("LoadRelationships", err)
	}
	defer func() { _ = rows.Close() }()

	var relations []*storage.Relation
	for rows.Next() {
		var relation storage.Relation
		if err := rows.Scan(
			&relation.FromAgent,
			&relation.ToAgent,
			&relation.Affinity,
			&relation.Interactions,
			&relation.UpdatedAt,
		); err != nil {
			return nil, storageErr("LoadRelationships", err)
		}
		relations = append(relations, &relation)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("LoadRelationships", err)
	}

	return relations, nil
}

// Close closes the database connection.
func (c *Client) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// storageErr wraps a driver error into the storage error taxonomy.
func storageErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, storage.ErrStorage, err)
}
