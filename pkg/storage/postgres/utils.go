package postgres

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/psychesim/psychemem-go/pkg/storage"
)

// buildMemoryWhere builds the WHERE clause for memory queries using
// numbered placeholders starting from $1.
func buildMemoryWhere(agentID string, filter *storage.Filter) (string, []interface{}) {
	conditions := []string{}
	args := []interface{}{}
	argIndex := 1

	addCondition := func(expr string, value interface{}) {
		conditions = append(conditions, fmt.Sprintf(expr, argIndex))
		args = append(args, value)
		argIndex++
	}

	addCondition("agent_id = $%d", agentID)

	if !filter.Since.IsZero() {
		addCondition("created_at >= $%d", filter.Since)
	}
	if !filter.Until.IsZero() {
		addCondition("created_at < $%d", filter.Until)
	}
	if filter.MinImportance > 0 {
		addCondition("importance >= $%d", filter.MinImportance)
	}
	if filter.Contains != "" {
		addCondition("content LIKE $%d", "%"+filter.Contains+"%")
	}

	return "WHERE " + strings.Join(conditions, " AND "), args
}

// orderClause maps a sort key to its ORDER BY clause.
func orderClause(order storage.Order) string {
	switch order {
	case storage.OrderRecencyAsc:
		return "ORDER BY created_at ASC, id ASC"
	case storage.OrderImportanceDesc:
		return "ORDER BY importance DESC, created_at DESC, id ASC"
	default:
		return "ORDER BY created_at DESC, id DESC"
	}
}

// scanner abstracts sql.Row and sql.Rows for the scan helpers.
type scanner interface {
	Scan(dest ...interface{}) error
}

// scanRecord scans a memory record from a database row or rows.
func scanRecord(s scanner) (*storage.Record, error) {
	var record storage.Record
	var emotionStr sql.NullString

	err := s.Scan(
		&record.ID,
		&record.AgentID,
		&record.Content,
		&record.Importance,
		&record.Sentiment,
		&emotionStr,
		&record.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if emotionStr.Valid && emotionStr.String != "" && emotionStr.String != "null" {
		if err := json.Unmarshal([]byte(emotionStr.String), &record.Emotion); err != nil {
			return nil, err
		}
	}

	return &record, nil
}

// scanProfile scans a profile from a database row.
func scanProfile(s scanner) (*storage.Profile, error) {
	var profile storage.Profile
	var traitsStr, beliefsStr, demographicsStr sql.NullString

	err := s.Scan(
		&profile.AgentID,
		&profile.Name,
		&traitsStr,
		&beliefsStr,
		&demographicsStr,
		&profile.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := unmarshalMap(traitsStr, &profile.Traits); err != nil {
		return nil, err
	}
	if err := unmarshalMap(beliefsStr, &profile.Beliefs); err != nil {
		return nil, err
	}
	if demographicsStr.Valid && demographicsStr.String != "" && demographicsStr.String != "null" {
		if err := json.Unmarshal([]byte(demographicsStr.String), &profile.Demographics); err != nil {
			return nil, err
		}
	}

	return &profile, nil
}

// unmarshalMap decodes a nullable JSON column into a string-to-float map.
func unmarshalMap(col sql.NullString, dst *map[string]float64) error {
	if !col.Valid || col.String == "" || col.String == "null" {
		return nil
	}
	return json.Unmarshal([]byte(col.String), dst)
}
