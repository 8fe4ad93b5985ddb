package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/OpenHaul/ProfileFlow/internal/models"
)

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// encodeJSON marshals v for a JSON/JSONB column, mapping nil-able values to
// SQL NULL.
func encodeJSON(v any, allowNil bool) (any, error) {
	if allowNil {
		switch val := v.(type) {
		case []string:
			if val == nil {
				return nil, nil
			}
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// scanSession scans one session row in the canonical column order:
// user_id, id, status, current_field_id, answers, pending_selection,
// created_at, updated_at, completed_at.
func scanSession(row rowScanner) (*models.Session, error) {
	var s models.Session
	var status, answersJSON string
	var pendingJSON sql.NullString
	var completedAt sql.NullTime

	err := row.Scan(&s.UserID, &s.ID, &status, &s.CurrentFieldID,
		&answersJSON, &pendingJSON, &s.CreatedAt, &s.UpdatedAt, &completedAt)
	if err != nil {
		return nil, err
	}

	s.Status = models.SessionStatus(status)
	s.Answers = make(map[string]models.Answer)
	if answersJSON != "" {
		if err := json.Unmarshal([]byte(answersJSON), &s.Answers); err != nil {
			return nil, fmt.Errorf("failed to decode answers for %s: %w", s.UserID, err)
		}
	}
	if pendingJSON.Valid && pendingJSON.String != "" {
		if err := json.Unmarshal([]byte(pendingJSON.String), &s.PendingSelection); err != nil {
			return nil, fmt.Errorf("failed to decode pending selection for %s: %w", s.UserID, err)
		}
	}
	if completedAt.Valid {
		t := completedAt.Time
		s.CompletedAt = &t
	}
	return &s, nil
}

// scanSubmission scans one submission row in the canonical column order:
// user_id, id, created_at, fields.
func scanSubmission(row rowScanner) (*models.SubmissionRecord, error) {
	var r models.SubmissionRecord
	var fieldsJSON string

	if err := row.Scan(&r.UserID, &r.ID, &r.CreatedAt, &fieldsJSON); err != nil {
		return nil, err
	}

	r.Fields = make(map[string]models.FieldValue)
	if fieldsJSON != "" {
		if err := json.Unmarshal([]byte(fieldsJSON), &r.Fields); err != nil {
			return nil, fmt.Errorf("failed to decode fields for %s: %w", r.UserID, err)
		}
	}
	return &r, nil
}
