// Package store provides storage backends for ProfileFlow.
//
// This file implements a PostgreSQL-backed store for sessions and submissions.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/OpenHaul/ProfileFlow/internal/models"
	_ "github.com/lib/pq"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

// PostgresStore persists sessions and submissions in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewPostgresStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running Postgres migrations")
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")

	return &PostgresStore{db: db}, nil
}

// GetSession retrieves the session owned by userID, or nil when absent.
func (s *PostgresStore) GetSession(userID string) (*models.Session, error) {
	row := s.db.QueryRow(`SELECT user_id, id, status, current_field_id, answers, pending_selection, created_at, updated_at, completed_at
		FROM sessions WHERE user_id = $1`, userID)
	session, err := scanSession(row)
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore GetSession not found", "userID", userID)
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetSession failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to load session for %s: %w", userID, err)
	}
	slog.Debug("PostgresStore GetSession found", "userID", userID, "status", session.Status)
	return session, nil
}

// SaveSession stores or replaces the session keyed by its user ID.
func (s *PostgresStore) SaveSession(session models.Session) error {
	answersJSON, err := encodeJSON(session.Answers, false)
	if err != nil {
		slog.Error("PostgresStore SaveSession answers marshal failed", "error", err, "userID", session.UserID)
		return err
	}
	pendingJSON, err := encodeJSON(session.PendingSelection, true)
	if err != nil {
		slog.Error("PostgresStore SaveSession pending marshal failed", "error", err, "userID", session.UserID)
		return err
	}

	var completedAt any
	if session.CompletedAt != nil {
		completedAt = *session.CompletedAt
	}

	_, err = s.db.Exec(`
		INSERT INTO sessions (user_id, id, status, current_field_id, answers, pending_selection, created_at, updated_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id) DO UPDATE SET
			id = EXCLUDED.id,
			status = EXCLUDED.status,
			current_field_id = EXCLUDED.current_field_id,
			answers = EXCLUDED.answers,
			pending_selection = EXCLUDED.pending_selection,
			updated_at = EXCLUDED.updated_at,
			completed_at = EXCLUDED.completed_at`,
		session.UserID, session.ID, session.Status, session.CurrentFieldID,
		answersJSON, pendingJSON, session.CreatedAt, session.UpdatedAt, completedAt)
	if err != nil {
		slog.Error("PostgresStore SaveSession failed", "error", err, "userID", session.UserID)
		return fmt.Errorf("failed to save session for %s: %w", session.UserID, err)
	}
	slog.Debug("PostgresStore SaveSession succeeded", "userID", session.UserID, "status", session.Status)
	return nil
}

// DeleteSession removes the session owned by userID.
func (s *PostgresStore) DeleteSession(userID string) error {
	_, err := s.db.Exec(`DELETE FROM sessions WHERE user_id = $1`, userID)
	if err != nil {
		slog.Error("PostgresStore DeleteSession failed", "error", err, "userID", userID)
		return fmt.Errorf("failed to delete session for %s: %w", userID, err)
	}
	slog.Debug("PostgresStore DeleteSession succeeded", "userID", userID)
	return nil
}

// SaveSubmission stores or replaces the finalized submission for its user.
func (s *PostgresStore) SaveSubmission(record models.SubmissionRecord) error {
	fieldsJSON, err := encodeJSON(record.Fields, false)
	if err != nil {
		slog.Error("PostgresStore SaveSubmission fields marshal failed", "error", err, "userID", record.UserID)
		return err
	}

	_, err = s.db.Exec(`
		INSERT INTO submissions (user_id, id, created_at, fields)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE SET
			id = EXCLUDED.id,
			created_at = EXCLUDED.created_at,
			fields = EXCLUDED.fields`,
		record.UserID, record.ID, record.CreatedAt, fieldsJSON)
	if err != nil {
		slog.Error("PostgresStore SaveSubmission failed", "error", err, "userID", record.UserID)
		return fmt.Errorf("failed to save submission for %s: %w", record.UserID, err)
	}
	slog.Debug("PostgresStore SaveSubmission succeeded", "userID", record.UserID, "submissionID", record.ID)
	return nil
}

// GetSubmission retrieves the submission for userID, or nil when absent.
func (s *PostgresStore) GetSubmission(userID string) (*models.SubmissionRecord, error) {
	row := s.db.QueryRow(`SELECT user_id, id, created_at, fields FROM submissions WHERE user_id = $1`, userID)
	record, err := scanSubmission(row)
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore GetSubmission not found", "userID", userID)
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetSubmission failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to load submission for %s: %w", userID, err)
	}
	return record, nil
}

// ListSubmissions returns all finalized submissions ordered by user ID.
func (s *PostgresStore) ListSubmissions() ([]models.SubmissionRecord, error) {
	rows, err := s.db.Query(`SELECT user_id, id, created_at, fields FROM submissions ORDER BY user_id`)
	if err != nil {
		slog.Error("PostgresStore ListSubmissions query failed", "error", err)
		return nil, fmt.Errorf("failed to query submissions: %w", err)
	}
	defer rows.Close()

	var records []models.SubmissionRecord
	for rows.Next() {
		record, err := scanSubmission(rows)
		if err != nil {
			slog.Error("PostgresStore ListSubmissions scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan submission row: %w", err)
		}
		records = append(records, *record)
	}
	if err := rows.Err(); err != nil {
		slog.Error("PostgresStore ListSubmissions rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate submission rows: %w", err)
	}
	slog.Debug("PostgresStore ListSubmissions succeeded", "count", len(records))
	return records, nil
}

// Close closes the Postgres database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing Postgres database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close Postgres database", "error", err)
	}
	return err
}
