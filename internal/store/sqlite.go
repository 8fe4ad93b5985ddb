// Package store provides storage backends for ProfileFlow.
//
// This file implements an SQLite-backed store for sessions and submissions.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "embed"

	"github.com/OpenHaul/ProfileFlow/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultDirPermissions defines the default permissions for database directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

// SQLiteStore persists sessions and submissions in an SQLite database file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running SQLite migrations")
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("SQLite migrations applied successfully")

	return &SQLiteStore{db: db}, nil
}

// GetSession retrieves the session owned by userID, or nil when absent.
func (s *SQLiteStore) GetSession(userID string) (*models.Session, error) {
	row := s.db.QueryRow(`SELECT user_id, id, status, current_field_id, answers, pending_selection, created_at, updated_at, completed_at
		FROM sessions WHERE user_id = ?`, userID)
	session, err := scanSession(row)
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore GetSession not found", "userID", userID)
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetSession failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to load session for %s: %w", userID, err)
	}
	slog.Debug("SQLiteStore GetSession found", "userID", userID, "status", session.Status)
	return session, nil
}

// SaveSession stores or replaces the session keyed by its user ID.
func (s *SQLiteStore) SaveSession(session models.Session) error {
	answersJSON, err := encodeJSON(session.Answers, false)
	if err != nil {
		slog.Error("SQLiteStore SaveSession answers marshal failed", "error", err, "userID", session.UserID)
		return err
	}
	pendingJSON, err := encodeJSON(session.PendingSelection, true)
	if err != nil {
		slog.Error("SQLiteStore SaveSession pending marshal failed", "error", err, "userID", session.UserID)
		return err
	}

	var completedAt any
	if session.CompletedAt != nil {
		completedAt = *session.CompletedAt
	}

	_, err = s.db.Exec(`
		INSERT OR REPLACE INTO sessions (user_id, id, status, current_field_id, answers, pending_selection, created_at, updated_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		session.UserID, session.ID, session.Status, session.CurrentFieldID,
		answersJSON, pendingJSON, session.CreatedAt, session.UpdatedAt, completedAt)
	if err != nil {
		slog.Error("SQLiteStore SaveSession failed", "error", err, "userID", session.UserID)
		return fmt.Errorf("failed to save session for %s: %w", session.UserID, err)
	}
	slog.Debug("SQLiteStore SaveSession succeeded", "userID", session.UserID, "status", session.Status)
	return nil
}

// DeleteSession removes the session owned by userID.
func (s *SQLiteStore) DeleteSession(userID string) error {
	_, err := s.db.Exec(`DELETE FROM sessions WHERE user_id = ?`, userID)
	if err != nil {
		slog.Error("SQLiteStore DeleteSession failed", "error", err, "userID", userID)
		return fmt.Errorf("failed to delete session for %s: %w", userID, err)
	}
	slog.Debug("SQLiteStore DeleteSession succeeded", "userID", userID)
	return nil
}

// SaveSubmission stores or replaces the finalized submission for its user.
func (s *SQLiteStore) SaveSubmission(record models.SubmissionRecord) error {
	fieldsJSON, err := encodeJSON(record.Fields, false)
	if err != nil {
		slog.Error("SQLiteStore SaveSubmission fields marshal failed", "error", err, "userID", record.UserID)
		return err
	}

	_, err = s.db.Exec(`
		INSERT OR REPLACE INTO submissions (user_id, id, created_at, fields)
		VALUES (?, ?, ?, ?)`,
		record.UserID, record.ID, record.CreatedAt, fieldsJSON)
	if err != nil {
		slog.Error("SQLiteStore SaveSubmission failed", "error", err, "userID", record.UserID)
		return fmt.Errorf("failed to save submission for %s: %w", record.UserID, err)
	}
	slog.Debug("SQLiteStore SaveSubmission succeeded", "userID", record.UserID, "submissionID", record.ID)
	return nil
}

// GetSubmission retrieves the submission for userID, or nil when absent.
func (s *SQLiteStore) GetSubmission(userID string) (*models.SubmissionRecord, error) {
	row := s.db.QueryRow(`SELECT user_id, id, created_at, fields FROM submissions WHERE user_id = ?`, userID)
	record, err := scanSubmission(row)
	if err == sql.ErrNoRows {
		slog.Debug("SQLiteStore GetSubmission not found", "userID", userID)
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetSubmission failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to load submission for %s: %w", userID, err)
	}
	return record, nil
}

// ListSubmissions returns all finalized submissions ordered by user ID.
func (s *SQLiteStore) ListSubmissions() ([]models.SubmissionRecord, error) {
	rows, err := s.db.Query(`SELECT user_id, id, created_at, fields FROM submissions ORDER BY user_id`)
	if err != nil {
		slog.Error("SQLiteStore ListSubmissions query failed", "error", err)
		return nil, fmt.Errorf("failed to query submissions: %w", err)
	}
	defer rows.Close()

	var records []models.SubmissionRecord
	for rows.Next() {
		record, err := scanSubmission(rows)
		if err != nil {
			slog.Error("SQLiteStore ListSubmissions scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan submission row: %w", err)
		}
		records = append(records, *record)
	}
	if err := rows.Err(); err != nil {
		slog.Error("SQLiteStore ListSubmissions rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate submission rows: %w", err)
	}
	slog.Debug("SQLiteStore ListSubmissions succeeded", "count", len(records))
	return records, nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close SQLite database", "error", err)
	}
	return err
}
