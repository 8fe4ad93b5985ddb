// Package store provides storage backends for ProfileFlow sessions and
// finalized submissions.
//
// It includes an in-memory store for tests, an SQLite store for single-node
// deployments and a PostgreSQL store. All backends are safe for concurrent
// use; none of them retries on failure, per the persistence contract.
package store

import (
	"strings"

	"github.com/OpenHaul/ProfileFlow/internal/models"
)

// Store is the persistence collaborator of the form state machine. Lookups
// for missing records return (nil, nil); errors are transient I/O failures.
type Store interface {
	// GetSession retrieves the session owned by userID, or nil when absent.
	GetSession(userID string) (*models.Session, error)

	// SaveSession stores or replaces the session keyed by its user ID.
	SaveSession(session models.Session) error

	// DeleteSession removes the session owned by userID.
	DeleteSession(userID string) error

	// SaveSubmission stores or replaces the finalized submission for its user.
	SaveSubmission(record models.SubmissionRecord) error

	// GetSubmission retrieves the submission for userID, or nil when absent.
	GetSubmission(userID string) (*models.SubmissionRecord, error)

	// ListSubmissions returns all finalized submissions.
	ListSubmissions() ([]models.SubmissionRecord, error)

	// Close releases backend resources.
	Close() error
}

// Opts holds configuration options for store backends.
type Opts struct {
	DSN string
}

// Option defines a configuration option for store backends.
type Option func(*Opts)

// WithDSN sets the database connection string.
func WithDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// WithPostgresDSN sets a PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return WithDSN(dsn)
}

// WithSQLiteDSN sets an SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return WithDSN(dsn)
}

// DetectDSNType determines whether a DSN targets PostgreSQL or SQLite.
// Anything that is not recognizably PostgreSQL is treated as an SQLite path.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return "postgres"
	}
	if strings.Contains(dsn, "host=") || strings.Contains(dsn, "dbname=") {
		return "postgres"
	}
	return "sqlite"
}
