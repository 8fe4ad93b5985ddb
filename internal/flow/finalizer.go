package flow

import (
	"fmt"
	"log/slog"

	"github.com/OpenHaul/ProfileFlow/internal/models"
	"github.com/google/uuid"
)

// Finalize transforms a completed session into its canonical submission
// record. Calling it on a session that is not Completed is an invariant
// failure, never a user error.
//
// Finalize is idempotent: the record ID is derived from the user identity and
// the completion timestamp, and CreatedAt is the completion timestamp itself,
// so repeated calls on the same session produce identical records.
func Finalize(session *models.Session) (*models.SubmissionRecord, error) {
	if session.Status != models.SessionCompleted || session.CompletedAt == nil {
		slog.Error("Finalize called on non-completed session",
			"userID", session.UserID, "status", session.Status)
		return nil, fmt.Errorf("%w: finalize requires a completed session, got %s",
			models.ErrInvariantViolation, session.Status)
	}

	fields := make(map[string]models.FieldValue, len(session.Answers))
	for id, ans := range session.Answers {
		fields[id] = ans.Value
	}

	seed := "submission:" + session.UserID + ":" + session.CompletedAt.UTC().Format("2006-01-02T15:04:05.000000000Z")
	record := &models.SubmissionRecord{
		ID:        uuid.NewSHA1(sessionNamespace, []byte(seed)).String(),
		UserID:    session.UserID,
		CreatedAt: session.CompletedAt.UTC(),
		Fields:    fields,
	}

	slog.Debug("Finalize produced submission record",
		"userID", session.UserID, "submissionID", record.ID, "field_count", len(fields))
	return record, nil
}
