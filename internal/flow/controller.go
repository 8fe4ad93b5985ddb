package flow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/OpenHaul/ProfileFlow/internal/models"
	"github.com/OpenHaul/ProfileFlow/internal/schema"
	"github.com/OpenHaul/ProfileFlow/internal/store"
	"github.com/OpenHaul/ProfileFlow/internal/validate"
	"github.com/google/uuid"
)

// BackToken rewinds the session to the previously answered field.
const BackToken = "back"

// sessionNamespace is the UUID v5 namespace for deriving session and
// submission identifiers from user identity. Never change it: identifiers must
// stay stable across restarts.
var sessionNamespace = uuid.MustParse("6ba7b814-9dad-11d1-80b4-00c04fd430c8")

// Engine is the form controller: it owns the per-session state machine,
// serializes concurrent events for the same session, and drives the flow graph
// and validation engine on every inbound answer.
type Engine struct {
	schema *schema.Schema
	store  store.Store
	locks  keyedMutex
}

// NewEngine creates a form controller over the given schema and store.
func NewEngine(s *schema.Schema, st store.Store) *Engine {
	slog.Debug("Creating flow engine", "field_count", s.Len())
	return &Engine{schema: s, store: st}
}

// SessionID derives the deterministic session identifier for a user.
func SessionID(userID string) string {
	return uuid.NewSHA1(sessionNamespace, []byte("session:"+userID)).String()
}

// OnUserInput handles one inbound user event end to end: it loads or creates
// the session, applies the answer, persists the updated session and returns
// the instruction the transport should present next.
//
// Events for the same user are serialized; racing duplicate events cannot
// double-advance a session. Sessions of different users proceed in parallel.
func (e *Engine) OnUserInput(ctx context.Context, userID, rawInput string) (models.PromptInstruction, error) {
	unlock := e.locks.lock(userID)
	defer unlock()

	slog.Debug("Engine OnUserInput", "userID", userID, "input_length", len(rawInput))

	session, err := e.store.GetSession(userID)
	if err != nil {
		slog.Error("Engine OnUserInput session load failed", "error", err, "userID", userID)
		return models.PromptInstruction{}, fmt.Errorf("failed to load session for %s: %w", userID, err)
	}

	now := time.Now().UTC()

	if session == nil {
		session = e.newSession(userID, now)
		if err := e.store.SaveSession(*session); err != nil {
			slog.Error("Engine OnUserInput session create failed", "error", err, "userID", userID)
			return models.PromptInstruction{}, fmt.Errorf("failed to create session for %s: %w", userID, err)
		}
		slog.Info("Engine created new session", "userID", userID, "first_field", session.CurrentFieldID)
		return e.askCurrent(session, ""), nil
	}

	if session.Status != models.SessionInProgress {
		slog.Debug("Engine OnUserInput on terminated session", "userID", userID, "status", session.Status)
		return models.PromptInstruction{
			Kind:  models.PromptError,
			Error: models.ErrorKindSessionTerminated,
		}, nil
	}

	var instruction models.PromptInstruction
	if strings.EqualFold(strings.TrimSpace(rawInput), BackToken) {
		instruction, err = e.GoBack(session, now)
	} else {
		instruction, err = e.SubmitAnswer(session, rawInput, now)
	}
	if err != nil {
		return models.PromptInstruction{}, err
	}

	if err := e.store.SaveSession(*session); err != nil {
		slog.Error("Engine OnUserInput session save failed", "error", err, "userID", userID)
		return models.PromptInstruction{}, fmt.Errorf("failed to save session for %s: %w", userID, err)
	}

	if session.Status == models.SessionCompleted && instruction.Kind == models.PromptSubmissionComplete {
		if err := e.store.SaveSubmission(*instruction.Record); err != nil {
			slog.Error("Engine OnUserInput submission save failed", "error", err, "userID", userID)
			return instruction, fmt.Errorf("%w: %v", models.ErrPersistencePending, err)
		}
		slog.Info("Engine submission persisted", "userID", userID, "submissionID", instruction.Record.ID)
	}

	return instruction, nil
}

// SubmitAnswer validates one raw input against the session's current field and
// advances the state machine. On rejection the session is unchanged and the
// same field is re-asked; there is no retry limit. On the final answer the
// session transitions to Completed and the finalized record is attached to the
// returned instruction.
func (e *Engine) SubmitAnswer(session *models.Session, rawInput string, now time.Time) (models.PromptInstruction, error) {
	if session.Status != models.SessionInProgress {
		return models.PromptInstruction{}, fmt.Errorf("%w: session %s is %s", models.ErrSessionTerminated, session.ID, session.Status)
	}

	spec, ok := e.schema.Get(session.CurrentFieldID)
	if !ok {
		slog.Error("Engine SubmitAnswer current field missing from schema",
			"userID", session.UserID, "currentFieldID", session.CurrentFieldID)
		return models.PromptInstruction{}, fmt.Errorf("%w: current field %q not in schema",
			models.ErrInvariantViolation, session.CurrentFieldID)
	}

	var result validate.Result
	if spec.Type == models.ValueTypeEnumMulti {
		token := strings.TrimSpace(rawInput)
		if !strings.EqualFold(token, validate.DoneToken) {
			return e.toggleOption(session, spec, token, now), nil
		}
		result = validate.ValidateSelection(spec, session.PendingSelection)
	} else {
		result = validate.Validate(spec, rawInput)
	}

	if !result.OK() {
		slog.Debug("Engine SubmitAnswer rejected", "userID", session.UserID,
			"fieldID", spec.ID, "reason", result.Rejection)
		return e.askCurrent(session, result.Rejection), nil
	}

	session.Answers[spec.ID] = models.Answer{FieldID: spec.ID, Value: result.Value, CollectedAt: now}
	session.PendingSelection = nil
	session.UpdatedAt = now
	slog.Debug("Engine answer recorded", "userID", session.UserID, "fieldID", spec.ID)

	next := NextField(e.schema, session.AnswerValues())
	if next != nil {
		session.CurrentFieldID = next.ID
		slog.Debug("Engine advancing", "userID", session.UserID, "nextFieldID", next.ID)
		return e.askCurrent(session, ""), nil
	}

	session.Status = models.SessionCompleted
	session.CurrentFieldID = ""
	completedAt := now
	session.CompletedAt = &completedAt

	record, err := Finalize(session)
	if err != nil {
		return models.PromptInstruction{}, err
	}
	slog.Info("Engine session completed", "userID", session.UserID, "answer_count", len(session.Answers))
	return models.PromptInstruction{Kind: models.PromptSubmissionComplete, Record: record}, nil
}

// GoBack removes the most recently collected answer and recomputes the current
// field. Answers of dependent fields whose visibility condition no longer
// holds are pruned in cascade: a re-entered decision must not leave stale
// dependent data behind.
func (e *Engine) GoBack(session *models.Session, now time.Time) (models.PromptInstruction, error) {
	if session.Status != models.SessionInProgress {
		return models.PromptInstruction{}, fmt.Errorf("%w: session %s is %s", models.ErrSessionTerminated, session.ID, session.Status)
	}

	latest := session.LatestAnswer()
	if latest == "" {
		slog.Debug("Engine GoBack with no answers, re-asking current field", "userID", session.UserID)
		return e.askCurrent(session, ""), nil
	}

	delete(session.Answers, latest)
	pruned := pruneInvisible(e.schema, session)
	session.PendingSelection = nil
	session.UpdatedAt = now

	next := NextField(e.schema, session.AnswerValues())
	if next == nil {
		// Removing an answer always re-exposes at least that field.
		return models.PromptInstruction{}, fmt.Errorf("%w: no field to ask after removing %q",
			models.ErrInvariantViolation, latest)
	}
	session.CurrentFieldID = next.ID

	slog.Info("Engine went back", "userID", session.UserID, "removed", latest,
		"pruned_count", len(pruned), "currentFieldID", next.ID)
	return e.askCurrent(session, ""), nil
}

// Abandon transitions an in-progress session to Abandoned. It exists for the
// external timeout policy; abandoning a completed or missing session fails.
func (e *Engine) Abandon(ctx context.Context, userID string) error {
	unlock := e.locks.lock(userID)
	defer unlock()

	session, err := e.store.GetSession(userID)
	if err != nil {
		return fmt.Errorf("failed to load session for %s: %w", userID, err)
	}
	if session == nil {
		return fmt.Errorf("%w: user %s", models.ErrSessionNotFound, userID)
	}
	if session.Status != models.SessionInProgress {
		return fmt.Errorf("%w: session %s is %s", models.ErrSessionTerminated, session.ID, session.Status)
	}

	session.Status = models.SessionAbandoned
	session.CurrentFieldID = ""
	session.PendingSelection = nil
	session.UpdatedAt = time.Now().UTC()

	if err := e.store.SaveSession(*session); err != nil {
		return fmt.Errorf("failed to save abandoned session for %s: %w", userID, err)
	}
	slog.Info("Engine session abandoned", "userID", userID)
	return nil
}

// newSession creates a fresh in-progress session positioned at the first field.
func (e *Engine) newSession(userID string, now time.Time) *models.Session {
	first := NextField(e.schema, nil)
	return &models.Session{
		ID:             SessionID(userID),
		UserID:         userID,
		Status:         models.SessionInProgress,
		CurrentFieldID: first.ID,
		Answers:        make(map[string]models.Answer),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// toggleOption flips one option of the current multi-select field and re-asks
// it with the updated selection. Unknown options come back as rejections.
func (e *Engine) toggleOption(session *models.Session, spec *models.FieldSpec, option string, now time.Time) models.PromptInstruction {
	next, ok := validate.Toggle(spec.Enum, session.PendingSelection, option)
	if !ok {
		slog.Debug("Engine toggle of unknown option", "userID", session.UserID,
			"fieldID", spec.ID, "option", option)
		return e.askCurrent(session, models.RejectionUnknownOption)
	}
	session.PendingSelection = next
	session.UpdatedAt = now
	return e.askCurrent(session, "")
}

// askCurrent builds the re-prompt instruction for the session's current field.
func (e *Engine) askCurrent(session *models.Session, rejection models.RejectionReason) models.PromptInstruction {
	spec, _ := e.schema.Get(session.CurrentFieldID)
	return models.PromptInstruction{
		Kind:      models.PromptAskField,
		Field:     spec,
		Rejection: rejection,
		Selected:  session.PendingSelection,
	}
}
