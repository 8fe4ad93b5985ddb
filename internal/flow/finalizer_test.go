package flow

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/OpenHaul/ProfileFlow/internal/models"
)

func completedSession(t *testing.T) *models.Session {
	t.Helper()
	completedAt := time.Date(2026, 3, 14, 9, 26, 53, 589793238, time.UTC)
	return &models.Session{
		ID:     SessionID("380671234567"),
		UserID: "380671234567",
		Status: models.SessionCompleted,
		Answers: map[string]models.Answer{
			"age": {FieldID: "age", CollectedAt: completedAt,
				Value: models.FieldValue{Type: models.ValueTypeInteger, Int: 35}},
			"driving_categories": {FieldID: "driving_categories", CollectedAt: completedAt,
				Value: models.FieldValue{Type: models.ValueTypeEnumMulti, Options: []string{"B", "CE"}}},
		},
		CreatedAt:   completedAt.Add(-10 * time.Minute),
		UpdatedAt:   completedAt,
		CompletedAt: &completedAt,
	}
}

func TestFinalizeIsIdempotent(t *testing.T) {
	session := completedSession(t)

	first, err := Finalize(session)
	if err != nil {
		t.Fatalf("first Finalize failed: %v", err)
	}
	second, err := Finalize(session)
	if err != nil {
		t.Fatalf("second Finalize failed: %v", err)
	}

	firstJSON, err := json.Marshal(first)
	if err != nil {
		t.Fatal(err)
	}
	secondJSON, err := json.Marshal(second)
	if err != nil {
		t.Fatal(err)
	}
	if string(firstJSON) != string(secondJSON) {
		t.Errorf("repeated finalization produced different records:\n%s\n%s", firstJSON, secondJSON)
	}
}

func TestFinalizeDerivesStableID(t *testing.T) {
	record, err := Finalize(completedSession(t))
	if err != nil {
		t.Fatal(err)
	}
	again, err := Finalize(completedSession(t))
	if err != nil {
		t.Fatal(err)
	}
	if record.ID != again.ID {
		t.Errorf("record ID not stable: %s vs %s", record.ID, again.ID)
	}
	if record.CreatedAt != completedSession(t).CompletedAt.UTC() {
		t.Errorf("CreatedAt = %v, want the completion timestamp", record.CreatedAt)
	}
}

func TestFinalizeRequiresCompletedSession(t *testing.T) {
	session := completedSession(t)
	session.Status = models.SessionInProgress

	if _, err := Finalize(session); !errors.Is(err, models.ErrInvariantViolation) {
		t.Errorf("in-progress finalize error = %v, want ErrInvariantViolation", err)
	}

	session = completedSession(t)
	session.CompletedAt = nil
	if _, err := Finalize(session); !errors.Is(err, models.ErrInvariantViolation) {
		t.Errorf("missing CompletedAt finalize error = %v, want ErrInvariantViolation", err)
	}
}

func TestFinalizeCopiesAnswerValues(t *testing.T) {
	session := completedSession(t)
	record, err := Finalize(session)
	if err != nil {
		t.Fatal(err)
	}
	if record.Fields["age"].Int != 35 {
		t.Errorf("age = %v, want 35", record.Fields["age"])
	}
	got := record.Fields["driving_categories"].Options
	if len(got) != 2 || got[0] != "B" || got[1] != "CE" {
		t.Errorf("driving_categories = %v, want [B CE]", got)
	}
}
