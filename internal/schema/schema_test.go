package schema

import (
	"errors"
	"testing"

	"github.com/OpenHaul/ProfileFlow/internal/models"
)

func TestDefaultSchemaLoads(t *testing.T) {
	s, err := Default()
	if err != nil {
		t.Fatalf("Default() failed: %v", err)
	}
	if s.Len() == 0 {
		t.Fatal("default schema has no fields")
	}

	first := s.FieldsInDeclaredOrder()[0]
	if first.ID != "full_name" {
		t.Errorf("first field = %s, want full_name", first.ID)
	}

	semi, ok := s.Get("semi_trailer_types")
	if !ok {
		t.Fatal("semi_trailer_types missing from default schema")
	}
	if semi.VisibleWhen.Field != "driving_categories" {
		t.Errorf("semi_trailer_types condition field = %s, want driving_categories", semi.VisibleWhen.Field)
	}

	docs, ok := s.Get("driving_documents")
	if !ok {
		t.Fatal("driving_documents missing from default schema")
	}
	if !docs.Enum.IsExclusive("none") {
		t.Error("driving_documents 'none' option is not exclusive")
	}
}

func TestNewRejectsEmptySchema(t *testing.T) {
	if _, err := New(nil); !errors.Is(err, models.ErrConfiguration) {
		t.Errorf("New(nil) error = %v, want ErrConfiguration", err)
	}
}

func TestNewRejectsDuplicateIDs(t *testing.T) {
	fields := []models.FieldSpec{
		{ID: "age", Type: models.ValueTypeInteger, Integer: &models.IntegerConstraints{Min: 0, Max: 10}},
		{ID: "age", Type: models.ValueTypeInteger, Integer: &models.IntegerConstraints{Min: 0, Max: 10}},
	}
	if _, err := New(fields); !errors.Is(err, models.ErrConfiguration) {
		t.Errorf("duplicate IDs error = %v, want ErrConfiguration", err)
	}
}

func TestNewRejectsForwardCondition(t *testing.T) {
	fields := []models.FieldSpec{
		{
			ID: "first", Type: models.ValueTypeEnumSingle,
			Enum:        &models.EnumConstraints{Options: []string{"a", "b"}},
			VisibleWhen: &models.Condition{Field: "second", Equals: "a"},
		},
		{
			ID: "second", Type: models.ValueTypeEnumSingle,
			Enum: &models.EnumConstraints{Options: []string{"a", "b"}},
		},
	}
	if _, err := New(fields); !errors.Is(err, models.ErrConfiguration) {
		t.Errorf("forward condition error = %v, want ErrConfiguration", err)
	}
}

func TestNewRejectsSelfCondition(t *testing.T) {
	fields := []models.FieldSpec{
		{
			ID: "only", Type: models.ValueTypeEnumSingle,
			Enum:        &models.EnumConstraints{Options: []string{"a"}},
			VisibleWhen: &models.Condition{Field: "only", Equals: "a"},
		},
	}
	if _, err := New(fields); !errors.Is(err, models.ErrConfiguration) {
		t.Errorf("self condition error = %v, want ErrConfiguration", err)
	}
}

func TestNewRejectsUnknownConditionField(t *testing.T) {
	fields := []models.FieldSpec{
		{
			ID: "only", Type: models.ValueTypeEnumSingle,
			Enum:        &models.EnumConstraints{Options: []string{"a"}},
			VisibleWhen: &models.Condition{Field: "ghost", Equals: "a"},
		},
	}
	if _, err := New(fields); !errors.Is(err, models.ErrConfiguration) {
		t.Errorf("unknown condition field error = %v, want ErrConfiguration", err)
	}
}

func TestNewRejectsInvalidPattern(t *testing.T) {
	fields := []models.FieldSpec{
		{
			ID: "name", Type: models.ValueTypeText,
			Text: &models.TextConstraints{MinLen: 1, MaxLen: 10, Pattern: "["},
		},
	}
	if _, err := New(fields); !errors.Is(err, models.ErrConfiguration) {
		t.Errorf("invalid pattern error = %v, want ErrConfiguration", err)
	}
}

func TestNewRejectsBackwardDependentField(t *testing.T) {
	fields := []models.FieldSpec{
		{ID: "first", Type: models.ValueTypeBoolean},
		{ID: "second", Type: models.ValueTypeBoolean, DependentFields: []string{"first"}},
	}
	if _, err := New(fields); !errors.Is(err, models.ErrConfiguration) {
		t.Errorf("backward dependent field error = %v, want ErrConfiguration", err)
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	if _, err := Load([]byte("fields: [")); !errors.Is(err, models.ErrConfiguration) {
		t.Errorf("malformed YAML error = %v, want ErrConfiguration", err)
	}
}
