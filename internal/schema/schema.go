// Package schema loads and validates the declarative field schema that drives
// the conversational form.
//
// The schema is a YAML document listing every collectible field in declared
// order, with type-specific constraints and visibility conditions over earlier
// answers. It is loaded once at startup; a schema that violates the ordering
// rules refuses to load so the service never serves a broken flow.
package schema

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"regexp"

	"github.com/OpenHaul/ProfileFlow/internal/models"
	"gopkg.in/yaml.v3"
)

//go:embed driver_profile.yaml
var driverProfileYAML []byte

// document is the on-disk shape of a schema file.
type document struct {
	Fields []models.FieldSpec `yaml:"fields"`
}

// Schema is the immutable, ordered field list. Safe for concurrent reads.
type Schema struct {
	fields []models.FieldSpec
	byID   map[string]*models.FieldSpec
}

// Load parses and validates a schema from YAML bytes.
func Load(data []byte) (*Schema, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		slog.Error("Schema load: YAML parse failed", "error", err)
		return nil, fmt.Errorf("%w: %v", models.ErrConfiguration, err)
	}
	return New(doc.Fields)
}

// LoadFile parses and validates a schema from a YAML file on disk.
func LoadFile(path string) (*Schema, error) {
	slog.Debug("Schema loading from file", "path", path)
	data, err := os.ReadFile(path)
	if err != nil {
		slog.Error("Schema load: read failed", "error", err, "path", path)
		return nil, fmt.Errorf("failed to read schema file %s: %w", path, err)
	}
	return Load(data)
}

// Default returns the embedded driver-profile schema.
func Default() (*Schema, error) {
	return Load(driverProfileYAML)
}

// New builds a schema from an already-parsed field list, enforcing the
// structural invariants: unique IDs, valid per-type constraints, compilable
// patterns, and the ordering rule that a field's visibility condition may only
// reference a field declared strictly before it. Violations are configuration
// errors; the caller is expected to fail fast.
func New(fields []models.FieldSpec) (*Schema, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: schema declares no fields", models.ErrConfiguration)
	}

	s := &Schema{
		fields: fields,
		byID:   make(map[string]*models.FieldSpec, len(fields)),
	}

	position := make(map[string]int, len(fields))
	for i := range fields {
		f := &fields[i]
		if err := f.Validate(); err != nil {
			return nil, err
		}
		if _, dup := position[f.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate field id %q", models.ErrConfiguration, f.ID)
		}
		position[f.ID] = i
		s.byID[f.ID] = f

		if f.Text != nil && f.Text.Pattern != "" {
			if _, err := regexp.Compile(f.Text.Pattern); err != nil {
				return nil, fmt.Errorf("%w: field %s has invalid pattern: %v", models.ErrConfiguration, f.ID, err)
			}
		}
	}

	// Conditions may only look backwards. A forward or self reference would
	// allow cycles through the fixed total order, so it is rejected outright.
	for i := range fields {
		f := &fields[i]
		if !f.VisibleWhen.IsZero() {
			ref, ok := position[f.VisibleWhen.Field]
			if !ok {
				return nil, fmt.Errorf("%w: field %s condition references unknown field %q",
					models.ErrConfiguration, f.ID, f.VisibleWhen.Field)
			}
			if ref >= i {
				return nil, fmt.Errorf("%w: field %s condition references field %q declared at or after it",
					models.ErrConfiguration, f.ID, f.VisibleWhen.Field)
			}
		}
		for _, dep := range f.DependentFields {
			ref, ok := position[dep]
			if !ok {
				return nil, fmt.Errorf("%w: field %s declares unknown dependent field %q",
					models.ErrConfiguration, f.ID, dep)
			}
			if ref <= i {
				return nil, fmt.Errorf("%w: field %s declares dependent field %q not declared after it",
					models.ErrConfiguration, f.ID, dep)
			}
		}
	}

	slog.Debug("Schema loaded", "field_count", len(fields))
	return s, nil
}

// FieldsInDeclaredOrder returns the full ordered field list.
func (s *Schema) FieldsInDeclaredOrder() []models.FieldSpec {
	return s.fields
}

// Get returns the field spec for the given ID.
func (s *Schema) Get(fieldID string) (*models.FieldSpec, bool) {
	f, ok := s.byID[fieldID]
	return f, ok
}

// Len returns the number of declared fields.
func (s *Schema) Len() int {
	return len(s.fields)
}
