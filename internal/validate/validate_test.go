package validate

import (
	"reflect"
	"testing"

	"github.com/OpenHaul/ProfileFlow/internal/models"
)

func intSpec(min, max int64) *models.FieldSpec {
	return &models.FieldSpec{
		ID:      "age",
		Type:    models.ValueTypeInteger,
		Integer: &models.IntegerConstraints{Min: min, Max: max},
	}
}

func TestValidateInteger(t *testing.T) {
	spec := intSpec(18, 100)

	tests := []struct {
		name      string
		input     string
		wantInt   int64
		rejection models.RejectionReason
	}{
		{name: "accepts in range", input: "42", wantInt: 42},
		{name: "accepts lower bound", input: "18", wantInt: 18},
		{name: "accepts upper bound", input: "100", wantInt: 100},
		{name: "trims whitespace", input: "  42  ", wantInt: 42},
		{name: "rejects below range", input: "17", rejection: models.RejectionOutOfRange},
		{name: "rejects above range", input: "101", rejection: models.RejectionOutOfRange},
		{name: "rejects non-numeric", input: "abc", rejection: models.RejectionNotANumber},
		{name: "rejects float", input: "18.5", rejection: models.RejectionNotANumber},
		{name: "rejects inner whitespace", input: "1 8", rejection: models.RejectionNotANumber},
		{name: "rejects empty", input: "", rejection: models.RejectionEmptyInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Validate(spec, tt.input)
			if tt.rejection != "" {
				if result.OK() {
					t.Fatalf("Validate(%q) accepted, want rejection %s", tt.input, tt.rejection)
				}
				if result.Rejection != tt.rejection {
					t.Errorf("Validate(%q) rejection = %s, want %s", tt.input, result.Rejection, tt.rejection)
				}
				return
			}
			if !result.OK() {
				t.Fatalf("Validate(%q) rejected with %s, want accept", tt.input, result.Rejection)
			}
			if result.Value.Int != tt.wantInt {
				t.Errorf("Validate(%q) = %d, want %d", tt.input, result.Value.Int, tt.wantInt)
			}
		})
	}
}

func TestValidateRejectionDoesNotMutateInput(t *testing.T) {
	spec := intSpec(18, 100)
	first := Validate(spec, "17")
	second := Validate(spec, "17")
	if first.OK() || second.OK() {
		t.Fatal("out-of-range input was accepted")
	}
	if first.Rejection != second.Rejection {
		t.Errorf("repeated validation differs: %s vs %s", first.Rejection, second.Rejection)
	}
}

func TestValidateEnumSingle(t *testing.T) {
	spec := &models.FieldSpec{
		ID:   "region",
		Type: models.ValueTypeEnumSingle,
		Enum: &models.EnumConstraints{Options: []string{"kyiv", "lviv", "odesa"}},
	}

	result := Validate(spec, "lviv")
	if !result.OK() {
		t.Fatalf("valid option rejected with %s", result.Rejection)
	}
	if result.Value.Text != "lviv" {
		t.Errorf("value = %q, want %q", result.Value.Text, "lviv")
	}

	result = Validate(spec, "paris")
	if result.OK() {
		t.Fatal("unknown option accepted")
	}
	if result.Rejection != models.RejectionUnknownOption {
		t.Errorf("rejection = %s, want %s", result.Rejection, models.RejectionUnknownOption)
	}
}

func TestValidateBoolean(t *testing.T) {
	spec := &models.FieldSpec{ID: "adr_license", Type: models.ValueTypeBoolean}

	tests := []struct {
		input    string
		wantBool bool
		wantOK   bool
	}{
		{input: "yes", wantBool: true, wantOK: true},
		{input: "no", wantBool: false, wantOK: true},
		{input: "YES", wantBool: true, wantOK: true},
		{input: " no ", wantBool: false, wantOK: true},
		{input: "maybe", wantOK: false},
		{input: "", wantOK: false},
	}
	for _, tt := range tests {
		result := Validate(spec, tt.input)
		if result.OK() != tt.wantOK {
			t.Errorf("Validate(%q) ok = %v, want %v", tt.input, result.OK(), tt.wantOK)
			continue
		}
		if tt.wantOK && result.Value.Bool != tt.wantBool {
			t.Errorf("Validate(%q) = %v, want %v", tt.input, result.Value.Bool, tt.wantBool)
		}
	}
}

func TestValidateText(t *testing.T) {
	spec := &models.FieldSpec{
		ID:   "full_name",
		Type: models.ValueTypeText,
		Text: &models.TextConstraints{MinLen: 2, MaxLen: 10, MinWords: 2, Pattern: `^[\p{L}\s-]+$`},
	}

	tests := []struct {
		name      string
		input     string
		rejection models.RejectionReason
	}{
		{name: "accepts valid", input: "Іван Петро"},
		{name: "rejects single word", input: "Іван", rejection: models.RejectionInvalidFormat},
		{name: "rejects too long", input: "Іван Петро Михайлович", rejection: models.RejectionTooLong},
		{name: "rejects digits", input: "Іван 12345", rejection: models.RejectionInvalidFormat},
		{name: "rejects empty", input: "   ", rejection: models.RejectionEmptyInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Validate(spec, tt.input)
			if tt.rejection == "" && !result.OK() {
				t.Fatalf("Validate(%q) rejected with %s", tt.input, result.Rejection)
			}
			if tt.rejection != "" && result.Rejection != tt.rejection {
				t.Fatalf("Validate(%q) rejection = %s, want %s", tt.input, result.Rejection, tt.rejection)
			}
		})
	}
}

func TestValidateTextRuneLength(t *testing.T) {
	// Length limits count runes, not bytes. Cyrillic text is two bytes per
	// rune in UTF-8.
	spec := &models.FieldSpec{
		ID:   "city",
		Type: models.ValueTypeText,
		Text: &models.TextConstraints{MinLen: 2, MaxLen: 5},
	}
	result := Validate(spec, "Львів")
	if !result.OK() {
		t.Fatalf("five-rune city rejected with %s", result.Rejection)
	}
}

func TestValidateOptionalText(t *testing.T) {
	spec := &models.FieldSpec{
		ID:   "about",
		Type: models.ValueTypeOptionalText,
		Text: &models.TextConstraints{MinLen: 0, MaxLen: 20},
	}

	for _, input := range []string{"", "skip", "SKIP", "  skip  "} {
		result := Validate(spec, input)
		if !result.OK() {
			t.Errorf("Validate(%q) rejected with %s, want empty accept", input, result.Rejection)
		}
		if result.Value.Text != "" {
			t.Errorf("Validate(%q) text = %q, want empty", input, result.Value.Text)
		}
	}

	result := Validate(spec, "ready to relocate")
	if !result.OK() || result.Value.Text != "ready to relocate" {
		t.Errorf("optional text answer not recorded: %+v", result)
	}
}

func TestValidateSelection(t *testing.T) {
	spec := &models.FieldSpec{
		ID:   "driving_categories",
		Type: models.ValueTypeEnumMulti,
		Enum: &models.EnumConstraints{Options: []string{"B", "C", "C1E", "CE"}},
	}

	result := ValidateSelection(spec, []string{"CE", "B"})
	if !result.OK() {
		t.Fatalf("valid selection rejected with %s", result.Rejection)
	}
	// Equal sets canonicalize to declared order regardless of toggle order.
	want := []string{"B", "CE"}
	if !reflect.DeepEqual(result.Value.Options, want) {
		t.Errorf("options = %v, want %v", result.Value.Options, want)
	}

	result = ValidateSelection(spec, nil)
	if result.Rejection != models.RejectionEmptySelection {
		t.Errorf("empty selection rejection = %s, want %s", result.Rejection, models.RejectionEmptySelection)
	}

	result = ValidateSelection(spec, []string{"B", "D"})
	if result.Rejection != models.RejectionUnknownOption {
		t.Errorf("unknown option rejection = %s, want %s", result.Rejection, models.RejectionUnknownOption)
	}
}

func TestToggle(t *testing.T) {
	enum := &models.EnumConstraints{Options: []string{"B", "C", "C1E", "CE"}}

	next, ok := Toggle(enum, nil, "C")
	if !ok || !reflect.DeepEqual(next, []string{"C"}) {
		t.Fatalf("toggle on = %v, ok=%v", next, ok)
	}

	next, ok = Toggle(enum, next, "B")
	if !ok || !reflect.DeepEqual(next, []string{"B", "C"}) {
		t.Fatalf("second toggle = %v, want declared order [B C]", next)
	}

	// Toggling a selected option removes it again.
	next, ok = Toggle(enum, next, "B")
	if !ok || !reflect.DeepEqual(next, []string{"C"}) {
		t.Fatalf("toggle off = %v, want [C]", next)
	}

	if _, ok := Toggle(enum, next, "D"); ok {
		t.Error("toggle of undeclared option reported ok")
	}
}

func TestToggleIsItsOwnInverse(t *testing.T) {
	enum := &models.EnumConstraints{Options: []string{"B", "C", "C1E", "CE"}}
	current := []string{"B", "CE"}

	for _, option := range enum.Options {
		once, _ := Toggle(enum, current, option)
		twice, _ := Toggle(enum, once, option)
		if !reflect.DeepEqual(twice, current) {
			t.Errorf("double toggle of %s: %v, want %v", option, twice, current)
		}
	}
}

func TestToggleExclusiveOption(t *testing.T) {
	enum := &models.EnumConstraints{
		Options:   []string{"visa", "biometric_passport", "none"},
		Exclusive: []string{"none"},
	}

	// Selecting the exclusive option wipes everything else.
	next, _ := Toggle(enum, []string{"visa", "biometric_passport"}, "none")
	if !reflect.DeepEqual(next, []string{"none"}) {
		t.Errorf("exclusive toggle = %v, want [none]", next)
	}

	// Selecting a regular option drops the exclusive one.
	next, _ = Toggle(enum, next, "visa")
	if !reflect.DeepEqual(next, []string{"visa"}) {
		t.Errorf("regular after exclusive = %v, want [visa]", next)
	}

	// Toggling the exclusive option off leaves an empty set.
	next, _ = Toggle(enum, []string{"none"}, "none")
	if len(next) != 0 {
		t.Errorf("exclusive toggle off = %v, want empty", next)
	}
}
