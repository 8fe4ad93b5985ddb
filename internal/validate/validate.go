// Package validate implements the pure validation engine for form fields.
//
// Validation is a pure function of (field spec, raw input): it never touches
// session state or storage, which keeps every rule exhaustively unit testable.
package validate

import (
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/OpenHaul/ProfileFlow/internal/models"
)

// Input tokens with fixed meaning across transports.
const (
	// SkipToken skips an optional text field.
	SkipToken = "skip"
	// DoneToken submits the pending selection of a multi-select field.
	DoneToken = "done"
	// TrueToken and FalseToken are the canonical boolean option identifiers.
	TrueToken  = "yes"
	FalseToken = "no"
)

// Result is the outcome of validating one raw input: either a typed value or
// a rejection reason.
type Result struct {
	Value     models.FieldValue
	Rejection models.RejectionReason
}

// OK reports whether the input was accepted.
func (r Result) OK() bool {
	return r.Rejection == ""
}

func rejected(reason models.RejectionReason) Result {
	return Result{Rejection: reason}
}

// patternCache holds compiled patterns. Schema load already guarantees they
// compile, so lookups here cannot fail.
var patternCache sync.Map

func compiledPattern(pattern string) *regexp.Regexp {
	if cached, ok := patternCache.Load(pattern); ok {
		return cached.(*regexp.Regexp)
	}
	re := regexp.MustCompile(pattern)
	patternCache.Store(pattern, re)
	return re
}

// Validate maps a raw input to a typed value for scalar field types. Multi
// select fields are validated as a set via ValidateSelection; passing one here
// rejects with an unknown option, since a single token is never a full answer.
func Validate(spec *models.FieldSpec, raw string) Result {
	switch spec.Type {
	case models.ValueTypeInteger:
		return validateInteger(spec, raw)
	case models.ValueTypeEnumSingle:
		return validateEnumSingle(spec, raw)
	case models.ValueTypeBoolean:
		return validateBoolean(raw)
	case models.ValueTypeText, models.ValueTypeOptionalText:
		return validateText(spec, raw)
	default:
		return rejected(models.RejectionUnknownOption)
	}
}

func validateInteger(spec *models.FieldSpec, raw string) Result {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return rejected(models.RejectionEmptyInput)
	}
	if strings.ContainsAny(trimmed, " \t") {
		return rejected(models.RejectionNotANumber)
	}
	n, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil {
		return rejected(models.RejectionNotANumber)
	}
	if n < spec.Integer.Min || n > spec.Integer.Max {
		return rejected(models.RejectionOutOfRange)
	}
	return Result{Value: models.FieldValue{Type: models.ValueTypeInteger, Int: n}}
}

func validateEnumSingle(spec *models.FieldSpec, raw string) Result {
	option := strings.TrimSpace(raw)
	if !spec.Enum.HasOption(option) {
		return rejected(models.RejectionUnknownOption)
	}
	return Result{Value: models.FieldValue{Type: models.ValueTypeEnumSingle, Text: option}}
}

func validateBoolean(raw string) Result {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case TrueToken:
		return Result{Value: models.FieldValue{Type: models.ValueTypeBoolean, Bool: true}}
	case FalseToken:
		return Result{Value: models.FieldValue{Type: models.ValueTypeBoolean, Bool: false}}
	default:
		return rejected(models.RejectionUnknownOption)
	}
}

func validateText(spec *models.FieldSpec, raw string) Result {
	text := strings.TrimSpace(raw)
	optional := spec.Type == models.ValueTypeOptionalText

	if optional && (text == "" || strings.EqualFold(text, SkipToken)) {
		return Result{Value: models.FieldValue{Type: spec.Type}}
	}
	if text == "" {
		return rejected(models.RejectionEmptyInput)
	}

	length := len([]rune(text))
	if length < spec.Text.MinLen {
		return rejected(models.RejectionTooShort)
	}
	if length > spec.Text.MaxLen {
		return rejected(models.RejectionTooLong)
	}
	if spec.Text.MinWords > 0 && len(strings.Fields(text)) < spec.Text.MinWords {
		return rejected(models.RejectionInvalidFormat)
	}
	if spec.Text.Pattern != "" && !compiledPattern(spec.Text.Pattern).MatchString(text) {
		return rejected(models.RejectionInvalidFormat)
	}
	return Result{Value: models.FieldValue{Type: spec.Type, Text: text}}
}

// ValidateSelection validates a multi-select set. Each option is checked
// individually; an empty set is rejected. The accepted value carries options
// in schema-declared order so equal sets always produce identical values.
func ValidateSelection(spec *models.FieldSpec, selected []string) Result {
	if spec.Type != models.ValueTypeEnumMulti {
		return rejected(models.RejectionUnknownOption)
	}
	if len(selected) == 0 {
		return rejected(models.RejectionEmptySelection)
	}
	chosen := make(map[string]bool, len(selected))
	for _, opt := range selected {
		if !spec.Enum.HasOption(opt) {
			return rejected(models.RejectionUnknownOption)
		}
		chosen[opt] = true
	}
	canonical := make([]string, 0, len(chosen))
	for _, opt := range spec.Enum.Options {
		if chosen[opt] {
			canonical = append(canonical, opt)
		}
	}
	return Result{Value: models.FieldValue{Type: models.ValueTypeEnumMulti, Options: canonical}}
}

// Toggle flips one option in a multi-select set and returns the new set in
// schema-declared order. Toggling an already-selected option removes it, so
// for regular options Toggle is its own inverse. Toggling an exclusive option
// on replaces the whole selection with just that option, and selecting any
// regular option drops every exclusive one.
//
// The second return value is false when the option is not declared.
func Toggle(enum *models.EnumConstraints, current []string, option string) ([]string, bool) {
	if !enum.HasOption(option) {
		return current, false
	}

	selected := make(map[string]bool, len(current)+1)
	for _, opt := range current {
		selected[opt] = true
	}

	switch {
	case selected[option]:
		delete(selected, option)
	case enum.IsExclusive(option):
		selected = map[string]bool{option: true}
	default:
		for _, opt := range enum.Exclusive {
			delete(selected, opt)
		}
		selected[option] = true
	}

	next := make([]string, 0, len(selected))
	for _, opt := range enum.Options {
		if selected[opt] {
			next = append(next, opt)
		}
	}
	return next, true
}
