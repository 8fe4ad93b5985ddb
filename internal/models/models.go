// Package models defines the core data structures for ProfileFlow.
//
// It includes the field schema types, collected answers, session state and the
// finalized submission record, which are shared across modules.
package models

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

// ValueType defines how a field's raw input is interpreted and stored.
type ValueType string

const (
	// ValueTypeText stores a free-text answer with length bounds.
	ValueTypeText ValueType = "text"
	// ValueTypeInteger stores a whole number within a declared range.
	ValueTypeInteger ValueType = "integer"
	// ValueTypeEnumSingle stores exactly one of the declared options.
	ValueTypeEnumSingle ValueType = "enum_single"
	// ValueTypeEnumMulti stores a set of the declared options.
	ValueTypeEnumMulti ValueType = "enum_multi"
	// ValueTypeBoolean stores a yes/no answer.
	ValueTypeBoolean ValueType = "boolean"
	// ValueTypeOptionalText stores free text that may be skipped entirely.
	ValueTypeOptionalText ValueType = "optional_text"
)

// IsValidValueType checks if the given value type is supported.
func IsValidValueType(vt ValueType) bool {
	switch vt {
	case ValueTypeText, ValueTypeInteger, ValueTypeEnumSingle,
		ValueTypeEnumMulti, ValueTypeBoolean, ValueTypeOptionalText:
		return true
	default:
		return false
	}
}

// RejectionReason identifies why the validation engine refused a raw input.
type RejectionReason string

const (
	// RejectionNotANumber means the input did not parse as a whole number.
	RejectionNotANumber RejectionReason = "not_a_number"
	// RejectionOutOfRange means a number fell outside the declared min/max.
	RejectionOutOfRange RejectionReason = "out_of_range"
	// RejectionUnknownOption means the input is not a declared option.
	RejectionUnknownOption RejectionReason = "unknown_option"
	// RejectionEmptySelection means a required multi-select was submitted empty.
	RejectionEmptySelection RejectionReason = "empty_selection"
	// RejectionTooShort means the text was shorter than the declared minimum.
	RejectionTooShort RejectionReason = "too_short"
	// RejectionTooLong means the text exceeded the declared maximum.
	RejectionTooLong RejectionReason = "too_long"
	// RejectionInvalidFormat means the text failed the declared pattern.
	RejectionInvalidFormat RejectionReason = "invalid_format"
	// RejectionEmptyInput means a required answer was empty.
	RejectionEmptyInput RejectionReason = "empty_input"
)

// Error variables for better error handling and testability
var (
	// ErrSessionTerminated signals input for a Completed or Abandoned session.
	ErrSessionTerminated = errors.New("session is no longer in progress")
	// ErrInvariantViolation signals an internal consistency failure. Fatal for
	// the request; the session is left untouched for inspection.
	ErrInvariantViolation = errors.New("session invariant violation")
	// ErrPersistencePending signals that finalize succeeded in memory but the
	// durable save failed. The operation is safe to retry.
	ErrPersistencePending = errors.New("submission persistence pending")
	// ErrConfiguration signals an invalid field schema detected at load time.
	ErrConfiguration = errors.New("invalid field schema configuration")
	// ErrSessionNotFound signals a lookup for a session that does not exist.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSubmissionNotFound signals a lookup for a submission that does not exist.
	ErrSubmissionNotFound = errors.New("submission not found")
)

// IntegerConstraints bounds an integer field.
type IntegerConstraints struct {
	Min int64 `yaml:"min" json:"min"`
	Max int64 `yaml:"max" json:"max"`
}

// TextConstraints bounds a text or optional-text field.
type TextConstraints struct {
	MinLen   int    `yaml:"min_len" json:"min_len"`
	MaxLen   int    `yaml:"max_len" json:"max_len"`
	Pattern  string `yaml:"pattern,omitempty" json:"pattern,omitempty"`
	MinWords int    `yaml:"min_words,omitempty" json:"min_words,omitempty"`
}

// EnumConstraints declares the allowed option identifiers for enum fields.
// Exclusive options clear the rest of the selection when toggled on (and are
// cleared when any other option is toggled on).
type EnumConstraints struct {
	Options   []string `yaml:"options" json:"options"`
	Exclusive []string `yaml:"exclusive,omitempty" json:"exclusive,omitempty"`
}

// HasOption reports whether id is a declared option.
func (c *EnumConstraints) HasOption(id string) bool {
	for _, opt := range c.Options {
		if opt == id {
			return true
		}
	}
	return false
}

// IsExclusive reports whether id is declared as an exclusive option.
func (c *EnumConstraints) IsExclusive(id string) bool {
	for _, opt := range c.Exclusive {
		if opt == id {
			return true
		}
	}
	return false
}

// Condition is a pure predicate over previously collected answers. A zero
// Condition (empty Field) is always true. With ContainsAny set it is true when
// the referenced answer includes at least one of the listed options; otherwise
// Equals is compared against the answer's scalar form.
type Condition struct {
	Field       string   `yaml:"field" json:"field"`
	Equals      string   `yaml:"equals,omitempty" json:"equals,omitempty"`
	ContainsAny []string `yaml:"contains_any,omitempty" json:"contains_any,omitempty"`
}

// IsZero reports whether the condition is the always-true default.
func (c *Condition) IsZero() bool {
	return c == nil || c.Field == ""
}

// Evaluate applies the condition to the given answer values. A condition over
// an unanswered field is false.
func (c *Condition) Evaluate(answers map[string]FieldValue) bool {
	if c.IsZero() {
		return true
	}
	value, ok := answers[c.Field]
	if !ok {
		return false
	}
	if len(c.ContainsAny) > 0 {
		for _, want := range c.ContainsAny {
			if value.Contains(want) {
				return true
			}
		}
		return false
	}
	return value.Scalar() == c.Equals
}

// FieldSpec is the static, immutable description of one collectible field.
type FieldSpec struct {
	ID              string              `yaml:"id" json:"id"`
	Type            ValueType           `yaml:"type" json:"type"`
	Integer         *IntegerConstraints `yaml:"integer,omitempty" json:"integer,omitempty"`
	Text            *TextConstraints    `yaml:"text,omitempty" json:"text,omitempty"`
	Enum            *EnumConstraints    `yaml:"enum,omitempty" json:"enum,omitempty"`
	VisibleWhen     *Condition          `yaml:"visible_when,omitempty" json:"visible_when,omitempty"`
	DependentFields []string            `yaml:"dependent_fields,omitempty" json:"dependent_fields,omitempty"`
}

// Validate performs structural validation on a FieldSpec.
func (f *FieldSpec) Validate() error {
	if f.ID == "" {
		return fmt.Errorf("%w: field with empty id", ErrConfiguration)
	}
	if !IsValidValueType(f.Type) {
		return fmt.Errorf("%w: field %s has unknown type %q", ErrConfiguration, f.ID, f.Type)
	}
	switch f.Type {
	case ValueTypeInteger:
		if f.Integer == nil {
			return fmt.Errorf("%w: integer field %s missing integer constraints", ErrConfiguration, f.ID)
		}
		if f.Integer.Min > f.Integer.Max {
			return fmt.Errorf("%w: integer field %s has min %d > max %d", ErrConfiguration, f.ID, f.Integer.Min, f.Integer.Max)
		}
	case ValueTypeEnumSingle, ValueTypeEnumMulti:
		if f.Enum == nil || len(f.Enum.Options) == 0 {
			return fmt.Errorf("%w: enum field %s declares no options", ErrConfiguration, f.ID)
		}
		for _, opt := range f.Enum.Exclusive {
			if !f.Enum.HasOption(opt) {
				return fmt.Errorf("%w: enum field %s marks unknown option %q exclusive", ErrConfiguration, f.ID, opt)
			}
		}
	case ValueTypeText, ValueTypeOptionalText:
		if f.Text == nil {
			return fmt.Errorf("%w: text field %s missing text constraints", ErrConfiguration, f.ID)
		}
		if f.Text.MinLen > f.Text.MaxLen {
			return fmt.Errorf("%w: text field %s has min_len %d > max_len %d", ErrConfiguration, f.ID, f.Text.MinLen, f.Text.MaxLen)
		}
	}
	return nil
}

// FieldValue is the typed value of one validated answer. Exactly one of the
// value members is meaningful, selected by Type.
type FieldValue struct {
	Type    ValueType `yaml:"type" json:"type"`
	Text    string    `yaml:"text,omitempty" json:"text,omitempty"`
	Int     int64     `yaml:"int,omitempty" json:"int,omitempty"`
	Bool    bool      `yaml:"bool,omitempty" json:"bool,omitempty"`
	Options []string  `yaml:"options,omitempty" json:"options,omitempty"`
}

// Scalar returns the value in its canonical string form for predicate
// comparison. Multi-select values have no scalar form and return "".
func (v FieldValue) Scalar() string {
	switch v.Type {
	case ValueTypeInteger:
		return strconv.FormatInt(v.Int, 10)
	case ValueTypeBoolean:
		return strconv.FormatBool(v.Bool)
	case ValueTypeEnumMulti:
		return ""
	default:
		return v.Text
	}
}

// Contains reports whether the value includes the given option. For scalar
// values this is an equality check on the canonical form.
func (v FieldValue) Contains(option string) bool {
	if v.Type == ValueTypeEnumMulti {
		for _, opt := range v.Options {
			if opt == option {
				return true
			}
		}
		return false
	}
	return v.Scalar() == option
}

// Answer is the validated value collected for one field in one session.
type Answer struct {
	FieldID     string     `json:"field_id"`
	Value       FieldValue `json:"value"`
	CollectedAt time.Time  `json:"collected_at"`
}

// SessionStatus tracks the lifecycle of a submission session.
type SessionStatus string

const (
	// SessionInProgress means the session is still collecting answers.
	SessionInProgress SessionStatus = "in_progress"
	// SessionCompleted means all visible fields are answered and the
	// submission record has been produced.
	SessionCompleted SessionStatus = "completed"
	// SessionAbandoned means an external timeout policy ended the session.
	SessionAbandoned SessionStatus = "abandoned"
)

// Session is one in-progress or completed submission, owned exclusively by a
// single user identifier.
type Session struct {
	ID             string            `json:"id"`
	UserID         string            `json:"user_id"`
	Status         SessionStatus     `json:"status"`
	CurrentFieldID string            `json:"current_field_id,omitempty"`
	Answers        map[string]Answer `json:"answers"`
	// PendingSelection holds the toggled-but-not-yet-submitted option set for
	// the current multi-select field, so a paused multi-select survives resume.
	PendingSelection []string   `json:"pending_selection,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
}

// AnswerValues returns the collected answers as a fieldID -> value map, the
// shape visibility predicates are evaluated against.
func (s *Session) AnswerValues() map[string]FieldValue {
	values := make(map[string]FieldValue, len(s.Answers))
	for id, ans := range s.Answers {
		values[id] = ans.Value
	}
	return values
}

// LatestAnswer returns the field ID of the most recently collected answer,
// or "" when no answer exists.
func (s *Session) LatestAnswer() string {
	var latestID string
	var latestAt time.Time
	for id, ans := range s.Answers {
		if latestID == "" || ans.CollectedAt.After(latestAt) {
			latestID = id
			latestAt = ans.CollectedAt
		}
	}
	return latestID
}

// SubmissionRecord is the canonical finalized output of a completed session.
// Immutable after creation.
type SubmissionRecord struct {
	ID        string                `json:"id"`
	UserID    string                `json:"user_id"`
	CreatedAt time.Time             `json:"created_at"`
	Fields    map[string]FieldValue `json:"fields"`
}

// PromptKind identifies what the transport should present next.
type PromptKind string

const (
	// PromptAskField instructs the transport to present a field prompt.
	PromptAskField PromptKind = "ask_field"
	// PromptSubmissionComplete reports the finalized submission.
	PromptSubmissionComplete PromptKind = "submission_complete"
	// PromptError reports a user-visible error condition.
	PromptError PromptKind = "error"
)

// ErrorKind classifies user-visible error instructions.
type ErrorKind string

const (
	// ErrorKindSessionTerminated tells the user to start a new submission.
	ErrorKindSessionTerminated ErrorKind = "session_terminated"
)

// PromptInstruction is the controller's answer to an inbound user event: what
// to present next. It carries abstract field identifiers and option
// identifiers, never literal UI text.
type PromptInstruction struct {
	Kind      PromptKind        `json:"kind"`
	Field     *FieldSpec        `json:"field,omitempty"`
	Rejection RejectionReason   `json:"rejection,omitempty"`
	Selected  []string          `json:"selected,omitempty"`
	Record    *SubmissionRecord `json:"record,omitempty"`
	Error     ErrorKind         `json:"error,omitempty"`
}

// Response represents an inbound message from a user on any transport.
type Response struct {
	From string `json:"from"`
	Body string `json:"body"`
	Time int64  `json:"time"`
}

// StatusType represents delivery status values for receipts.
type StatusType string

const (
	// StatusTypeSent marks a message handed to the transport.
	StatusTypeSent StatusType = "sent"
	// StatusTypeDelivered marks a message delivered to the device.
	StatusTypeDelivered StatusType = "delivered"
	// StatusTypeRead marks a message read by the user.
	StatusTypeRead StatusType = "read"
)

// Receipt records a delivery status event for an outbound message.
type Receipt struct {
	To     string     `json:"to"`
	Status StatusType `json:"status"`
	Time   int64      `json:"time"`
}
