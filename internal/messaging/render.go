package messaging

import (
	"fmt"
	"sort"
	"strings"

	"github.com/OpenHaul/ProfileFlow/internal/models"
)

// Option list formatting, one numbered option per line.
const optionLineFormat = "\n%d. %s%s"

// fieldPrompts maps the default schema's field IDs to user-facing questions.
// Fields without an entry fall back to a generic prompt, so custom schemas
// still work out of the box.
var fieldPrompts = map[string]string{
	"full_name":          "What is your full name?",
	"phone":              "What is your phone number? (format: +380XXXXXXXXX)",
	"age":                "How old are you?",
	"region":             "Which region do you live in?",
	"city":               "Which city or town do you live in?",
	"driving_categories": "Which driving categories do you hold? Toggle options and send 'done'.",
	"experience_b":       "How many years of category B experience do you have?",
	"experience_c":       "How many years of category C experience do you have?",
	"experience_c1e":     "How many years of category C1E experience do you have?",
	"experience_ce":      "How many years of category CE experience do you have?",
	"semi_trailer_types": "Which semi-trailer types have you worked with? Toggle options and send 'done'.",
	"work_types":         "What kind of work are you looking for? Toggle options and send 'done'.",
	"vehicle_makes":      "Which truck makes and models have you driven? (Latin letters, e.g. Volvo FH, DAF XF)",
	"adr_license":        "Do you have an ADR license? (yes/no)",
	"trip_duration":      "What trip durations do you prefer? Toggle options and send 'done'.",
	"desired_salary":     "What is your desired monthly salary?",
	"driving_documents":  "Which documents for driving abroad do you have? Toggle options and send 'done'.",
	"military_status":    "Do you have a military service deferral? (yes/no)",
	"about":              "Tell us a bit about yourself, or send 'skip'.",
}

// rejectionMessages maps rejection reasons to re-prompt prefixes.
var rejectionMessages = map[models.RejectionReason]string{
	models.RejectionNotANumber:     "Please enter a whole number.",
	models.RejectionOutOfRange:     "That number is out of the allowed range.",
	models.RejectionUnknownOption:  "That is not one of the offered options.",
	models.RejectionEmptySelection: "Please select at least one option before sending 'done'.",
	models.RejectionTooShort:       "That answer is too short.",
	models.RejectionTooLong:        "That answer is too long.",
	models.RejectionInvalidFormat:  "That answer does not match the expected format.",
	models.RejectionEmptyInput:     "Please enter an answer.",
}

// RenderInstruction turns an abstract prompt instruction into message text.
// This is the only place where field identifiers meet literal UI text.
func RenderInstruction(instruction models.PromptInstruction) string {
	switch instruction.Kind {
	case models.PromptAskField:
		return renderAskField(instruction)
	case models.PromptSubmissionComplete:
		return renderComplete(instruction)
	case models.PromptError:
		if instruction.Error == models.ErrorKindSessionTerminated {
			return "This submission is already finished. Contact support to start a new one."
		}
		return "Something went wrong. Please try again later."
	default:
		return ""
	}
}

func renderAskField(instruction models.PromptInstruction) string {
	if instruction.Field == nil {
		return ""
	}

	var sb strings.Builder
	if instruction.Rejection != "" {
		if msg, ok := rejectionMessages[instruction.Rejection]; ok {
			sb.WriteString(msg)
			sb.WriteString("\n\n")
		}
	}

	prompt, ok := fieldPrompts[instruction.Field.ID]
	if !ok {
		prompt = fmt.Sprintf("Please provide: %s", instruction.Field.ID)
	}
	sb.WriteString(prompt)

	if instruction.Field.Enum != nil {
		selected := make(map[string]bool, len(instruction.Selected))
		for _, opt := range instruction.Selected {
			selected[opt] = true
		}
		for i, opt := range instruction.Field.Enum.Options {
			mark := ""
			if selected[opt] {
				mark = " ✔"
			}
			sb.WriteString(fmt.Sprintf(optionLineFormat, i+1, opt, mark))
		}
	}
	return sb.String()
}

func renderComplete(instruction models.PromptInstruction) string {
	var sb strings.Builder
	sb.WriteString("✅ Your profile is complete. Here is what we recorded:")
	if instruction.Record != nil {
		fieldIDs := make([]string, 0, len(instruction.Record.Fields))
		for fieldID := range instruction.Record.Fields {
			fieldIDs = append(fieldIDs, fieldID)
		}
		sort.Strings(fieldIDs)
		for _, fieldID := range fieldIDs {
			sb.WriteString(fmt.Sprintf("\n• %s: %s", fieldID, renderValue(instruction.Record.Fields[fieldID])))
		}
	}
	sb.WriteString("\n\nThank you! Recruiters will be in touch.")
	return sb.String()
}

func renderValue(value models.FieldValue) string {
	switch value.Type {
	case models.ValueTypeEnumMulti:
		return strings.Join(value.Options, ", ")
	case models.ValueTypeBoolean:
		if value.Bool {
			return "yes"
		}
		return "no"
	case models.ValueTypeOptionalText:
		if value.Text == "" {
			return "—"
		}
		return value.Text
	default:
		return value.Scalar()
	}
}
