// Package flow implements the conversational form state machine: the flow
// graph deciding which field to ask next, the controller advancing sessions on
// validated answers, and the finalizer producing submission records.
package flow

import (
	"github.com/OpenHaul/ProfileFlow/internal/models"
	"github.com/OpenHaul/ProfileFlow/internal/schema"
)

// NextField returns the next field to ask: the first field in declared order
// that has no answer yet and whose visibility condition holds for the answers
// collected so far. It returns nil when every visible field is answered.
//
// Fields whose condition is false are skipped, not deferred; because a
// condition may only reference earlier fields, the skip is permanent for the
// current answer set and the walk can never cycle.
func NextField(s *schema.Schema, answers map[string]models.FieldValue) *models.FieldSpec {
	for _, spec := range s.FieldsInDeclaredOrder() {
		if _, answered := answers[spec.ID]; answered {
			continue
		}
		if spec.VisibleWhen.Evaluate(answers) {
			f := spec
			return &f
		}
	}
	return nil
}

// VisibleFields returns the IDs of every field whose condition holds for the
// given answers, in declared order.
func VisibleFields(s *schema.Schema, answers map[string]models.FieldValue) []string {
	var visible []string
	for _, spec := range s.FieldsInDeclaredOrder() {
		if spec.VisibleWhen.Evaluate(answers) {
			visible = append(visible, spec.ID)
		}
	}
	return visible
}

// pruneInvisible removes answers whose visibility condition no longer holds,
// cascading through dependents. The walk is a single forward pass in declared
// order: conditions only reference earlier fields, so once a field's answer is
// dropped every downstream condition sees the reduced answer set.
func pruneInvisible(s *schema.Schema, session *models.Session) []string {
	var pruned []string
	surviving := make(map[string]models.FieldValue, len(session.Answers))
	for _, spec := range s.FieldsInDeclaredOrder() {
		ans, answered := session.Answers[spec.ID]
		if !answered {
			continue
		}
		if spec.VisibleWhen.Evaluate(surviving) {
			surviving[spec.ID] = ans.Value
			continue
		}
		delete(session.Answers, spec.ID)
		pruned = append(pruned, spec.ID)
	}
	return pruned
}
