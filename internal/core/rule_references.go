package core

import (
	"context"
	"fmt"

	"healthtrack/pkg/domain"
)

// NewSymptomReferenceRule blocks symptoms written against a condition that does not exist.
func NewSymptomReferenceRule() domain.Rule {
	return symptomReferenceRule{}
}

type symptomReferenceRule struct{}

func (symptomReferenceRule) Name() string { return "symptom_condition_reference" }

func (r symptomReferenceRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, symptom := range changedEntities[domain.Symptom](changes, domain.EntitySymptom) {
		if _, ok := view.FindCondition(symptom.ConditionID); ok {
			continue
		}
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     r.Name(),
			Severity: domain.SeverityBlock,
			Message:  fmt.Sprintf("symptom %s references missing condition %s", symptom.ID, symptom.ConditionID),
			Entity:   domain.EntitySymptom,
			EntityID: symptom.ID,
		})
	}
	return res, nil
}

// NewRecordReferenceRule blocks symptom records written against a symptom that does not exist.
func NewRecordReferenceRule() domain.Rule {
	return recordReferenceRule{}
}

type recordReferenceRule struct{}

func (recordReferenceRule) Name() string { return "record_symptom_reference" }

func (r recordReferenceRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, record := range changedEntities[domain.SymptomRecord](changes, domain.EntitySymptomRecord) {
		if _, ok := view.FindSymptom(record.SymptomID); ok {
			continue
		}
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     r.Name(),
			Severity: domain.SeverityBlock,
			Message:  fmt.Sprintf("record %s references missing symptom %s", record.ID, record.SymptomID),
			Entity:   domain.EntitySymptomRecord,
			EntityID: record.ID,
		})
	}
	return res, nil
}
