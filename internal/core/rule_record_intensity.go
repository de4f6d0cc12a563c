package core

import (
	"context"
	"fmt"

	"healthtrack/internal/validation"
	"healthtrack/pkg/domain"
)

// NewRecordIntensityRule blocks symptom records whose intensity is outside 1..10.
func NewRecordIntensityRule() domain.Rule {
	return recordIntensityRule{}
}

type recordIntensityRule struct{}

func (recordIntensityRule) Name() string { return "record_intensity_range" }

func (r recordIntensityRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, record := range changedEntities[domain.SymptomRecord](changes, domain.EntitySymptomRecord) {
		if validation.IsValidIntensity(record.Intensity) {
			continue
		}
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     r.Name(),
			Severity: domain.SeverityBlock,
			Message:  fmt.Sprintf("record %s intensity %d outside %d..%d", record.ID, record.Intensity, validation.MinIntensity, validation.MaxIntensity),
			Entity:   domain.EntitySymptomRecord,
			EntityID: record.ID,
		})
	}
	return res, nil
}
