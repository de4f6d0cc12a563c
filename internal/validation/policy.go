package validation

import (
	"time"

	"healthtrack/pkg/domain"
)

// DefaultPolicy is the built-in domain.Policy: validate first, then sanitize
// every free-text field so no raw text reaches storage.
type DefaultPolicy struct {
	now func() time.Time
}

var _ domain.Policy = (*DefaultPolicy)(nil)

// NewDefaultPolicy returns the built-in policy. A nil clock uses time.Now.
func NewDefaultPolicy(now func() time.Time) *DefaultPolicy {
	if now == nil {
		now = time.Now
	}
	return &DefaultPolicy{now: now}
}

// CheckCondition validates and sanitizes a new condition payload.
func (p *DefaultPolicy) CheckCondition(in domain.ConditionInput) (domain.ConditionInput, error) {
	if err := ValidateConditionData(in, p.now()).Err(domain.EntityCondition); err != nil {
		return domain.ConditionInput{}, err
	}
	in.Name = SanitizeText(in.Name)
	in.Description = SanitizeText(in.Description)
	return in, nil
}

// CheckConditionPatch validates and sanitizes the fields present in a patch.
func (p *DefaultPolicy) CheckConditionPatch(patch domain.ConditionPatch) (domain.ConditionPatch, error) {
	if err := ValidateConditionPatch(patch, p.now()).Err(domain.EntityCondition); err != nil {
		return domain.ConditionPatch{}, err
	}
	if patch.Name != nil {
		v := SanitizeText(*patch.Name)
		patch.Name = &v
	}
	if patch.Description != nil {
		v := SanitizeText(*patch.Description)
		patch.Description = &v
	}
	return patch, nil
}

// CheckSymptom validates and sanitizes a new symptom payload.
func (p *DefaultPolicy) CheckSymptom(in domain.SymptomInput) (domain.SymptomInput, error) {
	if err := ValidateSymptomData(in).Err(domain.EntitySymptom); err != nil {
		return domain.SymptomInput{}, err
	}
	in.Name = SanitizeText(in.Name)
	in.Description = SanitizeText(in.Description)
	in.Notes = SanitizeText(in.Notes)
	return in, nil
}

// CheckSymptomRecord validates a record payload and sanitizes its notes.
func (p *DefaultPolicy) CheckSymptomRecord(in domain.RecordInput) (domain.RecordInput, error) {
	if err := ValidateSymptomRecordData(in).Err(domain.EntitySymptomRecord); err != nil {
		return domain.RecordInput{}, err
	}
	in.Notes = SanitizeText(in.Notes)
	return in, nil
}

// MaxSymptomsPerCondition caps the symptoms accepted by one add-condition call.
func (p *DefaultPolicy) MaxSymptomsPerCondition() int { return MaxSymptomsPerCondition }
