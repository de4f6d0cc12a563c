package validation

import (
	"strings"
	"time"

	"healthtrack/pkg/domain"
)

// Result aggregates every violation found in one payload.
type Result struct {
	IsValid bool
	Errors  []string
}

func newResult(errs []string) Result {
	return Result{IsValid: len(errs) == 0, Errors: errs}
}

// Err converts an invalid result into a *domain.ValidationError.
func (r Result) Err(entity domain.EntityType) error {
	if r.IsValid {
		return nil
	}
	return &domain.ValidationError{Entity: entity, Messages: append([]string(nil), r.Errors...)}
}

// ValidateConditionData checks a new condition payload.
func ValidateConditionData(in domain.ConditionInput, now time.Time) Result {
	var errs []string
	switch {
	case strings.TrimSpace(in.Name) == "":
		errs = append(errs, "condition name is required")
	case !IsSafeText(in.Name):
		errs = append(errs, "condition name contains invalid characters")
	}
	if in.StartDate == "" || !IsValidDate(in.StartDate, now) {
		errs = append(errs, "start date is invalid")
	}
	if in.Description != "" && !IsSafeText(in.Description) {
		errs = append(errs, "description contains invalid characters")
	}
	return newResult(errs)
}

// ValidateSymptomData checks a new symptom payload including its initial intensity.
func ValidateSymptomData(in domain.SymptomInput) Result {
	var errs []string
	switch {
	case strings.TrimSpace(in.Name) == "":
		errs = append(errs, "symptom name is required")
	case !IsSafeText(in.Name):
		errs = append(errs, "symptom name contains invalid characters")
	}
	if !IsValidIntensity(in.Intensity) {
		errs = append(errs, "intensity must be a number between 1 and 10")
	}
	if in.Description != "" && !IsSafeText(in.Description) {
		errs = append(errs, "description contains invalid characters")
	}
	if in.Notes != "" && !IsSafeText(in.Notes) {
		errs = append(errs, "notes contain invalid characters")
	}
	return newResult(errs)
}

// ValidateSymptomRecordData checks an intensity observation payload.
func ValidateSymptomRecordData(in domain.RecordInput) Result {
	var errs []string
	if !IsValidIntensity(in.Intensity) {
		errs = append(errs, "intensity must be a number between 1 and 10")
	}
	if in.Notes != "" && !IsSafeText(in.Notes) {
		errs = append(errs, "notes contain invalid characters")
	}
	if in.SymptomID != "" && !IsValidID(in.SymptomID) {
		errs = append(errs, "symptom id is invalid")
	}
	if in.ID != "" && !IsValidID(in.ID) {
		errs = append(errs, "record id is invalid")
	}
	return newResult(errs)
}

// ValidateConditionPatch checks the fields present in a condition patch.
func ValidateConditionPatch(p domain.ConditionPatch, now time.Time) Result {
	var errs []string
	if p.Name != nil {
		switch {
		case strings.TrimSpace(*p.Name) == "":
			errs = append(errs, "condition name is required")
		case !IsSafeText(*p.Name):
			errs = append(errs, "condition name contains invalid characters")
		}
	}
	if p.Description != nil && *p.Description != "" && !IsSafeText(*p.Description) {
		errs = append(errs, "description contains invalid characters")
	}
	if p.StartDate != nil && !IsValidDate(*p.StartDate, now) {
		errs = append(errs, "start date is invalid")
	}
	if p.Status != nil && !p.Status.Valid() {
		errs = append(errs, "status must be active or inactive")
	}
	return newResult(errs)
}
