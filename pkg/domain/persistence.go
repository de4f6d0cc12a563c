package domain

import (
	"context"
	"errors"
	"strings"
	"time"
)

// KeyValueStore is the minimal durable backend the dataset document lives in.
// It mirrors the browser local-storage surface: one value per key, whole-value writes.
type KeyValueStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
}

// SeedSource supplies the initial dataset when nothing is stored yet.
type SeedSource interface {
	Fetch(ctx context.Context) (Dataset, error)
}

// ConditionInput is caller-supplied data for a new condition.
type ConditionInput struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	StartDate   string `json:"startDate"`
}

// SymptomInput is caller-supplied data for a new symptom and its initial record.
type SymptomInput struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Intensity   int    `json:"intensity"`
	Notes       string `json:"notes,omitempty"`
}

// RecordInput is caller-supplied data for adding or replacing a symptom record.
// A zero RecordDate means "now".
type RecordInput struct {
	ID         string    `json:"id,omitempty"`
	SymptomID  string    `json:"symptomId,omitempty"`
	Intensity  int       `json:"intensity"`
	Notes      string    `json:"notes,omitempty"`
	RecordDate time.Time `json:"recordDate,omitempty"`
}

// ConditionPatch holds the fields to merge onto an existing condition; nil fields are left as-is.
type ConditionPatch struct {
	Name        *string          `json:"name,omitempty"`
	Description *string          `json:"description,omitempty"`
	StartDate   *string          `json:"startDate,omitempty"`
	Status      *ConditionStatus `json:"status,omitempty"`
	IsCured     *bool            `json:"isCured,omitempty"`
}

// NewConditionRequest is the payload of the add-condition form.
type NewConditionRequest struct {
	Condition ConditionInput `json:"condition"`
	Symptoms  []SymptomInput `json:"symptoms"`
}

// Policy is the validation strategy applied to every mutation. Each Check method
// validates its input and, when valid, returns the sanitized form. Invalid input
// yields a *ValidationError listing every problem found.
type Policy interface {
	CheckCondition(in ConditionInput) (ConditionInput, error)
	CheckConditionPatch(p ConditionPatch) (ConditionPatch, error)
	CheckSymptom(in SymptomInput) (SymptomInput, error)
	CheckSymptomRecord(in RecordInput) (RecordInput, error)
	MaxSymptomsPerCondition() int
}

// ValidationError lists every rule a caller-supplied value failed.
type ValidationError struct {
	Entity   EntityType
	Messages []string
}

func (e *ValidationError) Error() string {
	return "invalid " + string(e.Entity) + " data: " + strings.Join(e.Messages, ", ")
}

// IsValidationError reports whether err wraps a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
