// Package domain defines the persistent health-record entities, the dataset
// aggregate, and the rule evaluation primitives used by healthtrack.
package domain

import "time"

// EntityType identifies the type of record stored in the dataset.
type EntityType string

// Supported entity type identifiers used in Change records and error reporting.
const (
	// EntityUser identifies a user record.
	EntityUser EntityType = "user"
	// EntityCondition identifies a tracked medical condition.
	EntityCondition EntityType = "condition"
	// EntitySymptom identifies a symptom attached to a condition.
	EntitySymptom EntityType = "symptom"
	// EntitySymptomRecord identifies one intensity observation for a symptom.
	EntitySymptomRecord EntityType = "symptom_record"
	// EntityConditionUpdate identifies an audit entry for a condition.
	EntityConditionUpdate EntityType = "condition_update"
)

// ConditionStatus is the activity flag of a condition. It is independent of IsCured.
type ConditionStatus string

// Condition statuses.
const (
	ConditionActive   ConditionStatus = "active"
	ConditionInactive ConditionStatus = "inactive"
)

// Valid reports whether the status is one of the known values.
func (s ConditionStatus) Valid() bool {
	return s == ConditionActive || s == ConditionInactive
}

// UpdateType classifies a ConditionUpdate entry.
type UpdateType string

// Known update types. The audit trail accepts other values read from seed data.
const (
	UpdateNewCondition UpdateType = "new_condition"
	UpdateNewSymptom   UpdateType = "new_symptom"
	UpdateImprovement  UpdateType = "improvement"
	UpdateStatusChange UpdateType = "status_change"
)

// EmergencyContact is the person to reach for a user.
type EmergencyContact struct {
	Name         string `json:"name"`
	Phone        string `json:"phone"`
	Relationship string `json:"relationship"`
}

// Profile carries the medical profile of a user.
type Profile struct {
	Height            float64          `json:"height"`
	Weight            float64          `json:"weight"`
	BloodType         string           `json:"bloodType"`
	Allergies         []string         `json:"allergies"`
	ChronicConditions []string         `json:"chronicConditions"`
	EmergencyContact  EmergencyContact `json:"emergencyContact"`
}

// User is a seeded account. Password is plaintext demo data and must never be logged.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Password  string    `json:"password"`
	CreatedAt time.Time `json:"createdAt"`
	IsActive  bool      `json:"isActive"`
	Profile   Profile   `json:"profile"`
}

// Condition is a tracked medical complaint owned by one user.
type Condition struct {
	ID          string          `json:"id"`
	UserID      string          `json:"userId"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	StartDate   string          `json:"startDate"`
	Status      ConditionStatus `json:"status"`
	IsCured     bool            `json:"isCured"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// Symptom is a named manifestation of a condition. Intensity and Notes hold
// the values captured when the symptom was first registered.
type Symptom struct {
	ID          string    `json:"id"`
	ConditionID string    `json:"conditionId"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Intensity   int       `json:"intensity,omitempty"`
	Notes       string    `json:"notes,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// SymptomRecord is one timestamped intensity observation for a symptom.
type SymptomRecord struct {
	ID         string    `json:"id"`
	SymptomID  string    `json:"symptomId"`
	Intensity  int       `json:"intensity"`
	Notes      string    `json:"notes,omitempty"`
	RecordDate time.Time `json:"recordDate"`
}

// ConditionUpdate is an append-only audit entry for a condition.
type ConditionUpdate struct {
	ID          string     `json:"id"`
	ConditionID string     `json:"conditionId"`
	UpdateType  UpdateType `json:"updateType"`
	Description string     `json:"description"`
	Date        time.Time  `json:"date"`
}

// UserStats is the derived aggregate shown on the dashboard.
type UserStats struct {
	TotalConditions  int     `json:"totalConditions"`
	ActiveConditions int     `json:"activeConditions"`
	TotalSymptoms    int     `json:"totalSymptoms"`
	TotalRecords     int     `json:"totalRecords"`
	AverageIntensity float64 `json:"averageIntensity"`
}

// Change describes a mutation applied to an entity during a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

// Change actions. No delete operation exists for health records.
const (
	// ActionCreate indicates an entity was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates an entity was updated.
	ActionUpdate Action = "update"
)
