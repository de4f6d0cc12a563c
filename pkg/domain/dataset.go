package domain

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Collection keys of the persisted document.
const (
	KeyUsers            = "users"
	KeyConditions       = "conditions"
	KeySymptoms         = "symptoms"
	KeySymptomRecords   = "symptomRecords"
	KeyConditionUpdates = "conditionUpdates"
)

var datasetKeys = []string{KeyUsers, KeyConditions, KeySymptoms, KeySymptomRecords, KeyConditionUpdates}

// ErrInvalidDataset is returned when one of the five collections is missing.
var ErrInvalidDataset = errors.New("invalid dataset structure")

// Dataset is the single aggregate document holding every collection.
// A nil slice means the collection is absent; an empty slice is a valid empty collection.
type Dataset struct {
	Users            []User            `json:"users"`
	Conditions       []Condition       `json:"conditions"`
	Symptoms         []Symptom         `json:"symptoms"`
	SymptomRecords   []SymptomRecord   `json:"symptomRecords"`
	ConditionUpdates []ConditionUpdate `json:"conditionUpdates"`
}

// EmptyDataset returns a structurally valid dataset with all collections empty.
func EmptyDataset() Dataset {
	return Dataset{
		Users:            []User{},
		Conditions:       []Condition{},
		Symptoms:         []Symptom{},
		SymptomRecords:   []SymptomRecord{},
		ConditionUpdates: []ConditionUpdate{},
	}
}

// Validate checks the structural invariant: all five collections present.
func (d Dataset) Validate() error {
	missing := make([]string, 0, len(datasetKeys))
	if d.Users == nil {
		missing = append(missing, KeyUsers)
	}
	if d.Conditions == nil {
		missing = append(missing, KeyConditions)
	}
	if d.Symptoms == nil {
		missing = append(missing, KeySymptoms)
	}
	if d.SymptomRecords == nil {
		missing = append(missing, KeySymptomRecords)
	}
	if d.ConditionUpdates == nil {
		missing = append(missing, KeyConditionUpdates)
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %v", ErrInvalidDataset, missing)
	}
	return nil
}

// Clone returns a deep copy that preserves the nil/empty distinction of every collection.
func (d Dataset) Clone() Dataset {
	out := Dataset{
		Conditions:       cloneSlice(d.Conditions),
		Symptoms:         cloneSlice(d.Symptoms),
		SymptomRecords:   cloneSlice(d.SymptomRecords),
		ConditionUpdates: cloneSlice(d.ConditionUpdates),
	}
	if d.Users != nil {
		out.Users = make([]User, len(d.Users))
		for i, u := range d.Users {
			out.Users[i] = cloneUser(u)
		}
	}
	return out
}

func cloneSlice[T any](in []T) []T {
	if in == nil {
		return nil
	}
	out := make([]T, len(in))
	copy(out, in)
	return out
}

func cloneUser(u User) User {
	cp := u
	cp.Profile.Allergies = cloneSlice(u.Profile.Allergies)
	cp.Profile.ChronicConditions = cloneSlice(u.Profile.ChronicConditions)
	return cp
}

// Marshal serialises the dataset to its persisted JSON form.
func (d Dataset) Marshal() ([]byte, error) {
	return json.Marshal(d)
}

// ParseDataset decodes a persisted document and checks that every collection key is present
// and holds an array.
func ParseDataset(raw []byte) (Dataset, error) {
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(raw, &keys); err != nil {
		return Dataset{}, fmt.Errorf("decode dataset: %w", err)
	}
	for _, k := range datasetKeys {
		v, ok := keys[k]
		if !ok || len(v) == 0 || v[0] != '[' {
			return Dataset{}, fmt.Errorf("%w: %s must be an array", ErrInvalidDataset, k)
		}
	}
	var ds Dataset
	if err := json.Unmarshal(raw, &ds); err != nil {
		return Dataset{}, fmt.Errorf("decode dataset: %w", err)
	}
	return ds, ds.Validate()
}

// FindUser returns the user with the given id.
func (d Dataset) FindUser(id string) (User, bool) {
	for _, u := range d.Users {
		if u.ID == id {
			return cloneUser(u), true
		}
	}
	return User{}, false
}

// FindCondition returns the condition with the given id.
func (d Dataset) FindCondition(id string) (Condition, bool) {
	for _, c := range d.Conditions {
		if c.ID == id {
			return c, true
		}
	}
	return Condition{}, false
}

// FindSymptom returns the symptom with the given id.
func (d Dataset) FindSymptom(id string) (Symptom, bool) {
	for _, s := range d.Symptoms {
		if s.ID == id {
			return s, true
		}
	}
	return Symptom{}, false
}

// FindSymptomRecord returns the record with the given id.
func (d Dataset) FindSymptomRecord(id string) (SymptomRecord, bool) {
	for _, r := range d.SymptomRecords {
		if r.ID == id {
			return r, true
		}
	}
	return SymptomRecord{}, false
}
