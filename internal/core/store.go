package core

import (
	"fmt"
	"time"

	"healthtrack/pkg/domain"
)

// Transaction is a mutation set applied to a private copy of the dataset.
// Nothing it does is visible to readers until the owning write commits.
type Transaction struct {
	state   domain.Dataset
	changes []domain.Change
	now     time.Time
	newID   func(prefix string) string
}

func newTransaction(state domain.Dataset, now time.Time, newID func(string) string) *Transaction {
	return &Transaction{state: state, now: now, newID: newID}
}

// Now returns the timestamp applied to everything written in this transaction.
func (tx *Transaction) Now() time.Time { return tx.now }

// Changes returns the changes recorded so far.
func (tx *Transaction) Changes() []domain.Change {
	return append([]domain.Change(nil), tx.changes...)
}

// Snapshot exposes a read-only view of the transactional state to rules.
func (tx *Transaction) Snapshot() domain.RuleView {
	return transactionView{state: &tx.state}
}

func (tx *Transaction) recordChange(change domain.Change) {
	tx.changes = append(tx.changes, change)
}

// FindUser looks up a user in the transactional state.
func (tx *Transaction) FindUser(id string) (domain.User, bool) { return tx.state.FindUser(id) }

// FindCondition looks up a condition in the transactional state.
func (tx *Transaction) FindCondition(id string) (domain.Condition, bool) {
	return tx.state.FindCondition(id)
}

// FindSymptom looks up a symptom in the transactional state.
func (tx *Transaction) FindSymptom(id string) (domain.Symptom, bool) {
	return tx.state.FindSymptom(id)
}

// CreateCondition appends a new condition.
func (tx *Transaction) CreateCondition(c domain.Condition) (domain.Condition, error) {
	if c.ID == "" {
		c.ID = tx.newID("condition")
	}
	if _, exists := tx.state.FindCondition(c.ID); exists {
		return domain.Condition{}, fmt.Errorf("condition %q already exists", c.ID)
	}
	c.CreatedAt = tx.now
	c.UpdatedAt = tx.now
	tx.state.Conditions = append(tx.state.Conditions, c)
	tx.recordChange(domain.Change{Entity: domain.EntityCondition, Action: domain.ActionCreate, After: c})
	return c, nil
}

// UpdateCondition mutates an existing condition using the provided mutator.
func (tx *Transaction) UpdateCondition(id string, mutator func(*domain.Condition) error) (domain.Condition, error) {
	for i := range tx.state.Conditions {
		if tx.state.Conditions[i].ID != id {
			continue
		}
		before := tx.state.Conditions[i]
		current := before
		if err := mutator(&current); err != nil {
			return domain.Condition{}, err
		}
		current.ID = id
		current.CreatedAt = before.CreatedAt
		current.UpdatedAt = tx.now
		tx.state.Conditions[i] = current
		tx.recordChange(domain.Change{Entity: domain.EntityCondition, Action: domain.ActionUpdate, Before: before, After: current})
		return current, nil
	}
	return domain.Condition{}, ErrNotFound{Entity: domain.EntityCondition, ID: id}
}

// CreateSymptom appends a new symptom.
func (tx *Transaction) CreateSymptom(s domain.Symptom) (domain.Symptom, error) {
	if s.ID == "" {
		s.ID = tx.newID("symptom")
	}
	if _, exists := tx.state.FindSymptom(s.ID); exists {
		return domain.Symptom{}, fmt.Errorf("symptom %q already exists", s.ID)
	}
	s.CreatedAt = tx.now
	tx.state.Symptoms = append(tx.state.Symptoms, s)
	tx.recordChange(domain.Change{Entity: domain.EntitySymptom, Action: domain.ActionCreate, After: s})
	return s, nil
}

// CreateSymptomRecord appends an intensity observation. A zero RecordDate is set to now.
func (tx *Transaction) CreateSymptomRecord(r domain.SymptomRecord) (domain.SymptomRecord, error) {
	if r.ID == "" {
		r.ID = tx.newID("record")
	}
	if _, exists := tx.state.FindSymptomRecord(r.ID); exists {
		return domain.SymptomRecord{}, fmt.Errorf("symptom record %q already exists", r.ID)
	}
	if r.RecordDate.IsZero() {
		r.RecordDate = tx.now
	}
	tx.state.SymptomRecords = append(tx.state.SymptomRecords, r)
	tx.recordChange(domain.Change{Entity: domain.EntitySymptomRecord, Action: domain.ActionCreate, After: r})
	return r, nil
}

// UpdateSymptomRecord mutates an existing record using the provided mutator.
func (tx *Transaction) UpdateSymptomRecord(id string, mutator func(*domain.SymptomRecord) error) (domain.SymptomRecord, error) {
	for i := range tx.state.SymptomRecords {
		if tx.state.SymptomRecords[i].ID != id {
			continue
		}
		before := tx.state.SymptomRecords[i]
		current := before
		if err := mutator(&current); err != nil {
			return domain.SymptomRecord{}, err
		}
		current.ID = id
		tx.state.SymptomRecords[i] = current
		tx.recordChange(domain.Change{Entity: domain.EntitySymptomRecord, Action: domain.ActionUpdate, Before: before, After: current})
		return current, nil
	}
	return domain.SymptomRecord{}, ErrNotFound{Entity: domain.EntitySymptomRecord, ID: id}
}

// AppendConditionUpdate adds an audit entry for a condition.
func (tx *Transaction) AppendConditionUpdate(u domain.ConditionUpdate) (domain.ConditionUpdate, error) {
	if u.ID == "" {
		u.ID = tx.newID("update")
	}
	if u.Date.IsZero() {
		u.Date = tx.now
	}
	tx.state.ConditionUpdates = append(tx.state.ConditionUpdates, u)
	tx.recordChange(domain.Change{Entity: domain.EntityConditionUpdate, Action: domain.ActionCreate, After: u})
	return u, nil
}

// transactionView exposes a read-only snapshot of the transactional state to rules.
type transactionView struct {
	state *domain.Dataset
}

func (v transactionView) ListConditions() []domain.Condition {
	return append([]domain.Condition(nil), v.state.Conditions...)
}

func (v transactionView) ListSymptoms() []domain.Symptom {
	return append([]domain.Symptom(nil), v.state.Symptoms...)
}

func (v transactionView) ListSymptomRecords() []domain.SymptomRecord {
	return append([]domain.SymptomRecord(nil), v.state.SymptomRecords...)
}

func (v transactionView) FindCondition(id string) (domain.Condition, bool) {
	return v.state.FindCondition(id)
}

func (v transactionView) FindSymptom(id string) (domain.Symptom, bool) {
	return v.state.FindSymptom(id)
}
