package core

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"healthtrack/internal/validation"
	"healthtrack/pkg/domain"
)

// Initial record notes used when a new symptom carries none.
const initialRecordNotes = "Initial record"

// Service is the record repository: the public surface used to read and
// mutate health data. Writes are applied one at a time in arrival order.
type Service struct {
	adapter *Adapter
	policy  domain.Policy
	engine  *domain.RulesEngine
	clock   Clock
	logger  Logger
	metrics MetricsRecorder
	tracer  Tracer
	newID   func(prefix string) string
	writeQ  *semaphore.Weighted
}

// NewService constructs a service over the supplied adapter.
func NewService(adapter *Adapter, opts ...Option) *Service {
	s := &Service{
		adapter: adapter,
		engine:  NewDefaultRulesEngine(),
		clock:   systemClock,
		logger:  noopLogger{},
		metrics: noopMetrics{},
		tracer:  noopTracer{},
		newID:   func(prefix string) string { return prefix + "-" + uuid.NewString() },
		writeQ:  semaphore.NewWeighted(1),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.policy == nil {
		s.policy = validation.NewDefaultPolicy(s.clock.Now)
	}
	return s
}

// Adapter returns the persistent store adapter backing the service.
func (s *Service) Adapter() *Adapter { return s.adapter }

// RulesEngine returns the configured rules engine.
func (s *Service) RulesEngine() *domain.RulesEngine { return s.engine }

func (s *Service) observe(ctx context.Context, operation string) (context.Context, func(error)) {
	started := time.Now()
	ctx, span := s.tracer.Start(ctx, operation)
	return ctx, func(err error) {
		span.End(err)
		s.metrics.Observe(ctx, operation, err == nil, time.Since(started))
	}
}

// RunInTransaction applies fn to a private copy of the dataset, evaluates the
// rules against the recorded changes and saves the copy. The committed dataset
// is replaced only when every step succeeds.
func (s *Service) RunInTransaction(ctx context.Context, fn func(tx *Transaction) error) (domain.Result, error) {
	if err := s.writeQ.Acquire(ctx, 1); err != nil {
		return domain.Result{}, fmt.Errorf("acquire write queue: %w", err)
	}
	defer s.writeQ.Release(1)

	tx := newTransaction(s.adapter.Load(ctx), s.clock.Now(), s.newID)
	if err := fn(tx); err != nil {
		return domain.Result{}, err
	}
	var res domain.Result
	if s.engine != nil {
		var err error
		res, err = s.engine.Evaluate(ctx, tx.Snapshot(), tx.changes)
		if err != nil {
			return domain.Result{}, fmt.Errorf("evaluate rules: %w", err)
		}
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}
	if err := s.adapter.Save(ctx, tx.state); err != nil {
		return res, err
	}
	return res, nil
}

// LoadData returns a private copy of the current dataset.
func (s *Service) LoadData(ctx context.Context) domain.Dataset {
	return s.adapter.Load(ctx)
}

func (s *Service) currentUserIn(ctx context.Context, ds domain.Dataset) (domain.User, error) {
	if u, ok := ds.FindUser(s.adapter.CurrentUserID(ctx)); ok {
		return u, nil
	}
	if len(ds.Users) == 0 {
		return domain.User{}, ErrNoUsers
	}
	return ds.Users[0], nil
}

// CurrentUser returns the remembered current user, or the first user when the
// remembered id is unknown.
func (s *Service) CurrentUser(ctx context.Context) (domain.User, error) {
	return s.currentUserIn(ctx, s.adapter.Load(ctx))
}

// SetCurrentUser remembers id as the current user. The user must exist.
func (s *Service) SetCurrentUser(ctx context.Context, id string) (err error) {
	ctx, done := s.observe(ctx, "set_current_user")
	defer func() { done(err) }()
	if !validation.IsValidID(id) {
		return &domain.ValidationError{Entity: domain.EntityUser, Messages: []string{"user id is invalid"}}
	}
	if _, ok := s.adapter.Load(ctx).FindUser(id); !ok {
		return ErrNotFound{Entity: domain.EntityUser, ID: id}
	}
	return s.adapter.SetCurrentUserID(ctx, id)
}

func conditionsOf(ds domain.Dataset, userID string) []domain.Condition {
	out := make([]domain.Condition, 0)
	for _, c := range ds.Conditions {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out
}

func symptomsOf(ds domain.Dataset, conditions []domain.Condition) []domain.Symptom {
	ids := make(map[string]struct{}, len(conditions))
	for _, c := range conditions {
		ids[c.ID] = struct{}{}
	}
	out := make([]domain.Symptom, 0)
	for _, sym := range ds.Symptoms {
		if _, ok := ids[sym.ConditionID]; ok {
			out = append(out, sym)
		}
	}
	return out
}

// Conditions returns the current user's conditions.
func (s *Service) Conditions(ctx context.Context) ([]domain.Condition, error) {
	ds := s.adapter.Load(ctx)
	user, err := s.currentUserIn(ctx, ds)
	if err != nil {
		return nil, err
	}
	return conditionsOf(ds, user.ID), nil
}

// AllSymptoms returns the symptoms attached to the current user's conditions.
func (s *Service) AllSymptoms(ctx context.Context) ([]domain.Symptom, error) {
	ds := s.adapter.Load(ctx)
	user, err := s.currentUserIn(ctx, ds)
	if err != nil {
		return nil, err
	}
	return symptomsOf(ds, conditionsOf(ds, user.ID)), nil
}

// SymptomsByCondition returns the symptoms of one condition.
func (s *Service) SymptomsByCondition(ctx context.Context, conditionID string) []domain.Symptom {
	ds := s.adapter.Load(ctx)
	out := make([]domain.Symptom, 0)
	for _, sym := range ds.Symptoms {
		if sym.ConditionID == conditionID {
			out = append(out, sym)
		}
	}
	return out
}

// SymptomRecords returns every symptom record, unfiltered by user.
func (s *Service) SymptomRecords(ctx context.Context) []domain.SymptomRecord {
	ds := s.adapter.Load(ctx)
	if ds.SymptomRecords == nil {
		return []domain.SymptomRecord{}
	}
	return ds.SymptomRecords
}

// ConditionUpdates returns the audit trail of one condition in insertion order.
func (s *Service) ConditionUpdates(ctx context.Context, conditionID string) []domain.ConditionUpdate {
	ds := s.adapter.Load(ctx)
	out := make([]domain.ConditionUpdate, 0)
	for _, u := range ds.ConditionUpdates {
		if u.ConditionID == conditionID {
			out = append(out, u)
		}
	}
	return out
}

// UserStats derives dashboard counts for the current user. Records are counted
// only when they belong to one of the user's symptoms.
func (s *Service) UserStats(ctx context.Context) domain.UserStats {
	ds := s.adapter.Load(ctx)
	user, err := s.currentUserIn(ctx, ds)
	if err != nil {
		s.logger.Warn("user stats unavailable", "error", err)
		return domain.UserStats{}
	}
	conditions := conditionsOf(ds, user.ID)
	symptoms := symptomsOf(ds, conditions)
	symptomIDs := make(map[string]struct{}, len(symptoms))
	for _, sym := range symptoms {
		symptomIDs[sym.ID] = struct{}{}
	}

	stats := domain.UserStats{
		TotalConditions: len(conditions),
		TotalSymptoms:   len(symptoms),
	}
	for _, c := range conditions {
		if c.Status == domain.ConditionActive {
			stats.ActiveConditions++
		}
	}
	sum := 0
	for _, r := range ds.SymptomRecords {
		if _, ok := symptomIDs[r.SymptomID]; !ok {
			continue
		}
		stats.TotalRecords++
		sum += r.Intensity
	}
	if stats.TotalRecords > 0 {
		stats.AverageIntensity = float64(sum) / float64(stats.TotalRecords)
	}
	return stats
}

// SaveCondition registers a new condition for the current user together with
// up to the policy's symptom limit, one initial record per symptom and a
// new_condition audit entry. Any failure is reported as ErrConditionNotSaved;
// the cause is logged and remains reachable through errors.As.
func (s *Service) SaveCondition(ctx context.Context, req domain.NewConditionRequest) (created domain.Condition, res domain.Result, err error) {
	ctx, done := s.observe(ctx, "save_condition")
	defer func() {
		if err != nil {
			s.logger.Error("save condition failed", "error", err)
			err = &OperationError{Public: ErrConditionNotSaved, Cause: err}
		}
		done(err)
	}()

	cond, err := s.policy.CheckCondition(req.Condition)
	if err != nil {
		return domain.Condition{}, domain.Result{}, err
	}
	inputs := req.Symptoms
	if limit := s.policy.MaxSymptomsPerCondition(); limit > 0 && len(inputs) > limit {
		s.logger.Warn("symptom list truncated", "supplied", len(inputs), "limit", limit)
		inputs = inputs[:limit]
	}
	symptoms := make([]domain.SymptomInput, 0, len(inputs))
	for _, in := range inputs {
		checked, err := s.policy.CheckSymptom(in)
		if err != nil {
			return domain.Condition{}, domain.Result{}, err
		}
		symptoms = append(symptoms, checked)
	}

	res, err = s.RunInTransaction(ctx, func(tx *Transaction) error {
		user, err := s.currentUserIn(ctx, tx.state)
		if err != nil {
			return err
		}
		created, err = tx.CreateCondition(domain.Condition{
			UserID:      user.ID,
			Name:        cond.Name,
			Description: cond.Description,
			StartDate:   cond.StartDate,
			Status:      domain.ConditionActive,
			IsCured:     false,
		})
		if err != nil {
			return err
		}
		for _, in := range symptoms {
			if _, err := addSymptom(tx, created.ID, in); err != nil {
				return err
			}
		}
		_, err = tx.AppendConditionUpdate(domain.ConditionUpdate{
			ConditionID: created.ID,
			UpdateType:  domain.UpdateNewCondition,
			Description: "New condition registered: " + cond.Name,
		})
		return err
	})
	if err != nil {
		return domain.Condition{}, res, err
	}
	s.logger.Info("condition saved", "condition_id", created.ID, "symptoms", len(symptoms))
	return created, res, nil
}

// addSymptom creates a symptom and its initial intensity record.
func addSymptom(tx *Transaction, conditionID string, in domain.SymptomInput) (domain.Symptom, error) {
	sym, err := tx.CreateSymptom(domain.Symptom{
		ConditionID: conditionID,
		Name:        in.Name,
		Description: in.Description,
		Intensity:   in.Intensity,
		Notes:       in.Notes,
	})
	if err != nil {
		return domain.Symptom{}, err
	}
	notes := in.Notes
	if notes == "" {
		notes = initialRecordNotes
	}
	if _, err := tx.CreateSymptomRecord(domain.SymptomRecord{
		SymptomID: sym.ID,
		Intensity: in.Intensity,
		Notes:     notes,
	}); err != nil {
		return domain.Symptom{}, err
	}
	return sym, nil
}

// UpdateCondition merges patch onto an existing condition. A status change
// appends a status_change entry; marking the condition cured appends an
// improvement entry. Status and IsCured are updated independently.
func (s *Service) UpdateCondition(ctx context.Context, id string, patch domain.ConditionPatch) (updated domain.Condition, res domain.Result, err error) {
	ctx, done := s.observe(ctx, "update_condition")
	defer func() { done(err) }()

	patch, err = s.policy.CheckConditionPatch(patch)
	if err != nil {
		return domain.Condition{}, domain.Result{}, err
	}
	res, err = s.RunInTransaction(ctx, func(tx *Transaction) error {
		before, ok := tx.FindCondition(id)
		if !ok {
			return ErrNotFound{Entity: domain.EntityCondition, ID: id}
		}
		var err error
		updated, err = tx.UpdateCondition(id, func(c *domain.Condition) error {
			applyConditionPatch(c, patch)
			return nil
		})
		if err != nil {
			return err
		}
		if updated.Status != before.Status {
			if _, err := tx.AppendConditionUpdate(domain.ConditionUpdate{
				ConditionID: id,
				UpdateType:  domain.UpdateStatusChange,
				Description: fmt.Sprintf("Status changed from %s to %s", before.Status, updated.Status),
			}); err != nil {
				return err
			}
		}
		if updated.IsCured && !before.IsCured {
			if _, err := tx.AppendConditionUpdate(domain.ConditionUpdate{
				ConditionID: id,
				UpdateType:  domain.UpdateImprovement,
				Description: "Condition marked as cured",
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domain.Condition{}, res, err
	}
	return updated, res, nil
}

func applyConditionPatch(c *domain.Condition, patch domain.ConditionPatch) {
	if patch.Name != nil {
		c.Name = *patch.Name
	}
	if patch.Description != nil {
		c.Description = *patch.Description
	}
	if patch.StartDate != nil {
		c.StartDate = *patch.StartDate
	}
	if patch.Status != nil {
		c.Status = *patch.Status
	}
	if patch.IsCured != nil {
		c.IsCured = *patch.IsCured
	}
}

// AddSymptomToCondition attaches a new symptom with its initial record and a
// new_symptom audit entry to an existing condition.
func (s *Service) AddSymptomToCondition(ctx context.Context, conditionID string, in domain.SymptomInput) (created domain.Symptom, res domain.Result, err error) {
	ctx, done := s.observe(ctx, "add_symptom")
	defer func() { done(err) }()

	in, err = s.policy.CheckSymptom(in)
	if err != nil {
		return domain.Symptom{}, domain.Result{}, err
	}
	res, err = s.RunInTransaction(ctx, func(tx *Transaction) error {
		if _, ok := tx.FindCondition(conditionID); !ok {
			return ErrNotFound{Entity: domain.EntityCondition, ID: conditionID}
		}
		var err error
		created, err = addSymptom(tx, conditionID, in)
		if err != nil {
			return err
		}
		_, err = tx.AppendConditionUpdate(domain.ConditionUpdate{
			ConditionID: conditionID,
			UpdateType:  domain.UpdateNewSymptom,
			Description: "New symptom added: " + in.Name,
		})
		return err
	})
	if err != nil {
		return domain.Symptom{}, res, err
	}
	return created, res, nil
}

// AddSymptomRecord appends an intensity observation. The id is generated when
// absent and the record date defaults to now.
func (s *Service) AddSymptomRecord(ctx context.Context, in domain.RecordInput) (created domain.SymptomRecord, res domain.Result, err error) {
	ctx, done := s.observe(ctx, "add_symptom_record")
	defer func() { done(err) }()

	in, err = s.policy.CheckSymptomRecord(in)
	if err != nil {
		return domain.SymptomRecord{}, domain.Result{}, err
	}
	res, err = s.RunInTransaction(ctx, func(tx *Transaction) error {
		if _, ok := tx.FindSymptom(in.SymptomID); !ok {
			return ErrNotFound{Entity: domain.EntitySymptom, ID: in.SymptomID}
		}
		var err error
		created, err = tx.CreateSymptomRecord(domain.SymptomRecord{
			ID:         in.ID,
			SymptomID:  in.SymptomID,
			Intensity:  in.Intensity,
			Notes:      in.Notes,
			RecordDate: in.RecordDate,
		})
		return err
	})
	if err != nil {
		return domain.SymptomRecord{}, res, err
	}
	return created, res, nil
}

// UpdateSymptomRecord replaces the intensity, notes and date of an existing
// record. A zero RecordDate is set to now.
func (s *Service) UpdateSymptomRecord(ctx context.Context, in domain.RecordInput) (updated domain.SymptomRecord, res domain.Result, err error) {
	ctx, done := s.observe(ctx, "update_symptom_record")
	defer func() { done(err) }()

	if _, ok := s.adapter.Load(ctx).FindSymptomRecord(in.ID); in.ID == "" || !ok {
		return domain.SymptomRecord{}, domain.Result{}, ErrNotFound{Entity: domain.EntitySymptomRecord, ID: in.ID}
	}
	in, err = s.policy.CheckSymptomRecord(in)
	if err != nil {
		return domain.SymptomRecord{}, domain.Result{}, err
	}
	res, err = s.RunInTransaction(ctx, func(tx *Transaction) error {
		var err error
		updated, err = tx.UpdateSymptomRecord(in.ID, func(r *domain.SymptomRecord) error {
			r.Intensity = in.Intensity
			r.Notes = in.Notes
			r.RecordDate = in.RecordDate
			if r.RecordDate.IsZero() {
				r.RecordDate = tx.Now()
			}
			return nil
		})
		return err
	})
	if err != nil {
		return domain.SymptomRecord{}, res, err
	}
	return updated, res, nil
}

// InitializeDefaultData replaces the dataset with the built-in default when it
// holds no users or no conditions, and returns the resulting dataset.
func (s *Service) InitializeDefaultData(ctx context.Context) (ds domain.Dataset, err error) {
	ctx, done := s.observe(ctx, "initialize_default_data")
	defer func() { done(err) }()

	if err := s.writeQ.Acquire(ctx, 1); err != nil {
		return domain.Dataset{}, fmt.Errorf("acquire write queue: %w", err)
	}
	defer s.writeQ.Release(1)

	current := s.adapter.Load(ctx)
	if len(current.Users) > 0 && len(current.Conditions) > 0 {
		return current, nil
	}
	def := s.adapter.DefaultDataset()
	if err := s.adapter.Save(ctx, def); err != nil {
		return domain.Dataset{}, fmt.Errorf("initialize default data: %w", err)
	}
	s.logger.Info("default data initialized", "users", len(def.Users), "conditions", len(def.Conditions))
	return def, nil
}

// ResetData removes the stored dataset so the next load falls back to the seed.
func (s *Service) ResetData(ctx context.Context) (err error) {
	ctx, done := s.observe(ctx, "reset_data")
	defer func() { done(err) }()

	if err := s.writeQ.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("acquire write queue: %w", err)
	}
	defer s.writeQ.Release(1)
	return s.adapter.Reset(ctx)
}
