package core

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"healthtrack/internal/infra/persistence/memory"
	"healthtrack/internal/seed"
	"healthtrack/pkg/domain"
)

func migraineRequest(symptoms ...domain.SymptomInput) domain.NewConditionRequest {
	return domain.NewConditionRequest{
		Condition: domain.ConditionInput{Name: "Migraine", StartDate: "2024-01-15"},
		Symptoms:  symptoms,
	}
}

func TestSaveConditionRoundTrip(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	before := env.svc.LoadData(ctx)

	created, res, err := env.svc.SaveCondition(ctx, migraineRequest(domain.SymptomInput{Name: "Throbbing pain", Intensity: 7}))
	if err != nil {
		t.Fatalf("save condition: %v", err)
	}
	if len(res.Violations) != 0 {
		t.Fatalf("unexpected violations: %+v", res.Violations)
	}
	if created.Status != domain.ConditionActive || created.IsCured || created.UserID != DefaultUserID {
		t.Fatalf("unexpected condition defaults: %+v", created)
	}
	if !created.CreatedAt.Equal(testNow) || !created.UpdatedAt.Equal(testNow) {
		t.Fatalf("expected timestamps from clock, got %+v", created)
	}

	conditions, err := env.svc.Conditions(ctx)
	if err != nil {
		t.Fatalf("conditions: %v", err)
	}
	if len(conditions) != len(before.Conditions)+1 || countNamed(conditions, "Migraine") != 1 {
		t.Fatalf("expected one new Migraine condition, got %+v", conditions)
	}

	symptoms := env.svc.SymptomsByCondition(ctx, created.ID)
	if len(symptoms) != 1 || symptoms[0].Name != "Throbbing pain" {
		t.Fatalf("expected one new symptom, got %+v", symptoms)
	}
	all, _ := env.svc.AllSymptoms(ctx)
	if len(all) != len(before.Symptoms)+1 {
		t.Fatalf("expected all symptoms to include the new one, got %d", len(all))
	}

	records := env.svc.SymptomRecords(ctx)
	if len(records) != len(before.SymptomRecords)+1 {
		t.Fatalf("expected one new record, got %d", len(records))
	}
	last := records[len(records)-1]
	if last.SymptomID != symptoms[0].ID || last.Intensity != 7 || last.Notes != "Initial record" {
		t.Fatalf("unexpected initial record: %+v", last)
	}

	updates := env.svc.ConditionUpdates(ctx, created.ID)
	if len(updates) != 1 || updates[0].UpdateType != domain.UpdateNewCondition || updates[0].Description != "New condition registered: Migraine" {
		t.Fatalf("unexpected audit trail: %+v", updates)
	}
}

func countNamed(conditions []domain.Condition, name string) int {
	n := 0
	for _, c := range conditions {
		if c.Name == name {
			n++
		}
	}
	return n
}

func TestSaveConditionTruncatesSymptoms(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	inputs := make([]domain.SymptomInput, 0, 12)
	for i := 0; i < 12; i++ {
		inputs = append(inputs, domain.SymptomInput{Name: "Symptom " + string(rune('A'+i)), Intensity: 5})
	}

	created, _, err := env.svc.SaveCondition(ctx, migraineRequest(inputs...))
	if err != nil {
		t.Fatalf("save condition: %v", err)
	}
	if got := len(env.svc.SymptomsByCondition(ctx, created.ID)); got != 10 {
		t.Fatalf("expected 10 symptoms, got %d", got)
	}
}

func TestSaveConditionRejectsUnsafeText(t *testing.T) {
	ctx := context.Background()
	log := &captureLogger{}
	env := newTestEnv(t, WithLogger(log))
	env.svc.LoadData(ctx)

	req := domain.NewConditionRequest{
		Condition: domain.ConditionInput{Name: "<script>alert(1)</script>", StartDate: "2024-01-15"},
	}
	_, _, err := env.svc.SaveCondition(ctx, req)
	if !errors.Is(err, ErrConditionNotSaved) {
		t.Fatalf("expected ErrConditionNotSaved, got %v", err)
	}
	if !domain.IsValidationError(err) {
		t.Fatalf("expected validation cause, got %v", err)
	}
	if err.Error() != ErrConditionNotSaved.Error() {
		t.Fatalf("user-facing message leaked cause: %q", err.Error())
	}
	raw, _, _ := env.store.Get(ctx, DefaultStorageKey)
	if bytes.Contains(raw, []byte("<script")) {
		t.Fatalf("unsafe text persisted")
	}
	if !log.has("error: save condition failed") {
		t.Fatalf("expected cause to be logged")
	}
}

func TestSaveConditionRejectsBadSymptomBeforeWriting(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	before := env.svc.LoadData(ctx)

	_, _, err := env.svc.SaveCondition(ctx, migraineRequest(
		domain.SymptomInput{Name: "Fine", Intensity: 4},
		domain.SymptomInput{Name: "Off the scale", Intensity: 11},
	))
	if !errors.Is(err, ErrConditionNotSaved) || !domain.IsValidationError(err) {
		t.Fatalf("expected validation failure, got %v", err)
	}
	if after := env.svc.LoadData(ctx); len(after.Conditions) != len(before.Conditions) {
		t.Fatalf("partial condition persisted")
	}
}

func TestSaveConditionBlockedByConditionLimit(t *testing.T) {
	ctx := context.Background()
	engine := domain.NewRulesEngine()
	engine.Register(NewConditionLimitRule(1))
	env := newTestEnv(t, WithRulesEngine(engine))

	_, _, err := env.svc.SaveCondition(ctx, migraineRequest())
	var violation domain.RuleViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected rule violation, got %v", err)
	}
	if violation.Result.Violations[0].Rule != "condition_limit" {
		t.Fatalf("unexpected violation %+v", violation.Result.Violations)
	}
}

func TestSaveConditionWithoutUsers(t *testing.T) {
	ctx := context.Background()
	adapter := NewAdapter(AdapterConfig{
		Store: memory.NewStore(),
		Seed: seedFunc(func(context.Context) (domain.Dataset, error) {
			return domain.EmptyDataset(), nil
		}),
	})
	svc := NewService(adapter, WithClock(newFakeClock()))

	if _, _, err := svc.SaveCondition(ctx, migraineRequest()); !errors.Is(err, ErrNoUsers) {
		t.Fatalf("expected ErrNoUsers cause, got %v", err)
	}
	if _, err := svc.Conditions(ctx); !errors.Is(err, ErrNoUsers) {
		t.Fatalf("expected ErrNoUsers, got %v", err)
	}
	if _, err := svc.CurrentUser(ctx); !errors.Is(err, ErrNoUsers) {
		t.Fatalf("expected ErrNoUsers, got %v", err)
	}
	if stats := svc.UserStats(ctx); stats != (domain.UserStats{}) {
		t.Fatalf("expected zero stats, got %+v", stats)
	}
}

func TestUpdateConditionAppendsAuditEntries(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	inactive := domain.ConditionInactive
	cured := true
	name := "Tension headache"

	updated, _, err := env.svc.UpdateCondition(ctx, "condition-001", domain.ConditionPatch{Status: &inactive, Name: &name})
	if err != nil {
		t.Fatalf("update status: %v", err)
	}
	if updated.Status != domain.ConditionInactive || updated.Name != name || updated.IsCured {
		t.Fatalf("unexpected update result %+v", updated)
	}
	if !updated.UpdatedAt.Equal(testNow) {
		t.Fatalf("expected UpdatedAt refreshed, got %s", updated.UpdatedAt)
	}

	updated, _, err = env.svc.UpdateCondition(ctx, "condition-001", domain.ConditionPatch{IsCured: &cured})
	if err != nil {
		t.Fatalf("update cured: %v", err)
	}
	if !updated.IsCured || updated.Status != domain.ConditionInactive {
		t.Fatalf("status and isCured must change independently, got %+v", updated)
	}

	updates := env.svc.ConditionUpdates(ctx, "condition-001")
	var statusEntry, curedEntry bool
	for _, u := range updates {
		switch {
		case u.UpdateType == domain.UpdateStatusChange && u.Description == "Status changed from active to inactive":
			statusEntry = true
		case u.UpdateType == domain.UpdateImprovement && u.Description == "Condition marked as cured":
			curedEntry = true
		}
	}
	if !statusEntry || !curedEntry {
		t.Fatalf("missing audit entries in %+v", updates)
	}

	count := len(updates)
	if _, _, err := env.svc.UpdateCondition(ctx, "condition-001", domain.ConditionPatch{IsCured: &cured}); err != nil {
		t.Fatalf("repeat cured: %v", err)
	}
	if got := len(env.svc.ConditionUpdates(ctx, "condition-001")); got != count {
		t.Fatalf("unchanged state must not append entries, got %d want %d", got, count)
	}
}

func TestUpdateConditionErrors(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	inactive := domain.ConditionInactive
	future := "2099-01-01"

	if _, _, err := env.svc.UpdateCondition(ctx, "condition-404", domain.ConditionPatch{Status: &inactive}); !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, _, err := env.svc.UpdateCondition(ctx, "condition-001", domain.ConditionPatch{StartDate: &future}); !domain.IsValidationError(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAddSymptomToCondition(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	sym, _, err := env.svc.AddSymptomToCondition(ctx, "condition-001", domain.SymptomInput{Name: "Nausea", Intensity: 4})
	if err != nil {
		t.Fatalf("add symptom: %v", err)
	}
	if sym.ConditionID != "condition-001" || sym.Intensity != 4 {
		t.Fatalf("unexpected symptom %+v", sym)
	}
	var initial *domain.SymptomRecord
	for _, r := range env.svc.SymptomRecords(ctx) {
		if r.SymptomID == sym.ID {
			rec := r
			initial = &rec
		}
	}
	if initial == nil || initial.Intensity != 4 || initial.Notes != "Initial record" {
		t.Fatalf("expected initial record, got %+v", initial)
	}
	updates := env.svc.ConditionUpdates(ctx, "condition-001")
	if last := updates[len(updates)-1]; last.UpdateType != domain.UpdateNewSymptom || last.Description != "New symptom added: Nausea" {
		t.Fatalf("unexpected audit entry %+v", last)
	}

	if _, _, err := env.svc.AddSymptomToCondition(ctx, "condition-404", domain.SymptomInput{Name: "Nausea", Intensity: 4}); !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestAddSymptomRecord(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	rec, _, err := env.svc.AddSymptomRecord(ctx, domain.RecordInput{SymptomID: "symptom-002", Intensity: 6, Notes: "  After lunch  "})
	if err != nil {
		t.Fatalf("add record: %v", err)
	}
	if rec.ID == "" || !rec.RecordDate.Equal(testNow) {
		t.Fatalf("expected generated id and default date, got %+v", rec)
	}
	if rec.Notes != "After lunch" {
		t.Fatalf("notes not sanitized: %q", rec.Notes)
	}

	if _, _, err := env.svc.AddSymptomRecord(ctx, domain.RecordInput{SymptomID: "symptom-404", Intensity: 6}); !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, _, err := env.svc.AddSymptomRecord(ctx, domain.RecordInput{SymptomID: "symptom-001", Intensity: 0}); !domain.IsValidationError(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, _, err := env.svc.AddSymptomRecord(ctx, domain.RecordInput{SymptomID: "symptom-001", Intensity: 4, Notes: "<b>bold</b>"}); !domain.IsValidationError(err) {
		t.Fatalf("expected markup in notes to be rejected, got %v", err)
	}
}

func TestUpdateSymptomRecord(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	rec, _, err := env.svc.UpdateSymptomRecord(ctx, domain.RecordInput{ID: "record-001", Intensity: 2, Notes: "Much better"})
	if err != nil {
		t.Fatalf("update record: %v", err)
	}
	if rec.Intensity != 2 || rec.Notes != "Much better" || !rec.RecordDate.Equal(testNow) || rec.SymptomID != "symptom-001" {
		t.Fatalf("unexpected record %+v", rec)
	}
}

func TestUpdateSymptomRecordMissingLeavesDataUnchanged(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	before, _ := env.svc.LoadData(ctx).Marshal()

	if _, _, err := env.svc.UpdateSymptomRecord(ctx, domain.RecordInput{ID: "record-404", Intensity: 3}); !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, _, err := env.svc.UpdateSymptomRecord(ctx, domain.RecordInput{Intensity: 3}); !IsNotFound(err) {
		t.Fatalf("expected not found for empty id, got %v", err)
	}
	if _, _, err := env.svc.UpdateSymptomRecord(ctx, domain.RecordInput{ID: "no such id", Intensity: 3}); !IsNotFound(err) {
		t.Fatalf("expected not found for malformed unknown id, got %v", err)
	}
	after, _ := env.svc.LoadData(ctx).Marshal()
	if !bytes.Equal(before, after) {
		t.Fatalf("dataset changed after failed update")
	}
}

func TestUserStats(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	stats := env.svc.UserStats(ctx)
	want := domain.UserStats{TotalConditions: 1, ActiveConditions: 1, TotalSymptoms: 2, TotalRecords: 4, AverageIntensity: 5.75}
	if stats != want {
		t.Fatalf("unexpected stats %+v, want %+v", stats, want)
	}
}

func TestUserStatsWithoutRecords(t *testing.T) {
	ctx := context.Background()
	adapter := NewAdapter(AdapterConfig{
		Store: memory.NewStore(),
		Seed: seedFunc(func(context.Context) (domain.Dataset, error) {
			ds := domain.EmptyDataset()
			ds.Users = append(ds.Users, domain.User{ID: DefaultUserID, Name: "Demo"})
			return ds, nil
		}),
	})
	stats := NewService(adapter).UserStats(ctx)
	if stats != (domain.UserStats{}) || stats.AverageIntensity != 0 {
		t.Fatalf("expected zero stats, got %+v", stats)
	}
}

func TestConcurrentRecordsAllPersist(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	before := len(env.svc.SymptomRecords(ctx))

	const writers = 25
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, err := env.svc.AddSymptomRecord(ctx, domain.RecordInput{SymptomID: "symptom-001", Intensity: i%10 + 1})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("add record: %v", err)
		}
	}
	if got := len(env.svc.SymptomRecords(ctx)); got != before+writers {
		t.Fatalf("expected %d records, got %d", before+writers, got)
	}
	raw, _, _ := env.store.Get(ctx, DefaultStorageKey)
	stored, err := domain.ParseDataset(raw)
	if err != nil || len(stored.SymptomRecords) != before+writers {
		t.Fatalf("stored dataset missing records: %v", err)
	}
}

func TestFailedSaveLeavesCommittedDataset(t *testing.T) {
	ctx := context.Background()
	raw, err := seed.DefaultDataset().Marshal()
	if err != nil {
		t.Fatalf("marshal default: %v", err)
	}
	store := memory.NewStore()
	adapter := NewAdapter(AdapterConfig{
		Store:       store,
		Seed:        seed.EmbeddedSource{},
		MaxDataSize: len(raw) + 100,
		Clock:       newFakeClock(),
	})
	svc := NewService(adapter, WithClock(newFakeClock()))
	before := len(svc.SymptomRecords(ctx))

	_, _, err = svc.AddSymptomRecord(ctx, domain.RecordInput{
		SymptomID: "symptom-001",
		Intensity: 5,
		Notes:     strings.Repeat("a", 900),
	})
	if !errors.Is(err, ErrDatasetTooLarge) {
		t.Fatalf("expected ErrDatasetTooLarge, got %v", err)
	}
	if got := len(svc.SymptomRecords(ctx)); got != before {
		t.Fatalf("failed save changed committed records: %d -> %d", before, got)
	}
}

func TestRulesBlockDanglingReferences(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	before := len(env.svc.SymptomRecords(ctx))

	res, err := env.svc.RunInTransaction(ctx, func(tx *Transaction) error {
		_, err := tx.CreateSymptomRecord(domain.SymptomRecord{SymptomID: "symptom-missing", Intensity: 12})
		return err
	})
	var violation domain.RuleViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected rule violation, got %v", err)
	}
	rules := map[string]bool{}
	for _, v := range res.Violations {
		rules[v.Rule] = true
	}
	if !rules["record_symptom_reference"] || !rules["record_intensity_range"] {
		t.Fatalf("expected reference and intensity violations, got %+v", res.Violations)
	}
	if got := len(env.svc.SymptomRecords(ctx)); got != before {
		t.Fatalf("blocked transaction persisted records")
	}

	_, err = env.svc.RunInTransaction(ctx, func(tx *Transaction) error {
		_, err := tx.CreateSymptom(domain.Symptom{ConditionID: "condition-missing", Name: "Orphan"})
		return err
	})
	if !errors.As(err, &violation) || violation.Result.Violations[0].Rule != "symptom_condition_reference" {
		t.Fatalf("expected symptom reference violation, got %v", err)
	}
}

func TestRunInTransactionHonoursCancellation(t *testing.T) {
	env := newTestEnv(t)
	ctx, cancel := context.WithCancel(context.Background())

	hold := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_, _ = env.svc.RunInTransaction(context.Background(), func(*Transaction) error {
			close(started)
			<-hold
			return nil
		})
	}()
	<-started
	cancel()
	if _, err := env.svc.RunInTransaction(ctx, func(*Transaction) error { return nil }); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	close(hold)
}

func TestSetCurrentUser(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	if err := env.svc.SetCurrentUser(ctx, "bad id!"); !domain.IsValidationError(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if err := env.svc.SetCurrentUser(ctx, "user-404"); !IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := env.svc.SetCurrentUser(ctx, DefaultUserID); err != nil {
		t.Fatalf("set current user: %v", err)
	}

	if err := env.adapter.SetCurrentUserID(ctx, "user-404"); err != nil {
		t.Fatalf("store unknown id: %v", err)
	}
	user, err := env.svc.CurrentUser(ctx)
	if err != nil || user.ID != DefaultUserID {
		t.Fatalf("expected fallback to first user, got %+v %v", user, err)
	}
}

func TestInitializeDefaultData(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	adapter := NewAdapter(AdapterConfig{
		Store: store,
		Seed: seedFunc(func(context.Context) (domain.Dataset, error) {
			ds := domain.EmptyDataset()
			ds.Users = append(ds.Users, domain.User{ID: DefaultUserID})
			return ds, nil
		}),
	})
	svc := NewService(adapter, WithClock(newFakeClock()))

	ds, err := svc.InitializeDefaultData(ctx)
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if len(ds.Conditions) != 1 || len(svc.LoadData(ctx).Conditions) != 1 {
		t.Fatalf("expected built-in default dataset, got %d conditions", len(ds.Conditions))
	}

	if _, _, err := svc.SaveCondition(ctx, migraineRequest()); err != nil {
		t.Fatalf("save condition: %v", err)
	}
	ds, err = svc.InitializeDefaultData(ctx)
	if err != nil {
		t.Fatalf("initialize again: %v", err)
	}
	if len(ds.Conditions) != 2 {
		t.Fatalf("existing data must be kept, got %d conditions", len(ds.Conditions))
	}
}

func TestResetDataRestoresSeed(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	if _, _, err := env.svc.SaveCondition(ctx, migraineRequest()); err != nil {
		t.Fatalf("save condition: %v", err)
	}
	if err := env.svc.ResetData(ctx); err != nil {
		t.Fatalf("reset: %v", err)
	}
	conditions, _ := env.svc.Conditions(ctx)
	if len(conditions) != 1 || conditions[0].ID != "condition-001" {
		t.Fatalf("expected seed conditions after reset, got %+v", conditions)
	}
}

type metricsCall struct {
	op      string
	success bool
}

type captureMetrics struct {
	mu    sync.Mutex
	calls []metricsCall
}

func (c *captureMetrics) Observe(_ context.Context, op string, success bool, _ time.Duration) {
	c.mu.Lock()
	c.calls = append(c.calls, metricsCall{op: op, success: success})
	c.mu.Unlock()
}

type captureTracer struct {
	mu    sync.Mutex
	ended map[string]error
}

type captureSpan struct {
	tracer *captureTracer
	op     string
}

func (t *captureTracer) Start(ctx context.Context, op string) (context.Context, TraceSpan) {
	return ctx, captureSpan{tracer: t, op: op}
}

func (s captureSpan) End(err error) {
	s.tracer.mu.Lock()
	s.tracer.ended[s.op] = err
	s.tracer.mu.Unlock()
}

func TestServiceObservesOperations(t *testing.T) {
	ctx := context.Background()
	metrics := &captureMetrics{}
	tracer := &captureTracer{ended: map[string]error{}}
	env := newTestEnv(t, WithMetrics(metrics), WithTracer(tracer))

	if _, _, err := env.svc.AddSymptomRecord(ctx, domain.RecordInput{SymptomID: "symptom-001", Intensity: 3}); err != nil {
		t.Fatalf("add record: %v", err)
	}
	_, _, _ = env.svc.AddSymptomRecord(ctx, domain.RecordInput{SymptomID: "symptom-404", Intensity: 3})

	want := []metricsCall{{"add_symptom_record", true}, {"add_symptom_record", false}}
	if len(metrics.calls) != len(want) {
		t.Fatalf("unexpected metrics calls %+v", metrics.calls)
	}
	for i := range want {
		if metrics.calls[i] != want[i] {
			t.Fatalf("call %d = %+v, want %+v", i, metrics.calls[i], want[i])
		}
	}
	if err := tracer.ended["add_symptom_record"]; !IsNotFound(err) {
		t.Fatalf("expected span to end with not found, got %v", err)
	}
}
