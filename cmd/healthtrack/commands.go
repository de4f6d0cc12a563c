package main

import (
	"context"
	"flag"
	"io"
	"strconv"
	"strings"

	"healthtrack/internal/core"
	"healthtrack/internal/validation"
	"healthtrack/pkg/domain"
)

func newCommandFlags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return usagef("%v", err)
	}
	if fs.NArg() > 0 {
		return usagef("unexpected arguments %v", fs.Args())
	}
	return nil
}

type datasetSummary struct {
	Users            int `json:"users"`
	Conditions       int `json:"conditions"`
	Symptoms         int `json:"symptoms"`
	SymptomRecords   int `json:"symptomRecords"`
	ConditionUpdates int `json:"conditionUpdates"`
}

func runInit(ctx context.Context, svc *core.Service, args []string, stdout io.Writer) error {
	if err := parseFlags(newCommandFlags("init"), args); err != nil {
		return err
	}
	ds, err := svc.InitializeDefaultData(ctx)
	if err != nil {
		return err
	}
	return writeJSON(stdout, datasetSummary{
		Users:            len(ds.Users),
		Conditions:       len(ds.Conditions),
		Symptoms:         len(ds.Symptoms),
		SymptomRecords:   len(ds.SymptomRecords),
		ConditionUpdates: len(ds.ConditionUpdates),
	})
}

func runStats(ctx context.Context, svc *core.Service, args []string, stdout io.Writer) error {
	if err := parseFlags(newCommandFlags("stats"), args); err != nil {
		return err
	}
	return writeJSON(stdout, svc.UserStats(ctx))
}

type conditionView struct {
	domain.Condition
	Symptoms []domain.Symptom `json:"symptoms"`
}

func runConditions(ctx context.Context, svc *core.Service, args []string, stdout io.Writer) error {
	if err := parseFlags(newCommandFlags("conditions"), args); err != nil {
		return err
	}
	conditions, err := svc.Conditions(ctx)
	if err != nil {
		return err
	}
	out := make([]conditionView, 0, len(conditions))
	for _, c := range conditions {
		out = append(out, conditionView{Condition: c, Symptoms: svc.SymptomsByCondition(ctx, c.ID)})
	}
	return writeJSON(stdout, out)
}

func parseSymptom(raw string) (domain.SymptomInput, error) {
	i := strings.LastIndex(raw, ":")
	if i <= 0 {
		return domain.SymptomInput{}, usagef("symptom %q must be name:intensity", raw)
	}
	intensity, ok := validation.ParseIntensity(raw[i+1:])
	if !ok {
		return domain.SymptomInput{}, usagef("symptom %q intensity must be between %d and %d", raw, validation.MinIntensity, validation.MaxIntensity)
	}
	return domain.SymptomInput{Name: strings.TrimSpace(raw[:i]), Intensity: intensity}, nil
}

func runAddCondition(ctx context.Context, svc *core.Service, args []string, stdout io.Writer) error {
	fs := newCommandFlags("add-condition")
	var req domain.NewConditionRequest
	var symptoms symptomFlags
	fs.StringVar(&req.Condition.Name, "name", "", "condition name")
	fs.StringVar(&req.Condition.StartDate, "start", "", "start date (YYYY-MM-DD)")
	fs.StringVar(&req.Condition.Description, "description", "", "condition description")
	fs.Var(&symptoms, "symptom", "symptom as name:intensity (repeatable)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if req.Condition.Name == "" || req.Condition.StartDate == "" {
		return usagef("-name and -start are required")
	}
	for _, raw := range symptoms {
		in, err := parseSymptom(raw)
		if err != nil {
			return err
		}
		req.Symptoms = append(req.Symptoms, in)
	}
	created, _, err := svc.SaveCondition(ctx, req)
	if err != nil {
		return err
	}
	return writeJSON(stdout, conditionView{Condition: created, Symptoms: svc.SymptomsByCondition(ctx, created.ID)})
}

func runUpdateCondition(ctx context.Context, svc *core.Service, args []string, stdout io.Writer) error {
	fs := newCommandFlags("update-condition")
	var id, status, cured string
	fs.StringVar(&id, "id", "", "condition id")
	fs.StringVar(&status, "status", "", "new status (active|inactive)")
	fs.StringVar(&cured, "cured", "", "mark cured (true|false)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if id == "" {
		return usagef("-id is required")
	}
	var patch domain.ConditionPatch
	if status != "" {
		s := domain.ConditionStatus(status)
		if !s.Valid() {
			return usagef("status %q must be active or inactive", status)
		}
		patch.Status = &s
	}
	if cured != "" {
		v, err := strconv.ParseBool(cured)
		if err != nil {
			return usagef("cured %q must be true or false", cured)
		}
		patch.IsCured = &v
	}
	updated, _, err := svc.UpdateCondition(ctx, id, patch)
	if err != nil {
		return err
	}
	return writeJSON(stdout, updated)
}

func runRecord(ctx context.Context, svc *core.Service, args []string, stdout io.Writer) error {
	fs := newCommandFlags("record")
	var in domain.RecordInput
	var intensity string
	fs.StringVar(&in.SymptomID, "symptom", "", "symptom id")
	fs.StringVar(&intensity, "intensity", "", "intensity 1-10")
	fs.StringVar(&in.Notes, "notes", "", "free-text notes")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if in.SymptomID == "" {
		return usagef("-symptom is required")
	}
	v, ok := validation.ParseIntensity(intensity)
	if !ok {
		return usagef("intensity must be between %d and %d", validation.MinIntensity, validation.MaxIntensity)
	}
	in.Intensity = v
	created, _, err := svc.AddSymptomRecord(ctx, in)
	if err != nil {
		return err
	}
	return writeJSON(stdout, created)
}

func runUseUser(ctx context.Context, svc *core.Service, args []string, stdout io.Writer) error {
	fs := newCommandFlags("use-user")
	var id string
	fs.StringVar(&id, "id", "", "user id")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if err := svc.SetCurrentUser(ctx, id); err != nil {
		return err
	}
	user, err := svc.CurrentUser(ctx)
	if err != nil {
		return err
	}
	return writeJSON(stdout, map[string]string{"id": user.ID, "name": user.Name})
}

func runReset(ctx context.Context, svc *core.Service, args []string, stdout io.Writer) error {
	if err := parseFlags(newCommandFlags("reset"), args); err != nil {
		return err
	}
	if err := svc.ResetData(ctx); err != nil {
		return err
	}
	return writeJSON(stdout, map[string]bool{"reset": true})
}
