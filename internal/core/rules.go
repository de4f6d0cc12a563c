package core

import "healthtrack/pkg/domain"

// NewDefaultRulesEngine builds a rules engine with the built-in policy set.
func NewDefaultRulesEngine() *domain.RulesEngine {
	engine := domain.NewRulesEngine()
	engine.Register(NewSymptomReferenceRule())
	engine.Register(NewRecordReferenceRule())
	engine.Register(NewRecordIntensityRule())
	engine.Register(NewConditionLimitRule(0))
	return engine
}

// changedEntities collects the After values of changes touching entity.
func changedEntities[T any](changes []domain.Change, entity domain.EntityType) []T {
	var out []T
	for _, change := range changes {
		if change.Entity != entity {
			continue
		}
		if v, ok := change.After.(T); ok {
			out = append(out, v)
		}
	}
	return out
}
