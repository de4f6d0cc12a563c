package core

import (
	"context"
	"fmt"

	"healthtrack/internal/validation"
	"healthtrack/pkg/domain"
)

// NewConditionLimitRule caps the number of conditions a user may own. A
// non-positive limit uses validation.MaxConditionsPerUser.
func NewConditionLimitRule(limit int) domain.Rule {
	if limit <= 0 {
		limit = validation.MaxConditionsPerUser
	}
	return conditionLimitRule{limit: limit}
}

type conditionLimitRule struct {
	limit int
}

func (conditionLimitRule) Name() string { return "condition_limit" }

func (r conditionLimitRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	touched := make(map[string]bool)
	for _, change := range changes {
		if change.Entity != domain.EntityCondition || change.Action != domain.ActionCreate {
			continue
		}
		if c, ok := change.After.(domain.Condition); ok {
			touched[c.UserID] = true
		}
	}
	res := domain.Result{}
	if len(touched) == 0 {
		return res, nil
	}
	owned := make(map[string]int)
	for _, c := range view.ListConditions() {
		if touched[c.UserID] {
			owned[c.UserID]++
		}
	}
	for userID, count := range owned {
		if count <= r.limit {
			continue
		}
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     r.Name(),
			Severity: domain.SeverityBlock,
			Message:  fmt.Sprintf("user %s has %d conditions, limit is %d", userID, count, r.limit),
			Entity:   domain.EntityUser,
			EntityID: userID,
		})
	}
	return res, nil
}
