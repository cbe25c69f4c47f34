package core

import (
	"context"
	"fmt"

	"agroqc/pkg/domain"
)

// BatchLifecycleRule blocks batch status values and transitions outside the lifecycle.
func BatchLifecycleRule() domain.Rule {
	return batchLifecycleRule{}
}

type batchLifecycleRule struct{}

func (batchLifecycleRule) Name() string { return "batch_lifecycle" }

func (r batchLifecycleRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	block := func(code, msg string) {
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     r.Name(),
			Severity: domain.SeverityBlock,
			Message:  msg,
			Entity:   domain.EntityBatch,
			EntityID: code,
		})
	}
	for _, change := range changes {
		if change.Entity != domain.EntityBatch {
			continue
		}
		after, ok := change.After.(domain.Batch)
		if !ok {
			continue
		}
		if !after.Status.Valid() {
			block(after.Code, fmt.Sprintf("batch %s is set to invalid status %q", after.Code, after.Status))
			continue
		}
		switch change.Action {
		case domain.ActionCreate:
			if after.Status != domain.BatchNew {
				block(after.Code, fmt.Sprintf("batch %s must be created NEW, got %s", after.Code, after.Status))
			}
		case domain.ActionUpdate:
			before, ok := change.Before.(domain.Batch)
			if !ok || before.Status == after.Status {
				continue
			}
			if !domain.CanTransition(before.Status, after.Status) {
				block(after.Code, fmt.Sprintf("cannot move batch %s from %s to %s", after.Code, before.Status, after.Status))
			}
		}
	}
	return res, nil
}
