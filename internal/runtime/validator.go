package runtime

import (
	"context"

	"github.com/aretw0/multipage/pkg/domain"
)

// requiredElements reports every required element whose bound value is empty.
func (c *Controller) requiredElements(p domain.Page) []domain.Failure {
	var failures []domain.Failure
	for _, el := range p.Elements {
		if !el.Required || el.BoundKey == "" {
			continue
		}
		if c.store.Empty(el.BoundKey) {
			failures = append(failures, domain.Failure{
				ID:     el.ID,
				Kind:   domain.FailureElement,
				Reason: domain.ReasonEmpty,
			})
		}
	}
	return failures
}

// requiredTasks reports required tasks of any trigger that are not completed.
func (c *Controller) requiredTasks(p domain.Page) []domain.Failure {
	var failures []domain.Failure
	for _, t := range p.Tasks {
		if !t.Required {
			continue
		}
		switch o := c.taskOutcome(t.ID); o.Status {
		case domain.TaskCompleted:
		case domain.TaskFailed:
			failures = append(failures, domain.Failure{
				ID:     t.ID,
				Kind:   domain.FailureTask,
				Reason: domain.ReasonFailed,
				Detail: o.Reason,
			})
		default:
			failures = append(failures, domain.Failure{
				ID:     t.ID,
				Kind:   domain.FailureTask,
				Reason: domain.ReasonPending,
			})
		}
	}
	return failures
}

func (c *Controller) refuse(ctx context.Context, p domain.Page, failures []domain.Failure) error {
	c.logger.Debug("advance refused", "page", p.ID, "failures", len(failures))
	c.emitValidationFailed(ctx, p, failures)
	return &domain.ValidationError{PageID: p.ID, Failures: failures}
}
