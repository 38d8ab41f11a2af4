package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/use-agent/sellerwatch/models"
)

// Eligible reports whether task may run at now. DONE tasks never are; a
// task executed less than cooldown ago is not.
func Eligible(task models.Task, now time.Time, cooldown time.Duration) bool {
	if task.Status == models.StatusDone {
		return false
	}
	if task.LastExecution == nil {
		return true
	}
	return now.UTC().Sub(task.LastExecution.UTC()) >= cooldown
}

// selectEligible filters candidates in their given order. An eligible task
// that ran before is reset to PENDING in the store and in the returned
// copy. A task whose reset fails is left out of this cycle.
func (o *Orchestrator) selectEligible(ctx context.Context, candidates []models.Task, now time.Time, log *slog.Logger) []models.Task {
	eligible := make([]models.Task, 0, len(candidates))
	for _, task := range candidates {
		if !Eligible(task, now, o.opts.Cooldown) {
			log.Debug("task cooling down",
				"task_id", task.ID,
				"status", task.Status.String(),
				"last_execution", task.LastExecution,
			)
			continue
		}
		if task.LastExecution != nil {
			if err := o.store.SetStatus(ctx, task.ID, models.StatusPending); err != nil {
				log.Error("failed to reset task status",
					"task_id", task.ID,
					"code", models.ErrCodePersistence,
					"error", err,
				)
				continue
			}
			task.Status = models.StatusPending
		}
		eligible = append(eligible, task)
	}
	return eligible
}
