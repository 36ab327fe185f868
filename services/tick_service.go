package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"sakanly/models"
	"sakanly/store"
)

const tickBatchSize = 200

// TickService advances due runs. One pass claims each due run inside its own
// transaction (row lock on the run), materializes the fired step, moves the
// cursor, then dispatches after commit. A failed dispatch marks the run step
// failed and the pass moves on; one bad send never stops the loop.
type TickService struct {
	store      store.Store
	dispatcher MessageDispatcher
	activity   *ActivityRecorder
	logger     *logrus.Entry
	now        func() time.Time
}

func NewTickService(st store.Store, dispatcher MessageDispatcher, activity *ActivityRecorder, logger *logrus.Logger) *TickService {
	return &TickService{
		store:      st,
		dispatcher: dispatcher,
		activity:   activity,
		logger:     logger.WithField("component", "tick"),
		now:        time.Now,
	}
}

// TickStats summarizes one scheduler pass
type TickStats struct {
	Due       int
	Sent      int
	Failed    int
	Completed int
}

func (t *TickService) RunOnce(ctx context.Context) (TickStats, error) {
	var stats TickStats

	runs, err := t.store.DueRuns(ctx, t.now(), tickBatchSize)
	if err != nil {
		return stats, err
	}
	stats.Due = len(runs)

	for _, run := range runs {
		sent, completed, err := t.advanceRun(ctx, run.ID)
		if err != nil {
			stats.Failed++
			t.logger.WithError(err).WithField("run_id", run.ID).Error("failed to advance run")
			continue
		}
		if sent {
			stats.Sent++
		}
		if completed {
			stats.Completed++
		}
	}

	if stats.Due > 0 {
		t.logger.WithFields(logrus.Fields{
			"due": stats.Due, "sent": stats.Sent, "failed": stats.Failed, "completed": stats.Completed,
		}).Info("tick pass finished")
	}
	return stats, nil
}

// claim is the outcome of the transactional phase of one run advancement
type claim struct {
	run     *models.SequenceRun
	step    *models.SequenceStep
	runStep *models.SequenceRunStep
}

// advanceRun claims the due step and moves the cursor inside one transaction,
// then renders and dispatches outside it. The transaction re-checks the run
// status under a row lock, so a run canceled by a concurrent Stop is never
// dispatched, and a lock held by another scheduler instance serializes the
// claim. Reported booleans: message dispatched, run completed.
func (t *TickService) advanceRun(ctx context.Context, runID uint) (bool, bool, error) {
	now := t.now()
	var c *claim
	var completedEmpty bool

	err := t.store.Transaction(ctx, func(tx store.Store) error {
		run, err := tx.FindRunForUpdate(ctx, runID)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if run.Status != models.RunStatusRunning || run.NextStepAt == nil || run.NextStepAt.After(now) {
			return nil
		}

		seq, err := tx.FindSequence(ctx, run.OrgID, run.SequenceID)
		if err != nil {
			return err
		}
		if run.NextStepIndex >= len(seq.Steps) {
			// Cursor past the end (steps shrank while paused): nothing to fire.
			run.Status = models.RunStatusCompleted
			run.StoppedAt = &now
			run.NextStepAt = nil
			completedEmpty = true
			return tx.SaveRun(ctx, run)
		}

		step := seq.Steps[run.NextStepIndex]
		runStep := &models.SequenceRunStep{
			RunID:       run.ID,
			TemplateID:  step.TemplateID,
			OrderIndex:  step.OrderIndex,
			Channel:     step.Channel,
			Status:      models.RunStepStatusScheduled,
			ScheduledAt: &now,
		}
		if err := tx.CreateRunStep(ctx, runStep); err != nil {
			return err
		}

		if run.NextStepIndex+1 < len(seq.Steps) {
			next := seq.Steps[run.NextStepIndex+1]
			at := run.StartedAt.Add(time.Duration(next.DelayMinutes) * time.Minute)
			run.NextStepIndex++
			run.NextStepAt = &at
		} else {
			run.NextStepIndex++
			run.NextStepAt = nil
			run.Status = models.RunStatusCompleted
			run.StoppedAt = &now
		}
		if err := tx.SaveRun(ctx, run); err != nil {
			return err
		}

		c = &claim{run: run, step: &step, runStep: runStep}
		return nil
	})
	if err != nil || c == nil {
		return false, completedEmpty && err == nil, err
	}

	completed := c.run.Status == models.RunStatusCompleted
	if err := t.dispatch(ctx, c); err != nil {
		if markErr := t.store.MarkRunStepFailed(ctx, c.runStep.ID, err.Error()); markErr != nil {
			t.logger.WithError(markErr).WithField("run_step_id", c.runStep.ID).Error("failed to mark run step failed")
		}
		t.logger.WithError(err).WithFields(logrus.Fields{
			"run_id": c.run.ID, "order_index": c.step.OrderIndex, "channel": c.step.Channel,
		}).Warn("dispatch failed")
		return false, completed, nil
	}
	return true, completed, nil
}

func (t *TickService) dispatch(ctx context.Context, c *claim) error {
	tpl, err := t.store.FindTemplate(ctx, c.run.OrgID, c.step.TemplateID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrTemplateNotFound
	}
	if err != nil {
		return err
	}

	lead, err := t.store.FindLead(ctx, c.run.OrgID, c.run.LeadID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrLeadNotFound
	}
	if err != nil {
		return err
	}

	org, err := t.store.FindOrganization(ctx, c.run.OrgID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}

	var owner *models.User
	if lead.OwnerID != nil {
		owner, err = t.store.FindUser(ctx, *lead.OwnerID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
	}

	recipient := lead.Phone
	if c.step.Channel == models.ChannelEmail {
		recipient = lead.Email
	}
	if recipient == "" {
		return fmt.Errorf("lead %d has no %s recipient address", lead.ID, c.step.Channel)
	}

	provider, err := t.store.ActiveProvider(ctx, c.run.OrgID, c.step.Channel)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrProviderNotConfigured, c.step.Channel)
	}
	if err != nil {
		return err
	}

	renderCtx := BuildContext(lead, org, owner)
	body, subject := RenderTemplate(tpl.Body, tpl.Subject, renderCtx)

	messageID, err := t.dispatcher.Send(ctx, provider, recipient, subject, body)
	if err != nil {
		return err
	}

	updated, err := t.store.MarkRunStepSent(ctx, c.runStep.ID, messageID, t.now())
	if err != nil {
		return err
	}
	if !updated {
		// The run was stopped while the send was in flight; the cancel wins
		// and the row stays canceled.
		t.logger.WithField("run_step_id", c.runStep.ID).Info("run step canceled during dispatch")
		return nil
	}

	t.activity.Record(c.run.OrgID, lead.ID, "message_sent",
		fmt.Sprintf("step %d via %s", c.step.OrderIndex, c.step.Channel))
	return nil
}
