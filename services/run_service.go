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

// RunService creates, terminates and lists sequence runs. Advancement of due
// runs lives in TickService.
type RunService struct {
	store    store.Store
	activity *ActivityRecorder
	logger   *logrus.Entry
	now      func() time.Time
}

func NewRunService(st store.Store, activity *ActivityRecorder, logger *logrus.Logger) *RunService {
	return &RunService{
		store:    st,
		activity: activity,
		logger:   logger.WithField("component", "runs"),
		now:      time.Now,
	}
}

// Start enrolls a lead into an active sequence. The store's partial unique
// index rejects a second running run for the same (sequence, lead) pair.
func (s *RunService) Start(ctx context.Context, orgID, leadID, sequenceID, actorID uint) (*models.SequenceRun, error) {
	seq, err := s.store.FindSequence(ctx, orgID, sequenceID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrSequenceNotFound
	}
	if err != nil {
		return nil, err
	}
	if seq.Status != models.SequenceStatusActive {
		return nil, fmt.Errorf("%w: status is %s", ErrSequenceNotActive, seq.Status)
	}

	lead, err := s.store.FindLead(ctx, orgID, leadID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrLeadNotFound
	}
	if err != nil {
		return nil, err
	}

	startedAt := s.now().Add(time.Duration(seq.DefaultStartDelayMinutes) * time.Minute)
	run := &models.SequenceRun{
		OrgID:         orgID,
		SequenceID:    sequenceID,
		LeadID:        lead.ID,
		Status:        models.RunStatusRunning,
		StartedAt:     startedAt,
		NextStepIndex: 0,
		CreatedByID:   actorID,
	}
	if len(seq.Steps) > 0 {
		at := startedAt.Add(time.Duration(seq.Steps[0].DelayMinutes) * time.Minute)
		run.NextStepAt = &at
	}

	if err := s.store.CreateRun(ctx, run); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrSequenceAlreadyRunning
		}
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{"run_id": run.ID, "sequence_id": sequenceID, "lead_id": leadID}).Info("run started")
	s.activity.Record(orgID, leadID, "sequence_started", fmt.Sprintf("sequence %q", seq.Name))
	return run, nil
}

// Stop cancels a running run and bulk-cancels its pending and scheduled
// steps. Steps already sent keep their status. Stopping an already terminal
// run is a no-op.
func (s *RunService) Stop(ctx context.Context, orgID, leadID, runID uint) (*models.SequenceRun, error) {
	var stopped *models.SequenceRun
	err := s.store.Transaction(ctx, func(tx store.Store) error {
		run, err := tx.FindRun(ctx, orgID, leadID, runID)
		if errors.Is(err, store.ErrNotFound) {
			return ErrSequenceRunNotFound
		}
		if err != nil {
			return err
		}
		if run.Status != models.RunStatusRunning {
			stopped = run
			return nil
		}

		now := s.now()
		run.Status = models.RunStatusCanceled
		run.StoppedAt = &now
		run.NextStepAt = nil
		if err := tx.SaveRun(ctx, run); err != nil {
			return err
		}
		if err := tx.CancelPendingRunSteps(ctx, run.ID); err != nil {
			return err
		}
		stopped = run
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{"run_id": runID, "lead_id": leadID}).Info("run stopped")
	s.activity.Record(orgID, leadID, "sequence_stopped", fmt.Sprintf("run %d canceled", runID))
	return stopped, nil
}

// List returns the lead's runs newest-first with sequence summary and ordered
// run steps.
func (s *RunService) List(ctx context.Context, orgID, leadID uint) ([]models.SequenceRun, error) {
	return s.store.FindRunsByLead(ctx, orgID, leadID)
}

// HandleLeadReply cancels every running run for the lead whose sequence has
// stop-on-reply enabled. Called by the reply watcher.
func (s *RunService) HandleLeadReply(ctx context.Context, orgID, leadID uint) error {
	runs, err := s.store.FindRunningRunsByLead(ctx, orgID, leadID)
	if err != nil {
		return err
	}

	for _, run := range runs {
		if !run.Sequence.StopOnReply {
			continue
		}
		if _, err := s.Stop(ctx, orgID, leadID, run.ID); err != nil {
			s.logger.WithError(err).WithField("run_id", run.ID).Warn("failed to stop run on reply")
			continue
		}
		s.logger.WithFields(logrus.Fields{"run_id": run.ID, "lead_id": leadID}).Info("run stopped on reply")
	}
	return nil
}
