package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"sakanly/models"
	"sakanly/store"
)

const sequenceListLimit = 100

// SequenceService owns the sequence definition lifecycle: CRUD, status
// transitions and atomic step replacement.
type SequenceService struct {
	store  store.Store
	logger *logrus.Entry
}

func NewSequenceService(st store.Store, logger *logrus.Logger) *SequenceService {
	return &SequenceService{
		store:  st,
		logger: logger.WithField("component", "sequences"),
	}
}

type CreateSequenceInput struct {
	Name                     string `json:"name" validate:"required,max=200"`
	Description              string `json:"description"`
	DefaultStartDelayMinutes int    `json:"default_start_delay_minutes" validate:"min=0"`
	StopOnReply              *bool  `json:"stop_on_reply"`
}

func (s *SequenceService) Create(ctx context.Context, orgID uint, in CreateSequenceInput, actorID uint) (*models.Sequence, error) {
	stopOnReply := true
	if in.StopOnReply != nil {
		stopOnReply = *in.StopOnReply
	}

	seq := &models.Sequence{
		OrgID:                    orgID,
		Name:                     in.Name,
		Description:              in.Description,
		Status:                   models.SequenceStatusDraft,
		DefaultStartDelayMinutes: in.DefaultStartDelayMinutes,
		StopOnReply:              stopOnReply,
		CreatedByID:              actorID,
		UpdatedByID:              actorID,
	}
	if err := s.store.CreateSequence(ctx, seq); err != nil {
		return nil, err
	}
	return seq, nil
}

// FindAll returns the organization's sequences newest-first, capped at 100,
// with steps preloaded in order.
func (s *SequenceService) FindAll(ctx context.Context, orgID uint, status string) ([]models.Sequence, error) {
	return s.store.FindSequences(ctx, orgID, status, sequenceListLimit)
}

func (s *SequenceService) FindOne(ctx context.Context, orgID, id uint) (*models.Sequence, error) {
	seq, err := s.store.FindSequence(ctx, orgID, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrSequenceNotFound
	}
	return seq, err
}

// UpdateSequenceInput carries partial updates. A nil field is left untouched;
// a set field (including the empty string) overwrites.
type UpdateSequenceInput struct {
	Name                     *string `json:"name"`
	Description              *string `json:"description"`
	DefaultStartDelayMinutes *int    `json:"default_start_delay_minutes"`
	StopOnReply              *bool   `json:"stop_on_reply"`
}

func (s *SequenceService) Update(ctx context.Context, orgID, id uint, in UpdateSequenceInput, actorID uint) (*models.Sequence, error) {
	fields := map[string]interface{}{"updated_by_id": actorID}
	if in.Name != nil {
		fields["name"] = *in.Name
	}
	if in.Description != nil {
		fields["description"] = *in.Description
	}
	if in.DefaultStartDelayMinutes != nil {
		fields["default_start_delay_minutes"] = *in.DefaultStartDelayMinutes
	}
	if in.StopOnReply != nil {
		fields["stop_on_reply"] = *in.StopOnReply
	}

	if err := s.store.UpdateSequenceFields(ctx, orgID, id, fields); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrSequenceNotFound
		}
		return nil, err
	}
	return s.FindOne(ctx, orgID, id)
}

// Activate transitions a sequence to active. A sequence without steps cannot
// be activated.
func (s *SequenceService) Activate(ctx context.Context, orgID, id, actorID uint) (*models.Sequence, error) {
	seq, err := s.FindOne(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if len(seq.Steps) == 0 {
		return nil, fmt.Errorf("%w: cannot activate a sequence without steps", ErrSequenceInvalidSteps)
	}
	return s.transition(ctx, orgID, id, actorID, models.SequenceStatusActive)
}

func (s *SequenceService) Pause(ctx context.Context, orgID, id, actorID uint) (*models.Sequence, error) {
	return s.transition(ctx, orgID, id, actorID, models.SequenceStatusPaused)
}

func (s *SequenceService) Archive(ctx context.Context, orgID, id, actorID uint) (*models.Sequence, error) {
	return s.transition(ctx, orgID, id, actorID, models.SequenceStatusArchived)
}

func (s *SequenceService) transition(ctx context.Context, orgID, id, actorID uint, status string) (*models.Sequence, error) {
	err := s.store.UpdateSequenceFields(ctx, orgID, id, map[string]interface{}{
		"status":        status,
		"updated_by_id": actorID,
	})
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrSequenceNotFound
		}
		return nil, err
	}
	s.logger.WithFields(logrus.Fields{"sequence_id": id, "status": status}).Info("sequence status changed")
	return s.FindOne(ctx, orgID, id)
}

type StepInput struct {
	OrderIndex   int             `json:"order_index" validate:"min=0"`
	Channel      string          `json:"channel" validate:"required,oneof=whatsapp email"`
	TemplateID   uint            `json:"template_id" validate:"required"`
	DelayMinutes int             `json:"delay_minutes" validate:"min=0"`
	Conditions   json.RawMessage `json:"conditions,omitempty"`
	CreateTask   json.RawMessage `json:"create_task,omitempty"`
	Notify       json.RawMessage `json:"notify,omitempty"`
}

// ReplaceSteps swaps the sequence's whole step list. All validation runs
// before any write; the delete-all/insert-all happens in one transaction so a
// rejected input leaves the stored steps untouched.
func (s *SequenceService) ReplaceSteps(ctx context.Context, orgID, sequenceID uint, inputs []StepInput) (*models.Sequence, error) {
	seq, err := s.FindOne(ctx, orgID, sequenceID)
	if err != nil {
		return nil, err
	}
	if seq.Status != models.SequenceStatusDraft && seq.Status != models.SequenceStatusPaused {
		return nil, fmt.Errorf("%w: steps can only be replaced while draft or paused", ErrSequenceInvalidSteps)
	}

	sorted := make([]StepInput, len(inputs))
	copy(sorted, inputs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].OrderIndex < sorted[j].OrderIndex })

	for i, in := range sorted {
		if in.OrderIndex != i {
			return nil, fmt.Errorf("%w: orderIndex must be 0..N without gaps", ErrSequenceInvalidSteps)
		}
		if i > 0 && in.DelayMinutes <= sorted[i-1].DelayMinutes {
			return nil, fmt.Errorf("%w: delayMinutes must be strictly increasing", ErrSequenceInvalidSteps)
		}
	}

	steps := make([]models.SequenceStep, 0, len(sorted))
	for _, in := range sorted {
		tpl, err := s.store.FindTemplate(ctx, orgID, in.TemplateID)
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: template %d not found", ErrSequenceInvalidSteps, in.TemplateID)
		}
		if err != nil {
			return nil, err
		}
		if tpl.Channel != in.Channel {
			return nil, fmt.Errorf("%w: step %d is %s but template %q is %s",
				ErrTemplateChannelMismatch, in.OrderIndex, in.Channel, tpl.Name, tpl.Channel)
		}

		steps = append(steps, models.SequenceStep{
			SequenceID:   sequenceID,
			TemplateID:   in.TemplateID,
			OrderIndex:   in.OrderIndex,
			Channel:      in.Channel,
			DelayMinutes: in.DelayMinutes,
			Conditions:   in.Conditions,
			CreateTask:   in.CreateTask,
			Notify:       in.Notify,
		})
	}

	if err := s.store.ReplaceSequenceSteps(ctx, sequenceID, steps); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{"sequence_id": sequenceID, "steps": len(steps)}).Info("sequence steps replaced")
	return s.FindOne(ctx, orgID, sequenceID)
}
