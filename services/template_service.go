package services

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"sakanly/models"
	"sakanly/store"
)

const templateListLimit = 100

// TemplateService manages message templates. Variable validation happens
// here, at save time; the renderer trusts stored templates.
type TemplateService struct {
	store  store.Store
	logger *logrus.Entry
}

func NewTemplateService(st store.Store, logger *logrus.Logger) *TemplateService {
	return &TemplateService{
		store:  st,
		logger: logger.WithField("component", "templates"),
	}
}

type TemplateInput struct {
	Name    string  `json:"name" validate:"required,max=200"`
	Channel string  `json:"channel" validate:"required,oneof=whatsapp email"`
	Subject *string `json:"subject"`
	Body    string  `json:"body" validate:"required"`
}

func validateTemplateContent(in TemplateInput) error {
	switch in.Channel {
	case models.ChannelEmail:
		if in.Subject == nil || *in.Subject == "" {
			return ErrTemplateSubjectRequired
		}
	case models.ChannelWhatsApp:
		if in.Subject != nil && *in.Subject != "" {
			return ErrTemplateSubjectForbidden
		}
	}
	return ValidateVariables(in.Body, in.Subject)
}

func (s *TemplateService) Create(ctx context.Context, orgID uint, in TemplateInput, actorID uint) (*models.MessageTemplate, error) {
	if err := validateTemplateContent(in); err != nil {
		return nil, err
	}

	combined := in.Body
	if in.Subject != nil {
		combined = *in.Subject + " " + in.Body
	}
	tpl := &models.MessageTemplate{
		OrgID:       orgID,
		Name:        in.Name,
		Channel:     in.Channel,
		Subject:     in.Subject,
		Body:        in.Body,
		Variables:   ExtractVariables(combined),
		CreatedByID: actorID,
	}
	if err := s.store.CreateTemplate(ctx, tpl); err != nil {
		return nil, err
	}
	return tpl, nil
}

func (s *TemplateService) FindAll(ctx context.Context, orgID uint, channel string) ([]models.MessageTemplate, error) {
	return s.store.FindTemplates(ctx, orgID, channel, templateListLimit)
}

func (s *TemplateService) FindOne(ctx context.Context, orgID, id uint) (*models.MessageTemplate, error) {
	tpl, err := s.store.FindTemplate(ctx, orgID, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrTemplateNotFound
	}
	return tpl, err
}

// Update replaces the template content. The channel is fixed at creation;
// steps referencing the template rely on it not changing.
func (s *TemplateService) Update(ctx context.Context, orgID, id uint, in TemplateInput) (*models.MessageTemplate, error) {
	tpl, err := s.FindOne(ctx, orgID, id)
	if err != nil {
		return nil, err
	}

	in.Channel = tpl.Channel
	if err := validateTemplateContent(in); err != nil {
		return nil, err
	}

	combined := in.Body
	if in.Subject != nil {
		combined = *in.Subject + " " + in.Body
	}
	tpl.Name = in.Name
	tpl.Subject = in.Subject
	tpl.Body = in.Body
	tpl.Variables = ExtractVariables(combined)

	if err := s.store.SaveTemplate(ctx, tpl); err != nil {
		return nil, err
	}
	return tpl, nil
}

func (s *TemplateService) Delete(ctx context.Context, orgID, id uint) error {
	err := s.store.DeleteTemplate(ctx, orgID, id)
	if errors.Is(err, store.ErrNotFound) {
		return ErrTemplateNotFound
	}
	return err
}
