package store

import (
	"context"
	"errors"
	"time"

	"sakanly/models"
)

// Sentinel errors the gorm layer translates to, so services never depend on
// driver error types.
var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
)

// LeadFilter narrows lead listings
type LeadFilter struct {
	Status string
	Wilaya string
	Search string
	Page   int
	Limit  int
}

// SequenceRepo covers sequence definitions and their step sets. Every method
// that touches tenant data takes the organization id as a mandatory filter.
type SequenceRepo interface {
	CreateSequence(ctx context.Context, seq *models.Sequence) error
	FindSequences(ctx context.Context, orgID uint, status string, limit int) ([]models.Sequence, error)
	FindSequence(ctx context.Context, orgID, id uint) (*models.Sequence, error)
	UpdateSequenceFields(ctx context.Context, orgID, id uint, fields map[string]interface{}) error
	ReplaceSequenceSteps(ctx context.Context, sequenceID uint, steps []models.SequenceStep) error
}

// TemplateRepo covers message templates
type TemplateRepo interface {
	CreateTemplate(ctx context.Context, tpl *models.MessageTemplate) error
	FindTemplates(ctx context.Context, orgID uint, channel string, limit int) ([]models.MessageTemplate, error)
	FindTemplate(ctx context.Context, orgID, id uint) (*models.MessageTemplate, error)
	SaveTemplate(ctx context.Context, tpl *models.MessageTemplate) error
	DeleteTemplate(ctx context.Context, orgID, id uint) error
}

// RunRepo covers runs and their materialized steps
type RunRepo interface {
	CreateRun(ctx context.Context, run *models.SequenceRun) error
	FindRun(ctx context.Context, orgID, leadID, runID uint) (*models.SequenceRun, error)
	FindRunForUpdate(ctx context.Context, runID uint) (*models.SequenceRun, error)
	FindRunsByLead(ctx context.Context, orgID, leadID uint) ([]models.SequenceRun, error)
	FindRunningRunsByLead(ctx context.Context, orgID, leadID uint) ([]models.SequenceRun, error)
	DueRuns(ctx context.Context, now time.Time, limit int) ([]models.SequenceRun, error)
	SaveRun(ctx context.Context, run *models.SequenceRun) error
	CreateRunStep(ctx context.Context, step *models.SequenceRunStep) error
	CancelPendingRunSteps(ctx context.Context, runID uint) error
	MarkRunStepSent(ctx context.Context, runStepID uint, messageID string, at time.Time) (bool, error)
	MarkRunStepFailed(ctx context.Context, runStepID uint, message string) error
}

// LeadRepo covers CRM leads
type LeadRepo interface {
	CreateLead(ctx context.Context, lead *models.Lead) error
	FindLead(ctx context.Context, orgID, id uint) (*models.Lead, error)
	FindLeadByEmail(ctx context.Context, orgID uint, email string) (*models.Lead, error)
	FindLeads(ctx context.Context, orgID uint, filter LeadFilter) ([]models.Lead, int64, error)
	SaveLead(ctx context.Context, lead *models.Lead) error
	DeleteLead(ctx context.Context, orgID, id uint) error
	CreateLeadActivity(ctx context.Context, activity *models.LeadActivity) error
}

// OrgRepo covers organizations and users
type OrgRepo interface {
	CreateOrganization(ctx context.Context, org *models.Organization) error
	FindOrganization(ctx context.Context, id uint) (*models.Organization, error)
	CreateUser(ctx context.Context, user *models.User) error
	FindUser(ctx context.Context, id uint) (*models.User, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
}

// ProviderRepo covers channel provider credentials
type ProviderRepo interface {
	CreateProvider(ctx context.Context, p *models.ChannelProvider) error
	FindProviders(ctx context.Context, orgID uint) ([]models.ChannelProvider, error)
	FindProvider(ctx context.Context, orgID, id uint) (*models.ChannelProvider, error)
	SaveProvider(ctx context.Context, p *models.ChannelProvider) error
	ActiveProvider(ctx context.Context, orgID uint, channel string) (*models.ChannelProvider, error)
	ActiveIMAPProviders(ctx context.Context) ([]models.ChannelProvider, error)
}

// Store aggregates the repositories. Transaction executes fn against a Store
// bound to one database transaction; an error from fn rolls everything back.
type Store interface {
	SequenceRepo
	TemplateRepo
	RunRepo
	LeadRepo
	OrgRepo
	ProviderRepo

	Transaction(ctx context.Context, fn func(Store) error) error
}
