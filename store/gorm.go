package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"sakanly/models"
)

// gormStore implements Store on top of a *gorm.DB opened with
// TranslateError, so unique violations arrive as gorm.ErrDuplicatedKey.
type gormStore struct {
	db *gorm.DB
}

func New(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) Transaction(ctx context.Context, fn func(Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormStore{db: tx})
	})
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicate
	default:
		return err
	}
}

// --- sequences ---

func (s *gormStore) CreateSequence(ctx context.Context, seq *models.Sequence) error {
	return translate(s.db.WithContext(ctx).Create(seq).Error)
}

func (s *gormStore) FindSequences(ctx context.Context, orgID uint, status string, limit int) ([]models.Sequence, error) {
	q := s.db.WithContext(ctx).
		Where("org_id = ?", orgID).
		Preload("Steps", func(db *gorm.DB) *gorm.DB {
			return db.Order("order_index ASC")
		}).
		Order("created_at DESC").
		Limit(limit)
	if status != "" {
		q = q.Where("status = ?", status)
	}

	var sequences []models.Sequence
	if err := q.Find(&sequences).Error; err != nil {
		return nil, translate(err)
	}
	return sequences, nil
}

func (s *gormStore) FindSequence(ctx context.Context, orgID, id uint) (*models.Sequence, error) {
	var seq models.Sequence
	err := s.db.WithContext(ctx).
		Where("id = ? AND org_id = ?", id, orgID).
		Preload("Steps", func(db *gorm.DB) *gorm.DB {
			return db.Order("order_index ASC")
		}).
		First(&seq).Error
	if err != nil {
		return nil, translate(err)
	}
	return &seq, nil
}

func (s *gormStore) UpdateSequenceFields(ctx context.Context, orgID, id uint, fields map[string]interface{}) error {
	res := s.db.WithContext(ctx).
		Model(&models.Sequence{}).
		Where("id = ? AND org_id = ?", id, orgID).
		Updates(fields)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *gormStore) ReplaceSequenceSteps(ctx context.Context, sequenceID uint, steps []models.SequenceStep) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("sequence_id = ?", sequenceID).
			Unscoped().
			Delete(&models.SequenceStep{}).Error; err != nil {
			return err
		}
		if len(steps) == 0 {
			return nil
		}
		return tx.Create(&steps).Error
	})
}

// --- templates ---

func (s *gormStore) CreateTemplate(ctx context.Context, tpl *models.MessageTemplate) error {
	return translate(s.db.WithContext(ctx).Create(tpl).Error)
}

func (s *gormStore) FindTemplates(ctx context.Context, orgID uint, channel string, limit int) ([]models.MessageTemplate, error) {
	q := s.db.WithContext(ctx).
		Where("org_id = ?", orgID).
		Order("created_at DESC").
		Limit(limit)
	if channel != "" {
		q = q.Where("channel = ?", channel)
	}

	var templates []models.MessageTemplate
	if err := q.Find(&templates).Error; err != nil {
		return nil, translate(err)
	}
	return templates, nil
}

func (s *gormStore) FindTemplate(ctx context.Context, orgID, id uint) (*models.MessageTemplate, error) {
	var tpl models.MessageTemplate
	err := s.db.WithContext(ctx).
		Where("id = ? AND org_id = ?", id, orgID).
		First(&tpl).Error
	if err != nil {
		return nil, translate(err)
	}
	return &tpl, nil
}

func (s *gormStore) SaveTemplate(ctx context.Context, tpl *models.MessageTemplate) error {
	return translate(s.db.WithContext(ctx).Save(tpl).Error)
}

func (s *gormStore) DeleteTemplate(ctx context.Context, orgID, id uint) error {
	res := s.db.WithContext(ctx).
		Where("id = ? AND org_id = ?", id, orgID).
		Delete(&models.MessageTemplate{})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// --- runs ---

func (s *gormStore) CreateRun(ctx context.Context, run *models.SequenceRun) error {
	return translate(s.db.WithContext(ctx).Create(run).Error)
}

func (s *gormStore) FindRun(ctx context.Context, orgID, leadID, runID uint) (*models.SequenceRun, error) {
	var run models.SequenceRun
	err := s.db.WithContext(ctx).
		Where("id = ? AND org_id = ? AND lead_id = ?", runID, orgID, leadID).
		First(&run).Error
	if err != nil {
		return nil, translate(err)
	}
	return &run, nil
}

func (s *gormStore) FindRunForUpdate(ctx context.Context, runID uint) (*models.SequenceRun, error) {
	var run models.SequenceRun
	err := s.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&run, runID).Error
	if err != nil {
		return nil, translate(err)
	}
	return &run, nil
}

func (s *gormStore) FindRunsByLead(ctx context.Context, orgID, leadID uint) ([]models.SequenceRun, error) {
	var runs []models.SequenceRun
	err := s.db.WithContext(ctx).
		Where("org_id = ? AND lead_id = ?", orgID, leadID).
		Preload("Sequence").
		Preload("Steps", func(db *gorm.DB) *gorm.DB {
			return db.Order("order_index ASC")
		}).
		Order("created_at DESC").
		Find(&runs).Error
	if err != nil {
		return nil, translate(err)
	}
	return runs, nil
}

func (s *gormStore) FindRunningRunsByLead(ctx context.Context, orgID, leadID uint) ([]models.SequenceRun, error) {
	var runs []models.SequenceRun
	err := s.db.WithContext(ctx).
		Where("org_id = ? AND lead_id = ? AND status = ?", orgID, leadID, models.RunStatusRunning).
		Preload("Sequence").
		Find(&runs).Error
	if err != nil {
		return nil, translate(err)
	}
	return runs, nil
}

func (s *gormStore) DueRuns(ctx context.Context, now time.Time, limit int) ([]models.SequenceRun, error) {
	var runs []models.SequenceRun
	err := s.db.WithContext(ctx).
		Where("status = ? AND next_step_at IS NOT NULL AND next_step_at <= ?", models.RunStatusRunning, now).
		Order("next_step_at ASC").
		Limit(limit).
		Find(&runs).Error
	if err != nil {
		return nil, translate(err)
	}
	return runs, nil
}

func (s *gormStore) SaveRun(ctx context.Context, run *models.SequenceRun) error {
	return translate(s.db.WithContext(ctx).Save(run).Error)
}

func (s *gormStore) CreateRunStep(ctx context.Context, step *models.SequenceRunStep) error {
	return translate(s.db.WithContext(ctx).Create(step).Error)
}

func (s *gormStore) CancelPendingRunSteps(ctx context.Context, runID uint) error {
	return translate(s.db.WithContext(ctx).
		Model(&models.SequenceRunStep{}).
		Where("run_id = ? AND status IN ?", runID,
			[]string{models.RunStepStatusPending, models.RunStepStatusScheduled}).
		Update("status", models.RunStepStatusCanceled).Error)
}

func (s *gormStore) MarkRunStepSent(ctx context.Context, runStepID uint, messageID string, at time.Time) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(&models.SequenceRunStep{}).
		Where("id = ? AND status = ?", runStepID, models.RunStepStatusScheduled).
		Updates(map[string]interface{}{
			"status":     models.RunStepStatusSent,
			"sent_at":    at,
			"message_id": messageID,
		})
	if res.Error != nil {
		return false, translate(res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (s *gormStore) MarkRunStepFailed(ctx context.Context, runStepID uint, message string) error {
	return translate(s.db.WithContext(ctx).
		Model(&models.SequenceRunStep{}).
		Where("id = ? AND status = ?", runStepID, models.RunStepStatusScheduled).
		Updates(map[string]interface{}{
			"status":     models.RunStepStatusFailed,
			"last_error": message,
		}).Error)
}

// --- leads ---

func (s *gormStore) CreateLead(ctx context.Context, lead *models.Lead) error {
	return translate(s.db.WithContext(ctx).Create(lead).Error)
}

func (s *gormStore) FindLead(ctx context.Context, orgID, id uint) (*models.Lead, error) {
	var lead models.Lead
	err := s.db.WithContext(ctx).
		Where("id = ? AND org_id = ?", id, orgID).
		First(&lead).Error
	if err != nil {
		return nil, translate(err)
	}
	return &lead, nil
}

func (s *gormStore) FindLeadByEmail(ctx context.Context, orgID uint, email string) (*models.Lead, error) {
	var lead models.Lead
	err := s.db.WithContext(ctx).
		Where("org_id = ? AND email = ?", orgID, email).
		First(&lead).Error
	if err != nil {
		return nil, translate(err)
	}
	return &lead, nil
}

func (s *gormStore) FindLeads(ctx context.Context, orgID uint, filter LeadFilter) ([]models.Lead, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.Lead{}).Where("org_id = ?", orgID)
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.Wilaya != "" {
		q = q.Where("wilaya = ?", filter.Wilaya)
	}
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		q = q.Where("full_name ILIKE ? OR phone ILIKE ? OR email ILIKE ?", like, like, like)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, translate(err)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	limit := filter.Limit
	if limit < 1 || limit > 100 {
		limit = 20
	}

	var leads []models.Lead
	err := q.Order("created_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&leads).Error
	if err != nil {
		return nil, 0, translate(err)
	}
	return leads, total, nil
}

func (s *gormStore) SaveLead(ctx context.Context, lead *models.Lead) error {
	return translate(s.db.WithContext(ctx).Save(lead).Error)
}

func (s *gormStore) DeleteLead(ctx context.Context, orgID, id uint) error {
	res := s.db.WithContext(ctx).
		Where("id = ? AND org_id = ?", id, orgID).
		Delete(&models.Lead{})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *gormStore) CreateLeadActivity(ctx context.Context, activity *models.LeadActivity) error {
	return translate(s.db.WithContext(ctx).Create(activity).Error)
}

// --- organizations and users ---

func (s *gormStore) CreateOrganization(ctx context.Context, org *models.Organization) error {
	return translate(s.db.WithContext(ctx).Create(org).Error)
}

func (s *gormStore) FindOrganization(ctx context.Context, id uint) (*models.Organization, error) {
	var org models.Organization
	if err := s.db.WithContext(ctx).First(&org, id).Error; err != nil {
		return nil, translate(err)
	}
	return &org, nil
}

func (s *gormStore) CreateUser(ctx context.Context, user *models.User) error {
	return translate(s.db.WithContext(ctx).Create(user).Error)
}

func (s *gormStore) FindUser(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (s *gormStore) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

// --- providers ---

func (s *gormStore) CreateProvider(ctx context.Context, p *models.ChannelProvider) error {
	return translate(s.db.WithContext(ctx).Create(p).Error)
}

func (s *gormStore) FindProviders(ctx context.Context, orgID uint) ([]models.ChannelProvider, error) {
	var providers []models.ChannelProvider
	err := s.db.WithContext(ctx).
		Where("org_id = ?", orgID).
		Order("created_at DESC").
		Find(&providers).Error
	if err != nil {
		return nil, translate(err)
	}
	return providers, nil
}

func (s *gormStore) FindProvider(ctx context.Context, orgID, id uint) (*models.ChannelProvider, error) {
	var p models.ChannelProvider
	err := s.db.WithContext(ctx).
		Where("id = ? AND org_id = ?", id, orgID).
		First(&p).Error
	if err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (s *gormStore) SaveProvider(ctx context.Context, p *models.ChannelProvider) error {
	return translate(s.db.WithContext(ctx).Save(p).Error)
}

func (s *gormStore) ActiveProvider(ctx context.Context, orgID uint, channel string) (*models.ChannelProvider, error) {
	var p models.ChannelProvider
	err := s.db.WithContext(ctx).
		Where("org_id = ? AND channel = ? AND is_active = ?", orgID, channel, true).
		First(&p).Error
	if err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (s *gormStore) ActiveIMAPProviders(ctx context.Context) ([]models.ChannelProvider, error) {
	var providers []models.ChannelProvider
	err := s.db.WithContext(ctx).
		Where("channel = ? AND is_active = ? AND imap_host <> ''", models.ChannelEmail, true).
		Find(&providers).Error
	if err != nil {
		return nil, translate(err)
	}
	return providers, nil
}
