package services

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"sakanly/models"
	"sakanly/store"
)

// memStore is an in-memory store.Store used by the service tests. It mirrors
// the behaviors the services rely on: the active-run uniqueness constraint,
// ordered step preloads and the conditional run-step updates.
type memStore struct {
	mu sync.Mutex

	lastID     uint
	sequences  map[uint]*models.Sequence
	steps      map[uint][]models.SequenceStep // by sequence id
	templates  map[uint]*models.MessageTemplate
	runs       map[uint]*models.SequenceRun
	runSteps   map[uint]*models.SequenceRunStep
	leads      map[uint]*models.Lead
	orgs       map[uint]*models.Organization
	users      map[uint]*models.User
	providers  map[uint]*models.ChannelProvider
	activities []*models.LeadActivity
}

func newMemStore() *memStore {
	return &memStore{
		sequences: make(map[uint]*models.Sequence),
		steps:     make(map[uint][]models.SequenceStep),
		templates: make(map[uint]*models.MessageTemplate),
		runs:      make(map[uint]*models.SequenceRun),
		runSteps:  make(map[uint]*models.SequenceRunStep),
		leads:     make(map[uint]*models.Lead),
		orgs:      make(map[uint]*models.Organization),
		users:     make(map[uint]*models.User),
		providers: make(map[uint]*models.ChannelProvider),
	}
}

func (m *memStore) nextID() uint {
	m.lastID++
	return m.lastID
}

func (m *memStore) Transaction(ctx context.Context, fn func(store.Store) error) error {
	return fn(m)
}

// --- sequences ---

func (m *memStore) CreateSequence(ctx context.Context, seq *models.Sequence) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	seq.ID = m.nextID()
	seq.CreatedAt = time.Now()
	copied := *seq
	m.sequences[seq.ID] = &copied
	return nil
}

func (m *memStore) sequenceWithSteps(seq *models.Sequence) *models.Sequence {
	copied := *seq
	steps := make([]models.SequenceStep, len(m.steps[seq.ID]))
	copy(steps, m.steps[seq.ID])
	sort.Slice(steps, func(i, j int) bool { return steps[i].OrderIndex < steps[j].OrderIndex })
	copied.Steps = steps
	return &copied
}

func (m *memStore) FindSequences(ctx context.Context, orgID uint, status string, limit int) ([]models.Sequence, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Sequence
	for _, seq := range m.sequences {
		if seq.OrgID != orgID {
			continue
		}
		if status != "" && seq.Status != status {
			continue
		}
		out = append(out, *m.sequenceWithSteps(seq))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) FindSequence(ctx context.Context, orgID, id uint) (*models.Sequence, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seq, ok := m.sequences[id]
	if !ok || seq.OrgID != orgID {
		return nil, store.ErrNotFound
	}
	return m.sequenceWithSteps(seq), nil
}

func (m *memStore) UpdateSequenceFields(ctx context.Context, orgID, id uint, fields map[string]interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	seq, ok := m.sequences[id]
	if !ok || seq.OrgID != orgID {
		return store.ErrNotFound
	}
	for key, value := range fields {
		switch key {
		case "name":
			seq.Name = value.(string)
		case "description":
			seq.Description = value.(string)
		case "status":
			seq.Status = value.(string)
		case "default_start_delay_minutes":
			seq.DefaultStartDelayMinutes = value.(int)
		case "stop_on_reply":
			seq.StopOnReply = value.(bool)
		case "updated_by_id":
			seq.UpdatedByID = value.(uint)
		}
	}
	return nil
}

func (m *memStore) ReplaceSequenceSteps(ctx context.Context, sequenceID uint, steps []models.SequenceStep) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	replaced := make([]models.SequenceStep, len(steps))
	copy(replaced, steps)
	for i := range replaced {
		replaced[i].ID = m.nextID()
	}
	m.steps[sequenceID] = replaced
	return nil
}

// --- templates ---

func (m *memStore) CreateTemplate(ctx context.Context, tpl *models.MessageTemplate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tpl.ID = m.nextID()
	copied := *tpl
	m.templates[tpl.ID] = &copied
	return nil
}

func (m *memStore) FindTemplates(ctx context.Context, orgID uint, channel string, limit int) ([]models.MessageTemplate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.MessageTemplate
	for _, tpl := range m.templates {
		if tpl.OrgID != orgID {
			continue
		}
		if channel != "" && tpl.Channel != channel {
			continue
		}
		out = append(out, *tpl)
	}
	return out, nil
}

func (m *memStore) FindTemplate(ctx context.Context, orgID, id uint) (*models.MessageTemplate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tpl, ok := m.templates[id]
	if !ok || tpl.OrgID != orgID {
		return nil, store.ErrNotFound
	}
	copied := *tpl
	return &copied, nil
}

func (m *memStore) SaveTemplate(ctx context.Context, tpl *models.MessageTemplate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *tpl
	m.templates[tpl.ID] = &copied
	return nil
}

func (m *memStore) DeleteTemplate(ctx context.Context, orgID, id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tpl, ok := m.templates[id]
	if !ok || tpl.OrgID != orgID {
		return store.ErrNotFound
	}
	delete(m.templates, id)
	return nil
}

// --- runs ---

func (m *memStore) CreateRun(ctx context.Context, run *models.SequenceRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.runs {
		if existing.SequenceID == run.SequenceID && existing.LeadID == run.LeadID &&
			existing.Status == models.RunStatusRunning {
			return store.ErrDuplicate
		}
	}
	run.ID = m.nextID()
	run.CreatedAt = time.Now()
	copied := *run
	m.runs[run.ID] = &copied
	return nil
}

func (m *memStore) FindRun(ctx context.Context, orgID, leadID, runID uint) (*models.SequenceRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[runID]
	if !ok || run.OrgID != orgID || run.LeadID != leadID {
		return nil, store.ErrNotFound
	}
	copied := *run
	return &copied, nil
}

func (m *memStore) FindRunForUpdate(ctx context.Context, runID uint) (*models.SequenceRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[runID]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *run
	return &copied, nil
}

func (m *memStore) FindRunsByLead(ctx context.Context, orgID, leadID uint) ([]models.SequenceRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.SequenceRun
	for _, run := range m.runs {
		if run.OrgID != orgID || run.LeadID != leadID {
			continue
		}
		copied := *run
		if seq, ok := m.sequences[run.SequenceID]; ok {
			copied.Sequence = *seq
		}
		var steps []models.SequenceRunStep
		for _, rs := range m.runSteps {
			if rs.RunID == run.ID {
				steps = append(steps, *rs)
			}
		}
		sort.Slice(steps, func(i, j int) bool { return steps[i].OrderIndex < steps[j].OrderIndex })
		copied.Steps = steps
		out = append(out, copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memStore) FindRunningRunsByLead(ctx context.Context, orgID, leadID uint) ([]models.SequenceRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.SequenceRun
	for _, run := range m.runs {
		if run.OrgID != orgID || run.LeadID != leadID || run.Status != models.RunStatusRunning {
			continue
		}
		copied := *run
		if seq, ok := m.sequences[run.SequenceID]; ok {
			copied.Sequence = *seq
		}
		out = append(out, copied)
	}
	return out, nil
}

func (m *memStore) DueRuns(ctx context.Context, now time.Time, limit int) ([]models.SequenceRun, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.SequenceRun
	for _, run := range m.runs {
		if run.Status != models.RunStatusRunning || run.NextStepAt == nil || run.NextStepAt.After(now) {
			continue
		}
		out = append(out, *run)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NextStepAt.Before(*out[j].NextStepAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) SaveRun(ctx context.Context, run *models.SequenceRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *run
	copied.Steps = nil
	copied.Sequence = models.Sequence{}
	m.runs[run.ID] = &copied
	return nil
}

func (m *memStore) CreateRunStep(ctx context.Context, step *models.SequenceRunStep) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	step.ID = m.nextID()
	copied := *step
	m.runSteps[step.ID] = &copied
	return nil
}

func (m *memStore) CancelPendingRunSteps(ctx context.Context, runID uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rs := range m.runSteps {
		if rs.RunID != runID {
			continue
		}
		if rs.Status == models.RunStepStatusPending || rs.Status == models.RunStepStatusScheduled {
			rs.Status = models.RunStepStatusCanceled
		}
	}
	return nil
}

func (m *memStore) MarkRunStepSent(ctx context.Context, runStepID uint, messageID string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rs, ok := m.runSteps[runStepID]
	if !ok || rs.Status != models.RunStepStatusScheduled {
		return false, nil
	}
	rs.Status = models.RunStepStatusSent
	rs.MessageID = messageID
	rs.SentAt = &at
	return true, nil
}

func (m *memStore) MarkRunStepFailed(ctx context.Context, runStepID uint, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rs, ok := m.runSteps[runStepID]
	if !ok || rs.Status != models.RunStepStatusScheduled {
		return nil
	}
	rs.Status = models.RunStepStatusFailed
	rs.LastError = message
	return nil
}

// --- leads ---

func (m *memStore) CreateLead(ctx context.Context, lead *models.Lead) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	lead.ID = m.nextID()
	copied := *lead
	m.leads[lead.ID] = &copied
	return nil
}

func (m *memStore) FindLead(ctx context.Context, orgID, id uint) (*models.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	lead, ok := m.leads[id]
	if !ok || lead.OrgID != orgID {
		return nil, store.ErrNotFound
	}
	copied := *lead
	return &copied, nil
}

func (m *memStore) FindLeadByEmail(ctx context.Context, orgID uint, email string) (*models.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, lead := range m.leads {
		if lead.OrgID == orgID && strings.EqualFold(lead.Email, email) {
			copied := *lead
			return &copied, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memStore) FindLeads(ctx context.Context, orgID uint, filter store.LeadFilter) ([]models.Lead, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Lead
	for _, lead := range m.leads {
		if lead.OrgID == orgID {
			out = append(out, *lead)
		}
	}
	return out, int64(len(out)), nil
}

func (m *memStore) SaveLead(ctx context.Context, lead *models.Lead) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *lead
	m.leads[lead.ID] = &copied
	return nil
}

func (m *memStore) DeleteLead(ctx context.Context, orgID, id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	lead, ok := m.leads[id]
	if !ok || lead.OrgID != orgID {
		return store.ErrNotFound
	}
	delete(m.leads, id)
	return nil
}

func (m *memStore) CreateLeadActivity(ctx context.Context, activity *models.LeadActivity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activities = append(m.activities, activity)
	return nil
}

// --- organizations and users ---

func (m *memStore) CreateOrganization(ctx context.Context, org *models.Organization) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	org.ID = m.nextID()
	copied := *org
	m.orgs[org.ID] = &copied
	return nil
}

func (m *memStore) FindOrganization(ctx context.Context, id uint) (*models.Organization, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	org, ok := m.orgs[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *org
	return &copied, nil
}

func (m *memStore) CreateUser(ctx context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user.ID = m.nextID()
	copied := *user
	m.users[user.ID] = &copied
	return nil
}

func (m *memStore) FindUser(ctx context.Context, id uint) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *user
	return &copied, nil
}

func (m *memStore) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.users {
		if strings.EqualFold(user.Email, email) {
			copied := *user
			return &copied, nil
		}
	}
	return nil, store.ErrNotFound
}

// --- providers ---

func (m *memStore) CreateProvider(ctx context.Context, p *models.ChannelProvider) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.ID = m.nextID()
	copied := *p
	m.providers[p.ID] = &copied
	return nil
}

func (m *memStore) FindProviders(ctx context.Context, orgID uint) ([]models.ChannelProvider, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ChannelProvider
	for _, p := range m.providers {
		if p.OrgID == orgID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *memStore) FindProvider(ctx context.Context, orgID, id uint) (*models.ChannelProvider, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.providers[id]
	if !ok || p.OrgID != orgID {
		return nil, store.ErrNotFound
	}
	copied := *p
	return &copied, nil
}

func (m *memStore) SaveProvider(ctx context.Context, p *models.ChannelProvider) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *p
	m.providers[p.ID] = &copied
	return nil
}

func (m *memStore) ActiveProvider(ctx context.Context, orgID uint, channel string) (*models.ChannelProvider, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.providers {
		if p.OrgID == orgID && p.Channel == channel && p.IsActive {
			copied := *p
			return &copied, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memStore) ActiveIMAPProviders(ctx context.Context) ([]models.ChannelProvider, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ChannelProvider
	for _, p := range m.providers {
		if p.Channel == models.ChannelEmail && p.IsActive && p.IMAPHost != "" {
			out = append(out, *p)
		}
	}
	return out, nil
}
