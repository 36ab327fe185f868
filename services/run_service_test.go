package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sakanly/models"
)

// fixture builds an org with one lead and one active two-step whatsapp
// sequence: step 0 immediate, step 1 a day later.
type fixture struct {
	store *memStore
	org   *models.Organization
	lead  *models.Lead
	seq   *models.Sequence
	tpl   *models.MessageTemplate
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	st := newMemStore()

	org := &models.Organization{Name: "Dar Immo"}
	require.NoError(t, st.CreateOrganization(ctx, org))

	lead := &models.Lead{
		OrgID:    org.ID,
		FullName: "Amine Benali",
		Phone:    "+213661234567",
		Email:    "amine@example.com",
		Wilaya:   "Alger",
	}
	require.NoError(t, st.CreateLead(ctx, lead))

	tpl := seedTemplate(t, st, org.ID, models.ChannelWhatsApp)

	seq := &models.Sequence{
		OrgID:       org.ID,
		Name:        "Relance achat",
		Status:      models.SequenceStatusActive,
		StopOnReply: true,
	}
	require.NoError(t, st.CreateSequence(ctx, seq))
	require.NoError(t, st.ReplaceSequenceSteps(ctx, seq.ID, []models.SequenceStep{
		{SequenceID: seq.ID, TemplateID: tpl.ID, OrderIndex: 0, Channel: models.ChannelWhatsApp, DelayMinutes: 0},
		{SequenceID: seq.ID, TemplateID: tpl.ID, OrderIndex: 1, Channel: models.ChannelWhatsApp, DelayMinutes: 1440},
	}))

	return &fixture{store: st, org: org, lead: lead, seq: seq, tpl: tpl}
}

func newTestRunService(st *memStore, now time.Time) *RunService {
	logger := testLogger()
	svc := NewRunService(st, NewActivityRecorder(st, logger), logger)
	svc.now = func() time.Time { return now }
	return svc
}

func TestRunStart(t *testing.T) {
	f := newFixture(t)
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	svc := newTestRunService(f.store, now)

	run, err := svc.Start(context.Background(), f.org.ID, f.lead.ID, f.seq.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusRunning, run.Status)
	assert.Equal(t, 0, run.NextStepIndex)
	assert.Equal(t, now, run.StartedAt)
	require.NotNil(t, run.NextStepAt)
	assert.Equal(t, now, *run.NextStepAt) // step 0 has no delay
}

func TestRunStartHonorsStartDelay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.UpdateSequenceFields(ctx, f.org.ID, f.seq.ID,
		map[string]interface{}{"default_start_delay_minutes": 30}))

	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	svc := newTestRunService(f.store, now)

	run, err := svc.Start(ctx, f.org.ID, f.lead.ID, f.seq.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, now.Add(30*time.Minute), run.StartedAt)
	require.NotNil(t, run.NextStepAt)
	assert.Equal(t, now.Add(30*time.Minute), *run.NextStepAt)
}

func TestRunStartGuards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := newTestRunService(f.store, time.Now())

	_, err := svc.Start(ctx, f.org.ID, f.lead.ID, 9999, 1)
	assert.ErrorIs(t, err, ErrSequenceNotFound)

	_, err = svc.Start(ctx, f.org.ID, 9999, f.seq.ID, 1)
	assert.ErrorIs(t, err, ErrLeadNotFound)

	require.NoError(t, f.store.UpdateSequenceFields(ctx, f.org.ID, f.seq.ID,
		map[string]interface{}{"status": models.SequenceStatusPaused}))
	_, err = svc.Start(ctx, f.org.ID, f.lead.ID, f.seq.ID, 1)
	assert.ErrorIs(t, err, ErrSequenceNotActive)
}

func TestRunStartRejectsSecondActiveRun(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := newTestRunService(f.store, time.Now())

	_, err := svc.Start(ctx, f.org.ID, f.lead.ID, f.seq.ID, 1)
	require.NoError(t, err)

	_, err = svc.Start(ctx, f.org.ID, f.lead.ID, f.seq.ID, 1)
	assert.ErrorIs(t, err, ErrSequenceAlreadyRunning)
}

func TestRunRestartAfterStop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := newTestRunService(f.store, time.Now())

	run, err := svc.Start(ctx, f.org.ID, f.lead.ID, f.seq.ID, 1)
	require.NoError(t, err)
	_, err = svc.Stop(ctx, f.org.ID, f.lead.ID, run.ID)
	require.NoError(t, err)

	// The unique constraint only covers running runs; a fresh run may start.
	_, err = svc.Start(ctx, f.org.ID, f.lead.ID, f.seq.ID, 1)
	assert.NoError(t, err)
}

func TestRunStop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	svc := newTestRunService(f.store, now)

	run, err := svc.Start(ctx, f.org.ID, f.lead.ID, f.seq.ID, 1)
	require.NoError(t, err)

	pending := &models.SequenceRunStep{RunID: run.ID, OrderIndex: 0, Channel: models.ChannelWhatsApp, Status: models.RunStepStatusScheduled}
	require.NoError(t, f.store.CreateRunStep(ctx, pending))
	sentAt := now
	sent := &models.SequenceRunStep{RunID: run.ID, OrderIndex: 1, Channel: models.ChannelWhatsApp, Status: models.RunStepStatusSent, SentAt: &sentAt}
	require.NoError(t, f.store.CreateRunStep(ctx, sent))

	stopped, err := svc.Stop(ctx, f.org.ID, f.lead.ID, run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCanceled, stopped.Status)
	require.NotNil(t, stopped.StoppedAt)
	assert.Nil(t, stopped.NextStepAt)

	// Scheduled steps cancel; sent ones keep their status.
	runs, err := svc.List(ctx, f.org.ID, f.lead.ID)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.Len(t, runs[0].Steps, 2)
	assert.Equal(t, models.RunStepStatusCanceled, runs[0].Steps[0].Status)
	assert.Equal(t, models.RunStepStatusSent, runs[0].Steps[1].Status)
}

func TestRunStopIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := newTestRunService(f.store, time.Now())

	run, err := svc.Start(ctx, f.org.ID, f.lead.ID, f.seq.ID, 1)
	require.NoError(t, err)

	first, err := svc.Stop(ctx, f.org.ID, f.lead.ID, run.ID)
	require.NoError(t, err)
	second, err := svc.Stop(ctx, f.org.ID, f.lead.ID, run.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Status, second.Status)
	assert.Equal(t, first.StoppedAt.Unix(), second.StoppedAt.Unix())
}

func TestRunStopNotFound(t *testing.T) {
	f := newFixture(t)
	svc := newTestRunService(f.store, time.Now())

	_, err := svc.Stop(context.Background(), f.org.ID, f.lead.ID, 9999)
	assert.ErrorIs(t, err, ErrSequenceRunNotFound)
}

func TestHandleLeadReply(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := newTestRunService(f.store, time.Now())

	run, err := svc.Start(ctx, f.org.ID, f.lead.ID, f.seq.ID, 1)
	require.NoError(t, err)

	// A second sequence with stop-on-reply disabled keeps running.
	keep := &models.Sequence{OrgID: f.org.ID, Name: "Newsletter", Status: models.SequenceStatusActive, StopOnReply: false}
	require.NoError(t, f.store.CreateSequence(ctx, keep))
	require.NoError(t, f.store.ReplaceSequenceSteps(ctx, keep.ID, []models.SequenceStep{
		{SequenceID: keep.ID, TemplateID: f.tpl.ID, OrderIndex: 0, Channel: models.ChannelWhatsApp, DelayMinutes: 0},
	}))
	keepRun, err := svc.Start(ctx, f.org.ID, f.lead.ID, keep.ID, 1)
	require.NoError(t, err)

	require.NoError(t, svc.HandleLeadReply(ctx, f.org.ID, f.lead.ID))

	stopped, err := f.store.FindRun(ctx, f.org.ID, f.lead.ID, run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusCanceled, stopped.Status)

	kept, err := f.store.FindRun(ctx, f.org.ID, f.lead.ID, keepRun.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusRunning, kept.Status)
}
