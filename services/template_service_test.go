package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sakanly/models"
	"sakanly/utils"
)

func TestTemplateCreate(t *testing.T) {
	st := newMemStore()
	svc := NewTemplateService(st, testLogger())
	ctx := context.Background()

	tpl, err := svc.Create(ctx, 1, TemplateInput{
		Name:    "Relance email",
		Channel: models.ChannelEmail,
		Subject: utils.Pointer("Pour {{leadFirstName}}"),
		Body:    "Salam {{leadFirstName}}, un bien a {{leadWilaya}} pour {{leadFirstName}}",
	}, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"leadFirstName", "leadWilaya"}, tpl.Variables)
}

func TestTemplateContentRules(t *testing.T) {
	st := newMemStore()
	svc := NewTemplateService(st, testLogger())
	ctx := context.Background()

	_, err := svc.Create(ctx, 1, TemplateInput{
		Name:    "Sans sujet",
		Channel: models.ChannelEmail,
		Body:    "corps",
	}, 1)
	assert.ErrorIs(t, err, ErrTemplateSubjectRequired)

	_, err = svc.Create(ctx, 1, TemplateInput{
		Name:    "Avec sujet",
		Channel: models.ChannelWhatsApp,
		Subject: utils.Pointer("interdit"),
		Body:    "corps",
	}, 1)
	assert.ErrorIs(t, err, ErrTemplateSubjectForbidden)

	_, err = svc.Create(ctx, 1, TemplateInput{
		Name:    "Inconnu",
		Channel: models.ChannelWhatsApp,
		Body:    "Salam {{leadNickname}}",
	}, 1)
	assert.ErrorIs(t, err, ErrTemplateUnknownVariable)
}

func TestTemplateUpdateKeepsChannel(t *testing.T) {
	st := newMemStore()
	svc := NewTemplateService(st, testLogger())
	ctx := context.Background()

	tpl, err := svc.Create(ctx, 1, TemplateInput{
		Name:    "WhatsApp",
		Channel: models.ChannelWhatsApp,
		Body:    "Salam {{leadFirstName}}",
	}, 1)
	require.NoError(t, err)

	// The channel in the update payload is ignored; whatsapp rules still apply.
	_, err = svc.Update(ctx, 1, tpl.ID, TemplateInput{
		Name:    "WhatsApp",
		Channel: models.ChannelEmail,
		Subject: utils.Pointer("sujet"),
		Body:    "nouveau corps",
	})
	assert.ErrorIs(t, err, ErrTemplateSubjectForbidden)

	updated, err := svc.Update(ctx, 1, tpl.ID, TemplateInput{
		Name:    "WhatsApp v2",
		Channel: models.ChannelEmail,
		Body:    "Salam {{leadFullName}}",
	})
	require.NoError(t, err)
	assert.Equal(t, models.ChannelWhatsApp, updated.Channel)
	assert.Equal(t, []string{"leadFullName"}, updated.Variables)
}

func TestTemplateNotFound(t *testing.T) {
	st := newMemStore()
	svc := NewTemplateService(st, testLogger())
	ctx := context.Background()

	_, err := svc.FindOne(ctx, 1, 42)
	assert.ErrorIs(t, err, ErrTemplateNotFound)

	err = svc.Delete(ctx, 1, 42)
	assert.ErrorIs(t, err, ErrTemplateNotFound)
}
