package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardpress/models"
)

func (f *fixture) newTemplates(t *testing.T) *TemplateService {
	t.Helper()
	return NewTemplateService(f.store, f.store, NewPayloadValidator(), nil)
}

func TestCreateDraftVersion(t *testing.T) {
	f := newFixture(t)
	svc := f.newTemplates(t)

	version, err := svc.CreateDraftVersion(context.Background(), NewDraftVersion{
		TemplateID:     uuid.New(),
		CardFormat:     f.format,
		PaperProfileID: &f.profileID,
		RawPayload:     validPayload(),
	})
	require.NoError(t, err)
	assert.Equal(t, models.VersionDraft, version.Status)
	require.NotNil(t, version.PaperProfile)
	assert.Equal(t, "A4 2x5", version.PaperProfile.Name)
	require.Len(t, version.Design.Elements, 1)

	stored, err := f.store.GetVersion(context.Background(), version.ID)
	require.NoError(t, err)
	assert.Equal(t, models.VersionDraft, stored.Status)
}

func TestCreateDraftVersionRejectsInvalidPayload(t *testing.T) {
	f := newFixture(t)
	svc := f.newTemplates(t)

	bad := validPayload()
	bad["elements"].([]interface{})[0].(map[string]interface{})["merge_field"] = "member.email"

	_, err := svc.CreateDraftVersion(context.Background(), NewDraftVersion{
		TemplateID: uuid.New(),
		CardFormat: f.format,
		RawPayload: bad,
	})
	require.Error(t, err)
	assert.Equal(t, models.ErrorKindSchema, models.KindOf(err))
	assert.Contains(t, err.Error(), "unknown merge field")
}

func TestCreateDraftVersionRejectsMismatchedProfile(t *testing.T) {
	f := newFixture(t)
	wrong := f.profile
	wrong.ID = uuid.New()
	wrong.CardWidth = mm(t, "90")
	f.store.PutPaperProfile(wrong)

	svc := f.newTemplates(t)
	_, err := svc.CreateDraftVersion(context.Background(), NewDraftVersion{
		TemplateID:     uuid.New(),
		CardFormat:     f.format,
		PaperProfileID: &wrong.ID,
		RawPayload:     validPayload(),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not match card format")
}

func TestUpdateDraftVersion(t *testing.T) {
	f := newFixture(t)
	svc := f.newTemplates(t)

	version, err := svc.CreateDraftVersion(context.Background(), NewDraftVersion{
		TemplateID: uuid.New(),
		CardFormat: f.format,
		RawPayload: validPayload(),
	})
	require.NoError(t, err)

	updated := validPayload()
	updated["background"] = "#fafafa"
	got, err := svc.UpdateDraftVersion(context.Background(), version.ID, updated)
	require.NoError(t, err)
	assert.Equal(t, "#fafafa", got.Design.Background)
}

func TestPublishedVersionIsImmutable(t *testing.T) {
	f := newFixture(t)
	svc := f.newTemplates(t)

	// The fixture version is already published.
	_, err := svc.UpdateDraftVersion(context.Background(), f.versionID, validPayload())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "can no longer be edited")

	err = svc.DeleteDraftVersion(context.Background(), f.versionID)
	require.Error(t, err)
}

func TestPublishVersionIsIdempotent(t *testing.T) {
	f := newFixture(t)
	svc := f.newTemplates(t)

	version, err := svc.CreateDraftVersion(context.Background(), NewDraftVersion{
		TemplateID: uuid.New(),
		CardFormat: f.format,
		RawPayload: validPayload(),
	})
	require.NoError(t, err)

	published, err := svc.PublishVersion(context.Background(), version.ID)
	require.NoError(t, err)
	require.True(t, published.IsPublished())
	require.NotNil(t, published.PublishedAt)
	firstPublishedAt := *published.PublishedAt

	again, err := svc.PublishVersion(context.Background(), version.ID)
	require.NoError(t, err)
	assert.Equal(t, firstPublishedAt, *again.PublishedAt, "re-publish keeps the original timestamp")
}

func TestDeleteDraftVersion(t *testing.T) {
	f := newFixture(t)
	svc := f.newTemplates(t)

	version, err := svc.CreateDraftVersion(context.Background(), NewDraftVersion{
		TemplateID: uuid.New(),
		CardFormat: f.format,
		RawPayload: validPayload(),
	})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteDraftVersion(context.Background(), version.ID))
	_, err = f.store.GetVersion(context.Background(), version.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestSetDefaultVersion(t *testing.T) {
	f := newFixture(t)
	svc := f.newTemplates(t)

	// Only published versions can become the federation default.
	draft, err := svc.CreateDraftVersion(context.Background(), NewDraftVersion{
		TemplateID: uuid.New(),
		CardFormat: f.format,
		RawPayload: validPayload(),
	})
	require.NoError(t, err)
	err = svc.SetDefaultVersion(context.Background(), draft.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is not published")

	require.NoError(t, svc.SetDefaultVersion(context.Background(), f.versionID))
	cfg, err := f.store.GetFederationConfig(context.Background())
	require.NoError(t, err)
	require.NotNil(t, cfg.DefaultTemplateVersionID)
	assert.Equal(t, f.versionID, *cfg.DefaultTemplateVersionID)

	// Pointing the default at another version replaces the reference.
	published, err := svc.PublishVersion(context.Background(), draft.ID)
	require.NoError(t, err)
	require.NoError(t, svc.SetDefaultVersion(context.Background(), published.ID))
	cfg, err = f.store.GetFederationConfig(context.Background())
	require.NoError(t, err)
	assert.Equal(t, published.ID, *cfg.DefaultTemplateVersionID)
}
