package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"cardpress/models"
	"cardpress/repository"
)

// TemplateService manages template versions: draft editing, one-way
// publishing and the federation-wide default selection. Schema errors
// always block creation and publishing.
type TemplateService struct {
	templates repository.TemplateRepositoryInterface
	profiles  repository.PaperProfileRepositoryInterface
	validator *PayloadValidator
	logger    *zap.SugaredLogger
}

// NewTemplateService creates a TemplateService.
func NewTemplateService(
	templates repository.TemplateRepositoryInterface,
	profiles repository.PaperProfileRepositoryInterface,
	validator *PayloadValidator,
	logger *zap.SugaredLogger,
) *TemplateService {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &TemplateService{
		templates: templates,
		profiles:  profiles,
		validator: validator,
		logger:    logger,
	}
}

// NewDraftVersion is the request to create or replace a draft version.
type NewDraftVersion struct {
	TemplateID     uuid.UUID
	CardFormat     models.CardFormat
	PaperProfileID *uuid.UUID
	RawPayload     map[string]interface{}
}

// CreateDraftVersion validates the raw design payload against the card
// format's canvas and persists a new draft.
func (s *TemplateService) CreateDraftVersion(ctx context.Context, req NewDraftVersion) (*models.TemplateVersion, error) {
	if err := req.CardFormat.Validate(); err != nil {
		return nil, models.WrapError(models.ErrorKindSchema, err, "invalid card format")
	}

	payload, verrs := s.validator.Validate(req.RawPayload, req.CardFormat.WidthMM, req.CardFormat.HeightMM)
	if verrs.HasErrors() {
		return nil, models.WrapError(models.ErrorKindSchema, verrs, "design payload validation failed")
	}

	var profile *models.PaperProfile
	if req.PaperProfileID != nil {
		p, err := s.profiles.GetPaperProfile(ctx, *req.PaperProfileID)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				return nil, models.NewError(models.ErrorKindResolution, "paper profile %s not found", *req.PaperProfileID)
			}
			return nil, models.WrapError(models.ErrorKindStorage, err, "failed to load paper profile %s", *req.PaperProfileID)
		}
		if !p.MatchesFormat(&req.CardFormat) {
			return nil, models.NewError(models.ErrorKindSchema,
				"paper profile %q does not match card format %q", p.Name, req.CardFormat.Name)
		}
		profile = p
	}

	now := time.Now().UTC()
	version := &models.TemplateVersion{
		ID:           uuid.New(),
		TemplateID:   req.TemplateID,
		Status:       models.VersionDraft,
		CardFormat:   req.CardFormat,
		PaperProfile: profile,
		Design:       *payload,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.templates.SaveVersion(ctx, version); err != nil {
		return nil, models.WrapError(models.ErrorKindStorage, err, "failed to persist template version")
	}
	s.logger.Infow("✓ draft template version created", "version_id", version.ID, "template_id", version.TemplateID)
	return version, nil
}

// UpdateDraftVersion replaces the design payload of a draft. Published
// versions are immutable.
func (s *TemplateService) UpdateDraftVersion(ctx context.Context, versionID uuid.UUID, rawPayload map[string]interface{}) (*models.TemplateVersion, error) {
	version, err := s.getVersion(ctx, versionID)
	if err != nil {
		return nil, err
	}
	if err := version.EnsureEditable(); err != nil {
		return nil, models.WrapError(models.ErrorKindResolution, err, "cannot edit template version %s", versionID)
	}

	payload, verrs := s.validator.Validate(rawPayload, version.CardFormat.WidthMM, version.CardFormat.HeightMM)
	if verrs.HasErrors() {
		return nil, models.WrapError(models.ErrorKindSchema, verrs, "design payload validation failed")
	}

	version.Design = *payload
	version.UpdatedAt = time.Now().UTC()
	if err := s.templates.SaveVersion(ctx, version); err != nil {
		return nil, models.WrapError(models.ErrorKindStorage, err, "failed to persist template version")
	}
	return version, nil
}

// PublishVersion freezes a draft. Publishing an already-published version
// returns the current state unchanged.
func (s *TemplateService) PublishVersion(ctx context.Context, versionID uuid.UUID) (*models.TemplateVersion, error) {
	version, err := s.getVersion(ctx, versionID)
	if err != nil {
		return nil, err
	}
	if version.IsPublished() {
		return version, nil
	}

	// Re-validate on publish; the payload must be clean the moment it
	// becomes printable.
	raw := rawFromPayload(&version.Design)
	if _, verrs := s.validator.Validate(raw, version.CardFormat.WidthMM, version.CardFormat.HeightMM); verrs.HasErrors() {
		return nil, models.WrapError(models.ErrorKindSchema, verrs, "design payload validation failed")
	}
	if err := version.EnsureProfileMatches(); err != nil {
		return nil, models.WrapError(models.ErrorKindSchema, err, "cannot publish template version %s", versionID)
	}

	version.Publish(time.Now().UTC())
	if err := s.templates.SaveVersion(ctx, version); err != nil {
		return nil, models.WrapError(models.ErrorKindStorage, err, "failed to persist template version")
	}
	s.logger.Infow("✓ template version published", "version_id", version.ID)
	return version, nil
}

// DeleteDraftVersion removes a draft; published versions cannot be
// deleted.
func (s *TemplateService) DeleteDraftVersion(ctx context.Context, versionID uuid.UUID) error {
	if err := s.templates.DeleteVersion(ctx, versionID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return models.NewError(models.ErrorKindResolution, "template version %s not found", versionID)
		}
		return models.WrapError(models.ErrorKindResolution, err, "cannot delete template version %s", versionID)
	}
	return nil
}

// SetDefaultVersion points the federation-wide default at a published
// version. The default is a single explicit reference, so exclusivity
// across templates holds by construction.
func (s *TemplateService) SetDefaultVersion(ctx context.Context, versionID uuid.UUID) error {
	version, err := s.getVersion(ctx, versionID)
	if err != nil {
		return err
	}
	if !version.IsPublished() {
		return models.NewError(models.ErrorKindResolution, "template version %s is not published", versionID)
	}
	if err := s.templates.SetDefaultTemplateVersion(ctx, &versionID); err != nil {
		return models.WrapError(models.ErrorKindStorage, err, "failed to set default template version")
	}
	s.logger.Infow("✓ default template version updated", "version_id", versionID)
	return nil
}

func (s *TemplateService) getVersion(ctx context.Context, id uuid.UUID) (*models.TemplateVersion, error) {
	version, err := s.templates.GetVersion(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.NewError(models.ErrorKindResolution, "template version %s not found", id)
		}
		return nil, models.WrapError(models.ErrorKindStorage, err, "failed to load template version %s", id)
	}
	return version, nil
}

// rawFromPayload rebuilds the raw map shape from a typed payload so the
// validator can re-run on publish.
func rawFromPayload(p *models.DesignPayload) map[string]interface{} {
	elements := make([]interface{}, 0, len(p.Elements))
	for i := range p.Elements {
		el := &p.Elements[i]
		raw := map[string]interface{}{
			"id":        el.ID,
			"type":      string(el.Type),
			"x_mm":      el.XMM.String(),
			"y_mm":      el.YMM.String(),
			"width_mm":  el.WidthMM.String(),
			"height_mm": el.HeightMM.String(),
			"opacity":   el.Opacity,
			"z_index":   el.ZIndex,
		}
		if el.Rotation != 0 {
			raw["rotation"] = el.Rotation
		}
		if el.Style != nil {
			raw["style"] = el.Style
		}
		if el.Metadata != nil {
			raw["metadata"] = el.Metadata
		}
		if el.Text != "" {
			raw["text"] = el.Text
		}
		if el.MergeField != "" {
			raw["merge_field"] = el.MergeField
		}
		if el.Source != "" {
			raw["source"] = el.Source
		}
		elements = append(elements, raw)
	}
	out := map[string]interface{}{"elements": elements}
	if p.Metadata != nil {
		out["metadata"] = p.Metadata
	}
	if p.Background != "" {
		out["background"] = p.Background
	}
	return out
}
