package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"cardpress/db"
	"cardpress/models"
)

// TemplateRepository handles database operations for card templates,
// template versions and the federation config singleton. Structured
// version columns (card format, paper profile, design payload) are
// stored as jsonb.
type TemplateRepository struct{}

// NewTemplateRepository creates a new TemplateRepository.
func NewTemplateRepository() *TemplateRepository {
	return &TemplateRepository{}
}

// Ensure TemplateRepository implements TemplateRepositoryInterface.
var _ TemplateRepositoryInterface = (*TemplateRepository)(nil)

// GetTemplate retrieves a template by id.
func (r *TemplateRepository) GetTemplate(ctx context.Context, id uuid.UUID) (*models.CardTemplate, error) {
	t := &models.CardTemplate{}
	err := db.DB.QueryRowContext(ctx,
		`SELECT id, name, created_at, updated_at FROM card_templates WHERE id = $1`, id).
		Scan(&t.ID, &t.Name, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load card template: %w", err)
	}
	return t, nil
}

// SaveTemplate upserts a template row.
func (r *TemplateRepository) SaveTemplate(ctx context.Context, t *models.CardTemplate) error {
	_, err := db.DB.ExecContext(ctx, `
		INSERT INTO card_templates (id, name, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, updated_at = EXCLUDED.updated_at`,
		t.ID, t.Name, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save card template: %w", err)
	}
	return nil
}

// GetVersion retrieves a template version by id.
func (r *TemplateRepository) GetVersion(ctx context.Context, id uuid.UUID) (*models.TemplateVersion, error) {
	v := &models.TemplateVersion{}
	var format, profile, design []byte
	var publishedAt sql.NullTime

	err := db.DB.QueryRowContext(ctx, `
		SELECT id, template_id, number, status, card_format, paper_profile, design_payload,
		       published_at, created_at, updated_at
		FROM template_versions WHERE id = $1`, id).
		Scan(&v.ID, &v.TemplateID, &v.Number, &v.Status, &format, &profile, &design,
			&publishedAt, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load template version: %w", err)
	}

	if err := json.Unmarshal(format, &v.CardFormat); err != nil {
		return nil, fmt.Errorf("invalid card format on version %s: %w", id, err)
	}
	if len(profile) > 0 {
		v.PaperProfile = &models.PaperProfile{}
		if err := json.Unmarshal(profile, v.PaperProfile); err != nil {
			return nil, fmt.Errorf("invalid paper profile on version %s: %w", id, err)
		}
	}
	if err := json.Unmarshal(design, &v.Design); err != nil {
		return nil, fmt.Errorf("invalid design payload on version %s: %w", id, err)
	}
	v.PublishedAt = timePtr(publishedAt)
	return v, nil
}

// SaveVersion upserts a version row. Version numbers are assigned on
// first insert as max(number)+1 within the template.
func (r *TemplateRepository) SaveVersion(ctx context.Context, v *models.TemplateVersion) error {
	format, err := json.Marshal(v.CardFormat)
	if err != nil {
		return fmt.Errorf("failed to encode card format: %w", err)
	}
	var profile []byte
	if v.PaperProfile != nil {
		if profile, err = json.Marshal(v.PaperProfile); err != nil {
			return fmt.Errorf("failed to encode paper profile: %w", err)
		}
	}
	design, err := json.Marshal(v.Design)
	if err != nil {
		return fmt.Errorf("failed to encode design payload: %w", err)
	}

	tx, err := db.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if v.Number == 0 {
		err = tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(number), 0) + 1 FROM template_versions WHERE template_id = $1`,
			v.TemplateID).Scan(&v.Number)
		if err != nil {
			return fmt.Errorf("failed to assign version number: %w", err)
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO template_versions
			(id, template_id, number, status, card_format, paper_profile, design_payload,
			 published_at, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			card_format = EXCLUDED.card_format,
			paper_profile = EXCLUDED.paper_profile,
			design_payload = EXCLUDED.design_payload,
			published_at = EXCLUDED.published_at,
			updated_at = EXCLUDED.updated_at`,
		v.ID, v.TemplateID, v.Number, v.Status, format, profile, design,
		v.PublishedAt, v.CreatedAt, v.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save template version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit template version: %w", err)
	}
	return nil
}

// DeleteVersion removes a draft version. Published versions are
// immutable and never deleted.
func (r *TemplateRepository) DeleteVersion(ctx context.Context, id uuid.UUID) error {
	res, err := db.DB.ExecContext(ctx,
		`DELETE FROM template_versions WHERE id = $1 AND status = $2`, id, models.VersionDraft)
	if err != nil {
		return fmt.Errorf("failed to delete template version: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read delete result: %w", err)
	}
	if n == 0 {
		var status models.VersionStatus
		err := db.DB.QueryRowContext(ctx,
			`SELECT status FROM template_versions WHERE id = $1`, id).Scan(&status)
		if errors.Is(err, sql.ErrNoRows) {
			return models.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to read template version status: %w", err)
		}
		return fmt.Errorf("template version %s is %s and cannot be deleted", id, status)
	}
	return nil
}

// GetFederationConfig reads the singleton config row, returning an empty
// config if the row does not exist yet.
func (r *TemplateRepository) GetFederationConfig(ctx context.Context) (*models.FederationConfig, error) {
	cfg := &models.FederationConfig{}
	var versionID sql.NullString
	err := db.DB.QueryRowContext(ctx,
		`SELECT default_template_version_id, updated_at FROM federation_config WHERE singleton = TRUE`).
		Scan(&versionID, &cfg.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to load federation config: %w", err)
	}
	if versionID.Valid {
		uid, err := uuid.Parse(versionID.String)
		if err != nil {
			return nil, fmt.Errorf("invalid default template version id: %w", err)
		}
		cfg.DefaultTemplateVersionID = &uid
	}
	return cfg, nil
}

// SetDefaultTemplateVersion updates the singleton default reference in
// one statement; nil clears the default.
func (r *TemplateRepository) SetDefaultTemplateVersion(ctx context.Context, versionID *uuid.UUID) error {
	_, err := db.DB.ExecContext(ctx, `
		INSERT INTO federation_config (singleton, default_template_version_id, updated_at)
		VALUES (TRUE, $1, NOW())
		ON CONFLICT (singleton) DO UPDATE SET
			default_template_version_id = EXCLUDED.default_template_version_id,
			updated_at = EXCLUDED.updated_at`,
		nullUUID(versionID))
	if err != nil {
		return fmt.Errorf("failed to set default template version: %w", err)
	}
	return nil
}
