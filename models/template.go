package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// VersionStatus is the lifecycle state of a template version.
type VersionStatus string

const (
	VersionDraft     VersionStatus = "draft"
	VersionPublished VersionStatus = "published"
)

// CardTemplate is a named, versioned container for card designs. It is
// owned by the federation; clubs only consume published versions.
type CardTemplate struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TemplateVersion is one revision of a template's design. Draft versions
// may be edited or deleted; publishing is one-way and freezes the version.
type TemplateVersion struct {
	ID           uuid.UUID     `json:"id"`
	TemplateID   uuid.UUID     `json:"template_id"`
	Number       int           `json:"number"`
	Status       VersionStatus `json:"status"`
	CardFormat   CardFormat    `json:"card_format"`
	PaperProfile *PaperProfile `json:"paper_profile,omitempty"`
	Design       DesignPayload `json:"design_payload"`
	PublishedAt  *time.Time    `json:"published_at,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// IsPublished reports whether the version has been frozen.
func (v *TemplateVersion) IsPublished() bool {
	return v.Status == VersionPublished
}

// Publish freezes the version. Publishing an already-published version is
// a no-op returning the current state, not an error.
func (v *TemplateVersion) Publish(now time.Time) {
	if v.Status == VersionPublished {
		return
	}
	v.Status = VersionPublished
	v.PublishedAt = &now
	v.UpdatedAt = now
}

// EnsureEditable returns an error unless the version is still a draft.
func (v *TemplateVersion) EnsureEditable() error {
	if v.Status != VersionDraft {
		return fmt.Errorf("template version %s is %s and can no longer be edited", v.ID, v.Status)
	}
	return nil
}

// EnsureProfileMatches verifies that the pinned paper profile (if any)
// shares the version's card format.
func (v *TemplateVersion) EnsureProfileMatches() error {
	if v.PaperProfile == nil {
		return nil
	}
	if !v.PaperProfile.MatchesFormat(&v.CardFormat) {
		return fmt.Errorf("paper profile %q card size %sx%smm does not match card format %q (%sx%smm)",
			v.PaperProfile.Name, v.PaperProfile.CardWidth, v.PaperProfile.CardHeight,
			v.CardFormat.Name, v.CardFormat.WidthMM, v.CardFormat.HeightMM)
	}
	return nil
}

// FederationConfig is the singleton aggregate holding federation-wide
// settings. The global default template is an explicit reference here,
// updated transactionally, rather than a boolean scattered across
// template rows.
type FederationConfig struct {
	DefaultTemplateVersionID *uuid.UUID `json:"default_template_version_id,omitempty"`
	UpdatedAt                time.Time  `json:"updated_at"`
}
