package service

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"

	"cardpress/models"
	"cardpress/repository"
)

// PreviewRequest identifies what to preview: a template version plus
// optional entities and sample data standing in for real card holders.
type PreviewRequest struct {
	TemplateVersionID uuid.UUID
	// PaperProfileID overrides the version's own profile; nil falls back
	// to the version's profile (which may also be nil).
	PaperProfileID *uuid.UUID
	MemberID       *uuid.UUID
	LicenseID      *uuid.UUID
	ClubID         *uuid.UUID
	SampleData     map[string]interface{}
	SelectedSlots  []int
	Guides         models.GuideOptions
}

// PreviewData is the preview payload. It contains no timestamps and no
// unordered collections, so identical inputs marshal to byte-identical
// JSON (map keys are sorted by encoding/json).
type PreviewData struct {
	TemplateVersionID uuid.UUID            `json:"template_version_id"`
	TemplateID        uuid.UUID            `json:"template_id"`
	CardFormat        models.CardFormat    `json:"card_format"`
	PaperProfile      *models.PaperProfile `json:"paper_profile"`
	Guides            models.GuideOptions  `json:"guides"`
	Context           map[string]string    `json:"context"`
	SelectedSlots     []int                `json:"selected_slots"`
	Slots             []Slot               `json:"slots"`
	Elements          []ResolvedElement    `json:"elements"`
}

// PreviewService builds deterministic preview payloads and preview markup
// for draft and published template versions.
type PreviewService struct {
	templates repository.TemplateRepositoryInterface
	profiles  repository.PaperProfileRepositoryInterface
	resolver  *ContextResolver
	renderer  *ElementRenderer
	documents *DocumentBuilder
	layout    *SlotLayout

	frontendBaseURL string
}

// NewPreviewService wires the preview pipeline.
func NewPreviewService(
	templates repository.TemplateRepositoryInterface,
	profiles repository.PaperProfileRepositoryInterface,
	resolver *ContextResolver,
	renderer *ElementRenderer,
	documents *DocumentBuilder,
	layout *SlotLayout,
	frontendBaseURL string,
) *PreviewService {
	return &PreviewService{
		templates:       templates,
		profiles:        profiles,
		resolver:        resolver,
		renderer:        renderer,
		documents:       documents,
		layout:          layout,
		frontendBaseURL: frontendBaseURL,
	}
}

// BuildPreviewData resolves the version against the given entities and
// sample data. Unlike printing, previewing works on drafts too.
func (s *PreviewService) BuildPreviewData(ctx context.Context, req PreviewRequest) (*PreviewData, error) {
	version, err := s.templates.GetVersion(ctx, req.TemplateVersionID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.NewError(models.ErrorKindResolution, "template version %s not found", req.TemplateVersionID)
		}
		return nil, models.WrapError(models.ErrorKindStorage, err, "failed to load template version %s", req.TemplateVersionID)
	}

	profile := version.PaperProfile
	if req.PaperProfileID != nil {
		p, err := s.profiles.GetPaperProfile(ctx, *req.PaperProfileID)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				return nil, models.NewError(models.ErrorKindResolution, "paper profile %s not found", *req.PaperProfileID)
			}
			return nil, models.WrapError(models.ErrorKindStorage, err, "failed to load paper profile %s", *req.PaperProfileID)
		}
		profile = p
	}
	if profile != nil && !profile.MatchesFormat(&version.CardFormat) {
		return nil, models.NewError(models.ErrorKindResolution,
			"paper profile %q does not match card format %q", profile.Name, version.CardFormat.Name)
	}

	if req.SelectedSlots != nil && profile == nil {
		return nil, models.NewError(models.ErrorKindResolution, "selected slots require a paper profile")
	}

	resolved, err := s.resolver.BuildContext(ctx, ContextRequest{
		MemberID:   req.MemberID,
		LicenseID:  req.LicenseID,
		ClubID:     req.ClubID,
		SampleData: req.SampleData,
	})
	if err != nil {
		return nil, err
	}

	elements, err := s.renderer.Resolve(&version.Design, resolved.Values, s.frontendBaseURL)
	if err != nil {
		return nil, err
	}

	data := &PreviewData{
		TemplateVersionID: version.ID,
		TemplateID:        version.TemplateID,
		CardFormat:        version.CardFormat,
		PaperProfile:      profile,
		Guides:            req.Guides,
		Context:           resolved.Values,
		Elements:          elements,
	}

	if profile != nil {
		slots, normalized, err := s.layout.Layout(profile, req.SelectedSlots)
		if err != nil {
			return nil, err
		}
		data.Slots = slots
		data.SelectedSlots = normalized
	}

	return data, nil
}

// BuildPreviewJSON marshals the preview payload; identical inputs yield
// byte-identical output.
func (s *PreviewService) BuildPreviewJSON(ctx context.Context, req PreviewRequest) ([]byte, error) {
	data, err := s.BuildPreviewData(ctx, req)
	if err != nil {
		return nil, err
	}
	out, err := json.Marshal(data)
	if err != nil {
		return nil, models.WrapError(models.ErrorKindExecution, err, "failed to marshal preview data")
	}
	return out, nil
}

// BuildPreviewHTML renders the preview as a single-card document, useful
// for on-screen proofs of a draft design.
func (s *PreviewService) BuildPreviewHTML(ctx context.Context, req PreviewRequest) (string, error) {
	data, err := s.BuildPreviewData(ctx, req)
	if err != nil {
		return "", err
	}
	version, err := s.templates.GetVersion(ctx, req.TemplateVersionID)
	if err != nil {
		return "", models.WrapError(models.ErrorKindStorage, err, "failed to load template version %s", req.TemplateVersionID)
	}
	doc := s.documents.BuildCardDocument(&data.CardFormat, version.Design.Background, [][]ResolvedElement{data.Elements}, data.Guides)
	return doc, nil
}
