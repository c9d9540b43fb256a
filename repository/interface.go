package repository

import (
	"context"

	"github.com/google/uuid"

	"cardpress/models"
)

// MemberRepositoryInterface is the narrow read interface to member data.
// Member CRUD lives outside the card pipeline.
type MemberRepositoryInterface interface {
	GetMember(ctx context.Context, id uuid.UUID) (*models.Member, error)
}

// LicenseRepositoryInterface is the narrow read interface to license data.
type LicenseRepositoryInterface interface {
	GetLicense(ctx context.Context, id uuid.UUID) (*models.License, error)
}

// ClubRepositoryInterface is the narrow read interface to club data.
type ClubRepositoryInterface interface {
	GetClub(ctx context.Context, id uuid.UUID) (*models.Club, error)
}

// PaperProfileRepositoryInterface reads sheet layout profiles.
type PaperProfileRepositoryInterface interface {
	GetPaperProfile(ctx context.Context, id uuid.UUID) (*models.PaperProfile, error)
}

// TemplateRepositoryInterface persists card templates, their versions and
// the federation-wide default selection.
type TemplateRepositoryInterface interface {
	GetTemplate(ctx context.Context, id uuid.UUID) (*models.CardTemplate, error)
	SaveTemplate(ctx context.Context, t *models.CardTemplate) error
	GetVersion(ctx context.Context, id uuid.UUID) (*models.TemplateVersion, error)
	SaveVersion(ctx context.Context, v *models.TemplateVersion) error
	// DeleteVersion removes a version; only drafts may be deleted.
	DeleteVersion(ctx context.Context, id uuid.UUID) error
	GetFederationConfig(ctx context.Context) (*models.FederationConfig, error)
	// SetDefaultTemplateVersion updates the singleton default reference;
	// nil clears it.
	SetDefaultTemplateVersion(ctx context.Context, versionID *uuid.UUID) error
}

// PrintJobRepositoryInterface persists print jobs, their items and the
// produced PDF artifact. The job row and artifact are mutated only by the
// execution path under the per-job lock.
type PrintJobRepositoryInterface interface {
	GetJob(ctx context.Context, id uuid.UUID) (*models.PrintJob, error)
	CreateJob(ctx context.Context, job *models.PrintJob) error
	SaveJob(ctx context.Context, job *models.PrintJob) error
	// GetJobStatus is the cheap status read used at cancellation
	// checkpoints during execution.
	GetJobStatus(ctx context.Context, id uuid.UUID) (models.JobStatus, error)
	// ListJobIDsByStatus returns job ids in the given state, oldest first.
	// The worker pool uses it to claim queued work at boot.
	ListJobIDsByStatus(ctx context.Context, status models.JobStatus) ([]uuid.UUID, error)
}
