package models

import (
	"time"

	"github.com/google/uuid"

	"cardpress/geometry"
)

// JobStatus is the state of a print job in its execution state machine.
type JobStatus string

const (
	JobDraft     JobStatus = "draft"
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// IsTerminal reports whether no further transitions are expected without
// an explicit retry. Failed jobs are retryable, so only succeeded counts
// as terminal; cancelled blocks execution until retried.
func (s JobStatus) IsTerminal() bool {
	return s == JobSucceeded
}

// CanCancel reports whether a cancel request is accepted in this state.
func (s JobStatus) CanCancel() bool {
	switch s {
	case JobDraft, JobQueued, JobRunning, JobFailed:
		return true
	}
	return false
}

// ItemStatus is the per-item outcome within a job attempt.
type ItemStatus string

const (
	ItemPending ItemStatus = "pending"
	ItemPrinted ItemStatus = "printed"
	ItemFailed  ItemStatus = "failed"
)

// PrintJobItem is one card to render: a member and/or license, and the
// sheet slot it resolved to.
type PrintJobItem struct {
	ID        uuid.UUID  `json:"id"`
	JobID     uuid.UUID  `json:"job_id"`
	MemberID  *uuid.UUID `json:"member_id,omitempty"`
	LicenseID *uuid.UUID `json:"license_id,omitempty"`
	// SlotIndex is resolved and persisted before rendering and stays
	// stable across retries unless the caller changes it between attempts.
	SlotIndex *int       `json:"slot_index,omitempty"`
	Status    ItemStatus `json:"status"`
}

// GuideOptions toggles bleed and safe-area overlays on rendered output.
type GuideOptions struct {
	ShowBleed    bool        `json:"show_bleed"`
	ShowSafeArea bool        `json:"show_safe_area"`
	BleedMM      geometry.MM `json:"bleed_mm"`
	SafeAreaMM   geometry.MM `json:"safe_area_mm"`
}

// PrintJob is the unit of execution: a published template version applied
// to an ordered list of items, producing one PDF artifact. The artifact is
// owned by the job and replaced only by the job itself.
type PrintJob struct {
	ID                uuid.UUID      `json:"id"`
	ClubID            uuid.UUID      `json:"club_id"`
	TemplateVersionID uuid.UUID      `json:"template_version_id"`
	PaperProfileID    *uuid.UUID     `json:"paper_profile_id,omitempty"`
	Items             []PrintJobItem `json:"items"`
	// SelectedSlots, when set, pins items to explicit sheet slots. When
	// absent, slots are assigned densely starting at 0.
	SelectedSlots []int        `json:"selected_slots,omitempty"`
	Guides        GuideOptions `json:"guides"`

	Status       JobStatus  `json:"status"`
	AttemptCount int        `json:"attempt_count"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	CancelledAt  *time.Time `json:"cancelled_at,omitempty"`
	ErrorDetail  string     `json:"error_detail,omitempty"`

	ArtifactPDF    []byte `json:"-"`
	ArtifactSize   int64  `json:"artifact_size,omitempty"`
	ArtifactSHA256 string `json:"artifact_sha256,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasArtifact reports whether a compiled PDF is stored on the job.
func (j *PrintJob) HasArtifact() bool {
	return len(j.ArtifactPDF) > 0
}

// MarkItems sets every item to the given status.
func (j *PrintJob) MarkItems(status ItemStatus) {
	for i := range j.Items {
		j.Items[i].Status = status
	}
}
