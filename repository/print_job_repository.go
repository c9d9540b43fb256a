package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"cardpress/db"
	"cardpress/geometry"
	"cardpress/models"
)

// PrintJobRepository handles database operations for print jobs.
// Implements PrintJobRepositoryInterface.
type PrintJobRepository struct{}

// NewPrintJobRepository creates a new PrintJobRepository.
func NewPrintJobRepository() *PrintJobRepository {
	return &PrintJobRepository{}
}

// Ensure PrintJobRepository implements PrintJobRepositoryInterface.
var _ PrintJobRepositoryInterface = (*PrintJobRepository)(nil)

const printJobColumns = `
	id, club_id, template_version_id, paper_profile_id, selected_slots,
	show_bleed, show_safe_area, bleed_mm, safe_area_mm,
	status, attempt_count, started_at, finished_at, cancelled_at, error_detail,
	artifact_pdf, artifact_size, artifact_sha256, created_at, updated_at`

// GetJob loads a job with its items, ordered by item position.
func (r *PrintJobRepository) GetJob(ctx context.Context, id uuid.UUID) (*models.PrintJob, error) {
	query := `SELECT` + printJobColumns + ` FROM print_jobs WHERE id = $1`
	job, err := scanJob(db.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load print job: %w", err)
	}

	rows, err := db.DB.QueryContext(ctx, `
		SELECT id, job_id, member_id, license_id, slot_index, status
		FROM print_job_items WHERE job_id = $1 ORDER BY position ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load print job items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item models.PrintJobItem
		var memberID, licenseID sql.NullString
		var slotIndex sql.NullInt64
		if err := rows.Scan(&item.ID, &item.JobID, &memberID, &licenseID, &slotIndex, &item.Status); err != nil {
			return nil, fmt.Errorf("failed to scan print job item: %w", err)
		}
		if memberID.Valid {
			uid, err := uuid.Parse(memberID.String)
			if err != nil {
				return nil, fmt.Errorf("invalid member id on item %s: %w", item.ID, err)
			}
			item.MemberID = &uid
		}
		if licenseID.Valid {
			uid, err := uuid.Parse(licenseID.String)
			if err != nil {
				return nil, fmt.Errorf("invalid license id on item %s: %w", item.ID, err)
			}
			item.LicenseID = &uid
		}
		if slotIndex.Valid {
			n := int(slotIndex.Int64)
			item.SlotIndex = &n
		}
		job.Items = append(job.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate print job items: %w", err)
	}
	return job, nil
}

// CreateJob inserts the job row and its items in one transaction.
func (r *PrintJobRepository) CreateJob(ctx context.Context, job *models.PrintJob) error {
	tx, err := db.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	slots, err := json.Marshal(job.SelectedSlots)
	if err != nil {
		return fmt.Errorf("failed to encode selected slots: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO print_jobs (`+printJobColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)`,
		job.ID, job.ClubID, job.TemplateVersionID, nullUUID(job.PaperProfileID), slots,
		job.Guides.ShowBleed, job.Guides.ShowSafeArea, job.Guides.BleedMM.String(), job.Guides.SafeAreaMM.String(),
		job.Status, job.AttemptCount, job.StartedAt, job.FinishedAt, job.CancelledAt, job.ErrorDetail,
		job.ArtifactPDF, job.ArtifactSize, job.ArtifactSHA256, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert print job: %w", err)
	}

	if err := insertItems(ctx, tx, job); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit print job: %w", err)
	}
	return nil
}

// SaveJob updates the job row, replacing its items.
func (r *PrintJobRepository) SaveJob(ctx context.Context, job *models.PrintJob) error {
	tx, err := db.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	slots, err := json.Marshal(job.SelectedSlots)
	if err != nil {
		return fmt.Errorf("failed to encode selected slots: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE print_jobs SET
			club_id=$2, template_version_id=$3, paper_profile_id=$4, selected_slots=$5,
			show_bleed=$6, show_safe_area=$7, bleed_mm=$8, safe_area_mm=$9,
			status=$10, attempt_count=$11, started_at=$12, finished_at=$13, cancelled_at=$14,
			error_detail=$15, artifact_pdf=$16, artifact_size=$17, artifact_sha256=$18, updated_at=$19
		WHERE id=$1`,
		job.ID, job.ClubID, job.TemplateVersionID, nullUUID(job.PaperProfileID), slots,
		job.Guides.ShowBleed, job.Guides.ShowSafeArea, job.Guides.BleedMM.String(), job.Guides.SafeAreaMM.String(),
		job.Status, job.AttemptCount, job.StartedAt, job.FinishedAt, job.CancelledAt,
		job.ErrorDetail, job.ArtifactPDF, job.ArtifactSize, job.ArtifactSHA256, job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update print job: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM print_job_items WHERE job_id = $1`, job.ID); err != nil {
		return fmt.Errorf("failed to clear print job items: %w", err)
	}
	if err := insertItems(ctx, tx, job); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit print job: %w", err)
	}
	return nil
}

// GetJobStatus reads only the status column; used at cancellation
// checkpoints.
func (r *PrintJobRepository) GetJobStatus(ctx context.Context, id uuid.UUID) (models.JobStatus, error) {
	var status models.JobStatus
	err := db.DB.QueryRowContext(ctx, `SELECT status FROM print_jobs WHERE id = $1`, id).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", models.ErrNotFound
		}
		return "", fmt.Errorf("failed to read print job status: %w", err)
	}
	return status, nil
}

// ListJobIDsByStatus returns matching job ids, oldest first.
func (r *PrintJobRepository) ListJobIDsByStatus(ctx context.Context, status models.JobStatus) ([]uuid.UUID, error) {
	rows, err := db.DB.QueryContext(ctx,
		`SELECT id FROM print_jobs WHERE status = $1 ORDER BY created_at ASC, id ASC`, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list print jobs: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan print job id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func insertItems(ctx context.Context, tx *sql.Tx, job *models.PrintJob) error {
	for pos, item := range job.Items {
		var slot interface{}
		if item.SlotIndex != nil {
			slot = *item.SlotIndex
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO print_job_items (id, job_id, member_id, license_id, slot_index, status, position)
			VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			item.ID, job.ID, nullUUID(item.MemberID), nullUUID(item.LicenseID), slot, item.Status, pos)
		if err != nil {
			return fmt.Errorf("failed to insert print job item: %w", err)
		}
	}
	return nil
}

func scanJob(row *sql.Row) (*models.PrintJob, error) {
	job := &models.PrintJob{}
	var paperProfileID sql.NullString
	var slots []byte
	var bleedMM, safeMM string
	var startedAt, finishedAt, cancelledAt sql.NullTime

	err := row.Scan(
		&job.ID, &job.ClubID, &job.TemplateVersionID, &paperProfileID, &slots,
		&job.Guides.ShowBleed, &job.Guides.ShowSafeArea, &bleedMM, &safeMM,
		&job.Status, &job.AttemptCount, &startedAt, &finishedAt, &cancelledAt, &job.ErrorDetail,
		&job.ArtifactPDF, &job.ArtifactSize, &job.ArtifactSHA256, &job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if paperProfileID.Valid {
		uid, err := uuid.Parse(paperProfileID.String)
		if err != nil {
			return nil, fmt.Errorf("invalid paper profile id: %w", err)
		}
		job.PaperProfileID = &uid
	}
	if len(slots) > 0 {
		if err := json.Unmarshal(slots, &job.SelectedSlots); err != nil {
			return nil, fmt.Errorf("invalid selected slots: %w", err)
		}
	}
	if job.Guides.BleedMM, err = geometry.MMFromString(bleedMM); err != nil {
		return nil, fmt.Errorf("invalid bleed value: %w", err)
	}
	if job.Guides.SafeAreaMM, err = geometry.MMFromString(safeMM); err != nil {
		return nil, fmt.Errorf("invalid safe area value: %w", err)
	}
	job.StartedAt = timePtr(startedAt)
	job.FinishedAt = timePtr(finishedAt)
	job.CancelledAt = timePtr(cancelledAt)
	return job, nil
}

func nullUUID(id *uuid.UUID) interface{} {
	if id == nil {
		return nil
	}
	return *id
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
