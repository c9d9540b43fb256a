package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"cardpress/metrics"
	"cardpress/models"
	"cardpress/repository"
	"cardpress/utils"
)

// errCancelRequested is the internal signal raised at a cancellation
// checkpoint; it never escapes to callers.
var errCancelRequested = errors.New("cancellation requested")

// NewPrintJobItem describes one card to include when creating a job.
type NewPrintJobItem struct {
	MemberID  *uuid.UUID
	LicenseID *uuid.UUID
}

// NewPrintJob is the job creation request.
type NewPrintJob struct {
	ClubID            uuid.UUID
	TemplateVersionID uuid.UUID
	PaperProfileID    *uuid.UUID
	Items             []NewPrintJobItem
	SelectedSlots     []int
	Guides            models.GuideOptions
	// Queue creates the job in queued state instead of draft.
	Queue bool
}

// PrintJobService drives the print-job state machine: it resolves items
// to slots, renders multi-page documents, compiles the PDF artifact and
// manages retry, cancellation and idempotence. All execution on one job
// happens under a per-job exclusive lock so concurrent execute/retry/
// cancel calls serialize correctly.
type PrintJobService struct {
	jobs      repository.PrintJobRepositoryInterface
	templates repository.TemplateRepositoryInterface
	profiles  repository.PaperProfileRepositoryInterface
	resolver  *ContextResolver
	renderer  *ElementRenderer
	documents *DocumentBuilder
	layout    *SlotLayout
	compiler  PDFCompilerInterface

	frontendBaseURL string
	attemptTimeout  time.Duration
	logger          *zap.SugaredLogger

	lockMu sync.Mutex
	locks  map[uuid.UUID]*jobLock
	// cancels holds pending cancellation requests keyed by job ID. An
	// entry exists only while a request is outstanding: it is removed
	// once the cancellation is persisted, rejected, or undone by Retry —
	// never silently at attempt start.
	cancels sync.Map // uuid.UUID -> struct{}
}

// jobLock serializes all state transitions of one job. Entries are
// refcounted so the lock map only holds jobs with an active caller.
type jobLock struct {
	mu   sync.Mutex
	refs int
}

// NewPrintJobService wires the execution pipeline.
func NewPrintJobService(
	jobs repository.PrintJobRepositoryInterface,
	templates repository.TemplateRepositoryInterface,
	profiles repository.PaperProfileRepositoryInterface,
	resolver *ContextResolver,
	renderer *ElementRenderer,
	documents *DocumentBuilder,
	layout *SlotLayout,
	compiler PDFCompilerInterface,
	frontendBaseURL string,
	attemptTimeout time.Duration,
	logger *zap.SugaredLogger,
) *PrintJobService {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if attemptTimeout <= 0 {
		attemptTimeout = 2 * time.Minute
	}
	return &PrintJobService{
		jobs:            jobs,
		templates:       templates,
		profiles:        profiles,
		resolver:        resolver,
		renderer:        renderer,
		documents:       documents,
		layout:          layout,
		compiler:        compiler,
		frontendBaseURL: frontendBaseURL,
		attemptTimeout:  attemptTimeout,
		logger:          logger,
		locks:           make(map[uuid.UUID]*jobLock),
	}
}

// lockJob acquires the per-job mutex, creating it on first use. The
// returned release func unlocks it and drops the map entry once no other
// caller holds or waits on it.
func (s *PrintJobService) lockJob(id uuid.UUID) (release func()) {
	s.lockMu.Lock()
	l, ok := s.locks[id]
	if !ok {
		l = &jobLock{}
		s.locks[id] = l
	}
	l.refs++
	s.lockMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.lockMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, id)
		}
		s.lockMu.Unlock()
	}
}

// cancelRequested reports whether a cancellation request is pending.
func (s *PrintJobService) cancelRequested(id uuid.UUID) bool {
	_, ok := s.cancels.Load(id)
	return ok
}

// CreateJob validates the request and persists a new job in draft or
// queued state. Slot capacity is checked here: with k explicit selected
// slots and n items, creation succeeds iff k >= n.
func (s *PrintJobService) CreateJob(ctx context.Context, req NewPrintJob) (*models.PrintJob, error) {
	if len(req.Items) == 0 {
		return nil, models.NewError(models.ErrorKindResolution, "print job needs at least one item")
	}
	for i, item := range req.Items {
		if item.MemberID == nil && item.LicenseID == nil {
			return nil, models.NewError(models.ErrorKindResolution, "item %d references neither a member nor a license", i)
		}
	}

	version, err := s.loadPublishedVersion(ctx, req.TemplateVersionID)
	if err != nil {
		return nil, err
	}

	profile, err := s.loadJobProfile(ctx, req.PaperProfileID, version)
	if err != nil {
		return nil, err
	}

	if req.SelectedSlots != nil {
		if profile == nil {
			return nil, models.NewError(models.ErrorKindResolution, "selected slots require a paper profile")
		}
		normalized, err := s.layout.NormalizeSelection(profile, req.SelectedSlots)
		if err != nil {
			return nil, err
		}
		if len(normalized) < len(req.Items) {
			return nil, models.NewError(models.ErrorKindResolution,
				"not enough slots: %d items but only %d selected slots", len(req.Items), len(normalized))
		}
		req.SelectedSlots = normalized
	}

	now := time.Now().UTC()
	job := &models.PrintJob{
		ID:                uuid.New(),
		ClubID:            req.ClubID,
		TemplateVersionID: req.TemplateVersionID,
		PaperProfileID:    req.PaperProfileID,
		SelectedSlots:     req.SelectedSlots,
		Guides:            req.Guides,
		Status:            models.JobDraft,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if req.Queue {
		job.Status = models.JobQueued
	}
	for _, item := range req.Items {
		job.Items = append(job.Items, models.PrintJobItem{
			ID:        uuid.New(),
			JobID:     job.ID,
			MemberID:  item.MemberID,
			LicenseID: item.LicenseID,
			Status:    models.ItemPending,
		})
	}

	if err := s.jobs.CreateJob(ctx, job); err != nil {
		return nil, models.WrapError(models.ErrorKindStorage, err, "failed to persist print job")
	}
	s.logger.Infow("✓ print job created", "job_id", job.ID, "items", len(job.Items), "status", job.Status)
	return job, nil
}

// GetJob returns the job's current state; readable even mid-failure.
func (s *PrintJobService) GetJob(ctx context.Context, id uuid.UUID) (*models.PrintJob, error) {
	job, err := s.jobs.GetJob(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.NewError(models.ErrorKindResolution, "print job %s not found", id)
		}
		return nil, models.WrapError(models.ErrorKindStorage, err, "failed to load print job %s", id)
	}
	return job, nil
}

// Execute runs one attempt of the job pipeline. Calling it on a cancelled
// job, or on a succeeded job whose artifact is present, is a no-op that
// returns the current state without re-rendering or incrementing the
// attempt counter.
func (s *PrintJobService) Execute(ctx context.Context, id uuid.UUID) (*models.PrintJob, error) {
	release := s.lockJob(id)
	defer release()
	return s.executeLocked(ctx, id)
}

// Retry re-invokes execution after a failure or a cancellation. A
// cancelled job is un-cancelled and re-queued first; the attempt counter
// keeps incrementing across retries.
func (s *PrintJobService) Retry(ctx context.Context, id uuid.UUID) (*models.PrintJob, error) {
	release := s.lockJob(id)
	defer release()

	job, err := s.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if job.Status == models.JobCancelled {
		s.cancels.Delete(id)
		job.Status = models.JobQueued
		job.CancelledAt = nil
		job.UpdatedAt = time.Now().UTC()
		if err := s.jobs.SaveJob(ctx, job); err != nil {
			return nil, models.WrapError(models.ErrorKindStorage, err, "failed to re-queue print job %s", id)
		}
	}
	return s.executeLocked(ctx, id)
}

// Cancel requests cancellation. Draft, queued and failed jobs move to
// cancelled immediately; a running job observes the request at its next
// checkpoint and finishes as cancelled. Cancelling an already cancelled
// job is a no-op; succeeded jobs cannot be cancelled.
func (s *PrintJobService) Cancel(ctx context.Context, id uuid.UUID) (*models.PrintJob, error) {
	// Raise the cooperative flag before reading the store so an in-flight
	// attempt sees it at the next checkpoint.
	s.cancels.Store(id, struct{}{})

	job, err := s.GetJob(ctx, id)
	if err != nil {
		s.cancels.Delete(id)
		return nil, err
	}
	if job.Status == models.JobCancelled {
		// Already cancelled. The flag stays up for an attempt that loaded
		// the job before the cancellation was persisted.
		return job, nil
	}
	if !job.Status.CanCancel() {
		s.cancels.Delete(id)
		return nil, models.NewError(models.ErrorKindResolution, "print job %s is %s and cannot be cancelled", id, job.Status)
	}
	if job.Status == models.JobRunning {
		// The executing goroutine owns the job row; it will persist the
		// cancelled state at its next checkpoint.
		s.logger.Infow("cancellation requested for running job", "job_id", id)
		return job, nil
	}

	now := time.Now().UTC()
	job.Status = models.JobCancelled
	job.CancelledAt = &now
	job.UpdatedAt = now
	if err := s.jobs.SaveJob(ctx, job); err != nil {
		return nil, models.WrapError(models.ErrorKindStorage, err, "failed to persist cancellation of job %s", id)
	}
	s.logger.Infow("✓ print job cancelled", "job_id", id)
	return job, nil
}

// executeLocked performs one attempt. The caller holds the job lock.
func (s *PrintJobService) executeLocked(ctx context.Context, id uuid.UUID) (*models.PrintJob, error) {
	job, err := s.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}

	// Idempotence: cancelled jobs reject execution until retried, and a
	// succeeded job with an artifact returns as-is.
	if job.Status == models.JobCancelled {
		s.cancels.Delete(id)
		return job, nil
	}
	if job.Status == models.JobSucceeded && job.HasArtifact() {
		return job, nil
	}

	// A cancel that raced the attempt start wins over the run. The flag
	// is consumed here, not cleared: only a persisted cancellation (or
	// the explicit un-cancel in Retry) removes it.
	if s.cancelRequested(id) {
		now := time.Now().UTC()
		job.Status = models.JobCancelled
		job.CancelledAt = &now
		job.UpdatedAt = now
		if err := s.jobs.SaveJob(ctx, job); err != nil {
			return nil, models.WrapError(models.ErrorKindStorage, err, "failed to persist cancellation of job %s", id)
		}
		s.cancels.Delete(id)
		s.logger.Infow("✕ print job cancelled before the attempt started", "job_id", id)
		return job, nil
	}

	now := time.Now().UTC()
	job.Status = models.JobRunning
	job.AttemptCount++
	job.StartedAt = &now
	job.FinishedAt = nil
	job.ErrorDetail = ""
	job.MarkItems(models.ItemPending)
	if err := s.jobs.SaveJob(ctx, job); err != nil {
		return nil, models.WrapError(models.ErrorKindStorage, err, "failed to start print job %s", id)
	}
	s.logger.Infow("▶ print job attempt started", "job_id", id, "attempt", job.AttemptCount)

	attemptCtx, cancel := context.WithTimeout(ctx, s.attemptTimeout)
	defer cancel()
	started := time.Now()

	pdf, pages, renderErr := s.renderJob(attemptCtx, job)
	metrics.JobAttemptDuration.Observe(time.Since(started).Seconds())

	switch {
	case renderErr == nil:
		sum := sha256.Sum256(pdf)
		finished := time.Now().UTC()
		job.ArtifactPDF = pdf
		job.ArtifactSize = int64(len(pdf))
		job.ArtifactSHA256 = hex.EncodeToString(sum[:])
		job.Status = models.JobSucceeded
		job.FinishedAt = &finished
		job.UpdatedAt = finished
		job.MarkItems(models.ItemPrinted)
		if err := s.jobs.SaveJob(ctx, job); err != nil {
			return nil, models.WrapError(models.ErrorKindStorage, err, "failed to persist artifact of job %s", id)
		}
		// A cancel landing after the last checkpoint loses to the
		// completed artifact.
		s.cancels.Delete(id)
		metrics.JobAttemptsTotal.WithLabelValues("succeeded").Inc()
		metrics.PagesRendered.Add(float64(pages))
		s.logger.Infow("✓ print job succeeded", "job_id", id, "pages", pages, "artifact_bytes", job.ArtifactSize)
		return job, nil

	case errors.Is(renderErr, errCancelRequested) || s.cancelRequested(id):
		// Covers a cancel observed at a checkpoint, and one that raced a
		// failing attempt: requested before completion means cancelled.
		finished := time.Now().UTC()
		job.Status = models.JobCancelled
		if job.CancelledAt == nil {
			job.CancelledAt = &finished
		}
		job.UpdatedAt = finished
		// Item state produced so far is kept; cancellation never deletes it.
		if err := s.jobs.SaveJob(ctx, job); err != nil {
			return nil, models.WrapError(models.ErrorKindStorage, err, "failed to persist cancellation of job %s", id)
		}
		s.cancels.Delete(id)
		metrics.JobAttemptsTotal.WithLabelValues("cancelled").Inc()
		s.logger.Infow("✕ print job cancelled during execution", "job_id", id)
		return job, nil

	default:
		detail := renderErr.Error()
		outcome := "failed"
		if errors.Is(renderErr, context.DeadlineExceeded) {
			detail = fmt.Sprintf("attempt timed out after %s: %s", s.attemptTimeout, detail)
			outcome = "timeout"
		}
		finished := time.Now().UTC()
		job.Status = models.JobFailed
		job.ErrorDetail = utils.TruncateErrorDetail(detail, utils.MaxErrorDetail)
		job.FinishedAt = &finished
		job.UpdatedAt = finished
		job.MarkItems(models.ItemFailed)
		if err := s.jobs.SaveJob(ctx, job); err != nil {
			return nil, models.WrapError(models.ErrorKindStorage, err, "failed to persist failure of job %s", id)
		}
		metrics.JobAttemptsTotal.WithLabelValues(outcome).Inc()
		s.logger.Warnw("✗ print job attempt failed", "job_id", id, "attempt", job.AttemptCount, "error", detail)
		return job, models.WrapError(models.KindOf(renderErr), renderErr, "print job %s attempt %d failed", id, job.AttemptCount)
	}
}

// checkpoint is where cooperative cancellation is observed: the attempt
// context, the in-process flag and the persisted status are all checked.
func (s *PrintJobService) checkpoint(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.cancelRequested(id) {
		return errCancelRequested
	}
	status, err := s.jobs.GetJobStatus(ctx, id)
	if err == nil && status == models.JobCancelled {
		return errCancelRequested
	}
	return nil
}

// renderJob runs the render pipeline for one attempt: resolve slots,
// build a context per item, resolve elements, assemble the document and
// compile the PDF. It returns the PDF bytes and the page count.
func (s *PrintJobService) renderJob(ctx context.Context, job *models.PrintJob) ([]byte, int, error) {
	if err := s.checkpoint(ctx, job.ID); err != nil {
		return nil, 0, err
	}

	version, err := s.loadPublishedVersion(ctx, job.TemplateVersionID)
	if err != nil {
		return nil, 0, err
	}
	profile, err := s.loadJobProfile(ctx, job.PaperProfileID, version)
	if err != nil {
		return nil, 0, err
	}

	// Slot resolution happens, and is persisted, before any rendering.
	if err := s.resolveSlots(ctx, job, profile); err != nil {
		return nil, 0, err
	}

	itemElements := make([][]ResolvedElement, len(job.Items))
	for i := range job.Items {
		if err := s.checkpoint(ctx, job.ID); err != nil {
			return nil, 0, err
		}
		item := &job.Items[i]
		resolved, err := s.resolver.BuildContext(ctx, ContextRequest{
			MemberID:  item.MemberID,
			LicenseID: item.LicenseID,
			ClubID:    &job.ClubID,
		})
		if err != nil {
			return nil, 0, err
		}
		elements, err := s.renderer.Resolve(&version.Design, resolved.Values, s.frontendBaseURL)
		if err != nil {
			return nil, 0, err
		}
		itemElements[i] = elements
	}

	if err := s.checkpoint(ctx, job.ID); err != nil {
		return nil, 0, err
	}

	var htmlDoc string
	var pageW, pageH = version.CardFormat.WidthMM, version.CardFormat.HeightMM
	var pages int

	if profile == nil {
		// Single-card run: one page per item, all at the card format's
		// dimensions.
		htmlDoc = s.documents.BuildCardDocument(&version.CardFormat, version.Design.Background, itemElements, job.Guides)
		pages = len(itemElements)
	} else {
		slots, _, err := s.layout.Layout(profile, job.SelectedSlots)
		if err != nil {
			return nil, 0, err
		}
		sheetPages := buildSheetPages(job, itemElements, profile.EffectiveSlots())
		htmlDoc = s.documents.BuildSheetDocument(profile, slots, sheetPages, version.Design.Background, job.Guides)
		pageW, pageH = profile.SheetWidth, profile.SheetHeight
		pages = len(sheetPages)
	}

	if err := s.checkpoint(ctx, job.ID); err != nil {
		return nil, 0, err
	}

	pdf, err := s.compiler.Compile(ctx, htmlDoc, pageW, pageH)
	if err != nil {
		return nil, 0, models.WrapError(models.ErrorKindExecution, err, "PDF compilation failed")
	}
	return pdf, pages, nil
}

// resolveSlots assigns a slot index to every item and persists the
// assignment before rendering. With explicit selected slots, items are
// matched against the sorted selection in (existing slot_index asc, id
// asc) order; otherwise slots are assigned densely starting at 0.
// Assignments stay stable across retries.
func (s *PrintJobService) resolveSlots(ctx context.Context, job *models.PrintJob, profile *models.PaperProfile) error {
	if profile != nil && job.SelectedSlots != nil {
		normalized, err := s.layout.NormalizeSelection(profile, job.SelectedSlots)
		if err != nil {
			return err
		}
		if len(normalized) < len(job.Items) {
			return models.NewError(models.ErrorKindResolution,
				"not enough slots: %d items but only %d selected slots", len(job.Items), len(normalized))
		}
		job.SelectedSlots = normalized

		order := make([]int, len(job.Items))
		for i := range order {
			order[i] = i
		}
		sort.SliceStable(order, func(a, b int) bool {
			ia, ib := &job.Items[order[a]], &job.Items[order[b]]
			sa, sb := slotOrInfinity(ia.SlotIndex), slotOrInfinity(ib.SlotIndex)
			if sa != sb {
				return sa < sb
			}
			return ia.ID.String() < ib.ID.String()
		})
		for pos, idx := range order {
			slot := normalized[pos]
			job.Items[idx].SlotIndex = &slot
		}
	} else {
		for i := range job.Items {
			slot := i
			job.Items[i].SlotIndex = &slot
		}
	}

	if err := s.jobs.SaveJob(ctx, job); err != nil {
		return models.WrapError(models.ErrorKindStorage, err, "failed to persist slot assignment")
	}
	return nil
}

// buildSheetPages distributes item content across physical sheets. With
// explicit selected slots everything fits one sheet (capacity was checked
// up front); dense assignment overflows onto additional sheets of
// slotsPerSheet each.
func buildSheetPages(job *models.PrintJob, itemElements [][]ResolvedElement, slotsPerSheet int) []map[int][]ResolvedElement {
	if slotsPerSheet <= 0 {
		slotsPerSheet = 1
	}
	var pages []map[int][]ResolvedElement
	for i := range job.Items {
		slot := 0
		if job.Items[i].SlotIndex != nil {
			slot = *job.Items[i].SlotIndex
		}
		page := 0
		if job.SelectedSlots == nil {
			page = slot / slotsPerSheet
			slot = slot % slotsPerSheet
		}
		for len(pages) <= page {
			pages = append(pages, make(map[int][]ResolvedElement))
		}
		pages[page][slot] = itemElements[i]
	}
	return pages
}

func slotOrInfinity(idx *int) int {
	if idx == nil {
		return int(^uint(0) >> 1) // max int: unassigned items sort last
	}
	return *idx
}

// loadPublishedVersion loads a template version and enforces that only
// published versions are printable.
func (s *PrintJobService) loadPublishedVersion(ctx context.Context, id uuid.UUID) (*models.TemplateVersion, error) {
	version, err := s.templates.GetVersion(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.NewError(models.ErrorKindResolution, "template version %s not found", id)
		}
		return nil, models.WrapError(models.ErrorKindStorage, err, "failed to load template version %s", id)
	}
	if !version.IsPublished() {
		return nil, models.NewError(models.ErrorKindResolution, "template version %s is not published", id)
	}
	if err := version.EnsureProfileMatches(); err != nil {
		return nil, models.WrapError(models.ErrorKindResolution, err, "template version %s has a mismatched paper profile", id)
	}
	return version, nil
}

// loadJobProfile resolves the job's paper profile. The job's explicit
// profile wins; without one the job renders single cards even when the
// version carries a default profile for previews. The profile's card
// dimensions must match the version's format.
func (s *PrintJobService) loadJobProfile(ctx context.Context, profileID *uuid.UUID, version *models.TemplateVersion) (*models.PaperProfile, error) {
	if profileID == nil {
		return nil, nil
	}
	profile, err := s.profiles.GetPaperProfile(ctx, *profileID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.NewError(models.ErrorKindResolution, "paper profile %s not found", *profileID)
		}
		return nil, models.WrapError(models.ErrorKindStorage, err, "failed to load paper profile %s", *profileID)
	}
	if !profile.MatchesFormat(&version.CardFormat) {
		return nil, models.NewError(models.ErrorKindResolution,
			"paper profile %q card size %sx%smm does not match card format %q (%sx%smm)",
			profile.Name, profile.CardWidth, profile.CardHeight,
			version.CardFormat.Name, version.CardFormat.WidthMM, version.CardFormat.HeightMM)
	}
	return profile, nil
}
