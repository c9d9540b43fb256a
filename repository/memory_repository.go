package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"cardpress/models"
)

// MemoryStore is an in-memory implementation of every repository
// interface. It backs the service tests and standalone preview runs where
// no database is configured. Values are copied on the way in and out so
// callers never alias store state.
type MemoryStore struct {
	mu        sync.RWMutex
	members   map[uuid.UUID]models.Member
	licenses  map[uuid.UUID]models.License
	clubs     map[uuid.UUID]models.Club
	profiles  map[uuid.UUID]models.PaperProfile
	templates map[uuid.UUID]models.CardTemplate
	versions  map[uuid.UUID]models.TemplateVersion
	jobs      map[uuid.UUID]models.PrintJob
	fedConfig models.FederationConfig
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		members:   make(map[uuid.UUID]models.Member),
		licenses:  make(map[uuid.UUID]models.License),
		clubs:     make(map[uuid.UUID]models.Club),
		profiles:  make(map[uuid.UUID]models.PaperProfile),
		templates: make(map[uuid.UUID]models.CardTemplate),
		versions:  make(map[uuid.UUID]models.TemplateVersion),
		jobs:      make(map[uuid.UUID]models.PrintJob),
	}
}

var (
	_ MemberRepositoryInterface       = (*MemoryStore)(nil)
	_ LicenseRepositoryInterface      = (*MemoryStore)(nil)
	_ ClubRepositoryInterface         = (*MemoryStore)(nil)
	_ PaperProfileRepositoryInterface = (*MemoryStore)(nil)
	_ TemplateRepositoryInterface     = (*MemoryStore)(nil)
	_ PrintJobRepositoryInterface     = (*MemoryStore)(nil)
)

// PutMember seeds a member (test/bootstrap helper).
func (s *MemoryStore) PutMember(m models.Member) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members[m.ID] = m
}

// PutLicense seeds a license.
func (s *MemoryStore) PutLicense(l models.License) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.licenses[l.ID] = l
}

// PutClub seeds a club.
func (s *MemoryStore) PutClub(c models.Club) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clubs[c.ID] = c
}

// GetMember returns the member or models.ErrNotFound.
func (s *MemoryStore) GetMember(_ context.Context, id uuid.UUID) (*models.Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.members[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := m
	return &cp, nil
}

// GetLicense returns the license or models.ErrNotFound.
func (s *MemoryStore) GetLicense(_ context.Context, id uuid.UUID) (*models.License, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.licenses[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := l
	return &cp, nil
}

// GetClub returns the club or models.ErrNotFound.
func (s *MemoryStore) GetClub(_ context.Context, id uuid.UUID) (*models.Club, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.clubs[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := c
	return &cp, nil
}

// PutPaperProfile seeds a paper profile.
func (s *MemoryStore) PutPaperProfile(p models.PaperProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.ID] = p
}

// GetPaperProfile returns the profile or models.ErrNotFound.
func (s *MemoryStore) GetPaperProfile(_ context.Context, id uuid.UUID) (*models.PaperProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := p
	return &cp, nil
}

// GetTemplate returns the template or models.ErrNotFound.
func (s *MemoryStore) GetTemplate(_ context.Context, id uuid.UUID) (*models.CardTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.templates[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := t
	return &cp, nil
}

// SaveTemplate inserts or updates a template.
func (s *MemoryStore) SaveTemplate(_ context.Context, t *models.CardTemplate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.templates[t.ID] = *t
	return nil
}

// GetVersion returns the template version or models.ErrNotFound.
func (s *MemoryStore) GetVersion(_ context.Context, id uuid.UUID) (*models.TemplateVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.versions[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := copyVersion(v)
	return &cp, nil
}

// SaveVersion inserts or updates a template version.
func (s *MemoryStore) SaveVersion(_ context.Context, v *models.TemplateVersion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.versions[v.ID] = copyVersion(*v)
	return nil
}

// DeleteVersion removes a draft version. Published versions are immutable
// and cannot be deleted.
func (s *MemoryStore) DeleteVersion(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.versions[id]
	if !ok {
		return models.ErrNotFound
	}
	if err := v.EnsureEditable(); err != nil {
		return err
	}
	delete(s.versions, id)
	return nil
}

// GetFederationConfig returns the singleton config.
func (s *MemoryStore) GetFederationConfig(_ context.Context) (*models.FederationConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp := s.fedConfig
	if s.fedConfig.DefaultTemplateVersionID != nil {
		id := *s.fedConfig.DefaultTemplateVersionID
		cp.DefaultTemplateVersionID = &id
	}
	return &cp, nil
}

// SetDefaultTemplateVersion swaps the global default template reference.
func (s *MemoryStore) SetDefaultTemplateVersion(_ context.Context, versionID *uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if versionID == nil {
		s.fedConfig.DefaultTemplateVersionID = nil
	} else {
		if _, ok := s.versions[*versionID]; !ok {
			return models.ErrNotFound
		}
		id := *versionID
		s.fedConfig.DefaultTemplateVersionID = &id
	}
	s.fedConfig.UpdatedAt = time.Now().UTC()
	return nil
}

// GetJob returns a deep copy of the job or models.ErrNotFound.
func (s *MemoryStore) GetJob(_ context.Context, id uuid.UUID) (*models.PrintJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := copyJob(j)
	return &cp, nil
}

// CreateJob inserts a new job.
func (s *MemoryStore) CreateJob(_ context.Context, job *models.PrintJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; exists {
		return models.NewError(models.ErrorKindStorage, "print job %s already exists", job.ID)
	}
	s.jobs[job.ID] = copyJob(*job)
	return nil
}

// SaveJob updates an existing job including items and artifact.
func (s *MemoryStore) SaveJob(_ context.Context, job *models.PrintJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; !exists {
		return models.ErrNotFound
	}
	s.jobs[job.ID] = copyJob(*job)
	return nil
}

// GetJobStatus reads only the status column equivalent.
func (s *MemoryStore) GetJobStatus(_ context.Context, id uuid.UUID) (models.JobStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return "", models.ErrNotFound
	}
	return j.Status, nil
}

// ListJobIDsByStatus returns matching job ids, oldest first.
func (s *MemoryStore) ListJobIDsByStatus(_ context.Context, status models.JobStatus) ([]uuid.UUID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	type entry struct {
		id uuid.UUID
		at time.Time
	}
	var entries []entry
	for id, j := range s.jobs {
		if j.Status == status {
			entries = append(entries, entry{id: id, at: j.CreatedAt})
		}
	}
	sort.Slice(entries, func(i, k int) bool {
		if entries[i].at.Equal(entries[k].at) {
			return entries[i].id.String() < entries[k].id.String()
		}
		return entries[i].at.Before(entries[k].at)
	})
	ids := make([]uuid.UUID, len(entries))
	for i, e := range entries {
		ids[i] = e.id
	}
	return ids, nil
}

func copyJob(j models.PrintJob) models.PrintJob {
	cp := j
	cp.Items = append([]models.PrintJobItem(nil), j.Items...)
	for i := range cp.Items {
		if j.Items[i].MemberID != nil {
			id := *j.Items[i].MemberID
			cp.Items[i].MemberID = &id
		}
		if j.Items[i].LicenseID != nil {
			id := *j.Items[i].LicenseID
			cp.Items[i].LicenseID = &id
		}
		if j.Items[i].SlotIndex != nil {
			n := *j.Items[i].SlotIndex
			cp.Items[i].SlotIndex = &n
		}
	}
	cp.SelectedSlots = append([]int(nil), j.SelectedSlots...)
	cp.ArtifactPDF = append([]byte(nil), j.ArtifactPDF...)
	if j.PaperProfileID != nil {
		id := *j.PaperProfileID
		cp.PaperProfileID = &id
	}
	cp.StartedAt = copyTime(j.StartedAt)
	cp.FinishedAt = copyTime(j.FinishedAt)
	cp.CancelledAt = copyTime(j.CancelledAt)
	return cp
}

func copyVersion(v models.TemplateVersion) models.TemplateVersion {
	cp := v
	cp.Design.Elements = append([]models.Element(nil), v.Design.Elements...)
	if v.PaperProfile != nil {
		p := *v.PaperProfile
		cp.PaperProfile = &p
	}
	cp.PublishedAt = copyTime(v.PublishedAt)
	return cp
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	cp := *t
	return &cp
}
