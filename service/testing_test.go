package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"cardpress/geometry"
	"cardpress/models"
	"cardpress/repository"
)

const testBaseURL = "https://cards.federation.example"

func mm(t *testing.T, s string) geometry.MM {
	t.Helper()
	v, err := geometry.MMFromString(s)
	require.NoError(t, err)
	return v
}

// fakeCompiler stands in for Chrome in pipeline tests. It can fail the
// first N calls, and an optional hook runs inside Compile so tests can
// block or observe the attempt context.
type fakeCompiler struct {
	mu      sync.Mutex
	calls   int
	lastDoc string
	lastW   geometry.MM
	lastH   geometry.MM

	failures int
	hook     func(ctx context.Context) error
}

var _ PDFCompilerInterface = (*fakeCompiler)(nil)

func (c *fakeCompiler) Compile(ctx context.Context, htmlDoc string, pageW, pageH geometry.MM) ([]byte, error) {
	c.mu.Lock()
	c.calls++
	call := c.calls
	c.lastDoc = htmlDoc
	c.lastW, c.lastH = pageW, pageH
	hook := c.hook
	failures := c.failures
	c.mu.Unlock()

	if hook != nil {
		if err := hook(ctx); err != nil {
			return nil, err
		}
	}
	if call <= failures {
		return nil, fmt.Errorf("chrome crashed on call %d", call)
	}
	return []byte(fmt.Sprintf("%%PDF-1.4 fake artifact %d", call)), nil
}

func (c *fakeCompiler) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func (c *fakeCompiler) document() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastDoc
}

// fakePhotos serves fixed bytes for any reference.
type fakePhotos struct {
	data []byte
	err  error
}

var _ PhotoStorageInterface = (*fakePhotos)(nil)

func (f *fakePhotos) Load(context.Context, string) ([]byte, error) {
	return f.data, f.err
}

// fixture is a seeded in-memory world: one club, one member with a 2026
// license, an ID-1 card format, an A4 2x5 paper profile and a published
// template version rendering name and QR.
type fixture struct {
	store *repository.MemoryStore

	clubID    uuid.UUID
	memberID  uuid.UUID
	licenseID uuid.UUID
	profileID uuid.UUID
	versionID uuid.UUID

	format  models.CardFormat
	profile models.PaperProfile
	version models.TemplateVersion
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:     repository.NewMemoryStore(),
		clubID:    uuid.New(),
		memberID:  uuid.New(),
		licenseID: uuid.New(),
		profileID: uuid.New(),
		versionID: uuid.New(),
	}

	f.store.PutClub(models.Club{ID: f.clubID, Name: "Lund Tennis Club"})
	f.store.PutMember(models.Member{
		ID:           f.memberID,
		FirstName:    "Ada",
		LastName:     "Lovelace",
		Sex:          "F",
		LTFLicenseID: "LTF-2026-0042",
		ClubID:       f.clubID,
	})
	f.store.PutLicense(models.License{
		ID:              f.licenseID,
		MemberID:        f.memberID,
		ClubID:          f.clubID,
		LicenseTypeName: "Senior",
		Year:            2026,
		StartDate:       time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:         time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC),
	})

	f.format = models.CardFormat{
		ID:       uuid.New(),
		Name:     "ID-1",
		WidthMM:  mm(t, "85.60"),
		HeightMM: mm(t, "53.98"),
	}
	f.profile = models.PaperProfile{
		ID:           f.profileID,
		Name:         "A4 2x5",
		SheetWidth:   mm(t, "210"),
		SheetHeight:  mm(t, "297"),
		CardWidth:    mm(t, "85.60"),
		CardHeight:   mm(t, "53.98"),
		MarginTop:    mm(t, "13.55"),
		MarginRight:  mm(t, "19.40"),
		MarginBottom: mm(t, "13.55"),
		MarginLeft:   mm(t, "19.40"),
		HGap:         mm(t, "0"),
		VGap:         mm(t, "0"),
		Columns:      2,
		Rows:         5,
		SlotCount:    10,
	}
	f.store.PutPaperProfile(f.profile)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	published := now
	f.version = models.TemplateVersion{
		ID:         f.versionID,
		TemplateID: uuid.New(),
		Number:     1,
		Status:     models.VersionPublished,
		CardFormat: f.format,
		Design: models.DesignPayload{
			Elements: []models.Element{
				{
					ID: "name", Type: models.ElementText,
					XMM: mm(t, "4"), YMM: mm(t, "4"),
					WidthMM: mm(t, "50"), HeightMM: mm(t, "8"),
					Opacity: 1, ZIndex: 2,
					Text: "{{ member.full_name }}",
				},
				{
					ID: "qr", Type: models.ElementQR,
					XMM: mm(t, "60"), YMM: mm(t, "30"),
					WidthMM: mm(t, "20"), HeightMM: mm(t, "20"),
					Opacity: 1, ZIndex: 1,
					MergeField: "qr.validation_url",
				},
			},
		},
		PublishedAt: &published,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	require.NoError(t, f.store.SaveVersion(context.Background(), &f.version))

	return f
}

// newPipeline wires a PrintJobService over the fixture with the given
// compiler and attempt timeout.
func (f *fixture) newPipeline(t *testing.T, compiler PDFCompilerInterface, timeout time.Duration) *PrintJobService {
	t.Helper()
	resolver := NewContextResolver(f.store, f.store, f.store, nil, testBaseURL, nil)
	renderer := NewElementRenderer(nil)
	documents := NewDocumentBuilder(renderer)
	layout := NewSlotLayout()
	return NewPrintJobService(
		f.store, f.store, f.store,
		resolver, renderer, documents, layout, compiler,
		testBaseURL, timeout, nil)
}

func ptr[T any](v T) *T {
	return &v
}
