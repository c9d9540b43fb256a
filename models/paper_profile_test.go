package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardpress/geometry"
)

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	v, err := time.Parse("2006-01-02", s)
	require.NoError(t, err)
	return v
}

func mm(t *testing.T, s string) geometry.MM {
	t.Helper()
	v, err := geometry.MMFromString(s)
	require.NoError(t, err)
	return v
}

// a4TwoByFive is an A4 sheet holding ten ID-1 cards in two columns.
func a4TwoByFive(t *testing.T) PaperProfile {
	t.Helper()
	return PaperProfile{
		ID:           uuid.New(),
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
}

func TestPaperProfileValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*PaperProfile)
		wantErr string
	}{
		{name: "valid", mutate: func(*PaperProfile) {}},
		{
			name:    "missing name",
			mutate:  func(p *PaperProfile) { p.Name = "" },
			wantErr: "name is required",
		},
		{
			name:    "zero columns",
			mutate:  func(p *PaperProfile) { p.Columns = 0 },
			wantErr: "at least one row and one column",
		},
		{
			name:    "negative gap",
			mutate:  func(p *PaperProfile) { p.HGap = mm(t, "-1") },
			wantErr: "horizontal_gap cannot be negative",
		},
		{
			name:    "grid wider than sheet",
			mutate:  func(p *PaperProfile) { p.Columns = 3 },
			wantErr: "exceeds sheet width",
		},
		{
			name:    "grid taller than sheet",
			mutate:  func(p *PaperProfile) { p.Rows = 6 },
			wantErr: "exceeds sheet height",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := a4TwoByFive(t)
			tt.mutate(&p)
			err := p.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestEffectiveSlots(t *testing.T) {
	p := a4TwoByFive(t)
	assert.Equal(t, 10, p.EffectiveSlots())

	// An advisory count above the grid is clamped to rows*columns.
	p.SlotCount = 12
	assert.Equal(t, 10, p.EffectiveSlots())

	// A smaller advisory count limits the generated slots.
	p.SlotCount = 8
	assert.Equal(t, 8, p.EffectiveSlots())

	p.SlotCount = 0
	assert.Equal(t, 10, p.EffectiveSlots())
}

func TestMatchesFormat(t *testing.T) {
	p := a4TwoByFive(t)
	id1 := CardFormat{Name: "ID-1", WidthMM: mm(t, "85.60"), HeightMM: mm(t, "53.98")}
	assert.True(t, p.MatchesFormat(&id1))

	id2 := CardFormat{Name: "ID-2", WidthMM: mm(t, "105"), HeightMM: mm(t, "74")}
	assert.False(t, p.MatchesFormat(&id2))

	// Explicit format ids must agree when both sides carry one.
	p.CardFormatID = uuid.New()
	bound := id1
	bound.ID = uuid.New()
	assert.False(t, p.MatchesFormat(&bound))
	bound.ID = p.CardFormatID
	assert.True(t, p.MatchesFormat(&bound))
}

func TestJobStatusTransitionsHelpers(t *testing.T) {
	assert.True(t, JobSucceeded.IsTerminal())
	for _, s := range []JobStatus{JobDraft, JobQueued, JobRunning, JobFailed, JobCancelled} {
		assert.False(t, s.IsTerminal(), string(s))
	}

	for _, s := range []JobStatus{JobDraft, JobQueued, JobRunning, JobFailed} {
		assert.True(t, s.CanCancel(), string(s))
	}
	assert.False(t, JobSucceeded.CanCancel())
	assert.False(t, JobCancelled.CanCancel())
}

func TestTemplateVersionPublishIsIdempotent(t *testing.T) {
	v := TemplateVersion{ID: uuid.New(), Status: VersionDraft}
	first := mustTime(t, "2026-01-10")
	v.Publish(first)
	require.True(t, v.IsPublished())
	require.NotNil(t, v.PublishedAt)

	// A second publish keeps the original timestamp.
	v.Publish(mustTime(t, "2026-02-20"))
	assert.Equal(t, first, *v.PublishedAt)
	assert.Error(t, v.EnsureEditable())
}
