package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"cardpress/db"
	"cardpress/geometry"
	"cardpress/models"
)

// MemberRepository reads member data for card rendering.
type MemberRepository struct{}

// NewMemberRepository creates a new MemberRepository.
func NewMemberRepository() *MemberRepository {
	return &MemberRepository{}
}

var _ MemberRepositoryInterface = (*MemberRepository)(nil)

// GetMember retrieves the narrow member shape by id.
func (r *MemberRepository) GetMember(ctx context.Context, id uuid.UUID) (*models.Member, error) {
	m := &models.Member{}
	var picture sql.NullString
	err := db.DB.QueryRowContext(ctx, `
		SELECT id, first_name, last_name, sex, ltf_license_id, club_id, profile_picture_processed
		FROM members WHERE id = $1`, id).
		Scan(&m.ID, &m.FirstName, &m.LastName, &m.Sex, &m.LTFLicenseID, &m.ClubID, &picture)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load member: %w", err)
	}
	m.ProfilePictureProcessed = picture.String
	return m, nil
}

// LicenseRepository reads license data for card rendering.
type LicenseRepository struct{}

// NewLicenseRepository creates a new LicenseRepository.
func NewLicenseRepository() *LicenseRepository {
	return &LicenseRepository{}
}

var _ LicenseRepositoryInterface = (*LicenseRepository)(nil)

// GetLicense retrieves the narrow license shape by id.
func (r *LicenseRepository) GetLicense(ctx context.Context, id uuid.UUID) (*models.License, error) {
	l := &models.License{}
	err := db.DB.QueryRowContext(ctx, `
		SELECT id, member_id, club_id, license_type_name, year, start_date, end_date
		FROM licenses WHERE id = $1`, id).
		Scan(&l.ID, &l.MemberID, &l.ClubID, &l.LicenseTypeName, &l.Year, &l.StartDate, &l.EndDate)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load license: %w", err)
	}
	return l, nil
}

// ClubRepository reads club data for card rendering.
type ClubRepository struct{}

// NewClubRepository creates a new ClubRepository.
func NewClubRepository() *ClubRepository {
	return &ClubRepository{}
}

var _ ClubRepositoryInterface = (*ClubRepository)(nil)

// GetClub retrieves the narrow club shape by id.
func (r *ClubRepository) GetClub(ctx context.Context, id uuid.UUID) (*models.Club, error) {
	c := &models.Club{}
	err := db.DB.QueryRowContext(ctx,
		`SELECT id, name FROM clubs WHERE id = $1`, id).Scan(&c.ID, &c.Name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load club: %w", err)
	}
	return c, nil
}

// PaperProfileRepository reads sheet layout profiles. Millimeter columns
// are numeric in Postgres and scanned through strings to keep exact
// two-decimal values.
type PaperProfileRepository struct{}

// NewPaperProfileRepository creates a new PaperProfileRepository.
func NewPaperProfileRepository() *PaperProfileRepository {
	return &PaperProfileRepository{}
}

var _ PaperProfileRepositoryInterface = (*PaperProfileRepository)(nil)

// GetPaperProfile retrieves a paper profile by id.
func (r *PaperProfileRepository) GetPaperProfile(ctx context.Context, id uuid.UUID) (*models.PaperProfile, error) {
	p := &models.PaperProfile{}
	dims := make([]string, 10)
	err := db.DB.QueryRowContext(ctx, `
		SELECT id, name, card_format_id,
		       sheet_width_mm, sheet_height_mm, card_width_mm, card_height_mm,
		       margin_top_mm, margin_right_mm, margin_bottom_mm, margin_left_mm,
		       horizontal_gap_mm, vertical_gap_mm,
		       columns, rows, slot_count
		FROM paper_profiles WHERE id = $1`, id).
		Scan(&p.ID, &p.Name, &p.CardFormatID,
			&dims[0], &dims[1], &dims[2], &dims[3],
			&dims[4], &dims[5], &dims[6], &dims[7],
			&dims[8], &dims[9],
			&p.Columns, &p.Rows, &p.SlotCount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load paper profile: %w", err)
	}

	targets := []*geometry.MM{
		&p.SheetWidth, &p.SheetHeight, &p.CardWidth, &p.CardHeight,
		&p.MarginTop, &p.MarginRight, &p.MarginBottom, &p.MarginLeft,
		&p.HGap, &p.VGap,
	}
	for i, t := range targets {
		if *t, err = geometry.MMFromString(dims[i]); err != nil {
			return nil, fmt.Errorf("invalid millimeter value on paper profile %s: %w", id, err)
		}
	}
	return p, nil
}
