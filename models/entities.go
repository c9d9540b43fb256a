package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Member is the narrow read shape the card pipeline consumes. Member CRUD
// lives outside this system.
type Member struct {
	ID           uuid.UUID `json:"id"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Sex          string    `json:"sex"`
	LTFLicenseID string    `json:"ltf_license_id"`
	ClubID       uuid.UUID `json:"club_id"`
	// ProfilePictureProcessed references the processed photo: a local
	// path, an http(s) URL or a drive:<fileID> reference.
	ProfilePictureProcessed string `json:"profile_picture_processed,omitempty"`
}

// FullName joins first and last name, tolerating either being empty.
func (m *Member) FullName() string {
	return strings.TrimSpace(strings.TrimSpace(m.FirstName) + " " + strings.TrimSpace(m.LastName))
}

// License is the narrow read shape for a member's license.
type License struct {
	ID              uuid.UUID `json:"id"`
	MemberID        uuid.UUID `json:"member_id"`
	ClubID          uuid.UUID `json:"club_id"`
	LicenseTypeName string    `json:"license_type_name"`
	Year            int       `json:"year"`
	StartDate       time.Time `json:"start_date"`
	EndDate         time.Time `json:"end_date"`
}

// Club is the narrow read shape for a club.
type Club struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}
