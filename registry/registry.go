package registry

import "fmt"

// Field describes one allowed merge-field placeholder.
type Field struct {
	Key         string `json:"key"`
	Label       string `json:"label"`
	Description string `json:"description"`
}

// PhotoFieldKey is the merge field that resolves to the member's processed
// profile picture as a data URI.
const PhotoFieldKey = "member.profile_picture_processed"

// ValidationURLKey is the merge field carrying the QR validation link.
const ValidationURLKey = "qr.validation_url"

// fields is the closed catalog of merge fields a card template may
// reference. The set is fixed at compile time; there is no runtime
// registration.
var fields = []Field{
	{Key: "member.first_name", Label: "First name", Description: "Member's first name"},
	{Key: "member.last_name", Label: "Last name", Description: "Member's last name"},
	{Key: "member.full_name", Label: "Full name", Description: "Member's first and last name"},
	{Key: "member.sex", Label: "Sex", Description: "Member's registered sex"},
	{Key: "member.ltf_license_id", Label: "Federation license ID", Description: "Member's federation-wide license identifier"},
	{Key: PhotoFieldKey, Label: "Profile picture", Description: "Processed profile picture embedded as a data URI"},
	{Key: "club.name", Label: "Club name", Description: "Name of the member's club"},
	{Key: "license.license_type_name", Label: "License type", Description: "Name of the license type"},
	{Key: "license.year", Label: "License year", Description: "Season year of the license"},
	{Key: "license.start_date", Label: "Valid from", Description: "License start date (ISO-8601)"},
	{Key: "license.end_date", Label: "Valid until", Description: "License end date (ISO-8601)"},
	{Key: ValidationURLKey, Label: "Validation URL", Description: "Link encoded into the QR code to verify the license"},
}

var fieldIndex = func() map[string]Field {
	idx := make(map[string]Field, len(fields))
	for _, f := range fields {
		idx[f.Key] = f
	}
	return idx
}()

// ListFields returns the catalog in its fixed order. The returned slice is
// a copy; callers may not mutate the registry.
func ListFields() []Field {
	out := make([]Field, len(fields))
	copy(out, fields)
	return out
}

// IsAllowed reports whether key is a registered merge field.
func IsAllowed(key string) bool {
	_, ok := fieldIndex[key]
	return ok
}

// UnknownFieldError builds the error reported when a template or sample
// data references a key outside the registry.
func UnknownFieldError(key string) error {
	return fmt.Errorf("unknown merge field %q", key)
}
