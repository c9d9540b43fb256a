package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"cardpress/models"
	"cardpress/registry"
	"cardpress/repository"
	"cardpress/utils"
)

// ContextRequest identifies the entities a merge context is built from.
// All identifiers are optional; sample data can stand in for missing
// entities when previewing a template.
type ContextRequest struct {
	MemberID   *uuid.UUID
	LicenseID  *uuid.UUID
	ClubID     *uuid.UUID
	SampleData map[string]interface{}
}

// ResolvedContext is the outcome of context building: one string value per
// registry key plus the loaded entities for downstream checks.
type ResolvedContext struct {
	Values  map[string]string
	Member  *models.Member
	License *models.License
	Club    *models.Club
}

// ContextResolver turns member/license/club identifiers and free-form
// sample data into a complete merge-field context.
type ContextResolver struct {
	members         repository.MemberRepositoryInterface
	licenses        repository.LicenseRepositoryInterface
	clubs           repository.ClubRepositoryInterface
	photos          PhotoStorageInterface
	frontendBaseURL string
	logger          *zap.SugaredLogger
}

// NewContextResolver creates a ContextResolver. photos may be nil, in
// which case photo merge fields resolve to empty strings.
func NewContextResolver(
	members repository.MemberRepositoryInterface,
	licenses repository.LicenseRepositoryInterface,
	clubs repository.ClubRepositoryInterface,
	photos PhotoStorageInterface,
	frontendBaseURL string,
	logger *zap.SugaredLogger,
) *ContextResolver {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &ContextResolver{
		members:         members,
		licenses:        licenses,
		clubs:           clubs,
		photos:          photos,
		frontendBaseURL: frontendBaseURL,
		logger:          logger,
	}
}

// BuildContext resolves entities, fills every registry key with a string
// value (empty when the underlying entity or field is absent), applies
// sample-data overrides and defaults the QR validation URL.
func (r *ContextResolver) BuildContext(ctx context.Context, req ContextRequest) (*ResolvedContext, error) {
	resolved, err := r.resolveEntities(ctx, req)
	if err != nil {
		return nil, err
	}

	values := make(map[string]string, 16)
	for _, f := range registry.ListFields() {
		values[f.Key] = ""
	}

	if m := resolved.Member; m != nil {
		values["member.first_name"] = m.FirstName
		values["member.last_name"] = m.LastName
		values["member.full_name"] = m.FullName()
		values["member.sex"] = m.Sex
		values["member.ltf_license_id"] = m.LTFLicenseID
		values[registry.PhotoFieldKey] = r.resolvePhoto(ctx, m)
	}
	if c := resolved.Club; c != nil {
		values["club.name"] = c.Name
	}
	if l := resolved.License; l != nil {
		values["license.license_type_name"] = l.LicenseTypeName
		values["license.year"] = strconv.Itoa(l.Year)
		if !l.StartDate.IsZero() {
			values["license.start_date"] = l.StartDate.Format("2006-01-02")
		}
		if !l.EndDate.IsZero() {
			values["license.end_date"] = l.EndDate.Format("2006-01-02")
		}
	}

	if err := applySampleData(values, req.SampleData); err != nil {
		return nil, err
	}

	if values[registry.ValidationURLKey] == "" {
		subject := "sample"
		if resolved.License != nil {
			subject = resolved.License.ID.String()
		}
		values[registry.ValidationURLKey] = fmt.Sprintf("%s/verify-license/%s", r.frontendBaseURL, subject)
	}

	resolved.Values = values
	return resolved, nil
}

// resolveEntities loads the referenced entities and enforces agreement:
// a license's member and club must match explicitly passed identifiers,
// and a member's club is inferred when no club is given.
func (r *ContextResolver) resolveEntities(ctx context.Context, req ContextRequest) (*ResolvedContext, error) {
	out := &ResolvedContext{}

	memberID := req.MemberID
	clubID := req.ClubID

	if req.LicenseID != nil {
		license, err := r.licenses.GetLicense(ctx, *req.LicenseID)
		if err != nil {
			return nil, lookupError("license", *req.LicenseID, err)
		}
		out.License = license
		if memberID != nil && *memberID != license.MemberID {
			return nil, models.NewError(models.ErrorKindResolution,
				"license %s belongs to member %s, not %s", license.ID, license.MemberID, *memberID)
		}
		if clubID != nil && *clubID != license.ClubID {
			return nil, models.NewError(models.ErrorKindResolution,
				"license %s belongs to club %s, not %s", license.ID, license.ClubID, *clubID)
		}
		mid := license.MemberID
		memberID = &mid
		cid := license.ClubID
		clubID = &cid
	}

	if memberID != nil {
		member, err := r.members.GetMember(ctx, *memberID)
		if err != nil {
			return nil, lookupError("member", *memberID, err)
		}
		out.Member = member
		if clubID != nil && out.License == nil && *clubID != member.ClubID {
			return nil, models.NewError(models.ErrorKindResolution,
				"member %s belongs to club %s, not %s", member.ID, member.ClubID, *clubID)
		}
		if clubID == nil {
			cid := member.ClubID
			clubID = &cid
		}
	}

	if clubID != nil && *clubID != uuid.Nil {
		club, err := r.clubs.GetClub(ctx, *clubID)
		if err != nil {
			return nil, lookupError("club", *clubID, err)
		}
		out.Club = club
	}

	return out, nil
}

// resolvePhoto loads and embeds the member's processed profile picture as
// a data URI. Photo loading is best-effort: any failure degrades to an
// empty string instead of failing the whole resolution.
func (r *ContextResolver) resolvePhoto(ctx context.Context, m *models.Member) string {
	if m.ProfilePictureProcessed == "" || r.photos == nil {
		return ""
	}
	if utils.IsDataURI(m.ProfilePictureProcessed) {
		return m.ProfilePictureProcessed
	}
	data, err := r.photos.Load(ctx, m.ProfilePictureProcessed)
	if err != nil {
		r.logger.Warnw("⚠️ failed to load profile picture, rendering without photo",
			"member_id", m.ID, "ref", m.ProfilePictureProcessed, "error", err)
		return ""
	}
	optimized, err := OptimizePhoto(data)
	if err != nil {
		r.logger.Warnw("⚠️ failed to process profile picture, rendering without photo",
			"member_id", m.ID, "error", err)
		return ""
	}
	return utils.BuildDataURI("image/jpeg", optimized)
}

// applySampleData flattens one nesting level ({"member": {"sex": ...}}
// becomes "member.sex") and overrides context values. Sample data cannot
// introduce keys outside the registry.
func applySampleData(values map[string]string, sample map[string]interface{}) error {
	for _, key := range sortedKeys(sample) {
		v := sample[key]
		if nested, ok := v.(map[string]interface{}); ok {
			for _, sub := range sortedKeys(nested) {
				flat := key + "." + sub
				if !registry.IsAllowed(flat) {
					return models.WrapError(models.ErrorKindSchema, registry.UnknownFieldError(flat),
						"sample data references a key outside the merge-field registry: %s", flat)
				}
				values[flat] = stringifyValue(nested[sub])
			}
			continue
		}
		if !registry.IsAllowed(key) {
			return models.WrapError(models.ErrorKindSchema, registry.UnknownFieldError(key),
				"sample data references a key outside the merge-field registry: %s", key)
		}
		values[key] = stringifyValue(v)
	}
	return nil
}

// stringifyValue renders sample values the same way entity fields render:
// ISO-8601 dates, plain numbers, lowercase booleans.
func stringifyValue(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case json.Number:
		return t.String()
	case time.Time:
		return t.Format("2006-01-02")
	default:
		return fmt.Sprintf("%v", t)
	}
}

func lookupError(entity string, id uuid.UUID, err error) error {
	if errors.Is(err, models.ErrNotFound) {
		return models.NewError(models.ErrorKindResolution, "%s %s not found", entity, id)
	}
	return models.WrapError(models.ErrorKindResolution, err, "failed to load %s %s", entity, id)
}
