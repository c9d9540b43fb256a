package service

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cardpress/models"
	"cardpress/registry"
)

func (f *fixture) newResolver(photos PhotoStorageInterface) *ContextResolver {
	return NewContextResolver(f.store, f.store, f.store, photos, testBaseURL, nil)
}

func TestBuildContextFromLicense(t *testing.T) {
	f := newFixture(t)
	resolver := f.newResolver(nil)

	resolved, err := resolver.BuildContext(context.Background(), ContextRequest{
		LicenseID: &f.licenseID,
	})
	require.NoError(t, err)

	values := resolved.Values
	assert.Equal(t, "Ada", values["member.first_name"])
	assert.Equal(t, "Lovelace", values["member.last_name"])
	assert.Equal(t, "Ada Lovelace", values["member.full_name"])
	assert.Equal(t, "F", values["member.sex"])
	assert.Equal(t, "LTF-2026-0042", values["member.ltf_license_id"])
	assert.Equal(t, "Lund Tennis Club", values["club.name"])
	assert.Equal(t, "Senior", values["license.license_type_name"])
	assert.Equal(t, "2026", values["license.year"])
	assert.Equal(t, "2026-01-01", values["license.start_date"])
	assert.Equal(t, "2026-12-31", values["license.end_date"])
	assert.Equal(t, testBaseURL+"/verify-license/"+f.licenseID.String(), values[registry.ValidationURLKey])

	// Every registry key has a value, even if empty.
	for _, field := range registry.ListFields() {
		_, ok := values[field.Key]
		assert.True(t, ok, field.Key)
	}
}

func TestBuildContextMemberOnlyInfersClub(t *testing.T) {
	f := newFixture(t)
	resolver := f.newResolver(nil)

	resolved, err := resolver.BuildContext(context.Background(), ContextRequest{
		MemberID: &f.memberID,
	})
	require.NoError(t, err)
	assert.Equal(t, "Lund Tennis Club", resolved.Values["club.name"])
	assert.Empty(t, resolved.Values["license.license_type_name"])
	// Without a license the QR link points at the sample subject.
	assert.Equal(t, testBaseURL+"/verify-license/sample", resolved.Values[registry.ValidationURLKey])
}

func TestBuildContextAgreementErrors(t *testing.T) {
	f := newFixture(t)
	resolver := f.newResolver(nil)
	otherMember := uuid.New()
	otherClub := uuid.New()

	tests := []struct {
		name    string
		req     ContextRequest
		wantErr string
	}{
		{
			name:    "license belongs to another member",
			req:     ContextRequest{LicenseID: &f.licenseID, MemberID: &otherMember},
			wantErr: "belongs to member",
		},
		{
			name:    "license belongs to another club",
			req:     ContextRequest{LicenseID: &f.licenseID, ClubID: &otherClub},
			wantErr: "belongs to club",
		},
		{
			name:    "member belongs to another club",
			req:     ContextRequest{MemberID: &f.memberID, ClubID: &otherClub},
			wantErr: "belongs to club",
		},
		{
			name:    "unknown license",
			req:     ContextRequest{LicenseID: ptr(uuid.New())},
			wantErr: "not found",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := resolver.BuildContext(context.Background(), tt.req)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Equal(t, models.ErrorKindResolution, models.KindOf(err))
		})
	}
}

func TestBuildContextSampleData(t *testing.T) {
	f := newFixture(t)
	resolver := f.newResolver(nil)

	resolved, err := resolver.BuildContext(context.Background(), ContextRequest{
		LicenseID: &f.licenseID,
		SampleData: map[string]interface{}{
			"member": map[string]interface{}{
				"first_name": "Grace",
			},
			"license.year":      2027,
			"qr.validation_url": "https://example.org/custom",
		},
	})
	require.NoError(t, err)
	// Sample data overrides entity values; nested maps flatten one level.
	assert.Equal(t, "Grace", resolved.Values["member.first_name"])
	assert.Equal(t, "2027", resolved.Values["license.year"])
	// An explicit validation URL suppresses the default.
	assert.Equal(t, "https://example.org/custom", resolved.Values[registry.ValidationURLKey])
	// Untouched fields keep their entity values.
	assert.Equal(t, "Lovelace", resolved.Values["member.last_name"])
}

func TestBuildContextSampleDataRejectsUnknownKeys(t *testing.T) {
	f := newFixture(t)
	resolver := f.newResolver(nil)

	_, err := resolver.BuildContext(context.Background(), ContextRequest{
		SampleData: map[string]interface{}{"member.email": "ada@example.org"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown merge field "member.email"`)
	assert.Equal(t, models.ErrorKindSchema, models.KindOf(err))
}

func TestStringifyValue(t *testing.T) {
	assert.Equal(t, "true", stringifyValue(true))
	assert.Equal(t, "42", stringifyValue(42))
	assert.Equal(t, "3.5", stringifyValue(3.5))
	assert.Equal(t, "", stringifyValue(nil))
	assert.Equal(t, "hello", stringifyValue("hello"))
}

func TestResolvePhotoEmbedsDataURI(t *testing.T) {
	f := newFixture(t)

	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 100, B: 50, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	f.store.PutMember(models.Member{
		ID: f.memberID, FirstName: "Ada", LastName: "Lovelace",
		ClubID: f.clubID, ProfilePictureProcessed: "photos/ada.png",
	})
	resolver := f.newResolver(&fakePhotos{data: buf.Bytes()})

	resolved, err := resolver.BuildContext(context.Background(), ContextRequest{MemberID: &f.memberID})
	require.NoError(t, err)
	photo := resolved.Values[registry.PhotoFieldKey]
	assert.True(t, strings.HasPrefix(photo, "data:image/jpeg;base64,"), "got %q", photo[:min(40, len(photo))])
}

func TestResolvePhotoFailureDegradesToEmpty(t *testing.T) {
	f := newFixture(t)
	f.store.PutMember(models.Member{
		ID: f.memberID, FirstName: "Ada", LastName: "Lovelace",
		ClubID: f.clubID, ProfilePictureProcessed: "photos/missing.png",
	})
	resolver := f.newResolver(&fakePhotos{err: assert.AnError})

	resolved, err := resolver.BuildContext(context.Background(), ContextRequest{MemberID: &f.memberID})
	require.NoError(t, err, "photo failures never fail the resolution")
	assert.Empty(t, resolved.Values[registry.PhotoFieldKey])
}

func TestResolvePhotoPassesThroughDataURI(t *testing.T) {
	f := newFixture(t)
	uri := "data:image/png;base64,aGVsbG8="
	f.store.PutMember(models.Member{
		ID: f.memberID, FirstName: "Ada", LastName: "Lovelace",
		ClubID: f.clubID, ProfilePictureProcessed: uri,
	})
	resolver := f.newResolver(&fakePhotos{err: assert.AnError})

	resolved, err := resolver.BuildContext(context.Background(), ContextRequest{MemberID: &f.memberID})
	require.NoError(t, err)
	assert.Equal(t, uri, resolved.Values[registry.PhotoFieldKey])
}
