package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

const (
	// photoMaxDimension caps the embedded photo size; profile pictures on
	// a card are a few centimeters at most, so anything larger just
	// bloats the PDF.
	photoMaxDimension = 600
	photoJPEGQuality  = 80
)

// PhotoStorageInterface loads raw profile-picture bytes from a storage
// reference. References may be local paths, http(s) URLs or
// drive:<fileID> pointers.
type PhotoStorageInterface interface {
	Load(ctx context.Context, ref string) ([]byte, error)
}

// PhotoStorage resolves references against a local base directory, plain
// HTTP and (optionally) Google Drive.
type PhotoStorage struct {
	baseDir    string
	httpClient *http.Client
	drive      *drive.Service
}

// Ensure PhotoStorage implements PhotoStorageInterface.
var _ PhotoStorageInterface = (*PhotoStorage)(nil)

// NewPhotoStorage creates a PhotoStorage rooted at baseDir. Drive support
// stays disabled when credentialsPath is empty.
func NewPhotoStorage(baseDir, credentialsPath string) (*PhotoStorage, error) {
	ps := &PhotoStorage{
		baseDir:    baseDir,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	if credentialsPath != "" {
		svc, err := drive.NewService(context.Background(), option.WithCredentialsFile(credentialsPath))
		if err != nil {
			return nil, fmt.Errorf("failed to create drive service: %w", err)
		}
		ps.drive = svc
	}
	return ps, nil
}

// Load fetches the raw bytes behind a photo reference.
func (ps *PhotoStorage) Load(ctx context.Context, ref string) ([]byte, error) {
	switch {
	case strings.HasPrefix(ref, "drive:"):
		return ps.loadFromDrive(ctx, strings.TrimPrefix(ref, "drive:"))
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		return ps.loadFromHTTP(ctx, ref)
	default:
		return ps.loadFromDisk(ref)
	}
}

func (ps *PhotoStorage) loadFromDisk(ref string) ([]byte, error) {
	path := ref
	if !filepath.IsAbs(path) {
		path = filepath.Join(ps.baseDir, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read photo file: %w", err)
	}
	return data, nil
}

func (ps *PhotoStorage) loadFromHTTP(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build photo request: %w", err)
	}
	resp, err := ps.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch photo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("photo endpoint returned status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read photo data: %w", err)
	}
	return data, nil
}

func (ps *PhotoStorage) loadFromDrive(ctx context.Context, fileID string) ([]byte, error) {
	if ps.drive == nil {
		return nil, fmt.Errorf("drive photo storage is not configured")
	}
	resp, err := ps.drive.Files.Get(fileID).Context(ctx).Download()
	if err != nil {
		return nil, fmt.Errorf("failed to download drive file %s: %w", fileID, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read drive file %s: %w", fileID, err)
	}
	return data, nil
}

// OptimizePhoto decodes a raw photo, downscales it so the longest side is
// at most photoMaxDimension, and re-encodes it as JPEG for embedding.
func OptimizePhoto(data []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode photo: %w", err)
	}

	bounds := img.Bounds()
	if bounds.Dx() > photoMaxDimension || bounds.Dy() > photoMaxDimension {
		if bounds.Dx() >= bounds.Dy() {
			img = imaging.Resize(img, photoMaxDimension, 0, imaging.Lanczos)
		} else {
			img = imaging.Resize(img, 0, photoMaxDimension, imaging.Lanczos)
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: photoJPEGQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode photo: %w", err)
	}
	return buf.Bytes(), nil
}
