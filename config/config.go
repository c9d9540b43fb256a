package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the runtime settings of the card pipeline, read from
// environment variables. The .env file is loaded by main before Load is
// called (in production the variables are set directly).
type Config struct {
	// FrontendBaseURL builds default QR validation links and absolutizes
	// relative image sources, e.g. "https://app.federation.example".
	FrontendBaseURL string
	// DatabaseURL is the Postgres DSN. Empty means the in-memory stores
	// are used (tests, standalone previews).
	DatabaseURL string
	// ChromePath overrides Chrome/Chromium auto-detection for the PDF
	// compiler.
	ChromePath string
	// WorkerCount is the number of print-job workers.
	WorkerCount int
	// RenderTimeout bounds one job execution attempt. A timed-out attempt
	// is recorded as a failure with a timeout-specific reason.
	RenderTimeout time.Duration
	// PhotoBaseDir is the root for local profile-picture references.
	PhotoBaseDir string
	// DriveCredentialsPath enables the Google Drive photo storage when
	// set (service-account JSON, drive:<fileID> references).
	DriveCredentialsPath string
}

// Load reads configuration from the environment, applying defaults.
func Load() (*Config, error) {
	cfg := &Config{
		FrontendBaseURL:      strings.TrimRight(os.Getenv("FRONTEND_BASE_URL"), "/"),
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		ChromePath:           os.Getenv("CHROME_PATH"),
		WorkerCount:          2,
		RenderTimeout:        2 * time.Minute,
		PhotoBaseDir:         os.Getenv("PHOTO_BASE_DIR"),
		DriveCredentialsPath: os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"),
	}

	if cfg.FrontendBaseURL == "" {
		return nil, fmt.Errorf("FRONTEND_BASE_URL is not set")
	}

	if v := os.Getenv("PRINT_WORKER_COUNT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid PRINT_WORKER_COUNT %q", v)
		}
		cfg.WorkerCount = n
	}

	if v := os.Getenv("RENDER_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("invalid RENDER_TIMEOUT %q", v)
		}
		cfg.RenderTimeout = d
	}

	if cfg.PhotoBaseDir == "" {
		cfg.PhotoBaseDir = "."
	}

	return cfg, nil
}
