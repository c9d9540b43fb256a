package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"cardpress/config"
	"cardpress/db"
	"cardpress/repository"
	"cardpress/service"
)

// Application holds the wired service graph.
type Application struct {
	Config *config.Config
	Logger *zap.SugaredLogger

	Templates repository.TemplateRepositoryInterface
	Jobs      repository.PrintJobRepositoryInterface
	Profiles  repository.PaperProfileRepositoryInterface

	TemplateService *service.TemplateService
	PreviewService  *service.PreviewService
	PrintJobService *service.PrintJobService
	Workers         *service.WorkerPool
}

// Initialize wires repositories and services. With a DATABASE_URL the
// Postgres repositories back everything; without one the in-memory store
// is used (previews and tests work without a database, print jobs are
// not durable).
func Initialize(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) (*Application, error) {
	a := &Application{Config: cfg, Logger: logger}

	var (
		members  repository.MemberRepositoryInterface
		licenses repository.LicenseRepositoryInterface
		clubs    repository.ClubRepositoryInterface
	)

	if cfg.DatabaseURL != "" {
		if err := db.InitDB(ctx, cfg.DatabaseURL); err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		logger.Infow("✓ database connection established")
		members = repository.NewMemberRepository()
		licenses = repository.NewLicenseRepository()
		clubs = repository.NewClubRepository()
		a.Profiles = repository.NewPaperProfileRepository()
		a.Templates = repository.NewTemplateRepository()
		a.Jobs = repository.NewPrintJobRepository()
	} else {
		logger.Warnw("⚠️ DATABASE_URL not set, using in-memory stores")
		store := repository.NewMemoryStore()
		members = store
		licenses = store
		clubs = store
		a.Profiles = store
		a.Templates = store
		a.Jobs = store
	}

	photos, err := service.NewPhotoStorage(cfg.PhotoBaseDir, cfg.DriveCredentialsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize photo storage: %w", err)
	}

	validator := service.NewPayloadValidator()
	resolver := service.NewContextResolver(members, licenses, clubs, photos, cfg.FrontendBaseURL, logger)
	renderer := service.NewElementRenderer(logger)
	documents := service.NewDocumentBuilder(renderer)
	layout := service.NewSlotLayout()
	compiler := service.NewChromePDFCompiler(cfg.ChromePath, logger)

	a.TemplateService = service.NewTemplateService(a.Templates, a.Profiles, validator, logger)
	a.PreviewService = service.NewPreviewService(a.Templates, a.Profiles, resolver, renderer, documents, layout, cfg.FrontendBaseURL)
	a.PrintJobService = service.NewPrintJobService(
		a.Jobs, a.Templates, a.Profiles,
		resolver, renderer, documents, layout, compiler,
		cfg.FrontendBaseURL, cfg.RenderTimeout, logger)
	a.Workers = service.NewWorkerPool(a.PrintJobService, a.Jobs, 0, logger)

	return a, nil
}

// ServeMetrics exposes the Prometheus registry on the given address. It
// blocks until the server stops.
func ServeMetrics(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(addr, mux)
}
