package bootstrap

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	appAuth "github.com/yigit/coursecred/internal/app/auth"
	appCatalog "github.com/yigit/coursecred/internal/app/catalog"
	appControllers "github.com/yigit/coursecred/internal/app/controllers"
	appJobs "github.com/yigit/coursecred/internal/app/jobs"
	appMigrations "github.com/yigit/coursecred/internal/app/migrations"
	appRepos "github.com/yigit/coursecred/internal/app/repositories"
	memoryRepos "github.com/yigit/coursecred/internal/app/repositories/memory"
	appRoutes "github.com/yigit/coursecred/internal/app/routes"
	appServices "github.com/yigit/coursecred/internal/app/services"
	"github.com/yigit/coursecred/internal/config"
	"github.com/yigit/coursecred/internal/db"
	appMiddleware "github.com/yigit/coursecred/internal/middleware"
	pkgAuth "github.com/yigit/coursecred/internal/pkg/auth"
	"github.com/yigit/coursecred/internal/pkg/certdoc"
	"github.com/yigit/coursecred/internal/pkg/filestorage"
	"github.com/yigit/coursecred/internal/pkg/helpers"
	"github.com/yigit/coursecred/internal/pkg/logger"
)

// DefaultConfigPath is where the service and CLI look for their configuration.
const DefaultConfigPath = "configs/config.yaml"

// certificateSubPath is the storage directory of rendered certificates.
const certificateSubPath = "certificates"

// Services holds the core services shared by the HTTP server, the CLI and
// the scheduler.
type Services struct {
	EnrollmentService  appServices.EnrollmentService
	RatingService      appServices.RatingService
	CertificateService appServices.CertificateService
	Catalog            appCatalog.Catalog
	Authorizer         appAuth.Authorizer
	JWTService         *pkgAuth.JWTService
	FileStorage        *filestorage.LocalStorage
}

// Dependencies holds all the application dependencies
type Dependencies struct {
	*Services
	EnrollmentController  *appControllers.EnrollmentController
	RatingController      *appControllers.RatingController
	CertificateController *appControllers.CertificateController
	AuthMiddleware        *appMiddleware.AuthMiddleware
	Scheduler             *appJobs.Scheduler // nil when jobs are disabled
	Logger                zerolog.Logger
}

// LoadConfigAndSetupLogger loads configuration and initializes the logger.
func LoadConfigAndSetupLogger(configPath string) (*config.Config, zerolog.Logger, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load configuration")
		return nil, zerolog.Logger{}, err
	}

	logLevel := logger.LogLevel(strings.ToLower(cfg.Logging.Level))
	prettyLog := strings.ToLower(cfg.Logging.Format) == "text"

	logger.Configure(logger.Config{
		Level:  logLevel,
		Pretty: prettyLog,
	})

	lgr := logger.Get()
	lgr.Info().Str("logLevel", string(logLevel)).Str("logFormat", cfg.Logging.Format).Msg("Logger configured")
	return cfg, lgr, nil
}

// SetupDatabase connects to PostgreSQL and applies migrations. The memory
// driver needs neither and yields a nil pool.
func SetupDatabase(ctx context.Context, cfg *config.Config, lgr zerolog.Logger) (*pgxpool.Pool, error) {
	if cfg.Database.Driver == "memory" {
		lgr.Warn().Msg("Using the in-memory store; data is lost on restart")
		return nil, nil
	}

	lgr.Info().Msg("Establishing database connection...")
	database, err := db.NewPostgresDB(cfg)
	if err != nil {
		lgr.Error().Err(err).Msg("Failed to connect to database")
		return nil, err
	}
	lgr.Info().Msg("Database connection successfully established.")

	if _, err := RunMigrations(ctx, database.Pool, cfg.Database.MigrationsPath, lgr); err != nil {
		database.Close()
		return nil, err
	}
	return database.Pool, nil
}

// RunMigrations applies every pending migration in dir.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool, dir string, lgr zerolog.Logger) (int, error) {
	if _, err := os.Stat(dir); err != nil {
		lgr.Error().Str("path", dir).Msg("Migrations directory not found")
		return 0, fmt.Errorf("migrations directory not found at %s: %w", dir, err)
	}

	lgr.Info().Str("path", dir).Msg("Running database migrations...")
	applied, err := appMigrations.NewMigrator(pool).MigrateFromDirectory(ctx, dir)
	if err != nil {
		lgr.Error().Err(err).Msg("Database migration error")
		return applied, fmt.Errorf("database migrations failed: %w", err)
	}
	lgr.Info().Int("applied", applied).Msg("Database migrations successfully applied.")
	return applied, nil
}

// BuildServices wires stores, collaborators and the core services.
func BuildServices(cfg *config.Config, pool *pgxpool.Pool, lgr zerolog.Logger) (*Services, error) {
	var (
		enrollmentStore  appServices.EnrollmentStore
		ratingStore      appServices.RatingStore
		certificateStore appServices.CertificateStore
	)
	if pool != nil {
		repos := appRepos.NewRepositories(pool)
		enrollmentStore, ratingStore, certificateStore = repos.EnrollmentRepository, repos.RatingRepository, repos.CertificateRepository
	} else {
		repos := memoryRepos.NewRepositories(memoryRepos.NewDB())
		enrollmentStore, ratingStore, certificateStore = repos.EnrollmentRepository, repos.RatingRepository, repos.CertificateRepository
	}

	courses, err := buildCatalog(cfg, lgr)
	if err != nil {
		return nil, err
	}

	storage, err := filestorage.NewLocalStorage(cfg.Server.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize file storage: %w", err)
	}

	policy, err := appServices.NewProgressPolicy(cfg.Progress.Policy)
	if err != nil {
		return nil, err
	}

	// Request identities carry the admin flag; the configured list covers
	// the CLI and jobs, where no request exists.
	authorizer := appAuth.AnyOf(appAuth.NewClaimsAuthorizer(), appAuth.NewStaticAuthorizer(cfg.Auth.AdminUserIDs))

	svc := &Services{
		Catalog:     courses,
		Authorizer:  authorizer,
		FileStorage: storage,
		JWTService: pkgAuth.NewJWTService(pkgAuth.JWTConfig{
			SecretKey:      cfg.JWT.Secret,
			AccessTokenExp: helpers.ParseDuration(cfg.JWT.AccessTokenExpiration, time.Hour),
			TokenIssuer:    cfg.JWT.Issuer,
		}),
	}

	svc.EnrollmentService = appServices.NewEnrollmentService(enrollmentStore, courses, policy)

	svc.RatingService = appServices.NewRatingService(ratingStore, courses, authorizer)
	if cfg.Ratings.CacheEnabled {
		ttl := helpers.ParseDuration(cfg.Ratings.CacheTTL, 30*time.Second)
		svc.RatingService = appServices.NewCachedRatingService(svc.RatingService, ttl)
		lgr.Info().Dur("ttl", ttl).Msg("Rating aggregate cache enabled")
	}

	verifyURL := ""
	if cfg.Server.PublicURL != "" {
		verifyURL = strings.TrimRight(cfg.Server.PublicURL, "/") + "/api/v1/certificates"
	}
	publisher := certdoc.NewPublisher(certdoc.NewPDFRenderer(cfg.Certificates.Issuer, verifyURL), storage, certificateSubPath)

	svc.CertificateService = appServices.NewCertificateService(
		certificateStore,
		enrollmentStore,
		courses,
		authorizer,
		publisher,
		nil,
		appServices.CertificateConfig{
			SealSecret:       cfg.Certificates.SealSecret,
			IDAttempts:       cfg.Certificates.IDAttempts,
			BatchConcurrency: cfg.Certificates.BatchConcurrency,
		},
	)

	if cfg.Certificates.AutoIssue {
		svc.EnrollmentService.OnCompletion(appServices.AutoIssue(svc.CertificateService))
		lgr.Info().Msg("Certificates are issued automatically on completion")
	}

	return svc, nil
}

func buildCatalog(cfg *config.Config, lgr zerolog.Logger) (appCatalog.Catalog, error) {
	if cfg.Catalog.Source == "http" {
		lgr.Info().Str("baseURL", cfg.Catalog.BaseURL).Msg("Using the remote course catalog")
		return appCatalog.NewHTTPCatalog(appCatalog.HTTPConfig{
			BaseURL: cfg.Catalog.BaseURL,
			APIKey:  cfg.Catalog.APIKey,
			Timeout: helpers.ParseDuration(cfg.Catalog.Timeout, 5*time.Second),
			Retries: cfg.Catalog.Retries,
		}), nil
	}

	if _, err := os.Stat(cfg.Catalog.File); os.IsNotExist(err) {
		lgr.Warn().Str("path", cfg.Catalog.File).Msg("Catalog file not found, courses are not validated")
		return nil, nil
	}
	courses, err := appCatalog.LoadStaticCatalog(cfg.Catalog.File)
	if err != nil {
		return nil, err
	}
	lgr.Info().Str("path", cfg.Catalog.File).Msg("Static course catalog loaded")
	return courses, nil
}

// BuildDependencies initializes services, controllers and the job scheduler.
func BuildDependencies(cfg *config.Config, pool *pgxpool.Pool, lgr zerolog.Logger) (*Dependencies, error) {
	svc, err := BuildServices(cfg, pool, lgr)
	if err != nil {
		return nil, err
	}

	deps := &Dependencies{Services: svc, Logger: lgr}
	deps.AuthMiddleware = appMiddleware.NewAuthMiddleware(svc.JWTService)
	deps.EnrollmentController = appControllers.NewEnrollmentController(svc.EnrollmentService)
	deps.RatingController = appControllers.NewRatingController(svc.RatingService)
	deps.CertificateController = appControllers.NewCertificateController(svc.CertificateService, svc.Authorizer, svc.FileStorage)

	if cfg.Jobs.Enabled {
		deps.Scheduler, err = appJobs.NewScheduler(svc.CertificateService, svc.EnrollmentService, appJobs.Config{
			BackfillSchedule: cfg.Jobs.BackfillSchedule,
			RecalcSchedule:   cfg.Jobs.RecalcSchedule,
			BackfillLimit:    cfg.Jobs.BackfillLimit,
		})
		if err != nil {
			return nil, err
		}
	}

	return deps, nil
}

// SetupRouter configures the Gin engine with middleware and routes.
func SetupRouter(cfg *config.Config, deps *Dependencies, lgr zerolog.Logger) *gin.Engine {
	if strings.ToLower(cfg.Server.Mode) == "production" {
		gin.SetMode(gin.ReleaseMode)
		lgr.Info().Msg("Setting Gin mode to release")
	} else {
		gin.SetMode(gin.DebugMode)
		lgr.Info().Msg("Setting Gin mode to debug")
	}

	router := gin.New()
	router.Use(gin.Recovery(), appMiddleware.RequestLogger())

	appRoutes.SetupRouter(router,
		deps.EnrollmentController,
		deps.RatingController,
		deps.CertificateController,
		deps.AuthMiddleware,
	)

	return router
}
