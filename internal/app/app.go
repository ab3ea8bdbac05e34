package app

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/spado/songcontest/internal/config"
	"github.com/spado/songcontest/internal/db"
	"github.com/spado/songcontest/internal/flow"
	"github.com/spado/songcontest/internal/middleware"
	"github.com/spado/songcontest/internal/repository"
	"github.com/spado/songcontest/internal/service"
	"github.com/spado/songcontest/internal/storage"
)

type App struct {
	Cfg                 *config.Config
	DB                  *sqlx.DB
	FlowStore           *flow.Store
	TrustedProxies      middleware.TrustedProxies
	AuthService         *service.AuthService
	UserService         *service.UserService
	ProfileService      *service.ProfileService
	EmailService        *service.EmailService
	FileService         *service.FileService
	VerificationService *service.VerificationService
	PhaseService        *service.PhaseService
	SongService         *service.SongService
	WinnerService       *service.WinnerService
	RulesService        *service.RulesService
	SitemapService      *service.SitemapService
	Scheduler           *service.Scheduler
}

// Deps are the external resources an App is assembled from.
type Deps struct {
	DB      *sqlx.DB
	Storage storage.Storage
	Mailer  service.Mailer
	Clock   service.Clock // nil means the system clock
}

// New opens the database, migrates it and connects storage and mail from
// cfg.
func New(cfg *config.Config) (*App, error) {
	database, err := db.Init(cfg.DBDriver, cfg.DBConnection)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	err = db.RunMigrations(database.DB, cfg.DBDriver)
	if err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	fileStorage, err := storage.New(cfg)
	if err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	mailer, err := service.NewMailer(cfg)
	if err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("failed to initialize mailer: %w", err)
	}

	return Assemble(cfg, Deps{DB: database, Storage: fileStorage, Mailer: mailer})
}

// Assemble wires repositories and services on top of deps.
func Assemble(cfg *config.Config, deps Deps) (*App, error) {
	database := deps.DB

	// Repositories
	userRepository := repository.NewUserRepository(database)
	profileRepository := repository.NewProfileRepository(database)
	verificationRepository := repository.NewVerificationRepository(database)
	phaseRepository := repository.NewPhaseRepository(database)
	songRepository := repository.NewSongRepository(database)
	voteRepository := repository.NewVoteRepository(database)
	commentRepository := repository.NewCommentRepository(database)
	winnerRepository := repository.NewWinnerRepository(database)
	fileRepository := repository.NewFileRepository(database)

	// Services
	emailService, err := service.NewEmailService(deps.Mailer, cfg.AppName, cfg.AppURL, cfg.AdminEmail)
	if err != nil {
		return nil, fmt.Errorf("failed to load email templates: %w", err)
	}

	verificationService := service.NewVerificationService(verificationRepository, emailService, service.VerificationOptions{
		CodeTTL:      cfg.VerificationCodeTTL,
		MaxAttempts:  cfg.VerificationMaxAttempts,
		ResendLimit:  cfg.VerificationResendLimit,
		ResendWindow: cfg.VerificationResendWindow,
		Clock:        deps.Clock,
	})
	phaseService := service.NewPhaseService(phaseRepository, service.PhaseOptions{
		JudgingDuration: cfg.PhaseJudgingDuration,
		WinnersDuration: cfg.PhaseWinnersDuration,
		Clock:           deps.Clock,
	})

	fileService := service.NewFileService(fileRepository, deps.Storage)
	authService := service.NewAuthService(userRepository, cfg.JWTSecret, cfg.IsProduction(), cfg.JWTExpiry)
	userService := service.NewUserService(userRepository, fileService)
	profileService := service.NewProfileService(profileRepository)
	songService := service.NewSongService(
		songRepository,
		userRepository,
		voteRepository,
		commentRepository,
		winnerRepository,
		fileService,
		phaseService,
		emailService,
	)
	winnerService := service.NewWinnerService(winnerRepository, emailService)

	rulesService := service.NewRulesService(cfg.ContentPath, cfg.IsDevelopment())
	err = rulesService.LoadPages()
	if err != nil {
		return nil, fmt.Errorf("failed to load rules pages: %w", err)
	}

	proxies, err := middleware.ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		return nil, err
	}

	scheduler, err := service.NewScheduler(cfg.CleanupSchedule, verificationService)
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	return &App{
		Cfg:                 cfg,
		DB:                  database,
		FlowStore:           flow.NewStore(cfg.JWTSecret, cfg.FlowStateExpiry, cfg.IsProduction()),
		TrustedProxies:      proxies,
		AuthService:         authService,
		UserService:         userService,
		ProfileService:      profileService,
		EmailService:        emailService,
		FileService:         fileService,
		VerificationService: verificationService,
		PhaseService:        phaseService,
		SongService:         songService,
		WinnerService:       winnerService,
		RulesService:        rulesService,
		SitemapService:      service.NewSitemapService(rulesService, songService, cfg.AppURL),
		Scheduler:           scheduler,
	}, nil
}

func (a *App) Close() error {
	if a.DB != nil {
		return a.DB.Close()
	}
	return nil
}
