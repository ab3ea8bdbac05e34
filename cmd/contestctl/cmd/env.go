package cmd

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/spado/songcontest/internal/app"
	"github.com/spado/songcontest/internal/config"
	"github.com/spado/songcontest/internal/db"
	"github.com/spado/songcontest/internal/logger"
	"github.com/spado/songcontest/internal/service"
)

func loadConfig() *config.Config {
	cfg := config.Load()
	logger.Init(cfg.IsDevelopment(), cfg.SentryDSN, cfg.AppEnv)
	return cfg
}

func openDB(cfg *config.Config) (*sqlx.DB, error) {
	database, err := db.Init(cfg.DBDriver, cfg.DBConnection)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return database, nil
}

// withApp runs fn against an app without object storage; none of the
// operator commands touch song files.
func withApp(fn func(a *app.App) error) error {
	cfg := loadConfig()
	defer logger.Flush()

	database, err := openDB(cfg)
	if err != nil {
		return err
	}

	mailer, err := service.NewMailer(cfg)
	if err != nil {
		_ = database.Close()
		return fmt.Errorf("failed to initialize mailer: %w", err)
	}

	a, err := app.Assemble(cfg, app.Deps{DB: database, Mailer: mailer})
	if err != nil {
		_ = database.Close()
		return err
	}
	defer func() { _ = a.Close() }()

	return fn(a)
}
