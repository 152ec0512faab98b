package app

import (
	"context"
	"database/sql"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	coursegate "github.com/avela/coursegate"
	"github.com/avela/coursegate/internal/auth"
	"github.com/avela/coursegate/internal/cleanup"
	"github.com/avela/coursegate/internal/config"
	"github.com/avela/coursegate/internal/db"
	"github.com/avela/coursegate/internal/handler"
	"github.com/avela/coursegate/internal/hosting"
	"github.com/avela/coursegate/internal/metrics"
	"github.com/avela/coursegate/internal/model"
	"github.com/avela/coursegate/internal/videotoken"
)

func Run(ctx context.Context, cfg *config.Config) error {
	// Open database
	database, err := db.Open(cfg.DataDir)
	if err != nil {
		return err
	}
	defer database.Close()

	// Run migrations
	if err := db.Migrate(database, coursegate.MigrationFS); err != nil {
		return err
	}
	slog.Info("database ready")

	if err := seedAdmin(cfg, database); err != nil {
		return err
	}

	tokens := videotoken.NewService(database, cfg.TokenTTL, cfg.MaxViews, cfg.LivenessWindow)
	embeds := hosting.NewSigner(cfg.EmbedBaseURL, cfg.EmbedSigningKey, cfg.EmbedTTL)
	collector := metrics.New()

	// Start cleanup scheduler
	cleaner := &cleanup.Cleaner{
		DB:             database,
		Interval:       cfg.CleanupInterval,
		LivenessWindow: cfg.LivenessWindow,
	}
	cleaner.Start(ctx)
	defer cleaner.Stop()

	// Get template FS (sub-directory)
	templateFS, err := fs.Sub(coursegate.TemplateFS, "templates")
	if err != nil {
		return err
	}

	// Get static FS (sub-directory)
	staticFS, err := fs.Sub(coursegate.StaticFS, "static")
	if err != nil {
		return err
	}

	// Rate limiters: login 5/minute per IP, token issuance 10/minute per account
	loginRL := handler.NewRateLimiter(5.0/60.0, 5)
	defer loginRL.Stop()
	issueRL := handler.NewRateLimiter(10.0/60.0, 10)
	defer issueRL.Stop()

	// Build handler and routes
	h := handler.New(database, cfg, tokens, embeds, collector, templateFS)
	router := h.Routes(staticFS, loginRL, issueRL)

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: router,
	}

	// Graceful shutdown
	go func() {
		<-ctx.Done()
		slog.Info("shutting down server")
		srv.Shutdown(context.Background())
	}()

	slog.Info("server starting", "addr", cfg.ListenAddr, "base_url", cfg.BaseURL)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

// seedAdmin bootstraps the configured admin account when it does not exist.
func seedAdmin(cfg *config.Config, database *sql.DB) error {
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		return nil
	}
	existing, err := db.GetAccountByEmail(database, cfg.AdminEmail)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}

	hash, err := auth.HashPassword(cfg.AdminPassword)
	if err != nil {
		return err
	}
	account := &model.Account{
		ID:           uuid.New().String(),
		Email:        cfg.AdminEmail,
		Name:         "Administrator",
		PasswordHash: hash,
		Role:         "admin",
		Enabled:      true,
	}
	if err := db.CreateAccount(database, account); err != nil {
		return err
	}
	slog.Info("seeded admin account", "email", cfg.AdminEmail)
	return nil
}
