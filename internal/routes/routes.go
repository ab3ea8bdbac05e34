package routes

import (
	"net/http"

	"github.com/spado/songcontest/internal/app"
	"github.com/spado/songcontest/internal/handler"
	"github.com/spado/songcontest/internal/metrics"
	"github.com/spado/songcontest/internal/middleware"
)

func SetupRoutes(app *app.App) http.Handler {
	// Handlers
	home := handler.NewHomeHandler(app.PhaseService, app.SongService, app.WinnerService, app.DB)
	auth := handler.NewAuthHandler(app.AuthService, app.UserService, app.VerificationService, app.FlowStore)
	songs := handler.NewSongHandler(app.SongService, app.PhaseService, app.WinnerService, app.VerificationService, app.FlowStore, app.Cfg.UploadMaxAudioMB)
	profile := handler.NewProfileHandler(app.ProfileService, app.SongService)
	manage := handler.NewManageHandler(app.UserService, app.SongService, app.WinnerService, app.PhaseService)
	rules := handler.NewRulesHandler(app.RulesService)
	seo := handler.NewSEOHandler(app.SitemapService, "static")

	mux := http.NewServeMux()

	// Each guarded endpoint gets its own per-IP budget.
	limited := func(h http.HandlerFunc) http.HandlerFunc {
		return middleware.RateLimitAuth()(h)
	}

	// ============================================================================
	// PUBLIC ROUTES
	// ============================================================================

	mux.HandleFunc("GET /{$}", home.Overview)
	mux.HandleFunc("GET /contest/phase", home.Phase)
	mux.HandleFunc("GET /healthz", home.Health)
	mux.HandleFunc("GET /robots.txt", seo.Robots)
	mux.HandleFunc("GET /sitemap.xml", seo.Sitemap)
	if app.Cfg.MetricsEnabled {
		mux.Handle("GET /metrics", metrics.Handler())
	}

	mux.HandleFunc("GET /rules", rules.Index)
	mux.HandleFunc("GET /rules/{page}", rules.Show)

	mux.HandleFunc("GET /songs", songs.List)
	mux.HandleFunc("GET /songs/{id}", songs.Show)
	mux.HandleFunc("GET /leaderboard", songs.Leaderboard)
	mux.HandleFunc("GET /winners", songs.Winners)
	mux.HandleFunc("GET /profiles/{username}", profile.Show)

	// ============================================================================
	// ACCOUNT FLOWS (/accounts/*)
	// ============================================================================

	mux.HandleFunc("POST /accounts/signup", limited(middleware.RequireGuest(auth.Signup)))
	mux.HandleFunc("POST /accounts/login", limited(middleware.RequireGuest(auth.Login)))
	mux.HandleFunc("POST /accounts/password-reset", limited(middleware.RequireGuest(auth.PasswordReset)))
	mux.HandleFunc("POST /accounts/password-reset/confirm", limited(middleware.RequireGuest(auth.ConfirmPasswordReset)))
	mux.HandleFunc("POST /accounts/username-recovery", limited(middleware.RequireGuest(auth.UsernameRecovery)))
	mux.HandleFunc("POST /accounts/logout", auth.Logout)

	// {flow} is signup, login, password-reset or username-recovery
	mux.HandleFunc("GET /accounts/{flow}/verify", middleware.RequireGuest(auth.PendingVerification))
	mux.HandleFunc("POST /accounts/{flow}/verify", limited(middleware.RequireGuest(auth.Verify)))
	mux.HandleFunc("POST /accounts/{flow}/resend", limited(middleware.RequireGuest(auth.Resend)))

	// ============================================================================
	// CONTESTANT ROUTES
	// ============================================================================

	mux.HandleFunc("GET /dashboard", middleware.RequireAuth(songs.Dashboard))
	mux.HandleFunc("PATCH /profile", middleware.RequireAuth(profile.Update))

	mux.HandleFunc("POST /songs", middleware.RequireAuth(songs.Upload))
	mux.HandleFunc("PUT /songs/{id}", middleware.RequireAuth(songs.Update))
	mux.HandleFunc("POST /songs/{id}/vote", middleware.RequireAuth(songs.Vote))
	mux.HandleFunc("POST /songs/{id}/comments", middleware.RequireAuth(songs.Comment))

	// Song deletion
	mux.HandleFunc("GET /songs/{id}/delete", middleware.RequireAuth(songs.DeletePage))
	mux.HandleFunc("POST /songs/{id}/delete", limited(middleware.RequireAuth(songs.RequestDelete)))
	mux.HandleFunc("GET /songs/{id}/delete/verify", middleware.RequireAuth(songs.PendingDelete))
	mux.HandleFunc("POST /songs/{id}/delete/verify", limited(middleware.RequireAuth(songs.VerifyDelete)))
	mux.HandleFunc("POST /songs/{id}/delete/resend", limited(middleware.RequireAuth(songs.ResendDelete)))

	// ============================================================================
	// STAFF ROUTES (/manage/*)
	// ============================================================================

	mux.HandleFunc("GET /manage", middleware.RequireStaff(manage.Dashboard))

	mux.HandleFunc("GET /manage/users", middleware.RequireStaff(manage.Users))
	mux.HandleFunc("POST /manage/users/{id}/active", middleware.RequireStaff(manage.SetUserActive))
	mux.HandleFunc("POST /manage/users/{id}/staff", middleware.RequireStaff(manage.SetUserStaff))
	mux.HandleFunc("DELETE /manage/users/{id}", middleware.RequireStaff(manage.DeleteUser))

	mux.HandleFunc("GET /manage/songs", middleware.RequireStaff(manage.Songs))
	mux.HandleFunc("POST /manage/songs/{id}/featured", middleware.RequireStaff(manage.FeatureSong))
	mux.HandleFunc("GET /manage/songs/{id}/comments", middleware.RequireStaff(manage.Comments))
	mux.HandleFunc("POST /manage/comments/{id}/approved", middleware.RequireStaff(manage.ApproveComment))
	mux.HandleFunc("DELETE /manage/comments/{id}", middleware.RequireStaff(manage.DeleteComment))

	mux.HandleFunc("GET /manage/winners", middleware.RequireStaff(manage.Winners))
	mux.HandleFunc("POST /manage/winners", middleware.RequireStaff(manage.SelectWinner))
	mux.HandleFunc("DELETE /manage/winners/{id}", middleware.RequireStaff(manage.RemoveWinner))

	mux.HandleFunc("GET /manage/phases", middleware.RequireStaff(manage.Phases))
	mux.HandleFunc("POST /manage/phases", middleware.RequireStaff(manage.CreatePhase))
	mux.HandleFunc("POST /manage/phases/advance", middleware.RequireStaff(manage.AdvancePhases))
	mux.HandleFunc("PUT /manage/phases/{id}", middleware.RequireStaff(manage.UpdatePhase))
	mux.HandleFunc("DELETE /manage/phases/{id}", middleware.RequireStaff(manage.DeletePhase))

	// ============================================================================
	// FALLBACK
	// ============================================================================

	mux.HandleFunc("/{path...}", home.NotFound)

	// Global middleware, outermost first
	return middleware.Chain(
		mux,
		middleware.ClientIP(app.TrustedProxies), // before anything that logs or limits by IP
		middleware.RequestLogging,
		middleware.Config(app.Cfg), // before CSRF, which reads APP_ENV for the cookie
		middleware.CSRFProtection,
		middleware.AuthMiddleware(app.AuthService, app.UserService),
	)
}
