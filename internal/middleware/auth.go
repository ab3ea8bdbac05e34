package middleware

import (
	"net/http"

	"github.com/spado/songcontest/internal/ctxkeys"
	"github.com/spado/songcontest/internal/service"
	"github.com/spado/songcontest/internal/ui"
)

// AuthMiddleware resolves the auth_token cookie and adds the active user to
// the context. Invalid tokens and deactivated accounts clear the cookie.
func AuthMiddleware(authService *service.AuthService, userService *service.UserService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(service.AuthCookieName)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := authService.VerifyJWT(cookie.Value)
			if err != nil {
				authService.ClearJWTCookie(w)
				next.ServeHTTP(w, r)
				return
			}

			userID, ok := claims["user_id"].(string)
			if !ok {
				authService.ClearJWTCookie(w)
				next.ServeHTTP(w, r)
				return
			}

			user, err := userService.ByID(r.Context(), userID)
			if err != nil || !user.IsActive {
				authService.ClearJWTCookie(w)
				next.ServeHTTP(w, r)
				return
			}

			user.PasswordHash = ""
			ctx := ctxkeys.WithUser(r.Context(), user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth sends anonymous requests to the login page.
func RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ctxkeys.User(r.Context()) == nil {
			ui.Redirect(w, "/accounts/login", "Please log in to continue.")
			return
		}
		next.ServeHTTP(w, r)
	}
}

// RequireGuest keeps logged in users out of the account flows.
func RequireGuest(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ctxkeys.User(r.Context()) != nil {
			ui.Redirect(w, "/dashboard", "You are already logged in.")
			return
		}
		next.ServeHTTP(w, r)
	}
}

// RequireStaff allows only staff members.
func RequireStaff(next http.HandlerFunc) http.HandlerFunc {
	return RequireAuth(func(w http.ResponseWriter, r *http.Request) {
		if !ctxkeys.User(r.Context()).IsStaff {
			ui.Error(w, http.StatusForbidden, "You do not have permission to access this page.")
			return
		}
		next.ServeHTTP(w, r)
	})
}
