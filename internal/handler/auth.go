package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/spado/songcontest/internal/flow"
	"github.com/spado/songcontest/internal/model"
	"github.com/spado/songcontest/internal/repository"
	"github.com/spado/songcontest/internal/service"
	"github.com/spado/songcontest/internal/ui"
	"github.com/spado/songcontest/internal/validation"
)

// AuthHandler serves the account flows under /accounts: signup, login,
// password reset and username recovery, each gated by an emailed code.
type AuthHandler struct {
	authService *service.AuthService
	userService *service.UserService
	codes       *codeFlows
}

func NewAuthHandler(authService *service.AuthService, userService *service.UserService, verificationService *service.VerificationService, store *flow.Store) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		userService: userService,
		codes:       &codeFlows{verification: verificationService, store: store},
	}
}

func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	user, err := h.authService.Register(r.Context(), service.SignupInput{
		Username:    r.FormValue("username"),
		Email:       r.FormValue("email"),
		Password:    r.FormValue("password1"),
		Password2:   r.FormValue("password2"),
		FirstName:   r.FormValue("first_name"),
		LastName:    r.FormValue("last_name"),
		City:        r.FormValue("city"),
		PhoneNumber: r.FormValue("phone_number"),
	})
	if err != nil {
		if validation.IsValidationError(err) ||
			errors.Is(err, service.ErrPasswordMismatch) ||
			errors.Is(err, service.ErrUsernameTaken) ||
			errors.Is(err, service.ErrEmailAlreadyExists) {
			ui.Error(w, http.StatusBadRequest, err.Error())
			return
		}
		slog.Error("signup failed", "error", err)
		ui.Error(w, http.StatusInternalServerError, msgServerError)
		return
	}

	state := h.codes.store.Load(r)
	code, ok := h.codes.start(w, r, state, flow.KindRegistration, user, user.Email, nil)
	if !ok {
		return
	}

	ui.JSON(w, http.StatusCreated, ui.Envelope{
		Success:  true,
		Message:  fmt.Sprintf("Account created. A verification code has been sent to %s.", user.Email),
		Data:     h.codes.issued(code, user.Email),
		Redirect: flow.KindRegistration.VerifyPath(""),
	})
}

// Login signs in active accounts. An inactive account with the right
// password gets a login code instead.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	user, err := h.authService.Authenticate(r.Context(), r.FormValue("username"), r.FormValue("password"))
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		ui.Error(w, http.StatusUnauthorized, "Please enter a correct username and password.")
		return
	case errors.Is(err, service.ErrAccountInactive):
		h.startLoginVerification(w, r, user)
		return
	case errors.Is(err, service.ErrAccountDisabled):
		ui.Error(w, http.StatusForbidden, msgAccountDisabled)
		return
	case err != nil:
		slog.Error("login failed", "error", err)
		ui.Error(w, http.StatusInternalServerError, msgServerError)
		return
	}

	err = h.authService.Login(w, user)
	if err != nil {
		slog.Error("failed to issue session", "error", err, "user_id", user.ID)
		ui.Error(w, http.StatusInternalServerError, msgServerError)
		return
	}

	slog.Info("user logged in", "user_id", user.ID)
	ui.Next(w, fmt.Sprintf("Welcome back, %s!", user.Username), "/dashboard", newUserView(user))
}

func (h *AuthHandler) startLoginVerification(w http.ResponseWriter, r *http.Request, user *model.User) {
	state := h.codes.store.Load(r)
	code, ok := h.codes.start(w, r, state, flow.KindLogin, user, user.Email, nil)
	if !ok {
		return
	}

	slog.Info("login verification started", "user_id", user.ID)
	ui.Next(w, "Your email is not verified yet. "+msgCodeSent, flow.KindLogin.VerifyPath(""), h.codes.issued(code, user.Email))
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.authService.ClearJWTCookie(w)
	ui.Next(w, "You have been logged out.", "/", nil)
}

func (h *AuthHandler) PasswordReset(w http.ResponseWriter, r *http.Request) {
	h.startRecovery(w, r, flow.KindPasswordReset)
}

func (h *AuthHandler) UsernameRecovery(w http.ResponseWriter, r *http.Request) {
	h.startRecovery(w, r, flow.KindUsernameRecovery)
}

// startRecovery begins password reset or username recovery for the account
// owning the submitted email.
func (h *AuthHandler) startRecovery(w http.ResponseWriter, r *http.Request, kind flow.Kind) {
	user, err := h.authService.UserByEmail(r.Context(), r.FormValue("email"))
	switch {
	case validation.IsValidationError(err):
		ui.Error(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, service.ErrNoAccountForEmail):
		ui.Error(w, http.StatusNotFound, "No account found with this email address.")
		return
	case err != nil:
		slog.Error("failed to look up account", "error", err, "type", kind)
		ui.Error(w, http.StatusInternalServerError, msgServerError)
		return
	}

	state := h.codes.store.Load(r)
	code, ok := h.codes.start(w, r, state, kind, user, user.Email, nil)
	if !ok {
		return
	}
	ui.Next(w, msgCodeSent, kind.VerifyPath(""), h.codes.issued(code, user.Email))
}

// PendingVerification describes the code a flow is waiting for.
func (h *AuthHandler) PendingVerification(w http.ResponseWriter, r *http.Request) {
	p, ok := h.pending(w, r)
	if !ok {
		return
	}

	status, err := h.codes.status(r, p.user, p.pending, p.kind)
	if err != nil && !errors.Is(err, repository.ErrCodeNotFound) {
		slog.Error("failed to load live code", "error", err, "user_id", p.user.ID, "type", p.kind)
		ui.Error(w, http.StatusInternalServerError, msgServerError)
		return
	}
	ui.OK(w, "", status)
}

// Verify checks the code of a pending flow and finishes or advances it.
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	p, ok := h.pending(w, r)
	if !ok {
		return
	}
	kind, user, state := p.kind, p.user, p.state

	code := strings.TrimSpace(r.FormValue("code"))
	err := validation.ValidateCode(code)
	if err != nil {
		ui.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	result := h.codes.verification.VerifyCode(r.Context(), user, p.pending.Email, code, kind.VerificationType())
	if !result.Success {
		verificationFailed(w, result)
		return
	}

	switch kind {
	case flow.KindRegistration, flow.KindLogin:
		h.completeActivation(w, r, state, kind, user)
	case flow.KindPasswordReset:
		err = state.MarkVerified(kind)
		if err != nil {
			ui.Redirect(w, kind.EntryPoint(""), msgFlowMissing)
			return
		}
		if !h.codes.save(w, state) {
			return
		}
		ui.Next(w, "Code verified. Please choose a new password.", "/accounts/password-reset/confirm", nil)
	case flow.KindUsernameRecovery:
		state.Clear(kind)
		if !h.codes.save(w, state) {
			return
		}
		slog.Info("username recovered", "user_id", user.ID)
		ui.Next(w, fmt.Sprintf("Your username is: %s", user.Username), "/accounts/login", map[string]string{"username": user.Username})
	}
}

// completeActivation activates the verified account and signs it in.
func (h *AuthHandler) completeActivation(w http.ResponseWriter, r *http.Request, state *flow.State, kind flow.Kind, user *model.User) {
	err := h.authService.Activate(r.Context(), user)
	if errors.Is(err, service.ErrAccountDisabled) {
		slog.Warn("verification for deactivated account", "user_id", user.ID, "type", kind)
		state.Clear(kind)
		if h.codes.save(w, state) {
			ui.Error(w, http.StatusForbidden, msgAccountDisabled)
		}
		return
	}
	if err != nil {
		slog.Error("failed to activate account", "error", err, "user_id", user.ID)
		ui.Error(w, http.StatusInternalServerError, msgServerError)
		return
	}

	state.Clear(kind)
	if !h.codes.save(w, state) {
		return
	}

	err = h.authService.Login(w, user)
	if err != nil {
		slog.Error("failed to issue session", "error", err, "user_id", user.ID)
		ui.Error(w, http.StatusInternalServerError, msgServerError)
		return
	}

	message := "Email verified. You are now logged in."
	if kind == flow.KindRegistration {
		message = fmt.Sprintf("Registration complete! Welcome, %s.", user.Username)
	}
	ui.Next(w, message, "/dashboard", newUserView(user))
}

// Resend issues a fresh code for the pending flow, subject to the resend
// limit.
func (h *AuthHandler) Resend(w http.ResponseWriter, r *http.Request) {
	p, ok := h.pending(w, r)
	if !ok {
		return
	}

	activation := p.kind == flow.KindRegistration || p.kind == flow.KindLogin
	if activation && p.user.EmailVerified() && !p.user.IsActive {
		ui.Error(w, http.StatusForbidden, msgAccountDisabled)
		return
	}

	email := p.pending.Email
	code, ok := h.codes.start(w, r, p.state, p.kind, p.user, email, nil)
	if !ok {
		return
	}
	ui.OK(w, msgCodeResent, h.codes.issued(code, email))
}

// ConfirmPasswordReset sets the new password once the reset code was
// verified.
func (h *AuthHandler) ConfirmPasswordReset(w http.ResponseWriter, r *http.Request) {
	kind := flow.KindPasswordReset
	state := h.codes.store.Load(r)

	pending, err := state.RequireVerified(kind)
	if errors.Is(err, flow.ErrFlowNotVerified) {
		ui.Redirect(w, kind.VerifyPath(""), "Please verify your email first.")
		return
	}
	if err != nil {
		ui.Redirect(w, kind.EntryPoint(""), msgFlowMissing)
		return
	}

	user, err := h.userService.ByID(r.Context(), pending.UserID)
	if err != nil {
		h.abort(w, state, kind, err)
		return
	}

	err = h.authService.ResetPassword(r.Context(), user, r.FormValue("new_password1"), r.FormValue("new_password2"))
	if err != nil {
		if validation.IsValidationError(err) || errors.Is(err, service.ErrPasswordMismatch) {
			ui.Error(w, http.StatusBadRequest, err.Error())
			return
		}
		slog.Error("failed to reset password", "error", err, "user_id", user.ID)
		ui.Error(w, http.StatusInternalServerError, msgServerError)
		return
	}

	state.Clear(kind)
	if !h.codes.save(w, state) {
		return
	}
	ui.Next(w, "Your password has been reset. You can now log in.", "/accounts/login", nil)
}

type pendingFlow struct {
	kind    flow.Kind
	state   *flow.State
	pending *flow.Pending
	user    *model.User
}

// pending resolves the {flow} path segment, its pending state and the
// account it was started for. Missing state redirects to the entry point.
func (h *AuthHandler) pending(w http.ResponseWriter, r *http.Request) (*pendingFlow, bool) {
	kind, err := flow.KindFromPath(r.PathValue("flow"))
	if err != nil {
		ui.Error(w, http.StatusNotFound, "Unknown verification flow.")
		return nil, false
	}

	state := h.codes.store.Load(r)
	pending, err := state.Require(kind)
	if err != nil {
		ui.Redirect(w, kind.EntryPoint(""), msgFlowMissing)
		return nil, false
	}

	user, err := h.userService.ByID(r.Context(), pending.UserID)
	if err != nil {
		h.abort(w, state, kind, err)
		return nil, false
	}
	return &pendingFlow{kind: kind, state: state, pending: pending, user: user}, true
}

// abort drops a flow whose account can no longer be loaded.
func (h *AuthHandler) abort(w http.ResponseWriter, state *flow.State, kind flow.Kind, err error) {
	if !errors.Is(err, repository.ErrUserNotFound) {
		slog.Error("failed to load flow account", "error", err, "type", kind)
		ui.Error(w, http.StatusInternalServerError, msgServerError)
		return
	}

	state.Clear(kind)
	if !h.codes.save(w, state) {
		return
	}
	ui.Redirect(w, kind.EntryPoint(""), msgFlowMissing)
}
