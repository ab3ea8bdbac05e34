package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/spado/songcontest/internal/flow"
	"github.com/spado/songcontest/internal/model"
	"github.com/spado/songcontest/internal/service"
	"github.com/spado/songcontest/internal/ui"
)

const (
	msgFlowMissing  = "No pending verification found. Please start again."
	msgCodeSent     = "A verification code has been sent to your email."
	msgCodeResent   = "A new verification code has been sent to your email."
	msgServerError  = "Something went wrong. Please try again."
	msgNotFoundSong = "Song not found."

	msgAccountDisabled = "This account has been deactivated. Please contact the organisers."
)

// codeStatus is what a client needs to show the verification form.
type codeStatus struct {
	Email            string     `json:"email"`
	ExpiresAt        *time.Time `json:"expires_at,omitempty"`
	MinutesRemaining int        `json:"minutes_remaining"`
}

// codeFlows issues verification codes and keeps the pending flow state in
// the flow cookie. Auth and song handlers share it.
type codeFlows struct {
	verification *service.VerificationService
	store        *flow.Store
}

// start begins (or restarts) kind for user and issues a code. song is only
// set for song deletion. The flow is saved even when issuance is refused so
// a code sent earlier can still be entered. ok is false when a response has
// already been written.
func (c *codeFlows) start(w http.ResponseWriter, r *http.Request, state *flow.State, kind flow.Kind, user *model.User, email string, song *model.Song) (*model.VerificationCode, bool) {
	ctx := r.Context()
	songID := ""
	if song != nil {
		songID = song.ID
	}
	next := kind.VerifyPath(songID)

	err := c.verification.CheckResend(ctx, user, email, kind.VerificationType())
	limited := errors.Is(err, service.ErrRateLimited)
	if err != nil && !limited {
		slog.Error("failed to check resend limit", "error", err, "user_id", user.ID, "type", kind)
		ui.Error(w, http.StatusInternalServerError, msgServerError)
		return nil, false
	}

	// The flow is saved even when refused, so an earlier code stays usable.
	state.Begin(kind, user.ID, email, songID, c.verification.Now())
	if !c.save(w, state) {
		return nil, false
	}

	if limited {
		ui.Retry(w, http.StatusTooManyRequests, service.MsgRateLimited, next)
		return nil, false
	}

	var code *model.VerificationCode
	if song != nil {
		code, err = c.verification.IssueSongDeletionCode(ctx, user, song)
	} else {
		code, err = c.verification.IssueCode(ctx, user, email, kind.VerificationType())
	}
	switch {
	case errors.Is(err, service.ErrMailDelivery):
		ui.Retry(w, http.StatusServiceUnavailable, service.MsgMailDelivery, next)
		return nil, false
	case err != nil:
		ui.Error(w, http.StatusInternalServerError, msgServerError)
		return nil, false
	}
	return code, true
}

// save writes the flow cookie, answering 500 on failure.
func (c *codeFlows) save(w http.ResponseWriter, state *flow.State) bool {
	err := c.store.Save(w, state)
	if err != nil {
		slog.Error("failed to save flow state", "error", err)
		ui.Error(w, http.StatusInternalServerError, msgServerError)
		return false
	}
	return true
}

// status reports the pending email and the lifetime left on its live code.
func (c *codeFlows) status(r *http.Request, user *model.User, pending *flow.Pending, kind flow.Kind) (*codeStatus, error) {
	status := &codeStatus{Email: pending.Email}

	code, err := c.verification.LiveCode(r.Context(), user, pending.Email, kind.VerificationType())
	if err != nil {
		return status, err
	}

	status.ExpiresAt = &code.ExpiresAt
	status.MinutesRemaining = code.MinutesRemaining(c.verification.Now())
	return status, nil
}

func (c *codeFlows) issued(code *model.VerificationCode, email string) *codeStatus {
	return &codeStatus{
		Email:            email,
		ExpiresAt:        &code.ExpiresAt,
		MinutesRemaining: code.MinutesRemaining(c.verification.Now()),
	}
}

// verificationFailed writes a rejected VerifyCode result. Only unexpected
// storage errors are server errors.
func verificationFailed(w http.ResponseWriter, result service.VerificationResult) {
	status := http.StatusBadRequest
	if errors.Is(result.Err, service.ErrVerificationFailed) {
		status = http.StatusInternalServerError
	}
	ui.Error(w, status, result.Message)
}
