package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/spado/songcontest/internal/metrics"
	"github.com/spado/songcontest/internal/model"
	"github.com/spado/songcontest/internal/repository"
)

var (
	ErrMailDelivery       = errors.New("verification email could not be delivered")
	ErrInvalidCode        = errors.New("invalid verification code")
	ErrExpiredCode        = errors.New("verification code has expired")
	ErrAttemptsExhausted  = errors.New("verification attempts exhausted")
	ErrRateLimited        = errors.New("too many verification requests")
	ErrVerificationFailed = errors.New("verification failed")
	ErrUnknownCodeType    = errors.New("unknown verification type")
)

// User-facing verification messages.
const (
	MsgVerified          = "Email verified successfully!"
	MsgInvalidCode       = "Invalid verification code."
	MsgExpiredCode       = "Verification code has expired. Please request a new one."
	MsgAttemptsExhausted = "Too many failed attempts. Please request a new code."
	MsgVerificationError = "An error occurred during verification."
	MsgRateLimited       = "Too many requests. Please wait 10 minutes before requesting a new code."
	MsgMailDelivery      = "We could not send the verification email. Please try again."
)

const (
	codeAlphabet = "0123456789"
	codeLength   = 6
)

// Clock returns the current time. Tests inject a fixed clock.
type Clock func() time.Time

func systemClock() time.Time {
	return time.Now().UTC()
}

// VerificationResult is the outcome of VerifyCode. Err is nil on success and
// one of the verification sentinels otherwise.
type VerificationResult struct {
	Success bool
	Message string
	Err     error
	Code    *model.VerificationCode
}

type VerificationOptions struct {
	CodeTTL      time.Duration
	MaxAttempts  int
	ResendLimit  int
	ResendWindow time.Duration
	Clock        Clock
	GenerateCode func() (string, error)
}

type VerificationService struct {
	repo         repository.VerificationRepository
	emailService *EmailService
	codeTTL      time.Duration
	maxAttempts  int
	resendLimit  int
	resendWindow time.Duration
	now          Clock
	generateCode func() (string, error)
}

func NewVerificationService(repo repository.VerificationRepository, emailService *EmailService, opts VerificationOptions) *VerificationService {
	s := &VerificationService{
		repo:         repo,
		emailService: emailService,
		codeTTL:      opts.CodeTTL,
		maxAttempts:  opts.MaxAttempts,
		resendLimit:  opts.ResendLimit,
		resendWindow: opts.ResendWindow,
		now:          opts.Clock,
		generateCode: opts.GenerateCode,
	}
	if s.codeTTL <= 0 {
		s.codeTTL = 15 * time.Minute
	}
	if s.maxAttempts <= 0 {
		s.maxAttempts = 5
	}
	if s.resendLimit <= 0 {
		s.resendLimit = 3
	}
	if s.resendWindow <= 0 {
		s.resendWindow = 10 * time.Minute
	}
	if s.now == nil {
		s.now = systemClock
	}
	if s.generateCode == nil {
		s.generateCode = func() (string, error) {
			return gonanoid.Generate(codeAlphabet, codeLength)
		}
	}
	return s
}

// IssueCode creates or resets the live code for (user, email, codeType) and
// mails it. When delivery fails the record is kept and the returned error
// wraps ErrMailDelivery, so a later resend reuses the same row.
func (s *VerificationService) IssueCode(ctx context.Context, user *model.User, email, codeType string) (*model.VerificationCode, error) {
	return s.issue(ctx, user, email, codeType, "")
}

// IssueSongDeletionCode issues a song_deletion code. Any earlier deletion
// codes of the user are superseded.
func (s *VerificationService) IssueSongDeletionCode(ctx context.Context, user *model.User, song *model.Song) (*model.VerificationCode, error) {
	return s.issue(ctx, user, user.Email, model.VerificationTypeSongDeletion, song.Title)
}

func (s *VerificationService) issue(ctx context.Context, user *model.User, email, codeType, songTitle string) (*model.VerificationCode, error) {
	if !model.IsVerificationType(codeType) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCodeType, codeType)
	}
	email = strings.ToLower(strings.TrimSpace(email))

	code, err := s.generateCode()
	if err != nil {
		return nil, fmt.Errorf("failed to generate code: %w", err)
	}

	now := s.now()
	record, err := s.repo.Issue(ctx, &model.VerificationCode{
		UserID:    user.ID,
		Email:     email,
		Type:      codeType,
		Code:      code,
		CreatedAt: now,
		ExpiresAt: now.Add(s.codeTTL),
	}, codeType == model.VerificationTypeSongDeletion)
	if err != nil {
		slog.Error("verification code issuance failed", "error", err, "user_id", user.ID, "type", codeType)
		return nil, fmt.Errorf("failed to store verification code: %w", err)
	}
	metrics.VerificationCodesIssued.WithLabelValues(codeType).Inc()

	err = s.emailService.SendVerificationCode(ctx, user, record, songTitle, now)
	if err != nil {
		metrics.VerificationMailFailures.WithLabelValues(codeType).Inc()
		slog.Error("verification email delivery failed", "error", err, "user_id", user.ID, "email", email, "type", codeType)
		return record, fmt.Errorf("%w: %w", ErrMailDelivery, err)
	}

	slog.Info("verification code issued", "user_id", user.ID, "email", email, "type", codeType)
	return record, nil
}

// VerifyCode checks a submitted code against the unused record that matches
// it exactly. Codes matching no record leave every other record untouched.
func (s *VerificationService) VerifyCode(ctx context.Context, user *model.User, email, code, codeType string) VerificationResult {
	email = strings.ToLower(strings.TrimSpace(email))
	code = strings.TrimSpace(code)

	now := s.now()
	record, consumed, err := s.repo.Attempt(ctx, user.ID, email, codeType, code, now, s.maxAttempts)
	switch {
	case errors.Is(err, repository.ErrCodeNotFound):
		return s.fail(user, codeType, "invalid", MsgInvalidCode, ErrInvalidCode, nil)
	case err != nil:
		slog.Error("verification failed", "error", err, "user_id", user.ID, "type", codeType)
		return s.fail(user, codeType, "error", MsgVerificationError, ErrVerificationFailed, nil)
	case consumed:
		metrics.VerificationAttempts.WithLabelValues(codeType, "success").Inc()
		slog.Info("verification code verified", "user_id", user.ID, "email", email, "type", codeType)
		return VerificationResult{Success: true, Message: MsgVerified, Code: record}
	case record.IsExpired(now):
		return s.fail(user, codeType, "expired", MsgExpiredCode, ErrExpiredCode, record)
	case record.IsExhausted(s.maxAttempts):
		return s.fail(user, codeType, "exhausted", MsgAttemptsExhausted, ErrAttemptsExhausted, record)
	default:
		return s.fail(user, codeType, "invalid", MsgInvalidCode, ErrInvalidCode, record)
	}
}

func (s *VerificationService) fail(user *model.User, codeType, outcome, msg string, err error, record *model.VerificationCode) VerificationResult {
	metrics.VerificationAttempts.WithLabelValues(codeType, outcome).Inc()
	slog.Info("verification code rejected", "user_id", user.ID, "type", codeType, "outcome", outcome)
	return VerificationResult{Message: msg, Err: err, Code: record}
}

// ResendAllowed reports whether another code may be issued for the tuple:
// fewer than the limit must have been issued in the trailing window. The
// check and the following issuance are not atomic, so a burst of concurrent
// requests may occasionally get one extra code.
func (s *VerificationService) ResendAllowed(ctx context.Context, user *model.User, email, codeType string) (bool, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	since := s.now().Add(-s.resendWindow)

	count, err := s.repo.CountIssuedSince(ctx, user.ID, email, codeType, since)
	if err != nil {
		return false, fmt.Errorf("failed to count issued codes: %w", err)
	}

	allowed := count < s.resendLimit
	if !allowed {
		metrics.VerificationRateLimited.WithLabelValues(codeType).Inc()
		slog.Warn("verification resend rate limited", "user_id", user.ID, "email", email, "type", codeType, "count", count)
	}
	return allowed, nil
}

// CheckResend is ResendAllowed as an error: ErrRateLimited when the tuple has
// used up its budget.
func (s *VerificationService) CheckResend(ctx context.Context, user *model.User, email, codeType string) error {
	allowed, err := s.ResendAllowed(ctx, user, email, codeType)
	if err != nil {
		return err
	}
	if !allowed {
		return ErrRateLimited
	}
	return nil
}

// LiveCode returns the unused record for the tuple, for showing how long the
// pending code stays valid.
func (s *VerificationService) LiveCode(ctx context.Context, user *model.User, email, codeType string) (*model.VerificationCode, error) {
	return s.repo.Live(ctx, user.ID, strings.ToLower(strings.TrimSpace(email)), codeType)
}

// CleanupExpired deletes expired codes and returns how many were removed.
// Issuance log entries older than the resend window are pruned as well.
func (s *VerificationService) CleanupExpired(ctx context.Context) (int64, error) {
	now := s.now()

	removed, err := s.repo.CleanupExpired(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired codes: %w", err)
	}

	pruned, err := s.repo.PruneIssuances(ctx, now.Add(-s.resendWindow))
	if err != nil {
		slog.Warn("failed to prune verification issuance log", "error", err)
	}

	metrics.VerificationCodesCleaned.Add(float64(removed))
	slog.Info("expired verification codes cleaned up", "removed", removed, "issuances_pruned", pruned)
	return removed, nil
}

// Now exposes the service clock to callers that report remaining time.
func (s *VerificationService) Now() time.Time {
	return s.now()
}
