package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/spado/songcontest/internal/model"
	"github.com/spado/songcontest/internal/repository"
	"github.com/spado/songcontest/internal/validation"
	"golang.org/x/crypto/bcrypt"
)

const AuthCookieName = "auth_token"

var (
	ErrInvalidCredentials = errors.New("please enter a correct username and password")
	ErrAccountInactive    = errors.New("account email not verified")
	ErrAccountDisabled    = errors.New("account has been deactivated")
	ErrEmailAlreadyExists = errors.New("a user with that email already exists")
	ErrUsernameTaken      = errors.New("a user with that username already exists")
	ErrPasswordMismatch   = errors.New("the two password fields didn't match")
	ErrNoAccountForEmail  = errors.New("no account found with this email address")
)

// SignupInput carries the registration form.
type SignupInput struct {
	Username    string
	Email       string
	Password    string
	Password2   string
	FirstName   string
	LastName    string
	City        string
	PhoneNumber string
}

type AuthService struct {
	userRepository repository.UserRepository
	jwtSecret      string
	isProduction   bool
	jwtExpiry      time.Duration
}

func NewAuthService(
	userRepository repository.UserRepository,
	jwtSecret string,
	isProduction bool,
	jwtExpiry time.Duration,
) *AuthService {
	return &AuthService{
		userRepository: userRepository,
		jwtSecret:      jwtSecret,
		isProduction:   isProduction,
		jwtExpiry:      jwtExpiry,
	}
}

// Register creates an inactive account. It becomes active once the
// registration code is verified.
func (s *AuthService) Register(ctx context.Context, in SignupInput) (*model.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = validation.NormalizeEmail(in.Email)

	err := validation.ValidateUsername(in.Username)
	if err != nil {
		return nil, err
	}
	err = validation.ValidateEmail(in.Email)
	if err != nil {
		return nil, err
	}
	if in.Password != in.Password2 {
		return nil, ErrPasswordMismatch
	}
	err = validation.ValidatePassword(in.Password, in.Username)
	if err != nil {
		return nil, err
	}
	for _, name := range []string{in.FirstName, in.LastName, in.City} {
		err = validation.ValidateName(name)
		if err != nil {
			return nil, err
		}
	}

	hash, err := s.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		ID:           uuid.New().String(),
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		City:         strings.TrimSpace(in.City),
		PhoneNumber:  strings.TrimSpace(in.PhoneNumber),
		CreatedAt:    time.Now().UTC(),
	}

	err = s.userRepository.Create(ctx, user)
	switch {
	case errors.Is(err, repository.ErrDuplicateUsername):
		return nil, ErrUsernameTaken
	case errors.Is(err, repository.ErrDuplicateEmail):
		return nil, ErrEmailAlreadyExists
	case err != nil:
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	slog.Info("user registered", "user_id", user.ID, "username", user.Username)
	return user, nil
}

// Authenticate checks username and password. A correct password on an
// account whose email was never verified returns the user together with
// ErrAccountInactive so the caller can start the login verification flow.
// Accounts deactivated by staff get ErrAccountDisabled.
func (s *AuthService) Authenticate(ctx context.Context, username, password string) (*model.User, error) {
	user, err := s.userRepository.ByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	err = s.ComparePassword(password, user.PasswordHash)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	if !user.IsActive {
		if user.EmailVerified() {
			return nil, ErrAccountDisabled
		}
		return user, ErrAccountInactive
	}
	return user, nil
}

// Activate records the verified email and activates the account. It only
// ever activates accounts whose email was never verified; a verified but
// inactive account was deactivated by staff and gets ErrAccountDisabled.
func (s *AuthService) Activate(ctx context.Context, user *model.User) error {
	if user.EmailVerified() {
		if !user.IsActive {
			return ErrAccountDisabled
		}
		return nil
	}

	now := time.Now().UTC().Truncate(time.Second)
	verified, err := s.userRepository.VerifyEmail(ctx, user.ID, now)
	if err != nil {
		return fmt.Errorf("failed to activate user: %w", err)
	}

	if !verified {
		// Verified by a concurrent request; go by what is stored now.
		current, err := s.userRepository.ByID(ctx, user.ID)
		if err != nil {
			return fmt.Errorf("failed to reload user: %w", err)
		}
		user.IsActive = current.IsActive
		user.EmailVerifiedAt = current.EmailVerifiedAt
		if !user.IsActive {
			return ErrAccountDisabled
		}
		return nil
	}

	user.IsActive = true
	user.EmailVerifiedAt = &now

	slog.Info("user activated", "user_id", user.ID)
	return nil
}

// UserByEmail resolves the account a recovery flow is started for.
func (s *AuthService) UserByEmail(ctx context.Context, email string) (*model.User, error) {
	email = validation.NormalizeEmail(email)
	err := validation.ValidateEmail(email)
	if err != nil {
		return nil, err
	}

	user, err := s.userRepository.ByEmail(ctx, email)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, ErrNoAccountForEmail
	}
	return user, err
}

// ResetPassword sets a new password after a verified password reset.
func (s *AuthService) ResetPassword(ctx context.Context, user *model.User, password, password2 string) error {
	if password != password2 {
		return ErrPasswordMismatch
	}
	err := validation.ValidatePassword(password, user.Username)
	if err != nil {
		return err
	}

	hash, err := s.HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	err = s.userRepository.UpdatePassword(ctx, user.ID, hash)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	slog.Info("password reset", "user_id", user.ID)
	return nil
}

func (s *AuthService) HashPassword(password string) (string, error) {
	hashedBytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashedBytes), nil
}

func (s *AuthService) ComparePassword(password, hash string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

func (s *AuthService) GenerateJWT(user *model.User) (string, error) {
	claims := jwt.MapClaims{
		"user_id": user.ID,
		"exp":     time.Now().Add(s.jwtExpiry).Unix(),
		"iat":     time.Now().Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.jwtSecret))
}

func (s *AuthService) VerifyJWT(tokenString string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if ok && token.Valid {
		return claims, nil
	}
	return nil, fmt.Errorf("invalid token")
}

// Login issues the session cookie for an active user.
func (s *AuthService) Login(w http.ResponseWriter, user *model.User) error {
	token, err := s.GenerateJWT(user)
	if err != nil {
		return fmt.Errorf("failed to generate token: %w", err)
	}

	s.SetJWTCookie(w, token, time.Now().Add(s.jwtExpiry))
	slog.Info("user logged in", "user_id", user.ID)
	return nil
}

func (s *AuthService) SetJWTCookie(w http.ResponseWriter, token string, expiry time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     AuthCookieName,
		Value:    token,
		Expires:  expiry,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.isProduction,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *AuthService) ClearJWTCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     AuthCookieName,
		Value:    "",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.isProduction,
		SameSite: http.SameSiteLaxMode,
	})
}
