package testutil

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/spado/songcontest/internal/model"
	"github.com/spado/songcontest/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

// TestPassword is the password of every fixture user.
const TestPassword = "Melody-2026!"

var testPasswordHash = func() string {
	hash, err := bcrypt.GenerateFromPassword([]byte(TestPassword), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	return string(hash)
}()

// UserOpt adjusts a fixture user before it is stored.
type UserOpt func(*model.User)

// Inactive leaves the email unverified, like a fresh signup.
func Inactive(u *model.User) {
	u.IsActive = false
	u.EmailVerifiedAt = nil
}

// Deactivated is a verified account that staff switched off.
func Deactivated(u *model.User) { u.IsActive = false }

func Staff(u *model.User) { u.IsStaff = true }

func WithUsername(name string) UserOpt {
	return func(u *model.User) {
		u.Username = name
		u.Email = strings.ToLower(name) + "@example.com"
	}
}

// CreateTestUser stores an active, verified user with TestPassword.
func CreateTestUser(t *testing.T, db *sqlx.DB, opts ...UserOpt) *model.User {
	t.Helper()

	name := uniqueName("singer")
	verifiedAt := Epoch
	user := &model.User{
		ID:              uuid.New().String(),
		Username:        name,
		Email:           name + "@example.com",
		PasswordHash:    testPasswordHash,
		FirstName:       "Test",
		LastName:        "Singer",
		IsActive:        true,
		EmailVerifiedAt: &verifiedAt,
		CreatedAt:       Epoch,
	}
	for _, opt := range opts {
		opt(user)
	}

	err := repository.NewUserRepository(db).Create(t.Context(), user)
	if err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}
	return user
}

// CreateTestPhase stores a phase with the given status and deadline.
func CreateTestPhase(t *testing.T, db *sqlx.DB, status string, deadline time.Time) *model.ContestPhase {
	t.Helper()

	phase := &model.ContestPhase{
		Status:       status,
		Description:  "Test phase",
		DeadlineDate: deadline.UTC(),
		CreatedAt:    Epoch,
	}
	err := repository.NewPhaseRepository(db).Create(t.Context(), phase)
	if err != nil {
		t.Fatalf("Failed to create test phase: %v", err)
	}
	return phase
}

// CreateTestSong stores a song owned by user without any files.
func CreateTestSong(t *testing.T, db *sqlx.DB, user *model.User, title string) *model.Song {
	t.Helper()

	song := &model.Song{
		ID:          uuid.New().String(),
		UserID:      user.ID,
		Title:       title,
		Language:    "english",
		Genre:       "Pop",
		AIToolUsed:  "Suno",
		SubmittedAt: Epoch,
		UpdatedAt:   Epoch,
		Username:    user.Username,
	}
	err := repository.NewSongRepository(db).Create(t.Context(), song)
	if err != nil {
		t.Fatalf("Failed to create test song: %v", err)
	}
	return song
}
