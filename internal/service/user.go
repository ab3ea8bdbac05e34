package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spado/songcontest/internal/model"
	"github.com/spado/songcontest/internal/repository"
)

var ErrSelfModification = errors.New("you cannot change your own account here")

type UserService struct {
	userRepository repository.UserRepository
	fileService    *FileService
}

func NewUserService(userRepository repository.UserRepository, fileService *FileService) *UserService {
	return &UserService{
		userRepository: userRepository,
		fileService:    fileService,
	}
}

func (s *UserService) ByID(ctx context.Context, id string) (*model.User, error) {
	return s.userRepository.ByID(ctx, id)
}

func (s *UserService) ByUsername(ctx context.Context, username string) (*model.User, error) {
	return s.userRepository.ByUsername(ctx, username)
}

// List returns a page of users matching search together with the total
// number of accounts.
func (s *UserService) List(ctx context.Context, search string, limit, offset int) ([]*model.User, int, error) {
	users, err := s.userRepository.List(ctx, search, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}

	total, err := s.userRepository.Count(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}
	return users, total, nil
}

func (s *UserService) SetActive(ctx context.Context, actor *model.User, userID string, active bool) error {
	if actor.ID == userID {
		return ErrSelfModification
	}

	err := s.userRepository.SetActive(ctx, userID, active)
	if err != nil {
		return err
	}

	slog.Info("user active flag changed", "user_id", userID, "active", active, "by", actor.ID)
	return nil
}

func (s *UserService) SetStaff(ctx context.Context, actor *model.User, userID string, staff bool) error {
	if actor.ID == userID {
		return ErrSelfModification
	}

	err := s.userRepository.SetStaff(ctx, userID, staff)
	if err != nil {
		return err
	}

	slog.Info("user staff flag changed", "user_id", userID, "staff", staff, "by", actor.ID)
	return nil
}

// Promote grants staff rights and activates the account. Used by the
// operator CLI to bootstrap the first admin.
func (s *UserService) Promote(ctx context.Context, username string) (*model.User, error) {
	user, err := s.userRepository.ByUsername(ctx, username)
	if err != nil {
		return nil, err
	}

	err = s.userRepository.SetStaff(ctx, user.ID, true)
	if err != nil {
		return nil, fmt.Errorf("failed to promote user: %w", err)
	}
	err = s.userRepository.SetActive(ctx, user.ID, true)
	if err != nil {
		return nil, fmt.Errorf("failed to activate user: %w", err)
	}

	user.IsStaff = true
	user.IsActive = true
	slog.Info("user promoted to staff", "user_id", user.ID, "username", user.Username)
	return user, nil
}

// Delete removes an account. Songs, votes, comments, codes and file records
// cascade; stored objects are removed first.
func (s *UserService) Delete(ctx context.Context, actor *model.User, userID string) error {
	if actor.ID == userID {
		return ErrSelfModification
	}

	user, err := s.userRepository.ByID(ctx, userID)
	if err != nil {
		return err
	}

	err = s.fileService.DeleteUserFilesFromStorage(ctx, userID)
	if err != nil {
		slog.Warn("failed to delete user files from storage", "user_id", userID, "error", err)
	}

	err = s.userRepository.Delete(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	slog.Info("user deleted", "user_id", userID, "username", user.Username, "by", actor.ID)
	return nil
}
