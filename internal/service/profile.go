package service

import (
	"context"
	"strings"

	"github.com/spado/songcontest/internal/model"
	"github.com/spado/songcontest/internal/repository"
	"github.com/spado/songcontest/internal/validation"
)

type ProfileService struct {
	profileRepo repository.ProfileRepository
}

func NewProfileService(profileRepo repository.ProfileRepository) *ProfileService {
	return &ProfileService{
		profileRepo: profileRepo,
	}
}

// ByUsername returns the public profile of an active contestant.
func (s *ProfileService) ByUsername(ctx context.Context, username string) (*model.Profile, error) {
	return s.profileRepo.ByUsername(ctx, username)
}

func (s *ProfileService) Update(ctx context.Context, userID string, update model.ProfileUpdate) error {
	update.FirstName = strings.TrimSpace(update.FirstName)
	update.LastName = strings.TrimSpace(update.LastName)
	update.City = strings.TrimSpace(update.City)
	update.Bio = strings.TrimSpace(update.Bio)
	update.PhoneNumber = strings.TrimSpace(update.PhoneNumber)

	for _, name := range []string{update.FirstName, update.LastName, update.City} {
		err := validation.ValidateName(name)
		if err != nil {
			return err
		}
	}
	err := validation.ValidateBio(update.Bio)
	if err != nil {
		return err
	}

	return s.profileRepo.Update(ctx, userID, update)
}
