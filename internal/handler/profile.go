package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/spado/songcontest/internal/ctxkeys"
	"github.com/spado/songcontest/internal/model"
	"github.com/spado/songcontest/internal/repository"
	"github.com/spado/songcontest/internal/service"
	"github.com/spado/songcontest/internal/ui"
	"github.com/spado/songcontest/internal/validation"
)

type ProfileHandler struct {
	profileService *service.ProfileService
	songService    *service.SongService
}

func NewProfileHandler(profileService *service.ProfileService, songService *service.SongService) *ProfileHandler {
	return &ProfileHandler{
		profileService: profileService,
		songService:    songService,
	}
}

// Show is the public profile of an active contestant with their songs.
func (h *ProfileHandler) Show(w http.ResponseWriter, r *http.Request) {
	profile, err := h.profileService.ByUsername(r.Context(), r.PathValue("username"))
	if errors.Is(err, repository.ErrUserNotFound) {
		ui.Error(w, http.StatusNotFound, "Profile not found.")
		return
	}
	if err != nil {
		slog.Error("failed to load profile", "error", err)
		ui.Error(w, http.StatusInternalServerError, msgServerError)
		return
	}

	songs, _, err := h.songService.List(r.Context(), model.SongFilter{UserID: profile.UserID, Limit: maxPageSize})
	if err != nil {
		slog.Error("failed to list profile songs", "error", err, "user_id", profile.UserID)
		ui.Error(w, http.StatusInternalServerError, msgServerError)
		return
	}

	ui.OK(w, "", map[string]any{
		"profile": profile,
		"songs":   songs,
	})
}

func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	err := h.profileService.Update(r.Context(), user.ID, model.ProfileUpdate{
		FirstName:   r.FormValue("first_name"),
		LastName:    r.FormValue("last_name"),
		Bio:         r.FormValue("bio"),
		City:        r.FormValue("city"),
		PhoneNumber: r.FormValue("phone_number"),
	})
	if validation.IsValidationError(err) {
		ui.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		slog.Error("failed to update profile", "error", err, "user_id", user.ID)
		ui.Error(w, http.StatusInternalServerError, msgServerError)
		return
	}

	ui.OK(w, "Your profile has been updated.", nil)
}
