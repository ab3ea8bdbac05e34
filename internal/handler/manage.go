package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/spado/songcontest/internal/ctxkeys"
	"github.com/spado/songcontest/internal/model"
	"github.com/spado/songcontest/internal/repository"
	"github.com/spado/songcontest/internal/service"
	"github.com/spado/songcontest/internal/ui"
)

// ManageHandler is the staff area under /manage.
type ManageHandler struct {
	userService   *service.UserService
	songService   *service.SongService
	winnerService *service.WinnerService
	phaseService  *service.PhaseService
}

func NewManageHandler(userService *service.UserService, songService *service.SongService, winnerService *service.WinnerService, phaseService *service.PhaseService) *ManageHandler {
	return &ManageHandler{
		userService:   userService,
		songService:   songService,
		winnerService: winnerService,
		phaseService:  phaseService,
	}
}

func (h *ManageHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := h.songService.Stats(r.Context())
	if err != nil {
		h.fail(w, "failed to load stats", err)
		return
	}

	status, err := h.phaseService.Status(r.Context())
	if err != nil {
		h.fail(w, "failed to load phase status", err)
		return
	}

	ui.OK(w, "", map[string]any{
		"stats": stats,
		"phase": status,
	})
}

// Users

func (h *ManageHandler) Users(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)

	users, total, err := h.userService.List(r.Context(), strings.TrimSpace(r.URL.Query().Get("q")), limit, offset)
	if err != nil {
		h.fail(w, "failed to list users", err)
		return
	}

	views := make([]*UserView, 0, len(users))
	for _, u := range users {
		views = append(views, newUserView(u))
	}
	ui.OK(w, "", Page[*UserView]{Items: views, Total: total, Limit: limit, Offset: offset})
}

func (h *ManageHandler) SetUserActive(w http.ResponseWriter, r *http.Request) {
	actor := ctxkeys.User(r.Context())
	active := formBool(r, "active")

	err := h.userService.SetActive(r.Context(), actor, r.PathValue("id"), active)
	if err != nil {
		h.userError(w, err)
		return
	}

	message := "User deactivated."
	if active {
		message = "User activated."
	}
	ui.OK(w, message, nil)
}

func (h *ManageHandler) SetUserStaff(w http.ResponseWriter, r *http.Request) {
	actor := ctxkeys.User(r.Context())
	staff := formBool(r, "staff")

	err := h.userService.SetStaff(r.Context(), actor, r.PathValue("id"), staff)
	if err != nil {
		h.userError(w, err)
		return
	}

	message := "Staff access revoked."
	if staff {
		message = "Staff access granted."
	}
	ui.OK(w, message, nil)
}

func (h *ManageHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	actor := ctxkeys.User(r.Context())

	err := h.userService.Delete(r.Context(), actor, r.PathValue("id"))
	if err != nil {
		h.userError(w, err)
		return
	}
	ui.OK(w, "User deleted.", nil)
}

func (h *ManageHandler) userError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrSelfModification):
		ui.Error(w, http.StatusBadRequest, "You cannot change your own account here.")
	case errors.Is(err, repository.ErrUserNotFound):
		ui.Error(w, http.StatusNotFound, "User not found.")
	default:
		h.fail(w, "user update failed", err)
	}
}

// Songs and comments

func (h *ManageHandler) Songs(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	q := r.URL.Query()

	filter := model.SongFilter{
		Search:   strings.TrimSpace(q.Get("q")),
		Language: strings.ToLower(q.Get("language")),
		Featured: q.Get("featured") == "1",
		OrderBy:  q.Get("sort"),
		Limit:    limit,
		Offset:   offset,
	}

	songs, total, err := h.songService.List(r.Context(), filter)
	if err != nil {
		h.fail(w, "failed to list songs", err)
		return
	}
	ui.OK(w, "", Page[*model.Song]{Items: songs, Total: total, Limit: limit, Offset: offset})
}

func (h *ManageHandler) FeatureSong(w http.ResponseWriter, r *http.Request) {
	featured := formBool(r, "featured")

	err := h.songService.SetFeatured(r.Context(), r.PathValue("id"), featured)
	if errors.Is(err, repository.ErrSongNotFound) {
		ui.Error(w, http.StatusNotFound, msgNotFoundSong)
		return
	}
	if err != nil {
		h.fail(w, "failed to feature song", err)
		return
	}
	ui.OK(w, "Song updated.", map[string]bool{"featured": featured})
}

func (h *ManageHandler) Comments(w http.ResponseWriter, r *http.Request) {
	comments, err := h.songService.Comments(r.Context(), r.PathValue("id"))
	if err != nil {
		h.fail(w, "failed to list comments", err)
		return
	}
	ui.OK(w, "", comments)
}

func (h *ManageHandler) ApproveComment(w http.ResponseWriter, r *http.Request) {
	approved := formBool(r, "approved")

	err := h.songService.SetCommentApproved(r.Context(), r.PathValue("id"), approved)
	if err != nil {
		h.commentError(w, err)
		return
	}
	ui.OK(w, "Comment updated.", map[string]bool{"approved": approved})
}

func (h *ManageHandler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	err := h.songService.DeleteComment(r.Context(), r.PathValue("id"))
	if err != nil {
		h.commentError(w, err)
		return
	}
	ui.OK(w, "Comment deleted.", nil)
}

func (h *ManageHandler) commentError(w http.ResponseWriter, err error) {
	if errors.Is(err, repository.ErrCommentNotFound) {
		ui.Error(w, http.StatusNotFound, "Comment not found.")
		return
	}
	h.fail(w, "comment moderation failed", err)
}

// Winners

func (h *ManageHandler) Winners(w http.ResponseWriter, r *http.Request) {
	winners, err := h.winnerService.List(r.Context())
	if err != nil {
		h.fail(w, "failed to list winners", err)
		return
	}
	ui.OK(w, "", winners)
}

// SelectWinner records a winner. The contestant is emailed; a failed
// notification is reported in the response but keeps the selection.
func (h *ManageHandler) SelectWinner(w http.ResponseWriter, r *http.Request) {
	position, err := strconv.Atoi(strings.TrimSpace(r.FormValue("position")))
	if err != nil {
		ui.Error(w, http.StatusBadRequest, "Position must be 1, 2 or 3.")
		return
	}

	sel := service.WinnerSelection{
		SongID:     strings.TrimSpace(r.FormValue("song_id")),
		Position:   position,
		AdminNotes: r.FormValue("admin_notes"),
	}

	if raw := strings.TrimSpace(r.FormValue("prize_amount")); raw != "" {
		prize, err := strconv.ParseFloat(raw, 64)
		if err != nil || prize < 0 {
			ui.Error(w, http.StatusBadRequest, "Prize amount must be a positive number.")
			return
		}
		sel.PrizeAmount = &prize
	}

	if raw := strings.TrimSpace(r.FormValue("featured_until")); raw != "" {
		until, err := parseTimestamp(raw)
		if err != nil {
			ui.Error(w, http.StatusBadRequest, "Featured until must be a date and time.")
			return
		}
		sel.FeaturedUntil = &until
	}

	entry, notified, err := h.winnerService.Select(r.Context(), sel)
	switch {
	case errors.Is(err, service.ErrInvalidPosition):
		ui.Error(w, http.StatusBadRequest, "Position must be 1, 2 or 3.")
		return
	case errors.Is(err, repository.ErrDuplicateWinner):
		ui.Error(w, http.StatusConflict, "This song has already been selected as a winner.")
		return
	case errors.Is(err, repository.ErrSongNotFound):
		ui.Error(w, http.StatusNotFound, msgNotFoundSong)
		return
	case err != nil:
		h.fail(w, "failed to select winner", err)
		return
	}

	message := "Winner selected and notified."
	if !notified {
		message = "Winner selected, but the notification email could not be sent."
	}
	ui.Created(w, message, map[string]any{
		"winner":   entry,
		"notified": notified,
	})
}

func (h *ManageHandler) RemoveWinner(w http.ResponseWriter, r *http.Request) {
	err := h.winnerService.Remove(r.Context(), r.PathValue("id"))
	if errors.Is(err, repository.ErrWinnerNotFound) {
		ui.Error(w, http.StatusNotFound, "Winner not found.")
		return
	}
	if err != nil {
		h.fail(w, "failed to remove winner", err)
		return
	}
	ui.OK(w, "Winner removed.", nil)
}

// Phases

func (h *ManageHandler) Phases(w http.ResponseWriter, r *http.Request) {
	phases, err := h.phaseService.ListPhases(r.Context())
	if err != nil {
		h.fail(w, "failed to list phases", err)
		return
	}
	ui.OK(w, "", phases)
}

func (h *ManageHandler) CreatePhase(w http.ResponseWriter, r *http.Request) {
	deadline, ok := phaseDeadline(w, r)
	if !ok {
		return
	}

	phase, err := h.phaseService.CreatePhase(r.Context(), r.FormValue("status"), r.FormValue("description"), deadline)
	if err != nil {
		h.phaseError(w, err)
		return
	}
	ui.Created(w, "Contest phase created.", phase)
}

func (h *ManageHandler) UpdatePhase(w http.ResponseWriter, r *http.Request) {
	deadline, ok := phaseDeadline(w, r)
	if !ok {
		return
	}

	phase, err := h.phaseService.UpdatePhase(r.Context(), r.PathValue("id"), r.FormValue("status"), r.FormValue("description"), deadline)
	if err != nil {
		h.phaseError(w, err)
		return
	}
	ui.OK(w, "Contest phase updated.", phase)
}

func (h *ManageHandler) DeletePhase(w http.ResponseWriter, r *http.Request) {
	err := h.phaseService.DeletePhase(r.Context(), r.PathValue("id"))
	if err != nil {
		h.phaseError(w, err)
		return
	}
	ui.OK(w, "Contest phase deleted.", nil)
}

// AdvancePhases runs the expiry sweep on demand.
func (h *ManageHandler) AdvancePhases(w http.ResponseWriter, r *http.Request) {
	advanced, err := h.phaseService.AdvanceExpiredPhases(r.Context())
	if err != nil {
		h.fail(w, "failed to advance phases", err)
		return
	}
	ui.OK(w, "Expired phases advanced.", map[string]int{"advanced": advanced})
}

func (h *ManageHandler) phaseError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidPhaseStatus), errors.Is(err, service.ErrPhaseDeadline):
		ui.Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, repository.ErrPhaseNotFound):
		ui.Error(w, http.StatusNotFound, "Contest phase not found.")
	default:
		h.fail(w, "phase update failed", err)
	}
}

func phaseDeadline(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	raw := strings.TrimSpace(r.FormValue("deadline_date"))
	if raw == "" {
		ui.Error(w, http.StatusBadRequest, "Deadline is required.")
		return time.Time{}, false
	}

	deadline, err := parseTimestamp(raw)
	if err != nil {
		ui.Error(w, http.StatusBadRequest, "Deadline must be a date and time.")
		return time.Time{}, false
	}
	return deadline, true
}

// parseTimestamp accepts RFC 3339 and the datetime-local form format,
// the latter read as UTC.
func parseTimestamp(raw string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, raw)
	if err == nil {
		return t.UTC(), nil
	}
	return time.Parse("2006-01-02T15:04", raw)
}

func (h *ManageHandler) fail(w http.ResponseWriter, msg string, err error) {
	slog.Error(msg, "error", err)
	ui.Error(w, http.StatusInternalServerError, msgServerError)
}
