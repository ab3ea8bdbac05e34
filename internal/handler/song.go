package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/spado/songcontest/internal/ctxkeys"
	"github.com/spado/songcontest/internal/flow"
	"github.com/spado/songcontest/internal/model"
	"github.com/spado/songcontest/internal/repository"
	"github.com/spado/songcontest/internal/service"
	"github.com/spado/songcontest/internal/ui"
	"github.com/spado/songcontest/internal/validation"
)

type SongHandler struct {
	songService   *service.SongService
	phaseService  *service.PhaseService
	winnerService *service.WinnerService
	codes         *codeFlows
	audioLimit    validation.FileConstraints
}

func NewSongHandler(
	songService *service.SongService,
	phaseService *service.PhaseService,
	winnerService *service.WinnerService,
	verificationService *service.VerificationService,
	store *flow.Store,
	maxAudioMB int,
) *SongHandler {
	return &SongHandler{
		songService:   songService,
		phaseService:  phaseService,
		winnerService: winnerService,
		codes:         &codeFlows{verification: verificationService, store: store},
		audioLimit:    validation.AudioConstraints.WithMaxSize(int64(maxAudioMB) << 20),
	}
}

func (h *SongHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, offset := pagination(r)

	filter := model.SongFilter{
		Search:   strings.TrimSpace(q.Get("q")),
		Language: strings.ToLower(q.Get("language")),
		Genre:    strings.TrimSpace(q.Get("genre")),
		Featured: q.Get("featured") == "1",
		OrderBy:  q.Get("sort"),
		Limit:    limit,
		Offset:   offset,
	}

	songs, total, err := h.songService.List(r.Context(), filter)
	if err != nil {
		slog.Error("failed to list songs", "error", err)
		ui.Error(w, http.StatusInternalServerError, msgServerError)
		return
	}

	ui.OK(w, "", Page[*model.Song]{Items: songs, Total: total, Limit: limit, Offset: offset})
}

func (h *SongHandler) Show(w http.ResponseWriter, r *http.Request) {
	detail, err := h.songService.View(r.Context(), r.PathValue("id"), ctxkeys.User(r.Context()))
	if err != nil {
		h.songError(w, err, "failed to load song")
		return
	}
	ui.OK(w, "", detail)
}

// Upload accepts a multipart submission with audio_file and an optional
// lyrics_file while submissions are open.
func (h *SongHandler) Upload(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, h.audioLimit.MaxSize+validation.LyricsConstraints.MaxSize+(1<<20))
	err := r.ParseMultipartForm(32 << 20)
	if err != nil {
		ui.Error(w, http.StatusBadRequest, "Upload is too large or malformed.")
		return
	}

	audio, closeAudio, err := h.openUpload(r, "audio_file", h.audioLimit)
	if err != nil {
		ui.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if audio == nil {
		ui.Error(w, http.StatusBadRequest, "An audio file is required.")
		return
	}
	defer closeAudio()

	lyrics, closeLyrics, err := h.openUpload(r, "lyrics_file", validation.LyricsConstraints)
	if err != nil {
		ui.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if lyrics != nil {
		defer closeLyrics()
	}

	song, err := h.songService.Submit(r.Context(), user, songInput(r), *audio, lyrics)
	switch {
	case errors.Is(err, service.ErrSubmissionsClosed):
		message, msgErr := h.phaseService.PhaseMessage(r.Context())
		if msgErr != nil || message == "" {
			message = "Song submissions are currently closed."
		}
		ui.Error(w, http.StatusForbidden, message)
		return
	case validation.IsValidationError(err):
		ui.Error(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		slog.Error("song upload failed", "error", err, "user_id", user.ID)
		ui.Error(w, http.StatusInternalServerError, msgServerError)
		return
	}

	ui.Created(w, "Your song has been uploaded successfully!", song)
}

// openUpload validates the named file field. A missing optional field
// yields a nil upload and no error.
func (h *SongHandler) openUpload(r *http.Request, field string, constraints validation.FileConstraints) (*service.Upload, func(), error) {
	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("could not read %s", field)
	}

	contentType, err := validation.ValidateFile(header, constraints)
	if err != nil {
		_ = file.Close()
		return nil, nil, err
	}

	upload := &service.Upload{
		Body:         file,
		OriginalName: header.Filename,
		ContentType:  contentType,
		Size:         header.Size,
	}
	return upload, closer(file), nil
}

func closer(file multipart.File) func() {
	return func() { _ = file.Close() }
}

func (h *SongHandler) Update(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	song, err := h.songService.Update(r.Context(), user, r.PathValue("id"), songInput(r))
	if validation.IsValidationError(err) {
		ui.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		h.songError(w, err, "failed to update song")
		return
	}
	ui.OK(w, "Song updated.", song)
}

func songInput(r *http.Request) service.SongInput {
	return service.SongInput{
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
		Language:    r.FormValue("language"),
		Genre:       r.FormValue("genre"),
		AIToolUsed:  r.FormValue("ai_tool_used"),
	}
}

func (h *SongHandler) Vote(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	rating, err := strconv.Atoi(strings.TrimSpace(r.FormValue("rating")))
	if err != nil {
		ui.Error(w, http.StatusBadRequest, "Rating must be a number between 1 and 5.")
		return
	}

	vote, created, err := h.songService.Vote(r.Context(), user, r.PathValue("id"), rating, r.FormValue("comment"))
	switch {
	case validation.IsValidationError(err):
		ui.Error(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, service.ErrOwnSongVote):
		ui.Error(w, http.StatusForbidden, "You cannot vote for your own song.")
		return
	case err != nil:
		h.songError(w, err, "failed to record vote")
		return
	}

	if created {
		ui.Created(w, "Thank you for voting!", vote)
		return
	}
	ui.OK(w, "Your vote has been updated.", vote)
}

func (h *SongHandler) Comment(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	comment, err := h.songService.AddComment(r.Context(), user, r.PathValue("id"), r.FormValue("content"))
	if validation.IsValidationError(err) {
		ui.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		h.songError(w, err, "failed to add comment")
		return
	}
	ui.Created(w, "Comment added.", comment)
}

func (h *SongHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	board, err := h.songService.Leaderboard(r.Context())
	if err != nil {
		slog.Error("failed to build leaderboard", "error", err)
		ui.Error(w, http.StatusInternalServerError, msgServerError)
		return
	}
	ui.OK(w, "", board)
}

func (h *SongHandler) Winners(w http.ResponseWriter, r *http.Request) {
	winners, err := h.winnerService.List(r.Context())
	if err != nil {
		slog.Error("failed to list winners", "error", err)
		ui.Error(w, http.StatusInternalServerError, msgServerError)
		return
	}
	ui.OK(w, "", winners)
}

func (h *SongHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	dashboard, err := h.songService.Dashboard(r.Context(), user)
	if err != nil {
		slog.Error("failed to load dashboard", "error", err, "user_id", user.ID)
		ui.Error(w, http.StatusInternalServerError, msgServerError)
		return
	}

	status, err := h.phaseService.Status(r.Context())
	if err != nil {
		slog.Error("failed to load phase status", "error", err)
		ui.Error(w, http.StatusInternalServerError, msgServerError)
		return
	}

	ui.OK(w, "", map[string]any{
		"user":       newUserView(user),
		"songs":      dashboard.Songs,
		"wins":       dashboard.Wins,
		"phase":      status,
		"can_upload": status.CanSubmit,
	})
}

// DeletePage shows the song about to be deleted and whether a deletion
// code is pending for it.
func (h *SongHandler) DeletePage(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	song, err := h.songService.OwnedSong(r.Context(), user, r.PathValue("id"))
	if err != nil {
		h.songError(w, err, "failed to load song")
		return
	}

	state := h.codes.store.Load(r)
	_, pendingErr := state.RequireSong(song.ID)
	ui.OK(w, "", map[string]any{
		"song":    song,
		"pending": pendingErr == nil,
	})
}

// RequestDelete emails a song_deletion code to the owner.
func (h *SongHandler) RequestDelete(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	song, err := h.songService.OwnedSong(r.Context(), user, r.PathValue("id"))
	if err != nil {
		h.songError(w, err, "failed to load song")
		return
	}

	state := h.codes.store.Load(r)
	code, ok := h.codes.start(w, r, state, flow.KindSongDeletion, user, user.Email, song)
	if !ok {
		return
	}

	slog.Info("song deletion requested", "song_id", song.ID, "user_id", user.ID)
	ui.Next(w, msgCodeSent, flow.KindSongDeletion.VerifyPath(song.ID), h.codes.issued(code, user.Email))
}

// VerifyDelete deletes the song once the deletion code checks out.
func (h *SongHandler) VerifyDelete(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())
	songID := r.PathValue("id")

	state, pending, ok := h.pendingDeletion(w, r, user, songID)
	if !ok {
		return
	}

	code := strings.TrimSpace(r.FormValue("code"))
	err := validation.ValidateCode(code)
	if err != nil {
		ui.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	result := h.codes.verification.VerifyCode(r.Context(), user, pending.Email, code, model.VerificationTypeSongDeletion)
	if !result.Success {
		verificationFailed(w, result)
		return
	}

	song, err := h.songService.Delete(r.Context(), user, songID)
	if errors.Is(err, repository.ErrSongNotFound) {
		state.Clear(flow.KindSongDeletion)
		if h.codes.save(w, state) {
			ui.Redirect(w, "/dashboard", msgNotFoundSong)
		}
		return
	}
	if err != nil {
		slog.Error("failed to delete song", "error", err, "song_id", songID)
		ui.Error(w, http.StatusInternalServerError, msgServerError)
		return
	}

	state.Clear(flow.KindSongDeletion)
	if !h.codes.save(w, state) {
		return
	}
	ui.Next(w, fmt.Sprintf("Your song %q has been deleted.", song.Title), "/dashboard", nil)
}

func (h *SongHandler) ResendDelete(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())
	songID := r.PathValue("id")

	state, pending, ok := h.pendingDeletion(w, r, user, songID)
	if !ok {
		return
	}

	song, err := h.songService.OwnedSong(r.Context(), user, songID)
	if err != nil {
		h.songError(w, err, "failed to load song")
		return
	}

	code, ok := h.codes.start(w, r, state, flow.KindSongDeletion, user, pending.Email, song)
	if !ok {
		return
	}
	ui.OK(w, msgCodeResent, h.codes.issued(code, pending.Email))
}

// PendingDelete reports the live deletion code for the verify form.
func (h *SongHandler) PendingDelete(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	_, pending, ok := h.pendingDeletion(w, r, user, r.PathValue("id"))
	if !ok {
		return
	}

	status, err := h.codes.status(r, user, pending, flow.KindSongDeletion)
	if err != nil && !errors.Is(err, repository.ErrCodeNotFound) {
		slog.Error("failed to load live code", "error", err, "user_id", user.ID)
		ui.Error(w, http.StatusInternalServerError, msgServerError)
		return
	}
	ui.OK(w, "", status)
}

// pendingDeletion requires a deletion flow started by this user for this
// song.
func (h *SongHandler) pendingDeletion(w http.ResponseWriter, r *http.Request, user *model.User, songID string) (*flow.State, *flow.Pending, bool) {
	state := h.codes.store.Load(r)
	pending, err := state.RequireSong(songID)
	if err != nil || pending.UserID != user.ID {
		ui.Redirect(w, flow.KindSongDeletion.EntryPoint(songID), msgFlowMissing)
		return nil, nil, false
	}
	return state, pending, true
}

func (h *SongHandler) songError(w http.ResponseWriter, err error, msg string) {
	if errors.Is(err, repository.ErrSongNotFound) {
		ui.Error(w, http.StatusNotFound, msgNotFoundSong)
		return
	}
	slog.Error(msg, "error", err)
	ui.Error(w, http.StatusInternalServerError, msgServerError)
}
