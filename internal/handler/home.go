package handler

import (
	"log/slog"
	"net/http"

	"github.com/jmoiron/sqlx"
	"github.com/spado/songcontest/internal/model"
	"github.com/spado/songcontest/internal/service"
	"github.com/spado/songcontest/internal/ui"
)

type HomeHandler struct {
	phaseService  *service.PhaseService
	songService   *service.SongService
	winnerService *service.WinnerService
	db            *sqlx.DB
}

func NewHomeHandler(phaseService *service.PhaseService, songService *service.SongService, winnerService *service.WinnerService, db *sqlx.DB) *HomeHandler {
	return &HomeHandler{
		phaseService:  phaseService,
		songService:   songService,
		winnerService: winnerService,
		db:            db,
	}
}

type overview struct {
	Phase    *service.PhaseStatus `json:"phase"`
	Winners  []*model.WinnerEntry `json:"recent_winners"`
	Featured []*model.Song        `json:"featured_songs"`
	TopRated []*model.Song        `json:"top_rated_songs"`
	Stats    *model.ContestStats  `json:"stats"`
}

// Overview is the landing page: phase status, recent winners, featured and
// top rated songs and contest totals.
func (h *HomeHandler) Overview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status, err := h.phaseService.Status(ctx)
	if err != nil {
		h.serverError(w, "failed to load phase status", err)
		return
	}

	winners, err := h.winnerService.List(ctx)
	if err != nil {
		h.serverError(w, "failed to list winners", err)
		return
	}
	if len(winners) > 3 {
		winners = winners[:3]
	}

	featured, _, err := h.songService.List(ctx, model.SongFilter{Featured: true, Limit: 6})
	if err != nil {
		h.serverError(w, "failed to list featured songs", err)
		return
	}

	topRated, _, err := h.songService.List(ctx, model.SongFilter{RatedOnly: true, OrderBy: "rating", Limit: 6})
	if err != nil {
		h.serverError(w, "failed to list top rated songs", err)
		return
	}

	stats, err := h.songService.Stats(ctx)
	if err != nil {
		h.serverError(w, "failed to load stats", err)
		return
	}

	ui.OK(w, "", overview{
		Phase:    status,
		Winners:  winners,
		Featured: featured,
		TopRated: topRated,
		Stats:    stats,
	})
}

// Phase reports the current contest phase after an opportunistic sweep.
func (h *HomeHandler) Phase(w http.ResponseWriter, r *http.Request) {
	status, err := h.phaseService.Status(r.Context())
	if err != nil {
		h.serverError(w, "failed to load phase status", err)
		return
	}
	ui.OK(w, status.Message, status)
}

func (h *HomeHandler) Health(w http.ResponseWriter, r *http.Request) {
	err := h.db.PingContext(r.Context())
	if err != nil {
		slog.Error("health check failed", "error", err)
		ui.Error(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	ui.OK(w, "ok", nil)
}

func (h *HomeHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	ui.Error(w, http.StatusNotFound, "Page not found.")
}

func (h *HomeHandler) serverError(w http.ResponseWriter, msg string, err error) {
	slog.Error(msg, "error", err)
	ui.Error(w, http.StatusInternalServerError, msgServerError)
}
