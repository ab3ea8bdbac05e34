package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/spado/songcontest/internal/ctxkeys"
	"github.com/spado/songcontest/internal/service"
	"github.com/spado/songcontest/internal/ui"
)

type RulesHandler struct {
	rulesService *service.RulesService
}

func NewRulesHandler(rulesService *service.RulesService) *RulesHandler {
	return &RulesHandler{
		rulesService: rulesService,
	}
}

func (h *RulesHandler) Index(w http.ResponseWriter, r *http.Request) {
	pages, err := h.rulesService.Pages()
	if err != nil {
		slog.Error("failed to load rules pages", "error", err)
		ui.Error(w, http.StatusInternalServerError, msgServerError)
		return
	}

	type entry struct {
		Title       string `json:"title"`
		Slug        string `json:"slug"`
		LastUpdated string `json:"last_updated"`
	}
	entries := make([]entry, 0, len(pages))
	for _, p := range pages {
		entries = append(entries, entry{Title: p.Title, Slug: p.Slug, LastUpdated: p.LastUpdated})
	}
	ui.OK(w, "", entries)
}

// Show renders a rules page as HTML for browsers and as JSON otherwise.
func (h *RulesHandler) Show(w http.ResponseWriter, r *http.Request) {
	page, err := h.rulesService.Page(r.PathValue("page"))
	if errors.Is(err, service.ErrPageNotFound) {
		ui.Error(w, http.StatusNotFound, "Page not found.")
		return
	}
	if err != nil {
		slog.Error("failed to load rules page", "error", err, "page", r.PathValue("page"))
		ui.Error(w, http.StatusInternalServerError, msgServerError)
		return
	}

	if ui.WantsJSON(r.Header.Get("Accept")) {
		ui.OK(w, "", page)
		return
	}

	appName := "AI Song Contest"
	if cfg := ctxkeys.Config(r.Context()); cfg != nil {
		appName = cfg.AppName
	}
	ui.Render(w, r, ui.Document(appName, page.Title, page.Content))
}
