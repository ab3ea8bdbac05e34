package handler

import (
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/spado/songcontest/internal/service"
)

type SEOHandler struct {
	sitemapService *service.SitemapService
	staticDir      string
}

func NewSEOHandler(sitemapService *service.SitemapService, staticDir string) *SEOHandler {
	return &SEOHandler{sitemapService: sitemapService, staticDir: staticDir}
}

// Robots serves static/robots.txt, or a default that allows everything but
// the account and staff areas.
func (h *SEOHandler) Robots(w http.ResponseWriter, r *http.Request) {
	content, err := os.ReadFile(filepath.Join(h.staticDir, "robots.txt"))
	if err != nil {
		content = []byte("User-agent: *\nAllow: /\nDisallow: /accounts/\nDisallow: /manage\nSitemap: /sitemap.xml\n")
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write(content)
}

func (h *SEOHandler) Sitemap(w http.ResponseWriter, r *http.Request) {
	sitemap, err := h.sitemapService.Generate(r.Context())
	if err != nil {
		slog.Error("failed to generate sitemap", "error", err)
		http.Error(w, "Failed to generate sitemap", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	_, _ = w.Write(sitemap)
}
