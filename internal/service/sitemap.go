package service

import (
	"context"
	"encoding/xml"
	"log/slog"
	"strings"
	"time"

	"github.com/spado/songcontest/internal/model"
)

// sitemapSongLimit caps the song entries; the most recent submissions win.
const sitemapSongLimit = 500

// publicRoutes are the static pages worth indexing. Account and staff
// pages stay out.
var publicRoutes = []struct {
	Path       string
	Priority   string
	ChangeFreq string
}{
	{"/", "1.0", "daily"},
	{"/songs", "0.9", "hourly"},
	{"/leaderboard", "0.8", "hourly"},
	{"/winners", "0.8", "daily"},
	{"/rules", "0.6", "monthly"},
}

type SitemapURL struct {
	Loc        string `xml:"loc"`
	LastMod    string `xml:"lastmod,omitempty"`
	ChangeFreq string `xml:"changefreq,omitempty"`
	Priority   string `xml:"priority,omitempty"`
}

type Sitemap struct {
	XMLName xml.Name     `xml:"urlset"`
	XMLNS   string       `xml:"xmlns,attr"`
	URLs    []SitemapURL `xml:"url"`
}

type SitemapService struct {
	rules   *RulesService
	songs   *SongService
	baseURL string
}

func NewSitemapService(rules *RulesService, songs *SongService, baseURL string) *SitemapService {
	return &SitemapService{
		rules:   rules,
		songs:   songs,
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}
}

// Generate renders sitemap.xml from the static routes, the rules pages and
// the latest songs. Missing rules or songs are logged and left out.
func (s *SitemapService) Generate(ctx context.Context) ([]byte, error) {
	today := time.Now().Format("2006-01-02")

	sitemap := Sitemap{XMLNS: "http://www.sitemaps.org/schemas/sitemap/0.9"}

	for _, route := range publicRoutes {
		sitemap.URLs = append(sitemap.URLs, SitemapURL{
			Loc:        s.baseURL + route.Path,
			LastMod:    today,
			ChangeFreq: route.ChangeFreq,
			Priority:   route.Priority,
		})
	}

	pages, err := s.rules.Pages()
	if err != nil {
		slog.Warn("failed to list rules pages for sitemap", "error", err)
	}
	for _, page := range pages {
		lastMod := today
		if t, err := time.Parse("January 2, 2006", page.LastUpdated); err == nil {
			lastMod = t.Format("2006-01-02")
		}
		sitemap.URLs = append(sitemap.URLs, SitemapURL{
			Loc:        s.baseURL + "/rules/" + page.Slug,
			LastMod:    lastMod,
			ChangeFreq: "monthly",
			Priority:   "0.5",
		})
	}

	songs, _, err := s.songs.List(ctx, model.SongFilter{OrderBy: "recent", Limit: sitemapSongLimit})
	if err != nil {
		slog.Warn("failed to list songs for sitemap", "error", err)
	}
	for _, song := range songs {
		sitemap.URLs = append(sitemap.URLs, SitemapURL{
			Loc:        s.baseURL + "/songs/" + song.ID,
			LastMod:    song.UpdatedAt.Format("2006-01-02"),
			ChangeFreq: "weekly",
			Priority:   "0.7",
		})
	}

	output, err := xml.MarshalIndent(sitemap, "", "  ")
	if err != nil {
		return nil, err
	}
	return []byte(xml.Header + string(output)), nil
}
