package service

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/spado/songcontest/internal/markdown"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var ErrPageNotFound = errors.New("page not found")

// RulesPage is one contest rules document rendered from content/rules.
type RulesPage struct {
	Title       string `json:"title"`
	Slug        string `json:"slug"`
	Order       int    `json:"order"`
	Content     string `json:"content"`
	LastUpdated string `json:"last_updated"`
}

type RulesService struct {
	parser     *markdown.Parser
	contentDir string
	reload     bool

	mu    sync.RWMutex
	pages map[string]*RulesPage
}

// NewRulesService reads pages from contentPath/rules. With reload set every
// lookup rereads the directory so edits show up without a restart.
func NewRulesService(contentPath string, reload bool) *RulesService {
	return &RulesService{
		parser:     markdown.NewParser(),
		contentDir: filepath.Join(contentPath, "rules"),
		reload:     reload,
		pages:      make(map[string]*RulesPage),
	}
}

func (s *RulesService) LoadPages() error {
	files, err := os.ReadDir(s.contentDir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read rules directory: %w", err)
	}

	pages := make(map[string]*RulesPage)
	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".md") {
			continue
		}

		slug := strings.TrimSuffix(file.Name(), ".md")
		page, err := s.loadPage(slug)
		if err != nil {
			return fmt.Errorf("failed to load page %s: %w", slug, err)
		}
		pages[slug] = page
	}

	s.mu.Lock()
	s.pages = pages
	s.mu.Unlock()
	return nil
}

func (s *RulesService) loadPage(slug string) (*RulesPage, error) {
	filePath := filepath.Join(s.contentDir, slug+".md")
	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	html, meta, err := s.parser.ParseWithFrontmatter(content)
	if err != nil {
		return nil, fmt.Errorf("failed to parse markdown: %w", err)
	}

	title, _ := meta["title"].(string)
	if title == "" {
		title = cases.Title(language.English).String(strings.ReplaceAll(slug, "-", " "))
	}

	order, _ := meta["order"].(int)

	lastUpdated := formatPageDate(meta["lastUpdated"])
	if lastUpdated == "" {
		info, err := os.Stat(filePath)
		if err != nil {
			return nil, fmt.Errorf("failed to get file info: %w", err)
		}
		lastUpdated = info.ModTime().Format("January 2, 2006")
	}

	return &RulesPage{
		Title:       title,
		Slug:        slug,
		Order:       order,
		Content:     string(html),
		LastUpdated: lastUpdated,
	}, nil
}

func (s *RulesService) Page(slug string) (*RulesPage, error) {
	err := s.refresh()
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	page, ok := s.pages[slug]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPageNotFound, slug)
	}
	return page, nil
}

// Pages lists every page by frontmatter order, then title.
func (s *RulesService) Pages() ([]*RulesPage, error) {
	err := s.refresh()
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	pages := make([]*RulesPage, 0, len(s.pages))
	for _, page := range s.pages {
		pages = append(pages, page)
	}
	s.mu.RUnlock()

	sort.Slice(pages, func(i, j int) bool {
		if pages[i].Order != pages[j].Order {
			return pages[i].Order < pages[j].Order
		}
		return pages[i].Title < pages[j].Title
	})
	return pages, nil
}

func (s *RulesService) refresh() error {
	if !s.reload {
		return nil
	}
	return s.LoadPages()
}

func formatPageDate(value any) string {
	switch v := value.(type) {
	case time.Time:
		return v.Format("January 2, 2006")
	case string:
		for _, layout := range []string{"2006-01-02", "2006/01/02", "January 2, 2006", time.RFC3339} {
			t, err := time.Parse(layout, v)
			if err == nil {
				return t.Format("January 2, 2006")
			}
		}
	}
	return ""
}
