package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/spado/songcontest/internal/model"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// UserView is the public shape of an account in responses.
type UserView struct {
	ID                 string    `json:"id"`
	Username           string    `json:"username"`
	Email              string    `json:"email"`
	FirstName          string    `json:"first_name"`
	LastName           string    `json:"last_name"`
	City               string    `json:"city,omitempty"`
	IsActive           bool      `json:"is_active"`
	IsStaff            bool      `json:"is_staff"`
	TotalSongsUploaded int       `json:"total_songs_uploaded"`
	CreatedAt          time.Time `json:"created_at"`
}

func newUserView(u *model.User) *UserView {
	return &UserView{
		ID:                 u.ID,
		Username:           u.Username,
		Email:              u.Email,
		FirstName:          u.FirstName,
		LastName:           u.LastName,
		City:               u.City,
		IsActive:           u.IsActive,
		IsStaff:            u.IsStaff,
		TotalSongsUploaded: u.TotalSongsUploaded,
		CreatedAt:          u.CreatedAt,
	}
}

// Page is a paginated listing.
type Page[T any] struct {
	Items  []T `json:"items"`
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// pagination reads limit and offset from the query string.
func pagination(r *http.Request) (limit, offset int) {
	limit = queryInt(r, "limit", defaultPageSize)
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	offset = queryInt(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func queryInt(r *http.Request, key string, fallback int) int {
	value := r.URL.Query().Get(key)
	if value == "" {
		return fallback
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return n
}

// formBool accepts the usual checkbox spellings.
func formBool(r *http.Request, key string) bool {
	switch strings.ToLower(strings.TrimSpace(r.FormValue(key))) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}
