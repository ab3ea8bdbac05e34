package validation

import (
	"strings"
	"unicode/utf8"
)

const (
	MaxTitleLength   = 200
	MaxGenreLength   = 100
	MaxAIToolLength  = 100
	MaxCommentLength = 1000
)

// ValidateSongMetadata checks the editable fields of a song.
func ValidateSongMetadata(title, language, genre, aiTool string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return newError("title is required")
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return newError("title is too long (max 200 characters)")
	}
	if language != "urdu" && language != "english" {
		return newError("language must be urdu or english")
	}
	if utf8.RuneCountInString(genre) > MaxGenreLength {
		return newError("genre is too long (max 100 characters)")
	}
	if utf8.RuneCountInString(aiTool) > MaxAIToolLength {
		return newError("AI tool is too long (max 100 characters)")
	}
	return nil
}

func ValidateRating(rating int) error {
	if rating < 1 || rating > 5 {
		return newError("rating must be between 1 and 5")
	}
	return nil
}

func ValidateComment(content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return newError("comment cannot be empty")
	}
	if utf8.RuneCountInString(content) > MaxCommentLength {
		return newError("comment is too long (max 1000 characters)")
	}
	return nil
}
