package validation

import (
	"bytes"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		username string
		wantErr  string
	}{
		{"valid", "Melody-2026!", "singer", ""},
		{"too short", "Ab1!", "singer", "at least 8"},
		{"too long", strings.Repeat("a", 73), "singer", "must not exceed"},
		{"numeric", "12345678901", "singer", "entirely numeric"},
		{"contains username", "xxSinger99xx", "singer", "too similar"},
		{"common", "MyPassword1", "singer", "too common"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword(tt.password, tt.username)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.True(t, IsValidationError(err))
		})
	}
}

func TestValidateEmail(t *testing.T) {
	assert.NoError(t, ValidateEmail("singer@example.com"))
	assert.Error(t, ValidateEmail(""))
	assert.Error(t, ValidateEmail("not-an-email"))
	assert.Error(t, ValidateEmail("Singer <singer@example.com>"))
	assert.Error(t, ValidateEmail(strings.Repeat("a", 250)+"@example.com"))

	assert.Equal(t, "singer@example.com", NormalizeEmail("  Singer@Example.COM "))
}

func TestValidateUsername(t *testing.T) {
	assert.NoError(t, ValidateUsername("dj.ali+remix_01"))
	assert.NoError(t, ValidateUsername("گلوکار"))
	assert.Error(t, ValidateUsername(""))
	assert.Error(t, ValidateUsername("has space"))
	assert.Error(t, ValidateUsername(strings.Repeat("a", 151)))
}

func TestValidateCode(t *testing.T) {
	assert.NoError(t, ValidateCode("012345"))
	assert.NoError(t, ValidateCode(" 012345 "))
	assert.Error(t, ValidateCode("12345"))
	assert.Error(t, ValidateCode("1234567"))
	assert.Error(t, ValidateCode("12a456"))
	assert.Error(t, ValidateCode("１２３４５６"))
}

func TestValidateSongMetadata(t *testing.T) {
	assert.NoError(t, ValidateSongMetadata("Moonlit Qawwali", "urdu", "Sufi", "Suno"))
	assert.Error(t, ValidateSongMetadata("", "urdu", "", ""))
	assert.Error(t, ValidateSongMetadata("Song", "punjabi", "", ""))
	assert.Error(t, ValidateSongMetadata(strings.Repeat("s", 201), "english", "", ""))
	assert.Error(t, ValidateSongMetadata("Song", "english", strings.Repeat("g", 101), ""))
}

func TestValidateRatingAndComment(t *testing.T) {
	for _, r := range []int{1, 3, 5} {
		assert.NoError(t, ValidateRating(r))
	}
	assert.Error(t, ValidateRating(0))
	assert.Error(t, ValidateRating(6))

	assert.NoError(t, ValidateComment("Lovely melody"))
	assert.Error(t, ValidateComment("   "))
	assert.Error(t, ValidateComment(strings.Repeat("c", 1001)))
}

func TestValidateBio(t *testing.T) {
	assert.NoError(t, ValidateBio(strings.Repeat("ب", 500)))
	assert.Error(t, ValidateBio(strings.Repeat("b", 501)))
}

func TestIsValidationError(t *testing.T) {
	err := ValidateCode("nope")
	assert.True(t, IsValidationError(err))
	assert.True(t, IsValidationError(fmt.Errorf("signup: %w", err)))
	assert.False(t, IsValidationError(errors.New("database is locked")))
	assert.False(t, IsValidationError(nil))
}

func fileHeader(t *testing.T, filename string, content []byte) *multipart.FileHeader {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest("POST", "/", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	require.NoError(t, req.ParseMultipartForm(1<<20))

	_, header, err := req.FormFile("file")
	require.NoError(t, err)
	return header
}

// id3 is enough of an MP3 header for content sniffing.
var id3 = append([]byte("ID3\x03\x00\x00\x00\x00\x00\x00"), make([]byte, 64)...)

func TestValidateFile(t *testing.T) {
	t.Run("mp3", func(t *testing.T) {
		contentType, err := ValidateFile(fileHeader(t, "song.MP3", id3), AudioConstraints)
		require.NoError(t, err)
		assert.Equal(t, "audio/mpeg", contentType)
	})

	t.Run("lyrics text", func(t *testing.T) {
		contentType, err := ValidateFile(fileHeader(t, "lyrics.txt", []byte("Chand raat\n")), LyricsConstraints)
		require.NoError(t, err)
		assert.Equal(t, "text/plain; charset=utf-8", contentType)
	})

	t.Run("wrong extension", func(t *testing.T) {
		_, err := ValidateFile(fileHeader(t, "song.exe", id3), AudioConstraints)
		require.Error(t, err)
		assert.True(t, IsValidationError(err))
		assert.Contains(t, err.Error(), "extension")
	})

	t.Run("disguised content", func(t *testing.T) {
		_, err := ValidateFile(fileHeader(t, "song.wav", []byte("<html><body>hi</body></html>")), AudioConstraints)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid audio file type")
	})

	t.Run("too large", func(t *testing.T) {
		_, err := ValidateFile(fileHeader(t, "song.mp3", id3), AudioConstraints.WithMaxSize(16))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "too large")
	})
}
