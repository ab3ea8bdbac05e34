package validation

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
)

// FileConstraints maps each accepted extension to the content types
// http.DetectContentType may report for it.
type FileConstraints struct {
	Kind    string
	Allowed map[string][]string
	MaxSize int64
}

var (
	// AudioConstraints accepts mp3 and wav song uploads.
	// Raw MPEG frames without an ID3 header sniff as octet-stream.
	AudioConstraints = FileConstraints{
		Kind: "audio",
		Allowed: map[string][]string{
			".mp3": {"audio/mpeg", "application/octet-stream"},
			".wav": {"audio/wave"},
		},
		MaxSize: 50 << 20,
	}

	// LyricsConstraints accepts plain text, PDF and Word documents.
	LyricsConstraints = FileConstraints{
		Kind: "lyrics",
		Allowed: map[string][]string{
			".txt":  {"text/plain; charset=utf-8", "text/plain; charset=utf-16le", "text/plain; charset=utf-16be"},
			".pdf":  {"application/pdf"},
			".doc":  {"application/octet-stream"},
			".docx": {"application/zip"},
		},
		MaxSize: 5 << 20,
	}
)

// WithMaxSize returns a copy of the constraints with a different size limit.
func (c FileConstraints) WithMaxSize(maxBytes int64) FileConstraints {
	if maxBytes > 0 {
		c.MaxSize = maxBytes
	}
	return c
}

// ValidateFile checks size, extension and sniffed content type of an upload
// and returns the detected content type.
func ValidateFile(header *multipart.FileHeader, constraints FileConstraints) (string, error) {
	if header.Size > constraints.MaxSize {
		return "", errorf("%s file too large: maximum size is %d MB", constraints.Kind, constraints.MaxSize>>20)
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	allowed, ok := constraints.Allowed[ext]
	if !ok {
		return "", errorf("invalid %s file extension: %s", constraints.Kind, ext)
	}

	file, err := header.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	buffer := make([]byte, 512)
	n, err := file.Read(buffer)
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read file: %w", err)
	}

	detected := http.DetectContentType(buffer[:n])
	for _, t := range allowed {
		if detected == t {
			return contentTypeFor(ext, detected), nil
		}
	}
	return "", errorf("invalid %s file type (detected: %s)", constraints.Kind, detected)
}

// contentTypeFor picks the type stored with the object so downloads play or
// open correctly.
func contentTypeFor(ext, detected string) string {
	switch ext {
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	case ".doc":
		return "application/msword"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	}
	return detected
}
