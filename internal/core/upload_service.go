package core

import (
	"context"
	"fmt"
	"io"
	"log"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/akinsayesokpah82-rgb/chatkin/internal/extract"
	"github.com/akinsayesokpah82-rgb/chatkin/internal/llm"
)

const (
	imagePlaceholderSnippet = "An image was uploaded, but no description is available."
	unsupportedSnippet      = "This file type is not supported for text extraction."
)

// UploadResult references one stored upload and its derived text snippet.
type UploadResult struct {
	Filename       string
	StoredName     string
	ContentSnippet string
}

// UploadService persists one uploaded file and derives a text snippet from it
// by declared content type. Stored files are retained and served as static
// assets, they are never deleted after extraction.
type UploadService struct {
	provider     llm.Provider
	dir          string
	snippetLimit int
	timeout      time.Duration
}

func NewUploadService(provider llm.Provider, dir string, snippetLimit int, timeout time.Duration) (*UploadService, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory %s: %w", dir, err)
	}
	return &UploadService{
		provider:     provider,
		dir:          dir,
		snippetLimit: snippetLimit,
		timeout:      timeout,
	}, nil
}

func (s *UploadService) Save(ctx context.Context, filename, contentType string, r io.Reader) (*UploadResult, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}

	// Timestamp prefix avoids collisions between same-named uploads.
	storedName := fmt.Sprintf("%d-%s", time.Now().UnixMilli(), sanitizeFilename(filename))
	path := filepath.Join(s.dir, storedName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("failed to store upload: %w", err)
	}

	snippet, err := s.snippet(ctx, filename, contentType, data)
	if err != nil {
		// No partial file may remain referenced after a failed extraction.
		if rmErr := os.Remove(path); rmErr != nil {
			log.Printf("Failed to remove %s after extraction error: %v", path, rmErr)
		}
		return nil, fmt.Errorf("failed to extract text from %s: %w", filename, err)
	}

	return &UploadResult{
		Filename:       filename,
		StoredName:     storedName,
		ContentSnippet: extract.Truncate(snippet, s.snippetLimit),
	}, nil
}

func (s *UploadService) snippet(ctx context.Context, filename, contentType string, data []byte) (string, error) {
	mediaType := resolveMediaType(filename, contentType)

	switch {
	case mediaType == "application/pdf":
		return extract.PDFText(data)
	case mediaType == "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		mediaType == "application/msword":
		return extract.DocxText(data)
	case strings.HasPrefix(mediaType, "text/"):
		return string(data), nil
	case strings.HasPrefix(mediaType, "image/"):
		return s.describeImage(ctx, mediaType, data), nil
	default:
		return unsupportedSnippet, nil
	}
}

func (s *UploadService) describeImage(ctx context.Context, mediaType string, data []byte) string {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	description, err := s.provider.Describe(ctx, mediaType, data)
	if err != nil {
		log.Printf("Image description failed, returning placeholder: %v", err)
		return imagePlaceholderSnippet
	}
	return description
}

func resolveMediaType(filename, contentType string) string {
	mediaType := ""
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		mediaType = mt
	}
	if mediaType == "" || mediaType == "application/octet-stream" {
		if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(filename))); byExt != "" {
			if mt, _, err := mime.ParseMediaType(byExt); err == nil {
				mediaType = mt
			}
		}
	}
	return mediaType
}

func sanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.ReplaceAll(name, " ", "_")
	if name == "" || name == "." || name == ".." {
		name = "upload"
	}
	return name
}
