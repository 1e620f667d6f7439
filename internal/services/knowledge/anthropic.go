package knowledge

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/braincargo/brainblog/internal/services/provider"
)

const anthropicBaseURL = "https://api.anthropic.com/v1"

// AnthropicUploader sends documents to the Anthropic files API.
type AnthropicUploader struct {
	api apiClient
	now func() time.Time
}

type AnthropicOption func(*AnthropicUploader)

func WithAnthropicBaseURL(u string) AnthropicOption {
	return func(a *AnthropicUploader) {
		a.api = newAPIClient(a.api.vendor, u, a.api.headers)
	}
}

func NewAnthropicUploader(apiKey string, opts ...AnthropicOption) (*AnthropicUploader, error) {
	if apiKey == "" {
		return nil, errors.New("ANTHROPIC_API_KEY environment variable not set")
	}
	a := &AnthropicUploader{
		api: newAPIClient("Anthropic", anthropicBaseURL, map[string]string{
			"x-api-key":         apiKey,
			"anthropic-version": provider.AnthropicVersion,
			"anthropic-beta":    provider.AnthropicFilesBeta,
		}),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Upload sends each file and skips the ones that fail. It returns an error
// only when nothing was uploaded.
func (a *AnthropicUploader) Upload(ctx context.Context, files []string) (*provider.AnthropicManifest, error) {
	if len(files) == 0 {
		return nil, errors.New("no files found to upload")
	}

	uploaded := make([]provider.UploadedFile, 0, len(files))
	for _, path := range files {
		mimeType := MimeType(path)
		var f struct {
			ID        string `json:"id"`
			Filename  string `json:"filename"`
			SizeBytes int64  `json:"size_bytes"`
		}
		if err := a.api.upload(ctx, path, mimeType, nil, "/files", &f); err != nil {
			slog.Warn("Failed to upload file", "file", filepath.Base(path), "error", err)
			continue
		}
		slog.Info("File uploaded", "file", filepath.Base(path), "id", f.ID)
		uploaded = append(uploaded, provider.UploadedFile{
			ID:       f.ID,
			Filename: f.Filename,
			MimeType: mimeType,
			Size:     f.SizeBytes,
		})
	}
	if len(uploaded) == 0 {
		return nil, errors.New("no files were successfully uploaded")
	}

	return &provider.AnthropicManifest{
		UploadedFiles:   uploaded,
		TotalFiles:      len(uploaded),
		UploadTimestamp: a.now().UTC().Format(time.RFC3339),
	}, nil
}

// WriteAnthropicManifest writes m to dir/anthropic_uploads.json.
func WriteAnthropicManifest(dir string, m *provider.AnthropicManifest) (string, error) {
	path := filepath.Join(dir, provider.AnthropicManifestFile)
	return path, provider.WriteManifest(path, m)
}
