package knowledge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/braincargo/brainblog/internal/services/provider"
)

const (
	openAIBaseURL        = "https://api.openai.com/v1"
	DefaultStoreName     = "braincargo_knowledge"
	defaultPollInterval  = 2 * time.Second
	batchStatusCompleted = "completed"
	batchStatusFailed    = "failed"
	batchStatusCancelled = "cancelled"
)

var ErrBatchFailed = errors.New("vector store file batch failed")

type vectorStore struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type fileBatch struct {
	ID         string         `json:"id"`
	Status     string         `json:"status"`
	FileCounts map[string]int `json:"file_counts"`
}

// OpenAIUploader fills an OpenAI vector store used by the file_search tool.
type OpenAIUploader struct {
	api          apiClient
	pollInterval time.Duration
	now          func() time.Time
}

type OpenAIOption func(*OpenAIUploader)

func WithOpenAIBaseURL(u string) OpenAIOption {
	return func(o *OpenAIUploader) {
		o.api = newAPIClient(o.api.vendor, u, o.api.headers)
	}
}

func WithPollInterval(d time.Duration) OpenAIOption {
	return func(o *OpenAIUploader) { o.pollInterval = d }
}

func NewOpenAIUploader(apiKey string, opts ...OpenAIOption) (*OpenAIUploader, error) {
	if apiKey == "" {
		return nil, errors.New("OPENAI_API_KEY environment variable not set")
	}
	o := &OpenAIUploader{
		api: newAPIClient("OpenAI", openAIBaseURL, map[string]string{
			"Authorization": "Bearer " + apiKey,
			"OpenAI-Beta":   "assistants=v2",
		}),
		pollInterval: defaultPollInterval,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// ResolveStore returns storeID when set, otherwise the store called name,
// creating it when no store has that name.
func (o *OpenAIUploader) ResolveStore(ctx context.Context, name, storeID string) (string, error) {
	if storeID != "" {
		var vs vectorStore
		if err := o.api.doJSON(ctx, http.MethodGet, "/vector_stores/"+storeID, nil, &vs); err != nil {
			return "", fmt.Errorf("could not retrieve store %s: %w", storeID, err)
		}
		slog.Info("Reusing vector store", "name", vs.Name, "id", storeID)
		return storeID, nil
	}
	if name == "" {
		name = DefaultStoreName
	}

	var list struct {
		Data []vectorStore `json:"data"`
	}
	if err := o.api.doJSON(ctx, http.MethodGet, "/vector_stores", nil, &list); err != nil {
		return "", fmt.Errorf("could not access vector stores: %w", err)
	}
	for _, vs := range list.Data {
		if vs.Name == name {
			slog.Info("Reusing existing vector store", "name", name, "id", vs.ID)
			return vs.ID, nil
		}
	}

	var created vectorStore
	if err := o.api.doJSON(ctx, http.MethodPost, "/vector_stores", map[string]string{"name": name}, &created); err != nil {
		return "", fmt.Errorf("could not create vector store: %w", err)
	}
	slog.Info("Created vector store", "name", name, "id", created.ID)
	return created.ID, nil
}

// Upload sends files with purpose=assistants, attaches them to the store as
// one batch and waits for the batch to finish.
func (o *OpenAIUploader) Upload(ctx context.Context, storeID string, files []string) (*provider.OpenAIManifest, error) {
	if len(files) == 0 {
		return nil, errors.New("no files found to upload")
	}

	fileIDs := make([]string, 0, len(files))
	for _, path := range files {
		var f struct {
			ID string `json:"id"`
		}
		if err := o.api.upload(ctx, path, MimeType(path), map[string]string{"purpose": "assistants"}, "/files", &f); err != nil {
			return nil, fmt.Errorf("failed to upload %s: %w", filepath.Base(path), err)
		}
		slog.Info("File uploaded", "file", filepath.Base(path), "id", f.ID)
		fileIDs = append(fileIDs, f.ID)
	}

	var batch fileBatch
	if err := o.api.doJSON(ctx, http.MethodPost, "/vector_stores/"+storeID+"/file_batches", map[string][]string{"file_ids": fileIDs}, &batch); err != nil {
		return nil, fmt.Errorf("failed to create file batch: %w", err)
	}
	if err := o.waitForBatch(ctx, storeID, batch); err != nil {
		return nil, err
	}

	return &provider.OpenAIManifest{
		VectorStoreID: storeID,
		FileIDs:       fileIDs,
		CreatedAt:     o.now().UTC().Format(time.RFC3339),
	}, nil
}

func (o *OpenAIUploader) waitForBatch(ctx context.Context, storeID string, batch fileBatch) error {
	ticker := time.NewTicker(o.pollInterval)
	defer ticker.Stop()

	for {
		switch batch.Status {
		case batchStatusCompleted:
			slog.Info("File batch completed", "batch_id", batch.ID, "file_counts", batch.FileCounts)
			return nil
		case batchStatusFailed, batchStatusCancelled:
			return fmt.Errorf("%w: batch %s is %s", ErrBatchFailed, batch.ID, batch.Status)
		}
		slog.Info("File batch processing", "batch_id", batch.ID, "status", batch.Status)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		if err := o.api.doJSON(ctx, http.MethodGet, "/vector_stores/"+storeID+"/file_batches/"+batch.ID, nil, &batch); err != nil {
			return fmt.Errorf("failed to check file batch: %w", err)
		}
	}
}

// WriteOpenAIManifest writes m to dir/openai_vector_store.json.
func WriteOpenAIManifest(dir string, m *provider.OpenAIManifest) (string, error) {
	path := filepath.Join(dir, provider.OpenAIManifestFile)
	return path, provider.WriteManifest(path, m)
}
