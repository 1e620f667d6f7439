package provider

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/braincargo/brainblog/internal/config"
)

const (
	OpenAIManifestFile    = "openai_vector_store.json"
	AnthropicManifestFile = "anthropic_uploads.json"
	DefaultKnowledgeDir   = "openai_store"
)

// OpenAIManifest records the vector store created by the knowledge uploader.
type OpenAIManifest struct {
	VectorStoreID string   `json:"vector_store_id"`
	Name          string   `json:"name,omitempty"`
	FileIDs       []string `json:"file_ids"`
	CreatedAt     string   `json:"created_at,omitempty"`
}

type UploadedFile struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	MimeType string `json:"mime_type,omitempty"`
	Size     int64  `json:"size,omitempty"`
}

// AnthropicManifest records files uploaded through the Anthropic files API.
type AnthropicManifest struct {
	UploadedFiles   []UploadedFile `json:"uploaded_files"`
	TotalFiles      int            `json:"total_files"`
	UploadTimestamp string         `json:"upload_timestamp"`
}

// KnowledgeDir returns the manifest directory for cfg.
func KnowledgeDir(cfg config.ProviderConfig) string {
	if cfg.KnowledgeDir != "" {
		return cfg.KnowledgeDir
	}
	if dir := os.Getenv("KNOWLEDGE_DIR"); dir != "" {
		return dir
	}
	return DefaultKnowledgeDir
}

// VectorStoreID resolves the OpenAI vector store from OPENAI_VECTOR_STORE_IDS,
// then vector_store_ids, then the manifest. It returns "" when none is set.
func VectorStoreID(cfg config.ProviderConfig) string {
	if env := os.Getenv("OPENAI_VECTOR_STORE_IDS"); env != "" {
		if id := strings.TrimSpace(strings.Split(env, ",")[0]); id != "" {
			return id
		}
	}
	for _, id := range cfg.VectorStoreIDs {
		if id = strings.TrimSpace(id); id != "" {
			return id
		}
	}

	var manifest OpenAIManifest
	if err := ReadManifest(filepath.Join(KnowledgeDir(cfg), OpenAIManifestFile), &manifest); err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("Could not read vector store manifest", "error", err)
		}
		return ""
	}
	return manifest.VectorStoreID
}

// AnthropicFileIDs resolves knowledge file ids from ANTHROPIC_FILE_IDS, then
// file_ids, then the uploads manifest.
func AnthropicFileIDs(cfg config.ProviderConfig) []string {
	if env := os.Getenv("ANTHROPIC_FILE_IDS"); env != "" {
		if ids := splitIDs(env); len(ids) > 0 {
			return ids
		}
	}
	if len(cfg.FileIDs) > 0 {
		return cfg.FileIDs
	}

	var manifest AnthropicManifest
	if err := ReadManifest(filepath.Join(KnowledgeDir(cfg), AnthropicManifestFile), &manifest); err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("Could not read Anthropic uploads manifest", "error", err)
		}
		return nil
	}
	var ids []string
	for _, f := range manifest.UploadedFiles {
		if f.ID != "" {
			ids = append(ids, f.ID)
		}
	}
	return ids
}

func ReadManifest(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("invalid manifest %s: %w", path, err)
	}
	return nil
}

func WriteManifest(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func splitIDs(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
