package storage

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/braincargo/brainblog/internal/httpclient"
	"github.com/braincargo/brainblog/internal/metrics"
)

// Client talks to the Supabase Storage REST API.
type Client struct {
	baseURL    string
	serviceKey string
	httpClient *http.Client
}

var (
	ErrUploadFailed = errors.New("upload failed")
	ErrNotFound     = errors.New("object not found")
)

func NewClient(baseURL, serviceKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		serviceKey: serviceKey,
		httpClient: httpclient.New(httpclient.WithTimeout(60 * time.Second)),
	}
}

func HashContent(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

func (c *Client) objectURL(bucket, path string) string {
	return fmt.Sprintf("%s/storage/v1/object/%s/%s", c.baseURL, bucket, strings.TrimLeft(path, "/"))
}

func (c *Client) authorize(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.serviceKey)
	req.Header.Set("apikey", c.serviceKey)
}

// Upload writes data at bucket/path, replacing any existing object, and
// returns its public URL.
func (c *Client) Upload(ctx context.Context, bucket, path string, data []byte, contentType string) (publicURL string, err error) {
	defer metrics.RecordExternalCall(ctx, "storage", "upload", time.Now(), &err)
	ctx = httpclient.WithOperation(httpclient.WithProvider(ctx, "storage"), "upload")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.objectURL(bucket, path), bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	c.authorize(req)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("x-upsert", "true")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("%w (status %d): %s", ErrUploadFailed, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	return c.PublicURL(bucket, path), nil
}

// Download reads bucket/path with the service key. Missing objects return
// ErrNotFound.
func (c *Client) Download(ctx context.Context, bucket, path string) (data []byte, err error) {
	defer metrics.RecordExternalCall(ctx, "storage", "download", time.Now(), &err)
	ctx = httpclient.WithOperation(httpclient.WithProvider(ctx, "storage"), "download")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.objectURL(bucket, path), nil)
	if err != nil {
		return nil, err
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	// Supabase answers 400 with an "Object not found" body for missing keys.
	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusBadRequest {
		return nil, ErrNotFound
	}
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("storage download failed (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return io.ReadAll(resp.Body)
}

func (c *Client) PutJSON(ctx context.Context, bucket, path string, v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return c.Upload(ctx, bucket, path, data, "application/json")
}

func (c *Client) GetJSON(ctx context.Context, bucket, path string, v any) error {
	data, err := c.Download(ctx, bucket, path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}

func (c *Client) PublicURL(bucket, path string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", c.baseURL, bucket, strings.TrimLeft(path, "/"))
}
