// Package knowledge uploads reference documents to vendor file stores so the
// blog generator can ground posts on them, and records what was uploaded in
// manifests read back by the providers.
package knowledge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/braincargo/brainblog/internal/httpclient"
)

// GatherFiles lists the regular files directly under dir, sorted by name.
func GatherFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%q is not a readable directory: %w", dir, err)
	}
	var files []string
	for _, e := range entries {
		if e.Type().IsRegular() {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

var mimeTypes = map[string]string{
	".txt":  "text/plain",
	".md":   "text/markdown",
	".pdf":  "application/pdf",
	".json": "application/json",
	".csv":  "text/csv",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
}

// MimeType maps a file extension to the type sent with the upload. Unknown
// extensions are sent as plain text.
func MimeType(path string) string {
	if t, ok := mimeTypes[strings.ToLower(filepath.Ext(path))]; ok {
		return t
	}
	return "text/plain"
}

type apiClient struct {
	vendor  string
	baseURL string
	headers map[string]string
	http    *http.Client
}

func newAPIClient(vendor, baseURL string, headers map[string]string) apiClient {
	return apiClient{
		vendor:  vendor,
		baseURL: strings.TrimRight(baseURL, "/"),
		headers: headers,
		http:    httpclient.New(httpclient.WithTimeout(2 * time.Minute)),
	}
}

func (c apiClient) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	contentType := ""
	if body != nil {
		contentType = "application/json"
	}
	return c.do(ctx, method, path, contentType, reader, out)
}

// upload posts path as the multipart field "file" plus extra form fields.
func (c apiClient) upload(ctx context.Context, path, mimeType string, fields map[string]string, endpoint string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return err
		}
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filepath.Base(path)))
	h.Set("Content-Type", mimeType)
	part, err := w.CreatePart(h)
	if err != nil {
		return err
	}
	if _, err := part.Write(data); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}

	return c.do(ctx, http.MethodPost, endpoint, w.FormDataContentType(), &buf, out)
}

func (c apiClient) do(ctx context.Context, method, path, contentType string, body io.Reader, out any) error {
	ctx = httpclient.WithOperation(httpclient.WithProvider(ctx, c.vendor), "knowledge")
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("%s API error (status %d): %s", c.vendor, resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", c.vendor, err)
	}
	return nil
}
