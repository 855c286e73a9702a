// Package publish pushes finished bundles to an artifact registry so
// testers fetch builds from a URL instead of a shared drive.
package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// Response wraps http.Response and caches the body so it can be read
// more than once.
type Response struct {
	*http.Response
	StatusCode int
	body       []byte
	bodyRead   bool
}

// GetBody returns the raw response body as bytes.
func (r *Response) GetBody() []byte {
	if r.bodyRead {
		return r.body
	}

	defer r.Body.Close()
	bodyBytes, err := io.ReadAll(r.Body)
	if err != nil {
		return []byte(fmt.Sprintf("error reading response body: %v", err))
	}

	r.body = bodyBytes
	r.bodyRead = true
	r.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))

	return bodyBytes
}

// DecodeJSON decodes the response body into the provided value.
func (r *Response) DecodeJSON(v interface{}) error {
	if err := json.Unmarshal(r.GetBody(), v); err != nil {
		return fmt.Errorf("error unmarshaling JSON: %w", err)
	}
	return nil
}

// Client talks to one registry endpoint.
type Client struct {
	client *http.Client
	url    string
	token  string
}

func NewClient(url, token string) *Client {
	return &Client{
		client: &http.Client{
			Timeout: 5 * time.Minute,
		},
		url:   url,
		token: token,
	}
}

// TokenFromEnv resolves the upload token from the environment variable
// the manifest names. The token itself never appears in the manifest.
func TokenFromEnv(envName string) (string, error) {
	if envName == "" {
		return "", fmt.Errorf("publish.token_env is not set in the manifest")
	}
	token := os.Getenv(envName)
	if token == "" {
		return "", fmt.Errorf("environment variable %s is empty, export the upload token first", envName)
	}
	return token, nil
}

// UploadResult is the registry's acknowledgement.
type UploadResult struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// UploadArtifact posts one file as a multipart form together with the
// project, version and sha256 fields the registry indexes on.
func (c *Client) UploadArtifact(ctx context.Context, project, version, path, sha256 string) (*UploadResult, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}

	var b bytes.Buffer
	w := multipart.NewWriter(&b)

	part, err := w.CreateFormFile("artifact", filepath.Base(path))
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(content); err != nil {
		return nil, fmt.Errorf("failed to write file content: %w", err)
	}

	fields := map[string]string{
		"project": project,
		"version": version,
		"sha256":  sha256,
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("failed to write form field: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.url, &b)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upload request failed: %w", err)
	}

	wrapped := &Response{Response: resp, StatusCode: resp.StatusCode}
	body := wrapped.GetBody()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("registry rejected %s: %s: %s",
			filepath.Base(path), resp.Status, truncate(string(body), 200))
	}

	result := &UploadResult{Name: filepath.Base(path)}
	if len(body) > 0 {
		if err := wrapped.DecodeJSON(result); err != nil {
			return nil, fmt.Errorf("registry answered with an unreadable body: %w", err)
		}
	}
	return result, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
