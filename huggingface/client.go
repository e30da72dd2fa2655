// client.go - HuggingFace Hub Client
// Stellt einen HTTP-Client fuer Modell-Metadaten und Datei-Downloads bereit.
package huggingface

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mneves75/z-image-go/envconfig"
)

// Konstanten fuer HuggingFace Hub API
const (
	DefaultHubURL        = "https://huggingface.co"
	DefaultClientTimeout = 30 * time.Minute
	DefaultRepo          = "Tongyi-MAI/Z-Image-Turbo"
	ClientUserAgent      = "z-image-go/1.0"
)

// Fehler-Definitionen
var (
	ErrModelNotFound   = errors.New("model not found")
	ErrUnauthorized    = errors.New("authentication failed")
	ErrRateLimited     = errors.New("rate limited")
	ErrNetworkError    = errors.New("network error")
	ErrInvalidModelID  = errors.New("invalid model id")
	ErrFileNotFound    = errors.New("file not found")
	ErrDownloadFailed  = errors.New("download failed")
	ErrInvalidResponse = errors.New("invalid server response")
)

// ModelInfo is the subset of /api/models/{repo} used for downloads.
type ModelInfo struct {
	ID           string    `json:"id"`
	SHA          string    `json:"sha"`
	LastModified time.Time `json:"lastModified"`
	Private      bool      `json:"private"`
	Gated        any       `json:"gated"` // false, "auto" oder "manual"
	Siblings     []Sibling `json:"siblings"`
}

// IsGated reports whether the repository requires accepting terms.
func (m *ModelInfo) IsGated() bool {
	switch v := m.Gated.(type) {
	case bool:
		return v
	case string:
		return v == "auto" || v == "manual"
	}
	return false
}

// Sibling is one file in a repository.
type Sibling struct {
	Filename string   `json:"rfilename"`
	Size     int64    `json:"size"`
	LFS      *LFSInfo `json:"lfs,omitempty"`
}

// LFSInfo holds the LFS pointer metadata of large files.
type LFSInfo struct {
	Size   int64  `json:"size"`
	SHA256 string `json:"sha256"`
}

// FileSize prefers the LFS size, which the API reports for large files.
func (s Sibling) FileSize() int64 {
	if s.LFS != nil && s.LFS.Size > 0 {
		return s.LFS.Size
	}
	return s.Size
}

// Client talks to the Hugging Face Hub.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	userAgent  string
}

// ClientOption konfiguriert den Client
type ClientOption func(*Client)

// WithToken setzt den HuggingFace API Token
func WithToken(token string) ClientOption {
	return func(c *Client) { c.token = token }
}

// WithBaseURL setzt eine Custom Base-URL
func WithBaseURL(u string) ClientOption {
	return func(c *Client) { c.baseURL = strings.TrimSuffix(u, "/") }
}

// WithHTTPClient setzt einen Custom HTTP Client
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = client }
}

// NewClient returns a client configured from HF_TOKEN and HF_ENDPOINT, then
// from options.
func NewClient(options ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultClientTimeout},
		baseURL:    DefaultHubURL,
		token:      envconfig.HFToken(),
		userAgent:  ClientUserAgent,
	}
	if endpoint := envconfig.HFEndpoint(); endpoint != "" {
		c.baseURL = strings.TrimSuffix(endpoint, "/")
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// BaseURL returns the hub endpoint.
func (c *Client) BaseURL() string { return c.baseURL }

// HasToken reports whether requests are authenticated.
func (c *Client) HasToken() bool { return c.token != "" }

// GetModelInfo fetches repository metadata at revision ("main" when empty).
func (c *Client) GetModelInfo(ctx context.Context, repo, revision string) (*ModelInfo, error) {
	if err := validateModelID(repo); err != nil {
		return nil, err
	}
	u := fmt.Sprintf("%s/api/models/%s", c.baseURL, repo)
	if revision != "" && revision != "main" {
		u += "/revision/" + url.PathEscape(revision)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetworkError, err)
	}
	c.setHeaders(req)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetworkError, err)
	}
	defer resp.Body.Close()
	if err := handleResponseError(resp); err != nil {
		return nil, err
	}

	var info ModelInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return &info, nil
}

func (c *Client) fileURL(repo, revision, filename string) string {
	parts := strings.Split(filename, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return fmt.Sprintf("%s/%s/resolve/%s/%s", c.baseURL, repo, url.PathEscape(revision), strings.Join(parts, "/"))
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("User-Agent", c.userAgent)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

func handleResponseError(resp *http.Response) error {
	switch resp.StatusCode {
	case http.StatusOK, http.StatusPartialContent:
		return nil
	case http.StatusNotFound:
		return ErrModelNotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrUnauthorized
	case http.StatusTooManyRequests:
		return ErrRateLimited
	}
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%w: status %d - %s", ErrInvalidResponse, resp.StatusCode, string(body))
	}
	return nil
}

func validateModelID(modelID string) error {
	if modelID == "" {
		return fmt.Errorf("%w: empty", ErrInvalidModelID)
	}
	parts := strings.Split(modelID, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return fmt.Errorf("%w: expected 'owner/model', got %q", ErrInvalidModelID, modelID)
	}
	return nil
}
