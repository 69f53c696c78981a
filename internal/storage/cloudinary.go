// Package storage implements the media asset store backing post uploads.
//
// Assets are uploaded to Cloudinary before a post is composed or scheduled,
// and deleted exactly once after the fan-out run completes (success or not).
// The publishing pipeline only ever sees the resulting public HTTPS URL and
// the opaque public ID used for cleanup.
package storage

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/growhub/instabulk/internal/domain"
)

// DefaultBaseURL is the production Cloudinary upload API endpoint.
const DefaultBaseURL = "https://api.cloudinary.com/v1_1"

// Asset describes one uploaded media object.
type Asset struct {
	// URL is the public HTTPS delivery URL.
	URL string
	// PublicID is the opaque storage handle used for deletion.
	PublicID string
	// Kind is the media kind the store detected (image or video).
	Kind domain.MediaKind
}

// UploadError indicates the asset never reached public storage. Posts are
// neither published nor scheduled when upload fails; the error is surfaced
// to the caller and never retried by the pipeline.
type UploadError struct {
	Cause error
}

// Error implements the error interface.
func (e *UploadError) Error() string { return fmt.Sprintf("media upload failed: %v", e.Cause) }

// Unwrap exposes the underlying cause for errors.Is/As.
func (e *UploadError) Unwrap() error { return e.Cause }

// Store is the interface the services consume; satisfied by *Cloudinary.
type Store interface {
	// Upload stores the media and returns its public asset descriptor.
	Upload(ctx context.Context, r io.Reader, filename string) (*Asset, error)
	// Destroy removes a previously uploaded asset. Best-effort: callers log
	// failures instead of propagating them.
	Destroy(ctx context.Context, publicID string, kind domain.MediaKind) error
}

// Cloudinary is a thin signed-request client for the Cloudinary REST API.
type Cloudinary struct {
	BaseURL    string
	CloudName  string
	APIKey     string
	APISecret  string
	HTTPClient *http.Client

	// now is an injectable clock used for request timestamps.
	now func() time.Time
}

// NewCloudinary constructs a client for the given cloud credentials.
// baseURL "" selects the production endpoint.
func NewCloudinary(baseURL, cloudName, apiKey, apiSecret string, timeout time.Duration) *Cloudinary {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Cloudinary{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		CloudName:  cloudName,
		APIKey:     apiKey,
		APISecret:  apiSecret,
		HTTPClient: &http.Client{Timeout: timeout},
		now:        time.Now,
	}
}

// sign computes the Cloudinary request signature: the sorted query-style
// concatenation of all signed params followed by the API secret, SHA-1 hex.
func (c *Cloudinary) sign(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+params[k])
	}
	sum := sha1.Sum([]byte(strings.Join(parts, "&") + c.APISecret))
	return hex.EncodeToString(sum[:])
}

// Upload stores the media under auto-detected resource type and returns the
// asset descriptor. Any transport or API failure is wrapped in *UploadError.
func (c *Cloudinary) Upload(ctx context.Context, r io.Reader, filename string) (*Asset, error) {
	ts := strconv.FormatInt(c.now().UTC().Unix(), 10)
	signed := map[string]string{"timestamp": ts}

	var body strings.Builder
	w := multipart.NewWriter(&body)
	fields := map[string]string{
		"api_key":   c.APIKey,
		"timestamp": ts,
		"signature": c.sign(signed),
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, &UploadError{Cause: err}
		}
	}
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return nil, &UploadError{Cause: err}
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, &UploadError{Cause: err}
	}
	if err := w.Close(); err != nil {
		return nil, &UploadError{Cause: err}
	}

	endpoint := fmt.Sprintf("%s/%s/auto/upload", c.BaseURL, c.CloudName)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(body.String()))
	if err != nil {
		return nil, &UploadError{Cause: err}
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, &UploadError{Cause: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &UploadError{Cause: err}
	}
	if resp.StatusCode >= 400 {
		return nil, &UploadError{Cause: fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))}
	}

	var out struct {
		SecureURL    string `json:"secure_url"`
		PublicID     string `json:"public_id"`
		ResourceType string `json:"resource_type"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, &UploadError{Cause: err}
	}
	if out.SecureURL == "" || out.PublicID == "" {
		return nil, &UploadError{Cause: fmt.Errorf("response missing secure_url/public_id")}
	}

	kind := domain.MediaKind(out.ResourceType)
	if !kind.Valid() {
		return nil, &UploadError{Cause: fmt.Errorf("unsupported resource type %q", out.ResourceType)}
	}
	return &Asset{URL: out.SecureURL, PublicID: out.PublicID, Kind: kind}, nil
}

// Destroy removes the asset identified by publicID. The caller decides what
// to do with an error; the pipeline logs it as a warning and moves on.
func (c *Cloudinary) Destroy(ctx context.Context, publicID string, kind domain.MediaKind) error {
	ts := strconv.FormatInt(c.now().UTC().Unix(), 10)
	signed := map[string]string{"public_id": publicID, "timestamp": ts}

	form := url.Values{
		"public_id": {publicID},
		"api_key":   {c.APIKey},
		"timestamp": {ts},
		"signature": {c.sign(signed)},
	}
	endpoint := fmt.Sprintf("%s/%s/%s/destroy", c.BaseURL, c.CloudName, string(kind))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode >= 400 {
		return fmt.Errorf("cloudinary destroy: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	var out struct {
		Result string `json:"result"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return err
	}
	if out.Result != "ok" && out.Result != "not found" {
		return fmt.Errorf("cloudinary destroy: result %q", out.Result)
	}
	return nil
}
