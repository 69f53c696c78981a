// Package graph implements the client for the external content-publishing
// API (Facebook Graph API, Instagram content publishing endpoints).
//
// Publishing is asynchronous on the platform side: a media "container" is
// created per destination account, processed remotely (transcoding for
// video), and only then published. This client exposes exactly the four
// calls the pipeline needs:
//
//   - Accounts:         resolve the caller's linked pages into publishable
//     business-account IDs and display names.
//   - CreateContainer:  create a media container carrying caption + media URL.
//   - ContainerStatus:  query the container's processing state.
//   - PublishContainer: publish a ready container, returning the post ID.
//
// All methods are context-aware and safe for concurrent use. Errors carry
// the platform's structured error payload (see errors.go); policy decisions
// such as polling cadence and retry belong to the publisher service, not
// this client.
package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/growhub/instabulk/internal/domain"
)

// DefaultBaseURL is the production Graph API endpoint (pinned API version).
const DefaultBaseURL = "https://graph.facebook.com/v21.0"

// ContainerState is the abstracted processing state of a media container.
type ContainerState string

const (
	// StateProcessing means the container is still being processed remotely.
	StateProcessing ContainerState = "processing"
	// StateReady means the container finished processing and can be published.
	StateReady ContainerState = "ready"
	// StateError means processing failed terminally on the platform side.
	StateError ContainerState = "error"
)

// Client is a thin HTTP adapter for the Graph API.
type Client struct {
	BaseURL     string
	AccessToken string
	HTTPClient  *http.Client
}

// NewClient constructs a Client for baseURL ("" selects DefaultBaseURL)
// authenticated by accessToken. The timeout bounds each individual HTTP
// call, not a whole publish protocol run.
func NewClient(baseURL, accessToken string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		BaseURL:     strings.TrimRight(baseURL, "/"),
		AccessToken: accessToken,
		HTTPClient:  &http.Client{Timeout: timeout},
	}
}

type errorEnvelope struct {
	Error *APIError `json:"error"`
}

// do issues one Graph call and decodes the JSON body into out. Platform
// errors (the {"error": {...}} envelope) are returned as *APIError.
func (c *Client) do(ctx context.Context, method, path string, params url.Values, out any) error {
	if params == nil {
		params = url.Values{}
	}
	if params.Get("access_token") == "" {
		params.Set("access_token", c.AccessToken)
	}

	u := c.BaseURL + path + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}

	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err == nil && env.Error != nil {
		return env.Error
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("graph api: unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(body, out)
}

// Accounts resolves the token's pages into publishable business accounts,
// returned as a map of account ID to display name. Pages without a linked
// business account are skipped. An empty result is not an error.
func (c *Client) Accounts(ctx context.Context) (map[string]string, error) {
	var pages struct {
		Data []struct {
			ID          string `json:"id"`
			Name        string `json:"name"`
			AccessToken string `json:"access_token"`
		} `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/me/accounts", nil, &pages); err != nil {
		return nil, err
	}

	accounts := make(map[string]string, len(pages.Data))
	for _, page := range pages.Data {
		params := url.Values{"fields": {"instagram_business_account"}}
		if page.AccessToken != "" {
			params.Set("access_token", page.AccessToken)
		}
		var detail struct {
			BusinessAccount struct {
				ID string `json:"id"`
			} `json:"instagram_business_account"`
		}
		if err := c.do(ctx, http.MethodGet, "/"+page.ID, params, &detail); err != nil {
			// One broken page link should not hide the rest of the accounts.
			continue
		}
		if detail.BusinessAccount.ID != "" {
			accounts[detail.BusinessAccount.ID] = page.Name
		}
	}
	return accounts, nil
}

// CreateContainer creates a media container on accountID carrying the
// caption and media reference. Video media is published as a reel; image
// media as a plain image. A response without a container ID yields a
// *CreationError.
func (c *Client) CreateContainer(ctx context.Context, accountID, caption, mediaURL string, kind domain.MediaKind) (string, error) {
	params := url.Values{"caption": {caption}}
	if kind == domain.MediaVideo {
		params.Set("media_type", "REELS")
		params.Set("video_url", mediaURL)
	} else {
		params.Set("media_type", "IMAGE")
		params.Set("image_url", mediaURL)
	}

	var resp struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/"+accountID+"/media", params, &resp); err != nil {
		return "", &CreationError{AccountID: accountID, Cause: err}
	}
	if resp.ID == "" {
		return "", &CreationError{AccountID: accountID, Cause: fmt.Errorf("response carried no container id")}
	}
	return resp.ID, nil
}

// ContainerStatus returns the abstracted processing state of containerID.
// Platform status codes FINISHED and READY map to StateReady, IN_PROGRESS
// to StateProcessing, and everything else (ERROR, EXPIRED, unknown) to
// StateError.
func (c *Client) ContainerStatus(ctx context.Context, containerID string) (ContainerState, error) {
	var resp struct {
		StatusCode string `json:"status_code"`
	}
	params := url.Values{"fields": {"status_code"}}
	if err := c.do(ctx, http.MethodGet, "/"+containerID, params, &resp); err != nil {
		return StateError, err
	}
	switch resp.StatusCode {
	case "FINISHED", "READY":
		return StateReady, nil
	case "IN_PROGRESS":
		return StateProcessing, nil
	default:
		return StateError, nil
	}
}

// PublishContainer publishes a ready container on accountID and returns the
// external post identifier. Failures are wrapped in *PublishError; callers
// use IsNotReady to detect the single retryable sub-case.
func (c *Client) PublishContainer(ctx context.Context, accountID, containerID string) (string, error) {
	params := url.Values{"creation_id": {containerID}}
	var resp struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/"+accountID+"/media_publish", params, &resp); err != nil {
		return "", &PublishError{AccountID: accountID, Cause: err}
	}
	if resp.ID == "" {
		return "", &PublishError{AccountID: accountID, Cause: fmt.Errorf("response carried no post id")}
	}
	return resp.ID, nil
}
