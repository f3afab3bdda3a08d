/**
 * @description
 * This package provides a client for the Tavus video generation API.
 * Video generation is asynchronous: creation returns a job id, and the job is
 * observed via the status endpoint until it reaches a terminal state.
 */
package tavusclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultBaseURL = "https://tavusapi.com/v2"

// DefaultReplicaID selects the avatar used when the caller does not pick one.
const DefaultReplicaID = "r79e1c033f"

// Job statuses reported by Tavus.
const (
	JobQueued     = "queued"
	JobGenerating = "generating"
	JobReady      = "ready"
	JobError      = "error"
	JobDeleted    = "deleted"
)

// Client is a client for the Tavus API.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// NewClient creates a new Tavus API client.
func NewClient(apiKey string) *Client {
	return &Client{
		BaseURL: defaultBaseURL,
		APIKey:  apiKey,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type createVideoRequest struct {
	ReplicaID string `json:"replica_id"`
	Script    string `json:"script"`
	VideoName string `json:"video_name,omitempty"`
}

// Video is a video generation job as reported by Tavus.
type Video struct {
	VideoID     string `json:"video_id"`
	Status      string `json:"status"`
	DownloadURL string `json:"download_url"`
	HostedURL   string `json:"hosted_url"`
}

// APIError carries the upstream status from a failed Tavus call.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("tavus api error: status %d: %s", e.StatusCode, e.Message)
}

// CreateVideo submits a generation job and returns it in its initial state.
func (c *Client) CreateVideo(ctx context.Context, script, replicaID, overrideKey string) (*Video, error) {
	if replicaID == "" {
		replicaID = DefaultReplicaID
	}
	payload := createVideoRequest{ReplicaID: replicaID, Script: script}
	var out Video
	if err := c.do(ctx, "POST", "/videos", payload, overrideKey, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetVideo fetches the current state of a generation job.
func (c *Client) GetVideo(ctx context.Context, videoID, overrideKey string) (*Video, error) {
	var out Video
	if err := c.do(ctx, "GET", "/videos/"+videoID, nil, overrideKey, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload any, overrideKey string, out any) error {
	apiKey := c.APIKey
	if overrideKey != "" {
		apiKey = overrideKey
	}
	if apiKey == "" {
		return fmt.Errorf("tavus api key is not configured")
	}

	var reqBody io.Reader
	if payload != nil {
		body, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal tavus request: %w", err)
		}
		reqBody = bytes.NewBuffer(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create tavus request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", apiKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute tavus request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read tavus response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(bodyBytes, &errResp)
		return &APIError{StatusCode: resp.StatusCode, Message: errResp.Message}
	}

	if err := json.Unmarshal(bodyBytes, out); err != nil {
		return fmt.Errorf("failed to decode tavus response: %w", err)
	}
	return nil
}
