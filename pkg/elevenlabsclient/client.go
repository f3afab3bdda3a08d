/**
 * @description
 * This package provides a client for the ElevenLabs text-to-speech API.
 * Synthesis is synchronous: the endpoint returns raw audio bytes in the
 * response body.
 */
package elevenlabsclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultBaseURL = "https://api.elevenlabs.io/v1"

// DefaultVoiceID is a calm narration voice used when the caller does not pick one.
const DefaultVoiceID = "21m00Tcm4TlvDq8ikWAM"

// Client is a client for the ElevenLabs API.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// NewClient creates a new ElevenLabs API client.
func NewClient(apiKey string) *Client {
	return &Client{
		BaseURL: defaultBaseURL,
		APIKey:  apiKey,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type synthesizeRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// APIError carries the upstream status from a failed synthesis call.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("elevenlabs api error: status %d: %s", e.StatusCode, e.Message)
}

// Synthesize converts text to speech and returns the audio bytes and their
// content type. An overrideKey, when non-empty, replaces the configured key.
func (c *Client) Synthesize(ctx context.Context, text, voiceID, overrideKey string) ([]byte, string, error) {
	apiKey := c.APIKey
	if overrideKey != "" {
		apiKey = overrideKey
	}
	if apiKey == "" {
		return nil, "", fmt.Errorf("elevenlabs api key is not configured")
	}
	if voiceID == "" {
		voiceID = DefaultVoiceID
	}

	payload := synthesizeRequest{
		Text:    text,
		ModelID: "eleven_monolingual_v1",
		VoiceSettings: voiceSettings{
			Stability:       0.5,
			SimilarityBoost: 0.75,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, "", fmt.Errorf("failed to marshal synthesize request: %w", err)
	}

	url := fmt.Sprintf("%s/text-to-speech/%s", c.BaseURL, voiceID)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(body))
	if err != nil {
		return nil, "", fmt.Errorf("failed to create synthesize request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("xi-api-key", apiKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to execute synthesize request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read synthesize response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp struct {
			Detail struct {
				Message string `json:"message"`
			} `json:"detail"`
		}
		_ = json.Unmarshal(bodyBytes, &errResp)
		return nil, "", &APIError{StatusCode: resp.StatusCode, Message: errResp.Detail.Message}
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "audio/mpeg"
	}
	return bodyBytes, contentType, nil
}
