/**
 * @description
 * This package provides a client for the Google Gemini generateContent API.
 * It encapsulates the logic for making authenticated HTTP requests, building
 * the systemInstruction + contents payload, and parsing responses.
 *
 * @dependencies
 * - bytes, context, encoding/json, fmt, net/http, time: Standard Go libraries.
 */
package geminiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// DefaultModel is the model used when the caller does not pick one.
const DefaultModel = "gemini-1.5-flash"

// Client is a client for the Gemini API.
type Client struct {
	BaseURL    string
	APIKey     string
	Model      string
	HTTPClient *http.Client
}

// NewClient creates a new Gemini API client.
func NewClient(apiKey string) *Client {
	return &Client{
		BaseURL: defaultBaseURL,
		APIKey:  apiKey,
		Model:   DefaultModel,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Part is a single content fragment.
type Part struct {
	Text string `json:"text"`
}

// Content is one conversation turn. Role is "user" or "model".
type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

// GenerateRequest is the payload for generateContent.
type GenerateRequest struct {
	SystemInstruction *Content  `json:"systemInstruction,omitempty"`
	Contents          []Content `json:"contents"`
}

// GenerateResponse is the subset of the generateContent response we use.
type GenerateResponse struct {
	Candidates []struct {
		Content      Content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
}

// APIError carries the upstream status so callers can map 400/403/429 to
// specific messages.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gemini api error: status %d: %s", e.StatusCode, e.Message)
}

// Generate sends a conversation to the model and returns the first candidate's
// text. An overrideKey, when non-empty, replaces the client's configured key
// for this call (own-keys bypass).
func (c *Client) Generate(ctx context.Context, systemPrompt string, history []Content, overrideKey string) (string, error) {
	apiKey := c.APIKey
	if overrideKey != "" {
		apiKey = overrideKey
	}
	if apiKey == "" {
		return "", fmt.Errorf("gemini api key is not configured")
	}

	payload := GenerateRequest{Contents: history}
	if systemPrompt != "" {
		payload.SystemInstruction = &Content{Parts: []Part{{Text: systemPrompt}}}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal generate request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.BaseURL, c.Model)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(body))
	if err != nil {
		return "", fmt.Errorf("failed to create generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", apiKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to execute generate request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read generate response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		_ = json.Unmarshal(bodyBytes, &errResp)
		return "", &APIError{StatusCode: resp.StatusCode, Message: errResp.Error.Message}
	}

	var successResp GenerateResponse
	if err := json.Unmarshal(bodyBytes, &successResp); err != nil {
		return "", fmt.Errorf("failed to decode generate response: %w", err)
	}
	if len(successResp.Candidates) == 0 || len(successResp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini returned no candidates")
	}
	return successResp.Candidates[0].Content.Parts[0].Text, nil
}
