/**
 * @description
 * This package provides a client for the RevenueCat subscriber API. It is used
 * for synchronous entitlement queries; webhook deliveries are handled
 * separately by the API layer.
 */
package revenuecatclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const defaultBaseURL = "https://api.revenuecat.com/v1"

// Client is a client for the RevenueCat API.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// NewClient creates a new RevenueCat API client.
func NewClient(apiKey string) *Client {
	return &Client{
		BaseURL: defaultBaseURL,
		APIKey:  apiKey,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Entitlement is a provider-reported grant of access to a named feature set.
type Entitlement struct {
	ProductIdentifier string     `json:"product_identifier"`
	ExpiresDate       *time.Time `json:"expires_date"`
}

// Subscriber is the subset of the subscriber resource we use.
type Subscriber struct {
	OriginalAppUserID string                 `json:"original_app_user_id"`
	Entitlements      map[string]Entitlement `json:"entitlements"`
}

type subscriberResponse struct {
	Subscriber Subscriber `json:"subscriber"`
}

// APIError carries the upstream status from a failed RevenueCat call.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("revenuecat api error: status %d: %s", e.StatusCode, e.Message)
}

// GetSubscriber fetches live entitlement data for an app user id.
func (c *Client) GetSubscriber(ctx context.Context, appUserID string) (*Subscriber, error) {
	if c.APIKey == "" {
		return nil, fmt.Errorf("revenuecat api key is not configured")
	}

	endpoint := c.BaseURL + "/subscribers/" + url.PathEscape(appUserID)
	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create subscriber request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute subscriber request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read subscriber response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(bodyBytes, &errResp)
		return nil, &APIError{StatusCode: resp.StatusCode, Message: errResp.Message}
	}

	var out subscriberResponse
	if err := json.Unmarshal(bodyBytes, &out); err != nil {
		return nil, fmt.Errorf("failed to decode subscriber response: %w", err)
	}
	return &out.Subscriber, nil
}
