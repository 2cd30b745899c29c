package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"solhome-backend/internal/models"
)

// ErrNotConnected marks the hub as unreachable or not ready. Callers must
// present this as a connectivity problem, never as "zero devices found".
var ErrNotConnected = errors.New("Home-automation hub not connected")

// Discoverer is the hub surface the wizard needs.
type Discoverer interface {
	Status(ctx context.Context) (bool, error)
	Entities(ctx context.Context, manufacturerHint string) ([]models.DiscoveredEntity, error)
}

// Client talks to the home-automation hub's REST API.
type Client struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

// NewClient builds a hub client with a bounded request timeout.
func NewClient(baseURL, token string) *Client {
	return &Client{
		BaseURL: baseURL,
		Token:   token,
		HTTP:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return nil, err
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	return c.HTTP.Do(req)
}

// Status reports whether the hub is reachable and ready. A network error is
// a disconnected hub, not a failure.
func (c *Client) Status(ctx context.Context) (bool, error) {
	resp, err := c.get(ctx, "/api/status")
	if err != nil {
		return false, nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false, nil
	}
	var body struct {
		Ready bool `json:"ready"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false, nil
	}
	return body.Ready, nil
}

// Entities fetches the hub's entity list. The optional manufacturer hint
// narrows the hub-side scan to one integration family.
func (c *Client) Entities(ctx context.Context, manufacturerHint string) ([]models.DiscoveredEntity, error) {
	path := "/api/entities"
	if manufacturerHint != "" {
		path += "?manufacturer=" + manufacturerHint
	}
	resp, err := c.get(ctx, path)
	if err != nil {
		return nil, ErrNotConnected
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading hub response: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode == http.StatusServiceUnavailable {
			return nil, ErrNotConnected
		}
		return nil, fmt.Errorf("unexpected hub status %d: %s", resp.StatusCode, string(body))
	}

	var entities []models.DiscoveredEntity
	if err := json.Unmarshal(body, &entities); err != nil {
		return nil, fmt.Errorf("decoding hub entities: %v", err)
	}
	return entities, nil
}
