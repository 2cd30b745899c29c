package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Geocoder resolves a postal code to coordinates.
type Geocoder interface {
	Lookup(ctx context.Context, postalCode string) (lat, lng float64, err error)
}

// Client queries a geocoding HTTP endpoint. Lookup failures are expected to
// be non-fatal for callers; an installation saves fine without coordinates.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		HTTP:    &http.Client{Timeout: 5 * time.Second},
	}
}

func (c *Client) Lookup(ctx context.Context, postalCode string) (float64, float64, error) {
	u := fmt.Sprintf("%s/geocode?postal_code=%s", c.BaseURL, url.QueryEscape(postalCode))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, 0, err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return 0, 0, fmt.Errorf("geocode request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, 0, fmt.Errorf("unexpected geocode status %d", resp.StatusCode)
	}
	var body struct {
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, 0, fmt.Errorf("decoding geocode response: %v", err)
	}
	return body.Latitude, body.Longitude, nil
}
