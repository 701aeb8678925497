// Package geo resolves the caller's approximate position from an external
// geolocation endpoint and measures distances between coordinates.
package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

var ErrNotConfigured = errors.New("location service not configured")

type Point struct {
	Lat  float64
	Long float64
}

// Locator returns the current position.
type Locator interface {
	Locate(ctx context.Context) (Point, error)
}

// Client calls a LOCATION_URI style endpoint that answers GET with
// {"lat": <number>, "lon": <number>}.
type Client struct {
	url  string
	http *http.Client
}

func NewClient(url string) *Client {
	return &Client{
		url: strings.TrimSpace(url),
		http: &http.Client{
			Timeout:   5 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

func (c *Client) Locate(ctx context.Context) (Point, error) {
	if c.url == "" {
		return Point{}, ErrNotConfigured
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return Point{}, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return Point{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Point{}, fmt.Errorf("location service returned %d", resp.StatusCode)
	}

	var body struct {
		Lat *float64 `json:"lat"`
		Lon *float64 `json:"lon"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Point{}, fmt.Errorf("decode location: %w", err)
	}
	if body.Lat == nil || body.Lon == nil {
		return Point{}, errors.New("location response missing lat or lon")
	}
	return Point{Lat: *body.Lat, Long: *body.Lon}, nil
}

// Distance is the planar distance between a and b in degrees. It is only
// used to rank nearby candidates, so no earth-curvature correction is made.
func Distance(a, b Point) float64 {
	return math.Hypot(a.Lat-b.Lat, a.Long-b.Long)
}
