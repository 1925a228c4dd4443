package geocode

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
)

// DefaultOpenCageURL is the public forward-geocoding endpoint.
const DefaultOpenCageURL = "https://api.opencagedata.com/geocode/v1/json"

// OpenCage is a Geocoder backed by the OpenCage JSON API.
// Each call is one synchronous request bounded by Timeout; there are no retries.
type OpenCage struct {
	BaseURL string
	Timeout time.Duration
	client  *http.Client
}

// NewOpenCage creates a client. An empty baseURL selects the public endpoint.
func NewOpenCage(baseURL string, timeout time.Duration) *OpenCage {
	if baseURL == "" {
		baseURL = DefaultOpenCageURL
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &OpenCage{
		BaseURL: baseURL,
		Timeout: timeout,
		client:  &http.Client{Timeout: timeout},
	}
}

type openCageResponse struct {
	Results []struct {
		Geometry *struct {
			Lat *float64 `json:"lat"`
			Lng *float64 `json:"lng"`
		} `json:"geometry"`
	} `json:"results"`
}

func (g *OpenCage) Geocode(ctx context.Context, apiKey, query string) (Point, error) {
	ctx, cancel := context.WithTimeout(ctx, g.Timeout)
	defer cancel()

	u, err := url.Parse(g.BaseURL)
	if err != nil {
		return Point{}, fmt.Errorf("parse base url: %w", err)
	}
	params := u.Query()
	params.Set("q", query)
	params.Set("key", apiKey)
	params.Set("limit", "1")
	params.Set("no_annotations", "1")
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Point{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return Point{}, fmt.Errorf("http request: %w", redactKey(err, apiKey))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Point{}, fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed openCageResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return Point{}, fmt.Errorf("parse json: %w", err)
	}
	if len(parsed.Results) == 0 {
		return Point{}, ErrNoMatch
	}
	geo := parsed.Results[0].Geometry
	if geo == nil || geo.Lat == nil || geo.Lng == nil {
		return Point{}, fmt.Errorf("malformed response: top result has no geometry")
	}
	return Point{Lat: *geo.Lat, Lng: *geo.Lng}, nil
}

// redactKey strips the credential from transport errors, which embed the URL.
func redactKey(err error, apiKey string) error {
	var uerr *url.Error
	if apiKey == "" || !errors.As(err, &uerr) {
		return err
	}
	return &url.Error{
		Op:  uerr.Op,
		URL: strings.ReplaceAll(uerr.URL, url.QueryEscape(apiKey), "REDACTED"),
		Err: uerr.Err,
	}
}
