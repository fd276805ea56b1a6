// Package geocode wraps the Google Geocoding API behind a small client
// interface used by the address resolution strategy.
package geocode

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/atlasfleet/dispatch-cli/internal/resilience"
)

const defaultBaseURL = "https://maps.googleapis.com/maps/api/geocode/json"

// Quality is the precision taxonomy for a geocoding match, from most to
// least precise.
const (
	QualityRooftop     = "rooftop"
	QualityRange       = "range"
	QualityCentroid    = "centroid"
	QualityApproximate = "approximate"
)

// Result is a single geocoding candidate.
type Result struct {
	Latitude         float64
	Longitude        float64
	FormattedAddress string
	Quality          string
	PartialMatch     bool
	Matched          bool
}

// Client performs forward geocoding of free-text addresses.
type Client interface {
	Geocode(ctx context.Context, address string) (*Result, error)
}

// Option configures the client.
type Option func(*googleClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(u string) Option {
	return func(c *googleClient) {
		c.baseURL = u
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *googleClient) {
		c.http = hc
	}
}

// WithRateLimit sets the request rate in calls per second.
func WithRateLimit(perSecond float64) Option {
	return func(c *googleClient) {
		if perSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}

// WithTimeout sets the per-request timeout on the default http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *googleClient) {
		c.http.Timeout = d
	}
}

type googleClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	retry   resilience.RetryConfig
}

// NewClient creates a Google Geocoding API client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &googleClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Limit(10), 1),
		retry:   resilience.DefaultRetryConfig(),
	}
	for _, o := range opts {
		o(c)
	}
	c.retry.OnRetry = resilience.RetryLogger("geocode", "geocode")
	return c
}

// googleResponse is the JSON response from the Google Geocoding API.
type googleResponse struct {
	Results []googleResult `json:"results"`
	Status  string         `json:"status"`
}

type googleResult struct {
	Geometry struct {
		Location struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		} `json:"location"`
		LocationType string `json:"location_type"`
	} `json:"geometry"`
	FormattedAddress string   `json:"formatted_address"`
	PartialMatch     bool     `json:"partial_match"`
	Types            []string `json:"types"`
}

// Geocode resolves a free-text address to the top candidate. An address the
// API cannot place returns Result{Matched: false}, not an error; errors are
// reserved for transport and API faults.
func (g *googleClient) Geocode(ctx context.Context, address string) (*Result, error) {
	if g.apiKey == "" {
		return nil, eris.New("geocode: api key not configured")
	}
	if strings.TrimSpace(address) == "" {
		return &Result{Matched: false}, nil
	}

	if err := g.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "geocode: rate limit")
	}

	return resilience.DoVal(ctx, g.retry, func(ctx context.Context) (*Result, error) {
		return g.geocodeOnce(ctx, address)
	})
}

func (g *googleClient) geocodeOnce(ctx context.Context, address string) (*Result, error) {
	params := url.Values{
		"address": {address},
		"key":     {g.apiKey},
	}

	reqURL := g.baseURL + "?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: build request")
	}

	resp, err := g.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resilience.IsTransientHTTPStatus(resp.StatusCode) {
		return nil, resilience.NewTransientError(
			eris.Errorf("geocode: status %d", resp.StatusCode), resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("geocode: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "geocode: read body")
	}

	var gr googleResponse
	if err := json.Unmarshal(body, &gr); err != nil {
		return nil, eris.Wrap(err, "geocode: parse response")
	}

	switch gr.Status {
	case "OK":
	case "ZERO_RESULTS":
		return &Result{Matched: false}, nil
	case "OVER_QUERY_LIMIT", "UNKNOWN_ERROR":
		return nil, resilience.NewTransientError(eris.Errorf("geocode: api status %s", gr.Status), 0)
	default:
		return nil, eris.Errorf("geocode: api status %s", gr.Status)
	}

	if len(gr.Results) == 0 {
		return &Result{Matched: false}, nil
	}

	top := gr.Results[0]
	return &Result{
		Latitude:         top.Geometry.Location.Lat,
		Longitude:        top.Geometry.Location.Lng,
		FormattedAddress: top.FormattedAddress,
		Quality:          locationTypeToQuality(top.Geometry.LocationType),
		PartialMatch:     top.PartialMatch,
		Matched:          true,
	}, nil
}

// locationTypeToQuality maps Google's location_type to our quality taxonomy.
func locationTypeToQuality(locType string) string {
	switch strings.ToUpper(locType) {
	case "ROOFTOP":
		return QualityRooftop
	case "RANGE_INTERPOLATED":
		return QualityRange
	case "GEOMETRIC_CENTER":
		return QualityCentroid
	case "APPROXIMATE":
		return QualityApproximate
	default:
		return QualityApproximate
	}
}
