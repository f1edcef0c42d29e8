package distance

import (
	"errors"
	"net/http"
	"strings"
	"time"
)

const orsBaseURL = "https://api.openrouteservice.org"

// ORSClient talks to OpenRouteService. It implements ports.RoutingClient
// (matrix endpoint, one pair per call) and ports.Geocoder (/geocode/search).
//
// The client is safe for concurrent use.
type ORSClient struct {
	session      *http.Client
	apiKey       string
	baseURL      string
	profile      string
	country      string
	maxAttempts  int
	retryBackoff time.Duration
}

type ORSOption func(*ORSClient)

// WithORSBaseURL points the client at another ORS deployment (or a test server).
func WithORSBaseURL(u string) ORSOption {
	return func(o *ORSClient) { o.baseURL = strings.TrimRight(u, "/") }
}

func WithORSProfile(p string) ORSOption {
	return func(o *ORSClient) {
		if p != "" {
			o.profile = p
		}
	}
}

// WithORSCountry restricts geocoding to an ISO country code.
func WithORSCountry(c string) ORSOption {
	return func(o *ORSClient) { o.country = c }
}

func WithORSHTTPClient(c *http.Client) ORSOption {
	return func(o *ORSClient) { o.session = c }
}

// WithORSRetry tunes geocoding retries.
func WithORSRetry(attempts int, backoff time.Duration) ORSOption {
	return func(o *ORSClient) {
		if attempts > 0 {
			o.maxAttempts = attempts
		}
		if backoff > 0 {
			o.retryBackoff = backoff
		}
	}
}

func NewORSClient(apiKey string, opts ...ORSOption) (*ORSClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("ORS api key is empty")
	}

	o := &ORSClient{
		session:      &http.Client{Timeout: 15 * time.Second},
		apiKey:       apiKey,
		baseURL:      orsBaseURL,
		profile:      "driving-car",
		maxAttempts:  4,
		retryBackoff: 200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(o)
	}

	return o, nil
}

// normalize ensures consistent lookups by collapsing whitespace.
func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
