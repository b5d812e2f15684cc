package rates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// DefaultAPIURL is the exchangerate-api.com v6 endpoint.
const DefaultAPIURL = "https://v6.exchangerate-api.com/v6"

// Fetcher looks up the current rate for a pair from a remote source.
type Fetcher interface {
	Fetch(ctx context.Context, pair Pair) (float64, error)
}

// HTTPFetcher queries {baseURL}/{apiKey}/latest/{BASE} and reads
// conversion_rates[TARGET] from the response.
type HTTPFetcher struct {
	client  *http.Client
	baseURL string
	apiKey  string
}

var _ Fetcher = (*HTTPFetcher)(nil)

// ErrNotConfigured is returned by Disabled.
var ErrNotConfigured = errors.New("no exchange rate API key configured")

// Disabled is the fetcher used without an API key. Previously cached rates
// are still served by the provider.
type Disabled struct{}

func (Disabled) Fetch(context.Context, Pair) (float64, error) {
	return 0, ErrNotConfigured
}

// NewHTTPFetcher creates a fetcher. An empty baseURL uses DefaultAPIURL and a
// nil client gets a pooled client with the given timeout.
func NewHTTPFetcher(baseURL, apiKey string, client *http.Client, timeout time.Duration) *HTTPFetcher {
	if baseURL == "" {
		baseURL = DefaultAPIURL
	}
	if client == nil {
		client = newHTTPClient(timeout)
	}
	return &HTTPFetcher{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
	}
}

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	dialer := &net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	return &http.Client{
		Transport: &http.Transport{
			DialContext:           dialer.DialContext,
			MaxIdleConnsPerHost:   2,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   5 * time.Second,
			ResponseHeaderTimeout: timeout,
		},
		Timeout: timeout,
	}
}

type latestResponse struct {
	Result          string             `json:"result"`
	ErrorType       string             `json:"error-type"`
	ConversionRates map[string]float64 `json:"conversion_rates"`
}

func (f *HTTPFetcher) Fetch(ctx context.Context, pair Pair) (float64, error) {
	url := fmt.Sprintf("%s/%s/latest/%s", f.baseURL, f.apiKey, pair.Base)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request %s: %w", pair, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return 0, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var parsed latestResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return 0, fmt.Errorf("decode response: %w", err)
	}
	if parsed.Result == "error" {
		return 0, fmt.Errorf("api error: %s", parsed.ErrorType)
	}
	rate, ok := parsed.ConversionRates[string(pair.Target)]
	if !ok {
		return 0, errors.New("missing rate for " + string(pair.Target))
	}
	if rate <= 0 {
		return 0, fmt.Errorf("invalid rate %v for %s", rate, pair.Target)
	}
	return rate, nil
}
