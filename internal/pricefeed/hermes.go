// internal/pricefeed/hermes.go
package pricefeed

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

	"github.com/shopspring/decimal"
)

// DefaultHermesURL is the public Pyth Hermes endpoint.
const DefaultHermesURL = "https://hermes.pyth.network"

var ErrUpstream = errors.New("price feed upstream error")

// Price is a fixed point quote: the value is Mantissa * 10^Expo.
type Price struct {
	Mantissa    string `json:"price"`
	Expo        int32  `json:"expo"`
	PublishTime int64  `json:"publish_time"`
}

// Float converts the fixed point quote to a float.
func (p Price) Float() (float64, error) {
	m, err := decimal.NewFromString(p.Mantissa)
	if err != nil {
		return 0, fmt.Errorf("bad mantissa %q: %w", p.Mantissa, err)
	}
	return m.Shift(p.Expo).InexactFloat64(), nil
}

// PriceUpdate is one feed's latest price as reported by the provider.
// ID may or may not carry a 0x prefix.
type PriceUpdate struct {
	ID    string `json:"id"`
	Price Price  `json:"price"`
}

// Provider is the upstream quote source. Partial and empty responses are normal.
type Provider interface {
	LatestPriceUpdates(ctx context.Context, ids []string) ([]PriceUpdate, error)
}

// HermesProvider pulls the latest prices from a Pyth Hermes REST endpoint.
type HermesProvider struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewHermesProvider returns a provider for baseURL, or DefaultHermesURL when empty.
func NewHermesProvider(baseURL string) *HermesProvider {
	if baseURL == "" {
		baseURL = DefaultHermesURL
	}
	return &HermesProvider{
		BaseURL:    strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type hermesResponse struct {
	Parsed []PriceUpdate `json:"parsed"`
}

// LatestPriceUpdates issues a single batched request for all ids.
func (h *HermesProvider) LatestPriceUpdates(ctx context.Context, ids []string) ([]PriceUpdate, error) {
	q := url.Values{}
	for _, id := range ids {
		q.Add("ids[]", id)
	}
	q.Set("parsed", "true")
	endpoint := h.BaseURL + "/v2/updates/price/latest?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build hermes request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := h.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: status %d: %s", ErrUpstream, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out hermesResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrUpstream, err)
	}
	return out.Parsed, nil
}
