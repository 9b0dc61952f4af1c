// internal/pricefeed/client_test.go
package pricefeed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/jason-s-yu/tokenrivals/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider returns canned updates and counts calls.
type fakeProvider struct {
	mu      sync.Mutex
	calls   int
	updates []PriceUpdate
	err     error
}

func (f *fakeProvider) LatestPriceUpdates(_ context.Context, _ []string) ([]PriceUpdate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.updates, f.err
}

func (f *fakeProvider) set(updates []PriceUpdate, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates, f.err = updates, err
}

// fakeClock is a manually advanced time source.
type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

var testTokens = []models.Token{
	{Symbol: "BTC", PriceFeedID: "0xaa"},
	{Symbol: "ETH", PriceFeedID: "bb"},
}

func TestFetchCurrentPricesCacheWindow(t *testing.T) {
	fp := &fakeProvider{updates: []PriceUpdate{
		{ID: "aa", Price: Price{Mantissa: "6000000000000", Expo: -8}},
		{ID: "0xbb", Price: Price{Mantissa: "300000", Expo: -2}},
	}}
	clk := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	c := NewClient(fp, testTokens, WithClock(clk.now))

	first := c.FetchCurrentPrices(context.Background())
	require.Len(t, first, 2)
	assert.Equal(t, "BTC", first[0].Symbol)
	assert.InDelta(t, 60000.0, first[0].Price, 1e-9)
	assert.Equal(t, "ETH", first[1].Symbol)
	assert.InDelta(t, 3000.0, first[1].Price, 1e-9)
	assert.Equal(t, "bb", first[1].PriceFeedID)

	clk.advance(500 * time.Millisecond)
	second := c.FetchCurrentPrices(context.Background())
	assert.Equal(t, 1, fp.calls, "within the window no upstream call is made")
	assert.Equal(t, first, second)

	clk.advance(600 * time.Millisecond)
	c.FetchCurrentPrices(context.Background())
	assert.Equal(t, 2, fp.calls, "after the window the upstream is queried again")
}

func TestFetchCurrentPricesFallsBackToCache(t *testing.T) {
	fp := &fakeProvider{updates: []PriceUpdate{{ID: "aa", Price: Price{Mantissa: "100", Expo: 0}}}}
	clk := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	c := NewClient(fp, testTokens, WithClock(clk.now))

	require.Len(t, c.FetchCurrentPrices(context.Background()), 1)

	fp.set(nil, errors.New("boom"))
	clk.advance(2 * time.Second)
	stale := c.FetchCurrentPrices(context.Background())
	require.Len(t, stale, 1)
	assert.Equal(t, 100.0, stale[0].Price)
}

func TestFetchCurrentPricesEmptyCacheOnFailure(t *testing.T) {
	fp := &fakeProvider{err: errors.New("down")}
	c := NewClient(fp, testTokens)
	assert.Empty(t, c.FetchCurrentPrices(context.Background()))
}

func TestFetchCurrentPricesReturnsOnlyFreshSet(t *testing.T) {
	fp := &fakeProvider{updates: []PriceUpdate{
		{ID: "aa", Price: Price{Mantissa: "1", Expo: 0}},
		{ID: "bb", Price: Price{Mantissa: "2", Expo: 0}},
	}}
	clk := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	c := NewClient(fp, testTokens, WithClock(clk.now))
	c.FetchCurrentPrices(context.Background())

	// Partial response: ETH missing, unknown feed ignored.
	fp.set([]PriceUpdate{
		{ID: "aa", Price: Price{Mantissa: "5", Expo: 0}},
		{ID: "cc", Price: Price{Mantissa: "9", Expo: 0}},
	}, nil)
	clk.advance(2 * time.Second)
	fresh := c.FetchCurrentPrices(context.Background())
	require.Len(t, fresh, 1)
	assert.Equal(t, 5.0, fresh[0].Price)

	// The cache still remembers ETH.
	assert.Len(t, c.Cached(), 2)
}

func TestHermesProviderDecodesParsedPrices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/updates/price/latest", r.URL.Path)
		assert.Equal(t, []string{"0xaa", "0xbb"}, r.URL.Query()["ids[]"])
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"binary":{"encoding":"hex","data":[]},"parsed":[
			{"id":"aa","price":{"price":"12345","conf":"1","expo":-2,"publish_time":1700000000}}
		]}`))
	}))
	defer srv.Close()

	h := NewHermesProvider(srv.URL + "/")
	ups, err := h.LatestPriceUpdates(context.Background(), []string{"0xaa", "0xbb"})
	require.NoError(t, err)
	require.Len(t, ups, 1)
	v, err := ups[0].Price.Float()
	require.NoError(t, err)
	assert.InDelta(t, 123.45, v, 1e-9)
	assert.Equal(t, int64(1700000000), ups[0].Price.PublishTime)
}

func TestHermesProviderStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewHermesProvider(srv.URL).LatestPriceUpdates(context.Background(), []string{"0xaa"})
	assert.ErrorIs(t, err, ErrUpstream)
}

func TestDefaultTokensHaveDistinctFeeds(t *testing.T) {
	c := NewClient(&fakeProvider{}, nil)
	assert.Len(t, c.ids, len(DefaultTokens))
	tok, ok := TokenBySymbol("SOL")
	require.True(t, ok)
	assert.Equal(t, "ef0d8b6fda2ceba41da15d4095d1da392a0d2f8ed0c6c7bc0f4cfac8c280b56d", tok.FeedKey())
}
