// internal/pricefeed/client.go
package pricefeed

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jason-s-yu/tokenrivals/internal/models"
	"github.com/sirupsen/logrus"
)

// DefaultCacheWindow is how long a successful fetch is served from cache.
const DefaultCacheWindow = time.Second

// Client resolves current quotes for a fixed token universe, caching the
// last successful batch for a short window.
type Client struct {
	provider Provider
	window   time.Duration
	now      func() time.Time
	logger   *logrus.Entry

	ids     []string                // feed ids requested upstream, 0x-prefixed
	byFeed  map[string]models.Token // normalised feed id -> token
	mu      sync.Mutex              // guards cache and fetched
	cache   map[string]models.Quote // normalised feed id -> latest quote
	fetched time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithCacheWindow overrides DefaultCacheWindow.
func WithCacheWindow(d time.Duration) Option {
	return func(c *Client) { c.window = d }
}

// WithClock injects the time source used for cache expiry.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// WithLogger sets the logger used for upstream failures.
func WithLogger(l *logrus.Entry) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient tracks the given tokens. A nil token list tracks DefaultTokens.
func NewClient(p Provider, tokens []models.Token, opts ...Option) *Client {
	if tokens == nil {
		tokens = DefaultTokens
	}
	c := &Client{
		provider: p,
		window:   DefaultCacheWindow,
		now:      time.Now,
		logger:   logrus.NewEntry(logrus.StandardLogger()),
		byFeed:   make(map[string]models.Token, len(tokens)),
		cache:    make(map[string]models.Quote, len(tokens)),
	}
	for _, t := range tokens {
		key := t.FeedKey()
		if _, dup := c.byFeed[key]; dup {
			continue
		}
		c.byFeed[key] = t
		c.ids = append(c.ids, "0x"+key)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchCurrentPrices returns the freshest quotes available. It never fails:
// when the upstream errors, whatever is cached (possibly nothing) is returned.
func (c *Client) FetchCurrentPrices(ctx context.Context) []models.Quote {
	c.mu.Lock()
	if len(c.cache) > 0 && c.now().Sub(c.fetched) < c.window {
		quotes := c.snapshotLocked()
		c.mu.Unlock()
		return quotes
	}
	c.mu.Unlock()

	updates, err := c.provider.LatestPriceUpdates(ctx, c.ids)
	if err != nil {
		c.logger.WithError(err).Warn("price fetch failed, serving cached quotes")
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.snapshotLocked()
	}

	now := c.now()
	fresh := make([]models.Quote, 0, len(updates))
	for _, u := range updates {
		key := models.NormalizeFeedID(u.ID)
		tok, ok := c.byFeed[key]
		if !ok {
			continue
		}
		price, err := u.Price.Float()
		if err != nil {
			c.logger.WithError(err).WithField("symbol", tok.Symbol).Debug("skipping unparseable price")
			continue
		}
		fresh = append(fresh, models.Quote{
			Symbol:      tok.Symbol,
			PriceFeedID: key,
			Price:       price,
			Timestamp:   now,
		})
	}

	c.mu.Lock()
	for _, q := range fresh {
		c.cache[q.PriceFeedID] = q
	}
	c.fetched = now
	c.mu.Unlock()

	sortQuotes(fresh)
	return fresh
}

// Cached returns the current cache contents without touching the upstream.
func (c *Client) Cached() []models.Quote {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Client) snapshotLocked() []models.Quote {
	out := make([]models.Quote, 0, len(c.cache))
	for _, q := range c.cache {
		out = append(out, q)
	}
	sortQuotes(out)
	return out
}

func sortQuotes(qs []models.Quote) {
	sort.Slice(qs, func(i, j int) bool { return qs[i].Symbol < qs[j].Symbol })
}
