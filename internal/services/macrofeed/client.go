package macrofeed

import (
	"context"
	"fmt"
	"time"

	"FinCast/internal/domain/models"
	pkgcache "FinCast/pkg/cache"
	xhttp "FinCast/pkg/http"
)

// Client fetches optional macro-economic and sentiment bundles from an
// external feed. Both calls degrade to nil on failure so a feed outage never
// blocks prediction; absent bundles are a no-op downstream. Bundles move
// slowly, so an optional layered cache keeps feed traffic low.
type Client struct {
	baseURL  string
	client   *xhttp.Client
	cache    pkgcache.Service
	cacheTTL time.Duration
}

// New builds a feed client. Timeout defaults to 3s when unset.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		client:  xhttp.NewClient(xhttp.WithTimeout(timeout)),
	}
}

// WithCache attaches a bundle cache with the given TTL.
func (c *Client) WithCache(cache pkgcache.Service, ttl time.Duration) *Client {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	c.cache = cache
	c.cacheTTL = ttl
	return c
}

// Macro fetches the macro bundle for a symbol, nil when the feed is
// unavailable or unconfigured.
func (c *Client) Macro(ctx context.Context, symbol string) (*models.MacroFeatures, error) {
	if c == nil || c.baseURL == "" {
		return nil, nil
	}
	var out models.MacroFeatures
	key := pkgcache.GenerateKey("macro", symbol)
	if c.cache != nil {
		if err := c.cache.Get(ctx, key, &out); err == nil {
			return &out, nil
		}
	}
	if err := c.getJSON(ctx, "/v1/macro", symbol, &out); err != nil {
		return nil, err
	}
	if c.cache != nil {
		_ = c.cache.Set(ctx, key, &out, c.cacheTTL)
	}
	return &out, nil
}

// Sentiment fetches the sentiment bundle for a symbol, nil when the feed is
// unavailable or unconfigured.
func (c *Client) Sentiment(ctx context.Context, symbol string) (*models.SentimentFeatures, error) {
	if c == nil || c.baseURL == "" {
		return nil, nil
	}
	var out models.SentimentFeatures
	key := pkgcache.GenerateKey("sentiment", symbol)
	if c.cache != nil {
		if err := c.cache.Get(ctx, key, &out); err == nil {
			return &out, nil
		}
	}
	if err := c.getJSON(ctx, "/v1/sentiment", symbol, &out); err != nil {
		return nil, err
	}
	if c.cache != nil {
		_ = c.cache.Set(ctx, key, &out, c.cacheTTL)
	}
	return &out, nil
}

func (c *Client) getJSON(ctx context.Context, path, symbol string, dest interface{}) error {
	err := c.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    c.baseURL + path,
		QueryParams: map[string][]string{
			"symbol": {symbol},
		},
	}, dest)
	if err != nil {
		return fmt.Errorf("get %s: %w", path, err)
	}
	return nil
}
