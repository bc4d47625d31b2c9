package collect

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ppiankov/hazardlog/internal/cache"
	"github.com/ppiankov/hazardlog/internal/model"
)

// HTTPCollector downloads a JSON export of canonical records.
type HTTPCollector struct {
	name     string
	url      string
	provider string
	fetcher  *Fetcher
	cache    cache.Cache
	logger   *slog.Logger
}

// NewHTTPCollector creates an http collector using the shared deps.
func NewHTTPCollector(name, rawURL, provider string, deps Deps) *HTTPCollector {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPCollector{
		name:     name,
		url:      rawURL,
		provider: provider,
		fetcher:  NewFetcher(deps.HTTP, deps.Limiter, deps.Robots),
		cache:    deps.Cache,
		logger:   logger,
	}
}

func (c *HTTPCollector) Name() string {
	return c.name
}

// Collect returns the cached export when it is still fresh, otherwise
// downloads it. Only exports that decode are cached.
func (c *HTTPCollector) Collect(ctx context.Context) ([]model.Event, error) {
	key := cache.Key(c.name, c.url)
	if c.cache != nil {
		if body, ok := c.cache.Get(key); ok {
			c.logger.Debug("using cached export", "source", c.name)
			return DecodeBatch(body, c.provider)
		}
	}

	res, err := c.fetcher.FetchWithRetry(ctx, c.url)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.name, err)
	}
	events, err := DecodeBatch(res.Body, c.provider)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.name, err)
	}

	if c.cache != nil {
		if err := c.cache.Set(key, res.Body, 0); err != nil {
			c.logger.Warn("caching export failed", "source", c.name, "error", err)
		}
	}
	c.logger.Debug("downloaded export", "source", c.name, "url", res.FinalURL, "records", len(events))
	return events, nil
}
