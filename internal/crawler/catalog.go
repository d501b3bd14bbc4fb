package crawler

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// CatalogCrawler discovers the site's top-level categories.
type CatalogCrawler struct {
	fetcher Fetcher
	extract CategoryExtractor
	logger  *zap.Logger
}

// NewCatalogCrawler builds a CatalogCrawler.
func NewCatalogCrawler(fetcher Fetcher, extract CategoryExtractor, logger *zap.Logger) *CatalogCrawler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogCrawler{fetcher: fetcher, extract: extract, logger: logger}
}

// Categories fetches the root page once and extracts its categories. An empty
// list is a valid result.
func (c *CatalogCrawler) Categories(ctx context.Context) ([]Category, error) {
	body, err := c.fetcher.Fetch(ctx, FetchRequest{})
	if err != nil {
		return nil, fmt.Errorf("fetch root page: %w", err)
	}
	categories, err := c.extract(body)
	if err != nil {
		return nil, fmt.Errorf("extract categories: %w", err)
	}
	c.logger.Debug("Discovered categories", zap.Int("count", len(categories)))
	return categories, nil
}
