package crawler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/catalog-crawler/internal/metrics"
)

// CategoryCrawler harvests every product of one category with one strategy.
type CategoryCrawler struct {
	category Category
	strategy Strategy
	fetcher  Fetcher
	logger   *zap.Logger
}

// NewCategoryCrawler wires a crawler for category using strategy and fetcher.
func NewCategoryCrawler(category Category, strategy Strategy, fetcher Fetcher, logger *zap.Logger) *CategoryCrawler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CategoryCrawler{
		category: category,
		strategy: strategy,
		fetcher:  fetcher,
		logger:   logger.With(zap.String("category", category.Path)),
	}
}

// Crawl fetches page 1 to learn the page count, fetches the remaining listing
// pages concurrently, enriches every product concurrently and returns the
// products ordered by page and then by position on the page. Any failure
// aborts the crawl and no products are returned.
func (c *CategoryCrawler) Crawl(ctx context.Context) ([]Product, error) {
	start := time.Now()
	products, err := c.crawl(ctx)
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.ObserveCategoryCrawl(c.category.Path, status, len(products), time.Since(start))
	return products, err
}

func (c *CategoryCrawler) crawl(ctx context.Context) ([]Product, error) {
	first, err := c.fetchListing(ctx, 1)
	if err != nil {
		return nil, err
	}
	total := max(first.TotalPages, 1)
	c.logger.Info("Parsed first listing page",
		zap.Int("total_pages", total),
		zap.Int("products", len(first.Products)),
	)

	pages := make([][]Product, total)
	pages[0] = first.Products
	if total > 1 {
		if err := c.fetchRemainingPages(ctx, pages); err != nil {
			return nil, err
		}
	}
	metrics.ObserveListingPages(c.category.Path, total)

	partial := make([]Product, 0, len(first.Products)*total)
	for _, page := range pages {
		partial = append(partial, page...)
	}

	enriched, err := c.enrich(ctx, partial)
	if err != nil {
		return nil, err
	}
	c.logger.Info("Category crawl finished", zap.Int("products", len(enriched)))
	return enriched, nil
}

// fetchRemainingPages fills pages[1:] concurrently. Each goroutine writes only
// its own slot, so no locking is needed.
func (c *CategoryCrawler) fetchRemainingPages(ctx context.Context, pages [][]Product) error {
	g, gctx := errgroup.WithContext(ctx)
	for page := 2; page <= len(pages); page++ {
		g.Go(func() error {
			listing, err := c.fetchListing(gctx, page)
			if err != nil {
				return err
			}
			pages[page-1] = listing.Products
			c.logger.Info("Parsed listing page",
				zap.Int("page", page),
				zap.Int("products", len(listing.Products)),
			)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return nil
}

func (c *CategoryCrawler) fetchListing(ctx context.Context, page int) (ListingPage, error) {
	body, err := c.fetcher.Fetch(ctx, c.strategy.ListingRequest(page))
	if err != nil {
		return ListingPage{}, fmt.Errorf("listing page %d: %w", page, err)
	}
	listing, err := c.strategy.ExtractListingPage(body)
	if err != nil {
		return ListingPage{}, fmt.Errorf("listing page %d: %w", page, err)
	}
	return listing, nil
}

func (c *CategoryCrawler) enrich(ctx context.Context, partial []Product) ([]Product, error) {
	enriched := make([]Product, len(partial))
	g, gctx := errgroup.WithContext(ctx)
	for i, product := range partial {
		g.Go(func() error {
			full, err := c.strategy.EnrichRecord(gctx, c.fetcher, product)
			if err != nil {
				return fmt.Errorf("enrich %s: %w", product.Path, err)
			}
			enriched[i] = full
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return enriched, nil
}
