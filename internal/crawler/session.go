package crawler

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

// Session owns the fetch client for one crawl run. Callers must defer Close
// right after constructing it; Close is idempotent.
type Session struct {
	fetcher    FetchCloser
	registry   *Registry
	categories CategoryExtractor
	logger     *zap.Logger

	closeOnce sync.Once
	closeErr  error
}

// NewSession binds a fetch client, a registry and the root-page extractor.
func NewSession(fetcher FetchCloser, registry *Registry, categories CategoryExtractor, logger *zap.Logger) (*Session, error) {
	if fetcher == nil {
		return nil, errors.New("fetcher is required")
	}
	if registry == nil {
		return nil, errors.New("registry is required")
	}
	if categories == nil {
		return nil, errors.New("category extractor is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Debug("Started session")
	return &Session{
		fetcher:    fetcher,
		registry:   registry,
		categories: categories,
		logger:     logger,
	}, nil
}

// Categories lists the catalog's top-level categories.
func (s *Session) Categories(ctx context.Context) ([]Category, error) {
	return NewCatalogCrawler(s.fetcher, s.categories, s.logger).Categories(ctx)
}

// Products crawls one category. The strategy is resolved before any request
// is made, so an unsupported category costs no fetches.
func (s *Session) Products(ctx context.Context, category Category) ([]Product, error) {
	strategy, err := s.registry.Resolve(category)
	if err != nil {
		return nil, err
	}
	return NewCategoryCrawler(category, strategy, s.fetcher, s.logger).Crawl(ctx)
}

// Close releases the fetch client exactly once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.logger.Debug("Stopped session")
		s.closeErr = s.fetcher.Close()
	})
	return s.closeErr
}
