package crawler

import (
	"context"
)

// Fetcher performs a rate-limited GET and returns the decoded body text.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (string, error)
}

// FetchCloser is a Fetcher that owns a connection pool.
type FetchCloser interface {
	Fetcher
	Close() error
}

// Strategy is the hand-written extraction logic for one category.
type Strategy interface {
	// Path is the category path this strategy handles.
	Path() string
	// ListingRequest builds the request for a 1-based listing page.
	ListingRequest(page int) FetchRequest
	// ExtractListingPage parses product cards and pagination controls. It
	// must be free of side effects.
	ExtractListingPage(body string) (ListingPage, error)
	// EnrichRecord fetches the product detail page and returns a new
	// product with Fields populated.
	EnrichRecord(ctx context.Context, fetcher Fetcher, partial Product) (Product, error)
}

// CategoryExtractor parses the site's root page into categories, in document
// order.
type CategoryExtractor func(body string) ([]Category, error)
