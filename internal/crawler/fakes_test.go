package crawler

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
)

// fakeFetcher serves listing bodies as "listing:<page>" and detail bodies as
// "detail:<path>". It records every request.
type fakeFetcher struct {
	mu       sync.Mutex
	requests []FetchRequest
	closes   int

	delay   func(req FetchRequest) time.Duration
	failURL func(req FetchRequest) error
}

func (f *fakeFetcher) Fetch(ctx context.Context, req FetchRequest) (string, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	if f.delay != nil {
		select {
		case <-time.After(f.delay(req)):
		case <-ctx.Done():
			return "", &NetworkError{URL: req.URL, Err: ctx.Err()}
		}
	}
	if f.failURL != nil {
		if err := f.failURL(req); err != nil {
			return "", err
		}
	}
	if strings.HasPrefix(req.URL, "/item/") {
		return "detail:" + req.URL, nil
	}
	return "listing:" + pageOf(req), nil
}

func (f *fakeFetcher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	return nil
}

func (f *fakeFetcher) snapshot() []FetchRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]FetchRequest(nil), f.requests...)
}

func (f *fakeFetcher) count(match func(FetchRequest) bool) int {
	n := 0
	for _, r := range f.snapshot() {
		if match(r) {
			n++
		}
	}
	return n
}

func isListing(r FetchRequest) bool { return !strings.HasPrefix(r.URL, "/item/") }

func isDetail(r FetchRequest) bool { return strings.HasPrefix(r.URL, "/item/") }

func pageOf(req FetchRequest) string {
	if p := req.Query.Get("page"); p != "" {
		return p
	}
	return "1"
}

// fakeStrategy produces perPage products per page and reports total pages
// from page 1.
type fakeStrategy struct {
	path    string
	total   int
	perPage int
}

func (s *fakeStrategy) Path() string { return s.path }

func (s *fakeStrategy) ListingRequest(page int) FetchRequest {
	req := FetchRequest{URL: s.path}
	if page > 1 {
		req.Query = map[string][]string{"page": {strconv.Itoa(page)}}
	}
	return req
}

func (s *fakeStrategy) ExtractListingPage(body string) (ListingPage, error) {
	page, err := strconv.Atoi(strings.TrimPrefix(body, "listing:"))
	if err != nil {
		return ListingPage{}, Malformed("unexpected body %q", body)
	}
	products := make([]Product, 0, s.perPage)
	for i := range s.perPage {
		products = append(products, Product{
			Title: fmt.Sprintf("p%d-%d", page, i),
			Path:  fmt.Sprintf("/item/%d/%d", page, i),
		})
	}
	// Later pages report a bogus total, which must be ignored.
	total := s.total
	if page > 1 {
		total = 99
	}
	return ListingPage{Products: products, TotalPages: total}, nil
}

func (s *fakeStrategy) EnrichRecord(ctx context.Context, fetcher Fetcher, partial Product) (Product, error) {
	body, err := fetcher.Fetch(ctx, FetchRequest{URL: partial.Path})
	if err != nil {
		return Product{}, err
	}
	return partial.WithFields(map[string]any{"detail": body}), nil
}
