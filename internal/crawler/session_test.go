package crawler

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noCategories(string) ([]Category, error) { return nil, nil }

func TestNewSessionValidates(t *testing.T) {
	t.Parallel()

	registry, err := NewRegistry()
	require.NoError(t, err)

	_, err = NewSession(nil, registry, noCategories, nil)
	require.Error(t, err)
	_, err = NewSession(&fakeFetcher{}, nil, noCategories, nil)
	require.Error(t, err)
	_, err = NewSession(&fakeFetcher{}, registry, nil, nil)
	require.Error(t, err)
}

func TestSessionCloseReleasesOnce(t *testing.T) {
	t.Parallel()

	registry, err := NewRegistry()
	require.NoError(t, err)
	fetcher := &fakeFetcher{}
	session, err := NewSession(fetcher, registry, noCategories, nil)
	require.NoError(t, err)

	require.NoError(t, session.Close())
	require.NoError(t, session.Close())
	assert.Equal(t, 1, fetcher.closes)
}

func TestSessionClosesOnFailedCrawl(t *testing.T) {
	t.Parallel()

	registry, err := NewRegistry(&fakeStrategy{path: "/phones", total: 3, perPage: 1})
	require.NoError(t, err)
	fetcher := &fakeFetcher{
		failURL: func(req FetchRequest) error {
			if pageOf(req) == "2" {
				return &HTTPStatusError{URL: req.URL, StatusCode: 500}
			}
			return nil
		},
	}

	run := func() error {
		session, err := NewSession(fetcher, registry, noCategories, nil)
		if err != nil {
			return err
		}
		defer session.Close()
		_, err = session.Products(context.Background(), Category{Path: "/phones"})
		return err
	}

	var statusErr *HTTPStatusError
	require.ErrorAs(t, run(), &statusErr)
	assert.Equal(t, 1, fetcher.closes)
}

func TestSessionProducts(t *testing.T) {
	t.Parallel()

	registry, err := NewRegistry(&fakeStrategy{path: "/phones", total: 2, perPage: 2})
	require.NoError(t, err)
	session, err := NewSession(&fakeFetcher{}, registry, noCategories, nil)
	require.NoError(t, err)
	defer session.Close()

	products, err := session.Products(context.Background(), Category{Path: "/phones"})
	require.NoError(t, err)
	titles := make([]string, 0, len(products))
	for _, p := range products {
		titles = append(titles, p.Title)
	}
	assert.Equal(t, []string{"p1-0", "p1-1", "p2-0", "p2-1"}, titles)
}

func TestSessionCategories(t *testing.T) {
	t.Parallel()

	registry, err := NewRegistry()
	require.NoError(t, err)
	fetcher := &fakeFetcher{}
	want := []Category{{Title: "B", Path: "/b"}, {Title: "A", Path: "/a"}}
	var gotBody string
	session, err := NewSession(fetcher, registry, func(body string) ([]Category, error) {
		gotBody = body
		return want, nil
	}, nil)
	require.NoError(t, err)
	defer session.Close()

	got, err := session.Categories(context.Background())
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, "listing:1", gotBody)
	require.Len(t, fetcher.snapshot(), 1)
	assert.Empty(t, fetcher.snapshot()[0].URL, "root page is the base URL itself")
}

func TestCatalogCrawlerErrors(t *testing.T) {
	t.Parallel()

	failing := &fakeFetcher{failURL: func(req FetchRequest) error {
		return &NetworkError{URL: req.URL, Err: errors.New("refused")}
	}}
	_, err := NewCatalogCrawler(failing, noCategories, nil).Categories(context.Background())
	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)

	extractErr := Malformed("menu missing")
	_, err = NewCatalogCrawler(&fakeFetcher{}, func(string) ([]Category, error) { return nil, extractErr }, nil).
		Categories(context.Background())
	require.ErrorIs(t, err, extractErr)

	got, err := NewCatalogCrawler(&fakeFetcher{}, noCategories, nil).Categories(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}
