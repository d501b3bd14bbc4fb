package strategy

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/catalog-crawler/internal/crawler"
)

func readFixture(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return string(data)
}

// detailPage renders a detail page whose __NEXT_DATA__ carries product.
func detailPage(t *testing.T, product map[string]any) string {
	t.Helper()
	payload := map[string]any{
		"props": map[string]any{
			"pageProps": map[string]any{
				"initialReduxState": map[string]any{
					"product": map[string]any{"product": product},
				},
			},
		},
	}
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return fmt.Sprintf(`<html><body><div id="__next"></div><script id="__NEXT_DATA__" type="application/json">%s</script></body></html>`, data)
}

func property(slug, value string) map[string]any {
	return map[string]any{"slug": slug, "items": []map[string]any{{"value": value}}}
}

func baseProduct(first, selling float64, props ...map[string]any) map[string]any {
	return map[string]any{
		"brandName":  "Apple",
		"status":     "available",
		"price":      map[string]any{"firstPrice": first, "sellingPrice": selling},
		"properties": props,
	}
}

func TestSmartphonesListingRequest(t *testing.T) {
	t.Parallel()

	s := NewSmartphones()
	first := s.ListingRequest(1)
	assert.Equal(t, smartphonesPath, first.URL)
	assert.Nil(t, first.Query)

	third := s.ListingRequest(3)
	assert.Equal(t, smartphonesPath, third.URL)
	assert.Equal(t, "3", third.Query.Get("page"))
}

func TestExtractListingPage(t *testing.T) {
	t.Parallel()

	page, err := NewSmartphones().ExtractListingPage(readFixture(t, "listing_page1.html"))
	require.NoError(t, err)

	// Labels are {1, 2, …, 4, ›}: the largest number wins even though 3 is missing.
	assert.Equal(t, 4, page.TotalPages)
	assert.Equal(t, []crawler.Product{
		{Title: "Apple iPhone 15 128GB Black", Path: "/smartfony/apple-iphone-15-128gb-black"},
		{Title: "Samsung Galaxy S24 256GB", Path: "/smartfony/samsung-galaxy-s24-256gb"},
		{Title: "Xiaomi Redmi Note 13", Path: "/smartfony/xiaomi-redmi-note-13"},
	}, page.Products)
}

func TestExtractListingPageIsIdempotent(t *testing.T) {
	t.Parallel()

	s := NewSmartphones()
	body := readFixture(t, "listing_page1.html")
	first, err := s.ExtractListingPage(body)
	require.NoError(t, err)
	second, err := s.ExtractListingPage(body)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestExtractListingPageWithoutPagination(t *testing.T) {
	t.Parallel()

	page, err := NewSmartphones().ExtractListingPage(readFixture(t, "listing_single.html"))
	require.NoError(t, err)
	assert.Equal(t, 1, page.TotalPages)
	require.Len(t, page.Products, 1)
	assert.Equal(t, "Nokia 105", page.Products[0].Title)
}

func TestExtractListingPageMalformed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
	}{
		{"no cards", readFixture(t, "listing_empty.html")},
		{"card without link", `<div class="X_product_card__1"><div class="X_card_title__2">No link</div></div>`},
		{"link without href", `<div class="X_product_card__1"><div class="X_card_title__2"><a>Title</a></div></div>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewSmartphones().ExtractListingPage(tt.body)
			var malformed *crawler.MalformedContentError
			require.ErrorAs(t, err, &malformed)
		})
	}
}

func TestParseStorage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{in: "256 ГБ", want: 256},
		{in: "128 гб", want: 128},
		{in: "1 TB", want: 1024},
		{in: "2 tb", want: 2048},
		{in: "1 PB", wantErr: true},
		{in: "512 MB", wantErr: true},
		{in: "many ГБ", wantErr: true},
		{in: "256", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, err := ParseStorage(tt.in)
			if tt.wantErr {
				var malformed *crawler.MalformedContentError
				require.ErrorAs(t, err, &malformed)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseDetail(t *testing.T) {
	t.Parallel()

	s := NewSmartphones()

	t.Run("same promo price is omitted", func(t *testing.T) {
		t.Parallel()
		fields, err := s.ParseDetail(detailPage(t, baseProduct(1000, 1000)))
		require.NoError(t, err)
		assert.Contains(t, fields, "promo_price")
		assert.Nil(t, fields["promo_price"])
		assert.Equal(t, 1000.0, fields["price"])
	})

	t.Run("real promo price is kept", func(t *testing.T) {
		t.Parallel()
		fields, err := s.ParseDetail(detailPage(t, baseProduct(1000, 800)))
		require.NoError(t, err)
		assert.Equal(t, 800.0, fields["promo_price"])
	})

	t.Run("known properties are mapped and unknown ignored", func(t *testing.T) {
		t.Parallel()
		fields, err := s.ParseDetail(detailPage(t, baseProduct(37999, 35999,
			property(slugModel, "iPhone 15"),
			property(slugColor, "Black"),
			property(slugStorage, "1 TB"),
			property("diagonal-smartfony", "6.1"),
		)))
		require.NoError(t, err)
		assert.Equal(t, map[string]any{
			"brand":        "Apple",
			"model":        "iPhone 15",
			"availability": "available",
			"status":       "new",
			"color":        "Black",
			"storage":      1024,
			"price":        37999.0,
			"promo_price":  35999.0,
		}, fields)
	})

	t.Run("missing optional properties stay nil", func(t *testing.T) {
		t.Parallel()
		product := baseProduct(500, 500)
		delete(product, "brandName")
		fields, err := s.ParseDetail(detailPage(t, product))
		require.NoError(t, err)
		for _, key := range []string{"brand", "model", "color", "storage"} {
			assert.Contains(t, fields, key)
			assert.Nil(t, fields[key], key)
		}
	})
}

func TestParseDetailMalformed(t *testing.T) {
	t.Parallel()

	noPrice := baseProduct(1, 1)
	delete(noPrice, "price")

	tests := []struct {
		name string
		body string
	}{
		{"no next data", `<html><body><p>nothing</p></body></html>`},
		{"invalid json", `<script id="__NEXT_DATA__">{not json</script>`},
		{"no product node", `<script id="__NEXT_DATA__">{"props":{"pageProps":{}}}</script>`},
		{"no price block", detailPage(t, noPrice)},
		{"unknown storage unit", detailPage(t, baseProduct(1, 1, property(slugStorage, "64 PB")))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewSmartphones().ParseDetail(tt.body)
			var malformed *crawler.MalformedContentError
			require.ErrorAs(t, err, &malformed)
		})
	}
}

type mapFetcher struct {
	pages map[string]string
}

func (f mapFetcher) Fetch(_ context.Context, req crawler.FetchRequest) (string, error) {
	body, ok := f.pages[req.URL]
	if !ok {
		return "", &crawler.HTTPStatusError{URL: req.URL, StatusCode: 404}
	}
	return body, nil
}

func TestEnrichRecordReturnsNewProduct(t *testing.T) {
	t.Parallel()

	partial := crawler.Product{Title: "iPhone", Path: "/smartfony/iphone"}
	fetcher := mapFetcher{pages: map[string]string{
		"/smartfony/iphone": detailPage(t, baseProduct(1000, 900, property(slugStorage, "256 ГБ"))),
	}}

	full, err := NewSmartphones().EnrichRecord(context.Background(), fetcher, partial)
	require.NoError(t, err)
	assert.Equal(t, partial.Title, full.Title)
	assert.Equal(t, partial.Path, full.Path)
	assert.Equal(t, 256, full.Fields["storage"])
	assert.Equal(t, 900.0, full.Fields["promo_price"])
	assert.Nil(t, partial.Fields, "partial product must not be mutated")
}

func TestEnrichRecordPropagatesFetchError(t *testing.T) {
	t.Parallel()

	_, err := NewSmartphones().EnrichRecord(context.Background(), mapFetcher{}, crawler.Product{Path: "/gone"})
	var statusErr *crawler.HTTPStatusError
	require.ErrorAs(t, err, &statusErr)
}
