package crawler

import (
	"maps"
	"net/http"
	"net/url"
)

// Category is a top-level catalog section. Path is the key used to pick the
// extraction strategy and is matched exactly.
type Category struct {
	Title string `json:"title"`
	Path  string `json:"path"`
}

// Product is a single catalog item. A partial product only has Title and Path;
// Fields is filled by a strategy's enrichment step and its keys are defined by
// that strategy.
type Product struct {
	Title  string         `json:"title"`
	Path   string         `json:"path"`
	Fields map[string]any `json:"fields,omitempty"`
}

// WithFields returns a copy of p carrying a copy of fields. The receiver is
// left untouched so a partial product can be shared between goroutines.
func (p Product) WithFields(fields map[string]any) Product {
	out := Product{Title: p.Title, Path: p.Path}
	if fields != nil {
		out.Fields = maps.Clone(fields)
	}
	return out
}

// ListingPage is the outcome of extracting one listing page.
type ListingPage struct {
	Products []Product
	// TotalPages is only meaningful for page 1.
	TotalPages int
}

// FetchRequest describes a single GET. URL may be relative to the site root.
type FetchRequest struct {
	URL     string
	Query   url.Values
	Headers http.Header
}
