// Package strategy holds the hand-written extraction strategies for each
// supported catalog category, plus the root-page category extractor.
package strategy

import (
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/catalog-crawler/internal/crawler"
)

// All returns every compiled-in strategy. Adding a category means adding a
// type here.
func All() []crawler.Strategy {
	return []crawler.Strategy{
		NewSmartphones(),
	}
}

// NewRegistry builds the registry of every compiled-in strategy.
func NewRegistry() (*crawler.Registry, error) {
	return crawler.NewRegistry(All()...)
}

func parseDocument(body string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, &crawler.MalformedContentError{What: "unparsable html", Err: err}
	}
	return doc, nil
}

// maxPageNumber returns the largest numeric label among the pagination links,
// or 1 when there are none. Gaps in the sequence are irrelevant.
func maxPageNumber(doc *goquery.Document, selector string) int {
	last := 1
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		n, err := strconv.Atoi(strings.TrimSpace(s.Text()))
		if err == nil && n > last {
			last = n
		}
	})
	return last
}

// extractCards turns every card matched by cardSelector into a partial
// product, reading title and href from the first titleSelector match.
func extractCards(doc *goquery.Document, cardSelector, titleSelector string) ([]crawler.Product, error) {
	cards := doc.Find(cardSelector)
	if cards.Length() == 0 {
		return nil, crawler.Malformed("no product cards matching %q", cardSelector)
	}
	products := make([]crawler.Product, 0, cards.Length())
	var err error
	cards.EachWithBreak(func(i int, card *goquery.Selection) bool {
		link := card.Find(titleSelector).First()
		href, ok := link.Attr("href")
		if link.Length() == 0 || !ok || strings.TrimSpace(href) == "" {
			err = crawler.Malformed("product card %d has no title link", i)
			return false
		}
		products = append(products, crawler.Product{
			Title: strings.TrimSpace(link.Text()),
			Path:  strings.TrimSpace(href),
		})
		return true
	})
	if err != nil {
		return nil, err
	}
	return products, nil
}
