package strategy

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/catalog-crawler/internal/crawler"
)

const categoryLinkSelector = "div[class*='catalog'] div[class*='punkt_'] a"

// ExtractCategories reads the top-level categories from the root page menu.
// Links without an href are skipped.
func ExtractCategories(body string) ([]crawler.Category, error) {
	doc, err := parseDocument(body)
	if err != nil {
		return nil, err
	}
	var categories []crawler.Category
	doc.Find(categoryLinkSelector).Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			return
		}
		categories = append(categories, crawler.Category{
			Title: strings.TrimSpace(s.Text()),
			Path:  strings.TrimSpace(href),
		})
	})
	return categories, nil
}
