// Package testsite serves a small fake catalog over httptest. It is a test
// fixture only: the crawler, app and cmd tests import it and no production
// code does.
package testsite

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"
)

// PhonesPath is the one category the fake catalog supports.
const PhonesPath = "/smartfony-mobilni-telefony/smartfony"

// Site is a catalog with a root menu, Pages listing pages of two cards each
// and one detail page per card. Earlier listing pages answer slower than later
// ones.
type Site struct {
	Pages int

	mu   sync.Mutex
	hits map[string]int
}

// Start serves a new Site with pages listing pages until the test ends.
func Start(t interface{ Cleanup(func()) }, pages int) (*Site, *httptest.Server) {
	site := &Site{Pages: pages, hits: map[string]int{}}
	server := httptest.NewServer(site)
	t.Cleanup(server.Close)
	return site, server
}

// Hits reports how many times key was requested. Keys are the path plus
// "?page=N" for paginated requests.
func (s *Site) Hits(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[key]
}

// ProductTitle is the listing title of card i on page.
func ProductTitle(page, i int) string { return fmt.Sprintf("Phone %d-%d", page, i) }

// ProductModel is the model a detail page reports for card i on page.
func ProductModel(page, i int) string { return fmt.Sprintf("Model %d-%d", page, i) }

func (s *Site) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Path
	if p := r.URL.Query().Get("page"); p != "" {
		key += "?page=" + p
	}
	s.mu.Lock()
	s.hits[key]++
	s.mu.Unlock()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	switch {
	case r.URL.Path == "/":
		fmt.Fprint(w, rootPage)
	case r.URL.Path == PhonesPath:
		page := 1
		if p := r.URL.Query().Get("page"); p != "" {
			page, _ = strconv.Atoi(p)
		}
		time.Sleep(time.Duration(s.Pages-page) * 10 * time.Millisecond)
		fmt.Fprint(w, s.listingPage(page))
	case strings.HasPrefix(r.URL.Path, "/item/"):
		var page, i int
		if _, err := fmt.Sscanf(strings.TrimPrefix(r.URL.Path, "/item/"), "%d-%d", &page, &i); err != nil {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, detailPage(page, i))
	default:
		http.NotFound(w, r)
	}
}

const rootPage = `<html><body><div class="Menu_catalog__1">
<div class="Menu_punkt_1"><a href="` + PhonesPath + `">Смартфони</a></div>
<div class="Menu_punkt_2"><a href="/noutbuky">Ноутбуки</a></div>
</div></body></html>`

func (s *Site) listingPage(page int) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	for i := range 2 {
		fmt.Fprintf(&b, `<div class="Card_product_card__1"><div class="Card_card_title__2"><a href="/item/%d-%d">%s</a></div></div>`,
			page, i, ProductTitle(page, i))
	}
	fmt.Fprintf(&b, `<div class="P_pagination_link__1"><a>1</a></div><div class="P_pagination_link__1"><a>%d</a></div>`, s.Pages)
	b.WriteString("</body></html>")
	return b.String()
}

func detailPage(page, i int) string {
	return fmt.Sprintf(`<html><body><script id="__NEXT_DATA__" type="application/json">
{"props":{"pageProps":{"initialReduxState":{"product":{"product":{
"brandName":"Brand","status":"available",
"price":{"firstPrice":1000,"sellingPrice":900},
"properties":[
 {"slug":"model-smartfony","items":[{"value":%q}]},
 {"slug":"vbudovana-pamiat-smartfony","items":[{"value":"128 ГБ"}]}
]}}}}}}
</script></body></html>`, ProductModel(page, i))
}
