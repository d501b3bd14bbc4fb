package strategy

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"strings"

	"github.com/JakeFAU/catalog-crawler/internal/crawler"
)

const (
	smartphonesPath = "/smartfony-mobilni-telefony/smartfony"

	productCardSelector = "div[class*='_product_card']"
	cardTitleSelector   = "div[class*='_card_title'] a"
	paginationSelector  = "div[class*='_pagination_link'] a"
	nextDataSelector    = "#__NEXT_DATA__"

	slugModel   = "model-smartfony"
	slugColor   = "kolir-osnovnyi-smartfony"
	slugStorage = "vbudovana-pamiat-smartfony"
)

// storageUnits maps a lower-cased unit to its multiplier in gigabytes.
var storageUnits = map[string]int{
	"гб": 1,
	"tb": 1024,
}

// Smartphones extracts the smartphone category.
type Smartphones struct{}

// NewSmartphones returns the smartphone strategy.
func NewSmartphones() *Smartphones {
	return &Smartphones{}
}

// Path implements crawler.Strategy.
func (*Smartphones) Path() string {
	return smartphonesPath
}

// ListingRequest implements crawler.Strategy. Page 1 is requested without a
// page parameter.
func (*Smartphones) ListingRequest(page int) crawler.FetchRequest {
	req := crawler.FetchRequest{URL: smartphonesPath}
	if page > 1 {
		req.Query = url.Values{"page": {strconv.Itoa(page)}}
	}
	return req
}

// ExtractListingPage implements crawler.Strategy.
func (*Smartphones) ExtractListingPage(body string) (crawler.ListingPage, error) {
	doc, err := parseDocument(body)
	if err != nil {
		return crawler.ListingPage{}, err
	}
	products, err := extractCards(doc, productCardSelector, cardTitleSelector)
	if err != nil {
		return crawler.ListingPage{}, err
	}
	return crawler.ListingPage{
		Products:   products,
		TotalPages: maxPageNumber(doc, paginationSelector),
	}, nil
}

// EnrichRecord implements crawler.Strategy.
func (s *Smartphones) EnrichRecord(ctx context.Context, fetcher crawler.Fetcher, partial crawler.Product) (crawler.Product, error) {
	body, err := fetcher.Fetch(ctx, crawler.FetchRequest{URL: partial.Path})
	if err != nil {
		return crawler.Product{}, err
	}
	fields, err := s.ParseDetail(body)
	if err != nil {
		return crawler.Product{}, err
	}
	return partial.WithFields(fields), nil
}

type nextData struct {
	Props struct {
		PageProps struct {
			InitialReduxState struct {
				Product struct {
					Product *productNode `json:"product"`
				} `json:"product"`
			} `json:"initialReduxState"`
		} `json:"pageProps"`
	} `json:"props"`
}

type productNode struct {
	BrandName  string         `json:"brandName"`
	Status     any            `json:"status"`
	Price      *priceBlock    `json:"price"`
	Properties []propertyNode `json:"properties"`
}

type priceBlock struct {
	FirstPrice   *float64 `json:"firstPrice"`
	SellingPrice *float64 `json:"sellingPrice"`
}

type propertyNode struct {
	Slug  string `json:"slug"`
	Items []struct {
		Value string `json:"value"`
	} `json:"items"`
}

// ParseDetail reads the product fields from a detail page's embedded
// __NEXT_DATA__ document.
func (*Smartphones) ParseDetail(body string) (map[string]any, error) {
	doc, err := parseDocument(body)
	if err != nil {
		return nil, err
	}
	script := doc.Find(nextDataSelector).First()
	if script.Length() == 0 {
		return nil, crawler.Malformed("detail page has no %s block", nextDataSelector)
	}
	var data nextData
	if err := json.Unmarshal([]byte(script.Text()), &data); err != nil {
		return nil, &crawler.MalformedContentError{What: "decode " + nextDataSelector, Err: err}
	}
	product := data.Props.PageProps.InitialReduxState.Product.Product
	if product == nil {
		return nil, crawler.Malformed("no product node in %s", nextDataSelector)
	}
	if product.Price == nil || product.Price.FirstPrice == nil {
		return nil, crawler.Malformed("product has no price block")
	}

	fields := map[string]any{
		"brand":        nil,
		"model":        nil,
		"availability": product.Status,
		"status":       "new",
		"color":        nil,
		"storage":      nil,
		"price":        *product.Price.FirstPrice,
		"promo_price":  promoPrice(*product.Price),
	}
	if product.BrandName != "" {
		fields["brand"] = product.BrandName
	}

	for _, prop := range product.Properties {
		if len(prop.Items) == 0 {
			continue
		}
		value := prop.Items[0].Value
		switch prop.Slug {
		case slugModel:
			fields["model"] = value
		case slugColor:
			fields["color"] = value
		case slugStorage:
			storage, err := ParseStorage(value)
			if err != nil {
				return nil, err
			}
			fields["storage"] = storage
		}
	}
	return fields, nil
}

// promoPrice returns the selling price, or nil when it is missing or equal to
// the regular price.
func promoPrice(p priceBlock) any {
	if p.SellingPrice == nil || p.FirstPrice == nil || *p.SellingPrice == *p.FirstPrice {
		return nil
	}
	return *p.SellingPrice
}

// ParseStorage converts "<number> <unit>" into gigabytes. The unit is matched
// case-insensitively; an unknown unit is an error.
func ParseStorage(raw string) (int, error) {
	parts := strings.Fields(raw)
	if len(parts) != 2 {
		return 0, crawler.Malformed("storage %q is not <number> <unit>", raw)
	}
	n, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, &crawler.MalformedContentError{What: "storage amount " + strconv.Quote(raw), Err: err}
	}
	multiplier, ok := storageUnits[strings.ToLower(parts[1])]
	if !ok {
		return 0, crawler.Malformed("unknown storage unit %q", parts[1])
	}
	return n * multiplier, nil
}
