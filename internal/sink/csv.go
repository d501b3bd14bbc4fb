// Package sink serialises crawled products to CSV exports.
package sink

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/catalog-crawler/internal/crawler"
	"github.com/JakeFAU/catalog-crawler/internal/hash/sha256"
	"github.com/JakeFAU/catalog-crawler/internal/storage"
)

// TimestampLayout is the timestamp suffix of every export filename.
const TimestampLayout = "20060102T150405"

const contentType = "text/csv; charset=utf-8"

// Clock supplies the export timestamp.
type Clock interface {
	Now() time.Time
}

// Hasher checksums an encoded export.
type Hasher interface {
	Hash(data []byte) string
}

// Result describes a stored export.
type Result struct {
	Location string
	Checksum string
	Rows     int
}

// CSVSink writes one CSV object per finished category crawl.
type CSVSink struct {
	store  storage.BlobStore
	clock  Clock
	hasher Hasher
	logger *zap.Logger
}

// NewCSVSink builds a sink over store. A nil hasher defaults to SHA-256.
func NewCSVSink(store storage.BlobStore, clock Clock, hasher Hasher, logger *zap.Logger) (*CSVSink, error) {
	if store == nil {
		return nil, errors.New("blob store is required")
	}
	if clock == nil {
		return nil, errors.New("clock is required")
	}
	if hasher == nil {
		hasher = sha256.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CSVSink{store: store, clock: clock, hasher: hasher, logger: logger}, nil
}

// Write renders products as CSV and stores it as
// <category title>-<timestamp>.csv. It returns the location reported by the
// blob store.
func (s *CSVSink) Write(ctx context.Context, products []crawler.Product, category crawler.Category) (string, error) {
	result, err := s.Export(ctx, products, category)
	if err != nil {
		return "", err
	}
	return result.Location, nil
}

// Export is Write that also reports the payload checksum. Columns are the
// sorted union of every product's field keys; a product missing a key gets an
// empty cell.
func (s *CSVSink) Export(ctx context.Context, products []crawler.Product, category crawler.Category) (Result, error) {
	data, err := Encode(products)
	if err != nil {
		return Result{}, err
	}
	name := FileName(category, s.clock.Now())
	location, err := s.store.PutObject(ctx, name, contentType, bytes.NewReader(data))
	if err != nil {
		return Result{}, fmt.Errorf("store %s: %w", name, err)
	}
	result := Result{Location: location, Checksum: s.hasher.Hash(data), Rows: len(products)}
	s.logger.Info("Saved results",
		zap.String("location", location),
		zap.Int("products", result.Rows),
		zap.String("sha256", result.Checksum),
	)
	return result, nil
}

// FileName builds the export name for category at time now.
func FileName(category crawler.Category, now time.Time) string {
	title := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', 0:
			return '_'
		}
		return r
	}, strings.TrimSpace(category.Title))
	if title == "" || title == "." || title == ".." {
		title = "category"
	}
	return title + "-" + now.Format(TimestampLayout) + ".csv"
}

// Header returns the sorted union of the products' field keys.
func Header(products []crawler.Product) []string {
	seen := make(map[string]struct{})
	for _, p := range products {
		for k := range p.Fields {
			seen[k] = struct{}{}
		}
	}
	header := make([]string, 0, len(seen))
	for k := range seen {
		header = append(header, k)
	}
	slices.Sort(header)
	return header
}

// Encode renders the header row followed by one row per product, in order.
func Encode(products []crawler.Product) ([]byte, error) {
	header := Header(products)
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	row := make([]string, len(header))
	for _, p := range products {
		for i, key := range header {
			row[i] = formatValue(p.Fields[key])
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("write csv row for %s: %w", p.Path, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		return strconv.FormatBool(x)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}
