package sink

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/catalog-crawler/internal/crawler"
	"github.com/JakeFAU/catalog-crawler/internal/storage/local"
	"github.com/JakeFAU/catalog-crawler/internal/storage/memory"
)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

var exportTime = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

func readCSV(t *testing.T, data []byte) [][]string {
	t.Helper()
	rows, err := csv.NewReader(strings.NewReader(string(data))).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestWriteUnionHeader(t *testing.T) {
	t.Parallel()

	store := memory.NewBlobStore()
	s, err := NewCSVSink(store, fixedClock{exportTime}, nil, nil)
	require.NoError(t, err)

	products := []crawler.Product{
		{Title: "one", Path: "/1", Fields: map[string]any{"a": 1, "b": 2}},
		{Title: "two", Path: "/2", Fields: map[string]any{"b": 3, "c": 4}},
	}
	location, err := s.Write(context.Background(), products, crawler.Category{Title: "Phones", Path: "/phones"})
	require.NoError(t, err)
	assert.Equal(t, "memory://Phones-20240102T030405.csv", location)

	data, ok := store.Object("Phones-20240102T030405.csv")
	require.True(t, ok)
	assert.Equal(t, [][]string{
		{"a", "b", "c"},
		{"1", "2", ""},
		{"", "3", "4"},
	}, readCSV(t, data))
}

func TestWriteToLocalDirectory(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := local.New(local.Config{BaseDir: dir})
	require.NoError(t, err)
	s, err := NewCSVSink(store, fixedClock{exportTime}, nil, nil)
	require.NoError(t, err)

	products := []crawler.Product{{Title: "x", Path: "/x", Fields: map[string]any{
		"brand":       nil,
		"price":       37999.0,
		"promo_price": 35999.5,
		"storage":     256,
		"model":       `iPhone 15, "Pro"`,
	}}}
	location, err := s.Write(context.Background(), products, crawler.Category{Title: "Смартфони"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "Смартфони-20240102T030405.csv"), location)

	data, err := os.ReadFile(location)
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"brand", "model", "price", "promo_price", "storage"},
		{"", `iPhone 15, "Pro"`, "37999", "35999.5", "256"},
	}, readCSV(t, data))
}

func TestExportReportsChecksum(t *testing.T) {
	t.Parallel()

	s, err := NewCSVSink(memory.NewBlobStore(), fixedClock{exportTime}, constHasher("digest"), nil)
	require.NoError(t, err)
	result, err := s.Export(context.Background(), []crawler.Product{{Fields: map[string]any{"a": "x"}}}, crawler.Category{Title: "T"})
	require.NoError(t, err)
	assert.Equal(t, Result{Location: "memory://T-20240102T030405.csv", Checksum: "digest", Rows: 1}, result)
}

type constHasher string

func (h constHasher) Hash([]byte) string { return string(h) }

func TestWriteEmptyProducts(t *testing.T) {
	t.Parallel()

	data, err := Encode(nil)
	require.NoError(t, err)
	assert.Equal(t, "\n", string(data))
}

func TestWriteStoreFailure(t *testing.T) {
	t.Parallel()

	store := new(mockStore)
	store.On("PutObject", mock.Anything, "Phones-20240102T030405.csv", "text/csv; charset=utf-8", mock.Anything).
		Return("", errors.New("bucket gone")).Once()

	s, err := NewCSVSink(store, fixedClock{exportTime}, nil, nil)
	require.NoError(t, err)
	_, err = s.Write(context.Background(), nil, crawler.Category{Title: "Phones"})
	require.ErrorContains(t, err, "bucket gone")
	store.AssertExpectations(t)
}

func TestNewCSVSinkValidates(t *testing.T) {
	t.Parallel()

	_, err := NewCSVSink(nil, fixedClock{}, nil, nil)
	assert.Error(t, err)
	_, err = NewCSVSink(memory.NewBlobStore(), nil, nil, nil)
	assert.Error(t, err)
}

func TestFileName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		title string
		want  string
	}{
		{"Смартфони", "Смартфони-20240102T030405.csv"},
		{"  TV/Audio ", "TV_Audio-20240102T030405.csv"},
		{"", "category-20240102T030405.csv"},
		{"..", "category-20240102T030405.csv"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FileName(crawler.Category{Title: tt.title}, exportTime), tt.title)
	}
}

func TestFormatValue(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "", formatValue(nil))
	assert.Equal(t, "true", formatValue(true))
	assert.Equal(t, "1024", formatValue(int64(1024)))
	assert.Equal(t, "0.25", formatValue(float32(0.25)))
	assert.Equal(t, "[a b]", formatValue([]string{"a", "b"}))
	assert.Equal(t, "2024-01-02 03:04:05 +0000 UTC", formatValue(exportTime))
}

type mockStore struct {
	mock.Mock
}

func (m *mockStore) PutObject(ctx context.Context, path, contentType string, data io.Reader) (string, error) {
	args := m.Called(ctx, path, contentType, data)
	return args.String(0), args.Error(1)
}
