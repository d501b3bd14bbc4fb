// Package postgres exports crawled products to a Postgres table.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/catalog-crawler/internal/crawler"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

const defaultTable = "products"

// RecordStoreConfig controls the Postgres connection pool used for exports.
type RecordStoreConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MaxConnLifetime time.Duration
}

type txBeginCloser interface {
	Begin(context.Context) (pgx.Tx, error)
	Close()
}

// Export is one finished category crawl.
type Export struct {
	RunID     string
	Category  crawler.Category
	CrawledAt time.Time
	Products  []crawler.Product
}

// RecordStore writes product rows into Postgres.
type RecordStore struct {
	pool  txBeginCloser
	table string
}

// NewRecordStore connects a pool using the provided config.
func NewRecordStore(ctx context.Context, cfg RecordStoreConfig) (*RecordStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	store, err := NewRecordStoreWithPool(pool, cfg.Table)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

// NewRecordStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewRecordStoreWithPool(pool txBeginCloser, table string) (*RecordStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = defaultTable
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &RecordStore{pool: pool, table: table}, nil
}

// Close releases the underlying pool resources.
func (s *RecordStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// StoreProducts creates the table if needed and inserts one row per product
// in a single transaction, so a run is either fully exported or not at all.
func (s *RecordStore) StoreProducts(ctx context.Context, export Export) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("record store is not configured")
	}
	if export.RunID == "" {
		return fmt.Errorf("run id is required")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin export: %w", err)
	}
	if err := s.insert(ctx, tx, export); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit export: %w", err)
	}
	return nil
}

func (s *RecordStore) insert(ctx context.Context, tx pgx.Tx, export Export) error {
	if _, err := tx.Exec(ctx, s.createTableSQL()); err != nil {
		return fmt.Errorf("create table %s: %w", s.table, err)
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	run_id,
	category_path,
	category_title,
	position,
	title,
	path,
	fields,
	crawled_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8
)`, s.table)

	for i, product := range export.Products {
		fields, err := marshalFields(product.Fields)
		if err != nil {
			return fmt.Errorf("marshal fields of %s: %w", product.Path, err)
		}
		args := []any{
			export.RunID,
			export.Category.Path,
			export.Category.Title,
			i,
			product.Title,
			product.Path,
			fields,
			export.CrawledAt,
		}
		if _, err := tx.Exec(ctx, query, args...); err != nil {
			return fmt.Errorf("insert product %s: %w", product.Path, err)
		}
	}
	return nil
}

func (s *RecordStore) createTableSQL() string {
	return fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	run_id TEXT NOT NULL,
	category_path TEXT NOT NULL,
	category_title TEXT NOT NULL,
	position INTEGER NOT NULL,
	title TEXT NOT NULL,
	path TEXT NOT NULL,
	fields JSONB NOT NULL,
	crawled_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (run_id, position)
)`, s.table)
}

func marshalFields(fields map[string]any) ([]byte, error) {
	if fields == nil {
		return []byte(`{}`), nil
	}
	return json.Marshal(fields)
}
