// Package sqlstore implements store.Store on SQLite or PostgreSQL through sqlx.
package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"wbi/internal/metrics"
	"wbi/internal/model"
	"wbi/internal/store"
)

const (
	driverSQLite   = "sqlite"
	driverPostgres = "postgres"
)

type Store struct {
	db      *sqlx.DB
	driver  string
	metrics *metrics.Collector
}

type Option func(*Store)

func WithMetrics(m *metrics.Collector) Option {
	return func(s *Store) {
		s.metrics = m
	}
}

// New opens dsn. A postgres:// or postgresql:// URL selects PostgreSQL, any
// other value is a SQLite file path.
func New(dsn string, opts ...Option) (*Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("sqlstore: dsn is required")
	}

	driver := driverSQLite
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		driver = driverPostgres
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open %s: %w", driver, err)
	}
	if driver == driverSQLite {
		db.SetMaxOpenConns(1)
	}

	s := &Store{db: db, driver: driver}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

const upsertQuery = `
	INSERT INTO observations (
		indicator_id, indicator_name, country_id, country_name, country_iso3,
		year, value, unit, obs_status, decimal_places, fetched_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(indicator_id, country_iso3, year)
	DO UPDATE SET
		indicator_name = excluded.indicator_name,
		country_id = excluded.country_id,
		country_name = excluded.country_name,
		value = excluded.value,
		unit = excluded.unit,
		obs_status = excluded.obs_status,
		decimal_places = excluded.decimal_places,
		fetched_at = excluded.fetched_at
`

// UpsertPoints writes points in one transaction. Re-inserting a key replaces
// the stored row.
func (s *Store) UpsertPoints(ctx context.Context, points []model.DataPoint) (err error) {
	if len(points) == 0 {
		return nil
	}
	start := time.Now()
	defer func() { s.metrics.RecordStoreQuery("upsert", time.Since(start)) }()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlstore: begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PreparexContext(ctx, tx.Rebind(upsertQuery))
	if err != nil {
		return fmt.Errorf("sqlstore: prepare upsert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, p := range points {
		r := toRow(p)
		_, err = stmt.ExecContext(ctx,
			r.IndicatorID, r.IndicatorName, r.CountryID, r.CountryName, r.CountryISO3,
			r.Year, r.Value, r.Unit, r.ObsStatus, r.Decimal, now,
		)
		if err != nil {
			return fmt.Errorf("sqlstore: upsert %s/%s/%d: %w", p.IndicatorID, p.CountryISO3, p.Year, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("sqlstore: commit: %w", err)
	}
	return nil
}

// LoadPoints returns cached rows ordered by indicator, country and year.
func (s *Store) LoadPoints(ctx context.Context, filter store.Filter) ([]model.DataPoint, error) {
	start := time.Now()
	defer func() { s.metrics.RecordStoreQuery("load", time.Since(start)) }()

	query := `SELECT indicator_id, indicator_name, country_id, country_name, country_iso3,
		year, value, unit, obs_status, decimal_places FROM observations`
	var where []string
	var args []interface{}
	if len(filter.Indicators) > 0 {
		where = append(where, "indicator_id IN (?)")
		args = append(args, filter.Indicators)
	}
	if len(filter.Countries) > 0 {
		where = append(where, "country_iso3 IN (?)")
		args = append(args, filter.Countries)
	}
	if filter.Date != nil {
		where = append(where, "year BETWEEN ? AND ?")
		args = append(args, filter.Date.Start, filter.Date.End)
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY indicator_id, country_iso3, year"

	query, args, err := sqlx.In(query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: build query: %w", err)
	}

	var rows []pointRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("sqlstore: load: %w", err)
	}

	points := make([]model.DataPoint, len(rows))
	for i, r := range rows {
		points[i] = r.point()
	}
	return points, nil
}

func (s *Store) migrate() error {
	var statements []string
	if s.driver == driverSQLite {
		statements = append(statements, `PRAGMA journal_mode = WAL;`)
	}
	statements = append(statements,
		`CREATE TABLE IF NOT EXISTS observations (
			indicator_id TEXT NOT NULL,
			indicator_name TEXT NOT NULL,
			country_id TEXT NOT NULL,
			country_name TEXT NOT NULL,
			country_iso3 TEXT NOT NULL,
			year INTEGER NOT NULL,
			value DOUBLE PRECISION,
			unit TEXT,
			obs_status TEXT,
			decimal_places INTEGER,
			fetched_at TEXT NOT NULL,
			PRIMARY KEY (indicator_id, country_iso3, year)
		);`,
	)

	for _, statement := range statements {
		if _, err := s.db.Exec(statement); err != nil {
			return fmt.Errorf("sqlstore: migrate: %w", err)
		}
	}
	return nil
}

var _ store.Store = (*Store)(nil)
