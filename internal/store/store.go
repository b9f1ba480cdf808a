// Package store is the local time-series store for mirrored FRED series.
// It keeps one metric row per series (metadata plus the observation_end
// freshness marker), the series' tags, its observations, and a ledger of
// sync runs, all in a single SQLite database.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"sort"
	"time"

	"golang.org/x/text/unicode/norm"
	// Pure-Go SQLite driver (no CGO).
	_ "modernc.org/sqlite"

	"github.com/tonimelisma/fredsync/internal/fred"
)

// SQL statements for metric operations.
const (
	sqlGetMetric = `SELECT series_id, title, observation_end, category_id,
		parent_category_id, updated_at
		FROM metrics WHERE series_id = ?`

	sqlGetTags = `SELECT tag FROM series_tags WHERE series_id = ? ORDER BY tag`

	sqlUpsertMetric = `INSERT INTO metrics
		(series_id, title, observation_start, observation_end, frequency,
		 frequency_short, units, units_short, seasonal_adjustment,
		 seasonal_adjustment_short, last_updated, popularity, group_popularity,
		 notes, category_id, category_name, parent_category_id,
		 parent_category_name, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(series_id) DO UPDATE SET
		 title = excluded.title,
		 observation_start = excluded.observation_start,
		 observation_end = excluded.observation_end,
		 frequency = excluded.frequency,
		 frequency_short = excluded.frequency_short,
		 units = excluded.units,
		 units_short = excluded.units_short,
		 seasonal_adjustment = excluded.seasonal_adjustment,
		 seasonal_adjustment_short = excluded.seasonal_adjustment_short,
		 last_updated = excluded.last_updated,
		 popularity = excluded.popularity,
		 group_popularity = excluded.group_popularity,
		 notes = excluded.notes,
		 category_id = excluded.category_id,
		 category_name = excluded.category_name,
		 parent_category_id = excluded.parent_category_id,
		 parent_category_name = excluded.parent_category_name,
		 updated_at = excluded.updated_at`

	sqlDeleteTags = `DELETE FROM series_tags WHERE series_id = ?`

	sqlInsertTag = `INSERT OR IGNORE INTO series_tags (series_id, tag) VALUES (?, ?)`

	sqlDeleteObservations = `DELETE FROM observations WHERE series_id = ?`

	sqlUpsertObservation = `INSERT INTO observations (series_id, date, value)
		VALUES (?, ?, ?)
		ON CONFLICT(series_id, date) DO UPDATE SET value = excluded.value`

	sqlListObservations = `SELECT date, value FROM observations
		WHERE series_id = ? ORDER BY date`

	sqlCountMetrics = `SELECT COUNT(*) FROM metrics`
)

// Metric is the stored counterpart of a series: what was recorded the last
// time the series was written. ObservationEnd is the freshness marker the
// sync engine compares against; it may be empty or malformed if the row was
// written by something other than fredsync.
type Metric struct {
	SeriesID         string
	Title            string
	ObservationEnd   string
	CategoryID       int
	ParentCategoryID int
	Tags             []string
	UpdatedAt        time.Time
}

// SeriesRecord is everything written for one series in one transaction.
type SeriesRecord struct {
	Series       fred.Series
	Category     fred.Category // primary category
	Parent       fred.Category // parent of the primary category
	Tags         []string
	Observations []fred.Observation
}

// Store is the sole writer to the fredsync database.
type Store struct {
	db      *sql.DB
	logger  *slog.Logger
	nowFunc func() time.Time // injectable for deterministic tests
}

// Open opens the SQLite database at dbPath, runs migrations, and returns a
// ready-to-use store. The database uses WAL mode with synchronous=FULL for
// crash-safe durability.
func Open(ctx context.Context, dbPath string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite", buildDSN(dbPath))
	if err != nil {
		return nil, fmt.Errorf("store: opening database %s: %w", dbPath, err)
	}

	// Sole-writer pattern: only one connection writes at a time.
	db.SetMaxOpenConns(1)

	if err := runMigrations(ctx, db, logger); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("store opened", slog.String("db_path", dbPath))

	return &Store{
		db:      db,
		logger:  logger,
		nowFunc: time.Now,
	}, nil
}

// dsnPragmas apply to every connection from the pool.
const dsnPragmas = "_pragma=journal_mode(WAL)&_pragma=synchronous(FULL)" +
	"&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)"

// buildDSN returns a file: URI for dbPath. The path is percent-escaped so
// URI syntax in a file name stays part of the name. The empty authority is
// omitted so relative paths remain relative.
func buildDSN(dbPath string) string {
	u := url.URL{Scheme: "file", Path: dbPath, OmitHost: true, RawQuery: dsnPragmas}

	return u.String()
}

// Close releases the database connection.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("store: closing database: %w", err)
	}

	return nil
}

// LookupMetric returns the stored metric for a series, or (nil, nil) if the
// series has never been written.
func (s *Store) LookupMetric(ctx context.Context, seriesID string) (*Metric, error) {
	var (
		m         Metric
		updatedAt int64
	)

	err := s.db.QueryRowContext(ctx, sqlGetMetric, seriesID).Scan(
		&m.SeriesID, &m.Title, &m.ObservationEnd, &m.CategoryID,
		&m.ParentCategoryID, &updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil //nolint:nilnil // absent metric is a normal outcome
	}

	if err != nil {
		return nil, fmt.Errorf("store: looking up metric %s: %w", seriesID, err)
	}

	m.UpdatedAt = time.Unix(0, updatedAt)

	tags, err := s.tags(ctx, seriesID)
	if err != nil {
		return nil, err
	}

	m.Tags = tags

	return &m, nil
}

func (s *Store) tags(ctx context.Context, seriesID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, sqlGetTags, seriesID)
	if err != nil {
		return nil, fmt.Errorf("store: loading tags for %s: %w", seriesID, err)
	}
	defer rows.Close()

	var tags []string

	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, fmt.Errorf("store: scanning tag row: %w", err)
		}

		tags = append(tags, tag)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterating tag rows: %w", err)
	}

	return tags, nil
}

// WriteSeries atomically upserts the metric row and replaces both the tag
// set and the observation set, so dates FRED has revised away do not
// linger. Missing observations are stored as NULL.
// Titles and tags are NFC-normalized so lookups by text are stable across
// FRED's occasional mixed normalization.
func (s *Store) WriteSeries(ctx context.Context, rec *SeriesRecord) error {
	if rec == nil || rec.Series.ID == "" {
		return errors.New("store: writing series: empty series id")
	}

	id := rec.Series.ID

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: beginning write for %s: %w", id, err)
	}
	defer tx.Rollback()

	sr := rec.Series

	_, err = tx.ExecContext(ctx, sqlUpsertMetric,
		id, norm.NFC.String(sr.Title), sr.ObservationStart, sr.ObservationEnd,
		sr.Frequency, sr.FrequencyShort, sr.Units, sr.UnitsShort,
		sr.SeasonalAdjustment, sr.SeasonalAdjustmentShort, sr.LastUpdated,
		sr.Popularity, sr.GroupPopularity, sr.Notes,
		rec.Category.ID, norm.NFC.String(rec.Category.Name),
		rec.Parent.ID, norm.NFC.String(rec.Parent.Name),
		s.nowFunc().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("store: upserting metric %s: %w", id, err)
	}

	if _, err := tx.ExecContext(ctx, sqlDeleteTags, id); err != nil {
		return fmt.Errorf("store: clearing tags for %s: %w", id, err)
	}

	for _, tag := range normalizeTags(rec.Tags) {
		if _, err := tx.ExecContext(ctx, sqlInsertTag, id, tag); err != nil {
			return fmt.Errorf("store: inserting tag %q for %s: %w", tag, id, err)
		}
	}

	if _, err := tx.ExecContext(ctx, sqlDeleteObservations, id); err != nil {
		return fmt.Errorf("store: clearing observations for %s: %w", id, err)
	}

	stmt, err := tx.PrepareContext(ctx, sqlUpsertObservation)
	if err != nil {
		return fmt.Errorf("store: preparing observation upsert: %w", err)
	}
	defer stmt.Close()

	for _, o := range rec.Observations {
		var value sql.NullFloat64
		if !o.Missing && !math.IsNaN(o.Value) {
			value = sql.NullFloat64{Float64: o.Value, Valid: true}
		}

		if _, err := stmt.ExecContext(ctx, id, o.Date, value); err != nil {
			return fmt.Errorf("store: upserting observation %s@%s: %w", id, o.Date, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: committing write for %s: %w", id, err)
	}

	s.logger.Debug("series written",
		slog.String("series_id", id),
		slog.String("observation_end", sr.ObservationEnd),
		slog.Int("tags", len(rec.Tags)),
		slog.Int("observations", len(rec.Observations)),
	)

	return nil
}

// normalizeTags NFC-normalizes, drops empties, and sorts tags.
func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = norm.NFC.String(t)
		if t != "" {
			out = append(out, t)
		}
	}

	sort.Strings(out)

	return out
}

// Observations returns the stored observations of a series, oldest first.
func (s *Store) Observations(ctx context.Context, seriesID string) ([]fred.Observation, error) {
	rows, err := s.db.QueryContext(ctx, sqlListObservations, seriesID)
	if err != nil {
		return nil, fmt.Errorf("store: loading observations for %s: %w", seriesID, err)
	}
	defer rows.Close()

	var obs []fred.Observation

	for rows.Next() {
		var (
			date  string
			value sql.NullFloat64
		)

		if err := rows.Scan(&date, &value); err != nil {
			return nil, fmt.Errorf("store: scanning observation row: %w", err)
		}

		o := fred.Observation{Date: date, Value: value.Float64}
		if !value.Valid {
			o.Value = math.NaN()
			o.Missing = true
		}

		obs = append(obs, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterating observation rows: %w", err)
	}

	return obs, nil
}

// CountMetrics returns the number of stored series.
func (s *Store) CountMetrics(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, sqlCountMetrics).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: counting metrics: %w", err)
	}

	return n, nil
}
