package store

import (
	"database/sql"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/merval-data/internal/types"
	"github.com/rxtech-lab/merval-data/pkg/errors"
	"go.uber.org/zap"
)

// Coverage describes the stored historical span for one symbol, computed over
// primary-index bars only so duplicate-date rows are not double counted.
type Coverage struct {
	First time.Time
	Last  time.Time
	Bars  int
}

const daysPerYear = 365.25

// Years returns the calendar-year span between the earliest and latest bar.
// A symbol with fewer than one bar covers zero years.
func (c Coverage) Years() float64 {
	if c.Bars == 0 {
		return 0
	}

	return c.Last.Sub(c.First).Hours() / 24 / daysPerYear
}

// UpsertBars inserts or replaces bars keyed by (symbol, date, dup_index).
// Replays with overlapping data are idempotent; the most recent write wins on
// identical keys. Returns the number of bars written.
func (s *Store) UpsertBars(bars []types.Bar) (int, error) {
	if len(bars) == 0 {
		return 0, nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeWriteFailed, "failed to begin transaction", err)
	}

	stmt, err := tx.Prepare(`
		INSERT OR REPLACE INTO bars (symbol, date, unix_ts, open, high, low, close, volume, dup_index, source)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()

		return 0, errors.Wrap(errors.ErrCodeWriteFailed, "failed to prepare bar upsert", err)
	}

	for _, b := range bars {
		_, err = stmt.Exec(b.Symbol, b.Date, b.Timestamp, b.Open, b.High, b.Low, b.Close, b.Volume, b.DupIndex, b.Source)
		if err != nil {
			stmt.Close()
			tx.Rollback()

			return 0, errors.Wrapf(errors.ErrCodeWriteFailed, err, "failed to upsert bar %s/%s", b.Symbol, b.Date)
		}
	}

	if err := stmt.Close(); err != nil {
		tx.Rollback()

		return 0, errors.Wrap(errors.ErrCodeWriteFailed, "failed to close statement", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, errors.Wrap(errors.ErrCodeWriteFailed, "failed to commit bars", err)
	}

	s.logger.Debug("bars upserted",
		zap.String("symbol", bars[0].Symbol),
		zap.Int("count", len(bars)))

	return len(bars), nil
}

// CoverageFor computes the stored span for a symbol over primary-index bars.
func (s *Store) CoverageFor(symbol string) (Coverage, error) {
	var (
		minDate sql.NullString
		maxDate sql.NullString
		count   int
	)

	row := s.db.QueryRow(
		`SELECT MIN(date), MAX(date), COUNT(*) FROM bars WHERE symbol = $1 AND dup_index = 0`,
		symbol,
	)
	if err := row.Scan(&minDate, &maxDate, &count); err != nil {
		return Coverage{}, errors.Wrapf(errors.ErrCodeQueryFailed, err, "coverage query failed for %s", symbol)
	}

	if count == 0 || !minDate.Valid || !maxDate.Valid {
		return Coverage{}, nil
	}

	first, err := time.Parse(types.DateLayout, minDate.String)
	if err != nil {
		return Coverage{}, errors.Wrapf(errors.ErrCodeQueryFailed, err, "bad min date %q for %s", minDate.String, symbol)
	}

	last, err := time.Parse(types.DateLayout, maxDate.String)
	if err != nil {
		return Coverage{}, errors.Wrapf(errors.ErrCodeQueryFailed, err, "bad max date %q for %s", maxDate.String, symbol)
	}

	return Coverage{First: first, Last: last, Bars: count}, nil
}

// HasBars reports whether any bar exists for the symbol.
func (s *Store) HasBars(symbol string) (bool, error) {
	var count int

	row := s.db.QueryRow(`SELECT COUNT(*) FROM bars WHERE symbol = $1 LIMIT 1`, symbol)
	if err := row.Scan(&count); err != nil {
		return false, errors.Wrapf(errors.ErrCodeQueryFailed, err, "existence query failed for %s", symbol)
	}

	return count > 0, nil
}

// BarsFor returns the stored bars for a symbol ordered by date ascending.
// Optional bounds restrict the calendar-date range (inclusive).
func (s *Store) BarsFor(symbol string, from optional.Option[time.Time], to optional.Option[time.Time]) ([]types.Bar, error) {
	query := s.sq.
		Select("symbol", "date", "unix_ts", "open", "high", "low", "close", "volume", "dup_index", "source").
		From("bars").
		Where(squirrel.Eq{"symbol": symbol}).
		OrderBy("date ASC", "dup_index ASC")

	if from.IsSome() {
		query = query.Where(squirrel.GtOrEq{"date": from.Unwrap().Format(types.DateLayout)})
	}

	if to.IsSome() {
		query = query.Where(squirrel.LtOrEq{"date": to.Unwrap().Format(types.DateLayout)})
	}

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to build bars query", err)
	}

	rows, err := s.db.Query(sqlStr, args...)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeQueryFailed, err, "bars query failed for %s", symbol)
	}
	defer rows.Close()

	var bars []types.Bar

	for rows.Next() {
		var b types.Bar

		err := rows.Scan(&b.Symbol, &b.Date, &b.Timestamp, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume, &b.DupIndex, &b.Source)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan bar row", err)
		}

		bars = append(bars, b)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "bar row iteration failed", err)
	}

	return bars, nil
}
