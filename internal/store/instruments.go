package store

import (
	"database/sql"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/rxtech-lab/merval-data/internal/types"
	"github.com/rxtech-lab/merval-data/pkg/errors"
)

// UpsertInstrument inserts a new instrument row or updates the registry
// fields of an existing one, keyed by symbol. Acquisition metadata
// (acquired_at, bar_count, primary_source) is left untouched on update.
func (s *Store) UpsertInstrument(inst types.Instrument) error {
	_, exists, err := s.GetInstrument(inst.Symbol)
	if err != nil {
		return err
	}

	if exists {
		sqlStr, args, err := s.sq.
			Update("instruments").
			Set("name", inst.Name).
			Set("category", string(inst.Category)).
			Set("settlement_type", inst.SettlementType).
			Set("enabled", inst.Enabled).
			Set("description", inst.Description).
			Where(squirrel.Eq{"symbol": inst.Symbol}).
			ToSql()
		if err != nil {
			return errors.Wrap(errors.ErrCodeWriteFailed, "failed to build instrument update", err)
		}

		if _, err := s.db.Exec(sqlStr, args...); err != nil {
			return errors.Wrapf(errors.ErrCodeWriteFailed, err, "failed to update instrument %s", inst.Symbol)
		}

		return nil
	}

	sqlStr, args, err := s.sq.
		Insert("instruments").
		Columns("id", "name", "symbol", "category", "settlement_type", "enabled", "description", "bar_count").
		Values(inst.ID, inst.Name, inst.Symbol, string(inst.Category), inst.SettlementType, inst.Enabled, inst.Description, 0).
		ToSql()
	if err != nil {
		return errors.Wrap(errors.ErrCodeWriteFailed, "failed to build instrument insert", err)
	}

	if _, err := s.db.Exec(sqlStr, args...); err != nil {
		return errors.Wrapf(errors.ErrCodeWriteFailed, err, "failed to insert instrument %s", inst.Symbol)
	}

	return nil
}

// GetInstrument looks up one instrument by its case-normalized symbol.
func (s *Store) GetInstrument(symbol string) (types.Instrument, bool, error) {
	row := s.db.QueryRow(`
		SELECT id, name, symbol, category, COALESCE(settlement_type, ''), enabled,
		       COALESCE(description, ''), acquired_at, COALESCE(bar_count, 0),
		       COALESCE(primary_source, '')
		FROM instruments WHERE symbol = $1
	`, symbol)

	inst, err := scanInstrument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Instrument{}, false, nil
		}

		return types.Instrument{}, false, errors.Wrapf(errors.ErrCodeQueryFailed, err, "instrument lookup failed for %s", symbol)
	}

	return inst, true, nil
}

// ListInstruments returns instruments ordered by symbol, optionally
// restricted to enabled rows.
func (s *Store) ListInstruments(enabledOnly bool) ([]types.Instrument, error) {
	query := `
		SELECT id, name, symbol, category, COALESCE(settlement_type, ''), enabled,
		       COALESCE(description, ''), acquired_at, COALESCE(bar_count, 0),
		       COALESCE(primary_source, '')
		FROM instruments
	`
	if enabledOnly {
		query += ` WHERE enabled`
	}

	query += ` ORDER BY symbol`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "instrument list query failed", err)
	}
	defer rows.Close()

	var instruments []types.Instrument

	for rows.Next() {
		inst, err := scanInstrument(rows)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan instrument row", err)
		}

		instruments = append(instruments, inst)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "instrument row iteration failed", err)
	}

	return instruments, nil
}

// AllocateInstrumentID assigns the next registry id as max(id)+1. The
// allocation is mutex-guarded so concurrent reconcilers cannot hand out the
// same id twice.
func (s *Store) AllocateInstrumentID() (int64, error) {
	s.idMu.Lock()
	defer s.idMu.Unlock()

	var maxID int64

	row := s.db.QueryRow(`SELECT COALESCE(MAX(id), 0) FROM instruments`)
	if err := row.Scan(&maxID); err != nil {
		return 0, errors.Wrap(errors.ErrCodeQueryFailed, "max id query failed", err)
	}

	return maxID + 1, nil
}

// MarkAcquired records the result of a successful acquisition on the
// instrument row.
func (s *Store) MarkAcquired(symbol string, barCount int, primarySource string, at time.Time) error {
	sqlStr, args, err := s.sq.
		Update("instruments").
		Set("acquired_at", at.UTC()).
		Set("bar_count", barCount).
		Set("primary_source", primarySource).
		Where(squirrel.Eq{"symbol": symbol}).
		ToSql()
	if err != nil {
		return errors.Wrap(errors.ErrCodeWriteFailed, "failed to build acquisition update", err)
	}

	if _, err := s.db.Exec(sqlStr, args...); err != nil {
		return errors.Wrapf(errors.ErrCodeWriteFailed, err, "failed to mark %s acquired", symbol)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInstrument(row rowScanner) (types.Instrument, error) {
	var (
		inst       types.Instrument
		category   string
		acquiredAt sql.NullTime
	)

	err := row.Scan(&inst.ID, &inst.Name, &inst.Symbol, &category, &inst.SettlementType,
		&inst.Enabled, &inst.Description, &acquiredAt, &inst.BarCount, &inst.PrimarySource)
	if err != nil {
		return types.Instrument{}, err
	}

	inst.Category = types.Category(category)
	if acquiredAt.Valid {
		inst.AcquiredAt = acquiredAt.Time
	}

	return inst, nil
}
