package store

import (
	"database/sql"

	"github.com/Masterminds/squirrel"
	"github.com/rxtech-lab/merval-data/internal/types"
	"github.com/rxtech-lab/merval-data/pkg/errors"
)

// AppendAudit appends one acquisition attempt to the audit log. Entries are
// append-only; nothing in the engine updates or deletes them.
func (s *Store) AppendAudit(entry types.AuditEntry) error {
	var errMsg any
	if entry.ErrorMsg != "" {
		errMsg = entry.ErrorMsg
	}

	sqlStr, args, err := s.sq.
		Insert("audit_log").
		Columns("run_id", "symbol", "started_at", "finished_at", "status", "bars_found", "bars_stored", "error_msg", "source").
		Values(entry.RunID, entry.Symbol, entry.StartedAt.UTC(), entry.FinishedAt.UTC(),
			string(entry.Status), entry.BarsFound, entry.BarsStored, errMsg, entry.Source).
		ToSql()
	if err != nil {
		return errors.Wrap(errors.ErrCodeAuditWriteFailed, "failed to build audit insert", err)
	}

	if _, err := s.db.Exec(sqlStr, args...); err != nil {
		return errors.Wrapf(errors.ErrCodeAuditWriteFailed, err, "failed to append audit entry for %s", entry.Symbol)
	}

	return nil
}

// AuditFor returns the audit trail for one symbol in append order.
func (s *Store) AuditFor(symbol string) ([]types.AuditEntry, error) {
	sqlStr, args, err := s.sq.
		Select("id", "run_id", "symbol", "started_at", "finished_at", "status", "bars_found", "bars_stored", "error_msg", "source").
		From("audit_log").
		Where(squirrel.Eq{"symbol": symbol}).
		OrderBy("id ASC").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to build audit query", err)
	}

	rows, err := s.db.Query(sqlStr, args...)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeQueryFailed, err, "audit query failed for %s", symbol)
	}
	defer rows.Close()

	var entries []types.AuditEntry

	for rows.Next() {
		var (
			e        types.AuditEntry
			status   string
			errMsg   sql.NullString
			source   sql.NullString
			runID    sql.NullString
			finished sql.NullTime
		)

		err := rows.Scan(&e.ID, &runID, &e.Symbol, &e.StartedAt, &finished, &status, &e.BarsFound, &e.BarsStored, &errMsg, &source)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan audit row", err)
		}

		e.Status = types.AuditStatus(status)
		e.RunID = runID.String
		e.ErrorMsg = errMsg.String
		e.Source = source.String

		if finished.Valid {
			e.FinishedAt = finished.Time
		}

		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "audit row iteration failed", err)
	}

	return entries, nil
}
