// Package store implements the durable keyed storage for instruments, OHLCV
// bars and the download audit log, backed by an embedded DuckDB database.
package store

import (
	"database/sql"
	"os"
	"path/filepath"
	"sync"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/rxtech-lab/merval-data/internal/logger"
	"github.com/rxtech-lab/merval-data/pkg/errors"
	"go.uber.org/zap"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS instruments (
	id              BIGINT PRIMARY KEY,
	name            TEXT NOT NULL,
	symbol          TEXT NOT NULL UNIQUE,
	category        TEXT NOT NULL,
	settlement_type TEXT,
	enabled         BOOLEAN NOT NULL,
	description     TEXT,
	acquired_at     TIMESTAMP,
	bar_count       INTEGER DEFAULT 0,
	primary_source  TEXT
);

CREATE TABLE IF NOT EXISTS bars (
	symbol    TEXT NOT NULL,
	date      TEXT NOT NULL,
	unix_ts   BIGINT NOT NULL,
	open      DOUBLE NOT NULL,
	high      DOUBLE NOT NULL,
	low       DOUBLE NOT NULL,
	close     DOUBLE NOT NULL,
	volume    BIGINT NOT NULL,
	dup_index INTEGER NOT NULL DEFAULT 0,
	source    TEXT NOT NULL,
	PRIMARY KEY (symbol, date, dup_index)
);

CREATE INDEX IF NOT EXISTS idx_bars_symbol ON bars(symbol);
CREATE INDEX IF NOT EXISTS idx_bars_date ON bars(date);

CREATE SEQUENCE IF NOT EXISTS audit_log_id_seq;

CREATE TABLE IF NOT EXISTS audit_log (
	id          BIGINT PRIMARY KEY DEFAULT nextval('audit_log_id_seq'),
	run_id      TEXT,
	symbol      TEXT NOT NULL,
	started_at  TIMESTAMP NOT NULL,
	finished_at TIMESTAMP,
	status      TEXT NOT NULL,
	bars_found  INTEGER DEFAULT 0,
	bars_stored INTEGER DEFAULT 0,
	error_msg   TEXT,
	source      TEXT
);
`

// Store provides idempotent upserts and coverage queries over the embedded
// database. A single Store handle is safe to share across the whole run; the
// auto-id-assignment step is mutex-guarded for concurrent reconcilers.
type Store struct {
	db     *sql.DB
	logger *logger.Logger
	sq     squirrel.StatementBuilderType
	idMu   sync.Mutex
}

// Open opens (creating if necessary) the database at path and ensures the
// schema exists.
func Open(path string, log *logger.Logger) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrapf(errors.ErrCodeStoreUnavailable, err, "failed to create data directory %s", dir)
		}
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeStoreUnavailable, err, "failed to open database at %s", path)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()

		return nil, errors.Wrap(errors.ErrCodeStoreUnavailable, "failed to initialize schema", err)
	}

	log.Debug("store opened", zap.String("path", path))

	return &Store{
		db:     db,
		logger: log,
		sq:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
