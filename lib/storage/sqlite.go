// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package storage

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/bureau-foundation/casfs/lib/nodekey"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS nodes (
	key  TEXT PRIMARY KEY,
	data BLOB
) WITHOUT ROWID;
`

// sqlitePragmas are applied to every pooled connection. WAL lets
// readers proceed while a writer holds the database.
var sqlitePragmas = []string{
	"PRAGMA busy_timeout=5000",
	"PRAGMA journal_mode=WAL",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA cache_size=-8192",
	"PRAGMA temp_store=MEMORY",
}

// SQLiteConfig configures [OpenSQLite].
type SQLiteConfig struct {
	// Path is the database file. It is created if missing; the parent
	// directory must exist.
	Path string

	// PoolSize defaults to max(runtime.NumCPU(), 4).
	PoolSize int

	Logger *slog.Logger
}

// SQLite stores nodes in a single table of a SQLite database, accessed
// through a connection pool.
type SQLite struct {
	pool   *sqlitex.Pool
	logger *slog.Logger
	path   string
}

// OpenSQLite opens the database and creates the node table. The caller
// must Close the returned store.
func OpenSQLite(config SQLiteConfig) (*SQLite, error) {
	if config.Path == "" {
		return nil, fmt.Errorf("sqlite store: Path is required")
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	poolSize := config.PoolSize
	if poolSize <= 0 {
		poolSize = max(runtime.NumCPU(), 4)
	}

	pool, err := sqlitex.NewPool(config.Path, sqlitex.PoolOptions{
		PoolSize:    poolSize,
		PrepareConn: prepareSQLiteConn,
	})
	if err != nil {
		return nil, fmt.Errorf("sqlite store: opening %s: %w", config.Path, err)
	}

	logger.Info("sqlite store opened", "path", config.Path, "pool_size", poolSize)
	return &SQLite{pool: pool, logger: logger, path: config.Path}, nil
}

func prepareSQLiteConn(conn *sqlite.Conn) error {
	for _, pragma := range sqlitePragmas {
		if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
			return fmt.Errorf("sqlite store: %s: %w", pragma, err)
		}
	}
	if err := sqlitex.ExecuteScript(conn, sqliteSchema, nil); err != nil {
		return fmt.Errorf("sqlite store: creating schema: %w", err)
	}
	return nil
}

func (s *SQLite) Has(ctx context.Context, key nodekey.Key) (bool, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return false, fmt.Errorf("sqlite store: take: %w", err)
	}
	defer s.pool.Put(conn)

	found := false
	err = sqlitex.Execute(conn, "SELECT 1 FROM nodes WHERE key = ?", &sqlitex.ExecOptions{
		Args: []any{key.String()},
		ResultFunc: func(*sqlite.Stmt) error {
			found = true
			return nil
		},
	})
	if err != nil {
		return false, fmt.Errorf("sqlite store: checking %s: %w", key, err)
	}
	return found, nil
}

func (s *SQLite) Get(ctx context.Context, key nodekey.Key) ([]byte, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("sqlite store: take: %w", err)
	}
	defer s.pool.Put(conn)

	var data []byte
	found := false
	err = sqlitex.Execute(conn, "SELECT data FROM nodes WHERE key = ?", &sqlitex.ExecOptions{
		Args: []any{key.String()},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			data = make([]byte, stmt.ColumnLen(0))
			stmt.ColumnBytes(0, data)
			found = true
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("sqlite store: reading %s: %w", key, err)
	}
	if !found {
		return nil, notFound(key)
	}
	return data, nil
}

func (s *SQLite) Put(ctx context.Context, key nodekey.Key, data []byte) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("sqlite store: take: %w", err)
	}
	defer s.pool.Put(conn)

	err = sqlitex.Execute(conn, "INSERT OR IGNORE INTO nodes (key, data) VALUES (?, ?)", &sqlitex.ExecOptions{
		Args: []any{key.String(), data},
	})
	if err != nil {
		return fmt.Errorf("sqlite store: writing %s: %w", key, err)
	}
	return nil
}

// Close waits for borrowed connections and closes the pool.
func (s *SQLite) Close() error {
	if err := s.pool.Close(); err != nil {
		s.logger.Error("sqlite store close error", "path", s.path, "error", err)
		return fmt.Errorf("sqlite store: closing %s: %w", s.path, err)
	}
	s.logger.Info("sqlite store closed", "path", s.path)
	return nil
}
