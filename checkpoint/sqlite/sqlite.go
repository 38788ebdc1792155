// Package sqlite provides a core.CheckpointStore backed by a SQLite database
// through zombiezen.com/go/sqlite. Each thread's history is stored as one JSON
// document keyed by thread id.
package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/hupe1980/agentkernel/core"
	"github.com/hupe1980/agentkernel/logging"
)

const schema = `
CREATE TABLE IF NOT EXISTS checkpoints (
	id         TEXT PRIMARY KEY,
	data       TEXT NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
`

var _ core.CheckpointStore = (*Store)(nil)

// Options configures the SQLite store.
type Options struct {
	// PoolSize is the number of pooled connections. Defaults to
	// max(runtime.NumCPU(), 4); use 1 for ":memory:" databases since every
	// in-memory connection is an independent database.
	PoolSize int
	Logger   logging.Logger
}

// Store is a CheckpointStore persisting histories in SQLite. It is safe for
// concurrent use; each operation borrows its own pooled connection.
type Store struct {
	pool   *sqlitex.Pool
	path   string
	logger logging.Logger
}

// Open opens (and creates if needed) the database at path and ensures the
// checkpoints table exists.
func Open(path string, optFns ...func(o *Options)) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("checkpoint/sqlite: path is required")
	}
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.PoolSize <= 0 {
		opts.PoolSize = runtime.NumCPU()
		if opts.PoolSize < 4 {
			opts.PoolSize = 4
		}
	}

	pool, err := sqlitex.NewPool(path, sqlitex.PoolOptions{
		PoolSize:    opts.PoolSize,
		PrepareConn: prepareConnection,
	})
	if err != nil {
		return nil, fmt.Errorf("checkpoint/sqlite: opening %s: %w", path, err)
	}

	logger := logging.OrNoOp(opts.Logger)
	logger.Info("checkpoint.sqlite.opened", "path", path, "pool_size", opts.PoolSize)

	return &Store{pool: pool, path: path, logger: logger}, nil
}

func prepareConnection(conn *sqlite.Conn) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
			return fmt.Errorf("checkpoint/sqlite: %s: %w", pragma, err)
		}
	}
	if err := sqlitex.ExecuteScript(conn, schema, nil); err != nil {
		return fmt.Errorf("checkpoint/sqlite: schema: %w", err)
	}
	return nil
}

// Load returns the stored history of threadID.
func (s *Store) Load(ctx context.Context, threadID string) ([]core.Message, bool, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("checkpoint/sqlite: take: %w", err)
	}
	defer s.pool.Put(conn)

	var (
		data  string
		found bool
	)
	err = sqlitex.Execute(conn, `SELECT data FROM checkpoints WHERE id = ?`, &sqlitex.ExecOptions{
		Args: []any{threadID},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			data = stmt.ColumnText(0)
			found = true
			return nil
		},
	})
	if err != nil {
		return nil, false, fmt.Errorf("checkpoint/sqlite: load %s: %w", threadID, err)
	}
	if !found {
		return nil, false, nil
	}

	var msgs []core.Message
	if err := json.Unmarshal([]byte(data), &msgs); err != nil {
		return nil, false, fmt.Errorf("checkpoint/sqlite: decode %s: %w", threadID, err)
	}
	return msgs, true, nil
}

// Save upserts the history of threadID. created_at is kept from the first save.
func (s *Store) Save(ctx context.Context, threadID string, msgs []core.Message) error {
	if msgs == nil {
		msgs = []core.Message{}
	}
	data, err := json.Marshal(msgs)
	if err != nil {
		return fmt.Errorf("checkpoint/sqlite: encode %s: %w", threadID, err)
	}

	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("checkpoint/sqlite: take: %w", err)
	}
	defer s.pool.Put(conn)

	now := time.Now().UTC().Format(time.RFC3339Nano)
	err = sqlitex.Execute(conn, `
		INSERT INTO checkpoints (id, data, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		&sqlitex.ExecOptions{Args: []any{threadID, string(data), now, now}},
	)
	if err != nil {
		return fmt.Errorf("checkpoint/sqlite: save %s: %w", threadID, err)
	}
	s.logger.Debug("checkpoint.sqlite.saved", "thread_id", threadID, "messages", len(msgs))
	return nil
}

// Delete removes the checkpoint of threadID.
func (s *Store) Delete(ctx context.Context, threadID string) error {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("checkpoint/sqlite: take: %w", err)
	}
	defer s.pool.Put(conn)

	if err := sqlitex.Execute(conn, `DELETE FROM checkpoints WHERE id = ?`, &sqlitex.ExecOptions{
		Args: []any{threadID},
	}); err != nil {
		return fmt.Errorf("checkpoint/sqlite: delete %s: %w", threadID, err)
	}
	return nil
}

// Threads lists stored thread ids ordered by most recent update.
func (s *Store) Threads(ctx context.Context) ([]string, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("checkpoint/sqlite: take: %w", err)
	}
	defer s.pool.Put(conn)

	var ids []string
	err = sqlitex.Execute(conn, `SELECT id FROM checkpoints ORDER BY updated_at DESC, id`, &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			ids = append(ids, stmt.ColumnText(0))
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("checkpoint/sqlite: list: %w", err)
	}
	return ids, nil
}

// Close closes all pooled connections.
func (s *Store) Close() error {
	if err := s.pool.Close(); err != nil {
		s.logger.Error("checkpoint.sqlite.close_error", "path", s.path, "error", err.Error())
		return fmt.Errorf("checkpoint/sqlite: closing %s: %w", s.path, err)
	}
	return nil
}
