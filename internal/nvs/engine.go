// ABOUTME: SQLite-backed key/value engine standing in for the board's flash partition
// ABOUTME: Namespaced, type-tagged entries (i32, u32, str) with flash-style size limits

package nvs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Entry limits inherited from the flash layout.
const (
	MaxNameLength   = 15
	MaxStringLength = 4000
)

var (
	// ErrNotFound is returned when a key does not exist in the namespace.
	ErrNotFound = errors.New("key not found")

	// ErrTypeMismatch is returned when a key exists under a different type tag.
	ErrTypeMismatch = errors.New("type mismatch")

	// ErrInvalidLength is returned by GetString when the buffer is too small.
	// The returned length is the size the caller must provide.
	ErrInvalidLength = errors.New("buffer too small")

	// ErrInvalidName is returned for empty or over-long keys and namespaces.
	ErrInvalidName = errors.New("invalid name")

	// ErrValueTooLong is returned when a string exceeds MaxStringLength.
	ErrValueTooLong = errors.New("value too long")

	// ErrCorrupt is returned by Open when the backing file is not a usable database.
	ErrCorrupt = errors.New("storage corrupt")

	// ErrClosed is returned by operations on a closed namespace.
	ErrClosed = errors.New("namespace closed")
)

// Type tags stored with each entry.
const (
	TypeI32 = "i32"
	TypeU32 = "u32"
	TypeStr = "str"
)

// Engine is the persistent key/value engine. One Engine owns one file.
type Engine struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// Open opens (creating if needed) the engine file at path.
// Parent directories are created if needed. A file that exists but is not
// a database yields an error wrapping ErrCorrupt.
func Open(path string) (*Engine, error) {
	logger := slog.Default().With("component", "nvs")

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("creating storage directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}
	// Single writer, like the flash it emulates; also keeps :memory: on one connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, classify("enabling WAL mode", err)
	}

	e := &Engine{
		db:     db,
		path:   path,
		logger: logger,
	}

	if err := e.createSchema(); err != nil {
		db.Close()
		return nil, classify("creating schema", err)
	}

	logger.Debug("storage engine opened", "path", path)
	return e, nil
}

// Erase removes the engine file and its WAL side files.
func Erase(path string) error {
	for _, p := range []string{path, path + "-wal", path + "-shm"} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("erasing %s: %w", p, err)
		}
	}
	return nil
}

func classify(op string, err error) error {
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() & 0xff {
		case sqlite3.SQLITE_NOTADB, sqlite3.SQLITE_CORRUPT:
			return fmt.Errorf("%s: %w: %v", op, ErrCorrupt, err)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (e *Engine) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS entries (
			namespace  TEXT NOT NULL,
			key        TEXT NOT NULL,
			type       TEXT NOT NULL,
			int_value  INTEGER,
			str_value  TEXT,
			updated_at TEXT NOT NULL,

			PRIMARY KEY (namespace, key),
			CHECK (type IN ('i32', 'u32', 'str'))
		);
	`
	_, err := e.db.Exec(schema)
	return err
}

// Close releases the database.
func (e *Engine) Close() error {
	e.logger.Debug("storage engine closed", "path", e.path)
	return e.db.Close()
}

// OpenNamespace returns a read-write view of one namespace.
func (e *Engine) OpenNamespace(name string) (*Namespace, error) {
	if err := validName(name); err != nil {
		return nil, fmt.Errorf("namespace %q: %w", name, err)
	}
	return &Namespace{engine: e, name: name}, nil
}

func validName(name string) error {
	if name == "" || len(name) > MaxNameLength {
		return ErrInvalidName
	}
	return nil
}

// Namespace is an open handle to one namespace of the engine.
type Namespace struct {
	engine *Engine
	name   string
	closed bool
}

// Close invalidates the handle. The engine stays open.
func (n *Namespace) Close() error {
	n.closed = true
	return nil
}

func (n *Namespace) check(key string) error {
	if n.closed {
		return ErrClosed
	}
	if err := validName(key); err != nil {
		return fmt.Errorf("key %q: %w", key, err)
	}
	return nil
}

// lookup fetches the raw entry for key, enforcing its type tag.
func (n *Namespace) lookup(ctx context.Context, key, typ string) (sql.NullInt64, sql.NullString, error) {
	var (
		gotType string
		num     sql.NullInt64
		str     sql.NullString
	)
	err := n.engine.db.QueryRowContext(ctx,
		`SELECT type, int_value, str_value FROM entries WHERE namespace = ? AND key = ?`,
		n.name, key,
	).Scan(&gotType, &num, &str)
	if errors.Is(err, sql.ErrNoRows) {
		return num, str, ErrNotFound
	}
	if err != nil {
		return num, str, fmt.Errorf("reading %q: %w", key, err)
	}
	if gotType != typ {
		return num, str, fmt.Errorf("%w: %q is %s, not %s", ErrTypeMismatch, key, gotType, typ)
	}
	return num, str, nil
}

func (n *Namespace) put(ctx context.Context, key, typ string, num sql.NullInt64, str sql.NullString) error {
	_, err := n.engine.db.ExecContext(ctx, `
		INSERT INTO entries (namespace, key, type, int_value, str_value, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (namespace, key) DO UPDATE SET
			type = excluded.type,
			int_value = excluded.int_value,
			str_value = excluded.str_value,
			updated_at = excluded.updated_at
	`, n.name, key, typ, num, str, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("writing %q: %w", key, err)
	}
	return nil
}

// GetInt32 reads a signed 32-bit entry.
func (n *Namespace) GetInt32(ctx context.Context, key string) (int32, error) {
	if err := n.check(key); err != nil {
		return 0, err
	}
	num, _, err := n.lookup(ctx, key, TypeI32)
	if err != nil {
		return 0, err
	}
	return int32(num.Int64), nil
}

// SetInt32 writes a signed 32-bit entry.
func (n *Namespace) SetInt32(ctx context.Context, key string, v int32) error {
	if err := n.check(key); err != nil {
		return err
	}
	return n.put(ctx, key, TypeI32, sql.NullInt64{Int64: int64(v), Valid: true}, sql.NullString{})
}

// GetUint32 reads an unsigned 32-bit entry.
func (n *Namespace) GetUint32(ctx context.Context, key string) (uint32, error) {
	if err := n.check(key); err != nil {
		return 0, err
	}
	num, _, err := n.lookup(ctx, key, TypeU32)
	if err != nil {
		return 0, err
	}
	return uint32(num.Int64), nil
}

// SetUint32 writes an unsigned 32-bit entry.
func (n *Namespace) SetUint32(ctx context.Context, key string, v uint32) error {
	if err := n.check(key); err != nil {
		return err
	}
	return n.put(ctx, key, TypeU32, sql.NullInt64{Int64: int64(v), Valid: true}, sql.NullString{})
}

// GetString copies a string entry into buf followed by a zero byte and
// returns the number of bytes used (len(value)+1).
//
// If buf is nil only the required length is returned. If buf is too small
// the required length is returned together with ErrInvalidLength.
func (n *Namespace) GetString(ctx context.Context, key string, buf []byte) (int, error) {
	if err := n.check(key); err != nil {
		return 0, err
	}
	_, str, err := n.lookup(ctx, key, TypeStr)
	if err != nil {
		return 0, err
	}

	required := len(str.String) + 1
	if buf == nil {
		return required, nil
	}
	if len(buf) < required {
		return required, ErrInvalidLength
	}
	copy(buf, str.String)
	buf[required-1] = 0
	return required, nil
}

// SetString writes a string entry.
func (n *Namespace) SetString(ctx context.Context, key, v string) error {
	if err := n.check(key); err != nil {
		return err
	}
	if len(v) > MaxStringLength {
		return fmt.Errorf("key %q: %w (%d bytes)", key, ErrValueTooLong, len(v))
	}
	return n.put(ctx, key, TypeStr, sql.NullInt64{}, sql.NullString{String: v, Valid: true})
}

// EraseKey removes one entry. Missing keys yield ErrNotFound.
func (n *Namespace) EraseKey(ctx context.Context, key string) error {
	if err := n.check(key); err != nil {
		return err
	}
	res, err := n.engine.db.ExecContext(ctx,
		`DELETE FROM entries WHERE namespace = ? AND key = ?`, n.name, key)
	if err != nil {
		return fmt.Errorf("erasing %q: %w", key, err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return ErrNotFound
	}
	return nil
}

// EraseAll removes every entry of the namespace.
func (n *Namespace) EraseAll(ctx context.Context) error {
	if n.closed {
		return ErrClosed
	}
	if _, err := n.engine.db.ExecContext(ctx,
		`DELETE FROM entries WHERE namespace = ?`, n.name); err != nil {
		return fmt.Errorf("erasing namespace %q: %w", n.name, err)
	}
	return nil
}
