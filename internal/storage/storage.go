package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"taskdesk/internal/tasks"
)

// TasksKey is the fixed key prefix collections are stored under.
const TasksKey = "tasks"

// CollectionKey is the kv key holding the collection of the named schema.
// Each schema keeps its own collection, so records are never projected
// onto fields they were not written with.
func CollectionKey(schemaName string) string {
	if schemaName == "" {
		return TasksKey
	}
	return TasksKey + ":" + schemaName
}

type Store struct {
	db  *sql.DB
	key string
}

// Open opens the database at dbPath and binds the store to the collection
// of schemaName.
func Open(dbPath, schemaName string) (*Store, error) {
	if dbPath == "" {
		return nil, errors.New("db path is empty")
	}
	if !strings.HasPrefix(dbPath, "file:") {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, err
		}
	}
	dsn := sqliteDSN(dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db, key: CollectionKey(schemaName)}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) ensureSchema() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS kv (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	updated_at TEXT NOT NULL DEFAULT ''
);`
	_, err := s.db.Exec(ddl)
	return err
}

// Load returns the stored collection, or an empty one on first run.
func (s *Store) Load(ctx context.Context) ([]tasks.Record, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?;`, s.key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return []tasks.Record{}, nil
	}
	if err != nil {
		return nil, tasks.PersistenceError{Op: "load", Err: err}
	}
	recs, err := decodeRecords([]byte(raw))
	if err != nil {
		return nil, tasks.PersistenceError{Op: "load", Err: err}
	}
	return recs, nil
}

// Save replaces the stored collection with records.
func (s *Store) Save(ctx context.Context, records []tasks.Record) error {
	if records == nil {
		records = []tasks.Record{}
	}
	data, err := json.Marshal(records)
	if err != nil {
		return tasks.PersistenceError{Op: "save", Err: err}
	}
	now := time.Now().UTC().Format(time.RFC3339)
	_, err = s.db.ExecContext(ctx, `
INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at;`,
		s.key, string(data), now)
	if err != nil {
		return tasks.PersistenceError{Op: "save", Err: err}
	}
	return nil
}

// UpdatedAt reports when the collection was last saved.
func (s *Store) UpdatedAt(ctx context.Context) (time.Time, bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT updated_at FROM kv WHERE key = ?;`, s.key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, tasks.PersistenceError{Op: "load", Err: err}
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false, nil
	}
	return t, true, nil
}

type storedRecord struct {
	ID     string         `json:"id"`
	Values map[string]any `json:"values"`
}

func decodeRecords(data []byte) ([]tasks.Record, error) {
	var stored []storedRecord
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, err
	}
	out := make([]tasks.Record, 0, len(stored))
	for _, sr := range stored {
		vals := make(map[string]string, len(sr.Values))
		for k, v := range sr.Values {
			vals[k] = stringify(v)
		}
		out = append(out, tasks.Record{ID: sr.ID, Values: vals})
	}
	return out, nil
}

// stringify renders a decoded JSON value without locale or map-order
// dependence.
func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case []any:
		parts := make([]string, len(x))
		for i, e := range x {
			parts[i] = stringify(e)
		}
		return strings.Join(parts, ",")
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + ":" + stringify(x[k])
		}
		return strings.Join(parts, ",")
	default:
		return fmt.Sprint(x)
	}
}

func sqliteDSN(path string) string {
	if strings.HasPrefix(path, "file:") {
		return path
	}
	abs, err := filepath.Abs(path)
	if err == nil {
		path = abs
	}
	u := url.URL{
		Scheme: "file",
		Path:   path,
	}
	q := u.Query()
	q.Set("mode", "rwc")
	q.Set("_pragma", "busy_timeout(5000)")
	u.RawQuery = q.Encode()
	return u.String()
}
