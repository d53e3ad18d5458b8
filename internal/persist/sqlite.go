//go:build sqlite

package persist

import (
	"context"
	"database/sql"
	"errors"
	"sync"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists context-store and negative-registry snapshots as
// opaque blobs keyed by run ID.
type SQLiteStore struct {
	path string

	mu sync.RWMutex
	db *sql.DB
}

func NewSQLiteStore(path string) *SQLiteStore {
	return &SQLiteStore{path: path}
}

func newSQLiteStore(path string) (Store, error) {
	return NewSQLiteStore(path), nil
}

func (s *SQLiteStore) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		return errors.New("sqlite path is required")
	}
	if s.db != nil {
		return nil
	}

	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return err
	}
	if err := createTables(ctx, db); err != nil {
		_ = db.Close()
		return err
	}
	s.db = db
	return nil
}

func createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS context_snapshots (
			run_id TEXT PRIMARY KEY,
			data BLOB NOT NULL
		);
		CREATE TABLE IF NOT EXISTS negative_snapshots (
			run_id TEXT PRIMARY KEY,
			data BLOB NOT NULL
		);
	`)
	return err
}

func (s *SQLiteStore) getDB() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, errors.New("store not initialized")
	}
	return s.db, nil
}

func (s *SQLiteStore) SaveContextSnapshot(ctx context.Context, runID string, data []byte) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `INSERT INTO context_snapshots(run_id, data) VALUES (?, ?)
		ON CONFLICT(run_id) DO UPDATE SET data=excluded.data`, runID, data)
	return err
}

func (s *SQLiteStore) GetContextSnapshot(ctx context.Context, runID string) ([]byte, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, false, err
	}
	var data []byte
	err = db.QueryRowContext(ctx, `SELECT data FROM context_snapshots WHERE run_id = ?`, runID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (s *SQLiteStore) SaveNegativeSnapshot(ctx context.Context, runID string, data []byte) error {
	db, err := s.getDB()
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, `INSERT INTO negative_snapshots(run_id, data) VALUES (?, ?)
		ON CONFLICT(run_id) DO UPDATE SET data=excluded.data`, runID, data)
	return err
}

func (s *SQLiteStore) GetNegativeSnapshot(ctx context.Context, runID string) ([]byte, bool, error) {
	db, err := s.getDB()
	if err != nil {
		return nil, false, err
	}
	var data []byte
	err = db.QueryRowContext(ctx, `SELECT data FROM negative_snapshots WHERE run_id = ?`, runID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
