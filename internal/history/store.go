// Package history keeps a local record of the datasets loaded and the
// session snapshots saved, backed by SQLite. It stores handles and
// metadata only; the data itself stays on the remote service.
package history

import (
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/skylens-io/skylens/pkg/core"
)

//go:embed schema.sql
var schemaSQL string

// Dataset is one remembered dataset load.
type Dataset struct {
	ID          string
	Handle      core.Handle
	Name        string
	Description string
	LoadedAt    time.Time
}

// Snapshot is one remembered saved-session file.
type Snapshot struct {
	ID            string
	DatasetHandle core.Handle
	Path          string
	PageCount     int
	SavedAt       time.Time
}

// Store is the SQLite-backed history store.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates an unopened store.
func NewStore() *Store {
	return &Store{}
}

// Open opens the database at path. Use ":memory:" for an in-memory store.
func (s *Store) Open(path string) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("opening history database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return fmt.Errorf("pinging history database: %w", err)
	}
	s.db = db
	s.path = path
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// InitSchema creates the tables if they do not exist.
func (s *Store) InitSchema() error {
	if s.db == nil {
		return fmt.Errorf("history database not opened")
	}
	if _, err := s.db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("initializing history schema: %w", err)
	}
	return nil
}

// RecordDataset remembers a dataset load. The hosting application calls
// it when a load completes; the CLI only reads the dataset history.
func (s *Store) RecordDataset(handle core.Handle, name, description string) (*Dataset, error) {
	if s.db == nil {
		return nil, fmt.Errorf("history database not opened")
	}
	d := &Dataset{
		ID:          uuid.New().String(),
		Handle:      handle,
		Name:        name,
		Description: description,
		LoadedAt:    time.Now().UTC(),
	}
	_, err := s.db.Exec(
		`INSERT INTO datasets (id, handle, name, description, loaded_at) VALUES (?, ?, ?, ?, ?)`,
		d.ID, d.Handle.String(), d.Name, d.Description, d.LoadedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("recording dataset: %w", err)
	}
	return d, nil
}

// ListDatasets returns remembered loads, most recent first.
func (s *Store) ListDatasets(limit int) ([]*Dataset, error) {
	if s.db == nil {
		return nil, fmt.Errorf("history database not opened")
	}
	rows, err := s.db.Query(
		`SELECT id, handle, name, description, loaded_at FROM datasets ORDER BY loaded_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing datasets: %w", err)
	}
	defer rows.Close()

	var out []*Dataset
	for rows.Next() {
		d := &Dataset{}
		var handle string
		if err := rows.Scan(&d.ID, &handle, &d.Name, &d.Description, &d.LoadedAt); err != nil {
			return nil, fmt.Errorf("scanning dataset: %w", err)
		}
		d.Handle = core.Handle(handle)
		out = append(out, d)
	}
	return out, rows.Err()
}

// RecordSnapshot remembers a saved-session file.
func (s *Store) RecordSnapshot(handle core.Handle, path string, pageCount int) (*Snapshot, error) {
	if s.db == nil {
		return nil, fmt.Errorf("history database not opened")
	}
	snap := &Snapshot{
		ID:            uuid.New().String(),
		DatasetHandle: handle,
		Path:          path,
		PageCount:     pageCount,
		SavedAt:       time.Now().UTC(),
	}
	_, err := s.db.Exec(
		`INSERT INTO snapshots (id, dataset_handle, path, page_count, saved_at) VALUES (?, ?, ?, ?, ?)`,
		snap.ID, snap.DatasetHandle.String(), snap.Path, snap.PageCount, snap.SavedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("recording snapshot: %w", err)
	}
	return snap, nil
}

// ListSnapshots returns remembered snapshots, most recent first.
func (s *Store) ListSnapshots(limit int) ([]*Snapshot, error) {
	if s.db == nil {
		return nil, fmt.Errorf("history database not opened")
	}
	rows, err := s.db.Query(
		`SELECT id, dataset_handle, path, page_count, saved_at FROM snapshots ORDER BY saved_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	defer rows.Close()

	var out []*Snapshot
	for rows.Next() {
		snap := &Snapshot{}
		var handle string
		if err := rows.Scan(&snap.ID, &handle, &snap.Path, &snap.PageCount, &snap.SavedAt); err != nil {
			return nil, fmt.Errorf("scanning snapshot: %w", err)
		}
		snap.DatasetHandle = core.Handle(handle)
		out = append(out, snap)
	}
	return out, rows.Err()
}
