// Package sqlite provides the durable object-graph backend. It embeds the
// in-memory store and snapshots the full graph to a single SQLite table as
// JSON buckets after every committed transaction, the embedded-file analog
// of the original object database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"github.com/shinyyxxx/Mindsim/internal/infra/graph/memory"
	"github.com/shinyyxxx/Mindsim/pkg/domain"
)

// Compile-time contract assertion ensuring the store satisfies the domain
// interface.
var _ domain.GraphStore = (*Store)(nil)

// Store persists the in-memory graph state to SQLite.
type Store struct {
	*memory.Store
	db   *sql.DB
	mu   sync.Mutex
	path string
}

// NewStore opens (or creates) the graph database at path and hydrates the
// in-memory store from any existing snapshot.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = "mindsim.db"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS graph_state (
		bucket TEXT PRIMARY KEY,
		payload BLOB NOT NULL
	)`); err != nil {
		return nil, fmt.Errorf("create graph_state table: %w", err)
	}
	s := &Store{Store: memory.NewStore(), db: db, path: path}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

var buckets = []string{
	string(domain.CollectionMentalSpheres),
	string(domain.CollectionMinds),
	string(domain.CollectionHomes),
	string(domain.CollectionDeployedItems),
	string(domain.CollectionModelAssets),
}

func (s *Store) load() error {
	rows, err := s.db.Query(`SELECT bucket, payload FROM graph_state`)
	if err != nil {
		return fmt.Errorf("select graph_state: %w", err)
	}
	defer func() { _ = rows.Close() }()

	snapshot := memory.Snapshot{}
	found := false
	for rows.Next() {
		var bucket string
		var payload []byte
		if err := rows.Scan(&bucket, &payload); err != nil {
			return fmt.Errorf("scan graph_state: %w", err)
		}
		if len(payload) == 0 {
			continue
		}
		found = true
		var target any
		switch domain.Collection(bucket) {
		case domain.CollectionMentalSpheres:
			target = &snapshot.Spheres
		case domain.CollectionMinds:
			target = &snapshot.Minds
		case domain.CollectionHomes:
			target = &snapshot.Homes
		case domain.CollectionDeployedItems:
			target = &snapshot.Items
		case domain.CollectionModelAssets:
			target = &snapshot.Models
		default:
			continue
		}
		if err := json.Unmarshal(payload, target); err != nil {
			return fmt.Errorf("decode %s: %w", bucket, err)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate graph_state: %w", err)
	}
	if found {
		s.ImportState(snapshot)
	}
	return nil
}

func (s *Store) persist() (retErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.ExportState()
	tx, err := s.db.Begin()
	if err != nil {
		return domain.StorageUnavailableError{Op: "graph snapshot begin", Err: err}
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	for _, bucket := range buckets {
		var data []byte
		switch domain.Collection(bucket) {
		case domain.CollectionMentalSpheres:
			data, err = json.Marshal(snapshot.Spheres)
		case domain.CollectionMinds:
			data, err = json.Marshal(snapshot.Minds)
		case domain.CollectionHomes:
			data, err = json.Marshal(snapshot.Homes)
		case domain.CollectionDeployedItems:
			data, err = json.Marshal(snapshot.Items)
		case domain.CollectionModelAssets:
			data, err = json.Marshal(snapshot.Models)
		}
		if err != nil {
			retErr = err
			return retErr
		}
		if _, err = tx.Exec(`INSERT INTO graph_state(bucket,payload) VALUES(?,?) ON CONFLICT(bucket) DO UPDATE SET payload=excluded.payload`, bucket, data); err != nil {
			retErr = fmt.Errorf("upsert %s: %w", bucket, err)
			return retErr
		}
	}
	if err = tx.Commit(); err != nil {
		return domain.StorageUnavailableError{Op: "graph snapshot commit", Err: err}
	}
	return nil
}

// RunInTransaction applies fn within an in-memory transaction, then
// snapshots the committed state to SQLite.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx domain.GraphTx) error) error {
	if err := s.Store.RunInTransaction(ctx, fn); err != nil {
		return err
	}
	return s.persist()
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }
