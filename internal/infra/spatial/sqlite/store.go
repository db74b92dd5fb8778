// Package sqlite provides the embedded spatial coordinate repository.
// Geometry is stored as EWKT text columns and decoded in Go, keeping the
// wire format identical to the PostGIS backend without a spatial engine.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"github.com/shinyyxxx/Mindsim/internal/infra/spatial/ewkt"
	"github.com/shinyyxxx/Mindsim/pkg/domain"
)

// Compile-time contract assertion.
var _ domain.SpatialStore = (*Store)(nil)

// Store persists spatial records to one table per collection.
type Store struct {
	db   *sql.DB
	srid int
	path string
}

// NewStore opens (or creates) the spatial database at path and ensures the
// per-collection tables exist. srid defaults to domain.DefaultSRID when 0.
func NewStore(path string, srid int) (*Store, error) {
	if path == "" {
		path = "mindsim_spatial.db"
	}
	if srid == 0 {
		srid = domain.DefaultSRID
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
	s := &Store{db: db, srid: srid, path: path}
	for _, c := range domain.Collections() {
		ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			position TEXT NOT NULL,
			rotation TEXT NOT NULL,
			scale TEXT NOT NULL,
			position_history TEXT NOT NULL DEFAULT '[]',
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`, tableFor(c))
		if _, err := db.Exec(ddl); err != nil {
			return nil, fmt.Errorf("create %s: %w", tableFor(c), err)
		}
	}
	return s, nil
}

func tableFor(c domain.Collection) string {
	return "spatial_" + string(c)
}

// Create inserts a record, defaulting absent components.
func (s *Store) Create(ctx context.Context, c domain.Collection, patch domain.SpatialPatch) (int64, error) {
	pos, rot, scale := domain.DefaultPosition(), domain.DefaultRotation(), domain.DefaultScale()
	if patch.Position != nil {
		pos = *patch.Position
	}
	if patch.Rotation != nil {
		rot = *patch.Rotation
	}
	if patch.Scale != nil {
		scale = *patch.Scale
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (position, rotation, scale, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`, tableFor(c)),
		ewkt.EncodeZ(s.srid, pos), ewkt.EncodeZ(s.srid, rot), ewkt.EncodeZ(s.srid, scale), now, now)
	if err != nil {
		return 0, domain.StorageUnavailableError{Op: "spatial create", Err: err}
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, domain.StorageUnavailableError{Op: "spatial create id", Err: err}
	}
	return id, nil
}

// Update applies only the supplied components. A position update appends
// the previous position to the record's history, as the original deployed
// item table did; the history read and rewrite share one transaction.
func (s *Store) Update(ctx context.Context, c domain.Collection, id int64, patch domain.SpatialPatch) (bool, error) {
	if patch.IsZero() {
		return s.exists(ctx, c, id)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, domain.StorageUnavailableError{Op: "spatial update begin", Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	sets := make([]string, 0, 4)
	args := make([]any, 0, 5)
	if patch.Position != nil {
		prev, history, err := positionWithHistory(ctx, tx, c, id)
		if err != nil {
			if domain.IsNotFound(err) {
				return false, nil
			}
			return false, err
		}
		history = append(history, prev)
		encoded, err := json.Marshal(history)
		if err != nil {
			return false, fmt.Errorf("encode history: %w", err)
		}
		sets = append(sets, "position = ?", "position_history = ?")
		args = append(args, ewkt.EncodeZ(s.srid, *patch.Position), string(encoded))
	}
	if patch.Rotation != nil {
		sets = append(sets, "rotation = ?")
		args = append(args, ewkt.EncodeZ(s.srid, *patch.Rotation))
	}
	if patch.Scale != nil {
		sets = append(sets, "scale = ?")
		args = append(args, ewkt.EncodeZ(s.srid, *patch.Scale))
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, time.Now().UTC(), id)

	res, err := tx.ExecContext(ctx,
		fmt.Sprintf(`UPDATE %s SET %s WHERE id = ?`, tableFor(c), strings.Join(sets, ", ")), args...)
	if err != nil {
		return false, domain.StorageUnavailableError{Op: "spatial update", Err: err}
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, domain.StorageUnavailableError{Op: "spatial update rows", Err: err}
	}
	if err := tx.Commit(); err != nil {
		return false, domain.StorageUnavailableError{Op: "spatial update commit", Err: err}
	}
	return affected > 0, nil
}

func (s *Store) exists(ctx context.Context, c domain.Collection, id int64) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT 1 FROM %s WHERE id = ?`, tableFor(c)), id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, domain.StorageUnavailableError{Op: "spatial exists", Err: err}
	}
	return true, nil
}

// rowQuerier is satisfied by both *sql.DB and *sql.Tx.
type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func positionWithHistory(ctx context.Context, q rowQuerier, c domain.Collection, id int64) (domain.Vec3, []domain.Vec3, error) {
	var posText, historyText string
	err := q.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT position, position_history FROM %s WHERE id = ?`, tableFor(c)), id).
		Scan(&posText, &historyText)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Vec3{}, nil, domain.NotFoundError{Collection: c, ID: id}
	}
	if err != nil {
		return domain.Vec3{}, nil, domain.StorageUnavailableError{Op: "spatial history read", Err: err}
	}
	pos, err := ewkt.DecodeVec3(posText)
	if err != nil {
		return domain.Vec3{}, nil, err
	}
	var history []domain.Vec3
	if err := json.Unmarshal([]byte(historyText), &history); err != nil {
		return domain.Vec3{}, nil, fmt.Errorf("decode history: %w", err)
	}
	return pos, history, nil
}

// Get decodes the stored EWKT back into coordinate triples.
func (s *Store) Get(ctx context.Context, c domain.Collection, id int64) (domain.SpatialRecord, error) {
	var posText, rotText, scaleText string
	rec := domain.SpatialRecord{ID: id}
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT position, rotation, scale, created_at, updated_at FROM %s WHERE id = ?`, tableFor(c)), id).
		Scan(&posText, &rotText, &scaleText, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.SpatialRecord{}, domain.NotFoundError{Collection: c, ID: id}
	}
	if err != nil {
		return domain.SpatialRecord{}, domain.StorageUnavailableError{Op: "spatial get", Err: err}
	}
	if rec.Position, err = ewkt.DecodeVec3(posText); err != nil {
		return domain.SpatialRecord{}, err
	}
	if rec.Rotation, err = ewkt.DecodeVec3(rotText); err != nil {
		return domain.SpatialRecord{}, err
	}
	if rec.Scale, err = ewkt.DecodeVec3(scaleText); err != nil {
		return domain.SpatialRecord{}, err
	}
	return rec, nil
}

// Delete removes the record; absent ids are not an error.
func (s *Store) Delete(ctx context.Context, c domain.Collection, id int64) error {
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, tableFor(c)), id); err != nil {
		return domain.StorageUnavailableError{Op: "spatial delete", Err: err}
	}
	return nil
}

// PositionHistory returns overwritten positions, oldest first.
func (s *Store) PositionHistory(ctx context.Context, c domain.Collection, id int64) ([]domain.Vec3, error) {
	_, history, err := positionWithHistory(ctx, s.db, c, id)
	return history, err
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }
