// Package postgres provides the PostGIS-backed spatial coordinate
// repository. Geometry columns hold 3D points and travel as EWKT text
// through ST_GeomFromEWKT / ST_AsEWKT.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"github.com/shinyyxxx/Mindsim/internal/infra/spatial/ewkt"
	"github.com/shinyyxxx/Mindsim/pkg/domain"
)

// Compile-time contract assertion.
var _ domain.SpatialStore = (*Store)(nil)

const (
	defaultDriver = "pgx"
	defaultDSN    = "postgres://localhost/mindsim?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Store persists spatial records to one PostGIS table per collection.
type Store struct {
	db   *sql.DB
	srid int
}

// NewStore opens a PostGIS-backed store using the provided DSN (falls back
// to defaultDSN) and ensures the per-collection tables exist. srid defaults
// to domain.DefaultSRID when 0.
func NewStore(dsn string, srid int) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	if srid == 0 {
		srid = domain.DefaultSRID
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	s := &Store{db: db, srid: srid}
	for _, c := range domain.Collections() {
		ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id BIGSERIAL PRIMARY KEY,
			position geometry(POINTZ, %d) NOT NULL,
			rotation geometry(POINTZ, %d) NOT NULL,
			scale geometry(POINTZ, %d) NOT NULL,
			position_history JSONB NOT NULL DEFAULT '[]'::jsonb,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`, tableFor(c), srid, srid, srid)
		if _, err := db.ExecContext(ctx, ddl); err != nil {
			return nil, fmt.Errorf("create %s: %w", tableFor(c), err)
		}
	}
	return s, nil
}

func tableFor(c domain.Collection) string {
	return "spatial_" + string(c)
}

// Create inserts a record, defaulting absent components, and returns the
// server-assigned id.
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
	var id int64
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (position, rotation, scale, created_at, updated_at)
			VALUES (ST_GeomFromEWKT($1), ST_GeomFromEWKT($2), ST_GeomFromEWKT($3), $4, $5)
			RETURNING id`, tableFor(c)),
		ewkt.EncodeZ(s.srid, pos), ewkt.EncodeZ(s.srid, rot), ewkt.EncodeZ(s.srid, scale), now, now).
		Scan(&id)
	if err != nil {
		return 0, domain.StorageUnavailableError{Op: "spatial create", Err: err}
	}
	return id, nil
}

// Update applies only the supplied components. A position update appends
// the previous position to the JSONB history column in the same statement.
func (s *Store) Update(ctx context.Context, c domain.Collection, id int64, patch domain.SpatialPatch) (bool, error) {
	if patch.IsZero() {
		return s.exists(ctx, c, id)
	}

	sets := make([]string, 0, 4)
	args := make([]any, 0, 4)
	next := func() string { return fmt.Sprintf("$%d", len(args)+1) }
	if patch.Position != nil {
		sets = append(sets,
			"position_history = position_history || jsonb_build_object('x', ST_X(position), 'y', ST_Y(position), 'z', ST_Z(position))")
		sets = append(sets, "position = ST_GeomFromEWKT("+next()+")")
		args = append(args, ewkt.EncodeZ(s.srid, *patch.Position))
	}
	if patch.Rotation != nil {
		sets = append(sets, "rotation = ST_GeomFromEWKT("+next()+")")
		args = append(args, ewkt.EncodeZ(s.srid, *patch.Rotation))
	}
	if patch.Scale != nil {
		sets = append(sets, "scale = ST_GeomFromEWKT("+next()+")")
		args = append(args, ewkt.EncodeZ(s.srid, *patch.Scale))
	}
	sets = append(sets, "updated_at = "+next())
	args = append(args, time.Now().UTC())
	args = append(args, id)

	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE %s SET %s WHERE id = $%d`, tableFor(c), strings.Join(sets, ", "), len(args)), args...)
	if err != nil {
		return false, domain.StorageUnavailableError{Op: "spatial update", Err: err}
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, domain.StorageUnavailableError{Op: "spatial update rows", Err: err}
	}
	return affected > 0, nil
}

func (s *Store) exists(ctx context.Context, c domain.Collection, id int64) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT 1 FROM %s WHERE id = $1`, tableFor(c)), id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, domain.StorageUnavailableError{Op: "spatial exists", Err: err}
	}
	return true, nil
}

// Get decodes the stored geometry back into coordinate triples.
func (s *Store) Get(ctx context.Context, c domain.Collection, id int64) (domain.SpatialRecord, error) {
	var posText, rotText, scaleText string
	rec := domain.SpatialRecord{ID: id}
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT ST_AsEWKT(position), ST_AsEWKT(rotation), ST_AsEWKT(scale), created_at, updated_at
			FROM %s WHERE id = $1`, tableFor(c)), id).
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
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, tableFor(c)), id); err != nil {
		return domain.StorageUnavailableError{Op: "spatial delete", Err: err}
	}
	return nil
}

// PositionHistory returns overwritten positions, oldest first.
func (s *Store) PositionHistory(ctx context.Context, c domain.Collection, id int64) ([]domain.Vec3, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT position_history FROM %s WHERE id = $1`, tableFor(c)), id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NotFoundError{Collection: c, ID: id}
	}
	if err != nil {
		return nil, domain.StorageUnavailableError{Op: "spatial history read", Err: err}
	}
	var history []domain.Vec3
	if err := json.Unmarshal(payload, &history); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}
	return history, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
