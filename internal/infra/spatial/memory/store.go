// Package memory provides an in-memory spatial coordinate repository used
// for tests and ephemeral environments.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/shinyyxxx/Mindsim/pkg/domain"
)

// Compile-time contract assertion.
var _ domain.SpatialStore = (*Store)(nil)

type record struct {
	rec     domain.SpatialRecord
	history []domain.Vec3
}

// Store keeps spatial records in per-collection maps. Ids are assigned from
// a single sequence, matching the serial columns of the SQL backends.
type Store struct {
	mu      sync.Mutex
	nextID  int64
	records map[domain.Collection]map[int64]*record
	nowFn   func() time.Time
}

// NewStore constructs an empty in-memory spatial store.
func NewStore() *Store {
	return &Store{
		nextID:  1,
		records: make(map[domain.Collection]map[int64]*record),
		nowFn:   func() time.Time { return time.Now().UTC() },
	}
}

// SetNowFunc overrides the timestamp source for tests.
func (s *Store) SetNowFunc(fn func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nowFn = fn
}

func (s *Store) namespace(c domain.Collection) map[int64]*record {
	ns, ok := s.records[c]
	if !ok {
		ns = make(map[int64]*record)
		s.records[c] = ns
	}
	return ns
}

// Create inserts a record, defaulting absent components.
func (s *Store) Create(ctx context.Context, c domain.Collection, patch domain.SpatialPatch) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := domain.SpatialRecord{
		Position: domain.DefaultPosition(),
		Rotation: domain.DefaultRotation(),
		Scale:    domain.DefaultScale(),
	}
	if patch.Position != nil {
		rec.Position = *patch.Position
	}
	if patch.Rotation != nil {
		rec.Rotation = *patch.Rotation
	}
	if patch.Scale != nil {
		rec.Scale = *patch.Scale
	}
	now := s.nowFn()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	rec.ID = s.nextID
	s.nextID++
	s.namespace(c)[rec.ID] = &record{rec: rec}
	return rec.ID, nil
}

// Update applies only the supplied components; absent ids report false.
func (s *Store) Update(ctx context.Context, c domain.Collection, id int64, patch domain.SpatialPatch) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.namespace(c)[id]
	if !ok {
		return false, nil
	}
	if patch.Position != nil {
		stored.history = append(stored.history, stored.rec.Position)
		stored.rec.Position = *patch.Position
	}
	if patch.Rotation != nil {
		stored.rec.Rotation = *patch.Rotation
	}
	if patch.Scale != nil {
		stored.rec.Scale = *patch.Scale
	}
	stored.rec.UpdatedAt = s.nowFn()
	return true, nil
}

// Get returns the record or domain.NotFoundError.
func (s *Store) Get(ctx context.Context, c domain.Collection, id int64) (domain.SpatialRecord, error) {
	if err := ctx.Err(); err != nil {
		return domain.SpatialRecord{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.namespace(c)[id]
	if !ok {
		return domain.SpatialRecord{}, domain.NotFoundError{Collection: c, ID: id}
	}
	return stored.rec, nil
}

// Delete removes the record; deleting an absent id is not an error.
func (s *Store) Delete(ctx context.Context, c domain.Collection, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.namespace(c), id)
	return nil
}

// PositionHistory returns overwritten positions, oldest first.
func (s *Store) PositionHistory(ctx context.Context, c domain.Collection, id int64) ([]domain.Vec3, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.namespace(c)[id]
	if !ok {
		return nil, domain.NotFoundError{Collection: c, ID: id}
	}
	return append([]domain.Vec3(nil), stored.history...), nil
}

// Close releases nothing for the in-memory store.
func (s *Store) Close() error { return nil }
