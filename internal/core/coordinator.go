// Package core implements the entity coordinator: entity-level CRUD
// composed from the object-graph repository, the spatial coordinate
// repository and the blob store, with compensating cleanup where a
// mutation spans store boundaries.
package core

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/shinyyxxx/Mindsim/internal/blob"
	"github.com/shinyyxxx/Mindsim/pkg/domain"
)

// DefaultConflictRetries bounds how many times a create re-runs after a
// commit conflict before the ConflictError is surfaced.
const DefaultConflictRetries = 3

// Coordinator orchestrates create/update/delete across the graph and
// spatial repositories. Entity lifetime lives in the graph store, spatial
// record lifetime in the spatial store; the coordinator owns the
// cross-store contract between the two.
type Coordinator struct {
	graph   domain.GraphStore
	spatial domain.SpatialStore
	assets  blob.Store
	log     zerolog.Logger
	metrics *Metrics
	retries int
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger attaches a structured logger. The default discards output.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Coordinator) { c.log = l }
}

// WithMetrics attaches operation metrics.
func WithMetrics(m *Metrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// WithAssetStore sets the blob backend holding model and texture content.
// Defaults to the in-memory store.
func WithAssetStore(s blob.Store) Option {
	return func(c *Coordinator) { c.assets = s }
}

// WithConflictRetries bounds create retries after commit conflicts.
func WithConflictRetries(n int) Option {
	return func(c *Coordinator) {
		if n >= 0 {
			c.retries = n
		}
	}
}

// New constructs a coordinator over the supplied repositories.
func New(graph domain.GraphStore, spatial domain.SpatialStore, opts ...Option) *Coordinator {
	c := &Coordinator{
		graph:   graph,
		spatial: spatial,
		assets:  blob.NewMemory(),
		log:     zerolog.Nop(),
		metrics: NewMetrics(nil),
		retries: DefaultConflictRetries,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Close releases both repositories.
func (c *Coordinator) Close() error {
	graphErr := c.graph.Close()
	spatialErr := c.spatial.Close()
	if graphErr != nil {
		return graphErr
	}
	return spatialErr
}

// createWithSpatial runs the shared create protocol: validate referential
// input, allocate the next graph id, create the spatial record, and stage
// the entity, all inside one graph transaction. Validation runs first so a
// rejected input never touches the spatial store. The spatial create is not
// covered by the graph commit, so any failure after it triggers a
// compensating spatial delete before the error propagates. Commit conflicts
// (two creators racing on the same id) are retried from scratch, id and
// spatial record included.
func (c *Coordinator) createWithSpatial(ctx context.Context, coll domain.Collection, patch domain.SpatialPatch, validate func(v domain.GraphView) error, build func(tx domain.GraphTx, id int, spatialID int64)) (int, error) {
	for attempt := 0; ; attempt++ {
		var id int
		var spatialID int64
		err := c.graph.RunInTransaction(ctx, func(tx domain.GraphTx) error {
			if validate != nil {
				if err := validate(tx); err != nil {
					return err
				}
			}
			id = tx.NextID(coll)
			sid, err := c.spatial.Create(ctx, coll, patch)
			if err != nil {
				return err
			}
			spatialID = sid
			build(tx, id, sid)
			return nil
		})
		if err == nil {
			c.metrics.observe(coll, "create", outcomeOK)
			return id, nil
		}
		err = c.compensateSpatialCreate(ctx, coll, spatialID, err)
		if domain.IsConflict(err) && attempt < c.retries {
			c.metrics.commitConflicts.Inc()
			c.log.Debug().Str("collection", string(coll)).Int("attempt", attempt+1).Msg("create conflicted, retrying")
			continue
		}
		if domain.IsConflict(err) {
			c.metrics.commitConflicts.Inc()
		}
		c.metrics.observe(coll, "create", outcomeError)
		return 0, err
	}
}

// compensateSpatialCreate deletes the spatial record created by a failed
// create attempt. The original error always propagates; the cleanup outcome
// is attached so callers can tell whether an orphan was leaked.
func (c *Coordinator) compensateSpatialCreate(ctx context.Context, coll domain.Collection, spatialID int64, cause error) error {
	if spatialID == 0 {
		return cause
	}
	cleanupErr := c.spatial.Delete(ctx, coll, spatialID)
	if cleanupErr != nil {
		c.metrics.orphansLeaked.Inc()
		c.log.Error().Err(cleanupErr).
			Str("collection", string(coll)).
			Int64("spatial_id", spatialID).
			Msg("orphan leaked: compensating spatial delete failed")
	}
	return domain.CompensationError{Err: cause, CleanupErr: cleanupErr, Collection: coll, SpatialID: spatialID}
}

// updateWithSpatial runs the shared update protocol: load the entity, apply
// the graph-side patch, forward the spatial components to the spatial
// repository, and commit. apply returns the entity's spatial record id and
// whether any graph field changed.
func (c *Coordinator) updateWithSpatial(ctx context.Context, coll domain.Collection, id int, patch domain.SpatialPatch, apply func(tx domain.GraphTx) (int64, error)) error {
	err := c.graph.RunInTransaction(ctx, func(tx domain.GraphTx) error {
		spatialID, err := apply(tx)
		if err != nil {
			return err
		}
		if patch.IsZero() {
			return nil
		}
		matched, err := c.spatial.Update(ctx, coll, spatialID, patch)
		if err != nil {
			return err
		}
		if !matched {
			c.reportMissingSpatial(coll, id, spatialID, "update")
		}
		return nil
	})
	if err != nil {
		c.metrics.observe(coll, "update", outcomeError)
		return err
	}
	c.metrics.observe(coll, "update", outcomeOK)
	return nil
}

// deleteWithSpatial runs the shared delete protocol: spatial record first,
// best-effort, then the graph record in its own transaction. A spatial
// failure is reported, never masks the graph delete, and a second delete of
// the same id surfaces NotFoundError.
func (c *Coordinator) deleteWithSpatial(ctx context.Context, coll domain.Collection, id int, spatialID func(v domain.GraphView) (int64, bool), remove func(tx domain.GraphTx) bool) error {
	var sid int64
	found := false
	if err := c.graph.View(ctx, func(v domain.GraphView) error {
		sid, found = spatialID(v)
		return nil
	}); err != nil {
		c.metrics.observe(coll, "delete", outcomeError)
		return err
	}
	if !found {
		c.metrics.observe(coll, "delete", outcomeError)
		return domain.NotFoundError{Collection: coll, ID: int64(id)}
	}

	if err := c.spatial.Delete(ctx, coll, sid); err != nil {
		// Graph delete still proceeds; the spatial record may remain.
		c.metrics.orphansLeaked.Inc()
		c.log.Error().Err(err).
			Str("collection", string(coll)).
			Int("id", id).
			Int64("spatial_id", sid).
			Msg("orphan leaked: spatial delete failed, removing graph record anyway")
	}

	err := c.graph.RunInTransaction(ctx, func(tx domain.GraphTx) error {
		if !remove(tx) {
			return domain.NotFoundError{Collection: coll, ID: int64(id)}
		}
		return nil
	})
	if err != nil {
		c.metrics.observe(coll, "delete", outcomeError)
		return err
	}
	c.metrics.observe(coll, "delete", outcomeOK)
	return nil
}

// spatialOrDefault composes the read-side spatial lookup. A missing record
// degrades to default components instead of failing the read; any other
// spatial failure propagates.
func (c *Coordinator) spatialOrDefault(ctx context.Context, coll domain.Collection, id int, spatialID int64) (domain.SpatialRecord, error) {
	rec, err := c.spatial.Get(ctx, coll, spatialID)
	if err == nil {
		return rec, nil
	}
	if domain.IsNotFound(err) {
		c.reportMissingSpatial(coll, id, spatialID, "read")
		return domain.SpatialRecord{
			ID:       spatialID,
			Position: domain.DefaultPosition(),
			Rotation: domain.DefaultRotation(),
			Scale:    domain.DefaultScale(),
		}, nil
	}
	return domain.SpatialRecord{}, err
}

func (c *Coordinator) reportMissingSpatial(coll domain.Collection, id int, spatialID int64, during string) {
	c.metrics.missingSpatial.Inc()
	c.log.Warn().
		Str("collection", string(coll)).
		Int("id", id).
		Int64("spatial_id", spatialID).
		Str("during", during).
		Msg("entity references a missing spatial record")
}
