package core

import (
	"context"
	"iter"
	"slices"
	"time"

	"github.com/shinyyxxx/Mindsim/pkg/domain"
)

// MindInput carries the fields of a new mind. RecStatus defaults to true.
type MindInput struct {
	Name            string
	Detail          string
	RecStatus       *bool
	OwnerID         int64
	MentalSphereIDs []int
	Position        *domain.Vec3
	Rotation        *domain.Vec3
	Scale           *domain.Vec3
}

// MindPatch applies only its non-nil fields. MentalSphereIDs replaces the
// membership set wholesale; use AddMindSpheres / RemoveMindSpheres for
// incremental changes.
type MindPatch struct {
	Name            *string
	Detail          *string
	RecStatus       *bool
	MentalSphereIDs *[]int
	Position        *domain.Vec3
	Rotation        *domain.Vec3
	Scale           *domain.Vec3
}

// CreateMind allocates an id, creates the spatial record and commits the
// mind referencing it. Membership ids are deduplicated; they are non-owning
// references and are not checked against the sphere collection.
func (c *Coordinator) CreateMind(ctx context.Context, in MindInput) (int, error) {
	patch := domain.SpatialPatch{Position: in.Position, Rotation: in.Rotation, Scale: in.Scale}
	return c.createWithSpatial(ctx, domain.CollectionMinds, patch, nil, func(tx domain.GraphTx, id int, spatialID int64) {
		now := time.Now().UTC()
		tx.PutMind(domain.Mind{
			Base:            domain.Base{ID: id, CreatedAt: now, UpdatedAt: now},
			Name:            in.Name,
			Detail:          in.Detail,
			RecStatus:       in.RecStatus == nil || *in.RecStatus,
			OwnerID:         in.OwnerID,
			SpatialDataID:   spatialID,
			MentalSphereIDs: dedupe(in.MentalSphereIDs),
		})
	})
}

// UpdateMind applies the non-nil patch fields. Updating an absent id is
// NotFoundError, never an implicit create.
func (c *Coordinator) UpdateMind(ctx context.Context, id int, patch MindPatch) error {
	spatial := domain.SpatialPatch{Position: patch.Position, Rotation: patch.Rotation, Scale: patch.Scale}
	return c.updateWithSpatial(ctx, domain.CollectionMinds, id, spatial, func(tx domain.GraphTx) (int64, error) {
		mind, ok := tx.FindMind(id)
		if !ok {
			return 0, domain.NotFoundError{Collection: domain.CollectionMinds, ID: int64(id)}
		}
		if patch.Name != nil {
			mind.Name = *patch.Name
		}
		if patch.Detail != nil {
			mind.Detail = *patch.Detail
		}
		if patch.RecStatus != nil {
			mind.RecStatus = *patch.RecStatus
		}
		if patch.MentalSphereIDs != nil {
			mind.MentalSphereIDs = dedupe(*patch.MentalSphereIDs)
		}
		mind.UpdatedAt = time.Now().UTC()
		tx.PutMind(mind)
		return mind.SpatialDataID, nil
	})
}

// DeleteMind removes the spatial record (best effort) and the graph record.
// Member spheres are untouched; membership never owns sphere lifetime.
func (c *Coordinator) DeleteMind(ctx context.Context, id int) error {
	return c.deleteWithSpatial(ctx, domain.CollectionMinds, id,
		func(v domain.GraphView) (int64, bool) {
			mind, ok := v.FindMind(id)
			return mind.SpatialDataID, ok
		},
		func(tx domain.GraphTx) bool { return tx.DeleteMind(id) })
}

// AddMindSpheres adds member sphere ids to the mind. Ids already present
// are no-ops; insertion order of new ids is preserved.
func (c *Coordinator) AddMindSpheres(ctx context.Context, mindID int, sphereIDs []int) error {
	return c.mutateMembership(ctx, mindID, "add_members", func(members []int) []int {
		for _, id := range sphereIDs {
			if !slices.Contains(members, id) {
				members = append(members, id)
			}
		}
		return members
	})
}

// RemoveMindSpheres removes member sphere ids from the mind. Absent ids are
// no-ops, not errors.
func (c *Coordinator) RemoveMindSpheres(ctx context.Context, mindID int, sphereIDs []int) error {
	return c.mutateMembership(ctx, mindID, "remove_members", func(members []int) []int {
		return slices.DeleteFunc(members, func(id int) bool {
			return slices.Contains(sphereIDs, id)
		})
	})
}

func (c *Coordinator) mutateMembership(ctx context.Context, mindID int, op string, mutate func([]int) []int) error {
	err := c.graph.RunInTransaction(ctx, func(tx domain.GraphTx) error {
		mind, ok := tx.FindMind(mindID)
		if !ok {
			return domain.NotFoundError{Collection: domain.CollectionMinds, ID: int64(mindID)}
		}
		members := mutate(slices.Clone(mind.MentalSphereIDs))
		if slices.Equal(members, mind.MentalSphereIDs) {
			return nil
		}
		mind.MentalSphereIDs = members
		mind.UpdatedAt = time.Now().UTC()
		tx.PutMind(mind)
		return nil
	})
	if err != nil {
		c.metrics.observe(domain.CollectionMinds, op, outcomeError)
		return err
	}
	c.metrics.observe(domain.CollectionMinds, op, outcomeOK)
	return nil
}

// GetMindView returns the composed read model, degrading to default spatial
// components when the referenced record is missing.
func (c *Coordinator) GetMindView(ctx context.Context, id int) (domain.MindView, error) {
	var mind domain.Mind
	found := false
	if err := c.graph.View(ctx, func(v domain.GraphView) error {
		mind, found = v.FindMind(id)
		return nil
	}); err != nil {
		return domain.MindView{}, err
	}
	if !found {
		return domain.MindView{}, domain.NotFoundError{Collection: domain.CollectionMinds, ID: int64(id)}
	}
	return c.composeMindView(ctx, mind)
}

func (c *Coordinator) composeMindView(ctx context.Context, mind domain.Mind) (domain.MindView, error) {
	rec, err := c.spatialOrDefault(ctx, domain.CollectionMinds, mind.ID, mind.SpatialDataID)
	if err != nil {
		return domain.MindView{}, err
	}
	return domain.MindView{Mind: mind, Position: rec.Position, Rotation: rec.Rotation, Scale: rec.Scale}, nil
}

// ListMindsByOwner yields composed views of the owner's minds in id order.
// The sequence is lazy and restartable; every range call rescans.
func (c *Coordinator) ListMindsByOwner(ctx context.Context, ownerID int64) iter.Seq2[domain.MindView, error] {
	return func(yield func(domain.MindView, error) bool) {
		var minds []domain.Mind
		if err := c.graph.View(ctx, func(v domain.GraphView) error {
			for _, m := range v.ListMinds() {
				if m.OwnerID == ownerID {
					minds = append(minds, m)
				}
			}
			return nil
		}); err != nil {
			yield(domain.MindView{}, err)
			return
		}
		for _, m := range minds {
			view, err := c.composeMindView(ctx, m)
			if !yield(view, err) {
				return
			}
			if err != nil {
				return
			}
		}
	}
}

func dedupe(ids []int) []int {
	var out []int
	for _, id := range ids {
		if !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}
