package core

import (
	"context"
	"iter"
	"time"

	"github.com/shinyyxxx/Mindsim/pkg/domain"
)

// MentalSphereInput carries the fields of a new sphere. RecStatus defaults
// to true and Color to domain.DefaultColor when unset.
type MentalSphereInput struct {
	Name      string
	Detail    string
	Color     string
	Texture   string
	RecStatus *bool
	OwnerID   int64
	Position  *domain.Vec3
	Rotation  *domain.Vec3
	Scale     *domain.Vec3
}

// MentalSpherePatch applies only its non-nil fields.
type MentalSpherePatch struct {
	Name      *string
	Detail    *string
	Color     *string
	Texture   *string
	RecStatus *bool
	Position  *domain.Vec3
	Rotation  *domain.Vec3
	Scale     *domain.Vec3
}

// CreateMentalSphere allocates an id, creates the spatial record and
// commits the sphere referencing it.
func (c *Coordinator) CreateMentalSphere(ctx context.Context, in MentalSphereInput) (int, error) {
	color := in.Color
	if color == "" {
		color = domain.DefaultColor
	}
	patch := domain.SpatialPatch{Position: in.Position, Rotation: in.Rotation, Scale: in.Scale}
	return c.createWithSpatial(ctx, domain.CollectionMentalSpheres, patch, nil, func(tx domain.GraphTx, id int, spatialID int64) {
		now := time.Now().UTC()
		tx.PutMentalSphere(domain.MentalSphere{
			Base:          domain.Base{ID: id, CreatedAt: now, UpdatedAt: now},
			Name:          in.Name,
			Detail:        in.Detail,
			Color:         color,
			Texture:       in.Texture,
			RecStatus:     in.RecStatus == nil || *in.RecStatus,
			OwnerID:       in.OwnerID,
			SpatialDataID: spatialID,
		})
	})
}

// UpdateMentalSphere applies the non-nil patch fields and forwards spatial
// components to the spatial repository.
func (c *Coordinator) UpdateMentalSphere(ctx context.Context, id int, patch MentalSpherePatch) error {
	spatial := domain.SpatialPatch{Position: patch.Position, Rotation: patch.Rotation, Scale: patch.Scale}
	return c.updateWithSpatial(ctx, domain.CollectionMentalSpheres, id, spatial, func(tx domain.GraphTx) (int64, error) {
		sphere, ok := tx.FindMentalSphere(id)
		if !ok {
			return 0, domain.NotFoundError{Collection: domain.CollectionMentalSpheres, ID: int64(id)}
		}
		if patch.Name != nil {
			sphere.Name = *patch.Name
		}
		if patch.Detail != nil {
			sphere.Detail = *patch.Detail
		}
		if patch.Color != nil {
			sphere.Color = *patch.Color
		}
		if patch.Texture != nil {
			sphere.Texture = *patch.Texture
		}
		if patch.RecStatus != nil {
			sphere.RecStatus = *patch.RecStatus
		}
		sphere.UpdatedAt = time.Now().UTC()
		tx.PutMentalSphere(sphere)
		return sphere.SpatialDataID, nil
	})
}

// DeleteMentalSphere removes the spatial record (best effort) and the graph
// record. Mind membership lists are left untouched; members are non-owning
// references, and dangling ids persist until removed explicitly.
func (c *Coordinator) DeleteMentalSphere(ctx context.Context, id int) error {
	return c.deleteWithSpatial(ctx, domain.CollectionMentalSpheres, id,
		func(v domain.GraphView) (int64, bool) {
			sphere, ok := v.FindMentalSphere(id)
			return sphere.SpatialDataID, ok
		},
		func(tx domain.GraphTx) bool { return tx.DeleteMentalSphere(id) })
}

// GetMentalSphereView returns the composed read model, degrading to default
// spatial components when the referenced record is missing.
func (c *Coordinator) GetMentalSphereView(ctx context.Context, id int) (domain.MentalSphereView, error) {
	var sphere domain.MentalSphere
	found := false
	if err := c.graph.View(ctx, func(v domain.GraphView) error {
		sphere, found = v.FindMentalSphere(id)
		return nil
	}); err != nil {
		return domain.MentalSphereView{}, err
	}
	if !found {
		return domain.MentalSphereView{}, domain.NotFoundError{Collection: domain.CollectionMentalSpheres, ID: int64(id)}
	}
	return c.composeSphereView(ctx, sphere)
}

func (c *Coordinator) composeSphereView(ctx context.Context, sphere domain.MentalSphere) (domain.MentalSphereView, error) {
	rec, err := c.spatialOrDefault(ctx, domain.CollectionMentalSpheres, sphere.ID, sphere.SpatialDataID)
	if err != nil {
		return domain.MentalSphereView{}, err
	}
	return domain.MentalSphereView{MentalSphere: sphere, Position: rec.Position, Rotation: rec.Rotation, Scale: rec.Scale}, nil
}

// ListMentalSpheresByOwner yields composed views of the owner's spheres in
// id order. The sequence is lazy and restartable; every range call rescans.
func (c *Coordinator) ListMentalSpheresByOwner(ctx context.Context, ownerID int64) iter.Seq2[domain.MentalSphereView, error] {
	return func(yield func(domain.MentalSphereView, error) bool) {
		var spheres []domain.MentalSphere
		if err := c.graph.View(ctx, func(v domain.GraphView) error {
			for _, s := range v.ListMentalSpheres() {
				if s.OwnerID == ownerID {
					spheres = append(spheres, s)
				}
			}
			return nil
		}); err != nil {
			yield(domain.MentalSphereView{}, err)
			return
		}
		for _, s := range spheres {
			view, err := c.composeSphereView(ctx, s)
			if !yield(view, err) {
				return
			}
			if err != nil {
				return
			}
		}
	}
}
