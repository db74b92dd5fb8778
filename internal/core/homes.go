package core

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/shinyyxxx/Mindsim/pkg/domain"
)

// HomeInput carries the fields of a new home scene. RecStatus defaults to
// true. ModelID, when set, must reference an existing model asset and
// TextureKey must name one of that asset's textures.
type HomeInput struct {
	Name       string
	Detail     string
	RecStatus  *bool
	OwnerID    int64
	ModelID    *int
	TextureKey *string
	Position   *domain.Vec3
	Rotation   *domain.Vec3
	Scale      *domain.Vec3
}

// HomePatch applies only its non-nil fields. DeployedItemIDs replaces the
// placement list wholesale.
type HomePatch struct {
	Name            *string
	Detail          *string
	RecStatus       *bool
	ModelID         *int
	TextureKey      *string
	DeployedItemIDs *[]int
	Position        *domain.Vec3
	Rotation        *domain.Vec3
	Scale           *domain.Vec3
}

// validateModelTexture checks that modelID references an existing model
// asset and, when textureKey is set, that the key belongs to that asset's
// texture set.
func validateModelTexture(v domain.GraphView, modelID *int, textureKey *string) error {
	if modelID == nil {
		if textureKey != nil && *textureKey != "" {
			return domain.ValidationError{Field: "texture_key", Reason: "set without a model reference"}
		}
		return nil
	}
	asset, ok := v.FindModelAsset(*modelID)
	if !ok {
		return domain.ValidationError{Field: "model_id", Reason: fmt.Sprintf("model asset %d does not exist", *modelID)}
	}
	if textureKey != nil && *textureKey != "" && !asset.HasTexture(*textureKey) {
		return domain.ValidationError{Field: "texture_key", Reason: fmt.Sprintf("%q is not a texture of model asset %d", *textureKey, *modelID)}
	}
	return nil
}

// CreateHome allocates an id, creates the spatial record and commits the
// home referencing it.
func (c *Coordinator) CreateHome(ctx context.Context, in HomeInput) (int, error) {
	patch := domain.SpatialPatch{Position: in.Position, Rotation: in.Rotation, Scale: in.Scale}
	validate := func(v domain.GraphView) error {
		return validateModelTexture(v, in.ModelID, in.TextureKey)
	}
	return c.createWithSpatial(ctx, domain.CollectionHomes, patch, validate, func(tx domain.GraphTx, id int, spatialID int64) {
		now := time.Now().UTC()
		tx.PutHome(domain.HomeObject{
			Base:          domain.Base{ID: id, CreatedAt: now, UpdatedAt: now},
			Name:          in.Name,
			Detail:        in.Detail,
			RecStatus:     in.RecStatus == nil || *in.RecStatus,
			OwnerID:       in.OwnerID,
			SpatialDataID: spatialID,
			ModelID:       in.ModelID,
			TextureKey:    in.TextureKey,
		})
	})
}

// UpdateHome applies the non-nil patch fields. A texture key change is
// validated against the home's model asset.
func (c *Coordinator) UpdateHome(ctx context.Context, id int, patch HomePatch) error {
	spatial := domain.SpatialPatch{Position: patch.Position, Rotation: patch.Rotation, Scale: patch.Scale}
	return c.updateWithSpatial(ctx, domain.CollectionHomes, id, spatial, func(tx domain.GraphTx) (int64, error) {
		home, ok := tx.FindHome(id)
		if !ok {
			return 0, domain.NotFoundError{Collection: domain.CollectionHomes, ID: int64(id)}
		}
		if patch.Name != nil {
			home.Name = *patch.Name
		}
		if patch.Detail != nil {
			home.Detail = *patch.Detail
		}
		if patch.RecStatus != nil {
			home.RecStatus = *patch.RecStatus
		}
		if patch.ModelID != nil {
			home.ModelID = patch.ModelID
		}
		if patch.TextureKey != nil {
			home.TextureKey = patch.TextureKey
		}
		if patch.ModelID != nil || patch.TextureKey != nil {
			if err := validateModelTexture(tx, home.ModelID, home.TextureKey); err != nil {
				return 0, err
			}
		}
		if patch.DeployedItemIDs != nil {
			home.DeployedItemIDs = dedupe(*patch.DeployedItemIDs)
		}
		home.UpdatedAt = time.Now().UTC()
		tx.PutHome(home)
		return home.SpatialDataID, nil
	})
}

// DeleteHome removes the spatial record (best effort) and the graph record.
// Items deployed in the home keep their records; they only lose the home's
// back reference.
func (c *Coordinator) DeleteHome(ctx context.Context, id int) error {
	return c.deleteWithSpatial(ctx, domain.CollectionHomes, id,
		func(v domain.GraphView) (int64, bool) {
			home, ok := v.FindHome(id)
			return home.SpatialDataID, ok
		},
		func(tx domain.GraphTx) bool { return tx.DeleteHome(id) })
}

// GetHomeView returns the composed read model, degrading to default spatial
// components when the referenced record is missing.
func (c *Coordinator) GetHomeView(ctx context.Context, id int) (domain.HomeView, error) {
	var home domain.HomeObject
	found := false
	if err := c.graph.View(ctx, func(v domain.GraphView) error {
		home, found = v.FindHome(id)
		return nil
	}); err != nil {
		return domain.HomeView{}, err
	}
	if !found {
		return domain.HomeView{}, domain.NotFoundError{Collection: domain.CollectionHomes, ID: int64(id)}
	}
	return c.composeHomeView(ctx, home)
}

func (c *Coordinator) composeHomeView(ctx context.Context, home domain.HomeObject) (domain.HomeView, error) {
	rec, err := c.spatialOrDefault(ctx, domain.CollectionHomes, home.ID, home.SpatialDataID)
	if err != nil {
		return domain.HomeView{}, err
	}
	return domain.HomeView{HomeObject: home, Position: rec.Position, Rotation: rec.Rotation, Scale: rec.Scale}, nil
}

// ListHomesByOwner yields composed views of the owner's homes in id order.
// The sequence is lazy and restartable; every range call rescans.
func (c *Coordinator) ListHomesByOwner(ctx context.Context, ownerID int64) iter.Seq2[domain.HomeView, error] {
	return func(yield func(domain.HomeView, error) bool) {
		var homes []domain.HomeObject
		if err := c.graph.View(ctx, func(v domain.GraphView) error {
			for _, h := range v.ListHomes() {
				if h.OwnerID == ownerID {
					homes = append(homes, h)
				}
			}
			return nil
		}); err != nil {
			yield(domain.HomeView{}, err)
			return
		}
		for _, h := range homes {
			view, err := c.composeHomeView(ctx, h)
			if !yield(view, err) {
				return
			}
			if err != nil {
				return
			}
		}
	}
}
