package core

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"time"

	"github.com/shinyyxxx/Mindsim/pkg/domain"
)

// DeployedItemInput carries the fields of a new deployed item. Exactly one
// of ContainedItemIDs (container variant) or Composition (non-container
// variant) may be supplied, selected by IsContainer.
type DeployedItemInput struct {
	Name             string
	Detail           string
	Category         string
	RecStatus        *bool
	OwnerID          int64
	HomeID           int
	ModelID          *int
	TextureKey       *string
	IsContainer      bool
	ContainedItemIDs []int
	Composition      []int
	Position         *domain.Vec3
	Rotation         *domain.Vec3
	Scale            *domain.Vec3
}

// DeployedItemPatch applies only its non-nil fields.
type DeployedItemPatch struct {
	Name             *string
	Detail           *string
	Category         *string
	RecStatus        *bool
	ModelID          *int
	TextureKey       *string
	ContainedItemIDs *[]int
	Composition      *[]int
	Position         *domain.Vec3
	Rotation         *domain.Vec3
	Scale            *domain.Vec3
}

func validateItemVariant(isContainer bool, contained, composition []int) error {
	if isContainer && len(composition) > 0 {
		return domain.ValidationError{Field: "composition", Reason: "container items carry contained item ids, not a composition"}
	}
	if !isContainer && len(contained) > 0 {
		return domain.ValidationError{Field: "contained_item_ids", Reason: "non-container items carry a composition, not contained item ids"}
	}
	return nil
}

// CreateDeployedItem allocates an id, creates the spatial record, commits
// the item and appends its id to the owning home's placement list in the
// same transaction.
func (c *Coordinator) CreateDeployedItem(ctx context.Context, in DeployedItemInput) (int, error) {
	if err := validateItemVariant(in.IsContainer, in.ContainedItemIDs, in.Composition); err != nil {
		return 0, err
	}
	patch := domain.SpatialPatch{Position: in.Position, Rotation: in.Rotation, Scale: in.Scale}
	validate := func(v domain.GraphView) error {
		if _, ok := v.FindHome(in.HomeID); !ok {
			return domain.ValidationError{Field: "home_id", Reason: fmt.Sprintf("home %d does not exist", in.HomeID)}
		}
		return validateModelTexture(v, in.ModelID, in.TextureKey)
	}
	return c.createWithSpatial(ctx, domain.CollectionDeployedItems, patch, validate, func(tx domain.GraphTx, id int, spatialID int64) {
		now := time.Now().UTC()
		tx.PutDeployedItem(domain.DeployedItem{
			Base:             domain.Base{ID: id, CreatedAt: now, UpdatedAt: now},
			Name:             in.Name,
			Detail:           in.Detail,
			Category:         in.Category,
			RecStatus:        in.RecStatus == nil || *in.RecStatus,
			OwnerID:          in.OwnerID,
			HomeID:           in.HomeID,
			SpatialDataID:    spatialID,
			ModelID:          in.ModelID,
			TextureKey:       in.TextureKey,
			IsContainer:      in.IsContainer,
			ContainedItemIDs: dedupe(in.ContainedItemIDs),
			Composition:      dedupe(in.Composition),
		})
		home, _ := tx.FindHome(in.HomeID)
		if !slices.Contains(home.DeployedItemIDs, id) {
			home.DeployedItemIDs = append(home.DeployedItemIDs, id)
			home.UpdatedAt = now
			tx.PutHome(home)
		}
	})
}

// UpdateDeployedItem applies the non-nil patch fields. A texture key change
// is validated against the item's model asset; the contained/composition
// list may only change on the matching variant.
func (c *Coordinator) UpdateDeployedItem(ctx context.Context, id int, patch DeployedItemPatch) error {
	spatial := domain.SpatialPatch{Position: patch.Position, Rotation: patch.Rotation, Scale: patch.Scale}
	return c.updateWithSpatial(ctx, domain.CollectionDeployedItems, id, spatial, func(tx domain.GraphTx) (int64, error) {
		item, ok := tx.FindDeployedItem(id)
		if !ok {
			return 0, domain.NotFoundError{Collection: domain.CollectionDeployedItems, ID: int64(id)}
		}
		if patch.Name != nil {
			item.Name = *patch.Name
		}
		if patch.Detail != nil {
			item.Detail = *patch.Detail
		}
		if patch.Category != nil {
			item.Category = *patch.Category
		}
		if patch.RecStatus != nil {
			item.RecStatus = *patch.RecStatus
		}
		if patch.ModelID != nil {
			item.ModelID = patch.ModelID
		}
		if patch.TextureKey != nil {
			item.TextureKey = patch.TextureKey
		}
		if patch.ModelID != nil || patch.TextureKey != nil {
			if err := validateModelTexture(tx, item.ModelID, item.TextureKey); err != nil {
				return 0, err
			}
		}
		if patch.ContainedItemIDs != nil {
			if !item.IsContainer {
				return 0, domain.ValidationError{Field: "contained_item_ids", Reason: "item is not a container"}
			}
			item.ContainedItemIDs = dedupe(*patch.ContainedItemIDs)
		}
		if patch.Composition != nil {
			if item.IsContainer {
				return 0, domain.ValidationError{Field: "composition", Reason: "item is a container"}
			}
			item.Composition = dedupe(*patch.Composition)
		}
		item.UpdatedAt = time.Now().UTC()
		tx.PutDeployedItem(item)
		return item.SpatialDataID, nil
	})
}

// DeleteDeployedItem removes the spatial record (best effort), the graph
// record, and the id from the owning home's placement list.
func (c *Coordinator) DeleteDeployedItem(ctx context.Context, id int) error {
	return c.deleteWithSpatial(ctx, domain.CollectionDeployedItems, id,
		func(v domain.GraphView) (int64, bool) {
			item, ok := v.FindDeployedItem(id)
			return item.SpatialDataID, ok
		},
		func(tx domain.GraphTx) bool {
			item, ok := tx.FindDeployedItem(id)
			if !ok {
				return false
			}
			if home, ok := tx.FindHome(item.HomeID); ok && slices.Contains(home.DeployedItemIDs, id) {
				home.DeployedItemIDs = slices.DeleteFunc(home.DeployedItemIDs, func(other int) bool { return other == id })
				home.UpdatedAt = time.Now().UTC()
				tx.PutHome(home)
			}
			return tx.DeleteDeployedItem(id)
		})
}

// GetDeployedItemView returns the composed read model, degrading to default
// spatial components when the referenced record is missing.
func (c *Coordinator) GetDeployedItemView(ctx context.Context, id int) (domain.DeployedItemView, error) {
	var item domain.DeployedItem
	found := false
	if err := c.graph.View(ctx, func(v domain.GraphView) error {
		item, found = v.FindDeployedItem(id)
		return nil
	}); err != nil {
		return domain.DeployedItemView{}, err
	}
	if !found {
		return domain.DeployedItemView{}, domain.NotFoundError{Collection: domain.CollectionDeployedItems, ID: int64(id)}
	}
	return c.composeItemView(ctx, item)
}

func (c *Coordinator) composeItemView(ctx context.Context, item domain.DeployedItem) (domain.DeployedItemView, error) {
	rec, err := c.spatialOrDefault(ctx, domain.CollectionDeployedItems, item.ID, item.SpatialDataID)
	if err != nil {
		return domain.DeployedItemView{}, err
	}
	return domain.DeployedItemView{DeployedItem: item, Position: rec.Position, Rotation: rec.Rotation, Scale: rec.Scale}, nil
}

// ListDeployedItemsByOwner yields composed views of the owner's items in id
// order. The sequence is lazy and restartable; every range call rescans.
func (c *Coordinator) ListDeployedItemsByOwner(ctx context.Context, ownerID int64) iter.Seq2[domain.DeployedItemView, error] {
	return func(yield func(domain.DeployedItemView, error) bool) {
		var items []domain.DeployedItem
		if err := c.graph.View(ctx, func(v domain.GraphView) error {
			for _, it := range v.ListDeployedItems() {
				if it.OwnerID == ownerID {
					items = append(items, it)
				}
			}
			return nil
		}); err != nil {
			yield(domain.DeployedItemView{}, err)
			return
		}
		for _, it := range items {
			view, err := c.composeItemView(ctx, it)
			if !yield(view, err) {
				return
			}
			if err != nil {
				return
			}
		}
	}
}
