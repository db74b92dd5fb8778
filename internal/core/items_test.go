package core_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/shinyyxxx/Mindsim/internal/core"
	"github.com/shinyyxxx/Mindsim/pkg/domain"
)

func createHome(t *testing.T, c *core.Coordinator) int {
	t.Helper()
	id, err := c.CreateHome(context.Background(), core.HomeInput{Name: "base", OwnerID: 1})
	if err != nil {
		t.Fatalf("create home: %v", err)
	}
	return id
}

func TestCreateItemAppendsToHomePlacementList(t *testing.T) {
	c, _ := newCoordinator(t)
	ctx := context.Background()
	homeID := createHome(t, c)

	itemID, err := c.CreateDeployedItem(ctx, core.DeployedItemInput{
		Name:     "chair",
		Category: "furniture",
		OwnerID:  1,
		HomeID:   homeID,
		Position: vec(2, 0, 2),
	})
	if err != nil {
		t.Fatalf("create item: %v", err)
	}

	home, err := c.GetHomeView(ctx, homeID)
	if err != nil {
		t.Fatalf("home view: %v", err)
	}
	if diff := cmp.Diff([]int{itemID}, home.DeployedItemIDs); diff != "" {
		t.Fatalf("placement list (-want +got):\n%s", diff)
	}

	item, err := c.GetDeployedItemView(ctx, itemID)
	if err != nil {
		t.Fatalf("item view: %v", err)
	}
	if item.HomeID != homeID {
		t.Fatalf("item home = %d, want %d", item.HomeID, homeID)
	}
	if diff := cmp.Diff(domain.Vec3{X: 2, Y: 0, Z: 2}, item.Position); diff != "" {
		t.Fatalf("position (-want +got):\n%s", diff)
	}
}

func TestCreateItemRequiresExistingHome(t *testing.T) {
	c, spatial := newCoordinator(t)
	ctx := context.Background()

	_, err := c.CreateDeployedItem(ctx, core.DeployedItemInput{Name: "stray", HomeID: 404})
	var verr domain.ValidationError
	if !asValidation(err, &verr) || verr.Field != "home_id" {
		t.Fatalf("err = %v, want home_id validation error", err)
	}
	// Validation runs before any store write.
	if _, err := spatial.Get(ctx, domain.CollectionDeployedItems, 1); !domain.IsNotFound(err) {
		t.Fatalf("spatial record created despite validation failure: %v", err)
	}
}

func TestDeleteItemRemovesFromHomePlacementList(t *testing.T) {
	c, _ := newCoordinator(t)
	ctx := context.Background()
	homeID := createHome(t, c)

	itemID, err := c.CreateDeployedItem(ctx, core.DeployedItemInput{Name: "lamp", HomeID: homeID})
	if err != nil {
		t.Fatalf("create item: %v", err)
	}
	if err := c.DeleteDeployedItem(ctx, itemID); err != nil {
		t.Fatalf("delete item: %v", err)
	}

	home, err := c.GetHomeView(ctx, homeID)
	if err != nil {
		t.Fatalf("home view: %v", err)
	}
	if len(home.DeployedItemIDs) != 0 {
		t.Fatalf("placement list = %v, want empty", home.DeployedItemIDs)
	}
	if _, err := c.GetDeployedItemView(ctx, itemID); !domain.IsNotFound(err) {
		t.Fatalf("item survived delete: %v", err)
	}
}

func TestItemVariantListsAreExclusive(t *testing.T) {
	c, _ := newCoordinator(t)
	ctx := context.Background()
	homeID := createHome(t, c)

	_, err := c.CreateDeployedItem(ctx, core.DeployedItemInput{
		Name:        "box",
		HomeID:      homeID,
		IsContainer: true,
		Composition: []int{1},
	})
	var verr domain.ValidationError
	if !asValidation(err, &verr) {
		t.Fatalf("container with composition = %v, want validation error", err)
	}

	itemID, err := c.CreateDeployedItem(ctx, core.DeployedItemInput{
		Name:        "crate",
		HomeID:      homeID,
		IsContainer: true,
	})
	if err != nil {
		t.Fatalf("create container: %v", err)
	}
	contained := []int{7, 8}
	if err := c.UpdateDeployedItem(ctx, itemID, core.DeployedItemPatch{ContainedItemIDs: &contained}); err != nil {
		t.Fatalf("update contained ids: %v", err)
	}
	composition := []int{9}
	err = c.UpdateDeployedItem(ctx, itemID, core.DeployedItemPatch{Composition: &composition})
	if !asValidation(err, &verr) {
		t.Fatalf("composition on container = %v, want validation error", err)
	}
}

func TestTextureKeyMustBelongToModel(t *testing.T) {
	c, _ := newCoordinator(t)
	ctx := context.Background()
	homeID := createHome(t, c)

	modelID, err := c.CreateModelAsset(ctx, core.ModelAssetInput{
		Filename:    "room.glb",
		ContentType: "model/gltf-binary",
		Content:     strings.NewReader("glb bytes"),
		Textures: []core.TextureInput{
			{Filename: "wood.png", ContentType: "image/png", Content: strings.NewReader("png")},
		},
	})
	if err != nil {
		t.Fatalf("create model asset: %v", err)
	}
	asset, err := c.GetModelAsset(ctx, modelID)
	if err != nil {
		t.Fatalf("get model asset: %v", err)
	}

	itemID, err := c.CreateDeployedItem(ctx, core.DeployedItemInput{Name: "table", HomeID: homeID, ModelID: &modelID})
	if err != nil {
		t.Fatalf("create item: %v", err)
	}

	// A key outside the model's texture set is rejected.
	bogus := "textures/marble.png"
	err = c.UpdateDeployedItem(ctx, itemID, core.DeployedItemPatch{TextureKey: &bogus})
	var verr domain.ValidationError
	if !asValidation(err, &verr) || verr.Field != "texture_key" {
		t.Fatalf("bogus texture = %v, want texture_key validation error", err)
	}

	// A key from the set is accepted.
	if err := c.UpdateDeployedItem(ctx, itemID, core.DeployedItemPatch{TextureKey: &asset.TextureKeys[0]}); err != nil {
		t.Fatalf("valid texture rejected: %v", err)
	}

	// A texture key without any model reference is rejected up front.
	_, err = c.CreateDeployedItem(ctx, core.DeployedItemInput{Name: "floating", HomeID: homeID, TextureKey: &bogus})
	if !asValidation(err, &verr) {
		t.Fatalf("texture without model = %v, want validation error", err)
	}
}

func asValidation(err error, target *domain.ValidationError) bool {
	return errors.As(err, target)
}
