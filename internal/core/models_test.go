package core_test

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/shinyyxxx/Mindsim/internal/blob"
	"github.com/shinyyxxx/Mindsim/internal/core"
	graphmemory "github.com/shinyyxxx/Mindsim/internal/infra/graph/memory"
	spatialmemory "github.com/shinyyxxx/Mindsim/internal/infra/spatial/memory"
	"github.com/shinyyxxx/Mindsim/pkg/domain"
)

func newAssetCoordinator(t *testing.T) (*core.Coordinator, *blob.MemoryStore) {
	t.Helper()
	assets := blob.NewMemory()
	c := core.New(graphmemory.NewStore(), spatialmemory.NewStore(), core.WithAssetStore(assets))
	t.Cleanup(func() { _ = c.Close() })
	return c, assets
}

func glbInput(name string, textures ...string) core.ModelAssetInput {
	in := core.ModelAssetInput{
		Filename:    name,
		ContentType: "model/gltf-binary",
		Content:     strings.NewReader("glb content of " + name),
	}
	for _, tex := range textures {
		in.Textures = append(in.Textures, core.TextureInput{
			Filename:    tex,
			ContentType: "image/png",
			Content:     strings.NewReader("png content of " + tex),
		})
	}
	return in
}

func TestModelAssetLifecycle(t *testing.T) {
	c, assets := newAssetCoordinator(t)
	ctx := context.Background()

	id, err := c.CreateModelAsset(ctx, glbInput("room.glb", "wood.png", "stone.png"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	asset, rc, err := c.OpenModelAsset(ctx, id)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	data, err := io.ReadAll(rc)
	_ = rc.Close()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "glb content of room.glb" {
		t.Fatalf("content = %q", data)
	}
	if asset.Filename != "room.glb" || len(asset.TextureKeys) != 2 {
		t.Fatalf("asset = %+v", asset)
	}
	if asset.SizeBytes != int64(len(data)) {
		t.Fatalf("size = %d, want %d", asset.SizeBytes, len(data))
	}

	tex, err := c.OpenTexture(ctx, id, asset.TextureKeys[0])
	if err != nil {
		t.Fatalf("open texture: %v", err)
	}
	_ = tex.Close()

	if err := c.DeleteModelAsset(ctx, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := c.GetModelAsset(ctx, id); !domain.IsNotFound(err) {
		t.Fatalf("asset survived delete: %v", err)
	}
	// Every blob under the asset's prefix must be gone.
	infos, err := assets.List(ctx, "models/")
	if err != nil {
		t.Fatalf("list blobs: %v", err)
	}
	if len(infos) != 0 {
		t.Fatalf("blobs left behind: %+v", infos)
	}
}

func TestUpdateModelAssetTexturesReplacesSet(t *testing.T) {
	c, assets := newAssetCoordinator(t)
	ctx := context.Background()

	id, err := c.CreateModelAsset(ctx, glbInput("hut.glb", "thatch.png"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	before, err := c.GetModelAsset(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	if err := c.UpdateModelAssetTextures(ctx, id, []core.TextureInput{
		{Filename: "tile.png", ContentType: "image/png", Content: strings.NewReader("tiles")},
	}); err != nil {
		t.Fatalf("update textures: %v", err)
	}

	after, err := c.GetModelAsset(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(after.TextureKeys) != 1 || !strings.HasSuffix(after.TextureKeys[0], "/tile.png") {
		t.Fatalf("texture keys = %v", after.TextureKeys)
	}
	if !strings.Contains(after.TextureKeys[0], "/textures/") {
		t.Fatalf("texture key outside textures segment: %s", after.TextureKeys[0])
	}
	// The replaced texture blob is deleted, the model blob stays.
	if _, err := assets.Head(ctx, before.TextureKeys[0]); err == nil {
		t.Fatalf("replaced texture blob survived")
	}
	if _, err := assets.Head(ctx, after.BlobKey); err != nil {
		t.Fatalf("model blob missing: %v", err)
	}
}

func TestUpdateModelAssetTexturesReusesFilename(t *testing.T) {
	c, assets := newAssetCoordinator(t)
	ctx := context.Background()

	id, err := c.CreateModelAsset(ctx, glbInput("hut.glb", "thatch.png"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	before, err := c.GetModelAsset(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	if err := c.UpdateModelAssetTextures(ctx, id, []core.TextureInput{
		{Filename: "thatch.png", ContentType: "image/png", Content: strings.NewReader("repainted thatch")},
	}); err != nil {
		t.Fatalf("replace under existing filename: %v", err)
	}

	after, err := c.GetModelAsset(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(after.TextureKeys) != 1 || after.TextureKeys[0] == before.TextureKeys[0] {
		t.Fatalf("texture keys = %v, want one fresh key != %s", after.TextureKeys, before.TextureKeys[0])
	}
	rc, err := c.OpenTexture(ctx, id, after.TextureKeys[0])
	if err != nil {
		t.Fatalf("open texture: %v", err)
	}
	data, err := io.ReadAll(rc)
	_ = rc.Close()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "repainted thatch" {
		t.Fatalf("texture content = %q", data)
	}
	if _, err := assets.Head(ctx, before.TextureKeys[0]); err == nil {
		t.Fatalf("replaced texture blob survived")
	}
}

func TestDeleteModelAssetRefusedWhileReferenced(t *testing.T) {
	c, _ := newAssetCoordinator(t)
	ctx := context.Background()

	id, err := c.CreateModelAsset(ctx, glbInput("villa.glb"))
	if err != nil {
		t.Fatalf("create asset: %v", err)
	}
	homeID, err := c.CreateHome(ctx, core.HomeInput{Name: "villa", ModelID: &id})
	if err != nil {
		t.Fatalf("create home: %v", err)
	}

	var verr domain.ValidationError
	if err := c.DeleteModelAsset(ctx, id); !asValidation(err, &verr) {
		t.Fatalf("delete while referenced = %v, want validation error", err)
	}
	if _, err := c.GetModelAsset(ctx, id); err != nil {
		t.Fatalf("asset must survive refused delete: %v", err)
	}

	if err := c.DeleteHome(ctx, homeID); err != nil {
		t.Fatalf("delete home: %v", err)
	}
	if err := c.DeleteModelAsset(ctx, id); err != nil {
		t.Fatalf("delete after unreference: %v", err)
	}
}

func TestCreateModelAssetRequiresContent(t *testing.T) {
	c, assets := newAssetCoordinator(t)
	ctx := context.Background()

	var verr domain.ValidationError
	if _, err := c.CreateModelAsset(ctx, core.ModelAssetInput{Filename: "empty.glb"}); !asValidation(err, &verr) {
		t.Fatalf("missing content = %v, want validation error", err)
	}
	if _, err := c.CreateModelAsset(ctx, core.ModelAssetInput{Content: strings.NewReader("x")}); !asValidation(err, &verr) {
		t.Fatalf("missing filename = %v, want validation error", err)
	}
	infos, err := assets.List(ctx, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(infos) != 0 {
		t.Fatalf("rejected input wrote blobs: %+v", infos)
	}
}
