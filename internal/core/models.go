package core

import (
	"context"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/google/uuid"

	"github.com/shinyyxxx/Mindsim/internal/blob"
	"github.com/shinyyxxx/Mindsim/pkg/domain"
)

// ModelAssetInput carries a new GLB model and its texture images.
type ModelAssetInput struct {
	Filename    string
	ContentType string
	Content     io.Reader
	Textures    []TextureInput
}

// TextureInput is one texture image attached to a model asset.
type TextureInput struct {
	Filename    string
	ContentType string
	Content     io.Reader
}

// CreateModelAsset stores the model and texture blobs, then commits the
// graph record referencing them. Blob writes are not covered by the graph
// commit, so a failed commit triggers compensating blob deletes.
func (c *Coordinator) CreateModelAsset(ctx context.Context, in ModelAssetInput) (int, error) {
	if in.Filename == "" {
		return 0, domain.ValidationError{Field: "filename", Reason: "required"}
	}
	if in.Content == nil {
		return 0, domain.ValidationError{Field: "content", Reason: "required"}
	}
	prefix := "models/" + uuid.NewString()
	modelKey := prefix + "/" + path.Base(in.Filename)

	info, err := c.assets.Put(ctx, modelKey, in.Content, blob.PutOptions{ContentType: in.ContentType})
	if err != nil {
		c.metrics.observe(domain.CollectionModelAssets, "create", outcomeError)
		return 0, fmt.Errorf("store model blob: %w", err)
	}
	written := []string{modelKey}

	textureKeys := make([]string, 0, len(in.Textures))
	for _, tex := range in.Textures {
		key := prefix + "/textures/" + path.Base(tex.Filename)
		if _, err := c.assets.Put(ctx, key, tex.Content, blob.PutOptions{ContentType: tex.ContentType}); err != nil {
			c.deleteBlobs(ctx, written)
			c.metrics.observe(domain.CollectionModelAssets, "create", outcomeError)
			return 0, fmt.Errorf("store texture blob %s: %w", tex.Filename, err)
		}
		written = append(written, key)
		textureKeys = append(textureKeys, key)
	}

	var id int
	for attempt := 0; ; attempt++ {
		err := c.graph.RunInTransaction(ctx, func(tx domain.GraphTx) error {
			id = tx.NextID(domain.CollectionModelAssets)
			now := time.Now().UTC()
			tx.PutModelAsset(domain.ModelAsset{
				Base:        domain.Base{ID: id, CreatedAt: now, UpdatedAt: now},
				Filename:    in.Filename,
				BlobKey:     modelKey,
				ContentType: in.ContentType,
				SizeBytes:   info.Size,
				TextureKeys: textureKeys,
			})
			return nil
		})
		if err == nil {
			c.metrics.observe(domain.CollectionModelAssets, "create", outcomeOK)
			return id, nil
		}
		if domain.IsConflict(err) {
			c.metrics.commitConflicts.Inc()
			if attempt < c.retries {
				continue
			}
		}
		c.deleteBlobs(ctx, written)
		c.metrics.observe(domain.CollectionModelAssets, "create", outcomeError)
		return 0, err
	}
}

// GetModelAsset returns the graph record of a model asset.
func (c *Coordinator) GetModelAsset(ctx context.Context, id int) (domain.ModelAsset, error) {
	var asset domain.ModelAsset
	found := false
	if err := c.graph.View(ctx, func(v domain.GraphView) error {
		asset, found = v.FindModelAsset(id)
		return nil
	}); err != nil {
		return domain.ModelAsset{}, err
	}
	if !found {
		return domain.ModelAsset{}, domain.NotFoundError{Collection: domain.CollectionModelAssets, ID: int64(id)}
	}
	return asset, nil
}

// OpenModelAsset returns the asset record and a reader over its GLB
// content. The caller owns closing the reader.
func (c *Coordinator) OpenModelAsset(ctx context.Context, id int) (domain.ModelAsset, io.ReadCloser, error) {
	asset, err := c.GetModelAsset(ctx, id)
	if err != nil {
		return domain.ModelAsset{}, nil, err
	}
	_, rc, err := c.assets.Get(ctx, asset.BlobKey)
	if err != nil {
		return domain.ModelAsset{}, nil, fmt.Errorf("open model blob %s: %w", asset.BlobKey, err)
	}
	return asset, rc, nil
}

// OpenTexture returns a reader over one of the asset's texture blobs.
func (c *Coordinator) OpenTexture(ctx context.Context, id int, textureKey string) (io.ReadCloser, error) {
	asset, err := c.GetModelAsset(ctx, id)
	if err != nil {
		return nil, err
	}
	if !asset.HasTexture(textureKey) {
		return nil, domain.ValidationError{Field: "texture_key", Reason: fmt.Sprintf("%q is not a texture of model asset %d", textureKey, id)}
	}
	_, rc, err := c.assets.Get(ctx, textureKey)
	if err != nil {
		return nil, fmt.Errorf("open texture blob %s: %w", textureKey, err)
	}
	return rc, nil
}

// UpdateModelAssetTextures replaces the asset's texture set. New blobs are
// written first under a fresh version segment, so a replacement may reuse a
// filename from the current set; the graph record is committed next and the
// replaced blobs are deleted last, best effort.
func (c *Coordinator) UpdateModelAssetTextures(ctx context.Context, id int, textures []TextureInput) error {
	asset, err := c.GetModelAsset(ctx, id)
	if err != nil {
		return err
	}
	prefix := path.Dir(asset.BlobKey) + "/textures/" + uuid.NewString()

	newKeys := make([]string, 0, len(textures))
	for _, tex := range textures {
		key := prefix + "/" + path.Base(tex.Filename)
		if _, err := c.assets.Put(ctx, key, tex.Content, blob.PutOptions{ContentType: tex.ContentType}); err != nil {
			c.deleteBlobs(ctx, newKeys)
			c.metrics.observe(domain.CollectionModelAssets, "update", outcomeError)
			return fmt.Errorf("store texture blob %s: %w", tex.Filename, err)
		}
		newKeys = append(newKeys, key)
	}

	var replaced []string
	err = c.graph.RunInTransaction(ctx, func(tx domain.GraphTx) error {
		current, ok := tx.FindModelAsset(id)
		if !ok {
			return domain.NotFoundError{Collection: domain.CollectionModelAssets, ID: int64(id)}
		}
		replaced = current.TextureKeys
		current.TextureKeys = newKeys
		current.UpdatedAt = time.Now().UTC()
		tx.PutModelAsset(current)
		return nil
	})
	if err != nil {
		c.deleteBlobs(ctx, newKeys)
		c.metrics.observe(domain.CollectionModelAssets, "update", outcomeError)
		return err
	}
	c.deleteBlobs(ctx, diffKeys(replaced, newKeys))
	c.metrics.observe(domain.CollectionModelAssets, "update", outcomeOK)
	return nil
}

// DeleteModelAsset removes the graph record and its blobs. Deletion is
// refused while any home or deployed item still references the asset.
func (c *Coordinator) DeleteModelAsset(ctx context.Context, id int) error {
	var keys []string
	err := c.graph.RunInTransaction(ctx, func(tx domain.GraphTx) error {
		asset, ok := tx.FindModelAsset(id)
		if !ok {
			return domain.NotFoundError{Collection: domain.CollectionModelAssets, ID: int64(id)}
		}
		for _, home := range tx.ListHomes() {
			if home.ModelID != nil && *home.ModelID == id {
				return domain.ValidationError{Field: "model_id", Reason: fmt.Sprintf("model asset %d is referenced by home %d", id, home.ID)}
			}
		}
		for _, item := range tx.ListDeployedItems() {
			if item.ModelID != nil && *item.ModelID == id {
				return domain.ValidationError{Field: "model_id", Reason: fmt.Sprintf("model asset %d is referenced by deployed item %d", id, item.ID)}
			}
		}
		keys = append([]string{asset.BlobKey}, asset.TextureKeys...)
		tx.DeleteModelAsset(id)
		return nil
	})
	if err != nil {
		c.metrics.observe(domain.CollectionModelAssets, "delete", outcomeError)
		return err
	}
	c.deleteBlobs(ctx, keys)
	c.metrics.observe(domain.CollectionModelAssets, "delete", outcomeOK)
	return nil
}

// deleteBlobs removes keys best effort, logging any blob left behind.
func (c *Coordinator) deleteBlobs(ctx context.Context, keys []string) {
	for _, key := range keys {
		if _, err := c.assets.Delete(ctx, key); err != nil {
			c.metrics.orphansLeaked.Inc()
			c.log.Error().Err(err).Str("blob_key", key).Msg("orphan leaked: blob delete failed")
		}
	}
}

func diffKeys(old, current []string) []string {
	keep := make(map[string]bool, len(current))
	for _, key := range current {
		keep[key] = true
	}
	var out []string
	for _, key := range old {
		if !keep[key] {
			out = append(out, key)
		}
	}
	return out
}
