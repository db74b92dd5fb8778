// Package domain defines the persistent entities, value types, error kinds
// and store contracts of the spatial entity store.
package domain

import "time"

// Collection identifies a named collection in the object graph. Each
// collection also names the spatial namespace (table) for its records.
type Collection string

// Collections persisted by the object-graph repository.
const (
	// CollectionMentalSpheres holds MentalSphere records.
	CollectionMentalSpheres Collection = "mental_spheres"
	// CollectionMinds holds Mind records.
	CollectionMinds Collection = "minds"
	// CollectionHomes holds HomeObject records.
	CollectionHomes Collection = "homes"
	// CollectionDeployedItems holds DeployedItem records.
	CollectionDeployedItems Collection = "deployed_items"
	// CollectionModelAssets holds ModelAsset records referencing blob content.
	CollectionModelAssets Collection = "model_assets"
)

// Collections lists every graph collection in persistence-bucket order.
func Collections() []Collection {
	return []Collection{
		CollectionMentalSpheres,
		CollectionMinds,
		CollectionHomes,
		CollectionDeployedItems,
		CollectionModelAssets,
	}
}

// DefaultColor is applied to spheres created without an explicit color.
const DefaultColor = "#FFFFFF"

// Base contains the common fields of all graph records. IDs are integers
// assigned monotonically per collection (max existing id + 1).
type Base struct {
	ID        int       `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MentalSphere is a visualized sphere owned by a user. SpatialDataID is a
// non-owning reference into the spatial coordinate repository; deleting the
// sphere must also delete the referenced spatial record.
type MentalSphere struct {
	Base
	Name          string `json:"name"`
	Detail        string `json:"detail"`
	Color         string `json:"color"`
	Texture       string `json:"texture"`
	RecStatus     bool   `json:"rec_status"`
	OwnerID       int64  `json:"owner_id"`
	SpatialDataID int64  `json:"spatial_data_id"`
}

// Mind groups mental spheres by id. Membership is set-like and non-owning:
// sphere lifetime is independent of the minds that reference it.
type Mind struct {
	Base
	Name            string `json:"name"`
	Detail          string `json:"detail"`
	RecStatus       bool   `json:"rec_status"`
	OwnerID         int64  `json:"owner_id"`
	SpatialDataID   int64  `json:"spatial_data_id"`
	MentalSphereIDs []int  `json:"mental_sphere_ids"`
}

// HomeObject is a user's 3D home scene. ModelID references the ModelAsset
// holding the GLB content; DeployedItemIDs lists the items placed in it.
type HomeObject struct {
	Base
	Name            string  `json:"name"`
	Detail          string  `json:"detail"`
	RecStatus       bool    `json:"rec_status"`
	OwnerID         int64   `json:"owner_id"`
	SpatialDataID   int64   `json:"spatial_data_id"`
	ModelID         *int    `json:"model_id"`
	TextureKey      *string `json:"texture_key"`
	DeployedItemIDs []int   `json:"deployed_item_ids"`
}

// DeployedItem is an item placed in a home. Container items carry
// ContainedItemIDs; non-container items carry Composition. Exactly one of
// the two lists is meaningful, selected by IsContainer.
type DeployedItem struct {
	Base
	Name             string  `json:"name"`
	Detail           string  `json:"detail"`
	Category         string  `json:"category"`
	RecStatus        bool    `json:"rec_status"`
	OwnerID          int64   `json:"owner_id"`
	HomeID           int     `json:"home_id"`
	SpatialDataID    int64   `json:"spatial_data_id"`
	ModelID          *int    `json:"model_id"`
	TextureKey       *string `json:"texture_key"`
	IsContainer      bool    `json:"is_container"`
	ContainedItemIDs []int   `json:"contained_item_ids,omitempty"`
	Composition      []int   `json:"composition,omitempty"`
}

// ModelAsset records a 3D model (GLB) stored in the blob store together
// with the blob keys of its textures.
type ModelAsset struct {
	Base
	Filename    string   `json:"filename"`
	BlobKey     string   `json:"blob_key"`
	ContentType string   `json:"content_type"`
	SizeBytes   int64    `json:"size_bytes"`
	TextureKeys []string `json:"texture_keys"`
}

// HasTexture reports whether key is one of the asset's texture blob keys.
func (m ModelAsset) HasTexture(key string) bool {
	for _, k := range m.TextureKeys {
		if k == key {
			return true
		}
	}
	return false
}
