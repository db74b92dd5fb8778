package domain

import "time"

// DefaultSRID is the geographic 3D spatial reference shared by every
// spatial record in a deployment.
const DefaultSRID = 4979

// Vec3 is a 3-component coordinate. Rotations are expressed in degrees;
// no unit conversion happens anywhere in the store.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// UniformScale expands a scalar scale factor into its Vec3 form.
func UniformScale(s float64) Vec3 { return Vec3{X: s, Y: s, Z: s} }

// Spatial defaults applied when a create request leaves a component unset.
func DefaultPosition() Vec3 { return Vec3{} }

// DefaultRotation is the zero rotation in degrees.
func DefaultRotation() Vec3 { return Vec3{} }

// DefaultScale is the identity scale.
func DefaultScale() Vec3 { return UniformScale(1) }

// SpatialRecord is a durable position/rotation/scale triple owned by the
// spatial coordinate repository. Entities reference it by id.
type SpatialRecord struct {
	ID        int64     `json:"id"`
	Position  Vec3      `json:"position"`
	Rotation  Vec3      `json:"rotation"` // degrees
	Scale     Vec3      `json:"scale"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SpatialPatch carries the components of a partial spatial update. Nil
// fields are left untouched; the repository must never overwrite an absent
// component with a default.
type SpatialPatch struct {
	Position *Vec3
	Rotation *Vec3
	Scale    *Vec3
}

// IsZero reports whether the patch carries no components.
func (p SpatialPatch) IsZero() bool {
	return p.Position == nil && p.Rotation == nil && p.Scale == nil
}
