package domain

// Composed read models merging graph fields with spatial fields. When the
// referenced spatial record is missing the spatial side is defaulted rather
// than failing the read.

// MentalSphereView is the composed read model of a sphere.
type MentalSphereView struct {
	MentalSphere
	Position Vec3 `json:"position"`
	Rotation Vec3 `json:"rotation"`
	Scale    Vec3 `json:"scale"`
}

// MindView is the composed read model of a mind.
type MindView struct {
	Mind
	Position Vec3 `json:"position"`
	Rotation Vec3 `json:"rotation"`
	Scale    Vec3 `json:"scale"`
}

// HomeView is the composed read model of a home.
type HomeView struct {
	HomeObject
	Position Vec3 `json:"position"`
	Rotation Vec3 `json:"rotation"`
	Scale    Vec3 `json:"scale"`
}

// DeployedItemView is the composed read model of a deployed item.
type DeployedItemView struct {
	DeployedItem
	Position Vec3 `json:"position"`
	Rotation Vec3 `json:"rotation"`
	Scale    Vec3 `json:"scale"`
}
