package domain

import "context"

// GraphView exposes read-only lookups over a consistent snapshot of the
// object graph. List order is ascending by id.
type GraphView interface {
	FindMentalSphere(id int) (MentalSphere, bool)
	ListMentalSpheres() []MentalSphere
	FindMind(id int) (Mind, bool)
	ListMinds() []Mind
	FindHome(id int) (HomeObject, bool)
	ListHomes() []HomeObject
	FindDeployedItem(id int) (DeployedItem, bool)
	ListDeployedItems() []DeployedItem
	FindModelAsset(id int) (ModelAsset, bool)
	ListModelAssets() []ModelAsset
}

// GraphTx is a mutable unit of work over the object graph. All writes stay
// pending until the enclosing RunInTransaction commits; a returned error
// aborts the transaction and discards them.
type GraphTx interface {
	GraphView

	// NextID scans the collection's existing keys and returns max+1, or 1
	// for an empty collection. Two concurrent transactions can observe the
	// same value; the collision is detected at commit and surfaced as a
	// ConflictError to one of the committers.
	NextID(c Collection) int

	PutMentalSphere(s MentalSphere)
	DeleteMentalSphere(id int) bool
	PutMind(m Mind)
	DeleteMind(id int) bool
	PutHome(h HomeObject)
	DeleteHome(id int) bool
	PutDeployedItem(d DeployedItem)
	DeleteDeployedItem(id int) bool
	PutModelAsset(a ModelAsset)
	DeleteModelAsset(id int) bool
}

// GraphStore is the object-graph repository: an embedded transactional
// store keyed by collection and integer id.
//
// RunInTransaction runs fn against a snapshot of the graph. When fn returns
// nil the pending writes are validated against concurrent commits and
// applied atomically; overlapping commits fail with ConflictError and must
// never merge with another writer's state. When fn returns an error the
// transaction aborts on every exit path and prior committed state is
// untouched.
type GraphStore interface {
	RunInTransaction(ctx context.Context, fn func(GraphTx) error) error
	View(ctx context.Context, fn func(GraphView) error) error
	Close() error
}

// SpatialStore is the spatial coordinate repository. Each collection has
// its own namespace; writes are single statements relying on the underlying
// engine's per-statement atomicity. No spatial write ever spans a graph
// commit boundary, which is why the coordinator compensates instead of
// running a cross-store transaction.
type SpatialStore interface {
	// Create inserts a record, applying defaults (zero position/rotation,
	// identity scale) for absent patch components, and returns its id.
	Create(ctx context.Context, c Collection, patch SpatialPatch) (int64, error)

	// Update applies only the supplied components (coalesce semantics).
	// It returns false with a nil error when no row matched; callers decide
	// whether to surface that as a not-found condition.
	Update(ctx context.Context, c Collection, id int64, patch SpatialPatch) (bool, error)

	// Get decodes the stored geometry back into coordinate triples,
	// returning NotFoundError for absent ids.
	Get(ctx context.Context, c Collection, id int64) (SpatialRecord, error)

	// Delete removes the record. Deleting an absent id is not an error.
	Delete(ctx context.Context, c Collection, id int64) error

	// PositionHistory returns previously overwritten positions for the
	// record, oldest first.
	PositionHistory(ctx context.Context, c Collection, id int64) ([]Vec3, error)

	Close() error
}
