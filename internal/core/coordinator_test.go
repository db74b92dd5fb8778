package core_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/shinyyxxx/Mindsim/internal/core"
	graphmemory "github.com/shinyyxxx/Mindsim/internal/infra/graph/memory"
	spatialmemory "github.com/shinyyxxx/Mindsim/internal/infra/spatial/memory"
	"github.com/shinyyxxx/Mindsim/pkg/domain"
)

func newCoordinator(t *testing.T, opts ...core.Option) (*core.Coordinator, *spatialmemory.Store) {
	t.Helper()
	spatial := spatialmemory.NewStore()
	c := core.New(graphmemory.NewStore(), spatial, opts...)
	t.Cleanup(func() { _ = c.Close() })
	return c, spatial
}

func vec(x, y, z float64) *domain.Vec3 {
	return &domain.Vec3{X: x, Y: y, Z: z}
}

// failingGraph wraps a graph store and fails the next commit with the
// configured error after the transaction body has run, simulating a commit
// failure that happens after the spatial record exists.
type failingGraph struct {
	domain.GraphStore
	mu       sync.Mutex
	failNext error
}

func (g *failingGraph) RunInTransaction(ctx context.Context, fn func(domain.GraphTx) error) error {
	g.mu.Lock()
	injected := g.failNext
	g.failNext = nil
	g.mu.Unlock()
	if injected == nil {
		return g.GraphStore.RunInTransaction(ctx, fn)
	}
	_ = g.GraphStore.RunInTransaction(ctx, func(tx domain.GraphTx) error {
		if err := fn(tx); err != nil {
			return err
		}
		return injected
	})
	return injected
}

func TestCreateSphereComposedView(t *testing.T) {
	c, _ := newCoordinator(t)
	ctx := context.Background()

	scale := domain.UniformScale(2)
	id, err := c.CreateMentalSphere(ctx, core.MentalSphereInput{
		Name:     "curiosity",
		OwnerID:  42,
		Position: vec(1, 1, 1),
		Scale:    &scale,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	view, err := c.GetMentalSphereView(ctx, id)
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	if diff := cmp.Diff(domain.Vec3{X: 1, Y: 1, Z: 1}, view.Position); diff != "" {
		t.Fatalf("position mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(domain.UniformScale(2), view.Scale); diff != "" {
		t.Fatalf("scale mismatch (-want +got):\n%s", diff)
	}
	if !view.RecStatus {
		t.Fatalf("rec_status must default to true")
	}
	if view.Color != domain.DefaultColor {
		t.Fatalf("color = %q, want default", view.Color)
	}
	if view.SpatialDataID == 0 {
		t.Fatalf("sphere must reference its spatial record")
	}
}

func TestCreateCompensatesSpatialOnCommitFailure(t *testing.T) {
	spatial := spatialmemory.NewStore()
	graph := &failingGraph{GraphStore: graphmemory.NewStore()}
	c := core.New(graph, spatial)
	t.Cleanup(func() { _ = c.Close() })
	ctx := context.Background()

	boom := errors.New("commit refused")
	graph.failNext = boom

	_, err := c.CreateMentalSphere(ctx, core.MentalSphereInput{Name: "doomed", Position: vec(5, 5, 5)})
	if !errors.Is(err, boom) {
		t.Fatalf("original error must propagate, got %v", err)
	}
	var comp domain.CompensationError
	if !errors.As(err, &comp) {
		t.Fatalf("error must carry the compensation outcome, got %T", err)
	}
	if comp.CleanupErr != nil {
		t.Fatalf("compensating delete should have succeeded: %v", comp.CleanupErr)
	}

	// The spatial record created during the failed attempt must be gone.
	if _, err := spatial.Get(ctx, domain.CollectionMentalSpheres, comp.SpatialID); !domain.IsNotFound(err) {
		t.Fatalf("orphaned spatial record survived: %v", err)
	}

	// The graph must not contain the entity either.
	if _, err := c.GetMentalSphereView(ctx, 1); !domain.IsNotFound(err) {
		t.Fatalf("entity committed despite failure: %v", err)
	}
}

func TestConcurrentCreatesReceiveDistinctIDs(t *testing.T) {
	c, _ := newCoordinator(t)
	ctx := context.Background()

	const writers = 4
	start := make(chan struct{})
	ids := make(chan int, writers)
	errs := make(chan error, writers)
	var wg sync.WaitGroup
	for range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			id, err := c.CreateMentalSphere(ctx, core.MentalSphereInput{Name: "racer"})
			if err != nil {
				errs <- err
				return
			}
			ids <- id
		}()
	}
	close(start)
	wg.Wait()
	close(ids)
	close(errs)

	for err := range errs {
		// Conflict retries are bounded; exhausting them under heavy overlap
		// is allowed, silent duplicate ids are not.
		if !domain.IsConflict(err) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	seen := map[int]bool{}
	for id := range ids {
		if seen[id] {
			t.Fatalf("duplicate id %d handed to two creators", id)
		}
		seen[id] = true
	}
	if len(seen) == 0 {
		t.Fatalf("no create succeeded")
	}
}

func TestUpdatePreservesUntouchedFields(t *testing.T) {
	c, _ := newCoordinator(t)
	ctx := context.Background()

	id, err := c.CreateMentalSphere(ctx, core.MentalSphereInput{
		Name:     "stable",
		Detail:   "original detail",
		Position: vec(1, 2, 3),
		Rotation: vec(4, 5, 6),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	name := "renamed"
	if err := c.UpdateMentalSphere(ctx, id, core.MentalSpherePatch{
		Name:     &name,
		Rotation: vec(7, 8, 9),
	}); err != nil {
		t.Fatalf("update: %v", err)
	}

	view, err := c.GetMentalSphereView(ctx, id)
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	if view.Name != "renamed" || view.Detail != "original detail" {
		t.Fatalf("graph fields wrong: %+v", view.MentalSphere)
	}
	if diff := cmp.Diff(domain.Vec3{X: 1, Y: 2, Z: 3}, view.Position); diff != "" {
		t.Fatalf("position clobbered (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(domain.Vec3{X: 7, Y: 8, Z: 9}, view.Rotation); diff != "" {
		t.Fatalf("rotation not applied (-want +got):\n%s", diff)
	}
}

func TestUpdateAbsentEntityIsNotFound(t *testing.T) {
	c, _ := newCoordinator(t)
	name := "ghost"
	err := c.UpdateMentalSphere(context.Background(), 99, core.MentalSpherePatch{Name: &name})
	if !domain.IsNotFound(err) {
		t.Fatalf("err = %v, want not found", err)
	}
}

func TestDeleteRemovesBothRecordsAndSecondDeleteIsNotFound(t *testing.T) {
	c, spatial := newCoordinator(t)
	ctx := context.Background()

	id, err := c.CreateMentalSphere(ctx, core.MentalSphereInput{Name: "short-lived"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	view, err := c.GetMentalSphereView(ctx, id)
	if err != nil {
		t.Fatalf("view: %v", err)
	}

	if err := c.DeleteMentalSphere(ctx, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := spatial.Get(ctx, domain.CollectionMentalSpheres, view.SpatialDataID); !domain.IsNotFound(err) {
		t.Fatalf("spatial record survived delete: %v", err)
	}
	if err := c.DeleteMentalSphere(ctx, id); !domain.IsNotFound(err) {
		t.Fatalf("second delete = %v, want not found", err)
	}
}

func TestDeleteToleratesAlreadyMissingSpatialRecord(t *testing.T) {
	c, spatial := newCoordinator(t)
	ctx := context.Background()

	id, err := c.CreateMentalSphere(ctx, core.MentalSphereInput{Name: "orphaned"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	view, err := c.GetMentalSphereView(ctx, id)
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	// Simulate the orphan: the spatial side vanished out from under the
	// entity.
	if err := spatial.Delete(ctx, domain.CollectionMentalSpheres, view.SpatialDataID); err != nil {
		t.Fatalf("spatial delete: %v", err)
	}

	if err := c.DeleteMentalSphere(ctx, id); err != nil {
		t.Fatalf("delete with missing spatial record must succeed: %v", err)
	}
	if _, err := c.GetMentalSphereView(ctx, id); !domain.IsNotFound(err) {
		t.Fatalf("graph record survived: %v", err)
	}
}

func TestViewDegradesWhenSpatialRecordMissing(t *testing.T) {
	c, spatial := newCoordinator(t)
	ctx := context.Background()

	id, err := c.CreateMentalSphere(ctx, core.MentalSphereInput{Name: "degraded", Position: vec(9, 9, 9)})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	view, err := c.GetMentalSphereView(ctx, id)
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	if err := spatial.Delete(ctx, domain.CollectionMentalSpheres, view.SpatialDataID); err != nil {
		t.Fatalf("spatial delete: %v", err)
	}

	degraded, err := c.GetMentalSphereView(ctx, id)
	if err != nil {
		t.Fatalf("read must not fail on a missing spatial record: %v", err)
	}
	if diff := cmp.Diff(domain.DefaultPosition(), degraded.Position); diff != "" {
		t.Fatalf("position not defaulted (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(domain.DefaultScale(), degraded.Scale); diff != "" {
		t.Fatalf("scale not defaulted (-want +got):\n%s", diff)
	}
	if degraded.Name != "degraded" {
		t.Fatalf("graph fields must survive: %+v", degraded.MentalSphere)
	}
}

func TestListByOwnerIsRestartable(t *testing.T) {
	c, _ := newCoordinator(t)
	ctx := context.Background()

	for _, in := range []core.MentalSphereInput{
		{Name: "a", OwnerID: 1},
		{Name: "b", OwnerID: 2},
		{Name: "c", OwnerID: 1},
	} {
		if _, err := c.CreateMentalSphere(ctx, in); err != nil {
			t.Fatalf("create %s: %v", in.Name, err)
		}
	}

	collect := func() []string {
		var names []string
		for view, err := range c.ListMentalSpheresByOwner(ctx, 1) {
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			names = append(names, view.Name)
		}
		return names
	}

	first := collect()
	second := collect()
	want := []string{"a", "c"}
	if diff := cmp.Diff(want, first); diff != "" {
		t.Fatalf("first pass (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want, second); diff != "" {
		t.Fatalf("sequence must rescan on every range (-want +got):\n%s", diff)
	}
}
