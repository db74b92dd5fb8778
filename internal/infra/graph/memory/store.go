// Package memory provides the in-memory implementation of the object-graph
// repository. Durable backends embed it and snapshot its state after each
// committed transaction.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/shinyyxxx/Mindsim/pkg/domain"
)

// Compile-time contract assertion ensuring memory.Store adheres to the
// domain graph-store interface.
var _ domain.GraphStore = (*Store)(nil)

type (
	// MentalSphere aliases domain.MentalSphere for in-memory persistence.
	MentalSphere = domain.MentalSphere
	// Mind aliases domain.Mind.
	Mind = domain.Mind
	// HomeObject aliases domain.HomeObject.
	HomeObject = domain.HomeObject
	// DeployedItem aliases domain.DeployedItem.
	DeployedItem = domain.DeployedItem
	// ModelAsset aliases domain.ModelAsset.
	ModelAsset = domain.ModelAsset
	// Collection aliases domain.Collection used to key graph namespaces.
	Collection = domain.Collection
	// GraphTx aliases domain.GraphTx representing a mutable unit of work.
	GraphTx = domain.GraphTx
	// GraphView aliases domain.GraphView providing read-only state.
	GraphView = domain.GraphView
)

type graphState struct {
	spheres map[int]MentalSphere
	minds   map[int]Mind
	homes   map[int]HomeObject
	items   map[int]DeployedItem
	models  map[int]ModelAsset
}

func newGraphState() graphState {
	return graphState{
		spheres: make(map[int]MentalSphere),
		minds:   make(map[int]Mind),
		homes:   make(map[int]HomeObject),
		items:   make(map[int]DeployedItem),
		models:  make(map[int]ModelAsset),
	}
}

func (s graphState) clone() graphState {
	cloned := newGraphState()
	for k, v := range s.spheres {
		cloned.spheres[k] = cloneSphere(v)
	}
	for k, v := range s.minds {
		cloned.minds[k] = cloneMind(v)
	}
	for k, v := range s.homes {
		cloned.homes[k] = cloneHome(v)
	}
	for k, v := range s.items {
		cloned.items[k] = cloneItem(v)
	}
	for k, v := range s.models {
		cloned.models[k] = cloneModel(v)
	}
	return cloned
}

func cloneSphere(s MentalSphere) MentalSphere { return s }

func cloneMind(m Mind) Mind {
	cp := m
	cp.MentalSphereIDs = append([]int(nil), m.MentalSphereIDs...)
	return cp
}

func cloneHome(h HomeObject) HomeObject {
	cp := h
	cp.DeployedItemIDs = append([]int(nil), h.DeployedItemIDs...)
	if h.ModelID != nil {
		v := *h.ModelID
		cp.ModelID = &v
	}
	if h.TextureKey != nil {
		v := *h.TextureKey
		cp.TextureKey = &v
	}
	return cp
}

func cloneItem(d DeployedItem) DeployedItem {
	cp := d
	cp.ContainedItemIDs = append([]int(nil), d.ContainedItemIDs...)
	cp.Composition = append([]int(nil), d.Composition...)
	if d.ModelID != nil {
		v := *d.ModelID
		cp.ModelID = &v
	}
	if d.TextureKey != nil {
		v := *d.TextureKey
		cp.TextureKey = &v
	}
	return cp
}

func cloneModel(a ModelAsset) ModelAsset {
	cp := a
	cp.TextureKeys = append([]string(nil), a.TextureKeys...)
	return cp
}

// Snapshot captures a point-in-time clone of the graph state for external
// persistence.
type Snapshot struct {
	Spheres map[int]MentalSphere `json:"mental_spheres"`
	Minds   map[int]Mind         `json:"minds"`
	Homes   map[int]HomeObject   `json:"homes"`
	Items   map[int]DeployedItem `json:"deployed_items"`
	Models  map[int]ModelAsset   `json:"model_assets"`
}

func migrateSnapshot(snapshot Snapshot) Snapshot {
	if snapshot.Spheres == nil {
		snapshot.Spheres = map[int]MentalSphere{}
	}
	if snapshot.Minds == nil {
		snapshot.Minds = map[int]Mind{}
	}
	if snapshot.Homes == nil {
		snapshot.Homes = map[int]HomeObject{}
	}
	if snapshot.Items == nil {
		snapshot.Items = map[int]DeployedItem{}
	}
	if snapshot.Models == nil {
		snapshot.Models = map[int]ModelAsset{}
	}
	// Membership lists are set-like; collapse duplicates left by older
	// snapshots. Dangling sphere ids stay: membership is non-owning.
	for id, mind := range snapshot.Minds {
		if deduped, changed := dedupeInts(mind.MentalSphereIDs); changed {
			mind.MentalSphereIDs = deduped
			snapshot.Minds[id] = mind
		}
	}
	return snapshot
}

func dedupeInts(values []int) ([]int, bool) {
	if len(values) <= 1 {
		return values, false
	}
	seen := make(map[int]struct{}, len(values))
	out := make([]int, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out, len(out) != len(values)
}

// ckey addresses a single graph record for version tracking.
type ckey struct {
	c  Collection
	id int
}

// Store is the in-memory transactional object graph. Commits are validated
// optimistically: every key a transaction read or wrote, and every
// collection it scanned for id allocation or listing, must be unchanged
// since the transaction began, otherwise the commit fails with
// domain.ConflictError (first committer wins).
type Store struct {
	mu           sync.Mutex
	state        graphState
	keyVersions  map[ckey]uint64
	collVersions map[Collection]uint64
}

// NewStore constructs an empty in-memory graph store.
func NewStore() *Store {
	return &Store{
		state:        newGraphState(),
		keyVersions:  make(map[ckey]uint64),
		collVersions: make(map[Collection]uint64),
	}
}

// ExportState clones the current store state for external persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	state := s.state.clone()
	return Snapshot{
		Spheres: state.spheres,
		Minds:   state.minds,
		Homes:   state.homes,
		Items:   state.items,
		Models:  state.models,
	}
}

// ImportState replaces the store state with the provided snapshot.
func (s *Store) ImportState(snapshot Snapshot) {
	snapshot = migrateSnapshot(snapshot)
	s.mu.Lock()
	defer s.mu.Unlock()
	state := newGraphState()
	for k, v := range snapshot.Spheres {
		state.spheres[k] = cloneSphere(v)
	}
	for k, v := range snapshot.Minds {
		state.minds[k] = cloneMind(v)
	}
	for k, v := range snapshot.Homes {
		state.homes[k] = cloneHome(v)
	}
	for k, v := range snapshot.Items {
		state.items[k] = cloneItem(v)
	}
	for k, v := range snapshot.Models {
		state.models[k] = cloneModel(v)
	}
	s.state = state
}

// Close releases nothing for the in-memory store.
func (s *Store) Close() error { return nil }

// RunInTransaction executes fn against a snapshot of the graph, committing
// its writes atomically when fn returns nil. The snapshot is taken under
// the store lock but fn itself runs unlocked, so concurrent transactions
// genuinely interleave and conflicts are detected at commit.
func (s *Store) RunInTransaction(ctx context.Context, fn func(GraphTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	tx := &transaction{
		state:     s.state.clone(),
		baseKeys:  make(map[ckey]uint64, len(s.keyVersions)),
		baseColls: make(map[Collection]uint64, len(s.collVersions)),
		reads:     make(map[ckey]struct{}),
		scans:     make(map[Collection]struct{}),
		writes:    make(map[ckey]any),
	}
	for k, v := range s.keyVersions {
		tx.baseKeys[k] = v
	}
	for c, v := range s.collVersions {
		tx.baseColls[c] = v
	}
	s.mu.Unlock()

	if err := fn(tx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for key := range tx.writes {
		if s.keyVersions[key] != tx.baseKeys[key] {
			return domain.ConflictError{Collection: key.c, Reason: "key written concurrently"}
		}
	}
	for key := range tx.reads {
		if _, written := tx.writes[key]; written {
			continue
		}
		if s.keyVersions[key] != tx.baseKeys[key] {
			return domain.ConflictError{Collection: key.c, Reason: "read key modified concurrently"}
		}
	}
	for c := range tx.scans {
		if s.collVersions[c] != tx.baseColls[c] {
			return domain.ConflictError{Collection: c, Reason: "collection modified concurrently"}
		}
	}

	for key, val := range tx.writes {
		s.apply(key, val)
		s.keyVersions[key]++
		s.collVersions[key.c]++
	}
	return nil
}

func (s *Store) apply(key ckey, val any) {
	switch key.c {
	case domain.CollectionMentalSpheres:
		if val == nil {
			delete(s.state.spheres, key.id)
		} else {
			s.state.spheres[key.id] = cloneSphere(val.(MentalSphere))
		}
	case domain.CollectionMinds:
		if val == nil {
			delete(s.state.minds, key.id)
		} else {
			s.state.minds[key.id] = cloneMind(val.(Mind))
		}
	case domain.CollectionHomes:
		if val == nil {
			delete(s.state.homes, key.id)
		} else {
			s.state.homes[key.id] = cloneHome(val.(HomeObject))
		}
	case domain.CollectionDeployedItems:
		if val == nil {
			delete(s.state.items, key.id)
		} else {
			s.state.items[key.id] = cloneItem(val.(DeployedItem))
		}
	case domain.CollectionModelAssets:
		if val == nil {
			delete(s.state.models, key.id)
		} else {
			s.state.models[key.id] = cloneModel(val.(ModelAsset))
		}
	}
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(ctx context.Context, fn func(GraphView) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	snapshot := s.state.clone()
	s.mu.Unlock()
	return fn(&snapshotView{state: &snapshot})
}

// snapshotView serves reads from a detached clone without version tracking.
type snapshotView struct {
	state *graphState
}

func (v *snapshotView) FindMentalSphere(id int) (MentalSphere, bool) {
	rec, ok := v.state.spheres[id]
	if !ok {
		return MentalSphere{}, false
	}
	return cloneSphere(rec), true
}

func (v *snapshotView) ListMentalSpheres() []MentalSphere {
	out := make([]MentalSphere, 0, len(v.state.spheres))
	for _, rec := range v.state.spheres {
		out = append(out, cloneSphere(rec))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (v *snapshotView) FindMind(id int) (Mind, bool) {
	rec, ok := v.state.minds[id]
	if !ok {
		return Mind{}, false
	}
	return cloneMind(rec), true
}

func (v *snapshotView) ListMinds() []Mind {
	out := make([]Mind, 0, len(v.state.minds))
	for _, rec := range v.state.minds {
		out = append(out, cloneMind(rec))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (v *snapshotView) FindHome(id int) (HomeObject, bool) {
	rec, ok := v.state.homes[id]
	if !ok {
		return HomeObject{}, false
	}
	return cloneHome(rec), true
}

func (v *snapshotView) ListHomes() []HomeObject {
	out := make([]HomeObject, 0, len(v.state.homes))
	for _, rec := range v.state.homes {
		out = append(out, cloneHome(rec))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (v *snapshotView) FindDeployedItem(id int) (DeployedItem, bool) {
	rec, ok := v.state.items[id]
	if !ok {
		return DeployedItem{}, false
	}
	return cloneItem(rec), true
}

func (v *snapshotView) ListDeployedItems() []DeployedItem {
	out := make([]DeployedItem, 0, len(v.state.items))
	for _, rec := range v.state.items {
		out = append(out, cloneItem(rec))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (v *snapshotView) FindModelAsset(id int) (ModelAsset, bool) {
	rec, ok := v.state.models[id]
	if !ok {
		return ModelAsset{}, false
	}
	return cloneModel(rec), true
}

func (v *snapshotView) ListModelAssets() []ModelAsset {
	out := make([]ModelAsset, 0, len(v.state.models))
	for _, rec := range v.state.models {
		out = append(out, cloneModel(rec))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
