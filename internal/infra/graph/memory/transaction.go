package memory

import (
	"sort"

	"github.com/shinyyxxx/Mindsim/pkg/domain"
)

// transaction is a mutation set applied to a detached clone of the graph
// state. Reads see the transaction's own pending writes. Every touched key
// and scanned collection is recorded for commit-time validation.
type transaction struct {
	state     graphState
	baseKeys  map[ckey]uint64
	baseColls map[Collection]uint64
	reads     map[ckey]struct{}
	scans     map[Collection]struct{}
	writes    map[ckey]any // nil value marks a delete
}

func (tx *transaction) recordRead(c Collection, id int) {
	tx.reads[ckey{c: c, id: id}] = struct{}{}
}

func (tx *transaction) recordScan(c Collection) {
	tx.scans[c] = struct{}{}
}

func (tx *transaction) recordWrite(c Collection, id int, val any) {
	tx.writes[ckey{c: c, id: id}] = val
}

// NextID scans the collection's keys within the transaction snapshot and
// returns max+1, or 1 when the collection is empty. The scan is recorded so
// a concurrent commit into the same collection invalidates this allocation.
func (tx *transaction) NextID(c Collection) int {
	tx.recordScan(c)
	max := 0
	switch c {
	case domain.CollectionMentalSpheres:
		for id := range tx.state.spheres {
			if id > max {
				max = id
			}
		}
	case domain.CollectionMinds:
		for id := range tx.state.minds {
			if id > max {
				max = id
			}
		}
	case domain.CollectionHomes:
		for id := range tx.state.homes {
			if id > max {
				max = id
			}
		}
	case domain.CollectionDeployedItems:
		for id := range tx.state.items {
			if id > max {
				max = id
			}
		}
	case domain.CollectionModelAssets:
		for id := range tx.state.models {
			if id > max {
				max = id
			}
		}
	}
	return max + 1
}

func (tx *transaction) FindMentalSphere(id int) (MentalSphere, bool) {
	tx.recordRead(domain.CollectionMentalSpheres, id)
	rec, ok := tx.state.spheres[id]
	if !ok {
		return MentalSphere{}, false
	}
	return cloneSphere(rec), true
}

func (tx *transaction) ListMentalSpheres() []MentalSphere {
	tx.recordScan(domain.CollectionMentalSpheres)
	out := make([]MentalSphere, 0, len(tx.state.spheres))
	for _, rec := range tx.state.spheres {
		out = append(out, cloneSphere(rec))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// PutMentalSphere upserts a sphere into the pending write set.
func (tx *transaction) PutMentalSphere(s MentalSphere) {
	tx.state.spheres[s.ID] = cloneSphere(s)
	tx.recordWrite(domain.CollectionMentalSpheres, s.ID, cloneSphere(s))
}

// DeleteMentalSphere removes a sphere, reporting whether it existed.
func (tx *transaction) DeleteMentalSphere(id int) bool {
	if _, ok := tx.state.spheres[id]; !ok {
		return false
	}
	delete(tx.state.spheres, id)
	tx.recordWrite(domain.CollectionMentalSpheres, id, nil)
	return true
}

func (tx *transaction) FindMind(id int) (Mind, bool) {
	tx.recordRead(domain.CollectionMinds, id)
	rec, ok := tx.state.minds[id]
	if !ok {
		return Mind{}, false
	}
	return cloneMind(rec), true
}

func (tx *transaction) ListMinds() []Mind {
	tx.recordScan(domain.CollectionMinds)
	out := make([]Mind, 0, len(tx.state.minds))
	for _, rec := range tx.state.minds {
		out = append(out, cloneMind(rec))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (tx *transaction) PutMind(m Mind) {
	tx.state.minds[m.ID] = cloneMind(m)
	tx.recordWrite(domain.CollectionMinds, m.ID, cloneMind(m))
}

func (tx *transaction) DeleteMind(id int) bool {
	if _, ok := tx.state.minds[id]; !ok {
		return false
	}
	delete(tx.state.minds, id)
	tx.recordWrite(domain.CollectionMinds, id, nil)
	return true
}

func (tx *transaction) FindHome(id int) (HomeObject, bool) {
	tx.recordRead(domain.CollectionHomes, id)
	rec, ok := tx.state.homes[id]
	if !ok {
		return HomeObject{}, false
	}
	return cloneHome(rec), true
}

func (tx *transaction) ListHomes() []HomeObject {
	tx.recordScan(domain.CollectionHomes)
	out := make([]HomeObject, 0, len(tx.state.homes))
	for _, rec := range tx.state.homes {
		out = append(out, cloneHome(rec))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (tx *transaction) PutHome(h HomeObject) {
	tx.state.homes[h.ID] = cloneHome(h)
	tx.recordWrite(domain.CollectionHomes, h.ID, cloneHome(h))
}

func (tx *transaction) DeleteHome(id int) bool {
	if _, ok := tx.state.homes[id]; !ok {
		return false
	}
	delete(tx.state.homes, id)
	tx.recordWrite(domain.CollectionHomes, id, nil)
	return true
}

func (tx *transaction) FindDeployedItem(id int) (DeployedItem, bool) {
	tx.recordRead(domain.CollectionDeployedItems, id)
	rec, ok := tx.state.items[id]
	if !ok {
		return DeployedItem{}, false
	}
	return cloneItem(rec), true
}

func (tx *transaction) ListDeployedItems() []DeployedItem {
	tx.recordScan(domain.CollectionDeployedItems)
	out := make([]DeployedItem, 0, len(tx.state.items))
	for _, rec := range tx.state.items {
		out = append(out, cloneItem(rec))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (tx *transaction) PutDeployedItem(d DeployedItem) {
	tx.state.items[d.ID] = cloneItem(d)
	tx.recordWrite(domain.CollectionDeployedItems, d.ID, cloneItem(d))
}

func (tx *transaction) DeleteDeployedItem(id int) bool {
	if _, ok := tx.state.items[id]; !ok {
		return false
	}
	delete(tx.state.items, id)
	tx.recordWrite(domain.CollectionDeployedItems, id, nil)
	return true
}

func (tx *transaction) FindModelAsset(id int) (ModelAsset, bool) {
	tx.recordRead(domain.CollectionModelAssets, id)
	rec, ok := tx.state.models[id]
	if !ok {
		return ModelAsset{}, false
	}
	return cloneModel(rec), true
}

func (tx *transaction) ListModelAssets() []ModelAsset {
	tx.recordScan(domain.CollectionModelAssets)
	out := make([]ModelAsset, 0, len(tx.state.models))
	for _, rec := range tx.state.models {
		out = append(out, cloneModel(rec))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (tx *transaction) PutModelAsset(a ModelAsset) {
	tx.state.models[a.ID] = cloneModel(a)
	tx.recordWrite(domain.CollectionModelAssets, a.ID, cloneModel(a))
}

func (tx *transaction) DeleteModelAsset(id int) bool {
	if _, ok := tx.state.models[id]; !ok {
		return false
	}
	delete(tx.state.models, id)
	tx.recordWrite(domain.CollectionModelAssets, id, nil)
	return true
}
