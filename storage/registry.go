package storage

import (
	"sync"

	"github.com/ardnew/mtpresponder/mtp"
	"github.com/ardnew/mtpresponder/objectdb"
	"github.com/ardnew/mtpresponder/pkg"
)

// AddRemoveSink is notified when a storage is registered or
// deregistered, so the engine can relay STORE_ADDED/STORE_REMOVED
// events (spec §4.C).
type AddRemoveSink interface {
	StorageAdded(id mtp.StorageID)
	StorageRemoved(id mtp.StorageID)
}

// Registry is the ordered set of mounted storages.
type Registry struct {
	mu    sync.RWMutex
	order []mtp.StorageID
	byID  map[mtp.StorageID]*Descriptor
	db    *objectdb.Database
	sink  AddRemoveSink
}

// NewRegistry creates an empty registry backed by db for object
// ingestion on Add.
func NewRegistry(db *objectdb.Database) *Registry {
	return &Registry{
		byID: make(map[mtp.StorageID]*Descriptor),
		db:   db,
	}
}

// Watch installs sink as the registry's add/remove event relay.
func (r *Registry) Watch(sink AddRemoveSink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sink = sink
}

// Add registers desc and ingests its mount path into the object
// database under displayName (hidden controls whether the mount root
// itself is exposed as a top-level object, per objectdb.AddStorageRoot).
func (r *Registry) Add(desc Descriptor, displayName string, hidden bool) {
	r.mu.Lock()
	r.order = append(r.order, desc.ID)
	d := desc
	r.byID[desc.ID] = &d
	sink := r.sink
	r.mu.Unlock()

	r.db.AddStorageRoot(desc.ID, desc.MountPath, displayName, hidden)
	pkg.LogInfo(pkg.ComponentStorage, "storage added", "id", desc.ID, "path", desc.MountPath)
	if sink != nil {
		sink.StorageAdded(desc.ID)
	}
}

// Remove deregisters id, purges its records from the database, and
// notifies the sink.
func (r *Registry) Remove(id mtp.StorageID) {
	r.mu.Lock()
	delete(r.byID, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	sink := r.sink
	r.mu.Unlock()

	r.db.PurgeStorage(id)
	pkg.LogInfo(pkg.ComponentStorage, "storage removed", "id", id)
	if sink != nil {
		sink.StorageRemoved(id)
	}
}

// HasStorage reports whether id names a registered storage. The
// wildcard values 0 and 0xFFFFFFFF match whenever the registry is
// non-empty (spec §4.C).
func (r *Registry) HasStorage(id mtp.StorageID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if id == 0 || id == mtp.StorageAll {
		return len(r.order) > 0
	}
	_, ok := r.byID[id]
	return ok
}

// Get returns the descriptor for id.
func (r *Registry) Get(id mtp.StorageID) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byID[id]
	if !ok {
		return Descriptor{}, false
	}
	return *d, true
}

// List returns all registered storage IDs in registration order.
func (r *Registry) List() []mtp.StorageID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]mtp.StorageID, len(r.order))
	copy(out, r.order)
	return out
}
