package objectdb

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ardnew/mtpresponder/mtp"
	"github.com/ardnew/mtpresponder/pkg"
)

// Database is the in-memory handle→record map, backed by lazy
// filesystem scans of each registered storage's mount path. Zero value
// is not usable; construct with NewDatabase.
type Database struct {
	mu         sync.RWMutex
	records    map[mtp.ObjectHandle]*Record
	nextHandle mtp.ObjectHandle
	sink       EventSink
}

// NewDatabase creates an empty database. Handle 0 is reserved for
// "root" and is never assigned to a record; the first record minted
// gets handle 1.
func NewDatabase() *Database {
	return &Database{
		records:    make(map[mtp.ObjectHandle]*Record),
		nextHandle: 1,
	}
}

// Watch installs sink as the database's event relay. A nil sink
// disables event emission. The database holds no reference back to an
// engine beyond this interface.
func (d *Database) Watch(sink EventSink) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sink = sink
}

func (d *Database) emitAdded(h mtp.ObjectHandle) {
	if d.sink != nil {
		d.sink.ObjectAdded(h)
	}
}

func (d *Database) emitRemoved(h mtp.ObjectHandle) {
	if d.sink != nil {
		d.sink.ObjectRemoved(h)
	}
}

func (d *Database) allocHandle() mtp.ObjectHandle {
	h := d.nextHandle
	d.nextHandle++
	return h
}

// IsValid reports whether h names a record currently in the database.
func (d *Database) IsValid(h mtp.ObjectHandle) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.records[h]
	return ok
}

// Get returns a copy of the record for h, or false if h is not present.
// Changing the copy does not change the database; use the mutation
// methods below.
func (d *Database) Get(h mtp.ObjectHandle) (Record, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	r, ok := d.records[h]
	if !ok {
		return Record{}, false
	}
	return *r, true
}

// hiddenRootParent is the Parent value assigned to a hidden storage
// root's own record. It deliberately does not equal 0 (the "top of
// storage" alias a hidden root's children are reported under) or any
// value List/Count's parent filter is ever queried with, so the root
// itself never surfaces as one of its own top-level children. The
// record stays in the map under this handle purely for path
// resolution (RescanPath matches it by Path, scanDirectoryLocked
// passes its Path as the scan root) — it is never listed.
const hiddenRootParent mtp.ObjectHandle = 0xFFFFFFFE

// AddStorageRoot registers storage's mount path as an ASSOCIATION
// record and returns its handle. When hidden is true the root's
// children are exposed directly at the storage's top level (parent=0);
// otherwise the root itself becomes the lone top-level child with
// display name.
func (d *Database) AddStorageRoot(storage mtp.StorageID, mountPath, displayName string, hidden bool) mtp.ObjectHandle {
	d.mu.Lock()
	defer d.mu.Unlock()

	h := d.allocHandle()
	info, statErr := os.Stat(mountPath)
	var mtime time.Time
	if statErr == nil {
		mtime = info.ModTime()
	}
	r := &Record{
		Handle:  h,
		Storage: storage,
		Parent:  mtp.HandleRoot,
		Format:  mtp.FormatAssociation,
		Name:    displayName,
		Path:    mountPath,
		ModTime: mtime,
		Scanned: false,
	}
	if hidden {
		// Root is present in the map for path resolution but its children
		// are surfaced at parent=0; giving the root itself a sentinel
		// parent (instead of also parent=0) keeps it out of that same
		// listing. Mark it pre-scanned so it is never rescanned, and scan
		// its children directly under root.
		r.Parent = hiddenRootParent
		d.records[h] = r
		d.scanDirectoryLocked(r, mtp.HandleRoot)
		r.Scanned = true
		return h
	}
	d.records[h] = r
	return h
}

// scanDirectoryLocked enumerates dir's children on disk, inserting a
// record for each under reportedParent. Caller holds d.mu.
func (d *Database) scanDirectoryLocked(dir *Record, reportedParent mtp.ObjectHandle) {
	entries, err := os.ReadDir(dir.Path)
	if err != nil {
		pkg.LogWarn(pkg.ComponentDatabase, "scan failed", "path", dir.Path, "err", err)
		return
	}
	for _, e := range entries {
		childPath := filepath.Join(dir.Path, e.Name())
		info, err := e.Info()
		if err != nil {
			continue
		}
		format := uint16(mtp.FormatAssociation)
		var size uint64
		if !e.IsDir() {
			format = guessFormat(e.Name())
			size = uint64(info.Size())
		}
		h := d.allocHandle()
		d.records[h] = &Record{
			Handle:  h,
			Storage: dir.Storage,
			Parent:  reportedParent,
			Format:  format,
			Size:    size,
			Name:    e.Name(),
			Path:    childPath,
			ModTime: info.ModTime(),
			Scanned: false,
		}
		d.emitAdded(h)
	}
}

// ensureScanned performs a lazy directory scan of h if it is an
// unscanned ASSOCIATION record. No-op otherwise.
func (d *Database) ensureScanned(h mtp.ObjectHandle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	r, ok := d.records[h]
	if !ok || r.Scanned || !r.IsFolder() {
		return
	}
	d.scanDirectoryLocked(r, h)
	r.Scanned = true
}

// List returns handles matching storage, format, and parent filters.
// parent == mtp.HandleAll is treated as root (0). format == 0 matches
// any format. Triggers a lazy scan of parent if it is an unscanned
// directory.
func (d *Database) List(storage mtp.StorageID, format uint16, parent mtp.ObjectHandle) []mtp.ObjectHandle {
	if parent == mtp.HandleAll {
		parent = mtp.HandleRoot
	}
	if parent != mtp.HandleRoot {
		d.ensureScanned(parent)
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []mtp.ObjectHandle
	for h, r := range d.records {
		if r.Storage != storage && storage != mtp.StorageAll {
			continue
		}
		if r.Parent != parent {
			continue
		}
		if format != 0 && r.Format != format {
			continue
		}
		out = append(out, h)
	}
	return out
}

// Count is List(...).Len().
func (d *Database) Count(storage mtp.StorageID, format uint16, parent mtp.ObjectHandle) int {
	return len(d.List(storage, format, parent))
}

// GetProp reads one standard property of h.
func (d *Database) GetProp(h mtp.ObjectHandle, prop uint16) (PropValue, bool) {
	d.mu.RLock()
	r, ok := d.records[h]
	var snapshot Record
	if ok {
		snapshot = *r
	}
	d.mu.RUnlock()
	if !ok {
		return PropValue{}, false
	}
	return propValueFor(&snapshot, prop)
}

func propValueFor(r *Record, prop uint16) (PropValue, bool) {
	switch prop {
	case mtp.PropStorageID:
		return u32Value(r.Storage), true
	case mtp.PropParentObject:
		return u32Value(r.Parent), true
	case mtp.PropObjectFormat:
		return u16Value(r.Format), true
	case mtp.PropObjectSize:
		return u32Value(uint32(r.Size)), true
	case mtp.PropObjectFileName:
		return strValue(r.Name), true
	case mtp.PropDisplayName:
		return strValue(r.Name), true
	case mtp.PropPersistentUID:
		return u128Value(mtp.UID128FromHandle(r.Handle)), true
	case mtp.PropAssociationType:
		if r.IsFolder() {
			return u16Value(mtp.AssociationGenericFolder), true
		}
		return u16Value(0), true
	case mtp.PropAssociationDesc:
		return u32Value(0), true
	case mtp.PropProtectionStatus:
		return u16Value(0), true
	case mtp.PropDateCreated:
		return strValue(FormatDateTime(time.Unix(0, 0).UTC())), true
	case mtp.PropDateModified:
		return strValue(FormatDateTime(r.ModTime)), true
	case mtp.PropHidden:
		return u16Value(0), true
	case mtp.PropNonConsumable:
		if r.IsFolder() {
			return u16Value(0), true
		}
		return u16Value(1), true
	default:
		return PropValue{}, false
	}
}

// SetProp writes a standard property of h. Only OBJECT_FILE_NAME
// (rename on disk, update record) and PARENT_OBJECT (update record
// only) are writable; everything else returns pkg.ErrNotSupported.
func (d *Database) SetProp(h mtp.ObjectHandle, prop uint16, value PropValue) error {
	switch prop {
	case mtp.PropObjectFileName:
		return d.renameObject(h, value.String)
	case mtp.PropParentObject:
		return d.reparent(h, mtp.ObjectHandle(value.U32), false)
	default:
		return pkg.ErrNotSupported
	}
}

func (d *Database) renameObject(h mtp.ObjectHandle, newName string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	r, ok := d.records[h]
	if !ok {
		return pkg.ErrInvalidObjectHandle
	}
	newPath := filepath.Join(filepath.Dir(r.Path), newName)
	if err := os.Rename(r.Path, newPath); err != nil {
		return pkg.ErrDeviceBusy
	}
	r.Path = newPath
	r.Name = newName
	return nil
}

// Move reparents h to newParent (database bookkeeping only).
func (d *Database) Move(h, newParent mtp.ObjectHandle) error {
	return d.reparent(h, newParent, false)
}

// MoveWithRename reparents h to newParent and renames its backing file
// into the new parent's directory, for same-storage MoveObject (spec §9
// Open Question: a real rename when the new parent maps to a different
// directory within the same filesystem). When newParent is the top level
// (HandleRoot) only the record is reparented; the backing file is not
// moved.
func (d *Database) MoveWithRename(h, newParent mtp.ObjectHandle) error {
	return d.reparent(h, newParent, true)
}

// Relocate moves h to a different storage and parent whose backing path
// is already in place (the caller has copied the bytes and removed the
// source), for cross-storage MoveObject.
func (d *Database) Relocate(h mtp.ObjectHandle, newParent mtp.ObjectHandle, newStorage mtp.StorageID, newPath string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	r, ok := d.records[h]
	if !ok {
		return pkg.ErrInvalidObjectHandle
	}
	r.Parent = newParent
	r.Storage = newStorage
	r.Path = newPath
	return nil
}

// reparent updates a record's parent, and when rename is true also
// moves the backing file into the new parent's directory (used by
// MoveObject's metadata-and-disk variant). A move to HandleRoot never
// renames, since the top level has no parent record to take a path from.
func (d *Database) reparent(h, newParent mtp.ObjectHandle, rename bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	r, ok := d.records[h]
	if !ok {
		return pkg.ErrInvalidObjectHandle
	}
	if newParent != mtp.HandleRoot {
		p, ok := d.records[newParent]
		if !ok || !p.IsFolder() {
			return pkg.ErrInvalidParentObject
		}
		if rename {
			newPath := filepath.Join(p.Path, r.Name)
			if err := os.Rename(r.Path, newPath); err != nil {
				return pkg.ErrDeviceBusy
			}
			r.Path = newPath
		}
	}
	r.Parent = newParent
	return nil
}

// GetObjectInfo copies the record's fields for the GetObjectInfo
// response DTO.
func (d *Database) GetObjectInfo(h mtp.ObjectHandle) (Record, bool) {
	return d.Get(h)
}

// GetFilePath returns the host path, size, and format for streaming.
func (d *Database) GetFilePath(h mtp.ObjectHandle) (path string, size uint64, format uint16, ok bool) {
	r, found := d.Get(h)
	if !found {
		return "", 0, 0, false
	}
	return r.Path, r.Size, r.Format, true
}

// Delete removes h and every descendant (transitive by Parent),
// two-phase: first collect the full handle set with an iterative
// stack walk, then remove. Returns the collected handles in no
// particular order so the caller can also remove them from disk.
func (d *Database) Delete(h mtp.ObjectHandle) []mtp.ObjectHandle {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.records[h]; !ok {
		return nil
	}

	toRemove := []mtp.ObjectHandle{h}
	stack := []mtp.ObjectHandle{h}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for handle, r := range d.records {
			if r.Parent == cur {
				toRemove = append(toRemove, handle)
				stack = append(stack, handle)
			}
		}
	}

	for _, handle := range toRemove {
		delete(d.records, handle)
		d.emitRemoved(handle)
	}
	return toRemove
}

// BeginSend reserves the next handle for an incoming object and
// inserts a tentative record. Rejects sends into a FIXED_RAM storage's
// top level (parent == 0), matching the responder's rule that a
// fixed-RAM storage must have an association root.
func (d *Database) BeginSend(path string, format uint16, parent mtp.ObjectHandle, storage mtp.StorageID, size uint64, mtime time.Time, storageType uint16) (mtp.ObjectHandle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if storageType == mtp.StorageTypeFixedRAM && parent == mtp.HandleRoot {
		return 0, pkg.ErrInvalidParentObject
	}

	h := d.allocHandle()
	d.records[h] = &Record{
		Handle:  h,
		Storage: storage,
		Parent:  parent,
		Format:  format,
		Size:    size,
		Name:    filepath.Base(path),
		Path:    path,
		ModTime: mtime,
	}
	return h, nil
}

// EndSend finalizes or rolls back a tentative send. If !ok the record
// is removed. Otherwise, non-folder records are restat to resync size
// (idempotent for re-edits via BeginEditObject/EndEditObject).
func (d *Database) EndSend(h mtp.ObjectHandle, ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	r, found := d.records[h]
	if !found {
		return
	}
	if !ok {
		delete(d.records, h)
		return
	}
	if !r.IsFolder() {
		if info, err := os.Stat(r.Path); err == nil {
			r.Size = uint64(info.Size())
			r.ModTime = info.ModTime()
		}
	}
	d.emitAdded(h)
}

// RescanPath forces an immediate rescan of the directory record whose
// Path matches dir, inserting any child that has appeared since the
// last scan and emitting ObjectAdded for it. No-op if dir does not
// match a known directory record. Used by storage.Watcher to fold
// push-based filesystem events into the otherwise lazy, pull-based
// scan (SPEC_FULL.md §4).
func (d *Database) RescanPath(dir string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for h, r := range d.records {
		if r.Path == dir && r.IsFolder() {
			if !r.Scanned {
				// The first List of this directory will scan it.
				return
			}
			// A hidden storage root's children live under HandleRoot.
			parent := h
			if r.Parent == hiddenRootParent {
				parent = mtp.HandleRoot
			}
			existing := make(map[string]bool)
			for _, c := range d.records {
				if c.Parent == parent && c.Storage == r.Storage {
					existing[c.Name] = true
				}
			}
			entries, err := os.ReadDir(dir)
			if err != nil {
				return
			}
			for _, e := range entries {
				if existing[e.Name()] {
					continue
				}
				childPath := filepath.Join(dir, e.Name())
				info, err := e.Info()
				if err != nil {
					continue
				}
				format := uint16(mtp.FormatAssociation)
				var size uint64
				if !e.IsDir() {
					format = guessFormat(e.Name())
					size = uint64(info.Size())
				}
				newHandle := d.allocHandle()
				d.records[newHandle] = &Record{
					Handle:  newHandle,
					Storage: r.Storage,
					Parent:  parent,
					Format:  format,
					Size:    size,
					Name:    e.Name(),
					Path:    childPath,
					ModTime: info.ModTime(),
				}
				d.emitAdded(newHandle)
			}
			return
		}
	}
}

// RemoveByPath deletes the record (and any descendants) whose Path
// matches path. No-op if path does not match a known record.
func (d *Database) RemoveByPath(path string) []mtp.ObjectHandle {
	d.mu.RLock()
	var target mtp.ObjectHandle
	for h, r := range d.records {
		if r.Path == path {
			target = h
			break
		}
	}
	d.mu.RUnlock()
	if target == 0 {
		return nil
	}
	return d.Delete(target)
}

// PurgeStorage removes every record belonging to storage, two-phase.
func (d *Database) PurgeStorage(storage mtp.StorageID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var toRemove []mtp.ObjectHandle
	for h, r := range d.records {
		if r.Storage == storage {
			toRemove = append(toRemove, h)
		}
	}
	for _, h := range toRemove {
		delete(d.records, h)
		d.emitRemoved(h)
	}
}
