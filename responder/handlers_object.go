package responder

import (
	"context"
	"os"

	"github.com/ardnew/mtpresponder/mtp"
	"github.com/ardnew/mtpresponder/objectdb"
	"github.com/ardnew/mtpresponder/pkg"
)

// opGetNumObjects(p1=storage, p2=format, p3=parent) answers the count of
// objects List would return for the same filter (spec §4.B/§4.E).
func (e *Engine) opGetNumObjects(ctx context.Context, req *mtp.Request) (mtp.ResponseCode, []uint32) {
	storageID := req.Param(0)
	format := uint16(req.Param(1))
	parent := req.Param(2)
	if storageID != mtp.StorageAll && !e.storages.HasStorage(storageID) {
		return mtp.RC_InvalidStorageID, nil
	}
	count := e.db.Count(storageID, format, parent)
	return mtp.RC_OK, []uint32{uint32(count)}
}

// opGetObjectHandles(p1=storage, p2=format, p3=parent) lists handles
// matching the filter, triggering a lazy scan of parent if needed
// (spec §4.B).
func (e *Engine) opGetObjectHandles(ctx context.Context, req *mtp.Request) (mtp.ResponseCode, []uint32) {
	storageID := req.Param(0)
	format := uint16(req.Param(1))
	parent := req.Param(2)
	if storageID != mtp.StorageAll && !e.storages.HasStorage(storageID) {
		return mtp.RC_InvalidStorageID, nil
	}
	handles := e.db.List(storageID, format, parent)
	e.codec.AppendU32Array(handles)
	return mtp.RC_OK, nil
}

// opGetObjectInfo(p1=handle) emits the ObjectInfo dataset. This
// responder never initiates captures or carries thumbnails, so every
// thumb/image field is zero (spec §1 Non-goals).
func (e *Engine) opGetObjectInfo(ctx context.Context, req *mtp.Request) (mtp.ResponseCode, []uint32) {
	h := req.Param(0)
	r, ok := e.db.GetObjectInfo(h)
	if !ok {
		return mtp.RC_InvalidObjectHandle, nil
	}
	c := e.codec
	c.AppendU32(r.Storage)
	c.AppendU16(r.Format)
	c.AppendU16(0) // ProtectionStatus
	c.AppendU32(clampU32(r.Size))
	c.AppendU16(0) // ThumbFormat
	c.AppendU32(0) // ThumbCompressedSize
	c.AppendU32(0) // ThumbPixWidth
	c.AppendU32(0) // ThumbPixHeight
	c.AppendU32(0) // ImagePixWidth
	c.AppendU32(0) // ImagePixHeight
	c.AppendU32(0) // ImageBitDepth
	c.AppendU32(r.Parent)
	if r.IsFolder() {
		c.AppendU16(mtp.AssociationGenericFolder)
	} else {
		c.AppendU16(0)
	}
	c.AppendU32(0) // AssociationDesc
	c.AppendU32(0) // SequenceNumber
	c.AppendString(r.Name)
	c.AppendString(objectdb.FormatDateTime(epoch))
	c.AppendString(objectdb.FormatDateTime(r.ModTime))
	c.AppendString("") // Keywords
	return mtp.RC_OK, nil
}

// clampU32 saturates a 64-bit size to the 32-bit ObjectCompressedSize
// field, the same ceiling GetObjectInfo's original wire format imposes.
func clampU32(v uint64) uint32 {
	if v > 0xFFFFFFFF {
		return 0xFFFFFFFF
	}
	return uint32(v)
}

// opDeleteObject(p1=handle, p2=format) removes h and every descendant
// from the database, then unlinks/rmdirs the corresponding filesystem
// entries bottom-up (spec §4.E, §9: two-phase, never mutate while
// iterating).
func (e *Engine) opDeleteObject(ctx context.Context, req *mtp.Request) (mtp.ResponseCode, []uint32) {
	h := req.Param(0)
	entries := e.snapshotDeleteTree(h)
	if entries == nil {
		return mtp.RC_InvalidObjectHandle, nil
	}

	e.db.Delete(h)

	for i := len(entries) - 1; i >= 0; i-- {
		if err := os.Remove(entries[i].path); err != nil && !os.IsNotExist(err) {
			pkg.LogWarn(pkg.ComponentOperation, "delete cascade failed to remove path", "path", entries[i].path, "err", err)
		}
	}

	for _, en := range entries {
		if edit, ok := e.edits[en.handle]; ok {
			edit.Close()
			delete(e.edits, en.handle)
			e.metrics.editSessionClosed()
		}
	}
	if info, ok := e.send.Get(); ok && deletedHandles(entries).contains(info.Handle) {
		e.send.Clear()
	}

	return mtp.RC_OK, nil
}

type deleteEntry struct {
	handle   mtp.ObjectHandle
	path     string
	isFolder bool
}

type deletedHandles []deleteEntry

func (d deletedHandles) contains(h mtp.ObjectHandle) bool {
	for _, e := range d {
		if e.handle == h {
			return true
		}
	}
	return false
}

// snapshotDeleteTree walks h and its descendants top-down while the
// database is still intact, capturing the filesystem path of every
// record DeleteObject is about to remove. Returns nil if h is not a
// valid handle.
func (e *Engine) snapshotDeleteTree(h mtp.ObjectHandle) []deleteEntry {
	root, ok := e.db.Get(h)
	if !ok {
		return nil
	}
	entries := []deleteEntry{{handle: h, path: root.Path, isFolder: root.IsFolder()}}
	queue := []mtp.ObjectHandle{h}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, child := range e.db.List(root.Storage, 0, cur) {
			r, ok := e.db.Get(child)
			if !ok {
				continue
			}
			entries = append(entries, deleteEntry{handle: child, path: r.Path, isFolder: r.IsFolder()})
			queue = append(queue, child)
		}
	}
	return entries
}

// opMoveObject(p1=handle, p2=format, p3=new_parent) reparents h. When
// the new parent belongs to the same storage, the backing file is
// renamed in place (a move to parent 0 updates the record only and
// leaves the file where it is); otherwise the bytes of a file are copied
// to the destination storage and the source removed (spec §9 Open
// Question, DESIGN.md).
func (e *Engine) opMoveObject(ctx context.Context, req *mtp.Request) (mtp.ResponseCode, []uint32) {
	h := req.Param(0)
	newParent := req.Param(2)
	if newParent == mtp.HandleAll {
		newParent = mtp.HandleRoot
	}

	r, ok := e.db.Get(h)
	if !ok {
		return mtp.RC_InvalidObjectHandle, nil
	}

	destStorage := r.Storage
	if newParent != mtp.HandleRoot {
		p, ok := e.db.Get(newParent)
		if !ok || !p.IsFolder() {
			return mtp.RC_InvalidParentObject, nil
		}
		destStorage = p.Storage
	}

	if destStorage == r.Storage {
		if err := e.db.MoveWithRename(h, newParent); err != nil {
			return rcFor(err), nil
		}
		return mtp.RC_OK, nil
	}

	if err := e.crossStorageMove(r, h, newParent, destStorage); err != nil {
		return rcFor(err), nil
	}
	return mtp.RC_OK, nil
}

// opGetObjectPropsSupported(p1=format) answers the full standard
// property table; this responder does not vary supported properties by
// format (spec §7 supplemented feature).
func (e *Engine) opGetObjectPropsSupported(ctx context.Context, req *mtp.Request) (mtp.ResponseCode, []uint32) {
	e.codec.AppendU16Array(objectdb.SupportedObjectProperties())
	return mtp.RC_OK, nil
}

// opGetObjectPropDesc(p1=prop, p2=format) describes one standard
// property's datatype, writability, and (absent) form.
func (e *Engine) opGetObjectPropDesc(ctx context.Context, req *mtp.Request) (mtp.ResponseCode, []uint32) {
	prop := uint16(req.Param(0))
	info, ok := objectdb.LookupProperty(prop)
	if !ok {
		return mtp.RC_ObjectPropNotSupported, nil
	}
	c := e.codec
	c.AppendU16(prop)
	c.AppendU16(mtp.DataTypeFor(info.Type))
	if info.Writable {
		c.AppendU8(1)
	} else {
		c.AppendU8(0)
	}
	writeZeroValue(c, info.Type) // factory default
	writeZeroValue(c, info.Type) // current default
	c.AppendU32(0)               // GroupCode: this responder models no property groups
	c.AppendU8(0)                // FormFlag: no enumeration/range form
	return mtp.RC_OK, nil
}

// opGetObjectPropValue(p1=handle, p2=prop) reads one standard property.
func (e *Engine) opGetObjectPropValue(ctx context.Context, req *mtp.Request) (mtp.ResponseCode, []uint32) {
	h := req.Param(0)
	prop := uint16(req.Param(1))
	if !e.db.IsValid(h) {
		return mtp.RC_InvalidObjectHandle, nil
	}
	v, ok := e.db.GetProp(h, prop)
	if !ok {
		return mtp.RC_ObjectPropNotSupported, nil
	}
	if err := writePropValue(e.codec, v); err != nil {
		return mtp.RC_GeneralError, nil
	}
	return mtp.RC_OK, nil
}

// opSetObjectPropValue(p1=handle, p2=prop) writes OBJECT_FILE_NAME
// (rename on disk) or PARENT_OBJECT (reparent); every other property is
// read-only (spec §4.B/§4.E).
func (e *Engine) opSetObjectPropValue(ctx context.Context, req *mtp.Request) (mtp.ResponseCode, []uint32) {
	h := req.Param(0)
	prop := uint16(req.Param(1))
	info, ok := objectdb.LookupProperty(prop)
	if !ok || !info.Writable {
		return mtp.RC_OperationNotSupported, nil
	}
	v, err := readPropValue(e.codec, info.Type)
	if err != nil {
		return mtp.RC_GeneralError, nil
	}
	if err := e.db.SetProp(h, prop, v); err != nil {
		return rcFor(err), nil
	}
	return mtp.RC_OK, nil
}

// opGetObjectPropList(p1=handle, p2=format, p3=prop, p4=group, p5=depth)
// emits the (handle, prop, type, value) table described in spec §4.B.
func (e *Engine) opGetObjectPropList(ctx context.Context, req *mtp.Request) (mtp.ResponseCode, []uint32) {
	h := req.Param(0)
	format := uint16(req.Param(1))
	prop := req.Param(2)
	group := req.Param(3)
	depth := req.Param(4)

	entries, err := e.db.GetPropList(h, format, prop, group, depth)
	if err != nil {
		return rcFor(err), nil
	}

	c := e.codec
	c.AppendU32(uint32(len(entries)))
	for _, en := range entries {
		c.AppendU32(en.Handle)
		c.AppendU32(uint32(en.Prop))
		c.AppendU16(mtp.DataTypeFor(en.Value.Type))
		writePropValue(c, en.Value)
	}
	return mtp.RC_OK, nil
}

// opGetObjectReferences(p1=handle) answers h's direct children, the
// self-consistent reading of "references" this responder implements
// (spec §9 Open Question).
func (e *Engine) opGetObjectReferences(ctx context.Context, req *mtp.Request) (mtp.ResponseCode, []uint32) {
	h := req.Param(0)
	r, ok := e.db.Get(h)
	if !ok {
		return mtp.RC_InvalidObjectHandle, nil
	}
	children := e.db.List(r.Storage, 0, h)
	e.codec.AppendU32Array(children)
	return mtp.RC_OK, nil
}

// opSetObjectReferences is a no-op success: references are not
// persisted by this responder (spec §4.E).
func (e *Engine) opSetObjectReferences(ctx context.Context, req *mtp.Request) (mtp.ResponseCode, []uint32) {
	return mtp.RC_OK, nil
}
