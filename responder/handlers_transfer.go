package responder

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/ardnew/mtpresponder/mtp"
	"github.com/ardnew/mtpresponder/objectdb"
	"github.com/ardnew/mtpresponder/pkg"
)

// epoch is the always-reported DATE_CREATED value (spec §4.B: this
// responder never tracks a real creation time separate from mtime).
var epoch = time.Unix(0, 0).UTC()

// resolveParentPath maps a SendObjectInfo/MoveObject parent handle to
// the host directory its children live under. parent==mtp.HandleRoot
// names the storage's own mount path.
func (e *Engine) resolveParentPath(storageID mtp.StorageID, parent mtp.ObjectHandle, mountPath string) (string, bool) {
	if parent == mtp.HandleRoot {
		return mountPath, true
	}
	r, ok := e.db.Get(parent)
	if !ok || !r.IsFolder() || r.Storage != storageID {
		return "", false
	}
	return r.Path, true
}

// crossStorageMove copies r's bytes into destStorage under newParent and
// deletes the source, since the two storages may not share a
// filesystem (spec §9 Open Question: MoveObject). Folders are not
// supported across storages; this responder treats that as
// OPERATION_NOT_SUPPORTED rather than implementing a recursive copy.
func (e *Engine) crossStorageMove(r objectdb.Record, h, newParent mtp.ObjectHandle, destStorage mtp.StorageID) error {
	if r.IsFolder() {
		return pkg.ErrNotSupported
	}
	destDesc, ok := e.storages.Get(destStorage)
	if !ok {
		return pkg.ErrInvalidStorageID
	}
	destDir, ok := e.resolveParentPath(destStorage, newParent, destDesc.MountPath)
	if !ok {
		return pkg.ErrInvalidParentObject
	}
	destPath := filepath.Join(destDir, r.Name)

	src, err := os.Open(r.Path)
	if err != nil {
		return pkg.ErrDeviceBusy
	}
	defer src.Close()
	dst, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return pkg.ErrDeviceBusy
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(destPath)
		return pkg.ErrDeviceBusy
	}
	dst.Close()

	if err := e.db.Relocate(h, newParent, destStorage, destPath); err != nil {
		os.Remove(destPath)
		return err
	}
	os.Remove(r.Path)
	return nil
}

// sendFile streams length bytes of path starting at offset directly to
// the transport, bypassing the codec's in-memory data buffer (spec §2:
// "the file-bulk operations ... stream bytes directly between Transport
// and the filesystem, bypassing the in-memory data buffer for the
// payload"). Returns the number of bytes actually sent, which may be
// less than length if the transfer was cancelled.
func (e *Engine) sendFile(ctx context.Context, op uint16, tx uint32, path string, offset, length uint64) (uint64, mtp.ResponseCode) {
	f, err := os.Open(path)
	if err != nil {
		return 0, mtp.RC_GeneralError
	}
	defer f.Close()
	if offset > 0 {
		if _, err := f.Seek(int64(offset), io.SeekStart); err != nil {
			return 0, mtp.RC_GeneralError
		}
	}

	var hdrBuf [mtp.HeaderSize]byte
	hdr := mtp.Header{Length: uint32(mtp.HeaderSize) + uint32(length), Type: mtp.ContainerTypeData, Code: op, Transaction: tx}
	hdr.MarshalTo(hdrBuf[:])
	if _, err := e.transport.Write(ctx, hdrBuf[:]); err != nil {
		if isCancelled(err) {
			return 0, cancelledNoResponse
		}
		return 0, mtp.RC_GeneralError
	}

	var sent uint64
	buf := make([]byte, mtp.BulkReadChunk)
	for sent < length {
		want := length - sent
		chunk := buf
		if uint64(len(chunk)) > want {
			chunk = chunk[:want]
		}
		n, err := f.Read(chunk)
		if n > 0 {
			if _, werr := e.transport.Write(ctx, chunk[:n]); werr != nil {
				if isCancelled(werr) {
					return sent, cancelledNoResponse
				}
				return sent, mtp.RC_GeneralError
			}
			sent += uint64(n)
			e.metrics.addBytesOut(n)
		}
		if err != nil {
			break
		}
	}
	if sent < length {
		return sent, mtp.RC_IncompleteTransfer
	}
	return sent, mtp.RC_OK
}

// writeRawData writes a Data container with payload directly to the
// transport, for responses too small or simple to route through the
// codec's buffered writers (only GetThumb's zero-length stub uses this).
func (e *Engine) writeRawData(ctx context.Context, op uint16, tx uint32, payload []byte) error {
	var hdrBuf [mtp.HeaderSize]byte
	hdr := mtp.Header{Length: uint32(mtp.HeaderSize + len(payload)), Type: mtp.ContainerTypeData, Code: op, Transaction: tx}
	hdr.MarshalTo(hdrBuf[:])
	if _, err := e.transport.Write(ctx, hdrBuf[:]); err != nil {
		return err
	}
	if len(payload) == 0 {
		return nil
	}
	_, err := e.transport.Write(ctx, payload)
	return err
}

// opGetObject(p1=handle) streams the whole object to the host.
func (e *Engine) opGetObject(ctx context.Context, req *mtp.Request) (mtp.ResponseCode, []uint32) {
	h := req.Param(0)
	path, size, _, ok := e.db.GetFilePath(h)
	if !ok {
		return mtp.RC_InvalidObjectHandle, nil
	}
	_, rc := e.sendFile(ctx, req.Code, req.Transaction, path, 0, size)
	return rc, nil
}

// opGetThumb(p1=handle) always answers a zero-length Data container
// (spec §1 Non-goals: thumbnails are a stub).
func (e *Engine) opGetThumb(ctx context.Context, req *mtp.Request) (mtp.ResponseCode, []uint32) {
	h := req.Param(0)
	if !e.db.IsValid(h) {
		return mtp.RC_InvalidObjectHandle, nil
	}
	if err := e.writeRawData(ctx, req.Code, req.Transaction, nil); err != nil {
		if isCancelled(err) {
			return cancelledNoResponse, nil
		}
		return mtp.RC_GeneralError, nil
	}
	return mtp.RC_OK, nil
}

// opGetPartialObject(p1=handle, p2=offset, p3=max_length) clamps length
// to what remains past offset and streams it (spec §8 boundary
// behaviors).
func (e *Engine) opGetPartialObject(ctx context.Context, req *mtp.Request) (mtp.ResponseCode, []uint32) {
	h := req.Param(0)
	offset := uint64(req.Param(1))
	maxLen := uint64(req.Param(2))
	path, size, _, ok := e.db.GetFilePath(h)
	if !ok {
		return mtp.RC_InvalidObjectHandle, nil
	}
	length := clampLength(offset, maxLen, size)
	sent, rc := e.sendFile(ctx, req.Code, req.Transaction, path, offset, length)
	if rc != mtp.RC_OK {
		return rc, nil
	}
	return mtp.RC_OK, []uint32{uint32(sent)}
}

// opGetPartialObject64 is GetPartialObject with a 64-bit offset
// reconstructed from two u32 parameters (spec §4.E, the Android
// extension used for in-place editing of large files).
func (e *Engine) opGetPartialObject64(ctx context.Context, req *mtp.Request) (mtp.ResponseCode, []uint32) {
	h := req.Param(0)
	offset := uint64(req.Param(1)) | uint64(req.Param(2))<<32
	length := uint64(req.Param(3))
	path, size, _, ok := e.db.GetFilePath(h)
	if !ok {
		return mtp.RC_InvalidObjectHandle, nil
	}
	length = clampLength(offset, length, size)
	sent, rc := e.sendFile(ctx, req.Code, req.Transaction, path, offset, length)
	if rc != mtp.RC_OK {
		return rc, nil
	}
	return mtp.RC_OK, []uint32{uint32(sent)}
}

// clampLength implements spec §8's GetPartialObject boundary rules: an
// offset at or past size yields a zero-length reply; otherwise length is
// clamped to what remains.
func clampLength(offset, requested, size uint64) uint64 {
	if offset >= size {
		return 0
	}
	if remaining := size - offset; requested > remaining {
		return remaining
	}
	return requested
}

// opSendObjectInfo parses the ObjectInfo dataset already read into the
// codec's Data-in buffer, validates it against the target storage's
// capacity, and reserves a handle — or, for a folder, creates and
// commits it immediately (spec §4.E).
func (e *Engine) opSendObjectInfo(ctx context.Context, req *mtp.Request) (mtp.ResponseCode, []uint32) {
	storageID := req.Param(0)
	parentHandle := req.Param(1)
	if parentHandle == mtp.HandleAll {
		parentHandle = mtp.HandleRoot
	}

	desc, ok := e.storages.Get(storageID)
	if !ok {
		return mtp.RC_InvalidStorageID, nil
	}

	c := e.codec
	var rerr error
	u16 := func() uint16 {
		v, err := c.ReadU16()
		if err != nil && rerr == nil {
			rerr = err
		}
		return v
	}
	u32 := func() uint32 {
		v, err := c.ReadU32()
		if err != nil && rerr == nil {
			rerr = err
		}
		return v
	}
	str := func() string {
		v, err := c.ReadString()
		if err != nil && rerr == nil {
			rerr = err
		}
		return v
	}

	_ = u32()           // StorageID: ignored, the command parameter is authoritative
	format := u16()     // ObjectFormat
	_ = u16()           // ProtectionStatus
	size := u32()       // ObjectCompressedSize
	_ = u16()           // ThumbFormat
	_ = u32()           // ThumbCompressedSize
	_ = u32()           // ThumbPixWidth
	_ = u32()           // ThumbPixHeight
	_ = u32()           // ImagePixWidth
	_ = u32()           // ImagePixHeight
	_ = u32()           // ImageBitDepth
	_ = u32()           // ParentObject: ignored, the command parameter is authoritative
	_ = u16()           // AssociationType
	_ = u32()           // AssociationDesc
	_ = u32()           // SequenceNumber
	filename := str()   // Filename
	_ = str()           // CaptureDate
	modDate := str()    // ModificationDate
	_ = str()           // Keywords
	if rerr != nil {
		return mtp.RC_GeneralError, nil
	}

	mtime, ok := objectdb.ParseDateTime(modDate)
	if !ok {
		mtime = time.Now()
	}

	parentPath, ok := e.resolveParentPath(storageID, parentHandle, desc.MountPath)
	if !ok {
		return mtp.RC_InvalidParentObject, nil
	}

	if err := desc.Refresh(); err != nil {
		pkg.LogWarn(pkg.ComponentOperation, "storage refresh failed", "id", storageID, "err", err)
	}
	if desc.FreeSpace == 0 {
		return mtp.RC_StorageFull, nil
	}
	if desc.MaxFileSize != 0 && uint64(size) > desc.MaxFileSize {
		return mtp.RC_ObjectTooLarge, nil
	}
	if uint64(size) > desc.FreeSpace {
		return mtp.RC_ObjectTooLarge, nil
	}

	targetPath := filepath.Join(parentPath, filename)

	h, err := e.db.BeginSend(targetPath, format, parentHandle, storageID, uint64(size), mtime, desc.Type)
	if err != nil {
		return rcFor(err), nil
	}

	if format == mtp.FormatAssociation {
		if err := os.Mkdir(targetPath, 0o755); err != nil {
			e.db.EndSend(h, false)
			return mtp.RC_GeneralError, nil
		}
		e.db.EndSend(h, true)
	} else {
		e.send.Set(PendingInfo{Handle: h, Path: targetPath, Format: format, Size: size})
	}

	return mtp.RC_OK, []uint32{storageID, parentHandle, uint32(h)}
}

// opSendObject reads the Data header directly from the transport and
// streams the body to the path SendObjectInfo reserved (spec §4.E).
func (e *Engine) opSendObject(ctx context.Context, req *mtp.Request) (mtp.ResponseCode, []uint32) {
	info, ok := e.send.Get()
	e.send.Clear()
	if !ok {
		return mtp.RC_GeneralError, nil
	}

	f, err := os.OpenFile(info.Path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		e.db.EndSend(info.Handle, false)
		return mtp.RC_GeneralError, nil
	}

	ok2, rc := e.receiveFile(ctx, f, info.Size)
	f.Close()
	if !ok2 {
		os.Remove(info.Path)
	}
	e.db.EndSend(info.Handle, ok2)
	return rc, nil
}

// receiveFile reads the Data container's header and initial bytes
// directly from the transport, writes them to f, then streams the
// remainder. expectedSize == 0xFFFFFFFF means stream until a short
// packet (spec §4.E, §8).
func (e *Engine) receiveFile(ctx context.Context, f *os.File, expectedSize uint32) (bool, mtp.ResponseCode) {
	head := make([]byte, mtp.InitialHeaderSz)
	n, err := e.transport.Read(ctx, head)
	if err != nil {
		if isCancelled(err) {
			return false, cancelledNoResponse
		}
		return false, mtp.RC_GeneralError
	}
	if n < mtp.HeaderSize {
		return false, mtp.RC_GeneralError
	}
	hdr, ok := mtp.ParseHeader(head[:n])
	if !ok || hdr.Type != mtp.ContainerTypeData {
		return false, mtp.RC_GeneralError
	}

	unbounded := expectedSize == 0xFFFFFFFF
	var total uint64
	if !unbounded {
		total = uint64(expectedSize)
	}

	var received uint64
	initial := head[mtp.HeaderSize:n]
	if len(initial) > 0 {
		if _, err := f.Write(initial); err != nil {
			return false, mtp.RC_GeneralError
		}
		received += uint64(len(initial))
		e.metrics.addBytesIn(len(initial))
	}

	chunk := make([]byte, mtp.BulkReadChunk)
	for unbounded || received < total {
		m, err := e.transport.Read(ctx, chunk)
		if m > 0 {
			if _, werr := f.Write(chunk[:m]); werr != nil {
				return false, mtp.RC_GeneralError
			}
			received += uint64(m)
			e.metrics.addBytesIn(m)
		}
		if err != nil {
			if isCancelled(err) {
				return false, cancelledNoResponse
			}
			return false, mtp.RC_GeneralError
		}
		if unbounded && m < len(chunk) {
			break
		}
	}

	if !unbounded && received != total {
		return false, mtp.RC_IncompleteTransfer
	}
	return true, mtp.RC_OK
}

// opSendPartialObject(p1=handle, p2/p3=offset_lo/hi, p4=length) writes
// into an open edit session, extending its size if the write reaches
// past the current end (spec §4.E).
func (e *Engine) opSendPartialObject(ctx context.Context, req *mtp.Request) (mtp.ResponseCode, []uint32) {
	h := req.Param(0)
	offset := uint64(req.Param(1)) | uint64(req.Param(2))<<32
	length := uint64(req.Param(3))

	edit, ok := e.edits[h]
	if !ok {
		return mtp.RC_GeneralError, nil
	}
	if offset > uint64(edit.Size) {
		return mtp.RC_GeneralError, nil
	}

	written, rc := e.receiveInto(ctx, edit, offset, length)
	return rc, []uint32{uint32(written)}
}

// receiveInto is opSendPartialObject's streaming counterpart to
// receiveFile, writing at explicit offsets instead of sequentially.
func (e *Engine) receiveInto(ctx context.Context, edit *EditSession, offset, length uint64) (uint64, mtp.ResponseCode) {
	head := make([]byte, mtp.InitialHeaderSz)
	n, err := e.transport.Read(ctx, head)
	if err != nil {
		if isCancelled(err) {
			return 0, cancelledNoResponse
		}
		return 0, mtp.RC_GeneralError
	}
	if n < mtp.HeaderSize {
		return 0, mtp.RC_GeneralError
	}
	hdr, ok := mtp.ParseHeader(head[:n])
	if !ok || hdr.Type != mtp.ContainerTypeData {
		return 0, mtp.RC_GeneralError
	}

	var written uint64
	pos := offset
	initial := head[mtp.HeaderSize:n]
	if uint64(len(initial)) > length {
		initial = initial[:length]
	}
	if len(initial) > 0 {
		if _, err := edit.WriteAt(initial, int64(pos)); err != nil {
			return written, mtp.RC_GeneralError
		}
		written += uint64(len(initial))
		pos += uint64(len(initial))
		e.metrics.addBytesIn(len(initial))
	}

	chunk := make([]byte, mtp.BulkReadChunk)
	for written < length {
		want := length - written
		cur := chunk
		if uint64(len(cur)) > want {
			cur = cur[:want]
		}
		m, err := e.transport.Read(ctx, cur)
		if m > 0 {
			if _, werr := edit.WriteAt(cur[:m], int64(pos)); werr != nil {
				return written, mtp.RC_GeneralError
			}
			written += uint64(m)
			pos += uint64(m)
			e.metrics.addBytesIn(m)
		}
		if err != nil {
			if isCancelled(err) {
				return written, cancelledNoResponse
			}
			return written, mtp.RC_GeneralError
		}
	}
	return written, mtp.RC_OK
}

// opTruncateObject(p1=handle, p2/p3=offset_lo/hi) resizes the edit
// session's file.
func (e *Engine) opTruncateObject(ctx context.Context, req *mtp.Request) (mtp.ResponseCode, []uint32) {
	h := req.Param(0)
	offset := int64(uint64(req.Param(1)) | uint64(req.Param(2))<<32)
	edit, ok := e.edits[h]
	if !ok {
		return mtp.RC_GeneralError, nil
	}
	if err := edit.Truncate(offset); err != nil {
		return mtp.RC_GeneralError, nil
	}
	return mtp.RC_OK, nil
}

// opBeginEditObject(p1=handle) opens the object for exclusive partial
// writes. A second call for the same handle while one is already open
// fails (spec §8 scenario 5).
func (e *Engine) opBeginEditObject(ctx context.Context, req *mtp.Request) (mtp.ResponseCode, []uint32) {
	h := req.Param(0)
	if _, exists := e.edits[h]; exists {
		return mtp.RC_GeneralError, nil
	}
	path, size, format, ok := e.db.GetFilePath(h)
	if !ok {
		return mtp.RC_InvalidObjectHandle, nil
	}
	edit, err := openEditSession(h, path, int64(size), format)
	if err != nil {
		return mtp.RC_GeneralError, nil
	}
	e.edits[h] = edit
	e.metrics.editSessionOpened()
	return mtp.RC_OK, nil
}

// opEndEditObject(p1=handle) commits the edit session: closes the file,
// resyncs the database record's size, and destroys the session.
func (e *Engine) opEndEditObject(ctx context.Context, req *mtp.Request) (mtp.ResponseCode, []uint32) {
	h := req.Param(0)
	edit, ok := e.edits[h]
	if !ok {
		return mtp.RC_GeneralError, nil
	}
	edit.Close()
	delete(e.edits, h)
	e.metrics.editSessionClosed()
	e.db.EndSend(h, true)
	return mtp.RC_OK, nil
}
