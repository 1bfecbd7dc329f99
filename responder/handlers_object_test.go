package responder

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ardnew/mtpresponder/mtp"
)

func findHandleByName(t *testing.T, f *testFixture, parent mtp.ObjectHandle, name string) mtp.ObjectHandle {
	t.Helper()
	for _, h := range f.db.List(f.storageID, 0, parent) {
		r, ok := f.db.Get(h)
		if ok && r.Name == name {
			return h
		}
	}
	t.Fatalf("no object named %q under parent %d", name, parent)
	return 0
}

func TestGetObjectInfoReportsSizeAndName(t *testing.T) {
	f := newTestFixture(t)
	ctx := context.Background()
	f.writeFile(t, "doc.txt", []byte("hello world"))
	f.openSession(t, ctx, 1)
	h := findHandleByName(t, f, mtp.HandleRoot, "doc.txt")

	req := &mtp.Request{Code: mtp.OpGetObjectInfo, Transaction: 2,
		Params: [mtp.MaxParams]uint32{uint32(h)}, NumParams: 1}
	f.engine.processTransaction(ctx, req)

	dataPkt := f.transport.nextWrite(t)
	hdr, ok := mtp.ParseHeader(dataPkt)
	if !ok || hdr.Type != mtp.ContainerTypeData {
		t.Fatalf("expected Data container: %+v ok=%v", hdr, ok)
	}
	// ObjectInfo: the compressed size is at payload offset 8 and the
	// filename string starts at payload offset 52.
	payload := dataPkt[mtp.HeaderSize:]
	if len(payload) < 53 {
		t.Fatalf("ObjectInfo payload too short: %d bytes", len(payload))
	}
	if size := mtp.DecodeU32(payload[8:12]); size != 11 {
		t.Fatalf("ObjectCompressedSize = %d, want 11", size)
	}
	if name, _, ok := mtp.DecodeString(payload[52:]); !ok || name != "doc.txt" {
		t.Fatalf("Filename = %q ok=%v, want %q", name, ok, "doc.txt")
	}

	respPkt := f.transport.nextWrite(t)
	rhdr, ok := mtp.ParseHeader(respPkt)
	if !ok || mtp.ResponseCode(rhdr.Code) != mtp.RC_OK {
		t.Fatalf("GetObjectInfo response not OK: %+v ok=%v", rhdr, ok)
	}
}

// TestDeleteObjectCascadesToChildrenAndDisk exercises spec §8's delete
// cascade scenario: deleting a folder removes every descendant record
// and its backing file, bottom-up.
func TestDeleteObjectCascadesToChildrenAndDisk(t *testing.T) {
	f := newTestFixture(t)
	ctx := context.Background()

	if err := os.Mkdir(filepath.Join(f.root, "dir"), 0o755); err != nil {
		t.Fatal(err)
	}
	nestedPath := filepath.Join(f.root, "dir", "nested.txt")
	if err := os.WriteFile(nestedPath, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	f.openSession(t, ctx, 1)
	dirHandle := findHandleByName(t, f, mtp.HandleRoot, "dir")
	// Force the lazy scan of dir's children before delete, mirroring a
	// host that already listed the folder.
	f.db.List(f.storageID, 0, dirHandle)
	nestedHandle := findHandleByName(t, f, dirHandle, "nested.txt")

	req := &mtp.Request{Code: mtp.OpDeleteObject, Transaction: 2,
		Params: [mtp.MaxParams]uint32{uint32(dirHandle)}, NumParams: 1}
	f.engine.processTransaction(ctx, req)
	resp := f.transport.nextWrite(t)
	hdr, ok := mtp.ParseHeader(resp)
	if !ok || mtp.ResponseCode(hdr.Code) != mtp.RC_OK {
		t.Fatalf("DeleteObject failed: %+v ok=%v", hdr, ok)
	}

	if f.db.IsValid(dirHandle) || f.db.IsValid(nestedHandle) {
		t.Fatal("expected both directory and nested record to be removed")
	}
	if _, err := os.Stat(nestedPath); !os.IsNotExist(err) {
		t.Fatalf("expected nested file removed from disk, stat err=%v", err)
	}
	if _, err := os.Stat(filepath.Join(f.root, "dir")); !os.IsNotExist(err) {
		t.Fatalf("expected directory removed from disk, stat err=%v", err)
	}
}

// TestMoveObjectSameStorageRenamesInPlace covers the same-storage branch
// of MoveObject: the file is renamed into the destination folder rather
// than copied.
func TestMoveObjectSameStorageRenamesInPlace(t *testing.T) {
	f := newTestFixture(t)
	ctx := context.Background()

	if err := os.Mkdir(filepath.Join(f.root, "dest"), 0o755); err != nil {
		t.Fatal(err)
	}
	srcPath := f.writeFile(t, "move-me.txt", []byte("payload"))

	f.openSession(t, ctx, 1)
	destHandle := findHandleByName(t, f, mtp.HandleRoot, "dest")
	srcHandle := findHandleByName(t, f, mtp.HandleRoot, "move-me.txt")

	req := &mtp.Request{Code: mtp.OpMoveObject, Transaction: 2,
		Params: [mtp.MaxParams]uint32{uint32(srcHandle), uint32(f.storageID), uint32(destHandle)}, NumParams: 3}
	f.engine.processTransaction(ctx, req)
	resp := f.transport.nextWrite(t)
	hdr, ok := mtp.ParseHeader(resp)
	if !ok || mtp.ResponseCode(hdr.Code) != mtp.RC_OK {
		t.Fatalf("MoveObject failed: %+v ok=%v", hdr, ok)
	}

	r, ok := f.db.Get(srcHandle)
	if !ok || r.Parent != destHandle {
		t.Fatalf("expected record reparented to dest, got %+v ok=%v", r, ok)
	}
	if _, err := os.Stat(srcPath); !os.IsNotExist(err) {
		t.Fatalf("expected source path gone after rename, err=%v", err)
	}
	if _, err := os.Stat(filepath.Join(f.root, "dest", "move-me.txt")); err != nil {
		t.Fatalf("expected file present under dest: %v", err)
	}
}
