package responder

import (
	"context"
	"testing"

	"github.com/ardnew/mtpresponder/mtp"
)

func TestOpenSessionThenDoubleOpenFails(t *testing.T) {
	f := newTestFixture(t)
	ctx := context.Background()

	f.openSession(t, ctx, 7)

	req := &mtp.Request{Code: mtp.OpOpenSession, Transaction: 2, Params: [mtp.MaxParams]uint32{7}, NumParams: 1}
	f.engine.processTransaction(ctx, req)
	resp := f.transport.nextWrite(t)
	hdr, ok := mtp.ParseHeader(resp)
	if !ok || mtp.ResponseCode(hdr.Code) != mtp.RC_SessionAlreadyOpen {
		t.Fatalf("expected SESSION_ALREADY_OPEN, got hdr=%+v ok=%v", hdr, ok)
	}
}

func TestOperationBeforeOpenSessionRequiresSession(t *testing.T) {
	f := newTestFixture(t)
	ctx := context.Background()

	req := &mtp.Request{Code: mtp.OpGetStorageIDs, Transaction: 1}
	f.engine.processTransaction(ctx, req)
	resp := f.transport.nextWrite(t)
	hdr, ok := mtp.ParseHeader(resp)
	if !ok || mtp.ResponseCode(hdr.Code) != mtp.RC_SessionNotOpen {
		t.Fatalf("expected SESSION_NOT_OPEN, got hdr=%+v ok=%v", hdr, ok)
	}
}

func TestCloseSessionAllowsReopen(t *testing.T) {
	f := newTestFixture(t)
	ctx := context.Background()
	f.openSession(t, ctx, 1)

	req := &mtp.Request{Code: mtp.OpCloseSession, Transaction: 2}
	f.engine.processTransaction(ctx, req)
	f.transport.nextWrite(t)

	f.openSession(t, ctx, 2)
}

// TestGetStorageIDsListsHiddenRootChildrenAtTop exercises spec §8's
// "list root with hidden storage" scenario: a FIXED_RAM storage added
// with hidden=true exposes its files directly under the handle-0
// parent rather than behind an association root.
func TestGetStorageIDsListsHiddenRootChildrenAtTop(t *testing.T) {
	f := newTestFixture(t)
	ctx := context.Background()
	f.writeFile(t, "a.txt", []byte("hello"))
	f.writeFile(t, "b.txt", []byte("world"))
	f.openSession(t, ctx, 1)

	req := &mtp.Request{Code: mtp.OpGetStorageIDs, Transaction: 2}
	f.engine.processTransaction(ctx, req)
	idsData := f.transport.nextWrite(t)
	idhdr, ok := mtp.ParseHeader(idsData)
	if !ok || idhdr.Type != mtp.ContainerTypeData {
		t.Fatalf("expected Data container for GetStorageIDs: %+v ok=%v", idhdr, ok)
	}
	resp := f.transport.nextWrite(t)
	hdr, ok := mtp.ParseHeader(resp)
	if !ok || mtp.ResponseCode(hdr.Code) != mtp.RC_OK {
		t.Fatalf("GetStorageIDs failed: hdr=%+v ok=%v", hdr, ok)
	}

	handlesReq := &mtp.Request{Code: mtp.OpGetObjectHandles, Transaction: 3,
		Params: [mtp.MaxParams]uint32{mtp.StorageAll, 0, uint32(mtp.HandleRoot)}, NumParams: 3}
	f.engine.processTransaction(ctx, handlesReq)
	dataPkt := f.transport.nextWrite(t)
	dhdr, ok := mtp.ParseHeader(dataPkt)
	if !ok || dhdr.Type != mtp.ContainerTypeData {
		t.Fatalf("expected Data container, got %+v ok=%v", dhdr, ok)
	}
	handles, n, ok := mtp.DecodeU32Array(dataPkt[mtp.HeaderSize:])
	if !ok || n <= 0 {
		t.Fatalf("could not decode handle array")
	}
	if len(handles) != 2 {
		t.Fatalf("expected 2 top-level objects (hidden root), got %d: %v", len(handles), handles)
	}

	respPkt := f.transport.nextWrite(t)
	rhdr, ok := mtp.ParseHeader(respPkt)
	if !ok || mtp.ResponseCode(rhdr.Code) != mtp.RC_OK {
		t.Fatalf("GetObjectHandles response not OK: %+v ok=%v", rhdr, ok)
	}
}
