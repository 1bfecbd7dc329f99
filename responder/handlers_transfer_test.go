package responder

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ardnew/mtpresponder/mtp"
	"github.com/ardnew/mtpresponder/objectdb"
)

// encodeObjectInfo builds the ObjectInfo dataset opSendObjectInfo parses,
// using a scratch codec so field order stays in lockstep with the
// handler without duplicating the wire layout by hand.
func encodeObjectInfo(filename string, format uint16, size uint32) []byte {
	c := mtp.NewCodec()
	c.BeginWrite()
	c.AppendU32(0)                                        // StorageID: ignored
	c.AppendU16(format)                                   // ObjectFormat
	c.AppendU16(0)                                         // ProtectionStatus
	c.AppendU32(size)                                      // ObjectCompressedSize
	c.AppendU16(0)                                         // ThumbFormat
	c.AppendU32(0)                                         // ThumbCompressedSize
	c.AppendU32(0)                                         // ThumbPixWidth
	c.AppendU32(0)                                         // ThumbPixHeight
	c.AppendU32(0)                                         // ImagePixWidth
	c.AppendU32(0)                                         // ImagePixHeight
	c.AppendU32(0)                                         // ImageBitDepth
	c.AppendU32(0)                                         // ParentObject: ignored
	c.AppendU16(0)                                         // AssociationType
	c.AppendU32(0)                                         // AssociationDesc
	c.AppendU32(0)                                         // SequenceNumber
	c.AppendString(filename)                               // Filename
	c.AppendString(objectdb.FormatDateTime(time.Now()))     // CaptureDate
	c.AppendString(objectdb.FormatDateTime(time.Now()))     // ModificationDate
	c.AppendString("")                                      // Keywords
	return append([]byte(nil), c.DataBytes()...)
}

// TestSendObjectInfoSendObjectGetObjectPropValueRoundTrip exercises
// spec §8's 3-byte send/read-back scenario end to end.
func TestSendObjectInfoSendObjectGetObjectPropValueRoundTrip(t *testing.T) {
	f := newTestFixture(t)
	ctx := context.Background()
	f.openSession(t, ctx, 1)

	payload := []byte("abc")
	infoPayload := encodeObjectInfo("new.bin", mtp.FormatUndefined, uint32(len(payload)))
	infoContainer := buildDataHeader(mtp.OpSendObjectInfo, 2, infoPayload)
	f.transport.queueRead(infoContainer)

	// The fixture's storage is a hidden FIXED_RAM root, which rejects sends
	// to parent 0; send into the root record itself, the first handle
	// minted in a fresh database.
	const storageRootHandle = 1
	infoReq := &mtp.Request{Code: mtp.OpSendObjectInfo, Transaction: 2,
		Params: [mtp.MaxParams]uint32{f.storageID, storageRootHandle}, NumParams: 2}
	f.engine.processTransaction(ctx, infoReq)

	resp1 := f.transport.nextWrite(t)
	rhdr, ok := mtp.ParseHeader(resp1)
	if !ok || mtp.ResponseCode(rhdr.Code) != mtp.RC_OK {
		t.Fatalf("SendObjectInfo failed: %+v ok=%v", rhdr, ok)
	}
	handle := mtp.ObjectHandle(mtp.DecodeU32(resp1[mtp.HeaderSize+8 : mtp.HeaderSize+12]))

	dataContainer := buildDataHeader(mtp.OpSendObject, 3, payload)
	f.transport.queueRead(dataContainer)

	sendReq := &mtp.Request{Code: mtp.OpSendObject, Transaction: 3}
	f.engine.processTransaction(ctx, sendReq)

	resp2 := f.transport.nextWrite(t)
	shdr, ok := mtp.ParseHeader(resp2)
	if !ok || mtp.ResponseCode(shdr.Code) != mtp.RC_OK {
		t.Fatalf("SendObject failed: %+v ok=%v", shdr, ok)
	}

	targetPath := filepath.Join(f.root, "new.bin")
	got, err := os.ReadFile(targetPath)
	if err != nil {
		t.Fatalf("read sent object: %v", err)
	}
	if string(got) != "abc" {
		t.Fatalf("expected payload %q on disk, got %q", payload, got)
	}

	propReq := &mtp.Request{Code: mtp.OpGetObjectPropValue, Transaction: 4,
		Params: [mtp.MaxParams]uint32{uint32(handle), uint32(mtp.PropObjectSize)}, NumParams: 2}
	f.engine.processTransaction(ctx, propReq)

	propData := f.transport.nextWrite(t)
	phdr, ok := mtp.ParseHeader(propData)
	if !ok || phdr.Type != mtp.ContainerTypeData {
		t.Fatalf("expected Data container for GetObjectPropValue: %+v ok=%v", phdr, ok)
	}
	size := mtp.DecodeU32(propData[mtp.HeaderSize:])
	if size != uint32(len(payload)) {
		t.Fatalf("expected PropObjectSize %d, got %d", len(payload), size)
	}

	propResp := f.transport.nextWrite(t)
	prhdr, ok := mtp.ParseHeader(propResp)
	if !ok || mtp.ResponseCode(prhdr.Code) != mtp.RC_OK {
		t.Fatalf("GetObjectPropValue response not OK: %+v ok=%v", prhdr, ok)
	}
}

// TestGetPartialObject64ReadsAcross32BitOffsetBoundary exercises spec
// §8's GetPartialObject_64 scenario: the 64-bit offset is reconstructed
// from two u32 parameters and lands correctly past 2^32.
func TestGetPartialObject64ReadsAcross32BitOffsetBoundary(t *testing.T) {
	f := newTestFixture(t)
	ctx := context.Background()

	var offset = uint64(1) << 32
	marker := []byte("Zzzzz")

	path := filepath.Join(f.root, "big.bin")
	fh, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := fh.Truncate(int64(offset) + int64(len(marker))); err != nil {
		t.Fatal(err)
	}
	if _, err := fh.WriteAt(marker, int64(offset)); err != nil {
		t.Fatal(err)
	}
	fh.Close()

	f.openSession(t, ctx, 1)
	handle := findHandleByName(t, f, mtp.HandleRoot, "big.bin")

	req := &mtp.Request{Code: mtp.OpGetPartialObject64, Transaction: 2,
		Params: [mtp.MaxParams]uint32{uint32(handle), uint32(offset), uint32(offset >> 32), uint32(len(marker))},
		NumParams: 4}
	f.engine.processTransaction(ctx, req)

	hdrPkt := f.transport.nextWrite(t)
	hdr, ok := mtp.ParseHeader(hdrPkt)
	if !ok || hdr.Type != mtp.ContainerTypeData {
		t.Fatalf("expected Data header write, got %+v ok=%v", hdr, ok)
	}

	chunkPkt := f.transport.nextWrite(t)
	if string(chunkPkt) != string(marker) {
		t.Fatalf("expected streamed chunk %q, got %q", marker, chunkPkt)
	}

	respPkt := f.transport.nextWrite(t)
	rhdr, ok := mtp.ParseHeader(respPkt)
	if !ok || mtp.ResponseCode(rhdr.Code) != mtp.RC_OK {
		t.Fatalf("GetPartialObject64 response not OK: %+v ok=%v", rhdr, ok)
	}
	sent := mtp.DecodeU32(respPkt[mtp.HeaderSize:])
	if sent != uint32(len(marker)) {
		t.Fatalf("expected sent=%d, got %d", len(marker), sent)
	}
}

// TestEditSessionTruncateAndConcurrentBeginRejected exercises spec §8's
// edit-session scenario: a second BeginEditObject on the same handle is
// rejected, and TruncateObject resizes the file in place.
func TestEditSessionTruncateAndConcurrentBeginRejected(t *testing.T) {
	f := newTestFixture(t)
	ctx := context.Background()
	f.writeFile(t, "edit.txt", []byte("0123456789"))
	f.openSession(t, ctx, 1)
	handle := findHandleByName(t, f, mtp.HandleRoot, "edit.txt")

	beginReq := &mtp.Request{Code: mtp.OpBeginEditObject, Transaction: 2,
		Params: [mtp.MaxParams]uint32{uint32(handle)}, NumParams: 1}
	f.engine.processTransaction(ctx, beginReq)
	resp := f.transport.nextWrite(t)
	hdr, ok := mtp.ParseHeader(resp)
	if !ok || mtp.ResponseCode(hdr.Code) != mtp.RC_OK {
		t.Fatalf("BeginEditObject failed: %+v ok=%v", hdr, ok)
	}

	f.engine.processTransaction(ctx, &mtp.Request{Code: mtp.OpBeginEditObject, Transaction: 3,
		Params: [mtp.MaxParams]uint32{uint32(handle)}, NumParams: 1})
	dupResp := f.transport.nextWrite(t)
	dhdr, ok := mtp.ParseHeader(dupResp)
	if !ok || mtp.ResponseCode(dhdr.Code) != mtp.RC_GeneralError {
		t.Fatalf("expected second BeginEditObject to fail, got %+v ok=%v", dhdr, ok)
	}

	truncReq := &mtp.Request{Code: mtp.OpTruncateObject, Transaction: 4,
		Params: [mtp.MaxParams]uint32{uint32(handle), 5, 0}, NumParams: 3}
	f.engine.processTransaction(ctx, truncReq)
	truncResp := f.transport.nextWrite(t)
	thdr, ok := mtp.ParseHeader(truncResp)
	if !ok || mtp.ResponseCode(thdr.Code) != mtp.RC_OK {
		t.Fatalf("TruncateObject failed: %+v ok=%v", thdr, ok)
	}
	if edit := f.engine.edits[handle]; edit == nil || edit.Size != 5 {
		t.Fatalf("expected edit session size 5, got %+v", edit)
	}

	endReq := &mtp.Request{Code: mtp.OpEndEditObject, Transaction: 5,
		Params: [mtp.MaxParams]uint32{uint32(handle)}, NumParams: 1}
	f.engine.processTransaction(ctx, endReq)
	endResp := f.transport.nextWrite(t)
	ehdr, ok := mtp.ParseHeader(endResp)
	if !ok || mtp.ResponseCode(ehdr.Code) != mtp.RC_OK {
		t.Fatalf("EndEditObject failed: %+v ok=%v", ehdr, ok)
	}
	if _, exists := f.engine.edits[handle]; exists {
		t.Fatal("expected edit session removed after EndEditObject")
	}

	got, err := os.ReadFile(filepath.Join(f.root, "edit.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "01234" {
		t.Fatalf("expected truncated content %q, got %q", "01234", got)
	}
}
