package responder

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ardnew/mtpresponder/mtp"
	"github.com/ardnew/mtpresponder/objectdb"
	"github.com/ardnew/mtpresponder/storage"
)

// pipeTransport is an in-memory mtp.Transport test double built from
// plain Go channels, modeled on the teacher's paired host/device FIFO
// endpoints (host/hal/fifo) but stripped of the real named-pipe framing:
// tests feed command/data bytes in on in and drain whatever the engine
// writes from out/events.
type pipeTransport struct {
	in     chan []byte
	out    chan []byte
	events chan []byte
}

func newPipeTransport() *pipeTransport {
	return &pipeTransport{
		in:     make(chan []byte, 64),
		out:    make(chan []byte, 64),
		events: make(chan []byte, 64),
	}
}

func (p *pipeTransport) Read(ctx context.Context, buf []byte) (int, error) {
	select {
	case b, ok := <-p.in:
		if !ok {
			return 0, io.EOF
		}
		return copy(buf, b), nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (p *pipeTransport) Write(ctx context.Context, buf []byte) (int, error) {
	cp := append([]byte(nil), buf...)
	select {
	case p.out <- cp:
		return len(buf), nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (p *pipeTransport) SendEvent(ctx context.Context, buf []byte) (int, error) {
	cp := append([]byte(nil), buf...)
	select {
	case p.events <- cp:
		return len(buf), nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// queueRead enqueues one packet for the next Read call to deliver.
func (p *pipeTransport) queueRead(b []byte) {
	p.in <- b
}

// nextWrite pops the next captured write, failing the test if none is
// waiting.
func (p *pipeTransport) nextWrite(t *testing.T) []byte {
	t.Helper()
	select {
	case b := <-p.out:
		return b
	default:
		t.Fatal("expected a write, got none")
		return nil
	}
}

func buildCommand(code uint16, tx uint32, params ...uint32) []byte {
	length := mtp.HeaderSize + len(params)*4
	buf := make([]byte, length)
	hdr := mtp.Header{Length: uint32(length), Type: mtp.ContainerTypeCommand, Code: code, Transaction: tx}
	hdr.MarshalTo(buf)
	off := mtp.HeaderSize
	for _, p := range params {
		mtp.EncodeU32(buf[off:off+4], p)
		off += 4
	}
	return buf
}

func buildDataHeader(code uint16, tx uint32, payload []byte) []byte {
	buf := make([]byte, mtp.HeaderSize+len(payload))
	hdr := mtp.Header{Length: uint32(len(buf)), Type: mtp.ContainerTypeData, Code: code, Transaction: tx}
	hdr.MarshalTo(buf)
	copy(buf[mtp.HeaderSize:], payload)
	return buf
}

// testFixture bundles a ready-to-use Engine, its test transport, and
// the filesystem root backing its single storage.
type testFixture struct {
	engine    *Engine
	transport *pipeTransport
	db        *objectdb.Database
	storages  *storage.Registry
	root      string
	storageID mtp.StorageID
}

// newTestFixture builds an Engine over a fresh temp directory but does
// not yet register any storage — AddStorageRoot scans the directory
// immediately, so tests must write their initial files and then call
// mount before opening a session, matching spec §8's "list root with
// hidden storage" scenario.
func newTestFixture(t *testing.T) *testFixture {
	t.Helper()
	dir := t.TempDir()

	db := objectdb.NewDatabase()
	registry := storage.NewRegistry(db)

	tr := newPipeTransport()
	metrics := NewMetrics(prometheus.NewRegistry())
	engine := NewEngine(mtp.NewCodec(), tr, db, registry, Config{
		Manufacturer: "mtpresponder-test",
		Model:        "fixture",
	}, metrics)

	return &testFixture{
		engine:    engine,
		transport: tr,
		db:        db,
		storages:  registry,
		root:      dir,
		storageID: mtp.StorageID(0x00010001),
	}
}

// writeFile creates name under the fixture's storage root with the
// given contents and returns its full path. Must be called before
// mount for the file to appear in the hidden root's initial scan.
func (f *testFixture) writeFile(t *testing.T, name string, contents []byte) string {
	t.Helper()
	path := filepath.Join(f.root, name)
	if err := os.WriteFile(path, contents, 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

// mount registers the fixture's root as a hidden FIXED_RAM storage,
// scanning whatever files are present on disk right now. Call it once
// all pre-existing fixture files have been written.
func (f *testFixture) mount(t *testing.T) {
	t.Helper()
	desc := storage.Descriptor{
		ID:               f.storageID,
		Type:             mtp.StorageTypeFixedRAM,
		FilesystemType:   mtp.FSTypeGenericHierarchical,
		AccessCapability: mtp.AccessReadWrite,
		Description:      "test",
		MountPath:        f.root,
	}
	if err := desc.Refresh(); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	f.storages.Add(desc, "test", true)
}

// openSession mounts the storage if not already mounted, drives an
// OpenSession transaction, and fails the test if it doesn't succeed.
func (f *testFixture) openSession(t *testing.T, ctx context.Context, id uint32) {
	t.Helper()
	if !f.storages.HasStorage(f.storageID) {
		f.mount(t)
	}
	req := &mtp.Request{Code: mtp.OpOpenSession, Transaction: 1, Params: [mtp.MaxParams]uint32{id}, NumParams: 1}
	f.engine.processTransaction(ctx, req)
	resp := f.transport.nextWrite(t)
	hdr, ok := mtp.ParseHeader(resp)
	if !ok || hdr.Code != uint16(mtp.RC_OK) {
		t.Fatalf("OpenSession failed: hdr=%+v ok=%v", hdr, ok)
	}
}
