package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ardnew/mtpresponder/mtp"
	"github.com/ardnew/mtpresponder/objectdb"
)

type recordingSink struct {
	added   []mtp.StorageID
	removed []mtp.StorageID
}

func (s *recordingSink) StorageAdded(id mtp.StorageID)   { s.added = append(s.added, id) }
func (s *recordingSink) StorageRemoved(id mtp.StorageID) { s.removed = append(s.removed, id) }

func TestHasStorageWildcards(t *testing.T) {
	db := objectdb.NewDatabase()
	reg := NewRegistry(db)

	if reg.HasStorage(0) {
		t.Fatal("empty registry should not match wildcard 0")
	}
	if reg.HasStorage(mtp.StorageAll) {
		t.Fatal("empty registry should not match wildcard 0xFFFFFFFF")
	}

	dir := t.TempDir()
	reg.Add(Descriptor{ID: 1, MountPath: dir}, "card", true)

	if !reg.HasStorage(0) {
		t.Fatal("non-empty registry should match wildcard 0")
	}
	if !reg.HasStorage(mtp.StorageAll) {
		t.Fatal("non-empty registry should match wildcard 0xFFFFFFFF")
	}
	if !reg.HasStorage(1) {
		t.Fatal("registry should match its own id")
	}
	if reg.HasStorage(2) {
		t.Fatal("registry should not match an unregistered id")
	}
}

func TestAddIngestsIntoDatabase(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "f.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	db := objectdb.NewDatabase()
	reg := NewRegistry(db)
	reg.Add(Descriptor{ID: 5, MountPath: dir}, "card", true)

	handles := db.List(5, 0, mtp.HandleRoot)
	if len(handles) != 1 {
		t.Fatalf("expected storage ingestion to populate the database, got %d handles", len(handles))
	}
}

func TestRemovePurgesDatabase(t *testing.T) {
	dir := t.TempDir()
	db := objectdb.NewDatabase()
	reg := NewRegistry(db)
	reg.Add(Descriptor{ID: 7, MountPath: dir}, "card", false)
	if !reg.HasStorage(7) {
		t.Fatal("storage should be registered")
	}

	reg.Remove(7)
	if reg.HasStorage(7) {
		t.Fatal("storage should be deregistered")
	}
	if len(db.List(7, 0, mtp.HandleRoot)) != 0 {
		t.Fatal("database should be purged of the removed storage's records")
	}
}

func TestAddRemoveNotifiesSink(t *testing.T) {
	db := objectdb.NewDatabase()
	reg := NewRegistry(db)
	sink := &recordingSink{}
	reg.Watch(sink)

	dir := t.TempDir()
	reg.Add(Descriptor{ID: 9, MountPath: dir}, "card", false)
	reg.Remove(9)

	if len(sink.added) != 1 || sink.added[0] != 9 {
		t.Fatalf("expected StorageAdded(9), got %v", sink.added)
	}
	if len(sink.removed) != 1 || sink.removed[0] != 9 {
		t.Fatalf("expected StorageRemoved(9), got %v", sink.removed)
	}
}

func TestListPreservesRegistrationOrder(t *testing.T) {
	db := objectdb.NewDatabase()
	reg := NewRegistry(db)
	for _, id := range []mtp.StorageID{3, 1, 2} {
		reg.Add(Descriptor{ID: id, MountPath: t.TempDir()}, "s", false)
	}
	got := reg.List()
	want := []mtp.StorageID{3, 1, 2}
	if len(got) != len(want) {
		t.Fatalf("length mismatch: got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order mismatch at %d: got %v want %v", i, got, want)
		}
	}
}
