package storage

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/ardnew/mtpresponder/objectdb"
	"github.com/ardnew/mtpresponder/pkg"
)

// Watcher folds filesystem Create/Remove/Rename events for a mount
// path back into the object database as ObjectAdded/ObjectRemoved
// events, supplementing spec.md's purely lazy, pull-based scan with a
// push-based refresh (SPEC_FULL.md §4). It is optional: Registry and
// Database never depend on it directly.
type Watcher struct {
	fsw *fsnotify.Watcher
	db  *objectdb.Database
}

// NewWatcher creates a Watcher observing mountPath. Call Run in its own
// goroutine to start relaying events; Close stops it.
func NewWatcher(db *objectdb.Database, mountPath string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(mountPath); err != nil {
		fsw.Close()
		return nil, err
	}
	return &Watcher{fsw: fsw, db: db}, nil
}

// Run drains filesystem events until Close is called or the watcher's
// channels are closed. Create events rescan the event's directory in the
// database (RescanPath) and Remove/Rename events drop the matching record
// (RemoveByPath); watcher errors are logged.
func (w *Watcher) Run() {
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			pkg.LogWarn(pkg.ComponentStorage, "watcher error", "err", err)
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	dir := filepath.Dir(event.Name)
	switch {
	case event.Has(fsnotify.Create):
		pkg.LogDebug(pkg.ComponentStorage, "filesystem create observed", "name", filepath.Base(event.Name))
		w.db.RescanPath(dir)
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		pkg.LogDebug(pkg.ComponentStorage, "filesystem removal observed", "name", filepath.Base(event.Name))
		w.db.RemoveByPath(event.Name)
	}
}

// Close stops the underlying fsnotify watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}
