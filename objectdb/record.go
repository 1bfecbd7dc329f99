// Package objectdb implements the in-memory handle→object map backed by
// lazy filesystem scans of the storages registered with the responder.
package objectdb

import (
	"time"

	"github.com/ardnew/mtpresponder/mtp"
)

// Record is the unit stored in the database: a file, a directory
// ("association"), or a tentative row reserved by SendObjectInfo.
type Record struct {
	Handle  mtp.ObjectHandle
	Storage mtp.StorageID
	Parent  mtp.ObjectHandle
	Format  uint16
	Size    uint64
	Name    string
	Path    string
	ModTime time.Time

	// Scanned is meaningful only for ASSOCIATION records: it reports
	// whether the directory's children have been enumerated into the
	// database yet.
	Scanned bool
}

// IsFolder reports whether the record represents a directory.
func (r *Record) IsFolder() bool {
	return r.Format == mtp.FormatAssociation
}

// EventSink receives notifications of database mutations so a session
// can relay them as MTP events. Installed with Database.Watch; the
// database holds no reference back to the engine beyond this narrow
// interface, avoiding the mutual ownership cycle the original
// responder's MtpDatabase/MtpServer pair has.
type EventSink interface {
	ObjectAdded(h mtp.ObjectHandle)
	ObjectRemoved(h mtp.ObjectHandle)
}
