// Package storage implements the registry of mounted storages the
// responder exposes, each backed by a filesystem subtree.
package storage

import (
	"syscall"

	"github.com/ardnew/mtpresponder/mtp"
)

// Descriptor is the external, passive value the engine queries for
// GetStorageInfo. The core never mutates it except via Refresh.
type Descriptor struct {
	ID               mtp.StorageID
	Type             uint16
	FilesystemType   uint16
	AccessCapability uint16
	MaxCapacity      uint64
	FreeSpace        uint64
	MaxFileSize      uint64
	Description      string
	MountPath        string
}

// Refresh recomputes MaxCapacity and FreeSpace from the host filesystem,
// the way the original responder does on every GetStorageInfo rather
// than serving a cached value (spec §7 supplemented feature).
func (d *Descriptor) Refresh() error {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(d.MountPath, &stat); err != nil {
		return err
	}
	d.MaxCapacity = stat.Blocks * uint64(stat.Bsize)
	d.FreeSpace = stat.Bavail * uint64(stat.Bsize)
	return nil
}
