package responder

import "github.com/ardnew/mtpresponder/mtp"

// SendState is the engine's pending-send bookkeeping (spec §9: an
// explicit enum in place of the source's sentinel handle). A non-idle
// state exists only between a successful SendObjectInfo reply and the
// following SendObject, and is dropped if any other operation
// intervenes (spec §3 invariant 4).
type SendState struct {
	pending bool
	info    PendingInfo
}

// PendingInfo is the reservation SendObjectInfo hands to SendObject.
type PendingInfo struct {
	Handle mtp.ObjectHandle
	Path   string
	Format uint16
	Size   uint32
}

// Idle reports whether no send is pending.
func (s *SendState) Idle() bool {
	return !s.pending
}

// Set records a new pending send.
func (s *SendState) Set(info PendingInfo) {
	s.pending = true
	s.info = info
}

// Get returns the pending send, if any.
func (s *SendState) Get() (PendingInfo, bool) {
	if !s.pending {
		return PendingInfo{}, false
	}
	return s.info, true
}

// Clear drops the pending send without completing it.
func (s *SendState) Clear() {
	s.pending = false
	s.info = PendingInfo{}
}
