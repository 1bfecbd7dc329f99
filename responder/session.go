// Package responder implements the transaction engine and the ~30 MTP
// operation handlers that drive the object database and storage
// registry through a request/response transaction loop.
package responder

import (
	"github.com/ardnew/mtpresponder/mtp"
)

// Session tracks the single active OpenSession/CloseSession interval
// the responder supports (spec §1 Non-goals: no multi-session
// multiplexing).
type Session struct {
	ID              uint32
	Open            bool
	LastTransaction uint32
}

// checkSessionRequired reports which MTP session-state error, if any, applies
// to issuing op while the session is in its current state (spec §4.D
// state machine). A nil return means the operation may proceed.
func (s *Session) checkSessionRequired(op uint16) *mtp.ResponseCode {
	if op == mtp.OpGetDeviceInfo || op == mtp.OpOpenSession {
		return nil
	}
	if !s.Open {
		rc := mtp.RC_SessionNotOpen
		return &rc
	}
	return nil
}
