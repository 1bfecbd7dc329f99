package mtp

import "context"

// Transport is the byte-level USB transport the engine consumes. The
// USB transport itself — bulk IN/OUT endpoints, the interrupt endpoint —
// is outside this module's scope (spec §1); callers supply an
// implementation bound to real hardware, a named-pipe bridge, or an
// in-memory test double.
type Transport interface {
	// Read delivers the next bulk-OUT packet into buf, returning the
	// number of bytes read. A short read is valid so long as the header
	// is complete; io.EOF or a transport error aborts the transaction.
	Read(ctx context.Context, buf []byte) (int, error)

	// Write sends buf on the bulk-IN endpoint.
	Write(ctx context.Context, buf []byte) (int, error)

	// SendEvent sends buf on the interrupt-IN endpoint.
	SendEvent(ctx context.Context, buf []byte) (int, error)
}
