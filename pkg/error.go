package pkg

import "errors"

// MTP protocol and transport errors.
var (
	// ErrCodecTruncated indicates a container header was shorter than 12 bytes.
	ErrCodecTruncated = errors.New("container truncated")

	// ErrCodecOverrun indicates a typed read advanced past the end of the payload.
	ErrCodecOverrun = errors.New("codec read past end of payload")

	// ErrCodecShortWrite indicates the reusable buffer was too small for the payload.
	ErrCodecShortWrite = errors.New("codec buffer too small for payload")

	// ErrTransportClosed indicates the transport is no longer usable.
	ErrTransportClosed = errors.New("transport closed")

	// ErrTransportCancelled indicates a host-initiated cancel during bulk I/O.
	ErrTransportCancelled = errors.New("transfer cancelled")

	// ErrSessionNotOpen indicates an operation requiring an open session was
	// issued while closed.
	ErrSessionNotOpen = errors.New("session not open")

	// ErrSessionAlreadyOpen indicates OpenSession was issued while a session
	// was already open.
	ErrSessionAlreadyOpen = errors.New("session already open")

	// ErrInvalidObjectHandle indicates a handle not present in the database.
	ErrInvalidObjectHandle = errors.New("invalid object handle")

	// ErrInvalidStorageID indicates a storage ID not present in the registry.
	ErrInvalidStorageID = errors.New("invalid storage id")

	// ErrInvalidParentObject indicates a parent handle that does not name a
	// folder in the same storage.
	ErrInvalidParentObject = errors.New("invalid parent object")

	// ErrNotSupported indicates an unsupported operation, property, or
	// parameter combination.
	ErrNotSupported = errors.New("not supported")

	// ErrOperationNotSupported indicates an unrecognized operation code.
	ErrOperationNotSupported = errors.New("operation not supported")

	// ErrDeviceBusy indicates a filesystem operation collided with existing
	// state (e.g. a rename target already exists, an edit session is open).
	ErrDeviceBusy = errors.New("device busy")

	// ErrStorageFull indicates insufficient free space for a pending send.
	ErrStorageFull = errors.New("storage full")

	// ErrObjectTooLarge indicates a pending send exceeds the storage's max
	// file size.
	ErrObjectTooLarge = errors.New("object too large")

	// ErrNoPendingSend indicates SendObject arrived without a preceding
	// successful SendObjectInfo.
	ErrNoPendingSend = errors.New("no pending send")

	// ErrEditSessionOpen indicates BeginEditObject was issued for a handle
	// that already has an open edit session.
	ErrEditSessionOpen = errors.New("edit session already open")

	// ErrNoEditSession indicates a partial-write operation was issued
	// without a preceding BeginEditObject.
	ErrNoEditSession = errors.New("no edit session open")

	// ErrAlreadyRunning indicates the engine is already running.
	ErrAlreadyRunning = errors.New("already running")

	// ErrSpecByGroupUnsupported indicates GetObjectPropList was asked to
	// specify properties by group code, which this responder never supports.
	ErrSpecByGroupUnsupported = errors.New("specification by group unsupported")

	// ErrSpecByDepthUnsupported indicates GetObjectPropList was asked for a
	// depth greater than the single-object/immediate-children levels this
	// responder implements.
	ErrSpecByDepthUnsupported = errors.New("specification by depth unsupported")

	// ErrParameterNotSupported indicates a request parameter combination
	// that names no valid operation (e.g. GetObjectPropList with prop==0
	// and group==0).
	ErrParameterNotSupported = errors.New("parameter not supported")
)
