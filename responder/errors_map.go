package responder

import (
	"errors"

	"github.com/ardnew/mtpresponder/mtp"
	"github.com/ardnew/mtpresponder/pkg"
)

// rcFor maps a pkg sentinel error to the MTP response code a handler
// replies with. Errors with no specific mapping fall back to
// RC_GeneralError, matching spec §7's "unexpected conditions ... produce
// GENERAL_ERROR" propagation policy.
func rcFor(err error) mtp.ResponseCode {
	switch {
	case errors.Is(err, pkg.ErrInvalidObjectHandle):
		return mtp.RC_InvalidObjectHandle
	case errors.Is(err, pkg.ErrInvalidStorageID):
		return mtp.RC_InvalidStorageID
	case errors.Is(err, pkg.ErrInvalidParentObject):
		return mtp.RC_InvalidParentObject
	case errors.Is(err, pkg.ErrDeviceBusy):
		return mtp.RC_DeviceBusy
	case errors.Is(err, pkg.ErrStorageFull):
		return mtp.RC_StorageFull
	case errors.Is(err, pkg.ErrObjectTooLarge):
		return mtp.RC_ObjectTooLarge
	case errors.Is(err, pkg.ErrSpecByGroupUnsupported):
		return mtp.RC_SpecByGroupUnsupported
	case errors.Is(err, pkg.ErrSpecByDepthUnsupported):
		return mtp.RC_SpecByDepthUnsupported
	case errors.Is(err, pkg.ErrParameterNotSupported):
		return mtp.RC_ParameterNotSupported
	case errors.Is(err, pkg.ErrNotSupported):
		return mtp.RC_OperationNotSupported
	default:
		return mtp.RC_GeneralError
	}
}

// isCancelled reports whether err represents a host-initiated cancel
// observed during bulk I/O (spec §7: TRANSACTION_CANCELLED, no response).
func isCancelled(err error) bool {
	return errors.Is(err, pkg.ErrTransportCancelled)
}
