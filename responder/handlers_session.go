package responder

import (
	"context"

	"github.com/ardnew/mtpresponder/mtp"
	"github.com/ardnew/mtpresponder/pkg"
)

// mtpVendorExtensionID is the PTP vendor extension ID reserved for MTP.
const mtpVendorExtensionID uint32 = 6

const mtpVendorExtensionDesc = "microsoft.com: 1.0; android.com: 1.0;"

// opGetDeviceInfo answers the device's capabilities: the two arrays
// here (operations, events) are mtp.SupportedOperations/SupportedEvents.
// The operations array lists the same codes as the dispatch table in
// buildOperations, which is a separate literal map.
func (e *Engine) opGetDeviceInfo(ctx context.Context, req *mtp.Request) (mtp.ResponseCode, []uint32) {
	c := e.codec
	c.AppendU16(100) // StandardVersion
	c.AppendU32(mtpVendorExtensionID)
	c.AppendU16(100) // MTP vendor extension version
	c.AppendString(mtpVendorExtensionDesc)
	c.AppendU16(0) // FunctionalMode
	c.AppendU16Array(mtp.SupportedOperations)
	c.AppendU16Array(mtp.SupportedEvents)
	c.AppendU16Array([]uint16{mtp.DevicePropFriendlyName, mtp.DevicePropSessionInitiatorInfo})
	c.AppendU16Array(nil) // CaptureFormats: this responder never initiates captures.
	c.AppendU16Array(nil) // PlaybackFormats: format filtering happens at the object level, not here.
	c.AppendString(e.config.Manufacturer)
	c.AppendString(e.config.Model)
	c.AppendString(e.config.DeviceVersion)
	c.AppendString(e.config.Serial)
	return mtp.RC_OK, nil
}

// opOpenSession installs the engine as the database's and registry's
// event sink (spec §9: a weak capability, not a mutual ownership cycle)
// and starts the session.
func (e *Engine) opOpenSession(ctx context.Context, req *mtp.Request) (mtp.ResponseCode, []uint32) {
	if e.session.Open {
		return mtp.RC_SessionAlreadyOpen, []uint32{e.session.ID}
	}
	e.session = Session{ID: req.Param(0), Open: true}
	e.db.Watch(e)
	e.storages.Watch(e)
	return mtp.RC_OK, nil
}

// opCloseSession commits every open edit, uninstalls the event sinks,
// and drops the pending send (spec §4.D).
func (e *Engine) opCloseSession(ctx context.Context, req *mtp.Request) (mtp.ResponseCode, []uint32) {
	e.commitAllEditsLocked()
	e.db.Watch(nil)
	e.storages.Watch(nil)
	e.session = Session{}
	e.send.Clear()
	return mtp.RC_OK, nil
}

func (e *Engine) opGetStorageIDs(ctx context.Context, req *mtp.Request) (mtp.ResponseCode, []uint32) {
	e.codec.AppendU32Array(e.storages.List())
	return mtp.RC_OK, nil
}

func (e *Engine) opGetStorageInfo(ctx context.Context, req *mtp.Request) (mtp.ResponseCode, []uint32) {
	id := req.Param(0)
	desc, ok := e.storages.Get(id)
	if !ok {
		return mtp.RC_InvalidStorageID, nil
	}
	if err := desc.Refresh(); err != nil {
		pkg.LogWarn(pkg.ComponentOperation, "storage refresh failed", "id", id, "err", err)
	}
	c := e.codec
	c.AppendU16(desc.Type)
	c.AppendU16(desc.FilesystemType)
	c.AppendU16(desc.AccessCapability)
	c.AppendU64(desc.MaxCapacity)
	c.AppendU64(desc.FreeSpace)
	c.AppendU32(freeSpaceInObjects)
	c.AppendString(desc.Description)
	c.AppendString("") // VolumeID: this responder assigns no persistent volume identifier.
	return mtp.RC_OK, nil
}

func (e *Engine) opGetDevicePropDesc(ctx context.Context, req *mtp.Request) (mtp.ResponseCode, []uint32) {
	prop := uint16(req.Param(0))
	val, ok := e.deviceProp(prop)
	if !ok {
		return mtp.RC_DevicePropNotSupported, nil
	}
	c := e.codec
	c.AppendU16(prop)
	c.AppendU16(mtp.DataTypeString)
	c.AppendU8(1) // GetSet
	c.AppendString(val)
	c.AppendString(val)
	c.AppendU8(0) // no form
	return mtp.RC_OK, nil
}

func (e *Engine) opGetDevicePropValue(ctx context.Context, req *mtp.Request) (mtp.ResponseCode, []uint32) {
	prop := uint16(req.Param(0))
	val, ok := e.deviceProp(prop)
	if !ok {
		return mtp.RC_DevicePropNotSupported, nil
	}
	e.codec.AppendString(val)
	return mtp.RC_OK, nil
}

// opSetDevicePropValue is a dataIn operation; the engine has already
// read the Data container into the codec by the time this runs.
func (e *Engine) opSetDevicePropValue(ctx context.Context, req *mtp.Request) (mtp.ResponseCode, []uint32) {
	prop := uint16(req.Param(0))
	if _, ok := e.deviceProp(prop); !ok {
		return mtp.RC_DevicePropNotSupported, nil
	}
	val, err := e.codec.ReadString()
	if err != nil {
		return mtp.RC_GeneralError, nil
	}
	e.setDeviceProp(prop, val)
	return mtp.RC_OK, nil
}

// opResetDevicePropValue is a no-op success for the two device
// properties this responder exposes; neither has a factory default
// distinct from its current value (spec §7 supplemented feature).
func (e *Engine) opResetDevicePropValue(ctx context.Context, req *mtp.Request) (mtp.ResponseCode, []uint32) {
	prop := uint16(req.Param(0))
	if _, ok := e.deviceProp(prop); !ok {
		return mtp.RC_DevicePropNotSupported, nil
	}
	return mtp.RC_OK, nil
}
