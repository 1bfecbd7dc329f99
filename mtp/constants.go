package mtp

// ObjectHandle identifies an object within this responder's lifetime.
// Zero denotes "root" in protocol parameters; 0xFFFFFFFF denotes
// "any/unspecified". Handles are monotonically assigned and never reused.
type ObjectHandle = uint32

// StorageID identifies a mounted storage, assigned by the caller at
// registration time.
type StorageID = uint32

// Reserved handle values (spec §3).
const (
	HandleRoot ObjectHandle = 0x00000000
	HandleAll  ObjectHandle = 0xFFFFFFFF
)

// Reserved storage ID values (spec §4.C).
const (
	StorageAll StorageID = 0xFFFFFFFF
)

// HeaderSize is the fixed size of every container header in bytes:
// length(4) + type(2) + code(2) + transaction id(4).
const HeaderSize = 12

// Reusable buffer sizes (spec §4.A).
const (
	MaxDataSize     = 16 * 1024 // 16 KiB bulk data packet
	MaxCommandSize  = 512       // command/response/event packet
	MaxParams       = 5
	BulkReadChunk   = 4096 // chunk size used when streaming file bytes
	InitialHeaderSz = 512  // bytes of the Data header SendObject reads up front
)

// ContainerType is the MTP container type field.
type ContainerType uint16

// Container types (spec §4.A).
const (
	ContainerTypeCommand  ContainerType = 1
	ContainerTypeData     ContainerType = 2
	ContainerTypeResponse ContainerType = 3
	ContainerTypeEvent    ContainerType = 4
)

func (t ContainerType) String() string {
	switch t {
	case ContainerTypeCommand:
		return "Command"
	case ContainerTypeData:
		return "Data"
	case ContainerTypeResponse:
		return "Response"
	case ContainerTypeEvent:
		return "Event"
	default:
		return "Unknown"
	}
}

// Operation codes. The Android Get/SendPartialObject64/Truncate/Edit
// extensions share the spec's "Android" naming but are ordinary vendor
// extension op codes like any other.
const (
	OpGetDeviceInfo           uint16 = 0x1001
	OpOpenSession             uint16 = 0x1002
	OpCloseSession            uint16 = 0x1003
	OpGetStorageIDs           uint16 = 0x1004
	OpGetStorageInfo          uint16 = 0x1005
	OpGetNumObjects           uint16 = 0x1006
	OpGetObjectHandles        uint16 = 0x1007
	OpGetObjectInfo           uint16 = 0x1008
	OpGetObject               uint16 = 0x1009
	OpGetThumb                uint16 = 0x100A
	OpDeleteObject            uint16 = 0x100B
	OpSendObjectInfo          uint16 = 0x100C
	OpSendObject              uint16 = 0x100D
	OpGetDevicePropDesc       uint16 = 0x1014
	OpGetDevicePropValue      uint16 = 0x1015
	OpSetDevicePropValue      uint16 = 0x1016
	OpResetDevicePropValue    uint16 = 0x1017
	OpMoveObject              uint16 = 0x1019
	OpGetPartialObject        uint16 = 0x101B
	OpGetObjectPropsSupported uint16 = 0x9801
	OpGetObjectPropDesc       uint16 = 0x9802
	OpGetObjectPropValue      uint16 = 0x9803
	OpSetObjectPropValue      uint16 = 0x9804
	OpGetObjectPropList       uint16 = 0x9805
	OpGetObjectReferences     uint16 = 0x9810
	OpSetObjectReferences     uint16 = 0x9811

	// Android vendor extensions used for in-place editing (spec §6).
	OpGetPartialObject64  uint16 = 0x95C1
	OpSendPartialObject   uint16 = 0x95C2
	OpTruncateObject      uint16 = 0x95C3
	OpBeginEditObject     uint16 = 0x95C4
	OpEndEditObject       uint16 = 0x95C5
)

// OpNames maps operation codes to human-readable names for logging.
var OpNames = map[uint16]string{
	OpGetDeviceInfo:           "GetDeviceInfo",
	OpOpenSession:             "OpenSession",
	OpCloseSession:            "CloseSession",
	OpGetStorageIDs:           "GetStorageIDs",
	OpGetStorageInfo:          "GetStorageInfo",
	OpGetNumObjects:           "GetNumObjects",
	OpGetObjectHandles:        "GetObjectHandles",
	OpGetObjectInfo:           "GetObjectInfo",
	OpGetObject:               "GetObject",
	OpGetThumb:                "GetThumb",
	OpDeleteObject:            "DeleteObject",
	OpSendObjectInfo:          "SendObjectInfo",
	OpSendObject:              "SendObject",
	OpGetDevicePropDesc:       "GetDevicePropDesc",
	OpGetDevicePropValue:      "GetDevicePropValue",
	OpSetDevicePropValue:      "SetDevicePropValue",
	OpResetDevicePropValue:    "ResetDevicePropValue",
	OpMoveObject:              "MoveObject",
	OpGetPartialObject:        "GetPartialObject",
	OpGetObjectPropsSupported: "GetObjectPropsSupported",
	OpGetObjectPropDesc:       "GetObjectPropDesc",
	OpGetObjectPropValue:      "GetObjectPropValue",
	OpSetObjectPropValue:      "SetObjectPropValue",
	OpGetObjectPropList:       "GetObjectPropList",
	OpGetObjectReferences:     "GetObjectReferences",
	OpSetObjectReferences:     "SetObjectReferences",
	OpGetPartialObject64:      "AndroidGetPartialObject64",
	OpSendPartialObject:       "AndroidSendPartialObject",
	OpTruncateObject:          "AndroidTruncateObject",
	OpBeginEditObject:         "AndroidBeginEditObject",
	OpEndEditObject:           "AndroidEndEditObject",
}

// SupportedOperations is the array reported by GetDeviceInfo. The
// engine's dispatch table (responder buildOperations) is a separate map
// listing the same operation codes; nothing checks that the two agree.
var SupportedOperations = []uint16{
	OpGetDeviceInfo, OpOpenSession, OpCloseSession,
	OpGetStorageIDs, OpGetStorageInfo,
	OpGetNumObjects, OpGetObjectHandles, OpGetObjectInfo,
	OpGetObject, OpGetThumb, OpDeleteObject,
	OpSendObjectInfo, OpSendObject,
	OpGetDevicePropDesc, OpGetDevicePropValue, OpSetDevicePropValue, OpResetDevicePropValue,
	OpMoveObject, OpGetPartialObject,
	OpGetObjectPropsSupported, OpGetObjectPropDesc, OpGetObjectPropValue, OpSetObjectPropValue,
	OpGetObjectPropList, OpGetObjectReferences, OpSetObjectReferences,
	OpGetPartialObject64, OpSendPartialObject, OpTruncateObject,
	OpBeginEditObject, OpEndEditObject,
}

// Event codes.
const (
	EventObjectAdded       uint16 = 0x4002
	EventObjectRemoved     uint16 = 0x4003
	EventStoreAdded        uint16 = 0x4004
	EventStoreRemoved      uint16 = 0x4005
	EventDevicePropChanged uint16 = 0x4006
	EventStoreFull         uint16 = 0x400A
)

// SupportedEvents is the array reported by GetDeviceInfo.
var SupportedEvents = []uint16{
	EventObjectAdded, EventObjectRemoved,
	EventStoreAdded, EventStoreRemoved,
	EventDevicePropChanged, EventStoreFull,
}

// ResponseCode is the 16-bit code returned in a Response container.
type ResponseCode uint16

// Response codes (spec §6).
const (
	RC_OK                       ResponseCode = 0x2001
	RC_GeneralError             ResponseCode = 0x2002
	RC_SessionNotOpen           ResponseCode = 0x2003
	RC_InvalidTransactionID     ResponseCode = 0x2004
	RC_OperationNotSupported    ResponseCode = 0x2005
	RC_ParameterNotSupported    ResponseCode = 0x2006
	RC_IncompleteTransfer       ResponseCode = 0x2007
	RC_InvalidStorageID         ResponseCode = 0x2008
	RC_InvalidObjectHandle      ResponseCode = 0x2009
	RC_DevicePropNotSupported   ResponseCode = 0x200A
	RC_StorageFull              ResponseCode = 0x200C
	RC_ObjectTooLarge           ResponseCode = 0x200D
	RC_InvalidParentObject      ResponseCode = 0x201A
	RC_DeviceBusy               ResponseCode = 0x2019
	RC_SessionAlreadyOpen       ResponseCode = 0x201E
	RC_TransactionCancelled     ResponseCode = 0x201F
	RC_ObjectPropNotSupported   ResponseCode = 0xA80A
	RC_SpecByGroupUnsupported   ResponseCode = 0xA80D
	RC_SpecByDepthUnsupported   ResponseCode = 0xA80E
)

var responseCodeNames = map[ResponseCode]string{
	RC_OK:                     "OK",
	RC_GeneralError:           "GENERAL_ERROR",
	RC_SessionNotOpen:         "SESSION_NOT_OPEN",
	RC_InvalidTransactionID:   "INVALID_TRANSACTION_ID",
	RC_OperationNotSupported:  "OPERATION_NOT_SUPPORTED",
	RC_ParameterNotSupported:  "PARAMETER_NOT_SUPPORTED",
	RC_IncompleteTransfer:     "INCOMPLETE_TRANSFER",
	RC_InvalidStorageID:       "INVALID_STORAGE_ID",
	RC_InvalidObjectHandle:    "INVALID_OBJECT_HANDLE",
	RC_DevicePropNotSupported: "DEVICE_PROP_NOT_SUPPORTED",
	RC_StorageFull:            "STORAGE_FULL",
	RC_ObjectTooLarge:         "OBJECT_TOO_LARGE",
	RC_InvalidParentObject:    "INVALID_PARENT_OBJECT",
	RC_DeviceBusy:             "DEVICE_BUSY",
	RC_SessionAlreadyOpen:     "SESSION_ALREADY_OPEN",
	RC_TransactionCancelled:   "TRANSACTION_CANCELLED",
	RC_ObjectPropNotSupported: "OBJECT_PROP_NOT_SUPPORTED",
	RC_SpecByGroupUnsupported: "SPECIFICATION_BY_GROUP_UNSUPPORTED",
	RC_SpecByDepthUnsupported: "SPECIFICATION_BY_DEPTH_UNSUPPORTED",
}

// String returns the symbolic name of the response code.
func (c ResponseCode) String() string {
	if name, ok := responseCodeNames[c]; ok {
		return name
	}
	return "UNKNOWN"
}

// Object format codes (a subset; spec §4.B format inference table).
const (
	FormatUndefined   uint16 = 0x3000
	FormatAssociation uint16 = 0x3001
	FormatText        uint16 = 0x3004
	FormatWAV         uint16 = 0x3008
	FormatMP3         uint16 = 0x3009
	FormatEXIF_JPEG   uint16 = 0x3801
	FormatTIFF        uint16 = 0x380D
	FormatGIF         uint16 = 0x3807
	FormatPNG         uint16 = 0x380B
	FormatWMA         uint16 = 0xB901
	FormatOGG         uint16 = 0xB902
	FormatAAC         uint16 = 0xB903
	FormatFLAC        uint16 = 0xB906
)

// AssociationGenericFolder is the ASSOCIATION_TYPE value for folders.
const AssociationGenericFolder uint16 = 0x0001

// Object property codes (spec §4.B property table).
const (
	PropStorageID        uint16 = 0xDC01
	PropObjectFormat     uint16 = 0xDC02
	PropProtectionStatus uint16 = 0xDC03
	PropObjectSize       uint16 = 0xDC04
	PropAssociationType  uint16 = 0xDC05
	PropAssociationDesc  uint16 = 0xDC06
	PropObjectFileName   uint16 = 0xDC07
	PropDateCreated      uint16 = 0xDC08
	PropDateModified     uint16 = 0xDC09
	PropParentObject     uint16 = 0xDC0B
	PropHidden           uint16 = 0xDC0D
	PropPersistentUID    uint16 = 0xDC41
	PropDisplayName      uint16 = 0xDC44
	PropNonConsumable    uint16 = 0xDC8C
)

// PropAllParam is the 32-bit GetObjectPropList parameter value requesting
// every standard property for each handle (spec §4.B).
const PropAllParam uint32 = 0xFFFFFFFF

// Device property codes (supplemented from original_source, §7).
const (
	DevicePropFriendlyName           uint16 = 0xD402
	DevicePropSessionInitiatorInfo   uint16 = 0xD406
)

// WireType identifies the on-the-wire encoding of a value.
type WireType uint8

// Wire types used by object properties and GetObjectPropList.
const (
	WireUint8 WireType = iota
	WireUint16
	WireUint32
	WireUint64
	WireUint128
	WireString
)

// DataTypeCode is the MTP "datatype" code carried in GetObjectPropList
// entries, distinct from WireType (which only this codec needs).
const (
	DataTypeUint8   uint16 = 0x0002
	DataTypeUint16  uint16 = 0x0004
	DataTypeUint32  uint16 = 0x0006
	DataTypeUint64  uint16 = 0x0008
	DataTypeUint128 uint16 = 0x000A
	DataTypeString  uint16 = 0xFFFF
)

// DataTypeFor maps a WireType to its MTP datatype code.
func DataTypeFor(w WireType) uint16 {
	switch w {
	case WireUint8:
		return DataTypeUint8
	case WireUint16:
		return DataTypeUint16
	case WireUint32:
		return DataTypeUint32
	case WireUint64:
		return DataTypeUint64
	case WireUint128:
		return DataTypeUint128
	case WireString:
		return DataTypeString
	default:
		return DataTypeUint32
	}
}

// Storage type codes (external storage descriptor, spec §3).
const (
	StorageTypeUndefined      uint16 = 0x0000
	StorageTypeFixedROM       uint16 = 0x0001
	StorageTypeRemovableROM   uint16 = 0x0002
	StorageTypeFixedRAM       uint16 = 0x0003
	StorageTypeRemovableRAM   uint16 = 0x0004
)

// Storage filesystem type codes.
const (
	FSTypeUndefined         uint16 = 0x0000
	FSTypeGenericFlat       uint16 = 0x0001
	FSTypeGenericHierarchical uint16 = 0x0002
)

// Storage access capability codes.
const (
	AccessReadWrite                  uint16 = 0x0000
	AccessReadOnlyWithoutDelete      uint16 = 0x0001
	AccessReadOnlyWithDelete         uint16 = 0x0002
)
