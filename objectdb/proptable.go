package objectdb

import (
	"github.com/ardnew/mtpresponder/mtp"
)

// PropInfo describes one entry of the standard object property table
// (spec §4.B): its wire type and whether SetObjectPropValue accepts it.
type PropInfo struct {
	Code      uint16
	Type      mtp.WireType
	Writable  bool
}

// StandardProperties is the full standard property table, in the order
// GetObjectPropsSupported and GetObjectPropList's "all properties" query
// report them. Its length is the authoritative "all properties" count
// multiplier — not a hardcoded constant — since the table is the single
// source of truth for what "all" means.
var StandardProperties = []PropInfo{
	{mtp.PropStorageID, mtp.WireUint32, false},
	{mtp.PropParentObject, mtp.WireUint32, true},
	{mtp.PropObjectFormat, mtp.WireUint16, false},
	{mtp.PropObjectSize, mtp.WireUint32, false},
	{mtp.PropObjectFileName, mtp.WireString, true},
	{mtp.PropDisplayName, mtp.WireString, false},
	{mtp.PropPersistentUID, mtp.WireUint128, false},
	{mtp.PropAssociationType, mtp.WireUint16, false},
	{mtp.PropAssociationDesc, mtp.WireUint32, false},
	{mtp.PropProtectionStatus, mtp.WireUint16, false},
	{mtp.PropDateCreated, mtp.WireString, false},
	{mtp.PropDateModified, mtp.WireString, false},
	{mtp.PropHidden, mtp.WireUint16, false},
	{mtp.PropNonConsumable, mtp.WireUint16, false},
}

// propIndex maps a property code to its StandardProperties index for
// O(1) lookup.
var propIndex = func() map[uint16]int {
	m := make(map[uint16]int, len(StandardProperties))
	for i, p := range StandardProperties {
		m[p.Code] = i
	}
	return m
}()

// LookupProperty returns the PropInfo for code, or false if code is not a
// recognized standard property.
func LookupProperty(code uint16) (PropInfo, bool) {
	i, ok := propIndex[code]
	if !ok {
		return PropInfo{}, false
	}
	return StandardProperties[i], true
}

// SupportedObjectProperties returns the property codes GetObjectPropsSupported
// answers with, in table order.
func SupportedObjectProperties() []uint16 {
	codes := make([]uint16, len(StandardProperties))
	for i, p := range StandardProperties {
		codes[i] = p.Code
	}
	return codes
}

// PropValue is a typed property value, tagged by its WireType so callers
// can encode it without a type switch on the Go value itself.
type PropValue struct {
	Type   mtp.WireType
	U16    uint16
	U32    uint32
	U128   mtp.UID128
	String string
}

func u16Value(v uint16) PropValue  { return PropValue{Type: mtp.WireUint16, U16: v} }
func u32Value(v uint32) PropValue  { return PropValue{Type: mtp.WireUint32, U32: v} }
func strValue(v string) PropValue  { return PropValue{Type: mtp.WireString, String: v} }
func u128Value(v mtp.UID128) PropValue {
	return PropValue{Type: mtp.WireUint128, U128: v}
}
