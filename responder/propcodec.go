package responder

import (
	"github.com/ardnew/mtpresponder/mtp"
	"github.com/ardnew/mtpresponder/objectdb"
	"github.com/ardnew/mtpresponder/pkg"
)

// writePropValue appends a typed property value to the codec's Data
// payload, dispatching on the value's wire type so callers never need a
// type switch of their own (SPEC_FULL.md §6.A).
func writePropValue(c *mtp.Codec, v objectdb.PropValue) error {
	switch v.Type {
	case mtp.WireUint16:
		return c.AppendU16(v.U16)
	case mtp.WireUint32:
		return c.AppendU32(v.U32)
	case mtp.WireUint128:
		return c.AppendU128(v.U128)
	case mtp.WireString:
		return c.AppendString(v.String)
	default:
		return c.AppendU32(v.U32)
	}
}

// readPropValue reads a typed property value from the codec's Data
// payload according to t, for SetObjectPropValue's Data-in.
func readPropValue(c *mtp.Codec, t mtp.WireType) (objectdb.PropValue, error) {
	switch t {
	case mtp.WireUint16:
		v, err := c.ReadU16()
		return objectdb.PropValue{Type: t, U16: v}, err
	case mtp.WireUint32:
		v, err := c.ReadU32()
		return objectdb.PropValue{Type: t, U32: v}, err
	case mtp.WireString:
		v, err := c.ReadString()
		return objectdb.PropValue{Type: t, String: v}, err
	default:
		return objectdb.PropValue{}, pkg.ErrNotSupported
	}
}

// writeZeroValue appends the zero value of wire type t, used as the
// factory-default field of an ObjectPropDesc response.
func writeZeroValue(c *mtp.Codec, t mtp.WireType) {
	switch t {
	case mtp.WireUint16:
		c.AppendU16(0)
	case mtp.WireUint32:
		c.AppendU32(0)
	case mtp.WireUint128:
		c.AppendU128(mtp.UID128{})
	case mtp.WireString:
		c.AppendString("")
	default:
		c.AppendU32(0)
	}
}
