package objectdb

import (
	"github.com/ardnew/mtpresponder/mtp"
	"github.com/ardnew/mtpresponder/pkg"
)

// PropListEntry is one (handle, prop, value) row of a GetObjectPropList
// response.
type PropListEntry struct {
	Handle mtp.ObjectHandle
	Prop   uint16
	Value  PropValue
}

// GetPropList builds the rows for GetObjectPropList(h, format, prop,
// group, depth) per spec §4.B:
//   - depth 0: the single object h.
//   - depth 1: h's immediate children (subject to the format filter).
//   - depth > 1: pkg.ErrSpecByDepthUnsupported.
//   - group != 0: pkg.ErrSpecByGroupUnsupported (checked before depth).
//   - prop == 0 && group == 0: pkg.ErrParameterNotSupported.
//   - prop == mtp.PropAllParam: every standard property is emitted per handle.
func (d *Database) GetPropList(h mtp.ObjectHandle, format uint16, prop uint32, group uint32, depth uint32) ([]PropListEntry, error) {
	if group != 0 {
		pkg.LogDebug(pkg.ComponentDatabase, "GetObjectPropList group unsupported", "group", group)
		return nil, pkg.ErrSpecByGroupUnsupported
	}
	if depth > 1 {
		return nil, pkg.ErrSpecByDepthUnsupported
	}
	if prop == 0 {
		return nil, pkg.ErrParameterNotSupported
	}

	var handles []mtp.ObjectHandle
	if depth == 0 {
		if !d.IsValid(h) {
			return nil, pkg.ErrInvalidObjectHandle
		}
		handles = []mtp.ObjectHandle{h}
	} else {
		r, ok := d.Get(h)
		if !ok {
			return nil, pkg.ErrInvalidObjectHandle
		}
		handles = d.List(r.Storage, format, h)
	}

	var props []uint16
	if prop == mtp.PropAllParam {
		props = SupportedObjectProperties()
	} else {
		props = []uint16{uint16(prop)}
	}

	entries := make([]PropListEntry, 0, len(handles)*len(props))
	for _, handle := range handles {
		for _, p := range props {
			v, ok := d.GetProp(handle, p)
			if !ok {
				continue
			}
			entries = append(entries, PropListEntry{Handle: handle, Prop: p, Value: v})
		}
	}
	return entries, nil
}
