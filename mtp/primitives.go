package mtp

import "encoding/binary"

// UID128 is a 128-bit identifier, encoded on the wire as four
// little-endian u32 words (spec §4.A).
type UID128 struct {
	Lo uint64
	Hi uint64
}

// UID128FromHandle zero-extends a 32-bit handle into a 128-bit
// PERSISTENT_UID value (spec §4.B property table).
func UID128FromHandle(h ObjectHandle) UID128 {
	return UID128{Lo: uint64(h), Hi: 0}
}

// EncodeU8 writes v to buf[0]. Panics if buf is too short; callers size
// their buffers up front the way the teacher's MarshalTo helpers do.
func EncodeU8(buf []byte, v uint8) int {
	buf[0] = v
	return 1
}

// DecodeU8 reads a uint8 from buf[0].
func DecodeU8(buf []byte) uint8 {
	return buf[0]
}

// EncodeU16 writes a little-endian uint16 to buf.
func EncodeU16(buf []byte, v uint16) int {
	binary.LittleEndian.PutUint16(buf, v)
	return 2
}

// DecodeU16 reads a little-endian uint16 from buf.
func DecodeU16(buf []byte) uint16 {
	return binary.LittleEndian.Uint16(buf)
}

// EncodeU32 writes a little-endian uint32 to buf.
func EncodeU32(buf []byte, v uint32) int {
	binary.LittleEndian.PutUint32(buf, v)
	return 4
}

// DecodeU32 reads a little-endian uint32 from buf.
func DecodeU32(buf []byte) uint32 {
	return binary.LittleEndian.Uint32(buf)
}

// EncodeU64 writes a little-endian uint64 to buf.
func EncodeU64(buf []byte, v uint64) int {
	binary.LittleEndian.PutUint64(buf, v)
	return 8
}

// DecodeU64 reads a little-endian uint64 from buf.
func DecodeU64(buf []byte) uint64 {
	return binary.LittleEndian.Uint64(buf)
}

// EncodeU128 writes four little-endian u32 words: Lo low half, Lo high
// half, Hi low half, Hi high half.
func EncodeU128(buf []byte, v UID128) int {
	binary.LittleEndian.PutUint32(buf[0:4], uint32(v.Lo))
	binary.LittleEndian.PutUint32(buf[4:8], uint32(v.Lo>>32))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(v.Hi))
	binary.LittleEndian.PutUint32(buf[12:16], uint32(v.Hi>>32))
	return 16
}

// DecodeU128 reads a UID128 written by EncodeU128.
func DecodeU128(buf []byte) UID128 {
	lo := uint64(binary.LittleEndian.Uint32(buf[0:4])) | uint64(binary.LittleEndian.Uint32(buf[4:8]))<<32
	hi := uint64(binary.LittleEndian.Uint32(buf[8:12])) | uint64(binary.LittleEndian.Uint32(buf[12:16]))<<32
	return UID128{Lo: lo, Hi: hi}
}

// StringWireLen returns the number of bytes a UTF-16 string occupies on
// the wire, including its one-byte unit count.
func StringWireLen(s string) int {
	if s == "" {
		return 1
	}
	units := utf16Len(s)
	return 1 + (units+1)*2
}

// EncodeString writes s as a length-prefixed UTF-16 string: a u8 count of
// code units including the trailing NUL, followed by that many u16 code
// units. An empty string is a single 0x00 byte with no units (spec §4.A).
func EncodeString(buf []byte, s string) int {
	if s == "" {
		buf[0] = 0
		return 1
	}
	units := utf16Encode(s)
	n := len(units) + 1 // + trailing NUL
	buf[0] = uint8(n)
	off := 1
	for _, u := range units {
		binary.LittleEndian.PutUint16(buf[off:off+2], u)
		off += 2
	}
	binary.LittleEndian.PutUint16(buf[off:off+2], 0)
	off += 2
	return off
}

// DecodeString reads a length-prefixed UTF-16 string written by
// EncodeString. Returns the decoded string (without its trailing NUL)
// and the number of bytes consumed.
func DecodeString(buf []byte) (string, int, bool) {
	if len(buf) < 1 {
		return "", 0, false
	}
	count := int(buf[0])
	if count == 0 {
		return "", 1, true
	}
	need := 1 + count*2
	if len(buf) < need {
		return "", 0, false
	}
	units := make([]uint16, count)
	off := 1
	for i := 0; i < count; i++ {
		units[i] = binary.LittleEndian.Uint16(buf[off : off+2])
		off += 2
	}
	// Drop the trailing NUL code unit before decoding.
	if units[len(units)-1] == 0 {
		units = units[:len(units)-1]
	}
	return utf16Decode(units), need, true
}

// EncodeU16Array writes a u32 count followed by that many little-endian
// u16 elements.
func EncodeU16Array(buf []byte, vals []uint16) int {
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(vals)))
	off := 4
	for _, v := range vals {
		binary.LittleEndian.PutUint16(buf[off:off+2], v)
		off += 2
	}
	return off
}

// EncodeU32Array writes a u32 count followed by that many little-endian
// u32 elements.
func EncodeU32Array(buf []byte, vals []uint32) int {
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(vals)))
	off := 4
	for _, v := range vals {
		binary.LittleEndian.PutUint32(buf[off:off+4], v)
		off += 4
	}
	return off
}

// DecodeU32Array reads a u32 count followed by that many little-endian
// u32 elements.
func DecodeU32Array(buf []byte) ([]uint32, int, bool) {
	if len(buf) < 4 {
		return nil, 0, false
	}
	count := binary.LittleEndian.Uint32(buf[0:4])
	need := 4 + int(count)*4
	if len(buf) < need {
		return nil, 0, false
	}
	vals := make([]uint32, count)
	off := 4
	for i := range vals {
		vals[i] = binary.LittleEndian.Uint32(buf[off : off+4])
		off += 4
	}
	return vals, need, true
}

// utf16Len returns the number of UTF-16 code units s encodes to.
func utf16Len(s string) int {
	return len(utf16Encode(s))
}
