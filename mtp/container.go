package mtp

import (
	"context"

	"github.com/ardnew/mtpresponder/pkg"
)

// Header is the fixed 12-byte prefix of every MTP container.
type Header struct {
	Length      uint32
	Type        ContainerType
	Code        uint16
	Transaction uint32
}

// MarshalTo writes the header to buf[0:12].
func (h Header) MarshalTo(buf []byte) int {
	EncodeU32(buf[0:4], h.Length)
	EncodeU16(buf[4:6], uint16(h.Type))
	EncodeU16(buf[6:8], h.Code)
	EncodeU32(buf[8:12], h.Transaction)
	return HeaderSize
}

// ParseHeader reads a header from buf. Returns false if buf is shorter
// than HeaderSize.
func ParseHeader(buf []byte) (Header, bool) {
	if len(buf) < HeaderSize {
		return Header{}, false
	}
	return Header{
		Length:      DecodeU32(buf[0:4]),
		Type:        ContainerType(DecodeU16(buf[4:6])),
		Code:        DecodeU16(buf[6:8]),
		Transaction: DecodeU32(buf[8:12]),
	}, true
}

// Request is a parsed Command container: an operation code, a
// transaction id, and up to five u32 parameters. Parameters beyond those
// actually received read as zero, matching the wire's practice of
// omitting unset trailing parameters.
type Request struct {
	Code        uint16
	Transaction uint32
	Params      [MaxParams]uint32
	NumParams   int
}

// Param returns the i'th parameter (0-indexed), or 0 if not present.
func (r *Request) Param(i int) uint32 {
	if i < 0 || i >= r.NumParams {
		return 0
	}
	return r.Params[i]
}

// Codec owns the two reusable buffers the engine uses to read and write
// containers, sized for the maximum bulk packet (spec §4.A). It is not
// safe for concurrent use; the transaction engine serializes all access.
type Codec struct {
	cmdBuf  [MaxCommandSize]byte
	dataBuf [MaxDataSize]byte

	// readOff/writeOff track the cursor into dataBuf for sequential typed
	// reads (ReadU8...ReadString) and writes (AppendU8...AppendString)
	// within the current Data container.
	readOff  int
	readLen  int
	writeOff int
}

// NewCodec creates a Codec with its buffers zero-initialized.
func NewCodec() *Codec {
	return &Codec{}
}

// ReadRequest reads one Command container's header and parameters from
// transport. Returns pkg.ErrCodecTruncated if fewer than HeaderSize bytes
// arrived.
func (c *Codec) ReadRequest(ctx context.Context, t Transport) (Request, error) {
	n, err := t.Read(ctx, c.cmdBuf[:])
	if err != nil {
		return Request{}, err
	}
	if n < HeaderSize {
		return Request{}, pkg.ErrCodecTruncated
	}
	hdr, ok := ParseHeader(c.cmdBuf[:n])
	if !ok {
		return Request{}, pkg.ErrCodecTruncated
	}

	req := Request{Code: hdr.Code, Transaction: hdr.Transaction}
	avail := n - HeaderSize
	nParams := avail / 4
	if nParams > MaxParams {
		nParams = MaxParams
	}
	for i := 0; i < nParams; i++ {
		off := HeaderSize + i*4
		req.Params[i] = DecodeU32(c.cmdBuf[off : off+4])
	}
	req.NumParams = nParams

	pkg.LogDebug(pkg.ComponentCodec, "request parsed",
		"op", OpNames[hdr.Code], "code", hdr.Code, "tx", hdr.Transaction, "params", nParams)

	return req, nil
}

// ReadData reads a Data container into the internal buffer and resets
// the read cursor past its header, ready for typed ReadU8.../ReadString
// calls. It performs a single transport read of at most MaxDataSize
// bytes.
func (c *Codec) ReadData(ctx context.Context, t Transport) error {
	n, err := t.Read(ctx, c.dataBuf[:])
	if err != nil {
		return err
	}
	if n < HeaderSize {
		return pkg.ErrCodecTruncated
	}
	c.readOff = HeaderSize
	c.readLen = n
	return nil
}

// Remaining reports how many unread bytes are left in the current Data
// container payload.
func (c *Codec) Remaining() int {
	return c.readLen - c.readOff
}

func (c *Codec) need(n int) error {
	if c.readOff+n > c.readLen {
		return pkg.ErrCodecOverrun
	}
	return nil
}

// ReadU8 reads the next byte of the Data payload.
func (c *Codec) ReadU8() (uint8, error) {
	if err := c.need(1); err != nil {
		return 0, err
	}
	v := DecodeU8(c.dataBuf[c.readOff:])
	c.readOff++
	return v, nil
}

// ReadU16 reads the next little-endian uint16 of the Data payload.
func (c *Codec) ReadU16() (uint16, error) {
	if err := c.need(2); err != nil {
		return 0, err
	}
	v := DecodeU16(c.dataBuf[c.readOff:])
	c.readOff += 2
	return v, nil
}

// ReadU32 reads the next little-endian uint32 of the Data payload.
func (c *Codec) ReadU32() (uint32, error) {
	if err := c.need(4); err != nil {
		return 0, err
	}
	v := DecodeU32(c.dataBuf[c.readOff:])
	c.readOff += 4
	return v, nil
}

// ReadU64 reads the next little-endian uint64 of the Data payload.
func (c *Codec) ReadU64() (uint64, error) {
	if err := c.need(8); err != nil {
		return 0, err
	}
	v := DecodeU64(c.dataBuf[c.readOff:])
	c.readOff += 8
	return v, nil
}

// ReadString reads the next length-prefixed UTF-16 string of the Data
// payload.
func (c *Codec) ReadString() (string, error) {
	s, n, ok := DecodeString(c.dataBuf[c.readOff:c.readLen])
	if !ok {
		return "", pkg.ErrCodecOverrun
	}
	c.readOff += n
	return s, nil
}

// BeginWrite resets the write cursor past the Data header, ready for
// AppendU8.../AppendString calls.
func (c *Codec) BeginWrite() {
	c.writeOff = HeaderSize
}

// Written reports how many payload bytes have been appended since the
// last BeginWrite.
func (c *Codec) Written() int {
	return c.writeOff - HeaderSize
}

func (c *Codec) ensure(n int) error {
	if c.writeOff+n > len(c.dataBuf) {
		return pkg.ErrCodecShortWrite
	}
	return nil
}

// AppendU8 appends a byte to the Data payload.
func (c *Codec) AppendU8(v uint8) error {
	if err := c.ensure(1); err != nil {
		return err
	}
	c.writeOff += EncodeU8(c.dataBuf[c.writeOff:], v)
	return nil
}

// AppendU16 appends a little-endian uint16 to the Data payload.
func (c *Codec) AppendU16(v uint16) error {
	if err := c.ensure(2); err != nil {
		return err
	}
	c.writeOff += EncodeU16(c.dataBuf[c.writeOff:], v)
	return nil
}

// AppendU32 appends a little-endian uint32 to the Data payload.
func (c *Codec) AppendU32(v uint32) error {
	if err := c.ensure(4); err != nil {
		return err
	}
	c.writeOff += EncodeU32(c.dataBuf[c.writeOff:], v)
	return nil
}

// AppendU64 appends a little-endian uint64 to the Data payload.
func (c *Codec) AppendU64(v uint64) error {
	if err := c.ensure(8); err != nil {
		return err
	}
	c.writeOff += EncodeU64(c.dataBuf[c.writeOff:], v)
	return nil
}

// AppendU128 appends a 128-bit value to the Data payload.
func (c *Codec) AppendU128(v UID128) error {
	if err := c.ensure(16); err != nil {
		return err
	}
	c.writeOff += EncodeU128(c.dataBuf[c.writeOff:], v)
	return nil
}

// AppendString appends a length-prefixed UTF-16 string to the Data
// payload.
func (c *Codec) AppendString(s string) error {
	if err := c.ensure(StringWireLen(s)); err != nil {
		return err
	}
	c.writeOff += EncodeString(c.dataBuf[c.writeOff:], s)
	return nil
}

// AppendU16Array appends a u32 count followed by uint16 elements.
func (c *Codec) AppendU16Array(vals []uint16) error {
	if err := c.ensure(4 + 2*len(vals)); err != nil {
		return err
	}
	c.writeOff += EncodeU16Array(c.dataBuf[c.writeOff:], vals)
	return nil
}

// AppendU32Array appends a u32 count followed by uint32 elements.
func (c *Codec) AppendU32Array(vals []uint32) error {
	if err := c.ensure(4 + 4*len(vals)); err != nil {
		return err
	}
	c.writeOff += EncodeU32Array(c.dataBuf[c.writeOff:], vals)
	return nil
}

// DataBytes returns the raw payload bytes appended since BeginWrite, for
// tests and for handlers that need to inspect what they built.
func (c *Codec) DataBytes() []byte {
	return c.dataBuf[HeaderSize:c.writeOff]
}

// WriteData stamps a Data header over the bytes appended since
// BeginWrite and writes the full container to transport.
func (c *Codec) WriteData(ctx context.Context, t Transport, op uint16, tx uint32) error {
	hdr := Header{Length: uint32(c.writeOff), Type: ContainerTypeData, Code: op, Transaction: tx}
	hdr.MarshalTo(c.dataBuf[:HeaderSize])
	_, err := t.Write(ctx, c.dataBuf[:c.writeOff])
	return err
}

// WriteResponse writes a Response container with up to five parameters.
func (c *Codec) WriteResponse(ctx context.Context, t Transport, code ResponseCode, tx uint32, params ...uint32) error {
	if len(params) > MaxParams {
		params = params[:MaxParams]
	}
	length := HeaderSize + len(params)*4
	hdr := Header{Length: uint32(length), Type: ContainerTypeResponse, Code: uint16(code), Transaction: tx}
	hdr.MarshalTo(c.cmdBuf[:HeaderSize])
	off := HeaderSize
	for _, p := range params {
		EncodeU32(c.cmdBuf[off:off+4], p)
		off += 4
	}
	pkg.LogDebug(pkg.ComponentCodec, "response written", "code", code.String(), "tx", tx)
	_, err := t.Write(ctx, c.cmdBuf[:length])
	return err
}

// WriteEvent writes an Event container with up to MaxParams parameters
// (spec §5: events reuse the last-seen transaction id).
func (c *Codec) WriteEvent(ctx context.Context, t Transport, code uint16, tx uint32, params ...uint32) error {
	if len(params) > MaxParams {
		params = params[:MaxParams]
	}
	length := HeaderSize + len(params)*4
	hdr := Header{Length: uint32(length), Type: ContainerTypeEvent, Code: code, Transaction: tx}
	hdr.MarshalTo(c.cmdBuf[:HeaderSize])
	off := HeaderSize
	for _, p := range params {
		EncodeU32(c.cmdBuf[off:off+4], p)
		off += 4
	}
	_, err := t.SendEvent(ctx, c.cmdBuf[:length])
	return err
}
