// Package mtp implements the wire codec for the Media Transfer Protocol:
// container framing, primitive encode/decode, and the operation,
// response, event, format, and property code tables the rest of the
// responder dispatches on.
//
// # Container framing
//
// Every container is a 12-byte little-endian header — length, type,
// code, transaction id — followed by a type-dependent payload:
//
//	type Header struct {
//	    Length      uint32
//	    Type        ContainerType
//	    Code        uint16
//	    Transaction uint32
//	}
//
// Command, Response, and Event containers carry up to five u32
// parameters; Data containers carry a typed payload specific to the
// operation. [Codec] owns two reusable buffers sized for the maximum
// bulk packet (16 KiB data, 512 B command/response/event) and exposes
// sequential typed readers ([Codec.ReadU8], [Codec.ReadString], ...) and
// writers ([Codec.AppendU8], [Codec.AppendString], ...) over them, so
// callers never touch a raw byte slice.
//
// # Primitives
//
// [EncodeU8]/[DecodeU8] through [EncodeU128]/[DecodeU128] handle fixed-
// width integers; [EncodeString]/[DecodeString] handle the length-
// prefixed UTF-16 string encoding (a u8 unit count including the
// trailing NUL, or a single 0x00 byte for the empty string);
// [EncodeU32Array]/[DecodeU32Array] handle u32-prefixed arrays. Every
// primitive round-trips: decode(encode(v)) == v.
package mtp
