package mtp

import "unicode/utf16"

// utf16Encode converts a Go string to UTF-16 code units (no trailing NUL).
func utf16Encode(s string) []uint16 {
	return utf16.Encode([]rune(s))
}

// utf16Decode converts UTF-16 code units (no trailing NUL) to a Go string.
func utf16Decode(units []uint16) string {
	return string(utf16.Decode(units))
}
