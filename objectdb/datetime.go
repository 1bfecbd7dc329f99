package objectdb

import (
	"strings"
	"time"
)

const dateWireLayout = "20060102T150405"

// FormatDateTime renders t in the MTP wire date-time shape
// "YYYYMMDDThhmmss".
func FormatDateTime(t time.Time) string {
	return t.UTC().Format(dateWireLayout)
}

// ParseDateTime parses an MTP wire date-time string, tolerating a
// missing "T" separator the way the original responder's parser does.
func ParseDateTime(s string) (time.Time, bool) {
	if !strings.Contains(s, "T") && len(s) == 14 {
		s = s[:8] + "T" + s[8:]
	}
	t, err := time.ParseInLocation(dateWireLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
