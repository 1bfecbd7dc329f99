package objectdb

import (
	"path/filepath"
	"strings"

	"github.com/ardnew/mtpresponder/mtp"
)

// extensionFormats maps a lowercase file extension (including the dot)
// to its MTP object format code.
var extensionFormats = map[string]uint16{
	".gif":  mtp.FormatGIF,
	".png":  mtp.FormatPNG,
	".jpeg": mtp.FormatEXIF_JPEG,
	".jpg":  mtp.FormatEXIF_JPEG,
	".tiff": mtp.FormatTIFF,
	".tif":  mtp.FormatTIFF,
	".ogg":  mtp.FormatOGG,
	".mp3":  mtp.FormatMP3,
	".wav":  mtp.FormatWAV,
	".wma":  mtp.FormatWMA,
	".aac":  mtp.FormatAAC,
	".flac": mtp.FormatFLAC,
	".txt":  mtp.FormatText,
}

// guessFormat infers an object's MTP format from its filename extension,
// trying the extension as given and then case-folded before giving up
// (mirrors the original responder's as-is-then-retry lookup).
func guessFormat(name string) uint16 {
	ext := filepath.Ext(name)
	if ext == "" {
		return mtp.FormatUndefined
	}
	if f, ok := extensionFormats[ext]; ok {
		return f
	}
	if f, ok := extensionFormats[strings.ToLower(ext)]; ok {
		return f
	}
	return mtp.FormatUndefined
}
