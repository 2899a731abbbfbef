package codec

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Format is an on-disk encoding.
type Format int

const (
	FormatText Format = iota
	FormatBinary
)

// File extensions for each format.
const (
	TextExt   = ".osh"
	BinaryExt = ".bosh"
)

func (f Format) String() string {
	switch f {
	case FormatText:
		return "text"
	case FormatBinary:
		return "binary"
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// Ext returns the file extension used for f.
func (f Format) Ext() string {
	if f == FormatBinary {
		return BinaryExt
	}
	return TextExt
}

// ParseFormat accepts "text" or "binary".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "text", "osh":
		return FormatText, nil
	case "binary", "bosh":
		return FormatBinary, nil
	}
	return 0, fmt.Errorf("unknown format %q (want text or binary)", s)
}

// FormatForPath picks the format from the file extension. Anything that is
// not .bosh is read as text.
func FormatForPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), BinaryExt) {
		return FormatBinary
	}
	return FormatText
}
