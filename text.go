package dirfile

import (
	"encoding/binary"

	"golang.org/x/text/encoding/charmap"
)

// decodeMacString decodes a Pascal-string payload (no length byte, caller
// already sliced it) using the Mac script code recorded alongside it.
// Script code 0 (Roman) is decoded via golang.org/x/text's Macintosh
// charmap. Non-Roman script codes (Japanese, Chinese,
// Cyrillic, ...) are not implemented; their bytes are passed through unchanged rather
// than mojibake-decoded as Roman, since a wrong guess is worse than raw
// bytes for a filename nobody asked to render.
func decodeMacString(b []byte, scriptCode byte) string {
	if scriptCode != 0 {
		return string(b)
	}
	out, err := charmap.Macintosh.NewDecoder().Bytes(b)
	if err != nil {
		return string(b)
	}
	return string(out)
}

// DecodeStringList decodes a Mac "STR#" resource's payload: a big-endian
// u16 count followed by that many length-prefixed Pascal strings.
func DecodeStringList(data []byte) ([]string, error) {
	if len(data) < 2 {
		return nil, ErrFileTooSmall
	}
	count := binary.BigEndian.Uint16(data[0:2])
	pos := 2
	out := make([]string, 0, count)
	for i := uint16(0); i < count; i++ {
		if pos >= len(data) {
			return nil, ErrFileTooSmall
		}
		n := int(data[pos])
		pos++
		if pos+n > len(data) {
			return nil, ErrFileTooSmall
		}
		out = append(out, decodeMacString(data[pos:pos+n], 0))
		pos += n
	}
	return out, nil
}
