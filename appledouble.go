package dirfile

import (
	"encoding/binary"
	"io"
	"os"
)

const (
	appleDoubleMagic = 0x00051607
	appleSingleMagic = 0x00051600
)

// AppleDouble decodes an AppleSingle or AppleDouble envelope per
// SPEC_FULL.md §4.3: a directory of (id, offset, length) entries, of which
// id 1 is the data fork, id 2 the resource fork, id 3 the real filename, and
// id 9 Finder info (byte 26 of which is the filename script code).
type AppleDouble struct {
	Name         string
	dataFork     *SharedStream
	resourceFork *SharedStream
}

// DataFork returns the decoded data fork, if the directory named one.
func (a *AppleDouble) DataFork() *SharedStream { return a.dataFork }

// ResourceFork returns the decoded resource fork. A successfully parsed
// AppleDouble/AppleSingle always has one; its absence is a parse error.
func (a *AppleDouble) ResourceFork() *SharedStream { return a.resourceFork }

// OpenAppleDouble parses an AppleSingle/AppleDouble envelope. sidecar, when
// non-nil, is the separate resource/metadata file (the ".rsrc"/"%"-prefixed
// sidecar or native resource fork); plain is the corresponding plain data
// file. Exactly one of the two must be non-nil for AppleSingle, where a
// single file carries both forks inline; both must be given for AppleDouble,
// where the sidecar carries the resource fork and Finder info and the plain
// file is the data fork unless the sidecar's own directory names one.
func OpenAppleDouble(plain, sidecar io.ReadSeeker) (*AppleDouble, error) {
	primary := sidecar
	if primary == nil {
		primary = plain
	}

	var header [8]byte
	if _, err := io.ReadFull(primary, header[:]); err != nil {
		return nil, ErrFileTooSmall
	}

	magic := binary.BigEndian.Uint32(header[0:4])
	if magic != appleDoubleMagic && magic != appleSingleMagic {
		return nil, ErrBadMagic
	}
	version := binary.BigEndian.Uint32(header[4:8])
	if version != 0x00010000 && version != 0x00020000 {
		return nil, ErrInvariant
	}

	// Home file system field: ASCII in V1, zero-filled in V2; ignored either
	// way.
	if _, err := primary.Seek(16, io.SeekCurrent); err != nil {
		return nil, err
	}

	var countBuf [2]byte
	if _, err := io.ReadFull(primary, countBuf[:]); err != nil {
		return nil, ErrFileTooSmall
	}
	numEntries := binary.BigEndian.Uint16(countBuf[:])
	if numEntries == 0 {
		return nil, ErrInvariant
	}

	shared, err := NewSharedStream(primary)
	if err != nil {
		return nil, err
	}

	type dirEntry struct {
		id             uint32
		offset, length int64
	}
	entries := make([]dirEntry, 0, numEntries)
	for i := uint16(0); i < numEntries; i++ {
		var rec [12]byte
		if _, err := io.ReadFull(shared, rec[:]); err != nil {
			return nil, ErrFileTooSmall
		}
		id := binary.BigEndian.Uint32(rec[0:4])
		if id == 0 {
			return nil, ErrInvariant
		}
		entries = append(entries, dirEntry{
			id:     id,
			offset: int64(binary.BigEndian.Uint32(rec[4:8])),
			length: int64(binary.BigEndian.Uint32(rec[8:12])),
		})
	}

	ad := &AppleDouble{}
	var nameEntry *dirEntry
	var scriptCode byte
	for i := range entries {
		e := entries[i]
		switch e.id {
		case 1:
			ad.dataFork = shared.Sub(e.offset, e.offset+e.length)
		case 2:
			ad.resourceFork = shared.Sub(e.offset, e.offset+e.length)
		case 3:
			nameEntry = &entries[i]
		case 9:
			finder := shared.Sub(e.offset, e.offset+e.length)
			var fi [27]byte
			if _, err := io.ReadFull(finder, fi[:]); err == nil {
				scriptCode = fi[26]
			}
		}
	}

	if ad.resourceFork == nil {
		return nil, ErrNotFound
	}

	if magic == appleDoubleMagic && ad.dataFork == nil {
		if plain != nil && sidecar != nil {
			plainShared, err := NewSharedStream(plain)
			if err == nil {
				ad.dataFork = plainShared
			}
		}
	}

	if nameEntry != nil {
		raw := make([]byte, nameEntry.length)
		nameStream := shared.Sub(nameEntry.offset, nameEntry.offset+nameEntry.length)
		if _, err := io.ReadFull(nameStream, raw); err == nil {
			ad.Name = decodeMacString(raw, scriptCode)
		}
	}

	return ad, nil
}

// openAppleDoubleData opens path's data fork via the envelopes that
// openAppleDoubleFor probes.
func openAppleDoubleData(path string) (io.ReadSeeker, string, error) {
	ad, err := openAppleDoubleFor(path)
	if err != nil {
		return nil, "", err
	}
	if ad.DataFork() == nil {
		return nil, "", ErrNotFound
	}
	return ad.DataFork(), ad.Name, nil
}

// openAppleDoubleResource mirrors openAppleDoubleData for the resource fork.
func openAppleDoubleResource(path string) (io.ReadSeeker, string, error) {
	ad, err := openAppleDoubleFor(path)
	if err != nil {
		return nil, "", err
	}
	return ad.ResourceFork(), ad.Name, nil
}

// openAppleDoubleFor tries path itself as an AppleSingle/AppleDouble file,
// then a "path.rsrc" AppleDouble sidecar paired with the plain file at
// path. The "%name" sidecar convention is not tried.
func openAppleDoubleFor(path string) (*AppleDouble, error) {
	if f, err := os.Open(path); err == nil {
		if ad, err := OpenAppleDouble(nil, f); err == nil {
			return ad, nil
		}
		f.Close()
	}

	sidecarPath := path + ".rsrc"
	sidecar, err := os.Open(sidecarPath)
	if err != nil {
		return nil, ErrBadMagic
	}
	plain, err := os.Open(path)
	if err != nil {
		sidecar.Close()
		return nil, err
	}
	ad, err := OpenAppleDouble(plain, sidecar)
	if err != nil {
		return nil, err
	}
	return ad, nil
}
