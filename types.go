package dirfile

import (
	"encoding/binary"
	"fmt"
)

// OSType is a four-byte type tag used throughout Mac resource files and
// Director RIFF chunks ('VWCF', 'imap', 'RIFX', ...). It is always stored
// and compared in its canonical big-endian byte order regardless of the
// endianness the bytes had on disk; callers that read a tag from a
// little-endian stream must byte-swap it before constructing an OSType.
type OSType [4]byte

// NewOSType builds an OSType from a four-character string. It panics if s
// is not exactly four bytes long, since every call site uses a compile-time
// literal.
func NewOSType(s string) OSType {
	if len(s) != 4 {
		panic(fmt.Sprintf("dirfile: OSType literal %q is not 4 bytes", s))
	}
	var t OSType
	copy(t[:], s)
	return t
}

// String renders the tag as four ASCII characters.
func (t OSType) String() string {
	return string(t[:])
}

// Swapped returns the tag with its bytes reversed, the representation used
// by some D3-era and Windows tools that stored tags in the "wrong" endianness
// relative to the rest of the file.
func (t OSType) Swapped() OSType {
	return OSType{t[3], t[2], t[1], t[0]}
}

// ReadOSType reads 4 bytes from b at the given byte order and canonicalizes
// them to big-endian display order. Big-endian order is a no-op; little-endian
// order reverses the bytes.
func ReadOSType(b []byte, order binary.ByteOrder) OSType {
	var t OSType
	copy(t[:], b[:4])
	if order == binary.LittleEndian {
		return t.Swapped()
	}
	return t
}

// ResNum is a Mac resource number: a signed 16-bit value unique to one
// (type, file) pair.
type ResNum int16

// ResourceId identifies one resource within one resource file or RIFF: a
// type tag plus a resource number.
type ResourceId struct {
	Type OSType
	Num  ResNum
}

// NewResourceId is a convenience constructor matching the common call
// pattern ResourceId{type, number}.
func NewResourceId(t OSType, n ResNum) ResourceId {
	return ResourceId{Type: t, Num: n}
}

func (id ResourceId) String() string {
	return fmt.Sprintf("%s %d", id.Type, id.Num)
}

// ChunkIndex is a signed 32-bit index into a RIFF memory map. The sentinel
// value -1 means "none" when used as a free-list terminator, and "not found"
// when returned from a lookup.
type ChunkIndex int32

// NoChunk is the RIFF free-list / lookup-miss sentinel.
const NoChunk ChunkIndex = -1

// Valid reports whether the index refers to an actual memory-map slot.
func (c ChunkIndex) Valid() bool {
	return c >= 0
}

// RefNum is the Resource Manager's handle for one open resource file.
// RefNum(0) always denotes the system file; other values are the
// process-wide unique numbers OpenResourceFile assigns (see
// ResourceFile.ReferenceNumber).
type RefNum int16

// SystemRefNum is the RefNum reserved for the always-present system file.
const SystemRefNum RefNum = 0

// Endianness selects the byte order used to read a stream of multi-byte
// integers. Director's RIFF format allows the OSType tags and the payload
// data to use independent endiannesses (big tags with little-endian data
// appear in Windows-authored files); the two are tracked separately.
type Endianness int

const (
	BigEndian Endianness = iota
	LittleEndian
)

// ByteOrder returns the standard library byte order matching e.
func (e Endianness) ByteOrder() binary.ByteOrder {
	if e == LittleEndian {
		return binary.LittleEndian
	}
	return binary.BigEndian
}

func (e Endianness) String() string {
	if e == LittleEndian {
		return "little"
	}
	return "big"
}

// Version is the Director file-format generation a detector assigns to an
// input. D7 is recognized for completeness in magic tables but its settings
// layout is not parsed (see projectorsettings.go).
type Version int

const (
	D3 Version = iota + 3
	D4
	D5
	D6
	D7
)

func (v Version) String() string {
	return fmt.Sprintf("%d", int(v))
}

// Platform is the operating system a projector or movie targets.
type Platform int

const (
	PlatformMac Platform = iota
	PlatformWindows
)

func (p Platform) String() string {
	if p == PlatformWindows {
		return "windows"
	}
	return "mac"
}
