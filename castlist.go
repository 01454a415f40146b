package dirfile

import (
	"encoding/binary"
	"fmt"
)

// MemberInfo is a cast member's "VWCI"-style property vector: script
// text, name, file path/name, an embedded Xtra's symbol name, and a run
// of otherwise-opaque entries the original format never gave names to,
// per SPEC_FULL.md §4.12.
type MemberInfo struct {
	vec *PVec
}

const (
	memberInfoEntryScriptText = 0
	memberInfoEntryName       = 1
	memberInfoEntryFilePath   = 2
	memberInfoEntryFileName   = 3
	memberInfoEntryXtraName   = 10
)

// DecodeMemberInfo decodes a member info blob as a big-endian PVec.
func DecodeMemberInfo(data []byte) (*MemberInfo, error) {
	vec, err := DecodePVec(binary.BigEndian, data)
	if err != nil {
		return nil, err
	}
	return &MemberInfo{vec: vec}, nil
}

// ScriptText returns the member's attached Lingo script source, if any.
func (m *MemberInfo) ScriptText() (string, bool) {
	return m.entryString(memberInfoEntryScriptText)
}

// Name returns the member's name, if any.
func (m *MemberInfo) Name() (string, bool) {
	return m.entryString(memberInfoEntryName)
}

// FilePath returns the member's linked external file path, if any.
func (m *MemberInfo) FilePath() (string, bool) {
	return m.entryString(memberInfoEntryFilePath)
}

// FileName returns the member's linked external file name, if any.
func (m *MemberInfo) FileName() (string, bool) {
	return m.entryString(memberInfoEntryFileName)
}

// XtraName returns the null-terminated symbol name of an Xtra this
// member references, if any.
func (m *MemberInfo) XtraName() (string, bool) {
	b, ok := m.vec.EntryBytes(memberInfoEntryXtraName)
	if !ok {
		return "", false
	}
	for i, c := range b {
		if c == 0 {
			b = b[:i]
			break
		}
	}
	return string(b), true
}

// Entry returns the raw bytes of the index'th property vector entry.
// Most indices carry no documented meaning in the original format and
// are exposed only as opaque bytes.
func (m *MemberInfo) Entry(index int) ([]byte, bool) {
	return m.vec.EntryBytes(index)
}

func (m *MemberInfo) entryString(index int) (string, bool) {
	b, ok := m.vec.EntryBytes(index)
	if !ok || len(b) == 0 {
		return "", false
	}
	return decodeMacString(b, 0), true
}

// FileInfoFlags holds the bit-packed movie-level flags stored in a
// "VWFI" resource.
type FileInfoFlags uint32

const (
	FileInfoFlagMoviePreload FileInfoFlags = 1 << iota
	FileInfoFlagAllPreload
	FileInfoFlagUnused1
	FileInfoFlagUnused2
	FileInfoFlagNoPausePlay
	FileInfoFlagUnused3
	FileInfoFlagCommentFont
	FileInfoFlagUpdateURLs
	FileInfoFlagPreload
)

// Has reports whether every bit in mask is set.
func (f FileInfoFlags) Has(mask FileInfoFlags) bool { return f&mask == mask }

// FileInfo is the movie-level "VWFI" resource: a flags word, a
// script/changed-by/created-by/created-with/modified-with comment set,
// and a trailing ini text blob, all stored as a PVec's raw entries since
// the original format never assigned names to most of them.
type FileInfo struct {
	Flags   FileInfoFlags
	Entries *PVec
}

// DecodeFileInfo decodes a "VWFI" resource: a big-endian u32 flags word
// followed by a PVec of entries.
func DecodeFileInfo(data []byte) (FileInfo, error) {
	if len(data) < 4 {
		return FileInfo{}, ErrFileTooSmall
	}
	flags := FileInfoFlags(binary.BigEndian.Uint32(data[0:4]))
	vec, err := DecodePVec(binary.BigEndian, data[4:])
	if err != nil {
		return FileInfo{}, err
	}
	return FileInfo{Flags: flags, Entries: vec}, nil
}

// CastMap is the ordered "CAS*" resource: a table mapping a cast's
// 1-based slot numbers to the RIFF chunk index holding that slot's
// member, with NoChunk marking an empty slot.
type CastMap []ChunkIndex

// DecodeCastMap decodes a "CAS*" resource's payload: a run of big-endian
// u32 chunk indices, one per cast slot, in order.
func DecodeCastMap(data []byte) (CastMap, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("%w: cast map size %d not a multiple of 4", ErrInvariant, len(data))
	}
	out := make(CastMap, len(data)/4)
	for i := range out {
		out[i] = ChunkIndex(binary.BigEndian.Uint32(data[i*4 : i*4+4]))
	}
	return out, nil
}

// CastScoreOrder is the "Sord" resource: the order cast members should
// be listed in a score/cast window, as a run of MemberNum slot numbers.
type CastScoreOrder []MemberNum

// DecodeCastScoreOrder decodes a "Sord" resource's payload.
func DecodeCastScoreOrder(data []byte) (CastScoreOrder, error) {
	if len(data)%2 != 0 {
		return nil, fmt.Errorf("%w: cast score order size %d not a multiple of 2", ErrInvariant, len(data))
	}
	out := make(CastScoreOrder, len(data)/2)
	for i := range out {
		out[i] = MemberNum(binary.BigEndian.Uint16(data[i*2 : i*2+2]))
	}
	return out, nil
}

// Tiles is the "VWTL" resource: a reserved tile-bitmap palette, carried
// as opaque bytes since no version of the original format ever exposed
// its internal layout.
type Tiles []byte

// DecodeTiles decodes a "VWTL" resource's payload.
func DecodeTiles(data []byte) (Tiles, error) {
	return append(Tiles(nil), data...), nil
}

// CastList is the "MCsL" resource: the ordered list of cast libraries a
// movie references, each a name plus the path it was originally linked
// from, stored as Pascal-style byte strings.
type CastList struct {
	Names []string
	Paths []string
}

// DecodeCastList decodes an "MCsL" resource: a big-endian u16 byte length
// of the names list, then two parallel lists (names, then paths) back to
// back; both are decoded as Mac "STR#"-style string lists.
func DecodeCastList(data []byte) (CastList, error) {
	if len(data) < 2 {
		return CastList{}, ErrFileTooSmall
	}
	namesLen := binary.BigEndian.Uint16(data[0:2])
	if int(2+namesLen) > len(data) {
		return CastList{}, ErrFileTooSmall
	}
	namesBlock := data[2 : 2+namesLen]
	pathsBlock := data[2+namesLen:]

	names, err := DecodeStringList(namesBlock)
	if err != nil {
		return CastList{}, fmt.Errorf("can't read cast list names: %w", err)
	}
	var paths []string
	if len(pathsBlock) > 0 {
		paths, err = DecodeStringList(pathsBlock)
		if err != nil {
			return CastList{}, fmt.Errorf("can't read cast list paths: %w", err)
		}
	}
	return CastList{Names: names, Paths: paths}, nil
}

// CastRegistryEntry is one slot of a D3 "VWCR"/"CASt" cast registry: a
// member kind tag plus its raw payload. D3 carries per-kind data inline
// (unlike D4+, which splits it across separate "CASt"+"VWCI" chunks), so
// no further structured decode is attempted here; callers that need a
// specific kind's fields should route the payload through
// DecodeMemberMetadata.
type CastRegistryEntry struct {
	Kind    MemberKind
	Payload []byte
}

// CastRegistry is the D3-only "VWCR" resource: a sequential run of
// size-prefixed entries, one per cast slot, with a zero size marking an
// empty slot.
type CastRegistry []*CastRegistryEntry

// DecodeCastRegistry decodes a "VWCR" resource's payload: repeated
// (size u8, kind u8, payload [size-1]byte) records until the bytes are
// exhausted. A size of 0 denotes an empty slot (nil entry, no kind/payload
// byte pair follows).
func DecodeCastRegistry(data []byte) (CastRegistry, error) {
	var out CastRegistry
	pos := 0
	for pos < len(data) {
		size := int(data[pos])
		pos++
		if size == 0 {
			out = append(out, nil)
			continue
		}
		if pos+size > len(data) {
			return nil, ErrFileTooSmall
		}
		kind := MemberKind(data[pos])
		payload := data[pos+1 : pos+size]
		out = append(out, &CastRegistryEntry{Kind: kind, Payload: append([]byte(nil), payload...)})
		pos += size
	}
	return out, nil
}
