package dirfile

import (
	"encoding/binary"
	"fmt"
	"io"
	"sync"
)

// RiffKind classifies the content a RIFF carries, determined from its
// subtype tag at detection time.
type RiffKind int

const (
	RiffKindMovie RiffKind = iota
	RiffKindCast
	RiffKindEmbedded
)

func (k RiffKind) String() string {
	switch k {
	case RiffKindCast:
		return "cast"
	case RiffKindEmbedded:
		return "embedded"
	default:
		return "movie"
	}
}

// MemoryMapFlags are the per-entry status bits in a RIFF "mmap" chunk.
type MemoryMapFlags uint16

const (
	MemoryMapFlagDirty     MemoryMapFlags = 1
	MemoryMapFlagValid     MemoryMapFlags = 4
	MemoryMapFlagFree      MemoryMapFlags = 8
	MemoryMapFlag20        MemoryMapFlags = 0x20
	MemoryMapFlag40        MemoryMapFlags = 0x40
	MemoryMapFlagAllocated MemoryMapFlags = 0x80
	MemoryMapFlag8000      MemoryMapFlags = 0x8000

	memoryMapValidFlagMask = MemoryMapFlagDirty | MemoryMapFlagValid | MemoryMapFlagFree |
		MemoryMapFlag20 | MemoryMapFlag40 | MemoryMapFlagAllocated | MemoryMapFlag8000

	mmapHeaderSize = 0x18
	mmapEntrySize  = 0x14
	keysHeaderSize = 12
	// MMAP_MAX_ENTRIES: bounded so the mmap chunk always fits in a 64k page.
	mmapMaxEntries = (0xFFFF - mmapHeaderSize) / mmapEntrySize
)

func (f MemoryMapFlags) Has(bit MemoryMapFlags) bool { return f&bit != 0 }

type memoryMapItem struct {
	osType   OSType
	size     uint32
	offset   uint32
	flags    MemoryMapFlags
	fieldE   uint16
	nextFree ChunkIndex

	mu     sync.Mutex
	cached interface{}
}

// Riff parses a Director-variant RIFF: an outer RIFX/RIFF/XFIR container
// whose subtype tag selects an endianness pair, version, and kind, followed
// by either an imap/mmap/KEY* triple or a flat CFTC table, per
// SPEC_FULL.md §4.6.
type Riff struct {
	stream *SharedStream
	mu     sync.Mutex

	osTypeOrder binary.ByteOrder
	dataOrder   binary.ByteOrder
	version     Version
	kind        RiffKind
	size        uint32

	items         []*memoryMapItem
	resourceMap   map[ResourceId]ChunkIndex
	nextFreeIndex ChunkIndex
	nextJunkIndex ChunkIndex
}

type riffDetectionInfo struct {
	osTypeEndianness Endianness
	dataEndianness   Endianness
	version          Version
	kind             RiffKind
	size             uint32
}

// detectRiff reads the 12-byte RIFF header (outer tag, size, subtype) at the
// current position of r, which must be at offset 0 of the candidate stream.
func detectRiff(r io.ReadSeeker) (riffDetectionInfo, error) {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return riffDetectionInfo{}, err
	}
	var outer [4]byte
	if _, err := io.ReadFull(r, outer[:]); err != nil {
		return riffDetectionInfo{}, ErrFileTooSmall
	}
	switch string(outer[:]) {
	case "RIFX", "RIFF", "XFIR":
		return detectRiffSubtype(r)
	case "FFIR":
		return riffDetectionInfo{}, fmt.Errorf("%w: RIFF-LE files are not known to exist", ErrBadMagic)
	default:
		return riffDetectionInfo{}, ErrBadMagic
	}
}

func detectRiffSubtype(r io.ReadSeeker) (riffDetectionInfo, error) {
	var chunkSizeRaw [4]byte
	if _, err := io.ReadFull(r, chunkSizeRaw[:]); err != nil {
		return riffDetectionInfo{}, ErrFileTooSmall
	}
	var subTypeRaw [4]byte
	if _, err := io.ReadFull(r, subTypeRaw[:]); err != nil {
		return riffDetectionInfo{}, ErrFileTooSmall
	}
	subType := ReadOSType(subTypeRaw[:], binary.BigEndian)

	switch subType.String() {
	case "RMMP":
		// This version of Director incorrectly includes the 8-byte chunk
		// header in the recorded RIFF size.
		return riffDetectionInfo{
			osTypeEndianness: BigEndian,
			dataEndianness:   LittleEndian,
			version:          D3,
			kind:             RiffKindMovie,
			size:             binary.LittleEndian.Uint32(chunkSizeRaw[:]) - 8,
		}, nil
	case "MV93", "39VM":
		e, size := riffAttributes(subType, chunkSizeRaw[:])
		return riffDetectionInfo{osTypeEndianness: e, dataEndianness: e, version: D4, kind: RiffKindMovie, size: size}, nil
	case "MC95", "59CM":
		e, size := riffAttributes(subType, chunkSizeRaw[:])
		return riffDetectionInfo{osTypeEndianness: e, dataEndianness: e, version: D4, kind: RiffKindCast, size: size}, nil
	case "APPL", "LPPA":
		e, size := riffAttributes(subType, chunkSizeRaw[:])
		return riffDetectionInfo{osTypeEndianness: e, dataEndianness: e, version: D4, kind: RiffKindEmbedded, size: size}, nil
	default:
		return riffDetectionInfo{}, ErrBadMagic
	}
}

// riffAttributes derives a subtype's endianness (big for an 'M'/'A'-leading
// tag, little otherwise) and reads the chunk size accordingly.
func riffAttributes(subType OSType, rawSize []byte) (Endianness, uint32) {
	e := LittleEndian
	if subType[0] == 'M' || subType[0] == 'A' {
		e = BigEndian
	}
	return e, e.ByteOrder().Uint32(rawSize)
}

// OpenRiff parses a RIFF from stream, which must be positioned at its
// start.
func OpenRiff(stream *SharedStream) (*Riff, error) {
	info, err := detectRiff(stream)
	if err != nil {
		return nil, err
	}

	var osOrder, dataOrder binary.ByteOrder
	switch {
	case info.osTypeEndianness == LittleEndian && info.dataEndianness == LittleEndian:
		osOrder, dataOrder = binary.LittleEndian, binary.LittleEndian
	case info.osTypeEndianness == BigEndian && info.dataEndianness == LittleEndian:
		osOrder, dataOrder = binary.BigEndian, binary.LittleEndian
	case info.osTypeEndianness == BigEndian && info.dataEndianness == BigEndian:
		osOrder, dataOrder = binary.BigEndian, binary.BigEndian
	default:
		return nil, fmt.Errorf("%w: big-endian data with little-endian tags", ErrUnsupportedEndianness)
	}

	riff := &Riff{
		stream:      stream,
		osTypeOrder: osOrder,
		dataOrder:   dataOrder,
		version:     info.version,
		kind:        info.kind,
		size:        info.size,
	}

	tag, err := riff.readTag()
	if err != nil {
		return nil, err
	}
	switch tag.String() {
	case "CFTC":
		if err := riff.readCFTC(); err != nil {
			return nil, err
		}
	case "imap":
		if err := riff.readImap(); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: expected imap or CFTC, found %s", ErrBadMagic, tag)
	}

	riff.nextFreeIndex = NoChunk
	riff.nextJunkIndex = NoChunk
	return riff, nil
}

func (r *Riff) readTag() (OSType, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r.stream, buf[:]); err != nil {
		return OSType{}, ErrFileTooSmall
	}
	return ReadOSType(buf[:], r.osTypeOrder), nil
}

func (r *Riff) readTagWith(order binary.ByteOrder) (OSType, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r.stream, buf[:]); err != nil {
		return OSType{}, ErrFileTooSmall
	}
	return ReadOSType(buf[:], order), nil
}

func (r *Riff) readU32() (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r.stream, buf[:]); err != nil {
		return 0, ErrFileTooSmall
	}
	return r.dataOrder.Uint32(buf[:]), nil
}

func (r *Riff) readU16() (uint16, error) {
	var buf [2]byte
	if _, err := io.ReadFull(r.stream, buf[:]); err != nil {
		return 0, ErrFileTooSmall
	}
	return r.dataOrder.Uint16(buf[:]), nil
}

func (r *Riff) skip(n int64) error {
	_, err := r.stream.Seek(n, io.SeekCurrent)
	return err
}

func (r *Riff) readCFTC() error {
	const entrySize = 16

	bytesToRead, err := r.readU32()
	if err != nil {
		return err
	}
	if err := r.skip(4); err != nil { // unknown, always observed as 0
		return err
	}
	bytesToRead -= 4

	r.items = make([]*memoryMapItem, 0, bytesToRead/entrySize)
	r.resourceMap = make(map[ResourceId]ChunkIndex, bytesToRead/entrySize)

	for bytesToRead != 0 {
		osType, err := r.readTag()
		if err != nil {
			return err
		}
		if osType == (OSType{}) {
			break
		}
		size, err := r.readU32()
		if err != nil {
			return err
		}
		idRaw, err := r.readU32()
		if err != nil {
			return err
		}
		id := ResNum(int16(int32(idRaw)))
		offset, err := r.readU32()
		if err != nil {
			return err
		}

		index := ChunkIndex(len(r.items))
		r.items = append(r.items, &memoryMapItem{osType: osType, size: size, offset: offset, nextFree: NoChunk})

		rid := ResourceId{Type: osType, Num: id}
		if _, exists := r.resourceMap[rid]; exists {
			return fmt.Errorf("%w: multiple %s in CFTC", ErrInvariant, rid)
		}
		r.resourceMap[rid] = index

		bytesToRead -= entrySize
	}
	return nil
}

func (r *Riff) readImap() error {
	if err := r.skip(4); err != nil { // imap size
		return err
	}
	if err := r.skip(4); err != nil { // num maps
		return err
	}
	mapOffset, err := r.readU32()
	if err != nil {
		return err
	}
	if _, err := r.stream.Seek(int64(mapOffset), io.SeekStart); err != nil {
		return err
	}

	tag, err := r.readTag()
	if err != nil {
		return err
	}
	if tag.String() != "mmap" {
		return fmt.Errorf("%w: expected mmap, found %s", ErrBadMagic, tag)
	}
	if err := r.skip(4); err != nil { // chunk size
		return err
	}

	headerSize, err := r.readU16()
	if err != nil {
		return err
	}
	if headerSize != mmapHeaderSize {
		return ErrBadMapSize
	}
	entrySize, err := r.readU16()
	if err != nil {
		return err
	}
	if entrySize != mmapEntrySize {
		return ErrBadMapSize
	}
	if err := r.skip(4); err != nil { // table capacity
		return err
	}
	numEntriesU, err := r.readU32()
	if err != nil {
		return err
	}
	numEntries := int(numEntriesU)
	if numEntries > mmapMaxEntries {
		return ErrBadMapResourceCount
	}
	nextJunkRaw, err := r.readU32()
	if err != nil {
		return err
	}
	nextJunk := ChunkIndex(int32(nextJunkRaw))
	if err := r.skip(4); err != nil { // garbage
		return err
	}
	nextFreeRaw, err := r.readU32()
	if err != nil {
		return err
	}
	nextFree := ChunkIndex(int32(nextFreeRaw))
	if err := r.skip(int64(headerSize) - mmapHeaderSize); err != nil {
		return err
	}

	items := make([]*memoryMapItem, 0, numEntries)
	var keyOffset uint32
	haveKeyOffset := false

	for i := 0; i < numEntries; i++ {
		osType, err := r.readTag()
		if err != nil {
			return err
		}
		size, err := r.readU32()
		if err != nil {
			return err
		}
		offset, err := r.readU32()
		if err != nil {
			return err
		}
		flagBits, err := r.readU16()
		if err != nil {
			return err
		}
		flags := MemoryMapFlags(flagBits)
		if flags&^memoryMapValidFlagMask != 0 {
			return fmt.Errorf("%w: invalid mmap entry %d flags %x", ErrInvariant, i, flagBits)
		}
		fieldE, err := r.readU16()
		if err != nil {
			return err
		}
		itemNextFreeRaw, err := r.readU32()
		if err != nil {
			return err
		}
		if err := r.skip(int64(entrySize) - mmapEntrySize); err != nil {
			return err
		}

		items = append(items, &memoryMapItem{
			osType:   osType,
			size:     size,
			offset:   offset,
			flags:    flags,
			fieldE:   fieldE,
			nextFree: ChunkIndex(int32(itemNextFreeRaw)),
		})

		if !haveKeyOffset && osType.String() == "KEY*" && !flags.Has(MemoryMapFlagValid) {
			keyOffset = offset
			haveKeyOffset = true
		}
	}

	r.items = items
	r.nextJunkIndex = nextJunk
	r.nextFreeIndex = nextFree

	if haveKeyOffset {
		if _, err := r.stream.Seek(int64(keyOffset), io.SeekStart); err != nil {
			return err
		}
		resourceMap, err := r.readKeys()
		if err != nil {
			return err
		}
		r.resourceMap = resourceMap
	} else {
		// No KEY* is valid for a RiffContainer, which has no resource map.
		r.resourceMap = make(map[ResourceId]ChunkIndex)
	}
	return nil
}

func (r *Riff) readKeys() (map[ResourceId]ChunkIndex, error) {
	tag, err := r.readTag()
	if err != nil {
		return nil, err
	}
	if tag.String() != "KEY*" {
		return nil, fmt.Errorf("%w: bad KEY* offset", ErrBadMagic)
	}
	if err := r.skip(4); err != nil { // chunk size
		return nil, err
	}
	headerSize, err := r.readU16()
	if err != nil {
		return nil, err
	}
	if err := r.skip(2); err != nil { // item size
		return nil, err
	}
	if err := r.skip(4); err != nil { // capacity
		return nil, err
	}
	numEntries, err := r.readU32()
	if err != nil {
		return nil, err
	}
	if err := r.skip(int64(headerSize) - keysHeaderSize); err != nil {
		return nil, err
	}

	resourceMap := make(map[ResourceId]ChunkIndex, numEntries)
	for i := uint32(0); i < numEntries; i++ {
		riffIndexRaw, err := r.readU32()
		if err != nil {
			return nil, err
		}
		riffIndex := ChunkIndex(int32(riffIndexRaw))
		idRaw, err := r.readU32()
		if err != nil {
			return nil, err
		}
		id := ResNum(int16(int32(idRaw)))
		// n.b. the KEY* entry's OSType is encoded in data, not tag,
		// endianness.
		osType, err := r.readTagWith(r.dataOrder)
		if err != nil {
			return nil, err
		}
		rid := ResourceId{Type: osType, Num: id}
		if _, exists := resourceMap[rid]; exists {
			return nil, fmt.Errorf("%w: multiple %s in KEY*", ErrInvariant, rid)
		}
		resourceMap[rid] = riffIndex
	}
	return resourceMap, nil
}

// Version returns the Director generation this RIFF declared at detection.
func (r *Riff) Version() Version { return r.version }

// Kind classifies this RIFF's subtype (movie, cast, or embedded).
func (r *Riff) Kind() RiffKind { return r.kind }

// Size returns the declared payload size from the outer RIFF header.
func (r *Riff) Size() uint32 { return r.size }

func (r *Riff) item(index ChunkIndex) (*memoryMapItem, error) {
	if !index.Valid() || int(index) >= len(r.items) {
		return nil, fmt.Errorf("%w: invalid RIFF index %d", ErrOutOfRange, index)
	}
	return r.items[index], nil
}

// FirstOfKind returns the ChunkIndex of the first memory-map entry whose
// tag matches kind, or NoChunk if none does.
func (r *Riff) FirstOfKind(kind OSType) ChunkIndex {
	for i, item := range r.items {
		if item.osType == kind {
			return ChunkIndex(i)
		}
	}
	return NoChunk
}

// Contains reports whether id is present in the resource map.
func (r *Riff) Contains(id ResourceId) bool {
	_, ok := r.resourceMap[id]
	return ok
}

// Iter returns every (ResourceId, ChunkIndex) pair in the resource map, in
// unspecified order.
func (r *Riff) Iter() map[ResourceId]ChunkIndex {
	out := make(map[ResourceId]ChunkIndex, len(r.resourceMap))
	for k, v := range r.resourceMap {
		out[k] = v
	}
	return out
}

const riffChunkHeaderSize = 8

// Load decodes the chunk at index, caching the result like ResourceFile's
// LoadResource.
func Load[T any](r *Riff, index ChunkIndex, decode ResourceDecoder[T]) (T, error) {
	var zero T
	item, err := r.item(index)
	if err != nil {
		return zero, err
	}

	item.mu.Lock()
	if item.cached != nil {
		cached, ok := item.cached.(T)
		item.mu.Unlock()
		if !ok {
			return zero, ErrInvariant
		}
		return cached, nil
	}
	item.mu.Unlock()

	r.mu.Lock()
	if _, err := r.stream.Seek(int64(item.offset)+riffChunkHeaderSize, io.SeekStart); err != nil {
		r.mu.Unlock()
		return zero, err
	}
	raw := make([]byte, item.size)
	if _, err := io.ReadFull(r.stream, raw); err != nil {
		r.mu.Unlock()
		return zero, ErrFileTooSmall
	}
	r.mu.Unlock()

	value, err := decode(raw)
	if err != nil {
		return zero, err
	}

	item.mu.Lock()
	item.cached = value
	item.mu.Unlock()
	return value, nil
}

// LoadId looks up id in the resource map and delegates to Load.
func LoadId[T any](r *Riff, id ResourceId, decode ResourceDecoder[T]) (T, error) {
	var zero T
	index, ok := r.resourceMap[id]
	if !ok {
		return zero, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return Load(r, index, decode)
}

// LoadRiff rebuilds a new Riff view rooted at the chunk's absolute offset,
// used to open an embedded movie inside a RiffContainer.
func (r *Riff) LoadRiff(index ChunkIndex) (*Riff, error) {
	item, err := r.item(index)
	if err != nil {
		return nil, err
	}
	child := r.stream.Sub(int64(item.offset), r.stream.Len())
	return OpenRiff(child)
}

// MakeFree rewrites an entry into the free-list head, for authoring parity
// with the original format; the detection/reading path never calls it.
func (r *Riff) MakeFree(index ChunkIndex) error {
	item, err := r.item(index)
	if err != nil {
		return err
	}
	item.osType = NewOSType("free")
	item.size = 0
	item.offset = 0
	item.flags = MemoryMapFlagValid | MemoryMapFlagFree
	item.fieldE = 0
	item.nextFree = r.nextFreeIndex
	r.nextFreeIndex = index
	return nil
}

// MakeJunk rewrites an entry into the junk-list head, for authoring parity.
func (r *Riff) MakeJunk(index ChunkIndex) error {
	item, err := r.item(index)
	if err != nil {
		return err
	}
	item.osType = NewOSType("junk")
	item.flags = MemoryMapFlagValid
	item.fieldE = 0
	item.nextFree = r.nextJunkIndex
	r.nextJunkIndex = index
	return nil
}
