package dirfile

import (
	"encoding/binary"
	"io"
	"sync"
	"sync/atomic"
)

// ResourceFlags are the per-resource attribute bits stored in a Mac
// Resource File's type map, per SPEC_FULL.md §4.5.
type ResourceFlags uint8

const (
	ResourceFlagReserved         ResourceFlags = 0x80
	ResourceFlagLoadToSystemHeap ResourceFlags = 0x40
	ResourceFlagPurgeable        ResourceFlags = 0x20
	ResourceFlagLocked           ResourceFlags = 0x10
	ResourceFlagReadOnly         ResourceFlags = 0x08
	ResourceFlagPreload          ResourceFlags = 0x04
	ResourceFlagChanged          ResourceFlags = 0x02
	ResourceFlagCompressed       ResourceFlags = 0x01
)

func (f ResourceFlags) Has(bit ResourceFlags) bool { return f&bit != 0 }

const (
	maxResourceTypeCount = 2727
	resourceMapMinSize   = 30
)

type resourceItem struct {
	id         ResNum
	nameOffset int16
	flags      ResourceFlags
	dataOffset uint32 // already absolute (file data_offset + item offset)

	mu     sync.Mutex
	cached interface{}
}

type resourceKind struct {
	kind      OSType
	resources []*resourceItem
}

// ResourceFile parses a Mac-style resource-fork byte stream and exposes
// (OSType, ResNum) -> lazy, typed resource lookups, per SPEC_FULL.md §4.5.
type ResourceFile struct {
	r          io.ReadSeeker
	mu         sync.Mutex // guards r for seek+read during Load
	refNum     RefNum
	kinds      []*resourceKind
	names      []byte
	nameOffset uint32

	decompressor struct {
		mu    sync.Mutex
		vise  *ApplicationVise
		ready bool
	}
}

var resourceFileRefNumCounter int32 = 1

// OpenResourceFile parses the resource-file header and map from r, which
// must be positioned at the start of the resource fork.
func OpenResourceFile(r io.ReadSeeker) (*ResourceFile, error) {
	cur, err := r.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, err
	}
	fileSize, err := streamLen(r, cur)
	if err != nil {
		return nil, err
	}

	var hdr [16]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, ErrFileTooSmall
	}
	dataOffset := binary.BigEndian.Uint32(hdr[0:4])
	mapOffset := binary.BigEndian.Uint32(hdr[4:8])
	dataSize := binary.BigEndian.Uint32(hdr[8:12])
	mapSize := binary.BigEndian.Uint32(hdr[12:16])

	if mapSize < resourceMapMinSize {
		return nil, ErrBadMapSize
	}

	minFileSize := maxU64(uint64(mapOffset)+uint64(mapSize), uint64(dataOffset)+uint64(dataSize))
	if uint64(fileSize) < minFileSize {
		return nil, ErrFileTooSmall
	}

	if _, err := r.Seek(int64(mapOffset), io.SeekStart); err != nil {
		return nil, err
	}

	var mapHdr [30]byte
	if _, err := io.ReadFull(r, mapHdr[:]); err != nil {
		return nil, ErrFileTooSmall
	}
	typeListOffset := binary.BigEndian.Uint16(mapHdr[24:26])
	nameListOffset := binary.BigEndian.Uint16(mapHdr[26:28])
	if typeListOffset < 28 {
		return nil, ErrInvariant
	}
	typeCount := int(int16(binary.BigEndian.Uint16(mapHdr[28:30]))) + 1
	if typeCount < 0 || typeCount >= maxResourceTypeCount {
		return nil, ErrBadMapResourceCount
	}

	typeListStart := int64(mapOffset) + int64(typeListOffset)
	if _, err := r.Seek(typeListStart, io.SeekStart); err != nil {
		return nil, err
	}

	kinds := make([]*resourceKind, 0, typeCount)
	type typeEntry struct {
		kind       OSType
		count      int
		listOffset uint16
	}
	typeEntries := make([]typeEntry, typeCount)
	for i := 0; i < typeCount; i++ {
		var buf [8]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return nil, ErrFileTooSmall
		}
		count := int(int16(binary.BigEndian.Uint16(buf[4:6]))) + 1
		if count < 0 || count >= maxResourceTypeCount {
			return nil, ErrBadMapResourceCount
		}
		typeEntries[i] = typeEntry{
			kind:       ReadOSType(buf[0:4], binary.BigEndian),
			count:      count,
			listOffset: binary.BigEndian.Uint16(buf[6:8]),
		}
	}

	for _, te := range typeEntries {
		if _, err := r.Seek(typeListStart+int64(te.listOffset), io.SeekStart); err != nil {
			return nil, err
		}
		items := make([]*resourceItem, 0, te.count)
		for i := 0; i < te.count; i++ {
			var buf [12]byte
			if _, err := io.ReadFull(r, buf[:]); err != nil {
				return nil, ErrFileTooSmall
			}
			id := ResNum(int16(binary.BigEndian.Uint16(buf[0:2])))
			nameOff := int16(binary.BigEndian.Uint16(buf[2:4]))
			flags := ResourceFlags(buf[4])
			packedOffset := uint32(buf[5])<<16 | uint32(buf[6])<<8 | uint32(buf[7])
			items = append(items, &resourceItem{
				id:         id,
				nameOffset: nameOff,
				flags:      flags,
				dataOffset: dataOffset + packedOffset,
			})
		}
		kinds = append(kinds, &resourceKind{kind: te.kind, resources: items})
	}

	var names []byte
	if uint32(mapSize) > uint32(nameListOffset) {
		nameLen := mapSize - uint32(nameListOffset)
		if _, err := r.Seek(int64(mapOffset)+int64(nameListOffset), io.SeekStart); err != nil {
			return nil, err
		}
		names = make([]byte, nameLen)
		if _, err := io.ReadFull(r, names); err != nil {
			return nil, ErrFileTooSmall
		}
	}

	rf := &ResourceFile{
		r:          r,
		refNum:     RefNum(atomic.AddInt32(&resourceFileRefNumCounter, 1) - 1),
		kinds:      kinds,
		names:      names,
		nameOffset: uint32(nameListOffset),
	}
	return rf, nil
}

func maxU64(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}

// ReferenceNumber returns this file's process-wide unique RefNum, assigned
// monotonically at open time.
func (rf *ResourceFile) ReferenceNumber() RefNum { return rf.refNum }

func (rf *ResourceFile) findKind(t OSType) *resourceKind {
	for _, k := range rf.kinds {
		if k.kind == t {
			return k
		}
	}
	return nil
}

func (rf *ResourceFile) findItem(id ResourceId) *resourceItem {
	k := rf.findKind(id.Type)
	if k == nil {
		return nil
	}
	for _, r := range k.resources {
		if r.id == id.Num {
			return r
		}
	}
	return nil
}

// Contains reports whether id exists in this file.
func (rf *ResourceFile) Contains(id ResourceId) bool {
	return rf.findItem(id) != nil
}

// Count returns the number of resources of the given type.
func (rf *ResourceFile) Count(t OSType) int {
	if k := rf.findKind(t); k != nil {
		return len(k.resources)
	}
	return 0
}

// Iter returns every ResourceId in the file in on-disk order.
func (rf *ResourceFile) Iter() []ResourceId {
	var out []ResourceId
	for _, k := range rf.kinds {
		for _, r := range k.resources {
			out = append(out, ResourceId{Type: k.kind, Num: r.id})
		}
	}
	return out
}

// IterKind returns every ResourceId of the given type, preserving the order
// entries were recorded in the type's resource list.
func (rf *ResourceFile) IterKind(t OSType) []ResourceId {
	k := rf.findKind(t)
	if k == nil {
		return nil
	}
	out := make([]ResourceId, 0, len(k.resources))
	for _, r := range k.resources {
		out = append(out, ResourceId{Type: t, Num: r.id})
	}
	return out
}

// IdOfName returns the ResourceId of the named resource of the given type,
// if one exists. Name offset -1 ("no name") never matches.
func (rf *ResourceFile) IdOfName(t OSType, name []byte) (ResourceId, bool) {
	k := rf.findKind(t)
	if k == nil {
		return ResourceId{}, false
	}
	for _, r := range k.resources {
		if r.nameOffset == -1 {
			continue
		}
		start := int(r.nameOffset)
		if start >= len(rf.names) {
			continue
		}
		l := int(rf.names[start])
		end := start + 1 + l
		if end > len(rf.names) {
			continue
		}
		if string(rf.names[start+1:end]) == string(name) {
			return ResourceId{Type: t, Num: r.id}, true
		}
	}
	return ResourceId{}, false
}

// IdOfIndex returns the ResourceId at position index within the given
// type's resource list.
func (rf *ResourceFile) IdOfIndex(t OSType, index int) (ResourceId, bool) {
	k := rf.findKind(t)
	if k == nil || index < 0 || index >= len(k.resources) {
		return ResourceId{}, false
	}
	return ResourceId{Type: t, Num: k.resources[index].id}, true
}

// Name returns the Pascal string stored at absolute offset 0x30 of the
// fork, used as a projector's application name.
func (rf *ResourceFile) Name() (string, error) {
	rf.mu.Lock()
	defer rf.mu.Unlock()
	if _, err := rf.r.Seek(0x30, io.SeekStart); err != nil {
		return "", err
	}
	var lenByte [1]byte
	if _, err := io.ReadFull(rf.r, lenByte[:]); err != nil {
		return "", err
	}
	buf := make([]byte, lenByte[0])
	if _, err := io.ReadFull(rf.r, buf); err != nil {
		return "", err
	}
	return decodeMacString(buf, 0), nil
}

// primeDecompressor loads the shared VISE dictionary from this file's last
// CODE resource, guarding against re-entry per SPEC_FULL.md §4.4/§5.
func (rf *ResourceFile) primeDecompressor() (*ApplicationVise, error) {
	rf.decompressor.mu.Lock()
	defer rf.decompressor.mu.Unlock()

	if rf.decompressor.ready {
		return rf.decompressor.vise, nil
	}

	k := rf.findKind(NewOSType("CODE"))
	if k == nil || len(k.resources) == 0 {
		return nil, ErrVISENoDictionary
	}
	last := k.resources[len(k.resources)-1]

	// A VISE-compressed CODE resource would need this very dictionary to
	// load; report re-entry instead of recursing into a held lock.
	rf.mu.Lock()
	var sig [4]byte
	n := 0
	if _, err := rf.r.Seek(int64(last.dataOffset)+4, io.SeekStart); err == nil {
		n, _ = io.ReadFull(rf.r, sig[:])
	}
	rf.mu.Unlock()
	if n == 4 && IsVISECompressed(sig[:]) {
		return nil, ErrVISEReentry
	}

	codeData, err := rf.loadRawLocked(ResourceId{Type: NewOSType("CODE"), Num: last.id}, last)
	if err != nil {
		return nil, ErrVISENoDictionary
	}
	shared, ok := FindVISESharedData(codeData)
	if !ok {
		return nil, ErrVISENoDictionary
	}
	vise := NewApplicationVise(append([]byte(nil), shared...))
	rf.decompressor.vise = vise
	rf.decompressor.ready = true
	return vise, nil
}

// loadRawLocked reads one resource's raw bytes, decompressing transparently
// if it is VISE-compressed. Callers must not hold rf.mu.
func (rf *ResourceFile) loadRawLocked(id ResourceId, entry *resourceItem) ([]byte, error) {
	rf.mu.Lock()
	if _, err := rf.r.Seek(int64(entry.dataOffset), io.SeekStart); err != nil {
		rf.mu.Unlock()
		return nil, err
	}
	var sizeBuf [4]byte
	if _, err := io.ReadFull(rf.r, sizeBuf[:]); err != nil {
		rf.mu.Unlock()
		return nil, ErrFileTooSmall
	}
	size := binary.BigEndian.Uint32(sizeBuf[:])

	var sig [4]byte
	n, _ := io.ReadFull(rf.r, sig[:])
	if _, err := rf.r.Seek(int64(entry.dataOffset)+4, io.SeekStart); err != nil {
		rf.mu.Unlock()
		return nil, err
	}
	isVise := n == 4 && IsVISECompressed(sig[:])

	raw := make([]byte, size)
	if _, err := io.ReadFull(rf.r, raw); err != nil {
		rf.mu.Unlock()
		return nil, ErrFileTooSmall
	}
	rf.mu.Unlock()

	if !isVise {
		return raw, nil
	}

	vise, err := rf.primeDecompressor()
	if err != nil {
		return nil, err
	}
	return vise.Decompress(raw)
}

// ResourceDecoder decodes one concrete resource type from its bounded raw
// bytes. Every member of the resource type catalog (config.go, fileinfo.go,
// castlist.go, ...) implements one of these.
type ResourceDecoder[T any] func(data []byte) (T, error)

// LoadResource loads and decodes the resource named by id, caching the
// result so repeated loads return the same object while the caller still
// holds a reference (see DESIGN.md's weak-cache open question decision).
func LoadResource[T any](rf *ResourceFile, id ResourceId, decode ResourceDecoder[T]) (T, error) {
	var zero T
	entry := rf.findItem(id)
	if entry == nil {
		return zero, ErrNotFound
	}
	if entry.flags.Has(ResourceFlagCompressed) {
		return zero, ErrUnsupportedCompression
	}

	entry.mu.Lock()
	if entry.cached != nil {
		cached, ok := entry.cached.(T)
		entry.mu.Unlock()
		if !ok {
			return zero, ErrInvariant
		}
		return cached, nil
	}
	entry.mu.Unlock()

	raw, err := rf.loadRawLocked(id, entry)
	if err != nil {
		return zero, err
	}
	value, err := decode(raw)
	if err != nil {
		return zero, err
	}

	entry.mu.Lock()
	entry.cached = value
	entry.mu.Unlock()
	return value, nil
}

// LoadBytes loads a resource's raw (already-decompressed) bytes without any
// further typed decoding, the equivalent of the original's
// `load_args::<Vec<u8>>`.
func LoadBytes(rf *ResourceFile, id ResourceId) ([]byte, error) {
	return LoadResource(rf, id, func(data []byte) ([]byte, error) { return data, nil })
}
