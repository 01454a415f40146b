package dirfile

import (
	"encoding/binary"
	"fmt"
)

// ChunkFileKind classifies one entry of a RiffContainer's file list.
type ChunkFileKind uint32

const (
	ChunkFileKindMovie ChunkFileKind = iota
	ChunkFileKindCast
	ChunkFileKindXtra
)

func (k ChunkFileKind) String() string {
	switch k {
	case ChunkFileKindCast:
		return "cast"
	case ChunkFileKindXtra:
		return "xtra"
	default:
		return "movie"
	}
}

// ChunkFile is one entry of a RiffContainer's "List" chunk: the RIFF chunk
// index holding one embedded file, and that file's kind. A 4-byte entry
// names only the chunk index and defaults to Movie; an 8-byte entry also
// carries an explicit kind.
type ChunkFile struct {
	ChunkIndex ChunkIndex
	Kind       ChunkFileKind
}

func decodeChunkFile(order binary.ByteOrder) func([]byte) (ChunkFile, error) {
	return func(data []byte) (ChunkFile, error) {
		if len(data) < 4 || len(data) > 8 {
			return ChunkFile{}, fmt.Errorf("%w: bad ChunkFile size %d", ErrInvariant, len(data))
		}
		index := ChunkIndex(int32(order.Uint32(data[0:4])))
		if len(data) == 4 {
			return ChunkFile{ChunkIndex: index, Kind: ChunkFileKindMovie}, nil
		}
		return ChunkFile{ChunkIndex: index, Kind: ChunkFileKind(order.Uint32(data[4:8]))}, nil
	}
}

// RiffContainer is a RIFF whose children are themselves embedded RIFF
// files: a playlist of movies, casts, and (D6+) Xtras packaged into a
// Projector, per SPEC_FULL.md §4.7.
type RiffContainer struct {
	riff     *Riff
	fileList *StdList[ChunkFile]
	fileDict *SerializedDict[uint32]
}

// OpenRiffContainer opens stream as a RIFF and loads its "List"/"Dict"
// index chunks.
func OpenRiffContainer(stream *SharedStream) (*RiffContainer, error) {
	riff, err := OpenRiff(stream)
	if err != nil {
		return nil, err
	}

	order := riff.dataOrder

	listIndex := riff.FirstOfKind(NewOSType("List"))
	fileList, err := Load(riff, listIndex, DecodeStdList(order, decodeChunkFile(order)))
	if err != nil {
		return nil, fmt.Errorf("bad RiffContainer List chunk: %w", err)
	}

	dictIndex := riff.FirstOfKind(NewOSType("Dict"))
	fileDict, err := Load(riff, dictIndex, DecodeSerializedDict(order, decodeUint32Value(order)))
	if err != nil {
		return nil, fmt.Errorf("bad RiffContainer Dict chunk: %w", err)
	}

	return &RiffContainer{riff: riff, fileList: fileList, fileDict: fileDict}, nil
}

func decodeUint32Value(order binary.ByteOrder) func([]byte) (uint32, error) {
	return func(data []byte) (uint32, error) {
		if len(data) < 4 {
			return 0, ErrFileTooSmall
		}
		return order.Uint32(data[:4]), nil
	}
}

// Len returns the number of files in the container's playlist.
func (c *RiffContainer) Len() int { return c.fileList.Len() }

// Filename returns the original filename recorded for the file at index.
func (c *RiffContainer) Filename(index int) (string, bool) {
	name, ok := c.fileDict.KeyByIndex(index)
	if !ok {
		return "", false
	}
	return string(name), true
}

// Kind returns the file kind recorded for the file at index.
func (c *RiffContainer) Kind(index int) (ChunkFileKind, bool) {
	entry, ok := c.fileList.Get(index)
	if !ok {
		return 0, false
	}
	return entry.Kind, true
}

// LoadFile returns a new Riff view of the embedded file at index.
func (c *RiffContainer) LoadFile(index int) (*Riff, error) {
	entry, ok := c.fileList.Get(index)
	if !ok {
		return nil, ErrOutOfRange
	}
	return c.riff.LoadRiff(entry.ChunkIndex)
}
