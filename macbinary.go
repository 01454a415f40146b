package dirfile

import (
	"encoding/binary"
	"io"
	"os"
)

// MacBinaryVersion distinguishes the three MacBinary header dialects. The
// dialect a file was decoded as is recorded in MacBinary.Version.
type MacBinaryVersion int

const (
	MacBinaryV1 MacBinaryVersion = iota + 1
	MacBinaryV2
	MacBinaryV3
)

const (
	macBinaryHeaderSize = 128
	macBinaryBlockSize  = 128
)

// MacBinary decodes a MacBinary envelope (V1/V2/V3) into its constituent
// name, data fork, and resource fork, per SPEC_FULL.md §4.3.
type MacBinary struct {
	Name         string
	Version      MacBinaryVersion
	ScriptCode   byte
	dataFork     *SharedStream
	resourceFork *SharedStream
}

// DataFork returns the decoded data fork, or nil if the envelope carries
// none.
func (m *MacBinary) DataFork() *SharedStream { return m.dataFork }

// ResourceFork returns the decoded resource fork, or nil if the envelope
// carries none.
func (m *MacBinary) ResourceFork() *SharedStream { return m.resourceFork }

// OpenMacBinary parses a MacBinary envelope from r, which must support Seek
// back to its starting position (the header is peeked and then the stream
// is rewound so the fork SharedStreams can be built relative to it).
func OpenMacBinary(r io.ReadSeeker) (*MacBinary, error) {
	startPos, err := r.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, err
	}

	var header [128]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, ErrFileTooSmall
	}
	if _, err := r.Seek(startPos, io.SeekStart); err != nil {
		return nil, err
	}

	if header[0] != 0 || header[74] != 0 {
		return nil, ErrBadMagic
	}

	version := MacBinaryV1
	switch {
	case string(header[102:106]) == "mBIN":
		version = MacBinaryV3

	default:
		v2Checksum := binary.BigEndian.Uint16(header[124:126])
		computed := crc16X25(header[0:124])
		buggyEncoder := v2Checksum == 0 && header[122] == 129 && header[123] == 129
		if (v2Checksum != 0 && computed == v2Checksum) || buggyEncoder {
			version = MacBinaryV2
		} else {
			if header[82] != 0 {
				return nil, ErrBadMagic
			}
			for _, b := range header[101:126] {
				if b != 0 {
					return nil, ErrInvariant
				}
			}
			if header[1] < 1 || header[1] > 63 {
				return nil, ErrInvariant
			}
			resourceSize := binary.BigEndian.Uint32(header[83:87])
			dataSize := binary.BigEndian.Uint32(header[87:91])
			if resourceSize > 0x7fffff || dataSize > 0x7fffff || (resourceSize == 0 && dataSize == 0) {
				return nil, ErrInvariant
			}
		}
	}

	return buildMacBinary(r, &header, version)
}

func alignPowerOfTwo(n, align uint32) uint32 {
	align--
	return (n + align) &^ align
}

func buildMacBinary(r io.ReadSeeker, header *[128]byte, version MacBinaryVersion) (*MacBinary, error) {
	alignedHeaderSize := uint32(macBinaryHeaderSize)
	if version != MacBinaryV1 {
		alignedHeaderSize += alignPowerOfTwo(uint32(binary.BigEndian.Uint16(header[120:122])), macBinaryBlockSize)
	}

	dataForkSize := binary.BigEndian.Uint32(header[83:87])
	resourceForkSize := binary.BigEndian.Uint32(header[87:91])

	const scriptFlag = 0x80
	var scriptCode byte
	if version == MacBinaryV3 && header[106]&scriptFlag != 0 {
		scriptCode = header[106] &^ scriptFlag
	}

	nameLen := int(header[1])
	name := decodeMacString(header[2:2+nameLen], scriptCode)

	dataForkStart := uint64(alignedHeaderSize)
	dataForkEnd := dataForkStart + uint64(dataForkSize)
	resourceForkStart := uint64(alignedHeaderSize) + uint64(alignPowerOfTwo(dataForkSize, macBinaryBlockSize))
	resourceForkEnd := resourceForkStart + uint64(resourceForkSize)

	shared, err := NewSubstreamFrom(r)
	if err != nil {
		return nil, err
	}

	mb := &MacBinary{Name: name, Version: version, ScriptCode: scriptCode}
	if dataForkStart != dataForkEnd {
		mb.dataFork = shared.Sub(int64(dataForkStart), int64(dataForkEnd))
	}
	if resourceForkStart != resourceForkEnd {
		mb.resourceFork = shared.Sub(int64(resourceForkStart), int64(resourceForkEnd))
	}
	return mb, nil
}

// openMacBinaryData opens path's data fork via a bare MacBinary file (no
// ".bin" extension requirement — the format is self-describing via magic
// bytes), returning the decoded name for the caller's VirtualFile.
func openMacBinaryData(path string) (io.ReadSeeker, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", err
	}
	mb, err := OpenMacBinary(f)
	if err != nil {
		f.Close()
		return nil, "", err
	}
	if mb.DataFork() == nil {
		f.Close()
		return nil, "", ErrNotFound
	}
	return mb.DataFork(), mb.Name, nil
}

// openMacBinaryResource mirrors openMacBinaryData for the resource fork.
func openMacBinaryResource(path string) (io.ReadSeeker, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", err
	}
	mb, err := OpenMacBinary(f)
	if err != nil {
		f.Close()
		return nil, "", err
	}
	if mb.ResourceFork() == nil {
		f.Close()
		return nil, "", ErrNotFound
	}
	return mb.ResourceFork(), mb.Name, nil
}
