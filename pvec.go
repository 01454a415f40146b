package dirfile

import "encoding/binary"

// PVec is a Macromedia "property vector": a record with a fixed-size
// header followed by a count and a table of relative offsets into a
// trailing run of variable-sized entries, per SPEC_FULL.md §4.12. It
// backs MemberInfo ("VWCI") and similar per-member records.
type PVec struct {
	data       []byte
	order      binary.ByteOrder
	headerSize uint32
	offsets    []uint32
}

// DecodePVec parses data (the resource's full raw payload) as a PVec.
func DecodePVec(order binary.ByteOrder, data []byte) (*PVec, error) {
	if len(data) < 4 {
		return nil, ErrFileTooSmall
	}
	headerSize := order.Uint32(data[0:4])
	if int(headerSize)+2 > len(data) {
		return nil, ErrInvariant
	}
	numEntries := order.Uint16(data[headerSize : headerSize+2])

	offsetTableStart := headerSize + 2
	offsetTableBytes := uint32(numEntries+1) * 4
	if int(offsetTableStart+offsetTableBytes) > len(data) {
		return nil, ErrFileTooSmall
	}

	base := headerSize + 2 + offsetTableBytes
	offsets := make([]uint32, numEntries+1)
	for i := uint16(0); i <= numEntries; i++ {
		raw := order.Uint32(data[offsetTableStart+uint32(i)*4 : offsetTableStart+uint32(i)*4+4])
		offsets[i] = base + raw
	}

	return &PVec{data: data, order: order, headerSize: headerSize, offsets: offsets}, nil
}

// HeaderSize returns the byte length of the fixed header preceding the
// offset table.
func (v *PVec) HeaderSize() uint32 { return v.headerSize }

// Len returns the number of variable-sized entries.
func (v *PVec) Len() int {
	if len(v.offsets) == 0 {
		return 0
	}
	return len(v.offsets) - 1
}

// HeaderBytes returns the header's raw bytes in [start, end), or false if
// end falls outside the header.
func (v *PVec) HeaderBytes(start, end uint32) ([]byte, bool) {
	if end > v.headerSize || start >= end {
		return nil, false
	}
	return v.data[start:end], true
}

// EntryBytes returns the raw bytes of the index'th entry, or false if the
// entry is empty (start == end) or out of range.
func (v *PVec) EntryBytes(index int) ([]byte, bool) {
	if index < 0 || index >= v.Len() {
		return nil, false
	}
	start, end := v.offsets[index], v.offsets[index+1]
	if start >= end || int(end) > len(v.data) {
		return nil, false
	}
	return v.data[start:end], true
}

// EntrySize returns the byte length of the index'th entry, or 0 if it is
// empty or out of range.
func (v *PVec) EntrySize(index int) uint32 {
	if index < 0 || index >= v.Len() {
		return 0
	}
	start, end := v.offsets[index], v.offsets[index+1]
	if start >= end {
		return 0
	}
	return end - start
}
