package dirfile

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildPVec assembles a synthetic PVec payload: a headerSize-byte header
// (the first 4 bytes of which are the header size itself), a u16 entry
// count, a relative-offset table of count+1 u32s, and the entries
// concatenated in order.
func buildPVec(order binary.ByteOrder, headerExtra []byte, entries [][]byte) []byte {
	headerSize := uint32(4 + len(headerExtra))

	var buf []byte
	hdr := make([]byte, 4)
	order.PutUint32(hdr, headerSize)
	buf = append(buf, hdr...)
	buf = append(buf, headerExtra...)

	count := make([]byte, 2)
	order.PutUint16(count, uint16(len(entries)))
	buf = append(buf, count...)

	offsets := make([]uint32, len(entries)+1)
	var cursor uint32
	for i, e := range entries {
		offsets[i] = cursor
		cursor += uint32(len(e))
	}
	offsets[len(entries)] = cursor

	for _, off := range offsets {
		b := make([]byte, 4)
		order.PutUint32(b, off)
		buf = append(buf, b...)
	}
	for _, e := range entries {
		buf = append(buf, e...)
	}
	return buf
}

func TestDecodePVecEntries(t *testing.T) {
	data := buildPVec(binary.BigEndian, nil, [][]byte{
		[]byte("hello"),
		{},
		[]byte("world!"),
	})

	vec, err := DecodePVec(binary.BigEndian, data)
	require.NoError(t, err)
	assert.Equal(t, 3, vec.Len())

	b, ok := vec.EntryBytes(0)
	assert.True(t, ok)
	assert.Equal(t, []byte("hello"), b)

	_, ok = vec.EntryBytes(1)
	assert.False(t, ok, "empty entry should report not-ok")

	b, ok = vec.EntryBytes(2)
	assert.True(t, ok)
	assert.Equal(t, []byte("world!"), b)
	assert.EqualValues(t, 6, vec.EntrySize(2))
}

func TestDecodePVecHeaderExtra(t *testing.T) {
	data := buildPVec(binary.BigEndian, []byte{0xAA, 0xBB}, [][]byte{[]byte("x")})

	vec, err := DecodePVec(binary.BigEndian, data)
	require.NoError(t, err)
	assert.EqualValues(t, 6, vec.HeaderSize())

	b, ok := vec.HeaderBytes(4, 6)
	require.True(t, ok)
	assert.Equal(t, []byte{0xAA, 0xBB}, b)
}

func TestDecodePVecTooSmall(t *testing.T) {
	_, err := DecodePVec(binary.BigEndian, []byte{0, 0})
	assert.ErrorIs(t, err, ErrFileTooSmall)
}

func TestDecodePVecOutOfRangeEntry(t *testing.T) {
	data := buildPVec(binary.BigEndian, nil, [][]byte{[]byte("a")})
	vec, err := DecodePVec(binary.BigEndian, data)
	require.NoError(t, err)

	_, ok := vec.EntryBytes(5)
	assert.False(t, ok)
	assert.EqualValues(t, 0, vec.EntrySize(5))
}
