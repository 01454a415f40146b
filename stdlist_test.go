package dirfile

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildStdListFrame assembles the common Rc+used+capacity+header_size+
// item_size preamble shared by StdList and SerializedDict, followed by the
// raw item bytes.
func buildStdListFrame(order binary.ByteOrder, itemSize int, items [][]byte) []byte {
	var buf bytes.Buffer
	buf.Write(make([]byte, 8)) // Rc
	u32 := make([]byte, 4)
	order.PutUint32(u32, uint32(len(items)))
	buf.Write(u32) // used
	buf.Write(make([]byte, 4)) // capacity
	u16 := make([]byte, 2)
	order.PutUint16(u16, uint16(stdListHeaderSize))
	buf.Write(u16) // header_size
	order.PutUint16(u16, uint16(itemSize))
	buf.Write(u16) // item_size
	for _, it := range items {
		padded := make([]byte, itemSize)
		copy(padded, it)
		buf.Write(padded)
	}
	return buf.Bytes()
}

func TestDecodeStdListChunkFile(t *testing.T) {
	data := buildStdListFrame(binary.BigEndian, 4, [][]byte{
		{0, 0, 0, 1},
		{0, 0, 0, 2},
	})
	decode := DecodeStdList(binary.BigEndian, decodeChunkFile(binary.BigEndian))
	list, err := decode(data)
	require.NoError(t, err)
	assert.Equal(t, 2, list.Len())

	first, ok := list.Get(0)
	require.True(t, ok)
	assert.EqualValues(t, 1, first.ChunkIndex)
	assert.Equal(t, ChunkFileKindMovie, first.Kind)

	_, ok = list.Get(2)
	assert.False(t, ok)
}

func TestDecodeStdListTooSmall(t *testing.T) {
	decode := DecodeStdList(binary.BigEndian, decodeChunkFile(binary.BigEndian))
	_, err := decode(make([]byte, 4))
	assert.ErrorIs(t, err, ErrFileTooSmall)
}

func buildDictEntry(name string, value uint32, itemSize int) []byte {
	entry := make([]byte, itemSize)
	entry[0] = byte(len(name))
	copy(entry[1:], name)
	binary.BigEndian.PutUint32(entry[1+len(name):], value)
	return entry
}

func TestDecodeSerializedDict(t *testing.T) {
	const itemSize = 16
	data := buildStdListFrame(binary.BigEndian, itemSize, [][]byte{
		buildDictEntry("intro.dir", 10, itemSize),
		buildDictEntry("main.dir", 20, itemSize),
	})

	decode := DecodeSerializedDict(binary.BigEndian, decodeUint32Value(binary.BigEndian))
	dict, err := decode(data)
	require.NoError(t, err)
	assert.Equal(t, 2, dict.Len())

	key, ok := dict.KeyByIndex(0)
	require.True(t, ok)
	assert.Equal(t, "intro.dir", string(key))

	value, ok := dict.ValueByIndex(1)
	require.True(t, ok)
	assert.EqualValues(t, 20, value)
}
