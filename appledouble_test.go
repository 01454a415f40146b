package dirfile

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type adEntrySpec struct {
	id      uint32
	payload []byte
}

// buildAppleSingle assembles a synthetic AppleSingle file: an 8-byte magic
// plus version header, a 16-byte ignored home-filesystem field, a directory
// of (id, offset, length) entries, and their payloads appended in order.
func buildAppleSingle(entries []adEntrySpec) []byte {
	var buf bytes.Buffer
	magic := make([]byte, 4)
	binary.BigEndian.PutUint32(magic, appleSingleMagic)
	buf.Write(magic)
	version := make([]byte, 4)
	binary.BigEndian.PutUint32(version, 0x00020000)
	buf.Write(version)
	buf.Write(make([]byte, 16))

	count := make([]byte, 2)
	binary.BigEndian.PutUint16(count, uint16(len(entries)))
	buf.Write(count)

	dirSize := 2 + 12*len(entries)
	headerSize := 8 + 16 + dirSize
	offset := headerSize
	var payloads []byte
	for _, e := range entries {
		rec := make([]byte, 12)
		binary.BigEndian.PutUint32(rec[0:4], e.id)
		binary.BigEndian.PutUint32(rec[4:8], uint32(offset))
		binary.BigEndian.PutUint32(rec[8:12], uint32(len(e.payload)))
		buf.Write(rec)
		payloads = append(payloads, e.payload...)
		offset += len(e.payload)
	}
	buf.Write(payloads)
	return buf.Bytes()
}

func TestOpenAppleDoubleAsAppleSingle(t *testing.T) {
	data := buildAppleSingle([]adEntrySpec{
		{id: 1, payload: []byte("DATAFORK")},
		{id: 2, payload: []byte("RESOURCEFORK")},
		{id: 3, payload: []byte("MyFile")},
	})

	ad, err := OpenAppleDouble(nil, bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, "MyFile", ad.Name)

	require.NotNil(t, ad.DataFork())
	df, err := io.ReadAll(ad.DataFork())
	require.NoError(t, err)
	assert.Equal(t, "DATAFORK", string(df))

	require.NotNil(t, ad.ResourceFork())
	rf, err := io.ReadAll(ad.ResourceFork())
	require.NoError(t, err)
	assert.Equal(t, "RESOURCEFORK", string(rf))
}

func TestOpenAppleDoubleNoResourceForkIsNotFound(t *testing.T) {
	data := buildAppleSingle([]adEntrySpec{
		{id: 1, payload: []byte("DATAFORK")},
	})
	_, err := OpenAppleDouble(nil, bytes.NewReader(data))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOpenAppleDoubleBadMagic(t *testing.T) {
	data := make([]byte, 8)
	_, err := OpenAppleDouble(nil, bytes.NewReader(data))
	assert.ErrorIs(t, err, ErrBadMagic)
}

func TestOpenAppleDoubleAppleDoublePairFallsBackToPlainDataFork(t *testing.T) {
	sidecar := buildAppleSingle([]adEntrySpec{
		{id: 2, payload: []byte("RESOURCEFORK")},
	})
	// overwrite the magic with the AppleDouble variant.
	binary.BigEndian.PutUint32(sidecar[0:4], appleDoubleMagic)

	plain := []byte("plain data fork bytes")

	ad, err := OpenAppleDouble(bytes.NewReader(plain), bytes.NewReader(sidecar))
	require.NoError(t, err)
	require.NotNil(t, ad.DataFork())
	df, err := io.ReadAll(ad.DataFork())
	require.NoError(t, err)
	assert.Equal(t, string(plain), string(df))
}
