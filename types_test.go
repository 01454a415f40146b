package dirfile

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOSTypeRoundTrip(t *testing.T) {
	tag := NewOSType("RIFX")
	assert.Equal(t, "RIFX", tag.String())
	assert.Equal(t, "XFIR", tag.Swapped().String())
	assert.Equal(t, tag, tag.Swapped().Swapped())
}

func TestOSTypeLiteralPanicsOnBadLength(t *testing.T) {
	assert.Panics(t, func() { NewOSType("abc") })
}

func TestReadOSType(t *testing.T) {
	be := []byte{'R', 'I', 'F', 'X'}
	assert.Equal(t, NewOSType("RIFX"), ReadOSType(be, binary.BigEndian))

	le := []byte{'X', 'F', 'I', 'R'}
	assert.Equal(t, NewOSType("RIFX"), ReadOSType(le, binary.LittleEndian))
}

func TestResourceIdString(t *testing.T) {
	id := NewResourceId(NewOSType("TEXT"), 128)
	assert.Equal(t, "TEXT 128", id.String())
}

func TestChunkIndexValid(t *testing.T) {
	assert.False(t, NoChunk.Valid())
	assert.True(t, ChunkIndex(0).Valid())
	assert.True(t, ChunkIndex(5).Valid())
}

func TestEndiannessByteOrder(t *testing.T) {
	assert.Equal(t, binary.BigEndian, BigEndian.ByteOrder())
	assert.Equal(t, binary.LittleEndian, LittleEndian.ByteOrder())
	assert.Equal(t, "big", BigEndian.String())
	assert.Equal(t, "little", LittleEndian.String())
}

func TestVersionString(t *testing.T) {
	assert.Equal(t, "3", D3.String())
	assert.Equal(t, "7", D7.String())
}

func TestPlatformString(t *testing.T) {
	assert.Equal(t, "mac", PlatformMac.String())
	assert.Equal(t, "windows", PlatformWindows.String())
}
