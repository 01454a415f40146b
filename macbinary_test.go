package dirfile

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildMacBinaryV1 assembles a synthetic MacBinary V1 envelope: a 128-byte
// header naming a data fork and resource fork of the given sizes, followed
// by the fork bytes themselves, block-aligned per the format.
func buildMacBinaryV1(name string, dataFork, resourceFork []byte) []byte {
	var header [128]byte
	header[1] = byte(len(name))
	copy(header[2:], name)
	binary.BigEndian.PutUint32(header[83:87], uint32(len(dataFork)))
	binary.BigEndian.PutUint32(header[87:91], uint32(len(resourceFork)))

	buf := append([]byte(nil), header[:]...)
	buf = append(buf, dataFork...)

	resourceStart := alignPowerOfTwo(uint32(len(dataFork)), macBinaryBlockSize) + macBinaryHeaderSize
	for uint32(len(buf)) < resourceStart {
		buf = append(buf, 0)
	}
	buf = append(buf, resourceFork...)
	return buf
}

func TestOpenMacBinaryV1(t *testing.T) {
	data := buildMacBinaryV1("Hello", []byte("DATA012345"), []byte("RSRC"))

	mb, err := OpenMacBinary(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, "Hello", mb.Name)
	assert.Equal(t, MacBinaryV1, mb.Version)

	require.NotNil(t, mb.DataFork())
	df, err := io.ReadAll(mb.DataFork())
	require.NoError(t, err)
	assert.Equal(t, "DATA012345", string(df))

	require.NotNil(t, mb.ResourceFork())
	rf, err := io.ReadAll(mb.ResourceFork())
	require.NoError(t, err)
	assert.Equal(t, "RSRC", string(rf))
}

func TestOpenMacBinaryBadMagic(t *testing.T) {
	data := make([]byte, 128)
	data[0] = 1 // first reserved byte must be zero
	_, err := OpenMacBinary(bytes.NewReader(data))
	assert.ErrorIs(t, err, ErrBadMagic)
}

func TestOpenMacBinaryTooSmall(t *testing.T) {
	_, err := OpenMacBinary(bytes.NewReader(make([]byte, 10)))
	assert.ErrorIs(t, err, ErrFileTooSmall)
}

func TestOpenMacBinaryNoForksIsInvariantError(t *testing.T) {
	var header [128]byte
	header[1] = 3
	copy(header[2:], "abc")
	// both fork sizes left at zero.
	_, err := OpenMacBinary(bytes.NewReader(header[:]))
	assert.ErrorIs(t, err, ErrInvariant)
}
