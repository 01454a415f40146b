package dirfile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeMacStringRoman(t *testing.T) {
	assert.Equal(t, "hello", decodeMacString([]byte("hello"), 0))
}

func TestDecodeMacStringNonRomanPassthrough(t *testing.T) {
	raw := []byte{0x82, 0x83, 0x84}
	assert.Equal(t, string(raw), decodeMacString(raw, 1))
}

func TestDecodeStringListRoundTrip(t *testing.T) {
	data := buildStringList([]string{"alpha", "beta", "gamma"})
	names, err := DecodeStringList(data)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "beta", "gamma"}, names)
}

func TestDecodeStringListTooSmall(t *testing.T) {
	_, err := DecodeStringList([]byte{0})
	assert.ErrorIs(t, err, ErrFileTooSmall)
}

func TestDecodeStringListTruncatedEntry(t *testing.T) {
	data := []byte{0, 1, 5, 'a', 'b'} // claims a 5-byte string but only gives 2
	_, err := DecodeStringList(data)
	assert.ErrorIs(t, err, ErrFileTooSmall)
}
