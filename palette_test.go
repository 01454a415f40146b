package dirfile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeFramePaletteV5(t *testing.T) {
	data := be(
		MemberId{CastLib: 1, Member: 4},
		int8(30),                  // rate
		PaletteFlagFade,           // flags
		int8(0), int8(-1),         // cycle start/end
		int16(15), int16(2),       // numFrames, numCycles
		uint32(0),                 // padding to 16 bytes
	)
	require.Len(t, data, 16)

	p, err := DecodeFramePalette(data, D5)
	require.NoError(t, err)
	assert.Equal(t, MemberId{CastLib: 1, Member: 4}, p.ID)
	assert.EqualValues(t, 30, p.RateFps)
	assert.True(t, p.Flags.Has(PaletteFlagFade))
	assert.EqualValues(t, 15, p.NumFrames)
}

func TestDecodeFramePaletteV4D4(t *testing.T) {
	data := be(
		MemberNum(7),
		int8(0), int8(-1),
		PaletteFlagCycleAutoReverse,
		int8(20),
		int16(10), int16(1),
		[6]byte{}, // pad the fixed 16-byte record out; trailing bytes are unread
	)
	require.Len(t, data, 16)

	p, err := DecodeFramePalette(data, D4)
	require.NoError(t, err)
	assert.Equal(t, MemberId{CastLib: 1, Member: 7}, p.ID)
	assert.EqualValues(t, 20, p.RateFps)
	assert.True(t, p.Flags.Has(PaletteFlagCycleAutoReverse))
}

func TestDecodeFramePaletteTooSmall(t *testing.T) {
	_, err := DecodeFramePalette(make([]byte, 4), D5)
	assert.ErrorIs(t, err, ErrFileTooSmall)
}
