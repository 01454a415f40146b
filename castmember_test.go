package dirfile

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func be(vals ...any) []byte {
	var buf bytes.Buffer
	for _, v := range vals {
		if err := binary.Write(&buf, binary.BigEndian, v); err != nil {
			panic(err)
		}
	}
	return buf.Bytes()
}

func TestDecodeBitmapMeta22(t *testing.T) {
	data := be(
		int16(40), // rowBytes, not a pixmap
		Rect{Top: 0, Left: 0, Bottom: 10, Right: 20},
		Rect{}, // unused
		Point{X: 1, Y: 2},
	)
	require.Len(t, data, 22)

	m, err := DecodeBitmapMeta(data)
	require.NoError(t, err)
	assert.EqualValues(t, 40, m.RowBytes)
	assert.False(t, m.IsPixmap)
	assert.Equal(t, Point{X: 1, Y: 2}, m.Origin)
}

func TestDecodeBitmapMeta28(t *testing.T) {
	data := be(
		int16(-32668), // high bit set (pixmap) with low 15 bits = 100
		Rect{Top: 0, Left: 0, Bottom: 10, Right: 20},
		Rect{},
		Point{X: 0, Y: 0},
		uint8(0x01),  // flags
		uint8(8),     // color depth
		int16(1), int16(5), // palette lib/num
	)
	require.Len(t, data, 28)

	m, err := DecodeBitmapMeta(data)
	require.NoError(t, err)
	assert.True(t, m.IsPixmap)
	assert.EqualValues(t, 100, m.RowBytes)
	assert.EqualValues(t, 8, m.ColorDepth)
	assert.Equal(t, MemberId{CastLib: 1, Member: 5}, m.PaletteID)
}

func TestDecodeBitmapMetaBadSize(t *testing.T) {
	_, err := DecodeBitmapMeta(make([]byte, 23))
	assert.ErrorIs(t, err, ErrInvariant)
}

func TestDecodeBitmapMetaBadColorDepth(t *testing.T) {
	data := be(
		int16(10),
		Rect{},
		Rect{},
		Point{},
		int16(3), // bad depth (26-byte form stores depth as int16)
		int16(0), // palette num
	)
	require.Len(t, data, 26)
	_, err := DecodeBitmapMeta(data)
	assert.ErrorIs(t, err, ErrInvariant)
}

func TestDecodeFieldMeta(t *testing.T) {
	bounds := Rect{Top: 10, Left: 0, Bottom: 30, Right: 100}
	data := be(
		uint8(1), uint8(2), uint8(0),
		FieldFrameScroll, FieldAlignmentCenter,
		RGBColor{}, int16(0), bounds,
		int16(20), // height == bottom-top
		uint8(0), uint8(0), int16(0),
	)
	require.Len(t, data, 28)

	m, err := DecodeFieldMeta(data)
	require.NoError(t, err)
	assert.False(t, m.HasButtonKind)
	assert.Equal(t, FieldFrameScroll, m.Frame)
	assert.Equal(t, FieldAlignmentCenter, m.Alignment)
}

func TestDecodeFieldMetaButton(t *testing.T) {
	bounds := Rect{Top: 0, Left: 0, Bottom: 12, Right: 60}
	data := be(
		uint8(0), uint8(0), uint8(0),
		FieldFrameFit, FieldAlignmentLeft,
		RGBColor{}, int16(0), bounds,
		int16(12),
		uint8(0), uint8(0), int16(0),
		ButtonKindCheckBox,
	)
	require.Len(t, data, 30)

	m, err := DecodeFieldMeta(data)
	require.NoError(t, err)
	assert.True(t, m.HasButtonKind)
	assert.Equal(t, ButtonKindCheckBox, m.ButtonKind)
}

func TestDecodeFieldMetaHeightMismatch(t *testing.T) {
	bounds := Rect{Top: 10, Left: 0, Bottom: 30, Right: 100}
	data := be(
		uint8(0), uint8(0), uint8(0),
		FieldFrameFit, FieldAlignmentLeft,
		RGBColor{}, int16(0), bounds,
		int16(99), // wrong
		uint8(0), uint8(0), int16(0),
	)
	_, err := DecodeFieldMeta(data)
	assert.ErrorIs(t, err, ErrInvariant)
}

func TestDecodeVideoMeta(t *testing.T) {
	data := be(
		Rect{Top: 0, Left: 0, Bottom: 240, Right: 320},
		uint32(0x2a_002000), // fixed rate bit set, fixed rate byte 0x2a in top byte
	)
	require.Len(t, data, 12)

	m, err := DecodeVideoMeta(data)
	require.NoError(t, err)
	assert.True(t, m.FrameRateFixed)
	assert.False(t, m.FrameRateMaximum)
	assert.EqualValues(t, 0x2a, m.FixedFrameRate)
}

func TestDecodeVideoMetaBadSize(t *testing.T) {
	_, err := DecodeVideoMeta(make([]byte, 10))
	assert.ErrorIs(t, err, ErrInvariant)
}

func TestDecodeTextMeta(t *testing.T) {
	data := be(
		Rect{Top: 0, Left: 0, Bottom: 20, Right: 200},
		Rect{Top: 0, Left: 0, Bottom: 20, Right: 200},
		uint8(1), FieldFrameFixed, uint16(0),
		int16(9), int16(20), uint32(0), RGBColor{Red: 0xffff, Green: 0xffff, Blue: 0xffff},
	)
	require.Len(t, data, 34)

	m, err := DecodeTextMeta(data)
	require.NoError(t, err)
	assert.True(t, m.AntiAlias)
	assert.Equal(t, FieldFrameFixed, m.Frame)
	assert.EqualValues(t, 20, m.Height)
}

func TestDecodeTransitionMetaStandard(t *testing.T) {
	data := be(uint8(4), uint8(16), TransitionKind(5), uint8(transitionFlagStandard), int16(500))
	m, err := DecodeTransitionMeta(data)
	require.NoError(t, err)
	assert.Nil(t, m.Xtra)
	assert.EqualValues(t, 16, m.ChunkSize)
}

func TestDecodeTransitionMetaWithXtra(t *testing.T) {
	xtra := be(uint32(6), []byte("myxtra"), uint32(2), []byte{0xAB, 0xCD})
	head := be(uint8(4), uint8(16), TransitionKind(0), uint8(0), int16(250))
	data := append(head, xtra...)

	m, err := DecodeTransitionMeta(data)
	require.NoError(t, err)
	require.NotNil(t, m.Xtra)
	assert.Equal(t, "myxtra", m.Xtra.SymbolName)
}

func TestDecodeTransitionMetaBadChunkSize(t *testing.T) {
	data := be(uint8(4), uint8(0), TransitionKind(5), uint8(transitionFlagStandard), int16(500))
	_, err := DecodeTransitionMeta(data)
	assert.ErrorIs(t, err, ErrInvariant)
}

func TestDecodeXtraMeta(t *testing.T) {
	data := be(uint32(4), []byte("abcd"), uint32(3), []byte{1, 2, 3})
	m, err := DecodeXtraMeta(data)
	require.NoError(t, err)
	assert.Equal(t, "abcd", m.SymbolName)
	assert.Equal(t, []byte{1, 2, 3}, m.Data)
}

func TestDecodeXtraMetaTruncated(t *testing.T) {
	data := be(uint32(100), []byte("short"))
	_, err := DecodeXtraMeta(data)
	assert.ErrorIs(t, err, ErrInvariant)
}

func TestDecodeMemberMetadataUnimplementedKindRaw(t *testing.T) {
	raw := []byte{1, 2, 3, 4, 5}
	m, err := DecodeMemberMetadata(MemberKindFilmLoop, raw)
	require.NoError(t, err)
	assert.Equal(t, raw, m.Raw)
	assert.Nil(t, m.Bitmap)
}

func TestDecodeMemberMetaV5(t *testing.T) {
	data := be(uint32(MemberKindBitmap), uint32(10), uint32(20))
	m, err := DecodeMemberMetaV5(data)
	require.NoError(t, err)
	assert.Equal(t, MemberKindBitmap, m.Kind)
	assert.EqualValues(t, 10, m.InfoSize)
	assert.EqualValues(t, 20, m.MetaSize)
}

func TestDecodeMemberMetaV4(t *testing.T) {
	data := []byte{0, 0, 0, 7, 0, 3, byte(MemberKindScript)}
	m, err := DecodeMemberMetaV4(data)
	require.NoError(t, err)
	assert.Equal(t, MemberKindScript, m.Kind)
	assert.EqualValues(t, 7, m.MetaSize)
	assert.EqualValues(t, 3, m.InfoSize)
}

func TestDecodeMember(t *testing.T) {
	info := buildPVec(binary.BigEndian, nil, [][]byte{{}, []byte("Bob")})
	meta := be(
		int16(10),
		Rect{Top: 0, Left: 0, Bottom: 5, Right: 5},
		Rect{},
		Point{},
	)
	header := be(uint32(MemberKindBitmap), uint32(len(info)), uint32(len(meta)))
	data := append(append(header, info...), meta...)

	member, err := DecodeMember(data, ChunkIndex(4), ConfigVersion1201)
	require.NoError(t, err)
	assert.Equal(t, ChunkIndex(4), member.ChunkIndex)
	require.NotNil(t, member.Metadata.Bitmap)
	name, ok := member.Info.Name()
	assert.True(t, ok)
	assert.Equal(t, "Bob", name)
}
