package dirfile

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// MemberKind is the cast member subtype tag stored in a CASt/CAS*
// member's metadata header, per SPEC_FULL.md §4.12.
type MemberKind uint32

const (
	MemberKindNone MemberKind = iota
	MemberKindBitmap
	MemberKindFilmLoop
	MemberKindField
	MemberKindPalette
	MemberKindPicture
	MemberKindSound
	MemberKindButton
	MemberKindShape
	MemberKindMovie
	MemberKindDigitalVideo
	MemberKindScript
	MemberKindText
	MemberKindOle
	MemberKindTransition
	MemberKindXtra
)

func (k MemberKind) String() string {
	names := [...]string{
		"none", "bitmap", "filmLoop", "field", "palette", "picture",
		"sound", "button", "shape", "movie", "digitalVideo", "script",
		"text", "ole", "transition", "xtra",
	}
	if int(k) < len(names) {
		return names[k]
	}
	return fmt.Sprintf("unknown(%d)", uint32(k))
}

// Point is a QuickDraw-style point: x, y in pixels.
type Point struct{ X, Y int16 }

// RGBColor is a Mac QuickDraw 48-bit color: three 16-bit channels, each
// conventionally the 8-bit value replicated into both bytes.
type RGBColor struct{ Red, Green, Blue uint16 }

// BitmapMeta is a bitmap (or OLE, which reuses the same layout) cast
// member's properties record ("bitmap.rs" Properties).
type BitmapMeta struct {
	RowBytes   int16
	IsPixmap   bool
	Bounds     Rect
	Origin     Point
	Flags      uint8
	ColorDepth uint8
	PaletteID  MemberId
}

// DecodeBitmapMeta decodes a bitmap/OLE member's properties. Valid sizes
// are 22, 26, or 28 bytes.
func DecodeBitmapMeta(data []byte) (BitmapMeta, error) {
	size := len(data)
	if size != 22 && size != 26 && size != 28 {
		return BitmapMeta{}, fmt.Errorf("%w: bad bitmap properties size %d", ErrInvariant, size)
	}
	r := bytes.NewReader(data)
	var m BitmapMeta
	var rowBytesRaw int16
	if err := binary.Read(r, binary.BigEndian, &rowBytesRaw); err != nil {
		return BitmapMeta{}, ErrFileTooSmall
	}
	m.RowBytes = rowBytesRaw & 0x7fff
	m.IsPixmap = rowBytesRaw < 0
	if m.RowBytes&0x7fff >= 0x4000 {
		return BitmapMeta{}, fmt.Errorf("%w: bad bitmap row bytes", ErrInvariant)
	}
	if err := binary.Read(r, binary.BigEndian, &m.Bounds); err != nil {
		return BitmapMeta{}, ErrFileTooSmall
	}
	if _, err := r.Seek(8, 1); err != nil { // unused rect
		return BitmapMeta{}, ErrFileTooSmall
	}
	if err := binary.Read(r, binary.BigEndian, &m.Origin); err != nil {
		return BitmapMeta{}, ErrFileTooSmall
	}

	if size >= 28 {
		if err := binary.Read(r, binary.BigEndian, &m.Flags); err != nil {
			return BitmapMeta{}, ErrFileTooSmall
		}
	}
	if size >= 26 {
		if size == 26 {
			var depth int16
			if err := binary.Read(r, binary.BigEndian, &depth); err != nil {
				return BitmapMeta{}, ErrFileTooSmall
			}
			m.ColorDepth = uint8(depth)
		} else {
			if err := binary.Read(r, binary.BigEndian, &m.ColorDepth); err != nil {
				return BitmapMeta{}, ErrFileTooSmall
			}
		}
		switch m.ColorDepth {
		case 0, 1, 2, 4, 8, 16, 24, 32:
		default:
			return BitmapMeta{}, fmt.Errorf("%w: bad bitmap color depth %d", ErrInvariant, m.ColorDepth)
		}

		if size >= 28 {
			var lib, num int16
			if err := binary.Read(r, binary.BigEndian, &lib); err != nil {
				return BitmapMeta{}, ErrFileTooSmall
			}
			if err := binary.Read(r, binary.BigEndian, &num); err != nil {
				return BitmapMeta{}, ErrFileTooSmall
			}
			m.PaletteID = MemberId{CastLib: MemberNum(lib), Member: MemberNum(num)}
		} else {
			var num int16
			if err := binary.Read(r, binary.BigEndian, &num); err != nil {
				return BitmapMeta{}, ErrFileTooSmall
			}
			m.PaletteID = memberIDFromNum(MemberNum(num))
		}
	}
	return m, nil
}

func memberIDFromNum(num MemberNum) MemberId {
	lib := MemberNum(0)
	if num != 0 {
		lib = 1
	}
	return MemberId{CastLib: lib, Member: num}
}

// FieldFrame is a field/button member's scroll behavior.
type FieldFrame uint8

const (
	FieldFrameFit FieldFrame = iota
	FieldFrameScroll
	FieldFrameFixed
	FieldFrameLimitToFieldSize
)

// FieldAlignment is a field/button member's text alignment.
type FieldAlignment int16

const (
	FieldAlignmentRight  FieldAlignment = -1
	FieldAlignmentLeft   FieldAlignment = 0
	FieldAlignmentCenter FieldAlignment = 1
)

// ButtonKind further distinguishes a button-kind field member.
type ButtonKind uint16

const (
	ButtonKindNone ButtonKind = iota
	ButtonKindButton
	ButtonKindCheckBox
	ButtonKindRadio
)

// FieldMeta is a field (or button, which reuses the same layout plus a
// trailing ButtonKind) cast member's properties ("field.rs" Meta).
type FieldMeta struct {
	BorderSize        uint8
	MarginSize        uint8
	BoxShadowSize     uint8
	Frame             FieldFrame
	Alignment         FieldAlignment
	BackColor         RGBColor
	ScrollTop         int16
	Bounds            Rect
	Height            int16
	TextShadowSize    uint8
	Flags             uint8
	ScrollHeight      int16
	ButtonKind        ButtonKind
	HasButtonKind     bool
}

// DecodeFieldMeta decodes a field member's properties (28 bytes) or a
// button member's properties (30 bytes, trailing ButtonKind).
func DecodeFieldMeta(data []byte) (FieldMeta, error) {
	const fieldSize = 28
	const buttonSize = 30
	if len(data) != fieldSize && len(data) != buttonSize {
		return FieldMeta{}, fmt.Errorf("%w: bad field properties size %d", ErrInvariant, len(data))
	}
	r := bytes.NewReader(data)
	var m FieldMeta
	fields := []any{
		&m.BorderSize, &m.MarginSize, &m.BoxShadowSize, &m.Frame, &m.Alignment,
		&m.BackColor, &m.ScrollTop, &m.Bounds, &m.Height, &m.TextShadowSize,
		&m.Flags, &m.ScrollHeight,
	}
	for _, f := range fields {
		if err := binary.Read(r, binary.BigEndian, f); err != nil {
			return FieldMeta{}, ErrFileTooSmall
		}
	}
	if m.Height != m.Bounds.Bottom-m.Bounds.Top {
		return FieldMeta{}, fmt.Errorf("%w: field height does not match bounds", ErrInvariant)
	}
	if len(data) == buttonSize {
		if err := binary.Read(r, binary.BigEndian, &m.ButtonKind); err != nil {
			return FieldMeta{}, ErrFileTooSmall
		}
		m.HasButtonKind = true
	}
	return m, nil
}

// VideoMeta is a digital video cast member's properties ("video.rs"
// Meta).
type VideoMeta struct {
	Bounds           Rect
	Flags            uint32
	FrameRateMaximum bool
	FrameRateFixed   bool
	FixedFrameRate   uint8
}

// DecodeVideoMeta decodes a digital video member's 12-byte properties.
func DecodeVideoMeta(data []byte) (VideoMeta, error) {
	const videoMetaSize = 12
	const frameRateMaximum = 0x1000
	const frameRateFixed = 0x2000
	if len(data) != videoMetaSize {
		return VideoMeta{}, fmt.Errorf("%w: bad video meta size %d (should be 12)", ErrInvariant, len(data))
	}
	r := bytes.NewReader(data)
	var m VideoMeta
	if err := binary.Read(r, binary.BigEndian, &m.Bounds); err != nil {
		return VideoMeta{}, ErrFileTooSmall
	}
	var value uint32
	if err := binary.Read(r, binary.BigEndian, &value); err != nil {
		return VideoMeta{}, ErrFileTooSmall
	}
	m.Flags = value & 0xffffff
	m.FrameRateMaximum = m.Flags&frameRateMaximum != 0
	m.FrameRateFixed = m.Flags&frameRateFixed != 0
	if m.FrameRateFixed {
		m.FixedFrameRate = uint8(value >> 24)
	}
	return m, nil
}

// TextMeta is a text (RTF, as opposed to field's Mac Styled Text) cast
// member's properties ("text.rs" Meta). Valid only for movies with an
// effective ConfigVersion >= 1217.
type TextMeta struct {
	Bounds               Rect
	Rect2                Rect
	AntiAlias            bool
	Frame                FieldFrame
	Field12              uint16
	AntiAliasMinFontSize int16
	Height               int16
	ForeColor            uint32
	BackColor            RGBColor
}

// DecodeTextMeta decodes a text member's 34-byte properties.
func DecodeTextMeta(data []byte) (TextMeta, error) {
	const textMetaSize = 34
	if len(data) != textMetaSize {
		return TextMeta{}, fmt.Errorf("%w: bad text meta size %d", ErrInvariant, len(data))
	}
	r := bytes.NewReader(data)
	var m TextMeta
	var antiAlias uint8
	if err := binary.Read(r, binary.BigEndian, &m.Bounds); err != nil {
		return TextMeta{}, ErrFileTooSmall
	}
	if err := binary.Read(r, binary.BigEndian, &m.Rect2); err != nil {
		return TextMeta{}, ErrFileTooSmall
	}
	for _, f := range []any{&antiAlias, &m.Frame, &m.Field12, &m.AntiAliasMinFontSize, &m.Height, &m.ForeColor, &m.BackColor} {
		if err := binary.Read(r, binary.BigEndian, f); err != nil {
			return TextMeta{}, ErrFileTooSmall
		}
	}
	m.AntiAlias = antiAlias != 0
	return m, nil
}

// TransitionKind selects one of the built-in wipe/dissolve/cover/reveal
// transition styles, or Xtra for a third-party transition.
type TransitionKind uint8

const TransitionKindXtra TransitionKind = 0

// TransitionMeta is a transition cast member's properties
// ("transition.rs" Properties).
type TransitionMeta struct {
	LegacyDurationQuarterSeconds uint8
	ChunkSize                    uint8
	Kind                         TransitionKind
	Flags                        uint8
	DurationMilliseconds         int16
	Xtra                         *XtraMeta
}

const transitionFlagStandard = 2

// DecodeTransitionMeta decodes a transition member's properties; a
// trailing XtraMeta is present unless the Standard flag is set.
func DecodeTransitionMeta(data []byte) (TransitionMeta, error) {
	const fixedSize = 6
	if len(data) < fixedSize {
		return TransitionMeta{}, fmt.Errorf("%w: bad transition properties size %d", ErrInvariant, len(data))
	}
	r := bytes.NewReader(data[:fixedSize])
	var m TransitionMeta
	for _, f := range []any{&m.LegacyDurationQuarterSeconds, &m.ChunkSize, &m.Kind, &m.Flags, &m.DurationMilliseconds} {
		if err := binary.Read(r, binary.BigEndian, f); err != nil {
			return TransitionMeta{}, ErrFileTooSmall
		}
	}
	if m.ChunkSize == 0 || m.ChunkSize > 128 {
		return TransitionMeta{}, fmt.Errorf("%w: bad transition chunk size %d", ErrInvariant, m.ChunkSize)
	}
	if m.Flags&transitionFlagStandard == 0 {
		xtra, err := DecodeXtraMeta(data[fixedSize:])
		if err != nil {
			return TransitionMeta{}, err
		}
		m.Xtra = &xtra
	}
	return m, nil
}

// XtraMeta is an Xtra reference cast member's (or an embedded Xtra
// transition's) properties ("xtra.rs" Properties): a named Xtra symbol
// plus an opaque configuration blob.
type XtraMeta struct {
	SymbolName string
	Data       []byte
}

// DecodeXtraMeta decodes an Xtra reference's properties.
func DecodeXtraMeta(data []byte) (XtraMeta, error) {
	if len(data) < 4 {
		return XtraMeta{}, ErrFileTooSmall
	}
	nameSize := binary.BigEndian.Uint32(data[0:4])
	if uint64(4+nameSize) > uint64(len(data)) {
		return XtraMeta{}, fmt.Errorf("%w: xtra properties symbol name too big", ErrInvariant)
	}
	name := string(data[4 : 4+nameSize])
	rest := data[4+nameSize:]
	if len(rest) < 4 {
		return XtraMeta{}, ErrFileTooSmall
	}
	dataSize := binary.BigEndian.Uint32(rest[0:4])
	if uint64(4+dataSize) > uint64(len(rest)) {
		return XtraMeta{}, fmt.Errorf("%w: xtra properties data too big", ErrInvariant)
	}
	return XtraMeta{SymbolName: name, Data: append([]byte(nil), rest[4:4+dataSize]...)}, nil
}

// MemberMetadata is the per-kind properties payload of a cast member.
// Director's original format represents this as a tagged union; kinds
// whose wire layout was never implemented in the original source this
// module is grounded on (FilmLoop, Movie, Script, Shape — see DESIGN.md)
// are carried as an opaque byte blob rather than a structured type.
type MemberMetadata struct {
	Kind       MemberKind
	Bitmap     *BitmapMeta
	Field      *FieldMeta
	Video      *VideoMeta
	Text       *TextMeta
	Ole        *BitmapMeta
	Transition *TransitionMeta
	Xtra       *XtraMeta
	Raw        []byte
}

// DecodeMemberMetadata decodes a member's metadata blob given the kind
// recorded in its MemberMeta header.
func DecodeMemberMetadata(kind MemberKind, data []byte) (MemberMetadata, error) {
	m := MemberMetadata{Kind: kind}
	switch kind {
	case MemberKindNone, MemberKindPalette, MemberKindPicture, MemberKindSound:
		// No structured payload in the original format.
	case MemberKindBitmap:
		v, err := DecodeBitmapMeta(data)
		if err != nil {
			return MemberMetadata{}, err
		}
		m.Bitmap = &v
	case MemberKindOle:
		v, err := DecodeBitmapMeta(data)
		if err != nil {
			return MemberMetadata{}, err
		}
		m.Ole = &v
	case MemberKindField, MemberKindButton:
		v, err := DecodeFieldMeta(data)
		if err != nil {
			return MemberMetadata{}, err
		}
		m.Field = &v
	case MemberKindDigitalVideo:
		v, err := DecodeVideoMeta(data)
		if err != nil {
			return MemberMetadata{}, err
		}
		m.Video = &v
	case MemberKindText:
		v, err := DecodeTextMeta(data)
		if err != nil {
			return MemberMetadata{}, err
		}
		m.Text = &v
	case MemberKindTransition:
		v, err := DecodeTransitionMeta(data)
		if err != nil {
			return MemberMetadata{}, err
		}
		m.Transition = &v
	case MemberKindXtra:
		v, err := DecodeXtraMeta(data)
		if err != nil {
			return MemberMetadata{}, err
		}
		m.Xtra = &v
	default:
		m.Raw = append([]byte(nil), data...)
	}
	return m, nil
}

// MemberMeta is a cast member's fixed-size header identifying its kind and
// the size of its following info ("VWCI") and metadata ("VWCR") payloads.
type MemberMeta struct {
	Kind     MemberKind
	InfoSize uint32
	MetaSize uint32
}

// DecodeMemberMetaV5 decodes a D5+ (ConfigVersion >= 1201) 12-byte member
// header.
func DecodeMemberMetaV5(data []byte) (MemberMeta, error) {
	if len(data) < 12 {
		return MemberMeta{}, ErrFileTooSmall
	}
	return MemberMeta{
		Kind:     MemberKind(binary.BigEndian.Uint32(data[0:4])),
		InfoSize: binary.BigEndian.Uint32(data[4:8]),
		MetaSize: binary.BigEndian.Uint32(data[8:12]),
	}, nil
}

// DecodeMemberMetaV4 decodes a pre-D5 7-byte member header.
func DecodeMemberMetaV4(data []byte) (MemberMeta, error) {
	if len(data) < 7 {
		return MemberMeta{}, ErrFileTooSmall
	}
	return MemberMeta{
		MetaSize: uint32(binary.BigEndian.Uint16(data[2:4])),
		InfoSize: uint32(binary.BigEndian.Uint16(data[4:6])),
		Kind:     MemberKind(data[6]),
	}, nil
}

// Member is one fully decoded cast member: its RIFF chunk index, the
// "VWCI"-derived info (filename/path/script text, via MemberInfo's PVec),
// and its "VWCR"-derived per-kind metadata.
type Member struct {
	ChunkIndex ChunkIndex
	Info       *MemberInfo
	Metadata   MemberMetadata
}

// DecodeMember decodes one CASt/CAS* cast member record: a MemberMeta
// header (7 bytes before ConfigVersion 1201, else 12), followed by an
// info blob of InfoSize bytes and a metadata blob of MetaSize bytes.
func DecodeMember(data []byte, index ChunkIndex, version ConfigVersion) (*Member, error) {
	var meta MemberMeta
	var err error
	var headerSize int
	if version < ConfigVersion1201 {
		meta, err = DecodeMemberMetaV4(data)
		headerSize = 7
	} else {
		meta, err = DecodeMemberMetaV5(data)
		headerSize = 12
	}
	if err != nil {
		return nil, err
	}
	if headerSize+int(meta.InfoSize)+int(meta.MetaSize) > len(data) {
		return nil, ErrFileTooSmall
	}

	infoBytes := data[headerSize : headerSize+int(meta.InfoSize)]
	metaBytes := data[headerSize+int(meta.InfoSize) : headerSize+int(meta.InfoSize)+int(meta.MetaSize)]

	var info *MemberInfo
	if len(infoBytes) > 0 {
		info, err = DecodeMemberInfo(infoBytes)
		if err != nil {
			return nil, fmt.Errorf("can't read cast member info: %w", err)
		}
	}

	metadata, err := DecodeMemberMetadata(meta.Kind, metaBytes)
	if err != nil {
		return nil, fmt.Errorf("can't read %s cast member metadata: %w", meta.Kind, err)
	}

	return &Member{ChunkIndex: index, Info: info, Metadata: metadata}, nil
}
