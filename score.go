package dirfile

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// SpriteKind is a score sprite's channel content type.
type SpriteKind uint8

const (
	SpriteKindNone SpriteKind = iota
	SpriteKindBitmap
	SpriteKindRect
	SpriteKindRoundRect
	SpriteKindOval
	SpriteKindLineDown
	SpriteKindLineUp
	SpriteKindField
	SpriteKindButton
	SpriteKindCheckBox
	SpriteKindRadioButton
	SpriteKindPicture
	SpriteKindRectOutline
	SpriteKindRoundRectOutline
	SpriteKindOvalOutline
	SpriteKindLineMaybe
	SpriteKindCast
	SpriteKindText
	SpriteKindScript
)

// fixLegacySpriteKind collapses the pre-D7 cast-backed sprite kinds
// (bitmap, field, button, checkbox, radio button, picture, text) onto
// the single generic Cast kind D5/D6 use for all of them.
func fixLegacySpriteKind(kind SpriteKind) SpriteKind {
	switch kind {
	case SpriteKindBitmap, SpriteKindField, SpriteKindButton, SpriteKindCheckBox,
		SpriteKindRadioButton, SpriteKindPicture, SpriteKindCast, SpriteKindText:
		return SpriteKindCast
	default:
		return kind
	}
}

// SpriteInkFlags holds a sprite's ink-effect bit flags.
type SpriteInkFlags uint8

const (
	SpriteInkKindMask SpriteInkFlags = 0x3f
	SpriteInkTrails   SpriteInkFlags = 0x40
	SpriteInkStretch  SpriteInkFlags = 0x80
)

// SpriteScoreColorFlags holds a sprite's score-color bit flags.
type SpriteScoreColorFlags uint8

const (
	SpriteScoreColorMask     SpriteScoreColorFlags = 0xf
	SpriteScoreColorEditable SpriteScoreColorFlags = 0x40
	SpriteScoreColorMoveable SpriteScoreColorFlags = 0x80
)

// Sprite is one of a score frame's channel entries describing a single
// placed cast member, per SPEC_FULL.md §4.12 ("sprite.rs" Sprite).
type Sprite struct {
	Kind               SpriteKind
	Ink                SpriteInkFlags
	ID                 MemberId
	Script             MemberId
	ForeColorIndex     uint8
	BackColorIndex     uint8
	Origin             Point
	Height             int16
	Width              int16
	ScoreColor         SpriteScoreColorFlags
	BlendAmount        uint8
	LineSizeAndFlags   uint8
}

// spriteCellSize is the fixed on-disk stride of one sprite channel slot:
// 20 bytes before D5 (Sprite::V0_SIZE), 24 bytes from D5 on
// (Sprite::V5_SIZE).
func spriteCellSize(version Version) int {
	if version < D5 {
		return 20
	}
	return 24
}

// DecodeSprite decodes one channel entry of a score frame.
func DecodeSprite(data []byte, version Version) (Sprite, error) {
	switch {
	case version == D3:
		return decodeSpriteV3(data)
	case version == D4:
		return decodeSpriteV4(data)
	default:
		return decodeSpriteV5(data, version)
	}
}

func decodeSpriteV3(data []byte) (Sprite, error) {
	if len(data) < 16 {
		return Sprite{}, ErrFileTooSmall
	}
	r := bytes.NewReader(data)
	var script uint8
	var kind SpriteKind
	var s Sprite
	var id MemberNum
	for _, f := range []any{&script, &kind, &s.ForeColorIndex, &s.BackColorIndex, &s.LineSizeAndFlags, &s.Ink, &id, &s.Origin, &s.Height} {
		if err := binary.Read(r, binary.BigEndian, f); err != nil {
			return Sprite{}, ErrFileTooSmall
		}
	}
	s.Kind = fixLegacySpriteKind(kind)
	s.ID = memberIDFromNum(id)
	return s, nil
}

func decodeSpriteV4(data []byte) (Sprite, error) {
	if len(data) < 20 {
		return Sprite{}, ErrFileTooSmall
	}
	r := bytes.NewReader(data)
	var field0 uint8
	var kind SpriteKind
	var s Sprite
	var id, script MemberNum
	for _, f := range []any{&field0, &kind, &s.ForeColorIndex, &s.BackColorIndex, &s.LineSizeAndFlags, &s.Ink,
		&id, &s.Origin, &s.Height, &s.Width, &script, &s.ScoreColor, &s.BlendAmount} {
		if err := binary.Read(r, binary.BigEndian, f); err != nil {
			return Sprite{}, ErrFileTooSmall
		}
	}
	s.Kind = fixLegacySpriteKind(kind)
	s.ID = memberIDFromNum(id)
	s.Script = memberIDFromNum(script)
	return s, nil
}

func decodeSpriteV5(data []byte, version Version) (Sprite, error) {
	if len(data) < 24 {
		return Sprite{}, ErrFileTooSmall
	}
	r := bytes.NewReader(data)
	var kind SpriteKind
	var s Sprite
	for _, f := range []any{&kind, &s.Ink, &s.ID, &s.Script, &s.ForeColorIndex, &s.BackColorIndex,
		&s.Origin, &s.Height, &s.Width, &s.ScoreColor, &s.BlendAmount, &s.LineSizeAndFlags} {
		if err := binary.Read(r, binary.BigEndian, f); err != nil {
			return Sprite{}, ErrFileTooSmall
		}
	}
	if version == D7 {
		s.Kind = kind
	} else {
		s.Kind = fixLegacySpriteKind(kind)
	}
	return s, nil
}

// FrameTransitionKind selects how a score frame's transition field
// should be interpreted.
type FrameTransitionKind int

const (
	FrameTransitionNone FrameTransitionKind = iota
	FrameTransitionCast
	FrameTransitionLegacyTempo
	FrameTransitionLegacy
)

// FrameTransition is a score frame's scene-transition instruction
// ("transition.rs" in the player/score package, distinct from the
// Xtra-backed transition cast member metadata in castmember.go).
type FrameTransition struct {
	Kind             FrameTransitionKind
	Cast             MemberId
	Tempo            Tempo
	ChunkSize        uint8
	WhichTransition  TransitionKind
	QuarterSeconds   uint8
	ChangeArea       bool
}

// DecodeFrameTransition decodes the 4-byte transition field embedded in
// every score frame header.
func DecodeFrameTransition(data [4]byte, version Version) (FrameTransition, error) {
	if version < D6 {
		if data[3] == 0 {
			if data[2] == 0 {
				return FrameTransition{Kind: FrameTransitionNone}, nil
			}
			tempo, err := NewTempo(int16(int8(data[2])))
			if err != nil {
				return FrameTransition{}, err
			}
			return FrameTransition{Kind: FrameTransitionLegacyTempo, Tempo: tempo}, nil
		}
		tempo, err := NewTempo(int16(int8(data[2])))
		if err != nil {
			return FrameTransition{}, err
		}
		return FrameTransition{
			Kind:            FrameTransitionLegacy,
			ChunkSize:       data[1],
			WhichTransition: TransitionKind(data[3]),
			QuarterSeconds:  data[0] &^ 0x80,
			ChangeArea:      data[0]&0x80 != 0,
			Tempo:           tempo,
		}, nil
	}
	if data == [4]byte{} {
		return FrameTransition{Kind: FrameTransitionNone}, nil
	}
	return FrameTransition{
		Kind: FrameTransitionCast,
		Cast: MemberId{CastLib: MemberNum(binary.BigEndian.Uint16(data[0:2])), Member: MemberNum(binary.BigEndian.Uint16(data[2:4]))},
	}, nil
}

// effectiveTempo returns the tempo implied by a pre-D6 transition field,
// or a zero Tempo if the transition carries none (the D6+ explicit
// tempo byte takes precedence in that case; see DecodeFrame).
func (t FrameTransition) effectiveTempo() Tempo {
	switch t.Kind {
	case FrameTransitionLegacy, FrameTransitionLegacyTempo:
		return t.Tempo
	default:
		return Tempo{Kind: TempoInherit}
	}
}

// Frame is one score frame: per-channel script/sound/transition
// instructions and the array of sprites occupying every channel, per
// SPEC_FULL.md §4.12 ("frame.rs" Frame).
type Frame struct {
	Script          MemberId
	Sound1          MemberId
	Sound2          MemberId
	Transition      FrameTransition
	TempoRelated    uint8
	Sound1Related   uint8
	Sound2Related   uint8
	ScriptRelated   uint8
	TransitionRelated uint8
	Tempo           Tempo
	Palette         FramePalette
	Sprites         []Sprite
}

// frameHeaderCells is the number of sprite-sized cells a score frame's
// header occupies ahead of the per-sprite channel data: two cells,
// regardless of version, per Frame::V0_SIZE_IN_CELLS/V5_SIZE_IN_CELLS
// both exceeding their respective channel counts by exactly 2.
const frameHeaderCells = 2

// frameCellCount returns the number of populated sprite channels for
// version: 48 for every version.
func frameCellCount(version Version) int {
	return 48
}

// DecodeFrame decodes one score frame from its delta-reconstructed raw
// bytes (see Score.Next).
func DecodeFrame(data []byte, version Version) (Frame, error) {
	cellSize := spriteCellSize(version)
	headerSize := cellSize * frameHeaderCells
	if len(data) < headerSize {
		return Frame{}, ErrFileTooSmall
	}

	var f Frame
	var err error
	switch {
	case version == D3:
		err = decodeFrameHeaderV3(data, &f)
	case version == D4:
		err = decodeFrameHeaderV4(data, &f)
	default:
		err = decodeFrameHeaderV5(data, &f, version)
	}
	if err != nil {
		return Frame{}, err
	}

	count := frameCellCount(version)
	f.Sprites = make([]Sprite, count)
	for i := 0; i < count; i++ {
		start := headerSize + i*cellSize
		end := start + cellSize
		if end > len(data) {
			return Frame{}, ErrFileTooSmall
		}
		sprite, err := DecodeSprite(data[start:end], version)
		if err != nil {
			return Frame{}, fmt.Errorf("can't read frame sprite %d: %w", i, err)
		}
		f.Sprites[i] = sprite
	}
	return f, nil
}

func decodeFrameHeaderV3(data []byte, f *Frame) error {
	r := bytes.NewReader(data)
	var script, sound1Kind, sound2Kind uint8
	var transition [4]byte
	var sound1, sound2 MemberNum
	for _, fld := range []any{&script, &sound1Kind, &transition, &sound1, &sound2, &sound2Kind} {
		if err := binary.Read(r, binary.BigEndian, fld); err != nil {
			return ErrFileTooSmall
		}
	}
	trans, err := DecodeFrameTransition(transition, D3)
	if err != nil {
		return err
	}
	f.Transition = trans
	f.Tempo = trans.effectiveTempo()
	f.Sound1 = memberIDFromNum(sound1)
	f.Sound2 = memberIDFromNum(sound2)

	const paletteOffset = 16
	if len(data) >= paletteOffset+16 {
		palette, err := DecodeFramePalette(data[paletteOffset:paletteOffset+16], D3)
		if err == nil {
			f.Palette = palette
		}
	}
	return nil
}

func decodeFrameHeaderV4(data []byte, f *Frame) error {
	r := bytes.NewReader(data)
	var field0 uint16
	var transition [4]byte
	var sound1, sound2, script MemberNum
	var fieldA, fieldB, fieldC, tempoRelated, sound1Related, sound2Related, scriptRelated, transitionRelated uint8
	for _, fld := range []any{&field0, &transition, &sound1, &sound2, &fieldA, &fieldB, &fieldC,
		&tempoRelated, &sound1Related, &sound2Related, &script, &scriptRelated, &transitionRelated} {
		if err := binary.Read(r, binary.BigEndian, fld); err != nil {
			return ErrFileTooSmall
		}
	}
	trans, err := DecodeFrameTransition(transition, D4)
	if err != nil {
		return err
	}
	f.Transition = trans
	f.Tempo = trans.effectiveTempo()
	f.Sound1 = memberIDFromNum(sound1)
	f.Sound2 = memberIDFromNum(sound2)
	f.Script = memberIDFromNum(script)
	f.TempoRelated = tempoRelated
	f.Sound1Related = sound1Related
	f.Sound2Related = sound2Related
	f.ScriptRelated = scriptRelated
	f.TransitionRelated = transitionRelated

	const paletteOffset = 20
	if len(data) >= paletteOffset+16 {
		palette, err := DecodeFramePalette(data[paletteOffset:paletteOffset+16], D4)
		if err == nil {
			f.Palette = palette
		}
	}
	return nil
}

func decodeFrameHeaderV5(data []byte, f *Frame, version Version) error {
	r := bytes.NewReader(data)
	var transition [4]byte
	var tempoRelated, sound1Related, sound2Related, scriptRelated, transitionRelated uint8
	for _, fld := range []any{&f.Script, &f.Sound1, &f.Sound2, &transition,
		&tempoRelated, &sound1Related, &sound2Related, &scriptRelated, &transitionRelated} {
		if err := binary.Read(r, binary.BigEndian, fld); err != nil {
			return ErrFileTooSmall
		}
	}
	trans, err := DecodeFrameTransition(transition, version)
	if err != nil {
		return err
	}
	f.Transition = trans
	f.TempoRelated = tempoRelated
	f.Sound1Related = sound1Related
	f.Sound2Related = sound2Related
	f.ScriptRelated = scriptRelated
	f.TransitionRelated = transitionRelated

	if version >= D6 {
		var raw int8
		if err := binary.Read(r, binary.BigEndian, &raw); err != nil {
			return ErrFileTooSmall
		}
		tempo, err := NewTempo(int16(raw))
		if err != nil {
			return err
		}
		f.Tempo = tempo
	} else {
		f.Tempo = trans.effectiveTempo()
	}

	const paletteOffset = 24
	if len(data) >= paletteOffset+16 {
		palette, err := DecodeFramePalette(data[paletteOffset:paletteOffset+16], version)
		if err == nil {
			f.Palette = palette
		}
	}
	return nil
}

// ScoreHeader is a "VWSC" resource's fixed-size leading header.
type ScoreHeader struct {
	OwnSize       uint32
	HeaderSize    uint32
	FrameCount    uint32
	ScoreVersion  Version
}

const scoreHeaderV5Size = 20

// DecodeScoreHeader decodes a "VWSC" resource's header, choosing the D3
// or D4+ shape based on the owning movie's ConfigVersion.
func DecodeScoreHeader(data []byte, configVersion ConfigVersion) (ScoreHeader, int, error) {
	if configVersion < ConfigVersion1113 {
		if len(data) < 4 {
			return ScoreHeader{}, 0, ErrFileTooSmall
		}
		ownSize := binary.BigEndian.Uint32(data[0:4])
		if ownSize > uint32(len(data)) {
			return ScoreHeader{}, 0, fmt.Errorf("%w: score recorded size %d larger than actual size %d", ErrInvariant, ownSize, len(data))
		}
		return ScoreHeader{OwnSize: ownSize, ScoreVersion: D3}, 4, nil
	}

	if len(data) < scoreHeaderV5Size {
		return ScoreHeader{}, 0, ErrFileTooSmall
	}
	r := bytes.NewReader(data)
	var h ScoreHeader
	var frameCellSize, frameCellCountField uint16
	var field12, field13 uint8
	var version int16
	for _, f := range []any{&h.OwnSize, &h.HeaderSize, &h.FrameCount, &version, &frameCellSize, &frameCellCountField, &field12, &field13} {
		if err := binary.Read(r, binary.BigEndian, f); err != nil {
			return ScoreHeader{}, 0, ErrFileTooSmall
		}
	}
	if h.OwnSize > uint32(len(data)) {
		return ScoreHeader{}, 0, fmt.Errorf("%w: score recorded size %d larger than actual size %d", ErrInvariant, h.OwnSize, len(data))
	}
	if h.HeaderSize != scoreHeaderV5Size {
		return ScoreHeader{}, 0, fmt.Errorf("%w: invalid V0-V7 score header size %d", ErrInvariant, h.HeaderSize)
	}
	h.ScoreVersion = Version(version)
	if h.ScoreVersion < D4 || h.ScoreVersion > D7 {
		return ScoreHeader{}, 0, fmt.Errorf("%w: bad score version %d", ErrInvariant, version)
	}
	if field12 != 0 && field12 != 1 {
		return ScoreHeader{}, 0, fmt.Errorf("%w: unexpected score field_12 %d", ErrInvariant, field12)
	}
	if field13 != 0 {
		return ScoreHeader{}, 0, fmt.Errorf("%w: unexpected score field_13 %d", ErrInvariant, field13)
	}
	return h, scoreHeaderV5Size, nil
}

// Score is a decoded "VWSC" resource: its header plus a cursor over the
// frame-delta stream that follows it.
type Score struct {
	Header  ScoreHeader
	data    []byte
	pos     int
	lastRaw []byte
}

// DecodeScore decodes a "VWSC" resource's header and prepares its frame
// stream for iteration via Next.
func DecodeScore(data []byte, configVersion ConfigVersion) (*Score, error) {
	header, headerLen, err := DecodeScoreHeader(data, configVersion)
	if err != nil {
		return nil, err
	}
	cellSize := spriteCellSize(header.ScoreVersion)
	rawFrameSize := cellSize * (frameCellCount(header.ScoreVersion) + frameHeaderCells)
	return &Score{
		Header:  header,
		data:    data,
		pos:     headerLen,
		lastRaw: make([]byte, rawFrameSize),
	}, nil
}

// Next decodes the next frame delta in the stream, carrying forward
// unchanged bytes from the previous frame. It returns (nil, nil) when the stream is exhausted.
func (s *Score) Next() (*Frame, error) {
	if s.pos >= len(s.data) {
		return nil, nil
	}
	if s.pos+2 > len(s.data) {
		return nil, ErrFileTooSmall
	}
	bytesToRead := int(int16(binary.BigEndian.Uint16(s.data[s.pos : s.pos+2])))
	s.pos += 2

	if s.Header.ScoreVersion < D4 {
		bytesToRead -= 2
		if bytesToRead < 0 {
			bytesToRead = 0
		}
	} else {
		if bytesToRead <= 1 {
			return nil, fmt.Errorf("%w: invalid compressed score frame size %d", ErrInvariant, bytesToRead)
		}
		bytesToRead -= 2
	}

	newData := append([]byte(nil), s.lastRaw...)
	for bytesToRead > 0 {
		var chunkSize, chunkOffset int
		if s.Header.ScoreVersion < D4 {
			if s.pos+2 > len(s.data) {
				return nil, ErrFileTooSmall
			}
			chunkSize = int(s.data[s.pos]) * 2
			chunkOffset = int(s.data[s.pos+1]) * 2
			s.pos += 2
			bytesToRead -= chunkSize + 2
		} else {
			if s.pos+4 > len(s.data) {
				return nil, ErrFileTooSmall
			}
			rawChunkSize := int16(binary.BigEndian.Uint16(s.data[s.pos : s.pos+2]))
			if rawChunkSize < 0 {
				break
			}
			if rawChunkSize&1 != 0 {
				return nil, fmt.Errorf("%w: chunk size %d is not a multiple of two", ErrInvariant, rawChunkSize)
			}
			chunkSize = int(rawChunkSize)
			chunkOffset = int(int16(binary.BigEndian.Uint16(s.data[s.pos+2 : s.pos+4])))
			s.pos += 4
			bytesToRead -= chunkSize + 4
		}
		if chunkOffset < 0 || chunkOffset+chunkSize > len(newData) {
			return nil, fmt.Errorf("%w: frame chunk out of range", ErrInvariant)
		}
		if s.pos+chunkSize > len(s.data) {
			return nil, ErrFileTooSmall
		}
		copy(newData[chunkOffset:chunkOffset+chunkSize], s.data[s.pos:s.pos+chunkSize])
		s.pos += chunkSize
	}

	frame, err := DecodeFrame(newData, s.Header.ScoreVersion)
	if err != nil {
		return nil, fmt.Errorf("can't read frame: %w", err)
	}
	s.lastRaw = newData
	return &frame, nil
}
