package dirfile

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// PaletteFlags holds a score frame's palette-transition bit flags.
type PaletteFlags uint8

const (
	PaletteFlagSpanFrames      PaletteFlags = 4
	PaletteFlagCycleAutoReverse PaletteFlags = 0x10
	PaletteFlagFadeReverse      PaletteFlags = 0x20
	PaletteFlagFade             PaletteFlags = 0x40
	PaletteFlagActionCycle      PaletteFlags = 0x80
)

// Has reports whether every bit in mask is set.
func (f PaletteFlags) Has(mask PaletteFlags) bool { return f&mask == mask }

// FramePalette is a score frame's palette-transition record, per
// SPEC_FULL.md §4.12 ("score.rs" Palette).
type FramePalette struct {
	ID              MemberId
	RateFps         int16
	Flags           PaletteFlags
	CycleStartColor int8
	CycleEndColor   int8
	NumFrames       int16
	NumCycles       int16
}

// DecodeFramePalette decodes a frame's embedded palette record. Before
// ConfigVersion 1201 (D5) the on-disk layout differs and is converted
// into the D5+ shape.
func DecodeFramePalette(data []byte, version Version) (FramePalette, error) {
	if version >= D5 {
		return decodePaletteV5(data)
	}
	return decodePaletteV4(data, version)
}

func decodePaletteV5(data []byte) (FramePalette, error) {
	const size = 16
	if len(data) < size {
		return FramePalette{}, ErrFileTooSmall
	}
	r := bytes.NewReader(data)
	var p FramePalette
	var rate, cycleStart, cycleEnd int8
	fields := []any{&p.ID, &rate, &p.Flags, &cycleStart, &cycleEnd, &p.NumFrames, &p.NumCycles}
	for _, f := range fields {
		if err := binary.Read(r, binary.BigEndian, f); err != nil {
			return FramePalette{}, ErrFileTooSmall
		}
	}
	p.RateFps = int16(rate)
	p.CycleStartColor = cycleStart
	p.CycleEndColor = cycleEnd
	return p, nil
}

func decodePaletteV4(data []byte, version Version) (FramePalette, error) {
	const size = 16
	if len(data) < size {
		return FramePalette{}, ErrFileTooSmall
	}
	r := bytes.NewReader(data)
	var p FramePalette
	var id MemberNum
	var cycleStart, cycleEnd int8
	var rate int8
	for _, f := range []any{&id, &cycleStart, &cycleEnd, &p.Flags, &rate, &p.NumFrames, &p.NumCycles} {
		if err := binary.Read(r, binary.BigEndian, f); err != nil {
			return FramePalette{}, ErrFileTooSmall
		}
	}
	p.ID = memberIDFromNum(MemberNum(id))
	p.RateFps = int16(rate)
	p.CycleStartColor = cycleStart
	p.CycleEndColor = cycleEnd
	if version == D3 {
		r.Seek(5, 1)
	} else {
		r.Seek(2, 1)
	}
	return p, nil
}

// Tempo is a score frame's playback-rate instruction.
type Tempo struct {
	Kind           TempoKind
	Fps            int16
	VideoChannel   int16
	WaitSeconds    int16
}

// TempoKind selects how a Tempo value should be interpreted.
type TempoKind int

const (
	TempoInherit TempoKind = iota
	TempoFps
	TempoWaitForVideo
	TempoWaitForSeconds
	TempoWaitForClick
	TempoWaitForSound1
	TempoWaitForSound2
)

// NewTempo interprets a raw tempo byte the way the original format
// overloads a single signed value across seven distinct meanings.
func NewTempo(value int16) (Tempo, error) {
	switch {
	case value == 0:
		return Tempo{Kind: TempoInherit}, nil
	case value >= 1 && value <= 120:
		return Tempo{Kind: TempoFps, Fps: value}, nil
	case value >= -0x78 && value <= -0x48:
		return Tempo{Kind: TempoWaitForVideo, VideoChannel: value + 0x7e}, nil
	case value >= -60 && value <= -1:
		return Tempo{Kind: TempoWaitForSeconds, WaitSeconds: -value}, nil
	case value == -0x80:
		return Tempo{Kind: TempoWaitForClick}, nil
	case value == -0x79:
		return Tempo{Kind: TempoWaitForSound1}, nil
	case value == -0x7a:
		return Tempo{Kind: TempoWaitForSound2}, nil
	default:
		return Tempo{}, fmt.Errorf("%w: invalid tempo %d", ErrInvariant, value)
	}
}
