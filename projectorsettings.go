package dirfile

import (
	"encoding/binary"
	"fmt"
)

// MacCPU is the CPU architecture tag recorded in a D4+ Mac projector's
// settings resource.
type MacCPU uint8

const (
	MacCPUM68K MacCPU = 1
	MacCPUPPC  MacCPU = 2
	MacCPUAny  MacCPU = MacCPUM68K | MacCPUPPC
)

func (c MacCPU) String() string {
	switch c {
	case MacCPUM68K:
		return "68000"
	case MacCPUPPC:
		return "PowerPC"
	case MacCPUAny:
		return "68000/PowerPC"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

// WinVersion distinguishes the two Windows executable generations a
// projector may target.
type WinVersion int

const (
	WinVersion3 WinVersion = iota
	WinVersion95
)

func (v WinVersion) String() string {
	if v == WinVersion95 {
		return "95"
	}
	return "3"
}

// AccelMode is the loading strategy a D3 projector used for an
// Accelerator file too large to fit in memory at once.
type AccelMode int

const (
	AccelModeFillMemory AccelMode = iota
	AccelModeFrame
	AccelModeChunk
)

// ProjectorSettings is the unified view of a projector's bit-packed
// settings record across every version and platform this module parses,
// per SPEC_FULL.md §4.8.
type ProjectorSettings struct {
	ResizeStage         bool
	SwitchColorDepth    bool
	Platform            Platform
	MacCPU              MacCPU
	WinVersion          WinVersion
	FullScreen          bool
	LoopPlayback        bool
	WaitForClick        bool
	UseExternalFiles    bool
	NumMovies           uint16
	AccelMode           AccelMode
	HideDesktop         bool
	HasExtendedDataFork bool
	CenterStageOnScreen bool
	PlayEveryMovie      bool
	PlayInBackground    bool
	ShowTitleBar        bool
	DuplicateCast       bool
	Compressed          bool
	HasXtras            bool
	HasNetworkXtras     bool
}

// ParseD3SettingsMac decodes a D3 "VWst" settings resource on the Mac
// platform. bits is the resource's full raw payload.
func ParseD3SettingsMac(bits []byte) (ProjectorSettings, error) {
	if len(bits) < 12 {
		return ProjectorSettings{}, ErrFileTooSmall
	}
	if bits[11] != 0 {
		return ProjectorSettings{}, fmt.Errorf("%w: unexpected D3 Mac PJst byte 11", ErrInvariant)
	}
	var accel AccelMode
	switch bits[10] {
	case 1:
		accel = AccelModeFillMemory
	case 2:
		accel = AccelModeFrame
	case 3:
		accel = AccelModeChunk
	default:
		return ProjectorSettings{}, fmt.Errorf("%w: unknown accel mode %d", ErrInvariant, bits[10])
	}
	return ProjectorSettings{
		ResizeStage:      bits[2]&1 != 0,
		SwitchColorDepth: bits[3]&1 != 0,
		Platform:         PlatformMac,
		MacCPU:           MacCPUM68K,
		LoopPlayback:     bits[1]&1 != 0,
		UseExternalFiles: bits[4]&1 != 0,
		NumMovies:        binary.BigEndian.Uint16(bits[6:8]),
		WaitForClick:     bits[5]&1 == 0,
		AccelMode:        accel,
		PlayEveryMovie:   true,
	}, nil
}

// ParseD3SettingsWin decodes a D3 header's 7-byte settings prefix on
// Windows.
func ParseD3SettingsWin(bits []byte) (ProjectorSettings, error) {
	if len(bits) < 6 {
		return ProjectorSettings{}, ErrFileTooSmall
	}
	return ProjectorSettings{
		FullScreen:       bits[2]&1 == 0,
		Platform:         PlatformWindows,
		WinVersion:       WinVersion3,
		LoopPlayback:     bits[3]&1 != 0,
		UseExternalFiles: bits[5]&1 != 0,
		NumMovies:        binary.LittleEndian.Uint16(bits[0:2]),
		HideDesktop:      bits[5]&4 != 0,
		AccelMode:        AccelModeChunk,
		PlayEveryMovie:   true,
	}, nil
}

// ParseD6SettingsMac decodes a D4/D5/D6 "PJst" settings resource on the
// Mac platform.
func ParseD6SettingsMac(bits []byte, version Version) (ProjectorSettings, error) {
	if len(bits) < 12 {
		return ProjectorSettings{}, ErrFileTooSmall
	}
	if bits[0] != 0 || bits[1] != 0 {
		return ProjectorSettings{}, fmt.Errorf("%w: unexpected D4+ Mac PJst bytes 0-1", ErrInvariant)
	}
	if bits[4] != 0 || bits[5] != 0 {
		return ProjectorSettings{}, fmt.Errorf("%w: unexpected D4+ Mac PJst bytes 4-5", ErrInvariant)
	}
	if bits[8] != 0 {
		return ProjectorSettings{}, fmt.Errorf("%w: unexpected D4+ Mac PJst byte 8", ErrInvariant)
	}

	switch version {
	case D4:
		if bits[11]&4 == 0 {
			return ProjectorSettings{}, fmt.Errorf("%w: unexpected D4 Mac PJst byte 11", ErrInvariant)
		}
	case D5:
		// bits[6]&8 is sometimes unset in the wild; not enforced.
	case D6:
		if bits[6]&0x24 != 0x24 {
			return ProjectorSettings{}, fmt.Errorf("%w: unexpected D6 Mac PJst byte 6", ErrInvariant)
		}
	default:
		return ProjectorSettings{}, fmt.Errorf("%w: D4+ Mac settings parser called for version %s", ErrInvariant, version)
	}

	var cpu MacCPU
	if bits[7] == 0 {
		// Pre-release Director 4 projectors with no CPU tag are always 68k.
		cpu = MacCPUM68K
	} else {
		cpu = MacCPU(bits[7])
		if cpu != MacCPUM68K && cpu != MacCPUPPC && cpu != MacCPUAny {
			return ProjectorSettings{}, fmt.Errorf("%w: %d", ErrUnknownCPU, bits[7])
		}
	}

	settings := ProjectorSettings{
		ResizeStage:         bits[11]&1 != 0,
		SwitchColorDepth:    bits[10]&0x40 != 0,
		Platform:            PlatformMac,
		MacCPU:              cpu,
		CenterStageOnScreen: bits[9]&1 != 0,
		PlayEveryMovie:      bits[3]&1 != 0,
		PlayInBackground:    bits[2]&1 != 0,
		HasExtendedDataFork: bits[7] != 0,
	}

	switch version {
	case D4:
		// all remaining fields default false
	case D5:
		settings.FullScreen = bits[6]&2 != 0
		settings.DuplicateCast = bits[6]&1 != 0
	case D6:
		settings.FullScreen = bits[6]&2 != 0
		settings.Compressed = bits[6]&1 != 0
		settings.HasXtras = bits[6]&0x80 != 0
		settings.HasNetworkXtras = bits[6]&0x40 != 0
	}
	return settings, nil
}

// ParseD6SettingsWin decodes a D4/D5/D6 12-byte settings struct on
// Windows.
func ParseD6SettingsWin(bits []byte, version Version, platform WinVersion) (ProjectorSettings, error) {
	if len(bits) < 12 {
		return ProjectorSettings{}, ErrFileTooSmall
	}

	switch version {
	case D4:
		for _, b := range bits[1:4] {
			if b != 0 {
				return ProjectorSettings{}, fmt.Errorf("%w: unexpected D4 Win PJ93 bytes 1-3", ErrInvariant)
			}
		}
		want := []byte{0, 0, 0x80, 2, 0xe0, 1}
		for i, b := range want {
			if bits[6+i] != b {
				return ProjectorSettings{}, fmt.Errorf("%w: unexpected D4 Win PJ93 bytes 6-11", ErrInvariant)
			}
		}
	case D5:
		if bits[0]&0x10 == 0 {
			return ProjectorSettings{}, fmt.Errorf("%w: unexpected D5 Win PJ95 byte 0", ErrInvariant)
		}
		for _, b := range bits[1:4] {
			if b != 0 {
				return ProjectorSettings{}, fmt.Errorf("%w: unexpected D5 Win PJ95 bytes 1-3", ErrInvariant)
			}
		}
		for _, b := range bits[5:12] {
			if b != 0 {
				return ProjectorSettings{}, fmt.Errorf("%w: unexpected D5 Win PJ95 bytes 5-11", ErrInvariant)
			}
		}
	case D6:
		if bits[0]&0x20 == 0 {
			return ProjectorSettings{}, fmt.Errorf("%w: unexpected D6 Win PJ95 byte 0", ErrInvariant)
		}
		for _, b := range bits[5:12] {
			if b != 0 {
				return ProjectorSettings{}, fmt.Errorf("%w: unexpected D6 Win PJ95 bytes 5-11", ErrInvariant)
			}
		}
	default:
		return ProjectorSettings{}, fmt.Errorf("%w: D4+ Win settings parser called for version %s", ErrUnsupportedVersion, version)
	}

	settings := ProjectorSettings{Platform: PlatformWindows, WinVersion: platform, CenterStageOnScreen: true}
	switch version {
	case D4:
		settings.ResizeStage = bits[0]&4 != 0
		settings.FullScreen = bits[0]&8 != 0
		settings.WinVersion = WinVersion3
		settings.PlayEveryMovie = bits[0]&1 != 0
		settings.PlayInBackground = bits[0]&2 != 0
		settings.ShowTitleBar = bits[0]&0x10 != 0
	case D5:
		settings.ResizeStage = bits[4]&4 != 0
		settings.FullScreen = bits[0]&2 != 0
		settings.PlayEveryMovie = bits[4]&1 != 0
		settings.PlayInBackground = bits[4]&2 != 0
		settings.ShowTitleBar = bits[4]&8 != 0
		settings.DuplicateCast = bits[0]&1 != 0
	case D6:
		settings.ResizeStage = bits[4]&4 != 0
		settings.FullScreen = bits[0]&2 != 0
		settings.PlayEveryMovie = bits[4]&1 != 0
		settings.PlayInBackground = bits[4]&2 != 0
		settings.ShowTitleBar = bits[4]&8 != 0
		settings.Compressed = bits[0]&1 != 0
		settings.HasXtras = bits[0]&0x80 != 0
		settings.HasNetworkXtras = bits[0]&0x40 != 0
	}
	return settings, nil
}
