package dirfile

import (
	"encoding/binary"
	"fmt"
	"io"
	"strings"
)

// D3WinMovie names one entry of a D3-for-Windows external movie list: its
// original filename plus, for internally-stored entries, its byte range
// within the projector.
type D3WinMovie struct {
	Filename string
	Offset   uint32
	Size     uint32
}

// MovieKind classifies how a detected projector's movie payload is stored.
type MovieKind int

const (
	MovieEmbedded MovieKind = iota
	MovieD3Win
	MovieInternal
	MovieExternal
)

// ProjectorMovie is the payload a Projector carries: either a resource
// number where embedded movies begin (Mac D3), a list of external or
// internal-but-indexed files (Win D3), a single embedded RIFF at a known
// offset (D4+), or a list of external movie paths.
type ProjectorMovie struct {
	Kind              MovieKind
	EmbeddedResNum    ResNum
	D3WinMovies       []D3WinMovie
	InternalStream    *SharedStream
	InternalOffset    uint32
	InternalSize      uint32
	ExternalFilenames []string
}

// Projector is the result of detecting a Director projector (a standalone
// executable bundling the player and one or more movies), per
// SPEC_FULL.md §4.8.
type Projector struct {
	Name     string
	Version  Version
	Settings ProjectorSettings
	Movie    ProjectorMovie
}

func projectorDataVersion(tag [4]byte) (Version, bool) {
	switch string(tag[:]) {
	case "PJ93", "39JP":
		return D4, true
	case "PJ95", "59JP":
		return D5, true
	case "PJ00", "00JP":
		return D7, true
	default:
		return 0, false
	}
}

// DetectProjectorMac detects a Mac projector from its resource fork and,
// for D4+, its data fork (needed to locate the embedded RIFF).
func DetectProjectorMac(resourceFork io.ReadSeeker, dataFork *SharedStream) (*Projector, error) {
	rom, err := OpenResourceFile(resourceFork)
	if err != nil {
		return nil, err
	}

	var version Version
	switch {
	case rom.Contains(NewResourceId(NewOSType("PJ97"), 0)) && rom.Contains(NewResourceId(NewOSType("PJst"), 0)):
		version = D6
	case rom.Contains(NewResourceId(NewOSType("PJ95"), 0)) && rom.Contains(NewResourceId(NewOSType("PJst"), 0)):
		version = D5
	case rom.Contains(NewResourceId(NewOSType("PJ93"), 0)) && rom.Contains(NewResourceId(NewOSType("PJst"), 0)):
		version = D4
	case rom.Contains(NewResourceId(NewOSType("VWst"), 0)):
		version = D3
	default:
		return nil, fmt.Errorf("%w: no Mac projector settings resource", ErrBadMagic)
	}

	settingsType := NewOSType("PJst")
	if version == D3 {
		settingsType = NewOSType("VWst")
	}
	configBytes, err := LoadBytes(rom, NewResourceId(settingsType, 0))
	if err != nil {
		return nil, fmt.Errorf("can't read projector settings resource: %w", err)
	}

	var settings ProjectorSettings
	var movie ProjectorMovie

	switch version {
	case D3:
		if len(configBytes) < 8 {
			return nil, ErrFileTooSmall
		}
		hasExternalData := configBytes[4] != 0
		numMovies := binary.BigEndian.Uint16(configBytes[6:8])
		settings, err = ParseD3SettingsMac(configBytes)
		if err != nil {
			return nil, err
		}
		if hasExternalData {
			strList, err := LoadBytes(rom, NewResourceId(NewOSType("STR#"), 0))
			if err != nil {
				return nil, fmt.Errorf("%w: missing external file list", ErrNotFound)
			}
			names, err := DecodeStringList(strList)
			if err != nil {
				return nil, err
			}
			files := make([]string, 0, len(names))
			for _, n := range names {
				files = append(files, strings.ReplaceAll(n, ":", "/"))
			}
			movie = ProjectorMovie{Kind: MovieExternal, ExternalFilenames: files}
		} else {
			// Embedded movies start at resource number 1024.
			movie = ProjectorMovie{Kind: MovieEmbedded, EmbeddedResNum: ResNum(1024)}
			_ = numMovies
		}

	case D4, D5, D6:
		if dataFork == nil {
			return nil, fmt.Errorf("%w: no data fork; can't get offset of internal movie", ErrNotFound)
		}
		if len(configBytes) < 8 {
			return nil, ErrFileTooSmall
		}
		hasExtendedDataFork := configBytes[7] != 0
		settings, err = ParseD6SettingsMac(configBytes, version)
		if err != nil {
			return nil, err
		}

		riffOffset := uint32(0)
		if hasExtendedDataFork {
			var buf [8]byte
			if _, err := dataFork.Seek(0, io.SeekStart); err != nil {
				return nil, err
			}
			if _, err := io.ReadFull(dataFork, buf[:]); err != nil {
				return nil, fmt.Errorf("can't read projector header: %w", err)
			}
			var tag [4]byte
			copy(tag[:], buf[0:4])
			dataVersion, ok := projectorDataVersion(tag)
			mismatch := !ok
			if ok {
				if dataVersion == D5 {
					mismatch = version != D5 && version != D6
				} else {
					mismatch = version != dataVersion
				}
			}
			if mismatch {
				return nil, fmt.Errorf("%w: projector data fork version does not match resource fork version %s", ErrInvariant, version)
			}
			riffOffset = binary.BigEndian.Uint32(buf[4:8])
		}
		movie, err = internalMovie(dataFork, riffOffset)
		if err != nil {
			return nil, err
		}

	default:
		return nil, fmt.Errorf("%w: D7 Mac projector settings", ErrUnsupportedVersion)
	}

	name, _ := rom.Name()
	return &Projector{Name: name, Version: version, Settings: settings, Movie: movie}, nil
}

func internalMovie(stream *SharedStream, offset uint32) (ProjectorMovie, error) {
	sub := stream.Sub(int64(offset), stream.Len())
	info, err := detectRiff(sub)
	if err != nil {
		return ProjectorMovie{}, fmt.Errorf("can't detect RIFF at %d: %w", offset, err)
	}
	return ProjectorMovie{
		Kind:           MovieInternal,
		InternalStream: sub,
		InternalOffset: offset,
		InternalSize:   info.size,
	}, nil
}

// DetectProjectorWin detects a Windows projector (PE or NE executable)
// from its data fork.
func DetectProjectorWin(input *SharedStream) (*Projector, error) {
	const mz = 0x4d5a

	if _, err := input.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	var magic [2]byte
	if _, err := io.ReadFull(input, magic[:]); err != nil {
		return nil, ErrFileTooSmall
	}
	if binary.BigEndian.Uint16(magic[:]) != mz {
		return nil, fmt.Errorf("%w: not a Windows executable", ErrBadMagic)
	}

	if _, err := input.Seek(-4, io.SeekEnd); err != nil {
		return nil, err
	}
	var offsetBuf [4]byte
	if _, err := io.ReadFull(input, offsetBuf[:]); err != nil {
		return nil, ErrFileTooSmall
	}
	offset := binary.LittleEndian.Uint32(offsetBuf[:])
	if _, err := input.Seek(int64(offset), io.SeekStart); err != nil {
		return nil, fmt.Errorf("bad Director data offset: %w", err)
	}

	var header [8]byte
	if _, err := io.ReadFull(input, header[:]); err != nil {
		return nil, fmt.Errorf("can't read projector header: %w", err)
	}
	var headerTag [4]byte
	copy(headerTag[:], header[0:4])

	version, ok := projectorDataVersion(headerTag)
	if !ok {
		checksum := header[0] + header[1] + header[2] + header[3] + header[4] + header[5] + header[6]
		if checksum != 0 {
			return nil, fmt.Errorf("%w: bad Director 3 for Windows checksum", ErrInvariant)
		}
		version = D3
	}

	platform, name, err := readWinExeInfo(input)
	if err != nil {
		return nil, err
	}

	var settings ProjectorSettings
	var movie ProjectorMovie

	if version == D3 {
		if _, err := input.Seek(int64(offset)+7, io.SeekStart); err != nil {
			return nil, err
		}
		settings, err = ParseD3SettingsWin(header[0:7])
		if err != nil {
			return nil, err
		}
		numMovies := binary.LittleEndian.Uint16(header[0:2])
		if settings.UseExternalFiles {
			files := make([]string, 0, numMovies)
			for i := uint16(0); i < numMovies; i++ {
				_, filename, err := readD3WinMovieInfo(input)
				if err != nil {
					return nil, err
				}
				files = append(files, filename)
			}
			movie = ProjectorMovie{Kind: MovieExternal, ExternalFilenames: files}
		} else {
			entries := make([]D3WinMovie, 0, numMovies)
			for i := uint16(0); i < numMovies; i++ {
				size, filename, err := readD3WinMovieInfo(input)
				if err != nil {
					return nil, err
				}
				pos, err := input.Seek(0, io.SeekCurrent)
				if err != nil {
					return nil, err
				}
				entries = append(entries, D3WinMovie{Filename: filename, Offset: uint32(pos), Size: size})
			}
			movie = ProjectorMovie{Kind: MovieD3Win, D3WinMovies: entries}
		}
	} else {
		if _, err := input.Seek(int64(offset)+8, io.SeekStart); err != nil {
			return nil, fmt.Errorf("can't seek to projector settings: %w", err)
		}

		var settingsOffset uint32
		switch version {
		case D4:
			const settingsSize = 12
			var endBuf [4]byte
			if _, err := io.ReadFull(input, endBuf[:]); err != nil {
				return nil, fmt.Errorf("can't read offset of first system file: %w", err)
			}
			settingsOffset = binary.LittleEndian.Uint32(endBuf[:]) - settingsSize
		case D5, D6:
			settingsOffset = offset + 8
		default:
			return nil, fmt.Errorf("%w: D7 projector settings", ErrUnsupportedVersion)
		}

		if _, err := input.Seek(int64(settingsOffset), io.SeekStart); err != nil {
			return nil, fmt.Errorf("can't seek to projector settings data: %w", err)
		}
		var buf [12]byte
		if _, err := io.ReadFull(input, buf[:]); err != nil {
			return nil, fmt.Errorf("can't read projector settings data: %w", err)
		}

		// D5 and D6 share a data-version magic; disambiguated only here,
		// by a settings byte, since Win3 D5 projectors are still named
		// "Release 5.0".
		if version == D5 && buf[0]&0x10 == 0 {
			version = D6
		}

		settings, err = ParseD6SettingsWin(buf[:], version, platform)
		if err != nil {
			return nil, err
		}
		movie, err = internalMovie(input, binary.LittleEndian.Uint32(header[4:8]))
		if err != nil {
			return nil, err
		}
	}

	return &Projector{Name: name, Version: version, Settings: settings, Movie: movie}, nil
}

func readD3WinMovieInfo(r io.ReadSeeker) (uint32, string, error) {
	var sizeBuf [4]byte
	if _, err := io.ReadFull(r, sizeBuf[:]); err != nil {
		return 0, "", ErrFileTooSmall
	}
	size := binary.LittleEndian.Uint32(sizeBuf[:])

	filename, err := readPascalStringMac(r)
	if err != nil {
		return 0, "", err
	}
	path, err := readPascalStringMac(r)
	if err != nil {
		return 0, "", err
	}
	path = strings.ReplaceAll(path, "\\", "/")
	full := filename
	if path != "" {
		full = strings.TrimSuffix(path, "/") + "/" + filename
	}
	return size, full, nil
}

func readPascalStringMac(r io.Reader) (string, error) {
	var lenByte [1]byte
	if _, err := io.ReadFull(r, lenByte[:]); err != nil {
		return "", ErrFileTooSmall
	}
	buf := make([]byte, lenByte[0])
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", ErrFileTooSmall
	}
	return decodeMacString(buf, 0), nil
}

// readWinExeInfo walks a PE or NE header to retrieve the executable's
// Windows generation (PE: Windows 95, NE: Windows 3) and, for PE, its
// version resource's ProductName string.
func readWinExeInfo(r io.ReadSeeker) (WinVersion, string, error) {
	if _, err := r.Seek(0x3c, io.SeekStart); err != nil {
		return 0, "", err
	}
	var headerOffBuf [2]byte
	if _, err := io.ReadFull(r, headerOffBuf[:]); err != nil {
		return 0, "", ErrFileTooSmall
	}
	headerOffset := binary.LittleEndian.Uint16(headerOffBuf[:])
	if _, err := r.Seek(int64(headerOffset), io.SeekStart); err != nil {
		return 0, "", err
	}

	var signature [4]byte
	if _, err := io.ReadFull(r, signature[:]); err != nil {
		return 0, "", ErrFileTooSmall
	}

	if string(signature[:]) == "PE\x00\x00" {
		name := readPEProductName(r)
		return WinVersion95, name, nil
	}
	if signature[0] == 'N' && signature[1] == 'E' {
		if _, err := r.Seek(32-4, io.SeekCurrent); err != nil {
			return 0, "", err
		}
		var tableSizeBuf [2]byte
		if _, err := io.ReadFull(r, tableSizeBuf[:]); err != nil {
			return 0, "", ErrFileTooSmall
		}
		nonResidentTableSize := binary.LittleEndian.Uint16(tableSizeBuf[:])
		if _, err := r.Seek(44-32-2, io.SeekCurrent); err != nil {
			return 0, "", err
		}
		var tableOffBuf [4]byte
		if _, err := io.ReadFull(r, tableOffBuf[:]); err != nil {
			return 0, "", ErrFileTooSmall
		}
		if nonResidentTableSize == 0 {
			return WinVersion3, "", nil
		}
		tableOffset := binary.LittleEndian.Uint32(tableOffBuf[:])
		if _, err := r.Seek(int64(tableOffset), io.SeekStart); err != nil {
			return 0, "", err
		}
		name, err := readPascalStringMac(r)
		if err != nil {
			return WinVersion3, "", nil
		}
		return WinVersion3, name, nil
	}
	return 0, "", fmt.Errorf("%w: not a Windows executable", ErrBadMagic)
}

// readPEProductName walks .rsrc -> VS_VERSION_INFO -> StringFileInfo ->
// <lang> -> ProductName. Any failure along the way yields an empty name
// rather than an error, matching the original's best-effort semantics.
func readPEProductName(r io.ReadSeeker) string {
	const versionInfoType = 0x10
	const versionInfoID = 1
	const versionInfoLang = 1033

	virtualAddress, fromOffset, err := seekToResourceSegment(r)
	if err != nil {
		return ""
	}
	if err := seekToDirectoryEntry(r, fromOffset, versionInfoType); err != nil {
		return ""
	}
	if err := seekToDirectoryEntry(r, fromOffset, versionInfoID); err != nil {
		return ""
	}
	if err := seekToDirectoryEntry(r, fromOffset, versionInfoLang); err != nil {
		return ""
	}
	if err := seekToResourceData(r, virtualAddress, fromOffset); err != nil {
		return ""
	}
	name, _ := readVersionStruct(r)
	return name
}

func seekToResourceSegment(r io.ReadSeeker) (virtualAddress, offset uint32, err error) {
	if _, err = r.Seek(2, io.SeekCurrent); err != nil {
		return 0, 0, err
	}
	var numSectionsBuf [2]byte
	if _, err = io.ReadFull(r, numSectionsBuf[:]); err != nil {
		return 0, 0, ErrFileTooSmall
	}
	numSections := binary.LittleEndian.Uint16(numSectionsBuf[:])
	if _, err = r.Seek(12, io.SeekCurrent); err != nil {
		return 0, 0, err
	}
	var optHeaderSizeBuf [2]byte
	if _, err = io.ReadFull(r, optHeaderSizeBuf[:]); err != nil {
		return 0, 0, ErrFileTooSmall
	}
	optHeaderSize := binary.LittleEndian.Uint16(optHeaderSizeBuf[:])
	if _, err = r.Seek(2+int64(optHeaderSize), io.SeekCurrent); err != nil {
		return 0, 0, err
	}

	for i := uint16(0); i < numSections; i++ {
		var section [40]byte
		if _, err := io.ReadFull(r, section[:]); err != nil {
			return 0, 0, ErrFileTooSmall
		}
		if string(section[0:8]) == ".rsrc\x00\x00\x00" {
			virtualAddress = binary.LittleEndian.Uint32(section[12:16])
			offset = binary.LittleEndian.Uint32(section[20:24])
			if _, err := r.Seek(int64(offset), io.SeekStart); err != nil {
				return 0, 0, err
			}
			return virtualAddress, offset, nil
		}
	}
	return 0, 0, ErrNotFound
}

func seekToDirectoryEntry(r io.ReadSeeker, fromOffset uint32, id uint32) error {
	const entrySize = 8
	if _, err := r.Seek(12, io.SeekCurrent); err != nil {
		return err
	}
	var countsBuf [4]byte
	if _, err := io.ReadFull(r, countsBuf[:]); err != nil {
		return ErrFileTooSmall
	}
	skipEntries := binary.LittleEndian.Uint16(countsBuf[0:2])
	numEntries := binary.LittleEndian.Uint16(countsBuf[2:4])
	if _, err := r.Seek(int64(entrySize)*int64(skipEntries), io.SeekCurrent); err != nil {
		return err
	}
	for i := uint16(0); i < numEntries; i++ {
		var entry [entrySize]byte
		if _, err := io.ReadFull(r, entry[:]); err != nil {
			return ErrFileTooSmall
		}
		foundID := binary.LittleEndian.Uint32(entry[0:4])
		if foundID == id {
			const hasChildrenFlag = 0x8000_0000
			offset := binary.LittleEndian.Uint32(entry[4:8]) &^ hasChildrenFlag
			_, err := r.Seek(int64(fromOffset+offset), io.SeekStart)
			return err
		}
	}
	return ErrNotFound
}

func seekToResourceData(r io.ReadSeeker, virtualAddress, rawOffset uint32) error {
	var offBuf [4]byte
	if _, err := io.ReadFull(r, offBuf[:]); err != nil {
		return ErrFileTooSmall
	}
	offset := binary.LittleEndian.Uint32(offBuf[:])
	_, err := r.Seek(int64(offset-virtualAddress+rawOffset), io.SeekStart)
	return err
}

// readVersionStruct recursively walks one VS_VERSION_INFO-style record,
// returning the first ProductName value found under it.
func readVersionStruct(r io.ReadSeeker) (string, error) {
	const fixedHeaderWordSize = 3

	start, err := r.Seek(0, io.SeekCurrent)
	if err != nil {
		return "", err
	}
	var sizeBuf [2]byte
	if _, err := io.ReadFull(r, sizeBuf[:]); err != nil {
		return "", ErrFileTooSmall
	}
	size := binary.LittleEndian.Uint16(sizeBuf[:])
	var valueSizeBuf [2]byte
	if _, err := io.ReadFull(r, valueSizeBuf[:]); err != nil {
		return "", ErrFileTooSmall
	}
	valueSize := binary.LittleEndian.Uint16(valueSizeBuf[:])
	var typeBuf [2]byte
	if _, err := io.ReadFull(r, typeBuf[:]); err != nil {
		return "", ErrFileTooSmall
	}
	isTextData := binary.LittleEndian.Uint16(typeBuf[:]) == 1
	if isTextData {
		valueSize *= 2
	}
	valuePadding := uint16(0)
	if valueSize&3 != 0 {
		valuePadding = 4 - (valueSize & 3)
	}
	sizePadding := uint16(0)
	if size&3 != 0 {
		sizePadding = 4 - (size & 3)
	}
	end := start + int64(size) + int64(sizePadding)

	key, err := readUTF16CString(r)
	if err != nil {
		return "", err
	}

	keyPaddingSize := ((fixedHeaderWordSize + len(key) + 1) & 1) * 2
	if keyPaddingSize != 0 {
		if _, err := r.Seek(int64(keyPaddingSize), io.SeekCurrent); err != nil {
			return "", err
		}
	}

	isStringTable := key == "StringFileInfo" || (len(key) == 8 && key[4:8] != "" && isHexLangID(key))

	switch {
	case key == "ProductName":
		return readUTF16CString(r)
	case key == "VS_VERSION_INFO":
		if _, err := r.Seek(int64(valueSize+valuePadding), io.SeekCurrent); err != nil {
			return "", err
		}
		return readVersionStruct(r)
	case isStringTable:
		for {
			pos, err := r.Seek(0, io.SeekCurrent)
			if err != nil || pos == end {
				break
			}
			if value, err := readVersionStruct(r); err == nil && value != "" {
				return value, nil
			}
		}
		return "", nil
	default:
		_, err := r.Seek(end, io.SeekStart)
		return "", err
	}
}

func isHexLangID(key string) bool {
	for _, c := range key[4:8] {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')) {
			return false
		}
	}
	return true
}

func readUTF16CString(r io.Reader) (string, error) {
	var runes []uint16
	for {
		var u [2]byte
		if _, err := io.ReadFull(r, u[:]); err != nil {
			return "", ErrFileTooSmall
		}
		v := binary.LittleEndian.Uint16(u[:])
		if v == 0 {
			break
		}
		runes = append(runes, v)
	}
	return decodeUTF16LE(runes), nil
}

func decodeUTF16LE(units []uint16) string {
	var b strings.Builder
	for i := 0; i < len(units); i++ {
		r := rune(units[i])
		if r >= 0xd800 && r <= 0xdbff && i+1 < len(units) {
			r2 := rune(units[i+1])
			if r2 >= 0xdc00 && r2 <= 0xdfff {
				r = ((r - 0xd800) << 10) + (r2 - 0xdc00) + 0x10000
				i++
			}
		}
		b.WriteRune(r)
	}
	return b.String()
}
