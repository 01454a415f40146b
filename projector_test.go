package dirfile

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectProjectorMacD3Embedded(t *testing.T) {
	settingsBits := make([]byte, 12)
	settingsBits[10] = 1 // AccelModeFillMemory
	// settingsBits[4] == 0: no external file list, embedded movies.

	raw := buildResourceFile([]rfKindSpec{
		{kind: "junk", items: []rfItemSpec{{id: 1, data: make([]byte, 80)}}},
		{kind: "VWst", items: []rfItemSpec{{id: 0, data: settingsBits}}},
	})

	// Splice a Pascal application name in at absolute offset 0x30, the
	// fixed location Name() reads from; this falls within the filler
	// resource's data area and doesn't disturb the map.
	name := "MyProjector"
	raw[0x30] = byte(len(name))
	copy(raw[0x31:], name)

	proj, err := DetectProjectorMac(bytes.NewReader(raw), nil)
	require.NoError(t, err)
	assert.Equal(t, D3, proj.Version)
	assert.Equal(t, "MyProjector", proj.Name)
	assert.Equal(t, MovieEmbedded, proj.Movie.Kind)
	assert.EqualValues(t, 1024, proj.Movie.EmbeddedResNum)
	assert.Equal(t, AccelModeFillMemory, proj.Settings.AccelMode)
}

func TestDetectProjectorMacNoSettingsResource(t *testing.T) {
	raw := buildResourceFile([]rfKindSpec{
		{kind: "junk", items: []rfItemSpec{{id: 1, data: make([]byte, 80)}}},
	})
	_, err := DetectProjectorMac(bytes.NewReader(raw), nil)
	assert.ErrorIs(t, err, ErrBadMagic)
}

// buildD3WinProjector assembles a minimal Windows D3-for-Director
// executable: an MZ stub whose e_lfanew points at a "PE\x00\x00" signature
// (readPEProductName then fails gracefully on the truncated stub and
// returns an empty name), plus a trailing 4-byte pointer to an 8-byte
// Director header with an all-zero checksum (the D3 sentinel).
func buildD3WinProjector() []byte {
	const peOffset = 0x80
	const directorOffset = 0x200

	buf := make([]byte, directorOffset+8)
	buf[0], buf[1] = 'M', 'Z'
	binary.LittleEndian.PutUint16(buf[0x3c:0x3e], peOffset)
	copy(buf[peOffset:peOffset+4], []byte("PE\x00\x00"))

	header := buf[directorOffset : directorOffset+8]
	binary.LittleEndian.PutUint16(header[0:2], 0) // numMovies
	header[5] = 0                                 // UseExternalFiles clear, HideDesktop clear

	trailer := make([]byte, 4)
	binary.LittleEndian.PutUint32(trailer, uint32(directorOffset))
	return append(buf, trailer...)
}

func TestDetectProjectorWinD3(t *testing.T) {
	data := buildD3WinProjector()
	proj, err := DetectProjectorWin(mustSharedStream(t, data))
	require.NoError(t, err)
	assert.Equal(t, D3, proj.Version)
	assert.Equal(t, PlatformWindows, proj.Settings.Platform)
	assert.Equal(t, MovieD3Win, proj.Movie.Kind)
	assert.Empty(t, proj.Movie.D3WinMovies)
}

func TestDetectProjectorWinBadMagic(t *testing.T) {
	_, err := DetectProjectorWin(mustSharedStream(t, make([]byte, 16)))
	assert.ErrorIs(t, err, ErrBadMagic)
}
