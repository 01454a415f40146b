package dirfile

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type riffChunkSpec struct {
	tag  string
	body []byte
}

type riffKeyEntrySpec struct {
	chunkIndex int
	id         ResNum
	osType     string
}

// buildRiffMV93 assembles a synthetic big-endian ("MV93") Director RIFF: an
// outer RIFX/MV93 header, the given data chunks, an mmap chunk describing
// them plus a KEY* chunk, and an imap chunk pointing at the mmap. Every
// offset recorded in the mmap/imap is the chunk's true absolute position in
// the final byte slice.
func buildRiffMV93(chunks []riffChunkSpec, keyEntries []riffKeyEntrySpec) []byte {
	const headerLen = 12 // outer tag + size + subtype

	var body bytes.Buffer // everything that follows the 12-byte outer header

	// imap: reserve its 8-byte payload now, patch the mmap offset once
	// every later chunk's absolute position is known.
	body.WriteString("imap")
	binary.Write(&body, binary.BigEndian, uint32(8)) // imap payload size
	binary.Write(&body, binary.BigEndian, uint32(1)) // num maps
	mmapOffsetFieldInBody := body.Len()
	binary.Write(&body, binary.BigEndian, uint32(0)) // mmap offset, patched below

	chunkOffsets := make([]uint32, len(chunks))
	for i, c := range chunks {
		chunkOffsets[i] = uint32(headerLen + body.Len())
		body.WriteString(osTypePad4(c.tag))
		binary.Write(&body, binary.BigEndian, uint32(len(c.body)))
		body.Write(c.body)
		if len(c.body)%2 == 1 {
			body.WriteByte(0) // word alignment
		}
	}

	mmapOffset := uint32(headerLen + body.Len())

	var mmapBody bytes.Buffer
	binary.Write(&mmapBody, binary.BigEndian, uint16(mmapHeaderSize))
	binary.Write(&mmapBody, binary.BigEndian, uint16(mmapEntrySize))
	binary.Write(&mmapBody, binary.BigEndian, uint32(len(chunks)+1)) // capacity
	binary.Write(&mmapBody, binary.BigEndian, uint32(len(chunks)+1)) // num entries (chunks + KEY*)
	binary.Write(&mmapBody, binary.BigEndian, int32(NoChunk))        // next junk
	binary.Write(&mmapBody, binary.BigEndian, uint32(0))             // reserved
	binary.Write(&mmapBody, binary.BigEndian, int32(NoChunk))        // next free

	for i, c := range chunks {
		mmapBody.WriteString(osTypePad4(c.tag))
		binary.Write(&mmapBody, binary.BigEndian, uint32(len(c.body)))
		binary.Write(&mmapBody, binary.BigEndian, chunkOffsets[i])
		binary.Write(&mmapBody, binary.BigEndian, uint16(MemoryMapFlagValid))
		binary.Write(&mmapBody, binary.BigEndian, uint16(0))
		binary.Write(&mmapBody, binary.BigEndian, int32(NoChunk))
	}

	var keyBody bytes.Buffer
	binary.Write(&keyBody, binary.BigEndian, uint16(keysHeaderSize))
	binary.Write(&keyBody, binary.BigEndian, uint16(12)) // item size
	binary.Write(&keyBody, binary.BigEndian, uint32(len(keyEntries)))
	binary.Write(&keyBody, binary.BigEndian, uint32(len(keyEntries)))
	for _, e := range keyEntries {
		binary.Write(&keyBody, binary.BigEndian, int32(e.chunkIndex))
		binary.Write(&keyBody, binary.BigEndian, int32(e.id))
		keyBody.WriteString(osTypePad4(e.osType))
	}

	// headerLen + current body length gets us to the start of the "mmap"
	// chunk; +8 skips its tag and size fields; the full mmap payload
	// (header + every entry, including the KEY* pseudo-entry about to be
	// appended) follows, then the real "KEY*" chunk begins.
	keyOffset := uint32(headerLen + body.Len() + 8 + mmapHeaderSize + (len(chunks)+1)*mmapEntrySize)
	// the KEY* mmap entry itself: flags 0 marks it "not valid", which is how
	// readImap recognizes the resource-map pointer rather than a live chunk.
	mmapBody.WriteString("KEY*")
	binary.Write(&mmapBody, binary.BigEndian, uint32(keyBody.Len()))
	binary.Write(&mmapBody, binary.BigEndian, keyOffset)
	binary.Write(&mmapBody, binary.BigEndian, uint16(0))
	binary.Write(&mmapBody, binary.BigEndian, uint16(0))
	binary.Write(&mmapBody, binary.BigEndian, int32(NoChunk))

	body.WriteString("mmap")
	binary.Write(&body, binary.BigEndian, uint32(mmapBody.Len()))
	body.Write(mmapBody.Bytes())

	body.WriteString("KEY*")
	binary.Write(&body, binary.BigEndian, uint32(keyBody.Len()))
	body.Write(keyBody.Bytes())

	var out bytes.Buffer
	out.WriteString("RIFX")
	binary.Write(&out, binary.BigEndian, uint32(body.Len()+4)) // subtype counted in the recorded size
	out.WriteString("MV93")
	out.Write(body.Bytes())
	full := out.Bytes()

	binary.BigEndian.PutUint32(full[headerLen+mmapOffsetFieldInBody:], mmapOffset)
	return full
}

func osTypePad4(s string) string {
	for len(s) < 4 {
		s += " "
	}
	return s[:4]
}

func TestRiffMV93Basic(t *testing.T) {
	chunks := []riffChunkSpec{
		{tag: "VWCF", body: []byte("configdata")},
	}
	data := buildRiffMV93(chunks, []riffKeyEntrySpec{
		{chunkIndex: 0, id: 1, osType: "VWCF"},
	})

	riff, err := OpenRiff(mustSharedStream(t, data))
	require.NoError(t, err)
	assert.Equal(t, D4, riff.Version())
	assert.Equal(t, RiffKindMovie, riff.Kind())

	id := ResourceId{Type: NewOSType("VWCF"), Num: 1}
	assert.True(t, riff.Contains(id))

	got, err := LoadId(riff, id, func(b []byte) ([]byte, error) { return b, nil })
	require.NoError(t, err)
	assert.Equal(t, "configdata", string(got))
}

func TestRiffFirstOfKind(t *testing.T) {
	chunks := []riffChunkSpec{
		{tag: "VWCF", body: []byte("configdata")},
		{tag: "CASt", body: []byte("castbytes!")},
	}
	data := buildRiffMV93(chunks, []riffKeyEntrySpec{
		{chunkIndex: 0, id: 1, osType: "VWCF"},
		{chunkIndex: 1, id: 2, osType: "CASt"},
	})
	riff, err := OpenRiff(mustSharedStream(t, data))
	require.NoError(t, err)
	assert.EqualValues(t, 1, riff.FirstOfKind(NewOSType("CASt")))
	assert.Equal(t, NoChunk, riff.FirstOfKind(NewOSType("PICT")))
}

func TestRiffBadMagic(t *testing.T) {
	_, err := OpenRiff(mustSharedStream(t, []byte("plain text, not a riff")))
	assert.ErrorIs(t, err, ErrBadMagic)
}

func mustSharedStream(t *testing.T, data []byte) *SharedStream {
	t.Helper()
	s, err := NewSharedStream(bytes.NewReader(data))
	require.NoError(t, err)
	return s
}
