package dirfile

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenRiffContainer(t *testing.T) {
	const itemSize = 16
	listBody := buildStdListFrame(binary.BigEndian, 4, [][]byte{
		{0, 0, 0, 5},
		{0, 0, 0, 7},
	})
	dictBody := buildStdListFrame(binary.BigEndian, itemSize, [][]byte{
		buildDictEntry("intro.dir", 0, itemSize),
		buildDictEntry("main.dir", 0, itemSize),
	})

	data := buildRiffMV93([]riffChunkSpec{
		{tag: "List", body: listBody},
		{tag: "Dict", body: dictBody},
	}, nil)

	rc, err := OpenRiffContainer(mustSharedStream(t, data))
	require.NoError(t, err)
	assert.Equal(t, 2, rc.Len())

	name, ok := rc.Filename(0)
	require.True(t, ok)
	assert.Equal(t, "intro.dir", name)

	kind, ok := rc.Kind(1)
	require.True(t, ok)
	assert.Equal(t, ChunkFileKindMovie, kind)

	_, ok = rc.Filename(5)
	assert.False(t, ok)
}
