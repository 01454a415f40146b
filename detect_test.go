package dirfile

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeVirtualFile adapts a bytes.Reader to the VirtualFile interface for
// detect.go's tests.
type fakeVirtualFile struct {
	*bytes.Reader
	name, path string
}

func (f *fakeVirtualFile) Close() error  { return nil }
func (f *fakeVirtualFile) Name() string  { return f.name }
func (f *fakeVirtualFile) Path() string  { return f.path }

// fakeVFS serves fixed data/resource-fork bytes for a single path, with no
// host filesystem or envelope probing.
type fakeVFS struct {
	data         []byte
	resourceFork []byte
}

func (fs *fakeVFS) Open(path string) (VirtualFile, error) {
	if fs.data == nil {
		return nil, ErrNotFound
	}
	return &fakeVirtualFile{Reader: bytes.NewReader(fs.data), name: path, path: path}, nil
}

func (fs *fakeVFS) OpenResourceFork(path string) (VirtualFile, error) {
	if fs.resourceFork == nil {
		return nil, ErrNotFound
	}
	return &fakeVirtualFile{Reader: bytes.NewReader(fs.resourceFork), name: path, path: path}, nil
}

func TestDetectBareRiffMovie(t *testing.T) {
	riffData := buildRiffMV93([]riffChunkSpec{
		{tag: "VWCF", body: []byte("configdata")},
	}, nil)
	fs := &fakeVFS{data: riffData}

	info, err := Detect(fs, "movie.dir")
	require.NoError(t, err)
	assert.Equal(t, DetectionKindMovie, info.Kind)
	assert.Equal(t, D4, info.Movie.Version)
}

func TestDetectMacResourceForkProjector(t *testing.T) {
	settingsBits := make([]byte, 12)
	settingsBits[10] = 1
	resFork := buildResourceFile([]rfKindSpec{
		{kind: "junk", items: []rfItemSpec{{id: 1, data: make([]byte, 80)}}},
		{kind: "VWst", items: []rfItemSpec{{id: 0, data: settingsBits}}},
	})
	fs := &fakeVFS{resourceFork: resFork}

	info, err := Detect(fs, "player.bin")
	require.NoError(t, err)
	assert.Equal(t, DetectionKindProjector, info.Kind)
	assert.Equal(t, D3, info.Projector.Version)
}

func TestDetectNothingMatches(t *testing.T) {
	fs := &fakeVFS{data: []byte("not a director file at all, just text")}
	_, err := Detect(fs, "junk.txt")
	assert.Error(t, err)
}

func TestDetectNoDataForkAtAll(t *testing.T) {
	fs := &fakeVFS{}
	_, err := Detect(fs, "missing.bin")
	assert.True(t, errors.Is(err, ErrNotFound) || err != nil)
}
