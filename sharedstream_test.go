package dirfile

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSharedStreamReadSeek(t *testing.T) {
	r := bytes.NewReader([]byte("0123456789"))
	s, err := NewSharedStream(r)
	require.NoError(t, err)
	assert.EqualValues(t, 10, s.Len())

	buf := make([]byte, 4)
	n, err := s.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, "0123", string(buf))
	assert.EqualValues(t, 4, s.Pos())

	pos, err := s.Seek(0, io.SeekStart)
	require.NoError(t, err)
	assert.EqualValues(t, 0, pos)
}

func TestSharedStreamSeekOutOfRange(t *testing.T) {
	s, err := NewSharedStream(bytes.NewReader([]byte("abc")))
	require.NoError(t, err)
	_, err = s.Seek(100, io.SeekStart)
	assert.ErrorIs(t, err, ErrOutOfRange)
	_, err = s.Seek(-1, io.SeekStart)
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestSharedStreamSubBounded(t *testing.T) {
	s, err := NewSharedStream(bytes.NewReader([]byte("0123456789")))
	require.NoError(t, err)

	sub := s.Sub(2, 5)
	assert.EqualValues(t, 3, sub.Len())

	buf := make([]byte, 10)
	n, err := sub.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "234", string(buf[:n]))
}

func TestSharedStreamSubOutOfRangePanics(t *testing.T) {
	s, err := NewSharedStream(bytes.NewReader([]byte("0123456789")))
	require.NoError(t, err)
	assert.Panics(t, func() { s.Sub(0, 100) })
}

func TestSharedStreamCloneIndependentCursor(t *testing.T) {
	s, err := NewSharedStream(bytes.NewReader([]byte("0123456789")))
	require.NoError(t, err)
	clone := s.Clone()

	_, err = s.Seek(5, io.SeekStart)
	require.NoError(t, err)
	assert.EqualValues(t, 0, clone.Pos())
}

func TestSharedStreamIntoInnerRequiresSoleOwnership(t *testing.T) {
	s, err := NewSharedStream(bytes.NewReader([]byte("0123456789")))
	require.NoError(t, err)
	clone := s.Clone()

	_, err = s.IntoInner()
	assert.ErrorIs(t, err, ErrStillShared)

	clone.Close()
	_, err = s.IntoInner()
	assert.NoError(t, err)
}

func TestSharedStreamReadPastEndReturnsZero(t *testing.T) {
	s, err := NewSharedStream(bytes.NewReader([]byte("abc")))
	require.NoError(t, err)
	_, err = s.Seek(0, io.SeekEnd)
	require.NoError(t, err)

	buf := make([]byte, 4)
	n, err := s.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
