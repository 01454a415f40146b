package dirfile

import (
	"fmt"
	"io"
)

// MovieFileKind distinguishes the non-projector file kinds the movie detector
// recognizes. (Named distinctly from ChunkFileKind in riffcontainer.go and
// MovieKind in projector.go, which
// classify a projector's embedded playlist rather than a standalone file.)
type MovieFileKind int

const (
	MovieFileKindAccelerator MovieFileKind = iota
	MovieFileKindEmbedded
	MovieFileKindMovie
	MovieFileKindCast
)

func (k MovieFileKind) String() string {
	switch k {
	case MovieFileKindAccelerator:
		return "accelerator"
	case MovieFileKindEmbedded:
		return "embedded"
	case MovieFileKindCast:
		return "cast"
	default:
		return "movie"
	}
}

// MovieDetectionInfo is the result of detecting a bare (non-projector)
// Director file: a standalone movie, cast, embedded D3 movie, or D3
// accelerator, per SPEC_FULL.md §4.9.
type MovieDetectionInfo struct {
	OSTypeEndianness Endianness
	DataEndianness   Endianness
	Version          Version
	Kind             MovieFileKind
	Size             uint32
}

// DetectMovieMac recognizes a Director 3 movie or accelerator from its
// resource fork: a D3 accelerator carries an "EMPO" resource at 256; a D3
// movie carries exactly one "VWCF" resource not named "Tiles" (a "VWCF"
// named "Tiles" belongs to an embedded cast's tile configuration, not a
// standalone movie), or more than one "VWCF" resource at all.
func DetectMovieMac(resourceFork io.ReadSeeker) (*MovieDetectionInfo, error) {
	rom, err := OpenResourceFile(resourceFork)
	if err != nil {
		return nil, err
	}

	empo := NewOSType("EMPO")
	vwcf := NewOSType("VWCF")

	if rom.Contains(NewResourceId(empo, 256)) {
		return &MovieDetectionInfo{
			OSTypeEndianness: BigEndian,
			DataEndianness:   BigEndian,
			Version:          D3,
			Kind:             MovieFileKindAccelerator,
		}, nil
	}

	vwcfCount := rom.Count(vwcf)
	_, hasTiles := rom.IdOfName(vwcf, []byte("Tiles"))
	if vwcfCount > 1 || (vwcfCount == 1 && !hasTiles) {
		return &MovieDetectionInfo{
			OSTypeEndianness: BigEndian,
			DataEndianness:   BigEndian,
			Version:          D3,
			Kind:             MovieFileKindEmbedded,
		}, nil
	}

	return nil, fmt.Errorf("%w: no Director 3 movie configuration resource", ErrNotFound)
}

// DetectMovieRiff recognizes a D4+ movie, cast, or embedded-in-projector
// RIFF from stream, which must be positioned at its start.
func DetectMovieRiff(stream io.ReadSeeker) (*MovieDetectionInfo, error) {
	info, err := detectRiff(stream)
	if err != nil {
		return nil, fmt.Errorf("RIFF detection failed: %w", err)
	}

	var kind MovieFileKind
	switch info.kind {
	case RiffKindCast:
		kind = MovieFileKindCast
	case RiffKindEmbedded:
		kind = MovieFileKindEmbedded
	default:
		kind = MovieFileKindMovie
	}

	return &MovieDetectionInfo{
		OSTypeEndianness: info.osTypeEndianness,
		DataEndianness:   info.dataEndianness,
		Version:          info.version,
		Kind:             kind,
		Size:             info.size,
	}, nil
}
