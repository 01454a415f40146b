package dirfile

import (
	"fmt"
	"io"
	"strings"
)

// DetectionKind distinguishes what Detection's payload holds.
type DetectionKind int

const (
	DetectionKindProjector DetectionKind = iota
	DetectionKindMovie
)

// Detection is the result of Detect: which kind of Director file path names,
// its detail payload, and the open forks Detect used to get there. Callers
// that want to go on to read resources/chunks from the file reuse these
// forks instead of reopening path.
type Detection struct {
	Kind         DetectionKind
	Projector    *Projector
	Movie        *MovieDetectionInfo
	DataFork     VirtualFile
	ResourceFork VirtualFile
}

// Detect identifies path as one of the Director file kinds this module
// understands, trying each convention in the order a real file is most
// likely to match it, per SPEC_FULL.md §4.10:
//
//  1. Mac resource fork carrying a D4+ or D3 projector.
//  2. Mac resource fork carrying a bare D3 movie/accelerator.
//  3. Data fork carrying a Windows (PE/NE) projector.
//  4. Data fork carrying a Mac projector or movie (a resource fork stored
//     as the data fork, e.g. after a non-fork-aware transfer).
//  5. Data fork that is itself a bare RIFF movie/cast.
func Detect(fs VirtualFileSystem, path string) (*Detection, error) {
	if resFork, err := fs.OpenResourceFork(path); err == nil {
		dataFork, _ := fs.Open(path)
		var dataStream *SharedStream
		if dataFork != nil {
			dataStream, _ = NewSharedStream(dataFork)
		}
		if info, err := detectMacFork(resFork, dataStream); err == nil {
			info.DataFork = dataFork
			info.ResourceFork = resFork
			return info, nil
		} else if dataFork != nil {
			dataFork.Close()
		}
		resFork.Close()
	}

	dataFork, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("detection failed: no data fork: %w", err)
	}

	stream, err := NewSharedStream(dataFork)
	if err != nil {
		dataFork.Close()
		return nil, fmt.Errorf("detection failed: %w", err)
	}

	var errs []error

	if _, err := stream.Seek(0, io.SeekStart); err == nil {
		if p, err := DetectProjectorWin(stream); err == nil {
			return &Detection{Kind: DetectionKindProjector, Projector: p, DataFork: dataFork}, nil
		} else {
			errs = append(errs, fmt.Errorf("not a Director for Windows file: %w", err))
		}
	}

	if _, err := stream.Seek(0, io.SeekStart); err == nil {
		if info, err := detectMacFork(stream, nil); err == nil {
			info.DataFork = dataFork
			return info, nil
		} else {
			errs = append(errs, err)
		}
	}

	if _, err := stream.Seek(0, io.SeekStart); err == nil {
		if m, err := DetectMovieRiff(stream); err == nil {
			return &Detection{Kind: DetectionKindMovie, Movie: m, DataFork: dataFork}, nil
		} else {
			errs = append(errs, err)
		}
	}

	dataFork.Close()
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return nil, fmt.Errorf("detection failed: %s", strings.Join(msgs, "; "))
}

// detectMacFork tries a Mac projector, then a bare Mac movie, against
// resourceFork (which may be a real resource fork or a data fork being
// tried as one).
func detectMacFork(resourceFork io.ReadSeeker, dataFork *SharedStream) (*Detection, error) {
	if p, err := DetectProjectorMac(resourceFork, dataFork); err == nil {
		return &Detection{Kind: DetectionKindProjector, Projector: p}, nil
	}

	if _, err := resourceFork.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	m, err := DetectMovieMac(resourceFork)
	if err != nil {
		return nil, fmt.Errorf("not a Director for Mac file: %w", err)
	}
	return &Detection{Kind: DetectionKindMovie, Movie: m}, nil
}
