package dirfile

import (
	"io"
	"os"
	"path/filepath"
	"reflect"
	"runtime"

	"github.com/edsrzf/mmap-go"
	"github.com/rs/zerolog"
)

// VirtualFile is a data- or resource-fork handle returned by a
// VirtualFileSystem. Name reports the original filename recorded in an
// envelope (MacBinary/AppleSingle), if any; it may differ from Path when the
// file came from an envelope whose payload was authored under a different
// name. Path is the VFS path the file was opened from.
type VirtualFile interface {
	io.ReadSeeker
	io.Closer
	Name() string
	Path() string
}

// VirtualFileSystem abstracts away host-OS fork conventions. Open yields the
// data fork; OpenResourceFork yields the resource fork, which may not exist
// for a given path (e.g. a plain Windows file), in which case it returns an
// error satisfying errors.Is(err, ErrBadMagic) is not guaranteed — callers
// should treat any error from OpenResourceFork as "no resource fork here"
// and fall back to the data fork.
type VirtualFileSystem interface {
	Open(path string) (VirtualFile, error)
	OpenResourceFork(path string) (VirtualFile, error)
}

// memoryFile is the concrete VirtualFile used once an envelope or host probe
// has located a fork's bytes, wrapping them in a SharedStream-compatible
// io.ReadSeeker.
type memoryFile struct {
	io.ReadSeeker
	closer func() error
	name   string
	path   string
}

func (f *memoryFile) Close() error {
	if f.closer != nil {
		return f.closer()
	}
	return nil
}

func (f *memoryFile) Name() string { return f.name }
func (f *memoryFile) Path() string { return f.path }

// HostOptions configures HostFileSystem.
type HostOptions struct {
	// Logger receives diagnostic entries about which envelope/fork
	// convention matched for a given path. The zero value disables
	// logging.
	Logger zerolog.Logger
}

// HostFileSystem is the VirtualFileSystem implementation for files that live
// on a real filesystem. It tries, in order: AppleSingle/AppleDouble (the
// file itself, or a "path.rsrc" AppleDouble sidecar; the "%name" sidecar is
// not tried), MacBinary (the file at path itself; no ".bin" sibling is
// probed), the native named fork (Darwin only, see openNamedForkRsrc), and
// a plain ".rsrc" sidecar, falling back to treating the bare file as the
// data fork.
type HostFileSystem struct {
	opts HostOptions
	log  zerolog.Logger
}

// NewHostFileSystem constructs a HostFileSystem.
func NewHostFileSystem(opts HostOptions) *HostFileSystem {
	log := opts.Logger
	if reflect.DeepEqual(log, zerolog.Logger{}) {
		log = nopLogger()
	}
	return &HostFileSystem{opts: opts, log: componentLogger(log, "vfs")}
}

// mmapReader opens path read-only, memory-maps it via mmap-go to avoid
// buffering a potentially large file into the Go heap just to parse its
// header, and hands back a ReadSeeker view plus a closer that unmaps and
// closes the OS handle.
func mmapReader(path string) (io.ReadSeeker, func() error, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	if info.Size() == 0 {
		// mmap-go rejects zero-length mappings; fall back to the plain
		// *os.File, which already satisfies io.ReadSeeker.
		return f, f.Close, nil
	}
	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	reader := &mmapReadSeeker{data: []byte(m)}
	closer := func() error {
		if err := m.Unmap(); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	}
	return reader, closer, nil
}

// mmapReadSeeker adapts an mmap.MMap (a []byte) to io.ReadSeeker.
type mmapReadSeeker struct {
	data []byte
	pos  int64
}

func (m *mmapReadSeeker) Read(p []byte) (int, error) {
	if m.pos >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n := copy(p, m.data[m.pos:])
	m.pos += int64(n)
	return n, nil
}

func (m *mmapReadSeeker) Seek(offset int64, whence int) (int64, error) {
	var base int64
	switch whence {
	case io.SeekStart:
		base = 0
	case io.SeekCurrent:
		base = m.pos
	case io.SeekEnd:
		base = int64(len(m.data))
	default:
		return 0, ErrOutOfRange
	}
	newPos := base + offset
	if newPos < 0 {
		return 0, ErrOutOfRange
	}
	m.pos = newPos
	return newPos, nil
}

// Open returns path's data fork.
func (h *HostFileSystem) Open(path string) (VirtualFile, error) {
	if ad, name, err := openAppleDoubleData(path); err == nil {
		h.log.Debug().Str("path", path).Msg("data fork via AppleDouble pairing")
		return &memoryFile{ReadSeeker: ad, name: name, path: path}, nil
	}
	if mb, name, err := openMacBinaryData(path); err == nil {
		h.log.Debug().Str("path", path).Msg("data fork via MacBinary")
		return &memoryFile{ReadSeeker: mb, name: name, path: path}, nil
	}

	r, closer, err := mmapReader(path)
	if err != nil {
		return nil, err
	}
	return &memoryFile{ReadSeeker: r, closer: closer, name: filepath.Base(path), path: path}, nil
}

// OpenResourceFork returns path's resource fork via the first convention
// that succeeds.
func (h *HostFileSystem) OpenResourceFork(path string) (VirtualFile, error) {
	if ad, name, err := openAppleDoubleResource(path); err == nil {
		h.log.Debug().Str("path", path).Msg("resource fork via AppleDouble/AppleSingle")
		return &memoryFile{ReadSeeker: ad, name: name, path: path}, nil
	}
	if mb, name, err := openMacBinaryResource(path); err == nil {
		h.log.Debug().Str("path", path).Msg("resource fork via MacBinary")
		return &memoryFile{ReadSeeker: mb, name: name, path: path}, nil
	}
	if r, closer, err := openNamedForkRsrc(path); err == nil {
		h.log.Debug().Str("path", path).Msg("resource fork via native named fork")
		return &memoryFile{ReadSeeker: r, closer: closer, name: filepath.Base(path), path: path}, nil
	}
	if r, closer, err := mmapReader(path + ".rsrc"); err == nil {
		h.log.Debug().Str("path", path).Msg("resource fork via .rsrc sidecar")
		return &memoryFile{ReadSeeker: r, closer: closer, name: filepath.Base(path), path: path}, nil
	}
	return nil, ErrBadMagic
}

// openNamedForkRsrc opens the OS-native resource fork path when the host
// supports one (Darwin's "path/..namedfork/rsrc"), and
// fails on every other platform. Kept in its own function so the platform
// check stays in one place; runtime.GOOS is read rather than a build-tagged
// file pair since the only platform-specific behavior is this one path
// suffix.
func openNamedForkRsrc(path string) (io.ReadSeeker, func() error, error) {
	if runtime.GOOS != "darwin" {
		return nil, nil, ErrBadMagic
	}
	return mmapReader(path + "/..namedfork/rsrc")
}
