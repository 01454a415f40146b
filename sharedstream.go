package dirfile

import (
	"io"
	"sync/atomic"
)

// sharedReader is the Rc<RefCell<T>> equivalent: one underlying reader
// shared by every clone of a SharedStream. access serializes reads the way
// RefCell::try_borrow_mut does; refs counts outstanding SharedStream values
// so IntoInner can refuse to hand back the reader while clones still exist.
type sharedReader struct {
	r      io.ReadSeeker
	access int32 // 0 = free, 1 = borrowed; CAS-guarded
	refs   int32 // atomic
}

func (s *sharedReader) tryBorrow() bool {
	return atomic.CompareAndSwapInt32(&s.access, 0, 1)
}

func (s *sharedReader) release() {
	atomic.StoreInt32(&s.access, 0)
}

// SharedStream is a reference-counted, bounded, clonable view over one
// underlying io.ReadSeeker. Every clone has its own cursor but the clones
// share one underlying reader; reads from any clone seek the shared reader
// to that clone's current position first, so interleaved reads from
// different clones never corrupt each other, but they are not safe to issue
// concurrently from different goroutines without external synchronization
// beyond the single-read borrow this type itself takes.
type SharedStream struct {
	inner      *sharedReader
	startPos   int64
	currentPos int64
	endPos     int64
}

// NewSharedStream builds a SharedStream over the full length of r, with the
// current position set to r's current position.
func NewSharedStream(r io.ReadSeeker) (*SharedStream, error) {
	cur, err := r.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, err
	}
	end, err := streamLen(r, cur)
	if err != nil {
		return nil, err
	}
	return &SharedStream{
		inner:      &sharedReader{r: r, refs: 1},
		startPos:   0,
		currentPos: cur,
		endPos:     end,
	}, nil
}

// NewSubstreamFrom builds a SharedStream bounded to [r's current position,
// r's length).
func NewSubstreamFrom(r io.ReadSeeker) (*SharedStream, error) {
	start, err := r.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, err
	}
	end, err := streamLen(r, start)
	if err != nil {
		return nil, err
	}
	return &SharedStream{
		inner:      &sharedReader{r: r, refs: 1},
		startPos:   start,
		currentPos: start,
		endPos:     end,
	}, nil
}

// NewSharedStreamWithBounds builds a SharedStream over r bounded to
// [start, end) without inspecting r's length.
func NewSharedStreamWithBounds(r io.ReadSeeker, start, end int64) *SharedStream {
	return &SharedStream{
		inner:      &sharedReader{r: r, refs: 1},
		startPos:   start,
		currentPos: start,
		endPos:     end,
	}
}

// streamLen returns r's length by seeking to the end and back to restore.
func streamLen(r io.ReadSeeker, restoreTo int64) (int64, error) {
	end, err := r.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, err
	}
	if _, err := r.Seek(restoreTo, io.SeekStart); err != nil {
		return 0, err
	}
	return end, nil
}

// Sub returns a new view bounded to [start, end) relative to s, sharing s's
// underlying reader. It panics if end exceeds s's own end bound — an
// out-of-range substream request is a caller bug, not a malformed-file
// condition (every call site computes start/end from already-validated
// header fields).
func (s *SharedStream) Sub(start, end int64) *SharedStream {
	if s.startPos+end > s.endPos {
		panic("dirfile: SharedStream.Sub: end exceeds parent bound")
	}
	atomic.AddInt32(&s.inner.refs, 1)
	return &SharedStream{
		inner:      s.inner,
		startPos:   start + s.startPos,
		currentPos: start + s.startPos,
		endPos:     end + s.startPos,
	}
}

// Clone returns an independent cursor over the same underlying reader.
func (s *SharedStream) Clone() *SharedStream {
	atomic.AddInt32(&s.inner.refs, 1)
	return &SharedStream{
		inner:      s.inner,
		startPos:   s.startPos,
		currentPos: s.currentPos,
		endPos:     s.endPos,
	}
}

// Close releases this clone's reference. It must be called exactly once per
// SharedStream obtained from NewSharedStream/Sub/Clone before IntoInner can
// succeed on the last remaining clone.
func (s *SharedStream) Close() {
	atomic.AddInt32(&s.inner.refs, -1)
}

// IntoInner returns the underlying reader, failing with ErrStillShared
// unless this is the only outstanding reference.
func (s *SharedStream) IntoInner() (io.ReadSeeker, error) {
	if atomic.LoadInt32(&s.inner.refs) != 1 {
		return nil, ErrStillShared
	}
	return s.inner.r, nil
}

// Len reports the stream's bounded length.
func (s *SharedStream) Len() int64 {
	return s.endPos - s.startPos
}

// Pos reports the current position relative to the stream's start.
func (s *SharedStream) Pos() int64 {
	return s.currentPos - s.startPos
}

// Read implements io.Reader. It seeks the shared underlying reader to this
// clone's current position first, truncates at the stream's end bound, and
// returns 0 without touching the underlying reader when already at EOF (so
// a pipe-like underlying reader is never asked to block past the declared
// end).
func (s *SharedStream) Read(buf []byte) (int, error) {
	if !s.inner.tryBorrow() {
		return 0, ErrBorrowed
	}
	defer s.inner.release()

	if _, err := s.inner.r.Seek(s.currentPos, io.SeekStart); err != nil {
		return 0, err
	}

	limit := s.endPos - s.currentPos
	if limit <= 0 {
		return 0, nil
	}

	max := int64(len(buf))
	if max > limit {
		max = limit
	}
	n, err := s.inner.r.Read(buf[:max])
	s.currentPos += int64(n)
	return n, err
}

// Seek implements io.Seeker relative to the stream's bounds. Seeking before
// start or past end returns ErrOutOfRange, mirroring the original's
// InvalidInput error.
func (s *SharedStream) Seek(offset int64, whence int) (int64, error) {
	var base int64
	switch whence {
	case io.SeekStart:
		base = s.startPos
	case io.SeekEnd:
		base = s.endPos
	case io.SeekCurrent:
		base = s.currentPos
	default:
		return 0, ErrOutOfRange
	}

	newPos := base + offset
	if newPos < s.startPos || newPos > s.endPos {
		return 0, ErrOutOfRange
	}
	s.currentPos = newPos
	return newPos - s.startPos, nil
}

var (
	_ io.ReadSeeker = (*SharedStream)(nil)
)
