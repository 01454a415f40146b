package dirfile

import "errors"

// Sentinel errors for the container/detection subsystem. Parsers and
// detectors return them directly or wrapped with %w, so errors.Is matches
// them on those results; Detect's combined failure (see detect.go) carries
// the branch errors as text only.
var (
	// ErrBadMagic is returned when a file does not match any recognized
	// envelope, projector, or RIFF outer tag.
	ErrBadMagic = errors.New("dirfile: bad magic")

	// ErrFileTooSmall is returned when a header or map region's declared
	// offsets/sizes exceed the underlying stream's length.
	ErrFileTooSmall = errors.New("dirfile: file too small for declared header")

	// ErrBadMapSize is returned when a resource-file or RIFF map's header
	// or entry size field does not match the required constant.
	ErrBadMapSize = errors.New("dirfile: bad map size")

	// ErrBadMapResourceCount is returned when a type's resource count, or
	// the map's type count, exceeds the format's hard cap.
	ErrBadMapResourceCount = errors.New("dirfile: bad map resource count")

	// ErrInvariant is returned when an on-disk structure does not satisfy
	// a format invariant (reserved bits, sentinel constants) that every
	// known-good file satisfies; it indicates either a corrupt file or a
	// sample the parser has not seen before.
	ErrInvariant = errors.New("dirfile: invariant violation")

	// ErrUnsupportedCompression is returned when a Mac resource entry has
	// its COMPRESSED flag set; Mac resource-level compression (distinct
	// from Application VISE) is not implemented.
	ErrUnsupportedCompression = errors.New("dirfile: compressed resource flag not supported")

	// ErrUnsupportedEndianness is returned when a RIFF's OSType/data
	// endianness combination is not one of the three valid pairs.
	ErrUnsupportedEndianness = errors.New("dirfile: unsupported endianness combination")

	// ErrUnsupportedVersion is returned when a projector or movie magic
	// identifies a format generation this module does not parse (D7
	// projector settings, for example).
	ErrUnsupportedVersion = errors.New("dirfile: unsupported format version")

	// ErrUnknownCPU is returned when a D4+ Mac projector settings record
	// names a CPU tag this module does not recognize.
	ErrUnknownCPU = errors.New("dirfile: unknown Mac CPU tag")

	// ErrChecksum is returned when a VISE-compressed blob's embedded XOR
	// checksum does not match its contents.
	ErrChecksum = errors.New("dirfile: checksum mismatch")

	// ErrVISEReentry is returned when priming the VISE shared dictionary
	// would re-enter itself: the CODE resource that holds the dictionary
	// is itself VISE-compressed, which is not supported.
	ErrVISEReentry = errors.New("dirfile: VISE dictionary priming re-entered")

	// ErrVISENoDictionary is returned when a resource file has no CODE
	// resource from which to prime the shared VISE dictionary.
	ErrVISENoDictionary = errors.New("dirfile: no CODE resource to prime VISE dictionary")

	// ErrNotFound is returned when a requested ResourceId does not exist
	// in any open file searched.
	ErrNotFound = errors.New("dirfile: resource not found")

	// ErrNotFoundNum is returned when a requested resource number (without
	// a name) does not exist.
	ErrNotFoundNum = errors.New("dirfile: resource number not found")

	// ErrBadRefNum is returned when a RefNum does not correspond to any
	// open file.
	ErrBadRefNum = errors.New("dirfile: bad reference number")

	// ErrBadCurrentFile is returned when the Resource Manager's current-file
	// cursor points outside the open-file stack.
	ErrBadCurrentFile = errors.New("dirfile: bad current file index")

	// ErrNoSystemFile is returned by the Resource Manager's current-file-only
	// lookups when the current file is the system file and no system file
	// was supplied.
	ErrNoSystemFile = errors.New("dirfile: no system file available")

	// ErrOutOfRange is returned when a seek or index falls outside what a
	// stream or table holds: SharedStream.Seek outside the stream's
	// bounds, a memory-mapped Seek to a negative position or with an
	// unknown whence, or a RIFF chunk index or container file index with
	// no entry. Offsets and indices read from a file can reach it.
	// (SharedStream.Sub panics on a bad bound instead.)
	ErrOutOfRange = errors.New("dirfile: argument out of range")

	// ErrBorrowed is returned when a SharedStream's underlying reader is
	// already borrowed by a concurrent read from a sibling clone.
	ErrBorrowed = errors.New("dirfile: underlying reader already borrowed")

	// ErrStillShared is returned from SharedStream.IntoInner when more
	// than one clone of the stream is outstanding.
	ErrStillShared = errors.New("dirfile: stream has outstanding clones")
)
