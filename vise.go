package dirfile

import "encoding/binary"

// viseUseSharedDict marks that a VISE blob's dictionary pointer selects one
// of four fixed offsets inside the shared dictionary (via a 2-bit index)
// rather than an offset into the blob itself.
const viseUseSharedDict = 0x8000_0000

// ApplicationVise decompresses Application VISE-compressed blobs (legacy
// Macromedia runtime compression) given a shared dictionary, per
// SPEC_FULL.md §4.4. It is stateless once constructed: Decompress may be
// called any number of times and from any number of goroutines, since it
// only reads sharedData.
type ApplicationVise struct {
	sharedData []byte
}

// NewApplicationVise builds a decompressor around a shared dictionary
// (extracted from a CODE resource via FindVISESharedData).
func NewApplicationVise(sharedData []byte) *ApplicationVise {
	return &ApplicationVise{sharedData: sharedData}
}

// IsVISECompressed reports whether data begins with the Application VISE
// magic.
func IsVISECompressed(data []byte) bool {
	return len(data) >= 4 && data[0] == 0xa8 && data[1] == 0x9f && data[2] == 0x00 && data[3] == 0x0c
}

// ValidateVISE checks data's embedded 32-bit XOR checksum (over everything
// from byte 8 onward) against the value stored at byte 4.
func ValidateVISE(data []byte) error {
	if len(data) < 8 {
		return ErrFileTooSmall
	}
	expected := binary.BigEndian.Uint32(data[4:8])

	actual := uint32(0xAAAAAAAA)
	index := 8
	size := len(data) - index
	for i := 0; i < size/4; i++ {
		actual ^= binary.BigEndian.Uint32(data[index:])
		index += 4
	}
	for i := 0; i < size&3; i++ {
		actual ^= uint32(data[index])
		index++
	}

	if expected != actual {
		return ErrChecksum
	}
	return nil
}

// FindVISESharedData locates the shared dictionary inside the bytes of a
// CODE resource: signature "VISE" at offset 18, opcode 0x47 0xFA at offset
// 60, and a 16-bit offset-to-dictionary at offset 62 (relative to offset 62
// itself).
func FindVISESharedData(data []byte) ([]byte, bool) {
	if len(data) < 64 {
		return nil, false
	}
	if string(data[18:22]) != "VISE" || data[60] != 0x47 || data[61] != 0xfa {
		return nil, false
	}
	offset := int(binary.BigEndian.Uint16(data[62:64]))
	if 62+offset > len(data) {
		return nil, false
	}
	return data[62+offset:], true
}

// Decompress decodes one VISE-compressed blob. The blob must begin with the
// VISE magic and pass its embedded checksum; Decompress validates both.
func (v *ApplicationVise) Decompress(data []byte) ([]byte, error) {
	if !IsVISECompressed(data) {
		return nil, ErrBadMagic
	}
	if err := ValidateVISE(data); err != nil {
		return nil, err
	}
	if len(data) < 16 {
		return nil, ErrFileTooSmall
	}

	decompressedSize := int(binary.BigEndian.Uint32(data[8:12]))
	oddSizedOutput := decompressedSize&1 == 1
	localData := data[16:]

	localDataSize := int(consumeU32(&localData))
	if localDataSize > len(data) {
		return nil, ErrInvariant
	}
	opStream := data[localDataSize:]
	trailer := 1
	if oddSizedOutput {
		trailer = 2
	}
	opCount := len(data) - localDataSize - trailer

	config := consumeU32(&localData)
	var sharedData []byte
	if config&viseUseSharedDict == 0 {
		if int(config) > len(data) {
			return nil, ErrInvariant
		}
		sharedData = data[config:]
	} else {
		tableOffset := int(1<<(config&3)) + 6
		if tableOffset+2 > len(v.sharedData) {
			return nil, ErrInvariant
		}
		offset := int(binary.BigEndian.Uint16(v.sharedData[tableOffset:]))
		if offset > len(v.sharedData) {
			return nil, ErrInvariant
		}
		sharedData = v.sharedData[offset:]
	}

	output := make([]byte, 0, decompressedSize)

	for {
		op, err := consumeVISEOp(&opStream)
		if err != nil {
			return nil, err
		}

		switch op.kind {
		case viseOpShared:
			if int(op.offset)+2 > len(sharedData) {
				return nil, ErrInvariant
			}
			output = append(output, sharedData[op.offset], sharedData[op.offset+1])

		case viseOpDecompressedEnd:
			for i := uint16(0); i < (op.count+1)*2; i++ {
				if int(op.offset) > len(output) {
					return nil, ErrInvariant
				}
				output = append(output, output[len(output)-int(op.offset)])
			}
			opCount--

		case viseOpSharedAndLocal:
			if op.addLocal {
				if len(localData) < 2 {
					return nil, ErrFileTooSmall
				}
				output = append(output, localData[0], localData[1])
				localData = localData[2:]
			}
			if int(op.offset)+2 > len(sharedData) {
				return nil, ErrInvariant
			}
			output = append(output, sharedData[op.offset], sharedData[op.offset+1])
			opCount--

		case viseOpDecompressedStart:
			if op.addLocal {
				if len(localData) < 2 {
					return nil, ErrFileTooSmall
				}
				output = append(output, localData[0], localData[1])
				localData = localData[2:]
			}
			for i := uint16(0); i < (op.count+1)*2; i++ {
				idx := int(op.offset) + int(i)
				if idx >= len(output) {
					return nil, ErrInvariant
				}
				output = append(output, output[idx])
			}
			opCount -= 2

		case viseOpLocal:
			for i := uint16(0); i <= op.count; i++ {
				if len(localData) < 2 {
					return nil, ErrFileTooSmall
				}
				output = append(output, localData[0], localData[1])
				localData = localData[2:]
			}
		}

		if opCount == 0 {
			break
		}
		opCount--
	}

	if oddSizedOutput {
		if len(opStream) < 1 {
			return nil, ErrFileTooSmall
		}
		output = append(output, opStream[0])
	}

	if len(output) != decompressedSize {
		return nil, ErrFileTooSmall
	}
	return output, nil
}

type viseOpKind int

const (
	viseOpShared viseOpKind = iota
	viseOpDecompressedEnd
	viseOpSharedAndLocal
	viseOpDecompressedStart
	viseOpLocal
)

type viseOp struct {
	kind     viseOpKind
	offset   uint16
	count    uint16
	addLocal bool
}

// consumeVISEOp decodes one variable-width prefix-coded operation from the
// op stream, per the table in SPEC_FULL.md §4.4.
func consumeVISEOp(opStream *[]byte) (viseOp, error) {
	if len(*opStream) < 1 {
		return viseOp{}, ErrFileTooSmall
	}
	code := consumeU8(opStream)

	if consumeBit(&code) == 0 { // 0
		return viseOp{kind: viseOpShared, offset: code * 2}, nil
	}
	if consumeBit(&code) == 0 { // 01
		count := (code & 7) + 1
		b, err := consumeU8Checked(opStream)
		if err != nil {
			return viseOp{}, err
		}
		offset := b << 3
		offset |= code >> 3
		offset++
		offset *= 2
		return viseOp{kind: viseOpDecompressedEnd, offset: offset, count: count}, nil
	}
	if consumeBit(&code) == 0 { // 011
		const localFlag = 0x2000
		b, err := consumeU8Checked(opStream)
		if err != nil {
			return viseOp{}, err
		}
		offset := b << 5
		offset |= code
		offset += 0x80
		offset *= 2
		addLocal := offset&localFlag != 0
		offset &^= localFlag
		return viseOp{kind: viseOpSharedAndLocal, offset: offset, addLocal: addLocal}, nil
	}
	if consumeBit(&code) == 0 { // 0111
		count := code + 1
		hi, err := consumeU8Checked(opStream)
		if err != nil {
			return viseOp{}, err
		}
		lo, err := consumeU8Checked(opStream)
		if err != nil {
			return viseOp{}, err
		}
		offset := (hi << 8) | lo
		addLocal := offset&0x8000 != 0
		offset <<= 1
		return viseOp{kind: viseOpDecompressedStart, offset: offset, count: count, addLocal: addLocal}, nil
	}
	// 1111
	return viseOp{kind: viseOpLocal, count: code}, nil
}

func consumeBit(data *uint16) uint16 {
	flag := *data & 1
	*data >>= 1
	return flag
}

func consumeU8(data *[]byte) uint16 {
	v := (*data)[0]
	*data = (*data)[1:]
	return uint16(v)
}

func consumeU8Checked(data *[]byte) (uint16, error) {
	if len(*data) < 1 {
		return 0, ErrFileTooSmall
	}
	return consumeU8(data), nil
}

func consumeU32(data *[]byte) uint32 {
	v := binary.BigEndian.Uint32(*data)
	*data = (*data)[4:]
	return v
}
