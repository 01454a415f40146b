package dirfile

import "encoding/binary"

// stdListHeaderSize is the number of bytes consumed by a StdList/
// SerializedDict's fixed Rc(8) + used(4) + capacity(4) + header_size(2) +
// item_size(2) preamble, before header_size's own padding is skipped.
const stdListHeaderSize = 20

// StdList is a Macromedia "standard list": a heap-style fixed-stride array
// resource, used by RiffContainer for its file-order index
// (SPEC_FULL.md §4.7). The crate defining it was not present in the
// retrieval pack; this layout is reconstructed from the sibling List<T>/Rc
// Resource implementations in the pack (see DESIGN.md).
type StdList[T any] struct {
	items []T
}

// Len returns the number of entries.
func (l *StdList[T]) Len() int { return len(l.items) }

// Get returns the entry at index, if any.
func (l *StdList[T]) Get(index int) (T, bool) {
	var zero T
	if index < 0 || index >= len(l.items) {
		return zero, false
	}
	return l.items[index], true
}

// stdListFrame parses the common Rc+used+capacity+header_size+item_size
// preamble shared by StdList and SerializedDict, returning the offset of the
// first item, the item stride, and the item count.
func stdListFrame(data []byte, order binary.ByteOrder) (itemsStart int, itemSize int, used int, err error) {
	const rcSize = 8
	if len(data) < stdListHeaderSize {
		return 0, 0, 0, ErrFileTooSmall
	}
	usedU := order.Uint32(data[rcSize : rcSize+4])
	headerSize := order.Uint16(data[rcSize+8 : rcSize+10])
	itemSizeU := order.Uint16(data[rcSize+10 : rcSize+12])
	if int(headerSize) < stdListHeaderSize {
		return 0, 0, 0, ErrInvariant
	}
	total := int(headerSize) + int(itemSizeU)*int(usedU)
	if total > len(data) {
		return 0, 0, 0, ErrInvariant
	}
	return int(headerSize), int(itemSizeU), int(usedU), nil
}

// DecodeStdList builds a ResourceDecoder for a StdList of fixed-stride
// items, each decoded from its own item_size-byte slice.
func DecodeStdList[T any](order binary.ByteOrder, decodeItem func([]byte) (T, error)) ResourceDecoder[*StdList[T]] {
	return func(data []byte) (*StdList[T], error) {
		itemsStart, itemSize, used, err := stdListFrame(data, order)
		if err != nil {
			return nil, err
		}
		items := make([]T, 0, used)
		for i := 0; i < used; i++ {
			start := itemsStart + i*itemSize
			item, err := decodeItem(data[start : start+itemSize])
			if err != nil {
				return nil, err
			}
			items = append(items, item)
		}
		return &StdList[T]{items: items}, nil
	}
}

// SerializedDict is a Macromedia name -> value dictionary resource, used by
// RiffContainer to map a file index to its original filename
// (SPEC_FULL.md §4.7). Each entry is a Pascal-style name followed by a
// fixed-width value within the same item_size stride used by StdList.
type SerializedDict[T any] struct {
	keys   [][]byte
	values []T
}

// Len returns the number of entries.
func (d *SerializedDict[T]) Len() int { return len(d.keys) }

// KeyByIndex returns the name stored at index, if any.
func (d *SerializedDict[T]) KeyByIndex(index int) ([]byte, bool) {
	if index < 0 || index >= len(d.keys) {
		return nil, false
	}
	return d.keys[index], true
}

// ValueByIndex returns the value stored at index, if any.
func (d *SerializedDict[T]) ValueByIndex(index int) (T, bool) {
	var zero T
	if index < 0 || index >= len(d.values) {
		return zero, false
	}
	return d.values[index], true
}

// DecodeSerializedDict builds a ResourceDecoder for a SerializedDict whose
// values are decoded from the bytes following each entry's Pascal name
// within its item_size stride.
func DecodeSerializedDict[T any](order binary.ByteOrder, decodeValue func([]byte) (T, error)) ResourceDecoder[*SerializedDict[T]] {
	return func(data []byte) (*SerializedDict[T], error) {
		itemsStart, itemSize, used, err := stdListFrame(data, order)
		if err != nil {
			return nil, err
		}
		keys := make([][]byte, 0, used)
		values := make([]T, 0, used)
		for i := 0; i < used; i++ {
			start := itemsStart + i*itemSize
			entry := data[start : start+itemSize]
			if len(entry) < 1 {
				return nil, ErrFileTooSmall
			}
			nameLen := int(entry[0])
			if 1+nameLen > len(entry) {
				return nil, ErrFileTooSmall
			}
			name := append([]byte(nil), entry[1:1+nameLen]...)
			value, err := decodeValue(entry[1+nameLen:])
			if err != nil {
				return nil, err
			}
			keys = append(keys, name)
			values = append(values, value)
		}
		return &SerializedDict[T]{keys: keys, values: values}, nil
	}
}
