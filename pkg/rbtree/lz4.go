package rbtree

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/pierrec/lz4/v4"
)

// ErrCorruptBlock is returned when a compressed block does not decode to the
// expected number of values.
var ErrCorruptBlock = errors.New("rbtree: corrupt compressed block")

// uint32ByteSize is the number of bytes in a uint32.
const uint32ByteSize = 4

// Block markers. LZ4 refuses to compress incompressible input, so such
// blocks are stored as they are.
const (
	blockRaw byte = iota
	blockLZ4
)

// CompressUInt32Slice packs a slice of uint32-s little-endian and compresses it with LZ4.
func CompressUInt32Slice(data []uint32) []byte {
	raw := make([]byte, len(data)*uint32ByteSize)
	for idx, value := range data {
		binary.LittleEndian.PutUint32(raw[idx*uint32ByteSize:], value)
	}

	compressed := make([]byte, 1+lz4.CompressBlockBound(len(raw)))

	written, err := lz4.CompressBlock(raw, compressed[1:], nil)
	if err != nil || written == 0 || written >= len(raw) {
		stored := make([]byte, 1+len(raw))
		stored[0] = blockRaw
		copy(stored[1:], raw)

		return stored
	}

	compressed[0] = blockLZ4

	return compressed[:1+written]
}

// DecompressUInt32Slice decompresses a slice of uint32-s previously compressed
// with CompressUInt32Slice. `result` must be preallocated to the original length.
func DecompressUInt32Slice(data []byte, result []uint32) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: empty block", ErrCorruptBlock)
	}

	expected := len(result) * uint32ByteSize
	raw := data[1:]

	switch data[0] {
	case blockRaw:
	case blockLZ4:
		raw = make([]byte, expected)

		read, err := lz4.UncompressBlock(data[1:], raw)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrCorruptBlock, err)
		}

		raw = raw[:read]
	default:
		return fmt.Errorf("%w: unknown marker %d", ErrCorruptBlock, data[0])
	}

	if len(raw) != expected {
		return fmt.Errorf("%w: %d bytes instead of %d", ErrCorruptBlock, len(raw), expected)
	}

	for idx := range result {
		result[idx] = binary.LittleEndian.Uint32(raw[idx*uint32ByteSize:])
	}

	return nil
}

// DeltaEncodeUInt32Slice replaces each element with the difference from its
// predecessor, in place. The first element is left unchanged. This transforms
// sorted sequences into small, repetitive values that compress better with LZ4.
func DeltaEncodeUInt32Slice(data []uint32) {
	for i := len(data) - 1; i > 0; i-- {
		data[i] -= data[i-1]
	}
}

// DeltaDecodeUInt32Slice performs a prefix-sum to restore original values from
// deltas produced by DeltaEncodeUInt32Slice. The operation is performed in place.
func DeltaDecodeUInt32Slice(data []uint32) {
	for i := 1; i < len(data); i++ {
		data[i] += data[i-1]
	}
}
