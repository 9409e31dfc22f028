package rbtree

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/Sumatoshi-tech/rbmap/pkg/safeconv"
)

// ErrAllocatorExhausted is returned when a node cannot be allocated because the
// allocator reached MaxNodes or the uint32 index space.
var ErrAllocatorExhausted = errors.New("rbtree: node allocator exhausted")

// growCapacityNumerator and growCapacityDenominator define the 3/2 growth factor for storage.
const (
	growCapacityNumerator   = 3
	growCapacityDenominator = 2
)

// maxIndex is the largest usable node index. Index 0 is reserved for "absent".
const maxIndex = math.MaxUint32 - 1

// hibernatedColumns is the number of compressed uint32 columns: parent, left, right, color.
const hibernatedColumns = 4

// Allocator is the node store of one or more trees. Nodes live in a single
// slice and refer to each other by index; slot 0 is reserved and stands for
// an absent child or parent.
type Allocator[T any] struct {
	storage []node[T]
	gaps    []uint32

	hibernatedData       [hibernatedColumns + 1][]byte
	hibernatedValues     []T
	hibernatedStorageLen int
	hibernatedGapsLen    int

	// MaxNodes bounds the number of live nodes. Zero means only the index
	// space limits it.
	MaxNodes int

	// HibernationThreshold is the minimal Size() at which Hibernate compresses.
	HibernationThreshold int
}

// NewAllocator creates a new allocator for tree nodes.
func NewAllocator[T any]() *Allocator[T] {
	return &Allocator[T]{
		storage: []node[T]{},
		gaps:    []uint32{},
	}
}

// Size returns the number of allocated slots, including the reserved one.
func (allocator *Allocator[T]) Size() int {
	return len(allocator.storage)
}

// Used returns the number of live nodes in the allocator.
func (allocator *Allocator[T]) Used() int {
	allocator.mustBeAwake()

	if len(allocator.storage) == 0 {
		return 0
	}

	return len(allocator.storage) - 1 - len(allocator.gaps)
}

// Hibernated reports whether the allocator is currently compressed.
func (allocator *Allocator[T]) Hibernated() bool {
	return allocator.storage == nil
}

// Clone copies an existing allocator, slot for slot.
func (allocator *Allocator[T]) Clone() *Allocator[T] {
	allocator.mustBeAwake()

	clone := &Allocator[T]{
		storage:              make([]node[T], len(allocator.storage), cap(allocator.storage)),
		gaps:                 make([]uint32, len(allocator.gaps)),
		MaxNodes:             allocator.MaxNodes,
		HibernationThreshold: allocator.HibernationThreshold,
	}
	copy(clone.storage, allocator.storage)
	copy(clone.gaps, allocator.gaps)

	return clone
}

// Hibernate compresses the structural columns of the arena with LZ4. Values
// are kept aside uncompressed. Nothing happens below HibernationThreshold.
func (allocator *Allocator[T]) Hibernate() {
	if allocator.hibernatedStorageLen > 0 {
		panic("cannot hibernate an already hibernated allocator")
	}

	if len(allocator.storage) < allocator.HibernationThreshold {
		return
	}

	allocator.hibernatedStorageLen = len(allocator.storage)
	if allocator.hibernatedStorageLen == 0 {
		allocator.storage = nil

		return
	}

	buffers := [hibernatedColumns][]uint32{}
	for idx := range buffers {
		buffers[idx] = make([]uint32, len(allocator.storage))
	}

	allocator.hibernatedValues = make([]T, len(allocator.storage))

	for idx, nd := range allocator.storage {
		allocator.hibernatedValues[idx] = nd.value
		buffers[0][idx] = nd.parent
		buffers[1][idx] = nd.left
		buffers[2][idx] = nd.right

		if nd.color == black {
			buffers[3][idx] = 1
		}
	}

	allocator.storage = nil

	// Index columns compress much better as deltas.
	DeltaEncodeUInt32Slice(buffers[0])

	wg := &sync.WaitGroup{}
	wg.Add(len(buffers) + 1)

	for idx, buffer := range buffers {
		go func(bufIdx int, buf []uint32) {
			defer wg.Done()

			allocator.hibernatedData[bufIdx] = CompressUInt32Slice(buf)
		}(idx, buffer)
	}

	go func() {
		defer wg.Done()

		allocator.hibernatedGapsLen = len(allocator.gaps)
		if allocator.hibernatedGapsLen > 0 {
			allocator.hibernatedData[hibernatedColumns] = CompressUInt32Slice(allocator.gaps)
		}

		allocator.gaps = nil
	}()

	wg.Wait()
}

// Boot performs the opposite of Hibernate(): decompresses and restores the arena.
func (allocator *Allocator[T]) Boot() {
	if allocator.storage == nil && allocator.hibernatedStorageLen == 0 {
		allocator.storage = []node[T]{}
		allocator.gaps = []uint32{}

		return
	}

	if allocator.hibernatedStorageLen == 0 {
		// Not hibernated.
		return
	}

	buffers := [hibernatedColumns][]uint32{}
	gaps := make([]uint32, allocator.hibernatedGapsLen)
	errs := [hibernatedColumns + 1]error{}

	wg := &sync.WaitGroup{}
	wg.Add(len(buffers) + 1)

	for idx := range buffers {
		go func(bufIdx int) {
			defer wg.Done()

			buffers[bufIdx] = make([]uint32, allocator.hibernatedStorageLen)
			errs[bufIdx] = DecompressUInt32Slice(allocator.hibernatedData[bufIdx], buffers[bufIdx])
		}(idx)
	}

	go func() {
		defer wg.Done()

		if len(gaps) > 0 {
			errs[hibernatedColumns] = DecompressUInt32Slice(allocator.hibernatedData[hibernatedColumns], gaps)
		}
	}()

	wg.Wait()

	if err := errors.Join(errs[:]...); err != nil {
		panic(fmt.Sprintf("cannot boot a corrupt allocator: %v", err))
	}

	allocator.hibernatedData = [hibernatedColumns + 1][]byte{}

	DeltaDecodeUInt32Slice(buffers[0])

	capSize := (allocator.hibernatedStorageLen * growCapacityNumerator) / growCapacityDenominator
	storage := make([]node[T], allocator.hibernatedStorageLen, capSize)

	for idx := range storage {
		nd := &storage[idx]
		nd.value = allocator.hibernatedValues[idx]
		nd.parent = buffers[0][idx]
		nd.left = buffers[1][idx]
		nd.right = buffers[2][idx]
		nd.color = buffers[3][idx] > 0
	}

	allocator.storage = storage
	allocator.gaps = gaps
	allocator.hibernatedValues = nil
	allocator.hibernatedStorageLen = 0
	allocator.hibernatedGapsLen = 0
}

// malloc returns a fully initialised red node bound to parent, or
// ErrAllocatorExhausted without touching the arena.
func (allocator *Allocator[T]) malloc(parent uint32) (uint32, error) {
	allocator.mustBeAwake()

	if allocator.MaxNodes > 0 && allocator.Used() >= allocator.MaxNodes {
		return 0, ErrAllocatorExhausted
	}

	if gapsLen := len(allocator.gaps); gapsLen > 0 {
		nodeIdx := allocator.gaps[gapsLen-1]
		allocator.gaps = allocator.gaps[:gapsLen-1]
		allocator.storage[nodeIdx] = node[T]{parent: parent, color: red}

		return nodeIdx, nil
	}

	nodeLen := len(allocator.storage)
	if nodeLen == 0 {
		// Zero is reserved.
		allocator.storage = append(allocator.storage, node[T]{color: black})
		nodeLen = 1
	}

	if nodeLen > maxIndex {
		return 0, ErrAllocatorExhausted
	}

	allocator.storage = append(allocator.storage, node[T]{parent: parent, color: red})

	return safeconv.MustIntToUint32(nodeLen), nil
}

func (allocator *Allocator[T]) free(nodeIdx uint32) {
	allocator.mustBeAwake()

	if nodeIdx == 0 {
		panic("node #0 is special and cannot be deallocated")
	}

	doAssert(int(nodeIdx) < len(allocator.storage))

	allocator.storage[nodeIdx] = node[T]{}
	allocator.gaps = append(allocator.gaps, nodeIdx)
}

func (allocator *Allocator[T]) mustBeAwake() {
	if allocator.storage == nil {
		panic("hibernated allocators cannot be used")
	}
}
