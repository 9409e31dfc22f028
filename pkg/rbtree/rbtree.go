// Package rbtree provides a generic red-black tree whose nodes live in an
// index-based arena, with LZ4 hibernation of idle arenas and sharded allocators.
package rbtree

import (
	"cmp"
	"errors"
	"fmt"
	"iter"
)

// Sentinel errors.
var (
	// ErrNotFound is returned by Erase when the value has never been inserted.
	ErrNotFound = errors.New("rbtree: value not found")
	// ErrIteratorEnd is returned when advancing or dereferencing the end iterator.
	ErrIteratorEnd = errors.New("rbtree: iterator is past the end")
)

// Tree is a red-black tree with an API similar to C++ STL's set.
//
// Values are ordered by a strict weak ordering. Two values a and b are
// considered equal when neither is less than the other; inserting a value
// equal to an existing one is a no-op.
//
// Tree is not safe for concurrent use. Callers sharing a tree between
// goroutines must serialize access themselves.
type Tree[T any] struct {
	// Nodes allocator.
	allocator *Allocator[T]

	// Strict weak ordering used for every placement decision.
	less func(a, b T) bool

	// Root of the tree.
	root uint32

	// Number of nodes under root, including the root.
	count int

	// Rotations performed since creation.
	rotations uint64
}

// NewTree creates a new red-black tree ordered by less. A nil allocator is
// replaced by a fresh one.
func NewTree[T any](allocator *Allocator[T], less func(a, b T) bool) *Tree[T] {
	if less == nil {
		panic("rbtree: nil ordering function")
	}

	if allocator == nil {
		allocator = NewAllocator[T]()
	}

	return &Tree[T]{allocator: allocator, less: less}
}

// NewOrderedTree creates a tree of naturally ordered values.
func NewOrderedTree[T cmp.Ordered](allocator *Allocator[T]) *Tree[T] {
	return NewTree(allocator, cmp.Less[T])
}

func (tree *Tree[T]) storage() []node[T] {
	tree.allocator.mustBeAwake()

	return tree.allocator.storage
}

// Allocator returns the bound nodes allocator.
func (tree *Tree[T]) Allocator() *Allocator[T] {
	return tree.allocator
}

// Len returns the number of elements in the tree.
func (tree *Tree[T]) Len() int {
	return tree.count
}

// Empty reports whether the tree holds no elements.
func (tree *Tree[T]) Empty() bool {
	return tree.count == 0
}

// Find returns an iterator to the element equal to value, or End() if there
// is none.
func (tree *Tree[T]) Find(value T) Iterator[T] {
	return Iterator[T]{tree, tree.findNode(value)}
}

// Contains reports whether an element equal to value is present.
func (tree *Tree[T]) Contains(value T) bool {
	return tree.findNode(value) != 0
}

// Begin returns an iterator to the smallest element, or End() if the tree is empty.
func (tree *Tree[T]) Begin() Iterator[T] {
	if tree.root == 0 {
		return tree.End()
	}

	return Iterator[T]{tree, leftmost(tree.root, tree.storage())}
}

// End returns the past-the-end iterator.
func (tree *Tree[T]) End() Iterator[T] {
	return Iterator[T]{tree, 0}
}

// All may be used in a for/range loop to iterate through all the values in
// ascending order.
//
// Values must not be inserted or erased during iteration, otherwise the
// behavior is undefined.
func (tree *Tree[T]) All() iter.Seq[T] {
	return func(yield func(T) bool) {
		if tree.root == 0 {
			return
		}

		alloc := tree.storage()

		for nodeIdx := leftmost(tree.root, alloc); nodeIdx != 0; nodeIdx = doNext(nodeIdx, alloc) {
			if !yield(alloc[nodeIdx].value) {
				return
			}
		}
	}
}

// Values returns all the values in ascending order.
func (tree *Tree[T]) Values() []T {
	values := make([]T, 0, tree.count)
	for value := range tree.All() {
		values = append(values, value)
	}

	return values
}

// Insert adds value to the tree. If an equal value is already present the
// tree is left untouched and false is returned. The only possible error is
// ErrAllocatorExhausted, in which case nothing was modified.
func (tree *Tree[T]) Insert(value T) (bool, error) {
	nodeIdx, err := tree.doInsert(value)
	if err != nil {
		return false, err
	}

	if nodeIdx == 0 {
		return false, nil
	}

	tree.insertFix(nodeIdx)

	return true, nil
}

// Erase removes the element equal to value. It returns ErrNotFound if there
// is no such element; the tree is unchanged in that case. Erasing a node with
// two children moves its successor's value into it, so iterators pointing at
// the successor are invalidated.
func (tree *Tree[T]) Erase(value T) error {
	nodeIdx := tree.findNode(value)
	if nodeIdx == 0 {
		return fmt.Errorf("erase %v: %w", value, ErrNotFound)
	}

	tree.deleteNode(nodeIdx)

	return nil
}

// Clear removes all the nodes from the tree, children before parents.
func (tree *Tree[T]) Clear() {
	if tree.root != 0 {
		tree.destroySubtree(tree.root)
	}

	tree.root = 0
	tree.count = 0
}

// Clone performs a deep copy of the tree into allocator: every node is
// created from scratch with the same value, color and shape. A nil
// allocator is replaced by a fresh one with the same limits. If the
// allocator runs out, every node copied so far is released.
func (tree *Tree[T]) Clone(allocator *Allocator[T]) (*Tree[T], error) {
	if allocator == nil {
		allocator = NewAllocator[T]()
		allocator.MaxNodes = tree.allocator.MaxNodes
		allocator.HibernationThreshold = tree.allocator.HibernationThreshold
	}

	clone := &Tree[T]{allocator: allocator, less: tree.less, count: tree.count}
	if tree.root == 0 {
		return clone, nil
	}

	root, err := copySubtree(tree.storage(), tree.root, allocator, 0)
	if err != nil {
		return nil, err
	}

	clone.root = root

	return clone, nil
}

// CopyFrom replaces the contents of the tree with a deep copy of src. The
// copy is built before the old contents are released, so on error the tree
// is unchanged.
func (tree *Tree[T]) CopyFrom(src *Tree[T]) error {
	if src == tree {
		return nil
	}

	var root uint32

	if src.root != 0 {
		var err error

		root, err = copySubtree(src.storage(), src.root, tree.allocator, 0)
		if err != nil {
			return err
		}
	}

	tree.Clear()
	tree.root = root
	tree.count = src.count
	tree.less = src.less

	return nil
}

// Swap exchanges the contents of two trees in O(1): nodes allocator, root,
// size, ordering and counters move pairwise.
func (tree *Tree[T]) Swap(other *Tree[T]) {
	tree.allocator, other.allocator = other.allocator, tree.allocator
	tree.root, other.root = other.root, tree.root
	tree.count, other.count = other.count, tree.count
	tree.less, other.less = other.less, tree.less
	tree.rotations, other.rotations = other.rotations, tree.rotations
}

// MoveFrom transfers the contents of src to the tree. src is left empty.
func (tree *Tree[T]) MoveFrom(src *Tree[T]) {
	if src == tree {
		return
	}

	tree.Swap(src)
	src.Clear()
}

// findNode walks down from the root. Returns 0 if no node equals value.
func (tree *Tree[T]) findNode(value T) uint32 {
	if tree.root == 0 {
		return 0
	}

	alloc := tree.storage()
	nodeIdx := tree.root

	for nodeIdx != 0 {
		switch {
		case tree.less(value, alloc[nodeIdx].value):
			nodeIdx = alloc[nodeIdx].left
		case tree.less(alloc[nodeIdx].value, value):
			nodeIdx = alloc[nodeIdx].right
		default:
			return nodeIdx
		}
	}

	return 0
}

// Try inserting "value" into the tree. Return 0 if an equal value is
// already in the tree. Otherwise return a new (leaf) node.
func (tree *Tree[T]) doInsert(value T) (uint32, error) {
	if tree.root == 0 {
		nodeIdx, err := tree.allocator.malloc(0)
		if err != nil {
			return 0, err
		}

		alloc := tree.storage()
		alloc[nodeIdx].value = value
		alloc[nodeIdx].color = black
		tree.root = nodeIdx
		tree.count++

		return nodeIdx, nil
	}

	alloc := tree.storage()
	parent := tree.root

	var goLeft bool

	for {
		switch {
		case tree.less(value, alloc[parent].value):
			goLeft = true
		case tree.less(alloc[parent].value, value):
			goLeft = false
		default:
			return 0, nil
		}

		next := alloc[parent].right
		if goLeft {
			next = alloc[parent].left
		}

		if next == 0 {
			break
		}

		parent = next
	}

	nodeIdx, err := tree.allocator.malloc(parent)
	if err != nil {
		return 0, err
	}

	// malloc may have grown the arena.
	alloc = tree.storage()
	alloc[nodeIdx].value = value

	if goLeft {
		alloc[parent].left = nodeIdx
	} else {
		alloc[parent].right = nodeIdx
	}

	tree.count++

	return nodeIdx, nil
}

// insertFix restores the red-black properties after attaching a red node.
// A violation can only be a red node under a red parent.
func (tree *Tree[T]) insertFix(nodeIdx uint32) {
	alloc := tree.storage()

	for nodeIdx != tree.root && alloc[nodeIdx].color == red && alloc[alloc[nodeIdx].parent].color == red {
		parent := alloc[nodeIdx].parent
		grandparent := alloc[parent].parent
		parentIsLeft := parent == alloc[grandparent].left

		uncle := alloc[grandparent].left
		if parentIsLeft {
			uncle = alloc[grandparent].right
		}

		// Red uncle: push the blackness down from the grandparent and
		// continue from there.
		if getColor(uncle, alloc) == red {
			alloc[parent].color = black
			alloc[uncle].color = black
			alloc[grandparent].color = red
			nodeIdx = grandparent

			continue
		}

		// Black uncle: turn an inner grandchild into an outer one first.
		if parentIsLeft {
			if nodeIdx == alloc[parent].right {
				tree.rotateLeft(parent)
				nodeIdx = parent
				parent = alloc[nodeIdx].parent
			}

			tree.rotateRight(grandparent)
		} else {
			if nodeIdx == alloc[parent].left {
				tree.rotateRight(parent)
				nodeIdx = parent
				parent = alloc[nodeIdx].parent
			}

			tree.rotateLeft(grandparent)
		}

		alloc[parent].color, alloc[grandparent].color = alloc[grandparent].color, alloc[parent].color

		break
	}

	alloc[tree.root].color = black
}

// destroySubtree frees a subtree, children before their parent.
func (tree *Tree[T]) destroySubtree(nodeIdx uint32) {
	alloc := tree.storage()

	if left := alloc[nodeIdx].left; left != 0 {
		tree.destroySubtree(left)
	}

	if right := alloc[nodeIdx].right; right != 0 {
		tree.destroySubtree(right)
	}

	tree.allocator.free(nodeIdx)
}

// copySubtree copies a subtree of src into allocator in pre-order and
// returns the index of the new subtree root. On error nothing is left
// allocated.
func copySubtree[T any](src []node[T], srcIdx uint32, allocator *Allocator[T], parent uint32) (uint32, error) {
	dstIdx, err := allocator.malloc(parent)
	if err != nil {
		return 0, err
	}

	dst := allocator.storage
	dst[dstIdx].value = src[srcIdx].value
	dst[dstIdx].color = src[srcIdx].color

	for _, goLeft := range [2]bool{true, false} {
		child := src[srcIdx].right
		if goLeft {
			child = src[srcIdx].left
		}

		if child == 0 {
			continue
		}

		childIdx, err := copySubtree(src, child, allocator, dstIdx)
		if err != nil {
			releaseSubtree(allocator, dstIdx)

			return 0, err
		}

		if goLeft {
			allocator.storage[dstIdx].left = childIdx
		} else {
			allocator.storage[dstIdx].right = childIdx
		}
	}

	return dstIdx, nil
}

// releaseSubtree frees a subtree that no tree owns yet.
func releaseSubtree[T any](allocator *Allocator[T], nodeIdx uint32) {
	orphan := Tree[T]{allocator: allocator}
	orphan.destroySubtree(nodeIdx)
}
