// Package rbmap is the public face of the ordered container: a Map is a
// red-black tree of unique values kept in ascending order.
package rbmap

import (
	"cmp"

	"github.com/Sumatoshi-tech/rbmap/pkg/rbtree"
)

// Map is an ordered set of unique values.
type Map[T any] = rbtree.Tree[T]

// Iterator walks a Map in ascending order.
type Iterator[T any] = rbtree.Iterator[T]

// Allocator is the node store a Map draws its nodes from.
type Allocator[T any] = rbtree.Allocator[T]

// New creates an empty map of naturally ordered values.
func New[T cmp.Ordered]() *Map[T] {
	return rbtree.NewOrderedTree[T](nil)
}

// NewFunc creates an empty map ordered by less.
func NewFunc[T any](less func(a, b T) bool) *Map[T] {
	return rbtree.NewTree(nil, less)
}

// NewWithAllocator creates an empty map of naturally ordered values whose
// nodes come from allocator.
func NewWithAllocator[T cmp.Ordered](allocator *Allocator[T]) *Map[T] {
	return rbtree.NewOrderedTree(allocator)
}
