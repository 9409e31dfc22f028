package rbtree

// Iterator allows scanning tree elements in sort order.
//
// Iterator invalidation rule is the same as C++ std::map<>'s. That
// is, if you erase the element that an iterator points to, the
// iterator becomes invalid. Erasing a node with two children also moves
// its successor's value into its slot. For insertions, the iterator
// remains valid.
type Iterator[T any] struct {
	tree *Tree[T]
	node uint32
}

// Equal reports whether both iterators denote the same position.
func (iter Iterator[T]) Equal(other Iterator[T]) bool {
	return iter.tree == other.tree && iter.node == other.node
}

// IsEnd checks if the iterator points beyond the max element in the tree.
func (iter Iterator[T]) IsEnd() bool {
	return iter.node == 0
}

// Value returns the current element, or ErrIteratorEnd past the end.
func (iter Iterator[T]) Value() (T, error) {
	if iter.IsEnd() {
		var zero T

		return zero, ErrIteratorEnd
	}

	return iter.tree.storage()[iter.node].value, nil
}

// Next returns an iterator to the successor of the current element.
// Advancing the end iterator yields ErrIteratorEnd.
func (iter Iterator[T]) Next() (Iterator[T], error) {
	if iter.IsEnd() {
		return iter, ErrIteratorEnd
	}

	return Iterator[T]{iter.tree, doNext(iter.node, iter.tree.storage())}, nil
}
