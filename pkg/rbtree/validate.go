package rbtree

import (
	"errors"
	"fmt"
)

// ErrInvariant is wrapped by every error returned from Validate.
var ErrInvariant = errors.New("rbtree: invariant violated")

// Validate walks the whole tree and returns the first violated red-black or
// bookkeeping invariant, or nil. It costs O(n) and is meant for tests and
// tooling, not for hot paths.
func (tree *Tree[T]) Validate() error {
	if tree.root == 0 {
		if tree.count != 0 {
			return fmt.Errorf("%w: empty tree reports %d elements", ErrInvariant, tree.count)
		}

		return nil
	}

	alloc := tree.storage()

	if alloc[tree.root].parent != 0 {
		return fmt.Errorf("%w: root #%d has parent #%d", ErrInvariant, tree.root, alloc[tree.root].parent)
	}

	if alloc[tree.root].color != black {
		return fmt.Errorf("%w: root #%d is red", ErrInvariant, tree.root)
	}

	walker := validator[T]{tree: tree, alloc: alloc}

	if _, err := walker.check(tree.root); err != nil {
		return err
	}

	if walker.seen != tree.count {
		return fmt.Errorf("%w: %d reachable nodes, size is %d", ErrInvariant, walker.seen, tree.count)
	}

	// Parent links are sound, so the in-order walk terminates.
	var (
		prev    T
		hasPrev bool
	)

	for value := range tree.All() {
		if hasPrev && !tree.less(prev, value) {
			return fmt.Errorf("%w: %v follows %v in order", ErrInvariant, value, prev)
		}

		prev, hasPrev = value, true
	}

	return nil
}

type validator[T any] struct {
	tree  *Tree[T]
	alloc []node[T]
	seen  int
}

// check returns the black-height of the subtree rooted at nodeIdx.
func (v *validator[T]) check(nodeIdx uint32) (int, error) {
	if nodeIdx == 0 {
		return 1, nil
	}

	v.seen++
	if v.seen > v.tree.count {
		return 0, fmt.Errorf("%w: more reachable nodes than size %d (cycle?)", ErrInvariant, v.tree.count)
	}

	nd := v.alloc[nodeIdx]

	for _, child := range [2]uint32{nd.left, nd.right} {
		if child == 0 {
			continue
		}

		if v.alloc[child].parent != nodeIdx {
			return 0, fmt.Errorf("%w: node #%d has parent #%d, expected #%d",
				ErrInvariant, child, v.alloc[child].parent, nodeIdx)
		}

		if nd.color == red && v.alloc[child].color == red {
			return 0, fmt.Errorf("%w: red node %v has red child %v", ErrInvariant, nd.value, v.alloc[child].value)
		}
	}

	if nd.left != 0 && !v.tree.less(v.alloc[nd.left].value, nd.value) {
		return 0, fmt.Errorf("%w: left child %v is not less than %v", ErrInvariant, v.alloc[nd.left].value, nd.value)
	}

	if nd.right != 0 && !v.tree.less(nd.value, v.alloc[nd.right].value) {
		return 0, fmt.Errorf("%w: right child %v is not greater than %v", ErrInvariant, v.alloc[nd.right].value, nd.value)
	}

	leftHeight, err := v.check(nd.left)
	if err != nil {
		return 0, err
	}

	rightHeight, err := v.check(nd.right)
	if err != nil {
		return 0, err
	}

	if leftHeight != rightHeight {
		return 0, fmt.Errorf("%w: black-height mismatch under %v: left %d, right %d",
			ErrInvariant, nd.value, leftHeight, rightHeight)
	}

	if nd.color == black {
		leftHeight++
	}

	return leftHeight, nil
}
