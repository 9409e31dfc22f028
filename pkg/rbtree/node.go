package rbtree

const (
	red   = false
	black = true
)

type node[T any] struct {
	value               T
	parent, left, right uint32
	color               bool // Black or red.
}

func doAssert(condition bool) {
	if !condition {
		panic("rbtree internal assertion failed")
	}
}

// Internal node attribute accessors.
func getColor[T any](nodeIdx uint32, allocator []node[T]) bool {
	if nodeIdx == 0 {
		return black
	}

	return allocator[nodeIdx].color
}

func isRed[T any](nodeIdx uint32, allocator []node[T]) bool {
	return getColor(nodeIdx, allocator) == red
}

func isLeftChild[T any](nodeIdx uint32, allocator []node[T]) bool {
	return nodeIdx == allocator[allocator[nodeIdx].parent].left
}

// sibling returns the other child of the node's parent, 0 for the root.
func sibling[T any](nodeIdx uint32, allocator []node[T]) uint32 {
	parentIdx := allocator[nodeIdx].parent
	if parentIdx == 0 {
		return 0
	}

	if nodeIdx == allocator[parentIdx].left {
		return allocator[parentIdx].right
	}

	return allocator[parentIdx].left
}

func leftmost[T any](nodeIdx uint32, allocator []node[T]) uint32 {
	for allocator[nodeIdx].left != 0 {
		nodeIdx = allocator[nodeIdx].left
	}

	return nodeIdx
}

// Return the minimum node that's larger than N. Return 0 if no such
// node is found.
func doNext[T any](nodeIdx uint32, allocator []node[T]) uint32 {
	if allocator[nodeIdx].right != 0 {
		return leftmost(allocator[nodeIdx].right, allocator)
	}

	// Climb while we are a right child; the root has no parent to test against.
	for allocator[nodeIdx].parent != 0 && !isLeftChild(nodeIdx, allocator) {
		nodeIdx = allocator[nodeIdx].parent
	}

	return allocator[nodeIdx].parent
}

// rotateDirection performs a tree rotation in the specified direction.
// IsLeft=true performs left rotation, isLeft=false performs right rotation.
//
// Left rotation:
//
//	  X              Y
//	A   Y    =>    X   C
//	  B C        A B
//
// Right rotation:
//
//	    Y            X
//	  X   C  =>    A   Y
//	A B              B C
//
//nolint:dupword // ASCII art diagrams contain intentional repeated letters.
func (tree *Tree[T]) rotateDirection(pivot uint32, isLeft bool) {
	alloc := tree.storage()

	// Get the child in the opposite direction of rotation.
	child := alloc[pivot].left
	if isLeft {
		child = alloc[pivot].right
	}

	doAssert(child != 0)

	// Move the inner subtree.
	var innerSubtree uint32
	if isLeft {
		innerSubtree = alloc[child].left
		alloc[pivot].right = innerSubtree
	} else {
		innerSubtree = alloc[child].right
		alloc[pivot].left = innerSubtree
	}

	if innerSubtree != 0 {
		alloc[innerSubtree].parent = pivot
	}

	// Update parent links.
	grandparent := alloc[pivot].parent
	alloc[child].parent = grandparent

	switch {
	case grandparent == 0:
		tree.root = child
	case pivot == alloc[grandparent].left:
		alloc[grandparent].left = child
	default:
		alloc[grandparent].right = child
	}

	// Complete the rotation.
	if isLeft {
		alloc[child].left = pivot
	} else {
		alloc[child].right = pivot
	}

	alloc[pivot].parent = child
	tree.rotations++
}

func (tree *Tree[T]) rotateLeft(nodeIdx uint32) {
	tree.rotateDirection(nodeIdx, true)
}

func (tree *Tree[T]) rotateRight(nodeIdx uint32) {
	tree.rotateDirection(nodeIdx, false)
}
