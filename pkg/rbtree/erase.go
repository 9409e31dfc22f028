package rbtree

// bstReplace returns the node that takes nodeIdx's place in a plain BST
// delete: the in-order successor when there are two children, otherwise
// the only child, or 0 for a leaf.
func bstReplace[T any](nodeIdx uint32, allocator []node[T]) uint32 {
	left, right := allocator[nodeIdx].left, allocator[nodeIdx].right

	switch {
	case left != 0 && right != 0:
		return leftmost(right, allocator)
	case left != 0:
		return left
	default:
		return right
	}
}

// deleteNode removes nodeIdx from the tree. A node with two children never
// leaves the tree directly: its value is swapped with the successor's and the
// successor, which has at most one child, is removed instead.
func (tree *Tree[T]) deleteNode(nodeIdx uint32) {
	alloc := tree.storage()

	for {
		replacement := bstReplace(nodeIdx, alloc)
		if replacement == 0 || alloc[nodeIdx].left == 0 || alloc[nodeIdx].right == 0 {
			break
		}

		alloc[nodeIdx].value, alloc[replacement].value = alloc[replacement].value, alloc[nodeIdx].value
		nodeIdx = replacement
	}

	replacement := bstReplace(nodeIdx, alloc)
	// Removing a black node whose replacement is black (or absent) leaves
	// its side one black short.
	doubleBlack := !isRed(replacement, alloc) && !isRed(nodeIdx, alloc)
	parent := alloc[nodeIdx].parent

	if replacement == 0 {
		if nodeIdx == tree.root {
			tree.root = 0
		} else {
			if doubleBlack {
				tree.doubleBlackFix(nodeIdx)
			} else if sib := sibling(nodeIdx, alloc); sib != 0 {
				alloc[sib].color = red
			}

			// Rotations during the fix-up never move a node away from its parent.
			parent = alloc[nodeIdx].parent
			if isLeftChild(nodeIdx, alloc) {
				alloc[parent].left = 0
			} else {
				alloc[parent].right = 0
			}
		}

		tree.allocator.free(nodeIdx)
		tree.count--

		return
	}

	// Exactly one child.
	if nodeIdx == tree.root {
		// Keep the root slot: take over the child's value and drop the child,
		// which is necessarily a red leaf.
		alloc[nodeIdx].value = alloc[replacement].value
		alloc[nodeIdx].left = 0
		alloc[nodeIdx].right = 0
		tree.allocator.free(replacement)
		tree.count--

		return
	}

	if isLeftChild(nodeIdx, alloc) {
		alloc[parent].left = replacement
	} else {
		alloc[parent].right = replacement
	}

	alloc[replacement].parent = parent
	tree.allocator.free(nodeIdx)
	tree.count--

	if doubleBlack {
		tree.doubleBlackFix(replacement)
	} else {
		alloc[replacement].color = black
	}
}

// doubleBlackFix resolves a node that is one black short compared to its
// sibling's subtree.
func (tree *Tree[T]) doubleBlackFix(nodeIdx uint32) {
	alloc := tree.storage()

	for nodeIdx != tree.root {
		parent := alloc[nodeIdx].parent
		sib := sibling(nodeIdx, alloc)

		// No sibling: the deficiency moves up.
		if sib == 0 {
			nodeIdx = parent

			continue
		}

		// Red sibling: rotate it above the parent, then retry against the
		// new, black, sibling.
		if alloc[sib].color == red {
			alloc[parent].color = red
			alloc[sib].color = black

			if isLeftChild(sib, alloc) {
				tree.rotateRight(parent)
			} else {
				tree.rotateLeft(parent)
			}

			continue
		}

		nearLeft, nearRight := alloc[sib].left, alloc[sib].right

		// Black sibling with black children: push the deficiency up.
		if !isRed(nearLeft, alloc) && !isRed(nearRight, alloc) {
			alloc[sib].color = red

			if alloc[parent].color == black {
				nodeIdx = parent

				continue
			}

			alloc[parent].color = black

			return
		}

		// Black sibling with a red child: one or two rotations pull the red
		// nephew up and the parent's color onto the new subtree root.
		siblingIsLeft := isLeftChild(sib, alloc)

		if isRed(nearLeft, alloc) {
			if siblingIsLeft {
				alloc[nearLeft].color = alloc[sib].color
				alloc[sib].color = alloc[parent].color
				tree.rotateRight(parent)
			} else {
				alloc[nearLeft].color = alloc[parent].color
				tree.rotateRight(sib)
				tree.rotateLeft(parent)
			}
		} else {
			if siblingIsLeft {
				alloc[nearRight].color = alloc[parent].color
				tree.rotateLeft(sib)
				tree.rotateRight(parent)
			} else {
				alloc[nearRight].color = alloc[sib].color
				alloc[sib].color = alloc[parent].color
				tree.rotateLeft(parent)
			}
		}

		alloc[parent].color = black

		return
	}
}
