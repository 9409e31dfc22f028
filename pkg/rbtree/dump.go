package rbtree

// Color names used by Dump.
const (
	ColorRed   = "red"
	ColorBlack = "black"
)

// DumpNode is a detached, nested copy of one tree node, suitable for JSON or
// YAML encoding and for renderers.
type DumpNode[T any] struct {
	Value T            `json:"value"           yaml:"value"`
	Color string       `json:"color"           yaml:"color"`
	Left  *DumpNode[T] `json:"left,omitempty"  yaml:"left,omitempty"`
	Right *DumpNode[T] `json:"right,omitempty" yaml:"right,omitempty"`
}

// IsRed reports whether the dumped node is red.
func (dn *DumpNode[T]) IsRed() bool {
	return dn.Color == ColorRed
}

// Stats describes the shape of a tree and its allocator.
type Stats struct {
	Len         int    `json:"len"          yaml:"len"`
	Height      int    `json:"height"       yaml:"height"`
	BlackHeight int    `json:"black_height" yaml:"black_height"`
	Rotations   uint64 `json:"rotations"    yaml:"rotations"`
	ArenaSize   int    `json:"arena_size"   yaml:"arena_size"`
	ArenaUsed   int    `json:"arena_used"   yaml:"arena_used"`
}

// Dump returns the structure of the tree, or nil if it is empty.
func (tree *Tree[T]) Dump() *DumpNode[T] {
	if tree.root == 0 {
		return nil
	}

	return dumpRec(tree.root, tree.storage())
}

func dumpRec[T any](nodeIdx uint32, alloc []node[T]) *DumpNode[T] {
	if nodeIdx == 0 {
		return nil
	}

	dn := &DumpNode[T]{Value: alloc[nodeIdx].value, Color: ColorBlack}
	if alloc[nodeIdx].color == red {
		dn.Color = ColorRed
	}

	dn.Left = dumpRec(alloc[nodeIdx].left, alloc)
	dn.Right = dumpRec(alloc[nodeIdx].right, alloc)

	return dn
}

// Depths returns how many nodes sit at each depth; the root is at depth 0.
func (tree *Tree[T]) Depths() map[int]int {
	depths := map[int]int{}
	if tree.root == 0 {
		return depths
	}

	alloc := tree.storage()

	type frame struct {
		nodeIdx uint32
		depth   int
	}

	stack := []frame{{tree.root, 0}}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		depths[top.depth]++

		for _, child := range [2]uint32{alloc[top.nodeIdx].left, alloc[top.nodeIdx].right} {
			if child != 0 {
				stack = append(stack, frame{child, top.depth + 1})
			}
		}
	}

	return depths
}

// Stats returns the current shape statistics. Height counts nodes on the
// longest root-to-leaf path; BlackHeight counts black nodes on the leftmost
// path, excluding the absent leaf.
func (tree *Tree[T]) Stats() Stats {
	stats := Stats{
		Len:       tree.count,
		Rotations: tree.rotations,
		ArenaSize: tree.allocator.Size(),
		ArenaUsed: tree.allocator.Used(),
	}

	for depth := range tree.Depths() {
		stats.Height = max(stats.Height, depth+1)
	}

	if tree.root != 0 {
		alloc := tree.storage()
		for nodeIdx := tree.root; nodeIdx != 0; nodeIdx = alloc[nodeIdx].left {
			if alloc[nodeIdx].color == black {
				stats.BlackHeight++
			}
		}
	}

	return stats
}
