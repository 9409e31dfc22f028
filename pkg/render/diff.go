package render

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/Sumatoshi-tech/rbmap/pkg/rbtree"
)

// Diff compares the in-order listings of two trees line by line. Lines only
// in before are prefixed with "- ", lines only in after with "+ ". It returns
// the empty string when both trees hold equivalent values in the same order.
func Diff[T any](before, after *rbtree.Tree[T]) string {
	dmp := diffmatchpatch.New()
	src, dst, lines := dmp.DiffLinesToChars(listing(before), listing(after))
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(src, dst, false), lines)

	changed := false

	var sb strings.Builder

	for _, chunk := range diffs {
		prefix := "  "

		switch chunk.Type {
		case diffmatchpatch.DiffInsert:
			prefix = "+ "
			changed = true
		case diffmatchpatch.DiffDelete:
			prefix = "- "
			changed = true
		case diffmatchpatch.DiffEqual:
		}

		for line := range strings.Lines(chunk.Text) {
			sb.WriteString(prefix)
			sb.WriteString(line)
		}
	}

	if !changed {
		return ""
	}

	return sb.String()
}

func listing[T any](tree *rbtree.Tree[T]) string {
	var sb strings.Builder

	for value := range tree.All() {
		fmt.Fprintln(&sb, value)
	}

	return sb.String()
}
