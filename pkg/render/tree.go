// Package render draws trees and their statistics for terminals and browsers.
package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/Sumatoshi-tech/rbmap/pkg/rbtree"
)

const emptyTree = "(empty)"

// Edge glyphs of the sideways layout.
const (
	edgeUp    = "┌── "
	edgeDown  = "└── "
	pipe      = "│   "
	blankEdge = "    "
)

type position int

const (
	posRoot position = iota
	posRight
	posLeft
)

// Tree writes the tree sideways: the root on the left, right subtrees above
// their parent and left subtrees below, so the listing reads in descending
// order from top to bottom. Red nodes are printed red and black ones bold
// when colored is set.
func Tree[T any](w io.Writer, tree *rbtree.Tree[T], colored bool) error {
	root := tree.Dump()
	if root == nil {
		_, err := fmt.Fprintln(w, emptyTree)
		if err != nil {
			return fmt.Errorf("render tree: %w", err)
		}

		return nil
	}

	painter := newPainter(colored)

	var sb strings.Builder

	writeNode(&sb, root, "", posRoot, painter)

	_, err := io.WriteString(w, sb.String())
	if err != nil {
		return fmt.Errorf("render tree: %w", err)
	}

	return nil
}

func writeNode[T any](sb *strings.Builder, dn *rbtree.DumpNode[T], prefix string, pos position, p painter) {
	if dn.Right != nil {
		childPrefix := prefix
		if pos == posLeft {
			childPrefix += pipe
		} else if pos == posRight {
			childPrefix += blankEdge
		}

		writeNode(sb, dn.Right, childPrefix, posRight, p)
	}

	sb.WriteString(prefix)

	switch pos {
	case posRight:
		sb.WriteString(edgeUp)
	case posLeft:
		sb.WriteString(edgeDown)
	case posRoot:
	}

	sb.WriteString(label(p, dn))
	sb.WriteByte('\n')

	if dn.Left != nil {
		childPrefix := prefix
		if pos == posRight {
			childPrefix += pipe
		} else if pos == posLeft {
			childPrefix += blankEdge
		}

		writeNode(sb, dn.Left, childPrefix, posLeft, p)
	}
}

type painter struct {
	red     *color.Color
	black   *color.Color
	enabled bool
}

func newPainter(colored bool) painter {
	p := painter{
		red:     color.New(color.FgRed),
		black:   color.New(color.Bold),
		enabled: colored,
	}

	if colored {
		p.red.EnableColor()
		p.black.EnableColor()
	} else {
		p.red.DisableColor()
		p.black.DisableColor()
	}

	return p
}

// label prints the value in its node color, or tags it with R or B when
// colors are off.
func label[T any](p painter, dn *rbtree.DumpNode[T]) string {
	text := fmt.Sprint(dn.Value)

	switch {
	case !p.enabled && dn.IsRed():
		return text + " R"
	case !p.enabled:
		return text + " B"
	case dn.IsRed():
		return p.red.Sprint(text)
	default:
		return p.black.Sprint(text)
	}
}
