package persist

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/Sumatoshi-tech/rbmap/pkg/rbtree"
)

// Snapshot is the stored form of a tree: its values in ascending order.
// The shape is not stored; loading rebuilds it by insertion.
type Snapshot[T any] struct {
	Name   string `json:"name"   yaml:"name"`
	Values []T    `json:"values" yaml:"values"`
}

// Persister saves and restores trees under one basename with a Codec.
type Persister[T any] struct {
	basename string
	codec    Codec
}

// NewPersister creates a persister. Directory parts and the extension of
// name are dropped, so a script path can be used as the basename.
func NewPersister[T any](name string, codec Codec) *Persister[T] {
	base := filepath.Base(name)

	return &Persister[T]{
		basename: strings.TrimSuffix(base, filepath.Ext(base)),
		codec:    codec,
	}
}

// Path returns the snapshot file inside dir.
func (p *Persister[T]) Path(dir string) string {
	return filepath.Join(dir, p.basename+p.codec.Extension())
}

// Save writes the values of tree to dir.
func (p *Persister[T]) Save(dir string, tree *rbtree.Tree[T]) error {
	snapshot := Snapshot[T]{
		Name:   p.basename,
		Values: slices.Collect(tree.All()),
	}

	return saveFile(p.Path(dir), p.codec, &snapshot)
}

// Load inserts the stored values into tree and returns how many were new.
// On allocation failure the values inserted so far stay in the tree.
func (p *Persister[T]) Load(dir string, tree *rbtree.Tree[T]) (int, error) {
	var snapshot Snapshot[T]

	err := loadFile(p.Path(dir), p.codec, &snapshot)
	if err != nil {
		return 0, err
	}

	inserted := 0

	for _, value := range snapshot.Values {
		added, err := tree.Insert(value)
		if err != nil {
			return inserted, fmt.Errorf("restore %s: %w", snapshot.Name, err)
		}

		if added {
			inserted++
		}
	}

	return inserted, nil
}
