package rbtree_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/rbmap/pkg/rbtree"
)

func TestNewShardedAllocator(t *testing.T) {
	t.Parallel()

	sa := rbtree.NewShardedAllocator[int](4, 100, 1000)
	assert.Len(t, sa.Shards(), 4)
	assert.Equal(t, 250, sa.Shards()[0].HibernationThreshold)
	assert.Equal(t, 25, sa.Shards()[0].MaxNodes)

	small := rbtree.NewShardedAllocator[int](8, 3, 4)
	assert.Equal(t, 1, small.Shards()[0].MaxNodes)
	assert.Equal(t, 1000, small.Shards()[0].HibernationThreshold)

	assert.Len(t, rbtree.NewShardedAllocator[int](0, 0, 0).Shards(), 1)
}

func TestShardedAllocator_GetShard(t *testing.T) {
	t.Parallel()

	sa := rbtree.NewShardedAllocator[int](4, 0, 0)

	assert.Same(t, sa.GetShard("tree1"), sa.GetShard("tree1"))

	counts := make(map[*rbtree.Allocator[int]]int)

	for idx := range 100 {
		counts[sa.GetShard(fmt.Sprintf("tree%d", idx))]++
	}

	assert.Len(t, counts, 4) // Likely to hit all 4 with 100 keys.
}

func TestShardedAllocator_HibernateBoot(t *testing.T) {
	t.Parallel()

	sa := rbtree.NewShardedAllocator[int](2, 0, 0)

	trees := map[string]*rbtree.Tree[int]{}

	for _, key := range []string{"a", "b", "c", "d"} {
		tree := rbtree.NewOrderedTree(sa.GetShard(key))
		for value := range 50 {
			_, err := tree.Insert(value)
			require.NoError(t, err)
		}

		trees[key] = tree
	}

	assert.Equal(t, 200, sa.Used())

	sa.Hibernate()

	for _, shard := range sa.Shards() {
		assert.True(t, shard.Hibernated())
		assert.Panics(t, func() {
			shard.Clone()
		})
	}

	sa.Boot()

	for key, tree := range trees {
		require.NoError(t, tree.Validate(), key)
		assert.Equal(t, 50, tree.Len(), key)
	}

	assert.Equal(t, 200, sa.Used())
}
