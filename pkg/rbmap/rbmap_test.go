package rbmap_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/rbmap/pkg/rbmap"
	"github.com/Sumatoshi-tech/rbmap/pkg/rbtree"
)

func insertAll(t *testing.T, m *rbmap.Map[int], values ...int) {
	t.Helper()

	for _, value := range values {
		_, err := m.Insert(value)
		require.NoError(t, err)
	}
}

func TestMapScenarios(t *testing.T) {
	t.Parallel()

	t.Run("three_ascending", func(t *testing.T) {
		t.Parallel()

		m := rbmap.New[int]()
		insertAll(t, m, 10, 20, 30)

		require.NoError(t, m.Validate())
		assert.Equal(t, []int{10, 20, 30}, m.Values())
		assert.Equal(t, 20, m.Dump().Value)
	})

	t.Run("erase_from_seven", func(t *testing.T) {
		t.Parallel()

		m := rbmap.New[int]()
		insertAll(t, m, 1, 2, 3, 4, 5, 6, 7)
		require.NoError(t, m.Erase(1))
		require.NoError(t, m.Erase(4))

		require.NoError(t, m.Validate())
		assert.Equal(t, []int{2, 3, 5, 6, 7}, m.Values())
	})

	t.Run("erase_single_root", func(t *testing.T) {
		t.Parallel()

		m := rbmap.New[int]()
		insertAll(t, m, 1)
		require.NoError(t, m.Erase(1))

		assert.True(t, m.Empty())
		assert.True(t, m.Begin().Equal(m.End()))
	})

	t.Run("erase_absent", func(t *testing.T) {
		t.Parallel()

		m := rbmap.New[int]()
		insertAll(t, m, 1)
		require.ErrorIs(t, m.Erase(2), rbtree.ErrNotFound)
		assert.Equal(t, 1, m.Len())
	})
}

func TestMapIterator(t *testing.T) {
	t.Parallel()

	m := rbmap.NewFunc(func(a, b string) bool { return len(a) < len(b) })

	for _, word := range []string{"ccc", "a", "bb", "dd"} {
		_, err := m.Insert(word)
		require.NoError(t, err)
	}

	var (
		iter  rbmap.Iterator[string] = m.Begin()
		words []string
	)

	for !iter.IsEnd() {
		word, err := iter.Value()
		require.NoError(t, err)

		words = append(words, word)

		iter, err = iter.Next()
		require.NoError(t, err)
	}

	// "dd" has the same length as "bb" and is a duplicate under the ordering.
	assert.Equal(t, []string{"a", "bb", "ccc"}, words)
}

func TestMapCopy(t *testing.T) {
	t.Parallel()

	allocator := rbtree.NewAllocator[int]()
	m := rbmap.NewWithAllocator(allocator)
	insertAll(t, m, 3, 1, 2)

	copied, err := m.Clone(nil)
	require.NoError(t, err)
	assert.Equal(t, m.Dump(), copied.Dump())

	insertAll(t, copied, 4)
	assert.Equal(t, []int{1, 2, 3}, m.Values())
	assert.Equal(t, 3, allocator.Used())
}
