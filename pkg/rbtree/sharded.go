package rbtree

import (
	"hash/fnv"
	"sync"
)

// minHibernationThreshold is the minimal reasonable default if division results in 0.
const minHibernationThreshold = 1000

// ShardedAllocator spreads trees over several allocators by key, so that
// independent trees can be hibernated and booted in parallel.
type ShardedAllocator[T any] struct {
	shards []*Allocator[T]
}

// NewShardedAllocator creates a new ShardedAllocator with shardCount shards.
// maxNodes and hibernationThreshold are split evenly between the shards.
func NewShardedAllocator[T any](shardCount, maxNodes, hibernationThreshold int) *ShardedAllocator[T] {
	if shardCount <= 0 {
		shardCount = 1
	}

	shards := make([]*Allocator[T], shardCount)

	for idx := range shardCount {
		shards[idx] = NewAllocator[T]()

		if maxNodes > 0 {
			shards[idx].MaxNodes = max(maxNodes/shardCount, 1)
		}

		if hibernationThreshold > 0 {
			shards[idx].HibernationThreshold = hibernationThreshold / shardCount
			if shards[idx].HibernationThreshold == 0 {
				shards[idx].HibernationThreshold = minHibernationThreshold
			}
		}
	}

	return &ShardedAllocator[T]{shards: shards}
}

// GetShard returns the allocator shard for the given key.
func (sa *ShardedAllocator[T]) GetShard(key string) *Allocator[T] {
	hasher := fnv.New32a()
	hasher.Write([]byte(key))

	return sa.shards[hasher.Sum32()%uint32(len(sa.shards))] //nolint:gosec // len is at least 1.
}

// Shards returns all underlying allocators.
func (sa *ShardedAllocator[T]) Shards() []*Allocator[T] {
	return sa.shards
}

// Used returns the number of live nodes over all shards.
func (sa *ShardedAllocator[T]) Used() int {
	total := 0
	for _, shard := range sa.shards {
		total += shard.Used()
	}

	return total
}

// Hibernate hibernates all shards in parallel, regardless of their thresholds.
func (sa *ShardedAllocator[T]) Hibernate() {
	sa.forEach(func(alloc *Allocator[T]) {
		originalThreshold := alloc.HibernationThreshold
		alloc.HibernationThreshold = 0
		alloc.Hibernate()
		alloc.HibernationThreshold = originalThreshold
	})
}

// Boot boots all shards in parallel.
func (sa *ShardedAllocator[T]) Boot() {
	sa.forEach(func(alloc *Allocator[T]) {
		alloc.Boot()
	})
}

func (sa *ShardedAllocator[T]) forEach(fn func(alloc *Allocator[T])) {
	wg := sync.WaitGroup{}
	wg.Add(len(sa.shards))

	for _, shard := range sa.shards {
		go func(alloc *Allocator[T]) {
			defer wg.Done()

			fn(alloc)
		}(shard)
	}

	wg.Wait()
}
