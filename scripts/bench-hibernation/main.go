// bench-hibernation measures heap memory before and after hibernating a
// sharded node arena filled with random trees.
//
// Usage:
//
//	go run ./scripts/bench-hibernation --trees 64 --size 100000 --shards 8 \
//	  --profile-dir docs/profiles/hibernation
package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"os"
	"path/filepath"
	"runtime"
	"runtime/pprof"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/Sumatoshi-tech/rbmap/pkg/rbtree"
)

type heapSnapshot struct {
	label     string
	heapInUse uint64
	heapSys   uint64
	elapsed   time.Duration
}

func main() {
	trees := flag.Int("trees", 64, "Number of trees to build")
	size := flag.Int("size", 100000, "Values inserted into each tree")
	shards := flag.Int("shards", 8, "Allocator shards")
	seed := flag.Uint64("seed", 1, "Random seed")
	profileDir := flag.String("profile-dir", "", "Directory to write heap profiles (optional)")

	flag.Parse()

	if *profileDir != "" {
		if err := os.MkdirAll(*profileDir, 0o755); err != nil {
			log.Fatalf("mkdir profile-dir: %v", err)
		}
	}

	allocators := rbtree.NewShardedAllocator[int](*shards, 0, 0)
	rng := rand.New(rand.NewPCG(*seed, *seed))

	var snapshots []heapSnapshot

	takeSnapshot := func(label string, elapsed time.Duration) {
		runtime.GC()
		runtime.GC()

		var m runtime.MemStats
		runtime.ReadMemStats(&m)
		snapshots = append(snapshots, heapSnapshot{
			label:     label,
			heapInUse: m.HeapInuse,
			heapSys:   m.HeapSys,
			elapsed:   elapsed,
		})

		if *profileDir != "" {
			writeHeapProfile(filepath.Join(*profileDir, "heap_"+label+".prof"))
		}
	}

	takeSnapshot("before_build", 0)

	start := time.Now()
	forest := make([]*rbtree.Tree[int], *trees)

	for idx := range forest {
		forest[idx] = rbtree.NewOrderedTree(allocators.GetShard("tree-" + strconv.Itoa(idx)))

		for range *size {
			if _, err := forest[idx].Insert(rng.Int()); err != nil {
				log.Fatalf("insert into tree %d: %v", idx, err)
			}
		}
	}

	takeSnapshot("after_build", time.Since(start))

	start = time.Now()
	allocators.Hibernate()
	takeSnapshot("after_hibernate", time.Since(start))

	start = time.Now()
	allocators.Boot()
	takeSnapshot("after_boot", time.Since(start))

	for idx, tree := range forest {
		if err := tree.Validate(); err != nil {
			log.Fatalf("tree %d after boot: %v", idx, err)
		}
	}

	printReport(snapshots, allocators.Used())
}

func writeHeapProfile(path string) {
	f, err := os.Create(path)
	if err != nil {
		log.Printf("warning: create heap profile %s: %v", path, err)

		return
	}
	defer f.Close()

	if err := pprof.WriteHeapProfile(f); err != nil {
		log.Printf("warning: write heap profile %s: %v", path, err)
	}
}

func printReport(snapshots []heapSnapshot, nodes int) {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(os.Stdout)
	tbl.SetStyle(table.StyleLight)
	tbl.SetTitle("Heap timeline, %s live nodes", humanize.Comma(int64(nodes)))
	tbl.AppendHeader(table.Row{"Phase", "In use", "Sys", "Took"})

	for _, s := range snapshots {
		tbl.AppendRow(table.Row{s.label, humanize.Bytes(s.heapInUse), humanize.Bytes(s.heapSys), s.elapsed.Round(time.Millisecond)})
	}

	tbl.Render()

	for i := 0; i+1 < len(snapshots); i++ {
		curr, next := snapshots[i], snapshots[i+1]
		if curr.label != "after_build" || next.label != "after_hibernate" {
			continue
		}

		delta := float64(curr.heapInUse) - float64(next.heapInUse)
		fmt.Printf("hibernation freed %s (%.1f%%)\n",
			humanize.Bytes(uint64(max(delta, 0))), delta/float64(curr.heapInUse)*100)
	}
}
