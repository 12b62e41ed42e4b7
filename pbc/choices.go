package pbc

import (
	"fmt"

	"golang.org/x/exp/slices"
)

// ChoicesCode maps each tuple to d of k logical buckets and replicates every
// logical bucket b = 1+ceil(ln ln k / ln d + 1) times, for m = k*b physical
// buckets.
//
// Scheduling is an adaptation of the greedy algorithm from Azar et al.,
// "Balanced Allocations" (STOC '94), with two twists. First, where Greedy
// piles colliding balls into the same bucket, colliding keys here claim
// different replicas of the bucket. Second, the allocation runs at retrieval
// time over the client's requested keys, not at insertion time over the
// server's tuples. The server cannot know which keys a batch will request, so
// the balancing has to happen on the retrieval side.
type ChoicesCode[K, V Word] struct {
	k     int
	d     int
	bound int
}

// NewChoicesCode creates a ChoicesCode with d hash functions for batches of up
// to k keys.
func NewChoicesCode[K, V Word](k, d int) (*ChoicesCode[K, V], error) {
	if k <= 2 {
		return nil, fmt.Errorf("pbc: retry bound is not defined for k=%d", k)
	}
	if d < 2 {
		return nil, fmt.Errorf("pbc: d=%d hash functions, must be at least 2", d)
	}
	bound := retryBoundD(k, d)
	if bound >= k {
		return nil, fmt.Errorf("pbc: retry bound %d >= k=%d, use ReplicationCode instead", bound, k)
	}
	return &ChoicesCode[K, V]{k: k, d: d, bound: bound}, nil
}

// Encode places each tuple in the d distinct logical buckets its key hashes
// to, then replicates the k logical buckets bound times.
func (code *ChoicesCode[K, V]) Encode(collection []Tuple[K, V]) [][]Tuple[K, V] {
	total := code.k * code.bound

	collections := make([][]Tuple[K, V], code.k, total)
	for _, entry := range collection {
		for _, bucket := range hashToBuckets(keyBytes(entry.Key), code.d, code.k) {
			collections[bucket] = append(collections[bucket], entry)
		}
	}

	for i := code.k; i < total; i++ {
		collections = append(collections, slices.Clone(collections[i%code.k]))
	}
	return collections
}

// GetSchedule recomputes each key's d logical buckets and, in choice order,
// probes the bound replicas of each, claiming the first unused physical
// bucket. Fails when every (choice, replica) pair of some key is claimed.
func (code *ChoicesCode[K, V]) GetSchedule(keys []K) (Schedule[K], error) {
	checkKeys(keys, code.k)

	schedule := make(Schedule[K], len(keys))
	used := make(map[int]struct{}, len(keys))

	for _, key := range keys {
		found := false

	bucketLoop:
		for _, bucket := range hashToBuckets(keyBytes(key), code.d, code.k) {
			for i := 0; i < code.bound; i++ {
				replica := bucket + i*code.k
				if _, ok := used[replica]; !ok {
					schedule[key] = []int{replica}
					used[replica] = struct{}{}
					found = true
					break bucketLoop
				}
			}
		}
		if !found {
			return nil, ErrInfeasible
		}
	}
	return schedule, nil
}

// Decode returns the single retrieved tuple verbatim.
func (code *ChoicesCode[K, V]) Decode(results []Tuple[K, V]) Tuple[K, V] {
	if len(results) != 1 {
		panic(fmt.Sprintf("pbc: %d results, choices decodes exactly 1", len(results)))
	}
	return results[0]
}
