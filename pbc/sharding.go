package pbc

import (
	"fmt"
	"math"

	"golang.org/x/exp/slices"
)

// ShardingCode hashes each tuple into one of k logical buckets and replicates
// every logical bucket b = 3*ceil(ln k / ln ln k) times, for m = k*b physical
// buckets. Physical bucket j holds a copy of logical bucket j mod k. At
// schedule time a key probes the b replicas of its logical bucket until an
// unused one is found.
type ShardingCode[K, V Word] struct {
	k     int
	bound int
}

// NewShardingCode creates a ShardingCode for batches of up to k keys. The
// retry bound is only defined for k > 2; construction rejects every k <= e^e
// (about 15.15) and every k whose bound is not smaller than k.
func NewShardingCode[K, V Word](k int) (*ShardingCode[K, V], error) {
	if k <= 2 {
		return nil, fmt.Errorf("pbc: retry bound is not defined for k=%d", k)
	}
	if float64(k) <= math.Exp(math.E) {
		return nil, fmt.Errorf("pbc: k=%d, sharding requires k > e^e", k)
	}
	bound := retryBound(k)
	if bound >= k {
		return nil, fmt.Errorf("pbc: retry bound %d >= k=%d, use ReplicationCode instead", bound, k)
	}
	return &ShardingCode[K, V]{k: k, bound: bound}, nil
}

// Encode places each tuple in the logical bucket its key hashes to, then
// replicates the k logical buckets bound times.
func (code *ShardingCode[K, V]) Encode(collection []Tuple[K, V]) [][]Tuple[K, V] {
	total := code.k * code.bound

	collections := make([][]Tuple[K, V], code.k, total)
	for _, entry := range collection {
		bucket := hashAndMod(0, 0, keyBytes(entry.Key), code.k)
		collections[bucket] = append(collections[bucket], entry)
	}

	for i := code.k; i < total; i++ {
		collections = append(collections, slices.Clone(collections[i%code.k]))
	}
	return collections
}

// GetSchedule probes the replicas h, h+k, h+2k, ... of each key's logical
// bucket h and claims the first unused one. Fails when all bound replicas of
// some key's bucket are already claimed.
func (code *ShardingCode[K, V]) GetSchedule(keys []K) (Schedule[K], error) {
	checkKeys(keys, code.k)

	schedule := make(Schedule[K], len(keys))
	used := make(map[int]struct{}, len(keys))

	for _, key := range keys {
		bucket := hashAndMod(0, 0, keyBytes(key), code.k)

		found := false
		for i := 0; i < code.bound; i++ {
			replica := bucket + i*code.k
			if _, ok := used[replica]; !ok {
				schedule[key] = []int{replica}
				used[replica] = struct{}{}
				found = true
				break
			}
		}
		if !found {
			return nil, ErrInfeasible
		}
	}
	return schedule, nil
}

// Decode returns the single retrieved tuple verbatim.
func (code *ShardingCode[K, V]) Decode(results []Tuple[K, V]) Tuple[K, V] {
	if len(results) != 1 {
		panic(fmt.Sprintf("pbc: %d results, sharding decodes exactly 1", len(results)))
	}
	return results[0]
}
