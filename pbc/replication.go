package pbc

import (
	"fmt"

	"golang.org/x/exp/slices"
)

// ReplicationCode is the trivial batch code: k exact copies of the database,
// one per bucket. It exists as a baseline; no hashing is involved and the
// storage overhead is a factor of k.
type ReplicationCode[K, V Word] struct {
	k int
}

// NewReplicationCode creates a ReplicationCode for batches of up to k keys.
func NewReplicationCode[K, V Word](k int) (*ReplicationCode[K, V], error) {
	if k < 1 {
		return nil, fmt.Errorf("pbc: batch size k=%d, must be at least 1", k)
	}
	return &ReplicationCode[K, V]{k: k}, nil
}

// Encode returns k copies of the collection.
func (code *ReplicationCode[K, V]) Encode(collection []Tuple[K, V]) [][]Tuple[K, V] {
	collections := make([][]Tuple[K, V], 0, code.k)
	for i := 0; i < code.k; i++ {
		collections = append(collections, slices.Clone(collection))
	}
	return collections
}

// GetSchedule assigns the i-th requested key to the i-th bucket.
func (code *ReplicationCode[K, V]) GetSchedule(keys []K) (Schedule[K], error) {
	checkKeys(keys, code.k)

	schedule := make(Schedule[K], len(keys))
	for i, key := range keys {
		schedule[key] = []int{i}
	}
	return schedule, nil
}

// Decode returns the single retrieved tuple verbatim.
func (code *ReplicationCode[K, V]) Decode(results []Tuple[K, V]) Tuple[K, V] {
	if len(results) != 1 {
		panic(fmt.Sprintf("pbc: %d results, replication decodes exactly 1", len(results)))
	}
	return results[0]
}
