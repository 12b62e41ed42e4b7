package pbc

import (
	"fmt"

	"golang.org/x/exp/maps"
)

// subBuckets is the expansion factor of the subcube code: every logical bucket
// of n tuples is encoded into 9 sub-buckets (4 systematic quarters plus 5 XOR
// parities), a (n, 9n/4, 4, 9) subcube batch code.
const subBuckets = 9

// PungCode is the hybrid batch code of Pung (Angel and Setty, OSDI '16): each
// tuple is 2-way hashed into one of k logical buckets, and every logical
// bucket is then expanded with the subcube code, for m = 9k sub-buckets.
//
// PungCode is the only data-dependent code: where a tuple landed during
// encoding determines which sub-bucket groups can later recover it, so the
// client must receive the per-key placement labels (SetLabels) before its
// first schedule. Use Labels to extract the mapping from an encoded database.
type PungCode[K, V Word] struct {
	k      int
	labels map[K][]int
}

// NewPungCode creates a PungCode for batches of up to k keys. Labels must be
// set before the first schedule.
func NewPungCode[K, V Word](k int) (*PungCode[K, V], error) {
	if k <= 4 {
		return nil, fmt.Errorf("pbc: k=%d, a plain subcube batch code beats the hybrid for k <= 4", k)
	}
	return &PungCode[K, V]{k: k}, nil
}

// SetLabels initializes the per-key placement mapping produced during
// encoding. It is a one-time initialization; the code is immutable afterwards.
func (code *PungCode[K, V]) SetLabels(labels map[K][]int) {
	code.labels = maps.Clone(labels)
}

// Labels extracts the per-key placement mapping from an encoded database: for
// each key, the sub-bucket indices holding a tuple with that key. Parity
// sub-buckets are included; the scheduler only follows systematic occurrences,
// so the XOR-combined keys they contain are harmless.
func Labels[K, V Word](buckets [][]Tuple[K, V]) map[K][]int {
	labels := make(map[K][]int)
	for i, bucket := range buckets {
		for _, entry := range bucket {
			labels[entry.Key] = append(labels[entry.Key], i)
		}
	}
	return labels
}

// xorQuarters XORs two quarters elementwise. When the second operand is
// shorter (odd split), the missing trailing tuples are taken verbatim from the
// first operand.
func xorQuarters[K, V Word](a, b []Tuple[K, V]) []Tuple[K, V] {
	out := make([]Tuple[K, V], 0, len(a))
	for i := range b {
		out = append(out, a[i].XOR(b[i]))
	}
	out = append(out, a[len(b):]...)
	return out
}

// encodeBucket expands one logical bucket into its 9 sub-buckets. The bucket
// splits at floor((L+1)/2) = ceil(L/2) into halves, each half splitting the same way into
// the quarters B0..B3, so len(B0) >= len(B1), len(B2) >= len(B3) and
// len(B0) >= len(B2).
func encodeBucket[K, V Word](bucket []Tuple[K, V]) [][]Tuple[K, V] {
	half := (len(bucket) + 1) / 2
	first, second := bucket[:half], bucket[half:]

	encodings := [][]Tuple[K, V]{
		first[:(len(first)+1)/2],
		first[(len(first)+1)/2:],
		second[:(len(second)+1)/2],
		second[(len(second)+1)/2:],
	}

	// Parity sub-buckets: B0^B1, B2^B3, B0^B2, B1^B3, (B0^B1)^(B2^B3).
	plan := [5][2]int{{0, 1}, {2, 3}, {0, 2}, {1, 3}, {4, 5}}
	for _, p := range plan {
		encodings = append(encodings, xorQuarters(encodings[p[0]], encodings[p[1]]))
	}
	return encodings
}

// candidateSets lists the four sub-bucket groups that can recover a tuple
// stored at systematic offset o of the block starting at s, cheapest first:
// the systematic sub-bucket itself, two 2-XOR groups, and one 4-XOR group.
func candidateSets(s, o int) [][]int {
	switch o {
	case 0:
		return [][]int{{s}, {s + 1, s + 4}, {s + 2, s + 6}, {s + 3, s + 5, s + 7, s + 8}}
	case 1:
		return [][]int{{s + 1}, {s, s + 4}, {s + 3, s + 7}, {s + 2, s + 5, s + 6, s + 8}}
	case 2:
		return [][]int{{s + 2}, {s + 3, s + 5}, {s, s + 6}, {s + 1, s + 4, s + 7, s + 8}}
	case 3:
		return [][]int{{s + 3}, {s + 2, s + 5}, {s + 1, s + 7}, {s, s + 4, s + 6, s + 8}}
	}
	return nil
}

// Encode 2-way hashes each tuple into the k logical buckets, then expands
// every logical bucket with the subcube code.
func (code *PungCode[K, V]) Encode(collection []Tuple[K, V]) [][]Tuple[K, V] {
	buckets := make([][]Tuple[K, V], code.k)
	for _, entry := range collection {
		for _, bucket := range hashToBuckets(keyBytes(entry.Key), 2, code.k) {
			buckets[bucket] = append(buckets[bucket], entry)
		}
	}

	collections := make([][]Tuple[K, V], 0, code.k*subBuckets)
	for _, bucket := range buckets {
		collections = append(collections, encodeBucket(bucket)...)
	}
	return collections
}

// GetSchedule walks each key's labeled systematic occurrences and claims the
// first candidate group whose sub-buckets are all unclaimed. Occurrences in
// parity sub-buckets carry no retrieval option of their own and are skipped.
func (code *PungCode[K, V]) GetSchedule(keys []K) (Schedule[K], error) {
	if code.labels == nil {
		panic("pbc: pung labels not set")
	}
	if len(keys) > len(code.labels) {
		panic(fmt.Sprintf("pbc: %d keys requested, only %d labeled", len(keys), len(code.labels)))
	}
	checkKeys(keys, code.k)

	schedule := make(Schedule[K], len(keys))
	used := make(map[int]struct{})

	for _, key := range keys {
		var groups [][]int
		for _, occurrence := range code.labels[key] {
			base := (occurrence / subBuckets) * subBuckets
			groups = append(groups, candidateSets(base, occurrence-base)...)
		}

		found := false
		for _, group := range groups {
			free := true
			for _, bucket := range group {
				if _, ok := used[bucket]; ok {
					free = false
					break
				}
			}
			if free {
				schedule[key] = group
				for _, bucket := range group {
					used[bucket] = struct{}{}
				}
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

// Decode XORs the retrieved group back into the desired tuple. A systematic
// singleton is returned verbatim; parity groups of 2 or 4 fold by XOR.
func (code *PungCode[K, V]) Decode(results []Tuple[K, V]) Tuple[K, V] {
	switch len(results) {
	case 1:
		return results[0]
	case 2, 4:
		decoded := results[0]
		for _, result := range results[1:] {
			decoded = decoded.XOR(result)
		}
		return decoded
	}
	panic(fmt.Sprintf("pbc: %d results, pung decodes 1, 2 or 4", len(results)))
}
