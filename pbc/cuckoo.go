package pbc

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/sga001/mpir/utils/sampling"
)

// maxAttempts bounds the eviction chain of a single cuckoo insertion before
// the whole schedule is declared infeasible.
const maxAttempts = 1000

// CuckooCode maps each tuple to d of m = ceil(k*r) buckets, where r > 1 is the
// load factor. Scheduling runs d-way cuckoo hashing (Pagh and Rodler) over the
// requested keys: a key lands in any free candidate bucket, or evicts a
// previously placed key, which is then reinserted.
//
// Unlike standard cuckoo hashing there is a single table with d hash
// functions, and the hashing runs at retrieval time over the client's
// requested keys rather than at insertion time over the server's tuples.
//
// Eviction choices are drawn from the code's PRNG, so schedules are not
// deterministic across runs. Tests that need reproducible schedules should
// construct the code with NewCuckooCodeWithPRNG and a keyed PRNG.
type CuckooCode[K, V Word] struct {
	k    int
	d    int
	r    float64
	prng sampling.PRNG
}

// NewCuckooCode creates a CuckooCode with d hash functions and load factor r
// for batches of up to k keys. The eviction PRNG is seeded from the OS.
func NewCuckooCode[K, V Word](k, d int, r float64) (*CuckooCode[K, V], error) {
	prng, err := sampling.NewPRNG()
	if err != nil {
		return nil, err
	}
	return NewCuckooCodeWithPRNG[K, V](k, d, r, prng)
}

// NewCuckooCodeWithPRNG creates a CuckooCode drawing its eviction choices from
// the given PRNG.
func NewCuckooCodeWithPRNG[K, V Word](k, d int, r float64, prng sampling.PRNG) (*CuckooCode[K, V], error) {
	if k < 1 {
		return nil, fmt.Errorf("pbc: batch size k=%d, must be at least 1", k)
	}
	if d < 2 {
		return nil, fmt.Errorf("pbc: d=%d hash functions, cuckoo hashing needs at least 2", d)
	}
	if r <= 1 {
		return nil, fmt.Errorf("pbc: load factor r=%v, must be greater than 1", r)
	}
	return &CuckooCode[K, V]{k: k, d: d, r: r, prng: prng}, nil
}

func (code *CuckooCode[K, V]) buckets() int {
	return int(math.Ceil(float64(code.k) * code.r))
}

// Encode places each tuple in the d distinct buckets its key hashes to. There
// is no replication step; the storage overhead is the factor d.
func (code *CuckooCode[K, V]) Encode(collection []Tuple[K, V]) [][]Tuple[K, V] {
	collections := make([][]Tuple[K, V], code.buckets())
	for _, entry := range collection {
		for _, bucket := range hashToBuckets(keyBytes(entry.Key), code.d, code.buckets()) {
			collections[bucket] = append(collections[bucket], entry)
		}
	}
	return collections
}

// insert places key in one of its candidate buckets, evicting and relocating
// the current occupant when all candidates are taken.
func (code *CuckooCode[K, V]) insert(occupied map[int]K, candidates map[K][]int, key K, attempt int) bool {
	if attempt >= maxAttempts {
		return false
	}

	for _, bucket := range candidates[key] {
		if _, ok := occupied[bucket]; !ok {
			occupied[bucket] = key
			return true
		}
	}

	choices := candidates[key]
	chosen := choices[code.randIntN(len(choices))]

	evicted := occupied[chosen]
	occupied[chosen] = key

	return code.insert(occupied, candidates, evicted, attempt+1)
}

func (code *CuckooCode[K, V]) randIntN(n int) int {
	var buf [8]byte
	if _, err := code.prng.Read(buf[:]); err != nil {
		panic(err)
	}
	return int(binary.LittleEndian.Uint64(buf[:]) % uint64(n))
}

// GetSchedule precomputes each key's d candidate buckets and inserts the keys
// in input order with cuckoo eviction. A single insertion exceeding the
// eviction bound fails the whole schedule, not just the offending key.
func (code *CuckooCode[K, V]) GetSchedule(keys []K) (Schedule[K], error) {
	checkKeys(keys, code.k)

	candidates := make(map[K][]int, len(keys))
	for _, key := range keys {
		candidates[key] = hashToBuckets(keyBytes(key), code.d, code.buckets())
	}

	occupied := make(map[int]K, len(keys))
	for _, key := range keys {
		if !code.insert(occupied, candidates, key, 0) {
			return nil, ErrInfeasible
		}
	}

	schedule := make(Schedule[K], len(keys))
	for bucket, key := range occupied {
		schedule[key] = []int{bucket}
	}

	if len(schedule) != len(keys) {
		panic("pbc: cuckoo schedule lost a key")
	}
	return schedule, nil
}

// Decode returns the single retrieved tuple verbatim.
func (code *CuckooCode[K, V]) Decode(results []Tuple[K, V]) Tuple[K, V] {
	if len(results) != 1 {
		panic(fmt.Sprintf("pbc: %d results, cuckoo decodes exactly 1", len(results)))
	}
	return results[0]
}
