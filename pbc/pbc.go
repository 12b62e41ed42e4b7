// Package pbc implements probabilistic batch codes (PBCs).
//
// A batch code encodes a database of N tuples into m buckets such that any k
// tuples can be recovered by retrieving at most one element per bucket (with
// high probability). Layered above a single-bucket PIR engine, this turns a
// batch of k private retrievals into one cheap PIR query per bucket instead of
// k full-database queries.
//
// Five codes are provided behind the BatchCode interface: ReplicationCode,
// ShardingCode, ChoicesCode, CuckooCode and PungCode. All codes except
// PungCode are data-independent: their schedules depend only on the requested
// keys. PungCode is data-dependent and requires the per-key placement labels
// produced during encoding (see PungCode.SetLabels).
package pbc

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"math/big"

	"github.com/sga001/mpir/utils"
	"golang.org/x/exp/constraints"
	"golang.org/x/exp/slices"
)

// Word is the constraint satisfied by tuple components: fixed-width unsigned
// integers, which support bitwise XOR and have a canonical little-endian byte
// encoding.
type Word interface {
	constraints.Unsigned
}

// TupleSize is the size in bytes of the canonical encoding of a Tuple.
const TupleSize = 16

// Tuple is an ordered (key, value) pair. Both components XOR componentwise,
// so for any two tuples a and b, a.XOR(b).XOR(b) == a.
type Tuple[K, V Word] struct {
	Key   K
	Value V
}

// XOR returns the componentwise XOR of t and u.
func (t Tuple[K, V]) XOR(u Tuple[K, V]) Tuple[K, V] {
	return Tuple[K, V]{Key: t.Key ^ u.Key, Value: t.Value ^ u.Value}
}

// MarshalBinary returns the canonical encoding of the tuple: the key and the
// value as 8-byte little-endian words.
func (t Tuple[K, V]) MarshalBinary() (data []byte, err error) {
	data = make([]byte, TupleSize)
	binary.LittleEndian.PutUint64(data[:8], uint64(t.Key))
	binary.LittleEndian.PutUint64(data[8:], uint64(t.Value))
	return
}

// UnmarshalBinary decodes a tuple from its canonical encoding.
func (t *Tuple[K, V]) UnmarshalBinary(data []byte) (err error) {
	if len(data) != TupleSize {
		return fmt.Errorf("pbc: invalid tuple encoding: %d bytes, expected %d", len(data), TupleSize)
	}
	t.Key = K(binary.LittleEndian.Uint64(data[:8]))
	t.Value = V(binary.LittleEndian.Uint64(data[8:]))
	return
}

// Schedule maps each requested key to the bucket indices that must be queried
// to recover it. Systematic codes map every key to a single bucket; PungCode
// may map a key to a group of 2 or 4 buckets whose XOR reconstructs the tuple.
// The bucket sets of a schedule are pairwise disjoint.
type Schedule[K Word] map[K][]int

// ErrInfeasible is returned by GetSchedule when no pairwise-disjoint bucket
// assignment exists for the requested keys within the code's retry bounds.
// Callers may retry with a different key order, code or parameters.
var ErrInfeasible = errors.New("pbc: no feasible schedule within retry bounds")

// BatchCode is the contract shared by all batch codes. Implementations are
// immutable value objects configured at construction (PungCode's SetLabels is
// a one-time initialization).
type BatchCode[K, V Word] interface {
	// Encode places the input tuples into m buckets. The number of buckets
	// and the placement rule are code-specific. The output is deterministic
	// given the input order.
	Encode(collection []Tuple[K, V]) [][]Tuple[K, V]

	// GetSchedule returns pairwise-disjoint bucket assignments covering every
	// requested key, or ErrInfeasible when no disjoint assignment exists.
	// The keys must be unique and at most k of them may be requested.
	GetSchedule(keys []K) (Schedule[K], error)

	// Decode combines the retrieved tuples into the desired tuple. Systematic
	// codes receive exactly one result and return it verbatim; PungCode
	// receives 1, 2 or 4 results and XORs them.
	Decode(results []Tuple[K, V]) Tuple[K, V]
}

// hashAndMod maps data to a bucket in [0, modulus) as SHA-256(id || nonce || data)
// interpreted as a little-endian integer, reduced mod modulus. The id provides
// domain separation between the d hash functions of a code; the nonce allows
// retries when a hash collides with a prior choice for the same key. Both are
// framed as fixed-width 8-byte words so that no two (id, nonce) pairs share a
// preimage.
func hashAndMod(id, nonce uint64, data []byte, modulus int) int {
	h := sha256.New()
	var header [16]byte
	binary.LittleEndian.PutUint64(header[:8], id)
	binary.LittleEndian.PutUint64(header[8:], nonce)
	h.Write(header[:])
	h.Write(data)
	digest := h.Sum(nil)

	for i, j := 0, len(digest)-1; i < j; i, j = i+1, j-1 {
		digest[i], digest[j] = digest[j], digest[i]
	}

	v := new(big.Int).SetBytes(digest)
	return int(v.Mod(v, big.NewInt(int64(modulus))).Int64())
}

// keyBytes returns the canonical byte encoding of a key, used as hash input.
func keyBytes[K Word](key K) []byte {
	data := make([]byte, 8)
	binary.LittleEndian.PutUint64(data, uint64(key))
	return data
}

// hashToBuckets maps data to d distinct buckets in [0, m), retrying with an
// incremented nonce whenever a hash repeats an earlier choice for the same data.
func hashToBuckets(data []byte, d, m int) []int {
	choices := make([]int, 0, d)
	for id := 0; id < d; id++ {
		nonce := 0
		bucket := hashAndMod(uint64(id), uint64(nonce), data, m)
		for slices.Contains(choices, bucket) {
			nonce++
			bucket = hashAndMod(uint64(id), uint64(nonce), data, m)
		}
		choices = append(choices, bucket)
	}
	return choices
}

// retryBound returns 3*ceil(ln k / ln ln k), the replica count of ShardingCode.
// Only defined for k > 2; smaller than k for k >= 10.
func retryBound(k int) int {
	return 3 * int(math.Ceil(math.Log(float64(k))/math.Log(math.Log(float64(k)))))
}

// retryBoundD returns 1+ceil(ln ln k / ln d + 1), the replica count of ChoicesCode.
func retryBoundD(k, d int) int {
	return 1 + int(math.Ceil(math.Log(math.Log(float64(k)))/math.Log(float64(d))+1))
}

// checkKeys enforces the GetSchedule preconditions shared by all codes.
func checkKeys[K Word](keys []K, k int) {
	if len(keys) > k {
		panic(fmt.Sprintf("pbc: %d keys requested, batch size is %d", len(keys), k))
	}
	if !utils.AllDistinct(keys) {
		panic("pbc: requested keys must be unique")
	}
}
