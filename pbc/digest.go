package pbc

import (
	"encoding/binary"

	"github.com/zeebo/blake3"
)

// Digest returns a blake3 digest of the canonical encoding of an encoded
// database. Two databases have equal digests iff they hold the same tuples in
// the same bucket and element order, so a digest comparison is a cheap
// determinism or consistency check between a server's and a tester's view.
func Digest[K, V Word](buckets [][]Tuple[K, V]) [32]byte {
	h := blake3.New()

	var word [8]byte
	binary.LittleEndian.PutUint64(word[:], uint64(len(buckets)))
	h.Write(word[:])

	for _, bucket := range buckets {
		binary.LittleEndian.PutUint64(word[:], uint64(len(bucket)))
		h.Write(word[:])
		for _, entry := range bucket {
			data, _ := entry.MarshalBinary()
			h.Write(data)
		}
	}

	var digest [32]byte
	copy(digest[:], h.Sum(nil))
	return digest
}
