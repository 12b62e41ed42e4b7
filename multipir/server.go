package multipir

import (
	"fmt"

	"github.com/sga001/mpir/pbc"
	"github.com/sga001/mpir/pir"
)

// Server owns one PIR server per bucket.
type Server struct {
	buckets []pir.BucketDesc
	handles []pir.Server
}

// NewServer creates one PIR server per bucket descriptor.
func NewServer(buckets []pir.BucketDesc, scheme pir.Scheme) (*Server, error) {
	handles := make([]pir.Server, len(buckets))
	for i, desc := range buckets {
		handle, err := scheme.NewServer(desc)
		if err != nil {
			return nil, fmt.Errorf("multipir: bucket %d: %w", i, err)
		}
		handles[i] = handle
	}
	return &Server{buckets: buckets, handles: handles}, nil
}

// Buckets returns the number of buckets the server answers per batch.
func (s *Server) Buckets() int { return len(s.handles) }

// Setup installs the serialized bucket contents, one element slice per bucket.
func (s *Server) Setup(elements [][][]byte) error {
	if len(elements) != len(s.handles) {
		panic(fmt.Sprintf("multipir: %d buckets of elements for %d servers", len(elements), len(s.handles)))
	}
	for i, bucket := range elements {
		if err := s.handles[i].Setup(bucket); err != nil {
			return fmt.Errorf("multipir: bucket %d: %w", i, err)
		}
	}
	return nil
}

// SetKeys installs a client's per-bucket key material under its id.
func (s *Server) SetKeys(clientID uint64, keys [][]byte) error {
	if len(keys) != len(s.handles) {
		panic(fmt.Sprintf("multipir: %d keys for %d buckets", len(keys), len(s.handles)))
	}
	for i, key := range keys {
		if err := s.handles[i].SetKey(clientID, key); err != nil {
			return fmt.Errorf("multipir: bucket %d: %w", i, err)
		}
	}
	return nil
}

// GenReplies answers one query per bucket.
func (s *Server) GenReplies(queries [][]byte, clientID uint64) ([][]byte, error) {
	if len(queries) != len(s.handles) {
		panic(fmt.Sprintf("multipir: %d queries for %d buckets", len(queries), len(s.handles)))
	}

	replies := make([][]byte, len(queries))
	for i, query := range queries {
		reply, err := s.handles[i].GenReply(query, clientID)
		if err != nil {
			return nil, fmt.Errorf("multipir: bucket %d: %w", i, err)
		}
		replies[i] = reply
	}
	return replies, nil
}

// Describe derives the per-bucket descriptors of an encoded database. Empty
// buckets are declared with a single element so that padded queries remain
// well-formed; MarshalBuckets pads them the same way.
func Describe[K, V pbc.Word](encoded [][]pbc.Tuple[K, V]) []pir.BucketDesc {
	buckets := make([]pir.BucketDesc, len(encoded))
	for i, bucket := range encoded {
		count := len(bucket)
		if count == 0 {
			count = 1
		}
		buckets[i] = pir.BucketDesc{ElementCount: count, ElementSize: pbc.TupleSize}
	}
	return buckets
}

// MarshalBuckets serializes an encoded database to the canonical per-element
// byte form consumed by Server.Setup. Empty buckets receive one zero element,
// matching Describe.
func MarshalBuckets[K, V pbc.Word](encoded [][]pbc.Tuple[K, V]) [][][]byte {
	elements := make([][][]byte, len(encoded))
	for i, bucket := range encoded {
		if len(bucket) == 0 {
			elements[i] = [][]byte{make([]byte, pbc.TupleSize)}
			continue
		}
		elements[i] = make([][]byte, len(bucket))
		for j, entry := range bucket {
			data, err := entry.MarshalBinary()
			if err != nil {
				panic(err)
			}
			elements[i][j] = data
		}
	}
	return elements
}

// Indexes translates a schedule into the per-bucket index vector GenQueries
// consumes: the resolved element index for every scheduled bucket, Pad
// everywhere else.
func Indexes[K, V pbc.Word](encoded [][]pbc.Tuple[K, V], schedule pbc.Schedule[K]) ([]int, error) {
	assigned, err := pbc.ScheduleIndexes(encoded, schedule)
	if err != nil {
		return nil, err
	}

	indexes := make([]int, len(encoded))
	for i := range indexes {
		if index, ok := assigned[i]; ok {
			indexes[i] = index
		} else {
			indexes[i] = Pad
		}
	}
	return indexes, nil
}
