// Package pir defines the single-bucket private information retrieval
// contract consumed by the multi-PIR layer, together with two engines
// implementing it: a plaintext reference engine (Plain) and a lattice-based
// one (Lattice).
//
// A PIR engine retrieves one fixed-size element from a bucket of elements.
// The batch-code layer above does not interpret query or reply blobs; it only
// fans them out per bucket.
package pir

import (
	"fmt"
)

// BucketDesc describes one bucket of a multi-PIR deployment: how many
// elements it holds and their common size in bytes.
type BucketDesc struct {
	ElementCount int
	ElementSize  int
}

// Client is the query side of a single-bucket PIR instance.
type Client interface {
	// GenQuery produces an encrypted query for the element at index.
	GenQuery(index int) ([]byte, error)

	// DecodeReply recovers the element bytes from a reply to a query for
	// index.
	DecodeReply(index int, reply []byte) ([]byte, error)

	// Key returns the client's key material to be installed on the server
	// with SetKey before the first reply, or nil when the engine needs none.
	Key() []byte
}

// Server is the answering side of a single-bucket PIR instance.
type Server interface {
	// Setup installs the bucket contents. Every element must have the
	// declared size.
	Setup(elements [][]byte) error

	// SetKey installs a client's key material under its id.
	SetKey(clientID uint64, key []byte) error

	// GenReply answers a query without learning which element it targets.
	GenReply(query []byte, clientID uint64) ([]byte, error)
}

// Scheme constructs paired clients and servers over a bucket shape.
type Scheme interface {
	NewClient(desc BucketDesc) (Client, error)
	NewServer(desc BucketDesc) (Server, error)
}

func checkDesc(desc BucketDesc) error {
	if desc.ElementCount < 1 {
		return fmt.Errorf("pir: bucket with %d elements", desc.ElementCount)
	}
	if desc.ElementSize < 1 {
		return fmt.Errorf("pir: element size %d", desc.ElementSize)
	}
	return nil
}
