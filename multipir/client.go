// Package multipir implements the multi-bucket PIR orchestrator: a client and
// a server owning one single-bucket PIR instance per bucket of an encoded
// database, fanning queries and replies across them.
//
// Privacy of the batch-code layer rests on one rule enforced here: every
// bucket is queried on every batch. Buckets the schedule left unassigned are
// padded with an index drawn uniformly from the client's PRNG, so the
// observed query pattern is independent of which buckets are real.
package multipir

import (
	"encoding/binary"
	"fmt"

	"github.com/sga001/mpir/pir"
	"github.com/sga001/mpir/utils/sampling"
)

// Pad marks a bucket with no scheduled element. GenQueries substitutes a
// uniform random index for it.
const Pad = -1

// Client owns one PIR client per bucket.
type Client struct {
	buckets []pir.BucketDesc
	handles []pir.Client
	prng    sampling.PRNG
}

// NewClient creates one PIR client per bucket descriptor, with padding
// randomness seeded from the OS.
func NewClient(buckets []pir.BucketDesc, scheme pir.Scheme) (*Client, error) {
	prng, err := sampling.NewPRNG()
	if err != nil {
		return nil, err
	}
	return NewClientWithPRNG(buckets, scheme, prng)
}

// NewClientWithPRNG creates one PIR client per bucket descriptor, drawing
// padding indexes from the given PRNG.
func NewClientWithPRNG(buckets []pir.BucketDesc, scheme pir.Scheme, prng sampling.PRNG) (*Client, error) {
	handles := make([]pir.Client, len(buckets))
	for i, desc := range buckets {
		handle, err := scheme.NewClient(desc)
		if err != nil {
			return nil, fmt.Errorf("multipir: bucket %d: %w", i, err)
		}
		handles[i] = handle
	}
	return &Client{buckets: buckets, handles: handles, prng: prng}, nil
}

// Buckets returns the number of buckets the client queries per batch.
func (c *Client) Buckets() int { return len(c.handles) }

// Keys returns the per-bucket key material to install on the server.
func (c *Client) Keys() [][]byte {
	keys := make([][]byte, len(c.handles))
	for i, handle := range c.handles {
		keys[i] = handle.Key()
	}
	return keys
}

// GenQueries produces exactly one query per bucket. indexes[i] is the element
// to retrieve from bucket i, or Pad for buckets the schedule left unassigned,
// which are substituted with a uniform random index. The resolved indexes are
// returned alongside the queries; the caller keeps them to decode the replies.
func (c *Client) GenQueries(indexes []int) (queries [][]byte, resolved []int, err error) {
	if len(indexes) != len(c.handles) {
		panic(fmt.Sprintf("multipir: %d indexes for %d buckets", len(indexes), len(c.handles)))
	}

	queries = make([][]byte, len(indexes))
	resolved = make([]int, len(indexes))

	for i, index := range indexes {
		if index == Pad {
			index = c.randIntN(c.buckets[i].ElementCount)
		}
		if queries[i], err = c.handles[i].GenQuery(index); err != nil {
			return nil, nil, fmt.Errorf("multipir: bucket %d: %w", i, err)
		}
		resolved[i] = index
	}
	return queries, resolved, nil
}

// DecodeReplies decodes one element per bucket. indexes must be the resolved
// indexes returned by GenQueries.
func (c *Client) DecodeReplies(indexes []int, replies [][]byte) ([][]byte, error) {
	if len(indexes) != len(c.handles) || len(replies) != len(c.handles) {
		panic(fmt.Sprintf("multipir: %d indexes and %d replies for %d buckets",
			len(indexes), len(replies), len(c.handles)))
	}

	results := make([][]byte, len(replies))
	for i, reply := range replies {
		result, err := c.handles[i].DecodeReply(indexes[i], reply)
		if err != nil {
			return nil, fmt.Errorf("multipir: bucket %d: %w", i, err)
		}
		results[i] = result
	}
	return results, nil
}

func (c *Client) randIntN(n int) int {
	var buf [8]byte
	if _, err := c.prng.Read(buf[:]); err != nil {
		panic(err)
	}
	return int(binary.LittleEndian.Uint64(buf[:]) % uint64(n))
}
