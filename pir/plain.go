package pir

import (
	"encoding/binary"
	"fmt"
)

// Plain is the reference engine: queries are the requested index in the
// clear and replies are the element verbatim. It provides no privacy and
// exists to exercise the multi-PIR layer and the batch codes above it without
// paying for encryption.
type Plain struct{}

// NewClient returns a plaintext client for the bucket shape.
func (Plain) NewClient(desc BucketDesc) (Client, error) {
	if err := checkDesc(desc); err != nil {
		return nil, err
	}
	return &plainClient{desc: desc}, nil
}

// NewServer returns a plaintext server for the bucket shape.
func (Plain) NewServer(desc BucketDesc) (Server, error) {
	if err := checkDesc(desc); err != nil {
		return nil, err
	}
	return &plainServer{desc: desc}, nil
}

type plainClient struct {
	desc BucketDesc
}

func (c *plainClient) GenQuery(index int) ([]byte, error) {
	if index < 0 || index >= c.desc.ElementCount {
		return nil, fmt.Errorf("pir: index %d out of range [0, %d)", index, c.desc.ElementCount)
	}
	query := make([]byte, 8)
	binary.LittleEndian.PutUint64(query, uint64(index))
	return query, nil
}

func (c *plainClient) DecodeReply(index int, reply []byte) ([]byte, error) {
	if len(reply) != c.desc.ElementSize {
		return nil, fmt.Errorf("pir: reply of %d bytes, expected %d", len(reply), c.desc.ElementSize)
	}
	return reply, nil
}

func (c *plainClient) Key() []byte { return nil }

type plainServer struct {
	desc     BucketDesc
	elements [][]byte
}

func (s *plainServer) Setup(elements [][]byte) error {
	if len(elements) != s.desc.ElementCount {
		return fmt.Errorf("pir: %d elements, bucket declared %d", len(elements), s.desc.ElementCount)
	}
	for i, element := range elements {
		if len(element) != s.desc.ElementSize {
			return fmt.Errorf("pir: element %d has %d bytes, expected %d", i, len(element), s.desc.ElementSize)
		}
	}
	s.elements = elements
	return nil
}

func (s *plainServer) SetKey(clientID uint64, key []byte) error { return nil }

func (s *plainServer) GenReply(query []byte, clientID uint64) ([]byte, error) {
	if s.elements == nil {
		return nil, fmt.Errorf("pir: server not set up")
	}
	if len(query) != 8 {
		return nil, fmt.Errorf("pir: malformed query of %d bytes", len(query))
	}
	index := int(binary.LittleEndian.Uint64(query))
	if index < 0 || index >= len(s.elements) {
		return nil, fmt.Errorf("pir: query index %d out of range [0, %d)", index, len(s.elements))
	}
	return s.elements[index], nil
}
