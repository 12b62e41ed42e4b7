package pir

import (
	"encoding/binary"
	"fmt"

	"github.com/tuneinsight/lattigo/v4/bfv"
	"github.com/tuneinsight/lattigo/v4/rlwe"
)

// bytesPerSlot is how many element bytes fit in one BFV plaintext slot. With
// a plaintext modulus above 2^16 every slot carries two bytes.
const bytesPerSlot = 2

// Lattice is a PIR engine over the BFV scheme: the client encrypts a one-hot
// slot mask selecting its element, and the server multiplies the mask with the
// bucket encoded as a single plaintext vector. The reply decrypts to the
// selected element in its slots and zeros everywhere else.
//
// The circuit is a single ciphertext-plaintext product, so it needs no
// relinearization or rotation keys; Key returns nil and SetKey is a no-op.
// One bucket must fit in one plaintext: ElementCount*ceil(ElementSize/2)
// slots, checked at construction.
type Lattice struct {
	params bfv.Parameters
}

// NewLattice creates a Lattice engine from BFV parameters. The plaintext
// modulus must exceed 2^16 so that a slot can carry two element bytes.
func NewLattice(literal bfv.ParametersLiteral) (*Lattice, error) {
	params, err := bfv.NewParametersFromLiteral(literal)
	if err != nil {
		return nil, err
	}
	if params.T() < 1<<16 {
		return nil, fmt.Errorf("pir: plaintext modulus %d too small to carry two bytes per slot", params.T())
	}
	return &Lattice{params: params}, nil
}

// NewDefaultLattice creates a Lattice engine with the default parameter set
// (logN=13, logQP=218).
func NewDefaultLattice() (*Lattice, error) {
	return NewLattice(bfv.PN13QP218)
}

// slotsPerElement returns the number of plaintext slots one element occupies.
func slotsPerElement(desc BucketDesc) int {
	return (desc.ElementSize + bytesPerSlot - 1) / bytesPerSlot
}

func (l *Lattice) checkCapacity(desc BucketDesc) error {
	if err := checkDesc(desc); err != nil {
		return err
	}
	if need := desc.ElementCount * slotsPerElement(desc); need > l.params.N() {
		return fmt.Errorf("pir: bucket needs %d slots, parameters provide %d", need, l.params.N())
	}
	return nil
}

// NewClient returns a lattice client holding a fresh secret key.
func (l *Lattice) NewClient(desc BucketDesc) (Client, error) {
	if err := l.checkCapacity(desc); err != nil {
		return nil, err
	}
	sk := bfv.NewKeyGenerator(l.params).GenSecretKey()
	return &latticeClient{
		desc:      desc,
		params:    l.params,
		encoder:   bfv.NewEncoder(l.params),
		encryptor: bfv.NewEncryptor(l.params, sk),
		decryptor: bfv.NewDecryptor(l.params, sk),
	}, nil
}

// NewServer returns a lattice server for the bucket shape.
func (l *Lattice) NewServer(desc BucketDesc) (Server, error) {
	if err := l.checkCapacity(desc); err != nil {
		return nil, err
	}
	return &latticeServer{
		desc:      desc,
		params:    l.params,
		encoder:   bfv.NewEncoder(l.params),
		evaluator: bfv.NewEvaluator(l.params, rlwe.EvaluationKey{}),
	}, nil
}

type latticeClient struct {
	desc      BucketDesc
	params    bfv.Parameters
	encoder   bfv.Encoder
	encryptor rlwe.Encryptor
	decryptor rlwe.Decryptor
}

func (c *latticeClient) GenQuery(index int) ([]byte, error) {
	if index < 0 || index >= c.desc.ElementCount {
		return nil, fmt.Errorf("pir: index %d out of range [0, %d)", index, c.desc.ElementCount)
	}

	spe := slotsPerElement(c.desc)
	mask := make([]uint64, c.params.N())
	for i := index * spe; i < (index+1)*spe; i++ {
		mask[i] = 1
	}

	pt := bfv.NewPlaintext(c.params, c.params.MaxLevel())
	c.encoder.Encode(mask, pt)
	return c.encryptor.EncryptNew(pt).MarshalBinary()
}

func (c *latticeClient) DecodeReply(index int, reply []byte) ([]byte, error) {
	ct := new(rlwe.Ciphertext)
	if err := ct.UnmarshalBinary(reply); err != nil {
		return nil, err
	}

	values := c.encoder.DecodeUintNew(c.decryptor.DecryptNew(ct))

	spe := slotsPerElement(c.desc)
	element := make([]byte, spe*bytesPerSlot)
	for i := 0; i < spe; i++ {
		binary.LittleEndian.PutUint16(element[i*bytesPerSlot:], uint16(values[index*spe+i]))
	}
	return element[:c.desc.ElementSize], nil
}

func (c *latticeClient) Key() []byte { return nil }

type latticeServer struct {
	desc      BucketDesc
	params    bfv.Parameters
	encoder   bfv.Encoder
	evaluator bfv.Evaluator
	bucket    *rlwe.Plaintext
}

func (s *latticeServer) Setup(elements [][]byte) error {
	if len(elements) != s.desc.ElementCount {
		return fmt.Errorf("pir: %d elements, bucket declared %d", len(elements), s.desc.ElementCount)
	}

	spe := slotsPerElement(s.desc)
	values := make([]uint64, s.params.N())
	for i, element := range elements {
		if len(element) != s.desc.ElementSize {
			return fmt.Errorf("pir: element %d has %d bytes, expected %d", i, len(element), s.desc.ElementSize)
		}
		padded := make([]byte, spe*bytesPerSlot)
		copy(padded, element)
		for j := 0; j < spe; j++ {
			values[i*spe+j] = uint64(binary.LittleEndian.Uint16(padded[j*bytesPerSlot:]))
		}
	}

	s.bucket = bfv.NewPlaintext(s.params, s.params.MaxLevel())
	s.encoder.Encode(values, s.bucket)
	return nil
}

func (s *latticeServer) SetKey(clientID uint64, key []byte) error { return nil }

func (s *latticeServer) GenReply(query []byte, clientID uint64) ([]byte, error) {
	if s.bucket == nil {
		return nil, fmt.Errorf("pir: server not set up")
	}

	ct := new(rlwe.Ciphertext)
	if err := ct.UnmarshalBinary(query); err != nil {
		return nil, err
	}
	return s.evaluator.MulNew(ct, s.bucket).MarshalBinary()
}
