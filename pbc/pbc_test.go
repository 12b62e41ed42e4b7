package pbc

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/sga001/mpir/utils/sampling"
	"github.com/stretchr/testify/require"
)

var prngKey = []byte{0x49, 0x0a, 0x42, 0x3d, 0x97, 0x9d, 0xc1, 0x07, 0xa1, 0xd7, 0xe9, 0x7b, 0x3b, 0xce, 0xa1, 0xdb,
	0x42, 0xf3, 0xa6, 0xd5, 0x75, 0xd2, 0x0c, 0x92, 0xb7, 0x35, 0xce, 0x0c, 0xee, 0x09, 0x7c, 0x98}

// testTuples returns the (i, i*i) collection used across all scenarios.
func testTuples(n int) []Tuple[uint64, uint64] {
	tuples := make([]Tuple[uint64, uint64], n)
	for i := range tuples {
		tuples[i] = Tuple[uint64, uint64]{Key: uint64(i), Value: uint64(i) * uint64(i)}
	}
	return tuples
}

func rangeKeys(start, end, step int) []uint64 {
	var keys []uint64
	for i := start; i < end; i += step {
		keys = append(keys, uint64(i))
	}
	return keys
}

func TestReplication(t *testing.T) {
	code, err := NewReplicationCode[uint64, uint64](8)
	require.NoError(t, err)

	tuples := testTuples(500)
	encoded := code.Encode(tuples)
	require.Len(t, encoded, 8)
	for _, bucket := range encoded {
		require.True(t, cmp.Equal(tuples, bucket))
	}

	keys := rangeKeys(0, 8, 1)
	schedule, err := code.GetSchedule(keys)
	require.NoError(t, err)
	for i, key := range keys {
		require.Equal(t, []int{i}, schedule[key])
	}
	require.NoError(t, VerifySchedule[uint64, uint64](code, encoded, schedule))
}

func TestSharding(t *testing.T) {
	code, err := NewShardingCode[uint64, uint64](16)
	require.NoError(t, err)
	require.Equal(t, 9, code.bound)

	encoded := code.Encode(testTuples(500))
	require.Len(t, encoded, 16*9)

	// Physical bucket j is a replica of logical bucket j mod 16.
	for j := 16; j < len(encoded); j++ {
		require.True(t, cmp.Equal(encoded[j%16], encoded[j]))
	}

	schedule, err := code.GetSchedule(rangeKeys(0, 16, 1))
	require.NoError(t, err)
	require.Len(t, schedule, 16)
	for _, group := range schedule {
		require.Len(t, group, 1)
	}
	require.NoError(t, VerifySchedule[uint64, uint64](code, encoded, schedule))
}

func TestShardingInfeasible(t *testing.T) {
	code, err := NewShardingCode[uint64, uint64](16)
	require.NoError(t, err)

	// Ten keys from the test collection that share a logical bucket; the
	// bound is nine replicas, so no disjoint assignment exists.
	colliding := []uint64{14, 23, 26, 28, 30, 52, 87, 91, 102, 103}
	_, err = code.GetSchedule(colliding)
	require.ErrorIs(t, err, ErrInfeasible)

	// Any nine of them still fit.
	schedule, err := code.GetSchedule(colliding[:9])
	require.NoError(t, err)
	require.Len(t, schedule, 9)
}

func TestChoices(t *testing.T) {
	code, err := NewChoicesCode[uint64, uint64](16, 2)
	require.NoError(t, err)
	require.Equal(t, 4, code.bound)

	encoded := code.Encode(testTuples(500))
	require.Len(t, encoded, 16*4)

	schedule, err := code.GetSchedule(rangeKeys(0, 16, 1))
	require.NoError(t, err)
	require.Len(t, schedule, 16)
	require.NoError(t, VerifySchedule[uint64, uint64](code, encoded, schedule))
}

func TestCuckoo(t *testing.T) {
	prng, err := sampling.NewKeyedPRNG(prngKey)
	require.NoError(t, err)

	code, err := NewCuckooCodeWithPRNG[uint64, uint64](16, 3, 1.3, prng)
	require.NoError(t, err)

	tuples := testTuples(500)
	encoded := code.Encode(tuples)
	require.Len(t, encoded, 21)

	keys := rangeKeys(0, 16, 1)
	schedule, err := code.GetSchedule(keys)
	require.NoError(t, err)
	require.Len(t, schedule, 16)

	// Each key lands in exactly one of its candidate buckets, which by
	// construction contains a copy of its tuple.
	for _, group := range schedule {
		require.Len(t, group, 1)
	}
	require.NoError(t, VerifySchedule[uint64, uint64](code, encoded, schedule))
}

func TestPung(t *testing.T) {
	code, err := NewPungCode[uint64, uint64](16)
	require.NoError(t, err)

	tuples := testTuples(5000)
	encoded := code.Encode(tuples)
	require.Len(t, encoded, 9*16)

	require.Panics(t, func() { code.GetSchedule(rangeKeys(0, 16, 1)) }, "schedule before labels")

	code.SetLabels(Labels(encoded))

	for _, keys := range [][]uint64{
		rangeKeys(0, 16, 1),
		rangeKeys(4, 16, 1),
		rangeKeys(0, 32, 2), // exercises 2- and 4-XOR parity groups
		{499, 250, 0, 123, 77},
		{4999, 1, 2500, 3},
	} {
		schedule, err := code.GetSchedule(keys)
		require.NoError(t, err)
		require.Len(t, schedule, len(keys))
		for _, group := range schedule {
			require.Contains(t, []int{1, 2, 4}, len(group))
		}
		require.NoError(t, VerifySchedule[uint64, uint64](code, encoded, schedule))
	}
}

func TestScheduleDisjoint(t *testing.T) {
	codes := map[string]BatchCode[uint64, uint64]{}

	replication, err := NewReplicationCode[uint64, uint64](16)
	require.NoError(t, err)
	codes["Replication"] = replication

	sharding, err := NewShardingCode[uint64, uint64](16)
	require.NoError(t, err)
	codes["Sharding"] = sharding

	choices, err := NewChoicesCode[uint64, uint64](16, 2)
	require.NoError(t, err)
	codes["Choices"] = choices

	prng, err := sampling.NewKeyedPRNG(prngKey)
	require.NoError(t, err)
	cuckoo, err := NewCuckooCodeWithPRNG[uint64, uint64](16, 3, 1.3, prng)
	require.NoError(t, err)
	codes["Cuckoo"] = cuckoo

	pung, err := NewPungCode[uint64, uint64](16)
	require.NoError(t, err)
	pung.SetLabels(Labels(pung.Encode(testTuples(5000))))
	codes["Pung"] = pung

	keys := rangeKeys(0, 16, 1)
	for name, code := range codes {
		t.Run(name, func(t *testing.T) {
			schedule, err := code.GetSchedule(keys)
			require.NoError(t, err)

			seen := map[int]struct{}{}
			for _, group := range schedule {
				for _, bucket := range group {
					_, taken := seen[bucket]
					require.False(t, taken, "bucket %d claimed twice", bucket)
					seen[bucket] = struct{}{}
				}
			}
		})
	}
}

func TestDeterminism(t *testing.T) {
	tuples := testTuples(500)
	keys := rangeKeys(0, 16, 1)

	t.Run("Sharding", func(t *testing.T) {
		a, err := NewShardingCode[uint64, uint64](16)
		require.NoError(t, err)
		b, err := NewShardingCode[uint64, uint64](16)
		require.NoError(t, err)

		require.Equal(t, Digest(a.Encode(tuples)), Digest(b.Encode(tuples)))

		sa, err := a.GetSchedule(keys)
		require.NoError(t, err)
		sb, err := b.GetSchedule(keys)
		require.NoError(t, err)
		require.Empty(t, cmp.Diff(sa, sb))
	})

	t.Run("Choices", func(t *testing.T) {
		a, err := NewChoicesCode[uint64, uint64](16, 2)
		require.NoError(t, err)

		require.Equal(t, Digest(a.Encode(tuples)), Digest(a.Encode(tuples)))

		sa, err := a.GetSchedule(keys)
		require.NoError(t, err)
		sb, err := a.GetSchedule(keys)
		require.NoError(t, err)
		require.Empty(t, cmp.Diff(sa, sb))
	})

	t.Run("Pung", func(t *testing.T) {
		a, err := NewPungCode[uint64, uint64](16)
		require.NoError(t, err)
		big := testTuples(5000)

		encoded := a.Encode(big)
		require.Equal(t, Digest(encoded), Digest(a.Encode(big)))

		a.SetLabels(Labels(encoded))
		sa, err := a.GetSchedule(keys)
		require.NoError(t, err)
		sb, err := a.GetSchedule(keys)
		require.NoError(t, err)
		require.Empty(t, cmp.Diff(sa, sb))
	})
}

func TestHashDomainSeparation(t *testing.T) {
	prng, err := sampling.NewKeyedPRNG(prngKey)
	require.NoError(t, err)

	const modulus = 1 << 30
	data := make([]byte, 32)
	for i := 0; i < 64; i++ {
		_, err := prng.Read(data)
		require.NoError(t, err)
		require.NotEqual(t,
			hashAndMod(0, 0, data, modulus),
			hashAndMod(1, 0, data, modulus))
		require.NotEqual(t,
			hashAndMod(0, 0, data, modulus),
			hashAndMod(0, 1, data, modulus))
	}
}

func TestHashToBucketsDistinct(t *testing.T) {
	for key := uint64(0); key < 64; key++ {
		buckets := hashToBuckets(keyBytes(key), 4, 5)
		seen := map[int]struct{}{}
		for _, b := range buckets {
			_, taken := seen[b]
			require.False(t, taken)
			require.Less(t, b, 5)
			seen[b] = struct{}{}
		}
	}
}

func TestTupleXOR(t *testing.T) {
	a := Tuple[uint64, uint64]{Key: 0xdead, Value: 0xbeef}
	b := Tuple[uint64, uint64]{Key: 0x1234, Value: 0x5678}
	require.Equal(t, a, a.XOR(b).XOR(b))

	data, err := a.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, data, TupleSize)

	var back Tuple[uint64, uint64]
	require.NoError(t, back.UnmarshalBinary(data))
	require.Equal(t, a, back)
}

func TestDecodeXORAssociativity(t *testing.T) {
	code, err := NewPungCode[uint64, uint64](8)
	require.NoError(t, err)

	a := Tuple[uint64, uint64]{Key: 1, Value: 10}
	b := Tuple[uint64, uint64]{Key: 2, Value: 20}
	c := Tuple[uint64, uint64]{Key: 4, Value: 40}
	d := Tuple[uint64, uint64]{Key: 8, Value: 80}

	require.Equal(t, a.XOR(b).XOR(c).XOR(d), code.Decode([]Tuple[uint64, uint64]{a, b, c, d}))
	require.Equal(t, a.XOR(b), code.Decode([]Tuple[uint64, uint64]{a, b}))
	require.Equal(t, a, code.Decode([]Tuple[uint64, uint64]{a}))
}

func TestDecodeArity(t *testing.T) {
	tuples := testTuples(4)

	replication, err := NewReplicationCode[uint64, uint64](8)
	require.NoError(t, err)
	require.Panics(t, func() { replication.Decode(tuples[:2]) })
	require.Panics(t, func() { replication.Decode(nil) })

	pung, err := NewPungCode[uint64, uint64](8)
	require.NoError(t, err)
	require.Panics(t, func() { pung.Decode(tuples[:3]) })
	require.Panics(t, func() { pung.Decode(nil) })
}

func TestSchedulePreconditions(t *testing.T) {
	code, err := NewReplicationCode[uint64, uint64](4)
	require.NoError(t, err)

	_, err = code.GetSchedule(rangeKeys(0, 4, 1))
	require.NoError(t, err)

	require.Panics(t, func() { code.GetSchedule(rangeKeys(0, 5, 1)) }, "too many keys")
	require.Panics(t, func() { code.GetSchedule([]uint64{1, 1}) }, "duplicate keys")
}

func TestParameterViolations(t *testing.T) {
	_, err := NewReplicationCode[uint64, uint64](0)
	require.Error(t, err)

	_, err = NewShardingCode[uint64, uint64](2)
	require.Error(t, err)

	// Sharding rejects every k <= e^e.
	_, err = NewShardingCode[uint64, uint64](8)
	require.Error(t, err)

	_, err = NewChoicesCode[uint64, uint64](16, 1)
	require.Error(t, err)

	_, err = NewCuckooCode[uint64, uint64](16, 1, 1.3)
	require.Error(t, err)

	_, err = NewCuckooCode[uint64, uint64](16, 3, 1.0)
	require.Error(t, err)

	_, err = NewPungCode[uint64, uint64](4)
	require.Error(t, err)
}

func TestLoad(t *testing.T) {
	code, err := NewCuckooCode[uint64, uint64](16, 3, 1.3)
	require.NoError(t, err)

	encoded := code.Encode(testTuples(500))
	report, err := Load(encoded)
	require.NoError(t, err)

	require.Equal(t, 21, report.Buckets)
	require.Equal(t, 1500, report.Elements) // three copies of every tuple
	require.GreaterOrEqual(t, report.Max, report.Mean)
	require.GreaterOrEqual(t, report.Mean, report.Min)
}

func TestDigest(t *testing.T) {
	tuples := testTuples(100)

	code, err := NewShardingCode[uint64, uint64](16)
	require.NoError(t, err)

	a := code.Encode(tuples)
	require.Equal(t, Digest(a), Digest(a))

	// A single flipped value changes the digest.
	b := code.Encode(tuples)
	for i := range b {
		if len(b[i]) > 0 {
			b[i][0].Value ^= 1
			break
		}
	}
	require.NotEqual(t, Digest(a), Digest(b))
}

func ExampleBatchCode() {
	code, _ := NewShardingCode[uint64, uint64](16)

	var tuples []Tuple[uint64, uint64]
	for i := uint64(0); i < 500; i++ {
		tuples = append(tuples, Tuple[uint64, uint64]{Key: i, Value: i * i})
	}

	encoded := code.Encode(tuples)
	schedule, _ := code.GetSchedule([]uint64{3, 141, 59})

	for _, key := range []uint64{3, 141, 59} {
		bucket := schedule[key][0]
		for _, entry := range encoded[bucket] {
			if entry.Key == key {
				fmt.Println(code.Decode([]Tuple[uint64, uint64]{entry}).Value)
			}
		}
	}
	// Output:
	// 9
	// 19881
	// 3481
}
