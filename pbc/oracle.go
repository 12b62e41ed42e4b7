package pbc

import (
	"fmt"
)

// locate resolves the element index a schedule group must fetch to recover
// key, along with the tuple it should recover. Singleton groups fetch the
// key's position in the claimed bucket. XOR groups fetch, at every member of
// the group, the key's position in its systematic sub-bucket.
func locate[K, V Word](encoded [][]Tuple[K, V], key K, group []int) (int, Tuple[K, V], error) {
	var zero Tuple[K, V]
	if len(group) == 0 {
		return 0, zero, fmt.Errorf("pbc: empty schedule group for key %v", key)
	}

	if len(group) == 1 {
		for i, entry := range encoded[group[0]] {
			if entry.Key == key {
				return i, entry, nil
			}
		}
		return 0, zero, fmt.Errorf("pbc: key %v not found in bucket %d", key, group[0])
	}

	base := (group[0] / subBuckets) * subBuckets
	for s := base; s < base+4; s++ {
		for i, entry := range encoded[s] {
			if entry.Key == key {
				return i, entry, nil
			}
		}
	}
	return 0, zero, fmt.Errorf("pbc: key %v not found in block %d", key, base)
}

// ScheduleIndexes resolves a schedule against an encoded database, returning
// the element index to fetch for every claimed bucket. The caller pads the
// remaining buckets with random indexes before querying.
func ScheduleIndexes[K, V Word](encoded [][]Tuple[K, V], schedule Schedule[K]) (map[int]int, error) {
	indexes := make(map[int]int)
	for key, group := range schedule {
		index, _, err := locate(encoded, key, group)
		if err != nil {
			return nil, err
		}
		for _, bucket := range group {
			if index >= len(encoded[bucket]) {
				return nil, fmt.Errorf("pbc: element %d out of range for bucket %d (len %d)",
					index, bucket, len(encoded[bucket]))
			}
			indexes[bucket] = index
		}
	}
	return indexes, nil
}

// VerifySchedule checks a schedule against the encoded database it was issued
// for: the bucket groups must be pairwise disjoint and in range, and reading
// the scheduled buckets then decoding must recover each key's original tuple.
// It is the test oracle for all codes.
func VerifySchedule[K, V Word](code BatchCode[K, V], encoded [][]Tuple[K, V], schedule Schedule[K]) error {
	claimed := make(map[int]struct{})
	for key, group := range schedule {
		for _, bucket := range group {
			if bucket < 0 || bucket >= len(encoded) {
				return fmt.Errorf("pbc: bucket %d out of range for key %v", bucket, key)
			}
			if _, ok := claimed[bucket]; ok {
				return fmt.Errorf("pbc: bucket %d claimed twice", bucket)
			}
			claimed[bucket] = struct{}{}
		}
	}

	for key, group := range schedule {
		index, expected, err := locate(encoded, key, group)
		if err != nil {
			return err
		}

		results := make([]Tuple[K, V], 0, len(group))
		for _, bucket := range group {
			if index >= len(encoded[bucket]) {
				return fmt.Errorf("pbc: element %d out of range for bucket %d (len %d)",
					index, bucket, len(encoded[bucket]))
			}
			results = append(results, encoded[bucket][index])
		}

		if decoded := code.Decode(results); decoded != expected {
			return fmt.Errorf("pbc: key %v decoded to %v, want %v", key, decoded, expected)
		}
	}
	return nil
}
