package pbc

import (
	"github.com/montanaflynn/stats"
)

// LoadReport summarizes the occupancy distribution of an encoded database.
// The storage overhead of a code shows up here as the ratio of the summed
// bucket sizes to the input size, and the quality of its load balancing as the
// spread between Max and Mean.
type LoadReport struct {
	Buckets  int
	Elements int
	Min      float64
	Max      float64
	Mean     float64
	Median   float64
	StdDev   float64
}

// Load computes the occupancy distribution of an encoded database.
func Load[K, V Word](buckets [][]Tuple[K, V]) (report LoadReport, err error) {
	sizes := make(stats.Float64Data, len(buckets))
	for i, bucket := range buckets {
		sizes[i] = float64(len(bucket))
		report.Elements += len(bucket)
	}
	report.Buckets = len(buckets)

	if report.Min, err = sizes.Min(); err != nil {
		return
	}
	if report.Max, err = sizes.Max(); err != nil {
		return
	}
	if report.Mean, err = sizes.Mean(); err != nil {
		return
	}
	if report.Median, err = sizes.Median(); err != nil {
		return
	}
	report.StdDev, err = sizes.StandardDeviation()
	return
}
