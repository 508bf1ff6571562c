package domain

import (
	"math"
	"slices"
)

// convergenceEpsilon is the per-centroid movement below which iteration stops.
const convergenceEpsilon = 1e-3

// Cluster partitions values into at most k groups with one-dimensional
// k-means and returns the centroids sorted ascending.
//
// Seeding is deterministic: centroid i starts at sorted[i*n/k]. A centroid that
// receives no values keeps its previous position. The result length is
// min(k, len(values)); values is not modified.
func Cluster(values []float64, k, maxIterations int) []float64 {
	n := len(values)
	if n == 0 || k < 1 {
		return []float64{}
	}
	k = min(k, n)

	sorted := slices.Clone(values)
	slices.Sort(sorted)

	if n <= k {
		return padDistinct(sorted, k)
	}

	centroids := make([]float64, k)
	for i := range centroids {
		centroids[i] = sorted[i*n/k]
	}

	sums := make([]float64, k)
	counts := make([]int, k)
	for range maxIterations {
		clear(sums)
		clear(counts)
		for _, v := range sorted {
			idx := nearestIndex(centroids, v)
			sums[idx] += v
			counts[idx]++
		}

		converged := true
		for i := range centroids {
			if counts[i] == 0 {
				continue
			}
			next := sums[i] / float64(counts[i])
			if math.Abs(next-centroids[i]) >= convergenceEpsilon {
				converged = false
			}
			centroids[i] = next
		}
		if converged {
			break
		}
	}

	slices.Sort(centroids)
	return centroids
}

// padDistinct returns the distinct values of sorted, repeating the largest
// until the result has length k.
func padDistinct(sorted []float64, k int) []float64 {
	distinct := slices.Compact(sorted)
	for len(distinct) < k {
		distinct = append(distinct, distinct[len(distinct)-1])
	}
	return distinct
}

// nearestIndex returns the index of the centroid closest to v.
// Ties go to the lowest index.
func nearestIndex(centroids []float64, v float64) int {
	best := 0
	bestDist := math.Abs(v - centroids[0])
	for i := 1; i < len(centroids); i++ {
		if d := math.Abs(v - centroids[i]); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}
