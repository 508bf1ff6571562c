package domain

import (
	"math"
	"slices"
)

const (
	// HistoryWindow caps how many recent real readings a history provider returns.
	HistoryWindow = 500

	// MinHistorySamples is the smallest history that adaptive classification
	// will cluster. Anything shorter falls back to ClassifyFixed.
	MinHistorySamples = 10

	// AdaptiveMaxIterations bounds the clustering pass of ClassifyAdaptive.
	AdaptiveMaxIterations = 20
)

// HistoryFunc returns recent real levels, newest first, at most HistoryWindow long.
type HistoryFunc func() []float64

// ClassifyAdaptive labels level by clustering recent history into NumBands
// centroids and returning the rank label of the nearest one. Short or empty
// history degrades to ClassifyFixed.
func ClassifyAdaptive(level float64, history HistoryFunc) Label {
	var samples []float64
	if history != nil {
		samples = history()
	}
	if len(samples) < MinHistorySamples {
		return ClassifyFixed(level)
	}

	centroids := Cluster(samples, NumBands, AdaptiveMaxIterations)
	if len(centroids) == 0 {
		return ClassifyFixed(level)
	}
	return NearestLabel(level, centroids)
}

// RankLabels assigns Labels to centroids by ascending rank. The returned slice
// is parallel to centroids; positions beyond NumBands get LabelUnknown.
func RankLabels(centroids []float64) []Label {
	order := make([]int, len(centroids))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		switch {
		case centroids[a] < centroids[b]:
			return -1
		case centroids[a] > centroids[b]:
			return 1
		}
		return 0
	})

	labels := make([]Label, len(centroids))
	for rank, idx := range order {
		if rank < NumBands {
			labels[idx] = Labels[rank]
		} else {
			labels[idx] = LabelUnknown
		}
	}
	return labels
}

// NearestLabel returns the rank label of the centroid closest to level.
// On equal distance the lower-valued centroid wins.
func NearestLabel(level float64, centroids []float64) Label {
	if len(centroids) == 0 {
		return LabelUnknown
	}
	labels := RankLabels(centroids)

	best := -1
	bestDist := math.Inf(1)
	for i, c := range centroids {
		d := math.Abs(level - c)
		if best < 0 || d < bestDist || (d == bestDist && c < centroids[best]) {
			best, bestDist = i, d
		}
	}
	return labels[best]
}
