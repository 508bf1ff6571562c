// Package domain models sound-level readings and their noise classification.
//
// # Readings
//
// A reading is a single A-weighted sound level in dB taken by a device at a
// location. Devices publish either a bare decimal ("42.5") or a JSON object
// with a "level_db" (or legacy "decibels") field. Readings are either real
// (from a device) or synthetic (generated for demos and tests); only real
// readings feed adaptive classification.
//
// # Labels
//
// Every reading is eventually assigned one of five ordered labels:
//
//	silent < quiet < normal < loud < very_loud
//
// The label is written once. Synthetic readings are labeled on creation; real
// readings are stored unlabeled and picked up by a background relabel pass.
//
// # Fixed classification
//
// Static cutoffs, lower bound inclusive:
//
//	< 24 dB    silent     (rustling leaves, recording studio)
//	24-33 dB   quiet      (quiet bedroom at night)
//	33-50 dB   normal     (library, quiet office)
//	50-65 dB   loud       (conversation, busy office)
//	>= 65 dB   very_loud  (traffic, vacuum cleaner)
//
// # Adaptive classification
//
// Rooms differ: a server room never drops below 50 dB, a bedroom rarely rises
// above it. Adaptive mode clusters the last [HistoryWindow] real readings into
// [NumBands] centroids with deterministic one-dimensional k-means and labels
// the centroids by rank, so the quietest cluster is always "silent" whatever
// its absolute level. A new reading takes the label of its nearest centroid.
// With fewer than [MinHistorySamples] readings of history, adaptive mode uses
// the fixed cutoffs.
package domain
