// Vigil - Behavioral Anti-Cheat Detection Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

// Package pattern labels a channel's recent timing behavior.
//
// Classification is deterministic and rule based. Rules are tried in a fixed
// precedence order and the first match wins:
//
//  1. PerfectTiming: at least MinPerfectIntervals intervals, all within
//     Tolerance of the first one.
//  2. LowVariation: standard deviation below LowVariationThreshold.
//  3. HumanLike: standard deviation inside [HumanMin, HumanMax].
//  4. Alternating: even and odd indexed intervals each consistent within
//     Tolerance, with the two groups apart by more than Tolerance.
//  5. Unknown.
//
// HumanLike short-circuits the remaining rules, so a two-phase cadence whose
// spread happens to fall in the human band is not reported as Alternating.
package pattern

import (
	"math"

	"github.com/tomtom215/vigil/internal/stats"
)

// Label is the outcome of classifying a series of intervals.
type Label string

const (
	PerfectTiming Label = "perfect_timing"
	LowVariation  Label = "low_variation"
	HumanLike     Label = "human_like"
	Alternating   Label = "alternating"
	Unknown       Label = "unknown"
)

// Weight returns the suspicion weight in [0,1] fused into the trust score.
func (l Label) Weight() float64 {
	switch l {
	case PerfectTiming:
		return 1.0
	case Alternating:
		return 0.8
	case LowVariation:
		return 0.7
	case HumanLike:
		return 0.0
	default:
		return 0.2
	}
}

// Suspicious reports whether the label alone counts as a pattern violation.
func (l Label) Suspicious() bool {
	switch l {
	case PerfectTiming, LowVariation, Alternating:
		return true
	default:
		return false
	}
}

func (l Label) String() string {
	if l == "" {
		return string(Unknown)
	}
	return string(l)
}

// Config holds classifier thresholds. Interval units are milliseconds.
type Config struct {
	MinPerfectIntervals   int     `koanf:"min_perfect_intervals" validate:"min=2"`
	Tolerance             float64 `koanf:"perfect_timing_tolerance_ms" validate:"gte=0"`
	LowVariationThreshold float64 `koanf:"low_variation_threshold" validate:"gte=0"`
	HumanMin              float64 `koanf:"human_variation_min" validate:"gte=0"`
	HumanMax              float64 `koanf:"human_variation_max" validate:"gtefield=HumanMin"`
}

// DefaultConfig returns the thresholds used for click and chat cadence.
func DefaultConfig() Config {
	return Config{
		MinPerfectIntervals:   10,
		Tolerance:             5,
		LowVariationThreshold: 2.0,
		HumanMin:              8.0,
		HumanMax:              25.0,
	}
}

// Classify labels intervals using the precomputed summary s of the same
// intervals. Fewer than two intervals carry no timing signal and yield Unknown.
func Classify(intervals []float64, s stats.Summary, cfg Config) Label {
	if len(intervals) < 2 {
		return Unknown
	}

	if len(intervals) >= cfg.MinPerfectIntervals && consistent(intervals, 0, 1, cfg.Tolerance) {
		return PerfectTiming
	}
	if s.StdDev < cfg.LowVariationThreshold {
		return LowVariation
	}
	if s.StdDev >= cfg.HumanMin && s.StdDev <= cfg.HumanMax {
		return HumanLike
	}
	if alternating(intervals, cfg.Tolerance) {
		return Alternating
	}
	return Unknown
}

// ClassifyIntervals summarizes intervals and classifies them in one call.
func ClassifyIntervals(intervals []float64, cfg Config) Label {
	return Classify(intervals, stats.Describe(intervals), cfg)
}

func alternating(intervals []float64, tolerance float64) bool {
	if len(intervals) < 4 {
		return false
	}
	if !consistent(intervals, 0, 2, tolerance) || !consistent(intervals, 1, 2, tolerance) {
		return false
	}
	return math.Abs(intervals[0]-intervals[1]) > tolerance
}

// consistent reports whether every element from start, stepping by step, is
// within tolerance of the element at start.
func consistent(intervals []float64, start, step int, tolerance float64) bool {
	ref := intervals[start]
	for i := start + step; i < len(intervals); i += step {
		if math.Abs(intervals[i]-ref) > tolerance {
			return false
		}
	}
	return true
}
