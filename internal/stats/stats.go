// Vigil - Behavioral Anti-Cheat Detection Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

// Package stats computes descriptive statistics over sample windows.
//
// All functions are pure and safe for concurrent use. Degenerate input
// (empty series, zero variance, zero mean, too few points) resolves to 0.0
// instead of an error or NaN, so callers must read 0.0 from a near-empty
// window as "no signal" rather than "perfectly stable".
//
// Moments are population moments (divide by N), matching the rest of the
// detection pipeline.
package stats

import (
	"math"
	"slices"
	"time"
)

// Summary holds the single-series features of a window.
type Summary struct {
	Count    int     `json:"count"`
	Mean     float64 `json:"mean"`
	Median   float64 `json:"median"`
	Variance float64 `json:"variance"`
	StdDev   float64 `json:"stddev"`
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	Skewness float64 `json:"skewness"`
	Kurtosis float64 `json:"kurtosis"`
	Entropy  float64 `json:"entropy"`
	CV       float64 `json:"cv"`
}

// Describe computes every Summary feature of values.
func Describe(values []float64) Summary {
	if len(values) == 0 {
		return Summary{}
	}
	mean := Mean(values)
	variance := varianceAround(values, mean)
	stddev := math.Sqrt(variance)

	return Summary{
		Count:    len(values),
		Mean:     mean,
		Median:   Median(values),
		Variance: variance,
		StdDev:   stddev,
		Min:      Min(values),
		Max:      Max(values),
		Skewness: Skewness(values),
		Kurtosis: Kurtosis(values),
		Entropy:  Entropy(values),
		CV:       cv(mean, stddev),
	}
}

// Mean returns the arithmetic mean. Empty input returns 0.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Median returns the middle value, or the average of the two middle values
// for an even count. The input slice is not reordered.
func Median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}

	sorted := slices.Clone(values)
	slices.Sort(sorted)

	n := len(sorted)
	if n%2 == 0 {
		return (sorted[n/2-1] + sorted[n/2]) / 2
	}
	return sorted[n/2]
}

// Variance returns the population variance.
func Variance(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return varianceAround(values, Mean(values))
}

func varianceAround(values []float64, mean float64) float64 {
	sum := 0.0
	for _, v := range values {
		d := v - mean
		sum += d * d
	}
	return sum / float64(len(values))
}

// StdDev returns the population standard deviation.
func StdDev(values []float64) float64 {
	return math.Sqrt(Variance(values))
}

// Min returns the smallest value. Empty input returns 0.
func Min(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return slices.Min(values)
}

// Max returns the largest value. Empty input returns 0.
func Max(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return slices.Max(values)
}

// Skewness returns the population skewness m3 / m2^1.5.
// Fewer than 3 points or zero variance returns 0.
func Skewness(values []float64) float64 {
	if len(values) < 3 {
		return 0
	}
	m2, m3, _ := centralMoments(values)
	if m2 == 0 {
		return 0
	}
	return m3 / math.Pow(m2, 1.5)
}

// Kurtosis returns the population excess kurtosis m4 / m2^2 - 3.
// Fewer than 4 points or zero variance returns 0.
func Kurtosis(values []float64) float64 {
	if len(values) < 4 {
		return 0
	}
	m2, _, m4 := centralMoments(values)
	if m2 == 0 {
		return 0
	}
	return m4/(m2*m2) - 3
}

func centralMoments(values []float64) (m2, m3, m4 float64) {
	mean := Mean(values)
	for _, v := range values {
		d := v - mean
		d2 := d * d
		m2 += d2
		m3 += d2 * d
		m4 += d2 * d2
	}
	n := float64(len(values))
	return m2 / n, m3 / n, m4 / n
}

// Entropy returns the Shannon entropy (natural log) of values treated as a
// histogram: -Σ p·ln(p) with p = v/Σv. Negative values are ignored.
// Empty or zero-sum input returns 0.
func Entropy(values []float64) float64 {
	total := 0.0
	for _, v := range values {
		if v > 0 {
			total += v
		}
	}
	if total == 0 {
		return 0
	}

	entropy := 0.0
	for _, v := range values {
		if v > 0 {
			p := v / total
			entropy -= p * math.Log(p)
		}
	}
	return entropy
}

// CoefficientOfVariation returns stddev/mean·100. A zero mean returns 0.
func CoefficientOfVariation(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mean := Mean(values)
	return cv(mean, math.Sqrt(varianceAround(values, mean)))
}

func cv(mean, stddev float64) float64 {
	if mean == 0 {
		return 0
	}
	return stddev / mean * 100
}

// Correlation returns the Pearson correlation of x and y. Sequences of
// unequal length, shorter than 2, or with zero variance return 0.
func Correlation(x, y []float64) float64 {
	if len(x) != len(y) || len(x) < 2 {
		return 0
	}
	mx, my := Mean(x), Mean(y)

	var cov, vx, vy float64
	for i := range x {
		dx, dy := x[i]-mx, y[i]-my
		cov += dx * dy
		vx += dx * dx
		vy += dy * dy
	}
	denom := math.Sqrt(vx * vy)
	if denom == 0 {
		return 0
	}
	return cov / denom
}

// Intervals appends the successive differences of times, in milliseconds,
// to dst. Fewer than two timestamps append nothing.
func Intervals(dst []float64, times []time.Time) []float64 {
	for i := 1; i < len(times); i++ {
		dst = append(dst, float64(times[i].Sub(times[i-1]))/float64(time.Millisecond))
	}
	return dst
}

// RatePerSecond counts the timestamps within the trailing window ending at
// ref (ref - t < window, t not after ref) and normalizes to events per second.
func RatePerSecond(times []time.Time, ref time.Time, window time.Duration) float64 {
	if window <= 0 {
		return 0
	}
	count := 0
	for _, t := range times {
		if t.After(ref) {
			continue
		}
		if ref.Sub(t) < window {
			count++
		}
	}
	return float64(count) / window.Seconds()
}
