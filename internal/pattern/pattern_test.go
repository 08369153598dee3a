// Vigil - Behavioral Anti-Cheat Detection Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package pattern

import (
	"testing"

	"github.com/tomtom215/vigil/internal/stats"
)

func TestClassifyIntervals(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		name      string
		intervals []float64
		want      Label
	}{
		{
			name:      "perfect timing 50ms plus or minus 1",
			intervals: []float64{50, 51, 49, 50, 51, 49, 50, 50, 51, 49},
			want:      PerfectTiming,
		},
		{
			name:      "nine regular intervals fall through to low variation",
			intervals: []float64{50, 51, 49, 50, 51, 49, 50, 50, 51},
			want:      LowVariation,
		},
		{
			// Mean 100, population stddev about 11.6.
			name:      "human like spread",
			intervals: []float64{85, 115, 85, 115, 100, 100, 85, 115, 100, 100},
			want:      HumanLike,
		},
		{
			name:      "alternating two phase cadence",
			intervals: []float64{40, 50, 40, 50, 40, 50},
			want:      Alternating,
		},
		{
			name:      "alternating with wide gap",
			intervals: []float64{20, 120, 21, 119, 20, 120},
			want:      Alternating,
		},
		{
			name:      "three intervals cannot alternate",
			intervals: []float64{40, 50, 40},
			want:      Unknown,
		},
		{
			name:      "erratic",
			intervals: []float64{10, 200, 35, 400, 90, 15},
			want:      Unknown,
		},
		{
			name:      "single interval",
			intervals: []float64{50},
			want:      Unknown,
		},
		{
			name:      "empty",
			intervals: nil,
			want:      Unknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyIntervals(tt.intervals, cfg); got != tt.want {
				t.Errorf("ClassifyIntervals(%v) = %s, want %s (stddev %.2f)",
					tt.intervals, got, tt.want, stats.StdDev(tt.intervals))
			}
		})
	}
}

func TestClassify_HumanBandShortCircuitsAlternating(t *testing.T) {
	// Two-phase cadence with stddev 20 lands in the human band first.
	intervals := []float64{30, 70, 30, 70, 30, 70}
	if got := ClassifyIntervals(intervals, DefaultConfig()); got != HumanLike {
		t.Errorf("ClassifyIntervals() = %s, want %s", got, HumanLike)
	}
}

func TestClassify_UsesProvidedSummary(t *testing.T) {
	intervals := []float64{10, 200, 35, 400}
	s := stats.Summary{StdDev: 1}
	if got := Classify(intervals, s, DefaultConfig()); got != LowVariation {
		t.Errorf("Classify() = %s, want %s", got, LowVariation)
	}
}

func TestLabel_WeightAndSuspicious(t *testing.T) {
	tests := []struct {
		label      Label
		weight     float64
		suspicious bool
	}{
		{PerfectTiming, 1.0, true},
		{Alternating, 0.8, true},
		{LowVariation, 0.7, true},
		{Unknown, 0.2, false},
		{HumanLike, 0.0, false},
	}

	for _, tt := range tests {
		t.Run(tt.label.String(), func(t *testing.T) {
			if got := tt.label.Weight(); got != tt.weight {
				t.Errorf("Weight() = %v, want %v", got, tt.weight)
			}
			if got := tt.label.Suspicious(); got != tt.suspicious {
				t.Errorf("Suspicious() = %v, want %v", got, tt.suspicious)
			}
		})
	}

	if PerfectTiming.Weight() <= Unknown.Weight() || Unknown.Weight() <= HumanLike.Weight() {
		t.Error("weights must order PerfectTiming > Unknown > HumanLike")
	}
}
