// Vigil - Behavioral Anti-Cheat Detection Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package detection

import (
	"math"
	"testing"

	"github.com/tomtom215/vigil/internal/pattern"
)

func TestContribution(t *testing.T) {
	trust := DefaultConfig().Trust
	cfg := DefaultChannels()[ChannelClick]
	cfg.HardCeiling = 12

	tests := []struct {
		name string
		res  AnalysisResult
		want float64
	}{
		{
			name: "insufficient data",
			res:  AnalysisResult{Status: StatusInsufficientData, Rate: 50},
			want: 0,
		},
		{
			name: "human like",
			res:  AnalysisResult{Status: StatusComplete, Rate: 8, Label: pattern.HumanLike},
			want: 0,
		},
		{
			name: "unknown label",
			res:  AnalysisResult{Status: StatusComplete, Rate: 8, Label: pattern.Unknown},
			want: 0.2,
		},
		{
			name: "perfect timing",
			res:  AnalysisResult{Status: StatusComplete, Rate: 8, Label: pattern.PerfectTiming},
			want: 1,
		},
		{
			name: "breach with overshoot",
			res:  AnalysisResult{Status: StatusComplete, Rate: 15, Label: pattern.HumanLike},
			want: 1.25,
		},
		{
			name: "breach and pattern",
			res:  AnalysisResult{Status: StatusComplete, Rate: 18, Label: pattern.PerfectTiming},
			want: 2.5,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := contribution(tt.res, cfg, trust); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("contribution() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFuse(t *testing.T) {
	trust := TrustConfig{
		RawWeight:           1,
		PatternWeight:       1,
		PointsPerUnit:       10,
		CorroborationMin:    0.5,
		CorroborationFactor: 1.5,
		DecayPerTick:        0.05,
	}

	tests := []struct {
		name            string
		current         float64
		contributions   []float64
		want            float64
		wantContributed bool
	}{
		{"decay with nothing", 10, nil, 9.95, false},
		{"decay floors at zero", 0.01, nil, 0, false},
		{"noise below corroboration min", 10, []float64{0.2, 0.2}, 9.95, false},
		{"single channel", 0, []float64{1}, 10, true},
		{"noise ignored next to anomaly", 0, []float64{1, 0.2}, 10, true},
		{"two channels compound", 0, []float64{1, 1}, 30, true},
		{"three channels compound", 0, []float64{1, 1, 1}, 67.5, true},
		{"clamped at 100", 90, []float64{2}, 100, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, contributed := fuse(tt.current, tt.contributions, trust)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("fuse() score = %v, want %v", got, tt.want)
			}
			if contributed != tt.wantContributed {
				t.Errorf("fuse() contributed = %v, want %v", contributed, tt.wantContributed)
			}
		})
	}
}

func TestFuse_CorroborationBeatsSum(t *testing.T) {
	trust := DefaultConfig().Trust

	separate := 0.0
	separate, _ = fuse(separate, []float64{1}, trust)
	separate, _ = fuse(separate, []float64{1}, trust)

	together, _ := fuse(0, []float64{1, 1}, trust)
	if together <= separate {
		t.Errorf("corroborated score %v should exceed separate score %v", together, separate)
	}
}
