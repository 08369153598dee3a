// Vigil - Behavioral Anti-Cheat Detection Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package detection

import "math"

const maxSuspicion = 100.0

// contribution returns the fusion input of one fresh channel result:
// RawWeight x (1 + overshoot) on a ceiling breach plus PatternWeight x label weight.
func contribution(res AnalysisResult, cfg ChannelConfig, trust TrustConfig) float64 {
	if res.Status != StatusComplete {
		return 0
	}
	c := 0.0
	if r, ok := res.ceilingBreach(cfg); ok {
		c += trust.RawWeight * (1 + r.Overshoot())
	}
	if res.Label != "" {
		c += trust.PatternWeight * res.Label.Weight()
	}
	return c
}

// fuse folds one tick's channel contributions into the suspicion score.
// Channels below CorroborationMin are treated as noise. Two or more anomalous
// channels in the same tick compound by CorroborationFactor^(n-1). A tick with
// nothing anomalous decays the score by DecayPerTick. The result is clamped
// to [0,100]; contributed reports whether the score was raised.
func fuse(current float64, contributions []float64, trust TrustConfig) (score float64, contributed bool) {
	sum := 0.0
	anomalous := 0
	for _, c := range contributions {
		if c >= trust.CorroborationMin && c > 0 {
			sum += c
			anomalous++
		}
	}

	if anomalous == 0 {
		return math.Max(0, current-trust.DecayPerTick), false
	}
	if anomalous > 1 {
		sum *= math.Pow(trust.CorroborationFactor, float64(anomalous-1))
	}
	return math.Min(maxSuspicion, current+trust.PointsPerUnit*sum), true
}
