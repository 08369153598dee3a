// Vigil - Behavioral Anti-Cheat Detection Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package detection

import (
	"math"
	"sync"
	"time"

	"github.com/tomtom215/vigil/internal/pattern"
	"github.com/tomtom215/vigil/internal/stats"
	"github.com/tomtom215/vigil/internal/window"
)

// scratch buffers are reused across analyses to keep ticks allocation-light.
type scratch struct {
	times     []time.Time
	values    []float64
	intervals []float64
	offsets   []float64
}

var scratchPool = sync.Pool{
	New: func() any { return &scratch{} },
}

// Analyze computes the features of one channel window. It reads but never
// mutates subject state, and the rate reference point is the newest sample,
// so repeated calls without new samples return identical results.
// Unknown subjects and channels yield StatusInsufficientData.
func (e *Engine) Analyze(id SubjectID, channel Channel) AnalysisResult {
	cfg, ok := e.cfg.Channels[channel]
	if !ok {
		return AnalysisResult{Status: StatusInsufficientData, Channel: channel}
	}
	res, _ := e.analyzeChannel(id, channel, cfg, nil)
	return res
}

// analyzeChannel copies the window under the subject's lock and computes the
// result outside it. found is false when the window no longer exists.
// unjudged is passed through to analyzeSamples.
func (e *Engine) analyzeChannel(id SubjectID, channel Channel, cfg ChannelConfig, unjudged *float64) (res AnalysisResult, found bool) {
	sc := scratchPool.Get().(*scratch)
	defer func() {
		sc.times = sc.times[:0]
		sc.values = sc.values[:0]
		sc.intervals = sc.intervals[:0]
		sc.offsets = sc.offsets[:0]
		scratchPool.Put(sc)
	}()

	found = e.windows.With(id, channel, func(w *window.Window) {
		sc.times = w.Times(sc.times[:0])
		sc.values = w.Values(sc.values[:0])
	})

	res, sc.intervals = analyzeSamples(channel, cfg, sc.times, sc.values, sc.intervals[:0], unjudged)
	if res.Status == StatusComplete {
		series := sc.values
		if cfg.Mode == ModeInterval {
			series = sc.intervals
		}
		res.Trend, sc.offsets = trend(sc.offsets[:0], sc.times, series)
	}
	return res, found
}

// trend correlates the analyzed series with elapsed time. series aligns with
// the newest len(series) timestamps, which covers both values and intervals.
// dst is reused for the time offsets and returned.
func trend(dst []float64, times []time.Time, series []float64) (float64, []float64) {
	if len(series) < 2 || len(series) > len(times) {
		return 0, dst
	}
	aligned := times[len(times)-len(series):]
	for _, t := range aligned {
		dst = append(dst, t.Sub(aligned[0]).Seconds())
	}
	return stats.Correlation(dst, series), dst
}

// analyzeSamples is the pure feature pipeline: stats, classification and
// per-channel suspicion. buf is reused for intervals and returned.
//
// For value channels unjudged is the largest value ingested since the
// channel was last judged, or -Inf when nothing new arrived; only it is
// checked against the ceiling. A nil unjudged judges the whole window.
func analyzeSamples(channel Channel, cfg ChannelConfig, times []time.Time, values, buf []float64, unjudged *float64) (AnalysisResult, []float64) {
	n := len(times)
	res := AnalysisResult{Status: StatusInsufficientData, Channel: channel, Count: n}
	if n == 0 {
		return res, buf
	}
	res.Newest = times[n-1]
	if n < cfg.MinSamples {
		return res, buf
	}

	var series []float64
	switch cfg.Mode {
	case ModeInterval:
		buf = stats.Intervals(buf, times)
		series = buf
		res.Rate = stats.RatePerSecond(times, times[n-1], cfg.RateWindow)
	default:
		series = values
		res.Peak = stats.Max(values)
		if unjudged != nil {
			res.Peak = *unjudged
		}
		if math.IsInf(res.Peak, -1) {
			res.Peak = 0
		}
	}

	s := stats.Describe(series)
	res.Mean = s.Mean
	res.Median = s.Median
	res.Variance = s.Variance
	res.StdDev = s.StdDev
	res.Min = s.Min
	res.Max = s.Max
	res.Skewness = s.Skewness
	res.Kurtosis = s.Kurtosis
	res.Entropy = s.Entropy
	res.CV = s.CV

	if cfg.Classify && cfg.Mode == ModeInterval {
		res.Label = pattern.Classify(series, s, cfg.Pattern)
	}

	res.Status = StatusComplete
	if _, breached := res.ceilingBreach(cfg); breached {
		res.Suspicion = 1
	} else if res.Label != "" {
		res.Suspicion = res.Label.Weight()
	}
	return res, buf
}

// ceilingBreach reports the raw ceiling violation of a complete result.
func (r AnalysisResult) ceilingBreach(cfg ChannelConfig) (Reason, bool) {
	if r.Status != StatusComplete || cfg.HardCeiling <= 0 {
		return Reason{}, false
	}
	if cfg.Mode == ModeInterval {
		if r.Rate > cfg.HardCeiling {
			return Reason{Kind: ReasonRateCeiling, Channel: r.Channel, Measured: r.Rate, Threshold: cfg.HardCeiling}, true
		}
		return Reason{}, false
	}
	if r.Peak > cfg.HardCeiling {
		return Reason{Kind: ReasonValueCeiling, Channel: r.Channel, Measured: r.Peak, Threshold: cfg.HardCeiling}, true
	}
	return Reason{}, false
}

// patternViolation reports a suspicious classifier label of a complete result.
func (r AnalysisResult) patternViolation() (Reason, bool) {
	if r.Status != StatusComplete || !r.Label.Suspicious() {
		return Reason{}, false
	}
	return Reason{Kind: ReasonPattern, Channel: r.Channel, Measured: r.StdDev, Label: r.Label}, true
}

// rawSeverity maps a ceiling overshoot to 1..10.
func rawSeverity(r Reason) int {
	sev := 1 + int(math.Floor(10*r.Overshoot()))
	return min(max(sev, 1), 10)
}

// patternSeverity maps a suspicious label to its fixed severity.
func patternSeverity(l pattern.Label) int {
	switch l {
	case pattern.PerfectTiming:
		return 6
	case pattern.Alternating:
		return 5
	case pattern.LowVariation:
		return 4
	default:
		return 1
	}
}
