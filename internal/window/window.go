// Vigil - Behavioral Anti-Cheat Detection Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package window

import (
	"errors"
	"iter"
	"time"
)

// ErrOutOfOrder is returned when a sample is older than the oldest sample
// still retained by the window.
var ErrOutOfOrder = errors.New("sample older than oldest retained sample")

// Sample is one timestamped observation. Samples are immutable once stored.
type Sample struct {
	Time  time.Time
	Value float64
	Tag   string
}

// Limits bounds a window by count and by age.
type Limits struct {
	// MaxCount is the maximum number of retained samples.
	MaxCount int `koanf:"max_window_count" json:"max_window_count"`

	// MaxAge is the maximum age of a retained sample. Zero disables age eviction.
	MaxAge time.Duration `koanf:"max_window_age" json:"max_window_age"`
}

// DefaultLimits mirrors the click window: 30 samples over 5 seconds.
func DefaultLimits() Limits {
	return Limits{
		MaxCount: 30,
		MaxAge:   5 * time.Second,
	}
}

// Window is a ring buffer of samples ordered by time.
// It is not safe for concurrent use; Store serializes access per subject.
type Window struct {
	buf    []Sample
	head   int
	n      int
	limits Limits
}

// New creates an empty window. A non-positive MaxCount falls back to the default.
func New(limits Limits) *Window {
	if limits.MaxCount <= 0 {
		limits.MaxCount = DefaultLimits().MaxCount
	}
	return &Window{
		buf:    make([]Sample, limits.MaxCount),
		limits: limits,
	}
}

// Limits returns the bounds of the window.
func (w *Window) Limits() Limits {
	return w.limits
}

// Len returns the number of retained samples.
func (w *Window) Len() int {
	return w.n
}

// At returns the i-th retained sample, oldest first.
func (w *Window) At(i int) Sample {
	return w.buf[(w.head+i)%len(w.buf)]
}

func (w *Window) set(i int, s Sample) {
	w.buf[(w.head+i)%len(w.buf)] = s
}

// Oldest returns the oldest retained sample.
func (w *Window) Oldest() (Sample, bool) {
	if w.n == 0 {
		return Sample{}, false
	}
	return w.At(0), true
}

// Newest returns the most recent retained sample.
func (w *Window) Newest() (Sample, bool) {
	if w.n == 0 {
		return Sample{}, false
	}
	return w.At(w.n - 1), true
}

// Push stores a sample, evicting from the front to honor both limits.
// Samples older than the oldest retained sample are rejected with ErrOutOfOrder.
func (w *Window) Push(s Sample) error {
	if w.n > 0 && s.Time.Before(w.At(0).Time) {
		return ErrOutOfOrder
	}

	w.EvictExpired(s.Time)

	if w.n == len(w.buf) {
		w.dropFront()
	}

	// Insertion from the back keeps the window ordered. For in-order samples
	// the loop exits immediately.
	idx := w.n
	w.n++
	for idx > 0 {
		prev := w.At(idx - 1)
		if !prev.Time.After(s.Time) {
			break
		}
		w.set(idx, prev)
		idx--
	}
	w.set(idx, s)
	return nil
}

// EvictExpired drops samples older than MaxAge relative to now.
// Returns the number of evicted samples.
func (w *Window) EvictExpired(now time.Time) int {
	if w.limits.MaxAge <= 0 {
		return 0
	}
	evicted := 0
	for w.n > 0 && now.Sub(w.At(0).Time) > w.limits.MaxAge {
		w.dropFront()
		evicted++
	}
	return evicted
}

func (w *Window) dropFront() {
	w.buf[w.head] = Sample{}
	w.head = (w.head + 1) % len(w.buf)
	w.n--
}

// Reset drops all samples.
func (w *Window) Reset() {
	for w.n > 0 {
		w.dropFront()
	}
	w.head = 0
}

// All returns the retained samples oldest first. The sequence is finite and
// can be iterated repeatedly without side effects.
func (w *Window) All() iter.Seq[Sample] {
	return func(yield func(Sample) bool) {
		for i := 0; i < w.n; i++ {
			if !yield(w.At(i)) {
				return
			}
		}
	}
}

// Values appends the sample values to dst and returns it.
func (w *Window) Values(dst []float64) []float64 {
	for i := 0; i < w.n; i++ {
		dst = append(dst, w.At(i).Value)
	}
	return dst
}

// Times appends the sample timestamps to dst and returns it.
func (w *Window) Times(dst []time.Time) []time.Time {
	for i := 0; i < w.n; i++ {
		dst = append(dst, w.At(i).Time)
	}
	return dst
}
