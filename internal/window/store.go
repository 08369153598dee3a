// Vigil - Behavioral Anti-Cheat Detection Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package window

import (
	"iter"
	"sync"
	"time"
)

// LimitsFunc resolves the limits for a channel.
type LimitsFunc[C comparable] func(channel C) Limits

// Set holds the windows of a single subject, one per channel.
type Set[C comparable] struct {
	mu      sync.Mutex
	windows map[C]*Window
}

// Store manages windows keyed by subject and channel.
//
// Example usage:
//
//	store := window.NewStore[uuid.UUID, Channel](limitsFor)
//	_ = store.Push(id, "click", window.Sample{Time: now, Value: 1})
//	for s := range store.View(id, "click") { ... }
type Store[K comparable, C comparable] struct {
	mu       sync.RWMutex
	subjects map[K]*Set[C]
	limits   LimitsFunc[C]
}

// NewStore creates an empty store. limits may be nil, in which case
// DefaultLimits applies to every channel.
func NewStore[K comparable, C comparable](limits LimitsFunc[C]) *Store[K, C] {
	if limits == nil {
		limits = func(C) Limits { return DefaultLimits() }
	}
	return &Store[K, C]{
		subjects: make(map[K]*Set[C]),
		limits:   limits,
	}
}

// set returns the subject's set, creating it when create is true.
func (s *Store[K, C]) set(key K, create bool) *Set[C] {
	s.mu.RLock()
	set, ok := s.subjects[key]
	s.mu.RUnlock()
	if ok || !create {
		return set
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if set, ok = s.subjects[key]; ok {
		return set
	}
	set = &Set[C]{windows: make(map[C]*Window)}
	s.subjects[key] = set
	return set
}

// Push stores a sample for the subject and channel.
func (s *Store[K, C]) Push(key K, channel C, sample Sample) error {
	set := s.set(key, true)

	set.mu.Lock()
	defer set.mu.Unlock()

	w, ok := set.windows[channel]
	if !ok {
		w = New(s.limits(channel))
		set.windows[channel] = w
	}
	return w.Push(sample)
}

// View returns the samples of a subject's channel, oldest first.
// The subject's lock is held while the sequence is being iterated, so the
// loop body must not call back into the store for the same subject.
func (s *Store[K, C]) View(key K, channel C) iter.Seq[Sample] {
	return func(yield func(Sample) bool) {
		set := s.set(key, false)
		if set == nil {
			return
		}
		set.mu.Lock()
		defer set.mu.Unlock()

		w, ok := set.windows[channel]
		if !ok {
			return
		}
		for smp := range w.All() {
			if !yield(smp) {
				return
			}
		}
	}
}

// With runs fn with exclusive access to the subject's window for channel.
// fn is not called when the window does not exist.
func (s *Store[K, C]) With(key K, channel C, fn func(w *Window)) bool {
	set := s.set(key, false)
	if set == nil {
		return false
	}
	set.mu.Lock()
	defer set.mu.Unlock()

	w, ok := set.windows[channel]
	if !ok {
		return false
	}
	fn(w)
	return true
}

// Len returns the number of samples held for the subject's channel.
func (s *Store[K, C]) Len(key K, channel C) int {
	n := 0
	s.With(key, channel, func(w *Window) { n = w.Len() })
	return n
}

// Channels returns the channels that currently hold a window for the subject.
func (s *Store[K, C]) Channels(key K) []C {
	set := s.set(key, false)
	if set == nil {
		return nil
	}
	set.mu.Lock()
	defer set.mu.Unlock()

	channels := make([]C, 0, len(set.windows))
	for c := range set.windows {
		channels = append(channels, c)
	}
	return channels
}

// EvictExpired drops expired samples across all subjects.
// Returns the number of evicted samples.
func (s *Store[K, C]) EvictExpired(now time.Time) int {
	s.mu.RLock()
	sets := make([]*Set[C], 0, len(s.subjects))
	for _, set := range s.subjects {
		sets = append(sets, set)
	}
	s.mu.RUnlock()

	evicted := 0
	for _, set := range sets {
		set.mu.Lock()
		for _, w := range set.windows {
			evicted += w.EvictExpired(now)
		}
		set.mu.Unlock()
	}
	return evicted
}

// Remove drops every window of the subject.
func (s *Store[K, C]) Remove(key K) {
	s.mu.Lock()
	set, ok := s.subjects[key]
	delete(s.subjects, key)
	s.mu.Unlock()

	if !ok {
		return
	}
	set.mu.Lock()
	for c, w := range set.windows {
		w.Reset()
		delete(set.windows, c)
	}
	set.mu.Unlock()
}

// Subjects returns the number of subjects in the store.
func (s *Store[K, C]) Subjects() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subjects)
}
