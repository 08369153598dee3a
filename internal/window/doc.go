// Vigil - Behavioral Anti-Cheat Detection Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

// Package window provides bounded, time-ordered sample histories for
// behavioral detection.
//
// A Window holds the recent samples of one signal for one subject. It is
// bounded twice: by sample count (MaxCount) and by sample age (MaxAge).
// Count eviction happens on every push; age eviction is lazy and happens on
// push (relative to the pushed sample) and on explicit EvictExpired calls
// made by the engine tick.
//
//	Store[K, C]
//	  └── Set (one per subject, own lock)
//	        └── Window (one per channel, ring buffer)
//
// Windows are ring buffers sized to MaxCount, so the steady-state push path
// performs no allocation. Samples are kept in non-decreasing time order; a
// late sample that is still newer than the oldest retained sample is
// inserted at its ordered position.
//
// Different subjects never contend: the store-level lock is only held to
// look up or create a subject's Set.
package window
