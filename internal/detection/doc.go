// Vigil - Behavioral Anti-Cheat Detection Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

// Package detection is the behavioral anomaly detection engine.
//
// Detection Architecture:
//
//	host events -> Ingest -> window.Store
//	                             |
//	                  Tick (every ~50ms)
//	                             |
//	     stats.Describe -> pattern.Classify -> fusion -> state machine
//	                                                          |
//	                                          ActionHandler + Dispatcher
//	                                                          |
//	                                  log / webhook / discord / websocket / NATS
//
// Ingest is synchronous and O(1): it validates the sample, appends it to the
// subject's window and marks the channel dirty. Nothing is scored there.
//
// Tick runs due scheduled tasks, evicts expired samples, analyzes dirty
// subjects on a bounded worker pool and merges the results back. Merging is
// the only step that needs a subject's lock. A result whose subject was
// deregistered while it was being computed is discarded.
//
// Violation State Machine:
//
//	Clean -> Suspected -> Flagged (-> Frozen) -> Kicked -> Banned
//
// Each confirmed violation increments a session counter and the subject's
// cumulative offense total. The counter crosses warn, flag and kick
// thresholds; the cumulative total is compared against the ban threshold and
// survives reconnects through the Ledger. Reaching Flagged requires at least
// one classifier-confirmed violation, so raw rate spikes alone never flag a
// subject. After a cooldown window without violations the counter steps down
// by one, and keeps stepping each further window.
//
// Suspicion Score:
// Each subject carries a suspicion score in [0,100] (trust = 100 - suspicion)
// fused from raw ceiling breaches and classifier weights, with compounding
// when several channels are anomalous in the same tick. It decays every tick
// without contribution. The score is advisory and never triggers actions.
//
// Decisions reach the host through ActionHandler.OnViolation. Alerts fan out
// to sinks through the Dispatcher, which never blocks the decision path.
package detection
