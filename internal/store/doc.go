// Vigil - Behavioral Anti-Cheat Detection Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

/*
Package store persists what must outlive a session in BadgerDB.

The detection engine keeps every live decision in memory. Three things are
written through to the store because they must survive kicks, reconnects
and restarts:

  - the cumulative offense total per subject, which drives bans
  - the violation history, as the audit trail staff review
  - the ban list and the pardons that lift bans

*Store implements detection.Ledger. The engine queues writes to it from a
single goroutine, so the tick loop never blocks on disk.

# Key Layout

	offenses:<subject>                     -> decimal int
	ban:<subject>                          -> Ban
	violation:<subject>:<unix nanos>:<seq> -> detection.ViolationRecord
	pardon:<subject>:<unix nanos>:<seq>    -> detection.Pardon

Timestamps are zero-padded so keys sort chronologically under a subject
prefix. Violation entries carry a TTL when Config.HistoryTTL is set; offense
totals and bans never expire.

# Garbage Collection

Badger only reclaims value log space when RunGC is called. GCLoop runs it on
Config.GCInterval and is supervised alongside the other data services.
In-memory stores have no value log and skip collection.
*/
package store
