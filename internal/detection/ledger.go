// Vigil - Behavioral Anti-Cheat Detection Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package detection

import (
	"context"
	"time"

	"github.com/tomtom215/vigil/internal/logging"
	"github.com/tomtom215/vigil/internal/metrics"
)

// Pardon is a staff reset of a subject's escalation.
type Pardon struct {
	By   string    `json:"by"`
	Note string    `json:"note,omitempty"`
	Time time.Time `json:"time"`
}

// Ledger persists what must outlive a session: the cumulative offense total,
// violation history, pardons and the ban list.
type Ledger interface {
	// Offenses returns the cumulative offense total, 0 for unknown subjects.
	Offenses(ctx context.Context, id SubjectID) (int, error)

	// Banned reports whether the subject is on the ban list.
	Banned(ctx context.Context, id SubjectID) (bool, error)

	// RecordViolation appends a record and stores the new offense total.
	RecordViolation(ctx context.Context, id SubjectID, rec ViolationRecord, offenses int) error

	// SetBanned adds or removes the subject from the ban list.
	SetBanned(ctx context.Context, id SubjectID, banned bool, at time.Time) error

	// RecordPardon appends a pardon to the subject's audit trail.
	RecordPardon(ctx context.Context, id SubjectID, p Pardon) error
}

// ledgerWrite is one queued ledger mutation.
type ledgerWrite struct {
	op      string
	subject SubjectID
	fn      func(ctx context.Context, l Ledger) error
}

// persist queues a ledger write without blocking. Writes are dropped and
// counted when the queue is full or the engine is closed.
func (e *Engine) persist(op string, id SubjectID, fn func(ctx context.Context, l Ledger) error) {
	if e.ledger == nil {
		return
	}

	e.closeMu.RLock()
	defer e.closeMu.RUnlock()
	if e.closed {
		return
	}

	select {
	case e.ledgerCh <- ledgerWrite{op: op, subject: id, fn: fn}:
	default:
		metrics.StoreWritesDropped.Inc()
		logging.Warn().Str("op", op).Str("subject", id.String()).Msg("ledger queue full, dropping write")
	}
}

// processLedgerWrites drains the ledger queue until it is closed.
func (e *Engine) processLedgerWrites() {
	defer close(e.ledgerDone)

	for w := range e.ledgerCh {
		ctx, cancel := context.WithTimeout(context.Background(), e.cfg.LedgerTimeout)
		err := w.fn(ctx, e.ledger)
		cancel()

		metrics.RecordStoreOperation(w.op, err)
		if err != nil {
			logging.Error().Err(err).Str("op", w.op).Str("subject", w.subject.String()).Msg("ledger write failed")
		}
	}
}
