// Vigil - Behavioral Anti-Cheat Detection Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/vigil/internal/detection"
)

// Offenses returns the cumulative offense total, 0 for unknown subjects.
func (s *Store) Offenses(ctx context.Context, id detection.SubjectID) (int, error) {
	if err := s.check(ctx); err != nil {
		return 0, err
	}

	var n int
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		n, err = readOffenses(txn, id)
		return err
	})
	return n, err
}

// Banned reports whether the subject is on the ban list.
func (s *Store) Banned(ctx context.Context, id detection.SubjectID) (bool, error) {
	_, err := s.Ban(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Ban returns the ban list entry of a subject, or ErrNotFound.
func (s *Store) Ban(ctx context.Context, id detection.SubjectID) (Ban, error) {
	if err := s.check(ctx); err != nil {
		return Ban{}, err
	}

	var ban Ban
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, []byte(banKeyPrefix+id.String()), &ban)
	})
	return ban, err
}

// RecordViolation appends a violation record and stores the offense total.
// The stored total never decreases.
func (s *Store) RecordViolation(ctx context.Context, id detection.SubjectID, rec detection.ViolationRecord, offenses int) error {
	if err := s.check(ctx); err != nil {
		return err
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal violation: %w", err)
	}
	key := s.timeKey(violationKeyPrefix, id, rec.Time)

	return s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(key, data)
		if s.config.HistoryTTL > 0 {
			entry = entry.WithTTL(s.config.HistoryTTL)
		}
		if err := txn.SetEntry(entry); err != nil {
			return fmt.Errorf("set violation: %w", err)
		}

		current, err := readOffenses(txn, id)
		if err != nil {
			return err
		}
		if offenses <= current {
			return nil
		}
		if err := txn.Set([]byte(offensesKeyPrefix+id.String()), []byte(strconv.Itoa(offenses))); err != nil {
			return fmt.Errorf("set offenses: %w", err)
		}
		return nil
	})
}

// SetBanned adds or removes the subject from the ban list.
func (s *Store) SetBanned(ctx context.Context, id detection.SubjectID, banned bool, at time.Time) error {
	if err := s.check(ctx); err != nil {
		return err
	}

	key := []byte(banKeyPrefix + id.String())
	if !banned {
		return s.db.Update(func(txn *badger.Txn) error {
			if err := txn.Delete(key); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("delete ban: %w", err)
			}
			return nil
		})
	}

	data, err := json.Marshal(Ban{Subject: id, Since: at})
	if err != nil {
		return fmt.Errorf("marshal ban: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, data)
	})
}

// RecordPardon appends a pardon to the subject's audit trail.
func (s *Store) RecordPardon(ctx context.Context, id detection.SubjectID, p detection.Pardon) error {
	if err := s.check(ctx); err != nil {
		return err
	}

	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal pardon: %w", err)
	}
	key := s.timeKey(pardonKeyPrefix, id, p.Time)
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, data)
	})
}

// History returns up to limit of the newest violation records of a subject,
// oldest first. A limit of zero or less returns every record.
func (s *Store) History(ctx context.Context, id detection.SubjectID, limit int) ([]detection.ViolationRecord, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	var records []detection.ViolationRecord
	err := s.db.View(func(txn *badger.Txn) error {
		return scanNewest(txn, subjectPrefix(violationKeyPrefix, id), limit, func(val []byte) error {
			var rec detection.ViolationRecord
			if err := json.Unmarshal(val, &rec); err != nil {
				return err
			}
			records = append(records, rec)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list violations: %w", err)
	}

	slices.Reverse(records)
	return records, nil
}

// Pardons returns the pardons of a subject, oldest first.
func (s *Store) Pardons(ctx context.Context, id detection.SubjectID) ([]detection.Pardon, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	var pardons []detection.Pardon
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := subjectPrefix(pardonKeyPrefix, id)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var p detection.Pardon
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &p)
			}); err != nil {
				return err
			}
			pardons = append(pardons, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list pardons: %w", err)
	}
	return pardons, nil
}

// Bans returns the ban list.
func (s *Store) Bans(ctx context.Context) ([]Ban, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}

	var bans []Ban
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(banKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var b Ban
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &b)
			}); err != nil {
				return err
			}
			bans = append(bans, b)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list bans: %w", err)
	}
	return bans, nil
}

// scanNewest walks keys under prefix newest first, calling fn with at most
// limit values.
func scanNewest(txn *badger.Txn, prefix []byte, limit int, fn func(val []byte) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Reverse = true
	opts.PrefetchValues = true
	it := txn.NewIterator(opts)
	defer it.Close()

	seek := append(slices.Clone(prefix), 0xFF)
	n := 0
	for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
		if limit > 0 && n >= limit {
			break
		}
		if err := it.Item().Value(fn); err != nil {
			return err
		}
		n++
	}
	return nil
}
