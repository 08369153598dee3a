// Vigil - Behavioral Anti-Cheat Detection Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/vigil

package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/goccy/go-json"

	"github.com/tomtom215/vigil/internal/detection"
	"github.com/tomtom215/vigil/internal/logging"
)

// Key prefixes for BadgerDB storage
const (
	offensesKeyPrefix  = "offenses:"
	banKeyPrefix       = "ban:"
	violationKeyPrefix = "violation:"
	pardonKeyPrefix    = "pardon:"
)

var (
	// ErrNotFound is returned for keys that do not exist.
	ErrNotFound = errors.New("not found")

	// ErrClosed is returned for operations on a closed store.
	ErrClosed = errors.New("store closed")
)

// Ban is an entry of the ban list.
type Ban struct {
	Subject detection.SubjectID `json:"subject"`
	Since   time.Time           `json:"since"`
}

// Store is the BadgerDB-backed ledger.
type Store struct {
	db     *badger.DB
	config Config
	seq    atomic.Uint64

	mu     sync.RWMutex
	closed bool
}

var _ detection.Ledger = (*Store)(nil)

// Open opens (or creates) the database described by cfg.
func Open(cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(cfg.Path)
		opts.SyncWrites = cfg.SyncWrites
	}
	if cfg.Compression {
		opts.Compression = options.Snappy
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}

	logging.Info().
		Str("path", cfg.Path).
		Bool("in_memory", cfg.InMemory).
		Bool("sync_writes", cfg.SyncWrites).
		Msg("store opened")

	return &Store{db: db, config: cfg}, nil
}

// Config returns the store configuration.
func (s *Store) Config() Config {
	return s.config
}

// Close flushes and closes the database. If it does not finish within
// CloseTimeout an error is returned.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	timeout := s.config.CloseTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	done := make(chan error, 1)
	go func() {
		done <- s.db.Close()
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("close BadgerDB: %w", err)
		}
		logging.Info().Msg("store closed")
		return nil
	case <-time.After(timeout):
		logging.Warn().Dur("timeout", timeout).Msg("BadgerDB close timed out")
		return fmt.Errorf("badgerdb close timeout after %v", timeout)
	}
}

// Ping reports whether the store accepts operations.
func (s *Store) Ping(ctx context.Context) error {
	return s.check(ctx)
}

func (s *Store) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

// RunGC reclaims value log space until Badger finds nothing to rewrite.
func (s *Store) RunGC() error {
	if err := s.check(context.Background()); err != nil {
		return err
	}
	if s.config.InMemory {
		return nil
	}

	for {
		err := s.db.RunValueLogGC(s.config.GCRatio)
		if errors.Is(err, badger.ErrNoRewrite) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("run GC: %w", err)
		}
	}
}

// Size returns the LSM and value log sizes in bytes.
func (s *Store) Size() (lsm, vlog int64) {
	return s.db.Size()
}

// timeKey builds a chronologically sortable key under a subject prefix.
func (s *Store) timeKey(prefix string, id detection.SubjectID, t time.Time) []byte {
	return []byte(fmt.Sprintf("%s%s:%020d:%010d", prefix, id, t.UnixNano(), s.seq.Add(1)))
}

func subjectPrefix(prefix string, id detection.SubjectID) []byte {
	return []byte(prefix + id.String() + ":")
}

func getJSON(txn *badger.Txn, key []byte, v any) error {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get %s: %w", key, err)
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, v)
	})
}

func readOffenses(txn *badger.Txn, id detection.SubjectID) (int, error) {
	item, err := txn.Get([]byte(offensesKeyPrefix + id.String()))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get offenses: %w", err)
	}

	var n int
	err = item.Value(func(val []byte) error {
		var perr error
		n, perr = strconv.Atoi(string(val))
		return perr
	})
	if err != nil {
		return 0, fmt.Errorf("parse offenses: %w", err)
	}
	return n, nil
}
