// Package badgerstate keeps the poll state (last poll time and ledger) in an
// embedded BadgerDB, for deployments where the record store is a shared
// database but the poller's bookkeeping should stay local.
package badgerstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
)

var (
	keyLastPoll = []byte("poll/last_poll_time")
	keyLedger   = []byte("poll/ledger")
)

// Store implements pipeline.StateStore.
type Store struct {
	db *badger.DB
}

// Open opens (creating if needed) a database under path. An empty path opens
// an in-memory database.
func Open(path string, logger *slog.Logger) (*Store, error) {
	var opts badger.Options
	if path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(path, 0o750); err != nil {
			return nil, fmt.Errorf("create state directory %s: %w", path, err)
		}
		opts = badger.DefaultOptions(path).WithSyncWrites(true)
	}

	if logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger state: %w", err)
	}
	return &Store{db: db}, nil
}

// Close flushes and closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// LastPoll returns the time of the last completed poll, or the zero time.
func (s *Store) LastPoll(ctx context.Context) (time.Time, error) {
	var t time.Time
	err := s.get(ctx, keyLastPoll, func(v []byte) error {
		return t.UnmarshalText(v)
	})
	if err != nil {
		return time.Time{}, fmt.Errorf("read last poll time: %w", err)
	}
	return t, nil
}

// SetLastPoll records the time of a completed poll.
func (s *Store) SetLastPoll(ctx context.Context, t time.Time) error {
	v, err := t.UTC().MarshalText()
	if err != nil {
		return err
	}
	return s.set(ctx, keyLastPoll, v)
}

// Ledger returns the persisted ledger, oldest first.
func (s *Store) Ledger(ctx context.Context) ([]string, error) {
	var ids []string
	err := s.get(ctx, keyLedger, func(v []byte) error {
		return json.Unmarshal(v, &ids)
	})
	if err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}
	return ids, nil
}

// SetLedger replaces the persisted ledger.
func (s *Store) SetLedger(ctx context.Context, ids []string) error {
	if ids == nil {
		ids = []string{}
	}
	v, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}
	return s.set(ctx, keyLedger, v)
}

// get calls decode with the value under key. A missing key is not an error
// and leaves decode uncalled.
func (s *Store) get(ctx context.Context, key []byte, decode func([]byte) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(decode)
	})
}

func (s *Store) set(ctx context.Context, key, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	}); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

// badgerLogger routes Badger's internal logging through slog.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}
