// Package policystore persists solved policies in an embedded badger
// database, keyed by problem name.
package policystore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/gxo-labs/fondsolve/internal/export"
	"github.com/gxo-labs/fondsolve/internal/retry"
	fonderrors "github.com/gxo-labs/fondsolve/pkg/fond/v1/errors"
	fondlog "github.com/gxo-labs/fondsolve/pkg/fond/v1/log"
)

const keyPrefix = "policy/"

// conflictRetry re-runs write transactions that lost a conflict to a
// concurrent writer.
var conflictRetry = retry.Config{
	Attempts:      5,
	Delay:         2 * time.Millisecond,
	MaxDelay:      50 * time.Millisecond,
	BackoffFactor: 2,
	Jitter:        0.2,
	Retryable:     func(err error) bool { return errors.Is(err, badger.ErrConflict) },
}

// Config locates the database. An empty Path opens an in-memory store.
type Config struct {
	Path       string
	SyncWrites bool
}

// Summary is the listing view of a stored policy.
type Summary struct {
	Problem   string
	RunID     string
	Algorithm string
	Size      int
}

// Store is a badger-backed policy store. It is safe for concurrent use.
type Store struct {
	db       *badger.DB
	log      fondlog.Logger
	retry    *retry.Helper
	inMemory bool
}

// badgerLogger routes badger's own logging into the solver logger. Badger is
// chatty at info level, so info is demoted to debug.
type badgerLogger struct {
	log fondlog.Logger
}

func (l badgerLogger) Errorf(format string, args ...interface{})   { l.log.Errorf(format, args...) }
func (l badgerLogger) Warningf(format string, args ...interface{}) { l.log.Warnf(format, args...) }
func (l badgerLogger) Infof(format string, args ...interface{})    { l.log.Debugf(format, args...) }
func (l badgerLogger) Debugf(format string, args ...interface{})   { l.log.Debugf(format, args...) }

// Open opens (creating if needed) the store described by cfg.
func Open(cfg Config, log fondlog.Logger) (*Store, error) {
	if log == nil {
		return nil, fonderrors.NewConfigError("logger cannot be nil", nil)
	}
	var opts badger.Options
	if cfg.Path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fonderrors.NewConfigError(fmt.Sprintf("failed to create policy store directory '%s'", cfg.Path), err)
		}
		opts = badger.DefaultOptions(cfg.Path).WithSyncWrites(cfg.SyncWrites)
	}
	opts = opts.WithNumVersionsToKeep(1).WithLogger(badgerLogger{log: log.With("component", "badger")})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open policy store: %w", err)
	}
	log.Debugf("Policy store opened (path=%q, in-memory=%t).", cfg.Path, cfg.Path == "")
	return &Store{db: db, log: log, retry: retry.NewHelper(log), inMemory: cfg.Path == ""}, nil
}

// OpenInMemory opens a store that lives only as long as the process.
func OpenInMemory(log fondlog.Logger) (*Store, error) {
	return Open(Config{}, log)
}

// InMemory reports whether the store is not backed by disk.
func (s *Store) InMemory() bool { return s.inMemory }

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save stores doc under its problem name, replacing any earlier policy.
func (s *Store) Save(ctx context.Context, doc *export.Document) error {
	if doc == nil || doc.Problem == "" {
		return fonderrors.NewValidationError("policy document needs a problem name", nil)
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode policy '%s': %w", doc.Problem, err)
	}
	cfg := conflictRetry
	cfg.Name = "save " + doc.Problem
	err = s.retry.Do(ctx, cfg, func(context.Context) error {
		return s.db.Update(func(txn *badger.Txn) error {
			return txn.Set([]byte(keyPrefix+doc.Problem), data)
		})
	})
	if err != nil {
		return fmt.Errorf("save policy '%s': %w", doc.Problem, err)
	}
	s.log.Debugf("Stored policy for '%s' (%d decisions).", doc.Problem, len(doc.Entries))
	return nil
}

// Load returns the policy stored for problem, or a *NotFoundError.
func (s *Store) Load(problem string) (*export.Document, error) {
	var doc export.Document
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefix + problem))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &doc)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fonderrors.NewNotFoundError(problem)
	}
	if err != nil {
		return nil, fmt.Errorf("load policy '%s': %w", problem, err)
	}
	return &doc, nil
}

// List summarizes every stored policy, sorted by problem name.
func (s *Store) List() ([]Summary, error) {
	var out []Summary
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(keyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			var doc export.Document
			if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &doc) }); err != nil {
				return fmt.Errorf("decode policy at key '%s': %w", item.Key(), err)
			}
			out = append(out, Summary{Problem: doc.Problem, RunID: doc.RunID, Algorithm: doc.Algorithm, Size: len(doc.Entries)})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Problem < out[j].Problem })
	return out, nil
}

// Delete removes the policy stored for problem. Deleting a missing policy
// returns a *NotFoundError.
func (s *Store) Delete(ctx context.Context, problem string) error {
	key := []byte(keyPrefix + problem)
	cfg := conflictRetry
	cfg.Name = "delete " + problem
	err := s.retry.Do(ctx, cfg, func(context.Context) error {
		return s.db.Update(func(txn *badger.Txn) error {
			if _, err := txn.Get(key); err != nil {
				return err
			}
			return txn.Delete(key)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return fonderrors.NewNotFoundError(problem)
	}
	return err
}
