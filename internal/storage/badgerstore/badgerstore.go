// Package badgerstore keeps segment lists in an embedded BadgerDB keyed
// by unit. It is a drop-in alternative to the flat-file store for
// single-process deployments: badger already refuses to open the same
// directory twice, so per-unit serialization only needs an in-process
// mutex table.
package badgerstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/viljemd-hub/channel-manager-sub000/internal/domain"
)

const (
	rawPrefix       = "raw/"
	publishedPrefix = "pub/"

	lockRetryInterval = 25 * time.Millisecond
)

type Store struct {
	db *badger.DB

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Open creates or opens a badger database at dir. Badger's own chatty
// logger is disabled; callers log at the service layer.
func Open(dir string) (*Store, error) {
	db, err := badger.Open(badger.DefaultOptions(dir).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("open badger at %s: %w", dir, err)
	}
	return &Store{db: db, locks: make(map[string]*sync.Mutex)}, nil
}

// OpenInMemory opens a non-persistent store for tests.
func OpenInMemory() (*Store, error) {
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("open in-memory badger: %w", err)
	}
	return &Store{db: db, locks: make(map[string]*sync.Mutex)}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Load(ctx context.Context, unit string) ([]domain.Segment, error) {
	return s.load(rawPrefix, unit)
}

func (s *Store) Save(ctx context.Context, unit string, segs []domain.Segment) error {
	return s.save(rawPrefix, unit, segs)
}

func (s *Store) LoadPublished(ctx context.Context, unit string) ([]domain.Segment, error) {
	return s.load(publishedPrefix, unit)
}

func (s *Store) SavePublished(ctx context.Context, unit string, segs []domain.Segment) error {
	return s.save(publishedPrefix, unit, segs)
}

func (s *Store) Units(ctx context.Context) ([]string, error) {
	units := make([]string, 0, 8)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(rawPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			units = append(units, string(it.Item().Key()[len(rawPrefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list units: %w", err)
	}
	sort.Strings(units)
	return units, nil
}

// WithUnitLock serializes mutations for one unit within this process.
func (s *Store) WithUnitLock(ctx context.Context, unit string, fn func(ctx context.Context) error) error {
	if unit == "" {
		return domain.ErrUnitRequired
	}
	mu := s.lockFor(unit)
	for !mu.TryLock() {
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %s", domain.ErrUnitLockBusy, unit)
		case <-time.After(lockRetryInterval):
		}
	}
	defer mu.Unlock()
	return fn(ctx)
}

func (s *Store) lockFor(unit string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	mu, ok := s.locks[unit]
	if !ok {
		mu = &sync.Mutex{}
		s.locks[unit] = mu
	}
	return mu
}

func (s *Store) load(prefix, unit string) ([]domain.Segment, error) {
	if unit == "" {
		return nil, domain.ErrUnitRequired
	}
	var segs []domain.Segment
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(prefix + unit))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &segs)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load %s%s: %w", prefix, unit, err)
	}
	return segs, nil
}

func (s *Store) save(prefix, unit string, segs []domain.Segment) error {
	if unit == "" {
		return domain.ErrUnitRequired
	}
	if segs == nil {
		segs = []domain.Segment{}
	}
	payload, err := json.Marshal(segs)
	if err != nil {
		return fmt.Errorf("%w: encode %s%s: %v", domain.ErrStoreWrite, prefix, unit, err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(prefix+unit), payload)
	})
	if err != nil {
		return fmt.Errorf("%w: %s%s: %v", domain.ErrStoreWrite, prefix, unit, err)
	}
	return nil
}
