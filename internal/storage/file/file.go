// Package file persists one unit's raw and published segment lists as
// JSON files under <root>/units/<unit>/, the layout calendar exporters
// and the admin tooling already read. Writes are atomic (temp file +
// rename) and mutations are serialized per unit with an advisory flock,
// so the HTTP server and a cron-invoked sweep never interleave a
// load-modify-save cycle.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"github.com/viljemd-hub/channel-manager-sub000/internal/domain"
)

const (
	rawFile       = "occupancy.json"
	publishedFile = "occupancy_merged.json"
	lockFile      = ".unit.lock"

	lockRetryInterval = 25 * time.Millisecond
)

type Store struct {
	root string
}

// NewStore uses dir as the data root. The units directory is created on
// first use, not here, so a read-only consumer can point at a snapshot.
func NewStore(dir string) *Store {
	return &Store{root: dir}
}

func (s *Store) Load(ctx context.Context, unit string) ([]domain.Segment, error) {
	return s.loadFile(unit, rawFile)
}

func (s *Store) Save(ctx context.Context, unit string, segs []domain.Segment) error {
	return s.saveFile(unit, rawFile, segs)
}

func (s *Store) LoadPublished(ctx context.Context, unit string) ([]domain.Segment, error) {
	return s.loadFile(unit, publishedFile)
}

func (s *Store) SavePublished(ctx context.Context, unit string, segs []domain.Segment) error {
	return s.saveFile(unit, publishedFile, segs)
}

// Units lists every unit directory under the data root. A missing root
// means no units yet, not an error.
func (s *Store) Units(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, "units"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list units: %w", err)
	}
	units := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			units = append(units, e.Name())
		}
	}
	sort.Strings(units)
	return units, nil
}

// WithUnitLock runs fn while holding an exclusive advisory lock on the
// unit's lock file. The lock is taken non-blocking and retried until the
// context expires, so a stuck writer surfaces as ErrUnitLockBusy instead
// of a hang.
func (s *Store) WithUnitLock(ctx context.Context, unit string, fn func(ctx context.Context) error) error {
	dir, err := s.unitDir(unit)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o775); err != nil {
		return fmt.Errorf("create unit dir: %w", err)
	}

	f, err := os.OpenFile(filepath.Join(dir, lockFile), os.O_CREATE|os.O_RDWR, 0o664)
	if err != nil {
		return fmt.Errorf("open unit lock: %w", err)
	}
	defer f.Close()

	for {
		err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
		if err == nil {
			break
		}
		if !errors.Is(err, unix.EWOULDBLOCK) {
			return fmt.Errorf("flock unit %s: %w", unit, err)
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %s", domain.ErrUnitLockBusy, unit)
		case <-time.After(lockRetryInterval):
		}
	}
	defer func() {
		_ = unix.Flock(int(f.Fd()), unix.LOCK_UN)
	}()

	return fn(ctx)
}

func (s *Store) loadFile(unit, name string) ([]domain.Segment, error) {
	dir, err := s.unitDir(unit)
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s for unit %s: %w", name, unit, err)
	}
	var segs []domain.Segment
	if err := json.Unmarshal(raw, &segs); err != nil {
		return nil, fmt.Errorf("decode %s for unit %s: %w", name, unit, err)
	}
	return segs, nil
}

// saveFile writes atomically: marshal to a temp file in the same
// directory, fsync, then rename over the target. A failed write leaves
// the previous durable state untouched.
func (s *Store) saveFile(unit, name string, segs []domain.Segment) error {
	dir, err := s.unitDir(unit)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o775); err != nil {
		return storeWriteErr(unit, name, err)
	}

	if segs == nil {
		segs = []domain.Segment{}
	}
	payload, err := json.MarshalIndent(segs, "", "  ")
	if err != nil {
		return storeWriteErr(unit, name, err)
	}
	payload = append(payload, '\n')

	tmp, err := os.CreateTemp(dir, "."+name+".tmp-*")
	if err != nil {
		return storeWriteErr(unit, name, err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}

	if _, err := tmp.Write(payload); err != nil {
		cleanup()
		return storeWriteErr(unit, name, err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return storeWriteErr(unit, name, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return storeWriteErr(unit, name, err)
	}
	if err := os.Chmod(tmpName, 0o664); err != nil {
		_ = os.Remove(tmpName)
		return storeWriteErr(unit, name, err)
	}
	if err := os.Rename(tmpName, filepath.Join(dir, name)); err != nil {
		_ = os.Remove(tmpName)
		return storeWriteErr(unit, name, err)
	}
	return nil
}

func (s *Store) unitDir(unit string) (string, error) {
	if unit == "" {
		return "", domain.ErrUnitRequired
	}
	if strings.ContainsAny(unit, "/\\") || unit == "." || unit == ".." {
		return "", fmt.Errorf("%w: invalid unit name %q", domain.ErrUnitRequired, unit)
	}
	return filepath.Join(s.root, "units", unit), nil
}

func storeWriteErr(unit, name string, cause error) error {
	return fmt.Errorf("%w: %s for unit %s: %v", domain.ErrStoreWrite, name, unit, cause)
}
