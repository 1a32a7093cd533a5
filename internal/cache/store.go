// Package cache provides the build cache for compiled snippets.
//
// Every entry file gets one slot directory named after the fingerprint of its
// absolute path. A slot holds:
//
//  1. the last successfully built executable (<name>.bin)
//  2. the content fingerprint that produced it, as plain text (<name>.md5)
//  3. the entry path, so garbage collection can find orphaned slots (<name>.loc)
//  4. in debug mode, the generated translation unit (<name>.cc)
//
// Identical content at two different paths deliberately lands in two slots.
// Slot metadata is mirrored into a BoltDB index at the cache root for listing
// and cleanup; lookups never depend on it.
package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/Norgate-AV/scracc/internal/codes"
)

// Status is the outcome of a cache lookup
type Status int

const (
	// Missing means the slot has no fingerprint record
	Missing Status = iota
	// Stale means the record does not match, cannot be read, or the binary is gone
	Stale
	// Fresh means the cached binary was built from the current content
	Fresh
)

func (s Status) String() string {
	switch s {
	case Fresh:
		return "fresh"
	case Stale:
		return "stale"
	default:
		return "missing"
	}
}

// Store manages cache slots under a root directory
type Store struct {
	fs        afero.Fs
	root      string
	indexPath string
	locker    Locker
	logger    zerolog.Logger
	now       func() time.Time
}

// Option configures a Store
type Option func(*Store)

// WithIndex mirrors slot metadata into the BoltDB file at path
func WithIndex(path string) Option {
	return func(s *Store) {
		s.indexPath = path
	}
}

// WithLocker sets the cross-process slot locker
func WithLocker(l Locker) Option {
	return func(s *Store) {
		s.locker = l
	}
}

// WithLogger sets the logger used for non-fatal cache warnings
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithNowFunc overrides the clock, used in tests
func WithNowFunc(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore creates a store rooted at root. Nothing is written until a commit.
func NewStore(fs afero.Fs, root string, options ...Option) *Store {
	s := &Store{
		fs:     fs,
		root:   root,
		locker: nopLocker{},
		logger: zerolog.Nop(),
		now:    time.Now,
	}

	for _, option := range options {
		option(s)
	}

	return s
}

// Root returns the cache root directory
func (s *Store) Root() string {
	return s.root
}

// Slot returns the slot layout for an entry file
func (s *Store) Slot(id Identity, entry string) Slot {
	return NewSlot(s.root, id, entry)
}

// Lock holds the slot against concurrent scracc processes
func (s *Store) Lock(slot Slot) (func() error, error) {
	unlock, err := s.locker.Lock(filepath.Base(slot.Dir))
	if err != nil {
		return nil, codes.IO("cannot lock", slot.Dir, err)
	}

	return unlock, nil
}

// Lookup compares the slot's fingerprint record with the current content.
// It never writes, and read failures degrade to Stale instead of erroring.
func (s *Store) Lookup(slot Slot, id Identity) Status {
	data, err := afero.ReadFile(s.fs, slot.Record)
	if err != nil {
		if os.IsNotExist(err) {
			return Missing
		}

		s.logger.Debug().Err(err).Str("record", slot.Record).Msg("unreadable fingerprint record")
		return Stale
	}

	if strings.TrimSpace(string(data)) != id.Content {
		return Stale
	}

	if _, err := s.fs.Stat(slot.Binary); err != nil {
		return Stale
	}

	return Fresh
}

// CommitRequest describes a successful build to be stored in a slot
type CommitRequest struct {
	// Built is the compiler output; it must live in the slot directory
	Built string

	// Entry is the absolute path of the entry snippet
	Entry string

	// Debug marks a debug build whose generated source stays in the slot
	Debug bool
}

// Commit moves a freshly built binary into place and records its fingerprint.
// The old record is removed before the binary is replaced and the new record is
// written last, so an interrupted commit leaves at worst a Missing slot.
func (s *Store) Commit(slot Slot, id Identity, req CommitRequest) error {
	if filepath.Dir(req.Built) != slot.Dir {
		return codes.IO("binary must be built inside the slot", req.Built, nil)
	}

	if err := s.fs.Remove(slot.Record); err != nil && !os.IsNotExist(err) {
		return codes.IO("cannot invalidate record", slot.Record, err)
	}

	if err := s.fs.Rename(req.Built, slot.Binary); err != nil {
		return codes.IO("cannot store binary", slot.Binary, err)
	}

	if err := s.writeAtomic(slot.Location, []byte(req.Entry)); err != nil {
		return err
	}

	if err := s.writeAtomic(slot.Record, []byte(id.Content)); err != nil {
		return err
	}

	if req.Debug {
		if _, err := s.fs.Stat(slot.Source); err != nil {
			s.logger.Warn().Err(err).Str("source", slot.Source).Msg("generated source missing from debug slot")
		}
	}

	var size int64
	if info, err := s.fs.Stat(slot.Binary); err == nil {
		size = info.Size()
	}

	s.updateIndex(func(ix *Index) error {
		return ix.Put(Entry{
			Slot:        id.Path,
			SourceFile:  req.Entry,
			Fingerprint: id.Content,
			Binary:      slot.Binary,
			Size:        size,
			Debug:       req.Debug,
			BuiltAt:     s.now(),
		})
	})

	return nil
}

// Evict removes the slot directory and its index entry
func (s *Store) Evict(slot Slot) error {
	if err := s.fs.RemoveAll(slot.Dir); err != nil {
		return codes.IO("cannot remove cache slot", slot.Dir, err)
	}

	s.updateIndex(func(ix *Index) error {
		return ix.Delete(filepath.Base(slot.Dir))
	})

	return nil
}

func (s *Store) writeAtomic(path string, data []byte) error {
	tmp := path + tempSuffix
	if err := afero.WriteFile(s.fs, tmp, data, 0o644); err != nil {
		return codes.IO("cannot write", tmp, err)
	}

	if err := s.fs.Rename(tmp, path); err != nil {
		_ = s.fs.Remove(tmp)
		return codes.IO("cannot write", path, err)
	}

	return nil
}

// updateIndex runs fn against the index. Index problems never fail a build;
// they are reported as warnings, like the shared-file cache of a compile.
func (s *Store) updateIndex(fn func(ix *Index) error) {
	if err := s.withIndex(fn); err != nil {
		s.logger.Warn().Err(err).Msg("cache index not updated")
	}
}

func (s *Store) withIndex(fn func(ix *Index) error) error {
	if s.indexPath == "" {
		return nil
	}

	ix, err := OpenIndex(s.indexPath)
	if err != nil {
		return err
	}
	defer ix.Close()

	if err := fn(ix); err != nil {
		return fmt.Errorf("index update failed: %w", err)
	}

	return nil
}
