package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
)

// GCReport summarizes a garbage collection pass
type GCReport struct {
	// Removed lists the evicted slot directories
	Removed []string

	// Kept counts slots whose entry file still exists
	Kept int

	// Busy counts slots skipped because another process held them
	Busy int

	// TempFiles counts leftover partial binaries that were deleted
	TempFiles int
}

// List returns the indexed slots, refreshing sizes from disk
func (s *Store) List() ([]Entry, error) {
	var entries []Entry

	err := s.withIndex(func(ix *Index) error {
		var err error
		entries, err = ix.List()
		return err
	})
	if err != nil {
		return nil, err
	}

	for i := range entries {
		if size, err := SlotSize(s.fs, filepath.Join(s.root, entries[i].Slot)); err == nil {
			entries[i].Size = size
		}
	}

	sort.Slice(entries, func(a, b int) bool {
		return entries[a].BuiltAt.After(entries[b].BuiltAt)
	})

	return entries, nil
}

// GarbageCollect evicts every slot whose entry file no longer exists, or whose
// location record is missing. Slots locked by a running build are left alone.
func (s *Store) GarbageCollect() (GCReport, error) {
	var report GCReport

	dirs, err := s.slotDirs()
	if err != nil {
		return report, err
	}

	for _, dir := range dirs {
		unlock, ok, err := s.locker.TryLock(filepath.Base(dir))
		if err != nil {
			return report, err
		}

		if !ok {
			report.Busy++
			continue
		}

		removed, err := s.collectSlot(dir, &report)
		if err == nil && removed {
			err = s.locker.Remove(filepath.Base(dir))
		}
		_ = unlock()
		if err != nil {
			return report, err
		}

		if removed {
			report.Removed = append(report.Removed, dir)
		} else {
			report.Kept++
		}
	}

	if err := s.removeOrphanLocks(); err != nil {
		return report, err
	}

	return report, s.pruneIndex()
}

// pruneIndex drops index entries whose slot directory has gone
func (s *Store) pruneIndex() error {
	return s.withIndex(func(ix *Index) error {
		entries, err := ix.List()
		if err != nil {
			return err
		}

		for _, e := range entries {
			if exists, _ := afero.DirExists(s.fs, filepath.Join(s.root, e.Slot)); !exists {
				if err := ix.Delete(e.Slot); err != nil {
					return err
				}
			}
		}

		return nil
	})
}

// removeOrphanLocks deletes lock files left by slots that no longer exist,
// such as no-cache runs. Locks held by a running build are kept.
func (s *Store) removeOrphanLocks() error {
	entries, err := afero.ReadDir(s.fs, s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read cache directory: %w", err)
	}

	for _, entry := range entries {
		slot, isLock := strings.CutSuffix(entry.Name(), lockSuffix)
		if entry.IsDir() || !isLock || !isFingerprint(slot) {
			continue
		}

		if exists, _ := afero.DirExists(s.fs, filepath.Join(s.root, slot)); exists {
			continue
		}

		unlock, ok, err := s.locker.TryLock(slot)
		if err != nil {
			return err
		}

		if !ok {
			continue
		}

		err = s.locker.Remove(slot)
		_ = unlock()
		if err != nil {
			return err
		}
	}

	return nil
}

func (s *Store) collectSlot(dir string, report *GCReport) (bool, error) {
	entry, ok := s.slotLocation(dir)
	if ok {
		if _, err := s.fs.Stat(entry); err == nil {
			n, err := removeTempOutputs(s.fs, dir)
			report.TempFiles += n
			return false, err
		}
	}

	slot := Slot{Dir: dir}
	if err := s.Evict(slot); err != nil {
		return false, err
	}

	s.logger.Debug().Str("slot", dir).Str("entry", entry).Msg("evicted orphaned slot")
	return true, nil
}

// slotLocation reads the entry path recorded in a slot's .loc file
func (s *Store) slotLocation(dir string) (string, bool) {
	outputs, err := CollectOutputs(s.fs, dir)
	if err != nil {
		return "", false
	}

	for _, output := range outputs {
		if !strings.HasSuffix(output.Name, LocationSuffix) {
			continue
		}

		data, err := afero.ReadFile(s.fs, filepath.Join(dir, output.Name))
		if err != nil {
			return "", false
		}

		loc := strings.TrimSpace(string(data))
		return loc, loc != ""
	}

	return "", false
}

// Clear evicts every slot and its lock file. Slots locked by a running build
// are left alone.
func (s *Store) Clear() (int, error) {
	dirs, err := s.slotDirs()
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, dir := range dirs {
		slot := filepath.Base(dir)

		unlock, ok, err := s.locker.TryLock(slot)
		if err != nil {
			return removed, err
		}

		if !ok {
			s.logger.Warn().Str("slot", dir).Msg("slot in use, not cleared")
			continue
		}

		err = s.fs.RemoveAll(dir)
		if err == nil {
			err = s.locker.Remove(slot)
		}
		_ = unlock()
		if err != nil {
			return removed, fmt.Errorf("failed to remove %s: %w", dir, err)
		}

		removed++
	}

	if err := s.removeOrphanLocks(); err != nil {
		return removed, err
	}

	return removed, s.pruneIndex()
}

// slotDirs lists the slot directories under the cache root
func (s *Store) slotDirs() ([]string, error) {
	entries, err := afero.ReadDir(s.fs, s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read cache directory: %w", err)
	}

	var dirs []string
	for _, entry := range entries {
		if entry.IsDir() && isFingerprint(entry.Name()) {
			dirs = append(dirs, filepath.Join(s.root, entry.Name()))
		}
	}

	return dirs, nil
}

func isFingerprint(name string) bool {
	if len(name) != 64 {
		return false
	}

	for _, r := range name {
		if !strings.ContainsRune("0123456789abcdef", r) {
			return false
		}
	}

	return true
}
