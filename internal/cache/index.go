package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

const (
	// IndexFile is the BoltDB file kept at the cache root
	IndexFile = "index.db"

	// bucketName is the BoltDB bucket name for slot entries
	bucketName = "slots"
)

// Entry describes one cache slot in the index
type Entry struct {
	// Slot is the path fingerprint, i.e. the slot directory name
	Slot string `cbor:"slot"`

	// SourceFile is the absolute path to the entry snippet
	SourceFile string `cbor:"source_file"`

	// Fingerprint is the content fingerprint of the last successful build
	Fingerprint string `cbor:"fingerprint"`

	// Binary is the absolute path of the cached executable
	Binary string `cbor:"binary"`

	// Size of the executable in bytes
	Size int64 `cbor:"size"`

	// Debug reports whether the binary carries debug symbols
	Debug bool `cbor:"debug"`

	// BuiltAt is when the binary was committed
	BuiltAt time.Time `cbor:"built_at"`
}

// Index records slot metadata in BoltDB. The plain-text record inside each slot
// stays authoritative for lookups; the index only serves listing and cleanup.
type Index struct {
	db *bbolt.DB
}

// OpenIndex opens (creating if needed) the index database at path.
// BoltDB holds a file lock while open, so callers keep it open only briefly.
func OpenIndex(path string) (*Index, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open cache index: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create index bucket: %w", err)
	}

	return &Index{db: db}, nil
}

// Close closes the index database
func (i *Index) Close() error {
	if i.db != nil {
		return i.db.Close()
	}

	return nil
}

// Put stores or replaces the entry for e.Slot
func (i *Index) Put(e Entry) error {
	data, err := marshalEntry(e)
	if err != nil {
		return fmt.Errorf("failed to encode index entry: %w", err)
	}

	return i.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).Put([]byte(e.Slot), data)
	})
}

// Get returns the entry for a slot, or nil if there is none
func (i *Index) Get(slot string) (*Entry, error) {
	var entry *Entry

	err := i.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(bucketName)).Get([]byte(slot))
		if data == nil {
			return nil
		}

		e, err := unmarshalEntry(data)
		if err != nil {
			return fmt.Errorf("corrupt index entry %s: %w", slot, err)
		}

		entry = &e
		return nil
	})

	return entry, err
}

// Delete removes the entry for a slot. Deleting a missing slot is not an error.
func (i *Index) Delete(slot string) error {
	return i.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).Delete([]byte(slot))
	})
}

// List returns all entries ordered by slot. Undecodable entries are skipped.
func (i *Index) List() ([]Entry, error) {
	var entries []Entry

	err := i.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).ForEach(func(_, data []byte) error {
			e, err := unmarshalEntry(data)
			if err != nil {
				return nil
			}

			entries = append(entries, e)
			return nil
		})
	})

	return entries, err
}

// Clear removes all entries
func (i *Index) Clear() error {
	return i.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket([]byte(bucketName)); err != nil {
			return err
		}

		_, err := tx.CreateBucket([]byte(bucketName))
		return err
	})
}
