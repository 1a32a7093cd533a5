package cache

import (
	"path/filepath"

	"github.com/google/uuid"
)

// File suffixes inside a slot directory
const (
	BinarySuffix   = ".bin"
	RecordSuffix   = ".md5" // legacy file name; holds a BLAKE3 hex digest
	LocationSuffix = ".loc"
	SourceSuffix   = ".cc"
	tempSuffix     = ".tmp"
)

// Slot is the on-disk layout of the cached build state for one entry file.
type Slot struct {
	// Dir is <cache root>/<path fingerprint>
	Dir string

	// Binary is the last successfully built executable
	Binary string

	// Record holds the content fingerprint that produced Binary
	Record string

	// Location holds the absolute entry path, read by garbage collection
	Location string

	// Source is where the generated translation unit is kept in debug mode
	Source string
}

// NewSlot lays out the slot for an entry file under root.
func NewSlot(root string, id Identity, entry string) Slot {
	dir := filepath.Join(root, id.Path)
	name := filepath.Base(entry)

	return Slot{
		Dir:      dir,
		Binary:   filepath.Join(dir, name+BinarySuffix),
		Record:   filepath.Join(dir, name+RecordSuffix),
		Location: filepath.Join(dir, name+LocationSuffix),
		Source:   filepath.Join(dir, name+SourceSuffix),
	}
}

// TempBinary returns a unique path next to Binary for the compiler to write to.
// Commit renames it over Binary so readers never observe a partial executable.
func (s Slot) TempBinary() string {
	return s.Binary + "." + uuid.NewString() + tempSuffix
}
