package cache

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedNowFunc() time.Time {
	return time.Date(2020, 3, 1, 0, 0, 0, 0, time.UTC)
}

// buildInto simulates a compiler run writing a binary into the slot
func buildInto(t *testing.T, fs afero.Fs, slot Slot, content string) string {
	t.Helper()

	require.NoError(t, fs.MkdirAll(slot.Dir, 0o755))
	built := slot.TempBinary()
	require.NoError(t, afero.WriteFile(fs, built, []byte(content), 0o755))

	return built
}

func TestSlotLayout(t *testing.T) {
	id := Identity{Content: "c", Path: "p"}
	slot := NewSlot("/cache", id, "/src/hello.scc")

	assert.Equal(t, filepath.Join("/cache", "p"), slot.Dir)
	assert.Equal(t, filepath.Join("/cache", "p", "hello.scc.bin"), slot.Binary)
	assert.Equal(t, filepath.Join("/cache", "p", "hello.scc.md5"), slot.Record)
	assert.Equal(t, filepath.Join("/cache", "p", "hello.scc.loc"), slot.Location)
	assert.Equal(t, filepath.Join("/cache", "p", "hello.scc.cc"), slot.Source)

	tmp1, tmp2 := slot.TempBinary(), slot.TempBinary()
	assert.NotEqual(t, tmp1, tmp2)
	assert.Equal(t, slot.Dir, filepath.Dir(tmp1))
}

func TestStore_LookupAndCommit(t *testing.T) {
	fs := afero.NewMemMapFs()
	store := NewStore(fs, "/cache")

	id := Identity{Content: Fingerprint([]byte("v1")), Path: FingerprintPath("/src/main.scc")}
	slot := store.Slot(id, "/src/main.scc")

	assert.Equal(t, Missing, store.Lookup(slot, id), "Should be missing before the first build")

	built := buildInto(t, fs, slot, "binary v1")
	require.NoError(t, store.Commit(slot, id, CommitRequest{Built: built, Entry: "/src/main.scc"}))

	assert.Equal(t, Fresh, store.Lookup(slot, id))

	data, err := afero.ReadFile(fs, slot.Binary)
	require.NoError(t, err)
	assert.Equal(t, "binary v1", string(data))

	record, err := afero.ReadFile(fs, slot.Record)
	require.NoError(t, err)
	assert.Equal(t, id.Content, string(record), "Record should be plain text")

	loc, err := afero.ReadFile(fs, slot.Location)
	require.NoError(t, err)
	assert.Equal(t, "/src/main.scc", string(loc))

	exists, err := afero.Exists(fs, built)
	require.NoError(t, err)
	assert.False(t, exists, "Temporary binary should have been renamed away")

	// Content changes make the slot stale
	changed := Identity{Content: Fingerprint([]byte("v2")), Path: id.Path}
	assert.Equal(t, Stale, store.Lookup(slot, changed))
}

func TestStore_LookupDegradesToStale(t *testing.T) {
	fs := afero.NewMemMapFs()
	store := NewStore(fs, "/cache")
	id := Identity{Content: "abc", Path: "def"}
	slot := store.Slot(id, "/src/main.scc")

	t.Run("record without binary", func(t *testing.T) {
		require.NoError(t, fs.MkdirAll(slot.Dir, 0o755))
		require.NoError(t, afero.WriteFile(fs, slot.Record, []byte("abc"), 0o644))

		assert.Equal(t, Stale, store.Lookup(slot, id))
	})

	t.Run("record with trailing newline still matches", func(t *testing.T) {
		require.NoError(t, afero.WriteFile(fs, slot.Record, []byte("abc\n"), 0o644))
		require.NoError(t, afero.WriteFile(fs, slot.Binary, []byte("bin"), 0o755))

		assert.Equal(t, Fresh, store.Lookup(slot, id))
	})

	t.Run("unreadable record", func(t *testing.T) {
		roStore := NewStore(&failingReadFs{Fs: afero.NewMemMapFs()}, "/cache")

		assert.Equal(t, Stale, roStore.Lookup(slot, id))
	})
}

// failingReadFs fails every open with a permission error
type failingReadFs struct {
	afero.Fs
}

func (f *failingReadFs) Open(name string) (afero.File, error) {
	return nil, &os.PathError{Op: "open", Path: name, Err: os.ErrPermission}
}

// failingRecordFs rejects writes of the fingerprint record
type failingRecordFs struct {
	afero.Fs
}

func (f *failingRecordFs) rejects(name string) bool {
	return strings.HasSuffix(name, RecordSuffix+tempSuffix)
}

func (f *failingRecordFs) Create(name string) (afero.File, error) {
	if f.rejects(name) {
		return nil, &os.PathError{Op: "open", Path: name, Err: os.ErrPermission}
	}

	return f.Fs.Create(name)
}

func (f *failingRecordFs) OpenFile(name string, flag int, perm os.FileMode) (afero.File, error) {
	if f.rejects(name) {
		return nil, &os.PathError{Op: "open", Path: name, Err: os.ErrPermission}
	}

	return f.Fs.OpenFile(name, flag, perm)
}

func TestStore_FailedRecordWriteNeverLooksFresh(t *testing.T) {
	mem := afero.NewMemMapFs()
	store := NewStore(mem, "/cache")

	v1 := Identity{Content: Fingerprint([]byte("v1")), Path: FingerprintPath("/src/a.scc")}
	v2 := Identity{Content: Fingerprint([]byte("v2")), Path: v1.Path}
	slot := store.Slot(v1, "/src/a.scc")

	built := buildInto(t, mem, slot, "BIN-v1")
	require.NoError(t, store.Commit(slot, v1, CommitRequest{Built: built, Entry: "/src/a.scc"}))
	require.Equal(t, Fresh, store.Lookup(slot, v1))

	broken := NewStore(&failingRecordFs{Fs: mem}, "/cache")
	built = buildInto(t, mem, slot, "BIN-v2")

	err := broken.Commit(slot, v2, CommitRequest{Built: built, Entry: "/src/a.scc"})
	require.Error(t, err)

	data, err := afero.ReadFile(mem, slot.Binary)
	require.NoError(t, err)
	assert.Equal(t, "BIN-v2", string(data))

	assert.NotEqual(t, Fresh, store.Lookup(slot, v1), "Old record must not vouch for the new binary")
	assert.NotEqual(t, Fresh, store.Lookup(slot, v2))
}

func TestStore_CommitRejectsForeignBinary(t *testing.T) {
	fs := afero.NewMemMapFs()
	store := NewStore(fs, "/cache")
	id := Identity{Content: "abc", Path: "def"}
	slot := store.Slot(id, "/src/main.scc")

	require.NoError(t, afero.WriteFile(fs, "/elsewhere/main.bin", []byte("x"), 0o755))

	err := store.Commit(slot, id, CommitRequest{Built: "/elsewhere/main.bin", Entry: "/src/main.scc"})
	assert.Error(t, err)
}

func TestStore_Evict(t *testing.T) {
	fs := afero.NewMemMapFs()
	store := NewStore(fs, "/cache")
	id := Identity{Content: "abc", Path: FingerprintPath("/src/main.scc")}
	slot := store.Slot(id, "/src/main.scc")

	built := buildInto(t, fs, slot, "bin")
	require.NoError(t, store.Commit(slot, id, CommitRequest{Built: built, Entry: "/src/main.scc"}))

	require.NoError(t, store.Evict(slot))

	exists, err := afero.DirExists(fs, slot.Dir)
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Equal(t, Missing, store.Lookup(slot, id))

	// Evicting twice is fine
	assert.NoError(t, store.Evict(slot))
}

func TestStore_CommitUpdatesIndex(t *testing.T) {
	root := t.TempDir()
	fs := afero.NewOsFs()
	store := NewStore(fs, root, WithIndex(filepath.Join(root, IndexFile)), WithNowFunc(fixedNowFunc))

	entry := filepath.Join(t.TempDir(), "main.scc")
	id := Identity{Content: Fingerprint([]byte("x")), Path: FingerprintPath(entry)}
	slot := store.Slot(id, entry)

	built := buildInto(t, fs, slot, "12345")
	require.NoError(t, store.Commit(slot, id, CommitRequest{Built: built, Entry: entry, Debug: true}))

	ix, err := OpenIndex(filepath.Join(root, IndexFile))
	require.NoError(t, err)

	got, err := ix.Get(id.Path)
	require.NoError(t, err)
	require.NoError(t, ix.Close())
	require.NotNil(t, got)

	assert.Equal(t, entry, got.SourceFile)
	assert.Equal(t, id.Content, got.Fingerprint)
	assert.Equal(t, slot.Binary, got.Binary)
	assert.Equal(t, int64(5), got.Size)
	assert.True(t, got.Debug)
	assert.True(t, fixedNowFunc().Equal(got.BuiltAt))

	require.NoError(t, store.Evict(slot))

	ix, err = OpenIndex(filepath.Join(root, IndexFile))
	require.NoError(t, err)
	defer ix.Close()

	got, err = ix.Get(id.Path)
	require.NoError(t, err)
	assert.Nil(t, got, "Evict should drop the index entry")
}

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "missing", Missing.String())
	assert.Equal(t, "stale", Stale.String())
	assert.Equal(t, "fresh", Fresh.String())
}
