package cache

import (
	"encoding/hex"

	"github.com/spf13/afero"
	"github.com/zeebo/blake3"

	"github.com/Norgate-AV/scracc/internal/codes"
)

// Identity is the cache key of one entry snippet.
// Path selects the slot directory, Content decides whether the slot's binary is still valid.
type Identity struct {
	Content string
	Path    string
}

// Fingerprint returns the hex-encoded BLAKE3-256 digest of data.
// It is a cache key, not a security boundary.
func Fingerprint(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// FingerprintPath hashes the bytes of an absolute path. Callers must clean the
// path first so "." and ".." segments do not produce distinct slots.
func FingerprintPath(absPath string) string {
	return Fingerprint([]byte(absPath))
}

// DeriveIdentity reads the entry snippet and computes both fingerprints.
func DeriveIdentity(fs afero.Fs, absPath string) (Identity, error) {
	data, err := afero.ReadFile(fs, absPath)
	if err != nil {
		return Identity{}, codes.IO("cannot read", absPath, err)
	}

	return Identity{
		Content: Fingerprint(data),
		Path:    FingerprintPath(absPath),
	}, nil
}
