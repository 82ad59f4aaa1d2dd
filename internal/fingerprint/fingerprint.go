// Package fingerprint computes the stable content hash cepler uses to tell
// whether a working-tree file has changed.
package fingerprint

import (
	"encoding/hex"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/zeebo/blake3"

	"github.com/starkandwayne/cepler/pkg/model"
)

// Hash returns the BLAKE3 content fingerprint of path, or nil if the file
// does not exist on disk (the caller treats that as a logically removed
// file, per spec.md §3).
func Hash(path string) (*model.FileHash, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "opening %s for fingerprint", path)
	}
	defer f.Close()

	h := blake3.New()
	if _, err := io.Copy(h, f); err != nil {
		return nil, errors.Wrapf(err, "hashing %s", path)
	}

	sum := model.FileHash(hex.EncodeToString(h.Sum(nil)))
	return &sum, nil
}

// HashBytes returns the BLAKE3 content fingerprint of content directly,
// for callers that source working-tree bytes through a Capability rather
// than the local filesystem (so the same logic works against FakeRepo).
func HashBytes(content []byte) *model.FileHash {
	h := blake3.New()
	h.Write(content)
	sum := model.FileHash(hex.EncodeToString(h.Sum(nil)))
	return &sum
}
