package fileutil

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/minio/highwayhash"

	"github.com/kscope-dev/kscope/internal/ignore"
)

var hashKey = []byte("0123456789ABCDEF0123456789ABCDEF")

// ContentHash returns the cache key for a file's content. HighwayHash-64 is
// keyed with a fixed constant so hashes are stable across runs and machines.
func ContentHash(data []byte) string {
	h, err := highwayhash.New64(hashKey)
	if err != nil {
		// The key is a compile-time constant of the right size.
		panic(err)
	}
	h.Write(data)
	return fmt.Sprintf("%016x", h.Sum64())
}

// HashFile hashes a file's content from disk.
func HashFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return ContentHash(data), nil
}

// ScanFileHashes walks the corpus and hashes every analyzable file. include
// decides which files count; ignoreRules follow .kscopeignore semantics.
func ScanFileHashes(rootPath string, include func(path string) bool, ignoreRules []string) (map[string]string, error) {
	hashes := make(map[string]string)
	ignoreMatcher := ignore.NewMatcher(ignoreRules)

	err := filepath.Walk(rootPath, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}

		relPath, err := filepath.Rel(rootPath, path)
		if err != nil {
			return err
		}

		if ignoreMatcher.ShouldIgnore(relPath, info.IsDir()) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if info.IsDir() || !include(path) {
			return nil
		}

		hash, err := HashFile(path)
		if err != nil {
			return err
		}
		hashes[relPath] = hash

		return nil
	})

	return hashes, err
}
