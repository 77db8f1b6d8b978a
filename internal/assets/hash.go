package assets

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// ComputeHash fingerprints a file's contents for dedup purposes, choosing
// a full SHA-256 for files at or below PartialHashThreshold and a partial
// hash (first+middle+last PartialChunkSize chunks) above it. The partial
// scheme avoids reading entire multi-gigabyte recordings on every watcher
// pass but is not suffix-safe: two files that differ only outside the
// sampled chunks hash identically. DESIGN.md records this as an accepted,
// documented tradeoff rather than a silent one.
func ComputeHash(path string) (hash string, kind HashKind, err error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", "", fmt.Errorf("stat %s: %w", path, err)
	}

	if info.Size() <= PartialHashThreshold {
		h, err := fullHash(path)
		return h, HashFull, err
	}
	h, err := partialHash(path, info.Size())
	return h, HashPartial, err
}

func fullHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// partialHash samples the first, middle, and last PartialChunkSize bytes of
// the file along with its total size, so two files of different lengths
// never collide even if their sampled bytes happen to match.
func partialHash(path string, size int64) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	fmt.Fprintf(h, "%d:", size)

	chunkAt := func(offset int64) error {
		buf := make([]byte, PartialChunkSize)
		n, err := f.ReadAt(buf, offset)
		if err != nil && err != io.EOF {
			return err
		}
		h.Write(buf[:n])
		return nil
	}

	if err := chunkAt(0); err != nil {
		return "", err
	}
	mid := size/2 - PartialChunkSize/2
	if mid < 0 {
		mid = 0
	}
	if err := chunkAt(mid); err != nil {
		return "", err
	}
	last := size - PartialChunkSize
	if last < 0 {
		last = 0
	}
	if err := chunkAt(last); err != nil {
		return "", err
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
