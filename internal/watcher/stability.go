package watcher

import (
	"os"
	"path/filepath"
	"time"
)

// walkDirs invokes fn for root and every directory beneath it, skipping
// paths it can't stat rather than aborting the whole walk.
func walkDirs(root string, fn func(dir string)) {
	_ = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			fn(path)
		}
		return nil
	})
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// checkSizeStable samples a file's size twice, one second apart, matching
// a quiet-period confirmation: a recording
// still being written grows between samples, while a finished file's size
// holds steady. ok is false if the file could not be stat'd (removed,
// permission error) at either sample.
func checkSizeStable(path string) (stable bool, size int64, ok bool) {
	info1, err := os.Stat(path)
	if err != nil {
		return false, 0, false
	}
	size1 := info1.Size()

	time.Sleep(1 * time.Second)

	info2, err := os.Stat(path)
	if err != nil {
		return false, 0, false
	}
	size2 := info2.Size()

	return size1 == size2, size2, true
}
