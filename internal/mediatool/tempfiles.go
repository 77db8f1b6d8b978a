package mediatool

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mscrnt/streamops-go/internal/logger"
)

// GetTempPath builds a scratch path for jobID under cacheDir, preserving
// the original extension unless overridden, per the filesystem layout's
// "/data/cache/<job_id>*" scratch convention.
func GetTempPath(cacheDir, jobID, sourcePath, ext string) string {
	if ext == "" {
		ext = filepath.Ext(sourcePath)
	} else if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return filepath.Join(cacheDir, fmt.Sprintf("%s%s", jobID, ext))
}

// CleanupTempFiles removes every scratch file under cacheDir belonging to
// jobID, logging (but not failing on) removal errors — the proxy and
// transcode handlers call this when their encode fails.
func CleanupTempFiles(cacheDir, jobID string) {
	matches, err := filepath.Glob(filepath.Join(cacheDir, jobID+"*"))
	if err != nil {
		return
	}
	for _, m := range matches {
		if err := os.Remove(m); err != nil && !os.IsNotExist(err) {
			logger.Warn("mediatool: failed to clean up temp file", "path", m, "error", err)
		}
	}
}

// EnsureCacheDir creates the cache directory if it doesn't already exist.
func EnsureCacheDir(cacheDir string) error {
	return os.MkdirAll(cacheDir, 0o755)
}
