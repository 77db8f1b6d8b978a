// Package watcher implements the file-stability watcher: it recursively
// watches each role's directory tree, waits out a quiet period after the
// last write, confirms the file has stopped growing with two size samples
// a second apart, and hands the stabilized path to the caller for
// indexing. Grounded on Aback231's fsnotify watcher (debounce via a
// seen map[string]time.Time, a periodic rescan goroutine, a ticker-driven
// stability check) generalized from one flat directory to per-role
// recursive trees reconciled against the role table on a timer, and from
// hash-based change detection to the two-sample size check the original
// streamops implementation used.
package watcher

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/mscrnt/streamops-go/internal/logger"
	"github.com/mscrnt/streamops-go/internal/metrics"
)

// RoleResolver reports which roles are currently configured to be watched
// and their absolute paths, mirroring the original's
// "SELECT role, abs_path FROM so_roles WHERE watch = 1".
type RoleResolver interface {
	WatchedRoles() (map[string]string, error)
}

// recognizedExts are the recording container formats the original
// implementation filters on; anything else is ignored even if it appears
// under a watched role.
var recognizedExts = map[string]bool{
	".mp4": true, ".mov": true, ".mkv": true, ".avi": true,
	".flv": true, ".ts": true, ".m2ts": true,
}

// Watcher monitors every watched role's directory tree and emits stabilized
// file paths on Files.
type Watcher struct {
	resolver     RoleResolver
	quietPeriod  time.Duration
	reconcileInt time.Duration

	Files chan StableFile

	mu       sync.Mutex
	fsw      *fsnotify.Watcher
	roleDirs map[string]string    // role -> abs path, currently watched
	pending  map[string]time.Time // path -> last-seen-event time
}

// StableFile is a path that has passed the quiet period and two-sample
// size check.
type StableFile struct {
	Path string
	Role string
	Size int64
}

// New creates a Watcher. quietPeriod matches the data model's
// watcher_quiet_period setting (default 45s); reconcileInterval is how
// often the role set is re-resolved (default 5s).
func New(resolver RoleResolver, quietPeriod, reconcileInterval time.Duration) *Watcher {
	return &Watcher{
		resolver:     resolver,
		quietPeriod:  quietPeriod,
		reconcileInt: reconcileInterval,
		Files:        make(chan StableFile, 256),
		roleDirs:     make(map[string]string),
		pending:      make(map[string]time.Time),
	}
}

// Serve implements suture.Service by delegating to Run.
func (w *Watcher) Serve(ctx context.Context) error {
	return w.Run(ctx)
}

// Run starts the watcher's event loop, role-reconciliation loop, and
// stability-check ticker. It blocks until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.fsw = fsw
	defer fsw.Close()

	w.reconcileRoles()

	go w.reconcileLoop(ctx)
	go w.stabilityLoop(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)
		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watcher error", "error", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename|fsnotify.Chmod) == 0 {
		return
	}

	// A newly created directory needs its own watch added so recordings
	// written into it are seen — fsnotify is not recursive.
	if event.Op&fsnotify.Create != 0 {
		if isDir(event.Name) {
			w.addRecursive(event.Name)
			return
		}
	}

	if !hasRecognizedExt(event.Name) {
		return
	}

	w.mu.Lock()
	w.pending[event.Name] = time.Now()
	w.mu.Unlock()
}

// reconcileLoop re-resolves the watched-role set on a timer, adding
// watches for newly-enabled roles and removing them for roles no longer
// watched — mirroring the original's per-iteration diff against
// so_roles.
func (w *Watcher) reconcileLoop(ctx context.Context) {
	ticker := time.NewTicker(w.reconcileInt)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.reconcileRoles()
		}
	}
}

func (w *Watcher) reconcileRoles() {
	roles, err := w.resolver.WatchedRoles()
	if err != nil {
		logger.Warn("failed to resolve watched roles", "error", err)
		return
	}

	w.mu.Lock()
	current := make(map[string]string, len(w.roleDirs))
	for k, v := range w.roleDirs {
		current[k] = v
	}
	w.mu.Unlock()

	for role, path := range current {
		if _, stillWatched := roles[role]; !stillWatched {
			w.removeRole(role, path)
		}
	}
	for role, path := range roles {
		if _, already := current[role]; !already {
			logger.Info("starting watch for role", "role", role, "path", path)
			w.addRecursive(path)
			w.mu.Lock()
			w.roleDirs[role] = path
			w.mu.Unlock()
		}
	}
}

func (w *Watcher) removeRole(role, path string) {
	logger.Info("stopping watch for role", "role", role, "path", path)
	_ = w.fsw.Remove(path)
	w.mu.Lock()
	delete(w.roleDirs, role)
	w.mu.Unlock()
}

// addRecursive walks root and adds an fsnotify watch on every directory
// under it, matching fsnotify's non-recursive Add semantics.
func (w *Watcher) addRecursive(root string) {
	walkDirs(root, func(dir string) {
		if err := w.fsw.Add(dir); err != nil {
			logger.Warn("failed to watch directory", "dir", dir, "error", err)
		}
	})
}

// stabilityLoop periodically checks pending files for the quiet period and
// confirms they've stopped growing before emitting them.
func (w *Watcher) stabilityLoop(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.checkPending()
		}
	}
}

func (w *Watcher) checkPending() {
	w.mu.Lock()
	due := make([]string, 0)
	now := time.Now()
	for path, last := range w.pending {
		if now.Sub(last) >= w.quietPeriod {
			due = append(due, path)
		}
	}
	w.mu.Unlock()

	for _, path := range due {
		stable, size, ok := checkSizeStable(path)
		w.mu.Lock()
		if ok && stable {
			delete(w.pending, path)
		} else if ok {
			// Still growing: reset the clock rather than emit early.
			w.pending[path] = now
		} else {
			// File vanished or became unreadable; drop it.
			delete(w.pending, path)
		}
		w.mu.Unlock()

		if ok && stable {
			w.emit(path, size)
		}
	}
}

func (w *Watcher) emit(path string, size int64) {
	role := w.roleFor(path)
	select {
	case w.Files <- StableFile{Path: path, Role: role, Size: size}:
		metrics.WatcherEvents.WithLabelValues(role).Inc()
	default:
		logger.Warn("watcher output channel full, dropping stable file", "path", path)
	}
}

func (w *Watcher) roleFor(path string) string {
	w.mu.Lock()
	defer w.mu.Unlock()
	for role, dir := range w.roleDirs {
		if strings.HasPrefix(path, dir) {
			return role
		}
	}
	return ""
}

func hasRecognizedExt(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return recognizedExts[ext]
}
