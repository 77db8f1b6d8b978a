package watcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticResolver struct {
	roles map[string]string
}

func (s *staticResolver) WatchedRoles() (map[string]string, error) {
	return s.roles, nil
}

func newTestFsnotify(t *testing.T) (*fsnotify.Watcher, error) {
	t.Helper()
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	t.Cleanup(func() { fsw.Close() })
	return fsw, nil
}

func TestCheckSizeStableDetectsSteadyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "finished.mp4")
	require.NoError(t, os.WriteFile(path, []byte("already written"), 0o644))

	stable, size, ok := checkSizeStable(path)
	assert.True(t, ok)
	assert.True(t, stable)
	assert.EqualValues(t, len("already written"), size)
}

func TestCheckSizeStableMissingFile(t *testing.T) {
	_, _, ok := checkSizeStable(filepath.Join(t.TempDir(), "nope.mp4"))
	assert.False(t, ok)
}

func TestHasRecognizedExt(t *testing.T) {
	assert.True(t, hasRecognizedExt("/rec/clip.MP4"))
	assert.True(t, hasRecognizedExt("/rec/clip.mkv"))
	assert.False(t, hasRecognizedExt("/rec/notes.txt"))
}

func TestReconcileRolesAddsAndRemoves(t *testing.T) {
	dirA := t.TempDir()
	dirB := t.TempDir()

	resolver := &staticResolver{roles: map[string]string{"recordings": dirA}}
	w := New(resolver, 45*time.Second, 5*time.Second)

	fsw, err := newTestFsnotify(t)
	require.NoError(t, err)
	w.fsw = fsw

	w.reconcileRoles()
	w.mu.Lock()
	_, watched := w.roleDirs["recordings"]
	w.mu.Unlock()
	assert.True(t, watched)

	resolver.roles = map[string]string{"clips": dirB}
	w.reconcileRoles()

	w.mu.Lock()
	_, stillThere := w.roleDirs["recordings"]
	_, newOne := w.roleDirs["clips"]
	w.mu.Unlock()
	assert.False(t, stillThere)
	assert.True(t, newOne)
}
