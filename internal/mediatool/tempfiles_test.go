package mediatool

import (
	"os"
	"path/filepath"
	"testing"
)

func TestGetTempPathPreservesExtension(t *testing.T) {
	got := GetTempPath("/cache", "job123", "/rec/clip.mkv", "")
	want := filepath.Join("/cache", "job123.mkv")
	if got != want {
		t.Fatalf("got %s, want %s", got, want)
	}
}

func TestCleanupTempFilesRemovesMatches(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "job1.mkv")
	b := filepath.Join(dir, "job1.part")
	other := filepath.Join(dir, "job2.mkv")
	for _, p := range []string{a, b, other} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	CleanupTempFiles(dir, "job1")

	if _, err := os.Stat(a); !os.IsNotExist(err) {
		t.Fatal("expected job1.mkv removed")
	}
	if _, err := os.Stat(b); !os.IsNotExist(err) {
		t.Fatal("expected job1.part removed")
	}
	if _, err := os.Stat(other); err != nil {
		t.Fatal("expected job2.mkv left alone")
	}
}
