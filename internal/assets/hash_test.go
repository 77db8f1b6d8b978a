package assets

import (
	"os"
	"path/filepath"
	"testing"
)

func TestComputeHashSmallFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clip.mp4")
	if err := os.WriteFile(path, []byte("hello world"), 0o644); err != nil {
		t.Fatal(err)
	}

	hash, kind, err := ComputeHash(path)
	if err != nil {
		t.Fatalf("ComputeHash: %v", err)
	}
	if kind != HashFull {
		t.Errorf("kind = %s, want %s", kind, HashFull)
	}
	if hash == "" {
		t.Error("expected non-empty hash")
	}

	hash2, _, err := ComputeHash(path)
	if err != nil {
		t.Fatalf("ComputeHash (second run): %v", err)
	}
	if hash != hash2 {
		t.Errorf("hash not stable across runs: %s != %s", hash, hash2)
	}
}

func TestComputeHashLargeFileUsesPartial(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "recording.mkv")

	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	size := int64(PartialHashThreshold + PartialChunkSize*4)
	if err := f.Truncate(size); err != nil {
		t.Fatal(err)
	}
	f.Close()

	hash, kind, err := ComputeHash(path)
	if err != nil {
		t.Fatalf("ComputeHash: %v", err)
	}
	if kind != HashPartial {
		t.Errorf("kind = %s, want %s", kind, HashPartial)
	}
	if hash == "" {
		t.Error("expected non-empty hash")
	}
}

func TestFingerprintPathDeterministic(t *testing.T) {
	a := FingerprintPath("/media/recordings/clip.mp4")
	b := FingerprintPath("/media/recordings/clip.mp4")
	if a != b {
		t.Errorf("fingerprint not deterministic: %s != %s", a, b)
	}
	if len(a) != 16 {
		t.Errorf("fingerprint length = %d, want 16", len(a))
	}

	c := FingerprintPath("/media/recordings/other.mp4")
	if a == c {
		t.Error("different paths produced the same fingerprint")
	}
}

func TestFingerprintEventIdempotent(t *testing.T) {
	id1 := FingerprintEvent("asset1", EventMoveCompleted, "job1")
	id2 := FingerprintEvent("asset1", EventMoveCompleted, "job1")
	if id1 != id2 {
		t.Errorf("event fingerprint not idempotent: %s != %s", id1, id2)
	}

	id3 := FingerprintEvent("asset1", EventCopyCompleted, "job1")
	if id1 == id3 {
		t.Error("different event types produced the same fingerprint")
	}
}
