package rules

import (
	"os"
	"path/filepath"
	"testing"
)

func TestExpandUsesActiveNotOriginal(t *testing.T) {
	dir := t.TempDir()
	remuxed := filepath.Join(dir, "clip.mov")
	if err := os.WriteFile(remuxed, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	ctx := NewContext(filepath.Join(dir, "clip.mkv"), nil)
	ctx.UpdateActive(NewArtifact(remuxed))

	got := Expand("{filename}", ctx)
	if got != "clip.mov" {
		t.Fatalf("expected clip.mov, got %s", got)
	}
	if ext := Expand("{ext}", ctx); ext != ".mov" {
		t.Fatalf("expected .mov, got %s", ext)
	}
}

func TestResolveTargetAppendsFilenameForDirectory(t *testing.T) {
	dir := t.TempDir()
	editDir := filepath.Join(dir, "edit")
	if err := os.Mkdir(editDir, 0o755); err != nil {
		t.Fatal(err)
	}
	src := filepath.Join(dir, "clip.mov")
	if err := os.WriteFile(src, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	ctx := NewContext(src, nil)
	got := ResolveTarget(editDir, ctx)
	want := filepath.Join(editDir, "clip.mov")
	if got != want {
		t.Fatalf("got %s, want %s", got, want)
	}
}

func TestResolveTargetTrailingSlashMeansDirectory(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "clip.mov")
	if err := os.WriteFile(src, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	ctx := NewContext(src, nil)
	got := ResolveTarget("/editing/2025/01/", ctx)
	want := "/editing/2025/01/clip.mov"
	if got != want {
		t.Fatalf("got %s, want %s", got, want)
	}
}

func TestUpdateActiveHistorySkipsNoopPath(t *testing.T) {
	ctx := NewContext("/rec/clip.mkv", nil)
	ctx.UpdateActive(NewArtifact("/rec/clip.mkv"))
	if len(ctx.History) != 0 {
		t.Fatalf("expected no history entry for same-path update, got %d", len(ctx.History))
	}
	ctx.UpdateActive(NewArtifact("/rec/clip.mov"))
	if len(ctx.History) != 1 {
		t.Fatalf("expected one history entry, got %d", len(ctx.History))
	}
}
