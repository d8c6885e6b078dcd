package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewMedia_CreatesTree(t *testing.T) {
	root := t.TempDir()
	m, err := NewMedia(root)
	if err != nil {
		t.Fatalf("NewMedia: %v", err)
	}

	for _, dir := range []string{DirImages, DirSketches, DirAudio, DirExports} {
		info, err := os.Stat(m.Dir(dir))
		if err != nil || !info.IsDir() {
			t.Errorf("subdir %s missing: %v", dir, err)
		}
	}

	// Idempotent on an existing tree.
	if _, err := NewMedia(root); err != nil {
		t.Errorf("second NewMedia: %v", err)
	}
}

func TestNewMedia_EmptyRoot(t *testing.T) {
	if _, err := NewMedia(""); err == nil {
		t.Fatal("expected error for empty root")
	}
}

func TestPlace_MovesWithInferredExt(t *testing.T) {
	m, err := NewMedia(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	src := filepath.Join(t.TempDir(), "recording.m4a")
	if err := os.WriteFile(src, []byte("audio"), 0644); err != nil {
		t.Fatal(err)
	}

	ref, err := m.Place(DirAudio, src, "")
	if err != nil {
		t.Fatalf("Place: %v", err)
	}
	if !strings.HasPrefix(ref, DirAudio+string(filepath.Separator)) {
		t.Errorf("ref = %q, want under %s/", ref, DirAudio)
	}
	if !strings.HasSuffix(ref, ".m4a") {
		t.Errorf("ref = %q, want .m4a extension from source", ref)
	}

	data, err := os.ReadFile(m.Resolve(ref))
	if err != nil {
		t.Fatalf("read placed file: %v", err)
	}
	if string(data) != "audio" {
		t.Errorf("content = %q", data)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Error("source should be gone after move")
	}
}

func TestPlace_ExtHintWins(t *testing.T) {
	m, err := NewMedia(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	src := filepath.Join(t.TempDir(), "capture.tmp")
	if err := os.WriteFile(src, []byte("png bytes"), 0644); err != nil {
		t.Fatal(err)
	}

	ref, err := m.Place(DirImages, src, "png") // bare hint gets a dot
	if err != nil {
		t.Fatalf("Place: %v", err)
	}
	if !strings.HasSuffix(ref, ".png") {
		t.Errorf("ref = %q, want hinted .png extension", ref)
	}
}

func TestPlace_UniqueNames(t *testing.T) {
	m, err := NewMedia(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	srcDir := t.TempDir()
	seen := map[string]bool{}
	for i := 0; i < 5; i++ {
		src := filepath.Join(srcDir, "f.m4a")
		if err := os.WriteFile(src, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
		ref, err := m.Place(DirAudio, src, "")
		if err != nil {
			t.Fatalf("Place: %v", err)
		}
		if seen[ref] {
			t.Fatalf("duplicate ref %q", ref)
		}
		seen[ref] = true
	}
}

func TestPlace_MissingSource(t *testing.T) {
	m, err := NewMedia(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.Place(DirAudio, "/no/such/file.m4a", ""); err == nil {
		t.Fatal("expected error for missing source")
	}
}

func TestRemove(t *testing.T) {
	m, err := NewMedia(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	src := filepath.Join(t.TempDir(), "note.m4a")
	if err := os.WriteFile(src, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	ref, err := m.Place(DirAudio, src, "")
	if err != nil {
		t.Fatal(err)
	}

	if err := m.Remove(ref); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := os.Stat(m.Resolve(ref)); !os.IsNotExist(err) {
		t.Error("file still present after Remove")
	}

	// Second remove is a no-op.
	if err := m.Remove(ref); err != nil {
		t.Errorf("Remove of missing ref: %v", err)
	}
}

func TestMoveFile_ReplacesExisting(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")
	if err := os.WriteFile(src, []byte("new"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(dst, []byte("old"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := moveFile(src, dst); err != nil {
		t.Fatalf("moveFile: %v", err)
	}
	data, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "new" {
		t.Errorf("dst = %q, want replaced content", data)
	}
}
