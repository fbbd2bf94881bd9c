package archive

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLocalBackendUploadCopiesFile(t *testing.T) {
	srcDir := t.TempDir()
	dstDir := t.TempDir()

	srcPath := filepath.Join(srcDir, "crop.jpg")
	if err := os.WriteFile(srcPath, []byte("fake-jpeg-bytes"), 0o644); err != nil {
		t.Fatalf("write source file: %v", err)
	}

	b := NewLocalBackend(dstDir)
	if err := b.Upload(context.Background(), srcPath, "person_20260730_120000_000001_01.jpg"); err != nil {
		t.Fatalf("Upload() error = %v", err)
	}

	got, err := os.ReadFile(filepath.Join(dstDir, "person_20260730_120000_000001_01.jpg"))
	if err != nil {
		t.Fatalf("read archived file: %v", err)
	}
	if string(got) != "fake-jpeg-bytes" {
		t.Fatalf("archived content = %q, want %q", got, "fake-jpeg-bytes")
	}
}

func TestLocalBackendUploadNestedKeyCreatesDirs(t *testing.T) {
	srcDir := t.TempDir()
	dstDir := t.TempDir()

	srcPath := filepath.Join(srcDir, "crop.jpg")
	os.WriteFile(srcPath, []byte("x"), 0o644)

	b := NewLocalBackend(dstDir)
	if err := b.Upload(context.Background(), srcPath, "cam-1/2026/07/30/crop.jpg"); err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dstDir, "cam-1/2026/07/30/crop.jpg")); err != nil {
		t.Fatalf("expected nested archive file: %v", err)
	}
}

func TestContainedPathRejectsTraversal(t *testing.T) {
	base := t.TempDir()
	_, err := containedPath(base, "../../etc/passwd")
	if err == nil {
		t.Fatal("expected error for path traversal key, got nil")
	}
	if !strings.Contains(err.Error(), "traversal") {
		t.Fatalf("error = %v, want traversal error", err)
	}
}

func TestContainedPathAllowsKeyWithinBase(t *testing.T) {
	base := t.TempDir()
	got, err := containedPath(base, "sub/dir/file.jpg")
	if err != nil {
		t.Fatalf("containedPath() error = %v", err)
	}
	if !strings.HasPrefix(got, base) {
		t.Fatalf("resolved path %q not under base %q", got, base)
	}
}
