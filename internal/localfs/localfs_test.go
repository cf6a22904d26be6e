package localfs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/wikibridge/feishu-sync/internal/manifest"
)

func TestScanFiltersNonSyncedFiles(t *testing.T) {
	dir := t.TempDir()
	seed := func(rel, content string) {
		full := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatalf("mkdir for %s failed: %v", rel, err)
		}
		if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
			t.Fatalf("seed %s failed: %v", rel, err)
		}
	}
	seed("Hello.md", "# Hello")
	seed("sub/Notes.md", "# Notes")
	seed("Hello.remote.md", "# remote copy")
	seed("readme.txt", "not markdown")
	seed(".git/config.md", "inside git")
	seed("node_modules/pkg/doc.md", "inside node_modules")
	seed(manifest.FileName, "{}")

	files, err := Scan(dir)
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("expected 2 synced files, got %d: %v", len(files), files)
	}
	info, ok := files["sub/Notes.md"]
	if !ok {
		t.Fatalf("expected sub/Notes.md in scan results")
	}
	if info.Hash != HashString("# Notes") {
		t.Fatalf("expected hash of content, got %s", info.Hash)
	}
	if info.RelPath != "sub/Notes.md" {
		t.Fatalf("expected slash-separated relPath, got %s", info.RelPath)
	}
}

func TestWriteFileCreatesParentsAtomically(t *testing.T) {
	dir := t.TempDir()
	full, err := WriteFile(dir, "a/b/C.md", []byte("# C"))
	if err != nil {
		t.Fatalf("write failed: %v", err)
	}
	data, err := os.ReadFile(full)
	if err != nil {
		t.Fatalf("read back failed: %v", err)
	}
	if string(data) != "# C" {
		t.Fatalf("expected written content, got %q", string(data))
	}
	entries, err := os.ReadDir(filepath.Join(dir, "a", "b"))
	if err != nil {
		t.Fatalf("read dir failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected only the target file, got %d entries", len(entries))
	}
}

func TestConflictPath(t *testing.T) {
	if got := ConflictPath("Notes/Hello.md"); got != "Notes/Hello"+ConflictSuffix {
		t.Fatalf("unexpected conflict path %s", got)
	}
}

func TestSanitizeTitle(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"Hello", "Hello"},
		{"a/b\\c", "a-b-c"},
		{`q:*?"<>|`, "q-------"},
		{"  spaced  ", "spaced"},
		{"dots...", "dots"},
		{"", ""},
		{"tab\tand\x00nul", "tabandnul"},
	}
	for _, c := range cases {
		if got := SanitizeTitle(c.in); got != c.want {
			t.Fatalf("SanitizeTitle(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestUniqueRelPathSuffixesOnCollision(t *testing.T) {
	used := map[string]bool{
		"Hello.md":   true,
		"Hello-1.md": true,
	}
	if got := UniqueRelPath("Hello", used); got != "Hello-2.md" {
		t.Fatalf("expected Hello-2.md, got %s", got)
	}
	if got := UniqueRelPath("Fresh", used); got != "Fresh.md" {
		t.Fatalf("expected Fresh.md, got %s", got)
	}
}
