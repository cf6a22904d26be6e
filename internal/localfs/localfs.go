// Package localfs enumerates and writes the Markdown files on the local side
// of a sync root.
package localfs

import (
	"crypto/sha256"
	"encoding/hex"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/wikibridge/feishu-sync/internal/manifest"
)

// ConflictSuffix marks the sibling file holding the remote copy of a
// conflicted document. Conflict copies are never part of the local file set.
const ConflictSuffix = ".remote.md"

var skippedDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
}

type FileInfo struct {
	FullPath string
	RelPath  string
	Hash     string
}

// Scan walks rootDir and returns every synced Markdown file keyed by its
// slash-separated relative path, each with a SHA-256 content digest.
func Scan(rootDir string) (map[string]FileInfo, error) {
	results := map[string]FileInfo{}
	err := filepath.WalkDir(rootDir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			if path != rootDir && skippedDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if !IsSyncedFile(d.Name()) {
			return nil
		}
		rel, err := filepath.Rel(rootDir, path)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		relSlash := filepath.ToSlash(rel)
		results[relSlash] = FileInfo{
			FullPath: path,
			RelPath:  relSlash,
			Hash:     HashBytes(data),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// IsSyncedFile reports whether a file name belongs to the local file set.
func IsSyncedFile(name string) bool {
	if name == manifest.FileName {
		return false
	}
	if strings.HasSuffix(name, ConflictSuffix) {
		return false
	}
	return strings.HasSuffix(name, ".md")
}

// ConflictPath maps a paired file path to its conflict-artifact sibling.
func ConflictPath(path string) string {
	return strings.TrimSuffix(path, ".md") + ConflictSuffix
}

// FilePath joins a slash-separated relative path onto rootDir.
func FilePath(rootDir, relPath string) string {
	return filepath.Join(rootDir, filepath.FromSlash(relPath))
}

// WriteFile writes content below rootDir, creating parent directories and
// committing via temp-then-rename.
func WriteFile(rootDir, relPath string, content []byte) (string, error) {
	fullPath := filepath.Join(rootDir, filepath.FromSlash(relPath))
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return "", err
	}
	if err := writeFileAtomic(fullPath, content, 0o644); err != nil {
		return "", err
	}
	return fullPath, nil
}

func HashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func HashString(s string) string {
	return HashBytes([]byte(s))
}

func writeFileAtomic(path string, data []byte, mode os.FileMode) error {
	dir := filepath.Dir(path)
	tmpFile, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmpFile.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()
	if _, err := tmpFile.Write(data); err != nil {
		_ = tmpFile.Close()
		return err
	}
	if err := tmpFile.Chmod(mode); err != nil {
		_ = tmpFile.Close()
		return err
	}
	if err := tmpFile.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}
	committed = true
	return nil
}
