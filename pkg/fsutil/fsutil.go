// Package fsutil reads rewrite inputs and writes their outputs.
// Writes go through a temp file and a rename, and in-place replacement
// refuses to clobber a file that changed while it was being rewritten.
package fsutil

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Sentinel errors for error categorization via errors.Is.
var (
	// ErrNotFound indicates the file does not exist.
	ErrNotFound = errors.New("file not found")

	// ErrPermissionDenied indicates a permission error.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrIsDirectory indicates the path is a directory, not a file.
	ErrIsDirectory = errors.New("path is a directory")

	// ErrModified indicates a file changed after it was read.
	ErrModified = errors.New("file modified since it was read")

	// ErrOutsideBase indicates an input that does not live under the base
	// directory of an output tree.
	ErrOutsideBase = errors.New("path is outside the base directory")

	// ErrBadPattern indicates an exclude pattern that does not compile.
	ErrBadPattern = errors.New("invalid pattern")
)

// Snapshot captures the state of an input file when it was read.
type Snapshot struct {
	Path    string
	Mode    os.FileMode
	ModTime time.Time
	Size    int64
	Hash    [32]byte
}

// ReadFile reads a file and returns its content with a snapshot of its state.
func ReadFile(ctx context.Context, path string) ([]byte, *Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, fmt.Errorf("read file: %w", err)
	}

	stat, err := os.Stat(path)
	if err != nil {
		return nil, nil, classify(path, err)
	}
	if stat.IsDir() {
		return nil, nil, fmt.Errorf("%w: %s", ErrIsDirectory, path)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, classify(path, err)
	}

	return content, &Snapshot{
		Path:    path,
		Mode:    stat.Mode().Perm(),
		ModTime: stat.ModTime(),
		Size:    stat.Size(),
		Hash:    sha256.Sum256(content),
	}, nil
}

func classify(path string, err error) error {
	switch {
	case os.IsNotExist(err):
		return fmt.Errorf("%w: %s: %w", ErrNotFound, path, err)
	case os.IsPermission(err):
		return fmt.Errorf("%w: %s: %w", ErrPermissionDenied, path, err)
	default:
		return fmt.Errorf("read %s: %w", path, err)
	}
}

// Changed reports whether the file differs from the snapshot. Mod time and
// size are compared first; the content hash decides when they match.
// A deleted file counts as changed.
func (s *Snapshot) Changed(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, fmt.Errorf("check modified: %w", err)
	}

	stat, err := os.Stat(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return true, nil
		}
		return false, fmt.Errorf("stat %s: %w", s.Path, err)
	}

	if !stat.ModTime().Equal(s.ModTime) || stat.Size() != s.Size {
		return true, nil
	}

	content, err := os.ReadFile(s.Path)
	if err != nil {
		return false, fmt.Errorf("read %s: %w", s.Path, err)
	}
	return sha256.Sum256(content) != s.Hash, nil
}

// Replace writes content over the snapshotted file, keeping its mode.
// It returns ErrModified if the file changed since the snapshot, and false
// without writing when content equals what is on disk.
func (s *Snapshot) Replace(ctx context.Context, content []byte) (bool, error) {
	changed, err := s.Changed(ctx)
	if err != nil {
		return false, err
	}
	if changed {
		return false, fmt.Errorf("%w: %s", ErrModified, s.Path)
	}
	if sha256.Sum256(content) == s.Hash {
		return false, nil
	}
	if err := WriteAtomic(ctx, s.Path, content, s.Mode); err != nil {
		return false, err
	}
	return true, nil
}

// OutputPath maps input, a path under baseDir, to the same relative path
// under outDir.
func OutputPath(outDir, baseDir, input string) (string, error) {
	rel, err := filepath.Rel(baseDir, input)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrOutsideBase, input, err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideBase, input)
	}
	return filepath.Join(outDir, rel), nil
}
