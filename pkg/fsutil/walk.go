package fsutil

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
)

// WalkOptions controls Walk.
type WalkOptions struct {
	// Exclude holds glob patterns matched against the slash-separated path
	// relative to the walk root, and against the base name. "**" crosses
	// directories. A matching directory is not descended into.
	Exclude []string

	// FollowSymlinks walks symlinked directories. Symlinked files are
	// always included.
	FollowSymlinks bool
}

// Walk returns the regular files under root in lexical order. Hidden files
// and directories below root are skipped, as are unreadable directories
// and broken symlinks.
func Walk(ctx context.Context, root string, opts WalkOptions) ([]string, error) {
	excludes, err := compileGlobs(opts.Exclude)
	if err != nil {
		return nil, err
	}
	w := &walker{ctx: ctx, excludes: excludes, follow: opts.FollowSymlinks, visited: map[string]bool{}}
	return w.walk(root, root, "")
}

func compileGlobs(patterns []string) ([]glob.Glob, error) {
	globs := make([]glob.Glob, 0, len(patterns))
	for _, pattern := range patterns {
		g, err := glob.Compile(filepath.ToSlash(pattern), '/')
		if err != nil {
			return nil, fmt.Errorf("%w %q: %w", ErrBadPattern, pattern, err)
		}
		globs = append(globs, g)
	}
	return globs, nil
}

func excluded(rel string, globs []glob.Glob) bool {
	rel = filepath.ToSlash(rel)
	base := filepath.Base(rel)
	for _, g := range globs {
		if g.Match(rel) || g.Match(base) {
			return true
		}
	}
	return false
}

// walker holds the state of one Walk call.
type walker struct {
	ctx      context.Context
	excludes []glob.Glob
	follow   bool
	visited  map[string]bool
}

// walk visits the directory real, reporting files as if it were located at
// shown, with rel as shown's path relative to the walk root. The two differ
// inside a followed symlink.
func (w *walker) walk(real, shown, rel string) ([]string, error) {
	if resolved, err := filepath.EvalSymlinks(real); err == nil {
		if w.visited[resolved] {
			return nil, nil
		}
		w.visited[resolved] = true
	}

	var files []string
	err := filepath.WalkDir(real, func(path string, entry fs.DirEntry, walkErr error) error {
		if err := w.ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			if os.IsPermission(walkErr) {
				return nil
			}
			return walkErr
		}
		if path == real {
			return nil
		}

		sub, err := filepath.Rel(real, path)
		if err != nil {
			return fmt.Errorf("relative path of %s: %w", path, err)
		}
		shownPath := filepath.Join(shown, sub)
		entryRel := filepath.Join(rel, sub)
		skip := strings.HasPrefix(entry.Name(), ".") || excluded(entryRel, w.excludes)

		switch {
		case entry.IsDir():
			if skip {
				return filepath.SkipDir
			}
		case skip:
		case entry.Type()&fs.ModeSymlink != 0:
			info, err := os.Stat(path)
			if err != nil {
				return nil //nolint:nilerr // broken symlinks are skipped
			}
			if !info.IsDir() {
				files = append(files, shownPath)
				return nil
			}
			if !w.follow {
				return nil
			}
			// WalkDir does not descend into a symlinked directory, so walk
			// its target separately.
			target, err := filepath.EvalSymlinks(path)
			if err != nil {
				return nil //nolint:nilerr // unresolvable targets are skipped
			}
			nested, err := w.walk(target, shownPath, entryRel)
			if err != nil {
				return err
			}
			files = append(files, nested...)
		case entry.Type().IsRegular():
			files = append(files, shownPath)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", shown, err)
	}

	return files, nil
}
