package fsutil_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yaklabco/passthrough/pkg/fsutil"
)

func makeTree(t *testing.T, files ...string) string {
	t.Helper()

	root := t.TempDir()
	for _, name := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(name), 0o644))
	}
	return root
}

func relative(t *testing.T, root string, paths []string) []string {
	t.Helper()

	rel := make([]string, 0, len(paths))
	for _, p := range paths {
		r, err := filepath.Rel(root, p)
		require.NoError(t, err)
		rel = append(rel, filepath.ToSlash(r))
	}
	return rel
}

func TestWalk(t *testing.T) {
	t.Parallel()

	root := makeTree(t,
		"index.html",
		"css/site.css",
		"css/vendor/reset.css",
		"js/app.js",
		"js/app.min.js",
		".git/config",
		"js/.cache/x.js",
		".env",
	)

	tests := []struct {
		name    string
		exclude []string
		want    []string
	}{
		{
			name: "skips hidden entries",
			want: []string{"css/site.css", "css/vendor/reset.css", "index.html", "js/app.js", "js/app.min.js"},
		},
		{
			name:    "base name pattern",
			exclude: []string{"*.min.js"},
			want:    []string{"css/site.css", "css/vendor/reset.css", "index.html", "js/app.js"},
		},
		{
			name:    "directory name",
			exclude: []string{"vendor"},
			want:    []string{"css/site.css", "index.html", "js/app.js", "js/app.min.js"},
		},
		{
			name:    "double star",
			exclude: []string{"**/*.css"},
			want:    []string{"index.html", "js/app.js", "js/app.min.js"},
		},
		{
			name:    "relative path",
			exclude: []string{"js/*"},
			want:    []string{"css/site.css", "css/vendor/reset.css", "index.html"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			files, err := fsutil.Walk(context.Background(), root, fsutil.WalkOptions{Exclude: tt.exclude})
			require.NoError(t, err)
			assert.Equal(t, tt.want, relative(t, root, files))
		})
	}
}

func TestWalk_InvalidPattern(t *testing.T) {
	t.Parallel()

	_, err := fsutil.Walk(context.Background(), t.TempDir(), fsutil.WalkOptions{Exclude: []string{"[unclosed"}})
	require.ErrorIs(t, err, fsutil.ErrBadPattern)
	assert.Contains(t, err.Error(), "[unclosed")
}

func TestWalk_Symlinks(t *testing.T) {
	t.Parallel()

	shared := makeTree(t, "lib/a.js", "b.css")
	root := makeTree(t, "index.html")

	if err := os.Symlink(filepath.Join(shared, "lib"), filepath.Join(root, "lib")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}
	require.NoError(t, os.Symlink(filepath.Join(shared, "b.css"), filepath.Join(root, "b.css")))
	require.NoError(t, os.Symlink(filepath.Join(shared, "missing"), filepath.Join(root, "broken.js")))

	files, err := fsutil.Walk(context.Background(), root, fsutil.WalkOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"b.css", "index.html"}, relative(t, root, files))

	files, err = fsutil.Walk(context.Background(), root, fsutil.WalkOptions{FollowSymlinks: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"b.css", "index.html", "lib/a.js"}, relative(t, root, files))

	files, err = fsutil.Walk(context.Background(), root, fsutil.WalkOptions{
		FollowSymlinks: true,
		Exclude:        []string{"lib/*.js"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"b.css", "index.html"}, relative(t, root, files))
}

func TestWalk_Cancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := fsutil.Walk(ctx, makeTree(t, "a.html"), fsutil.WalkOptions{})
	assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
}
