package registry

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	syerrors "github.com/Aman-CERP/syncignore/internal/errors"
	"github.com/Aman-CERP/syncignore/internal/gitignore"
)

func writeFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func newTestRegistry(t *testing.T) (*Registry, string) {
	t.Helper()
	reg, err := New(t.TempDir(), DefaultOptions())
	require.NoError(t, err)
	return reg, reg.Root()
}

func TestNew_InvalidRoot(t *testing.T) {
	dir := t.TempDir()
	file := writeFile(t, dir, "plain.txt", "x")

	tests := []struct {
		name string
		root string
	}{
		{name: "empty", root: ""},
		{name: "missing", root: filepath.Join(dir, "missing")},
		{name: "regular file", root: file},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg, err := New(tt.root, DefaultOptions())
			require.Error(t, err)
			assert.Nil(t, reg)
			assert.ErrorIs(t, err, syerrors.ErrInvalidRoot)
			assert.True(t, syerrors.IsFatal(err))
		})
	}
}

func TestRegistry_IsIgnoreFile(t *testing.T) {
	reg, _ := newTestRegistry(t)

	assert.True(t, reg.IsIgnoreFile(".gitignore"))
	assert.True(t, reg.IsIgnoreFile(".dropboxignore"))
	assert.True(t, reg.IsIgnoreFile("vendor.gitignore"))
	assert.False(t, reg.IsIgnoreFile("gitignore.txt"))
	assert.False(t, reg.IsIgnoreFile(".ignore"))
}

func TestRegistry_Register(t *testing.T) {
	// Given: a root with an ignore file in a subdirectory
	reg, root := newTestRegistry(t)
	p := writeFile(t, root, "sub/.gitignore", "*.log\n")
	gen := reg.Generation()

	// When: registering it
	require.NoError(t, reg.Register(context.Background(), p))

	// Then: the directory holds exactly that file
	set := reg.Snapshot("sub")
	require.Equal(t, 1, set.Len())
	f, ok := set.File(".gitignore")
	require.True(t, ok)
	assert.Equal(t, "sub", f.Dir)
	assert.Equal(t, "sub/.gitignore", f.RelPath())
	assert.Equal(t, 1, f.Matcher.Len())
	assert.NoError(t, f.ParseErr)
	assert.Greater(t, reg.Generation(), gen)
	assert.Equal(t, []string{"sub"}, reg.Dirs())
	assert.Equal(t, 1, reg.Len())
}

func TestRegistry_Register_ReplacesOnEdit(t *testing.T) {
	reg, root := newTestRegistry(t)
	p := writeFile(t, root, ".gitignore", "*.log\n")
	require.NoError(t, reg.Register(context.Background(), p))

	// When: the file is edited in place and registered again
	writeFile(t, root, ".gitignore", "*.tmp\n!keep.tmp\n")
	require.NoError(t, reg.Register(context.Background(), p))

	// Then: the new rules replace the old ones
	set := reg.Snapshot("")
	require.Equal(t, 1, set.Len())
	assert.Equal(t, gitignore.NoMatch, set.Evaluate("a.log", false).Verdict)
	assert.Equal(t, gitignore.Ignored, set.Evaluate("a.tmp", false).Verdict)
	assert.Equal(t, gitignore.ReIncluded, set.Evaluate("keep.tmp", false).Verdict)
}

func TestRegistry_Register_Idempotent(t *testing.T) {
	reg, root := newTestRegistry(t)
	p := writeFile(t, root, ".gitignore", "*.log\n")

	for i := 0; i < 3; i++ {
		require.NoError(t, reg.Register(context.Background(), p))
	}

	assert.Equal(t, 1, reg.Len())
}

func TestRegistry_Register_Malformed(t *testing.T) {
	// Given: an ignore file with binary content
	reg, root := newTestRegistry(t)
	p := filepath.Join(root, ".gitignore")
	require.NoError(t, os.WriteFile(p, []byte{0x00, 0x01, 0x02}, 0o644))

	// When: registering it
	err := reg.Register(context.Background(), p)

	// Then: no error, the file is registered with an empty rule set
	require.NoError(t, err)
	f, ok := reg.Snapshot("").File(".gitignore")
	require.True(t, ok)
	assert.Equal(t, 0, f.Matcher.Len())
	assert.ErrorIs(t, f.ParseErr, syerrors.ErrIgnoreFileParse)
	assert.ErrorIs(t, f.ParseErr, gitignore.ErrBinaryContent)
}

func TestRegistry_Register_Vanished(t *testing.T) {
	// Given: a registered file that is deleted before it is read again
	reg, root := newTestRegistry(t)
	p := writeFile(t, root, "sub/.gitignore", "*.log\n")
	require.NoError(t, reg.Register(context.Background(), p))
	require.NoError(t, os.Remove(p))

	// When: a late modify notification registers it
	require.NoError(t, reg.Register(context.Background(), p))

	// Then: the directory no longer holds rules
	assert.True(t, reg.Snapshot("sub").Empty())
	assert.Empty(t, reg.Dirs())
}

func TestRegistry_Register_Rejects(t *testing.T) {
	reg, root := newTestRegistry(t)
	notIgnore := writeFile(t, root, "main.go", "package main\n")

	tests := []struct {
		name string
		path string
		want error
	}{
		{name: "outside root", path: filepath.Join(filepath.Dir(root), ".gitignore"), want: syerrors.ErrOutOfScopePath},
		{name: "relative path", path: ".gitignore", want: syerrors.ErrOutOfScopePath},
		{name: "not an ignore file", path: notIgnore, want: &syerrors.SyncError{Code: syerrors.ErrCodeInvalidInput}},
		{name: "root itself", path: root, want: &syerrors.SyncError{Code: syerrors.ErrCodeInvalidInput}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := reg.Register(context.Background(), tt.path)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, 0, reg.Len())
		})
	}
}

func TestRegistry_Register_CancelledContext(t *testing.T) {
	reg, root := newTestRegistry(t)
	p := writeFile(t, root, ".gitignore", "*.log\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := reg.Register(ctx, p)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, reg.Len())
}

func TestRegistry_Unregister(t *testing.T) {
	// Given: two ignore files in one directory
	reg, root := newTestRegistry(t)
	git := writeFile(t, root, "docs/.gitignore", "*.log\n")
	dbx := writeFile(t, root, "docs/.dropboxignore", "*.tmp\n")
	require.NoError(t, reg.Register(context.Background(), git))
	require.NoError(t, reg.Register(context.Background(), dbx))

	// When: removing one
	require.NoError(t, reg.Unregister(git))

	// Then: the directory is still present with the other
	assert.Equal(t, 1, reg.Snapshot("docs").Len())
	assert.Equal(t, []string{"docs"}, reg.Dirs())

	// When: removing the last one
	require.NoError(t, reg.Unregister(dbx))

	// Then: the directory key is gone
	assert.True(t, reg.Snapshot("docs").Empty())
	assert.Empty(t, reg.Dirs())
	assert.Equal(t, 0, reg.Len())
}

func TestRegistry_Unregister_UnknownIsNoop(t *testing.T) {
	reg, root := newTestRegistry(t)
	gen := reg.Generation()

	require.NoError(t, reg.Unregister(filepath.Join(root, "never", ".gitignore")))
	require.NoError(t, reg.Unregister(root))

	assert.Equal(t, gen, reg.Generation())
}

func TestRegistry_Unregister_OutOfScope(t *testing.T) {
	reg, root := newTestRegistry(t)

	err := reg.Unregister(filepath.Join(filepath.Dir(root), "elsewhere", ".gitignore"))
	assert.ErrorIs(t, err, syerrors.ErrOutOfScopePath)
}

func TestRegistry_UnregisterTree(t *testing.T) {
	// Given: ignore files inside and beside a directory
	reg, root := newTestRegistry(t)
	for _, rel := range []string{"a/.gitignore", "a/b/.gitignore", "a/b/c/.dropboxignore", "ab/.gitignore", ".gitignore"} {
		require.NoError(t, reg.Register(context.Background(), writeFile(t, root, rel, "x\n")))
	}

	// When: the directory "a" is deleted
	n, err := reg.UnregisterTree(filepath.Join(root, "a"))

	// Then: only files at or below it are removed
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []string{"", "ab"}, reg.Dirs())
}

func TestRegistry_UnregisterTree_Root(t *testing.T) {
	reg, root := newTestRegistry(t)
	require.NoError(t, reg.Register(context.Background(), writeFile(t, root, "x/.gitignore", "x\n")))

	n, err := reg.UnregisterTree(root)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 0, reg.Len())
}

func TestRegistry_RegisterUnregisterRoundTrip(t *testing.T) {
	reg, root := newTestRegistry(t)
	require.NoError(t, reg.Register(context.Background(), writeFile(t, root, ".gitignore", "*.log\n")))
	before := reg.Snapshot("sub")

	p := writeFile(t, root, "sub/.gitignore", "!keep.log\n")
	require.NoError(t, reg.Register(context.Background(), p))
	require.NoError(t, reg.Unregister(p))

	assert.Equal(t, before, reg.Snapshot("sub"))
	assert.Equal(t, []string{""}, reg.Dirs())
}

func TestRegistry_SnapshotIsImmutable(t *testing.T) {
	// Given: a snapshot taken before an edit
	reg, root := newTestRegistry(t)
	p := writeFile(t, root, ".gitignore", "*.log\n")
	require.NoError(t, reg.Register(context.Background(), p))
	snap := reg.Snapshot("")

	// When: the file is replaced and another is added
	writeFile(t, root, ".gitignore", "*.tmp\n")
	require.NoError(t, reg.Register(context.Background(), p))
	require.NoError(t, reg.Register(context.Background(), writeFile(t, root, ".dropboxignore", "a\n")))

	// Then: the old snapshot still shows the old state
	require.Equal(t, 1, snap.Len())
	assert.Equal(t, gitignore.Ignored, snap.Evaluate("x.log", false).Verdict)
	assert.Equal(t, 2, reg.Snapshot("").Len())
}

func TestDirectoryRuleSet_Evaluate_FilenameOrder(t *testing.T) {
	// Given: two conventions in one directory. ".dropboxignore" sorts
	// before ".gitignore", so the latter's rules come last.
	reg, root := newTestRegistry(t)
	require.NoError(t, reg.Register(context.Background(), writeFile(t, root, ".gitignore", "!keep.log\n")))
	require.NoError(t, reg.Register(context.Background(), writeFile(t, root, ".dropboxignore", "*.log\n")))

	set := reg.Snapshot("")
	files := set.Files()
	require.Len(t, files, 2)
	assert.Equal(t, ".dropboxignore", files[0].Name)
	assert.Equal(t, ".gitignore", files[1].Name)

	// Then: last match across files in name order wins
	m := set.Evaluate("keep.log", false)
	assert.Equal(t, gitignore.ReIncluded, m.Verdict)
	assert.Equal(t, ".gitignore", m.File.Name)
	assert.Equal(t, "!keep.log", m.Rule.Raw)

	m = set.Evaluate("other.log", false)
	assert.Equal(t, gitignore.Ignored, m.Verdict)
	assert.Equal(t, ".dropboxignore", m.File.Name)

	m = set.Evaluate("main.go", false)
	assert.Equal(t, gitignore.NoMatch, m.Verdict)
	assert.Nil(t, m.File)
}

func TestRegistry_ConcurrentReaders(t *testing.T) {
	reg, root := newTestRegistry(t)
	p := writeFile(t, root, ".gitignore", "*.log\n")
	require.NoError(t, reg.Register(context.Background(), p))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				set := reg.Snapshot("")
				// Every observed state is complete: one file with a full rule list.
				if set.Len() == 1 {
					f := set.Files()[0]
					assert.Positive(t, f.Matcher.Len())
				}
			}
		}()
	}

	for i := 0; i < 20; i++ {
		require.NoError(t, reg.Register(context.Background(), p))
		require.NoError(t, reg.Unregister(p))
	}
	wg.Wait()
}

func TestRelPath(t *testing.T) {
	root := filepath.FromSlash("/data/root")

	tests := []struct {
		name    string
		path    string
		want    string
		wantErr bool
	}{
		{name: "root", path: root, want: ""},
		{name: "child", path: filepath.Join(root, "a", "b.txt"), want: "a/b.txt"},
		{name: "unclean", path: root + "/a/../b", want: "b"},
		{name: "sibling prefix", path: root + "2/x", wantErr: true},
		{name: "parent", path: filepath.Dir(root), wantErr: true},
		{name: "relative", path: "a/b", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := RelPath(root, tt.path)
			if tt.wantErr {
				assert.ErrorIs(t, err, syerrors.ErrOutOfScopePath)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
