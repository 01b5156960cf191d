package sandbox

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/cape/internal/capeerr"
)

func newTestSandbox(t *testing.T) (*Sandbox, string) {
	t.Helper()
	home := t.TempDir()
	sb, err := New(home)
	require.NoError(t, err)
	return sb, home
}

func TestResolveExistingInsideHome(t *testing.T) {
	sb, home := newTestSandbox(t)
	require.NoError(t, os.WriteFile(filepath.Join(home, "notes.txt"), []byte("hello"), 0o644))

	p, err := sb.ResolveExisting("notes.txt")
	require.NoError(t, err)
	assert.True(t, Exists(p))
}

func TestResolveExistingMissing(t *testing.T) {
	sb, _ := newTestSandbox(t)
	_, err := sb.ResolveExisting("missing.txt")
	assert.Equal(t, capeerr.ResolveError, capeerr.CodeOf(err))
}

func TestResolveExistingRejectsTraversal(t *testing.T) {
	sb, home := newTestSandbox(t)
	require.NoError(t, os.Mkdir(filepath.Join(home, "sub"), 0o755))

	outside := filepath.Dir(home)
	require.NoError(t, os.WriteFile(filepath.Join(outside, "secret.txt"), []byte("x"), 0o644))
	defer os.Remove(filepath.Join(outside, "secret.txt"))

	_, err := sb.ResolveExisting("../secret.txt")
	assert.Equal(t, capeerr.ResolveError, capeerr.CodeOf(err))
}

func TestResolveExistingRejectsSymlinkEscape(t *testing.T) {
	sb, home := newTestSandbox(t)
	outsideDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(outsideDir, "payload.txt"), []byte("x"), 0o644))

	link := filepath.Join(home, "escape")
	require.NoError(t, os.Symlink(filepath.Join(outsideDir, "payload.txt"), link))

	_, err := sb.ResolveExisting("escape")
	assert.Equal(t, capeerr.ResolveError, capeerr.CodeOf(err))
}

func TestResolveForCreateNewFile(t *testing.T) {
	sb, _ := newTestSandbox(t)

	p, err := sb.ResolveForCreate("new-file.txt")
	require.NoError(t, err)
	assert.False(t, Exists(p))
}

func TestResolveForCreateRejectsMissingParent(t *testing.T) {
	sb, _ := newTestSandbox(t)
	_, err := sb.ResolveForCreate("nosuchdir/file.txt")
	assert.Equal(t, capeerr.ResolveError, capeerr.CodeOf(err))
}

func TestResolveForCreateRejectsTraversal(t *testing.T) {
	sb, _ := newTestSandbox(t)
	_, err := sb.ResolveForCreate("../evil")
	assert.Equal(t, capeerr.ResolveError, capeerr.CodeOf(err))
}

func TestIsDir(t *testing.T) {
	sb, home := newTestSandbox(t)
	require.NoError(t, os.Mkdir(filepath.Join(home, "d"), 0o755))

	p, err := sb.ResolveExisting("d")
	require.NoError(t, err)
	assert.True(t, IsDir(p))
}
