package credentials

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	s, err := NewStoreAt(path)
	require.NoError(t, err)
	return s, path
}

func TestEmptyStoreHasNoCurrentContext(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := s.Current()
	assert.ErrorIs(t, err, ErrNoCurrentContext)
}

func TestFirstContextBecomesCurrent(t *testing.T) {
	s, _ := newTestStore(t)
	require.NoError(t, s.Set("prod", &Context{Server: "cape.example.com:4040", Username: "admin"}))

	assert.Equal(t, "prod", s.CurrentName())
	ctx, err := s.Current()
	require.NoError(t, err)
	assert.Equal(t, "cape.example.com:4040", ctx.Server)
}

func TestUseSwitchesContext(t *testing.T) {
	s, _ := newTestStore(t)
	require.NoError(t, s.Set("prod", &Context{Server: "prod:4040"}))
	require.NoError(t, s.Set("dev", &Context{Server: "dev:4040"}))

	require.NoError(t, s.Use("dev"))
	ctx, err := s.Current()
	require.NoError(t, err)
	assert.Equal(t, "dev:4040", ctx.Server)

	assert.ErrorIs(t, s.Use("staging"), ErrContextNotFound)
}

func TestNamesAreSorted(t *testing.T) {
	s, _ := newTestStore(t)
	require.NoError(t, s.Set("zeta", &Context{Server: "z:1"}))
	require.NoError(t, s.Set("alpha", &Context{Server: "a:1"}))

	assert.Equal(t, []string{"alpha", "zeta"}, s.Names())
}

func TestStorePersistsAcrossReopen(t *testing.T) {
	s, path := newTestStore(t)
	require.NoError(t, s.Set("prod", &Context{Server: "prod:4040", Username: "admin"}))
	require.NoError(t, s.SaveSession(0xABCD1234))

	reopened, err := NewStoreAt(path)
	require.NoError(t, err)
	ctx, err := reopened.Current()
	require.NoError(t, err)
	assert.Equal(t, uint32(0xABCD1234), ctx.SessionID)
	assert.Equal(t, "admin", ctx.Username)
}

func TestDeleteClearsCurrent(t *testing.T) {
	s, _ := newTestStore(t)
	require.NoError(t, s.Set("prod", &Context{Server: "prod:4040"}))
	require.NoError(t, s.Delete("prod"))

	_, err := s.Current()
	assert.ErrorIs(t, err, ErrNoCurrentContext)
	assert.Empty(t, s.Names())
}
