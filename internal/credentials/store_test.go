package credentials

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore("seed")

	tok, err := s.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "seed", tok)

	require.NoError(t, s.Set(ctx, "  fresh \n"))
	tok, _ = s.Get(ctx)
	assert.Equal(t, "fresh", tok)

	require.NoError(t, s.Clear(ctx))
	require.NoError(t, s.Clear(ctx))
	tok, _ = s.Get(ctx)
	assert.Empty(t, tok)
}

func TestFileStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "token")
	s := NewFileStore(path)

	tok, err := s.Get(ctx)
	require.NoError(t, err)
	assert.Empty(t, tok, "missing file means no credential")

	require.NoError(t, s.Set(ctx, "abc.def"))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	tok, err = s.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "abc.def", tok)

	require.NoError(t, s.Clear(ctx))
	require.NoError(t, s.Clear(ctx), "clearing twice is fine")
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, Options{Driver: DriverRedis, Token: "env-token"})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)
	tok, _ := s.Get(ctx)
	assert.Equal(t, "env-token", tok)

	s, err = Open(ctx, Options{})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	path := filepath.Join(t.TempDir(), "token")
	s, err = Open(ctx, Options{Driver: DriverFile, TokenFile: path})
	require.NoError(t, err)
	fs, ok := s.(*FileStore)
	require.True(t, ok)
	assert.Equal(t, path, fs.Path())

	_, err = Open(ctx, Options{Driver: DriverFile})
	assert.Error(t, err)

	_, err = Open(ctx, Options{Driver: DriverRedis})
	assert.Error(t, err)

	_, err = Open(ctx, Options{Driver: DriverRedis, RedisURL: "http://not-redis"})
	assert.Error(t, err)

	_, err = Open(ctx, Options{Driver: "vault"})
	assert.Error(t, err)
}
