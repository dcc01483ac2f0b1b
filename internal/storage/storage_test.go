package storage

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk-service/internal/config"
)

func TestCleanKey(t *testing.T) {
	ok := map[string]string{
		"exports/t1/job.csv":    "exports/t1/job.csv",
		"exports//t1/./job.csv": "exports/t1/job.csv",
	}
	for in, want := range ok {
		got, err := cleanKey(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	for _, bad := range []string{"", "/etc/passwd", "../secret", "exports/../../x", "a\\b", "."} {
		_, err := cleanKey(bad)
		assert.ErrorIs(t, err, ErrInvalidKey, bad)
	}
}

func TestLocal_PutGetDelete(t *testing.T) {
	ctx := context.Background()
	store, err := New(ctx, config.StorageConfig{Driver: config.StorageLocal, LocalRoot: t.TempDir()})
	require.NoError(t, err)

	key := Key("exports", "tenant", "job.csv")
	require.NoError(t, store.Put(ctx, key, strings.NewReader("id,name\n1,a\n"), "text/csv"))

	rc, err := store.Get(ctx, key)
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "id,name\n1,a\n", string(body))

	require.NoError(t, store.Put(ctx, key, strings.NewReader("replaced"), "text/csv"))
	rc, err = store.Get(ctx, key)
	require.NoError(t, err)
	body, _ = io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, "replaced", string(body))

	require.NoError(t, store.Delete(ctx, key))
	require.NoError(t, store.Delete(ctx, key))
	_, err = store.Get(ctx, key)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocal_RejectsTraversal(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocal(t.TempDir())
	require.NoError(t, err)
	assert.ErrorIs(t, store.Put(ctx, "../escape.txt", strings.NewReader("x"), ""), ErrInvalidKey)
	_, err = store.Get(ctx, "/etc/hosts")
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestNew_UnknownDriver(t *testing.T) {
	_, err := New(context.Background(), config.StorageConfig{Driver: "ftp"})
	assert.Error(t, err)
}
