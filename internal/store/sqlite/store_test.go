package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/folioapp/folio-server/internal/store"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_GetMissing(t *testing.T) {
	s := setupTestStore(t)

	_, err := s.Get(context.Background(), "highlights:none")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestStore_SetOverwrites(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", []byte(`[1]`)))
	require.NoError(t, s.Set(ctx, "k", []byte(`[1,2]`)))

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.JSONEq(t, `[1,2]`, string(got))
}

func TestStore_SetBatchAndKeys(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SetBatch(ctx, map[string][]byte{
		"highlights:b":  []byte(`[]`),
		"highlights:a":  []byte(`[]`),
		"annotations:a": []byte(`[]`),
	}))

	keys, err := s.Keys(ctx, "highlights:")
	require.NoError(t, err)
	assert.Equal(t, []string{"highlights:a", "highlights:b"}, keys)
}

func TestStore_UpdatedAt(t *testing.T) {
	s := setupTestStore(t)
	fixed := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	require.NoError(t, s.Set(context.Background(), "studyStats", []byte(`{}`)))

	got, err := s.UpdatedAt(context.Background(), "studyStats")
	require.NoError(t, err)
	assert.True(t, fixed.Equal(got))
}

func TestStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")
	s, err := Open(path, nil)
	require.NoError(t, err)
	require.NoError(t, s.Set(context.Background(), "k", []byte(`"v"`)))
	require.NoError(t, s.Close())

	s, err = Open(path, nil)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, `"v"`, string(got))
}
