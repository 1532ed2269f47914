package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestSQLite(t *testing.T) *SQLStore {
	t.Helper()
	s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "shortlink.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStore(t *testing.T) {
	runStoreContract(t, func(t *testing.T) Store {
		return openTestSQLite(t)
	})
}

func TestSQLiteInMemory(t *testing.T) {
	ctx := context.Background()
	s, err := OpenSQLite(ctx, ":memory:")
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Create(ctx, newRecord("mem")))
	got, err := s.FindByShortcode(ctx, "mem")
	require.NoError(t, err)
	assert.Equal(t, "mem", got.Shortcode)
}

func TestSQLiteSchemaIsIdempotent(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "reopen.db")

	s, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s.Create(ctx, newRecord("keep")))
	require.NoError(t, s.Close())

	// Повторное открытие не должно терять данные
	s, err = OpenSQLite(ctx, path)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.FindByShortcode(ctx, "keep")
	require.NoError(t, err)
	assert.Equal(t, "keep", got.Shortcode)
}

func TestSQLiteDialectClassification(t *testing.T) {
	assert.False(t, SQLite.IsUniqueViolation(errors.New("plain")))
	assert.False(t, SQLite.IsForeignKeyViolation(nil))
	assert.False(t, Postgres.IsUniqueViolation(errors.New("plain")))
}
