package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loykin/curator/internal/resource"
	"github.com/loykin/curator/internal/store"
	"github.com/loykin/curator/internal/store/storetest"
)

func TestConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		db, err := New(":memory:")
		require.NoError(t, err)
		t.Cleanup(func() { _ = db.Close() })
		return db
	})
}

func TestFileDatabase(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		path := filepath.Join(t.TempDir(), "curator.db")
		db, err := NewWithConfig(store.Config{Path: path, TablePrefix: "cur_"})
		require.NoError(t, err)
		t.Cleanup(func() { _ = db.Close() })
		return db
	})
}

func TestUsers(t *testing.T) {
	db, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.EnsureUserSchema(context.Background()))
	storetest.RunUsers(t, db)
}

func TestDataSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")
	ctx := context.Background()
	kind := resource.Book()

	db, err := New(path)
	require.NoError(t, err)
	require.NoError(t, db.EnsureSchema(ctx, []*resource.Kind{kind}))
	var id int64
	require.NoError(t, store.WithinTx(ctx, db, func(tx store.Transaction) error {
		r, err := tx.Repository(kind).Save(ctx, kind.New())
		if err == nil {
			id = *r.ID
		}
		return err
	}))
	require.NoError(t, db.Close())

	db, err = New(path)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()
	require.NoError(t, store.WithinTx(ctx, db, func(tx store.Transaction) error {
		ok, err := tx.Repository(kind).ExistsByID(ctx, id)
		require.NoError(t, err)
		assert.True(t, ok)
		return nil
	}))
}

func TestEmptyPath(t *testing.T) {
	_, err := New("  ")
	assert.Error(t, err)
}

func TestDSN(t *testing.T) {
	assert.Equal(t, ":memory:", dsn(":memory:"))
	assert.Equal(t, "a.db?_pragma=busy_timeout(3000)&_pragma=foreign_keys(1)", dsn("a.db"))
	assert.Equal(t, "a.db?mode=rw&_pragma=busy_timeout(3000)&_pragma=foreign_keys(1)", dsn("a.db?mode=rw"))
}
