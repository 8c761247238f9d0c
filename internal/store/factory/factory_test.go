package factory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loykin/curator/internal/store"
	"github.com/loykin/curator/internal/store/memory"
	"github.com/loykin/curator/internal/store/sqlstore"
)

func TestFactoryDSNSelection(t *testing.T) {
	_, err := NewFromDSN("")
	assert.Error(t, err)

	// sql.Open does not connect, so a postgres DSN needs no server here
	pg, err := NewFromDSN("postgres://user@localhost/db")
	require.NoError(t, err)
	assert.IsType(t, &sqlstore.DB{}, pg)
	assert.Equal(t, "postgres", pg.(*sqlstore.DB).Dialect().Name)
	_ = pg.Close()

	s1, err := NewFromDSN("sqlite://:memory:")
	require.NoError(t, err)
	assert.Equal(t, "sqlite", s1.(*sqlstore.DB).Dialect().Name)
	require.NoError(t, s1.Ping(context.Background()))
	_ = s1.Close()

	s2, err := NewFromDSN(":memory:")
	require.NoError(t, err)
	_ = s2.Close()

	m, err := NewFromDSN("memory://")
	require.NoError(t, err)
	assert.IsType(t, &memory.Store{}, m)
}

func TestConfigFromDSN(t *testing.T) {
	cases := map[string]store.Config{
		"memory":                      {Type: "memory"},
		"sqlite:///var/lib/c.db":      {Type: "sqlite", Path: "/var/lib/c.db"},
		"data/c.db":                   {Type: "sqlite", Path: "data/c.db"},
		"postgresql://u@h/db":         {Type: "postgres", DSN: "postgresql://u@h/db"},
		"gorm+postgres://u@h/db?x=1":  {Type: "gorm", DSN: "postgres://u@h/db?x=1"},
		"  postgres://u@h:5432/db   ": {Type: "postgres", DSN: "postgres://u@h:5432/db"},
	}
	for dsn, want := range cases {
		got, err := ConfigFromDSN(dsn)
		require.NoError(t, err, dsn)
		assert.Equal(t, want, got, dsn)
	}
}

func TestRegisteredTypes(t *testing.T) {
	assert.Subset(t, store.SupportedTypes(), []string{"memory", "sqlite", "postgres", "gorm"})

	us, err := NewUserStore(store.Config{Type: "sqlite", Path: ":memory:"})
	require.NoError(t, err)
	defer func() { _ = us.Close() }()
	_, err = us.ListUsers(context.Background())
	assert.NoError(t, err)

	_, err = NewUserStore(store.Config{Type: "gorm"})
	assert.Error(t, err)
}
