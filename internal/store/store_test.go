package store

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loykin/curator/internal/resource"
)

type fakeTx struct {
	committed, rolledBack int
	commitErr, rbErr      error
}

func (t *fakeTx) Repository(*resource.Kind) Repository { return nil }
func (t *fakeTx) Commit() error                        { t.committed++; return t.commitErr }
func (t *fakeTx) Rollback() error                      { t.rolledBack++; return t.rbErr }

type fakeStore struct {
	tx       *fakeTx
	beginErr error
}

func (s *fakeStore) EnsureSchema(context.Context, []*resource.Kind) error { return nil }
func (s *fakeStore) BeginTx(context.Context) (Transaction, error) {
	if s.beginErr != nil {
		return nil, s.beginErr
	}
	return s.tx, nil
}
func (s *fakeStore) Ping(context.Context) error { return nil }
func (s *fakeStore) Close() error               { return nil }

func TestWithinTxCommits(t *testing.T) {
	s := &fakeStore{tx: &fakeTx{}}
	err := WithinTx(context.Background(), s, func(Transaction) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, 1, s.tx.committed)
	assert.Equal(t, 0, s.tx.rolledBack)
}

func TestWithinTxRollsBackOnError(t *testing.T) {
	s := &fakeStore{tx: &fakeTx{}}
	boom := errors.New("boom")
	err := WithinTx(context.Background(), s, func(Transaction) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, s.tx.committed)
	assert.Equal(t, 1, s.tx.rolledBack)
}

func TestWithinTxJoinsRollbackFailure(t *testing.T) {
	rbErr := errors.New("connection reset")
	s := &fakeStore{tx: &fakeTx{rbErr: rbErr}}
	boom := errors.New("boom")
	err := WithinTx(context.Background(), s, func(Transaction) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, err, rbErr)
}

func TestWithinTxRollsBackOnPanic(t *testing.T) {
	s := &fakeStore{tx: &fakeTx{}}
	assert.PanicsWithValue(t, "kaboom", func() {
		_ = WithinTx(context.Background(), s, func(Transaction) error { panic("kaboom") })
	})
	assert.Equal(t, 1, s.tx.rolledBack)
	assert.Equal(t, 0, s.tx.committed)
}

func TestWithinTxBeginAndCommitErrors(t *testing.T) {
	begin := errors.New("no connection")
	err := WithinTx(context.Background(), &fakeStore{beginErr: begin}, func(Transaction) error {
		t.Fatal("fn must not run")
		return nil
	})
	assert.ErrorIs(t, err, begin)

	commit := errors.New("serialization failure")
	err = WithinTx(context.Background(), &fakeStore{tx: &fakeTx{commitErr: commit}}, func(Transaction) error { return nil })
	assert.ErrorIs(t, err, commit)
}

func TestPostgresDSN(t *testing.T) {
	c := Config{Host: "db", Port: 5433, Database: "app", Username: "u", Password: "p@ss"}
	dsn := c.PostgresDSN()
	assert.True(t, strings.HasPrefix(dsn, "postgres://u:p%40ss@db:5433/app?"), dsn)
	assert.Contains(t, dsn, "sslmode=disable")

	assert.Equal(t, "postgres://x/y", Config{DSN: "postgres://x/y"}.PostgresDSN())
	assert.NotContains(t, Config{Type: "postgres", DSN: "postgres://u:secret@h:1/d"}.String(), "secret")
}

func TestFactoryUnknownType(t *testing.T) {
	f := &DefaultFactory{builders: map[string]Builder{}, users: map[string]UserBuilder{}}
	f.RegisterStoreType("fake", func(Config) (Store, error) { return &fakeStore{}, nil })
	_, err := f.CreateStore(Config{Type: "nope"})
	assert.Error(t, err)
	s, err := f.CreateStore(Config{Type: "fake"})
	require.NoError(t, err)
	assert.NotNil(t, s)
	assert.Equal(t, []string{"fake"}, f.SupportedTypes())
	_, err = f.CreateUserStore(Config{Type: "fake"})
	assert.Error(t, err)
}
