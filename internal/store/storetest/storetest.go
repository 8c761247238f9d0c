// Package storetest holds the behaviour every store adapter must share.
// Adapter tests call Run with a constructor for a fresh, empty store.
package storetest

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loykin/curator/internal/resource"
	"github.com/loykin/curator/internal/store"
)

// Gadget exercises every field type.
func Gadget() *resource.Kind {
	return &resource.Kind{
		Name:  "Gadget",
		Route: "gadgets",
		Table: "gadgets",
		Fields: []resource.Field{
			{Name: "label", Type: resource.TypeString},
			{Name: "weight", Type: resource.TypeFloat},
			{Name: "stock", Type: resource.TypeInt},
			{Name: "active", Type: resource.TypeBool},
		},
	}
}

func book(title string, price float64) resource.Record {
	return resource.Record{Fields: []resource.FieldValue{
		{Name: "title", Value: title},
		{Name: "author", Value: "Cormen"},
		{Name: "price", Value: price},
		{Name: "year", Value: int64(2009)},
	}}
}

// Run executes the conformance suite. newStore must return an empty store;
// Run calls EnsureSchema itself.
func Run(t *testing.T, newStore func(t *testing.T) store.Store) {
	books := resource.Book()
	employees := resource.Employee()
	gadgets := Gadget()
	kinds := []*resource.Kind{books, employees, gadgets}

	setup := func(t *testing.T) store.Store {
		t.Helper()
		s := newStore(t)
		require.NoError(t, s.EnsureSchema(context.Background(), kinds))
		require.NoError(t, s.EnsureSchema(context.Background(), kinds), "EnsureSchema must be repeatable")
		return s
	}

	t.Run("SaveAssignsIdentity", func(t *testing.T) {
		s := setup(t)
		ctx := context.Background()
		var saved resource.Record
		require.NoError(t, store.WithinTx(ctx, s, func(tx store.Transaction) error {
			var err error
			saved, err = tx.Repository(books).Save(ctx, book("Algorithms", 89.5))
			return err
		}))
		require.NotNil(t, saved.ID)

		require.NoError(t, store.WithinTx(ctx, s, func(tx store.Transaction) error {
			got, ok, err := tx.Repository(books).FindByID(ctx, *saved.ID)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, *saved.ID, *got.ID)
			assert.Equal(t, saved.Values(), got.Values())
			assert.Equal(t, books.FieldNames(), fieldNames(got))
			return nil
		}))
	})

	t.Run("FindAllAndExists", func(t *testing.T) {
		s := setup(t)
		ctx := context.Background()
		var ids []int64
		require.NoError(t, store.WithinTx(ctx, s, func(tx store.Transaction) error {
			repo := tx.Repository(books)
			for _, title := range []string{"A", "B", "C"} {
				r, err := repo.Save(ctx, book(title, 10))
				if err != nil {
					return err
				}
				ids = append(ids, *r.ID)
			}
			return nil
		}))
		require.NoError(t, store.WithinTx(ctx, s, func(tx store.Transaction) error {
			repo := tx.Repository(books)
			all, err := repo.FindAll(ctx)
			require.NoError(t, err)
			require.Len(t, all, 3)
			for i, r := range all {
				assert.Equal(t, ids[i], *r.ID)
			}
			ok, err := repo.ExistsByID(ctx, ids[1])
			require.NoError(t, err)
			assert.True(t, ok)
			ok, err = repo.ExistsByID(ctx, 999999)
			require.NoError(t, err)
			assert.False(t, ok)
			_, found, err := repo.FindByID(ctx, 999999)
			require.NoError(t, err)
			assert.False(t, found)
			return nil
		}))
	})

	t.Run("SaveExistingReplacesFields", func(t *testing.T) {
		s := setup(t)
		ctx := context.Background()
		require.NoError(t, store.WithinTx(ctx, s, func(tx store.Transaction) error {
			repo := tx.Repository(books)
			r, err := repo.Save(ctx, book("Old", 1))
			require.NoError(t, err)
			updated, err := repo.Save(ctx, r.Assign(book("New", 2)))
			require.NoError(t, err)
			assert.Equal(t, *r.ID, *updated.ID)

			got, ok, err := repo.FindByID(ctx, *r.ID)
			require.NoError(t, err)
			require.True(t, ok)
			title, _ := got.Get("title")
			price, _ := got.Get("price")
			assert.Equal(t, "New", title)
			assert.Equal(t, 2.0, price)

			_, err = repo.Save(ctx, book("Ghost", 1).WithID(424242))
			assert.ErrorIs(t, err, store.ErrNotFound)
			return nil
		}))
	})

	t.Run("DeleteByID", func(t *testing.T) {
		s := setup(t)
		ctx := context.Background()
		require.NoError(t, store.WithinTx(ctx, s, func(tx store.Transaction) error {
			repo := tx.Repository(books)
			r, err := repo.Save(ctx, book("Doomed", 1))
			require.NoError(t, err)
			require.NoError(t, repo.DeleteByID(ctx, *r.ID))
			ok, err := repo.ExistsByID(ctx, *r.ID)
			require.NoError(t, err)
			assert.False(t, ok)
			assert.NoError(t, repo.DeleteByID(ctx, *r.ID), "deleting a missing id is a no-op")
			return nil
		}))
	})

	t.Run("RollbackDiscardsWrites", func(t *testing.T) {
		s := setup(t)
		ctx := context.Background()
		tx, err := s.BeginTx(ctx)
		require.NoError(t, err)
		_, err = tx.Repository(books).Save(ctx, book("Phantom", 1))
		require.NoError(t, err)
		require.NoError(t, tx.Rollback())
		assert.ErrorIs(t, tx.Commit(), store.ErrTxDone)

		require.NoError(t, store.WithinTx(ctx, s, func(tx store.Transaction) error {
			all, err := tx.Repository(books).FindAll(ctx)
			require.NoError(t, err)
			assert.Empty(t, all)
			return nil
		}))
	})

	t.Run("KindsAreIsolated", func(t *testing.T) {
		s := setup(t)
		ctx := context.Background()
		require.NoError(t, store.WithinTx(ctx, s, func(tx store.Transaction) error {
			_, err := tx.Repository(books).Save(ctx, book("Only book", 1))
			require.NoError(t, err)
			emp := resource.Record{Fields: []resource.FieldValue{{Name: "name", Value: "Ada"}, {Name: "department", Value: "R&D"}}}
			_, err = tx.Repository(employees).Save(ctx, emp)
			require.NoError(t, err)

			bs, err := tx.Repository(books).FindAll(ctx)
			require.NoError(t, err)
			es, err := tx.Repository(employees).FindAll(ctx)
			require.NoError(t, err)
			assert.Len(t, bs, 1)
			assert.Len(t, es, 1)
			name, _ := es[0].Get("name")
			assert.Equal(t, "Ada", name)
			return nil
		}))
	})

	t.Run("FieldTypesRoundTrip", func(t *testing.T) {
		s := setup(t)
		ctx := context.Background()
		in := resource.Record{Fields: []resource.FieldValue{
			{Name: "label", Value: "widget"},
			{Name: "weight", Value: 1.25},
			{Name: "stock", Value: int64(7)},
			{Name: "active", Value: true},
		}}
		require.NoError(t, store.WithinTx(ctx, s, func(tx store.Transaction) error {
			saved, err := tx.Repository(gadgets).Save(ctx, in)
			require.NoError(t, err)
			got, ok, err := tx.Repository(gadgets).FindByID(ctx, *saved.ID)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, in.Values(), got.Values())
			return nil
		}))
	})

	t.Run("LargeIntegersRoundTrip", func(t *testing.T) {
		s := setup(t)
		ctx := context.Background()
		require.NoError(t, store.WithinTx(ctx, s, func(tx store.Transaction) error {
			repo := tx.Repository(gadgets)
			for _, n := range []int64{9007199254740993, math.MaxInt64, math.MinInt64} {
				in := resource.Record{Fields: []resource.FieldValue{
					{Name: "label", Value: "big"},
					{Name: "weight", Value: 0.5},
					{Name: "stock", Value: n},
					{Name: "active", Value: false},
				}}
				saved, err := repo.Save(ctx, in)
				require.NoError(t, err)
				got, ok, err := repo.FindByID(ctx, *saved.ID)
				require.NoError(t, err)
				require.True(t, ok)
				stock, _ := got.Get("stock")
				assert.Equal(t, n, stock)
			}
			return nil
		}))
	})
}

func fieldNames(r resource.Record) []string {
	out := make([]string, len(r.Fields))
	for i, f := range r.Fields {
		out[i] = f.Name
	}
	return out
}

// RunUsers exercises a UserStore.
func RunUsers(t *testing.T, us store.UserStore) {
	ctx := context.Background()
	u := &store.User{Username: "alice", PasswordHash: "hash", Roles: []string{"USER", "ADMIN"}, Active: true}
	require.NoError(t, us.CreateUser(ctx, u))
	assert.NotEmpty(t, u.ID)
	assert.ErrorIs(t, us.CreateUser(ctx, &store.User{Username: "alice", PasswordHash: "x"}), store.ErrUserAlreadyExists)

	got, err := us.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, "hash", got.PasswordHash)
	assert.Equal(t, []string{"USER", "ADMIN"}, got.Roles)
	assert.True(t, got.Active)

	require.NoError(t, us.CreateUser(ctx, &store.User{Username: "bob", PasswordHash: "h", Roles: []string{"USER"}, Active: true}))
	list, err := us.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "alice", list[0].Username)
	assert.Equal(t, "bob", list[1].Username)

	require.NoError(t, us.DeleteUser(ctx, "bob"))
	assert.ErrorIs(t, us.DeleteUser(ctx, "bob"), store.ErrUserNotFound)
	_, err = us.GetUserByUsername(ctx, "bob")
	assert.ErrorIs(t, err, store.ErrUserNotFound)
}
