package service

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loykin/curator/internal/apperr"
	"github.com/loykin/curator/internal/history"
	"github.com/loykin/curator/internal/resource"
	"github.com/loykin/curator/internal/store"
	"github.com/loykin/curator/internal/store/memory"
)

func decode(t *testing.T, k *resource.Kind, body string) resource.Record {
	t.Helper()
	rec, err := k.DecodeJSON([]byte(body))
	require.NoError(t, err)
	return rec
}

func newBooks(t *testing.T, opts ...Option) *Service {
	t.Helper()
	st := memory.New()
	t.Cleanup(func() { _ = st.Close() })
	return New(resource.Book(), st, opts...)
}

func TestCreateThenGet(t *testing.T) {
	svc := newBooks(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, decode(t, svc.Kind(), `{"title":"Algorithms","author":"Cormen","price":89.5,"year":2009}`))
	require.NoError(t, err)
	require.NotNil(t, created.ID)

	got, err := svc.Get(ctx, *created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, got)
}

func TestCreateIgnoresCandidateID(t *testing.T) {
	svc := newBooks(t)
	ctx := context.Background()

	first, err := svc.Create(ctx, decode(t, svc.Kind(), `{"title":"A","author":"B","price":1,"year":1}`))
	require.NoError(t, err)

	candidate := decode(t, svc.Kind(), `{"title":"C","author":"D","price":2,"year":2}`).WithID(*first.ID)
	second, err := svc.Create(ctx, candidate)
	require.NoError(t, err)
	assert.NotEqual(t, *first.ID, *second.ID)

	all, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestMissingIDIsNotFound(t *testing.T) {
	svc := newBooks(t)
	ctx := context.Background()
	body := decode(t, svc.Kind(), `{"title":"A","author":"B","price":1,"year":1}`)

	_, err := svc.Get(ctx, 99)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	assert.EqualError(t, err, "Book with ID 99 not found")

	_, err = svc.Update(ctx, 99, body)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	err = svc.Delete(ctx, 99)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	all, err := svc.List(ctx)
	require.NoError(t, err)
	assert.NotNil(t, all)
	assert.Empty(t, all)
}

func TestUpdateOverwritesAndKeepsID(t *testing.T) {
	svc := newBooks(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, decode(t, svc.Kind(), `{"title":"Old","author":"Someone","price":10,"year":1990}`))
	require.NoError(t, err)
	id := *created.ID

	incoming := decode(t, svc.Kind(), `{"id":500,"title":"New","author":"Other","price":20,"year":2020}`)
	updated, err := svc.Update(ctx, id, incoming)
	require.NoError(t, err)
	require.NotNil(t, updated.ID)
	assert.Equal(t, id, *updated.ID)

	title, _ := updated.Get("title")
	assert.Equal(t, "New", title)
	year, _ := updated.Get("year")
	assert.Equal(t, int64(2020), year)

	got, err := svc.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, updated, got)
}

func TestDeleteThenGet(t *testing.T) {
	svc := newBooks(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, decode(t, svc.Kind(), `{"title":"A","author":"B","price":1,"year":1}`))
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, *created.ID))

	_, err = svc.Get(ctx, *created.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

type sinkFunc func(history.Event)

func (f sinkFunc) Send(_ context.Context, e history.Event) error { f(e); return nil }

func TestHistoryAfterCommit(t *testing.T) {
	var (
		mu     sync.Mutex
		events []history.Event
	)
	sink := sinkFunc(func(e history.Event) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	})
	svc := newBooks(t, WithHistory(history.NewDispatcher(nil, sink)))
	ctx := history.WithActor(context.Background(), "alice")

	created, err := svc.Create(ctx, decode(t, svc.Kind(), `{"title":"A","author":"B","price":1,"year":1}`))
	require.NoError(t, err)
	_, err = svc.Update(ctx, *created.ID, decode(t, svc.Kind(), `{"title":"A2","author":"B","price":1,"year":1}`))
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, *created.ID))

	// failures emit nothing
	_ = svc.Delete(ctx, *created.ID)
	_, _ = svc.Get(ctx, *created.ID)

	require.Len(t, events, 3)
	assert.Equal(t, history.EventCreated, events[0].Type)
	assert.Equal(t, history.EventUpdated, events[1].Type)
	assert.Equal(t, history.EventDeleted, events[2].Type)
	for _, e := range events {
		assert.Equal(t, "Book", e.Kind)
		assert.Equal(t, *created.ID, e.ResourceID)
		assert.Equal(t, "alice", e.Actor)
	}
	require.NotNil(t, events[1].Record)
	title, _ := events[1].Record.Get("title")
	assert.Equal(t, "A2", title)
	assert.Nil(t, events[2].Record)
}

// failingStore hands out repositories whose calls all fail.
type failingStore struct {
	err        error
	rolledBack int
	committed  int
}

func (f *failingStore) EnsureSchema(context.Context, []*resource.Kind) error { return nil }
func (f *failingStore) BeginTx(context.Context) (store.Transaction, error) {
	return &failingTx{s: f}, nil
}
func (f *failingStore) Ping(context.Context) error { return f.err }
func (f *failingStore) Close() error               { return nil }

type failingTx struct{ s *failingStore }

func (t *failingTx) Repository(*resource.Kind) store.Repository { return failingRepo{err: t.s.err} }
func (t *failingTx) Commit() error                               { t.s.committed++; return nil }
func (t *failingTx) Rollback() error                             { t.s.rolledBack++; return nil }

type failingRepo struct{ err error }

func (r failingRepo) FindAll(context.Context) ([]resource.Record, error) { return nil, r.err }
func (r failingRepo) FindByID(context.Context, int64) (resource.Record, bool, error) {
	return resource.Record{}, false, r.err
}
func (r failingRepo) ExistsByID(context.Context, int64) (bool, error) { return false, r.err }
func (r failingRepo) Save(context.Context, resource.Record) (resource.Record, error) {
	return resource.Record{}, r.err
}
func (r failingRepo) DeleteByID(context.Context, int64) error { return r.err }

func TestStorageFailuresAreHidden(t *testing.T) {
	cause := errors.New("connection refused: host=db-internal password=hunter2")
	fs := &failingStore{err: cause}
	var logs bytes.Buffer
	svc := New(resource.Book(), fs, WithLogger(slog.New(slog.NewTextHandler(&logs, nil))))
	ctx := context.Background()
	body := decode(t, svc.Kind(), `{"title":"A","author":"B","price":1,"year":1}`)

	cases := []struct {
		name string
		call func() error
		msg  string
	}{
		{"list", func() error { _, err := svc.List(ctx); return err }, "A database error occurred while fetching books."},
		{"get", func() error { _, err := svc.Get(ctx, 1); return err }, "A database error occurred while fetching the book."},
		{"create", func() error { _, err := svc.Create(ctx, body); return err }, "A database error occurred while adding the book."},
		{"update", func() error { _, err := svc.Update(ctx, 1, body); return err }, "A database error occurred while updating the book."},
		{"delete", func() error { return svc.Delete(ctx, 1) }, "A database error occurred while deleting the book."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.call()
			require.Error(t, err)
			ae := apperr.From(err)
			assert.Equal(t, apperr.KindDataAccess, ae.Kind)
			assert.Equal(t, tc.msg, ae.Message)
			assert.ErrorIs(t, err, cause)

			_, resp := apperr.Translate(err)
			assert.NotContains(t, resp.Message, "hunter2")
		})
	}
	assert.Equal(t, 5, fs.rolledBack)
	assert.Equal(t, 0, fs.committed)
	assert.Contains(t, logs.String(), "resource operation failed")
	assert.Contains(t, logs.String(), "op=delete")
}

func TestSaveOnVanishedRowIsNotFound(t *testing.T) {
	fs := &failingStore{err: store.ErrNotFound}
	svc := New(resource.Book(), fs)
	_, err := svc.Create(context.Background(), resource.Book().New())
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestEmployeeMessages(t *testing.T) {
	svc := New(resource.Employee(), &failingStore{err: errors.New("x")})
	_, err := svc.List(context.Background())
	assert.EqualError(t, apperr.From(err), "A database error occurred while fetching employees.: x")
	assert.Equal(t, "A database error occurred while fetching employees.", apperr.From(err).Message)
}
