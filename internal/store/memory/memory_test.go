package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loykin/curator/internal/resource"
	"github.com/loykin/curator/internal/store"
	"github.com/loykin/curator/internal/store/storetest"
)

func TestConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		s := New()
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestUsers(t *testing.T) {
	storetest.RunUsers(t, New())
}

func TestBeginTxHonoursContext(t *testing.T) {
	s := New()
	tx, err := s.BeginTx(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = s.BeginTx(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, tx.Rollback())
	tx2, err := s.BeginTx(context.Background())
	require.NoError(t, err)
	require.NoError(t, tx2.Commit())
}

func TestConcurrentCreatesGetDistinctIDs(t *testing.T) {
	s := New()
	kind := resource.Book()
	ctx := context.Background()
	require.NoError(t, s.EnsureSchema(ctx, []*resource.Kind{kind}))

	const n = 50
	ids := make(chan int64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = store.WithinTx(ctx, s, func(tx store.Transaction) error {
				r, err := tx.Repository(kind).Save(ctx, kind.New())
				if err == nil {
					ids <- *r.ID
				}
				return err
			})
		}()
	}
	wg.Wait()
	close(ids)

	seen := map[int64]bool{}
	for id := range ids {
		assert.False(t, seen[id], "duplicate id %d", id)
		seen[id] = true
	}
	assert.Len(t, seen, n)
}

func TestClosedStore(t *testing.T) {
	s := New()
	require.NoError(t, s.Close())
	_, err := s.BeginTx(context.Background())
	assert.ErrorIs(t, err, store.ErrClosed)
	assert.ErrorIs(t, s.Ping(context.Background()), store.ErrClosed)
}

func TestPingDuringClose(t *testing.T) {
	s := New()
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = s.Ping(ctx)
			}
		}()
	}
	require.NoError(t, s.Close())
	wg.Wait()
	assert.ErrorIs(t, s.Ping(ctx), store.ErrClosed)
}
