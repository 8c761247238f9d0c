// Package memory is an in-process store used for development and tests.
// Transactions are serialized: one transaction holds the store until it
// commits or rolls back, and writes become visible only on commit.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/loykin/curator/internal/resource"
	"github.com/loykin/curator/internal/store"
)

type table struct {
	nextID int64
	rows   map[int64]resource.Record
}

func (t *table) clone() *table {
	c := &table{nextID: t.nextID, rows: make(map[int64]resource.Record, len(t.rows))}
	for id, r := range t.rows {
		c.rows[id] = r
	}
	return c
}

// Store keeps records and users in maps.
type Store struct {
	sem    chan struct{} // held by the open transaction
	tables map[string]*table
	closed atomic.Bool

	usersMu sync.RWMutex
	users   map[string]*store.User
}

func New() *Store {
	return &Store{
		sem:    make(chan struct{}, 1),
		tables: make(map[string]*table),
		users:  make(map[string]*store.User),
	}
}

func (s *Store) EnsureSchema(ctx context.Context, kinds []*resource.Kind) error {
	tx, err := s.BeginTx(ctx)
	if err != nil {
		return err
	}
	mt := tx.(*txn)
	for _, k := range kinds {
		mt.table(k.Table, true)
	}
	return tx.Commit()
}

// BeginTx waits until no other transaction is open or ctx is done.
func (s *Store) BeginTx(ctx context.Context) (store.Transaction, error) {
	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if s.closed.Load() {
		<-s.sem
		return nil, store.ErrClosed
	}
	return &txn{s: s, dirty: make(map[string]*table)}, nil
}

func (s *Store) Ping(context.Context) error {
	if s.closed.Load() {
		return store.ErrClosed
	}
	return nil
}

func (s *Store) Close() error {
	s.sem <- struct{}{}
	s.closed.Store(true)
	<-s.sem
	return nil
}

type txn struct {
	s     *Store
	dirty map[string]*table // copy-on-write tables touched by this tx
	done  bool
}

// table returns the view of name for this tx; write=true makes a private
// copy first.
func (t *txn) table(name string, write bool) *table {
	if d, ok := t.dirty[name]; ok {
		return d
	}
	base, ok := t.s.tables[name]
	if !ok {
		base = &table{nextID: 1, rows: map[int64]resource.Record{}}
		if !write {
			return base
		}
		t.dirty[name] = base
		return base
	}
	if !write {
		return base
	}
	c := base.clone()
	t.dirty[name] = c
	return c
}

func (t *txn) Repository(kind *resource.Kind) store.Repository {
	return &repository{tx: t, name: kind.Table}
}

func (t *txn) Commit() error {
	if t.done {
		return store.ErrTxDone
	}
	for name, tb := range t.dirty {
		t.s.tables[name] = tb
	}
	t.finish()
	return nil
}

func (t *txn) Rollback() error {
	if t.done {
		return store.ErrTxDone
	}
	t.finish()
	return nil
}

func (t *txn) finish() {
	t.done = true
	t.dirty = nil
	<-t.s.sem
}

type repository struct {
	tx   *txn
	name string
}

func (r *repository) live() error {
	if r.tx.done {
		return store.ErrTxDone
	}
	return nil
}

func (r *repository) FindAll(ctx context.Context) ([]resource.Record, error) {
	if err := r.live(); err != nil {
		return nil, err
	}
	tb := r.tx.table(r.name, false)
	ids := make([]int64, 0, len(tb.rows))
	for id := range tb.rows {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]resource.Record, 0, len(ids))
	for _, id := range ids {
		out = append(out, tb.rows[id].Clone())
	}
	return out, nil
}

func (r *repository) FindByID(ctx context.Context, id int64) (resource.Record, bool, error) {
	if err := r.live(); err != nil {
		return resource.Record{}, false, err
	}
	rec, ok := r.tx.table(r.name, false).rows[id]
	if !ok {
		return resource.Record{}, false, nil
	}
	return rec.Clone(), true, nil
}

func (r *repository) ExistsByID(ctx context.Context, id int64) (bool, error) {
	if err := r.live(); err != nil {
		return false, err
	}
	_, ok := r.tx.table(r.name, false).rows[id]
	return ok, nil
}

func (r *repository) Save(ctx context.Context, rec resource.Record) (resource.Record, error) {
	if err := r.live(); err != nil {
		return resource.Record{}, err
	}
	tb := r.tx.table(r.name, true)
	if rec.ID == nil {
		rec = rec.WithID(tb.nextID)
		tb.nextID++
	} else if _, ok := tb.rows[*rec.ID]; !ok {
		return resource.Record{}, store.ErrNotFound
	}
	tb.rows[*rec.ID] = rec.Clone()
	return rec.Clone(), nil
}

func (r *repository) DeleteByID(ctx context.Context, id int64) error {
	if err := r.live(); err != nil {
		return err
	}
	if _, ok := r.tx.table(r.name, false).rows[id]; !ok {
		return nil
	}
	delete(r.tx.table(r.name, true).rows, id)
	return nil
}

// user store

func (s *Store) CreateUser(ctx context.Context, u *store.User) error {
	key := strings.ToLower(u.Username)
	s.usersMu.Lock()
	defer s.usersMu.Unlock()
	if _, ok := s.users[key]; ok {
		return store.ErrUserAlreadyExists
	}
	now := time.Now().UTC()
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	cp := *u
	cp.Roles = append([]string(nil), u.Roles...)
	s.users[key] = &cp
	return nil
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (*store.User, error) {
	s.usersMu.RLock()
	defer s.usersMu.RUnlock()
	u, ok := s.users[strings.ToLower(username)]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	cp := *u
	cp.Roles = append([]string(nil), u.Roles...)
	return &cp, nil
}

func (s *Store) ListUsers(ctx context.Context) ([]*store.User, error) {
	s.usersMu.RLock()
	defer s.usersMu.RUnlock()
	out := make([]*store.User, 0, len(s.users))
	for _, u := range s.users {
		cp := *u
		cp.Roles = append([]string(nil), u.Roles...)
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (s *Store) DeleteUser(ctx context.Context, username string) error {
	key := strings.ToLower(username)
	s.usersMu.Lock()
	defer s.usersMu.Unlock()
	if _, ok := s.users[key]; !ok {
		return store.ErrUserNotFound
	}
	delete(s.users, key)
	return nil
}
