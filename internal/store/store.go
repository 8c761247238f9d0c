package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/loykin/curator/internal/resource"
)

var (
	ErrNotFound = errors.New("record not found")
	ErrTxDone   = errors.New("transaction already finished")
	ErrClosed   = errors.New("store closed")
)

// Repository is the persistence port for one resource kind. Records are
// keyed by their int64 identity. A Repository is only valid inside the
// transaction that produced it.
type Repository interface {
	FindAll(ctx context.Context) ([]resource.Record, error)
	// FindByID reports found=false without error when no record has id.
	FindByID(ctx context.Context, id int64) (resource.Record, bool, error)
	ExistsByID(ctx context.Context, id int64) (bool, error)
	// Save inserts when rec.ID is nil and assigns the new identity;
	// otherwise it replaces the stored fields and returns ErrNotFound
	// when the row is gone.
	Save(ctx context.Context, rec resource.Record) (resource.Record, error)
	// DeleteByID is a no-op for an unknown id.
	DeleteByID(ctx context.Context, id int64) error
}

// Store is a transactional record store.
type Store interface {
	// EnsureSchema creates missing tables for kinds. It never alters
	// existing ones.
	EnsureSchema(ctx context.Context, kinds []*resource.Kind) error
	BeginTx(ctx context.Context) (Transaction, error)
	Ping(ctx context.Context) error
	Close() error
}

// Transaction is one unit of work. Exactly one of Commit or Rollback ends
// it; later calls return ErrTxDone.
type Transaction interface {
	Repository(kind *resource.Kind) Repository
	Commit() error
	Rollback() error
}

// WithinTx runs fn in a new transaction. It commits when fn returns nil and
// rolls back when fn returns an error or panics.
func WithinTx(ctx context.Context, s Store, fn func(tx Transaction) error) (err error) {
	tx, err := s.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, ErrTxDone) {
			return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
