// Package service implements the resource lifecycle: list, get, create,
// update and delete for one kind, each inside a store transaction.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/loykin/curator/internal/apperr"
	"github.com/loykin/curator/internal/history"
	"github.com/loykin/curator/internal/metrics"
	"github.com/loykin/curator/internal/resource"
	"github.com/loykin/curator/internal/store"
)

// Operation names, used in logs and metric labels.
const (
	OpList   = "list"
	OpGet    = "get"
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
)

// Service runs lifecycle operations for a single kind.
type Service struct {
	kind    *resource.Kind
	store   store.Store
	logger  *slog.Logger
	history *history.Dispatcher
}

type Option func(*Service)

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithHistory sends committed mutations to d.
func WithHistory(d *history.Dispatcher) Option {
	return func(s *Service) { s.history = d }
}

func New(kind *resource.Kind, st store.Store, opts ...Option) *Service {
	s := &Service{kind: kind, store: st, logger: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	s.logger = s.logger.With("kind", kind.Name)
	return s
}

func (s *Service) Kind() *resource.Kind { return s.kind }

// List returns every record in store order.
func (s *Service) List(ctx context.Context) (out []resource.Record, err error) {
	defer s.observe(OpList, time.Now(), &err)
	err = store.WithinTx(ctx, s.store, func(tx store.Transaction) error {
		recs, err := tx.Repository(s.kind).FindAll(ctx)
		out = recs
		return err
	})
	if err != nil {
		return nil, s.fail(OpList, 0, err)
	}
	if out == nil {
		out = []resource.Record{}
	}
	return out, nil
}

// Get checks existence and then fetches. A concurrent delete between the
// two calls is reported as not found as well.
func (s *Service) Get(ctx context.Context, id int64) (out resource.Record, err error) {
	defer s.observe(OpGet, time.Now(), &err)
	err = store.WithinTx(ctx, s.store, func(tx store.Transaction) error {
		repo := tx.Repository(s.kind)
		exists, err := repo.ExistsByID(ctx, id)
		if err != nil {
			return err
		}
		if !exists {
			return s.notFound(id)
		}
		rec, found, err := repo.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if !found {
			return s.notFound(id)
		}
		out = rec
		return nil
	})
	if err != nil {
		return resource.Record{}, s.fail(OpGet, id, err)
	}
	return out, nil
}

// Create inserts candidate, which must already be validated. Any id it
// carries is ignored.
func (s *Service) Create(ctx context.Context, candidate resource.Record) (out resource.Record, err error) {
	defer s.observe(OpCreate, time.Now(), &err)
	err = store.WithinTx(ctx, s.store, func(tx store.Transaction) error {
		saved, err := tx.Repository(s.kind).Save(ctx, candidate.WithoutID())
		out = saved
		return err
	})
	if err != nil {
		return resource.Record{}, s.fail(OpCreate, 0, err)
	}
	s.emit(ctx, history.EventCreated, *out.ID, &out)
	return out, nil
}

// Update overwrites every field of the stored record with incoming. The
// stored id is kept.
func (s *Service) Update(ctx context.Context, id int64, incoming resource.Record) (out resource.Record, err error) {
	defer s.observe(OpUpdate, time.Now(), &err)
	err = store.WithinTx(ctx, s.store, func(tx store.Transaction) error {
		repo := tx.Repository(s.kind)
		existing, found, err := repo.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if !found {
			return s.notFound(id)
		}
		saved, err := repo.Save(ctx, existing.Assign(incoming))
		out = saved
		return err
	})
	if err != nil {
		return resource.Record{}, s.fail(OpUpdate, id, err)
	}
	s.emit(ctx, history.EventUpdated, id, &out)
	return out, nil
}

func (s *Service) Delete(ctx context.Context, id int64) (err error) {
	defer s.observe(OpDelete, time.Now(), &err)
	err = store.WithinTx(ctx, s.store, func(tx store.Transaction) error {
		repo := tx.Repository(s.kind)
		exists, err := repo.ExistsByID(ctx, id)
		if err != nil {
			return err
		}
		if !exists {
			return s.notFound(id)
		}
		return repo.DeleteByID(ctx, id)
	})
	if err != nil {
		return s.fail(OpDelete, id, err)
	}
	s.emit(ctx, history.EventDeleted, id, nil)
	return nil
}

func (s *Service) notFound(id int64) error {
	return apperr.NotFound(s.kind.NotFoundMessage(id))
}

// fail turns err into an *apperr.Error. Storage failures are logged with
// their cause and replaced by a generic message.
func (s *Service) fail(op string, id int64, err error) error {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return ae
	}
	if errors.Is(err, store.ErrNotFound) {
		return s.notFound(id)
	}
	s.logger.Error("resource operation failed", "op", op, "id", id, "error", err)
	return apperr.DataAccess(s.dataAccessMessage(op), err)
}

func (s *Service) dataAccessMessage(op string) string {
	noun := s.kind.Noun()
	var what string
	switch op {
	case OpList:
		what = "fetching " + noun + "s"
	case OpGet:
		what = "fetching the " + noun
	case OpCreate:
		what = "adding the " + noun
	case OpUpdate:
		what = "updating the " + noun
	case OpDelete:
		what = "deleting the " + noun
	default:
		what = "accessing " + noun + "s"
	}
	return fmt.Sprintf("A database error occurred while %s.", what)
}

func (s *Service) observe(op string, start time.Time, errp *error) {
	outcome := metrics.OutcomeOK
	if *errp != nil {
		outcome = string(apperr.KindOf(*errp))
	}
	metrics.ObserveOperation(s.kind.Name, op, outcome, time.Since(start))
}

func (s *Service) emit(ctx context.Context, t history.EventType, id int64, rec *resource.Record) {
	if s.history.Len() == 0 {
		return
	}
	s.history.Emit(ctx, history.NewEvent(t, s.kind.Name, id, history.ActorFrom(ctx), rec))
}
