// Package factory wires the concrete store adapters into the store
// registry. Import it for its side effect or call its functions directly.
package factory

import (
	"context"
	"errors"
	"strings"

	"github.com/loykin/curator/internal/store"
	"github.com/loykin/curator/internal/store/gormstore"
	"github.com/loykin/curator/internal/store/memory"
	pg "github.com/loykin/curator/internal/store/postgres"
	sq "github.com/loykin/curator/internal/store/sqlite"
)

func init() {
	store.RegisterStoreType("memory", func(store.Config) (store.Store, error) {
		return memory.New(), nil
	})
	store.RegisterStoreType("sqlite", func(c store.Config) (store.Store, error) {
		return sq.NewWithConfig(c)
	})
	store.RegisterStoreType("postgres", func(c store.Config) (store.Store, error) {
		return pg.NewWithConfig(c)
	})
	store.RegisterStoreType("postgresql", func(c store.Config) (store.Store, error) {
		return pg.NewWithConfig(c)
	})
	store.RegisterStoreType("gorm", func(c store.Config) (store.Store, error) {
		return gormstore.Open(c)
	})

	store.RegisterUserStoreType("memory", func(store.Config) (store.UserStore, error) {
		return memory.New(), nil
	})
	store.RegisterUserStoreType("sqlite", func(c store.Config) (store.UserStore, error) {
		db, err := sq.NewWithConfig(c)
		if err != nil {
			return nil, err
		}
		if err := db.EnsureUserSchema(context.Background()); err != nil {
			_ = db.Close()
			return nil, err
		}
		return db, nil
	})
	pgUsers := func(c store.Config) (store.UserStore, error) {
		db, err := pg.NewWithConfig(c)
		if err != nil {
			return nil, err
		}
		if err := db.EnsureUserSchema(context.Background()); err != nil {
			_ = db.Close()
			return nil, err
		}
		return db, nil
	}
	store.RegisterUserStoreType("postgres", pgUsers)
	store.RegisterUserStoreType("postgresql", pgUsers)
}

// New creates the record store described by cfg.
func New(cfg store.Config) (store.Store, error) {
	return store.NewFromConfig(cfg)
}

// NewUserStore creates the user store described by cfg.
func NewUserStore(cfg store.Config) (store.UserStore, error) {
	return store.NewUserStoreFromConfig(cfg)
}

// NewFromDSN selects a store implementation based on DSN.
// Supported:
//   - memory:   "memory://" or "memory"
//   - sqlite:   "sqlite://<path>" or a bare filepath
//   - postgres: "postgres://..." or "postgresql://..."
//   - gorm:     "gorm+postgres://..." (postgres through GORM)
func NewFromDSN(dsn string) (store.Store, error) {
	cfg, err := ConfigFromDSN(dsn)
	if err != nil {
		return nil, err
	}
	return store.NewFromConfig(cfg)
}

// ConfigFromDSN maps a DSN to a store config.
func ConfigFromDSN(dsn string) (store.Config, error) {
	d := strings.TrimSpace(dsn)
	ld := strings.ToLower(d)
	switch {
	case ld == "":
		return store.Config{}, errors.New("empty DSN")
	case ld == "memory" || ld == "memory://":
		return store.Config{Type: "memory"}, nil
	case strings.HasPrefix(ld, "gorm+postgres://"), strings.HasPrefix(ld, "gorm+postgresql://"):
		return store.Config{Type: "gorm", DSN: d[len("gorm+"):]}, nil
	case strings.HasPrefix(ld, "postgres://"), strings.HasPrefix(ld, "postgresql://"):
		return store.Config{Type: "postgres", DSN: d}, nil
	case strings.HasPrefix(ld, "sqlite://"):
		return store.Config{Type: "sqlite", Path: d[len("sqlite://"):]}, nil
	}
	return store.Config{Type: "sqlite", Path: d}, nil
}
