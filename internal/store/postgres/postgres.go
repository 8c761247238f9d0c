package postgres

import (
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/loykin/curator/internal/store"
	"github.com/loykin/curator/internal/store/sqlstore"
)

// New opens a PostgreSQL database through the pgx stdlib driver.
func New(dsn string) (*sqlstore.DB, error) {
	return NewWithConfig(store.Config{Type: "postgres", DSN: dsn})
}

// NewWithConfig opens the database described by cfg with pool defaults
// suited to a server.
func NewWithConfig(cfg store.Config) (*sqlstore.DB, error) {
	if cfg.MaxOpenConns <= 0 {
		cfg.MaxOpenConns = 25
	}
	if cfg.MaxIdleConns <= 0 {
		cfg.MaxIdleConns = 5
	}
	if cfg.ConnMaxAge <= 0 {
		cfg.ConnMaxAge = 5 * time.Minute
	}
	return sqlstore.Open("pgx", cfg.PostgresDSN(), sqlstore.Postgres, cfg)
}
