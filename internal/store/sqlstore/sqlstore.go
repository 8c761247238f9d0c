// Package sqlstore implements the record and user stores on database/sql.
// Table layouts are derived from resource kinds; the sqlite and postgres
// packages only open the connection and pick a Dialect.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/loykin/curator/internal/resource"
	"github.com/loykin/curator/internal/store"
)

// DB is a store.Store and store.UserStore backed by *sql.DB.
type DB struct {
	db      *sql.DB
	dialect Dialect
	prefix  string
}

// New wraps an open database.
func New(db *sql.DB, d Dialect, tablePrefix string) *DB {
	return &DB{db: db, dialect: d, prefix: tablePrefix}
}

// Open opens driverName/dsn and applies the pool settings of cfg. No
// connection is made until first use; call Ping to fail fast.
func Open(driverName, dsn string, d Dialect, cfg store.Config) (*DB, error) {
	sqlDB, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", d.Name, err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxAge > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxAge)
	}
	return New(sqlDB, d, cfg.TablePrefix), nil
}

// SQL exposes the underlying handle.
func (s *DB) SQL() *sql.DB { return s.db }

func (s *DB) Dialect() Dialect { return s.dialect }

func (s *DB) table(name string) string { return s.prefix + name }

func (s *DB) EnsureSchema(ctx context.Context, kinds []*resource.Kind) error {
	for _, k := range kinds {
		if _, err := s.db.ExecContext(ctx, s.dialect.createTable(s.table(k.Table), k)); err != nil {
			return fmt.Errorf("create table for %s: %w", k.Name, err)
		}
	}
	return nil
}

func (s *DB) BeginTx(ctx context.Context) (store.Transaction, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &Tx{tx: tx, s: s}, nil
}

func (s *DB) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *DB) Close() error { return s.db.Close() }

// Tx is a database/sql transaction.
type Tx struct {
	tx *sql.Tx
	s  *DB
}

func (t *Tx) Repository(kind *resource.Kind) store.Repository {
	return &repository{q: t.tx, d: t.s.dialect, kind: kind, table: quote(t.s.table(kind.Table))}
}

func (t *Tx) Commit() error   { return txErr(t.tx.Commit()) }
func (t *Tx) Rollback() error { return txErr(t.tx.Rollback()) }

func txErr(err error) error {
	if errors.Is(err, sql.ErrTxDone) {
		return store.ErrTxDone
	}
	return err
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type repository struct {
	q     querier
	d     Dialect
	kind  *resource.Kind
	table string // quoted
}

func (r *repository) columns() string {
	cols := make([]string, len(r.kind.Fields))
	for i, f := range r.kind.Fields {
		cols[i] = quote(f.Name)
	}
	return strings.Join(cols, ", ")
}

func (r *repository) selectSQL() string {
	return fmt.Sprintf(`SELECT "id", %s FROM %s`, r.columns(), r.table)
}

type scanner interface {
	Scan(dest ...any) error
}

func (r *repository) scan(row scanner) (resource.Record, error) {
	var id int64
	holders := make([]any, len(r.kind.Fields))
	dest := make([]any, 0, len(holders)+1)
	dest = append(dest, &id)
	for i, f := range r.kind.Fields {
		holders[i] = newHolder(f.Type)
		dest = append(dest, holders[i])
	}
	if err := row.Scan(dest...); err != nil {
		return resource.Record{}, err
	}
	rec := resource.Record{ID: &id, Fields: make([]resource.FieldValue, len(holders))}
	for i, f := range r.kind.Fields {
		rec.Fields[i] = resource.FieldValue{Name: f.Name, Value: holderValue(holders[i])}
	}
	return rec, nil
}

func (r *repository) FindAll(ctx context.Context) ([]resource.Record, error) {
	rows, err := r.q.QueryContext(ctx, r.selectSQL()+` ORDER BY "id"`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	out := make([]resource.Record, 0)
	for rows.Next() {
		rec, err := r.scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r *repository) FindByID(ctx context.Context, id int64) (resource.Record, bool, error) {
	row := r.q.QueryRowContext(ctx, r.selectSQL()+` WHERE "id" = `+r.d.bindvar(1), id)
	rec, err := r.scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return resource.Record{}, false, nil
	}
	if err != nil {
		return resource.Record{}, false, err
	}
	return rec, true, nil
}

func (r *repository) ExistsByID(ctx context.Context, id int64) (bool, error) {
	var ok bool
	q := fmt.Sprintf(`SELECT EXISTS(SELECT 1 FROM %s WHERE "id" = %s)`, r.table, r.d.bindvar(1))
	if err := r.q.QueryRowContext(ctx, q, id).Scan(&ok); err != nil {
		return false, err
	}
	return ok, nil
}

func (r *repository) values(rec resource.Record) []any {
	zero := r.kind.New()
	args := make([]any, len(r.kind.Fields))
	for i, f := range r.kind.Fields {
		v, ok := rec.Get(f.Name)
		if !ok || v == nil {
			v = zero.Fields[i].Value
		}
		args[i] = v
	}
	return args
}

func (r *repository) Save(ctx context.Context, rec resource.Record) (resource.Record, error) {
	args := r.values(rec)
	if rec.ID == nil {
		q := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s) RETURNING "id"`,
			r.table, r.columns(), strings.Join(r.d.binds(1, len(args)), ", "))
		var id int64
		if err := r.q.QueryRowContext(ctx, q, args...).Scan(&id); err != nil {
			return resource.Record{}, err
		}
		return rec.WithID(id), nil
	}

	sets := make([]string, len(r.kind.Fields))
	for i, f := range r.kind.Fields {
		sets[i] = quote(f.Name) + " = " + r.d.bindvar(i+1)
	}
	q := fmt.Sprintf(`UPDATE %s SET %s WHERE "id" = %s`, r.table, strings.Join(sets, ", "), r.d.bindvar(len(args)+1))
	res, err := r.q.ExecContext(ctx, q, append(args, *rec.ID)...)
	if err != nil {
		return resource.Record{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return resource.Record{}, err
	}
	if n == 0 {
		return resource.Record{}, store.ErrNotFound
	}
	return rec.Clone(), nil
}

func (r *repository) DeleteByID(ctx context.Context, id int64) error {
	_, err := r.q.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE "id" = %s`, r.table, r.d.bindvar(1)), id)
	return err
}

func newHolder(t resource.FieldType) any {
	switch t {
	case resource.TypeFloat:
		return new(sql.NullFloat64)
	case resource.TypeInt:
		return new(sql.NullInt64)
	case resource.TypeBool:
		return new(sql.NullBool)
	default:
		return new(sql.NullString)
	}
}

func holderValue(h any) any {
	switch v := h.(type) {
	case *sql.NullFloat64:
		return v.Float64
	case *sql.NullInt64:
		return v.Int64
	case *sql.NullBool:
		return v.Bool
	case *sql.NullString:
		return v.String
	}
	return nil
}
