// Package gormstore keeps every resource kind in one table through GORM.
// Each row holds the kind's table name and the business fields as a JSON
// payload, so new kinds need no DDL.
package gormstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/loykin/curator/internal/resource"
	"github.com/loykin/curator/internal/store"
)

type resourceRow struct {
	ID        int64     `gorm:"primaryKey;autoIncrement"`
	Kind      string    `gorm:"size:64;not null"`
	Payload   string    `gorm:"type:jsonb;not null"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// Store is a store.Store on top of *gorm.DB.
type Store struct {
	db    *gorm.DB
	table string
}

// Open connects to PostgreSQL with the GORM postgres driver.
func Open(cfg store.Config) (*Store, error) {
	db, err := gorm.Open(postgres.Open(cfg.PostgresDSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open gorm postgres: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
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
	return New(db, cfg.TablePrefix), nil
}

// New wraps an existing GORM handle. Rows live in <prefix>resources.
func New(db *gorm.DB, tablePrefix string) *Store {
	return &Store{db: db, table: tablePrefix + "resources"}
}

// EnsureSchema migrates the shared resources table; kinds need no tables
// of their own.
func (s *Store) EnsureSchema(ctx context.Context, _ []*resource.Kind) error {
	db := s.db.WithContext(ctx)
	if err := db.Table(s.table).AutoMigrate(&resourceRow{}); err != nil {
		return err
	}
	return db.Exec(fmt.Sprintf(`CREATE INDEX IF NOT EXISTS "%s_kind_idx" ON "%s" ("kind", "id")`, s.table, s.table)).Error
}

func (s *Store) BeginTx(ctx context.Context) (store.Transaction, error) {
	tx := s.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}
	return &txn{db: tx, table: s.table}, nil
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

type txn struct {
	db    *gorm.DB
	table string
	done  bool
}

func (t *txn) Repository(kind *resource.Kind) store.Repository {
	return &repository{db: t.db, table: t.table, kind: kind}
}

func (t *txn) Commit() error {
	if t.done {
		return store.ErrTxDone
	}
	t.done = true
	return t.db.Commit().Error
}

func (t *txn) Rollback() error {
	if t.done {
		return store.ErrTxDone
	}
	t.done = true
	return t.db.Rollback().Error
}

type repository struct {
	db    *gorm.DB
	table string
	kind  *resource.Kind
}

func (r *repository) scoped(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Table(r.table).Where("kind = ?", r.kind.Table)
}

func (r *repository) toRecord(row resourceRow) (resource.Record, error) {
	var values map[string]any
	dec := json.NewDecoder(strings.NewReader(row.Payload))
	dec.UseNumber()
	if err := dec.Decode(&values); err != nil {
		return resource.Record{}, fmt.Errorf("decode %s %d: %w", r.kind.Name, row.ID, err)
	}
	return r.kind.Restore(&row.ID, values)
}

func (r *repository) FindAll(ctx context.Context) ([]resource.Record, error) {
	var rows []resourceRow
	if err := r.scoped(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]resource.Record, 0, len(rows))
	for _, row := range rows {
		rec, err := r.toRecord(row)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (r *repository) FindByID(ctx context.Context, id int64) (resource.Record, bool, error) {
	var row resourceRow
	err := r.scoped(ctx).Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return resource.Record{}, false, nil
	}
	if err != nil {
		return resource.Record{}, false, err
	}
	rec, err := r.toRecord(row)
	if err != nil {
		return resource.Record{}, false, err
	}
	return rec, true, nil
}

func (r *repository) ExistsByID(ctx context.Context, id int64) (bool, error) {
	var n int64
	if err := r.scoped(ctx).Where("id = ?", id).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *repository) Save(ctx context.Context, rec resource.Record) (resource.Record, error) {
	payload, err := json.Marshal(rec.Values())
	if err != nil {
		return resource.Record{}, err
	}
	now := time.Now().UTC()
	if rec.ID == nil {
		row := resourceRow{Kind: r.kind.Table, Payload: string(payload), CreatedAt: now, UpdatedAt: now}
		if err := r.db.WithContext(ctx).Table(r.table).Create(&row).Error; err != nil {
			return resource.Record{}, err
		}
		return rec.WithID(row.ID), nil
	}
	res := r.scoped(ctx).Where("id = ?", *rec.ID).
		Updates(map[string]any{"payload": string(payload), "updated_at": now})
	if res.Error != nil {
		return resource.Record{}, res.Error
	}
	if res.RowsAffected == 0 {
		return resource.Record{}, store.ErrNotFound
	}
	return rec.Clone(), nil
}

func (r *repository) DeleteByID(ctx context.Context, id int64) error {
	return r.scoped(ctx).Where("id = ?", id).Delete(&resourceRow{}).Error
}
