package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/loykin/curator/internal/store"
)

const usersTable = "users"

// EnsureUserSchema creates the users table.
func (s *DB) EnsureUserSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, s.dialect.createUsers(s.table(usersTable))); err != nil {
		return fmt.Errorf("create users table: %w", err)
	}
	return nil
}

func (s *DB) usersSQL() string { return quote(s.table(usersTable)) }

func (s *DB) CreateUser(ctx context.Context, u *store.User) error {
	if _, err := s.GetUserByUsername(ctx, u.Username); err == nil {
		return store.ErrUserAlreadyExists
	} else if !errors.Is(err, store.ErrUserNotFound) {
		return err
	}
	roles, err := json.Marshal(u.Roles)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	q := fmt.Sprintf(`INSERT INTO %s ("id", "username", "password_hash", "roles", "active", "created_at", "updated_at") VALUES (%s)`,
		s.usersSQL(), strings.Join(s.dialect.binds(1, 7), ", "))
	_, err = s.db.ExecContext(ctx, q, u.ID, strings.ToLower(u.Username), u.PasswordHash, string(roles), u.Active, u.CreatedAt, u.UpdatedAt)
	if err != nil && isUniqueViolation(err) {
		return store.ErrUserAlreadyExists
	}
	return err
}

func (s *DB) GetUserByUsername(ctx context.Context, username string) (*store.User, error) {
	q := fmt.Sprintf(`SELECT "id", "username", "password_hash", "roles", "active", "created_at", "updated_at" FROM %s WHERE "username" = %s`,
		s.usersSQL(), s.dialect.bindvar(1))
	u, err := scanUser(s.db.QueryRowContext(ctx, q, strings.ToLower(username)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrUserNotFound
	}
	return u, err
}

func (s *DB) ListUsers(ctx context.Context) ([]*store.User, error) {
	q := fmt.Sprintf(`SELECT "id", "username", "password_hash", "roles", "active", "created_at", "updated_at" FROM %s ORDER BY "username"`, s.usersSQL())
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []*store.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *DB) DeleteUser(ctx context.Context, username string) error {
	q := fmt.Sprintf(`DELETE FROM %s WHERE "username" = %s`, s.usersSQL(), s.dialect.bindvar(1))
	res, err := s.db.ExecContext(ctx, q, strings.ToLower(username))
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return store.ErrUserNotFound
	}
	return nil
}

func scanUser(row scanner) (*store.User, error) {
	var (
		u     store.User
		roles string
	)
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &roles, &u.Active, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(roles), &u.Roles); err != nil {
		return nil, fmt.Errorf("decode roles of %s: %w", u.Username, err)
	}
	return &u, nil
}

func isUniqueViolation(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate key")
}
