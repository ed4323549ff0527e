package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/metapantry/internal/apperror"
	"github.com/sakif/metapantry/internal/model"
	"github.com/sakif/metapantry/internal/repository"
)

var _ repository.UserRepository = (*DB)(nil)

const userColumns = `id, email, username, password_hash, is_active, is_superuser, created_at`

func scanUser(row rowScanner) (*model.User, error) {
	var u model.User
	if err := row.Scan(&u.ID, &u.Email, &u.Username, &u.PasswordHash, &u.IsActive, &u.IsSuperuser, &u.CreatedAt); err != nil {
		return nil, err
	}
	u.CreatedAt = u.CreatedAt.UTC()
	return &u, nil
}

// CreateUser inserts u. The UNIQUE constraints on email and username are the
// source of truth for duplicates; a violation maps to apperror.Conflict.
func (db *DB) CreateUser(ctx context.Context, u *model.User) error {
	u.ID = xid.New().String()
	u.CreatedAt = time.Now().UTC().Truncate(time.Microsecond)

	_, err := db.conn.ExecContext(ctx, db.rebind(
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`),
		u.ID, u.Email, u.Username, u.PasswordHash, u.IsActive, u.IsSuperuser, u.CreatedAt,
	)
	if err != nil {
		if column, ok := uniqueViolation(err); ok {
			return apperror.Conflict("user", column)
		}
		return storageErr("creating user", err)
	}
	return nil
}

func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	u, err := scanUser(db.conn.QueryRowContext(ctx, db.rebind(
		`SELECT `+userColumns+` FROM users WHERE id = ?`), id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", id)
		}
		return nil, storageErr("getting user", err)
	}
	return u, nil
}

// GetUserByLogin matches the email case-insensitively or the username exactly.
func (db *DB) GetUserByLogin(ctx context.Context, login string) (*model.User, error) {
	u, err := scanUser(db.conn.QueryRowContext(ctx, db.rebind(
		`SELECT `+userColumns+` FROM users
		 WHERE lower(email) = lower(?) OR username = ?
		 ORDER BY created_at
		 LIMIT 1`), login, login))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", login)
		}
		return nil, storageErr("getting user", err)
	}
	return u, nil
}

// DeleteUser removes the user's items and then the user in one transaction.
// The foreign key also cascades; deleting the items explicitly keeps the
// result the same on a SQLite file opened without foreign_keys.
func (db *DB) DeleteUser(ctx context.Context, id string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return storageErr("deleting user", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after Commit

	if _, err := tx.ExecContext(ctx, db.rebind(`DELETE FROM food_items WHERE owner_id = ?`), id); err != nil {
		return storageErr("deleting user's food items", err)
	}
	result, err := tx.ExecContext(ctx, db.rebind(`DELETE FROM users WHERE id = ?`), id)
	if err != nil {
		return storageErr("deleting user", err)
	}
	if err := requireRow(result, "user", id); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return storageErr("committing user deletion", err)
	}
	return nil
}
