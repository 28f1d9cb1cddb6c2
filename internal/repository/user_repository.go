package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/jobboard-auth/internal/model"
)

const userColumns = "id,email,password_hash,first_name,last_name,role,is_active,is_email_verified,is_phone_verified,last_login_at,created_at,updated_at"

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

type UserRepo struct{ DB *sqlx.DB }

func NewUserRepo(db *sqlx.DB) *UserRepo { return &UserRepo{DB: db} }

// Create inserts u and sets its ID. The email is stored normalised.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	u.Email = NormalizeEmail(u.Email)
	res, err := r.DB.NamedExecContext(ctx,
		`INSERT INTO users (email, password_hash, first_name, last_name, role, is_active, is_email_verified, is_phone_verified)
		 VALUES (:email, :password_hash, :first_name, :last_name, :role, :is_active, :is_email_verified, :is_phone_verified)`,
		u)
	if err != nil {
		var me *mysql.MySQLError
		if errors.As(err, &me) && me.Number == mysqlDuplicateEntry {
			return ErrEmailExists
		}
		return fmt.Errorf("insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert user id: %w", err)
	}
	u.ID = uint64(id)
	return nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	var u model.User
	err := r.DB.GetContext(ctx, &u,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", NormalizeEmail(email))
	return u, notFound(err, ErrUserNotFound)
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	var u model.User
	err := r.DB.GetContext(ctx, &u,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id)
	return u, notFound(err, ErrUserNotFound)
}

// TouchLastLogin stamps a successful sign-in.
func (r *UserRepo) TouchLastLogin(ctx context.Context, id uint64, at time.Time) error {
	if _, err := r.DB.ExecContext(ctx,
		"UPDATE users SET last_login_at=? WHERE id=?", at.UTC(), id); err != nil {
		return fmt.Errorf("touch last login: %w", err)
	}
	return nil
}

// UpdateAccount applies an admin patch and returns the stored row.
func (r *UserRepo) UpdateAccount(ctx context.Context, id uint64, p model.AccountPatch) (model.User, error) {
	var (
		sets []string
		args []any
	)
	if p.Role != nil {
		sets = append(sets, "role=?")
		args = append(args, string(*p.Role))
	}
	if p.IsActive != nil {
		sets = append(sets, "is_active=?")
		args = append(args, *p.IsActive)
	}
	if len(sets) > 0 {
		args = append(args, id)
		if _, err := r.DB.ExecContext(ctx,
			"UPDATE users SET "+strings.Join(sets, ",")+" WHERE id=?", args...); err != nil {
			return model.User{}, fmt.Errorf("update account: %w", err)
		}
	}
	return r.GetByID(ctx, id)
}

// NormalizeEmail lower-cases and trims an address. Every lookup and the
// sign-in limiter key go through it.
func NormalizeEmail(email string) string { return strings.ToLower(strings.TrimSpace(email)) }

func notFound(err, sentinel error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return sentinel
	}
	return err
}
