package repo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"glucowizard/internal/domain"
	"glucowizard/internal/infra"
	"glucowizard/internal/sqlinline"
)

// UserRepositoryPG implements domain.UserRepository backed by PostgreSQL.
type UserRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewUserRepository creates a new UserRepositoryPG.
func NewUserRepository(sql infra.SQLExecutor) *UserRepositoryPG {
	return &UserRepositoryPG{sql: sql}
}

func (r *UserRepositoryPG) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	return scanUser(r.sql.QueryRow(ctx, sqlinline.QSelectUserByID, id))
}

// GetByEmail returns the oldest user with the given email. Emails are not unique.
func (r *UserRepositoryPG) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return scanUser(r.sql.QueryRow(ctx, sqlinline.QSelectUserByEmail, email))
}

func (r *UserRepositoryPG) UsernameExists(ctx context.Context, username string) (bool, error) {
	var exists bool
	if err := r.sql.QueryRow(ctx, sqlinline.QUsernameExists, username).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// Create inserts a user. A duplicate username or supabase id yields domain.ErrConflict.
func (r *UserRepositoryPG) Create(ctx context.Context, user domain.NewUser) (*domain.User, error) {
	row := r.sql.QueryRow(ctx, sqlinline.QInsertUser,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.SupabaseID,
	)
	created, err := scanUser(row)
	if err != nil {
		if infra.IsUniqueViolation(err) {
			return nil, fmt.Errorf("create user %q: %w", user.Username, domain.ErrConflict)
		}
		return nil, err
	}
	return created, nil
}

func (r *UserRepositoryPG) UpdateAvatar(ctx context.Context, id int64, avatarURL string) error {
	return execOne(ctx, r.sql, sqlinline.QUpdateUserAvatar, id, avatarURL)
}

func (r *UserRepositoryPG) UpdatePasswordHash(ctx context.Context, id int64, hash string) error {
	return execOne(ctx, r.sql, sqlinline.QUpdateUserPasswordHash, id, hash)
}

func (r *UserRepositoryPG) TouchLogin(ctx context.Context, id int64) error {
	return execOne(ctx, r.sql, sqlinline.QTouchUserLogin, id)
}

// AttachSupabaseID records the Supabase subject only when none is stored yet.
func (r *UserRepositoryPG) AttachSupabaseID(ctx context.Context, id int64, supabaseID string) error {
	_, err := r.sql.Exec(ctx, sqlinline.QAttachSupabaseID, id, supabaseID)
	if err != nil && infra.IsUniqueViolation(err) {
		return fmt.Errorf("attach supabase id: %w", domain.ErrConflict)
	}
	return err
}

func (r *UserRepositoryPG) SetStaff(ctx context.Context, id int64, staff, superuser bool) (*domain.User, error) {
	return scanUser(r.sql.QueryRow(ctx, sqlinline.QSetUserStaff, id, staff, superuser))
}

func (r *UserRepositoryPG) List(ctx context.Context, query string, limit, offset int) ([]domain.User, error) {
	rows, err := r.sql.Query(ctx, sqlinline.QListUsers, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	if err := row.Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.PasswordHash,
		&u.AvatarURL,
		&u.SupabaseID,
		&u.IsStaff,
		&u.IsSuperuser,
		&u.IsActive,
		&u.DateJoined,
		&u.LastLogin,
		&u.UpdatedAt,
	); err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// execOne runs an update and maps zero affected rows to domain.ErrNotFound.
func execOne(ctx context.Context, sql infra.SQLExecutor, query string, args ...any) error {
	tag, err := sql.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
