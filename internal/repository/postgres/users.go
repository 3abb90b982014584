package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bohdanboiprav/photoshare-app/internal/core/domain"
	"github.com/bohdanboiprav/photoshare-app/internal/core/port"
	"github.com/bohdanboiprav/photoshare-app/internal/repository"
)

type pgExecutor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const usersTable = "users"

var userColumns = []string{
	"id",
	"nickname",
	"first_name",
	"last_name",
	"email",
	"password_hash",
	"avatar_url",
	"refresh_token",
	"role",
	"confirmed",
	"banned",
	"created_at",
	"updated_at",
}

// UserRepository implements port.UserDirectory using PostgreSQL.
type UserRepository struct {
	pool    *pgxpool.Pool
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewUserRepository constructs a repository backed by any executor that satisfies pgExecutor.
func NewUserRepository(exec pgExecutor) *UserRepository {
	repo := &UserRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
	if pool, ok := exec.(*pgxpool.Pool); ok {
		repo.pool = pool
	}
	return repo
}

// Create inserts a new user row.
func (r *UserRepository) Create(ctx context.Context, user domain.User) error {
	stmt, args, err := r.builder.Insert(usersTable).
		Columns(userColumns...).
		Values(
			user.ID,
			user.Nickname,
			nullableString(user.FirstName),
			nullableString(user.LastName),
			user.Email,
			user.PasswordHash,
			nullableString(user.AvatarURL),
			nullableString(user.RefreshToken),
			user.Role,
			user.Confirmed,
			user.Banned,
			user.CreatedAt,
			user.UpdatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert user sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert user: %w", err)
	}

	return nil
}

// FindByEmail retrieves a user by email address.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, squirrel.Eq{"email": email})
}

// FindByID retrieves a user by identifier.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*domain.User, error) {
	return r.findOne(ctx, squirrel.Eq{"id": id})
}

func (r *UserRepository) findOne(ctx context.Context, where squirrel.Eq) (*domain.User, error) {
	stmt, args, err := r.builder.
		Select(userColumns...).
		From(usersTable).
		Where(where).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select user sql: %w", err)
	}

	row := r.exec.QueryRow(ctx, stmt, args...)

	var (
		user         domain.User
		firstName    sql.NullString
		lastName     sql.NullString
		avatarURL    sql.NullString
		refreshToken sql.NullString
	)

	if err := row.Scan(
		&user.ID,
		&user.Nickname,
		&firstName,
		&lastName,
		&user.Email,
		&user.PasswordHash,
		&avatarURL,
		&refreshToken,
		&user.Role,
		&user.Confirmed,
		&user.Banned,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}

	user.FirstName = firstName.String
	user.LastName = lastName.String
	user.AvatarURL = avatarURL.String
	user.RefreshToken = refreshToken.String

	return &user, nil
}

// SetRefreshToken unconditionally stores the refresh token for a user. An
// empty token clears the stored value and forces the next refresh to fail.
func (r *UserRepository) SetRefreshToken(ctx context.Context, email string, token string) error {
	stmt, args, err := r.builder.Update(usersTable).
		Set("refresh_token", nullableString(token)).
		Set("updated_at", time.Now().UTC()).
		Where(squirrel.Eq{"email": email}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update refresh token sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update refresh token: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// RotateRefreshToken replaces the stored refresh token only when it still
// equals previous. The single conditional UPDATE makes concurrent rotations
// race-free: exactly one caller observes a rows-affected count of one.
func (r *UserRepository) RotateRefreshToken(ctx context.Context, email string, previous, next string) (bool, error) {
	stmt, args, err := r.builder.Update(usersTable).
		Set("refresh_token", nullableString(next)).
		Set("updated_at", time.Now().UTC()).
		Where(squirrel.Eq{"email": email, "refresh_token": previous}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build rotate refresh token sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return false, fmt.Errorf("rotate refresh token: %w", err)
	}

	return ct.RowsAffected() == 1, nil
}

// SetBanned updates the ban flag for a user.
func (r *UserRepository) SetBanned(ctx context.Context, email string, banned bool) error {
	stmt, args, err := r.builder.Update(usersTable).
		Set("banned", banned).
		Set("updated_at", time.Now().UTC()).
		Where(squirrel.Eq{"email": email}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update banned sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update banned: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// SetConfirmed marks the user's email address as confirmed.
func (r *UserRepository) SetConfirmed(ctx context.Context, email string) error {
	stmt, args, err := r.builder.Update(usersTable).
		Set("confirmed", true).
		Set("updated_at", time.Now().UTC()).
		Where(squirrel.Eq{"email": email}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update confirmed sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update confirmed: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// SetPasswordHash replaces the stored credential hash. Callers are expected
// to clear the refresh token separately so open sessions cannot be refreshed
// with the old credential.
func (r *UserRepository) SetPasswordHash(ctx context.Context, email string, hash string) error {
	stmt, args, err := r.builder.Update(usersTable).
		Set("password_hash", hash).
		Set("updated_at", time.Now().UTC()).
		Where(squirrel.Eq{"email": email}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update password hash sql: %w", err)
	}

	ct, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update password hash: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

var _ port.UserDirectory = (*UserRepository)(nil)
