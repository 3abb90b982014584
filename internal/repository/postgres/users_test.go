package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v2"

	"github.com/bohdanboiprav/photoshare-app/internal/core/domain"
	"github.com/bohdanboiprav/photoshare-app/internal/repository"
)

func TestUserRepository_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewUserRepository(mock)

	now := time.Now().UTC()
	user := domain.User{
		ID:           "user-123",
		Nickname:     "harriet",
		Email:        "harriet@example.com",
		PasswordHash: "argon2id$v=19$m=65536,t=3,p=4$salt$hash",
		Role:         domain.RoleUser,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	mock.ExpectExec(`INSERT INTO users`).
		WithArgs(
			user.ID,
			user.Nickname,
			nil,
			nil,
			user.Email,
			user.PasswordHash,
			nil,
			nil,
			user.Role,
			false,
			false,
			now,
			now,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	if err := repo.Create(context.Background(), user); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserRepository_FindByEmail(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewUserRepository(mock)

	now := time.Now().UTC()
	rows := pgxmock.NewRows([]string{
		"id", "nickname", "first_name", "last_name", "email", "password_hash",
		"avatar_url", "refresh_token", "role", "confirmed", "banned", "created_at", "updated_at",
	}).AddRow(
		"user-1", "harriet", "Harriet", nil, "harriet@example.com", "hash",
		nil, "stored-refresh", domain.RoleUser, true, false, now, now,
	)

	mock.ExpectQuery(`SELECT .*FROM users`).WithArgs("harriet@example.com").WillReturnRows(rows)

	user, err := repo.FindByEmail(context.Background(), "harriet@example.com")
	if err != nil {
		t.Fatalf("FindByEmail returned error: %v", err)
	}
	if user.ID != "user-1" {
		t.Fatalf("expected user id user-1, got %s", user.ID)
	}
	if user.FirstName != "Harriet" || user.LastName != "" {
		t.Fatalf("expected nullable names populated, got %q %q", user.FirstName, user.LastName)
	}
	if user.RefreshToken != "stored-refresh" {
		t.Fatalf("expected stored refresh token, got %q", user.RefreshToken)
	}
	if !user.Confirmed || user.Banned {
		t.Fatalf("unexpected flags: confirmed=%v banned=%v", user.Confirmed, user.Banned)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserRepository_FindByEmailNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewUserRepository(mock)

	rows := pgxmock.NewRows([]string{
		"id", "nickname", "first_name", "last_name", "email", "password_hash",
		"avatar_url", "refresh_token", "role", "confirmed", "banned", "created_at", "updated_at",
	})

	mock.ExpectQuery(`SELECT .*FROM users`).WithArgs("ghost@example.com").WillReturnRows(rows)

	if _, err := repo.FindByEmail(context.Background(), "ghost@example.com"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUserRepository_RotateRefreshToken(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewUserRepository(mock)

	mock.ExpectExec(`UPDATE users SET`).
		WithArgs("next-token", pgxmock.AnyArg(), "harriet@example.com", "previous-token").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	rotated, err := repo.RotateRefreshToken(context.Background(), "harriet@example.com", "previous-token", "next-token")
	if err != nil {
		t.Fatalf("RotateRefreshToken returned error: %v", err)
	}
	if !rotated {
		t.Fatalf("expected rotation to succeed")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserRepository_RotateRefreshTokenLosesRace(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewUserRepository(mock)

	mock.ExpectExec(`UPDATE users SET`).
		WithArgs("next-token", pgxmock.AnyArg(), "harriet@example.com", "stale-token").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	rotated, err := repo.RotateRefreshToken(context.Background(), "harriet@example.com", "stale-token", "next-token")
	if err != nil {
		t.Fatalf("RotateRefreshToken returned error: %v", err)
	}
	if rotated {
		t.Fatalf("expected rotation to fail when stored token differs")
	}
}

func TestUserRepository_SetPasswordHash(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewUserRepository(mock)

	mock.ExpectExec(`UPDATE users SET`).
		WithArgs("argon2id$v=19$m=65536,t=3,p=4$salt$newhash", pgxmock.AnyArg(), "harriet@example.com").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	if err := repo.SetPasswordHash(context.Background(), "harriet@example.com", "argon2id$v=19$m=65536,t=3,p=4$salt$newhash"); err != nil {
		t.Fatalf("SetPasswordHash returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserRepository_SetPasswordHashNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewUserRepository(mock)

	mock.ExpectExec(`UPDATE users SET`).
		WithArgs("hash", pgxmock.AnyArg(), "ghost@example.com").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	if err := repo.SetPasswordHash(context.Background(), "ghost@example.com", "hash"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUserRepository_SetBannedNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewUserRepository(mock)

	mock.ExpectExec(`UPDATE users SET`).
		WithArgs(true, pgxmock.AnyArg(), "ghost@example.com").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	if err := repo.SetBanned(context.Background(), "ghost@example.com", true); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
