package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/atinyakov/vultsync/internal/models"
)

func setupUserMock(t *testing.T) (*PostgresUserRepository, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to open sqlmock database: %v", err)
	}
	repo := NewPostgresUserRepository(db)
	cleanup := func() { db.Close() }
	return repo, mock, cleanup
}

var insertUser = regexp.QuoteMeta(`INSERT INTO users (alias, salt, hash) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`)

func TestSetUser_Created(t *testing.T) {
	repo, mock, cleanup := setupUserMock(t)
	defer cleanup()

	mock.ExpectExec(insertUser).
		WithArgs("unit", "salt", "hash").
		WillReturnResult(sqlmock.NewResult(0, 1))

	created, err := repo.SetUser(context.Background(), "unit", models.UserSecrets{Salt: "salt", Hash: "hash"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !created {
		t.Errorf("expected user to be created")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestSetUser_Existing(t *testing.T) {
	repo, mock, cleanup := setupUserMock(t)
	defer cleanup()

	mock.ExpectExec(insertUser).
		WithArgs("unit", "salt", "hash").
		WillReturnResult(sqlmock.NewResult(0, 0))

	created, err := repo.SetUser(context.Background(), "unit", models.UserSecrets{Salt: "salt", Hash: "hash"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created {
		t.Errorf("expected existing user to be left alone")
	}
}

func TestSetUser_Error(t *testing.T) {
	repo, mock, cleanup := setupUserMock(t)
	defer cleanup()

	mock.ExpectExec(insertUser).
		WithArgs("unit", "salt", "").
		WillReturnError(errors.New("insert failed"))

	if _, err := repo.SetUser(context.Background(), "unit", models.UserSecrets{Salt: "salt"}); err == nil {
		t.Errorf("expected error, got nil")
	}
}

func TestGetUser_Found(t *testing.T) {
	repo, mock, cleanup := setupUserMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT salt, hash FROM users WHERE alias = $1`)).
		WithArgs("unit").
		WillReturnRows(sqlmock.NewRows([]string{"salt", "hash"}).AddRow("s", "h"))

	got, err := repo.GetUser(context.Background(), "unit")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Salt != "s" || got.Hash != "h" {
		t.Errorf("got %+v; want salt s hash h", got)
	}
}

func TestGetUser_Uninitialized(t *testing.T) {
	repo, mock, cleanup := setupUserMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT salt, hash FROM users WHERE alias = $1`)).
		WithArgs("ghost").
		WillReturnRows(sqlmock.NewRows([]string{"salt", "hash"}))

	_, err := repo.GetUser(context.Background(), "ghost")
	if !errors.Is(err, models.ErrUninitializedUser) {
		t.Errorf("error = %v; want ErrUninitializedUser", err)
	}
}

func TestRemoveUser(t *testing.T) {
	repo, mock, cleanup := setupUserMock(t)
	defer cleanup()

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM users WHERE alias = $1`)).
		WithArgs("unit").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.RemoveUser(context.Background(), "unit"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}
