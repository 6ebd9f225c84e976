package repository

import (
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/templui/accounts/internal/db"
	"github.com/templui/accounts/internal/model"
)

func newSQLiteRepo(t *testing.T) UserRepository {
	t.Helper()
	database, err := db.Init("sqlite", filepath.Join(t.TempDir(), "accounts.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(database) })
	require.NoError(t, db.RunMigrations(database.DB, "sqlite"))
	return NewUserRepository(database)
}

func newMockRepo(t *testing.T) (UserRepository, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })
	return NewUserRepository(sqlx.NewDb(mockDB, "sqlmock")), mock
}

func newUser(email string, externalID *string) *model.User {
	return &model.User{
		ID:         uuid.New().String(),
		Email:      email,
		Name:       "Test",
		ExternalID: externalID,
		IsActive:   true,
		CreatedAt:  time.Now().UTC().Truncate(time.Second),
	}
}

func ptr(s string) *string { return &s }

func TestCreate_AndLookups(t *testing.T) {
	repo := newSQLiteRepo(t)
	ctx := context.Background()

	u := newUser("a@b.com", ptr("9"))
	require.NoError(t, repo.Create(ctx, u))

	byID, err := repo.ByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", byID.Email)
	assert.True(t, byID.IsActive)
	assert.False(t, byID.IsStaff)
	assert.False(t, byID.IsSuperuser)
	assert.Nil(t, byID.LastLogin)
	require.NotNil(t, byID.ExternalID)
	assert.Equal(t, "9", *byID.ExternalID)
	assert.True(t, u.CreatedAt.Equal(byID.CreatedAt))

	byEmail, err := repo.ByEmail(ctx, "a@b.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byEmail.ID)

	byExternal, err := repo.ByExternalID(ctx, "9")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byExternal.ID)
}

func TestLookups_NotFound(t *testing.T) {
	repo := newSQLiteRepo(t)
	ctx := context.Background()

	_, err := repo.ByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrUserNotFound)
	_, err = repo.ByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, ErrUserNotFound)
	_, err = repo.ByExternalID(ctx, "0")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestCreate_DuplicateEmail(t *testing.T) {
	repo := newSQLiteRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newUser("dup@example.com", nil)))
	err := repo.Create(ctx, newUser("dup@example.com", nil))
	assert.ErrorIs(t, err, ErrDuplicateEmail)
}

func TestCreate_DuplicateExternalID(t *testing.T) {
	repo := newSQLiteRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newUser("one@example.com", ptr("42"))))
	err := repo.Create(ctx, newUser("two@example.com", ptr("42")))
	assert.ErrorIs(t, err, ErrDuplicateExternalID)
}

func TestCreate_ManyNullExternalIDs(t *testing.T) {
	repo := newSQLiteRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newUser("one@example.com", nil)))
	require.NoError(t, repo.Create(ctx, newUser("two@example.com", nil)))
}

func TestAttachExternalID_OnlyWhenNull(t *testing.T) {
	repo := newSQLiteRepo(t)
	ctx := context.Background()

	u := newUser("claim@example.com", nil)
	u.Name = "Original Name"
	u.IsStaff = true
	require.NoError(t, repo.Create(ctx, u))

	changed, err := repo.AttachExternalID(ctx, u.ID, "sub-1")
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = repo.AttachExternalID(ctx, u.ID, "sub-2")
	require.NoError(t, err)
	assert.False(t, changed)

	got, err := repo.ByID(ctx, u.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ExternalID)
	assert.Equal(t, "sub-1", *got.ExternalID)
	assert.Equal(t, "Original Name", got.Name)
	assert.True(t, got.IsStaff)
}

func TestAttachExternalID_TakenByAnotherUser(t *testing.T) {
	repo := newSQLiteRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newUser("owner@example.com", ptr("sub-x"))))
	other := newUser("other@example.com", nil)
	require.NoError(t, repo.Create(ctx, other))

	_, err := repo.AttachExternalID(ctx, other.ID, "sub-x")
	assert.ErrorIs(t, err, ErrDuplicateExternalID)
}

func TestList_NewestFirst(t *testing.T) {
	repo := newSQLiteRepo(t)
	ctx := context.Background()

	older := newUser("older@example.com", nil)
	older.CreatedAt = time.Now().Add(-time.Hour).UTC().Truncate(time.Second)
	newer := newUser("newer@example.com", nil)
	require.NoError(t, repo.Create(ctx, older))
	require.NoError(t, repo.Create(ctx, newer))

	users, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "newer@example.com", users[0].Email)
	assert.Equal(t, "older@example.com", users[1].Email)
}

func TestCreate_PostgresUniqueViolations(t *testing.T) {
	tests := []struct {
		name       string
		constraint string
		want       error
	}{
		{"email", "users_email_key", ErrDuplicateEmail},
		{"external id", "users_external_id_key", ErrDuplicateExternalID},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			repo, mock := newMockRepo(t)
			mock.ExpectExec(`(?s)^INSERT\s+INTO\s+users`).
				WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: tc.constraint})

			err := repo.Create(context.Background(), newUser("pg@example.com", nil))
			assert.ErrorIs(t, err, tc.want)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestCreate_OtherDriverErrorPassesThrough(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectExec(`(?s)^INSERT\s+INTO\s+users`).WillReturnError(errors.New("db down"))

	err := repo.Create(context.Background(), newUser("x@example.com", nil))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrDuplicateEmail)
	assert.Contains(t, err.Error(), "db down")
}

func TestAttachExternalID_ConditionalUpdateQuery(t *testing.T) {
	repo, mock := newMockRepo(t)
	q := regexp.QuoteMeta(`UPDATE users SET external_id = $1 WHERE id = $2 AND external_id IS NULL`)
	mock.ExpectExec(q).WithArgs("sub-1", "user-1").WillReturnResult(sqlmock.NewResult(0, 1))

	changed, err := repo.AttachExternalID(context.Background(), "user-1", "sub-1")
	require.NoError(t, err)
	assert.True(t, changed)
	assert.NoError(t, mock.ExpectationsWereMet())
}
