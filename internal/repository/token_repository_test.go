package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/jobboard-auth/internal/model"
)

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	raw, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = raw.Close() })
	return sqlx.NewDb(raw, "mysql"), mock
}

func newTokenRepo(t *testing.T) (*TokenRepo, sqlmock.Sqlmock) {
	db, mock := newMockDB(t)
	return &TokenRepo{DB: db, Now: func() time.Time { return fixedNow }}, mock
}

func nextToken() model.RefreshToken {
	return model.RefreshToken{
		UserID:     7,
		TokenHash:  "new-hash",
		DeviceInfo: "firefox",
		IssuedAt:   fixedNow,
		ExpiresAt:  fixedNow.Add(7 * 24 * time.Hour),
	}
}

func TestRotateRevokesAndInsertsInOneTransaction(t *testing.T) {
	repo, mock := newTokenRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE refresh_tokens SET revoked=1, last_used_at=?")).
		WithArgs(fixedNow, "old-hash", fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO refresh_tokens")).
		WithArgs(uint64(7), "new-hash", "firefox", fixedNow, fixedNow.Add(7*24*time.Hour), false).
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Rotate(context.Background(), "old-hash", nextToken()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRotateRollsBackWhenTokenAlreadyUsed(t *testing.T) {
	repo, mock := newTokenRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE refresh_tokens SET revoked=1")).
		WithArgs(fixedNow, "old-hash", fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.Rotate(context.Background(), "old-hash", nextToken())
	assert.ErrorIs(t, err, ErrTokenNotActive)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRotateRollsBackWhenInsertFails(t *testing.T) {
	repo, mock := newTokenRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE refresh_tokens SET revoked=1")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO refresh_tokens")).
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	err := repo.Rotate(context.Background(), "old-hash", nextToken())
	assert.ErrorIs(t, err, assert.AnError)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByHashMapsMissingRow(t *testing.T) {
	repo, mock := newTokenRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM refresh_tokens WHERE token_hash=?")).
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.GetByHash(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestGetByHashScansRow(t *testing.T) {
	repo, mock := newTokenRepo(t)

	rows := sqlmock.NewRows([]string{"id", "user_id", "token_hash", "device_info", "issued_at", "expires_at", "last_used_at", "revoked"}).
		AddRow(3, 7, "h", "curl", fixedNow, fixedNow.Add(time.Hour), nil, true)
	mock.ExpectQuery(regexp.QuoteMeta("FROM refresh_tokens WHERE token_hash=?")).
		WithArgs("h").
		WillReturnRows(rows)

	tok, err := repo.GetByHash(context.Background(), "h")
	require.NoError(t, err)
	assert.Equal(t, uint64(7), tok.UserID)
	assert.True(t, tok.Revoked)
	assert.Nil(t, tok.LastUsedAt)
	assert.Equal(t, model.TokenRevoked, tok.State(fixedNow))
}

func TestRevokeIsConditional(t *testing.T) {
	repo, mock := newTokenRepo(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE refresh_tokens SET revoked=1 WHERE token_hash=? AND revoked=0")).
		WithArgs("h").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE refresh_tokens SET revoked=1 WHERE user_id=? AND revoked=0")).
		WithArgs(uint64(7)).
		WillReturnResult(sqlmock.NewResult(0, 3))

	require.NoError(t, repo.Revoke(context.Background(), "h"))
	require.NoError(t, repo.RevokeAllForUser(context.Background(), 7))
	assert.NoError(t, mock.ExpectationsWereMet())
}
