package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*RTERepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewRTERepo(db), mock
}

func TestListAvailableScopesToViewer(t *testing.T) {
	repo, mock := newMockDB(t)
	added := time.Date(2026, 9, 1, 11, 30, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE oi.id IS NULL AND (ci.id IS NULL OR ca.user_id = ?)")).
		WithArgs(uint64(42)).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "item_variation_id", "counter_id", "mi_name", "iv_name", "co_name", "price", "added_at",
		}).
			AddRow(7, 3, 1, "Samosa", "Single", "Snacks Corner", "15.00", added).
			AddRow(9, 5, 2, "Veg Thali", "Regular", "Main Course Counter", "80.00", added))

	listings, err := repo.ListAvailable(context.Background(), 42)
	require.NoError(t, err)
	require.Len(t, listings, 2)
	assert.Equal(t, uint64(7), listings[0].ID)
	assert.Equal(t, "Samosa", listings[0].ItemName)
	assert.Equal(t, "15", listings[0].Price.String())
	assert.Equal(t, "Main Course Counter", listings[1].CounterName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetForUpdateTxNotFound(t *testing.T) {
	repo, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM rte_items WHERE id = ? FOR UPDATE")).
		WithArgs(uint64(99)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "item_variation_id", "counter_id", "quantity", "added_at"}))

	tx, err := repo.DB().Begin()
	require.NoError(t, err)
	_, err = repo.GetForUpdateTx(context.Background(), tx, 99)
	assert.ErrorIs(t, err, ErrRTEItemNotFound)
}

func TestEnsureUnclaimedTx(t *testing.T) {
	repo, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM cart_items WHERE claimed_rte_item_id = ?)")).
		WithArgs(uint64(7), uint64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"claimed"}).AddRow(true))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM cart_items WHERE claimed_rte_item_id = ?)")).
		WithArgs(uint64(8), uint64(8)).
		WillReturnRows(sqlmock.NewRows([]string{"claimed"}).AddRow(false))

	tx, err := repo.DB().Begin()
	require.NoError(t, err)
	assert.ErrorIs(t, repo.EnsureUnclaimedTx(context.Background(), tx, 7), ErrAlreadyClaimed)
	assert.NoError(t, repo.EnsureUnclaimedTx(context.Background(), tx, 8))
}

func TestRelistTxInsertsOneRowPerUnit(t *testing.T) {
	repo, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(
		"INSERT INTO rte_items (item_variation_id, counter_id, quantity) VALUES (?, ?, 1),(?, ?, 1),(?, ?, 1)")).
		WithArgs(uint64(5), uint64(2), uint64(5), uint64(2), uint64(5), uint64(2)).
		WillReturnResult(sqlmock.NewResult(30, 3))

	tx, err := repo.DB().Begin()
	require.NoError(t, err)
	require.NoError(t, repo.RelistTx(context.Background(), tx, 5, 2, 3))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRelistTxZeroCountIsNoop(t *testing.T) {
	repo, mock := newMockDB(t)
	mock.ExpectBegin()
	tx, err := repo.DB().Begin()
	require.NoError(t, err)
	require.NoError(t, repo.RelistTx(context.Background(), tx, 5, 2, 0))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReleaseTxReportsDeletion(t *testing.T) {
	repo, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM rte_items WHERE id = ?")).
		WithArgs(uint64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM rte_items WHERE id = ?")).
		WithArgs(uint64(7)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	tx, err := repo.DB().Begin()
	require.NoError(t, err)
	deleted, err := repo.ReleaseTx(context.Background(), tx, 7)
	require.NoError(t, err)
	assert.True(t, deleted)
	// Releasing again is harmless, just reports nothing happened.
	deleted, err = repo.ReleaseTx(context.Background(), tx, 7)
	require.NoError(t, err)
	assert.False(t, deleted)
}
