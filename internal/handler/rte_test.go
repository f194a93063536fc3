package handler

import (
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adityarao/campus-canteen/internal/repository"
)

func claimContext(t *testing.T, userID uint64, unitID string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/ready-to-eat/"+unitID+"/claim", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/v1/ready-to-eat/:id/claim")
	c.SetParamNames("id")
	c.SetParamValues(unitID)
	c.Set("user_id", userID)
	return c, rec
}

func TestClaimWinsRace(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	h := NewRTEHandler(repository.NewRTERepo(db), repository.NewCartRepo(db))

	added := time.Date(2026, 9, 1, 11, 0, 0, 0, time.UTC)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM rte_items WHERE id = ? FOR UPDATE")).
		WithArgs(uint64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "item_variation_id", "counter_id", "quantity", "added_at"}).
			AddRow(7, 3, 2, 1, added))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM cart_items WHERE claimed_rte_item_id = ?)")).
		WithArgs(uint64(7), uint64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"claimed"}).AddRow(false))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, user_id, created_at FROM carts WHERE user_id = ?")).
		WithArgs(uint64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "created_at"}).AddRow(5, 42, added))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO cart_items (cart_id, item_variation_id, quantity, claimed_rte_item_id)")).
		WithArgs(uint64(5), uint64(3), uint64(7)).
		WillReturnResult(sqlmock.NewResult(11, 1))
	mock.ExpectCommit()

	c, rec := claimContext(t, 42, "7")
	require.NoError(t, h.Claim(c))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), "reserved in your cart")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimLosesRace(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	h := NewRTEHandler(repository.NewRTERepo(db), repository.NewCartRepo(db))

	added := time.Date(2026, 9, 1, 11, 0, 0, 0, time.UTC)
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM rte_items WHERE id = ? FOR UPDATE")).
		WithArgs(uint64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "item_variation_id", "counter_id", "quantity", "added_at"}).
			AddRow(7, 3, 2, 1, added))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM cart_items WHERE claimed_rte_item_id = ?)")).
		WithArgs(uint64(7), uint64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"claimed"}).AddRow(true))
	mock.ExpectRollback()

	c, rec := claimContext(t, 42, "7")
	require.NoError(t, h.Claim(c))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "just claimed by someone else")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimUnknownUnit(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	h := NewRTEHandler(repository.NewRTERepo(db), repository.NewCartRepo(db))

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FROM rte_items WHERE id = ? FOR UPDATE")).
		WithArgs(uint64(404)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "item_variation_id", "counter_id", "quantity", "added_at"}))
	mock.ExpectRollback()

	c, rec := claimContext(t, 42, "404")
	require.NoError(t, h.Claim(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimRequiresAuth(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	h := NewRTEHandler(repository.NewRTERepo(db), repository.NewCartRepo(db))

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/ready-to-eat/7/claim", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("7")
	require.NoError(t, h.Claim(c))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
